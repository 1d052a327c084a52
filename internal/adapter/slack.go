package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"

	"github.com/ergcontrols/sahabot/internal/convo"
	saherrors "github.com/ergcontrols/sahabot/internal/errors"
	"github.com/ergcontrols/sahabot/internal/logger"
)

// Block action IDs for the confirm/cancel/feedback buttons.
const (
	slackActionConfirm      = "sahabot_confirm"
	slackActionCancel       = "sahabot_cancel"
	slackActionFeedbackUp   = "sahabot_feedback_up"
	slackActionFeedbackDown = "sahabot_feedback_down"
)

type SlackAdapter struct {
	signingSecret string
	botToken      string
	handler       Handler
	server        *http.Server
	port          int
	client        *slack.Client
}

func NewSlackAdapter(port int, signingSecret, botToken string, handler Handler) *SlackAdapter {
	return &SlackAdapter{
		signingSecret: signingSecret,
		botToken:      botToken,
		handler:       handler,
		port:          port,
		client:        slack.New(botToken),
	}
}

func (s *SlackAdapter) Name() string {
	return "slack"
}

func (s *SlackAdapter) Start(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/slack/events", s.handleEvents)
	mux.HandleFunc("/slack/interactions", s.handleInteractions)

	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", s.port),
		Handler: mux,
	}

	go func() {
		slog.Info("Slack adapter listening", "port", s.port)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Slack server failed", "error", err)
		}
	}()

	<-ctx.Done()
	return s.server.Shutdown(context.Background())
}

func (s *SlackAdapter) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *SlackAdapter) Health(ctx context.Context) error {
	if s.server == nil {
		return saherrors.Transient("Slack server not started")
	}
	if _, err := s.client.AuthTestContext(ctx); err != nil {
		return saherrors.Transient("Slack connection failed")
	}
	return nil
}

// Post sends a plain text message, used by the scheduled reports.
func (s *SlackAdapter) Post(ctx context.Context, channel, text string) error {
	_, _, err := s.client.PostMessageContext(ctx, channel, slack.MsgOptionText(text, false))
	if err != nil {
		return saherrors.Wrap(err, "failed to post Slack message")
	}
	return nil
}

// sendReply renders the reply with Block Kit buttons where the engine
// asked for them, threaded under the conversation's root message.
func (s *SlackAdapter) sendReply(ctx context.Context, channel, threadTS string, reply convo.Reply) {
	if reply.Text == "" {
		return
	}

	options := []slack.MsgOption{slack.MsgOptionText(reply.Text, false)}
	if threadTS != "" {
		options = append(options, slack.MsgOptionTS(threadTS))
	}
	if blocks := replyBlocks(reply); blocks != nil {
		options = append(options, slack.MsgOptionBlocks(blocks...))
	}

	if _, _, err := s.client.PostMessageContext(ctx, channel, options...); err != nil {
		slog.Error("Failed to send Slack reply", "channel", channel, "error", err)
	}
}

func replyBlocks(reply convo.Reply) []slack.Block {
	if !reply.OfferConfirm && !reply.OfferFeedback {
		return nil
	}

	text := slack.NewSectionBlock(
		slack.NewTextBlockObject(slack.PlainTextType, reply.Text, true, false), nil, nil)

	var buttons []slack.BlockElement
	if reply.OfferConfirm {
		yes, no := "Onayla ✅", "İptal ❌"
		if reply.Language == "en" {
			yes, no = "Confirm ✅", "Cancel ❌"
		}
		buttons = append(buttons,
			slack.NewButtonBlockElement(slackActionConfirm, "confirm",
				slack.NewTextBlockObject(slack.PlainTextType, yes, true, false)).WithStyle(slack.StylePrimary),
			slack.NewButtonBlockElement(slackActionCancel, "cancel",
				slack.NewTextBlockObject(slack.PlainTextType, no, true, false)).WithStyle(slack.StyleDanger),
		)
	}
	if reply.OfferFeedback {
		buttons = append(buttons,
			slack.NewButtonBlockElement(slackActionFeedbackUp, "up",
				slack.NewTextBlockObject(slack.PlainTextType, "👍", true, false)),
			slack.NewButtonBlockElement(slackActionFeedbackDown, "down",
				slack.NewTextBlockObject(slack.PlainTextType, "👎", true, false)),
		)
	}

	return []slack.Block{text, slack.NewActionBlock("sahabot_actions", buttons...)}
}

func (s *SlackAdapter) verify(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return nil, false
	}

	sv, err := slack.NewSecretsVerifier(r.Header, s.signingSecret)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return nil, false
	}
	if _, err := sv.Write(body); err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return nil, false
	}
	if err := sv.Ensure(); err != nil {
		w.WriteHeader(http.StatusUnauthorized)
		return nil, false
	}
	return body, true
}

func (s *SlackAdapter) handleEvents(w http.ResponseWriter, r *http.Request) {
	body, ok := s.verify(w, r)
	if !ok {
		return
	}

	eventsAPIEvent, err := slackevents.ParseEvent(json.RawMessage(body), slackevents.OptionNoVerifyToken())
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	if eventsAPIEvent.Type == slackevents.URLVerification {
		var challenge slackevents.ChallengeResponse
		if err := json.Unmarshal(body, &challenge); err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte(challenge.Challenge))
		return
	}

	// Ack immediately; Slack retries on slow responses and the dedup
	// store absorbs what still slips through.
	w.WriteHeader(http.StatusOK)

	if eventsAPIEvent.Type != slackevents.CallbackEvent {
		return
	}

	switch ev := eventsAPIEvent.InnerEvent.Data.(type) {
	case *slackevents.MessageEvent:
		if ev.BotID != "" || ev.SubType != "" {
			return
		}
		s.processMessage(ev.Channel, ev.User, ev.Text, ev.TimeStamp, ev.ThreadTimeStamp)
	case *slackevents.AppMentionEvent:
		s.processMessage(ev.Channel, ev.User, ev.Text, ev.TimeStamp, ev.ThreadTimeStamp)
	}
}

// threadRoot picks the timestamp that identifies the thread: the parent's
// for replies, the message's own for a fresh top-level message. Two
// parallel threads in one channel must never share conversation state.
func threadRoot(ts, threadTS string) string {
	if threadTS != "" {
		return threadTS
	}
	return ts
}

func (s *SlackAdapter) processMessage(channel, user, text, ts, threadTS string) {
	token := fmt.Sprintf("slack:%s:%s", channel, ts)
	root := threadRoot(ts, threadTS)
	go func() {
		ctx := logger.WithTraceID(context.Background(), token)
		reply := s.handler.HandleTurn(ctx, convo.Incoming{
			ConversationID: fmt.Sprintf("%s:%s", channel, root),
			ActorID:        user,
			SenderName:     s.displayName(ctx, user),
			Text:           text,
			DedupToken:     token,
		})
		s.sendReply(ctx, channel, root, reply)
	}()
}

func (s *SlackAdapter) handleInteractions(w http.ResponseWriter, r *http.Request) {
	body, ok := s.verify(w, r)
	if !ok {
		return
	}

	// Interaction payloads arrive form-encoded under "payload".
	values, err := url.ParseQuery(string(body))
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	var callback slack.InteractionCallback
	if err := json.Unmarshal([]byte(values.Get("payload")), &callback); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	w.WriteHeader(http.StatusOK)

	if callback.Type != slack.InteractionTypeBlockActions || len(callback.ActionCallback.BlockActions) == 0 {
		return
	}

	action := callback.ActionCallback.BlockActions[0]
	kind, ok := slackActionKind(action.ActionID)
	if !ok {
		return
	}

	channel := callback.Channel.ID
	root := threadRoot(callback.Message.Timestamp, callback.Message.ThreadTimestamp)
	token := fmt.Sprintf("slack:%s:%s:%s", channel, action.ActionTs, action.ActionID)
	go func() {
		ctx := logger.WithTraceID(context.Background(), token)
		reply := s.handler.HandleAction(ctx, convo.Action{
			Kind:           kind,
			ConversationID: fmt.Sprintf("%s:%s", channel, root),
			ActorID:        callback.User.ID,
			SenderName:     s.displayName(ctx, callback.User.ID),
			DedupToken:     token,
		})
		s.sendReply(ctx, channel, root, reply)
	}()
}

func slackActionKind(actionID string) (convo.ActionKind, bool) {
	switch actionID {
	case slackActionConfirm:
		return convo.ActionConfirm, true
	case slackActionCancel:
		return convo.ActionCancel, true
	case slackActionFeedbackUp:
		return convo.ActionFeedbackUp, true
	case slackActionFeedbackDown:
		return convo.ActionFeedbackDown, true
	}
	return "", false
}

func (s *SlackAdapter) displayName(ctx context.Context, userID string) string {
	user, err := s.client.GetUserInfoContext(ctx, userID)
	if err != nil {
		slog.Debug("Failed to look up Slack user", "user", userID, "error", err)
		return ""
	}
	if user.Profile.DisplayName != "" {
		return user.Profile.DisplayName
	}
	return user.RealName
}
