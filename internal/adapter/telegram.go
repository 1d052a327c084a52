package adapter

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/ergcontrols/sahabot/internal/convo"
	saherrors "github.com/ergcontrols/sahabot/internal/errors"
	"github.com/ergcontrols/sahabot/internal/logger"
)

// Callback data values for the inline keyboard.
const (
	tgCallbackConfirm      = "confirm"
	tgCallbackCancel       = "cancel"
	tgCallbackFeedbackUp   = "feedback_up"
	tgCallbackFeedbackDown = "feedback_down"
)

type TelegramAdapter struct {
	token         string
	updateTimeout int
	handler       Handler
	bot           *tgbotapi.BotAPI
}

func NewTelegramAdapter(token string, handler Handler, updateTimeout int) *TelegramAdapter {
	if updateTimeout <= 0 {
		updateTimeout = 30
	}
	return &TelegramAdapter{
		token:         token,
		updateTimeout: updateTimeout,
		handler:       handler,
	}
}

func (t *TelegramAdapter) Name() string {
	return "telegram"
}

func (t *TelegramAdapter) Start(ctx context.Context) error {
	var err error
	t.bot, err = tgbotapi.NewBotAPI(t.token)
	if err != nil {
		return saherrors.Wrap(err, "failed to init telegram bot")
	}

	slog.Info("Telegram adapter started", "user", t.bot.Self.UserName)

	u := tgbotapi.NewUpdate(0)
	u.Timeout = t.updateTimeout
	updates := t.bot.GetUpdatesChan(u)

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case update := <-updates:
				t.handleUpdate(ctx, update)
			}
		}
	}()

	return nil
}

func (t *TelegramAdapter) Stop(ctx context.Context) error {
	if t.bot != nil {
		t.bot.StopReceivingUpdates()
	}
	return nil
}

func (t *TelegramAdapter) Health(ctx context.Context) error {
	if t.bot == nil {
		return saherrors.Transient("Telegram bot not initialized")
	}
	if _, err := t.bot.GetMe(); err != nil {
		return saherrors.Transient("Telegram connection failed: " + err.Error())
	}
	return nil
}

func (t *TelegramAdapter) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.CallbackQuery != nil:
		t.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil && update.Message.Text != "":
		t.handleMessage(ctx, update.Message, update.UpdateID)
	}
}

func (t *TelegramAdapter) handleMessage(ctx context.Context, msg *tgbotapi.Message, updateID int) {
	chatID := strconv.FormatInt(msg.Chat.ID, 10)
	token := fmt.Sprintf("tg:%d", updateID)

	reply := t.handler.HandleTurn(logger.WithTraceID(ctx, token), convo.Incoming{
		ConversationID: chatID,
		ActorID:        strconv.FormatInt(msg.From.ID, 10),
		SenderName:     senderName(msg.From),
		Text:           msg.Text,
		DedupToken:     token,
	})
	t.sendReply(chatID, reply)
}

func (t *TelegramAdapter) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	kind, ok := telegramActionKind(cb.Data)
	if !ok || cb.Message == nil {
		return
	}

	// Clear the spinner on the pressed button.
	if _, err := t.bot.Request(tgbotapi.NewCallback(cb.ID, "")); err != nil {
		slog.Debug("Failed to ack telegram callback", "error", err)
	}

	chatID := strconv.FormatInt(cb.Message.Chat.ID, 10)
	token := fmt.Sprintf("tg:cb:%s", cb.ID)
	reply := t.handler.HandleAction(logger.WithTraceID(ctx, token), convo.Action{
		Kind:           kind,
		ConversationID: chatID,
		ActorID:        strconv.FormatInt(cb.From.ID, 10),
		SenderName:     senderName(cb.From),
		DedupToken:     token,
	})
	t.sendReply(chatID, reply)
}

func telegramActionKind(data string) (convo.ActionKind, bool) {
	switch data {
	case tgCallbackConfirm:
		return convo.ActionConfirm, true
	case tgCallbackCancel:
		return convo.ActionCancel, true
	case tgCallbackFeedbackUp:
		return convo.ActionFeedbackUp, true
	case tgCallbackFeedbackDown:
		return convo.ActionFeedbackDown, true
	}
	return "", false
}

func senderName(user *tgbotapi.User) string {
	if user == nil {
		return ""
	}
	if user.FirstName != "" {
		return user.FirstName
	}
	return user.UserName
}

func (t *TelegramAdapter) sendReply(chatID string, reply convo.Reply) {
	if reply.Text == "" {
		return
	}

	id, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		slog.Error("Invalid telegram chat ID", "chat_id", chatID)
		return
	}

	msg := tgbotapi.NewMessage(id, reply.Text)
	if markup := replyKeyboard(reply); markup != nil {
		msg.ReplyMarkup = markup
	}

	if _, err := t.bot.Send(msg); err != nil {
		slog.Error("Failed to send telegram reply", "chat_id", chatID, "error", err)
	}
}

func replyKeyboard(reply convo.Reply) *tgbotapi.InlineKeyboardMarkup {
	var row []tgbotapi.InlineKeyboardButton
	if reply.OfferConfirm {
		yes, no := "Onayla ✅", "İptal ❌"
		if reply.Language == "en" {
			yes, no = "Confirm ✅", "Cancel ❌"
		}
		row = append(row,
			tgbotapi.NewInlineKeyboardButtonData(yes, tgCallbackConfirm),
			tgbotapi.NewInlineKeyboardButtonData(no, tgCallbackCancel),
		)
	}
	if reply.OfferFeedback {
		row = append(row,
			tgbotapi.NewInlineKeyboardButtonData("👍", tgCallbackFeedbackUp),
			tgbotapi.NewInlineKeyboardButtonData("👎", tgCallbackFeedbackDown),
		)
	}
	if len(row) == 0 {
		return nil
	}

	markup := tgbotapi.NewInlineKeyboardMarkup(row)
	return &markup
}

// Post sends a plain message, used by the scheduled reports when Telegram
// is the report channel.
func (t *TelegramAdapter) Post(ctx context.Context, channel, text string) error {
	id, err := strconv.ParseInt(channel, 10, 64)
	if err != nil {
		return saherrors.InvalidInput("invalid telegram chat ID: " + channel)
	}
	if _, err := t.bot.Send(tgbotapi.NewMessage(id, text)); err != nil {
		return saherrors.Wrap(err, "failed to post telegram message")
	}
	return nil
}
