package convo

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/ergcontrols/sahabot/internal/classify"
	saherrors "github.com/ergcontrols/sahabot/internal/errors"
	"github.com/ergcontrols/sahabot/internal/executor"
	"github.com/ergcontrols/sahabot/internal/format"
	"github.com/ergcontrols/sahabot/internal/idempotency"
	"github.com/ergcontrols/sahabot/internal/logger"
	"github.com/ergcontrols/sahabot/internal/registry"
	"github.com/ergcontrols/sahabot/internal/resolver"
	"github.com/ergcontrols/sahabot/internal/validate"
	"github.com/ergcontrols/sahabot/internal/workbook"
)

// Classifier is what the controller needs from the model adapter.
type Classifier interface {
	Classify(ctx context.Context, req classify.Request) (classify.Result, error)
}

// Incoming is one normalized text message from any transport.
type Incoming struct {
	ConversationID string
	ActorID        string
	SenderName     string
	Text           string
	DedupToken     string
}

// Action is one normalized button press or reaction.
type Action struct {
	Kind           ActionKind
	ConversationID string
	ActorID        string
	SenderName     string
	DedupToken     string
}

// Options tunes the controller. Zero values get sane defaults.
type Options struct {
	StaleDays           int
	DuplicateSimilarity float64
	HistoryLimit        int
	IdempotencyTTL      time.Duration
	FuzzyMinScore       int
	Aliases             map[string][]string
	// Now is injectable for tests.
	Now func() time.Time
}

// Controller drives the turn state machine: classify, reconcile, merge,
// recompute missing fields, validate, then collect / confirm / commit.
type Controller struct {
	classifier Classifier
	convs      *Store
	wb         workbook.Store
	exec       *executor.Executor
	dedup      *idempotency.Store
	opts       Options
}

func NewController(classifier Classifier, convs *Store, wb workbook.Store, exec *executor.Executor, dedup *idempotency.Store, opts Options) *Controller {
	if opts.StaleDays <= 0 {
		opts.StaleDays = 90
	}
	if opts.DuplicateSimilarity <= 0 {
		opts.DuplicateSimilarity = 0.6
	}
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = 20
	}
	if opts.IdempotencyTTL <= 0 {
		opts.IdempotencyTTL = time.Hour
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Controller{
		classifier: classifier,
		convs:      convs,
		wb:         wb,
		exec:       exec,
		dedup:      dedup,
		opts:       opts,
	}
}

var greetingWords = map[string]bool{
	"merhaba": true, "selam": true, "selamlar": true, "günaydın": true,
	"hi": true, "hello": true, "hey": true,
}

var helpWords = map[string]bool{
	"yardım": true, "yardim": true, "help": true, "?": true,
}

var confirmWords = map[string]bool{
	"evet": true, "onay": true, "onayla": true, "onaylıyorum": true,
	"tamam": true, "yes": true, "confirm": true, "ok": true, "okay": true,
}

var cancelWords = map[string]bool{
	"hayır": true, "hayir": true, "iptal": true, "vazgeç": true,
	"vazgec": true, "no": true, "cancel": true,
}

var skipWords = map[string]bool{
	"atla": true, "geç": true, "gec": true, "skip": true, "yok": true,
}

var replacementKeywords = []string{
	"değişti", "değiştir", "degisti", "degistir", "yenisiyle",
	"replace", "replaced", "swap", "swapped",
}

// HandleTurn processes one free-text message and returns the reply.
func (c *Controller) HandleTurn(ctx context.Context, in Incoming) Reply {
	ctx = logger.WithConversationID(ctx, in.ConversationID)

	if seen, cached := c.dedup.CheckAndMark(in.DedupToken, c.opts.IdempotencyTTL); seen {
		slog.Debug("Duplicate delivery", "token", in.DedupToken)
		return Reply{Text: cached}
	}

	state := c.convs.Acquire(in.ConversationID, in.ActorID, in.SenderName)
	defer c.convs.Release(in.ConversationID)

	reply := c.handleText(ctx, state, in)
	reply.Language = state.Language

	state.AppendHistory("user", in.Text, c.opts.HistoryLimit)
	state.AppendHistory("assistant", reply.Text, c.opts.HistoryLimit)
	c.dedup.RecordReply(in.DedupToken, reply.Text)
	return reply
}

func (c *Controller) handleText(ctx context.Context, state *State, in Incoming) Reply {
	text := strings.TrimSpace(in.Text)
	lowered := strings.ToLower(text)

	switch state.Awaiting {
	case AwaitingFeedbackNote:
		return c.recordFeedbackNote(ctx, state, in, text)

	case AwaitingConfirm:
		if confirmWords[lowered] {
			return c.confirm(ctx, state, in.ActorID, in.SenderName)
		}
		if cancelWords[lowered] {
			return c.cancel(ctx, state, in.ActorID)
		}
		// The snapshot stays frozen until an explicit answer.
		return Reply{
			Text: format.ConfirmationSummary(state.Language, state.Operation,
				state.Data.Scalars, state.Data.Entries, nil),
			OfferConfirm: true,
		}

	case AwaitingSideQuestion:
		state.Awaiting = AwaitingNothing
		state.SideQuestionDone = true
		if skipWords[lowered] || cancelWords[lowered] {
			return Reply{Text: format.FeedbackPrompt(state.Language), OfferFeedback: true}
		}
		// The answer describes a stock movement; fall through to
		// classification with the stock operation pre-selected.
		state.Operation = registry.OpUpdateStock
		state.InitiatingUser = in.ActorID
	}

	// Short-circuits before the model is involved.
	if state.Operation == registry.OpNone && state.Awaiting == AwaitingNothing {
		if greetingWords[lowered] {
			return Reply{Text: format.Greeting(state.Language, in.SenderName)}
		}
		if helpWords[lowered] {
			return Reply{Text: format.Help(state.Language)}
		}
	}

	if state.Awaiting == AwaitingChainInput && skipWords[lowered] {
		return c.advanceChain(ctx, state, in.ActorID, StepSkipped, "")
	}

	res, err := c.classify(ctx, state, text)
	if err != nil {
		slog.Error("Classification failed",
			"conversation_id", state.ConversationID,
			"trace_id", logger.GetTraceID(ctx),
			"error", err,
		)
		return Reply{Text: format.ErrorMessage(state.Language, err)}
	}
	if res.Language != "" {
		state.Language = res.Language
	}

	return c.reconcile(ctx, state, in, res)
}

func (c *Controller) classify(ctx context.Context, state *State, text string) (classify.Result, error) {
	sites, err := c.wb.ReadSites(ctx)
	if err != nil {
		slog.Warn("Failed to read sites for classifier context", "error", err)
	}
	refs := make([]classify.SiteRef, 0, len(sites))
	for _, s := range sites {
		refs = append(refs, classify.SiteRef{SiteID: s["site_id"], Customer: s["customer"]})
	}

	return c.classifier.Classify(ctx, classify.Request{
		Text:         text,
		SenderName:   state.SenderName,
		History:      state.History,
		SitesContext: classify.BuildSitesContext(refs),
		Today:        c.opts.Now(),
	})
}

// reconcile folds the classification into the conversation. Transparent
// operations layer on top of accumulated state; a new concrete operation
// supersedes the old one but inherits the residual identifiers.
func (c *Controller) reconcile(ctx context.Context, state *State, in Incoming, res classify.Result) Reply {
	op := res.Operation

	// Mid-chain the expected step wins over the classifier's guess.
	if state.Awaiting == AwaitingChainInput {
		if step := state.Chain.CurrentStep(); step != nil && op.Concrete() {
			op = step.Op
		}
	}

	switch {
	case op == registry.OpQuery:
		return c.answerQuery(ctx, state, res)
	case op == registry.OpHelp:
		return Reply{Text: format.Help(state.Language)}
	case op == registry.OpClarify, op == registry.OpNone && state.Operation == registry.OpNone:
		if q := res.ClarifyingQuestion; q != "" {
			return Reply{Text: q}
		}
		return Reply{Text: format.ErrorMessage(state.Language, saherrors.ErrInvalidModelOutput)}
	case op == registry.OpNone:
		// Continuation of the active operation; keep collecting.
		op = state.Operation
	}

	// The model flags a future received_date before any merge happens, so
	// the bad value never enters the snapshot.
	if res.BlockingError == classify.BlockingFutureDate {
		return Reply{Text: format.FutureDateRejected(state.Language,
			"received_date", res.StringField("received_date"))}
	}

	if op != state.Operation && op.Concrete() {
		if state.Operation.Concrete() {
			// New intent supersedes the old collection; site residual
			// survives inside ResetOperation.
			state.ResetOperation()
		}
		state.Operation = op
		state.InitiatingUser = in.ActorID
		state.SenderName = in.SenderName
		state.DuplicateOverride = false
	}
	state.RawMessage = in.Text

	mergeClassified(&state.Data, res)

	// Follow-on operations announced in the same message become chain
	// steps, each seeded with the data already extracted for it.
	if state.Chain == nil {
		var extra []Step
		for _, e := range res.ChainExtension {
			extra = append(extra, Step{Op: e.Operation, Seed: e.Data})
		}
		switch {
		case op == registry.OpCreateSite:
			state.Chain = ImplicitSiteChain(extra)
		case len(extra) > 0 && op.Concrete():
			state.Chain = NewChain(append([]Step{{Op: op}}, extra...))
		}
	}

	return c.advance(ctx, state)
}

// advance recomputes missing fields and validity for the current snapshot
// and decides the next prompt. Shared by text turns and chain steps.
func (c *Controller) advance(ctx context.Context, state *State) Reply {
	if reply, blocked := c.resolveSite(ctx, state); blocked {
		return reply
	}

	var warnings []string
	if reply, hardStop := c.validateData(state, &warnings); hardStop {
		return *reply
	}

	rctx := c.registryContext(ctx, state)
	state.Missing = registry.Missing(state.Operation, rctx, state.Data.Has)

	if len(state.Missing) > 0 {
		if state.Chain != nil && !state.Chain.Finished() {
			state.Awaiting = AwaitingChainInput
		} else {
			state.Awaiting = AwaitingFields
		}
		important := registry.MissingImportant(state.Operation, rctx, state.Data.Has)
		return Reply{Text: format.MissingPrompt(state.Language, state.Operation, state.Missing, important)}
	}

	if warning := c.duplicateWarning(ctx, state); warning != "" {
		warnings = append(warnings, warning)
		state.DuplicateOverride = true
	}

	state.Awaiting = AwaitingConfirm
	return Reply{
		Text: format.ConfirmationSummary(state.Language, state.Operation,
			state.Data.Scalars, state.Data.Entries, warnings),
		OfferConfirm: true,
	}
}

// resolveSite canonicalizes the site reference. Free-text references run
// through the resolver; nothing is ever guessed past an ambiguity.
func (c *Controller) resolveSite(ctx context.Context, state *State) (Reply, bool) {
	if state.Operation == registry.OpCreateSite || state.Operation == registry.OpUpdateStock {
		return Reply{}, false
	}

	ref := state.Data.Get("site_id")
	if ref == "" {
		ref = state.Data.Get("customer")
	}
	if ref == "" {
		return Reply{}, false
	}
	if validate.LooksLikeSiteID(ref) && state.Awaiting != AwaitingDisambiguation {
		// Canonical already; existence is checked by the store on commit.
		state.Data.Set("site_id", strings.ToUpper(ref))
		return Reply{}, false
	}

	sites, err := c.wb.ReadSites(ctx)
	if err != nil {
		return Reply{Text: format.ErrorMessage(state.Language, saherrors.MapExternal(err))}, true
	}
	known := make([]resolver.Site, 0, len(sites))
	for _, s := range sites {
		known = append(known, resolver.Site{SiteID: s["site_id"], Customer: s["customer"]})
	}
	r := resolver.New(known, c.opts.Aliases, c.opts.FuzzyMinScore)

	switch res := r.Resolve(ref); res.Kind {
	case resolver.Exact:
		state.Data.Set("site_id", res.Site.SiteID)
		if state.Awaiting == AwaitingDisambiguation {
			state.Awaiting = AwaitingNothing
		}
		return Reply{}, false
	case resolver.Ambiguous:
		state.Awaiting = AwaitingDisambiguation
		return Reply{Text: format.AmbiguousSite(state.Language, ref, res.Candidates)}, true
	default:
		state.Data.Set("site_id", "")
		return Reply{Text: format.UnknownSite(state.Language, ref, known)}, true
	}
}

// validateData checks every populated field. Hard failures block and clear
// the offending value; soft findings accumulate as warnings.
func (c *Controller) validateData(state *State, warnings *[]string) (*Reply, bool) {
	today := c.opts.Now()

	check := func(field, value string) (*Reply, bool) {
		res := validate.Field(field, value, today, c.opts.StaleDays)
		switch {
		case !res.Valid && res.Code == validate.CodeFutureDateRejected:
			state.Data.Set(field, "")
			return &Reply{Text: format.FutureDateRejected(state.Language, field, value)}, true
		case !res.Valid:
			state.Data.Set(field, "")
			msg := format.ErrorMessage(state.Language, saherrors.InvalidInput(
				fmt.Sprintf("%s: %s", format.FieldLabel(field, state.Language), res.Detail)))
			return &Reply{Text: msg}, true
		case res.Warning && res.Code == validate.CodeStaleDateWarning:
			*warnings = append(*warnings, format.StaleDateWarning(state.Language, field, value, c.opts.StaleDays))
		}
		return nil, false
	}

	for field, value := range state.Data.Scalars {
		if reply, stop := check(field, value); stop {
			return reply, true
		}
	}
	for _, entry := range state.Data.Entries {
		for field, value := range entry {
			if reply, stop := check(field, value); stop {
				return reply, true
			}
		}
	}

	// Cross-field ordering only applies once both dates are present.
	if recv, resl := state.Data.Get("received_date"), state.Data.Get("resolved_date"); recv != "" && resl != "" {
		recvT, errRecv := validate.ParseDate(recv)
		reslT, errResl := validate.ParseDate(resl)
		if errRecv == nil && errResl == nil {
			if res := validate.Ordering(reslT, recvT); !res.Valid {
				state.Data.Set("resolved_date", "")
				msg := format.ErrorMessage(state.Language, saherrors.InvalidInput(res.Detail))
				return &Reply{Text: msg}, true
			}
		}
	}

	return nil, false
}

func (c *Controller) registryContext(ctx context.Context, state *State) registry.Context {
	rctx := registry.Context{
		Status:      state.Data.Get("status"),
		DeviceType:  state.Data.Get("device_type"),
		BulkEntries: len(state.Data.Entries) > 0,
	}

	if state.Operation == registry.OpUpdateImpl {
		rctx.FacilityType = state.Data.Get("facility_type")
		if rctx.FacilityType == "" {
			if siteID := state.Data.Get("site_id"); siteID != "" {
				if sites, err := c.wb.ReadSites(ctx); err == nil {
					for _, s := range sites {
						if strings.EqualFold(s["site_id"], siteID) {
							rctx.FacilityType = s["facility_type"]
						}
					}
				}
			}
		}
	}

	return rctx
}

// duplicateWarning compares a new support entry against open tickets for
// the same site. Similar summaries warn once; an explicit confirmation
// afterwards writes anyway.
func (c *Controller) duplicateWarning(ctx context.Context, state *State) string {
	if state.Operation != registry.OpLogSupport || state.DuplicateOverride {
		return ""
	}
	summary := state.Data.Get("issue_summary")
	siteID := state.Data.Get("site_id")
	if summary == "" || siteID == "" {
		return ""
	}

	open, err := c.wb.ListOpenTickets(ctx, siteID)
	if err != nil {
		slog.Warn("Duplicate check skipped", "site_id", siteID, "error", err)
		return ""
	}
	for _, row := range open {
		if resolver.Similarity(summary, row["issue_summary"]) >= c.opts.DuplicateSimilarity {
			return format.DuplicateWarning(state.Language, row["ticket_id"], row["issue_summary"])
		}
	}
	return ""
}

// HandleAction processes a confirm/cancel/feedback action.
func (c *Controller) HandleAction(ctx context.Context, act Action) Reply {
	ctx = logger.WithConversationID(ctx, act.ConversationID)

	if seen, cached := c.dedup.CheckAndMark(act.DedupToken, c.opts.IdempotencyTTL); seen {
		return Reply{Text: cached}
	}

	state := c.convs.Acquire(act.ConversationID, act.ActorID, act.SenderName)
	defer c.convs.Release(act.ConversationID)

	var reply Reply
	switch act.Kind {
	case ActionConfirm:
		reply = c.confirm(ctx, state, act.ActorID, act.SenderName)
	case ActionCancel:
		reply = c.cancel(ctx, state, act.ActorID)
	case ActionFeedbackUp:
		reply = c.recordFeedback(ctx, state, act.ActorID, "up", "")
	case ActionFeedbackDown:
		state.Awaiting = AwaitingFeedbackNote
		reply = Reply{Text: format.FeedbackFollowUp(state.Language)}
	default:
		reply = Reply{Text: format.ErrorMessage(state.Language, saherrors.ErrInternal)}
	}

	reply.Language = state.Language
	c.dedup.RecordReply(act.DedupToken, reply.Text)
	return reply
}

func (c *Controller) confirm(ctx context.Context, state *State, actorID, senderName string) Reply {
	if state.Awaiting != AwaitingConfirm {
		return Reply{Text: format.ErrorMessage(state.Language, saherrors.ErrNotFound)}
	}
	if actorID != state.InitiatingUser {
		slog.Info("Confirmation rejected",
			"conversation_id", state.ConversationID,
			"initiator", state.InitiatingUser,
			"actor", actorID,
		)
		return Reply{Text: format.NotInitiator(state.Language), OfferConfirm: true}
	}

	// Generated site IDs are assigned at the last moment so parallel
	// conversations cannot race for the same sequence number earlier.
	if state.Operation == registry.OpCreateSite && state.Data.Get("site_id") == "" {
		siteID, err := c.generateSiteID(ctx, state)
		if err != nil {
			return Reply{Text: format.ErrorMessage(state.Language, err)}
		}
		state.Data.Set("site_id", siteID)
	}

	res, err := c.exec.Commit(ctx, executor.CommitRequest{
		Operation: state.Operation,
		Fields:    state.Data.Clone().Scalars,
		Entries:   state.Data.Clone().Entries,
		Actor:     actorID,
		RawInput:  state.RawMessage,
		TicketID:  state.TicketID,
		Today:     c.opts.Now().Format(validate.DateLayout),
	})
	if err != nil {
		slog.Error("Commit failed",
			"conversation_id", state.ConversationID,
			"operation", string(state.Operation),
			"error", err,
		)
		if saherrors.IsCategory(err, saherrors.ErrTransient) {
			// Snapshot stays frozen; the user can confirm again.
			return Reply{Text: format.ErrorMessage(state.Language, err), OfferConfirm: true}
		}
		state.Chain = nil
		state.ResetOperation()
		return Reply{Text: format.ErrorMessage(state.Language, err)}
	}

	if res.TicketID != "" {
		state.TicketID = res.TicketID
	}

	if state.Chain != nil && !state.Chain.Finished() {
		return c.advanceChain(ctx, state, actorID, StepDone, res.TicketID)
	}

	committed := format.Committed(state.Language, state.Operation, res.TicketID)
	if rb := c.readBack(ctx, state); rb != "" {
		committed += "\n" + rb
	}
	op := state.Operation
	raw := state.RawMessage
	state.FeedbackOp = op
	state.ResetOperation()

	if c.wantsStockSideQuestion(op, raw) && !state.SideQuestionDone {
		state.Awaiting = AwaitingSideQuestion
		return Reply{Text: committed + "\n\n" + format.StockSideQuestion(state.Language)}
	}

	return Reply{
		Text:          committed + "\n\n" + format.FeedbackPrompt(state.Language),
		OfferFeedback: true,
	}
}

// readBack summarizes what the workbook holds after the write so the user
// can eyeball the result. Best effort; any read failure drops the line.
func (c *Controller) readBack(ctx context.Context, state *State) string {
	siteID := state.Data.Get("site_id")

	switch state.Operation {
	case registry.OpLogSupport, registry.OpUpdateSupport:
		if siteID == "" {
			return ""
		}
		open, err := c.wb.ListOpenTickets(ctx, siteID)
		if err != nil {
			return ""
		}
		return fmt.Sprintf(pickLang(state.Language,
			"%s için açık kayıt: %d", "Open entries for %s: %d"), siteID, len(open))

	case registry.OpUpdateHardware:
		if siteID == "" {
			return ""
		}
		hardware, err := c.wb.ReadHardware(ctx, siteID)
		if err != nil {
			return ""
		}
		total := 0
		for _, row := range hardware {
			if n, err := strconv.Atoi(row["qty"]); err == nil {
				total += n
			}
		}
		return fmt.Sprintf(pickLang(state.Language,
			"%s için kayıtlı toplam cihaz: %d", "Total devices recorded for %s: %d"), siteID, total)

	case registry.OpUpdateStock:
		location := state.Data.Get("location")
		rows, err := c.wb.ReadStock(ctx, location)
		if err != nil {
			return ""
		}
		total := 0
		for _, row := range rows {
			if n, err := strconv.Atoi(row["qty"]); err == nil {
				total += n
			}
		}
		return fmt.Sprintf(pickLang(state.Language,
			"%s stok toplamı: %d", "Stock total for %s: %d"), location, total)
	}
	return ""
}

func (c *Controller) cancel(ctx context.Context, state *State, actorID string) Reply {
	if state.Awaiting != AwaitingConfirm && state.Operation == registry.OpNone {
		return Reply{Text: format.Cancelled(state.Language)}
	}

	// The gate covers the whole collection, not just the confirmation:
	// a stranger's cancel must not wipe the initiator's accumulated data.
	if actorID != state.InitiatingUser {
		return Reply{
			Text:         format.NotInitiator(state.Language),
			OfferConfirm: state.Awaiting == AwaitingConfirm,
		}
	}

	c.exec.RecordCancelled(ctx, state.Operation, actorID, state.RawMessage)
	state.Chain = nil
	state.ResetOperation()
	return Reply{Text: format.Cancelled(state.Language)}
}

// advanceChain closes the current step and opens the next one, or renders
// the rollup when the chain is done.
func (c *Controller) advanceChain(ctx context.Context, state *State, actorID, status, ticketID string) Reply {
	if status == StepSkipped {
		if step := state.Chain.CurrentStep(); step != nil {
			c.exec.RecordSkipped(ctx, step.Op, actorID, state.Data.Get("site_id"))
		}
	}
	state.Chain.Advance(status, ticketID)

	if next := state.Chain.CurrentStep(); next != nil {
		siteID := state.Data.Get("site_id")
		state.Operation = next.Op
		state.Data = NewFieldMap()
		if siteID != "" {
			state.Data.Set("site_id", siteID)
		}
		state.Awaiting = AwaitingChainInput
		pos, total := state.Chain.Position()

		// A step seeded from the original message skips straight to the
		// missing-field check, so stated details are never re-asked.
		if len(next.Seed) > 0 {
			mergeData(&state.Data, next.Seed)
			reply := c.advance(ctx, state)
			reply.Text = format.ChainStepHeader(state.Language, pos, total, next.Op) + "\n" + reply.Text
			return reply
		}
		return Reply{Text: format.ChainStepPrompt(state.Language, pos, total, next.Op)}
	}

	var steps []format.ChainStepStatus
	for _, s := range state.Chain.Steps {
		steps = append(steps, format.ChainStepStatus{Op: s.Op, Status: s.Status, TicketID: s.TicketID})
	}
	state.Chain = nil
	state.FeedbackOp = state.Operation
	state.ResetOperation()
	return Reply{
		Text:          format.ChainRollup(state.Language, steps) + "\n\n" + format.FeedbackPrompt(state.Language),
		OfferFeedback: true,
	}
}

// generateSiteID derives the canonical ID for a new site from the customer
// name and country, taking the next free sequence number.
func (c *Controller) generateSiteID(ctx context.Context, state *State) (string, error) {
	customer := state.Data.Get("customer")
	prefix := sitePrefix(customer)
	if prefix == "" {
		return "", saherrors.InvalidInput("customer name is needed to build the site ID")
	}
	return c.wb.NextSiteID(ctx, prefix, regionCode(state.Data.Get("country")))
}

func sitePrefix(customer string) string {
	var letters []rune
	for _, r := range strings.ToUpper(customer) {
		if r >= 'A' && r <= 'Z' {
			letters = append(letters, r)
			if len(letters) == 3 {
				break
			}
		}
	}
	if len(letters) < 2 {
		return ""
	}
	return string(letters)
}

var countryRegions = map[string]string{
	"turkey": "TR", "türkiye": "TR", "turkiye": "TR",
	"egypt": "EG", "mısır": "EG", "misir": "EG",
	"germany": "DE", "almanya": "DE",
	"united kingdom": "UK", "uk": "UK",
}

func regionCode(country string) string {
	key := strings.ToLower(strings.TrimSpace(country))
	if code, ok := countryRegions[key]; ok {
		return code
	}
	var letters []rune
	for _, r := range strings.ToUpper(country) {
		if r >= 'A' && r <= 'Z' {
			letters = append(letters, r)
			if len(letters) == 2 {
				break
			}
		}
	}
	if len(letters) < 2 {
		return "XX"
	}
	return string(letters)
}

func (c *Controller) wantsStockSideQuestion(op registry.Operation, rawMessage string) bool {
	if op != registry.OpLogSupport && op != registry.OpUpdateSupport && op != registry.OpUpdateHardware {
		return false
	}
	lowered := strings.ToLower(rawMessage)
	for _, kw := range replacementKeywords {
		if strings.Contains(lowered, kw) {
			return true
		}
	}
	return false
}

func (c *Controller) recordFeedback(ctx context.Context, state *State, actorID, rating, note string) Reply {
	row := workbook.Row{
		"date":      c.opts.Now().Format(validate.DateLayout),
		"actor":     actorID,
		"operation": string(state.FeedbackOp),
		"rating":    rating,
		"note":      note,
	}
	if err := c.wb.AppendFeedback(ctx, row); err != nil {
		slog.Warn("Failed to record feedback", "error", err)
	}
	return Reply{Text: format.FeedbackThanks(state.Language)}
}

func (c *Controller) recordFeedbackNote(ctx context.Context, state *State, in Incoming, note string) Reply {
	state.Awaiting = AwaitingNothing
	return c.recordFeedback(ctx, state, in.ActorID, "down", note)
}
