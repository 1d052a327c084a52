package convo

// ActionKind identifies a button press or reaction, as opposed to free
// text.
type ActionKind string

const (
	ActionConfirm      ActionKind = "confirm"
	ActionCancel       ActionKind = "cancel"
	ActionFeedbackUp   ActionKind = "feedback_up"
	ActionFeedbackDown ActionKind = "feedback_down"
)

// Reply is the structured outcome of one turn. Adapters render it with
// their native affordances: Slack gets buttons, Telegram gets an inline
// keyboard, the REPL gets plain text.
type Reply struct {
	Text     string
	Language string
	// OfferConfirm asks the adapter to render confirm/cancel controls.
	OfferConfirm bool
	// OfferFeedback asks for the 👍/👎 pair after a terminal outcome.
	OfferFeedback bool
}
