package adapter

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ergcontrols/sahabot/internal/convo"
)

func TestSlackActionKinds(t *testing.T) {
	kind, ok := slackActionKind(slackActionConfirm)
	assert.True(t, ok)
	assert.Equal(t, convo.ActionConfirm, kind)

	kind, ok = slackActionKind(slackActionFeedbackDown)
	assert.True(t, ok)
	assert.Equal(t, convo.ActionFeedbackDown, kind)

	_, ok = slackActionKind("somebody_elses_button")
	assert.False(t, ok)
}

func TestTelegramActionKinds(t *testing.T) {
	kind, ok := telegramActionKind(tgCallbackCancel)
	assert.True(t, ok)
	assert.Equal(t, convo.ActionCancel, kind)

	_, ok = telegramActionKind("unknown")
	assert.False(t, ok)
}

func TestThreadRootKeysConversations(t *testing.T) {
	// A top-level message roots its own thread.
	assert.Equal(t, "1724.100", threadRoot("1724.100", ""))

	// Replies inside a thread all resolve to the parent's timestamp, so
	// every turn of one thread lands on the same conversation.
	assert.Equal(t, "1724.100", threadRoot("1724.250", "1724.100"))
	assert.Equal(t, "1724.100", threadRoot("1724.300", "1724.100"))

	// Two parallel threads in the same channel stay separate.
	assert.NotEqual(t, threadRoot("1724.250", "1724.100"), threadRoot("1724.260", "1724.200"))
}

func TestReplyBlocksOnlyWhenOffered(t *testing.T) {
	assert.Nil(t, replyBlocks(convo.Reply{Text: "plain answer"}))

	blocks := replyBlocks(convo.Reply{Text: "confirm?", OfferConfirm: true})
	assert.Len(t, blocks, 2, "section plus action block")

	blocks = replyBlocks(convo.Reply{Text: "done", OfferFeedback: true})
	assert.Len(t, blocks, 2)
}

func TestTelegramKeyboard(t *testing.T) {
	assert.Nil(t, replyKeyboard(convo.Reply{Text: "plain"}))

	markup := replyKeyboard(convo.Reply{Text: "confirm?", OfferConfirm: true, Language: "en"})
	if assert.NotNil(t, markup) {
		assert.Len(t, markup.InlineKeyboard[0], 2)
		assert.Equal(t, "Confirm ✅", markup.InlineKeyboard[0][0].Text)
	}
}

func TestNullAdapterCollectsPosts(t *testing.T) {
	n := NewNullAdapter()
	_ = n.Post(context.Background(), "#ops", "weekly report")
	assert.Equal(t, []string{"weekly report"}, n.Posts())
	assert.NoError(t, n.Health(context.Background()))
}
