package adapter

import (
	"context"
	"sync"

	"github.com/ergcontrols/sahabot/internal/convo"
)

// NullAdapter swallows everything. Used in tests and as the report poster
// when no transport is enabled.
type NullAdapter struct {
	mu      sync.Mutex
	posts   []string
	replies []convo.Reply
}

func NewNullAdapter() *NullAdapter {
	return &NullAdapter{}
}

func (n *NullAdapter) Name() string                    { return "null" }
func (n *NullAdapter) Start(ctx context.Context) error { return nil }
func (n *NullAdapter) Stop(ctx context.Context) error  { return nil }
func (n *NullAdapter) Health(ctx context.Context) error {
	return nil
}

func (n *NullAdapter) Post(ctx context.Context, channel, text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.posts = append(n.posts, text)
	return nil
}

// Posts returns everything posted so far.
func (n *NullAdapter) Posts() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.posts...)
}

// Record captures a reply for assertions.
func (n *NullAdapter) Record(reply convo.Reply) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.replies = append(n.replies, reply)
}

// Replies returns the captured replies.
func (n *NullAdapter) Replies() []convo.Reply {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]convo.Reply(nil), n.replies...)
}
