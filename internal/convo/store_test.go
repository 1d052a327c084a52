package convo

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/ergcontrols/sahabot/internal/registry"
)

func TestStoreAcquireCreatesAndReuses(t *testing.T) {
	s := NewStore(time.Hour)

	state := s.Acquire("C1", "U1", "Batu")
	state.Operation = registry.OpLogSupport
	s.Release("C1")

	again := s.Acquire("C1", "U2", "Eda")
	defer s.Release("C1")
	assert.Equal(t, registry.OpLogSupport, again.Operation, "same conversation, same state")
	assert.Equal(t, "U1", again.InitiatingUser, "creator is not overwritten by later senders")
}

func TestStoreExpiresIdleConversations(t *testing.T) {
	s := NewStore(10 * time.Millisecond)

	state := s.Acquire("C1", "U1", "Batu")
	state.Operation = registry.OpLogSupport
	state.LastTouched = time.Now().Add(-time.Minute)
	s.Release("C1")

	fresh := s.Acquire("C1", "U1", "Batu")
	defer s.Release("C1")
	assert.Equal(t, registry.OpNone, fresh.Operation, "expired state is replaced")
}

func TestStoreSweep(t *testing.T) {
	s := NewStore(time.Minute)

	s.Acquire("C1", "U1", "Batu")
	s.Release("C1")
	s.Acquire("C2", "U2", "Eda")
	s.Release("C2")

	s.mu.Lock()
	s.states["C1"].LastTouched = time.Now().Add(-time.Hour)
	s.mu.Unlock()

	assert.Equal(t, 1, s.Sweep())
	assert.Equal(t, 1, s.Len())
}

func TestResetOperationKeepsSiteResidual(t *testing.T) {
	state := NewState("C1", "U1", "Batu")
	state.Operation = registry.OpLogSupport
	state.Data.Set("site_id", "MIG-TR-01")
	state.Data.Set("issue_summary", "gateway offline")
	state.Awaiting = AwaitingConfirm

	state.ResetOperation()

	assert.Equal(t, registry.OpNone, state.Operation)
	assert.Equal(t, "MIG-TR-01", state.Data.Get("site_id"))
	assert.Empty(t, state.Data.Get("issue_summary"))
	assert.Equal(t, AwaitingNothing, state.Awaiting)
}

func TestFieldMapHasCountsBulkEntries(t *testing.T) {
	f := NewFieldMap()
	assert.False(t, f.Has("qty"))

	f.Entries = []map[string]string{{"device_type": "Tag", "qty": "5"}}
	assert.True(t, f.Has("device_type"))
	assert.True(t, f.Has("qty"))
	assert.False(t, f.Has("hw_version"))
}

func TestChainAdvance(t *testing.T) {
	c := ImplicitSiteChain(nil)
	assert.Len(t, c.Steps, 3)

	pos, total := c.Position()
	assert.Equal(t, 1, pos)
	assert.Equal(t, 3, total)

	assert.True(t, c.Advance(StepDone, ""))
	assert.True(t, c.Advance(StepSkipped, ""))
	assert.Equal(t, registry.OpUpdateImpl, c.CurrentStep().Op)
	assert.True(t, c.Advance(StepDone, "SUP-009"))
	assert.True(t, c.Finished())
	assert.False(t, c.Advance(StepDone, ""))
}

func TestChainDeduplicatesOps(t *testing.T) {
	c := ImplicitSiteChain([]Step{
		{Op: registry.OpUpdateHardware, Seed: map[string]any{"qty": "10"}},
		{Op: registry.OpLogSupport},
		{Op: registry.OpQuery},
	})
	// Hardware appears once, the transparent query is dropped.
	assert.Len(t, c.Steps, 4)
	assert.Equal(t, registry.OpLogSupport, c.Steps[3].Op)

	// The duplicate's seed survives on the first occurrence.
	assert.Equal(t, "10", c.Steps[1].Seed["qty"])
}

func TestChainMergesDuplicateSeeds(t *testing.T) {
	c := NewChain([]Step{
		{Op: registry.OpLogSupport, Seed: map[string]any{"site_id": "MIG-TR-01"}},
		{Op: registry.OpUpdateHardware, Seed: map[string]any{"device_type": "Tag"}},
		{Op: registry.OpUpdateHardware, Seed: map[string]any{"qty": "5"}},
	})
	assert.Len(t, c.Steps, 2)
	assert.Equal(t, "Tag", c.Steps[1].Seed["device_type"])
	assert.Equal(t, "5", c.Steps[1].Seed["qty"])
}
