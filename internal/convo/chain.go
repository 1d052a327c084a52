package convo

import (
	"github.com/ergcontrols/sahabot/internal/registry"
)

// Step status values.
const (
	StepPending = "pending"
	StepDone    = "done"
	StepSkipped = "skipped"
)

// Step is one operation inside a multi-operation chain. Seed carries the
// fields the user already stated for this step in an earlier message, so
// the step does not re-ask them.
type Step struct {
	Op       registry.Operation
	Status   string
	TicketID string
	Seed     map[string]any
}

// Chain tracks an ordered multi-operation flow, e.g. create_site followed
// by hardware and implementation capture. While a chain is active the
// expected step overrides whatever operation the classifier guesses, so a
// bare "12 dispensers, 1 gateway" lands on the hardware step instead of
// being re-classified from scratch.
type Chain struct {
	Steps   []Step
	Current int
}

// NewChain builds a chain from ordered steps. A duplicate operation
// collapses onto its first occurrence, merging the later seed in.
func NewChain(steps []Step) *Chain {
	index := make(map[registry.Operation]int)
	c := &Chain{}
	for _, s := range steps {
		if !s.Op.Concrete() {
			continue
		}
		if at, ok := index[s.Op]; ok {
			existing := &c.Steps[at]
			for k, v := range s.Seed {
				if existing.Seed == nil {
					existing.Seed = make(map[string]any)
				}
				existing.Seed[k] = v
			}
			continue
		}
		index[s.Op] = len(c.Steps)
		c.Steps = append(c.Steps, Step{Op: s.Op, Status: StepPending, Seed: s.Seed})
	}
	return c
}

// ImplicitSiteChain is what a create_site fans out into: the new site
// almost always comes with devices and implementation details to capture.
func ImplicitSiteChain(extra []Step) *Chain {
	steps := []Step{
		{Op: registry.OpCreateSite},
		{Op: registry.OpUpdateHardware},
		{Op: registry.OpUpdateImpl},
	}
	steps = append(steps, extra...)
	return NewChain(steps)
}

// CurrentStep returns the active step, or nil when the chain is finished.
func (c *Chain) CurrentStep() *Step {
	if c == nil || c.Current >= len(c.Steps) {
		return nil
	}
	return &c.Steps[c.Current]
}

// Advance marks the current step with status and moves on. Returns false
// when the chain is already finished.
func (c *Chain) Advance(status, ticketID string) bool {
	step := c.CurrentStep()
	if step == nil {
		return false
	}
	step.Status = status
	step.TicketID = ticketID
	c.Current++
	return true
}

// Finished reports whether every step is terminal.
func (c *Chain) Finished() bool {
	return c == nil || c.Current >= len(c.Steps)
}

// Position returns the 1-based step number and the total.
func (c *Chain) Position() (int, int) {
	if c == nil {
		return 0, 0
	}
	return c.Current + 1, len(c.Steps)
}
