package chain

import (
	"context"

	"github.com/weftworks/weft/pkg/actions"
	"github.com/weftworks/weft/pkg/schema"
)

// Stepper drives one chain action by action, for interactive surfaces
// (walkthrough TUI, debugger). All steps share a single chain ID and
// result log, so bindings in later actions see earlier results exactly
// as they would in a plain Run.
type Stepper struct {
	c       *Compiler
	chainID string
	acts    []schema.Action
	base    map[string]any
	rlog    *actions.ResultLog

	idx     int
	status  Status
	pending *Pending
}

// NewStepper creates a stepper over acts with the given base context.
func NewStepper(c *Compiler, acts []schema.Action, base map[string]any) *Stepper {
	if base == nil {
		base = make(map[string]any)
	}
	return &Stepper{
		c:       c,
		chainID: NewChainID(),
		acts:    acts,
		base:    base,
		rlog:    actions.NewResultLog(),
	}
}

// ChainID returns the chain ID shared by every step.
func (s *Stepper) ChainID() string { return s.chainID }

// Len returns the chain length.
func (s *Stepper) Len() int { return len(s.acts) }

// Index returns the position of the next action to run.
func (s *Stepper) Index() int { return s.idx }

// Action returns the action at position i.
func (s *Stepper) Action(i int) schema.Action { return s.acts[i] }

// Results returns a snapshot of the accumulated result log.
func (s *Stepper) Results() []any { return s.rlog.Results() }

// Snapshot returns the context the next action would see.
func (s *Stepper) Snapshot() map[string]any {
	return actions.NewExecContext(s.base, s.rlog).Snapshot()
}

// Pending returns the unsettled gate, nil if none.
func (s *Stepper) Pending() *Pending { return s.pending }

// Done reports whether the chain has reached a terminal state.
func (s *Stepper) Done() bool {
	switch s.status {
	case StatusCompleted, StatusAborted, StatusErrored, StatusDismissed:
		return true
	}
	return false
}

// Status returns the terminal status, or empty while still stepping.
func (s *Stepper) Status() Status { return s.status }

// Next runs exactly one action. A confirmation gate leaves the stepper
// suspended until Approve or Dismiss.
func (s *Stepper) Next(ctx context.Context) *RunResult {
	if s.Done() || s.pending != nil || s.idx >= len(s.acts) {
		return &RunResult{ChainID: s.chainID, Status: s.status, Results: s.rlog.Results()}
	}
	ex := s.c.continuation(s.chainID, s.acts[s.idx:s.idx+1], s.base, s.rlog, s.idx)
	ex.partial = s.idx+1 < len(s.acts)
	res := ex.Run(ctx)
	s.settle(res, s.idx+1)
	return res
}

// Continue runs every remaining action until the chain finishes or
// suspends at a gate.
func (s *Stepper) Continue(ctx context.Context) *RunResult {
	if s.Done() || s.pending != nil || s.idx >= len(s.acts) {
		return &RunResult{ChainID: s.chainID, Status: s.status, Results: s.rlog.Results()}
	}
	res := s.c.continuation(s.chainID, s.acts[s.idx:], s.base, s.rlog, s.idx).Run(ctx)
	s.settle(res, len(s.acts))
	return res
}

// Approve settles the pending gate: the gated handler runs, then any
// suffix the gate was holding.
func (s *Stepper) Approve(ctx context.Context) (*RunResult, error) {
	if s.pending == nil {
		return nil, ErrSettled
	}
	p := s.pending
	s.pending = nil
	end := p.Index + 1 + p.Remaining()
	res, err := p.Approve(ctx)
	if err != nil {
		return nil, err
	}
	s.settle(res, end)
	return res, nil
}

// Dismiss settles the pending gate by stopping the chain for good.
func (s *Stepper) Dismiss() error {
	if s.pending == nil {
		return ErrSettled
	}
	p := s.pending
	s.pending = nil
	if err := p.Dismiss(); err != nil {
		return err
	}
	s.status = StatusDismissed
	s.idx = len(s.acts)
	return nil
}

// settle advances the cursor after a sub-run. end is the absolute
// position past the actions that sub-run covered; a completed sub-run
// consumed all of them (run or skipped).
func (s *Stepper) settle(res *RunResult, end int) {
	switch res.Status {
	case StatusCompleted:
		s.idx = end
		if s.idx >= len(s.acts) {
			s.status = StatusCompleted
		}
	case StatusSuspended:
		s.pending = res.Pending
		s.idx = res.Pending.Index
	case StatusAborted, StatusErrored, StatusDismissed:
		s.idx = len(s.acts)
		s.status = res.Status
	}
}
