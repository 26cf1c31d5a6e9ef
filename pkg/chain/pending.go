package chain

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/weftworks/weft/pkg/actions"
	"github.com/weftworks/weft/pkg/metrics"
	"github.com/weftworks/weft/pkg/schema"
)

// ErrSettled is returned when a confirmation gate is approved or
// dismissed more than once.
var ErrSettled = errors.New("confirmation already settled")

// Pending is a suspended chain: the gated action, the remaining suffix
// of the action list, and the context both share. It settles exactly
// once, via Approve or Dismiss; an unsettled Pending blocks its chain
// forever, holding nothing but this value.
type Pending struct {
	ChainID string
	Kind    schema.Kind
	Text    string
	Index   int

	action    schema.Action
	handler   actions.Handler
	remaining []schema.Action
	base      map[string]any
	rlog      *actions.ResultLog
	c         *Compiler
	partial   bool

	mu       sync.Mutex
	approved bool
	done     bool
	result   *RunResult
}

// Remaining reports how many actions wait behind the gate.
func (p *Pending) Remaining() int {
	return len(p.remaining)
}

// Settled returns the terminal result once the gate has been approved
// or dismissed, nil while still pending.
func (p *Pending) Settled() *RunResult {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.result
}

// Approve runs the gated handler now and, unless the handler aborts or
// errors, appends its result to the shared log and resumes the
// remaining suffix against the updated context. The returned RunResult
// covers the gated action and everything after it; chain errors are
// swallowed into it, so the only possible error here is ErrSettled.
func (p *Pending) Approve(ctx context.Context) (*RunResult, error) {
	p.mu.Lock()
	if p.done {
		p.mu.Unlock()
		return nil, ErrSettled
	}
	p.done = true
	p.approved = true
	p.mu.Unlock()

	metrics.PendingConfirmations.Dec()
	metrics.ConfirmationsResolved.WithLabelValues("approved").Inc()
	p.c.writeTrace(Event{Type: "confirmation_approved", ChainID: p.ChainID,
		Index: p.Index, Kind: string(p.Kind)})

	res := p.resume(ctx)

	p.mu.Lock()
	p.result = res
	p.mu.Unlock()
	return res, nil
}

// Dismiss permanently stops the chain; nothing after the gate ever
// runs. Dismissal is the quiet ending the user asked for, so the
// result is not an error.
func (p *Pending) Dismiss() error {
	p.mu.Lock()
	if p.done {
		p.mu.Unlock()
		return ErrSettled
	}
	p.done = true
	res := &RunResult{ChainID: p.ChainID, Status: StatusDismissed, Results: p.rlog.Results()}
	p.result = res
	p.mu.Unlock()

	metrics.PendingConfirmations.Dec()
	metrics.ConfirmationsResolved.WithLabelValues("dismissed").Inc()
	p.c.writeTrace(Event{Type: "confirmation_dismissed", ChainID: p.ChainID,
		Index: p.Index, Kind: string(p.Kind)})
	return nil
}

// resume executes the gated handler and the remaining suffix. The
// suffix is compiled fresh against the shared result log, so the
// continuation sees every result accumulated before the gate.
func (p *Pending) resume(ctx context.Context) *RunResult {
	env := actions.NewExecContext(p.base, p.rlog).Snapshot()

	start := time.Now()
	out, err := p.handler(ctx, p.action, env)
	metrics.ActionDuration.Observe(float64(time.Since(start).Milliseconds()))

	if err != nil {
		p.c.log.Error().Err(err).Str("chain", p.ChainID).Int("index", p.Index).
			Str("kind", string(p.Kind)).Msg("gated action failed, stopping chain")
		metrics.ActionsExecuted.WithLabelValues(string(p.Kind), "errored").Inc()
		metrics.ChainsFinished.WithLabelValues(string(StatusErrored)).Inc()
		p.c.writeTrace(Event{Type: "chain_errored", ChainID: p.ChainID, Index: p.Index,
			Kind: string(p.Kind), Error: err.Error()})
		return &RunResult{ChainID: p.ChainID, Status: StatusErrored, Err: err, Results: p.rlog.Results()}
	}
	if out.Aborted() {
		metrics.ActionsExecuted.WithLabelValues(string(p.Kind), "aborted").Inc()
		metrics.ChainsFinished.WithLabelValues(string(StatusAborted)).Inc()
		p.c.writeTrace(Event{Type: "chain_aborted", ChainID: p.ChainID, Index: p.Index,
			Kind: string(p.Kind)})
		return &RunResult{ChainID: p.ChainID, Status: StatusAborted, Results: p.rlog.Results()}
	}

	p.rlog.Append(out.Value())
	metrics.ActionsExecuted.WithLabelValues(string(p.Kind), "completed").Inc()
	p.c.writeTrace(Event{Type: "action_completed", ChainID: p.ChainID, Index: p.Index,
		Kind: string(p.Kind), Params: p.action.Params})

	cont := p.c.continuation(p.ChainID, p.remaining, p.base, p.rlog, p.Index+1)
	cont.partial = p.partial
	res := cont.Run(ctx)
	res.Settled++ // count the gated action itself
	return res
}
