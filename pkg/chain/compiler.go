// Package chain compiles ordered action lists into deferred executors
// and runs them with strict sequential ordering, confirmation gates,
// tagged-abort short-circuiting and error-swallow semantics.
package chain

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/weftworks/weft/pkg/actions"
	"github.com/weftworks/weft/pkg/metrics"
	"github.com/weftworks/weft/pkg/providers"
	"github.com/weftworks/weft/pkg/schema"
)

// EnrichFunc resolves templated parameters in an action against the
// total context snapshot. Pure: returns a working copy.
type EnrichFunc func(act schema.Action, env map[string]any) (schema.Action, error)

// ConditionFunc evaluates an action's condition guard.
type ConditionFunc func(cond string, env map[string]any) (bool, error)

// Status is the terminal (or suspended) state of one chain invocation.
type Status string

const (
	StatusCompleted Status = "completed"
	StatusSuspended Status = "suspended"
	StatusAborted   Status = "aborted"
	StatusErrored   Status = "errored"
	StatusDismissed Status = "dismissed"
)

// RunResult reports one chain invocation to embedding surfaces. Err is
// diagnostic only: chain errors are logged and swallowed, never
// surfaced to end users.
type RunResult struct {
	ChainID string   `json:"chain_id"`
	Status  Status   `json:"status"`
	Settled int      `json:"settled"`
	Results []any    `json:"results,omitempty"`
	Pending *Pending `json:"-"`
	Err     error    `json:"-"`
}

// Config wires a Compiler. Registry and Enrich are required; the rest
// default to inert implementations.
type Config struct {
	Registry  *actions.Registry
	Enrich    EnrichFunc
	Condition ConditionFunc
	Confirmer providers.Confirmer
	Env       providers.Environment
	Logger    zerolog.Logger
	Trace     *TraceWriter
}

// Compiler turns action lists into deferred executors.
type Compiler struct {
	registry  *actions.Registry
	enrich    EnrichFunc
	condition ConditionFunc
	confirmer providers.Confirmer
	env       providers.Environment
	log       zerolog.Logger
	trace     *TraceWriter
}

// New creates a Compiler from cfg.
func New(cfg Config) *Compiler {
	c := &Compiler{
		registry:  cfg.Registry,
		enrich:    cfg.Enrich,
		condition: cfg.Condition,
		confirmer: cfg.Confirmer,
		env:       cfg.Env,
		log:       cfg.Logger,
		trace:     cfg.Trace,
	}
	if c.registry == nil {
		c.registry = actions.NewRegistry()
	}
	if c.enrich == nil {
		c.enrich = func(act schema.Action, _ map[string]any) (schema.Action, error) { return act, nil }
	}
	return c
}

// Compile validates preconditions and returns a deferred executor over
// a fixed action list and base context. Accepted inputs: a
// []schema.Action, an *Executor (returned unchanged — idempotent
// re-entry guard), or nil. An empty/absent list, or builder mode,
// yields a no-op executor. If base carries inherited chain history
// under "actions" (a *actions.ResultLog from an enclosing chain, or a
// plain result slice), the executor appends to that history.
func (c *Compiler) Compile(v any, base map[string]any) *Executor {
	if ex, ok := v.(*Executor); ok {
		return ex
	}

	acts, _ := v.([]schema.Action)
	if len(acts) == 0 || (c.env != nil && c.env.BuilderMode()) {
		return &Executor{c: c, noop: true}
	}

	var rlog *actions.ResultLog
	switch inherited := base["actions"].(type) {
	case *actions.ResultLog:
		rlog = inherited
	case []any:
		rlog = actions.SeedResultLog(inherited)
	default:
		rlog = actions.NewResultLog()
	}

	return &Executor{c: c, acts: acts, base: base, rlog: rlog}
}

// continuation compiles the remaining suffix of a gated chain against
// the shared result log, preserving the chain ID and absolute indexes.
func (c *Compiler) continuation(chainID string, acts []schema.Action, base map[string]any, rlog *actions.ResultLog, offset int) *Executor {
	return &Executor{c: c, acts: acts, base: base, rlog: rlog, chainID: chainID, offset: offset}
}

func (c *Compiler) writeTrace(ev Event) {
	if c.trace == nil {
		return
	}
	if err := c.trace.Write(ev); err != nil {
		c.log.Warn().Err(err).Msg("write trace event")
	}
}

// Executor is a deferred zero-argument chain invocation closing over a
// fixed action list and base context. Run begins (or, for a finished
// executor, re-runs) execution; a continuation executor resumes the
// suffix after an approved gate.
type Executor struct {
	c    *Compiler
	acts []schema.Action
	base map[string]any
	rlog *actions.ResultLog
	noop bool

	// set on continuation executors
	chainID string
	offset  int
	// partial marks a continuation whose suffix stops short of the
	// chain's end, so completing it is not completing the chain.
	partial bool
}

// Noop reports whether this executor does nothing when run.
func (e *Executor) Noop() bool { return e.noop }

// Run executes the chain strictly in list order. Never returns a Go
// error: handler and enrichment failures are logged, halt the chain
// and land in the result's Err field only.
func (e *Executor) Run(ctx context.Context) *RunResult {
	id := e.chainID
	if id == "" {
		id = NewChainID()
	}
	res := &RunResult{ChainID: id, Status: StatusCompleted}

	if e.noop {
		return res
	}

	if e.offset == 0 {
		metrics.ChainsStarted.Inc()
		e.c.writeTrace(Event{Type: "chain_started", ChainID: id, Index: 0})
	}

	for i := 0; i < len(e.acts); i++ {
		act := e.acts[i]
		idx := e.offset + i
		kind, _ := schema.Normalize(act.Kind)

		handler, ok := e.c.registry.Get(kind)
		if !ok {
			// Unregistered kinds are skipped, not errors. Nothing is
			// appended to the result log.
			e.c.log.Debug().Str("chain", id).Int("index", idx).Str("kind", string(kind)).
				Msg("no handler registered, skipping")
			e.c.writeTrace(Event{Type: "action_skipped", ChainID: id, Index: idx,
				Kind: string(kind), Reason: "unregistered"})
			continue
		}

		env := actions.NewExecContext(e.base, e.rlog).Snapshot()

		// The guard is read from the authored action, not the enriched
		// one: enrichment binds a single-expression condition to its
		// native type, and a bool guard must still gate the action.
		pass, err := e.conditionPass(act, env)
		if err != nil {
			return e.fail(res, idx, kind, err)
		}
		if !pass {
			metrics.ActionsExecuted.WithLabelValues(string(kind), "skipped").Inc()
			e.c.writeTrace(Event{Type: "action_skipped", ChainID: id, Index: idx,
				Kind: string(kind), Reason: "condition"})
			continue
		}

		enriched, err := e.c.enrich(act, env)
		if err != nil {
			return e.fail(res, idx, kind, err)
		}

		if schema.WantsConfirm(enriched.Params) {
			return e.suspend(ctx, res, idx, kind, enriched, handler)
		}

		start := time.Now()
		out, err := handler(ctx, enriched, env)
		metrics.ActionDuration.Observe(float64(time.Since(start).Milliseconds()))
		if err != nil {
			metrics.ActionsExecuted.WithLabelValues(string(kind), "errored").Inc()
			return e.fail(res, idx, kind, err)
		}
		if out.Aborted() {
			metrics.ActionsExecuted.WithLabelValues(string(kind), "aborted").Inc()
			metrics.ChainsFinished.WithLabelValues(string(StatusAborted)).Inc()
			e.c.writeTrace(Event{Type: "chain_aborted", ChainID: id, Index: idx, Kind: string(kind)})
			res.Status = StatusAborted
			res.Results = e.rlog.Results()
			return res
		}

		e.rlog.Append(out.Value())
		res.Settled++
		metrics.ActionsExecuted.WithLabelValues(string(kind), "completed").Inc()
		e.c.writeTrace(Event{Type: "action_completed", ChainID: id, Index: idx,
			Kind: string(kind), Params: enriched.Params})
	}

	if !e.partial {
		metrics.ChainsFinished.WithLabelValues(string(StatusCompleted)).Inc()
		e.c.writeTrace(Event{Type: "chain_completed", ChainID: id, Index: e.offset + len(e.acts)})
	}
	res.Results = e.rlog.Results()
	return res
}

// conditionPass evaluates an action's condition guard. Authored
// conditions are strings; a direct bool is used as-is. Anything else
// means no guard.
func (e *Executor) conditionPass(act schema.Action, env map[string]any) (bool, error) {
	switch cond := act.Params["condition"].(type) {
	case bool:
		return cond, nil
	case string:
		if cond == "" || e.c.condition == nil {
			return true, nil
		}
		return e.c.condition(cond, env)
	default:
		return true, nil
	}
}

// fail records an enrichment or handler error: logged, traced, chain
// halted. The error never propagates to the invoking component.
func (e *Executor) fail(res *RunResult, idx int, kind schema.Kind, err error) *RunResult {
	e.c.log.Error().Err(err).Str("chain", res.ChainID).Int("index", idx).
		Str("kind", string(kind)).Msg("action failed, stopping chain")
	metrics.ChainsFinished.WithLabelValues(string(StatusErrored)).Inc()
	e.c.writeTrace(Event{Type: "chain_errored", ChainID: res.ChainID, Index: idx,
		Kind: string(kind), Error: err.Error()})
	res.Status = StatusErrored
	res.Err = err
	res.Results = e.rlog.Results()
	return res
}

// suspend hands the gated action and the remaining suffix to the
// confirmation surface and ends this invocation. If the surface
// settles synchronously (terminal y/N prompts do), the settled result
// is reported directly.
func (e *Executor) suspend(ctx context.Context, res *RunResult, idx int, kind schema.Kind, enriched schema.Action, handler actions.Handler) *RunResult {
	p := &Pending{
		ChainID:   res.ChainID,
		Kind:      kind,
		Text:      schema.ConfirmText(kind, enriched.Params),
		Index:     idx,
		action:    enriched,
		handler:   handler,
		remaining: e.acts[idxInList(e, idx)+1:],
		base:      e.base,
		rlog:      e.rlog,
		c:         e.c,
		partial:   e.partial,
	}

	metrics.ChainsSuspended.Inc()
	metrics.PendingConfirmations.Inc()
	e.c.writeTrace(Event{Type: "chain_suspended", ChainID: res.ChainID, Index: idx,
		Kind: string(kind), Params: enriched.Params})

	res.Status = StatusSuspended
	res.Pending = p
	res.Results = e.rlog.Results()

	if e.c.confirmer != nil {
		e.c.confirmer.ShowConfirmation(providers.ConfirmationRequest{
			Kind: string(kind),
			Text: p.Text,
			OnApprove: func(ctx context.Context) error {
				_, err := p.Approve(ctx)
				return err
			},
			OnDismiss: p.Dismiss,
		})
		// A synchronously-settled gate already ran (or stopped) the
		// remaining chain; report where it ended up, counting the
		// actions this invocation settled before the gate.
		if settled := p.Settled(); settled != nil {
			settled.Settled += res.Settled
			return settled
		}
	}
	return res
}

// idxInList converts an absolute index back to a position in this
// executor's slice.
func idxInList(e *Executor, idx int) int {
	return idx - e.offset
}
