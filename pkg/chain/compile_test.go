package chain

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/rs/zerolog"

	"github.com/weftworks/weft/pkg/actions"
	"github.com/weftworks/weft/pkg/bindings"
	"github.com/weftworks/weft/pkg/providers"
	"github.com/weftworks/weft/pkg/schema"
)

// testCompiler builds a compiler over a custom registry with a queue
// confirmer, returning both.
func testCompiler(t *testing.T, reg *actions.Registry) (*Compiler, *providers.QueueConfirmer) {
	t.Helper()
	q := &providers.QueueConfirmer{}
	c := New(Config{
		Registry:  reg,
		Enrich:    bindings.Enrich,
		Condition: bindings.EvalCondition,
		Confirmer: q,
		Logger:    zerolog.Nop(),
	})
	return c, q
}

// recordKinds registers handlers that log entry order and return their
// own name.
func recordKinds(t *testing.T, reg *actions.Registry, order *[]string, kinds ...schema.Kind) {
	t.Helper()
	for _, k := range kinds {
		kind := k
		err := reg.Register(kind, func(ctx context.Context, act schema.Action, env map[string]any) (actions.Outcome, error) {
			*order = append(*order, string(kind))
			return actions.Continue(string(kind)), nil
		})
		if err != nil {
			t.Fatalf("register %s: %v", kind, err)
		}
	}
}

func acts(kinds ...string) []schema.Action {
	out := make([]schema.Action, len(kinds))
	for i, k := range kinds {
		out[i] = schema.Action{Kind: k, Params: map[string]any{}}
	}
	return out
}

// TestChainRunsInListOrder verifies handlers execute strictly in list
// order, each starting only after the previous settled.
func TestChainRunsInListOrder(t *testing.T) {
	reg := actions.NewRegistry()
	var order []string
	recordKinds(t, reg, &order, "a", "b", "c")
	c, _ := testCompiler(t, reg)

	res := c.Compile(acts("a", "b", "c"), map[string]any{}).Run(context.Background())
	if res.Status != StatusCompleted {
		t.Fatalf("status = %s", res.Status)
	}
	if fmt.Sprint(order) != "[a b c]" {
		t.Errorf("order = %v", order)
	}
	if fmt.Sprint(res.Results) != "[a b c]" {
		t.Errorf("results = %v", res.Results)
	}
}

// TestAbortStopsRemainingChain verifies an abort outcome prevents every
// subsequent handler and appends nothing.
func TestAbortStopsRemainingChain(t *testing.T) {
	reg := actions.NewRegistry()
	var order []string
	recordKinds(t, reg, &order, "a", "c")
	reg.Register("stop", func(ctx context.Context, act schema.Action, env map[string]any) (actions.Outcome, error) {
		return actions.Abort(), nil
	})
	c, _ := testCompiler(t, reg)

	res := c.Compile(acts("a", "stop", "c"), map[string]any{}).Run(context.Background())
	if res.Status != StatusAborted {
		t.Fatalf("status = %s", res.Status)
	}
	if fmt.Sprint(order) != "[a]" {
		t.Errorf("order = %v", order)
	}
	if len(res.Results) != 1 {
		t.Errorf("results = %v; abort must append nothing", res.Results)
	}
}

// TestFalsyResultsContinue verifies nil, zero and empty-string results
// append to the sequence and never halt the chain.
func TestFalsyResultsContinue(t *testing.T) {
	reg := actions.NewRegistry()
	values := []any{nil, 0, "", false}
	for i, v := range values {
		val := v
		reg.Register(schema.Kind(fmt.Sprintf("k%d", i)), func(ctx context.Context, act schema.Action, env map[string]any) (actions.Outcome, error) {
			return actions.Continue(val), nil
		})
	}
	c, _ := testCompiler(t, reg)

	res := c.Compile(acts("k0", "k1", "k2", "k3"), map[string]any{}).Run(context.Background())
	if res.Status != StatusCompleted {
		t.Fatalf("status = %s", res.Status)
	}
	if len(res.Results) != 4 {
		t.Fatalf("results = %v, want all 4 appended", res.Results)
	}
	for i, v := range values {
		if res.Results[i] != v {
			t.Errorf("results[%d] = %#v, want %#v", i, res.Results[i], v)
		}
	}
}

// TestUnknownKindSkipped verifies an unregistered kind is skipped with
// no observable effect and no result append.
func TestUnknownKindSkipped(t *testing.T) {
	reg := actions.NewRegistry()
	var order []string
	recordKinds(t, reg, &order, "a", "b")
	c, _ := testCompiler(t, reg)

	res := c.Compile(acts("a", "mystery", "b"), map[string]any{}).Run(context.Background())
	if res.Status != StatusCompleted {
		t.Fatalf("status = %s", res.Status)
	}
	if fmt.Sprint(res.Results) != "[a b]" {
		t.Errorf("results = %v; skip must not alter the sequence", res.Results)
	}
}

// TestEmptyAndBuilderModeNoop verifies empty lists and builder mode
// yield executors with no side effects.
func TestEmptyAndBuilderModeNoop(t *testing.T) {
	reg := actions.NewRegistry()
	var order []string
	recordKinds(t, reg, &order, "a")
	c, _ := testCompiler(t, reg)

	if res := c.Compile(nil, map[string]any{}).Run(context.Background()); res.Status != StatusCompleted {
		t.Errorf("nil list status = %s", res.Status)
	}
	if res := c.Compile([]schema.Action{}, map[string]any{}).Run(context.Background()); res.Status != StatusCompleted {
		t.Errorf("empty list status = %s", res.Status)
	}

	builder := New(Config{
		Registry: reg,
		Env:      providers.StaticEnvironment{Builder: true},
		Logger:   zerolog.Nop(),
	})
	ex := builder.Compile(acts("a"), map[string]any{})
	if !ex.Noop() {
		t.Error("builder mode did not yield a no-op executor")
	}
	ex.Run(context.Background())
	if len(order) != 0 {
		t.Errorf("builder mode executed handlers: %v", order)
	}
}

// TestCompileIdempotentReentry verifies compiling an executor returns
// it unchanged.
func TestCompileIdempotentReentry(t *testing.T) {
	c, _ := testCompiler(t, actions.NewRegistry())
	ex := c.Compile(acts("a"), map[string]any{})
	if got := c.Compile(ex, map[string]any{}); got != ex {
		t.Error("re-compiling an executor built a new one")
	}
}

// TestErrorSwallowedAndHalts verifies a handler error stops the chain,
// lands only in the diagnostic Err field, and runs nothing after.
func TestErrorSwallowedAndHalts(t *testing.T) {
	reg := actions.NewRegistry()
	var order []string
	recordKinds(t, reg, &order, "after")
	boom := errors.New("boom")
	reg.Register("bad", func(ctx context.Context, act schema.Action, env map[string]any) (actions.Outcome, error) {
		return actions.Outcome{}, boom
	})
	c, _ := testCompiler(t, reg)

	res := c.Compile(acts("bad", "after"), map[string]any{}).Run(context.Background())
	if res.Status != StatusErrored {
		t.Fatalf("status = %s", res.Status)
	}
	if !errors.Is(res.Err, boom) {
		t.Errorf("Err = %v", res.Err)
	}
	if len(order) != 0 {
		t.Errorf("handlers ran after the error: %v", order)
	}
}

// TestEnrichmentFailureHalts verifies enrichment errors take the same
// swallow-and-halt path as handler errors.
func TestEnrichmentFailureHalts(t *testing.T) {
	reg := actions.NewRegistry()
	var order []string
	recordKinds(t, reg, &order, "a")
	c, _ := testCompiler(t, reg)

	list := []schema.Action{{Kind: "a", Params: map[string]any{"x": "{{ .missing.path }}"}}}
	res := c.Compile(list, map[string]any{}).Run(context.Background())
	if res.Status != StatusErrored || res.Err == nil {
		t.Fatalf("status = %s, err = %v", res.Status, res.Err)
	}
	if len(order) != 0 {
		t.Errorf("handler ran despite enrichment failure: %v", order)
	}
}

// TestConditionGuardSkips verifies a false condition skips the action
// without appending a result.
func TestConditionGuardSkips(t *testing.T) {
	reg := actions.NewRegistry()
	var order []string
	recordKinds(t, reg, &order, "a", "b")
	c, _ := testCompiler(t, reg)

	list := []schema.Action{
		{Kind: "a", Params: map[string]any{"condition": `mode == "off"`}},
		{Kind: "b", Params: map[string]any{}},
	}
	res := c.Compile(list, map[string]any{"mode": "on"}).Run(context.Background())
	if res.Status != StatusCompleted {
		t.Fatalf("status = %s", res.Status)
	}
	if fmt.Sprint(order) != "[b]" {
		t.Errorf("order = %v", order)
	}
	if fmt.Sprint(res.Results) != "[b]" {
		t.Errorf("results = %v", res.Results)
	}
}

// TestConditionGuardBindingSkips verifies a condition written in
// binding syntax still gates the action when the bound value is a
// native bool, not a string.
func TestConditionGuardBindingSkips(t *testing.T) {
	reg := actions.NewRegistry()
	var order []string
	recordKinds(t, reg, &order, "a", "b")
	c, _ := testCompiler(t, reg)

	list := []schema.Action{
		{Kind: "a", Params: map[string]any{"condition": "{{ .flag }}"}},
		{Kind: "b", Params: map[string]any{"condition": true}},
		{Kind: "a", Params: map[string]any{"condition": false}},
	}
	res := c.Compile(list, map[string]any{"flag": false}).Run(context.Background())
	if res.Status != StatusCompleted {
		t.Fatalf("status = %s", res.Status)
	}
	if fmt.Sprint(order) != "[b]" {
		t.Errorf("order = %v", order)
	}
	if res.Settled != 1 {
		t.Errorf("settled = %d, want 1", res.Settled)
	}
}

// TestResultsVisibleToLaterBindings verifies a later action can bind
// values from an earlier action's result through the actions sequence.
func TestResultsVisibleToLaterBindings(t *testing.T) {
	reg := actions.NewRegistry()
	reg.Register("produce", func(ctx context.Context, act schema.Action, env map[string]any) (actions.Outcome, error) {
		return actions.Continue(map[string]any{"row": map[string]any{"id": "r1"}}), nil
	})
	var sawURL string
	reg.Register("consume", func(ctx context.Context, act schema.Action, env map[string]any) (actions.Outcome, error) {
		sawURL, _ = act.Params["url"].(string)
		return actions.Continue(nil), nil
	})
	c, _ := testCompiler(t, reg)

	list := []schema.Action{
		{Kind: "produce", Params: map[string]any{}},
		{Kind: "consume", Params: map[string]any{"url": "/r/{{ (index .actions 0).row.id }}"}},
	}
	res := c.Compile(list, map[string]any{}).Run(context.Background())
	if res.Status != StatusCompleted {
		t.Fatalf("status = %s, err = %v", res.Status, res.Err)
	}
	if sawURL != "/r/r1" {
		t.Errorf("url = %q", sawURL)
	}
}
