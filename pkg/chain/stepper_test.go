package chain

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/weftworks/weft/pkg/actions"
	"github.com/weftworks/weft/pkg/bindings"
)

// TestStepperNextWalksChain verifies single-stepping runs one action at
// a time with a shared result log and chain ID.
func TestStepperNextWalksChain(t *testing.T) {
	reg := actions.NewRegistry()
	var order []string
	recordKinds(t, reg, &order, "a", "b", "c")
	c, _ := testCompiler(t, reg)

	s := NewStepper(c, acts("a", "b", "c"), nil)
	if s.Len() != 3 || s.Index() != 0 || s.Done() {
		t.Fatalf("initial state: len=%d idx=%d done=%v", s.Len(), s.Index(), s.Done())
	}

	res := s.Next(context.Background())
	if res.ChainID != s.ChainID() {
		t.Errorf("chain id = %s, want %s", res.ChainID, s.ChainID())
	}
	if fmt.Sprint(order) != "[a]" || s.Index() != 1 || s.Done() {
		t.Fatalf("after first step: order=%v idx=%d done=%v", order, s.Index(), s.Done())
	}

	s.Next(context.Background())
	s.Next(context.Background())
	if !s.Done() || s.Status() != StatusCompleted {
		t.Fatalf("not completed: idx=%d status=%s", s.Index(), s.Status())
	}
	if fmt.Sprint(s.Results()) != "[a b c]" {
		t.Errorf("results = %v", s.Results())
	}

	// Stepping past the end is a no-op.
	res = s.Next(context.Background())
	if res.Status != StatusCompleted || len(order) != 3 {
		t.Errorf("step past end: %+v, order=%v", res, order)
	}
}

// TestStepperContinueRunsRemainder verifies Continue finishes the chain
// from the current position.
func TestStepperContinueRunsRemainder(t *testing.T) {
	reg := actions.NewRegistry()
	var order []string
	recordKinds(t, reg, &order, "a", "b", "c")
	c, _ := testCompiler(t, reg)

	s := NewStepper(c, acts("a", "b", "c"), nil)
	s.Next(context.Background())
	res := s.Continue(context.Background())
	if res.Status != StatusCompleted || !s.Done() {
		t.Fatalf("continue: %+v done=%v", res, s.Done())
	}
	if fmt.Sprint(order) != "[a b c]" {
		t.Errorf("order = %v", order)
	}
}

// TestStepperGateApprove verifies a gate suspends the stepper and
// approval runs the gated action before stepping on.
func TestStepperGateApprove(t *testing.T) {
	reg := actions.NewRegistry()
	var order []string
	recordKinds(t, reg, &order, "a", "g", "z")
	c, _ := testCompiler(t, reg)

	list := acts("a", "g", "z")
	list[1].Params["confirm"] = true

	s := NewStepper(c, list, nil)
	s.Next(context.Background())

	res := s.Next(context.Background())
	if res.Status != StatusSuspended || s.Pending() == nil {
		t.Fatalf("gate did not suspend: %+v", res)
	}
	if s.Index() != 1 || fmt.Sprint(order) != "[a]" {
		t.Fatalf("gate ran early: idx=%d order=%v", s.Index(), order)
	}

	ares, err := s.Approve(context.Background())
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if ares.Status != StatusCompleted {
		t.Errorf("approve result = %+v", ares)
	}
	if fmt.Sprint(order) != "[a g]" || s.Index() != 2 {
		t.Errorf("after approve: order=%v idx=%d", order, s.Index())
	}

	s.Next(context.Background())
	if !s.Done() || fmt.Sprint(s.Results()) != "[a g z]" {
		t.Errorf("final: done=%v results=%v", s.Done(), s.Results())
	}
}

// TestStepperGateDismiss verifies dismissal ends the chain with nothing
// after the gate running.
func TestStepperGateDismiss(t *testing.T) {
	reg := actions.NewRegistry()
	var order []string
	recordKinds(t, reg, &order, "a", "g", "z")
	c, _ := testCompiler(t, reg)

	list := acts("a", "g", "z")
	list[1].Params["confirm"] = true

	s := NewStepper(c, list, nil)
	s.Continue(context.Background())
	if s.Pending() == nil {
		t.Fatal("expected suspension at gate")
	}

	if err := s.Dismiss(); err != nil {
		t.Fatalf("dismiss: %v", err)
	}
	if !s.Done() || s.Status() != StatusDismissed {
		t.Errorf("status = %s done=%v", s.Status(), s.Done())
	}
	if fmt.Sprint(order) != "[a]" {
		t.Errorf("order = %v", order)
	}
	if _, err := s.Approve(context.Background()); err != ErrSettled {
		t.Errorf("approve after dismiss: %v", err)
	}
}

// TestStepperContinueThroughApprovedGate verifies an approved gate in
// the middle of a Continue resumes the suffix automatically.
func TestStepperContinueThroughApprovedGate(t *testing.T) {
	reg := actions.NewRegistry()
	var order []string
	recordKinds(t, reg, &order, "a", "g", "z")
	c, _ := testCompiler(t, reg)

	list := acts("a", "g", "z")
	list[1].Params["confirm"] = true

	s := NewStepper(c, list, nil)
	res := s.Continue(context.Background())
	if res.Status != StatusSuspended || s.Index() != 1 {
		t.Fatalf("continue to gate: %+v idx=%d", res, s.Index())
	}

	ares, err := s.Approve(context.Background())
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if ares.Status != StatusCompleted || !s.Done() {
		t.Fatalf("approve: %+v done=%v", ares, s.Done())
	}
	if fmt.Sprint(s.Results()) != "[a g z]" {
		t.Errorf("results = %v", s.Results())
	}
}

// TestStepperTraceSingleCompletion verifies a stepped chain writes one
// terminal trace event, at the true chain end, so its trace verifies.
func TestStepperTraceSingleCompletion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trace.jsonl")
	tw, err := NewTraceWriter(path)
	if err != nil {
		t.Fatal(err)
	}

	reg := actions.NewRegistry()
	var order []string
	recordKinds(t, reg, &order, "a", "g", "z")
	c := New(Config{
		Registry: reg,
		Enrich:   bindings.Enrich,
		Logger:   zerolog.Nop(),
		Trace:    tw,
	})

	list := acts("a", "g", "z")
	list[1].Params["confirm"] = true

	s := NewStepper(c, list, nil)
	s.Next(context.Background())
	s.Next(context.Background()) // suspends at the gate
	if _, err := s.Approve(context.Background()); err != nil {
		t.Fatalf("approve: %v", err)
	}
	s.Next(context.Background())
	if !s.Done() || s.Status() != StatusCompleted {
		t.Fatalf("not completed: idx=%d status=%s", s.Index(), s.Status())
	}
	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}

	res, err := VerifyTraceFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Valid {
		t.Fatalf("stepped trace failed verification: %s", res.Error)
	}

	data, _ := os.ReadFile(path)
	if got := strings.Count(string(data), "chain_completed"); got != 1 {
		t.Errorf("trace holds %d chain_completed events, want 1", got)
	}
}
