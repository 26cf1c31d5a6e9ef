package debugger

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/weftworks/weft/pkg/chain"
)

// handleNext runs the next action and reports where the chain ended up.
func (d *Debugger) handleNext(ctx context.Context) {
	if d.stepper.Done() {
		fmt.Fprintf(d.output, "Chain finished: %s\n", d.stepper.Status())
		return
	}
	if d.stepper.Pending() != nil {
		fmt.Fprintf(d.output, "A confirmation gate is pending. Use 'approve' or 'dismiss'.\n")
		return
	}

	idx := d.stepper.Index()
	act := d.acts[idx]
	fmt.Fprintf(d.output, "Running action %d: %s\n", idx+1, act.Kind)

	res := d.stepper.Next(ctx)
	d.report(res, idx)
}

// handleContinue runs every remaining action, stopping at gates.
func (d *Debugger) handleContinue(ctx context.Context) {
	if d.stepper.Done() {
		fmt.Fprintf(d.output, "Chain finished: %s\n", d.stepper.Status())
		return
	}
	if d.stepper.Pending() != nil {
		fmt.Fprintf(d.output, "A confirmation gate is pending. Use 'approve' or 'dismiss'.\n")
		return
	}

	idx := d.stepper.Index()
	res := d.stepper.Continue(ctx)
	d.report(res, idx)
}

// report prints the outcome of a sub-run.
func (d *Debugger) report(res *chain.RunResult, from int) {
	switch res.Status {
	case chain.StatusCompleted:
		for i := from; i < d.stepper.Index() && i < len(d.acts); i++ {
			fmt.Fprintf(d.output, "  ✓ %s\n", d.acts[i].Kind)
		}
		if d.stepper.Done() {
			fmt.Fprintf(d.output, "Chain completed — %d results.\n", len(d.stepper.Results()))
		}
	case chain.StatusSuspended:
		p := d.stepper.Pending()
		fmt.Fprintf(d.output, "  ? suspended at %s: %s\n", p.Kind, p.Text)
	case chain.StatusAborted:
		fmt.Fprintf(d.output, "  ■ %s aborted the chain.\n", d.acts[from].Kind)
	case chain.StatusErrored:
		fmt.Fprintf(d.output, "  ✗ chain errored")
		if res.Err != nil {
			fmt.Fprintf(d.output, ": %v", res.Err)
		}
		fmt.Fprintln(d.output)
	}
}

// handleContext dumps the snapshot the next action would see.
func (d *Debugger) handleContext() {
	data, err := json.MarshalIndent(d.stepper.Snapshot(), "", "  ")
	if err != nil {
		fmt.Fprintf(d.output, "  Error marshaling context: %v\n", err)
		return
	}
	fmt.Fprintln(d.output, string(data))
}

// handleResults lists the accumulated result log.
func (d *Debugger) handleResults() {
	results := d.stepper.Results()
	if len(results) == 0 {
		fmt.Fprintf(d.output, "No results recorded yet.\n")
		return
	}
	for i, r := range results {
		data, err := json.Marshal(r)
		if err != nil {
			data = []byte(fmt.Sprintf("%v", r))
		}
		fmt.Fprintf(d.output, "  [%d] %s\n", i, data)
	}
}

// handlePending describes the suspended gate, if any.
func (d *Debugger) handlePending() {
	p := d.stepper.Pending()
	if p == nil {
		fmt.Fprintf(d.output, "No pending confirmation.\n")
		return
	}
	fmt.Fprintf(d.output, "  chain     %s\n", p.ChainID)
	fmt.Fprintf(d.output, "  action    %d (%s)\n", p.Index+1, p.Kind)
	fmt.Fprintf(d.output, "  text      %s\n", p.Text)
	fmt.Fprintf(d.output, "  remaining %d\n", p.Remaining())
}

// handleApprove settles the pending gate and resumes.
func (d *Debugger) handleApprove(ctx context.Context) {
	if d.stepper.Pending() == nil {
		fmt.Fprintf(d.output, "No pending confirmation.\n")
		return
	}
	idx := d.stepper.Index()
	res, err := d.stepper.Approve(ctx)
	if err != nil {
		fmt.Fprintf(d.output, "Error: %v\n", err)
		return
	}
	fmt.Fprintf(d.output, "  Approved.\n")
	d.report(res, idx)
}

// handleDismiss settles the pending gate by stopping the chain.
func (d *Debugger) handleDismiss() {
	if d.stepper.Pending() == nil {
		fmt.Fprintf(d.output, "No pending confirmation.\n")
		return
	}
	if err := d.stepper.Dismiss(); err != nil {
		fmt.Fprintf(d.output, "Error: %v\n", err)
		return
	}
	fmt.Fprintf(d.output, "  Dismissed — chain stopped.\n")
}

// handleRegistry lists the registered handler kinds.
func (d *Debugger) handleRegistry() {
	kinds := d.registry.Kinds()
	if len(kinds) == 0 {
		fmt.Fprintf(d.output, "No handlers registered.\n")
		return
	}
	for _, k := range kinds {
		fmt.Fprintf(d.output, "  %s\n", k)
	}
}

// handleHelp displays available commands.
func (d *Debugger) handleHelp() {
	fmt.Fprintln(d.output, "Available commands:")
	fmt.Fprintln(d.output, "  next (n)      Run the next action")
	fmt.Fprintln(d.output, "  continue (c)  Run all remaining actions")
	fmt.Fprintln(d.output, "  context       Show the context snapshot the next action sees")
	fmt.Fprintln(d.output, "  results (r)   Show the accumulated result log")
	fmt.Fprintln(d.output, "  pending (p)   Describe the suspended confirmation gate")
	fmt.Fprintln(d.output, "  approve (y)   Approve the pending gate and resume")
	fmt.Fprintln(d.output, "  dismiss       Dismiss the pending gate and stop the chain")
	fmt.Fprintln(d.output, "  registry      List registered handler kinds")
	fmt.Fprintln(d.output, "  help (?)      Show this help")
	fmt.Fprintln(d.output, "  quit (q)      Exit debugger")
}
