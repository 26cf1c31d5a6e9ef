// Package debugger implements the interactive REPL for stepping an
// action chain.
package debugger

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/chzyer/readline"

	"github.com/weftworks/weft/pkg/actions"
	"github.com/weftworks/weft/pkg/chain"
	"github.com/weftworks/weft/pkg/schema"
)

// Debugger provides an interactive REPL for stepping through one
// trigger's chain action by action.
type Debugger struct {
	acts     []schema.Action
	stepper  *chain.Stepper
	registry *actions.Registry
	output   io.Writer
	rl       *readline.Instance
}

// New creates a debugger over acts with the given base context.
func New(c *chain.Compiler, registry *actions.Registry, acts []schema.Action, base map[string]any) *Debugger {
	return &Debugger{
		acts:     acts,
		stepper:  chain.NewStepper(c, acts, base),
		registry: registry,
		output:   os.Stdout,
	}
}

// Run starts the interactive REPL loop.
func (d *Debugger) Run(ctx context.Context) error {
	commands := []string{"next", "continue", "context", "results",
		"pending", "approve", "dismiss", "registry", "help", "quit"}

	var completer = readline.NewPrefixCompleter()
	for _, cmd := range commands {
		completer.Children = append(completer.Children,
			readline.PcItem(cmd))
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          d.buildPrompt(),
		AutoComplete:    completer,
		InterruptPrompt: "^C",
		EOFPrompt:       "quit",
	})
	if err != nil {
		return fmt.Errorf("init readline: %w", err)
	}
	d.rl = rl
	defer rl.Close()

	fmt.Fprintf(d.output, "weft debugger — %d actions\n", len(d.acts))
	fmt.Fprintf(d.output, "Type 'help' for available commands, 'next' to run the next action.\n\n")

	for {
		rl.SetPrompt(d.buildPrompt())
		line, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt || err == io.EOF {
				return nil
			}
			return err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		switch strings.Fields(line)[0] {
		case "next", "n":
			d.handleNext(ctx)
		case "continue", "c":
			d.handleContinue(ctx)
		case "context":
			d.handleContext()
		case "results", "r":
			d.handleResults()
		case "pending", "p":
			d.handlePending()
		case "approve", "y":
			d.handleApprove(ctx)
		case "dismiss":
			d.handleDismiss()
		case "registry":
			d.handleRegistry()
		case "help", "?":
			d.handleHelp()
		case "quit", "q":
			fmt.Fprintf(d.output, "Exiting debugger.\n")
			return nil
		default:
			fmt.Fprintf(d.output, "Unknown command: %q. Type 'help' for available commands.\n", line)
		}
	}
}

// buildPrompt creates the prompt string: weft[N/total | kind]>
func (d *Debugger) buildPrompt() string {
	if d.stepper.Pending() != nil {
		return fmt.Sprintf("weft[%d/%d | %s ?]> ",
			d.stepper.Index()+1, len(d.acts), d.stepper.Pending().Kind)
	}
	if d.stepper.Done() {
		return fmt.Sprintf("weft[%s]> ", d.stepper.Status())
	}
	kind := d.acts[d.stepper.Index()].Kind
	return fmt.Sprintf("weft[%d/%d | %s]> ", d.stepper.Index()+1, len(d.acts), kind)
}
