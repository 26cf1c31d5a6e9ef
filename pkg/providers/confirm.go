package providers

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
)

// TerminalConfirmer presents confirmation gates as y/N prompts on a
// terminal. Unlike UI surfaces it settles the gate before returning,
// which is the right shape for a CLI: the next read blocks anyway.
type TerminalConfirmer struct {
	In  io.Reader
	Out io.Writer
}

func (t *TerminalConfirmer) ShowConfirmation(req ConfirmationRequest) {
	text := req.Text
	if text == "" {
		text = fmt.Sprintf("Run %s?", req.Kind)
	}
	fmt.Fprintf(t.Out, "\n  ⚠ %s [y/N]: ", text)

	reader := bufio.NewReader(t.In)
	line, _ := reader.ReadString('\n')
	answer := strings.ToLower(strings.TrimSpace(line))

	if answer == "y" || answer == "yes" {
		if err := req.OnApprove(context.Background()); err != nil {
			fmt.Fprintf(t.Out, "  approve: %v\n", err)
		}
		return
	}
	if req.OnDismiss != nil {
		req.OnDismiss()
	}
	fmt.Fprintln(t.Out, "  dismissed — chain stopped")
}

// AutoConfirmer settles every gate immediately: approve in live runs
// that pass --yes, dismiss in dry-run walkthroughs that only want to
// see how far a chain gets.
type AutoConfirmer struct {
	Approve bool
}

func (a AutoConfirmer) ShowConfirmation(req ConfirmationRequest) {
	if a.Approve {
		req.OnApprove(context.Background())
		return
	}
	if req.OnDismiss != nil {
		req.OnDismiss()
	}
}

// QueueConfirmer holds requests for later settlement by the embedding
// surface (HTTP serve, TUI, debugger). ShowConfirmation returns
// immediately; the surface drains Pending and settles each request on
// user input.
type QueueConfirmer struct {
	mu      sync.Mutex
	pending []ConfirmationRequest
}

func (q *QueueConfirmer) ShowConfirmation(req ConfirmationRequest) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pending = append(q.pending, req)
}

// Take removes and returns the oldest pending request.
func (q *QueueConfirmer) Take() (ConfirmationRequest, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.pending) == 0 {
		return ConfirmationRequest{}, false
	}
	req := q.pending[0]
	q.pending = q.pending[1:]
	return req, true
}

// Len reports how many requests are waiting.
func (q *QueueConfirmer) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}
