package chain

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"time"
)

// Event is one JSONL trace record. Types:
// chain_started, action_completed, action_skipped, chain_suspended,
// confirmation_approved, confirmation_dismissed, chain_aborted,
// chain_errored, chain_completed.
type Event struct {
	Type      string         `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	ChainID   string         `json:"chain_id"`
	Index     int            `json:"index"`
	Kind      string         `json:"kind,omitempty"`
	Params    map[string]any `json:"params,omitempty"`
	Reason    string         `json:"reason,omitempty"`
	Error     string         `json:"error,omitempty"`
}

// TraceWriter appends chain events to a JSONL trace file.
type TraceWriter struct {
	file   *os.File
	writer *bufio.Writer
	enc    *json.Encoder
}

// NewTraceWriter creates a trace writer that appends to the given file.
func NewTraceWriter(path string) (*TraceWriter, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("open trace file: %w", err)
	}
	w := bufio.NewWriter(f)
	return &TraceWriter{
		file:   f,
		writer: w,
		enc:    json.NewEncoder(w),
	}, nil
}

// Write appends an event and flushes to disk. Events carry a redacted
// parameter summary, never raw secrets.
func (tw *TraceWriter) Write(ev Event) error {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	ev.Params = MaskParams(ev.Params)
	if err := tw.enc.Encode(ev); err != nil {
		return fmt.Errorf("encode trace event: %w", err)
	}
	// Flush and sync at event boundaries
	if err := tw.writer.Flush(); err != nil {
		return fmt.Errorf("flush trace: %w", err)
	}
	if err := tw.file.Sync(); err != nil {
		return fmt.Errorf("sync trace: %w", err)
	}
	return nil
}

// Close flushes and closes the trace file.
func (tw *TraceWriter) Close() error {
	if err := tw.writer.Flush(); err != nil {
		return err
	}
	return tw.file.Close()
}

// secretKeyRe matches parameter keys whose values must never reach the
// trace file.
var secretKeyRe = regexp.MustCompile(`(?i)(secret|token|password|passwd|apikey|api_key|credential)`)

// MaskParams returns a copy of params with secret-keyed values
// replaced by a mask. Nested maps are masked recursively.
func MaskParams(params map[string]any) map[string]any {
	if params == nil {
		return nil
	}
	out := make(map[string]any, len(params))
	for k, v := range params {
		if secretKeyRe.MatchString(k) {
			out[k] = "***"
			continue
		}
		if nested, ok := v.(map[string]any); ok {
			out[k] = MaskParams(nested)
			continue
		}
		out[k] = v
	}
	return out
}
