package chain

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
)

// VerifyResult reports the outcome of a trace file check.
type VerifyResult struct {
	Valid      bool
	EventCount int
	Chains     int
	BrokenAt   int // 1-based event number of the first violation
	Error      string
}

// terminal event types. A chain emits at most one, and nothing after.
var terminalEvents = map[string]bool{
	"chain_completed":        true,
	"chain_aborted":          true,
	"chain_errored":          true,
	"confirmation_dismissed": true,
}

type chainState struct {
	started   bool
	lastIndex int
	done      bool
	suspended bool
}

// VerifyTraceFile checks the ordering invariants of a JSONL trace file:
// every chain opens with chain_started at index 0, indexes never go
// backwards, a suspended chain settles before more actions run, and no
// events follow a terminal event.
func VerifyTraceFile(path string) (*VerifyResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open trace file: %w", err)
	}
	defer f.Close()

	res := &VerifyResult{Valid: true}
	chains := make(map[string]*chainState)

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		res.EventCount++

		var ev Event
		if err := json.Unmarshal(line, &ev); err != nil {
			return fail(res, "event %d: malformed JSON: %v", res.EventCount, err), nil
		}
		if ev.ChainID == "" {
			return fail(res, "event %d: missing chain_id", res.EventCount), nil
		}

		st, ok := chains[ev.ChainID]
		if !ok {
			st = &chainState{lastIndex: -1}
			chains[ev.ChainID] = st
			res.Chains++
		}

		if st.done {
			return fail(res, "event %d: chain %s continues after terminal event", res.EventCount, ev.ChainID), nil
		}

		switch ev.Type {
		case "chain_started":
			if st.started {
				return fail(res, "event %d: chain %s started twice", res.EventCount, ev.ChainID), nil
			}
			if ev.Index != 0 {
				return fail(res, "event %d: chain_started at index %d", res.EventCount, ev.Index), nil
			}
			st.started = true
		case "chain_suspended":
			st.suspended = true
		case "confirmation_approved":
			if !st.suspended {
				return fail(res, "event %d: approval without suspension on chain %s", res.EventCount, ev.ChainID), nil
			}
			st.suspended = false
		case "confirmation_dismissed":
			if !st.suspended {
				return fail(res, "event %d: dismissal without suspension on chain %s", res.EventCount, ev.ChainID), nil
			}
			st.suspended = false
		default:
			if st.suspended {
				return fail(res, "event %d: chain %s ran %s while suspended", res.EventCount, ev.ChainID, ev.Type), nil
			}
		}

		if !st.started {
			return fail(res, "event %d: chain %s has events before chain_started", res.EventCount, ev.ChainID), nil
		}
		if ev.Index < st.lastIndex {
			return fail(res, "event %d: index %d after %d on chain %s", res.EventCount, ev.Index, st.lastIndex, ev.ChainID), nil
		}
		st.lastIndex = ev.Index

		if terminalEvents[ev.Type] {
			st.done = true
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read trace file: %w", err)
	}

	return res, nil
}

func fail(res *VerifyResult, format string, args ...any) *VerifyResult {
	res.Valid = false
	res.BrokenAt = res.EventCount
	res.Error = fmt.Sprintf(format, args...)
	return res
}
