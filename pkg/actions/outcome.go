package actions

// Outcome is the tagged result of one handler invocation. A handler
// either continues the chain, carrying a value (nil included) that is
// appended to the result log, or aborts the remaining chain. Abort is
// not an error: it is the documented way for a handler to stop the
// chain cleanly, and nothing is logged for it.
type Outcome struct {
	value any
	abort bool
}

// Continue carries v forward. Every non-abort value continues the
// chain, including nil, zero and empty-string results.
func Continue(v any) Outcome {
	return Outcome{value: v}
}

// Abort stops the remaining chain. Nothing is appended.
func Abort() Outcome {
	return Outcome{abort: true}
}

// Aborted reports whether this outcome halts the chain.
func (o Outcome) Aborted() bool { return o.abort }

// Value returns the carried value. Meaningless for aborts.
func (o Outcome) Value() any { return o.value }
