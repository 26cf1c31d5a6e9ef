package actions

// ResultLog is the ordered sequence of prior handler results within a
// chain invocation. It is shared by reference between the synchronous
// part of a chain and any confirmation-triggered continuation, so a
// resumed suffix sees every result that preceded the gate. There is
// exactly one logical writer at any time (the suspend-and-hand-off
// design guarantees it), so no locking is needed.
type ResultLog struct {
	results []any
}

// NewResultLog creates an empty log.
func NewResultLog() *ResultLog {
	return &ResultLog{}
}

// SeedResultLog creates a log pre-populated with results inherited
// from an enclosing chain.
func SeedResultLog(results []any) *ResultLog {
	log := &ResultLog{results: make([]any, len(results))}
	copy(log.results, results)
	return log
}

// Append adds a handler result at the end.
func (l *ResultLog) Append(v any) {
	l.results = append(l.results, v)
}

// Results returns the accumulated results in order. The returned slice
// is the live backing array; callers must not mutate it.
func (l *ResultLog) Results() []any {
	return l.results
}

// Len reports how many results have accumulated.
func (l *ResultLog) Len() int {
	return len(l.results)
}

// ExecContext assembles the per-action execution context: the caller's
// ambient data-binding context, inherited read-only, plus the chain's
// running result log.
type ExecContext struct {
	Ambient map[string]any
	Results *ResultLog
}

// NewExecContext pairs an ambient context with a result log.
func NewExecContext(ambient map[string]any, results *ResultLog) *ExecContext {
	return &ExecContext{Ambient: ambient, Results: results}
}

// Snapshot produces the total context for one action invocation:
// a fresh map holding the ambient entries plus the latest accumulated
// results under "actions". Built fresh for every action so the chain
// never mutates the ambient part, while prior results are always
// current.
func (c *ExecContext) Snapshot() map[string]any {
	env := make(map[string]any, len(c.Ambient)+1)
	for k, v := range c.Ambient {
		env[k] = v
	}
	env["actions"] = c.Results.Results()
	return env
}
