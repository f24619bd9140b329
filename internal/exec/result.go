// Package exec implements the execution engine (spec.md §4.6): single
// command dispatch (built-in vs external), pipeline wiring, chain
// evaluation with errexit/pipefail semantics, xtrace, and exit-code
// mapping.
package exec

import "time"

// Result is the outcome of running a single command, a pipeline, or a
// full chain; the same shape at every level per spec.md §4.4/§4.6.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
	Duration time.Duration
}
