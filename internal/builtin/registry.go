// Package builtin implements the built-in name→handler registry (spec.md
// §4.4): navigation, variable/alias, job-control, I/O, control-flow, and
// introspection built-ins, each a pure function of (args, shell context)
// returning a buffered Result that the execution engine applies
// redirections to post-hoc.
package builtin

import (
	"io"
	"time"

	"github.com/stacksjs/krusty/internal/shell"
)

// Result is a built-in invocation's buffered outcome (spec.md §4.4: "{
// exit_code, stdout, stderr, duration }").
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
	Duration time.Duration
}

// Context is what a handler receives: the shell state, its arguments
// (name excluded), raw stdin (for `read`), and a callback into the
// execution engine so control built-ins (`eval`, `source`, `time`,
// `timeout`) can run arbitrary command text without builtin importing
// exec (which imports builtin), avoiding an import cycle.
type Context struct {
	State  *shell.State
	Args   []string
	Stdin  io.Reader
	Raw    string // the original command line, for `eval`/`exec -c` style built-ins

	// Execute runs text as a full chain through the execution engine and
	// returns its Result. nil in contexts that don't support recursive
	// execution (e.g. some unit tests).
	Execute func(text string) Result
}

// Handler implements one built-in. Implementations must not write directly
// to os.Stdout/os.Stderr; buffered output lets the executor apply
// redirections post-hoc per spec.md §4.4.
type Handler func(ctx *Context) Result

// Registry maps built-in names to handlers.
type Registry struct {
	handlers map[string]Handler
}

// NewRegistry creates a Registry pre-populated with every built-in in
// spec.md §4.4.
func NewRegistry() *Registry {
	r := &Registry{handlers: make(map[string]Handler)}
	registerNavigation(r)
	registerVariables(r)
	registerJobControl(r)
	registerIO(r)
	registerControl(r)
	registerIntrospection(r)
	return r
}

// Register adds or replaces the handler for name.
func (r *Registry) Register(name string, h Handler) {
	r.handlers[name] = h
}

// Lookup returns the handler for name and whether it exists.
func (r *Registry) Lookup(name string) (Handler, bool) {
	h, ok := r.handlers[name]
	return h, ok
}

// Names returns every registered built-in name.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.handlers))
	for n := range r.handlers {
		names = append(names, n)
	}
	return names
}

func success() Result            { return Result{ExitCode: 0} }
func successOut(s string) Result { return Result{ExitCode: 0, Stdout: s} }
func usageErr(msg string) Result { return Result{ExitCode: 2, Stderr: msg + "\n"} }
func fail(msg string) Result     { return Result{ExitCode: 1, Stderr: msg + "\n"} }
