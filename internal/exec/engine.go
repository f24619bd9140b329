package exec

import (
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/stacksjs/krusty/internal/ast"
	"github.com/stacksjs/krusty/internal/bookmark"
	"github.com/stacksjs/krusty/internal/builtin"
	"github.com/stacksjs/krusty/internal/expand"
	"github.com/stacksjs/krusty/internal/history"
	"github.com/stacksjs/krusty/internal/hook"
	"github.com/stacksjs/krusty/internal/parse"
	"github.com/stacksjs/krusty/internal/safety"
	"github.com/stacksjs/krusty/internal/shell"
)

// Confirm is called when a Validator flags a command as needing
// confirmation before it runs; the REPL supplies a terminal-prompting
// implementation, tests and scripts typically auto-deny or auto-allow.
type Confirm func(command, reason string) bool

// Engine is the top-level execution engine (spec.md §4.6): it parses a
// line, expands it, and runs the resulting chain of pipelines against the
// shell's built-in registry or external processes, honoring errexit/
// pipefail/xtrace and updating the job table.
type Engine struct {
	State    *shell.State
	Builtins *builtin.Registry
	Expander *expand.Engine
	Hooks    *hook.Bus

	Bookmarks *bookmark.Store
	History   *history.HistoryManager

	Validator safety.CommandValidator
	Confirm   Confirm

	// DefaultTimeout bounds every external command; zero disables the bound.
	// The `timeout` built-in applies its own limit on top of this one.
	DefaultTimeout time.Duration
	// KillGrace is how long the engine waits after sending its configured
	// kill signal before escalating to SIGKILL.
	KillGrace time.Duration

	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	// Interrupts receives a value each time the REPL observes a Ctrl-C
	// while a foreground external command is running (wired from
	// signal.InterruptHandler.FirstPress in interactive mode); nil in
	// scripts and tests, where a nil channel simply never selects.
	Interrupts <-chan struct{}

	exitRequested bool
	exitCode      int
}

// ttyPassthroughCommands lists external programs that, when invoked with no
// redirections while the shell itself is attached to a terminal, get direct
// access to the real stdin/stdout/stderr instead of the engine's captured
// pipes, because they manage raw terminal modes themselves (spec.md §9).
var ttyPassthroughCommands = map[string]bool{
	"sudo": true, "ssh": true, "sftp": true, "scp": true, "passwd": true, "su": true,
}

// New builds an Engine with a freshly constructed shell State, built-in
// Registry, expansion Engine, and hook Bus, and binds the Registry for the
// introspection built-ins. Bookmark and history collaborators are wired
// separately through BindBookmarks and BindHistory.
func New() (*Engine, error) {
	st, err := shell.New()
	if err != nil {
		return nil, err
	}
	reg := builtin.NewRegistry()
	builtin.BindRegistry(reg)

	e := &Engine{
		State:    st,
		Builtins: reg,
		Expander: expand.NewEngine(256),
		Hooks:    hook.New(),
		Stdin:    os.Stdin,
		Stdout:   os.Stdout,
		Stderr:   os.Stderr,
	}
	return e, nil
}

// BindBookmarks wires a live bookmark.Store into the cd/bookmark built-ins.
func (e *Engine) BindBookmarks(store *bookmark.Store) {
	e.Bookmarks = store
	builtin.SetBookmarkResolver(func(ctx *builtin.Context, name string) (string, bool) {
		return store.Resolve(name)
	})
	builtin.SetBookmarkOperations(func(ctx *builtin.Context, op string, args []string) builtin.Result {
		switch op {
		case "add":
			if len(args) < 2 {
				return builtin.Result{ExitCode: 2, Stderr: "bookmark: usage: bookmark add name path\n"}
			}
			if err := store.Add(args[0], args[1]); err != nil {
				return builtin.Result{ExitCode: 1, Stderr: "bookmark: " + err.Error() + "\n"}
			}
			return builtin.Result{ExitCode: 0}
		case "del":
			if len(args) < 1 {
				return builtin.Result{ExitCode: 2, Stderr: "bookmark: usage: bookmark del name\n"}
			}
			if err := store.Del(args[0]); err != nil {
				return builtin.Result{ExitCode: 1, Stderr: "bookmark: " + err.Error() + "\n"}
			}
			return builtin.Result{ExitCode: 0}
		case "ls":
			var b strings.Builder
			for _, entry := range store.List() {
				b.WriteString(entry.Name + "\t" + entry.Path + "\n")
			}
			return builtin.Result{ExitCode: 0, Stdout: b.String()}
		default:
			if path, ok := store.Resolve(op); ok {
				return builtin.Result{ExitCode: 0, Stdout: path + "\n"}
			}
			return builtin.Result{ExitCode: 1, Stderr: "bookmark: " + op + ": no such bookmark\n"}
		}
	})
}

// BindHistory wires a live history.HistoryManager into the `history` built-in.
func (e *Engine) BindHistory(hm *history.HistoryManager) {
	e.History = hm
	builtin.SetHistoryHook(func(ctx *builtin.Context, flag string) builtin.Result {
		switch flag {
		case "-c":
			hm.Clear()
			return builtin.Result{ExitCode: 0}
		default:
			var b strings.Builder
			for i, entry := range hm.History() {
				b.WriteString(historyLine(i+1, entry))
			}
			return builtin.Result{ExitCode: 0, Stdout: b.String()}
		}
	})
}

func historyLine(n int, entry string) string {
	return strconv.Itoa(n) + "  " + entry + "\n"
}

// ExitRequested reports whether the `exit` built-in fired during the most
// recent Run call; the REPL checks this to end its read loop.
func (e *Engine) ExitRequested() (bool, int) {
	return e.exitRequested, e.exitCode
}

// Run parses and executes a full command line, applying chain semantics
// (;/&&/|| with errexit short-circuiting) across its pipelines (spec.md
// §4.6). It also serves as the Execute callback handed to builtin.Context
// for eval/source/exec/timeout/time, so it must be safe to call reentrantly.
func (e *Engine) Run(line string) builtin.Result {
	res := e.runScript(line, false)
	return builtin.Result{ExitCode: res.ExitCode, Stdout: res.Stdout, Stderr: res.Stderr, Duration: res.Duration}
}

// runScript parses line and evaluates its chain. capturing propagates down
// to the final pipeline stage of the final chain node: false for the line
// the user actually typed (its last stage streams live), true when this
// call originated from runAsSubstitution (its whole output must be
// captured, never printed).
func (e *Engine) runScript(line string, capturing bool) Result {
	start := time.Now()

	pc, err := parse.Parse(line)
	if err != nil {
		return Result{ExitCode: 2, Stderr: err.Error() + "\n", Duration: time.Since(start)}
	}

	res := e.runChain(pc, capturing)
	res.Duration = time.Since(start)
	e.State.RecordResult(res.ExitCode, res.Duration)
	return res
}

// RunParsed executes an already-parsed ParsedCommand directly, skipping
// parse.Parse. The REPL uses this for lines whose here-doc bodies it had to
// read and splice in across multiple physical lines before execution could
// begin (parse.Parse only ever sees a single logical line and leaves Body
// unset on every KindHereDoc redirection it produces).
func (e *Engine) RunParsed(pc *ast.ParsedCommand) builtin.Result {
	start := time.Now()
	res := e.runChain(pc, false)
	res.Duration = time.Since(start)
	e.State.RecordResult(res.ExitCode, res.Duration)
	return builtin.Result{ExitCode: res.ExitCode, Stdout: res.Stdout, Stderr: res.Stderr, Duration: res.Duration}
}

func (e *Engine) runChain(pc *ast.ParsedCommand, capturing bool) Result {
	var aggOut, aggErr strings.Builder
	execute := true
	lastCode := 0

	for _, node := range pc.Chain {
		if execute {
			res := e.runPipeline(node.Pipeline, pipelineIsBackground(node.Pipeline), capturing)
			lastCode = res.ExitCode
			aggOut.WriteString(res.Stdout)
			aggErr.WriteString(res.Stderr)

			if sig, val := builtin.PendingSignal(); sig == builtin.SignalExit {
				e.exitRequested = true
				e.exitCode = val
				break
			}
			if e.State.Options.Errexit && lastCode != 0 && node.Op != ast.OpOr {
				break
			}
		}

		switch node.Op {
		case ast.OpSeq:
			execute = true
		case ast.OpAnd:
			execute = lastCode == 0
		case ast.OpOr:
			execute = lastCode != 0
		case ast.OpNone:
			execute = false
		}
	}

	return Result{ExitCode: lastCode, Stdout: aggOut.String(), Stderr: aggErr.String()}
}

func pipelineIsBackground(segs []ast.PipelineSegment) bool {
	if len(segs) == 0 {
		return false
	}
	return segs[len(segs)-1].Command.Background
}
