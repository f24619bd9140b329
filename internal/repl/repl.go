// Package repl implements the interactive read-eval-print loop and its
// non-interactive script-mode twin (spec.md §6): readline-backed input with
// persistent history, PS1/PS2 prompts, here-doc body capture, pre-prompt
// job-state announcements, and Ctrl-C relay to a running foreground command.
package repl

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/chzyer/readline"
	"github.com/fatih/color"

	"github.com/stacksjs/krusty/internal/config"
	"github.com/stacksjs/krusty/internal/exec"
	"github.com/stacksjs/krusty/internal/history"
	"github.com/stacksjs/krusty/internal/signal"
)

// interruptGrace bounds how long a second Ctrl-C has to follow the first
// to count as a double press (spec.md §9's double-press pattern): a second
// press within the grace cancels the interrupt handler's context, and Run's
// read loop then ends the shell.
const interruptGrace = 750 * time.Millisecond

// REPL drives interactive command input against an already-constructed
// exec.Engine. Callers (cmd/krusty) are responsible for wiring
// engine.Bookmarks/Validator before calling New if those collaborators are
// wanted; REPL owns history and the signal-driven input/interrupt seams
// that are specific to the read loop itself.
type REPL struct {
	Engine  *exec.Engine
	History *history.HistoryManager

	rl     *readline.Instance
	prompt *promptRenderer

	interrupts *signal.InterruptHandler
	children   *signal.ChildHandler

	out io.Writer
}

// New builds a REPL wired against engine. cfg supplies the history file
// path/size; an empty HistoryFile disables on-disk persistence (in-memory
// only), per internal/config's documented convention.
func New(engine *exec.Engine, cfg *config.Config) (*REPL, error) {
	r := &REPL{
		Engine:     engine,
		History:    history.NewHistoryManager(cfg.HistoryFile, cfg.HistoryMaxEntries),
		prompt:     newPromptRenderer(),
		interrupts: signal.NewInterruptHandler(interruptGrace),
		children:   signal.NewChildHandler(),
		out:        engine.Stdout,
	}
	engine.BindHistory(r.History)
	engine.Interrupts = r.interrupts.FirstPress()
	engine.Stderr = newXtraceWriter(engine.Stderr)
	engine.Confirm = r.confirm

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          r.prompt.Render(engine.State),
		HistoryFile:     cfg.HistoryFile,
		HistoryLimit:    cfg.HistoryMaxEntries,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		AutoComplete:    readline.NewPrefixCompleter(completionItems(engine.Builtins.Names())...),
	})
	if err != nil {
		return nil, err
	}
	r.rl = rl

	return r, nil
}

func completionItems(names []string) []readline.PrefixCompleterInterface {
	items := make([]readline.PrefixCompleterInterface, len(names))
	for i, n := range names {
		items[i] = readline.PcItem(n)
	}
	return items
}

// Run drives the read-eval-print loop until EOF (Ctrl-D), `exit`, or a
// second Ctrl-C while waiting on input. It returns the exit code the shell
// process should terminate with.
func (r *REPL) Run() int {
	r.interrupts.Start()
	r.children.Start()
	defer r.interrupts.Stop()
	defer r.children.Stop()
	defer r.rl.Close()

	for {
		r.announceReapedJobs()
		r.rl.SetPrompt(r.prompt.Render(r.Engine.State))

		first, status := r.readLine()
		switch status {
		case lineEOF:
			return 0
		case lineInterrupted:
			continue
		}
		if isBlank(first) {
			continue
		}

		pc, err := readLogicalCommand(first, r.nextContinuationLine)
		if err != nil {
			fmt.Fprintf(r.Engine.Stderr, "krusty: %s\n", err)
			continue
		}

		res := r.Engine.RunParsed(pc)
		io.WriteString(r.out, res.Stdout)
		io.WriteString(r.Engine.Stderr, res.Stderr)

		if requested, code := r.Engine.ExitRequested(); requested {
			return code
		}
	}
}

type lineStatus int

const (
	lineOK lineStatus = iota
	lineEOF
	lineInterrupted
)

// readLine wraps a single Readline call in a goroutine so it can be
// abandoned if the interrupt handler's context is cancelled (a second
// Ctrl-C arriving while nothing else is reading it), mirroring the
// teacher's context-cancelable readline idiom.
func (r *REPL) readLine() (string, lineStatus) {
	type result struct {
		line string
		err  error
	}
	resultCh := make(chan result, 1)
	go func() {
		line, err := r.rl.Readline()
		resultCh <- result{line, err}
	}()

	select {
	case <-r.interrupts.Context().Done():
		return "", lineEOF
	case res := <-resultCh:
		switch {
		case res.err == readline.ErrInterrupt:
			return "", lineInterrupted
		case res.err != nil:
			return "", lineEOF
		}
		if strings.TrimSpace(res.line) != "" {
			_ = r.History.Add(res.line)
		}
		return res.line, lineOK
	}
}

// nextContinuationLine is the lineSource used for PS2 continuation and
// here-doc body capture while reading interactively: it issues the "> "
// prompt and blocks for one more physical line.
func (r *REPL) nextContinuationLine() (string, bool) {
	r.rl.SetPrompt(r.prompt.ContinuationPrompt())
	line, status := r.readLine()
	if status != lineOK {
		return "", false
	}
	return line, true
}

// announceReapedJobs drains any coalesced SIGCHLD notification and prints
// the bash-style "[n]+  Done  command" line for every job the table drops,
// per spec.md §4.7's "REPL's pre-prompt reaped and announced step".
func (r *REPL) announceReapedJobs() {
	select {
	case <-r.children.Pending():
	default:
	}
	for _, j := range r.Engine.State.Jobs.Reap() {
		fmt.Fprint(r.out, r.prompt.AnnounceJob(j))
	}
}

// confirm implements exec.Confirm: a colorized y/N prompt for commands the
// shell's safety validator flagged, grounded on the teacher's
// ConfirmBashCommand/getInteractiveConfirmation pair.
func (r *REPL) confirm(command, reason string) bool {
	warn := color.New(color.FgRed, color.Bold)
	warn.Fprintf(r.Engine.Stderr, "[CONFIRM] %s\n", reason)
	fmt.Fprintf(r.Engine.Stderr, "  %s\n", command)

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "Execute? [y/N]: ",
		InterruptPrompt: "^C",
	})
	if err != nil {
		return r.confirmFallback()
	}
	defer rl.Close()

	line, err := rl.Readline()
	if err != nil {
		return false
	}
	line = strings.TrimSpace(strings.ToLower(line))
	return line == "y" || line == "yes"
}

// confirmFallback degrades to bufio.Scanner when a nested readline
// instance can't be created (e.g. stdin isn't a terminal), matching the
// teacher's non-interactive confirmation path.
func (r *REPL) confirmFallback() bool {
	fmt.Fprint(r.Engine.Stderr, "Execute? [y/N]: ")
	scanner := bufio.NewScanner(os.Stdin)
	if !scanner.Scan() {
		return false
	}
	line := strings.TrimSpace(strings.ToLower(scanner.Text()))
	return line == "y" || line == "yes"
}
