package repl

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/stacksjs/krusty/internal/job"
	"github.com/stacksjs/krusty/internal/shell"
)

// promptRenderer builds the PS1-style prompt line and colorizes job-status
// announcements (xtraceWriter below colorizes trace lines). The teacher hand-rolls raw ANSI escapes for this in
// cli_adapter.go; we use fatih/color for the same purpose instead, per
// SPEC_FULL.md's domain-stack wiring.
type promptRenderer struct {
	cwd     *color.Color
	ok      *color.Color
	fail    *color.Color
	done    *color.Color
	stopped *color.Color
}

func newPromptRenderer() *promptRenderer {
	return &promptRenderer{
		cwd:     color.New(color.FgCyan, color.Bold),
		ok:      color.New(color.FgGreen, color.Bold),
		fail:    color.New(color.FgRed, color.Bold),
		done:    color.New(color.FgGreen),
		stopped: color.New(color.FgYellow),
	}
}

// Render builds a two-part prompt: the working directory (with a leading
// $HOME shown as ~) and a trailing glyph colored by the last
// command's exit code, matching the success/failure convention spec.md §6
// leaves unspecified beyond "reflects shell state".
func (p *promptRenderer) Render(st *shell.State) string {
	dir := st.Cwd
	if home := st.Getenv("HOME"); home != "" && strings.HasPrefix(dir, home) {
		dir = "~" + strings.TrimPrefix(dir, home)
	}
	glyph := p.ok.Sprint("❯")
	if st.LastExitCode != 0 {
		glyph = p.fail.Sprint("❯")
	}
	return fmt.Sprintf("%s %s ", p.cwd.Sprint(dir), glyph)
}

// ContinuationPrompt is shown while reading a continuation line for an
// unterminated quote or an in-progress here-doc body (PS2 in POSIX terms).
func (p *promptRenderer) ContinuationPrompt() string {
	return "> "
}

// AnnounceJob formats a job-table entry for the REPL's pre-prompt
// reaped-and-announced step (spec.md §4.7).
func (p *promptRenderer) AnnounceJob(j *job.Job) string {
	switch j.Status {
	case job.Done:
		code := 0
		if j.ExitCode != nil {
			code = *j.ExitCode
		}
		return p.done.Sprintf("[%d]+  Done(%d)                 %s\n", j.ID, code, j.Command)
	case job.Stopped:
		return p.stopped.Sprintf("[%d]+  Stopped                 %s\n", j.ID, j.Command)
	default:
		return fmt.Sprintf("[%d]+  %s                 %s\n", j.ID, j.Status, j.Command)
	}
}

// xtraceWriter colorizes `set -x` trace lines (those starting with "+ ")
// dim, passing every other line through untouched, so a command's real
// stderr keeps its normal rendering.
type xtraceWriter struct {
	underlying io.Writer
	trace      *color.Color
}

func newXtraceWriter(underlying io.Writer) *xtraceWriter {
	return &xtraceWriter{underlying: underlying, trace: color.New(color.FgHiBlack)}
}

func (w *xtraceWriter) Write(p []byte) (int, error) {
	lines := bytes.SplitAfter(p, []byte("\n"))
	for _, line := range lines {
		if len(line) == 0 {
			continue
		}
		if bytes.HasPrefix(line, []byte("+ ")) {
			if _, err := w.trace.Fprint(w.underlying, string(line)); err != nil {
				return 0, err
			}
			continue
		}
		if _, err := w.underlying.Write(line); err != nil {
			return 0, err
		}
	}
	return len(p), nil
}

var _ io.Writer = (*xtraceWriter)(nil)
