package exec

import (
	"io"
	"strings"

	"github.com/stacksjs/krusty/internal/ast"
	"github.com/stacksjs/krusty/internal/expand"
)

// runAsSubstitution is handed to the expansion engine as its Runner: it
// executes script as a nested chain and returns only its captured stdout,
// per spec.md §4.3's command-substitution contract ("execute cmd in a
// sub-context, capture stdout").
func (e *Engine) runAsSubstitution(script string) (string, int, error) {
	res := e.runScript(script, true)
	return res.Stdout, res.ExitCode, nil
}

// runPipeline executes one chain node's pipeline stages, expanding aliases
// and arguments per stage, then wiring stage i's stdout to stage i+1's
// stdin, returning the pipeline's exit code under pipefail semantics
// (spec.md §4.6). capturing is true when the enclosing Run call is itself
// nested inside a command substitution, in which case even the final
// stage's output is buffered instead of streamed to the terminal.
func (e *Engine) runPipeline(segs []ast.PipelineSegment, background bool, capturing bool) Result {
	if len(segs) == 0 {
		return Result{}
	}

	segs = e.expandFirstStageAlias(segs)

	stageCmds := make([]ast.Command, len(segs))
	for i, seg := range segs {
		cmd := seg.Command
		if i > 0 {
			cmd = e.expandStageAlias(cmd)
		}
		if err := e.Expander.ExpandArgs(&cmd, e.State, e.State.Options.Nounset, e.runAsSubstitution); err != nil {
			return Result{ExitCode: 1, Stderr: err.Error() + "\n"}
		}
		stageCmds[i] = cmd
	}

	if background {
		return e.runBackground(stageCmds)
	}
	if len(stageCmds) == 1 {
		return e.runStage(stageCmds[0], e.Stdin, capturing)
	}
	return e.runMultiStage(stageCmds, capturing)
}

// runMultiStage threads each stage's buffered stdout into the next stage's
// stdin. Buffering a stage fully before starting the next trades away
// concurrent streaming (a pipeline whose producer never terminates, e.g.
// `yes | head`, will not complete here) for an implementation free of
// goroutine/deadlock hazards and consistent with the buffered Result
// contract every built-in already follows (see DESIGN.md).
func (e *Engine) runMultiStage(stages []ast.Command, capturing bool) Result {
	var stdin io.Reader = e.Stdin
	var last Result
	rightmostNonzero := 0

	for i, cmd := range stages {
		isLast := i == len(stages)-1
		res := e.runStage(cmd, stdin, capturing || !isLast)
		if res.ExitCode != 0 {
			rightmostNonzero = res.ExitCode
		}
		stdin = strings.NewReader(res.Stdout)
		last = res
	}

	if e.State.Options.Pipefail && rightmostNonzero != 0 {
		last.ExitCode = rightmostNonzero
	}
	return last
}

// expandFirstStageAlias resolves aliases for the pipeline's leading command
// and splices the result's pipeline segments in place of the original first
// segment (spec.md §4.3: aliases may expand into an entire pipeline, e.g.
// `alias ll='ls -la | less'`). When the alias value itself spans multiple
// chain operators (&&/||/;), only the first resulting chain node's pipeline
// is spliced; the remainder of that expansion is not representable as
// additional segments of this pipeline and is dropped (see DESIGN.md).
func (e *Engine) expandFirstStageAlias(segs []ast.PipelineSegment) []ast.PipelineSegment {
	pc, err := expand.Aliases(segs[0].Command, e.State.Aliases, e.State.AliasDepthCap, e.State, e.State.Cwd)
	if err != nil || pc == nil || len(pc.Chain) == 0 {
		return segs
	}
	spliced := append([]ast.PipelineSegment{}, pc.Chain[0].Pipeline...)
	return append(spliced, segs[1:]...)
}

// expandStageAlias resolves aliases for a non-leading pipeline stage. Only
// the first command of the alias's expansion is kept: splicing a full
// sub-pipeline into the middle of an already-parsed pipeline would require
// re-flattening the enclosing segment list, which this simplification does
// not attempt (see DESIGN.md).
func (e *Engine) expandStageAlias(cmd ast.Command) ast.Command {
	pc, err := expand.Aliases(cmd, e.State.Aliases, e.State.AliasDepthCap, e.State, e.State.Cwd)
	if err != nil || pc == nil || len(pc.Chain) == 0 || len(pc.Chain[0].Pipeline) == 0 {
		return cmd
	}
	return pc.Chain[0].Pipeline[0].Command
}
