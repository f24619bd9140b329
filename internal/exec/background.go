package exec

import (
	"fmt"
	"os"
	osexec "os/exec"
	"strings"
	"syscall"

	"github.com/stacksjs/krusty/internal/ast"
)

// runBackground launches a backgrounded pipeline (trailing &) per spec.md
// §4.7: it registers a job immediately and returns without waiting. A
// single external command is spawned as a real, detached process group so
// the caller's prompt returns instantly; anything more exotic (a pipeline of
// several stages, or one involving a built-in, which can only run
// synchronously because built-ins return a buffered Result rather than
// stream) is run to completion first and then recorded as an already-Done
// job, trading true concurrency for a uniform job-table entry (see
// DESIGN.md).
func (e *Engine) runBackground(stages []ast.Command) Result {
	commandText := backgroundCommandText(stages)

	if len(stages) == 1 {
		if _, ok := e.Builtins.Lookup(stages[0].Name); !ok {
			return e.spawnBackgroundProcess(stages[0], commandText)
		}
	}

	res := e.runForeground(stages)
	j := e.State.Jobs.Add(os.Getpid(), os.Getpid(), commandText, true)
	e.State.Jobs.MarkDone(j.ID, res.ExitCode)
	if e.Hooks != nil {
		_ = e.Hooks.Fire("job-state-changed", j)
	}
	res.Stdout = fmt.Sprintf("[%d] %d\n", j.ID, j.LeaderPid) + res.Stdout
	return res
}

// runForeground runs stages synchronously without the background/alias
// machinery runPipeline already applied, used only by runBackground's
// built-in fallback path where aliasing/expansion has already happened.
func (e *Engine) runForeground(stages []ast.Command) Result {
	if len(stages) == 1 {
		return e.runStage(stages[0], e.Stdin, true)
	}
	return e.runMultiStage(stages, true)
}

func backgroundCommandText(stages []ast.Command) string {
	parts := make([]string, len(stages))
	for i, s := range stages {
		parts[i] = strings.TrimSpace(s.Raw)
		if parts[i] == "" {
			parts[i] = strings.TrimSpace(s.Name + " " + strings.Join(s.Args, " "))
		}
	}
	return strings.Join(parts, " | ")
}

// spawnBackgroundProcess starts cmd as a detached child in its own process
// group, registers it in the job table right away, and reaps it
// asynchronously via MarkDone so `jobs`/`wait` observe its completion
// without blocking the shell (spec.md §4.7, §5).
func (e *Engine) spawnBackgroundProcess(cmd ast.Command, commandText string) Result {
	name, args := cmd.Name, cmd.Args
	if name == "command" && len(args) > 0 {
		name, args = args[0], args[1:]
	}

	stdin, closeStdin, err := e.resolveStdin(cmd.Redirections, nil)
	if err != nil {
		return Result{ExitCode: 1, Stderr: err.Error() + "\n"}
	}

	c := osexec.Command(name, args...)
	c.Dir = e.State.Cwd
	c.Env = e.State.EnvList()
	c.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	c.Stdin = stdin
	c.Stdout = e.Stdout
	c.Stderr = e.Stderr

	if err := c.Start(); err != nil {
		if closeStdin != nil {
			closeStdin()
		}
		return Result{ExitCode: exitCodeFromError(err), Stderr: err.Error() + "\n"}
	}

	pgid := c.Process.Pid
	j := e.State.Jobs.Add(pgid, c.Process.Pid, commandText, true)
	if e.Hooks != nil {
		_ = e.Hooks.Fire("job-state-changed", j)
	}

	go func() {
		if closeStdin != nil {
			defer closeStdin()
		}
		err := c.Wait()
		e.State.Lock()
		e.State.Jobs.MarkDone(j.ID, exitCodeFromError(err))
		e.State.Unlock()
		if e.Hooks != nil {
			_ = e.Hooks.Fire("job-state-changed", j)
		}
	}()

	return Result{ExitCode: 0, Stdout: fmt.Sprintf("[%d] %d\n", j.ID, pgid)}
}
