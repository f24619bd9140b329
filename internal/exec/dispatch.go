package exec

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	osexec "os/exec"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
	"golang.org/x/term"

	"github.com/stacksjs/krusty/internal/ast"
	"github.com/stacksjs/krusty/internal/builtin"
	"github.com/stacksjs/krusty/internal/redirect"
)

// runStage dispatches one resolved Command: builtin lookup takes priority
// over external spawn, `command NAME` strips its own name so NAME dispatches
// normally (builtin or external) without having gone through alias
// expansion, and redirections are resolved around the call per spec.md
// §4.5/§4.6.
func (e *Engine) runStage(cmd ast.Command, stdin io.Reader, capturing bool) Result {
	name := cmd.Name
	args := cmd.Args
	if name == "command" && len(args) > 0 {
		name = args[0]
		args = args[1:]
	}
	if name == "" {
		return Result{}
	}

	effectiveStdin, closeStdin, err := e.resolveStdin(cmd.Redirections, stdin)
	if err != nil {
		return Result{ExitCode: 1, Stderr: err.Error() + "\n"}
	}
	if closeStdin != nil {
		defer closeStdin()
	}

	if e.State.Options.Xtrace {
		fmt.Fprint(e.Stderr, xtraceLine(name, args))
	}

	hasOutputRedir := false
	for _, r := range cmd.Redirections {
		if r.Kind == ast.KindFile && r.Direction != ast.DirIn {
			hasOutputRedir = true
			break
		}
	}

	var res Result
	if h, ok := e.Builtins.Lookup(name); ok {
		res = e.runBuiltin(h, name, args, effectiveStdin)
	} else {
		passthrough := ttyPassthroughCommands[name] && !capturing && !hasOutputRedir &&
			len(cmd.Redirections) == 0 && e.isInteractiveTTY()
		res = e.runExternal(name, args, effectiveStdin, capturing || hasOutputRedir, passthrough)
	}

	return e.applyOutputRedirections(res, cmd.Redirections)
}

func (e *Engine) runBuiltin(h builtin.Handler, name string, args []string, stdin io.Reader) Result {
	ctx := &builtin.Context{
		State: e.State,
		Args:  args,
		Stdin: stdin,
		Raw:   strings.TrimSpace(name + " " + strings.Join(args, " ")),
		Execute: func(text string) builtin.Result {
			return e.Run(text)
		},
	}
	r := h(ctx)
	return Result{ExitCode: r.ExitCode, Stdout: r.Stdout, Stderr: r.Stderr, Duration: r.Duration}
}

// runExternal spawns name as a child process, grounded on the teacher's
// CommandContext-plus-buffer idiom for shelling out: a bounded context,
// captured output, and exec.ExitError unwrapped into a plain exit code.
// When passthrough is true (an interactive-only program like ssh/sudo with
// no redirections, run from a real terminal) the child gets the real
// stdin/stdout/stderr directly instead of the engine's buffers.
func (e *Engine) runExternal(name string, args []string, stdin io.Reader, capturing bool, passthrough bool) Result {
	if e.Validator != nil {
		full := name
		if len(args) > 0 {
			full += " " + strings.Join(args, " ")
		}
		vr := e.Validator.Validate(full)
		if !vr.Allowed {
			return Result{ExitCode: 126, Stderr: fmt.Sprintf("krusty: %s: %s\n", full, vr.Reason)}
		}
		if vr.NeedsConfirm && e.Confirm != nil && !e.Confirm(full, vr.Reason) {
			return Result{ExitCode: 126, Stderr: fmt.Sprintf("krusty: %s: execution declined\n", full)}
		}
	}

	if e.Hooks != nil {
		_ = e.Hooks.Fire("pre-exec", strings.TrimSpace(name+" "+strings.Join(args, " ")))
	}

	ctx := context.Background()
	var cancel context.CancelFunc
	if e.DefaultTimeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, e.DefaultTimeout)
		defer cancel()
	}

	c := osexec.CommandContext(ctx, name, args...)
	c.Dir = e.State.Cwd
	c.Env = e.State.EnvList()
	c.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if passthrough {
		c.Stdin = os.Stdin
		c.Stdout = os.Stdout
		c.Stderr = os.Stderr
		err := c.Run()
		res := Result{ExitCode: exitCodeFromError(err)}
		if e.Hooks != nil {
			_ = e.Hooks.Fire("post-exec", res.ExitCode)
		}
		return res
	}

	c.Stdin = stdin
	var outBuf, errBuf bytes.Buffer
	if capturing {
		c.Stdout = &outBuf
	} else {
		c.Stdout = io.MultiWriter(&outBuf, e.Stdout)
	}
	c.Stderr = io.MultiWriter(&errBuf, e.Stderr)

	if err := c.Start(); err != nil {
		return Result{ExitCode: exitCodeFromError(err), Stderr: err.Error() + "\n"}
	}

	done := make(chan error, 1)
	go func() { done <- c.Wait() }()

	var runErr error
waitLoop:
	for {
		select {
		case runErr = <-done:
			break waitLoop
		case <-ctx.Done():
			e.killWithGrace(c)
			<-done
			res := Result{ExitCode: 124, Stdout: outBuf.String(), Stderr: errBuf.String() + "krusty: command timed out\n"}
			if e.Hooks != nil {
				_ = e.Hooks.Fire("post-exec", res.ExitCode)
			}
			return res
		case <-e.Interrupts:
			// Relay Ctrl-C to the child's process group (spec.md §9:
			// "Ctrl-C while a foreground command runs delivers SIGINT to
			// its pgid"); the terminal itself still targets the shell's
			// pgrp since no foreground-pgrp transfer happens for a plain
			// external command, so the shell must forward it by hand.
			_ = unix.Kill(-c.Process.Pid, syscall.SIGINT)
		}
	}

	res := Result{ExitCode: exitCodeFromError(runErr), Stdout: outBuf.String(), Stderr: errBuf.String()}
	if e.Hooks != nil {
		_ = e.Hooks.Fire("post-exec", res.ExitCode)
	}
	return res
}

// killWithGrace escalates from SIGTERM to SIGKILL after e.KillGrace (default
// 2s), the same grace-then-kill pattern spec.md §4.7 describes for job
// termination, reused here for the `timeout`-style deadline path.
func (e *Engine) killWithGrace(c *osexec.Cmd) {
	if c.Process == nil {
		return
	}
	_ = c.Process.Signal(syscall.SIGTERM)
	grace := e.KillGrace
	if grace <= 0 {
		grace = 2 * time.Second
	}
	timer := time.NewTimer(grace)
	defer timer.Stop()
	<-timer.C
	_ = c.Process.Kill()
}

func (e *Engine) isInteractiveTTY() bool {
	f, ok := e.Stdin.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}

// resolveStdin picks the effective stdin reader for a stage: the last file/
// here-doc/here-string redirection in parse order wins (spec.md §4.5), or
// fallback when the stage has none.
func (e *Engine) resolveStdin(redirs []ast.Redirection, fallback io.Reader) (io.Reader, func(), error) {
	var chosen io.Reader
	var closer func()
	for _, r := range redirs {
		switch {
		case r.Kind == ast.KindFile && r.Direction == ast.DirIn:
			f, err := redirect.OpenForRead(e.State.Cwd, r.Target)
			if err != nil {
				return nil, nil, errors.New(err.Error())
			}
			if closer != nil {
				closer()
			}
			chosen, closer = f, func() { f.Close() }
		case r.Kind == ast.KindHereDoc:
			chosen, closer = strings.NewReader(r.Body), nil
		case r.Kind == ast.KindHereString:
			chosen, closer = strings.NewReader(r.Content+"\n"), nil
		}
	}
	if chosen == nil {
		return fallback, nil, nil
	}
	return chosen, closer, nil
}

// applyOutputRedirections routes a stage's buffered output to the files its
// redirections name, post-hoc, the same pattern internal/builtin already
// follows for its own buffered Result (spec.md §4.5).
func (e *Engine) applyOutputRedirections(res Result, redirs []ast.Redirection) Result {
	for _, r := range redirs {
		switch {
		case r.Kind == ast.KindFdDup && r.SrcFd == 2 && r.FdDest.Fd == 1:
			res.Stdout += res.Stderr
			res.Stderr = ""
		case r.Kind == ast.KindFdDup && r.SrcFd == 1 && r.FdDest.Fd == 2:
			res.Stderr += res.Stdout
			res.Stdout = ""
		case r.Kind == ast.KindFile && (r.Direction == ast.DirOut || r.Direction == ast.DirAppend):
			if err := e.writeRedirFile(r, res.Stdout); err != nil {
				res.Stderr += err.Error() + "\n"
				res.ExitCode = 1
			}
			res.Stdout = ""
		case r.Kind == ast.KindFile && (r.Direction == ast.DirErr || r.Direction == ast.DirErrAppend):
			if err := e.writeRedirFile(r, res.Stderr); err != nil {
				res.ExitCode = 1
			}
			res.Stderr = ""
		case r.Kind == ast.KindFile && r.Direction == ast.DirBoth:
			if err := e.writeRedirFile(r, res.Stdout+res.Stderr); err != nil {
				res.ExitCode = 1
			}
			res.Stdout, res.Stderr = "", ""
		}
	}
	return res
}

func (e *Engine) writeRedirFile(r ast.Redirection, content string) error {
	f, err := redirect.OpenForWrite(e.State.Cwd, r)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.WriteString(content)
	return err
}
