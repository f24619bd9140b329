package builtin

import (
	"fmt"
	"strconv"
	"strings"
	"syscall"

	"github.com/stacksjs/krusty/internal/job"
)

func registerJobControl(r *Registry) {
	r.Register("jobs", jobsBuiltin)
	r.Register("fg", fgBuiltin)
	r.Register("bg", bgBuiltin)
	r.Register("kill", killBuiltin)
	r.Register("wait", waitBuiltin)
	r.Register("disown", disownBuiltin)
	r.Register("suspend", suspendBuiltin)
}

func jobsBuiltin(ctx *Context) Result {
	long := len(ctx.Args) > 0 && ctx.Args[0] == "-l"
	var b strings.Builder
	for _, j := range ctx.State.Jobs.All() {
		marker := " "
		if cur, err := ctx.State.Jobs.Resolve("%+"); err == nil && cur.ID == j.ID {
			marker = "+"
		} else if prev, err := ctx.State.Jobs.Resolve("%-"); err == nil && prev.ID == j.ID {
			marker = "-"
		}
		suffix := ""
		if j.Background && j.Status != job.Done {
			suffix = " &"
		}
		if long {
			fmt.Fprintf(&b, "[%d]%s %d %s %s%s\n", j.ID, marker, j.LeaderPid, j.Status, j.Command, suffix)
		} else {
			fmt.Fprintf(&b, "[%d]%s %s %s%s\n", j.ID, marker, j.Status, j.Command, suffix)
		}
	}
	return successOut(b.String())
}

func fgBuiltin(ctx *Context) Result {
	designator := "%+"
	if len(ctx.Args) > 0 {
		designator = ctx.Args[0]
	}
	j, err := ctx.State.Jobs.Resolve(designator)
	if err != nil {
		return fail("fg: " + err.Error())
	}
	if j.Status == job.Done {
		return fail("fg: no such job")
	}
	if j.Status == job.Stopped {
		if err := job.ResumeBackground(j); err != nil {
			return fail("fg: " + err.Error())
		}
	}
	_ = job.TransferForeground(j.Pgid)
	exitCode := job.WaitDone(j)
	_ = job.ReclaimShellForeground()
	return Result{ExitCode: exitCode, Stdout: j.Command + "\n"}
}

func bgBuiltin(ctx *Context) Result {
	designator := "%+"
	if len(ctx.Args) > 0 {
		designator = ctx.Args[0]
	}
	j, err := ctx.State.Jobs.Resolve(designator)
	if err != nil {
		return fail("bg: " + err.Error())
	}
	if j.Status != job.Stopped {
		return fail("bg: job not stopped")
	}
	if err := job.ResumeBackground(j); err != nil {
		return fail("bg: " + err.Error())
	}
	return successOut(fmt.Sprintf("[%d]+ %s &\n", j.ID, j.Command))
}

func killBuiltin(ctx *Context) Result {
	sig := syscall.SIGTERM
	args := ctx.Args
	if len(args) > 0 && strings.HasPrefix(args[0], "-") {
		if args[0] == "-l" {
			return successOut(killList())
		}
		name := strings.TrimPrefix(args[0], "-")
		name = strings.TrimPrefix(name, "s")
		if parsed, ok := signalByName(name); ok {
			sig = parsed
			args = args[1:]
		}
	}
	if len(args) == 0 {
		return usageErr("kill: usage: kill [-SIG] pid|%job ...")
	}
	for _, target := range args {
		if strings.HasPrefix(target, "%") {
			j, err := ctx.State.Jobs.Resolve(target)
			if err != nil {
				return fail("kill: " + err.Error())
			}
			if err := job.Terminate(j, sig); err != nil {
				return fail("kill: " + err.Error())
			}
			continue
		}
		pid, err := strconv.Atoi(target)
		if err != nil {
			return usageErr("kill: illegal pid: " + target)
		}
		if err := syscall.Kill(pid, sig); err != nil {
			return fail(fmt.Sprintf("kill: (%d): %s", pid, err))
		}
	}
	return success()
}

func killList() string {
	names := []struct {
		n int
		s string
	}{
		{1, "HUP"}, {2, "INT"}, {9, "KILL"}, {15, "TERM"},
		{19, "STOP"}, {18, "CONT"}, {20, "TSTP"},
	}
	var b strings.Builder
	for _, e := range names {
		fmt.Fprintf(&b, "%2d) SIG%s\n", e.n, e.s)
	}
	return b.String()
}

func signalByName(name string) (syscall.Signal, bool) {
	switch strings.ToUpper(name) {
	case "HUP":
		return syscall.SIGHUP, true
	case "INT":
		return syscall.SIGINT, true
	case "KILL":
		return syscall.SIGKILL, true
	case "TERM":
		return syscall.SIGTERM, true
	case "STOP":
		return syscall.SIGSTOP, true
	case "CONT":
		return syscall.SIGCONT, true
	case "TSTP":
		return syscall.SIGTSTP, true
	default:
		if n, err := strconv.Atoi(name); err == nil {
			return syscall.Signal(n), true
		}
		return 0, false
	}
}

func waitBuiltin(ctx *Context) Result {
	if len(ctx.Args) == 0 {
		for _, j := range ctx.State.Jobs.All() {
			if j.Status != job.Done {
				job.WaitDone(j)
			}
		}
		return success()
	}
	exit := 0
	for _, target := range ctx.Args {
		if strings.HasPrefix(target, "%") {
			j, err := ctx.State.Jobs.Resolve(target)
			if err != nil {
				return fail("wait: " + err.Error())
			}
			exit = job.WaitDone(j)
			continue
		}
		pid, err := strconv.Atoi(target)
		if err != nil {
			return usageErr("wait: illegal pid: " + target)
		}
		if j := findByPid(ctx, pid); j != nil {
			exit = job.WaitDone(j)
		}
	}
	return Result{ExitCode: exit}
}

func findByPid(ctx *Context, pid int) *job.Job {
	for _, j := range ctx.State.Jobs.All() {
		if j.LeaderPid == pid {
			return j
		}
	}
	return nil
}

func disownBuiltin(ctx *Context) Result {
	designator := "%+"
	if len(ctx.Args) > 0 {
		designator = ctx.Args[0]
	}
	j, err := ctx.State.Jobs.Resolve(designator)
	if err != nil {
		return fail("disown: " + err.Error())
	}
	ctx.State.Jobs.Disown(j.ID)
	return success()
}

func suspendBuiltin(ctx *Context) Result {
	if err := syscall.Kill(0, syscall.SIGTSTP); err != nil {
		return fail("suspend: " + err.Error())
	}
	return success()
}
