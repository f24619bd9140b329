package exec

import (
	"errors"
	"os"
	"os/exec"
	"syscall"
)

// exitCodeFromError maps an external command's termination into the shell's
// numeric exit-code convention (spec.md §4.6): a normal exit passes the
// child's own code through; death by signal maps to 128+signum (130 for
// SIGINT, 143 for SIGTERM, the general case for anything else); a spawn
// failure (missing binary) is 127; a permission/not-executable failure is
// 126.
func exitCodeFromError(err error) int {
	if err == nil {
		return 0
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if status, ok := exitErr.Sys().(syscall.WaitStatus); ok && status.Signaled() {
			return 128 + int(status.Signal())
		}
		return exitErr.ExitCode()
	}

	if errors.Is(err, os.ErrPermission) {
		return 126
	}

	return 127
}
