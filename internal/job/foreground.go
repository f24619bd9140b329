package job

import (
	"os"

	"golang.org/x/sys/unix"
	"golang.org/x/term"
)

// TransferForeground hands terminal control to pgid, per spec.md §4.7
// ("resume_foreground(id) → transfer terminal control to the pgid"). It is
// a no-op (returning nil) when stdin is not a terminal, matching the
// interactive-TTY-detection rule in spec.md §9.
func TransferForeground(pgid int) error {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return nil
	}
	return unix.IoctlSetPointerInt(fd, unix.TIOCSPGRP, pgid)
}

// ReclaimShellForeground restores the shell's own process group as the
// terminal's foreground group after a foreground job stops or exits.
func ReclaimShellForeground() error {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return nil
	}
	shellPgid, err := unix.Getpgid(os.Getpid())
	if err != nil {
		return err
	}
	return unix.IoctlSetPointerInt(fd, unix.TIOCSPGRP, shellPgid)
}
