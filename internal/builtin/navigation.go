package builtin

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

func registerNavigation(r *Registry) {
	r.Register("cd", cdBuiltin)
	r.Register("pwd", pwdBuiltin)
	r.Register("pushd", pushdBuiltin)
	r.Register("popd", popdBuiltin)
	r.Register("dirs", dirsBuiltin)
	r.Register("bookmark", bookmarkBuiltin)
}

// cdBuiltin supports ~, -, :bookmark, and -N stack index forms (spec.md
// §4.4). Bookmark resolution goes through the optional resolver hook the
// execution engine wires at startup (see internal/exec); when that hook is
// absent (unit tests), :name reports "no such bookmark". -N indexes
// ctx.State.DirStack directly, counting from the most recently pushed entry.
func cdBuiltin(ctx *Context) Result {
	target := ""
	if len(ctx.Args) > 0 {
		target = ctx.Args[0]
	}

	switch {
	case target == "" || target == "~":
		target = ctx.State.Getenv("HOME")
	case target == "-":
		if ctx.State.OldCwd == "" {
			return fail("cd: OLDPWD not set")
		}
		target = ctx.State.OldCwd
	case strings.HasPrefix(target, "~/"):
		target = filepath.Join(ctx.State.Getenv("HOME"), target[2:])
	case strings.HasPrefix(target, ":"):
		resolved, ok := resolveBookmark(ctx, target[1:])
		if !ok {
			return fail(fmt.Sprintf("cd: %s: no such bookmark", target[1:]))
		}
		target = resolved
	case strings.HasPrefix(target, "-") && len(target) > 1:
		if _, err := strconv.Atoi(target[1:]); err == nil {
			idx, _ := strconv.Atoi(target[1:])
			if idx < 0 || idx >= len(ctx.State.DirStack) {
				return fail("cd: directory stack index out of range")
			}
			target = ctx.State.DirStack[len(ctx.State.DirStack)-1-idx]
		}
	}

	if !filepath.IsAbs(target) {
		target = filepath.Join(ctx.State.Cwd, target)
	}
	info, err := os.Stat(target)
	if err != nil || !info.IsDir() {
		return fail(fmt.Sprintf("cd: %s: No such file or directory", target))
	}
	ctx.State.Chdir(target)
	return success()
}

// bookmarkResolverHook is a seam the execution engine fills in through
// SetBookmarkResolver; kept as a package-level function here so this file
// has no import-cycle-inducing dependency on internal/bookmark.
var bookmarkResolverHook func(ctx *Context, name string) (string, bool)

// SetBookmarkResolver lets internal/exec wire a live bookmark.Store lookup
// into the cd built-in without builtin importing bookmark directly.
func SetBookmarkResolver(f func(ctx *Context, name string) (string, bool)) {
	bookmarkResolverHook = f
}

func resolveBookmark(ctx *Context, name string) (string, bool) {
	if bookmarkResolverHook == nil {
		return "", false
	}
	return bookmarkResolverHook(ctx, name)
}

func pwdBuiltin(ctx *Context) Result {
	return successOut(ctx.State.Cwd + "\n")
}

func pushdBuiltin(ctx *Context) Result {
	if len(ctx.Args) == 0 {
		return fail("pushd: no other directory")
	}
	target := ctx.Args[0]
	if !filepath.IsAbs(target) {
		target = filepath.Join(ctx.State.Cwd, target)
	}
	info, err := os.Stat(target)
	if err != nil || !info.IsDir() {
		return fail(fmt.Sprintf("pushd: %s: No such file or directory", target))
	}
	ctx.State.DirStack = append(ctx.State.DirStack, ctx.State.Cwd)
	ctx.State.Chdir(target)
	return successOut(formatDirs(ctx) + "\n")
}

func popdBuiltin(ctx *Context) Result {
	if len(ctx.State.DirStack) == 0 {
		return fail("popd: directory stack empty")
	}
	top := ctx.State.DirStack[len(ctx.State.DirStack)-1]
	ctx.State.DirStack = ctx.State.DirStack[:len(ctx.State.DirStack)-1]
	ctx.State.Chdir(top)
	return successOut(formatDirs(ctx) + "\n")
}

func dirsBuiltin(ctx *Context) Result {
	return successOut(formatDirs(ctx) + "\n")
}

func formatDirs(ctx *Context) string {
	parts := []string{ctx.State.Cwd}
	for i := len(ctx.State.DirStack) - 1; i >= 0; i-- {
		parts = append(parts, ctx.State.DirStack[i])
	}
	return strings.Join(parts, " ")
}

var bookmarkOpHook func(ctx *Context, op string, args []string) Result

// SetBookmarkOperations lets internal/exec wire add/del/ls handling for
// the `bookmark` built-in into a live bookmark.Store.
func SetBookmarkOperations(f func(ctx *Context, op string, args []string) Result) {
	bookmarkOpHook = f
}

func bookmarkBuiltin(ctx *Context) Result {
	if len(ctx.Args) == 0 {
		return usageErr("bookmark: usage: bookmark add|del|ls|<name>")
	}
	if bookmarkOpHook == nil {
		return fail("bookmark: store not available")
	}
	return bookmarkOpHook(ctx, ctx.Args[0], ctx.Args[1:])
}
