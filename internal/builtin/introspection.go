package builtin

import (
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strconv"
	"strings"
)

func registerIntrospection(r *Registry) {
	r.Register("which", whichBuiltin)
	r.Register("type", typeBuiltin)
	r.Register("command", commandBuiltin)
	r.Register("builtin", builtinBuiltin)
	r.Register("hash", hashBuiltin)
	r.Register("getopts", getoptsBuiltin)
	r.Register("help", helpBuiltin)
	r.Register("history", historyBuiltin)
	r.Register("umask", umaskBuiltin)
}

// lookupRegistry is set once by internal/exec at startup so introspection
// built-ins (which need to know what else is a built-in) can see the full
// registry without this file holding a cyclic reference to itself at
// construction time.
var lookupRegistry *Registry

// BindRegistry lets internal/exec tell the introspection built-ins which
// Registry they belong to.
func BindRegistry(r *Registry) { lookupRegistry = r }

func resolvePath(ctx *Context, name string) (string, bool) {
	if cached, ok := ctx.State.Hashtable[name]; ok {
		if _, err := os.Stat(cached); err == nil {
			return cached, true
		}
	}
	path, err := exec.LookPath(name)
	if err != nil {
		return "", false
	}
	ctx.State.Hashtable[name] = path
	return path, true
}

func whichBuiltin(ctx *Context) Result {
	if len(ctx.Args) == 0 {
		return usageErr("which: usage: which name [name ...]")
	}
	var out strings.Builder
	exit := 0
	for _, name := range ctx.Args {
		if lookupRegistry != nil {
			if _, ok := lookupRegistry.Lookup(name); ok {
				fmt.Fprintf(&out, "%s: shell built-in command\n", name)
				continue
			}
		}
		path, ok := resolvePath(ctx, name)
		if !ok {
			fmt.Fprintf(&out, "%s not found\n", name)
			exit = 1
			continue
		}
		fmt.Fprintln(&out, path)
	}
	return Result{ExitCode: exit, Stdout: out.String()}
}

func typeBuiltin(ctx *Context) Result {
	if len(ctx.Args) == 0 {
		return usageErr("type: usage: type name [name ...]")
	}
	var out strings.Builder
	exit := 0
	for _, name := range ctx.Args {
		if _, ok := ctx.State.Aliases[name]; ok {
			fmt.Fprintf(&out, "%s is aliased to `%s'\n", name, ctx.State.Aliases[name])
			continue
		}
		if lookupRegistry != nil {
			if _, ok := lookupRegistry.Lookup(name); ok {
				fmt.Fprintf(&out, "%s is a shell builtin\n", name)
				continue
			}
		}
		path, ok := resolvePath(ctx, name)
		if !ok {
			fmt.Fprintf(&out, "%s: not found\n", name)
			exit = 1
			continue
		}
		fmt.Fprintf(&out, "%s is %s\n", name, path)
	}
	return Result{ExitCode: exit, Stdout: out.String()}
}

// commandBuiltin bypasses aliases/functions per spec.md §4.6; the
// execution engine is responsible for honoring that bypass when it sees
// the literal name "command" prefixing a pipeline segment, so this
// handler (reached only if "command" itself were invoked with no
// special-casing upstream) simply re-dispatches as external/built-in via
// Execute.
func commandBuiltin(ctx *Context) Result {
	if len(ctx.Args) == 0 {
		return success()
	}
	if ctx.Execute == nil {
		return fail("command: not supported in this context")
	}
	return ctx.Execute(strings.Join(ctx.Args, " "))
}

func builtinBuiltin(ctx *Context) Result {
	if len(ctx.Args) == 0 {
		return usageErr("builtin: usage: builtin name [args...]")
	}
	if lookupRegistry == nil {
		return fail("builtin: registry not available")
	}
	h, ok := lookupRegistry.Lookup(ctx.Args[0])
	if !ok {
		return fail(fmt.Sprintf("builtin: %s: not a shell builtin", ctx.Args[0]))
	}
	sub := *ctx
	sub.Args = ctx.Args[1:]
	return h(&sub)
}

func hashBuiltin(ctx *Context) Result {
	if len(ctx.Args) > 0 && ctx.Args[0] == "-r" {
		for k := range ctx.State.Hashtable {
			delete(ctx.State.Hashtable, k)
		}
		return success()
	}
	names := make([]string, 0, len(ctx.State.Hashtable))
	for n := range ctx.State.Hashtable {
		names = append(names, n)
	}
	sort.Strings(names)
	var b strings.Builder
	for _, n := range names {
		fmt.Fprintf(&b, "%s=%s\n", n, ctx.State.Hashtable[n])
	}
	return successOut(b.String())
}

// getoptsBuiltin implements enough of `getopts optstring name` to drive a
// typical built-in's own flag loop: OPTIND/OPTARG are tracked on shell
// state (SPEC_FULL.md §6).
func getoptsBuiltin(ctx *Context) Result {
	if len(ctx.Args) < 2 {
		return usageErr("getopts: usage: getopts optstring name [args]")
	}
	optstring := ctx.Args[0]
	varName := ctx.Args[1]
	positional := ctx.Args[2:]

	idx := ctx.State.Optind - 1
	if idx < 0 || idx >= len(positional) {
		return Result{ExitCode: 1, Stdout: "?\n"}
	}
	arg := positional[idx]
	if !strings.HasPrefix(arg, "-") || arg == "-" {
		return Result{ExitCode: 1, Stdout: "?\n"}
	}
	opt := arg[1:2]
	optPos := strings.Index(optstring, opt)
	if optPos < 0 {
		ctx.State.Optind++
		ctx.State.SetEnv(varName, "?")
		return Result{ExitCode: 0, Stdout: "?\n"}
	}

	needsArg := optPos+1 < len(optstring) && optstring[optPos+1] == ':'
	ctx.State.Optind++
	if needsArg {
		if len(arg) > 2 {
			ctx.State.Optarg = arg[2:]
		} else if idx+1 < len(positional) {
			ctx.State.Optarg = positional[idx+1]
			ctx.State.Optind++
		}
	}
	ctx.State.SetEnv(varName, opt)
	return success()
}

func helpBuiltin(ctx *Context) Result {
	if lookupRegistry == nil {
		return successOut("")
	}
	names := lookupRegistry.Names()
	sort.Strings(names)
	return successOut(strings.Join(names, "\n") + "\n")
}

// historyBuiltin delegates to the execution engine's bound history
// collaborator (SPEC_FULL.md §6); when unbound (unit tests) it reports an
// empty list rather than failing the whole chain.
var historyHook func(ctx *Context, flag string) Result

// SetHistoryHook lets internal/exec wire a live history.HistoryManager
// into the `history` built-in.
func SetHistoryHook(f func(ctx *Context, flag string) Result) { historyHook = f }

func historyBuiltin(ctx *Context) Result {
	flag := ""
	if len(ctx.Args) > 0 {
		flag = ctx.Args[0]
	}
	if historyHook == nil {
		return successOut("")
	}
	return historyHook(ctx, flag)
}

func umaskBuiltin(ctx *Context) Result {
	if len(ctx.Args) == 0 {
		return successOut(fmt.Sprintf("%04o\n", ctx.State.Umask))
	}
	if ctx.Args[0] == "-S" {
		return successOut(symbolicUmask(ctx.State.Umask) + "\n")
	}
	n, err := strconv.ParseUint(ctx.Args[0], 8, 32)
	if err != nil {
		return usageErr("umask: invalid mode: " + ctx.Args[0])
	}
	ctx.State.Umask = os.FileMode(n)
	return success()
}

func symbolicUmask(mode os.FileMode) string {
	perm := [3]string{}
	bits := uint32(mode)
	for i := 0; i < 3; i++ {
		shift := uint(6 - i*3)
		v := (bits >> shift) & 0o7
		s := ""
		if v&0o4 == 0 {
			s += "r"
		}
		if v&0o2 == 0 {
			s += "w"
		}
		if v&0o1 == 0 {
			s += "x"
		}
		perm[i] = s
	}
	return fmt.Sprintf("u=%s,g=%s,o=%s", invertOrAll(perm[0]), invertOrAll(perm[1]), invertOrAll(perm[2]))
}

func invertOrAll(denied string) string {
	all := "rwx"
	var b strings.Builder
	for _, c := range all {
		if !strings.ContainsRune(denied, c) {
			b.WriteRune(c)
		}
	}
	return b.String()
}
