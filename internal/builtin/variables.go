package builtin

import (
	"fmt"
	"sort"
	"strings"
)

func registerVariables(r *Registry) {
	r.Register("alias", aliasBuiltin)
	r.Register("unalias", unaliasBuiltin)
	r.Register("export", exportBuiltin)
	r.Register("set", setBuiltin)
	r.Register("unset", unsetBuiltin)
	r.Register("declare", declareBuiltin)
	r.Register("readonly", readonlyBuiltin)
	r.Register("local", localBuiltin)
	r.Register("env", envBuiltin)
}

func aliasBuiltin(ctx *Context) Result {
	if len(ctx.Args) == 0 {
		names := make([]string, 0, len(ctx.State.Aliases))
		for n := range ctx.State.Aliases {
			names = append(names, n)
		}
		sort.Strings(names)
		var b strings.Builder
		for _, n := range names {
			fmt.Fprintf(&b, "alias %s='%s'\n", n, ctx.State.Aliases[n])
		}
		return successOut(b.String())
	}

	var out strings.Builder
	exit := 0
	for _, arg := range ctx.Args {
		name, value, hasEq := strings.Cut(arg, "=")
		if !hasEq {
			v, ok := ctx.State.Aliases[name]
			if !ok {
				fmt.Fprintf(&out, "alias: %s: not found\n", name)
				exit = 1
				continue
			}
			fmt.Fprintf(&out, "alias %s='%s'\n", name, v)
			continue
		}
		ctx.State.Aliases[name] = value
	}
	return Result{ExitCode: exit, Stdout: out.String()}
}

func unaliasBuiltin(ctx *Context) Result {
	if len(ctx.Args) == 0 {
		return usageErr("unalias: usage: unalias name [name ...]")
	}
	exit := 0
	var errs strings.Builder
	for _, name := range ctx.Args {
		if _, ok := ctx.State.Aliases[name]; !ok {
			fmt.Fprintf(&errs, "unalias: %s: not found\n", name)
			exit = 1
			continue
		}
		delete(ctx.State.Aliases, name)
	}
	return Result{ExitCode: exit, Stderr: errs.String()}
}

func exportBuiltin(ctx *Context) Result {
	if len(ctx.Args) == 0 {
		var b strings.Builder
		for _, kv := range ctx.State.EnvPairs() {
			fmt.Fprintf(&b, "export %s=%q\n", kv.Name, kv.Value)
		}
		return successOut(b.String())
	}
	for _, arg := range ctx.Args {
		name, value, hasEq := strings.Cut(arg, "=")
		if !hasEq {
			value = ctx.State.Getenv(name)
		}
		if err := ctx.State.SetEnv(name, value); err != nil {
			return fail("export: " + err.Error())
		}
	}
	return success()
}

// setBuiltin implements `set -e/-u/-x/-o pipefail` (and the `+` forms to
// clear a flag), per spec.md §4.4.
func setBuiltin(ctx *Context) Result {
	for i := 0; i < len(ctx.Args); i++ {
		arg := ctx.Args[i]
		switch {
		case arg == "-e":
			ctx.State.Options.Errexit = true
		case arg == "+e":
			ctx.State.Options.Errexit = false
		case arg == "-u":
			ctx.State.Options.Nounset = true
		case arg == "+u":
			ctx.State.Options.Nounset = false
		case arg == "-x":
			ctx.State.Options.Xtrace = true
		case arg == "+x":
			ctx.State.Options.Xtrace = false
		case arg == "-o" && i+1 < len(ctx.Args):
			i++
			if err := setOption(ctx, ctx.Args[i], true); err != nil {
				return usageErr(err.Error())
			}
		case arg == "+o" && i+1 < len(ctx.Args):
			i++
			if err := setOption(ctx, ctx.Args[i], false); err != nil {
				return usageErr(err.Error())
			}
		default:
			return usageErr("set: unrecognized option " + arg)
		}
	}
	return success()
}

func setOption(ctx *Context, name string, on bool) error {
	switch name {
	case "pipefail":
		ctx.State.Options.Pipefail = on
	case "errexit":
		ctx.State.Options.Errexit = on
	case "nounset":
		ctx.State.Options.Nounset = on
	case "xtrace":
		ctx.State.Options.Xtrace = on
	default:
		return fmt.Errorf("set: unknown option %q", name)
	}
	return nil
}

func unsetBuiltin(ctx *Context) Result {
	if len(ctx.Args) == 0 {
		return usageErr("unset: usage: unset name [name ...]")
	}
	for _, name := range ctx.Args {
		if err := ctx.State.UnsetEnv(name); err != nil {
			return fail("unset: " + err.Error())
		}
	}
	return success()
}

func declareBuiltin(ctx *Context) Result {
	for _, arg := range ctx.Args {
		if strings.HasPrefix(arg, "-") {
			continue
		}
		name, value, hasEq := strings.Cut(arg, "=")
		if !hasEq {
			value = ctx.State.Getenv(name)
		}
		if err := ctx.State.SetEnv(name, value); err != nil {
			return fail("declare: " + err.Error())
		}
	}
	return success()
}

func readonlyBuiltin(ctx *Context) Result {
	for _, arg := range ctx.Args {
		name, value, hasEq := strings.Cut(arg, "=")
		if hasEq {
			if err := ctx.State.SetEnv(name, value); err != nil {
				return fail("readonly: " + err.Error())
			}
		}
		ctx.State.MarkReadonly(name)
	}
	return success()
}

// localBuiltin treats names as ordinary shell-scoped variables; this core
// has no function-call stack (out of scope), so `local` behaves like
// `declare` at the top level.
func localBuiltin(ctx *Context) Result {
	return declareBuiltin(ctx)
}

func envBuiltin(ctx *Context) Result {
	var b strings.Builder
	for _, kv := range ctx.State.EnvList() {
		b.WriteString(kv)
		b.WriteByte('\n')
	}
	return successOut(b.String())
}
