package builtin

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/shlex"
)

func registerIO(r *Registry) {
	r.Register("echo", echoBuiltin)
	r.Register("printf", printfBuiltin)
	r.Register("read", readBuiltin)
}

// echoBuiltin implements `echo [-n]` (spec.md §4.4). Backslash escapes
// (\n, \t, ...) are expanded, matching the common `echo -e`-style
// behavior this shell enables unconditionally since it has no bare-POSIX
// compatibility mode to preserve.
func echoBuiltin(ctx *Context) Result {
	args := ctx.Args
	newline := true
	for len(args) > 0 && args[0] == "-n" {
		newline = false
		args = args[1:]
	}
	out := strings.Join(args, " ")
	out = expandBackslashEscapes(out)
	if newline {
		out += "\n"
	}
	return successOut(out)
}

func expandBackslashEscapes(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) {
			switch s[i+1] {
			case 'n':
				b.WriteByte('\n')
				i++
				continue
			case 't':
				b.WriteByte('\t')
				i++
				continue
			case '\\':
				b.WriteByte('\\')
				i++
				continue
			}
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

// printfBuiltin implements a subset of POSIX printf: %s, %d, %q, %o, %x,
// %X, %f, %e, %g, and %b (backslash-escape expansion), with width/
// precision/flags passed straight through to Go's fmt verbs where the verb
// names coincide (spec.md §4.4).
func printfBuiltin(ctx *Context) Result {
	if len(ctx.Args) == 0 {
		return usageErr("printf: usage: printf format [args...]")
	}
	format := ctx.Args[0]
	values := ctx.Args[1:]

	var out strings.Builder
	vi := 0
	nextArg := func() string {
		if vi < len(values) {
			v := values[vi]
			vi++
			return v
		}
		return ""
	}

	for i := 0; i < len(format); i++ {
		c := format[i]
		if c != '%' {
			out.WriteByte(c)
			continue
		}
		j := i + 1
		for j < len(format) && strings.ContainsRune("-+0123456789.", rune(format[j])) {
			j++
		}
		if j >= len(format) {
			out.WriteByte('%')
			break
		}
		verb := format[j]
		spec := format[i : j+1]
		switch verb {
		case 's':
			fmt.Fprintf(&out, spec, nextArg())
		case 'd':
			n, _ := strconv.ParseInt(nextArg(), 10, 64)
			fmt.Fprintf(&out, spec, n)
		case 'o', 'x', 'X':
			n, _ := strconv.ParseInt(nextArg(), 10, 64)
			fmt.Fprintf(&out, spec, n)
		case 'f', 'e', 'g':
			f, _ := strconv.ParseFloat(nextArg(), 64)
			fmt.Fprintf(&out, spec, f)
		case 'q':
			out.WriteString(strconv.Quote(nextArg()))
		case 'b':
			out.WriteString(expandBackslashEscapes(nextArg()))
		case '%':
			out.WriteByte('%')
		default:
			out.WriteString(spec)
		}
		i = j
	}
	return successOut(out.String())
}

// readBuiltin implements a subset of `read`: -p prompt (emitted to
// Stdout so the executor can wire it before the actual read), -r raw (no
// backslash processing), -a NAME (quote-aware split of the line into
// NAME_0, NAME_1, ... plus NAME_count). -s is accepted without any
// terminal-echo control; -n, -N, -t, -u and -d consume their value
// argument but do not change how the line is read: one whole line is
// always read from Stdin.
func readBuiltin(ctx *Context) Result {
	args := ctx.Args
	raw := false
	arrayName := ""
	prompt := ""
	names := []string{}

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "-r":
			raw = true
		case "-a":
			i++
			if i < len(args) {
				arrayName = args[i]
			}
		case "-p":
			i++
			if i < len(args) {
				prompt = args[i]
			}
		case "-s", "-n", "-N", "-t", "-u", "-d":
			if args[i] != "-s" {
				i++ // consume the value argument these flags take
			}
		default:
			names = append(names, args[i])
		}
	}
	if len(names) == 0 && arrayName == "" {
		names = []string{"REPLY"}
	}

	if ctx.Stdin == nil {
		return fail("read: no input available")
	}
	scanner := bufio.NewScanner(ctx.Stdin)
	if !scanner.Scan() {
		return Result{ExitCode: 1, Stdout: prompt}
	}
	line := scanner.Text()
	if !raw {
		line = expandBackslashEscapes(line)
	}

	if arrayName != "" {
		fields := splitArrayFields(line)
		for i, f := range fields {
			ctx.State.SetEnv(fmt.Sprintf("%s_%d", arrayName, i), f)
		}
		ctx.State.SetEnv(arrayName+"_count", strconv.Itoa(len(fields)))
		return Result{ExitCode: 0, Stdout: prompt}
	}

	fields := strings.SplitN(line, " ", len(names))
	for i, name := range names {
		val := ""
		if i < len(fields) {
			val = strings.TrimSpace(fields[i])
		}
		ctx.State.SetEnv(name, val)
	}
	return Result{ExitCode: 0, Stdout: prompt}
}

// splitArrayFields splits a `read -a` line on IFS-like word boundaries,
// honoring quoting (`read -a parts <<< "one 'two three'"` yields two
// elements, not three). Falls back to a plain whitespace split when the
// line has unbalanced quotes, since `read` must never fail outright over
// malformed quoting the way a script parser would.
func splitArrayFields(line string) []string {
	if fields, err := shlex.Split(line); err == nil {
		return fields
	}
	return strings.Fields(line)
}
