package exec

import (
	"strings"
)

// xtraceLine formats a command for `set -x` emission, per spec.md §4.6:
// "+ name args..." with arguments re-quoted when they contain whitespace so
// the trace stays one line per command.
func xtraceLine(name string, args []string) string {
	var b strings.Builder
	b.WriteString("+ ")
	b.WriteString(name)
	for _, a := range args {
		b.WriteByte(' ')
		if strings.ContainsAny(a, " \t\n") {
			b.WriteByte('\'')
			b.WriteString(a)
			b.WriteByte('\'')
		} else {
			b.WriteString(a)
		}
	}
	b.WriteByte('\n')
	return b.String()
}
