package expand

import "strings"

// HereDocBody joins lines up to (but excluding) a line equal to delim into
// the here-doc body, per spec.md §4.3. When stripTabs is set (the `<<-`
// form), leading tabs are stripped from every body line, and from the
// delimiter line before the equality comparison. Returns the body (with a
// trailing newline per line) and the number of lines consumed including
// the terminator line.
func HereDocBody(lines []string, delim string, stripTabs bool) (string, int) {
	var b strings.Builder
	for i, line := range lines {
		compare := line
		if stripTabs {
			compare = strings.TrimLeft(line, "\t")
		}
		if compare == delim {
			return b.String(), i + 1
		}
		if stripTabs {
			line = strings.TrimLeft(line, "\t")
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}
	return b.String(), len(lines)
}
