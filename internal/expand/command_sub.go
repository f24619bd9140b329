package expand

import "strings"

// Runner executes a sub-shell script and returns its captured stdout
// (newline not yet stripped), matching spec.md §4.3's "execute cmd in a
// sub-context, capture stdout". The execution engine supplies the concrete
// implementation; expand never imports internal/exec directly, avoiding an
// import cycle (exec itself calls into expand to resolve arguments).
type Runner func(script string) (stdout string, exitCode int, err error)

// CommandSubstitutions rewrites every $(...) and `...` span in word with
// the captured, trailing-newline-stripped stdout of running it through
// run, per spec.md §4.3. Spans are matched respecting nested parentheses
// for $(...) and are left untouched if unterminated.
func CommandSubstitutions(word string, run Runner) (string, error) {
	var b strings.Builder
	i := 0
	n := len(word)
	for i < n {
		if strings.HasPrefix(word[i:], "$(") {
			end := matchParen(word, i+1)
			if end < 0 {
				b.WriteString(word[i:])
				break
			}
			script := word[i+2 : end]
			out, _, err := run(script)
			if err != nil {
				return "", err
			}
			b.WriteString(strings.TrimRight(out, "\n"))
			i = end + 1
			continue
		}
		if word[i] == '`' {
			end := strings.IndexByte(word[i+1:], '`')
			if end < 0 {
				b.WriteString(word[i:])
				break
			}
			script := word[i+1 : i+1+end]
			out, _, err := run(script)
			if err != nil {
				return "", err
			}
			b.WriteString(strings.TrimRight(out, "\n"))
			i = i + 1 + end + 1
			continue
		}
		b.WriteByte(word[i])
		i++
	}
	return b.String(), nil
}

func matchParen(s string, openIdx int) int {
	depth := 0
	for i := openIdx; i < len(s); i++ {
		switch s[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}
