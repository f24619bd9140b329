package expand

import (
	"fmt"
	"strings"
)

// EnvLookup is the minimal environment contract variable expansion needs;
// *shell.State satisfies it.
type EnvLookup interface {
	LookupEnv(name string) (string, bool)
	Getenv(name string) string
}

// NounsetError is returned when a name is unset and the shell's `nounset`
// option is active (spec.md §4.3).
type NounsetError struct {
	Name string
}

func (e *NounsetError) Error() string {
	return fmt.Sprintf("%s: unbound variable", e.Name)
}

// Variables resolves $NAME and ${NAME} references in word against env,
// substituting the empty string for unset names unless nounset is true, in
// which case it returns a *NounsetError (spec.md §4.3). $NAME tokens use
// the POSIX name charset (letters, digits, underscore; must not start with
// a digit).
func Variables(word string, env EnvLookup, nounset bool) (string, error) {
	var b strings.Builder
	i := 0
	n := len(word)
	for i < n {
		c := word[i]
		if c != '$' || i+1 >= n {
			b.WriteByte(c)
			i++
			continue
		}

		if word[i+1] == '{' {
			end := strings.IndexByte(word[i+2:], '}')
			if end < 0 {
				b.WriteByte(c)
				i++
				continue
			}
			name := word[i+2 : i+2+end]
			val, err := resolve(name, env, nounset)
			if err != nil {
				return "", err
			}
			b.WriteString(val)
			i += 2 + end + 1
			continue
		}

		name, length := scanVarName(word, i+1)
		if length == 0 {
			b.WriteByte(c)
			i++
			continue
		}
		val, err := resolve(name, env, nounset)
		if err != nil {
			return "", err
		}
		b.WriteString(val)
		i += 1 + length
	}
	return b.String(), nil
}

func resolve(name string, env EnvLookup, nounset bool) (string, error) {
	val, ok := env.LookupEnv(name)
	if !ok {
		if nounset {
			return "", &NounsetError{Name: name}
		}
		return "", nil
	}
	return val, nil
}

func scanVarName(s string, pos int) (string, int) {
	if pos >= len(s) {
		return "", 0
	}
	c := s[pos]
	if !isNameStart(c) {
		return "", 0
	}
	end := pos + 1
	for end < len(s) && isNameChar(s[end]) {
		end++
	}
	return s[pos:end], end - pos
}

func isNameStart(c byte) bool {
	return c == '_' || (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z')
}

func isNameChar(c byte) bool {
	return isNameStart(c) || (c >= '0' && c <= '9')
}

// Positional substitutes $1..$N and $@ within word using args (spec.md
// §4.3's alias-placeholder rule). $@ expands to all args joined by a single
// space, re-quoting any argument containing whitespace in double quotes.
func Positional(word string, args []string) string {
	var b strings.Builder
	i := 0
	n := len(word)
	for i < n {
		c := word[i]
		if c != '$' || i+1 >= n {
			b.WriteByte(c)
			i++
			continue
		}
		if word[i+1] == '@' {
			b.WriteString(joinRequoted(args))
			i += 2
			continue
		}
		if word[i+1] >= '1' && word[i+1] <= '9' {
			j := i + 1
			for j < n && word[j] >= '0' && word[j] <= '9' {
				j++
			}
			idx := atoiSimple(word[i+1 : j])
			if idx >= 1 && idx <= len(args) {
				b.WriteString(args[idx-1])
			}
			i = j
			continue
		}
		b.WriteByte(c)
		i++
	}
	return b.String()
}

func joinRequoted(args []string) string {
	parts := make([]string, len(args))
	for i, a := range args {
		if strings.ContainsAny(a, " \t\n") {
			parts[i] = `"` + a + `"`
		} else {
			parts[i] = a
		}
	}
	return strings.Join(parts, " ")
}

func atoiSimple(s string) int {
	n := 0
	for _, c := range s {
		n = n*10 + int(c-'0')
	}
	return n
}
