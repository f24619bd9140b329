// Package token implements the krusty tokenizer: it splits raw input into an
// ordered sequence of ast.Token values, honoring quotes, escapes, and the
// shell's operator set (spec.md §4.1).
package token

import (
	"strings"

	"github.com/stacksjs/krusty/internal/ast"
)

// operators, longest-match-first so that e.g. "&&" is recognized before "&".
var operatorTable = []string{
	"<<<", "<<-", "&>>", "2>>",
	"<<", "&>", "2>", ">>", "||", "&&",
	"|", ";", "&", "<", ">",
}

// isFdDupStart reports whether text at pos looks like "n>&" or "n<&" where n
// is a single ASCII digit, returning the matched operator length or 0.
func isFdDupStart(s string, pos int) int {
	if pos >= len(s) || s[pos] < '0' || s[pos] > '9' {
		return 0
	}
	i := pos + 1
	if i >= len(s) || (s[i] != '>' && s[i] != '<') {
		return 0
	}
	i++
	if i >= len(s) || s[i] != '&' {
		return 0
	}
	i++
	if i < len(s) && s[i] == '-' {
		i++
		return i - pos
	}
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	if i == pos+3 {
		return 0 // bare "n>&" with nothing after is not a valid dup target
	}
	return i - pos
}

// Tokenize splits input into tokens respecting quotes, escapes, and
// operators (spec.md §4.1). Quoted substrings are preserved as single
// tokens including their surrounding quote characters; the parser strips
// them during argument post-processing (spec.md §4.2).
func Tokenize(input string) []ast.Token {
	var tokens []ast.Token
	i := 0
	n := len(input)

	for i < n {
		c := input[i]

		if c == ' ' || c == '\t' || c == '\n' {
			i++
			continue
		}

		if dup := isFdDupStart(input, i); dup > 0 {
			tokens = append(tokens, ast.Token{Text: input[i : i+dup], Kind: ast.Redirect})
			i += dup
			continue
		}

		if op, ok := matchOperator(input, i); ok {
			kind := ast.Operator
			if isRedirectOperator(op) {
				kind = ast.Redirect
			}
			tokens = append(tokens, ast.Token{Text: op, Kind: kind})
			i += len(op)
			continue
		}

		word, quote, consumed := scanWord(input, i)
		tokens = append(tokens, ast.Token{Text: word, Kind: ast.Word, Quoted: quote})
		i += consumed
	}

	return tokens
}

func isRedirectOperator(op string) bool {
	switch op {
	case "<", "<<", "<<-", "<<<", ">", ">>", "&>", "&>>", "2>", "2>>", "2>&1", "1>&2":
		return true
	default:
		return false
	}
}

func matchOperator(s string, pos int) (string, bool) {
	for _, op := range operatorTable {
		if strings.HasPrefix(s[pos:], op) {
			return op, true
		}
	}
	return "", false
}

// scanWord scans a single whitespace/operator-delimited word starting at
// pos, returning its literal text (quotes preserved), the dominant quote
// kind (None if the word is a concatenation of quoted and unquoted parts
// with no single enclosing quote), and the number of input bytes consumed.
func scanWord(s string, pos int) (string, ast.QuoteKind, int) {
	var b strings.Builder
	start := pos
	i := pos
	n := len(s)
	quote := ast.None
	sawSingleOnly := true
	sawAnyQuote := false

	for i < n {
		c := s[i]

		if c == ' ' || c == '\t' || c == '\n' {
			break
		}
		if _, ok := matchOperator(s, i); ok && !inEscapeRun(s, start, i) {
			break
		}
		if isFdDupStart(s, i) > 0 {
			break
		}

		switch c {
		case '\\':
			b.WriteByte(c)
			i++
			if i < n {
				b.WriteByte(s[i])
				i++
			}
			sawSingleOnly = false
		case '\'':
			sawAnyQuote = true
			end := indexByte(s, i+1, '\'')
			if end < 0 {
				end = n - 1
			}
			b.WriteString(s[i : min(end+1, n)])
			i = end + 1
		case '"':
			sawAnyQuote = true
			sawSingleOnly = false
			end := scanDoubleQuoteEnd(s, i+1)
			b.WriteString(s[i:min(end+1, n)])
			i = end + 1
		default:
			b.WriteByte(c)
			i++
		}
	}

	if i == start {
		// Defensive: never return a zero-length token (avoids infinite loops
		// on unexpected bytes the switch above doesn't special-case).
		b.WriteByte(s[i])
		i++
	}

	text := b.String()
	if sawAnyQuote && wholeTokenIsOneQuotedSpan(text) {
		if sawSingleOnly {
			quote = ast.Single
		} else {
			quote = ast.Double
		}
	}

	return text, quote, i - start
}

// wholeTokenIsOneQuotedSpan reports whether text is exactly one quoted span
// (e.g. `"a b"` or `'a b'`) with nothing outside the quotes.
func wholeTokenIsOneQuotedSpan(text string) bool {
	if len(text) < 2 {
		return false
	}
	q := text[0]
	if q != '\'' && q != '"' {
		return false
	}
	return text[len(text)-1] == q
}

// scanDoubleQuoteEnd finds the index of the closing double quote starting
// the search at pos, honoring backslash escapes of the quote character
// itself (spec.md §4.1 edge case: escaped quote inside double quotes).
func scanDoubleQuoteEnd(s string, pos int) int {
	i := pos
	for i < len(s) {
		if s[i] == '\\' && i+1 < len(s) {
			i += 2
			continue
		}
		if s[i] == '"' {
			return i
		}
		i++
	}
	return len(s) - 1
}

func indexByte(s string, from int, b byte) int {
	for i := from; i < len(s); i++ {
		if s[i] == b {
			return i
		}
	}
	return -1
}

// inEscapeRun is a defensive guard against misreading an operator byte that
// is actually the second half of a backslash escape; scanWord handles
// escapes itself before reaching the operator check, so this always
// reports false. Kept as a named hook for clarity at the call site.
func inEscapeRun(string, int, int) bool { return false }

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
