// Package parse turns tokenized input into an ast.ParsedCommand: it splits
// top-level chain segments on unquoted ;, &&, ||, splits each segment into
// pipeline stages on unquoted |, extracts redirections, and detects
// backgrounding (spec.md §4.2).
package parse

import (
	"fmt"
	"strings"

	"github.com/stacksjs/krusty/internal/ast"
	"github.com/stacksjs/krusty/internal/redirect"
	"github.com/stacksjs/krusty/internal/token"
)

// ParseError reports a parse failure at a byte offset into the original
// input, per spec.md §4.2 ("fails with UnterminatedQuote (index = end of
// input)").
type ParseError struct {
	Kind  string
	Index int
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s at index %d", e.Kind, e.Index)
}

// Parse parses input into a ParsedCommand, or returns a *ParseError.
func Parse(input string) (*ast.ParsedCommand, error) {
	if err := checkQuoteBalance(input); err != nil {
		return nil, err
	}

	segments := splitChain(input)

	pc := &ast.ParsedCommand{}
	for i, seg := range segments {
		text := strings.TrimSpace(seg.text)
		if text == "" {
			continue
		}
		pipeline, err := parsePipeline(text)
		if err != nil {
			return nil, err
		}
		op := ast.OpNone
		if i < len(segments) {
			op = seg.followingOp
		}
		pc.Chain = append(pc.Chain, ast.ChainNode{Pipeline: pipeline, Op: op})
	}

	return pc, nil
}

// checkQuoteBalance walks the input tracking single/double quote state and
// backslash escapes, returning an UnterminatedQuote ParseError if a quote is
// left open at end of input.
func checkQuoteBalance(input string) error {
	inSingle, inDouble := false, false
	escaped := false
	for i := 0; i < len(input); i++ {
		c := input[i]
		if escaped {
			escaped = false
			continue
		}
		switch {
		case c == '\\' && !inSingle:
			escaped = true
		case c == '\'' && !inDouble:
			inSingle = !inSingle
		case c == '"' && !inSingle:
			inDouble = !inDouble
		}
	}
	if inSingle || inDouble {
		return &ParseError{Kind: "UnterminatedQuote", Index: len(input)}
	}
	return nil
}

type chainSegment struct {
	text        string
	followingOp ast.ChainOp
}

// depthTracker tracks nesting of shell-script constructs (if/fi, for/while
// /until-do-done, case/esac, { }) and here-doc bodies that suppress operator
// recognition per spec.md §4.2.
type depthTracker struct {
	depth      int
	inHeredoc  bool
	hdDelim    string
}

// splitChain splits input into top-level chain segments on unquoted ;, &&,
// ||, tracking quote state and construct depth so operators inside quotes,
// here-doc bodies, or compound-command bodies are not treated as splitters.
func splitChain(input string) []chainSegment {
	var segs []chainSegment
	var cur strings.Builder

	inSingle, inDouble := false, false
	escaped := false
	dt := &depthTracker{}
	i := 0
	n := len(input)

	flush := func(op ast.ChainOp) {
		segs = append(segs, chainSegment{text: cur.String(), followingOp: op})
		cur.Reset()
	}

	for i < n {
		c := input[i]

		if escaped {
			cur.WriteByte(c)
			escaped = false
			i++
			continue
		}
		if c == '\\' && !inSingle {
			cur.WriteByte(c)
			escaped = true
			i++
			continue
		}
		if c == '\'' && !inDouble {
			inSingle = !inSingle
			cur.WriteByte(c)
			i++
			continue
		}
		if c == '"' && !inSingle {
			inDouble = !inDouble
			cur.WriteByte(c)
			i++
			continue
		}

		if inSingle || inDouble {
			cur.WriteByte(c)
			i++
			continue
		}

		if c == '\n' && dt.inHeredoc {
			// Only relevant when embedded in scripts; REPL callers split on
			// newline before calling Parse. Still honored for `eval`/`source`.
			cur.WriteByte(c)
			i++
			continue
		}

		updateConstructDepth(input, i, dt, &cur)

		if dt.depth > 0 || dt.inHeredoc {
			cur.WriteByte(c)
			i++
			continue
		}

		if strings.HasPrefix(input[i:], "&&") {
			flush(ast.OpAnd)
			i += 2
			continue
		}
		if strings.HasPrefix(input[i:], "||") {
			flush(ast.OpOr)
			i += 2
			continue
		}
		if c == ';' {
			flush(ast.OpSeq)
			i++
			continue
		}

		cur.WriteByte(c)
		i++
	}
	segs = append(segs, chainSegment{text: cur.String(), followingOp: ast.OpNone})

	return segs
}

// constructOpeners and constructClosers list the keywords that open and
// close a compound construct; updateConstructDepth uses them to suppress
// chain-operator splitting inside if/for/while/until/case bodies (spec.md §4.2).
var constructOpeners = map[string]bool{"if": true, "for": true, "while": true, "until": true, "case": true}
var constructClosers = map[string]string{"fi": "if", "done": "for/while/until", "esac": "case"}

func updateConstructDepth(input string, pos int, dt *depthTracker, cur *strings.Builder) {
	if pos > 0 && !isWordBoundary(input, pos) {
		return
	}
	if input[pos] == '{' {
		dt.depth++
		return
	}
	if input[pos] == '}' && dt.depth > 0 {
		dt.depth--
		return
	}
	word, _ := nextWord(input, pos)
	if constructOpeners[word] {
		dt.depth++
	} else if _, ok := constructClosers[word]; ok && dt.depth > 0 {
		dt.depth--
	} else if strings.HasPrefix(input[pos:], "<<") {
		delim, isStrip := heredocDelimiter(input, pos)
		if delim != "" {
			dt.inHeredoc = true
			dt.hdDelim = delim
			_ = isStrip
		}
	} else if dt.inHeredoc && word == dt.hdDelim {
		dt.inHeredoc = false
		dt.hdDelim = ""
	}
}

func isWordBoundary(s string, pos int) bool {
	prev := s[pos-1]
	return prev == ' ' || prev == '\t' || prev == '\n' || prev == ';' || prev == '&' || prev == '|'
}

func nextWord(s string, pos int) (string, int) {
	i := pos
	for i < len(s) && s[i] != ' ' && s[i] != '\t' && s[i] != '\n' && s[i] != ';' && s[i] != '&' && s[i] != '|' {
		i++
	}
	return s[pos:i], i - pos
}

func heredocDelimiter(s string, pos int) (string, bool) {
	rest := s[pos:]
	strip := false
	if strings.HasPrefix(rest, "<<-") {
		strip = true
		rest = rest[3:]
	} else if strings.HasPrefix(rest, "<<<") {
		return "", false // here-string, not here-doc
	} else if strings.HasPrefix(rest, "<<") {
		rest = rest[2:]
	} else {
		return "", false
	}
	rest = strings.TrimLeft(rest, " \t")
	word, _ := nextWord(rest, 0)
	word = strings.Trim(word, `"'`)
	return word, strip
}

// parsePipeline splits a chain segment into pipeline stages on unquoted |
// (not || — that was already consumed by splitChain), extracts
// redirections and background detection per stage, then tokenizes the
// remaining text into a Command.
func parsePipeline(text string) ([]ast.PipelineSegment, error) {
	stages := splitPipeStages(text)

	var segs []ast.PipelineSegment
	for _, stageText := range stages {
		stageText = strings.TrimSpace(stageText)
		if stageText == "" {
			continue
		}
		cmd, err := parseStage(stageText)
		if err != nil {
			return nil, err
		}
		segs = append(segs, ast.PipelineSegment{Command: cmd})
	}
	return segs, nil
}

// splitPipeStages splits on unquoted single "|" that is not part of "||".
func splitPipeStages(text string) []string {
	var stages []string
	var cur strings.Builder
	inSingle, inDouble := false, false
	escaped := false

	for i := 0; i < len(text); i++ {
		c := text[i]
		if escaped {
			cur.WriteByte(c)
			escaped = false
			continue
		}
		if c == '\\' && !inSingle {
			cur.WriteByte(c)
			escaped = true
			continue
		}
		if c == '\'' && !inDouble {
			inSingle = !inSingle
			cur.WriteByte(c)
			continue
		}
		if c == '"' && !inSingle {
			inDouble = !inDouble
			cur.WriteByte(c)
			continue
		}
		if !inSingle && !inDouble && c == '|' {
			next := byte(0)
			if i+1 < len(text) {
				next = text[i+1]
			}
			if next == '|' {
				// shouldn't happen post-splitChain, but be defensive
				cur.WriteByte(c)
				continue
			}
			stages = append(stages, cur.String())
			cur.Reset()
			continue
		}
		cur.WriteByte(c)
	}
	stages = append(stages, cur.String())
	return stages
}

// parseStage extracts redirections (§4.5), detects a trailing unquoted &
// as background, then tokenizes the remainder into a Command whose first
// token is the command name and whose rest are arguments.
func parseStage(stageText string) (ast.Command, error) {
	remaining, redirs, err := redirect.Extract(stageText)
	if err != nil {
		return ast.Command{}, err
	}

	background := false
	trimmed := strings.TrimRight(remaining, " \t")
	if strings.HasSuffix(trimmed, "&") && !strings.HasSuffix(trimmed, "&&") {
		background = true
		trimmed = strings.TrimRight(trimmed[:len(trimmed)-1], " \t")
	}

	toks := token.Tokenize(trimmed)
	var words []string
	for _, t := range toks {
		if t.Kind != ast.Word {
			continue
		}
		words = append(words, postProcessArg(t))
	}

	cmd := ast.Command{
		Raw:          stageText,
		Background:   background,
		Redirections: redirs,
	}
	if len(words) > 0 {
		cmd.Name = words[0]
		cmd.Args = append([]string{}, words[1:]...)
	}
	cmd.OriginalArgs = append([]string{}, cmd.Args...)
	return cmd, nil
}

// postProcessArg collapses backslash escapes and strips matching outer
// quotes from an unquoted token per spec.md §4.2's argument
// post-processing rule. Quoting that must survive for later alias
// placeholder substitution is preserved by the expansion engine reading
// ast.Token.Quoted directly rather than by this function.
func postProcessArg(t ast.Token) string {
	s := t.Text
	if len(s) >= 2 {
		if (s[0] == '\'' && s[len(s)-1] == '\'') || (s[0] == '"' && s[len(s)-1] == '"') {
			inner := s[1 : len(s)-1]
			if t.Quoted == ast.Single {
				return inner
			}
			return unescapeDouble(inner)
		}
	}
	return unescapeOutsideQuotes(s)
}

func unescapeDouble(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) {
			switch s[i+1] {
			case '"', '\\', '$', '`':
				b.WriteByte(s[i+1])
				i++
				continue
			}
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

func unescapeOutsideQuotes(s string) string {
	var b strings.Builder
	inSingle, inDouble := false, false
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '\'' && !inDouble:
			inSingle = !inSingle
		case c == '"' && !inSingle:
			inDouble = !inDouble
		case c == '\\' && !inSingle && i+1 < len(s):
			b.WriteByte(s[i+1])
			i++
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}
