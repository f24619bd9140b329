package repl

import (
	"errors"
	"strings"

	"github.com/stacksjs/krusty/internal/ast"
	"github.com/stacksjs/krusty/internal/parse"
)

// maxContinuationLines bounds how many PS2 lines a single logical command
// may span before giving up, guarding against a truly malformed quote never
// closing and the REPL reading forever.
const maxContinuationLines = 500

// ErrNoMoreInput is returned by readLogicalCommand when next is exhausted
// before a complete command could be read (EOF with nothing pending).
var ErrNoMoreInput = errors.New("krusty: no more input")

// readLogicalCommand reads one logical command from next: a first physical
// line, plus as many continuation lines as needed to close an unterminated
// quote, plus any here-doc bodies the resulting command requires. This is
// the single entry point both the interactive loop and script mode use,
// since parse.Parse only ever sees one already-complete logical line
// (parser.go's splitChain: "REPL callers split on newline before calling
// Parse").
func readLogicalCommand(first string, next lineSource) (*ast.ParsedCommand, error) {
	text := first
	var pc *ast.ParsedCommand

	for i := 0; ; i++ {
		p, err := parse.Parse(text)
		if err == nil {
			pc = p
			break
		}
		perr, ok := err.(*parse.ParseError)
		if !ok || perr.Kind != "UnterminatedQuote" || i >= maxContinuationLines {
			return nil, err
		}
		line, ok := next()
		if !ok {
			return nil, ErrNoMoreInput
		}
		text = text + "\n" + line
	}

	if err := fillHereDocs(pc, next); err != nil {
		return nil, err
	}
	return pc, nil
}

// isBlank reports whether line is empty or all whitespace, so the REPL loop
// can skip re-parsing and re-prompting for blank input without treating it
// as a parse failure.
func isBlank(line string) bool {
	return strings.TrimSpace(line) == ""
}
