package repl

import (
	"fmt"
	"strings"

	"github.com/stacksjs/krusty/internal/ast"
)

// lineSource supplies one physical line at a time to the REPL's
// continuation/here-doc readers; it abstracts over readline.Readline and
// bufio.Scanner.Text so the same filling logic works interactively and in
// script mode.
type lineSource func() (line string, ok bool)

// pendingHereDocs walks every redirection in pc looking for here-docs whose
// body hasn't been captured yet. parse.Parse never sets Body itself
// (redirect.parseOperand's doc comment: "the caller is responsible for
// capturing the multi-line body separately"), so every KindHereDoc
// redirection a fresh parse produces needs filling here.
func pendingHereDocs(pc *ast.ParsedCommand) []*ast.Redirection {
	var pending []*ast.Redirection
	for ci := range pc.Chain {
		pipeline := pc.Chain[ci].Pipeline
		for si := range pipeline {
			redirs := pipeline[si].Command.Redirections
			for ri := range redirs {
				if redirs[ri].Kind == ast.KindHereDoc {
					pending = append(pending, &redirs[ri])
				}
			}
		}
	}
	return pending
}

// fillHereDocs reads subsequent physical lines from next for each pending
// here-doc redirection, in the order they appear, stopping each one at a
// line exactly equal to its delimiter and stripping leading tabs first when
// StripTabs is set (the `<<-` form). Returns an error if input ends before
// every delimiter is found.
func fillHereDocs(pc *ast.ParsedCommand, next lineSource) error {
	for _, r := range pendingHereDocs(pc) {
		var body strings.Builder
		for {
			line, ok := next()
			if !ok {
				return fmt.Errorf("krusty: unexpected end of input looking for here-doc delimiter %q", r.Delimiter)
			}
			if r.StripTabs {
				line = strings.TrimLeft(line, "\t")
			}
			if line == r.Delimiter {
				break
			}
			body.WriteString(line)
			body.WriteByte('\n')
		}
		r.Body = body.String()
	}
	return nil
}
