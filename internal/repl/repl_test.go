package repl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stacksjs/krusty/internal/ast"
	"github.com/stacksjs/krusty/internal/parse"
)

// fakeLines returns a lineSource that yields lines in order, then reports
// ok=false once exhausted.
func fakeLines(lines ...string) lineSource {
	i := 0
	return func() (string, bool) {
		if i >= len(lines) {
			return "", false
		}
		line := lines[i]
		i++
		return line, true
	}
}

func TestReadLogicalCommand_SingleLine(t *testing.T) {
	pc, err := readLogicalCommand("echo hello", fakeLines())
	require.NoError(t, err)
	require.Len(t, pc.Chain, 1)
	require.Len(t, pc.Chain[0].Pipeline, 1)
	assert.Equal(t, "echo", pc.Chain[0].Pipeline[0].Command.Name)
}

func TestReadLogicalCommand_QuoteContinuation(t *testing.T) {
	pc, err := readLogicalCommand(`echo "hello`, fakeLines(`world"`))
	require.NoError(t, err)
	cmd := pc.Chain[0].Pipeline[0].Command
	require.Len(t, cmd.Args, 1)
	assert.Equal(t, "hello\nworld", cmd.Args[0])
}

func TestReadLogicalCommand_QuoteContinuation_MultipleLines(t *testing.T) {
	pc, err := readLogicalCommand(`echo "a`, fakeLines("b", `c"`))
	require.NoError(t, err)
	cmd := pc.Chain[0].Pipeline[0].Command
	require.Len(t, cmd.Args, 1)
	assert.Equal(t, "a\nb\nc", cmd.Args[0])
}

func TestReadLogicalCommand_QuoteNeverCloses(t *testing.T) {
	_, err := readLogicalCommand(`echo "unterminated`, fakeLines())
	assert.ErrorIs(t, err, ErrNoMoreInput)
}

func TestReadLogicalCommand_HereDoc(t *testing.T) {
	pc, err := readLogicalCommand("cat <<EOF", fakeLines("line one", "line two", "EOF"))
	require.NoError(t, err)
	cmd := pc.Chain[0].Pipeline[0].Command
	require.Len(t, cmd.Redirections, 1)
	assert.Equal(t, ast.KindHereDoc, cmd.Redirections[0].Kind)
	assert.Equal(t, "line one\nline two\n", cmd.Redirections[0].Body)
}

func TestReadLogicalCommand_HereDoc_StripTabs(t *testing.T) {
	pc, err := readLogicalCommand("cat <<-EOF", fakeLines("\t\tindented", "EOF"))
	require.NoError(t, err)
	cmd := pc.Chain[0].Pipeline[0].Command
	assert.Equal(t, "indented\n", cmd.Redirections[0].Body)
}

func TestReadLogicalCommand_HereDoc_MissingDelimiter(t *testing.T) {
	_, err := readLogicalCommand("cat <<EOF", fakeLines("body", "no delimiter here"))
	assert.Error(t, err)
}

func TestPendingHereDocs_NoneWhenNoRedirections(t *testing.T) {
	pc, err := parse.Parse("echo hi")
	require.NoError(t, err)
	assert.Empty(t, pendingHereDocs(pc))
}

// TestFillHereDocs_MultipleStagesEachGetTheirOwnBody builds a two-command
// chain by hand rather than through parse.Parse: with the unspaced `<<A`
// form, the parser's construct-depth tracker treats everything after the
// first `<<` as still-open body text until it sees the delimiter as a
// separate word, so `cat <<A; cat <<B` parses as a single segment.
// Exercising fillHereDocs directly against a hand-built ParsedCommand
// tests multiple pending here-docs without depending on that.
func TestFillHereDocs_MultipleStagesEachGetTheirOwnBody(t *testing.T) {
	pc := &ast.ParsedCommand{
		Chain: []ast.ChainNode{
			{Op: ast.OpSeq, Pipeline: []ast.PipelineSegment{{Command: ast.Command{
				Name:         "cat",
				Redirections: []ast.Redirection{{Kind: ast.KindHereDoc, Delimiter: "A"}},
			}}}},
			{Op: ast.OpNone, Pipeline: []ast.PipelineSegment{{Command: ast.Command{
				Name:         "cat",
				Redirections: []ast.Redirection{{Kind: ast.KindHereDoc, Delimiter: "B"}},
			}}}},
		},
	}
	err := fillHereDocs(pc, fakeLines("first", "A", "second", "B"))
	require.NoError(t, err)
	assert.Equal(t, "first\n", pc.Chain[0].Pipeline[0].Command.Redirections[0].Body)
	assert.Equal(t, "second\n", pc.Chain[1].Pipeline[0].Command.Redirections[0].Body)
}

func TestIsBlank(t *testing.T) {
	assert.True(t, isBlank(""))
	assert.True(t, isBlank("   \t  "))
	assert.False(t, isBlank("echo"))
}

func TestIsCommentLine(t *testing.T) {
	assert.True(t, isCommentLine("# a comment"))
	assert.True(t, isCommentLine("   # indented comment"))
	assert.True(t, isCommentLine("#!/usr/bin/env krusty"))
	assert.False(t, isCommentLine("echo hi # not a whole-line comment"))
	assert.False(t, isCommentLine(""))
}
