package repl

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/stacksjs/krusty/internal/exec"
)

// RunScript executes path's contents as a sequence of logical commands, one
// physical/logical line at a time (the same contract the interactive loop
// follows, since parse.Parse never accepts multi-line input directly). It
// streams output straight to engine.Stdout/Stderr and returns the exit code
// of the last command executed, or the code an `exit` built-in requested.
func RunScript(engine *exec.Engine, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 1, fmt.Errorf("krusty: %w", err)
	}
	defer f.Close()
	return runLines(engine, bufio.NewScanner(f))
}

// runLines drives engine over every logical command scanner yields,
// honoring the same continuation/here-doc contract as the interactive
// REPL but with no prompts or history side effects.
func runLines(engine *exec.Engine, scanner *bufio.Scanner) (int, error) {
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	next := func() (string, bool) {
		if !scanner.Scan() {
			return "", false
		}
		return scanner.Text(), true
	}

	code := 0
	for {
		line, ok := next()
		if !ok {
			break
		}
		if isBlank(line) || isCommentLine(line) {
			continue
		}

		pc, err := readLogicalCommand(line, next)
		if err != nil {
			return 1, err
		}

		res := engine.RunParsed(pc)
		io.WriteString(engine.Stdout, res.Stdout)
		io.WriteString(engine.Stderr, res.Stderr)
		code = res.ExitCode

		if requested, exitCode := engine.ExitRequested(); requested {
			return exitCode, nil
		}
	}
	return code, scanner.Err()
}

// isCommentLine reports whether line is a whole-line `#` comment (including
// a shebang). The tokenizer has no concept of comments at all (spec.md's
// grammar never mentions `#`), so this is script-mode's one narrow
// accommodation: skip comment/shebang lines outright rather than feeding
// them to parse.Parse as a bogus command name. An inline trailing comment
// (`echo hi # note`) is NOT stripped and remains an unsupported construct,
// consistent with the tokenizer (see DESIGN.md).
func isCommentLine(line string) bool {
	for _, c := range line {
		switch c {
		case ' ', '\t':
			continue
		case '#':
			return true
		default:
			return false
		}
	}
	return false
}
