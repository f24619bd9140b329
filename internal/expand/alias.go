package expand

import (
	"fmt"
	"strings"

	"github.com/stacksjs/krusty/internal/ast"
	"github.com/stacksjs/krusty/internal/parse"
)

// AliasCycleError is returned when an alias name recurs within one
// expansion chain (spec.md §4.3: "if a name recurs, stop expanding ... and
// report the cycle").
type AliasCycleError struct {
	Name string
}

func (e *AliasCycleError) Error() string {
	return fmt.Sprintf("alias cycle detected at %q", e.Name)
}

// AliasDepthExceededError is returned when expansion runs past depthCap
// iterations without settling (spec.md §4.3: "hard depth cap ... surfaced
// as an error").
type AliasDepthExceededError struct {
	Cap int
}

func (e *AliasDepthExceededError) Error() string {
	return fmt.Sprintf("alias expansion exceeded depth %d", e.Cap)
}

var chainOperators = []string{"&&", "||", "|", ";"}

// Aliases resolves alias substitution for cmd against the alias map,
// re-parsing the result when an alias value introduces pipeline/chain
// operators (spec.md §4.3). On a detected cycle the last-resolved command
// is returned as-is alongside the cycle error, matching "stop expanding
// (use the command as-is) and report the cycle".
func Aliases(cmd ast.Command, aliases map[string]string, depthCap int, env EnvLookup, cwd string) (*ast.ParsedCommand, error) {
	visited := make(map[string]bool)
	current := cmd

	for depth := 0; ; depth++ {
		if depth > depthCap {
			return singleCommand(current), &AliasDepthExceededError{Cap: depthCap}
		}

		value, ok := aliases[current.Name]
		if !ok {
			return singleCommand(current), nil
		}
		if visited[current.Name] {
			return singleCommand(current), &AliasCycleError{Name: current.Name}
		}
		visited[current.Name] = true

		expanded, containsOperator := substituteAliasValue(value, current.Args, env, cwd)

		if containsOperator {
			pc, err := parse.Parse(expanded)
			if err != nil {
				return singleCommand(current), err
			}
			return pc, nil
		}

		toks := splitWords(expanded)
		next := current
		if len(toks) == 0 {
			next.Name = "true"
			next.Args = nil
		} else {
			next.Name = toks[0]
			next.Args = append([]string{}, toks[1:]...)
		}
		current = next
	}
}

func singleCommand(cmd ast.Command) *ast.ParsedCommand {
	return &ast.ParsedCommand{
		Chain: []ast.ChainNode{{
			Pipeline: []ast.PipelineSegment{{Command: cmd}},
			Op:       ast.OpNone,
		}},
	}
}

// substituteAliasValue applies the positional-placeholder and
// trailing-extra-args rules from spec.md §4.3 and reports whether the
// result contains an unquoted chain/pipe operator requiring re-parse.
func substituteAliasValue(value string, extraArgs []string, env EnvLookup, cwd string) (string, bool) {
	hadPlaceholder := strings.Contains(value, "$@") || containsPositionalPlaceholder(value)
	substituted := Positional(value, extraArgs)

	if !hadPlaceholder {
		if strings.HasSuffix(value, " ") {
			substituted = value + strings.Join(extraArgs, " ")
		} else if len(extraArgs) > 0 {
			substituted = value + " " + strings.Join(extraArgs, " ")
		}
	}

	substituted = strings.ReplaceAll(substituted, "`pwd`", cwd)
	substituted = strings.ReplaceAll(substituted, "$(pwd)", cwd)
	if env != nil {
		if withVars, err := Variables(substituted, env, false); err == nil {
			substituted = withVars
		}
	}

	for _, op := range chainOperators {
		if strings.Contains(substituted, op) {
			return substituted, true
		}
	}
	return substituted, false
}

func containsPositionalPlaceholder(value string) bool {
	for i := 0; i < len(value)-1; i++ {
		if value[i] == '$' && value[i+1] >= '1' && value[i+1] <= '9' {
			return true
		}
	}
	return false
}

func splitWords(s string) []string {
	return strings.Fields(s)
}
