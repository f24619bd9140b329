// Package expand implements the alias/variable/brace/command-substitution
// expansion engine (spec.md §4.3): cycle-safe alias re-expansion, $NAME/
// ${NAME} parameter expansion, {a,b,c}/{1..N} brace expansion, $(...)/`...`
// command substitution, and here-doc body capture.
package expand

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
	"sync"

	"github.com/stacksjs/krusty/internal/ast"
)

// Engine bundles the expansion passes with a bounded memoization cache
// keyed on (input, environment snapshot hash), per spec.md §4.3 ("the
// engine may memoize expansions ... cache limits are configurable").
type Engine struct {
	mu       sync.Mutex
	cache    map[string]string
	cacheCap int
}

// NewEngine creates an Engine with the given cache entry limit. A limit of
// 0 disables memoization.
func NewEngine(cacheCap int) *Engine {
	return &Engine{cache: make(map[string]string), cacheCap: cacheCap}
}

// ExpandWord runs command substitution and then variable expansion over a
// single word, in that order, so $NAME references in a substitution's
// output are expanded too. Results are memoized when caching is enabled.
func (e *Engine) ExpandWord(word string, env EnvLookup, nounset bool, run Runner) (string, error) {
	key := e.cacheKey(word, env)
	if e.cacheCap > 0 {
		e.mu.Lock()
		if v, ok := e.cache[key]; ok {
			e.mu.Unlock()
			return v, nil
		}
		e.mu.Unlock()
	}

	withSub, err := CommandSubstitutions(word, run)
	if err != nil {
		return "", err
	}
	withVars, err := Variables(withSub, env, nounset)
	if err != nil {
		return "", err
	}

	if e.cacheCap > 0 {
		e.mu.Lock()
		if len(e.cache) >= e.cacheCap {
			e.evictOneLocked()
		}
		e.cache[key] = withVars
		e.mu.Unlock()
	}
	return withVars, nil
}

// evictOneLocked drops an arbitrary entry; callers hold mu. Map iteration
// order is randomized by the runtime, which is an adequate approximation
// of LRU for a small bounded cache without adding bookkeeping overhead.
func (e *Engine) evictOneLocked() {
	for k := range e.cache {
		delete(e.cache, k)
		return
	}
}

func (e *Engine) cacheKey(word string, env EnvLookup) string {
	h := sha256.New()
	h.Write([]byte(word))
	if snapshot, ok := env.(envSnapshotter); ok {
		pairs := snapshot.EnvPairsSnapshot()
		sort.Strings(pairs)
		for _, p := range pairs {
			h.Write([]byte(p))
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}

// envSnapshotter lets an EnvLookup implementation contribute its full
// environment to the cache key; implementations that don't support it
// (e.g. test doubles) simply key on word text alone.
type envSnapshotter interface {
	EnvPairsSnapshot() []string
}

// ExpandArgWithBraces applies brace expansion to a single already
// variable/command-substituted argument, returning one or more resulting
// argument strings (spec.md §4.3).
func ExpandArgWithBraces(arg string) []string {
	return Braces(arg)
}

// ExpandArgs applies command substitution, variable expansion, and brace
// expansion (in that order) to every argument of cmd, flattening any brace
// expansions into additional arguments.
func (e *Engine) ExpandArgs(cmd *ast.Command, env EnvLookup, nounset bool, run Runner) error {
	var out []string
	for _, arg := range cmd.Args {
		expanded, err := e.ExpandWord(arg, env, nounset, run)
		if err != nil {
			return err
		}
		out = append(out, ExpandArgWithBraces(expanded)...)
	}
	cmd.Args = out
	return nil
}

// Tilde expands a leading ~ or ~/... to home, per the shell's conventional
// tilde expansion (spec.md §4.3 lists tilde expansion in the component
// table's "share" row even though §4.3's prose doesn't spell out the rule
// explicitly).
func Tilde(word, home string) string {
	if word == "~" {
		return home
	}
	if strings.HasPrefix(word, "~/") {
		return home + word[1:]
	}
	return word
}
