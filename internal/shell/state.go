// Package shell owns the single mutable shell-state container (spec.md §3
// "Shell state") that built-ins and the execution engine read and mutate
// directly: cwd, environment, aliases, options, jobs, hashtable, and the
// getopts cursor. No global singletons; callers thread a *State through.
package shell

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/stacksjs/krusty/internal/job"
)

// Options are the boolean `set -e/-u/-x/-o pipefail` switches (spec.md §4.4).
type Options struct {
	Errexit  bool
	Nounset  bool
	Xtrace   bool
	Pipefail bool
}

// EnvVar is one entry of the ordered environment map; order is preserved
// for `env`/`export -p` style listing even though lookup is by name.
type EnvVar struct {
	Name  string
	Value string
}

// State is the shell's single mutable container (spec.md §3). It is
// single-writer: the main REPL loop and the built-ins/executor it calls
// mutate it synchronously; nothing here is safe for concurrent writers
// other than the fields explicitly guarded by mu (the job table, which the
// SIGCHLD-driven reaper also touches).
type State struct {
	Cwd    string
	OldCwd string

	env     []EnvVar
	envIdx  map[string]int
	readonly map[string]bool

	Aliases map[string]string

	Options Options

	LastExitCode  int
	LastDurationMS int64

	mu   sync.Mutex
	Jobs *job.Table

	Hashtable map[string]string

	Umask os.FileMode

	// Optind/Optarg back the getopts built-in's cursor state.
	Optind int
	Optarg string

	DirStack []string

	// AliasDepthCap bounds alias re-expansion recursion (spec.md §4.3,
	// configurable via internal/config.Config.AliasDepthCap).
	AliasDepthCap int
}

// New creates a shell State seeded from the current process environment and
// working directory, per spec.md §3's lifecycle ("created at shell start").
func New() (*State, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("krusty: cannot determine working directory: %w", err)
	}

	s := &State{
		Cwd:       cwd,
		Aliases:   make(map[string]string),
		Hashtable: make(map[string]string),
		Jobs:      job.NewTable(),
		Umask:     0o022,
		Optind:    1,
		envIdx:    make(map[string]int),
		readonly:  make(map[string]bool),
		AliasDepthCap: 10,
	}
	for _, kv := range os.Environ() {
		name, value := splitKV(kv)
		s.SetEnv(name, value)
	}
	if s.Getenv("PWD") == "" {
		s.SetEnv("PWD", cwd)
	}
	return s, nil
}

func splitKV(kv string) (string, string) {
	for i := 0; i < len(kv); i++ {
		if kv[i] == '=' {
			return kv[:i], kv[i+1:]
		}
	}
	return kv, ""
}

// Getenv looks up name in the shell's environment, per spec.md §4.3
// ("unset names produce empty string unless nounset is set").
func (s *State) Getenv(name string) string {
	if i, ok := s.envIdx[name]; ok {
		return s.env[i].Value
	}
	return ""
}

// LookupEnv reports whether name is set, distinguishing unset from set-empty
// for `nounset` semantics.
func (s *State) LookupEnv(name string) (string, bool) {
	if i, ok := s.envIdx[name]; ok {
		return s.env[i].Value, true
	}
	return "", false
}

// SetEnv sets or updates name=value, preserving insertion order for
// first-time names (spec.md §3: "environment: ordered map").
func (s *State) SetEnv(name, value string) error {
	if s.readonly[name] {
		return fmt.Errorf("%s: readonly variable", name)
	}
	if i, ok := s.envIdx[name]; ok {
		s.env[i].Value = value
		return nil
	}
	s.envIdx[name] = len(s.env)
	s.env = append(s.env, EnvVar{Name: name, Value: value})
	return nil
}

// UnsetEnv removes name from the environment entirely.
func (s *State) UnsetEnv(name string) error {
	if s.readonly[name] {
		return fmt.Errorf("%s: readonly variable", name)
	}
	i, ok := s.envIdx[name]
	if !ok {
		return nil
	}
	s.env = append(s.env[:i], s.env[i+1:]...)
	delete(s.envIdx, name)
	for n, idx := range s.envIdx {
		if idx > i {
			s.envIdx[n] = idx - 1
		}
	}
	return nil
}

// MarkReadonly prevents further SetEnv/UnsetEnv calls for name, per the
// `readonly` built-in.
func (s *State) MarkReadonly(name string) {
	s.readonly[name] = true
}

// IsReadonly reports whether name was marked via the `readonly` built-in.
func (s *State) IsReadonly(name string) bool {
	return s.readonly[name]
}

// EnvList returns the environment in insertion order, e.g. for `env`/export
// listing or for building a child process's exec environment overlay.
func (s *State) EnvList() []string {
	out := make([]string, 0, len(s.env))
	for _, kv := range s.env {
		out = append(out, kv.Name+"="+kv.Value)
	}
	return out
}

// EnvPairsSnapshot implements the expand package's cache-key snapshot hook.
func (s *State) EnvPairsSnapshot() []string {
	return s.EnvList()
}

// EnvPairs exposes the ordered name/value pairs directly (e.g. for `export
// -p` formatting) without the "NAME=VALUE" joining EnvList does.
func (s *State) EnvPairs() []EnvVar {
	out := make([]EnvVar, len(s.env))
	copy(out, s.env)
	return out
}

// Chdir updates Cwd/OldCwd and the PWD/OLDPWD environment pair together,
// per spec.md §6 ("PWD/OLDPWD also maintained by the shell").
func (s *State) Chdir(newCwd string) {
	s.OldCwd = s.Cwd
	s.Cwd = newCwd
	s.SetEnv("OLDPWD", s.OldCwd)
	s.SetEnv("PWD", s.Cwd)
}

// RecordResult updates LastExitCode/LastDurationMS after a chain completes.
func (s *State) RecordResult(exitCode int, duration time.Duration) {
	s.LastExitCode = exitCode
	s.LastDurationMS = duration.Milliseconds()
}

// Lock/Unlock guard the job table for the narrow windows where the
// SIGCHLD-driven reaper (running off the main loop's goroutine, per
// spec.md §5) and the main loop both touch it.
func (s *State) Lock()   { s.mu.Lock() }
func (s *State) Unlock() { s.mu.Unlock() }
