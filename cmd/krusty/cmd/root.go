// Package cmd wires krusty's command-line surface (spec.md §6): flag
// parsing and viper binding for rootCmd, which either drops into the
// interactive REPL or runs a script file non-interactively depending on
// whether a script path was given.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/stacksjs/krusty/internal/bookmark"
	"github.com/stacksjs/krusty/internal/config"
	"github.com/stacksjs/krusty/internal/exec"
	"github.com/stacksjs/krusty/internal/history"
	"github.com/stacksjs/krusty/internal/repl"
	"github.com/stacksjs/krusty/internal/safety"
)

var rootCmd = &cobra.Command{
	Use:   "krusty [script]",
	Short: "A POSIX-flavored interactive command shell",
	Long: `krusty is an interactive command shell: tokenizer, parser, alias/
variable/brace/command-substitution expansion, a built-in registry,
redirection handling, pipelines with errexit/pipefail, and a job manager
with process groups and signal-driven suspend/resume.

Run with no arguments to start the interactive read-eval-print loop, or
pass a script path to execute it non-interactively.`,
	Args:         cobra.MaximumNArgs(1),
	SilenceUsage: true,
	RunE:         runRoot,
}

// Execute adds all child commands and runs rootCmd. This is called by
// main.main() exactly once.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.String("history-file", "", "path to the history file (overrides KRUSTY_HISTORY_FILE)")
	flags.Int("history-max-entries", 0, "maximum history entries to retain (0 = use default)")
	flags.String("bookmarks-file", "", "path to the directory-bookmarks JSON file (overrides KRUSTY_BOOKMARKS_FILE)")
	flags.Int("default-timeout-ms", 0, "default external-command timeout in milliseconds (0 = no timeout)")
	flags.Int("kill-grace-ms", 0, "grace period before SIGKILL after a timeout, in milliseconds")
	flags.BoolP("xtrace", "x", false, "start with `set -x` tracing enabled")
	flags.Bool("pipefail", false, "start with `set -o pipefail` enabled")
	flags.Bool("errexit", false, "start with `set -e` enabled")
	flags.Int("alias-depth-cap", 0, "maximum recursive alias-expansion depth (0 = use default)")
	flags.String("validation-mode", "blacklist", "command validation mode: blacklist or whitelist")
	flags.Bool("ask-on-unknown", false, "in whitelist mode, prompt for confirmation on non-whitelisted commands")

	bind := func(key, flag string) {
		if err := viper.BindPFlag(key, flags.Lookup(flag)); err != nil {
			fmt.Fprintf(os.Stderr, "krusty: warning: failed to bind --%s: %v\n", flag, err)
		}
	}
	bind("history_max_entries", "history-max-entries")
	bind("default_timeout_ms", "default-timeout-ms")
	bind("kill_grace_ms", "kill-grace-ms")
	bind("xtrace", "xtrace")
	bind("pipefail", "pipefail")
	bind("errexit", "errexit")
	bind("alias_depth_cap", "alias-depth-cap")
}

func runRoot(cmd *cobra.Command, args []string) error {
	cfg := config.LoadConfig()

	if v, _ := cmd.Flags().GetString("history-file"); v != "" {
		cfg.HistoryFile = v
	}
	if v, _ := cmd.Flags().GetString("bookmarks-file"); v != "" {
		cfg.BookmarksFile = v
	}

	engine, err := exec.New()
	if err != nil {
		return fmt.Errorf("krusty: %w", err)
	}
	engine.State.Options.Xtrace = cfg.XtraceOnStart
	engine.State.Options.Pipefail = cfg.PipefailOnStart
	engine.State.Options.Errexit = cfg.ErrexitOnStart
	engine.State.AliasDepthCap = cfg.AliasDepthCap
	engine.DefaultTimeout = cfg.DefaultTimeout
	engine.KillGrace = cfg.KillGrace

	store, err := bookmark.Open(history.ExpandPath(cfg.BookmarksFile))
	if err != nil {
		return fmt.Errorf("krusty: %w", err)
	}
	engine.BindBookmarks(store)

	validator, err := buildValidator(cmd)
	if err != nil {
		return fmt.Errorf("krusty: %w", err)
	}
	engine.Validator = validator

	if len(args) == 1 {
		code, err := repl.RunScript(engine, args[0])
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(code)
		return nil
	}

	r, err := repl.New(engine, cfg)
	if err != nil {
		return fmt.Errorf("krusty: %w", err)
	}
	os.Exit(r.Run())
	return nil
}

// buildValidator constructs the safety validator from --validation-mode and,
// for whitelist mode, the patterns in KRUSTY_WHITELIST_PATTERNS (a JSON array
// per safety.ParseWhitelistPatternsJSON).
func buildValidator(cmd *cobra.Command) (safety.CommandValidator, error) {
	modeFlag, _ := cmd.Flags().GetString("validation-mode")
	mode, err := safety.ValidateMode(modeFlag)
	if err != nil {
		return nil, err
	}

	var whitelist *safety.CommandWhitelist
	if mode == safety.ModeWhitelist {
		patterns, err := safety.ParseWhitelistPatternsJSON(os.Getenv("KRUSTY_WHITELIST_PATTERNS"))
		if err != nil {
			return nil, fmt.Errorf("parsing KRUSTY_WHITELIST_PATTERNS: %w", err)
		}
		whitelist = safety.NewCommandWhitelist(patterns)
	}

	confirmUnlisted, _ := cmd.Flags().GetBool("ask-on-unknown")
	return safety.NewCommandValidator(mode, whitelistChecker(whitelist), confirmUnlisted)
}

// whitelistChecker returns w as a safety.CommandAllowChecker, or nil if w is
// nil — passing a nil *CommandWhitelist directly would yield a non-nil
// interface holding a nil pointer, which NewCommandValidator's nil check
// would not recognize as absent.
func whitelistChecker(w *safety.CommandWhitelist) safety.CommandAllowChecker {
	if w == nil {
		return nil
	}
	return w
}
