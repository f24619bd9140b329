// Package config provides configuration management for the krusty shell.
// It uses viper for loading configuration from command-line flags and
// environment variables; no config file is read.
//
// Configuration priority (highest to lowest):
// 1. Command-line flags
// 2. Environment variables (with KRUSTY_ prefix)
// 3. Defaults
package config

import (
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration values for the shell.
type Config struct {
	// HistoryFile is the path to the command history file.
	// Defaults to "~/.krusty_history". Set to empty string to disable
	// history persistence.
	HistoryFile string

	// HistoryMaxEntries is the maximum number of history entries to keep.
	// Defaults to 1000.
	HistoryMaxEntries int

	// BookmarksFile is the path to the directory-bookmarks store.
	// Defaults to "~/.krusty/bookmarks.json".
	BookmarksFile string

	// DefaultTimeout bounds how long a single external command may run
	// before the execution engine sends its configured kill signal. Zero
	// disables the timeout; the `timeout` built-in applies its own limit
	// in addition to this default.
	DefaultTimeout time.Duration

	// KillGrace is the grace period between the configured kill signal and
	// an escalation to SIGKILL once a timeout has fired.
	KillGrace time.Duration

	// XtraceOnStart seeds the `xtrace` shell option at startup.
	XtraceOnStart bool

	// PipefailOnStart seeds the `pipefail` shell option at startup.
	PipefailOnStart bool

	// ErrexitOnStart seeds the `errexit` shell option at startup.
	ErrexitOnStart bool

	// AliasDepthCap bounds recursive alias expansion (spec.md §4.3).
	AliasDepthCap int
}

// Defaults returns a Config struct with all default values set.
func Defaults() *Config {
	return &Config{
		HistoryFile:       "~/.krusty_history",
		HistoryMaxEntries: 1000,
		BookmarksFile:     "~/.krusty/bookmarks.json",
		DefaultTimeout:    0,
		KillGrace:         2 * time.Second,
		XtraceOnStart:     false,
		PipefailOnStart:   false,
		ErrexitOnStart:    false,
		AliasDepthCap:     10,
	}
}

// LoadConfig loads and returns the configuration from viper.
// It sets up environment variable bindings with the KRUSTY prefix.
//
// The caller is expected to have set up viper with BindPFlag() calls
// for command-line flags before calling this function.
func LoadConfig() *Config {
	cfg := Defaults()

	viper.SetEnvPrefix("KRUSTY")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// For history_file and bookmarks_file, check the raw env var because an
	// empty string is a valid value (in-memory-only history) that viper's
	// IsSet would otherwise mask.
	if val, ok := os.LookupEnv("KRUSTY_HISTORY_FILE"); ok {
		cfg.HistoryFile = val
	}
	if viper.IsSet("history_max_entries") {
		if val := viper.GetInt("history_max_entries"); val > 0 {
			cfg.HistoryMaxEntries = val
		}
	}
	if val, ok := os.LookupEnv("KRUSTY_BOOKMARKS_FILE"); ok {
		cfg.BookmarksFile = val
	}
	if viper.IsSet("default_timeout_ms") {
		if ms := viper.GetInt("default_timeout_ms"); ms > 0 {
			cfg.DefaultTimeout = time.Duration(ms) * time.Millisecond
		}
	}
	if viper.IsSet("kill_grace_ms") {
		if ms := viper.GetInt("kill_grace_ms"); ms > 0 {
			cfg.KillGrace = time.Duration(ms) * time.Millisecond
		}
	}
	if viper.IsSet("xtrace") {
		cfg.XtraceOnStart = viper.GetBool("xtrace")
	}
	if viper.IsSet("pipefail") {
		cfg.PipefailOnStart = viper.GetBool("pipefail")
	}
	if viper.IsSet("errexit") {
		cfg.ErrexitOnStart = viper.GetBool("errexit")
	}
	if viper.IsSet("alias_depth_cap") {
		if v := viper.GetInt("alias_depth_cap"); v > 0 {
			cfg.AliasDepthCap = v
		}
	}

	return cfg
}
