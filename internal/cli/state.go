// Package cli holds what the nettest and nettest-peer commands share: the
// process-wide state, layered config loading, and exit codes.
package cli

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"

	"github.com/jroosing/nettest/internal/config"
)

// GlobalState is everything a command needs from its environment. Tests
// build one by hand with buffers in place of the standard streams.
type GlobalState struct {
	Ctx       context.Context
	Args      []string
	Stdout    io.Writer
	Stderr    io.Writer
	StdoutTTY bool
	LookupEnv func(string) (string, bool)

	Flags GlobalFlags

	// Set by LoadConfig.
	Config *config.Config
	Logger *slog.Logger
}

// GlobalFlags are the flags every command accepts.
type GlobalFlags struct {
	DBPath   string
	NoColor  bool
	LogLevel string
	JSONLogs bool
	Sets     []string
}

// NewGlobalState wires the real process environment.
func NewGlobalState(ctx context.Context) *GlobalState {
	stdoutTTY := isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
	_, noColor := os.LookupEnv("NO_COLOR")
	return &GlobalState{
		Ctx:       ctx,
		Args:      os.Args,
		Stdout:    colorable.NewColorableStdout(),
		Stderr:    colorable.NewColorableStderr(),
		StdoutTTY: stdoutTTY,
		LookupEnv: os.LookupEnv,
		Flags:     GlobalFlags{NoColor: noColor},
	}
}

// Colorize reports whether result lines should carry ANSI colors.
func (gs *GlobalState) Colorize() bool {
	return gs.StdoutTTY && !gs.Flags.NoColor
}

// DBPath is the profile database named by --db or NETTEST_DB, if any.
func (gs *GlobalState) DBPath() string {
	if gs.Flags.DBPath != "" {
		return gs.Flags.DBPath
	}
	if gs.LookupEnv != nil {
		if v, ok := gs.LookupEnv("NETTEST_DB"); ok {
			return v
		}
	}
	return ""
}
