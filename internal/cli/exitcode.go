package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// ExitCode is the process exit status a command error maps to.
type ExitCode uint8

const (
	ExitOK             ExitCode = 0
	ExitFatal          ExitCode = 1 // usage errors and fatal failures
	ExitScenarioFailed ExitCode = 3 // at least one scenario or check failed
)

// HasExitCode is an error with an attached exit code.
type HasExitCode interface {
	error
	ExitCode() ExitCode
}

// WithExitCodeIfNone attaches code to err unless err already carries one.
func WithExitCodeIfNone(err error, code ExitCode) error {
	if err == nil {
		return nil
	}
	var ecerr HasExitCode
	if errors.As(err, &ecerr) {
		return err
	}
	return withExitCode{err, code}
}

type withExitCode struct {
	error
	exitCode ExitCode
}

func (wh withExitCode) Unwrap() error {
	return wh.error
}

func (wh withExitCode) ExitCode() ExitCode {
	return wh.exitCode
}

var _ HasExitCode = withExitCode{}

// UsageError marks a command line the user got wrong; Execute prints the
// command's usage after it.
type UsageError struct {
	Err error
}

func (e *UsageError) Error() string { return e.Err.Error() }
func (e *UsageError) Unwrap() error { return e.Err }

// UsageArgs wraps a cobra argument validator so its failures are usage
// errors.
func UsageArgs(v cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := v(cmd, args); err != nil {
			return &UsageError{Err: err}
		}
		return nil
	}
}

// Execute runs root with gs.Args and returns the process exit status.
func Execute(gs *GlobalState, root *cobra.Command) int {
	root.SilenceUsage = true
	root.SilenceErrors = true
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &UsageError{Err: err}
	})
	root.SetArgs(gs.Args[1:])
	root.SetOut(gs.Stdout)
	root.SetErr(gs.Stderr)

	cmd, err := root.ExecuteContextC(gs.Ctx)
	if err == nil {
		return int(ExitOK)
	}

	fmt.Fprintf(gs.Stderr, "Error: %v\n", err)

	var uerr *UsageError
	if errors.As(err, &uerr) || strings.HasPrefix(err.Error(), "unknown command") {
		if cmd == nil {
			cmd = root
		}
		fmt.Fprint(gs.Stderr, cmd.UsageString())
		return int(ExitFatal)
	}

	var ecerr HasExitCode
	if errors.As(err, &ecerr) {
		return int(ecerr.ExitCode())
	}
	return int(ExitFatal)
}
