package harness

import (
	"errors"
	"fmt"
	"time"
)

// State is the progress of one scenario.
type State int

const (
	NotStarted State = iota
	Sending
	AwaitingReply
	Verifying
	Passed
	Failed
)

func (s State) String() string {
	switch s {
	case NotStarted:
		return "not-started"
	case Sending:
		return "sending"
	case AwaitingReply:
		return "awaiting-reply"
	case Verifying:
		return "verifying"
	case Passed:
		return "passed"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

var (
	// ErrFatal marks failures that make continuing pointless: a port that
	// cannot be bound or a resource count that cannot be taken.
	ErrFatal = errors.New("fatal")

	ErrUnknownScenario = errors.New("unknown scenario")
)

// AssertionError is a mismatch between what a scenario expected and what it
// received. What is the full one-line description; Expected and Actual keep
// the compared values for callers that want them.
type AssertionError struct {
	What     string
	Expected string
	Actual   string
}

func (e *AssertionError) Error() string { return e.What }

func mismatch(what string, expected, actual any) *AssertionError {
	return &AssertionError{What: what, Expected: fmt.Sprint(expected), Actual: fmt.Sprint(actual)}
}

// Result is the outcome of one scenario.
type Result struct {
	Name    string
	State   State
	Err     error
	Elapsed time.Duration
}

// Passed reports whether the scenario succeeded.
func (r Result) Passed() bool { return r.State == Passed && r.Err == nil }

// Fatal reports whether the failure should stop a grading run.
func (r Result) Fatal() bool { return errors.Is(r.Err, ErrFatal) }

// String renders the result the way it is printed: "<name>: OK" or
// "<name>: <reason>".
func (r Result) String() string {
	if r.Passed() {
		return r.Name + ": OK"
	}
	if r.Err == nil {
		return r.Name + ": " + r.State.String()
	}
	return r.Name + ": " + r.Err.Error()
}
