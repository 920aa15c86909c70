package harness

import (
	"context"
	"fmt"

	"github.com/jroosing/nettest/internal/resources"
)

// LeakError reports that a grading run lost more resources than allowed.
type LeakError struct {
	Before int
	After  int
}

func (e *LeakError) Error() string {
	return fmt.Sprintf("FAILED -- lost too many free resources %d (out of %d)", e.After, e.Before)
}

// Grade counts free resources, runs txone, ping0 through ping3, and dns with
// GradePause between them, then counts again. The last result, named
// "free", fails when more than FreeTolerance resources went missing.
//
// A fatal scenario failure stops the run and is returned as the error along
// with the results collected so far.
func (h *Harness) Grade(ctx context.Context) ([]Result, error) {
	if h.Counter == nil {
		return nil, fmt.Errorf("%w: no resource counter", ErrFatal)
	}
	before, err := h.Counter.CountFree(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: countfree: %w", ErrFatal, err)
	}
	h.logger().Debug("free resources before grading", "free", before)

	steps := []func(context.Context) Result{h.TxOne, h.Ping0, h.Ping1, h.Ping2, h.Ping3, h.DNS}
	results := make([]Result, 0, len(steps)+1)
	for _, step := range steps {
		res := step(ctx)
		results = append(results, res)
		if res.Fatal() {
			return results, res.Err
		}
		if err := sleep(ctx, h.Config.GradePause); err != nil {
			return results, err
		}
	}

	after, err := h.Counter.CountFree(ctx)
	if err != nil {
		return results, fmt.Errorf("%w: countfree: %w", ErrFatal, err)
	}
	h.logger().Debug("free resources after grading", "free", after)

	free := Result{Name: "free", State: Passed}
	if resources.Leaked(before, after, h.Config.FreeTolerance) {
		free.State = Failed
		free.Err = &LeakError{Before: before, After: after}
	}
	h.Report.Result(free)
	return append(results, free), nil
}
