package harness

import (
	"fmt"
	"io"
	"sync"

	"github.com/fatih/color"
)

// Reporter prints one line per result.
type Reporter struct {
	mu   sync.Mutex
	w    io.Writer
	succ *color.Color
	fail *color.Color
}

// NewReporter writes to w. Colors are only emitted when colorize is true.
func NewReporter(w io.Writer, colorize bool) *Reporter {
	r := &Reporter{
		w:    w,
		succ: color.New(color.FgGreen),
		fail: color.New(color.FgRed),
	}
	if colorize {
		r.succ.EnableColor()
		r.fail.EnableColor()
	} else {
		r.succ.DisableColor()
		r.fail.DisableColor()
	}
	return r
}

// Result prints res. A nil Reporter prints nothing.
func (r *Reporter) Result(res Result) {
	if r == nil {
		return
	}
	c := r.fail
	if res.Passed() {
		c = r.succ
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	_, _ = c.Fprintln(r.w, res.String())
}

// Printf prints an uncolored informational line.
func (r *Reporter) Printf(format string, args ...any) {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	_, _ = fmt.Fprintf(r.w, format+"\n", args...)
}
