// Package harness drives the UDP test scenarios against a transport and a
// remote peer, and reports one pass or fail line per scenario.
//
// Scenarios bind the ports they use, send fixed payloads, and verify what
// comes back byte for byte. A scenario never retries: the first mismatch
// fails it. Ports are unbound when a scenario returns so the same Harness
// can run the whole suite more than once.
package harness

import (
	"context"
	"fmt"
	"log/slog"
	"net/netip"
	"slices"
	"time"

	"github.com/jroosing/nettest/internal/resources"
	"github.com/jroosing/nettest/internal/transport"
)

// Config holds the addresses, payload targets, and pacing of a run.
type Config struct {
	PeerAddr netip.Addr // host running the peer
	PeerPort uint16     // peer server port

	DNSServer netip.AddrPort // resolver queried by the dns scenario
	DNSName   string         // name looked up
	DNSExpect netip.Addr     // required answer; zero accepts any address

	// Timeout bounds each receive. Zero waits forever.
	Timeout time.Duration

	TxInterval  time.Duration // gap between tx sends
	Settle      time.Duration // ping3 pause around the burst
	DrainWindow time.Duration // ping3 time given to the drain goroutine
	GradePause  time.Duration // gap between grade scenarios

	QueueBound    int // most replies ping3 tolerates on one port
	FreeTolerance int // resources grade may lose
}

// DefaultConfig returns the values the device-side test program uses.
func DefaultConfig() Config {
	return Config{
		PeerAddr:      netip.AddrFrom4([4]byte{10, 0, 2, 2}),
		PeerPort:      25099,
		DNSServer:     netip.AddrPortFrom(netip.AddrFrom4([4]byte{8, 8, 8, 8}), 53),
		DNSName:       "pdos.csail.mit.edu.",
		TxInterval:    time.Second,
		Settle:        100 * time.Millisecond,
		DrainWindow:   500 * time.Millisecond,
		GradePause:    200 * time.Millisecond,
		QueueBound:    transport.DefaultQueueDepth,
		FreeTolerance: resources.DefaultTolerance,
	}
}

// Harness runs scenarios over T.
type Harness struct {
	T       transport.Transport
	Counter resources.Counter // resource counter for grade
	Config  Config
	Logger  *slog.Logger // Optional logger
	Report  *Reporter    // Optional result printer
}

type scenarioFunc func(h *Harness, ctx context.Context, s *scenario) error

var scenarios = map[string]scenarioFunc{
	"txone":   (*Harness).txone,
	"tx":      (*Harness).tx,
	"rx":      (*Harness).rx,
	"rxburst": (*Harness).rx,
	"rx2":     (*Harness).rx2,
	"ping0":   (*Harness).ping0,
	"ping1":   (*Harness).ping1,
	"ping2":   (*Harness).ping2,
	"ping3":   (*Harness).ping3,
	"dns":     (*Harness).dns,
}

// Names lists every scenario Run accepts, grade included.
func Names() []string {
	names := make([]string, 0, len(scenarios)+1)
	for name := range scenarios {
		names = append(names, name)
	}
	names = append(names, "grade")
	slices.Sort(names)
	return names
}

// Run executes the named scenario and returns its results; grade returns
// one per sub-scenario followed by the resource check. The error is non-nil
// only for an unknown name or a fatal failure.
func (h *Harness) Run(ctx context.Context, name string) ([]Result, error) {
	if name == "grade" {
		return h.Grade(ctx)
	}
	fn, ok := scenarios[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownScenario, name)
	}
	res := h.run(ctx, name, fn)
	if res.Fatal() {
		return []Result{res}, res.Err
	}
	return []Result{res}, nil
}

func (h *Harness) TxOne(ctx context.Context) Result { return h.run(ctx, "txone", (*Harness).txone) }
func (h *Harness) Tx(ctx context.Context) Result { return h.run(ctx, "tx", (*Harness).tx) }
func (h *Harness) Rx(ctx context.Context) Result { return h.run(ctx, "rx", (*Harness).rx) }
func (h *Harness) RxBurst(ctx context.Context) Result { return h.run(ctx, "rxburst", (*Harness).rx) }
func (h *Harness) Rx2(ctx context.Context) Result { return h.run(ctx, "rx2", (*Harness).rx2) }
func (h *Harness) Ping0(ctx context.Context) Result { return h.run(ctx, "ping0", (*Harness).ping0) }
func (h *Harness) Ping1(ctx context.Context) Result { return h.run(ctx, "ping1", (*Harness).ping1) }
func (h *Harness) Ping2(ctx context.Context) Result { return h.run(ctx, "ping2", (*Harness).ping2) }
func (h *Harness) Ping3(ctx context.Context) Result { return h.run(ctx, "ping3", (*Harness).ping3) }
func (h *Harness) DNS(ctx context.Context) Result { return h.run(ctx, "dns", (*Harness).dns) }

func (h *Harness) run(ctx context.Context, name string, fn scenarioFunc) Result {
	s := &scenario{
		name:  name,
		log:   h.logger().With("scenario", name),
		t:     h.T,
		start: time.Now(),
	}
	s.log.Debug("starting")

	err := fn(h, ctx, s)
	s.unbindAll()

	final := Passed
	if err != nil {
		final = Failed
	}
	s.to(final)

	res := Result{Name: name, State: final, Err: err, Elapsed: time.Since(s.start)}
	if err != nil {
		s.log.Info("scenario failed", "err", err, "elapsed", res.Elapsed)
	}
	h.Report.Result(res)
	return res
}

// recv receives on port, bounded by Config.Timeout when set.
func (h *Harness) recv(ctx context.Context, port uint16) (transport.Datagram, error) {
	if h.Config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.Config.Timeout)
		defer cancel()
	}
	d, err := h.T.Recv(ctx, port)
	if err != nil {
		return d, fmt.Errorf("recv() failed: %w", err)
	}
	return d, nil
}

func (h *Harness) sendToPeer(port uint16, payload []byte) error {
	if err := h.T.Send(port, h.Config.PeerAddr, h.Config.PeerPort, payload); err != nil {
		return fmt.Errorf("send() failed: %w", err)
	}
	return nil
}

func (h *Harness) logger() *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

// scenario tracks the state and bound ports of one running scenario.
type scenario struct {
	name  string
	state State
	log   *slog.Logger
	t     transport.Transport
	start time.Time
	ports []uint16
}

func (s *scenario) to(next State) {
	if next == s.state {
		return
	}
	s.log.Debug("state", "from", s.state.String(), "to", next.String())
	s.state = next
}

// bind binds every port; failure is fatal.
func (s *scenario) bind(ports ...uint16) error {
	for _, p := range ports {
		if err := s.t.Bind(p); err != nil {
			return fmt.Errorf("%w: bind() failed: %w", ErrFatal, err)
		}
		s.ports = append(s.ports, p)
	}
	return nil
}

func (s *scenario) unbindAll() {
	for _, p := range s.ports {
		if err := s.t.Unbind(p); err != nil {
			s.log.Warn("unbind failed", "port", p, "err", err)
		}
	}
	s.ports = nil
}

// sleep pauses for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
