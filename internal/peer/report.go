package peer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/jroosing/nettest/internal/transport"
)

// Report is the peer's verdict on what the harness sent it.
type Report struct {
	Name   string
	OK     bool
	Detail string
}

func (r Report) String() string {
	if r.OK {
		return r.Name + ": OK"
	}
	return r.Name + ": " + r.Detail
}

// Expect reads len(want) datagrams from rec and compares their payloads with
// want in order.
func Expect(ctx context.Context, rec *Recorder, name string, want ...string) (Report, error) {
	got := make([]string, 0, len(want))
	for range want {
		d, err := rec.Next(ctx)
		if err != nil {
			return Report{}, err
		}
		got = append(got, string(d.Payload))
	}

	for i := range want {
		if got[i] != want[i] {
			quoted := make([]string, len(got))
			for j, g := range got {
				quoted[j] = fmt.Sprintf("%q", g)
			}
			detail := "unexpected payload " + quoted[0]
			if len(got) > 1 {
				detail = "unexpected packets " + strings.Join(quoted, " and ")
			}
			return Report{Name: name, Detail: detail}, nil
		}
	}
	return Report{Name: name, OK: true}, nil
}

// Grade plays the peer's part of a grading run: it checks the first datagram
// is "txone", answers by sending "rxone" to the second harness port, and
// reflects everything after that.
type Grade struct {
	Send   SendFunc
	Target Target
	// OnReport receives the txone verdict.
	OnReport func(Report)
	Logger   *slog.Logger

	mu   sync.Mutex
	seen bool
}

func (g *Grade) Respond(from transport.Datagram) ([]byte, bool) {
	g.mu.Lock()
	first := !g.seen
	g.seen = true
	g.mu.Unlock()

	if !first {
		return from.Payload, true
	}

	rep := Report{Name: "txone", OK: string(from.Payload) == "txone"}
	if !rep.OK {
		rep.Detail = fmt.Sprintf("received incorrect payload %q", from.Payload)
	}
	if g.OnReport != nil {
		g.OnReport(rep)
	}

	if err := g.Send(g.Target.Port2, []byte("rxone")); err != nil {
		g.logger().Warn("rxone send failed", "err", err)
	}
	return nil, false
}

func (g *Grade) logger() *slog.Logger {
	if g.Logger != nil {
		return g.Logger
	}
	return slog.Default()
}
