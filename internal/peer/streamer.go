package peer

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/netip"

	"golang.org/x/time/rate"

	"github.com/jroosing/nettest/internal/transport"
)

// burstSize is how many datagrams rxburst sends to the second port per round.
const burstSize = 32

// Target names the two harness ports the streamers feed.
type Target struct {
	Addr  netip.Addr
	Port1 uint16 // the harness receive port (2000)
	Port2 uint16 // the second harness port (2001)
}

// SendFunc sends payload to the given harness port.
type SendFunc func(port uint16, payload []byte) error

// ConnSender sends from conn to addr.
func ConnSender(conn *net.UDPConn, addr netip.Addr) SendFunc {
	return func(port uint16, payload []byte) error {
		_, err := conn.WriteToUDPAddrPort(payload, netip.AddrPortFrom(addr, port))
		return err
	}
}

// InjectSender delivers into a Loopback network as if sent from src.
// Datagrams the network drops are not an error, as on a real wire.
func InjectSender(l *transport.Loopback, src netip.AddrPort) SendFunc {
	return func(port uint16, payload []byte) error {
		l.Inject(port, transport.Datagram{Addr: src.Addr(), Port: src.Port(), Payload: payload})
		return nil
	}
}

// Streamer produces the inbound traffic the harness receive scenarios
// expect. Each round is paced by Limiter; Rounds zero means run until ctx
// is done.
type Streamer struct {
	Send    SendFunc
	Target  Target
	Limiter *rate.Limiter // nil sends rounds back to back
	Rounds  int
	Logger  *slog.Logger
	Stats   *Stats
}

// RxOne sends a single "xyz" to the first port.
func (s *Streamer) RxOne(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.send(s.Target.Port1, "xyz")
}

// Rx sends "packet <i>" to the first port once per round.
func (s *Streamer) Rx(ctx context.Context) error {
	return s.run(ctx, func(i int) error {
		return s.send(s.Target.Port1, fmt.Sprintf("packet %d", i))
	})
}

// Rx2 sends "one <i>" to the first port and "two <i>" to the second once
// per round.
func (s *Streamer) Rx2(ctx context.Context) error {
	return s.run(ctx, func(i int) error {
		if err := s.send(s.Target.Port1, fmt.Sprintf("one %d", i)); err != nil {
			return err
		}
		return s.send(s.Target.Port2, fmt.Sprintf("two %d", i))
	})
}

// RxBurst floods the second port then sends one "packet <i>" to the first,
// once per round.
func (s *Streamer) RxBurst(ctx context.Context) error {
	return s.run(ctx, func(i int) error {
		msg := fmt.Sprintf("packet %d", i)
		for range burstSize {
			if err := s.send(s.Target.Port2, msg); err != nil {
				return err
			}
		}
		return s.send(s.Target.Port1, msg)
	})
}

func (s *Streamer) run(ctx context.Context, round func(i int) error) error {
	for i := 0; s.Rounds == 0 || i < s.Rounds; i++ {
		if s.Limiter != nil {
			if err := s.Limiter.Wait(ctx); err != nil {
				return err
			}
		} else if err := ctx.Err(); err != nil {
			return err
		}
		if err := round(i); err != nil {
			return err
		}
	}
	return nil
}

func (s *Streamer) send(port uint16, msg string) error {
	err := s.Send(port, []byte(msg))
	s.Stats.RecordSent(err)
	if err != nil {
		return fmt.Errorf("send %q to port %d: %w", msg, port, err)
	}
	s.logger().Debug("sent", "port", port, "payload", msg)
	return nil
}

func (s *Streamer) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}
