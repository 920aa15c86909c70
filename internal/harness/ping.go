package harness

import (
	"bytes"
	"context"
	"fmt"
	"sync"

	"github.com/jroosing/nettest/internal/transport"
)

const (
	ping0Port  = 2004
	ping1Port  = 2005
	ping2PortA = 2006
	ping2PortB = 2007

	// ping3 floods from burstPort and the unbound port two above it, with
	// markerPort bracketing the burst.
	burstPort    = 2008
	markerPort   = 2009
	burstCount   = 257
	drainBufSize = 512
)

// ping0 makes one round trip through the peer's echo reflector.
func (h *Harness) ping0(ctx context.Context, s *scenario) error {
	if err := s.bind(ping0Port); err != nil {
		return err
	}
	return h.roundTrip(ctx, s, ping0Port, []byte("ping0"), len("ping0"))
}

// ping1 makes twenty round trips from one port, one at a time.
func (h *Harness) ping1(ctx context.Context, s *scenario) error {
	if err := s.bind(ping1Port); err != nil {
		return err
	}
	for i := range 20 {
		msg := []byte{'p', ' ', byte('0' + i)}
		if err := h.roundTrip(ctx, s, ping1Port, msg, len(msg)); err != nil {
			return err
		}
	}
	return nil
}

// ping2 sends five datagrams from each of two ports, interleaved, then reads
// the replies port by port. Each port must see its own replies in order.
func (h *Harness) ping2(ctx context.Context, s *scenario) error {
	if err := s.bind(ping2PortA, ping2PortB); err != nil {
		return err
	}

	msg := func(port uint16, i int) []byte {
		base := byte('a')
		if port == ping2PortB {
			base = 'A'
		}
		return []byte{'p', ' ', base + byte(i), '!'}
	}

	s.to(Sending)
	for i := range 5 {
		for _, port := range []uint16{ping2PortA, ping2PortB} {
			if err := h.sendToPeer(port, msg(port, i)); err != nil {
				return err
			}
		}
	}

	for _, port := range []uint16{ping2PortA, ping2PortB} {
		for i := range 5 {
			if err := h.awaitReply(ctx, s, port, msg(port, i), 3); err != nil {
				return err
			}
		}
	}
	return nil
}

// ping3 checks that a flood of replies cannot exhaust the host: replies to
// one port must be capped at a bounded queue while a second port still
// receives its two marker replies.
func (h *Harness) ping3(ctx context.Context, s *scenario) error {
	if err := s.bind(burstPort, markerPort); err != nil {
		return err
	}

	s.to(Sending)
	if err := h.sendToPeer(markerPort, []byte("p A!")); err != nil {
		return err
	}
	if err := sleep(ctx, h.Config.Settle); err != nil {
		return err
	}

	for i := range burstCount {
		port := uint16(burstPort + (i%2)*2)
		if err := h.sendToPeer(port, []byte{'p', ' ', byte('a' + i), '!'}); err != nil {
			return err
		}
	}
	if err := sleep(ctx, h.Config.Settle); err != nil {
		return err
	}

	if err := h.sendToPeer(markerPort, []byte("p B!")); err != nil {
		return err
	}
	for _, want := range []string{"p A!", "p B!"} {
		if err := h.awaitReply(ctx, s, markerPort, []byte(want), 3); err != nil {
			return err
		}
	}

	n, err := h.drain(ctx, s, burstPort)
	if err != nil {
		return err
	}
	s.log.Debug("drained burst port", "queued", n)
	if n > h.Config.QueueBound {
		return mismatch(fmt.Sprintf("too many packets (%d) were queued on a UDP port", n), h.Config.QueueBound, n)
	}
	return nil
}

// drain counts what is queued on port. A goroutine receives and reports one
// unit per datagram until DrainWindow has passed, then it is cancelled.
func (h *Harness) drain(ctx context.Context, s *scenario, port uint16) (int, error) {
	s.to(AwaitingReply)

	drainCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	units := make(chan struct{}, drainBufSize)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			if _, err := h.T.Recv(drainCtx, port); err != nil {
				if drainCtx.Err() == nil {
					s.log.Warn("drain recv failed", "port", port, "err", err)
				}
				return
			}
			select {
			case units <- struct{}{}:
			default:
				return // more than the parent can count
			}
		}
	}()

	err := sleep(ctx, h.Config.DrainWindow)
	cancel()
	wg.Wait()
	close(units)

	n := 0
	for range units {
		n++
	}
	return n, err
}

// roundTrip sends msg from port and verifies the echoed reply.
func (h *Harness) roundTrip(ctx context.Context, s *scenario, port uint16, msg []byte, cmpLen int) error {
	s.to(Sending)
	if err := h.sendToPeer(port, msg); err != nil {
		return err
	}
	return h.awaitReply(ctx, s, port, msg, cmpLen)
}

// awaitReply receives on port and checks the reply came from the peer, that
// its first cmpLen bytes match want, and that it is exactly len(want) long.
func (h *Harness) awaitReply(ctx context.Context, s *scenario, port uint16, want []byte, cmpLen int) error {
	s.to(AwaitingReply)
	d, err := h.recv(ctx, port)
	if err != nil {
		return err
	}
	s.to(Verifying)
	return h.checkReply(d, want, cmpLen)
}

func (h *Harness) checkReply(d transport.Datagram, want []byte, cmpLen int) error {
	peer := h.Config.PeerAddr
	if d.Addr != peer {
		return mismatch(fmt.Sprintf("wrong ip src %s, expecting %s", d.Addr, peer), peer, d.Addr)
	}
	if d.Port != h.Config.PeerPort {
		return mismatch(fmt.Sprintf("wrong sport %d, expecting %d", d.Port, h.Config.PeerPort), h.Config.PeerPort, d.Port)
	}
	if len(d.Payload) < cmpLen || !bytes.Equal(d.Payload[:cmpLen], want[:cmpLen]) {
		return mismatch("wrong content", string(want), string(d.Payload))
	}
	if len(d.Payload) != len(want) {
		return mismatch(fmt.Sprintf("wrong length %d, expecting %d", len(d.Payload), len(want)), len(want), len(d.Payload))
	}
	return nil
}
