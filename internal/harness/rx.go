package harness

import (
	"bytes"
	"context"
	"fmt"
	"strconv"

	"github.com/jroosing/nettest/internal/transport"
)

const (
	rxPort  = 2000
	rx2Port = 2001
	rxCount = 4
)

// rx receives four "packet <n>" datagrams and requires consecutive numbers.
// The first number seen is the baseline.
func (h *Harness) rx(ctx context.Context, s *scenario) error {
	if err := s.bind(rxPort); err != nil {
		return err
	}

	lastSeq := -1
	for range rxCount {
		s.to(AwaitingReply)
		d, err := h.recv(ctx, rxPort)
		if err != nil {
			return err
		}

		s.to(Verifying)
		if err := h.checkSourceAddr(d); err != nil {
			return err
		}
		seq, err := parseSeq(d.Payload)
		if err != nil {
			return err
		}
		if lastSeq != -1 && seq != lastSeq+1 {
			return mismatch(fmt.Sprintf("got seq %d, expecting %d", seq, lastSeq+1), lastSeq+1, seq)
		}
		lastSeq = seq
	}
	return nil
}

// rx2 checks that two bound ports keep their traffic apart: three "one"
// datagrams on 2000, three "two" on 2001, then three more "one" on 2000.
func (h *Harness) rx2(ctx context.Context, s *scenario) error {
	if err := s.bind(rxPort, rx2Port); err != nil {
		return err
	}

	rounds := []struct {
		port   uint16
		prefix string
	}{
		{rxPort, "one"},
		{rx2Port, "two"},
		{rxPort, "one"},
	}
	for _, r := range rounds {
		for range 3 {
			s.to(AwaitingReply)
			d, err := h.recv(ctx, r.port)
			if err != nil {
				return err
			}

			s.to(Verifying)
			if err := h.checkSourceAddr(d); err != nil {
				return err
			}
			if err := checkLength(len(d.Payload), len("one 1"), len("one xxxxxx")); err != nil {
				return err
			}
			if !bytes.HasPrefix(d.Payload, []byte(r.prefix+" ")) {
				return mismatch("packet doesn't start with "+r.prefix, r.prefix+" ", string(d.Payload))
			}
		}
	}
	return nil
}

func (h *Harness) checkSourceAddr(d transport.Datagram) error {
	if d.Addr != h.Config.PeerAddr {
		return mismatch(fmt.Sprintf("wrong ip src %s", d.Addr), h.Config.PeerAddr, d.Addr)
	}
	return nil
}

func checkLength(n, lo, hi int) error {
	if n < lo {
		return mismatch(fmt.Sprintf("len %d too short", n), fmt.Sprintf(">= %d", lo), n)
	}
	if n > hi {
		return mismatch(fmt.Sprintf("len %d too long", n), fmt.Sprintf("<= %d", hi), n)
	}
	return nil
}

// parseSeq validates a "packet <digits>" payload and returns the number.
func parseSeq(p []byte) (int, error) {
	const prefix = "packet "
	if err := checkLength(len(p), len("packet 1"), len("packet xxxxxx")); err != nil {
		return 0, err
	}
	if !bytes.HasPrefix(p, []byte(prefix)) {
		return 0, mismatch("packet doesn't start with packet", prefix, string(p))
	}

	digits := p[len(prefix):]
	if !isDigit(digits[0]) {
		return 0, mismatch("packet doesn't contain a number", "digit", string(digits))
	}
	for _, c := range digits {
		if !isDigit(c) {
			return 0, mismatch("packet contains non-digits in the number", "digits", string(digits))
		}
	}
	seq, err := strconv.Atoi(string(digits))
	if err != nil {
		return 0, fmt.Errorf("sequence number %q: %w", digits, err)
	}
	return seq, nil
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }
