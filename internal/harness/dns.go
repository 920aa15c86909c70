package harness

import (
	"context"
	"fmt"

	"github.com/jroosing/nettest/internal/dns"
)

const (
	dnsPort = 10000
	dnsID   = 6828
)

// dns resolves Config.DNSName through Config.DNSServer using the package's
// own codec and, when DNSExpect is set, checks the answer.
func (h *Harness) dns(ctx context.Context, s *scenario) error {
	query, err := dns.BuildQuery(h.Config.DNSName, dnsID)
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}
	if err := s.bind(dnsPort); err != nil {
		return err
	}

	s.to(Sending)
	server := h.Config.DNSServer
	if err := h.T.Send(dnsPort, server.Addr(), server.Port(), query); err != nil {
		return fmt.Errorf("send() failed: %w", err)
	}

	s.to(AwaitingReply)
	d, err := h.recv(ctx, dnsPort)
	if err != nil {
		return err
	}

	s.to(Verifying)
	ans, err := dns.ParseResponse(d.Payload, dnsID)
	if err != nil {
		return err
	}
	s.log.Debug("dns answer", "name", ans.QName, "addr", ans.Addr.String(), "ttl", ans.TTL)

	if want := h.Config.DNSExpect; want.IsValid() && ans.Addr != want {
		return mismatch("wrong ip address", want, ans.Addr)
	}
	return nil
}
