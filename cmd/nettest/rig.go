package main

import (
	"context"
	"fmt"
	"net/netip"
	"time"

	"golang.org/x/time/rate"

	"github.com/jroosing/nettest/internal/cli"
	"github.com/jroosing/nettest/internal/config"
	"github.com/jroosing/nettest/internal/harness"
	"github.com/jroosing/nettest/internal/helpers"
	"github.com/jroosing/nettest/internal/peer"
	"github.com/jroosing/nettest/internal/resources"
	"github.com/jroosing/nettest/internal/transport"
)

// minStreamInterval keeps the loopback streamers from spinning when the
// configured interval is zero.
const minStreamInterval = time.Millisecond

// rig is a harness wired to its transport, plus whatever must run beside it.
type rig struct {
	h     *harness.Harness
	feed  func(context.Context) error // loopback stand-in for a streaming peer
	close func() error
}

func newRig(gs *cli.GlobalState, scenario string) (*rig, error) {
	cfg := gs.Config
	loopback := cfg.Harness.Transport == config.TransportLoopback

	hc, err := harnessConfig(cfg, loopback)
	if err != nil {
		return nil, err
	}
	h := &harness.Harness{
		Config: hc,
		Logger: gs.Logger,
		Report: harness.NewReporter(gs.Stdout, gs.Colorize()),
	}

	if loopback {
		return newLoopbackRig(gs, h, scenario)
	}

	u := transport.NewUDP(transport.UDPConfig{
		Host:       cfg.Harness.LocalHost,
		RecvBuffer: cfg.Harness.RecvBuffer,
	})
	h.T = u
	h.Counter = counterFor(cfg.Harness.Counter, nil)
	return &rig{h: h, close: u.Close}, nil
}

// newLoopbackRig builds a self-contained network: the peer and the resolver
// are endpoints, and the receive scenarios are fed by a streamer injecting
// as the peer.
func newLoopbackRig(gs *cli.GlobalState, h *harness.Harness, scenario string) (*rig, error) {
	cfg := gs.Config
	l := transport.NewLoopback(transport.LoopbackConfig{QueueDepth: cfg.Harness.QueueBound})

	peerAt := netip.AddrPortFrom(h.Config.PeerAddr, h.Config.PeerPort)
	send := peer.InjectSender(l, peerAt)
	target := peer.Target{
		Addr:  l.LocalAddr(),
		Port1: helpers.ClampIntToUint16(cfg.Peer.HarnessPort1),
		Port2: helpers.ClampIntToUint16(cfg.Peer.HarnessPort2),
	}

	var peerEndpoint transport.Endpoint = peer.Echo{}
	if scenario == "grade" {
		peerEndpoint = &peer.Grade{
			Send:   send,
			Target: target,
			Logger: gs.Logger,
			OnReport: func(r peer.Report) {
				gs.Logger.Info("peer verdict", "report", r.String())
			},
		}
	}
	l.Attach(peerAt.Addr(), peerAt.Port(), peerEndpoint)

	records, err := parseRecords(cfg.DNS.Records)
	if err != nil {
		return nil, err
	}
	resolver := peer.NewDNSResponder(records, cfg.DNS.TTL)
	resolver.EDNSPayloadSize = cfg.DNS.EDNSPayloadSize
	resolver.Logger = gs.Logger
	l.Attach(h.Config.DNSServer.Addr(), h.Config.DNSServer.Port(), resolver)

	h.T = l
	h.Counter = counterFor(cfg.Harness.Counter, l)

	streamer := &peer.Streamer{
		Send:    send,
		Target:  target,
		Limiter: rate.NewLimiter(rate.Every(max(cfg.Peer.StreamInterval, minStreamInterval)), 1),
		Logger:  gs.Logger,
	}
	r := &rig{h: h, close: func() error { return nil }}
	switch scenario {
	case "rx":
		r.feed = streamer.Rx
	case "rxburst":
		r.feed = streamer.RxBurst
	case "rx2":
		r.feed = streamer.Rx2
	}
	return r, nil
}

func harnessConfig(cfg *config.Config, loopback bool) (harness.Config, error) {
	hc := harness.DefaultConfig()

	peerAddr, err := netip.ParseAddr(cfg.Peer.Addr)
	if err != nil {
		return hc, fmt.Errorf("peer.addr: %w", err)
	}
	// On the loopback network loopback addresses are the harness itself,
	// so the simulated peer keeps its default address.
	if !loopback || !peerAddr.IsLoopback() {
		hc.PeerAddr = peerAddr.Unmap()
	}
	hc.PeerPort = helpers.ClampIntToUint16(cfg.Peer.Port)

	server, err := netip.ParseAddrPort(cfg.DNS.Server)
	if err != nil {
		return hc, fmt.Errorf("dns.server: %w", err)
	}
	hc.DNSServer = netip.AddrPortFrom(server.Addr().Unmap(), server.Port())
	hc.DNSName = cfg.DNS.Name
	if cfg.DNS.Expect != "" {
		expect, err := netip.ParseAddr(cfg.DNS.Expect)
		if err != nil {
			return hc, fmt.Errorf("dns.expect: %w", err)
		}
		hc.DNSExpect = expect.Unmap()
	}

	h := cfg.Harness
	hc.Timeout = h.Timeout
	hc.TxInterval = h.TxInterval
	hc.Settle = h.Settle
	hc.DrainWindow = h.DrainWindow
	hc.GradePause = h.GradePause
	hc.QueueBound = h.QueueBound
	hc.FreeTolerance = h.FreeTolerance
	return hc, nil
}

// counterFor picks the grade resource counter. l is the loopback network,
// or nil on real sockets.
func counterFor(name string, l *transport.Loopback) resources.Counter {
	switch name {
	case config.CounterMemory:
		return resources.NewMemoryCounter()
	case config.CounterLoopback:
		if l != nil {
			return l
		}
	}
	return resources.NewFDCounter()
}

func parseRecords(in map[string]string) (map[string]netip.Addr, error) {
	out := make(map[string]netip.Addr, len(in))
	for name, s := range in {
		addr, err := netip.ParseAddr(s)
		if err != nil {
			return nil, fmt.Errorf("dns.records[%s]: %w", name, err)
		}
		out[name] = addr.Unmap()
	}
	return out, nil
}
