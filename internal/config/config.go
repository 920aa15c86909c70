// Package config provides configuration types, defaults, and validation for
// the nettest harness and peer.
//
// Values are layered: Default, then an optional SQLite profile (see
// internal/database), then NETTEST_* environment variables, then command
// line flags. Validate runs last and normalizes what it accepts.
package config

import (
	"errors"
	"fmt"
	"net"
	"net/netip"
	"os"
	"strings"
	"time"

	"github.com/mstoykov/envconfig"
)

// DefaultPeerPort is the peer's server port for the current user, so that
// several users can share a host.
func DefaultPeerPort() int {
	uid := max(os.Getuid(), 0)
	return uid%5000 + 25099
}

// Default returns the configuration used when nothing else is set.
func Default() *Config {
	return &Config{
		Harness: HarnessConfig{
			Transport:     TransportUDP,
			LocalHost:     "127.0.0.1",
			RecvBuffer:    4096,
			TxInterval:    time.Second,
			Settle:        100 * time.Millisecond,
			DrainWindow:   500 * time.Millisecond,
			GradePause:    200 * time.Millisecond,
			QueueBound:    16,
			FreeTolerance: 32,
		},
		Peer: PeerConfig{
			Addr:           "127.0.0.1",
			Port:           DefaultPeerPort(),
			HarnessAddr:    "127.0.0.1",
			HarnessPort1:   2000,
			HarnessPort2:   2001,
			StreamInterval: time.Second,
		},
		DNS: DNSConfig{
			Server:  "8.8.8.8:53",
			Name:    "pdos.csail.mit.edu.",
			Listen:  "127.0.0.1:5353",
			Records: map[string]string{"pdos.csail.mit.edu.": "128.52.129.126"},
			TTL:     300,
		},
		Logging: LoggingConfig{
			Level:            "INFO",
			StructuredFormat: "keyvalue",
			ExtraFields:      map[string]string{},
		},
		API: APIConfig{
			Host: "127.0.0.1",
			Port: 8080,
		},
	}
}

// ApplyEnv overlays NETTEST_* variables found through lookup onto cfg. A nil
// lookup reads the process environment.
func (cfg *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	sections := []any{&cfg.Harness, &cfg.Peer, &cfg.DNS, &cfg.Logging, &cfg.API, &cfg.Database}
	for _, s := range sections {
		if err := envconfig.Process("", s, lookup); err != nil {
			return fmt.Errorf("environment: %w", err)
		}
	}
	return nil
}

// Validate validates and normalizes the configuration.
func (cfg *Config) Validate() error {
	var errs []error
	check := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	h := &cfg.Harness
	h.Transport = strings.ToLower(strings.TrimSpace(h.Transport))
	switch h.Transport {
	case "":
		h.Transport = TransportUDP
	case TransportUDP, TransportLoopback:
	default:
		check(fmt.Errorf("harness.transport must be %s or %s", TransportUDP, TransportLoopback))
	}

	h.Counter = strings.ToLower(strings.TrimSpace(h.Counter))
	switch h.Counter {
	case "":
		h.Counter = CounterFD
		if h.Transport == TransportLoopback {
			h.Counter = CounterLoopback
		}
	case CounterFD, CounterMemory:
	case CounterLoopback:
		if h.Transport != TransportLoopback {
			check(errors.New("harness.counter loopback needs harness.transport loopback"))
		}
	default:
		check(fmt.Errorf("harness.counter must be %s, %s or %s", CounterFD, CounterMemory, CounterLoopback))
	}

	if h.RecvBuffer < 0 {
		check(errors.New("harness.recv_buffer must not be negative"))
	}
	for name, d := range map[string]time.Duration{
		"harness.timeout":      h.Timeout,
		"harness.tx_interval":  h.TxInterval,
		"harness.settle":       h.Settle,
		"harness.drain_window": h.DrainWindow,
		"harness.grade_pause":  h.GradePause,
		"peer.stream_interval": cfg.Peer.StreamInterval,
	} {
		if d < 0 {
			check(fmt.Errorf("%s must not be negative", name))
		}
	}
	if h.QueueBound <= 0 {
		check(errors.New("harness.queue_bound must be positive"))
	}
	if h.FreeTolerance < 0 {
		check(errors.New("harness.free_tolerance must not be negative"))
	}

	p := &cfg.Peer
	check(checkAddr("peer.addr", p.Addr))
	check(checkAddr("peer.harness_addr", p.HarnessAddr))
	check(checkPort("peer.port", p.Port))
	check(checkPort("peer.harness_port1", p.HarnessPort1))
	check(checkPort("peer.harness_port2", p.HarnessPort2))
	if p.Rounds < 0 {
		check(errors.New("peer.rounds must not be negative"))
	}

	d := &cfg.DNS
	if server, err := normalizeAddrPort(d.Server, 53); err != nil {
		check(fmt.Errorf("dns.server: %w", err))
	} else {
		d.Server = server
	}
	if listen, err := normalizeAddrPort(d.Listen, 53); err != nil {
		check(fmt.Errorf("dns.listen: %w", err))
	} else {
		d.Listen = listen
	}
	if strings.TrimSpace(d.Name) == "" {
		check(errors.New("dns.name must not be empty"))
	}
	if d.Expect != "" {
		check(checkAddr("dns.expect", d.Expect))
	}
	if d.Records == nil {
		d.Records = map[string]string{}
	}
	for name, addr := range d.Records {
		check(checkAddr("dns.records["+name+"]", addr))
	}

	// Normalize logging
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "INFO"
	}
	cfg.Logging.Level = strings.ToUpper(cfg.Logging.Level)
	if cfg.Logging.StructuredFormat == "" {
		cfg.Logging.StructuredFormat = "keyvalue"
	}
	if cfg.Logging.ExtraFields == nil {
		cfg.Logging.ExtraFields = map[string]string{}
	}

	// Normalize status API
	if cfg.API.Host == "" {
		cfg.API.Host = "127.0.0.1"
	}
	if cfg.API.Enabled {
		check(checkPort("api.port", cfg.API.Port))
	}

	return errors.Join(errs...)
}

func checkPort(name string, port int) error {
	if port <= 0 || port > 65535 {
		return fmt.Errorf("%s must be 1..65535", name)
	}
	return nil
}

func checkAddr(name, s string) error {
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	if !addr.Unmap().Is4() {
		return fmt.Errorf("%s: %s is not an IPv4 address", name, s)
	}
	return nil
}

// normalizeAddrPort accepts "addr" or "addr:port" and returns "addr:port".
func normalizeAddrPort(s string, defaultPort int) (string, error) {
	s = strings.TrimSpace(s)
	if _, _, err := net.SplitHostPort(s); err != nil {
		s = net.JoinHostPort(s, fmt.Sprint(defaultPort))
	}
	ap, err := netip.ParseAddrPort(s)
	if err != nil {
		return "", err
	}
	if !ap.Addr().Unmap().Is4() || ap.Port() == 0 {
		return "", fmt.Errorf("%s is not an IPv4 address and port", s)
	}
	return ap.String(), nil
}
