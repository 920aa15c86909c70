package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/netip"
	"strconv"

	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/jroosing/nettest/internal/api"
	"github.com/jroosing/nettest/internal/cli"
	"github.com/jroosing/nettest/internal/config"
	"github.com/jroosing/nettest/internal/database"
	"github.com/jroosing/nettest/internal/helpers"
	"github.com/jroosing/nettest/internal/peer"
)

type mode struct {
	name  string
	short string
	run   func(ctx context.Context, s *session) error
}

var modes = []mode{
	{"txone", `Wait for "txone" on the peer port`, expect("txone", "txone")},
	{"tx", `Wait for "t 0" then "t 1" on the peer port`, expect("tx", "t 0", "t 1")},
	{"rxone", `Send "xyz" once to the first harness port`, stream((*peer.Streamer).RxOne)},
	{"rx", "Stream numbered packets to the first harness port", stream((*peer.Streamer).Rx)},
	{"rx2", "Stream to both harness ports", stream((*peer.Streamer).Rx2)},
	{"rxburst", "Flood the second harness port, then send one packet to the first", stream((*peer.Streamer).RxBurst)},
	{"ping", "Echo every datagram on the peer port", ping},
	{"grade", `Check "txone", answer "rxone", then echo`, grade},
	{"dns", "Answer A queries for the configured records", serveDNS},
}

// session is the state one mode runs with.
type session struct {
	gs    *cli.GlobalState
	cfg   *config.Config
	log   *slog.Logger
	stats *peer.Stats
}

func newModeCommand(gs *cli.GlobalState, m mode) *cobra.Command {
	return &cobra.Command{
		Use:   m.name,
		Short: m.short,
		Args:  cli.UsageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			s := &session{
				gs:    gs,
				cfg:   gs.Config,
				log:   gs.Logger.With("mode", m.name),
				stats: peer.NewStats(),
			}
			waitAPI, err := s.startAPI(ctx)
			if err != nil {
				return cli.WithExitCodeIfNone(err, cli.ExitFatal)
			}

			err = m.run(ctx, s)
			cancel()
			if apiErr := waitAPI(); apiErr != nil {
				s.log.Warn("status API stopped", "err", apiErr)
			}
			s.log.Debug("peer finished", "stats", fmt.Sprintf("%+v", s.stats.Snapshot()))
			return cli.WithExitCodeIfNone(err, cli.ExitFatal)
		},
	}
}

// startAPI serves the status API until ctx is done when it is enabled. The
// returned function waits for it to stop.
func (s *session) startAPI(ctx context.Context) (func() error, error) {
	if !s.cfg.API.Enabled {
		return func() error { return nil }, nil
	}

	var db *database.DB
	if path := s.gs.DBPath(); path != "" {
		var err error
		if db, err = database.Open(path); err != nil {
			return nil, err
		}
	}

	srv := api.New(s.cfg, db, s.log)
	srv.Handlers().SetStatsFunc(s.stats.Snapshot)
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Run(ctx) }()
	s.log.Info("status API listening", "addr", srv.Addr())

	return func() error {
		err := <-errCh
		if db != nil {
			err = errors.Join(err, db.Close())
		}
		return err
	}, nil
}

func (s *session) listen(port int) (*net.UDPConn, error) {
	addr, err := netip.ParseAddr(s.cfg.Peer.Addr)
	if err != nil {
		return nil, err
	}
	return net.ListenUDP("udp4", net.UDPAddrFromAddrPort(netip.AddrPortFrom(addr, helpers.ClampIntToUint16(port))))
}

func (s *session) target() peer.Target {
	return peer.Target{
		Addr:  netip.MustParseAddr(s.cfg.Peer.HarnessAddr),
		Port1: helpers.ClampIntToUint16(s.cfg.Peer.HarnessPort1),
		Port2: helpers.ClampIntToUint16(s.cfg.Peer.HarnessPort2),
	}
}

func (s *session) serverAddr() string {
	return net.JoinHostPort(s.cfg.Peer.Addr, strconv.Itoa(s.cfg.Peer.Port))
}

// expect records what arrives on the peer port and compares it with want.
func expect(name string, want ...string) func(context.Context, *session) error {
	return func(ctx context.Context, s *session) error {
		conn, err := s.listen(s.cfg.Peer.Port)
		if err != nil {
			return err
		}
		rec := peer.NewRecorder(len(want))
		srv := &peer.Server{Logger: s.log, Handler: rec, Stats: s.stats}

		srvCtx, stop := context.WithCancel(ctx)
		done := make(chan error, 1)
		go func() { done <- srv.RunOnConn(srvCtx, conn) }()
		s.log.Info("waiting for harness", "addr", conn.LocalAddr().String())

		rep, err := peer.Expect(ctx, rec, name, want...)
		stop()
		_ = srv.Stop()
		<-done
		if err != nil {
			return err
		}

		fmt.Fprintln(s.gs.Stdout, rep)
		if !rep.OK {
			return cli.WithExitCodeIfNone(errors.New(rep.String()), cli.ExitScenarioFailed)
		}
		return nil
	}
}

// stream runs one of the streamers from an ephemeral port until it has sent
// its rounds or ctx is done.
func stream(fn func(*peer.Streamer, context.Context) error) func(context.Context, *session) error {
	return func(ctx context.Context, s *session) error {
		conn, err := s.listen(0)
		if err != nil {
			return err
		}
		defer conn.Close()

		target := s.target()
		st := &peer.Streamer{
			Send:   peer.ConnSender(conn, target.Addr),
			Target: target,
			Rounds: s.cfg.Peer.Rounds,
			Logger: s.log,
			Stats:  s.stats,
		}
		if d := s.cfg.Peer.StreamInterval; d > 0 {
			st.Limiter = rate.NewLimiter(rate.Every(d), 1)
		}

		s.log.Info("streaming", "to", target.Addr.String(), "port1", target.Port1, "port2", target.Port2)
		if err := fn(st, ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	}
}

func ping(ctx context.Context, s *session) error {
	srv := &peer.Server{Logger: s.log, Handler: peer.Echo{}, Stats: s.stats}
	s.log.Info("echoing", "addr", s.serverAddr())
	return srv.Run(ctx, s.serverAddr())
}

func grade(ctx context.Context, s *session) error {
	conn, err := s.listen(s.cfg.Peer.Port)
	if err != nil {
		return err
	}
	target := s.target()
	g := &peer.Grade{
		Send:   peer.ConnSender(conn, target.Addr),
		Target: target,
		Logger: s.log,
		OnReport: func(r peer.Report) {
			fmt.Fprintln(s.gs.Stdout, r)
		},
	}
	srv := &peer.Server{Logger: s.log, Handler: g, Stats: s.stats}
	s.log.Info("grading", "addr", conn.LocalAddr().String())
	return srv.RunOnConn(ctx, conn)
}

func serveDNS(ctx context.Context, s *session) error {
	records := make(map[string]netip.Addr, len(s.cfg.DNS.Records))
	for name, v := range s.cfg.DNS.Records {
		addr, err := netip.ParseAddr(v)
		if err != nil {
			return fmt.Errorf("dns.records[%s]: %w", name, err)
		}
		records[name] = addr.Unmap()
	}
	resolver := peer.NewDNSResponder(records, s.cfg.DNS.TTL)
	resolver.EDNSPayloadSize = s.cfg.DNS.EDNSPayloadSize
	resolver.Logger = s.log

	srv := &peer.Server{Logger: s.log, Handler: resolver, Stats: s.stats}
	s.log.Info("resolving", "addr", s.cfg.DNS.Listen, "records", len(records))
	return srv.Run(ctx, s.cfg.DNS.Listen)
}
