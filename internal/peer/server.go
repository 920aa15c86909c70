package peer

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/jroosing/nettest/internal/pool"
	"github.com/jroosing/nettest/internal/transport"
)

// maxDatagramSize bounds what the peer reads from its socket. Harness
// payloads and DNS queries are far smaller.
const maxDatagramSize = 4096

// bufferPool reduces allocations for incoming datagrams.
var bufferPool = pool.NewBuffers(maxDatagramSize)

// Server reads datagrams on one UDP socket and hands each to Handler in
// arrival order. A reply from the handler is written back to the sender.
//
// Requests are handled one at a time so replies leave in the order their
// requests arrived.
type Server struct {
	Logger  *slog.Logger       // Optional logger
	Handler transport.Endpoint // Datagram processor
	Stats   *Stats             // Optional counters

	mu   sync.Mutex
	conn *net.UDPConn
}

// Run listens on addr and serves until ctx is done or Stop is called.
func (s *Server) Run(ctx context.Context, addr string) error {
	udpAddr, err := net.ResolveUDPAddr("udp4", addr)
	if err != nil {
		return err
	}
	conn, err := net.ListenUDP("udp4", udpAddr)
	if err != nil {
		return err
	}
	return s.RunOnConn(ctx, conn)
}

// RunOnConn serves on an existing socket and closes it on return.
func (s *Server) RunOnConn(ctx context.Context, conn *net.UDPConn) error {
	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()
	defer conn.Close()

	log := s.logger().With("local", conn.LocalAddr().String())
	log.Debug("peer server started")

	for ctx.Err() == nil {
		d, ok, closed := s.receivePacket(conn)
		if closed {
			break
		}
		if !ok {
			continue
		}
		s.Stats.RecordReceived()

		reply, ok := s.Handler.Respond(d)
		if !ok {
			s.Stats.RecordIgnored()
			continue
		}
		if _, err := conn.WriteToUDPAddrPort(reply, d.AddrPort()); err != nil {
			log.Warn("reply failed", "to", d.AddrPort().String(), "err", err)
			continue
		}
		s.Stats.RecordReplied()
	}

	log.Debug("peer server stopped")
	return nil
}

// receivePacket reads one datagram using a pooled buffer. ok is false on a
// read timeout; closed is true once the socket has been closed.
func (s *Server) receivePacket(conn *net.UDPConn) (d transport.Datagram, ok, closed bool) {
	bufPtr := bufferPool.Get()
	buf := *bufPtr
	defer bufferPool.Put(bufPtr)

	_ = conn.SetReadDeadline(time.Now().Add(1 * time.Second))
	n, remote, err := conn.ReadFromUDPAddrPort(buf)
	if err != nil {
		if errors.Is(err, net.ErrClosed) {
			return d, false, true
		}
		return d, false, false // timeout, check context and retry
	}

	// Copy data out of pooled buffer
	data := make([]byte, n)
	copy(data, buf[:n])
	return transport.Datagram{Addr: remote.Addr().Unmap(), Port: remote.Port(), Payload: data}, true, false
}

// Addr returns the socket address once serving has started.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return nil
	}
	return s.conn.LocalAddr()
}

// Stop closes the socket, which ends Run.
func (s *Server) Stop() error {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return nil
	}
	if err := conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		return err
	}
	return nil
}

func (s *Server) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}
