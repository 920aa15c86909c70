package transport

import (
	"context"
	"errors"
	"net"
	"net/netip"
	"os"
	"strconv"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"github.com/jroosing/nettest/internal/pool"
)

const (
	// MaxUDPPayload is the largest payload an IPv4 UDP datagram can carry.
	MaxUDPPayload = 65507

	defaultPollInterval = 250 * time.Millisecond
)

// UDPConfig configures the socket transport.
type UDPConfig struct {
	// Host is the local address ports are bound on. Empty means all
	// IPv4 interfaces.
	Host string
	// RecvBuffer sets SO_RCVBUF in bytes on every bound socket. Zero leaves
	// the kernel default.
	RecvBuffer int
	// PollInterval is the read deadline used while waiting in Recv, and so
	// the latency of noticing a cancelled context.
	PollInterval time.Duration
}

// UDP is a Transport over kernel UDP sockets, one socket per bound port.
type UDP struct {
	cfg  UDPConfig
	bufs *pool.Buffers

	mu    sync.Mutex
	conns map[uint16]*net.UDPConn
}

// NewUDP returns a socket transport with no ports bound.
func NewUDP(cfg UDPConfig) *UDP {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	return &UDP{
		cfg:   cfg,
		bufs:  pool.NewBuffers(MaxUDPPayload),
		conns: make(map[uint16]*net.UDPConn),
	}
}

func (u *UDP) Bind(port uint16) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	if _, ok := u.conns[port]; ok {
		return opError("bind", port, ErrPortInUse)
	}
	conn, err := u.listen(context.Background(), port)
	if err != nil {
		if errors.Is(err, unix.EADDRINUSE) {
			err = ErrPortInUse
		}
		return opError("bind", port, err)
	}
	u.conns[port] = conn
	return nil
}

// Unbind closes the socket on port. A Recv blocked on it returns ErrClosed.
func (u *UDP) Unbind(port uint16) error {
	u.mu.Lock()
	conn, ok := u.conns[port]
	delete(u.conns, port)
	u.mu.Unlock()

	if !ok {
		return opError("unbind", port, ErrNotBound)
	}
	if err := conn.Close(); err != nil {
		return opError("unbind", port, err)
	}
	return nil
}

// Send writes payload from localPort. When localPort is not bound a socket
// is opened on it for the duration of the write.
func (u *UDP) Send(localPort uint16, dst netip.Addr, dstPort uint16, payload []byte) error {
	if len(payload) > MaxUDPPayload {
		return opError("send", localPort, ErrPayloadTooLarge)
	}
	to := netip.AddrPortFrom(dst.Unmap(), dstPort)

	u.mu.Lock()
	conn, ok := u.conns[localPort]
	u.mu.Unlock()

	if !ok {
		c, err := u.listen(context.Background(), localPort)
		if err != nil {
			return opError("send", localPort, err)
		}
		defer c.Close()
		conn = c
	}
	if _, err := conn.WriteToUDPAddrPort(payload, to); err != nil {
		return opError("send", localPort, err)
	}
	return nil
}

// Recv blocks until a datagram arrives on port, the port is unbound, or ctx
// is done.
func (u *UDP) Recv(ctx context.Context, port uint16) (Datagram, error) {
	u.mu.Lock()
	conn, ok := u.conns[port]
	u.mu.Unlock()
	if !ok {
		return Datagram{}, opError("recv", port, ErrNotBound)
	}

	bufPtr := u.bufs.Get()
	defer u.bufs.Put(bufPtr)
	buf := *bufPtr

	for {
		if err := ctx.Err(); err != nil {
			return Datagram{}, opError("recv", port, err)
		}

		deadline := time.Now().Add(u.cfg.PollInterval)
		if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
			deadline = d
		}
		_ = conn.SetReadDeadline(deadline)

		n, from, err := conn.ReadFromUDPAddrPort(buf)
		if err != nil {
			if errors.Is(err, os.ErrDeadlineExceeded) {
				continue // check context and retry
			}
			if errors.Is(err, net.ErrClosed) {
				return Datagram{}, opError("recv", port, ErrClosed)
			}
			return Datagram{}, opError("recv", port, err)
		}

		// Copy data out of pooled buffer
		data := make([]byte, n)
		copy(data, buf[:n])
		return Datagram{Addr: from.Addr().Unmap(), Port: from.Port(), Payload: data}, nil
	}
}

// LocalAddr returns the bound address of port, or false when not bound.
func (u *UDP) LocalAddr(port uint16) (netip.AddrPort, bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	conn, ok := u.conns[port]
	if !ok {
		return netip.AddrPort{}, false
	}
	return conn.LocalAddr().(*net.UDPAddr).AddrPort(), true
}

// Close unbinds every port.
func (u *UDP) Close() error {
	u.mu.Lock()
	conns := u.conns
	u.conns = make(map[uint16]*net.UDPConn)
	u.mu.Unlock()

	var errs []error
	for _, c := range conns {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (u *UDP) listen(ctx context.Context, port uint16) (*net.UDPConn, error) {
	lc := net.ListenConfig{Control: u.control}
	pc, err := lc.ListenPacket(ctx, "udp4", net.JoinHostPort(u.cfg.Host, strconv.Itoa(int(port))))
	if err != nil {
		return nil, err
	}
	return pc.(*net.UDPConn), nil
}

func (u *UDP) control(_, _ string, c syscall.RawConn) error {
	if u.cfg.RecvBuffer <= 0 {
		return nil
	}
	var serr error
	err := c.Control(func(fd uintptr) {
		serr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_RCVBUF, u.cfg.RecvBuffer)
	})
	if err != nil {
		return err
	}
	return serr
}
