// Package transport provides the UDP datagram operations the test harness and
// the peer are written against: bind a local port, send from a local port,
// receive on a bound port, and release it again.
//
// Two implementations exist. UDP uses real kernel sockets. Loopback is an
// in-memory network with bounded per-port queues and a finite buffer pool,
// used for self-tests and unit tests.
package transport

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
)

// Datagram is one UDP payload together with its remote address. On receive
// Addr and Port identify the sender.
type Datagram struct {
	Addr    netip.Addr
	Port    uint16
	Payload []byte
}

// AddrPort returns the remote endpoint as a netip.AddrPort.
func (d Datagram) AddrPort() netip.AddrPort {
	return netip.AddrPortFrom(d.Addr, d.Port)
}

// Transport is a socket-per-port datagram service.
//
// A bound port is owned by exactly one caller. Datagrams arriving at a bound
// port are delivered by Recv in arrival order. Nothing is promised about
// ordering across ports.
type Transport interface {
	Bind(port uint16) error
	Unbind(port uint16) error
	Send(localPort uint16, dst netip.Addr, dstPort uint16, payload []byte) error
	Recv(ctx context.Context, port uint16) (Datagram, error)
}

var (
	ErrPortInUse       = errors.New("port already bound")
	ErrNotBound        = errors.New("port not bound")
	ErrClosed          = errors.New("port closed")
	ErrPortTableFull   = errors.New("port table full")
	ErrPayloadTooLarge = errors.New("payload too large")
)

// OpError describes a failed transport operation on a local port.
type OpError struct {
	Op   string
	Port uint16
	Err  error
}

func (e *OpError) Error() string {
	return fmt.Sprintf("%s port %d: %v", e.Op, e.Port, e.Err)
}

func (e *OpError) Unwrap() error { return e.Err }

func opError(op string, port uint16, err error) error {
	return &OpError{Op: op, Port: port, Err: err}
}
