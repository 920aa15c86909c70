package transport

import (
	"context"
	"net/netip"
	"sync"
	"sync/atomic"
)

// Loopback defaults. QueueDepth matches the per-socket limit the bounded-queue
// scenario checks for.
const (
	DefaultQueueDepth = 16
	DefaultBuffers    = 128
	DefaultMaxPorts   = 32
	DefaultMaxPayload = 1472
	maxSentLog        = 256
)

// LoopbackConfig sizes an in-memory network.
type LoopbackConfig struct {
	LocalAddr  netip.Addr // address of the host under test
	QueueDepth int        // datagrams queued per bound port
	Buffers    int        // datagrams queued across all ports
	MaxPorts   int        // simultaneously bound ports
	MaxPayload int        // largest accepted payload
}

func (c LoopbackConfig) withDefaults() LoopbackConfig {
	if !c.LocalAddr.IsValid() {
		c.LocalAddr = netip.AddrFrom4([4]byte{10, 0, 2, 15})
	}
	if c.QueueDepth <= 0 {
		c.QueueDepth = DefaultQueueDepth
	}
	if c.Buffers <= 0 {
		c.Buffers = DefaultBuffers
	}
	if c.MaxPorts <= 0 {
		c.MaxPorts = DefaultMaxPorts
	}
	if c.MaxPayload <= 0 {
		c.MaxPayload = DefaultMaxPayload
	}
	return c
}

// Endpoint is a remote host attached to a Loopback network. Respond is called
// once per datagram sent to it; a true ok queues reply back to the sender.
type Endpoint interface {
	Respond(from Datagram) (reply []byte, ok bool)
}

// EndpointFunc adapts a function to Endpoint.
type EndpointFunc func(from Datagram) ([]byte, bool)

func (f EndpointFunc) Respond(from Datagram) ([]byte, bool) { return f(from) }

type portQueue struct {
	ch   chan Datagram
	done chan struct{}
}

// Loopback is an in-memory Transport. A datagram addressed to a full queue,
// to an unbound port, or sent while the buffer pool is exhausted is dropped
// and counted, the way a kernel drops on a full socket.
type Loopback struct {
	cfg LoopbackConfig

	mu        sync.RWMutex
	ports     map[uint16]*portQueue
	endpoints map[netip.AddrPort]Endpoint

	sentMu sync.Mutex
	sent   []Datagram

	tokens  chan struct{}
	dropped atomic.Uint64
}

// NewLoopback creates an empty network. Zero fields of cfg take defaults.
func NewLoopback(cfg LoopbackConfig) *Loopback {
	cfg = cfg.withDefaults()
	l := &Loopback{
		cfg:       cfg,
		ports:     make(map[uint16]*portQueue),
		endpoints: make(map[netip.AddrPort]Endpoint),
		tokens:    make(chan struct{}, cfg.Buffers),
	}
	for range cfg.Buffers {
		l.tokens <- struct{}{}
	}
	return l
}

// Config returns the effective configuration.
func (l *Loopback) Config() LoopbackConfig { return l.cfg }

// LocalAddr is the address bound ports live on.
func (l *Loopback) LocalAddr() netip.Addr { return l.cfg.LocalAddr }

// Attach places ep at addr:port. A later Attach at the same place replaces it.
func (l *Loopback) Attach(addr netip.Addr, port uint16, ep Endpoint) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.endpoints[netip.AddrPortFrom(addr, port)] = ep
}

// Detach removes the endpoint at addr:port, if any.
func (l *Loopback) Detach(addr netip.Addr, port uint16) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.endpoints, netip.AddrPortFrom(addr, port))
}

func (l *Loopback) Bind(port uint16) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.ports[port]; ok {
		return opError("bind", port, ErrPortInUse)
	}
	if len(l.ports) >= l.cfg.MaxPorts {
		return opError("bind", port, ErrPortTableFull)
	}
	l.ports[port] = &portQueue{
		ch:   make(chan Datagram, l.cfg.QueueDepth),
		done: make(chan struct{}),
	}
	return nil
}

// Unbind releases port. Queued datagrams are discarded and their buffers
// returned; a Recv blocked on the port returns ErrClosed.
func (l *Loopback) Unbind(port uint16) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	q, ok := l.ports[port]
	if !ok {
		return opError("unbind", port, ErrNotBound)
	}
	delete(l.ports, port)
	close(q.done)
	for {
		select {
		case <-q.ch:
			l.release()
		default:
			return nil
		}
	}
}

func (l *Loopback) Send(localPort uint16, dst netip.Addr, dstPort uint16, payload []byte) error {
	if len(payload) > l.cfg.MaxPayload {
		return opError("send", localPort, ErrPayloadTooLarge)
	}
	from := Datagram{
		Addr:    l.cfg.LocalAddr,
		Port:    localPort,
		Payload: append([]byte(nil), payload...),
	}
	dst = dst.Unmap()

	if dst == l.cfg.LocalAddr || dst.IsLoopback() {
		l.deliver(dstPort, from)
		return nil
	}

	l.mu.RLock()
	ep, ok := l.endpoints[netip.AddrPortFrom(dst, dstPort)]
	l.mu.RUnlock()

	if !ok {
		l.record(Datagram{Addr: dst, Port: dstPort, Payload: from.Payload})
		return nil
	}
	if reply, ok := ep.Respond(from); ok {
		l.deliver(localPort, Datagram{
			Addr:    dst,
			Port:    dstPort,
			Payload: append([]byte(nil), reply...),
		})
	}
	return nil
}

func (l *Loopback) Recv(ctx context.Context, port uint16) (Datagram, error) {
	l.mu.RLock()
	q, ok := l.ports[port]
	l.mu.RUnlock()
	if !ok {
		return Datagram{}, opError("recv", port, ErrNotBound)
	}

	select {
	case d := <-q.ch:
		l.release()
		return d, nil
	case <-q.done:
		return Datagram{}, opError("recv", port, ErrClosed)
	case <-ctx.Done():
		return Datagram{}, opError("recv", port, ctx.Err())
	}
}

// Inject delivers d to a local port as if it arrived from d.Addr:d.Port.
// It reports whether the datagram was queued.
func (l *Loopback) Inject(port uint16, d Datagram) bool {
	d.Payload = append([]byte(nil), d.Payload...)
	return l.deliver(port, d)
}

// Sent returns a copy of the datagrams sent to addresses with no endpoint,
// oldest first. Only the most recent ones are kept.
func (l *Loopback) Sent() []Datagram {
	l.sentMu.Lock()
	defer l.sentMu.Unlock()
	out := make([]Datagram, len(l.sent))
	copy(out, l.sent)
	return out
}

// Dropped is the number of datagrams discarded since creation.
func (l *Loopback) Dropped() uint64 { return l.dropped.Load() }

// Queued is the number of datagrams waiting on port.
func (l *Loopback) Queued(port uint16) int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if q, ok := l.ports[port]; ok {
		return len(q.ch)
	}
	return 0
}

// CountFree takes buffer tokens until none are left, puts them back, and
// returns how many it got plus the number of free port table slots.
func (l *Loopback) CountFree(ctx context.Context) (int, error) {
	n := 0
grab:
	for {
		if err := ctx.Err(); err != nil {
			l.releaseN(n)
			return 0, err
		}
		select {
		case <-l.tokens:
			n++
		default:
			break grab
		}
	}
	l.releaseN(n)

	l.mu.RLock()
	slots := l.cfg.MaxPorts - len(l.ports)
	l.mu.RUnlock()
	return n + slots, nil
}

func (l *Loopback) deliver(port uint16, d Datagram) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()

	q, ok := l.ports[port]
	if !ok || !l.acquire() {
		l.dropped.Add(1)
		return false
	}
	select {
	case q.ch <- d:
		return true
	default:
		l.release()
		l.dropped.Add(1)
		return false
	}
}

func (l *Loopback) record(d Datagram) {
	l.sentMu.Lock()
	defer l.sentMu.Unlock()
	if len(l.sent) == maxSentLog {
		l.sent = append(l.sent[:0], l.sent[1:]...)
	}
	l.sent = append(l.sent, d)
}

func (l *Loopback) acquire() bool {
	select {
	case <-l.tokens:
		return true
	default:
		return false
	}
}

func (l *Loopback) release() {
	l.tokens <- struct{}{}
}

func (l *Loopback) releaseN(n int) {
	for range n {
		l.release()
	}
}
