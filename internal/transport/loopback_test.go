package transport_test

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jroosing/nettest/internal/transport"
)

var (
	hostAddr = netip.MustParseAddr("10.0.2.15")
	peerAddr = netip.MustParseAddr("10.0.2.2")
)

func newLoopback(t *testing.T) *transport.Loopback {
	t.Helper()
	return transport.NewLoopback(transport.LoopbackConfig{
		LocalAddr:  hostAddr,
		QueueDepth: 4,
		Buffers:    8,
		MaxPorts:   3,
	})
}

func echo() transport.Endpoint {
	return transport.EndpointFunc(func(from transport.Datagram) ([]byte, bool) {
		return from.Payload, true
	})
}

// =============================================================================
// Port table
// =============================================================================

func TestLoopback_BindTwice(t *testing.T) {
	l := newLoopback(t)
	require.NoError(t, l.Bind(2000))

	err := l.Bind(2000)
	require.Error(t, err)
	assert.ErrorIs(t, err, transport.ErrPortInUse)

	var opErr *transport.OpError
	require.True(t, errors.As(err, &opErr))
	assert.Equal(t, "bind", opErr.Op)
	assert.Equal(t, uint16(2000), opErr.Port)
	assert.Equal(t, "bind port 2000: port already bound", err.Error())
}

func TestLoopback_PortTableFull(t *testing.T) {
	l := newLoopback(t)
	for p := uint16(1); p <= 3; p++ {
		require.NoError(t, l.Bind(p))
	}
	assert.ErrorIs(t, l.Bind(4), transport.ErrPortTableFull)

	require.NoError(t, l.Unbind(2))
	assert.NoError(t, l.Bind(4))
}

func TestLoopback_NotBound(t *testing.T) {
	l := newLoopback(t)

	assert.ErrorIs(t, l.Unbind(2000), transport.ErrNotBound)
	_, err := l.Recv(context.Background(), 2000)
	assert.ErrorIs(t, err, transport.ErrNotBound)
}

// =============================================================================
// Delivery
// =============================================================================

func TestLoopback_LocalSendIsFIFO(t *testing.T) {
	l := newLoopback(t)
	require.NoError(t, l.Bind(2000))

	for i := range 3 {
		require.NoError(t, l.Send(3000, hostAddr, 2000, fmt.Appendf(nil, "m%d", i)))
	}

	for i := range 3 {
		d, err := l.Recv(context.Background(), 2000)
		require.NoError(t, err)
		assert.Equal(t, fmt.Sprintf("m%d", i), string(d.Payload))
		assert.Equal(t, hostAddr, d.Addr)
		assert.Equal(t, uint16(3000), d.Port)
	}
}

func TestLoopback_FullQueueDrops(t *testing.T) {
	l := newLoopback(t)
	require.NoError(t, l.Bind(2000))

	for range 6 {
		require.NoError(t, l.Send(3000, hostAddr, 2000, []byte("x")))
	}

	assert.Equal(t, 4, l.Queued(2000))
	assert.Equal(t, uint64(2), l.Dropped())
}

func TestLoopback_UnboundDestinationDrops(t *testing.T) {
	l := newLoopback(t)
	require.NoError(t, l.Send(3000, hostAddr, 2000, []byte("x")))
	assert.Equal(t, uint64(1), l.Dropped())
}

func TestLoopback_BufferPoolSharedAcrossPorts(t *testing.T) {
	l := newLoopback(t)
	require.NoError(t, l.Bind(1))
	require.NoError(t, l.Bind(2))
	require.NoError(t, l.Bind(3))

	// 3 ports x depth 4 = 12 slots, but only 8 buffers exist.
	for port := uint16(1); port <= 3; port++ {
		for range 4 {
			require.NoError(t, l.Send(9, hostAddr, port, []byte("x")))
		}
	}

	assert.Equal(t, 4, l.Queued(1))
	assert.Equal(t, 4, l.Queued(2))
	assert.Equal(t, 0, l.Queued(3))
	assert.Equal(t, uint64(4), l.Dropped())
}

func TestLoopback_EndpointReplyGoesToSenderPort(t *testing.T) {
	l := newLoopback(t)
	l.Attach(peerAddr, 25099, echo())
	require.NoError(t, l.Bind(2004))

	require.NoError(t, l.Send(2004, peerAddr, 25099, []byte("ping0")))

	d, err := l.Recv(context.Background(), 2004)
	require.NoError(t, err)
	assert.Equal(t, "ping0", string(d.Payload))
	assert.Equal(t, peerAddr, d.Addr)
	assert.Equal(t, uint16(25099), d.Port)
	assert.Empty(t, l.Sent())
}

func TestLoopback_EndpointCanIgnore(t *testing.T) {
	l := newLoopback(t)
	l.Attach(peerAddr, 53, transport.EndpointFunc(func(transport.Datagram) ([]byte, bool) {
		return nil, false
	}))
	require.NoError(t, l.Bind(10000))
	require.NoError(t, l.Send(10000, peerAddr, 53, []byte("q")))
	assert.Equal(t, 0, l.Queued(10000))

	l.Detach(peerAddr, 53)
	require.NoError(t, l.Send(10000, peerAddr, 53, []byte("q")))
	assert.Len(t, l.Sent(), 1)
}

func TestLoopback_SentRecordsUnknownDestinations(t *testing.T) {
	l := newLoopback(t)
	require.NoError(t, l.Send(2003, peerAddr, 25099, []byte("txone")))

	payload := []byte("t 0")
	require.NoError(t, l.Send(2000, peerAddr, 25099, payload))
	payload[0] = 'X' // the transport keeps its own copy

	sent := l.Sent()
	require.Len(t, sent, 2)
	assert.Equal(t, "txone", string(sent[0].Payload))
	assert.Equal(t, "t 0", string(sent[1].Payload))
	assert.Equal(t, netip.AddrPortFrom(peerAddr, 25099), sent[1].AddrPort())
}

func TestLoopback_PayloadTooLarge(t *testing.T) {
	l := newLoopback(t)
	err := l.Send(1, hostAddr, 2, make([]byte, transport.DefaultMaxPayload+1))
	assert.ErrorIs(t, err, transport.ErrPayloadTooLarge)
}

func TestLoopback_Inject(t *testing.T) {
	l := newLoopback(t)
	require.NoError(t, l.Bind(2000))

	ok := l.Inject(2000, transport.Datagram{Addr: peerAddr, Port: 4000, Payload: []byte("packet 1")})
	require.True(t, ok)
	assert.False(t, l.Inject(2001, transport.Datagram{Addr: peerAddr, Port: 4000}))

	d, err := l.Recv(context.Background(), 2000)
	require.NoError(t, err)
	assert.Equal(t, "packet 1", string(d.Payload))
	assert.Equal(t, peerAddr, d.Addr)
}

// =============================================================================
// Blocking receive
// =============================================================================

func TestLoopback_RecvHonoursContext(t *testing.T) {
	l := newLoopback(t)
	require.NoError(t, l.Bind(2000))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := l.Recv(ctx, 2000)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestLoopback_UnbindWakesReceiver(t *testing.T) {
	l := newLoopback(t)
	require.NoError(t, l.Bind(2000))

	var wg sync.WaitGroup
	var recvErr error
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, recvErr = l.Recv(context.Background(), 2000)
	}()

	// Let the receiver block before closing the port.
	time.Sleep(20 * time.Millisecond)
	require.NoError(t, l.Unbind(2000))
	wg.Wait()

	assert.ErrorIs(t, recvErr, transport.ErrClosed)
}

// =============================================================================
// CountFree
// =============================================================================

func TestLoopback_CountFree(t *testing.T) {
	l := newLoopback(t)
	ctx := context.Background()

	initial, err := l.CountFree(ctx)
	require.NoError(t, err)
	assert.Equal(t, 8+3, initial)

	require.NoError(t, l.Bind(2000))
	for range 3 {
		require.NoError(t, l.Send(1, hostAddr, 2000, []byte("x")))
	}

	busy, err := l.CountFree(ctx)
	require.NoError(t, err)
	assert.Equal(t, initial-3-1, busy)

	// Counting must not consume anything.
	again, err := l.CountFree(ctx)
	require.NoError(t, err)
	assert.Equal(t, busy, again)

	require.NoError(t, l.Unbind(2000))
	after, err := l.CountFree(ctx)
	require.NoError(t, err)
	assert.Equal(t, initial, after)
}

func TestLoopback_CountFreeCancelled(t *testing.T) {
	l := newLoopback(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := l.CountFree(ctx)
	require.ErrorIs(t, err, context.Canceled)

	n, err := l.CountFree(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 11, n)
}
