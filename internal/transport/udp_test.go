package transport_test

import (
	"context"
	"net"
	"net/netip"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jroosing/nettest/internal/transport"
)

var localhost = netip.MustParseAddr("127.0.0.1")

// freePort asks the kernel for an unused UDP port on localhost.
func freePort(t *testing.T) uint16 {
	t.Helper()
	pc, err := net.ListenPacket("udp4", "127.0.0.1:0")
	require.NoError(t, err)
	port := pc.LocalAddr().(*net.UDPAddr).Port
	require.NoError(t, pc.Close())
	return uint16(port)
}

func newUDP(t *testing.T) *transport.UDP {
	t.Helper()
	u := transport.NewUDP(transport.UDPConfig{
		Host:         "127.0.0.1",
		RecvBuffer:   64 * 1024,
		PollInterval: 20 * time.Millisecond,
	})
	t.Cleanup(func() { _ = u.Close() })
	return u
}

func TestUDP_SendRecv(t *testing.T) {
	u := newUDP(t)
	a, b := freePort(t), freePort(t)
	require.NoError(t, u.Bind(a))
	require.NoError(t, u.Bind(b))

	bound, ok := u.LocalAddr(a)
	require.True(t, ok)
	assert.Equal(t, a, bound.Port())

	for _, msg := range []string{"one 1", "one 2"} {
		require.NoError(t, u.Send(a, localhost, b, []byte(msg)))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	for _, want := range []string{"one 1", "one 2"} {
		d, err := u.Recv(ctx, b)
		require.NoError(t, err)
		assert.Equal(t, want, string(d.Payload))
		assert.Equal(t, localhost, d.Addr)
		assert.Equal(t, a, d.Port)
	}
}

func TestUDP_SendFromUnboundPort(t *testing.T) {
	u := newUDP(t)
	dst, src := freePort(t), freePort(t)
	require.NoError(t, u.Bind(dst))

	require.NoError(t, u.Send(src, localhost, dst, []byte("txone")))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	d, err := u.Recv(ctx, dst)
	require.NoError(t, err)
	assert.Equal(t, "txone", string(d.Payload))
	assert.Equal(t, src, d.Port)

	_, ok := u.LocalAddr(src)
	assert.False(t, ok, "temporary socket must not stay bound")
}

func TestUDP_BindConflict(t *testing.T) {
	u := newUDP(t)
	other := newUDP(t)
	port := freePort(t)

	require.NoError(t, u.Bind(port))
	assert.ErrorIs(t, u.Bind(port), transport.ErrPortInUse)
	assert.ErrorIs(t, other.Bind(port), transport.ErrPortInUse)
}

func TestUDP_RecvHonoursContext(t *testing.T) {
	u := newUDP(t)
	port := freePort(t)
	require.NoError(t, u.Bind(port))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := u.Recv(ctx, port)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
}

func TestUDP_UnbindWakesReceiver(t *testing.T) {
	u := newUDP(t)
	port := freePort(t)
	require.NoError(t, u.Bind(port))

	var wg sync.WaitGroup
	var recvErr error
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, recvErr = u.Recv(context.Background(), port)
	}()

	time.Sleep(30 * time.Millisecond)
	require.NoError(t, u.Unbind(port))
	wg.Wait()

	assert.ErrorIs(t, recvErr, transport.ErrClosed)
	assert.ErrorIs(t, u.Unbind(port), transport.ErrNotBound)
}

func TestUDP_PayloadTooLarge(t *testing.T) {
	u := newUDP(t)
	err := u.Send(freePort(t), localhost, freePort(t), make([]byte, transport.MaxUDPPayload+1))
	assert.ErrorIs(t, err, transport.ErrPayloadTooLarge)
}
