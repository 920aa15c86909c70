package pool_test

import (
	"sync"
	"testing"

	"github.com/jroosing/nettest/internal/pool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Pool Tests
// =============================================================================

func TestPool_ConstructorCalled(t *testing.T) {
	callCount := 0
	p := pool.New(func() int {
		callCount++
		return callCount
	})

	// Nothing put back yet, so every Get constructs.
	assert.Equal(t, 1, p.Get())
	assert.Equal(t, 2, p.Get())
	assert.Equal(t, 2, callCount)
}

func TestPool_WithStructType(t *testing.T) {
	type datagram struct {
		Payload []byte
		Port    uint16
	}

	p := pool.New(func() *datagram {
		return &datagram{Payload: make([]byte, 512)}
	})

	d := p.Get()
	require.NotNil(t, d)
	assert.Len(t, d.Payload, 512)

	d.Port = 2000
	p.Put(d)
}

// =============================================================================
// Buffers Tests
// =============================================================================

func TestBuffers_GetReturnsFullSize(t *testing.T) {
	b := pool.NewBuffers(1500)
	assert.Equal(t, 1500, b.Size())

	buf := b.Get()
	require.NotNil(t, buf)
	assert.Len(t, *buf, 1500)

	// A caller that reslices must still get a full buffer back next time.
	*buf = (*buf)[:3]
	b.Put(buf)

	again := b.Get()
	assert.Len(t, *again, 1500)
}

func TestBuffers_PutIgnoresForeignBuffers(t *testing.T) {
	b := pool.NewBuffers(64)

	small := make([]byte, 8)
	b.Put(&small)
	b.Put(nil)

	for range 4 {
		buf := b.Get()
		assert.Len(t, *buf, 64)
	}
}

func TestBuffers_ConcurrentAccess(t *testing.T) {
	b := pool.NewBuffers(256)

	var wg sync.WaitGroup
	const goroutines = 50
	const iterations = 500

	for range goroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range iterations {
				buf := b.Get()
				(*buf)[0] = byte(j)
				b.Put(buf)
			}
		}()
	}

	wg.Wait()
}

// =============================================================================
// Benchmarks
// =============================================================================

func BenchmarkBuffers_GetPut(b *testing.B) {
	p := pool.NewBuffers(1500)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		buf := p.Get()
		p.Put(buf)
	}
}

func BenchmarkBuffers_Parallel(b *testing.B) {
	p := pool.NewBuffers(1500)

	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			buf := p.Get()
			p.Put(buf)
		}
	})
}
