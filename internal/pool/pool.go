// Package pool provides typed object pools for the receive paths of the
// transport and the peer.
package pool

import "sync"

// Pool is a generic wrapper around sync.Pool.
type Pool[T any] struct {
	internal sync.Pool
}

// New creates a new Pool with the given constructor.
func New[T any](newFn func() T) *Pool[T] {
	return &Pool[T]{
		internal: sync.Pool{
			New: func() any {
				return newFn()
			},
		},
	}
}

// Get retrieves an item from the pool.
func (p *Pool[T]) Get() T {
	return p.internal.Get().(T)
}

// Put returns an item to the pool.
func (p *Pool[T]) Put(item T) {
	p.internal.Put(item)
}

// Buffers is a pool of fixed-size datagram buffers. Pointers to slices are
// pooled so Put does not allocate.
type Buffers struct {
	size int
	p    *Pool[*[]byte]
}

// NewBuffers returns a pool handing out buffers of exactly size bytes.
func NewBuffers(size int) *Buffers {
	return &Buffers{
		size: size,
		p: New(func() *[]byte {
			b := make([]byte, size)
			return &b
		}),
	}
}

// Size is the length of every buffer returned by Get.
func (b *Buffers) Size() int { return b.size }

// Get returns a buffer of Size bytes. Its contents are undefined.
func (b *Buffers) Get() *[]byte {
	buf := b.p.Get()
	*buf = (*buf)[:b.size]
	return buf
}

// Put returns buf to the pool. Buffers of the wrong capacity are discarded.
func (b *Buffers) Put(buf *[]byte) {
	if buf == nil || cap(*buf) < b.size {
		return
	}
	b.p.Put(buf)
}
