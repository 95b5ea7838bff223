package relay

import (
	"sync"
)

const bufferSize = 32 * 1024

var buffers = newBufferPool(bufferSize)

// bufferPool recycles relay buffers, one per pump.
type bufferPool struct {
	pool sync.Pool
}

func newBufferPool(size int) *bufferPool {
	bp := &bufferPool{}
	bp.pool.New = func() any {
		b := make([]byte, size)
		return &b
	}

	return bp
}

func (p *bufferPool) Get() []byte {
	b := p.pool.Get().(*[]byte)
	return *b
}

func (p *bufferPool) Put(b []byte) {
	// Storing a slice header in the pool costs one small allocation per Put.
	p.pool.Put(&b)
}
