// File: pool/bytepool.go
// Author: momentics <momentics@gmail.com>

package pool

import (
	"sync"
	"sync/atomic"
)

// DefaultBufferSize is the per-connection buffer capacity.
const DefaultBufferSize = 4096

// BytePool hands out fixed-size byte slices backed by a sync.Pool.
type BytePool struct {
	pool sync.Pool
	size int

	gets atomic.Int64
	puts atomic.Int64
	news atomic.Int64
}

// Stats counts pool traffic. InUse is Gets minus Puts.
type Stats struct {
	Size  int
	Gets  int64
	Puts  int64
	News  int64
	InUse int64
}

// NewBytePool creates a pool of size-byte buffers; size <= 0 means DefaultBufferSize.
func NewBytePool(size int) *BytePool {
	if size <= 0 {
		size = DefaultBufferSize
	}
	b := &BytePool{size: size}
	b.pool.New = func() any {
		b.news.Add(1)
		buf := make([]byte, b.size)
		return &buf
	}
	return b
}

// Size returns the length of every buffer the pool hands out.
func (b *BytePool) Size() int { return b.size }

// GetBuffer returns a buffer with len == cap == Size().
func (b *BytePool) GetBuffer() []byte {
	b.gets.Add(1)
	buf := *(b.pool.Get().(*[]byte))
	return buf[:b.size]
}

// PutBuffer returns a buffer to the pool. Slices of a foreign capacity are dropped.
func (b *BytePool) PutBuffer(buf []byte) {
	if cap(buf) != b.size {
		return
	}
	b.puts.Add(1)
	buf = buf[:b.size]
	b.pool.Put(&buf)
}

// Stats returns a snapshot of pool counters.
func (b *BytePool) Stats() Stats {
	gets, puts := b.gets.Load(), b.puts.Load()
	return Stats{
		Size:  b.size,
		Gets:  gets,
		Puts:  puts,
		News:  b.news.Load(),
		InUse: gets - puts,
	}
}
