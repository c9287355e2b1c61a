// File: internal/session/store.go
// Package session
// Author: momentics <momentics@gmail.com>
//
// Sharded, thread-safe connection table keyed by descriptor.

package session

import (
	"sync"
	"sync/atomic"
)

// DefaultShards is used when NewTable gets a non-positive shard count.
const DefaultShards = 16

// Table maps live descriptors to their Connection.
type Table struct {
	shards []*tableShard
	mask   uint32
	count  atomic.Int64
}

type tableShard struct {
	mu    sync.RWMutex
	conns map[int]*Connection
}

// NewTable constructs a table with shardCount shards, rounded up to a power of two.
func NewTable(shardCount int) *Table {
	if shardCount <= 0 {
		shardCount = DefaultShards
	}
	m := nextPowerOfTwo(uint32(shardCount))
	shards := make([]*tableShard, m)
	for i := range shards {
		shards[i] = &tableShard{conns: make(map[int]*Connection)}
	}
	return &Table{shards: shards, mask: m - 1}
}

func (t *Table) shard(fd int) *tableShard {
	return t.shards[uint32(fd)&t.mask]
}

// Insert stores c under its fd. A descriptor is recycled by the kernel as soon
// as it is closed, so a stale entry whose owner has not yet removed itself is
// replaced and returned.
func (t *Table) Insert(c *Connection) (prev *Connection) {
	sh := t.shard(c.fd)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	prev = sh.conns[c.fd]
	sh.conns[c.fd] = c
	if prev == nil {
		t.count.Add(1)
	}
	return prev
}

// Get fetches the connection owning fd.
func (t *Table) Get(fd int) (*Connection, bool) {
	sh := t.shard(fd)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	c, ok := sh.conns[fd]
	return c, ok
}

// Remove deletes fd only while it still maps to c.
func (t *Table) Remove(fd int, c *Connection) bool {
	sh := t.shard(fd)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	if cur, ok := sh.conns[fd]; !ok || cur != c {
		return false
	}
	delete(sh.conns, fd)
	t.count.Add(-1)
	return true
}

// Len returns the number of live entries.
func (t *Table) Len() int {
	return int(t.count.Load())
}

// Range calls fn for every connection until fn returns false. fn must not
// modify the table.
func (t *Table) Range(fn func(*Connection) bool) {
	for _, sh := range t.shards {
		sh.mu.RLock()
		for _, c := range sh.conns {
			if !fn(c) {
				sh.mu.RUnlock()
				return
			}
		}
		sh.mu.RUnlock()
	}
}

// CloseAll closes every connection with cause and returns how many it closed.
func (t *Table) CloseAll(cause error) int {
	var snapshot []*Connection
	t.Range(func(c *Connection) bool {
		snapshot = append(snapshot, c)
		return true
	})
	n := 0
	for _, c := range snapshot {
		if c.Close(cause) {
			n++
		}
	}
	return n
}

// nextPowerOfTwo returns the next power-of-two >= v.
func nextPowerOfTwo(v uint32) uint32 {
	v--
	v |= v >> 1
	v |= v >> 2
	v |= v >> 4
	v |= v >> 8
	v |= v >> 16
	v++
	return v
}
