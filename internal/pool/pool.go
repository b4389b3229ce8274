// Package pool provides object pooling on top of sync.Pool.
package pool

import (
	"bytes"
	"sync"
	"sync/atomic"
)

// Pool is a generic object pool.
type Pool[T any] struct {
	pool    sync.Pool
	reset   func(*T)
	discard func(T) bool

	// Metrics
	gets  atomic.Int64
	puts  atomic.Int64
	news  atomic.Int64
	drops atomic.Int64
}

// NewPool creates a new object pool. resetFunc may be nil.
func NewPool[T any](newFunc func() T, resetFunc func(*T)) *Pool[T] {
	p := &Pool[T]{reset: resetFunc}
	p.pool.New = func() any {
		p.news.Add(1)
		return newFunc()
	}
	return p
}

// Get retrieves an object from the pool.
func (p *Pool[T]) Get() T {
	p.gets.Add(1)
	return p.pool.Get().(T)
}

// Put returns an object to the pool. Objects rejected by the discard
// predicate are left to the garbage collector.
func (p *Pool[T]) Put(obj T) {
	if p.discard != nil && p.discard(obj) {
		p.drops.Add(1)
		return
	}
	p.puts.Add(1)
	if p.reset != nil {
		p.reset(&obj)
	}
	p.pool.Put(obj)
}

// Stats returns pool statistics.
func (p *Pool[T]) Stats() PoolStats {
	return PoolStats{
		Gets:  p.gets.Load(),
		Puts:  p.puts.Load(),
		News:  p.news.Load(),
		Drops: p.drops.Load(),
	}
}

// PoolStats contains pool statistics.
type PoolStats struct {
	Gets  int64 `json:"gets"`
	Puts  int64 `json:"puts"`
	News  int64 `json:"news"`
	Drops int64 `json:"drops"`
}

// HitRate returns the share of Gets served without allocating.
func (s PoolStats) HitRate() float64 {
	if s.Gets == 0 {
		return 0
	}
	return float64(s.Gets-s.News) / float64(s.Gets)
}

// NewBufferPool creates a pool of byte buffers with initCap capacity.
// Buffers that grew beyond maxCap are dropped on Put so one huge page
// does not pin memory for the life of the process.
func NewBufferPool(initCap, maxCap int) *Pool[*bytes.Buffer] {
	p := NewPool(
		func() *bytes.Buffer {
			return bytes.NewBuffer(make([]byte, 0, initCap))
		},
		func(b **bytes.Buffer) {
			(*b).Reset()
		},
	)
	p.discard = func(b *bytes.Buffer) bool { return b.Cap() > maxCap }
	return p
}

// Buffers is the shared pool used for rendering HTML pages and fragments.
var Buffers = NewBufferPool(4<<10, 256<<10)
