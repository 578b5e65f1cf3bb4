// Package eventlog holds the in-memory working set of recent records used for
// statistics. It is not the durability mechanism.
package eventlog

import (
	"sync"

	"github.com/offlinefirst/behavioral-capture/pkg/behavior"
)

// DefaultCapacity bounds the log when no capacity is configured.
const DefaultCapacity = 50000

// Ring is an ordered, bounded sequence of records. When an append pushes the
// length past capacity, the oldest evict records are removed in one batch.
type Ring struct {
	mu       sync.Mutex
	records  []behavior.Event
	capacity int
	evict    int
	evicted  int
}

// NewRing builds a log holding at most capacity records. An evict count of
// zero or less means capacity/2; counts above capacity are clamped.
func NewRing(capacity, evict int) *Ring {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if evict <= 0 {
		evict = capacity / 2
	}
	if evict < 1 {
		evict = 1
	}
	if evict > capacity {
		evict = capacity
	}
	return &Ring{
		records:  make([]behavior.Event, 0, min(capacity+1, 4096)),
		capacity: capacity,
		evict:    evict,
	}
}

// Append adds ev at the tail.
func (r *Ring) Append(ev behavior.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.records = append(r.records, ev)
	if len(r.records) <= r.capacity {
		return
	}
	kept := copy(r.records, r.records[r.evict:])
	clear(r.records[kept:])
	r.records = r.records[:kept]
	r.evicted += r.evict
}

// Snapshot returns the records oldest first. The caller owns the slice.
func (r *Ring) Snapshot() []behavior.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]behavior.Event, len(r.records))
	copy(out, r.records)
	return out
}

// Len returns the number of retained records.
func (r *Ring) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.records)
}

// Evicted returns how many records have been dropped by batch eviction.
func (r *Ring) Evicted() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.evicted
}

// Capacity returns the configured bound.
func (r *Ring) Capacity() int {
	return r.capacity
}
