package logstream

import (
	"sync"

	"github.com/aristath/runconsole/internal/model"
)

// DefaultCapacity matches the server-side log ring.
const DefaultCapacity = 500

// Ring is a fixed-capacity FIFO of log entries. Appending past capacity
// evicts the oldest entries. Safe for concurrent use.
type Ring struct {
	mu    sync.RWMutex
	buf   []model.LogEntry
	head  int // Index of the oldest entry
	size  int
	total uint64
}

// NewRing creates a ring holding at most capacity entries.
func NewRing(capacity int) *Ring {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Ring{buf: make([]model.LogEntry, capacity)}
}

// Append adds entries in order, evicting the oldest as needed.
func (r *Ring) Append(entries ...model.LogEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, e := range entries {
		r.total++
		if r.size < len(r.buf) {
			r.buf[(r.head+r.size)%len(r.buf)] = e
			r.size++
			continue
		}
		r.buf[r.head] = e
		r.head = (r.head + 1) % len(r.buf)
	}
}

// Reset drops every retained entry.
func (r *Ring) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	clear(r.buf)
	r.head, r.size = 0, 0
}

// Entries returns the retained entries, oldest first.
func (r *Ring) Entries() []model.LogEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]model.LogEntry, r.size)
	for i := range out {
		out[i] = r.buf[(r.head+i)%len(r.buf)]
	}
	return out
}

// Len returns the number of retained entries.
func (r *Ring) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.size
}

// Cap returns the fixed capacity.
func (r *Ring) Cap() int { return len(r.buf) }

// Total returns how many entries were ever appended.
func (r *Ring) Total() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.total
}
