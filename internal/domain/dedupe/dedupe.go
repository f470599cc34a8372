// Package dedupe provides idempotency tracking for ingest batch ids.
package dedupe

import (
	"context"
	"sync"
	"sync/atomic"
)

// Deduper records seen batch IDs so retried ingest batches are acknowledged
// without being reprocessed.
type Deduper interface {
	// SeenAndRecord atomically checks whether id was seen and records it if
	// not. Returns true if id was already seen.
	SeenAndRecord(ctx context.Context, id string) bool

	// Unrecord removes an ID, allowing a retry after the batch was recorded
	// but failed to enqueue (backpressure).
	Unrecord(ctx context.Context, id string)

	Size() int64
}

const defaultMaxSize = 50000

// node is one entry in the eviction list.
type node struct {
	id   string
	next *node
}

// inMemoryDeduper keeps seen ids in a map plus a linked list for LIFO
// eviction once maxSize is reached. Batch ids arrive at interactive rates,
// so no node pooling is needed.
type inMemoryDeduper struct {
	mu      sync.Mutex
	seen    map[string]*node
	head    *node
	maxSize int
	size    atomic.Int64
}

// Option applies a configuration option to the deduper.
type Option func(*inMemoryDeduper)

// WithMaxSize bounds the number of retained ids.
func WithMaxSize(n int) Option {
	return func(d *inMemoryDeduper) {
		if n > 0 {
			d.maxSize = n
		}
	}
}

// NewInMemoryDeduper creates a bounded in-memory deduper.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &inMemoryDeduper{
		maxSize: defaultMaxSize,
		seen:    make(map[string]*node),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *inMemoryDeduper) SeenAndRecord(_ context.Context, id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.seen[id]; exists {
		return true
	}
	if len(d.seen) >= d.maxSize {
		d.evictTail()
	}
	n := &node{id: id, next: d.head}
	d.head = n
	d.seen[id] = n
	d.size.Add(1)
	return false
}

func (d *inMemoryDeduper) Unrecord(_ context.Context, id string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	n, exists := d.seen[id]
	if !exists {
		return
	}
	delete(d.seen, id)
	if d.head == n {
		d.head = n.next
	} else {
		cur := d.head
		for cur != nil && cur.next != n {
			cur = cur.next
		}
		if cur != nil {
			cur.next = n.next
		}
	}
	d.size.Add(-1)
}

// evictTail removes the oldest entry. Caller holds d.mu.
func (d *inMemoryDeduper) evictTail() {
	if d.head == nil {
		return
	}
	if d.head.next == nil {
		delete(d.seen, d.head.id)
		d.head = nil
		d.size.Add(-1)
		return
	}
	prev := d.head
	cur := d.head.next
	for cur.next != nil {
		prev = cur
		cur = cur.next
	}
	prev.next = nil
	delete(d.seen, cur.id)
	d.size.Add(-1)
}

func (d *inMemoryDeduper) Size() int64 {
	return d.size.Load()
}
