// Package queue defines the contract for enqueuing and consuming capture
// samples.
//
// Every session owns one queue: both real-time producers (body tracking and
// the inertial sensor) enqueue here, and a single session worker drains it,
// serializing all analyzer mutation onto one goroutine.
package queue

import (
	"context"
	"sync"

	"github.com/motionlab/stride/internal/domain/model"
	"github.com/motionlab/stride/pkg/metrics"
)

const defaultCapacity = 4096

// ControlOp is a serialized session command. Commands flow through the same
// queue as samples so they observe the same single-writer ordering.
type ControlOp int

const (
	ControlStartEyesOpen ControlOp = iota
	ControlStartEyesClosed
	ControlCompleteRomberg
	ControlReset
)

// Control carries a command and an optional reply channel. The worker sends
// exactly one value (possibly nil) on Reply when the command completes.
type Control struct {
	Op    ControlOp
	Reply chan<- any
}

// Item is the tagged payload flowing through the queue: exactly one of the
// pointer fields is set. ExternalStep is a collaborator-reported step
// timestamp awaiting validation against the inertial trace.
type Item struct {
	Frame        *model.JointFrame
	IMU          *model.IMUSample
	Control      *Control
	ExternalStep *float64
}

// Queue provides non-blocking enqueue and channel-based dequeue semantics.
type Queue interface {
	// Enqueue adds an item. Returns false if the queue is full or closed.
	Enqueue(ctx context.Context, item Item) bool

	// Dequeue returns a channel that receives items as they become
	// available; closed when the queue closes.
	Dequeue(ctx context.Context) <-chan Item

	// Len returns the current number of queued items.
	Len(ctx context.Context) int

	// Close gracefully shuts down the queue.
	Close() error

	// IsClosed reports whether the queue has been closed.
	IsClosed() bool
}

// InMemoryQueue implements Queue using a buffered channel.
type InMemoryQueue struct {
	items    chan Item
	capacity int
	mu       sync.RWMutex
	closed   bool
}

// Option applies a configuration option to the InMemoryQueue.
type Option func(*InMemoryQueue)

// WithCapacity sets the maximum capacity of the queue.
func WithCapacity(capacity int) Option {
	return func(q *InMemoryQueue) {
		if capacity > 0 {
			q.capacity = capacity
		}
	}
}

// NewInMemoryQueue creates a new in-memory queue.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{capacity: defaultCapacity}
	for _, opt := range opts {
		opt(q)
	}
	q.items = make(chan Item, q.capacity)

	metrics.UpdateQueueCapacity(q.capacity)
	metrics.UpdateQueueSize(0)
	metrics.UpdateQueueUtilization(0)
	return q
}

// Enqueue adds an item without blocking.
func (q *InMemoryQueue) Enqueue(ctx context.Context, item Item) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		metrics.RecordQueueEnqueueError()
		metrics.RecordErrorByComponent("queue", "closed")
		return false
	}

	select {
	case q.items <- item:
		metrics.RecordQueueEnqueue()
		size := len(q.items)
		metrics.UpdateQueueSize(size)
		metrics.UpdateQueueUtilization(float64(size) / float64(q.capacity))
		return true
	case <-ctx.Done():
		metrics.RecordQueueEnqueueError()
		metrics.RecordErrorByComponent("queue", "context_cancelled")
		return false
	default:
		metrics.RecordQueueEnqueueError()
		metrics.RecordErrorByComponent("queue", "queue_full")
		return false
	}
}

// Dequeue returns a channel that receives items as they become available.
func (q *InMemoryQueue) Dequeue(ctx context.Context) <-chan Item {
	out := make(chan Item)
	go func() {
		defer close(out)
		for item := range q.items {
			select {
			case out <- item:
				metrics.RecordQueueDequeue()
				size := len(q.items)
				metrics.UpdateQueueSize(size)
				metrics.UpdateQueueUtilization(float64(size) / float64(q.capacity))
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// Len returns the current number of queued items.
func (q *InMemoryQueue) Len(_ context.Context) int {
	return len(q.items)
}

// Close gracefully shuts down the queue.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	close(q.items)
	q.closed = true
	return nil
}

// IsClosed reports whether the queue has been closed.
func (q *InMemoryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
