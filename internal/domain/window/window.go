// Package window provides the time-bounded sample stores every analyzer is
// built on.
package window

// TimedSample pairs a payload with its monotonic capture timestamp in seconds.
type TimedSample[T any] struct {
	Timestamp float64
	Payload   T
}

// Store keeps an ordered run of timed samples and trims by elapsed time, not
// by count, on every insertion. Timestamps are assumed non-decreasing per
// stream; the newest sample's timestamp acts as "now" for eviction.
type Store[T any] struct {
	window  float64
	samples []TimedSample[T]
}

// NewStore creates a store that retains samples no older than window seconds.
func NewStore[T any](window float64) *Store[T] {
	return &Store[T]{window: window}
}

// Push appends a sample and evicts everything older than the window relative
// to the new sample's timestamp.
func (s *Store[T]) Push(timestamp float64, payload T) {
	s.samples = append(s.samples, TimedSample[T]{Timestamp: timestamp, Payload: payload})
	cut := 0
	for cut < len(s.samples) && timestamp-s.samples[cut].Timestamp > s.window {
		cut++
	}
	if cut > 0 {
		s.samples = append(s.samples[:0], s.samples[cut:]...)
	}
}

// Samples exposes the current window. Callers must not mutate the returned
// slice; it is invalidated by the next Push.
func (s *Store[T]) Samples() []TimedSample[T] {
	return s.samples
}

// Len returns the number of retained samples.
func (s *Store[T]) Len() int {
	return len(s.samples)
}

// Span returns the elapsed seconds between oldest and newest sample, 0 when
// fewer than two samples are held.
func (s *Store[T]) Span() float64 {
	if len(s.samples) < 2 {
		return 0
	}
	return s.samples[len(s.samples)-1].Timestamp - s.samples[0].Timestamp
}

// Reset drops all samples.
func (s *Store[T]) Reset() {
	s.samples = s.samples[:0]
}
