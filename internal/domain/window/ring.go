package window

// Ring is a fixed-capacity ring buffer for float64 values. It backs the
// count-capped histories (detected peak magnitudes, step impacts) where age
// does not matter but memory must stay bounded.
type Ring struct {
	data []float64
	pos  int
	full bool
	cap  int
}

// NewRing creates a Ring with the given capacity. Capacity must be positive.
func NewRing(capacity int) *Ring {
	if capacity <= 0 {
		capacity = 1
	}
	return &Ring{data: make([]float64, capacity), cap: capacity}
}

// Push adds a value, evicting the oldest when full.
func (r *Ring) Push(v float64) {
	r.data[r.pos] = v
	r.pos++
	if r.pos >= r.cap {
		r.pos = 0
		r.full = true
	}
}

// Len returns the number of stored values.
func (r *Ring) Len() int {
	if r.full {
		return r.cap
	}
	return r.pos
}

// Slice returns the contents in insertion order.
func (r *Ring) Slice() []float64 {
	n := r.Len()
	out := make([]float64, n)
	if r.full {
		copy(out, r.data[r.pos:])
		copy(out[r.cap-r.pos:], r.data[:r.pos])
	} else {
		copy(out, r.data[:r.pos])
	}
	return out
}

// Reset empties the ring.
func (r *Ring) Reset() {
	r.pos = 0
	r.full = false
}
