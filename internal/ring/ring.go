// Package ring is the circular page list underneath the CLOCK-Pro+ cache.
// It is derived from `container/ring`, with the per-page replacement
// metadata embedded in each element.
package ring

type (
	// A Ring is an element of a circular list.
	// A pointer to any element references the entire ring.
	// The zero value is a one-element ring.
	Ring[Key comparable, Value any] struct {
		next, prev *Ring[Key, Value]
		Value      Value
		Metadata[Key]
	}
	// Metadata stores the LIRS state of a cache page.
	Metadata[Key comparable] struct {
		// Name is the key this page is bound to.
		Name Key
		// LIR (Low Inter-Reference Recency) pages are hot
		// and spared from eviction.
		LIR bool
		// Resident is true while Value is valid.
		// Nonresident pages are metadata-only "test pages".
		Resident bool
		// Demoted is true if the page was moved from hot to cold
		// and has not been referenced since.
		Demoted bool
		// Referenced is set on access and cleared by a sweeping hand.
		Referenced bool
		// Stacked is true if the page is in the recency stack.
		Stacked bool
	}
)

func (r *Ring[Key, Value]) init() *Ring[Key, Value] {
	r.next = r
	r.prev = r
	return r
}

// Next returns the next ring element. r must not be empty.
func (r *Ring[Key, Value]) Next() *Ring[Key, Value] {
	if r.next == nil {
		return r.init()
	}
	return r.next
}

// Prev returns the previous ring element. r must not be empty.
func (r *Ring[Key, Value]) Prev() *Ring[Key, Value] {
	if r.next == nil {
		return r.init()
	}
	return r.prev
}

// Alone reports whether r is the only element of its ring.
func (r *Ring[Key, Value]) Alone() bool {
	return r.next == nil || r.next == r
}

func (r *Ring[Key, Value]) move(n int) *Ring[Key, Value] {
	if r.next == nil {
		return r.init()
	}
	for ; n > 0; n-- {
		r = r.next
	}
	return r
}

// Link connects ring r with ring s such that r.Next()
// becomes s and returns the original value for r.Next().
// r must not be empty.
//
// If r and s are the same ring, the elements between them are
// removed and returned as a subring. Otherwise the elements
// of s are spliced in after r.
func (r *Ring[Key, Value]) Link(s *Ring[Key, Value]) *Ring[Key, Value] {
	n := r.Next()
	if s != nil {
		p := s.Prev()
		// Multiple assignment is avoided because
		// evaluation order of the LHS is unspecified.
		r.next = s
		s.prev = r
		n.prev = p
		p.next = n
	}
	return n
}

// Unlink removes n elements from the ring r, starting
// at r.Next(), and returns them as a subring.
// r must not be empty.
func (r *Ring[Key, Value]) Unlink(n int) *Ring[Key, Value] {
	if n <= 0 {
		return nil
	}
	return r.Link(r.move(n + 1))
}

// Len computes the number of elements in ring r.
// It executes in time proportional to the number of elements.
func (r *Ring[Key, Value]) Len() int {
	n := 0
	if r != nil {
		n = 1
		for p := r.Next(); p != r; p = p.next {
			n++
		}
	}
	return n
}
