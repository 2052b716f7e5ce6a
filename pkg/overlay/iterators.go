package overlay

import "github.com/orneryd/overlaydb/pkg/storage"

// The merge layer works on storage.Iterator so every flavor (node and
// relationship ids, token ids, token records, relationship records) shares one
// implementation.

type concatIterator[T any] struct {
	first  storage.Iterator[T]
	second storage.Iterator[T]
}

// Concat yields everything from first, then everything from second.
// Either side may be nil; with a nil second it behaves as first alone.
func Concat[T any](first, second storage.Iterator[T]) storage.Iterator[T] {
	return &concatIterator[T]{first: first, second: second}
}

func (c *concatIterator[T]) HasNext() bool {
	if c.first != nil {
		if c.first.HasNext() {
			return true
		}
		c.first = nil
	}
	return c.second != nil && c.second.HasNext()
}

func (c *concatIterator[T]) Next() T {
	if !c.HasNext() {
		panic(ErrIteratorExhausted)
	}
	if c.first != nil {
		return c.first.Next()
	}
	return c.second.Next()
}

type filterIterator[T any] struct {
	src      storage.Iterator[T]
	keep     func(T) bool
	next     T
	buffered bool
}

// Filter yields the elements of src for which keep returns true.
//
// The next passing element is pre-fetched into a one-slot buffer, so HasNext
// is idempotent and keep runs exactly once per source element.
func Filter[T any](src storage.Iterator[T], keep func(T) bool) storage.Iterator[T] {
	return &filterIterator[T]{src: src, keep: keep}
}

func (f *filterIterator[T]) HasNext() bool {
	if f.buffered {
		return true
	}
	if f.src == nil {
		return false
	}
	for f.src.HasNext() {
		v := f.src.Next()
		if f.keep(v) {
			f.next = v
			f.buffered = true
			return true
		}
	}
	return false
}

func (f *filterIterator[T]) Next() T {
	if !f.HasNext() {
		panic(ErrIteratorExhausted)
	}
	v := f.next
	var zero T
	f.next = zero
	f.buffered = false
	return v
}

type mapIterator[S, T any] struct {
	src storage.Iterator[S]
	fn  func(S) T
}

// Map converts each element lazily.
func Map[S, T any](src storage.Iterator[S], fn func(S) T) storage.Iterator[T] {
	return &mapIterator[S, T]{src: src, fn: fn}
}

func (m *mapIterator[S, T]) HasNext() bool { return m.src != nil && m.src.HasNext() }

func (m *mapIterator[S, T]) Next() T { return m.fn(m.src.Next()) }

// FilterIDs applies an IDFilter to an id sequence. The filter is consulted at
// iteration time, so it must not be swapped while the iterator is in use.
func FilterIDs[T ~int64](it storage.Iterator[T], filter *IDFilter) storage.Iterator[T] {
	if filter == nil {
		return it
	}
	return Filter(it, func(id T) bool { return filter.Allows(int64(id)) })
}

// MergeIDs presents virtual ids ahead of the stored (real) sequence and applies
// filter. stored may be nil.
func MergeIDs[T ~int64](virtual []T, stored storage.Iterator[T], filter *IDFilter) storage.Iterator[T] {
	return FilterIDs(Concat[T](storage.NewSliceIterator(virtual), stored), filter)
}

// Count drains it and returns the number of elements.
func Count[T any](it storage.Iterator[T]) int64 {
	var n int64
	if it == nil {
		return 0
	}
	for it.HasNext() {
		it.Next()
		n++
	}
	return n
}

// Collect drains it into a slice.
func Collect[T any](it storage.Iterator[T]) []T {
	return storage.Drain(it)
}
