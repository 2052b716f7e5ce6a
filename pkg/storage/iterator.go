package storage

// Iterator is a lazy, single-pass sequence.
//
// HasNext must be idempotent: calling it repeatedly without Next never
// advances the sequence. Next must only be called after HasNext returned true.
type Iterator[T any] interface {
	HasNext() bool
	Next() T
}

// SliceIterator iterates over a materialized slice.
type SliceIterator[T any] struct {
	items []T
	pos   int
}

// NewSliceIterator wraps items. The slice is not copied.
func NewSliceIterator[T any](items []T) *SliceIterator[T] {
	return &SliceIterator[T]{items: items}
}

// HasNext reports whether another element is available.
func (s *SliceIterator[T]) HasNext() bool {
	return s.pos < len(s.items)
}

// Next returns the next element and advances.
func (s *SliceIterator[T]) Next() T {
	v := s.items[s.pos]
	s.pos++
	return v
}

// EmptyIterator returns an iterator that yields nothing.
func EmptyIterator[T any]() Iterator[T] {
	return &SliceIterator[T]{}
}

// Drain collects everything left in it.
func Drain[T any](it Iterator[T]) []T {
	var out []T
	if it == nil {
		return out
	}
	for it.HasNext() {
		out = append(out, it.Next())
	}
	return out
}
