package cqrs

import (
	"context"
	"io"
)

// Iterator is a lazy, single-use iterator over values produced by a next
// function. It should be consumed immediately; no assumptions should be made
// about reusability or thread-safety after iteration completes.
type Iterator[T any] struct {
	next    func(ctx context.Context) (T, error)
	current T
	err     error
	done    bool
}

// NewIteratorFunc creates an Iterator from a function producing the next
// value. The function must return io.EOF when the iterator is exhausted, or
// another error on failure.
func NewIteratorFunc[T any](next func(ctx context.Context) (T, error)) *Iterator[T] {
	return &Iterator[T]{next: next}
}

// NewSliceIterator creates an Iterator over an in-memory slice.
func NewSliceIterator[T any](items []T) *Iterator[T] {
	index := 0
	return NewIteratorFunc(func(ctx context.Context) (T, error) {
		var zero T
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		if index >= len(items) {
			return zero, io.EOF
		}
		item := items[index]
		index++
		return item, nil
	})
}

// Next advances the iterator. Returns false once the iterator is exhausted or
// an error occurred.
func (it *Iterator[T]) Next(ctx context.Context) bool {
	if it.done || it.err != nil {
		return false
	}
	value, err := it.next(ctx)
	if err != nil {
		it.done = true
		if err != io.EOF {
			it.err = err
		}
		return false
	}
	it.current = value
	return true
}

// Value returns the current value.
func (it *Iterator[T]) Value() T {
	return it.current
}

// Err returns the error that terminated iteration, if any. A clean end of
// stream yields nil.
func (it *Iterator[T]) Err() error {
	return it.err
}

// All consumes the iterator and returns the remaining values.
func (it *Iterator[T]) All(ctx context.Context) ([]T, error) {
	var results []T
	for it.Next(ctx) {
		results = append(results, it.Value())
	}
	return results, it.Err()
}
