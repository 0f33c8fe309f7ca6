// Package ordering implements drag-and-drop reordering.
//
// Move computes the new arrangement of a list after a drop. Board keeps the
// last order the server accepted and rolls back to it when persisting a new
// order fails.
package ordering

import (
	"context"
	"fmt"
	"sync"
)

// Move returns a copy of items with the element at from moved to index to.
// The input slice is not modified.
func Move[T any](items []T, from, to int) ([]T, error) {
	n := len(items)
	if from < 0 || from >= n {
		return nil, fmt.Errorf("from index %d out of range [0,%d)", from, n)
	}
	if to < 0 || to >= n {
		return nil, fmt.Errorf("to index %d out of range [0,%d)", to, n)
	}

	out := make([]T, 0, n)
	moved := items[from]
	for i, item := range items {
		if i == from {
			continue
		}
		if len(out) == to {
			out = append(out, moved)
		}
		out = append(out, item)
	}
	if len(out) < n {
		out = append(out, moved)
	}
	return out, nil
}

// Resequence returns a copy of items with order i assigned to the i-th
// element through set.
func Resequence[T any](items []T, set func(item T, order int) T) []T {
	out := make([]T, len(items))
	for i, item := range items {
		out[i] = set(item, i)
	}
	return out
}

// PersistFunc stores a new order. An error rejects it.
type PersistFunc[T any] func(ctx context.Context, items []T) error

// Board holds a list being reordered.
//
// Drop is optimistic: Items reports the new order while persist runs, and
// the last accepted order comes back if persist fails. Calls are serialized.
type Board[T any] struct {
	mu      sync.Mutex // serializes Drop
	stateMu sync.RWMutex
	current []T
	good    []T
	set     func(item T, order int) T
}

// NewBoard creates a Board whose initial order is also the last good one.
// set writes the display order into an item.
func NewBoard[T any](items []T, set func(item T, order int) T) *Board[T] {
	seq := Resequence(items, set)
	return &Board[T]{
		current: seq,
		good:    clone(seq),
		set:     set,
	}
}

// Items returns a copy of the order currently shown.
func (b *Board[T]) Items() []T {
	b.stateMu.RLock()
	defer b.stateMu.RUnlock()
	return clone(b.current)
}

// LastGood returns a copy of the last persisted order.
func (b *Board[T]) LastGood() []T {
	b.stateMu.RLock()
	defer b.stateMu.RUnlock()
	return clone(b.good)
}

// Drop moves the item at from to to, resequences the display order and
// persists the result. On failure the board reverts to the last good order
// and the persist error is returned. A drop onto the same index persists
// nothing.
func (b *Board[T]) Drop(ctx context.Context, from, to int, persist PersistFunc[T]) ([]T, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.stateMu.RLock()
	base := clone(b.current)
	b.stateMu.RUnlock()

	moved, err := Move(base, from, to)
	if err != nil {
		return base, err
	}
	if from == to {
		return base, nil
	}

	next := Resequence(moved, b.set)
	b.setCurrent(next)

	if err := persist(ctx, clone(next)); err != nil {
		b.stateMu.Lock()
		b.current = clone(b.good)
		reverted := clone(b.current)
		b.stateMu.Unlock()
		return reverted, err
	}

	b.stateMu.Lock()
	b.good = clone(next)
	b.stateMu.Unlock()
	return next, nil
}

// Reset replaces both orders, e.g. after a refetch.
func (b *Board[T]) Reset(items []T) {
	b.mu.Lock()
	defer b.mu.Unlock()

	seq := Resequence(items, b.set)
	b.stateMu.Lock()
	b.current = seq
	b.good = clone(seq)
	b.stateMu.Unlock()
}

func (b *Board[T]) setCurrent(items []T) {
	b.stateMu.Lock()
	b.current = clone(items)
	b.stateMu.Unlock()
}

func clone[T any](items []T) []T {
	out := make([]T, len(items))
	copy(out, items)
	return out
}
