// ABOUTME: Per-channel request table
// ABOUTME: Holds at most one live value for each channel index
package pool

import (
	"errors"
	"fmt"
	"sync"

	"github.com/samber/lo"
)

// ErrSlotBusy is returned when setting a channel that already holds a value
var ErrSlotBusy = errors.New("channel slot already in use")

// Table maps channel indices to the value currently playing there
type Table[T any] struct {
	mu    sync.Mutex
	slots []*T
}

// NewTable creates a table with size empty slots
func NewTable[T any](size int) *Table[T] {
	return &Table[T]{slots: make([]*T, size)}
}

// Set stores v for ch. The slot must be empty.
func (t *Table[T]) Set(ch int, v *T) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if ch < 0 || ch >= len(t.slots) {
		return fmt.Errorf("%w: %d", ErrOutOfRange, ch)
	}
	if t.slots[ch] != nil {
		return fmt.Errorf("%w: %d", ErrSlotBusy, ch)
	}
	t.slots[ch] = v
	return nil
}

// Get returns the value for ch, or nil
func (t *Table[T]) Get(ch int) *T {
	t.mu.Lock()
	defer t.mu.Unlock()

	if ch < 0 || ch >= len(t.slots) {
		return nil
	}
	return t.slots[ch]
}

// Take returns the value for ch and clears the slot
func (t *Table[T]) Take(ch int) *T {
	t.mu.Lock()
	defer t.mu.Unlock()

	if ch < 0 || ch >= len(t.slots) {
		return nil
	}
	v := t.slots[ch]
	t.slots[ch] = nil
	return v
}

// Len returns the number of occupied slots
func (t *Table[T]) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return lo.CountBy(t.slots, func(v *T) bool { return v != nil })
}

// Values returns the occupied slots in channel order
func (t *Table[T]) Values() []*T {
	t.mu.Lock()
	defer t.mu.Unlock()

	return lo.Filter(t.slots, func(v *T, _ int) bool { return v != nil })
}

// Drain clears every slot and returns the values that were held
func (t *Table[T]) Drain() []*T {
	t.mu.Lock()
	defer t.mu.Unlock()

	var out []*T
	for i, v := range t.slots {
		if v != nil {
			out = append(out, v)
			t.slots[i] = nil
		}
	}
	return out
}
