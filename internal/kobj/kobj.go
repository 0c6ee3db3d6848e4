// Package kobj implements the kernel object common header and a generic,
// arena-backed table that stands in for the intrusive doubly-linked lists
// biscuit builds with container/list. Kernel objects reference each other
// by Id rather than by pointer, per the cyclic-graph guidance kernels
// otherwise run into with Go's garbage collector: an id-indexed arena has
// no cycles for the collector to chase and lets objects be reclaimed by
// clearing a slot instead of breaking links.
package kobj

import (
	"sync"
	"sync/atomic"

	"exos/internal/defs"
)

// Id identifies a kernel object within its owning Table. The zero Id is
// never valid and marks "no object".
type Id uint64

// Header is embedded first in every kernel object struct. It carries the
// fields every object needs regardless of type: its own id, type tag, and
// reference count.
type Header struct {
	Id       Id
	Type     defs.ObjType
	refcount int32
}

// Ref increments the object's reference count and returns the new value.
func (h *Header) Ref() int32 {
	return atomic.AddInt32(&h.refcount, 1)
}

// Unref decrements the object's reference count and returns the new
// value; the caller frees the object once it reaches zero.
func (h *Header) Unref() int32 {
	return atomic.AddInt32(&h.refcount, -1)
}

// Refcount reports the current reference count.
func (h *Header) Refcount() int32 {
	return atomic.LoadInt32(&h.refcount)
}

// Table is a generic arena of kernel objects of type T, addressed by Id.
// It replaces the intrusive list-of-pointers idiom with a flat slice plus
// a free list, mirroring the role container/list plays in
// biscuit's BlkList_t but without directly embeddable links.
type Table[T any] struct {
	mu    sync.Mutex
	slots []*T
	free  []Id
	next  Id
}

// NewTable returns an empty object table.
func NewTable[T any]() *Table[T] {
	return &Table[T]{next: 1}
}

// Insert stores obj and returns the Id it was assigned.
func (t *Table[T]) Insert(obj *T) Id {
	t.mu.Lock()
	defer t.mu.Unlock()
	if n := len(t.free); n > 0 {
		id := t.free[n-1]
		t.free = t.free[:n-1]
		t.slots[id-1] = obj
		return id
	}
	id := t.next
	t.next++
	t.slots = append(t.slots, obj)
	return id
}

// Get returns the object stored at id, or nil if id is unused.
func (t *Table[T]) Get(id Id) *T {
	t.mu.Lock()
	defer t.mu.Unlock()
	if id == 0 || int(id) > len(t.slots) {
		return nil
	}
	return t.slots[id-1]
}

// Remove clears the slot at id and returns it to the free list.
func (t *Table[T]) Remove(id Id) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if id == 0 || int(id) > len(t.slots) {
		return
	}
	t.slots[id-1] = nil
	t.free = append(t.free, id)
}

// Len reports the number of live (non-removed) objects.
func (t *Table[T]) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.slots) - len(t.free)
}

// Apply calls f for every live object in the table, in slot order.
func (t *Table[T]) Apply(f func(Id, *T)) {
	t.mu.Lock()
	snap := make([]*T, len(t.slots))
	copy(snap, t.slots)
	t.mu.Unlock()
	for i, obj := range snap {
		if obj != nil {
			f(Id(i+1), obj)
		}
	}
}
