package vm

import (
	"sync"
	"unsafe"

	"exos/internal/mem"
)

// KernelPageAllocator implements mem.Page_i by handing out physical
// frames mapped into the kernel window, for buffer owners (circbuf and
// similar) that only need "a page I can read and write" without
// managing an address space themselves.
type KernelPageAllocator struct {
	mu    sync.Mutex
	refs  map[mem.Pa_t]int
	mapVA map[mem.Pa_t]uint32
}

// Kalloc is the kernel's shared page allocator for such buffer owners.
var Kalloc = &KernelPageAllocator{
	refs:  make(map[mem.Pa_t]int),
	mapVA: make(map[mem.Pa_t]uint32),
}

// Refpg_new_nozero allocates one physical frame, maps it into the
// kernel window, and returns a pointer to it along with its physical
// address. The page's contents are whatever the frame last held, not
// zeroed, mirroring biscuit's Refpg_new_nozero naming.
func (k *KernelPageAllocator) Refpg_new_nozero() (*mem.Pg_t, mem.Pa_t, bool) {
	pa := mem.Physmem.AllocPhysicalPage()
	if pa == 0 {
		return nil, 0, false
	}
	va := KernelVm.AllocRegion(0, pa, uint32(mem.PGSIZE), Commit|MapPhysical|ReadWrite)
	if va == 0 {
		mem.Physmem.FreePhysicalPage(pa)
		return nil, 0, false
	}
	k.mu.Lock()
	k.refs[pa] = 1
	k.mapVA[pa] = va
	k.mu.Unlock()
	return (*mem.Pg_t)(unsafe.Pointer(uintptr(va))), pa, true
}

// Refup increments pa's reference count. pa must have come from
// Refpg_new_nozero.
func (k *KernelPageAllocator) Refup(pa mem.Pa_t) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.refs[pa]++
}

// Refdown decrements pa's reference count, unmapping and freeing the
// frame when it reaches zero. Returns true if the frame was freed.
func (k *KernelPageAllocator) Refdown(pa mem.Pa_t) bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	n, ok := k.refs[pa]
	if !ok {
		return false
	}
	n--
	if n > 0 {
		k.refs[pa] = n
		return false
	}
	va := k.mapVA[pa]
	delete(k.refs, pa)
	delete(k.mapVA, pa)
	k.mu.Unlock()
	KernelVm.FreeRegion(va, uint32(mem.PGSIZE))
	k.mu.Lock()
	return true
}

var _ mem.Page_i = (*KernelPageAllocator)(nil)
