package vm

import (
	"unsafe"

	"exos/internal/aspace"
	"exos/internal/mem"
)

// tempSlotVA maps window slots 1..3 to their fixed linear addresses
// (spec §4.2's MapTemporaryPhysicalPage1/2/3).
var tempSlotVA = [4]uint32{0, aspace.TempMap1VA, aspace.TempMap2VA, aspace.TempMap3VA}

// MapTemporaryPhysicalPage installs pa at one of the three reserved
// temporary-mapping windows (slot 1, 2, or 3) within the kernel's own
// page table and returns its linear address. Used to reach a physical
// frame — such as a freshly allocated, not-yet-loaded page directory —
// that is not otherwise mapped anywhere in the live address space.
func MapTemporaryPhysicalPage(slot int, pa mem.Pa_t) uint32 {
	va := tempSlotVA[slot]
	d, tb := aspace.DirIndex(va), aspace.TblIndex(va)
	withAddrSpace(kernelDirTemplate, func() {
		if pdeGet(d)&PTE_P == 0 {
			panic("vm: temp-mapping page table not present")
		}
		pteSet(d, tb, pgentry_t(pa)|PTE_P|PTE_W)
	})
	return va
}

// UnmapTemporaryPhysicalPage clears one of the three temp-mapping
// windows after the caller is done with it.
func UnmapTemporaryPhysicalPage(slot int) {
	va := tempSlotVA[slot]
	d, tb := aspace.DirIndex(va), aspace.TblIndex(va)
	withAddrSpace(kernelDirTemplate, func() {
		pteSet(d, tb, 0)
	})
}

// pointerT is the raw-memory handle returned by pointerAt: a plain
// unsafe.Pointer, named so region.go's allocation paths read in terms of
// the kernel's own vocabulary rather than the unsafe package directly.
type pointerT = unsafe.Pointer

// newPointer converts a linear address into a dereferenceable pointer.
// Only ever called against addresses the caller has just mapped (the
// temp-mapping window or a live PDE/PTE via the recursive self-map), so
// the conversion is safe in the same sense the rest of this package's
// dirPtr/tblPtr helpers are.
func newPointer(va uint32) pointerT {
	return unsafe.Pointer(uintptr(va))
}
