// Package vm implements the two-level (PDE/PTE) virtual memory manager: a
// recursive self-map that lets the kernel edit live page tables through
// ordinary pointer dereferences, plus the AllocRegion/FreeRegion/
// ResizeRegion region API of spec §4.2.
//
// Grounded on biscuit/src/vm/as.go's Vm_t (embedded-mutex address space,
// Lock_pmap/Unlock_pmap/Lockassert_pmap idiom) and
// biscuit/src/mem/dmap.go's recursive-addressing helpers (caddr/pgbits),
// adapted from amd64's 4-level/512-entry tables to i386's 2-level/
// 1024-entry tables, and from biscuit's direct-map-everything design
// (amd64 has virtual address space to spare) to EXOS's recursive self-map
// plus temporary-mapping window (i386 does not).
package vm

import (
	"unsafe"

	"exos/internal/aspace"
	"exos/internal/mem"
)

// PTE/PDE flag bits, bit-compatible with the i386 paging structures
// (spec §3's PageDirectory/PageTable invariants).
const (
	PTE_P   mem.Pa_t = 1 << 0 // present
	PTE_W   mem.Pa_t = 1 << 1 // read/write
	PTE_U   mem.Pa_t = 1 << 2 // user/supervisor
	PTE_PWT mem.Pa_t = 1 << 3 // write-through
	PTE_PCD mem.Pa_t = 1 << 4 // cache disabled
	PTE_A   mem.Pa_t = 1 << 5 // accessed
	PTE_D   mem.Pa_t = 1 << 6 // dirty (PTE only)
	PTE_PS  mem.Pa_t = 1 << 7 // page size (always 0: 4KB pages only)
	PTE_G   mem.Pa_t = 1 << 8 // global

	// PTE_FIXED is an OS-available bit (9): the kernel-convention "never
	// swapped" marker spec §3 describes for the kernel-range PDE.
	PTE_FIXED mem.Pa_t = 1 << 9

	// PTE_RESERVED is the reservation/swap bit named by spec §4.2's open
	// question. It is defined here but never set or read by any code:
	// EXOS has no swap engine (a declared non-goal), so the bit stays
	// reserved-zero per the spec's own resolution.
	PTE_RESERVED mem.Pa_t = 1 << 10

	PTE_ADDR mem.Pa_t = mem.PGMASK
)

// pgentry_t is one slot of a page directory or page table.
type pgentry_t = mem.Pa_t

// dirPtr returns a pointer to PDE dirIdx of the currently loaded
// directory, via the recursive self-map slot at aspace.DirectoryVA.
func dirPtr(dirIdx int) *pgentry_t {
	va := uintptr(aspace.DirectoryVA) + uintptr(dirIdx)*4
	return (*pgentry_t)(unsafe.Pointer(va))
}

// tblPtr returns a pointer to PTE tblIdx of the page table selected by
// directory entry dirIdx, via the recursive self-map.
func tblPtr(dirIdx, tblIdx int) *pgentry_t {
	va := uintptr(aspace.PageTableVA(dirIdx)) + uintptr(tblIdx)*4
	return (*pgentry_t)(unsafe.Pointer(va))
}

// Invlpg invalidates the TLB entry for a single linear page. The default
// implementation is a no-op; cmd/kernel's boot stub replaces it with an
// inline INVLPG once the kernel owns arch-specific assembly, mirroring
// stats.Rdtsc's settable-hook pattern.
var Invlpg = func(va uint32) {}

// LoadCR3 reloads the page-directory base register, switching the active
// address space. The default is a no-op for the same reason as Invlpg.
var LoadCR3 = func(pa mem.Pa_t) {}

// pdeGet reads PDE dirIdx of the live directory.
func pdeGet(dirIdx int) pgentry_t {
	return *dirPtr(dirIdx)
}

// pdeSet writes PDE dirIdx of the live directory.
func pdeSet(dirIdx int, v pgentry_t) {
	*dirPtr(dirIdx) = v
}

// pteGet reads PTE tblIdx of the page table at directory entry dirIdx.
// The caller must have already verified the PDE is present.
func pteGet(dirIdx, tblIdx int) pgentry_t {
	return *tblPtr(dirIdx, tblIdx)
}

// pteSet writes PTE tblIdx of the page table at directory entry dirIdx
// and invalidates the affected linear page.
func pteSet(dirIdx, tblIdx int, v pgentry_t) {
	*tblPtr(dirIdx, tblIdx) = v
	Invlpg(uint32(dirIdx)<<22 | uint32(tblIdx)<<12)
}
