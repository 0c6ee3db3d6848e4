package vm

import (
	"sort"
	"sync"

	"exos/internal/aspace"
	"exos/internal/kmutex"
	"exos/internal/mem"
	"exos/internal/stats"
)

// Stat holds the VMM's optional instrumentation counters (package
// stats: a no-op unless stats.Stats/stats.Timing are built true).
var Stat struct {
	CR3Switches    stats.Counter_t
	CR3Cycles      stats.Cycles_t
	PagesInstalled stats.Counter_t
}

// StatsString renders Stat via stats.Stats2String, "" when
// instrumentation is compiled out.
func StatsString() string { return stats.Stats2String(Stat) }

// RegionFlags controls AllocRegion/ResizeRegion behavior (spec §4.2).
type RegionFlags uint32

const (
	Commit RegionFlags = 1 << iota
	Reserve
	ReadWrite
	AtOrOver
	MapPhysical
	Uncacheable
)

type linRange struct{ base, size uint32 }

// Vm_t represents one address space: its page-directory physical
// address and the linear ranges currently allocated within it. Grounded
// on biscuit/src/vm/as.go's Vm_t (embedded mutex, Lock_pmap/Unlock_pmap/
// Lockassert_pmap idiom); EXOS tracks used ranges directly instead of
// biscuit's Vmregion_t red-black interval tree, since region search here
// only needs first-fit/at-or-over over a handful of committed ranges, not
// COW/file-backed region bookkeeping.
type Vm_t struct {
	sync.Mutex
	Pmap       mem.Pa_t
	SearchBase uint32
	SearchEnd  uint32

	used      []linRange
	pgfltaken bool
}

// Lock_pmap acquires the address space mutex and marks that page-table
// editing is in progress.
func (as *Vm_t) Lock_pmap() {
	as.Lock()
	as.pgfltaken = true
}

// Unlock_pmap releases the address space mutex.
func (as *Vm_t) Unlock_pmap() {
	as.pgfltaken = false
	as.Unlock()
}

// Lockassert_pmap panics if the address space mutex is not held.
func (as *Vm_t) Lockassert_pmap() {
	if !as.pgfltaken {
		panic("vm: pmap lock must be held")
	}
}

// KernelVm is the kernel's own address space: every process directory
// shares its kernel-band PDEs by reference.
var KernelVm = &Vm_t{SearchBase: aspace.KernelBase, SearchEnd: aspace.SystemBase}

// activeCR3 tracks whichever Vm_t's directory is currently loaded, so
// withAddrSpace can skip a reload when it is already active.
var (
	activeCR3   mem.Pa_t
	activeCR3Mu sync.Mutex
)

// withAddrSpace runs fn with pa loaded as the active page directory,
// restoring whatever was loaded before on return. EXOS is single-CPU and
// this runs with preemption conceptually suspended for its duration (the
// same short-disabled-interrupt window §5 grants the context switch
// itself), so no other task observes the intermediate state.
func withAddrSpace(pa mem.Pa_t, fn func()) {
	activeCR3Mu.Lock()
	prev := activeCR3
	switched := prev != pa
	if switched {
		LoadCR3(pa)
		activeCR3 = pa
		Stat.CR3Switches.Inc()
	}
	m := stats.Rdtsc()
	fn()
	Stat.CR3Cycles.Add(m)
	if switched {
		LoadCR3(prev)
		activeCR3 = prev
	}
	activeCR3Mu.Unlock()
}

// kernelDirTemplate is the physical address of the canonical kernel
// directory new address spaces clone their fixed PDEs from.
var kernelDirTemplate mem.Pa_t

// Init records the kernel's own page directory as the template every
// new AllocPageDirectory clones its shared entries from.
func Init(kernelDirPA mem.Pa_t) {
	kernelDirTemplate = kernelDirPA
	KernelVm.Pmap = kernelDirPA
	activeCR3 = kernelDirPA
}

// kernelBandStart is the first PDE index belonging to the shared kernel
// band (inclusive), computed from aspace.KernelBase.
func kernelBandStart() int { return aspace.DirIndex(aspace.KernelBase) }

// sysTableDirIdx is the PDE index of the 0xFF800000 system table band.
func sysTableDirIdx() int { return aspace.DirIndex(aspace.SystemTableBase) }

// AllocPageDirectory allocates a fresh page directory (plus its system
// table) for a new process: the kernel band, descriptor band, and system
// table PDEs are cloned from the template directory; the recursive slot
// is set to point at the new directory itself (spec §4.2).
func AllocPageDirectory() (mem.Pa_t, bool) {
	dirPA := mem.Physmem.AllocPhysicalPage()
	if dirPA == 0 {
		return 0, false
	}
	sysPA := mem.Physmem.AllocPhysicalPage()
	if sysPA == 0 {
		mem.Physmem.FreePhysicalPage(dirPA)
		return 0, false
	}

	dirVA := MapTemporaryPhysicalPage(1, dirPA)
	dirWords := (*[1024]pgentry_t)(pointerAt(dirVA))
	for i := range dirWords {
		dirWords[i] = 0
	}

	// Clone every fixed/shared PDE (kernel band through the system
	// table band) from the template directory.
	withAddrSpace(kernelDirTemplate, func() {
		for i := kernelBandStart(); i <= sysTableDirIdx(); i++ {
			dirWords[i] = pdeGet(i)
		}
	})

	// Recursive slot points at this directory's own frame.
	dirWords[aspace.RecursiveSlot] = pgentry_t(dirPA) | PTE_P | PTE_W | PTE_FIXED

	// System table: PTE[0] aliases the directory, PTE[1] aliases itself.
	sysVA := MapTemporaryPhysicalPage(2, sysPA)
	sysWords := (*[1024]pgentry_t)(pointerAt(sysVA))
	for i := range sysWords {
		sysWords[i] = 0
	}
	sysWords[0] = pgentry_t(dirPA) | PTE_P | PTE_W | PTE_FIXED
	sysWords[1] = pgentry_t(sysPA) | PTE_P | PTE_W | PTE_FIXED
	dirWords[sysTableDirIdx()] = pgentry_t(sysPA) | PTE_P | PTE_W | PTE_FIXED

	return dirPA, true
}

// pointerAt is split out so tests can stub the temp-mapping indirection;
// in the real kernel it is simply unsafe.Pointer(uintptr(va)).
var pointerAt = func(va uint32) pointerT { return newPointer(va) }

// AllocPageTable lazily allocates the page-table frame backing directory
// entry dirIdx of as, installing the PDE. Returns false on allocation
// failure.
func AllocPageTable(as *Vm_t, dirIdx int, user bool) bool {
	as.Lockassert_pmap()
	pa := mem.Physmem.AllocPhysicalPage()
	if pa == 0 {
		return false
	}
	va := MapTemporaryPhysicalPage(1, pa)
	words := (*[1024]pgentry_t)(pointerAt(va))
	for i := range words {
		words[i] = 0
	}
	flags := pgentry_t(PTE_P | PTE_W)
	if user {
		flags |= PTE_U
	}
	withAddrSpace(as.Pmap, func() {
		pdeSet(dirIdx, pgentry_t(pa)|flags)
	})
	return true
}

// freeEmptyPageTables scans as's directory for page tables whose 1024
// entries are all zero and frees them, clearing the parent PDE. Only
// entries below the shared kernel band are ever collected: kernel page
// tables are shared and outlive any one address space.
func freeEmptyPageTables(as *Vm_t) {
	as.Lock_pmap()
	defer as.Unlock_pmap()
	withAddrSpace(as.Pmap, func() {
		for d := 0; d < kernelBandStart(); d++ {
			pde := pdeGet(d)
			if pde&PTE_P == 0 {
				continue
			}
			empty := true
			for t := 0; t < 1024; t++ {
				if pteGet(d, t)&PTE_P != 0 {
					empty = false
					break
				}
			}
			if empty {
				mem.Physmem.FreePhysicalPage(mem.Pa_t(pde & PTE_ADDR))
				pdeSet(d, 0)
			}
		}
	})
}

// findFree locates a free linear range of size bytes within as,
// honoring hintVA/atOrOver, and never overlapping the recursive-slot
// region (spec §4.2's region search policy).
func (as *Vm_t) findFree(hintVA uint32, size uint32, atOrOver bool) (uint32, bool) {
	size = roundUp(size)
	base := as.SearchBase
	if hintVA != 0 {
		base = roundDownVA(hintVA)
	}
	limit := as.SearchEnd
	if limit == 0 || limit > aspace.RecursiveBase {
		limit = aspace.RecursiveBase
	}

	sorted := append([]linRange(nil), as.used...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].base < sorted[j].base })

	cursor := base
	for _, r := range sorted {
		if r.base < cursor {
			if r.base+r.size > cursor {
				cursor = r.base + r.size
			}
			continue
		}
		if r.base-cursor >= size {
			if !atOrOver || cursor >= base {
				return cursor, true
			}
		}
		cursor = r.base + r.size
	}
	if cursor+size <= limit && cursor+size > cursor {
		return cursor, true
	}
	return 0, false
}

func roundUp(v uint32) uint32 {
	const pg = uint32(mem.PGSIZE)
	return (v + pg - 1) &^ (pg - 1)
}

func roundDownVA(v uint32) uint32 {
	const pg = uint32(mem.PGSIZE)
	return v &^ (pg - 1)
}

// AllocRegion reserves size bytes of linear address space in as,
// optionally backing it with physical frames, per spec §4.2's flag
// semantics. It returns the base linear address, or 0 on failure.
func (as *Vm_t) AllocRegion(hintVA uint32, targetPA mem.Pa_t, size uint32, flags RegionFlags) uint32 {
	depth := kmutex.Memory.LockMutex(taskIDOf(as), kmutex.Infinite)
	if depth == 0 {
		return 0
	}
	defer kmutex.Memory.Unlock(taskIDOf(as))

	as.Lock_pmap()
	size = roundUp(size)
	atOrOver := flags&AtOrOver != 0
	va, ok := as.findFree(hintVA, size, atOrOver)
	if !ok {
		as.Unlock_pmap()
		return 0
	}
	as.used = append(as.used, linRange{va, size})
	as.Unlock_pmap()

	if flags&(Commit|MapPhysical) == 0 {
		// Reserve-only: install not-present PTEs with a sentinel so a
		// later fault is recognizable, per spec §4.2.
		as.installReserved(va, size)
		return va
	}

	npages := int(size) / mem.PGSIZE
	for i := 0; i < npages; i++ {
		pageVA := va + uint32(i)*uint32(mem.PGSIZE)
		var framePA mem.Pa_t
		if flags&MapPhysical != 0 {
			framePA = targetPA + mem.Pa_t(i)*mem.Pa_t(mem.PGSIZE)
		} else {
			// The Memory mutex is released before requesting a physical
			// frame and reacquired only to install the resulting PTE:
			// spec §4.2 forbids holding it across a physical-page
			// allocation or disk I/O. Losing the lock across the gap is
			// safe here because each committed page's linRange entry was
			// already published above, so a concurrent FreeRegion on the
			// same va would observe it and a concurrent AllocRegion
			// cannot pick an overlapping range. installPage's own
			// page-table allocation, when the PDE is missing, still runs
			// with the mutex held.
			kmutex.Memory.Unlock(taskIDOf(as))
			framePA = mem.Physmem.AllocPhysicalPage()
			kmutex.Memory.LockMutex(taskIDOf(as), kmutex.Infinite)
			if framePA == 0 {
				as.unwind(va, i)
				return 0
			}
		}
		if !as.installPage(pageVA, framePA, flags) {
			if flags&MapPhysical == 0 {
				mem.Physmem.FreePhysicalPage(framePA)
			}
			as.unwind(va, i)
			return 0
		}
	}
	return va
}

// installPage ensures the page table for va's PDE exists, then installs
// a present PTE mapping it to framePA with the requested flags.
func (as *Vm_t) installPage(va uint32, framePA mem.Pa_t, flags RegionFlags) bool {
	as.Lock_pmap()
	defer as.Unlock_pmap()
	d, tb := aspace.DirIndex(va), aspace.TblIndex(va)
	ok := true
	withAddrSpace(as.Pmap, func() {
		if pdeGet(d)&PTE_P == 0 {
			ok = false
		}
	})
	if !ok {
		if !AllocPageTable(as, d, aspace.InUserRange(va)) {
			return false
		}
	}
	pteFlags := pgentry_t(PTE_P)
	if flags&ReadWrite != 0 {
		pteFlags |= PTE_W
	}
	if aspace.InUserRange(va) {
		pteFlags |= PTE_U
	}
	if flags&Uncacheable != 0 {
		pteFlags |= PTE_PCD
	}
	withAddrSpace(as.Pmap, func() {
		pteSet(d, tb, pgentry_t(framePA)|pteFlags)
	})
	Stat.PagesInstalled.Inc()
	return true
}

// installReserved writes not-present PTEs with a sentinel frame number
// so a page fault in this range is distinguishable from a wild access.
const reserveSentinel = pgentry_t(0xdead) << 12

func (as *Vm_t) installReserved(va, size uint32) {
	npages := int(size) / mem.PGSIZE
	for i := 0; i < npages; i++ {
		pageVA := va + uint32(i)*uint32(mem.PGSIZE)
		d, tb := aspace.DirIndex(pageVA), aspace.TblIndex(pageVA)
		as.Lock_pmap()
		present := false
		withAddrSpace(as.Pmap, func() {
			present = pdeGet(d)&PTE_P != 0
		})
		if !present {
			AllocPageTable(as, d, aspace.InUserRange(pageVA))
		}
		withAddrSpace(as.Pmap, func() {
			pteSet(d, tb, reserveSentinel)
		})
		as.Unlock_pmap()
	}
}

// unwind frees the first n already-committed pages of a region starting
// at va and removes the range from as.used, used when AllocRegion fails
// partway through (spec §4.2: "on any failure partway, fully unwind").
func (as *Vm_t) unwind(va uint32, n int) {
	for i := 0; i < n; i++ {
		pageVA := va + uint32(i)*uint32(mem.PGSIZE)
		as.freePage(pageVA)
	}
	as.Lock()
	for i, r := range as.used {
		if r.base == va {
			as.used = append(as.used[:i], as.used[i+1:]...)
			break
		}
	}
	as.Unlock()
}

func (as *Vm_t) freePage(va uint32) {
	d, tb := aspace.DirIndex(va), aspace.TblIndex(va)
	as.Lock_pmap()
	defer as.Unlock_pmap()
	var pte pgentry_t
	withAddrSpace(as.Pmap, func() {
		pte = pteGet(d, tb)
		if pte&PTE_P != 0 {
			pteSet(d, tb, 0)
		}
	})
	if pte&PTE_P != 0 {
		mem.Physmem.FreePhysicalPage(mem.Pa_t(pte & PTE_ADDR))
	}
}

// FreeRegion releases every committed frame in [va, va+size), clears the
// PTEs, and collects any page table left fully empty (spec §4.2).
func (as *Vm_t) FreeRegion(va, size uint32) {
	size = roundUp(size)
	npages := int(size) / mem.PGSIZE
	for i := 0; i < npages; i++ {
		as.freePage(va + uint32(i)*uint32(mem.PGSIZE))
	}
	freeEmptyPageTables(as)
	as.Lock()
	for i, r := range as.used {
		if r.base == va {
			as.used = append(as.used[:i], as.used[i+1:]...)
			break
		}
	}
	as.Unlock()
}

// ResizeRegion grows or shrinks the committed region at va from oldSize
// to newSize, used exclusively by stack growth (spec §4.5).
func (as *Vm_t) ResizeRegion(va, oldSize, newSize uint32, flags RegionFlags) bool {
	oldSize, newSize = roundUp(oldSize), roundUp(newSize)
	if newSize > oldSize {
		grow := newSize - oldSize
		start := va + oldSize
		npages := int(grow) / mem.PGSIZE
		for i := 0; i < npages; i++ {
			pageVA := start + uint32(i)*uint32(mem.PGSIZE)
			pa := mem.Physmem.AllocPhysicalPage()
			if pa == 0 {
				for j := 0; j < i; j++ {
					as.freePage(start + uint32(j)*uint32(mem.PGSIZE))
				}
				return false
			}
			if !as.installPage(pageVA, pa, flags|Commit|ReadWrite) {
				mem.Physmem.FreePhysicalPage(pa)
				for j := 0; j < i; j++ {
					as.freePage(start + uint32(j)*uint32(mem.PGSIZE))
				}
				return false
			}
		}
	} else if newSize < oldSize {
		shrink := oldSize - newSize
		start := va + newSize
		npages := int(shrink) / mem.PGSIZE
		for i := 0; i < npages; i++ {
			as.freePage(start + uint32(i)*uint32(mem.PGSIZE))
		}
		freeEmptyPageTables(as)
	}
	as.Lock()
	for i, r := range as.used {
		if r.base == va {
			as.used[i].size = newSize
			break
		}
	}
	as.Unlock()
	return true
}

// GrowDown extends the committed region currently based at va downward
// by growBy bytes, for the user stack's auto-grow (spec §4.5): unlike
// ResizeRegion, which only extends a region's upper bound, a stack grows
// toward lower addresses, so this commits pages in [va-growBy, va) and
// moves the region's recorded base down to match. Returns the new base,
// or 0 on failure.
func (as *Vm_t) GrowDown(va, size, growBy uint32) (uint32, bool) {
	growBy = roundUp(growBy)
	newBase := va - growBy
	npages := int(growBy) / mem.PGSIZE
	for i := 0; i < npages; i++ {
		pageVA := newBase + uint32(i)*uint32(mem.PGSIZE)
		pa := mem.Physmem.AllocPhysicalPage()
		if pa == 0 {
			for j := 0; j < i; j++ {
				as.freePage(newBase + uint32(j)*uint32(mem.PGSIZE))
			}
			return 0, false
		}
		if !as.installPage(pageVA, pa, Commit|ReadWrite) {
			mem.Physmem.FreePhysicalPage(pa)
			for j := 0; j < i; j++ {
				as.freePage(newBase + uint32(j)*uint32(mem.PGSIZE))
			}
			return 0, false
		}
	}
	as.Lock()
	for i, r := range as.used {
		if r.base == va {
			as.used[i] = linRange{newBase, size + growBy}
			break
		}
	}
	as.Unlock()
	return newBase, true
}

// MapLinearToPhysical walks as's page tables via the self-map and
// returns the physical frame backing va, or (0, false) if unmapped.
func MapLinearToPhysical(as *Vm_t, va uint32) (mem.Pa_t, bool) {
	d, tb := aspace.DirIndex(va), aspace.TblIndex(va)
	var pa mem.Pa_t
	var ok bool
	as.Lock_pmap()
	withAddrSpace(as.Pmap, func() {
		if pdeGet(d)&PTE_P == 0 {
			return
		}
		pte := pteGet(d, tb)
		if pte&PTE_P == 0 {
			return
		}
		pa = mem.Pa_t(pte&PTE_ADDR) | mem.Pa_t(aspace.PageOffset(va))
		ok = true
	})
	as.Unlock_pmap()
	return pa, ok
}

// IsValidMemory reports whether va is currently mapped and present in
// as, the check the syscall dispatcher runs on every pointer argument
// before dereferencing it (spec §4.8).
func IsValidMemory(as *Vm_t, va uint32) bool {
	_, ok := MapLinearToPhysical(as, va)
	return ok
}

// TaskIDOf is a settable hook: AllocRegion et al. need a task id to
// pass to kmutex's lock-order bookkeeping. Nothing in this tree
// replaces the default, so every caller is treated as having no task
// context (order checks skipped, per kmutex.checkOrder).
var TaskIDOf = func(as *Vm_t) uint64 { return 0 }

func taskIDOf(as *Vm_t) uint64 { return TaskIDOf(as) }
