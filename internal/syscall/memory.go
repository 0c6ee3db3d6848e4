package syscall

import (
	"sync"

	"exos/internal/defs"
	"exos/internal/sched"
	"exos/internal/vm"
)

func init() {
	register(FuncAllocRegion, defs.PrivUser, allocRegionCall)
	register(FuncFreeRegion, defs.PrivUser, freeRegionCall)
	register(FuncIsMemoryValid, defs.PrivUser, isMemoryValidCall)
	register(FuncGetProcessHeap, defs.PrivUser, getProcessHeapCall)
	register(FuncHeapAlloc, defs.PrivUser, heapAllocCall)
	register(FuncHeapFree, defs.PrivUser, heapFreeCall)
	register(FuncHeapRealloc, defs.PrivUser, heapReallocCall)
}

// allocRegionArgsSize is {HintVA, Size, Flags} as three U32s.
const allocRegionArgsSize = 3 * 4

func allocRegionCall(param uint32) uint32 {
	if !checkPtr(param, allocRegionArgsSize) {
		return errRet(-defs.EFAULT)
	}
	hint, _ := readU32(param)
	size, _ := readU32(param + 4)
	flags, _ := readU32(param + 8)

	as := currentAS()
	if as == nil {
		return errRet(-defs.EUNEXPECTED)
	}
	va := as.AllocRegion(hint, 0, size, vm.RegionFlags(flags)|vm.Commit)
	if va == 0 {
		return errRet(-defs.ENOMEM)
	}
	return okRet(va)
}

// freeRegionArgsSize is {VA, Size}.
const freeRegionArgsSize = 2 * 4

func freeRegionCall(param uint32) uint32 {
	if !checkPtr(param, freeRegionArgsSize) {
		return errRet(-defs.EFAULT)
	}
	va, _ := readU32(param)
	size, _ := readU32(param + 4)
	as := currentAS()
	if as == nil {
		return errRet(-defs.EUNEXPECTED)
	}
	as.FreeRegion(va, size)
	return okRet(uint32(defs.ENONE))
}

func isMemoryValidCall(param uint32) uint32 {
	as := currentAS()
	if as == nil {
		return okRet(0)
	}
	if vm.IsValidMemory(as, param) {
		return okRet(1)
	}
	return okRet(0)
}

func getProcessHeapCall(_ uint32) uint32 {
	t := sched.CurrentTask()
	if t == nil || t.Process == nil {
		return errRet(-defs.EUNEXPECTED)
	}
	return okRet(t.Process.HeapBase)
}

// heapState is the bump allocator backing HeapAlloc/Free/Realloc: a
// per-process high-water mark over the fixed HeapBase/HeapSize span.
// HeapFree cannot reclaim space without per-allocation size bookkeeping
// this minimal table doesn't keep, so it is a no-op; HeapRealloc takes a
// fresh block from the high-water mark and reclaims nothing either. Grounded
// on original_source/kernel/include/Heap.h's HeapAlloc_HBHS/
// HeapFree_HBHS pair operating over a fixed HeapBase/HeapSize span.
type heapState struct {
	mu    sync.Mutex
	wmark uint32
}

var (
	heapsMu sync.Mutex
	heaps   = map[uint64]*heapState{}
)

func heapFor(taskID uint64) *heapState {
	heapsMu.Lock()
	defer heapsMu.Unlock()
	h, ok := heaps[taskID]
	if !ok {
		h = &heapState{}
		heaps[taskID] = h
	}
	return h
}

const heapAlign = 16

func roundAlign(v uint32) uint32 {
	return (v + heapAlign - 1) &^ (heapAlign - 1)
}

func heapAllocCall(param uint32) uint32 {
	t := sched.CurrentTask()
	if t == nil || t.Process == nil {
		return errRet(-defs.EUNEXPECTED)
	}
	size := roundAlign(param)
	if size == 0 {
		return errRet(-defs.EINVAL)
	}

	p := t.Process
	pid := uint64(p.Hdr.Id)
	h := heapFor(pid)

	if depth := p.HeapLock(pid); depth == 0 {
		return errRet(-defs.ETIMEDOUT)
	}
	defer p.HeapUnlock(pid)

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.wmark+size > p.HeapSize {
		return errRet(-defs.ENOHEAP)
	}
	off := h.wmark
	h.wmark += size
	return okRet(p.HeapBase + off)
}

func heapFreeCall(param uint32) uint32 {
	t := sched.CurrentTask()
	if t == nil || t.Process == nil {
		return errRet(-defs.EUNEXPECTED)
	}
	p := t.Process
	if param < p.HeapBase || param >= p.HeapBase+p.HeapSize {
		return errRet(-defs.EINVAL)
	}
	return okRet(uint32(defs.ENONE))
}

// heapReallocArgsSize is {Pointer, NewSize}.
const heapReallocArgsSize = 2 * 4

func heapReallocCall(param uint32) uint32 {
	if !checkPtr(param, heapReallocArgsSize) {
		return errRet(-defs.EFAULT)
	}
	ptr, _ := readU32(param)
	newSize, _ := readU32(param + 4)
	if ptr == 0 {
		return heapAllocCall(newSize)
	}
	newPtr := heapAllocCall(newSize)
	if e := int32(newPtr); e < 0 {
		return newPtr
	}
	heapFreeCall(ptr)
	return newPtr
}
