package mem

import "testing"

func freshAllocator(npages int) *Physmem_t {
	p := &Physmem_t{}
	p.Init(npages)
	return p
}

func TestAllocMarksBitUsed(t *testing.T) {
	p := freshAllocator(64)
	pa := p.AllocPhysicalPage()
	if pa == 0 {
		t.Fatalf("AllocPhysicalPage() = 0, want a nonzero frame")
	}
	idx := pageIndex(pa)
	if !p.GetPhysicalPageMark(idx) {
		t.Fatalf("page %d should be marked used after allocation", idx)
	}
}

func TestAllocFreeRoundTrip(t *testing.T) {
	p := freshAllocator(64)
	pa := p.AllocPhysicalPage()
	p.FreePhysicalPage(pa)
	idx := pageIndex(pa)
	if p.GetPhysicalPageMark(idx) {
		t.Fatalf("page %d should be clear after FreePhysicalPage", idx)
	}
	pa2 := p.AllocPhysicalPage()
	if pa2 != pa {
		t.Fatalf("AllocPhysicalPage() after free = %#x, want reused frame %#x", pa2, pa)
	}
}

func TestAllocDistinctFrames(t *testing.T) {
	p := freshAllocator(64)
	seen := map[Pa_t]bool{}
	// Frame 0 is the failure sentinel, so 64 pages yield 63 frames.
	for i := 0; i < 63; i++ {
		pa := p.AllocPhysicalPage()
		if pa == 0 {
			t.Fatalf("AllocPhysicalPage() returned 0 on iteration %d", i)
		}
		if seen[pa] {
			t.Fatalf("AllocPhysicalPage() returned duplicate frame %#x", pa)
		}
		seen[pa] = true
	}
}

func TestAllocExhaustionReturnsZero(t *testing.T) {
	p := freshAllocator(8)
	// Frame 0 is the failure sentinel, so 8 pages yield 7 frames.
	for i := 0; i < 7; i++ {
		if p.AllocPhysicalPage() == 0 {
			t.Fatalf("allocator exhausted early at iteration %d", i)
		}
	}
	if pa := p.AllocPhysicalPage(); pa != 0 {
		t.Fatalf("AllocPhysicalPage() on exhausted bitmap = %#x, want 0", pa)
	}
}

func TestReserveRangeBlocksAllocation(t *testing.T) {
	p := freshAllocator(16)
	p.ReserveRange(0, uintptr(PGSIZE)*4)
	for i := 0; i < 4; i++ {
		if !p.GetPhysicalPageMark(i) {
			t.Fatalf("page %d should be reserved", i)
		}
	}
	pa := p.AllocPhysicalPage()
	if idx := pageIndex(pa); idx < 4 {
		t.Fatalf("AllocPhysicalPage() returned reserved page %d", idx)
	}
}

func TestSetPhysicalPageMarkDirect(t *testing.T) {
	p := freshAllocator(16)
	p.SetPhysicalPageMark(5, true)
	if !p.GetPhysicalPageMark(5) {
		t.Fatalf("page 5 should read back as used")
	}
	p.SetPhysicalPageMark(5, false)
	if p.GetPhysicalPageMark(5) {
		t.Fatalf("page 5 should read back as free")
	}
}

func TestGetPhysicalMemoryUsedTracksAllocations(t *testing.T) {
	p := freshAllocator(64)
	if used := p.GetPhysicalMemoryUsed(); used != 0 {
		t.Fatalf("GetPhysicalMemoryUsed() = %d, want 0 on a fresh allocator", used)
	}
	pa := p.AllocPhysicalPage()
	if used := p.GetPhysicalMemoryUsed(); used != uint64(PGSIZE) {
		t.Fatalf("GetPhysicalMemoryUsed() = %d, want %d after one allocation", used, PGSIZE)
	}
	p.FreePhysicalPage(pa)
	if used := p.GetPhysicalMemoryUsed(); used != 0 {
		t.Fatalf("GetPhysicalMemoryUsed() = %d, want 0 after freeing it back", used)
	}
}
