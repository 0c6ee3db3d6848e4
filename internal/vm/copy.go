package vm

import "unsafe"

// WriteBytes copies data into as's address space starting at va, which
// must already be committed (AllocRegion with Commit set). Grounded on
// biscuit/src/vm/as.go's Userwriten, simplified since EXOS has no
// COW pages to fault in first: the destination is already backed by a
// concrete frame.
func WriteBytes(as *Vm_t, va uint32, data []byte) {
	if len(data) == 0 {
		return
	}
	withAddrSpace(as.Pmap, func() {
		dst := unsafe.Slice((*byte)(unsafe.Pointer(uintptr(va))), len(data))
		copy(dst, data)
	})
}

// ReadBytes copies len(dst) bytes out of as's address space starting at
// va into dst. Grounded on the same source's Userreadn.
func ReadBytes(as *Vm_t, va uint32, dst []byte) {
	if len(dst) == 0 {
		return
	}
	withAddrSpace(as.Pmap, func() {
		src := unsafe.Slice((*byte)(unsafe.Pointer(uintptr(va))), len(dst))
		copy(dst, src)
	})
}
