package syscall

import (
	"exos/internal/defs"
	"exos/internal/sched"
	"exos/internal/trap"
	"exos/internal/vm"
)

func init() {
	trap.SyscallDispatch = Dispatch
	trap.DriverDispatch = DriverDispatchFrame
}

// currentAS returns the address space of whichever task is presently
// scheduled, or nil before the first task runs.
func currentAS() *vm.Vm_t {
	t := sched.CurrentTask()
	if t == nil || t.Process == nil {
		return nil
	}
	return t.Process.Vm
}

// checkPtr validates a caller-supplied pointer against the current
// task's address space before any handler dereferences it (spec §4.8:
// "All pointer parameters are validated with IsValidMemory against the
// caller's address space before dereference").
func checkPtr(va uint32, n int) bool {
	as := currentAS()
	if as == nil {
		return false
	}
	for off := 0; off < n; off += 0x1000 {
		if !vm.IsValidMemory(as, va+uint32(off)) {
			return false
		}
	}
	return n == 0 || vm.IsValidMemory(as, va+uint32(n)-1)
}

func readU32(va uint32) (uint32, bool) {
	if !checkPtr(va, 4) {
		return 0, false
	}
	var buf [4]byte
	vm.ReadBytes(currentAS(), va, buf[:])
	return uint32(buf[0]) | uint32(buf[1])<<8 | uint32(buf[2])<<16 | uint32(buf[3])<<24, true
}

func writeU32(va uint32, v uint32) bool {
	if !checkPtr(va, 4) {
		return false
	}
	buf := [4]byte{byte(v), byte(v >> 8), byte(v >> 16), byte(v >> 24)}
	vm.WriteBytes(currentAS(), va, buf[:])
	return true
}

func readU64(va uint32) (uint64, bool) {
	if !checkPtr(va, 8) {
		return 0, false
	}
	var buf [8]byte
	vm.ReadBytes(currentAS(), va, buf[:])
	var v uint64
	for i := 7; i >= 0; i-- {
		v = v<<8 | uint64(buf[i])
	}
	return v, true
}

func writeU64(va uint32, v uint64) bool {
	if !checkPtr(va, 8) {
		return false
	}
	var buf [8]byte
	for i := 0; i < 8; i++ {
		buf[i] = byte(v)
		v >>= 8
	}
	vm.WriteBytes(currentAS(), va, buf[:])
	return true
}

// readCString reads up to max bytes starting at va, stopping at the
// first NUL, the same convention SysCall_Debug's string parameter uses.
func readCString(va uint32, max int) (string, bool) {
	if !checkPtr(va, max) {
		return "", false
	}
	buf := make([]byte, max)
	vm.ReadBytes(currentAS(), va, buf)
	for i, b := range buf {
		if b == 0 {
			return string(buf[:i]), true
		}
	}
	return string(buf), true
}

func writeBytes(va uint32, data []byte) bool {
	if !checkPtr(va, len(data)) {
		return false
	}
	vm.WriteBytes(currentAS(), va, data)
	return true
}

// Dispatch implements spec §4.8's dispatch policy for the 0x80 gate:
// bounds-check the function id, enforce the entry's required privilege
// against the caller's CS, invoke the handler, and record the result for
// GetLastError.
func Dispatch(f *trap.InterruptFrame) {
	fid := FuncId(f.Eax)
	taskID := sched.CurrentTaskID()
	if uint32(fid) >= uint32(numFuncs) {
		f.Eax = recordAndReturn(taskID, errRet(-defs.EINVAL))
		return
	}
	entry := Table[fid]
	if entry.Handler == nil {
		f.Eax = recordAndReturn(taskID, errRet(-defs.ENOTIMPL))
		return
	}
	if entry.Privilege == defs.PrivKernel && f.FromUser() {
		f.Eax = recordAndReturn(taskID, errRet(-defs.EPERM))
		return
	}
	f.Eax = recordAndReturn(taskID, entry.Handler(f.Ebx))
}
