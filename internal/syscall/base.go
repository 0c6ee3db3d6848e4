package syscall

import (
	"exos/internal/defs"
	"exos/internal/klog"
	"exos/internal/mem"
	"exos/internal/proc"
	"exos/internal/sched"
)

// Version is the fixed kernel version GetVersion reports, major in the
// high word and minor in the low word.
const Version uint32 = 0x00010000

func init() {
	register(FuncGetVersion, defs.PrivUser, getVersion)
	register(FuncGetSystemInfo, defs.PrivUser, getSystemInfo)
	register(FuncGetLastError, defs.PrivUser, getLastErrorCall)
	register(FuncSetLastError, defs.PrivUser, setLastErrorCall)
	register(FuncDebug, defs.PrivUser, debugPrint)
}

func getVersion(_ uint32) uint32 {
	return Version
}

// systemInfoLayout mirrors what GetSystemInfo writes to the caller's
// buffer: MemoryPages, FreePages (approximated, since Physmem_t tracks
// only total/used via its bitmap), ProcessCount, TaskCount, SystemTimeMs
// (low 32 bits), Version.
const systemInfoSize = 6 * 4

func getSystemInfo(param uint32) uint32 {
	if !checkPtr(param, systemInfoSize) {
		return errRet(-defs.EFAULT)
	}
	total := uint32(mem.Physmem.Npages())
	free := total - uint32(mem.Physmem.GetPhysicalMemoryUsed()/uint64(mem.PGSIZE))
	procCount := uint32(proc.Processes.Len())
	taskCount := uint32(sched.Tasks.Len())
	fields := []uint32{total, free, procCount, taskCount, uint32(sched.SystemTime), Version}
	for i, v := range fields {
		writeU32(param+uint32(i*4), v)
	}
	return okRet(uint32(defs.ENONE))
}

func getLastErrorCall(_ uint32) uint32 {
	return uint32(int32(getLastError(sched.CurrentTaskID())))
}

func setLastErrorCall(param uint32) uint32 {
	setLastError(sched.CurrentTaskID(), defs.Err_t(int32(param)))
	return okRet(uint32(defs.ENONE))
}

const maxDebugString = 256

func debugPrint(param uint32) uint32 {
	s, ok := readCString(param, maxDebugString)
	if !ok {
		return errRet(-defs.EFAULT)
	}
	klog.Printf("debug: %s\n", s)
	return okRet(uint32(defs.ENONE))
}
