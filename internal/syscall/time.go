package syscall

import (
	"exos/internal/defs"
	"exos/internal/sched"
)

func init() {
	register(FuncGetSystemTime, defs.PrivUser, getSystemTime)
	register(FuncSetSystemTime, defs.PrivKernel, setSystemTime)
	register(FuncGetLocalTime, defs.PrivUser, getLocalTime)
	register(FuncSetLocalTime, defs.PrivKernel, setLocalTime)
}

// localOffsetMs is added to sched.SystemTime to produce local time; no
// wall-clock source exists below the syscall layer until internal/kernel
// wires one up from the RTC, so local time starts equal to system time.
var localOffsetMs int64

func getSystemTime(param uint32) uint32 {
	if !writeU64(param, uint64(sched.SystemTime)) {
		return errRet(-defs.EFAULT)
	}
	return okRet(uint32(defs.ENONE))
}

func setSystemTime(param uint32) uint32 {
	v, ok := readU64(param)
	if !ok {
		return errRet(-defs.EFAULT)
	}
	sched.SystemTime = int64(v)
	return okRet(uint32(defs.ENONE))
}

func getLocalTime(param uint32) uint32 {
	if !writeU64(param, uint64(sched.SystemTime+localOffsetMs)) {
		return errRet(-defs.EFAULT)
	}
	return okRet(uint32(defs.ENONE))
}

func setLocalTime(param uint32) uint32 {
	v, ok := readU64(param)
	if !ok {
		return errRet(-defs.EFAULT)
	}
	localOffsetMs = int64(v) - sched.SystemTime
	return okRet(uint32(defs.ENONE))
}
