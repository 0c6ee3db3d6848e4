package syscall

import (
	"exos/internal/defs"
	"exos/internal/kmutex"
	"exos/internal/kobj"
	"exos/internal/limits"
	"exos/internal/sched"
)

func init() {
	register(FuncCreateMutex, defs.PrivUser, createMutexCall)
	register(FuncDeleteMutex, defs.PrivUser, deleteMutexCall)
	register(FuncLockMutex, defs.PrivUser, lockMutexCall)
	register(FuncUnlockMutex, defs.PrivUser, unlockMutexCall)

	RegisterObjectDeleter(defs.ObjMutex, func(id kobj.Id) defs.Err_t {
		return deleteMutex(id)
	})
}

// userMutexes is the handle table backing the CreateMutex/DeleteMutex
// syscalls: every user-visible mutex is a kmutex.Mutex_t tagged
// kmutex.OrderUser, addressed the same kobj.Table[T]-by-Id way
// proc.Processes and sched.Tasks are.
var userMutexes = kobj.NewTable[kmutex.Mutex_t]()

func lookupMutex(id kobj.Id) *kmutex.Mutex_t {
	return userMutexes.Get(id)
}

func createMutexCall(_ uint32) uint32 {
	if !limits.Mutexes.Taken() {
		return errRet(-defs.ENOMEM)
	}
	m := kmutex.New("user-mutex", kmutex.OrderUser)
	id := userMutexes.Insert(m)
	return okRet(uint32(id))
}

func deleteMutex(id kobj.Id) defs.Err_t {
	m := userMutexes.Get(id)
	if m == nil {
		return -defs.EINVAL
	}
	userMutexes.Remove(id)
	limits.Mutexes.Given()
	return defs.ENONE
}

func deleteMutexCall(param uint32) uint32 {
	return errRet(deleteMutex(kobj.Id(param)))
}

// lockMutexArgsSize is {MutexId, TimeoutMs}.
const lockMutexArgsSize = 2 * 4

func lockMutexCall(param uint32) uint32 {
	if !checkPtr(param, lockMutexArgsSize) {
		return errRet(-defs.EFAULT)
	}
	id, _ := readU32(param)
	timeoutMs, _ := readU32(param + 4)

	m := lookupMutex(kobj.Id(id))
	if m == nil {
		return errRet(-defs.EINVAL)
	}
	depth := m.LockMutex(sched.CurrentTaskID(), int(int32(timeoutMs)))
	if depth == 0 {
		return errRet(-defs.ETIMEDOUT)
	}
	return okRet(uint32(depth))
}

func unlockMutexCall(param uint32) uint32 {
	m := lookupMutex(kobj.Id(param))
	if m == nil {
		return errRet(-defs.EINVAL)
	}
	m.Unlock(sched.CurrentTaskID())
	return okRet(uint32(defs.ENONE))
}
