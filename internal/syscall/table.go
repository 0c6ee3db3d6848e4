// Package syscall implements the fixed system-call table of spec §4.8:
// one array indexed by function id, each entry naming a handler and the
// privilege required to invoke it. Grounded on
// original_source/kernel/include/SYSCall.h's SysCall_* enumeration and
// SYSCALLENTRY/SysCallTable shape, generalized the way internal/trap
// turns the IDT into a settable-hook array instead of a raw C table.
package syscall

import (
	"sync"

	"exos/internal/defs"
)

// FuncId identifies one entry in the system-call table (EAX on entry,
// per spec §6's syscall ABI).
type FuncId uint32

const (
	FuncGetVersion FuncId = iota
	FuncGetSystemInfo
	FuncGetLastError
	FuncSetLastError
	FuncDebug

	FuncGetSystemTime
	FuncSetSystemTime
	FuncGetLocalTime
	FuncSetLocalTime

	FuncCreateProcess
	FuncKillProcess
	FuncGetProcessInfo
	FuncDeleteObject

	FuncCreateTask
	FuncKillTask
	FuncExit
	FuncSuspendTask
	FuncResumeTask
	FuncSleep
	FuncWait
	FuncGetCurrentTask

	FuncPostMessage
	FuncSendMessage
	FuncPeekMessage
	FuncGetMessage
	FuncDispatchMessage

	FuncCreateMutex
	FuncDeleteMutex
	FuncLockMutex
	FuncUnlockMutex

	FuncAllocRegion
	FuncFreeRegion
	FuncIsMemoryValid
	FuncGetProcessHeap
	FuncHeapAlloc
	FuncHeapFree
	FuncHeapRealloc

	FuncEnumVolumes
	FuncGetVolumeInfo
	FuncOpenFile
	FuncReadFile
	FuncWriteFile
	FuncGetFileSize
	FuncGetFilePosition
	FuncSetFilePosition
	FuncFindFirstFile
	FuncFindNextFile

	FuncConsolePeekKey
	FuncConsoleGetKey
	FuncConsoleGetModifiers
	FuncConsolePrint
	FuncConsoleGetString
	FuncConsoleGotoXY
	FuncConsoleClear
	FuncConsoleBlitBuffer

	FuncLogin
	FuncLogout
	FuncGetCurrentUser
	FuncChangePassword
	FuncCreateUser
	FuncDeleteUser
	FuncListUsers

	numFuncs
)

// Handler is one system call's implementation: it receives the raw
// 32-bit parameter from EBX (usually a pointer into the caller's address
// space) and returns the 32-bit result placed back into EAX.
type Handler func(param uint32) uint32

// Entry pairs a handler with the minimum privilege a caller needs to
// invoke it (spec §4.8: "{ handler function pointer, required
// privilege }").
type Entry struct {
	Handler   Handler
	Privilege defs.Privilege
}

// Table is the fixed syscall table, indexed by FuncId.
var Table [numFuncs]Entry

func register(id FuncId, priv defs.Privilege, h Handler) {
	Table[id] = Entry{Handler: h, Privilege: priv}
}

// errRet packs a defs.Err_t into the unsigned 32-bit return slot every
// handler uses; negative error codes round-trip through GetLastError the
// same way a real EAX register would carry them.
func errRet(e defs.Err_t) uint32 {
	return uint32(int32(e))
}

func okRet(v uint32) uint32 {
	return v
}

// lastError tracks, per calling task, the most recent syscall error
// (spec §4.8's GetLastError/SetLastError), the same per-task side table
// idiom as kmutex's held-order bookkeeping.
var lastErrMu sync.Mutex
var lastErr = map[uint64]defs.Err_t{}

func setLastError(taskID uint64, e defs.Err_t) {
	lastErrMu.Lock()
	defer lastErrMu.Unlock()
	lastErr[taskID] = e
}

func getLastError(taskID uint64) defs.Err_t {
	lastErrMu.Lock()
	defer lastErrMu.Unlock()
	return lastErr[taskID]
}

// recordAndReturn sets the calling task's last-error slot whenever a
// handler reports failure (its return value, reinterpreted as int32, is
// negative), then passes the value through unchanged. Success returns
// leave the slot alone, so SetLastError's own effect is not immediately
// clobbered by the dispatcher.
func recordAndReturn(taskID uint64, v uint32) uint32 {
	if e := int32(v); e < 0 {
		setLastError(taskID, defs.Err_t(e))
	}
	return v
}
