// Package sched implements the task struct and preemptive scheduler of
// spec §4.5: a global ready queue ordered by priority class with
// round-robin within a class, software context switch, and the
// Sleep/Wait/PostMessage primitives. Grounded on
// original_source/kernel/source/Process.h's TASK struct and TASK_STATUS_*
// values, and on biscuit's tinfo/tinfo.go (Tnote_t's Alive/Killed/Isdoomed
// bookkeeping) and accnt/accnt.go (per-task accounting).
package sched

import (
	"exos/internal/accnt"
	"exos/internal/defs"
	"exos/internal/kmutex"
	"exos/internal/kobj"
	"exos/internal/proc"
)

// Status mirrors original_source's TASK_STATUS_* enumeration.
type Status uint32

const (
	StatusFree        Status = 0x00
	StatusRunning     Status = 0x01
	StatusWaiting     Status = 0x02
	StatusSleeping    Status = 0x03
	StatusWaitMessage Status = 0x04
	StatusDead        Status = 0xFF
)

func (s Status) String() string {
	switch s {
	case StatusFree:
		return "free"
	case StatusRunning:
		return "running"
	case StatusWaiting:
		return "waiting"
	case StatusSleeping:
		return "sleeping"
	case StatusWaitMessage:
		return "wait-message"
	case StatusDead:
		return "dead"
	default:
		return "unknown"
	}
}

// Priority is the ready-queue class a task round-robins within (spec
// §4.5's "Lowest/Low/Medium/High/Highest").
type Priority int

const (
	PriorityLowest Priority = iota
	PriorityLow
	PriorityMedium
	PriorityHigh
	PriorityHighest
	numPriorities
)

// Message is a posted inter-task message (Process.h's MESSAGE struct).
type Message struct {
	Msg            uint32
	Param1, Param2 uint32
	TimeMs         int64
}

// WaitPredicate identifies what a Waiting task is blocked on and, once
// satisfied, which one fired.
type WaitPredicate uint32

const (
	WaitNone WaitPredicate = iota
	WaitMutex
	WaitMessageArrived
	WaitTimeout
)

// WaitInfo describes a Wait() call's blocking condition.
type WaitInfo struct {
	Mutex     *kmutex.Mutex_t
	TimeoutMs int64 // -1 (kmutex.Infinite) for no timeout
	deadline  int64 // absolute SystemTime this wait expires, if TimeoutMs >= 0
	Result    WaitPredicate
}

// Context holds the software-switched register state (spec §4.5 step
// 4): general-purpose/segment registers and CR3, saved on every switch
// away from a task and restored on switch back. The FPU/x87 save area is
// a fixed-size scratch block (fxsave's 512-byte layout) rather than
// individually named fields, since nothing but save/restore touches it.
type Context struct {
	Eax, Ebx, Ecx, Edx uint32
	Esi, Edi, Ebp, Esp uint32
	Eip, Eflags        uint32
	Cs, Ss, Ds, Es     uint32
	Cr3                uint32
	Fxsave             [512]byte
}

// Task_t is one schedulable unit of execution within a process.
type Task_t struct {
	Hdr kobj.Header

	Process  *proc.Process_t
	Status   Status
	Priority Priority

	EntryVA      uint32
	Param        uint32
	ReturnValue  uint32
	StackBase    uint32
	StackSize    uint32
	SysStackBase uint32
	SysStackSize uint32

	Ctx Context

	WakeUpTimeMs int64
	quantumLeft  int

	Alive    bool
	Killed   bool
	Isdoomed bool

	MessageMutex *kmutex.Mutex_t
	messages     []Message

	wait *WaitInfo

	Accnt accnt.Accnt_t
}

// Doomed reports whether the task is marked for termination, mirroring
// tinfo.Tnote_t.Doomed.
func (t *Task_t) Doomed() bool {
	return t.Isdoomed
}

// defaultQuantumMs is the fixed per-tick time slice (spec §4.5: "~20ms").
const defaultQuantumMs = 20

// Err translates a scheduler-level failure into the kernel's error
// space.
func Err(ok bool) defs.Err_t {
	if ok {
		return defs.ENONE
	}
	return -defs.EGENERIC
}
