package syscall

import (
	"exos/internal/defs"
	"exos/internal/kobj"
	"exos/internal/sched"
	"exos/internal/vm"
)

func init() {
	register(FuncCreateTask, defs.PrivUser, createTaskCall)
	register(FuncKillTask, defs.PrivUser, killTaskCall)
	register(FuncExit, defs.PrivUser, exitCall)
	register(FuncSuspendTask, defs.PrivUser, suspendTaskCall)
	register(FuncResumeTask, defs.PrivUser, resumeTaskCall)
	register(FuncSleep, defs.PrivUser, sleepCall)
	register(FuncWait, defs.PrivUser, waitCall)
	register(FuncGetCurrentTask, defs.PrivUser, getCurrentTaskCall)
}

// createTaskArgsSize is {EntryVA, Param, StackSize, Priority} as four
// U32s: CreateTask spawns an additional thread of execution within the
// calling task's own process, reusing its address space (spec §4.5's
// multi-tasking-per-process model).
const createTaskArgsSize = 4 * 4

func createTaskCall(param uint32) uint32 {
	if !checkPtr(param, createTaskArgsSize) {
		return errRet(-defs.EFAULT)
	}
	entryVA, _ := readU32(param)
	taskParam, _ := readU32(param + 4)
	stackSize, _ := readU32(param + 8)
	priority, _ := readU32(param + 12)

	cur := sched.CurrentTask()
	if cur == nil || cur.Process == nil || cur.Process.Vm == nil {
		return errRet(-defs.EUNEXPECTED)
	}
	if stackSize == 0 {
		stackSize = 16 << 10
	}
	stackBase := cur.Process.Vm.AllocRegion(0, 0, stackSize, vm.Commit|vm.ReadWrite|vm.AtOrOver)
	if stackBase == 0 {
		return errRet(-defs.ENOMEM)
	}
	sysStackBase := cur.Process.Vm.AllocRegion(0, 0, 4096, vm.Commit|vm.ReadWrite)
	if sysStackBase == 0 {
		cur.Process.Vm.FreeRegion(stackBase, stackSize)
		return errRet(-defs.ENOMEM)
	}
	pr := sched.Priority(priority)
	if pr < sched.PriorityLowest || pr > sched.PriorityHighest {
		pr = sched.PriorityMedium
	}
	id, err := sched.CreateTask(cur.Process, entryVA, stackBase, stackSize, sysStackBase, 4096, pr)
	if err != defs.ENONE {
		return errRet(err)
	}
	if t := sched.Tasks.Get(id); t != nil {
		t.Param = taskParam
	}
	return okRet(uint32(id))
}

func killTaskCall(param uint32) uint32 {
	return errRet(sched.KillTask(kobj.Id(param)))
}

func exitCall(param uint32) uint32 {
	id := kobj.Id(sched.CurrentTaskID())
	if t := sched.Tasks.Get(id); t != nil {
		t.ReturnValue = param
	}
	err := sched.KillTask(id)
	sched.Scheduler()
	return errRet(err)
}

func suspendTaskCall(param uint32) uint32 {
	t := sched.Tasks.Get(kobj.Id(param))
	if t == nil {
		return errRet(-defs.EINVAL)
	}
	t.Status = sched.StatusWaiting
	return okRet(uint32(defs.ENONE))
}

func resumeTaskCall(param uint32) uint32 {
	t := sched.Tasks.Get(kobj.Id(param))
	if t == nil {
		return errRet(-defs.EINVAL)
	}
	t.Status = sched.StatusRunning
	return okRet(uint32(defs.ENONE))
}

func sleepCall(param uint32) uint32 {
	sched.Sleep(int64(param))
	return okRet(uint32(defs.ENONE))
}

// waitArgsSize is {MutexId, TimeoutMs} as two U32s. A zero MutexId, or
// one naming no mutex, waits on no mutex: only the timeout ends the wait
// (never, for a timeout of -1), and the message queue is not watched.
const waitArgsSize = 2 * 4

func waitCall(param uint32) uint32 {
	if !checkPtr(param, waitArgsSize) {
		return errRet(-defs.EFAULT)
	}
	mutexID, _ := readU32(param)
	timeoutMs, _ := readU32(param + 4)

	info := sched.WaitInfo{TimeoutMs: int64(int32(timeoutMs))}
	if mutexID != 0 {
		if m := lookupMutex(kobj.Id(mutexID)); m != nil {
			info.Mutex = m
		}
	}
	return okRet(uint32(sched.Wait(info)))
}

func getCurrentTaskCall(_ uint32) uint32 {
	return uint32(sched.CurrentTaskID())
}
