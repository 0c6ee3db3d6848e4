package syscall

import (
	"exos/internal/defs"
	"exos/internal/kobj"
	"exos/internal/sched"
)

func init() {
	register(FuncPostMessage, defs.PrivUser, postMessageCall)
	register(FuncSendMessage, defs.PrivUser, sendMessageCall)
	register(FuncPeekMessage, defs.PrivUser, peekMessageCall)
	register(FuncGetMessage, defs.PrivUser, getMessageCall)
	register(FuncDispatchMessage, defs.PrivUser, dispatchMessageCall)
}

// messageArgsSize is {TargetTaskId, Msg, Param1, Param2} as four U32s,
// the layout Post/SendMessage both read their single pointer parameter
// from (spec §4.8's Messaging group).
const messageArgsSize = 4 * 4

func readMessageArgs(param uint32) (kobj.Id, sched.Message, bool) {
	if !checkPtr(param, messageArgsSize) {
		return 0, sched.Message{}, false
	}
	target, _ := readU32(param)
	msg, _ := readU32(param + 4)
	p1, _ := readU32(param + 8)
	p2, _ := readU32(param + 12)
	return kobj.Id(target), sched.Message{Msg: msg, Param1: p1, Param2: p2, TimeMs: sched.SystemTime}, true
}

func postMessageCall(param uint32) uint32 {
	target, msg, ok := readMessageArgs(param)
	if !ok {
		return errRet(-defs.EFAULT)
	}
	return errRet(sched.PostMessage(target, msg))
}

// sendMessageCall posts the message, then blocks the caller on the
// target's message queue the way a synchronous IPC call would, since
// EXOS's SendMessage is spec'd as Post's blocking counterpart rather
// than a distinct wire format.
func sendMessageCall(param uint32) uint32 {
	target, msg, ok := readMessageArgs(param)
	if !ok {
		return errRet(-defs.EFAULT)
	}
	if err := sched.PostMessage(target, msg); err != defs.ENONE {
		return errRet(err)
	}
	sched.Wait(sched.WaitInfo{TimeoutMs: -1})
	return okRet(uint32(defs.ENONE))
}

// peekGetResultSize is {Msg, Param1, Param2, TimeMsLow, TimeMsHigh}.
const peekGetResultSize = 5 * 4

func writeMessage(out uint32, m sched.Message) bool {
	fields := []uint32{m.Msg, m.Param1, m.Param2, uint32(m.TimeMs), uint32(m.TimeMs >> 32)}
	for i, v := range fields {
		if !writeU32(out+uint32(i*4), v) {
			return false
		}
	}
	return true
}

func peekMessageCall(param uint32) uint32 {
	if !checkPtr(param, peekGetResultSize) {
		return errRet(-defs.EFAULT)
	}
	m, has := sched.PeekMessage(kobj.Id(sched.CurrentTaskID()))
	if !has {
		return errRet(-defs.ENOENT)
	}
	writeMessage(param, m)
	return okRet(uint32(defs.ENONE))
}

func getMessageCall(param uint32) uint32 {
	if !checkPtr(param, peekGetResultSize) {
		return errRet(-defs.EFAULT)
	}
	m := sched.GetMessage(kobj.Id(sched.CurrentTaskID()))
	writeMessage(param, m)
	return okRet(uint32(defs.ENONE))
}

// dispatchHandlers lets a task register its own in-process message
// handler table (the CLI shell's window-proc-like dispatch loop); for a
// task with no registered handler DispatchMessage is a no-op that leaves
// the message queued, matching original_source's DefWindowFunc fallback.
var dispatchHandlers = map[uint64]func(sched.Message){}

// RegisterDispatchHandler installs fn as taskID's DispatchMessage
// target.
func RegisterDispatchHandler(taskID uint64, fn func(sched.Message)) {
	dispatchHandlers[taskID] = fn
}

func dispatchMessageCall(param uint32) uint32 {
	m, has := sched.PeekMessage(kobj.Id(sched.CurrentTaskID()))
	if !has {
		return okRet(uint32(defs.ENONE))
	}
	if fn, ok := dispatchHandlers[sched.CurrentTaskID()]; ok {
		sched.GetMessage(kobj.Id(sched.CurrentTaskID()))
		fn(m)
	}
	return okRet(uint32(defs.ENONE))
}
