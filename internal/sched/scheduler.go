package sched

import (
	"sync"
	"sync/atomic"

	"exos/internal/defs"
	"exos/internal/kmutex"
	"exos/internal/kobj"
	"exos/internal/limits"
	"exos/internal/proc"
	"exos/internal/stats"
)

// Stat holds the scheduler's optional instrumentation counters (package
// stats: a no-op unless stats.Stats/stats.Timing are built true).
var Stat struct {
	Nswitch      stats.Counter_t
	SwitchCycles stats.Cycles_t
}

// StatsString renders Stat via stats.Stats2String, "" when
// instrumentation is compiled out.
func StatsString() string { return stats.Stats2String(Stat) }

// Tasks is the global task table.
var Tasks = kobj.NewTable[Task_t]()

// SystemTime is the monotonically increasing millisecond clock the PIT
// (or equivalent) handler advances on every tick (spec §4.5's "time
// base").
var SystemTime int64

// readyQueue is the global, priority-classed ready list (spec §4.5's
// "global intrusive list of tasks, ordered by priority class"). Each
// class round-robins independently via a cursor into its slice.
type readyQueue struct {
	sync.Mutex
	classes [numPriorities][]kobj.Id
	cursor  [numPriorities]int
}

var ready readyQueue

func (q *readyQueue) add(id kobj.Id, pr Priority) {
	q.Lock()
	defer q.Unlock()
	q.classes[pr] = append(q.classes[pr], id)
}

func (q *readyQueue) remove(id kobj.Id, pr Priority) {
	q.Lock()
	defer q.Unlock()
	s := q.classes[pr]
	for i, v := range s {
		if v == id {
			q.classes[pr] = append(s[:i], s[i+1:]...)
			if q.cursor[pr] > i {
				q.cursor[pr]--
			}
			return
		}
	}
}

// currentID is the task id of whichever task is presently running.
// EXOS has no per-CPU "current" pointer to borrow from a host runtime,
// so the scheduler tracks it explicitly.
var currentID uint64

// CurrentTask returns the task currently running, or nil before the
// first schedule.
func CurrentTask() *Task_t {
	id := atomic.LoadUint64(&currentID)
	if id == 0 {
		return nil
	}
	return Tasks.Get(kobj.Id(id))
}

// CurrentTaskID returns the id of the task currently running, 0 if none.
func CurrentTaskID() uint64 {
	return atomic.LoadUint64(&currentID)
}

func init() {
	proc.CreateInitialTask = createInitialTask
	kmutex.Yield = Yield
}

func createInitialTask(p *proc.Process_t, args proc.InitialTaskArgs) defs.Err_t {
	id, err := CreateTask(p, args.EntryVA, args.StackBase, args.StackSize,
		args.SysStackBase, args.SysStackSize, PriorityMedium)
	if err != defs.ENONE {
		return err
	}
	_ = id
	return defs.ENONE
}

// CreateTask allocates a new task belonging to process p, ready to run
// at entryVA with the given user and system stacks (already committed
// by the caller, per spec §4.4 step 3/§4.5).
func CreateTask(p *proc.Process_t, entryVA, stackBase, stackSize, sysStackBase, sysStackSize uint32, pr Priority) (kobj.Id, defs.Err_t) {
	if !limits.Tasks.Taken() {
		return 0, -defs.ENOMEM
	}
	t := &Task_t{
		Hdr:          kobj.Header{Type: defs.ObjTask},
		Process:      p,
		Status:       StatusRunning,
		Priority:     pr,
		EntryVA:      entryVA,
		StackBase:    stackBase,
		StackSize:    stackSize,
		SysStackBase: sysStackBase,
		SysStackSize: sysStackSize,
		Alive:        true,
		quantumLeft:  defaultQuantumMs,
	}
	t.MessageMutex = kmutex.New("task-message", kmutex.OrderTask)
	t.Ctx.Esp = stackBase + stackSize
	t.Ctx.Eip = entryVA
	t.Hdr.Ref()

	depth := kmutex.Task.LockMutex(0, kmutex.Infinite)
	if depth == 0 {
		limits.Tasks.Given()
		return 0, -defs.ETIMEDOUT
	}
	id := Tasks.Insert(t)
	kmutex.Task.Unlock(0)
	t.Hdr.Id = id

	ready.add(id, pr)
	return id, defs.ENONE
}

// KillTask marks a task Dead and releases every mutex it holds (spec
// §5: "Killing a task while it holds mutexes releases them"). Its stack
// and task struct are reclaimed by the next Scheduler() pass, matching
// spec §4.5 step 2 ("walks dead tasks; frees their stacks and task
// struct").
func KillTask(id kobj.Id) defs.Err_t {
	t := Tasks.Get(id)
	if t == nil {
		return -defs.EINVAL
	}
	t.Killed = true
	t.Isdoomed = true
	t.Status = StatusDead
	t.Alive = false
	kmutex.ReleaseAllOwnedBy(uint64(id))
	return defs.ENONE
}

// reapDead frees the stacks and task struct of every task already
// marked Dead, per spec §4.5 step 2.
func reapDead() {
	var dead []kobj.Id
	Tasks.Apply(func(id kobj.Id, t *Task_t) {
		if t.Status == StatusDead {
			dead = append(dead, id)
		}
	})
	for _, id := range dead {
		t := Tasks.Get(id)
		if t == nil {
			continue
		}
		if t.Process != nil && t.Process.Vm != nil {
			t.Process.Vm.FreeRegion(t.StackBase, t.StackSize)
			t.Process.Vm.FreeRegion(t.SysStackBase, t.SysStackSize)
		}
		ready.remove(id, t.Priority)
		Tasks.Remove(id)
		limits.Tasks.Given()
	}
}

// wakeSleepers transitions every Sleeping task whose WakeUpTimeMs has
// arrived back to Running (spec §4.5 step 1), and every Waiting task
// whose wait predicate is now satisfied.
func wakeSleepers() {
	Tasks.Apply(func(id kobj.Id, t *Task_t) {
		switch t.Status {
		case StatusSleeping:
			if t.WakeUpTimeMs <= SystemTime {
				t.Status = StatusRunning
			}
		case StatusWaiting:
			if t.wait == nil {
				t.Status = StatusRunning
				return
			}
			if t.wait.Mutex != nil {
				if _, held := t.wait.Mutex.Owner(); !held {
					t.wait.Result = WaitMutex
					t.Status = StatusRunning
					t.wait = nil
					return
				}
			}
			if t.wait.TimeoutMs >= 0 && t.wait.deadline <= SystemTime {
				t.wait.Result = WaitTimeout
				t.Status = StatusRunning
				t.wait = nil
			}
		}
	})
}

// pickNext scans the ready classes from highest to lowest priority and
// returns the next Running task id via round-robin within the winning
// class, or 0 if nothing is runnable.
func pickNext() kobj.Id {
	ready.Lock()
	defer ready.Unlock()
	for pr := numPriorities - 1; pr >= 0; pr-- {
		s := ready.classes[pr]
		n := len(s)
		if n == 0 {
			continue
		}
		for i := 0; i < n; i++ {
			idx := (ready.cursor[pr] + i) % n
			id := s[idx]
			t := Tasks.Get(id)
			if t == nil {
				continue
			}
			if t.Status == StatusRunning {
				ready.cursor[pr] = (idx + 1) % n
				return id
			}
		}
	}
	return 0
}

// SwitchContext is the settable hook for the arch-specific software
// context switch (spec §4.5 step 4: segment/x87 save-restore, CR3
// reload, single-TSS ESP0/SS0 reload). The default is a no-op, matching
// vm.Invlpg/vm.LoadCR3's pattern; cmd/kernel's boot stub installs the
// real assembly-backed switch.
var SwitchContext = func(from, to *Task_t) {}

// Scheduler runs one pass of spec §4.5's scheduling algorithm: wake
// ready sleepers/waiters, reap dead tasks, pick the next task, and
// context-switch into it if it differs from the one currently running.
// Called from the timer ISR tail, from Sleep, from Wait, from LockMutex
// when it yields, and from Yield.
func Scheduler() {
	wakeSleepers()
	reapDead()

	next := pickNext()
	cur := atomic.LoadUint64(&currentID)
	if next == 0 || uint64(next) == cur {
		return
	}

	var from, to *Task_t
	if cur != 0 {
		from = Tasks.Get(kobj.Id(cur))
	}
	to = Tasks.Get(next)
	if to == nil {
		return
	}
	m := stats.Rdtsc()
	SwitchContext(from, to)
	Stat.SwitchCycles.Add(m)
	Stat.Nswitch.Inc()
	atomic.StoreUint64(&currentID, uint64(next))
}

// Yield voluntarily invokes the scheduler without changing the calling
// task's status, the entry point kmutex uses while spinning on a
// contended mutex.
func Yield() {
	Scheduler()
}

// Tick advances SystemTime by one millisecond, decrements the running
// task's quantum, and invokes the scheduler when it expires, or on every
// tick while the current task is not Running (spec §4.5's "time base"
// and round-robin-by-quantum rule). Called from the timer ISR tail.
func Tick() {
	SystemTime++
	if cur := CurrentTask(); cur != nil && cur.Status == StatusRunning {
		cur.quantumLeft--
		if cur.quantumLeft > 0 {
			return
		}
		cur.quantumLeft = defaultQuantumMs
	}
	Scheduler()
}

// Sleep implements spec §4.5's Sleep(ms): mark the current task
// Sleeping with a wake time, then invoke the scheduler.
func Sleep(ms int64) {
	t := CurrentTask()
	if t == nil {
		return
	}
	t.Status = StatusSleeping
	t.WakeUpTimeMs = SystemTime + ms
	Scheduler()
}

// Wait implements spec §4.5's Wait(WaitInfo): mark the current task
// Waiting on the given predicate, invoke the scheduler, and return the
// predicate that eventually woke it.
func Wait(w WaitInfo) WaitPredicate {
	t := CurrentTask()
	if t == nil {
		return WaitNone
	}
	if w.TimeoutMs >= 0 {
		w.deadline = SystemTime + w.TimeoutMs
	}
	t.wait = &w
	t.Status = StatusWaiting
	Scheduler()
	return w.Result
}

// PostMessage enqueues msg onto the target task's message list under
// its MessageMutex, waking it if it is in WaitMessage (spec §4.5).
func PostMessage(target kobj.Id, msg Message) defs.Err_t {
	t := Tasks.Get(target)
	if t == nil {
		return -defs.EINVAL
	}
	depth := t.MessageMutex.LockMutex(CurrentTaskID(), kmutex.Infinite)
	if depth == 0 {
		return -defs.ETIMEDOUT
	}
	t.messages = append(t.messages, msg)
	t.MessageMutex.Unlock(CurrentTaskID())
	if t.Status == StatusWaitMessage {
		t.Status = StatusRunning
	}
	return defs.ENONE
}

// PeekMessage reports whether task id has a queued message without
// removing it.
func PeekMessage(id kobj.Id) (Message, bool) {
	t := Tasks.Get(id)
	if t == nil || len(t.messages) == 0 {
		return Message{}, false
	}
	depth := t.MessageMutex.LockMutex(CurrentTaskID(), kmutex.Infinite)
	if depth == 0 {
		return Message{}, false
	}
	defer t.MessageMutex.Unlock(CurrentTaskID())
	if len(t.messages) == 0 {
		return Message{}, false
	}
	return t.messages[0], true
}

// GetMessage removes and returns the next queued message for task id,
// blocking via WaitMessage until one arrives if none is queued.
func GetMessage(id kobj.Id) Message {
	t := Tasks.Get(id)
	if t == nil {
		return Message{}
	}
	for {
		depth := t.MessageMutex.LockMutex(CurrentTaskID(), kmutex.Infinite)
		if depth != 0 && len(t.messages) > 0 {
			m := t.messages[0]
			t.messages = t.messages[1:]
			t.MessageMutex.Unlock(CurrentTaskID())
			return m
		}
		if depth != 0 {
			t.MessageMutex.Unlock(CurrentTaskID())
		}
		t.Status = StatusWaitMessage
		Scheduler()
	}
}

// GrowCurrentStack implements spec §4.5's stack auto-grow: extend the
// current task's user stack downward by at least one page plus extra
// via ResizeRegion. Returns false if growth fails, in which case the
// caller terminates the task with a fault.
func GrowCurrentStack(extra uint32) bool {
	t := CurrentTask()
	if t == nil || t.Process == nil || t.Process.Vm == nil {
		return false
	}
	const minGrow = 4096
	grow := minGrow + extra
	newBase, ok := t.Process.Vm.GrowDown(t.StackBase, t.StackSize, grow)
	if !ok {
		return false
	}
	t.StackSize += grow
	t.StackBase = newBase
	return true
}
