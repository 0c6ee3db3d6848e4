package trap

import (
	"sync"

	"exos/internal/klog"
	"exos/internal/kobj"
	"exos/internal/sched"
)

// OutB and InB are the settable port-I/O hooks PIC EOI and driver
// dispatch go through; the default is a no-op/zero, matching
// vm.Invlpg/vm.LoadCR3's pattern since raw IN/OUT needs inline assembly
// cmd/kernel's boot stub supplies.
var (
	OutB = func(port uint16, val uint8) {}
	InB  = func(port uint16) uint8 { return 0 }
)

const (
	picMasterCmd = 0x20
	picSlaveCmd  = 0xA0
	picEOI       = 0x20
)

// Eoi acknowledges end-of-interrupt on the master PIC, and the slave
// too when irq came from the slave's range (spec §4.7: "ack PIC EOI
// (master and slave as appropriate)").
func Eoi(irq int) {
	if irq >= 8 {
		OutB(picSlaveCmd, picEOI)
	}
	OutB(picMasterCmd, picEOI)
}

// irqHandlers is the registered handler list per IRQ line.
var (
	irqMu       sync.Mutex
	irqHandlers = map[int][]func(irq int){}
)

// RegisterIRQHandler adds fn to the list invoked when irq fires.
func RegisterIRQHandler(irq int, fn func(irq int)) {
	irqMu.Lock()
	defer irqMu.Unlock()
	irqHandlers[irq] = append(irqHandlers[irq], fn)
}

func runIRQHandlers(irq int) {
	irqMu.Lock()
	handlers := append([]func(irq int){}, irqHandlers[irq]...)
	irqMu.Unlock()
	for _, fn := range handlers {
		fn(irq)
	}
}

// SyscallDispatch and DriverDispatch are settable hooks installed by
// internal/syscall's init(): trap cannot import syscall directly since
// syscall needs trap.InterruptFrame's definition, so the dependency
// runs in the opposite direction, the same shape as
// proc.CreateInitialTask/sched's wiring of it.
var (
	SyscallDispatch = func(f *InterruptFrame) {}
	DriverDispatch  = func(f *InterruptFrame) {}
)

// timerIRQ is the IRQ line the PIT is wired to.
const timerIRQ = 0

// Dispatch implements spec §4.7's vector-indexed dispatch: exceptions
// log and, for page faults, attempt stack auto-grow before terminating
// the task; IRQs ack EOI, run registered handlers, and tick the
// scheduler on the timer line; 0x80/0x81 hand off to the syscall/driver
// tables.
func Dispatch(f *InterruptFrame) {
	switch {
	case f.Vector <= 31:
		dispatchException(f)
	case f.Vector >= IRQBase && f.Vector <= IRQLast:
		irq := int(f.Vector - IRQBase)
		Eoi(irq)
		runIRQHandlers(irq)
		if irq == timerIRQ {
			sched.Tick()
		}
	case f.Vector == VecSyscall:
		SyscallDispatch(f)
	case f.Vector == VecDriver:
		DriverDispatch(f)
	default:
		klog.Printf("trap: spurious vector %#x\n", f.Vector)
	}
}

func dispatchException(f *InterruptFrame) {
	if f.Vector == VecPageFault && f.FromUser() {
		if sched.GrowCurrentStack(0) {
			return
		}
	}
	logFrame(f)
	if id := kobj.Id(sched.CurrentTaskID()); id != 0 {
		sched.KillTask(id)
		sched.Scheduler()
	}
}

func logFrame(f *InterruptFrame) {
	klog.Printf("trap: vector=%#x err=%#x eip=%#x cs=%#x eflags=%#x\n",
		f.Vector, f.ErrorCode, f.Eip, f.Cs, f.Eflags)
	if f.Vector == VecPageFault {
		klog.Printf("trap: cr2=%#x\n", f.Cr2)
	}
	if dis, ok := DisassembleFault(f); ok {
		klog.Printf("trap: faulting instruction: %s\n", dis)
	}
}
