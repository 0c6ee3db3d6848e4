package trap

// GateType distinguishes an interrupt gate (clears IF on entry) from a
// trap gate (leaves IF alone), per spec §4.7: "Vectors 0-31 use
// interrupt gates with DPL=0; 0x80/0x81 use trap gates with DPL=3."
type GateType uint8

const (
	GateInterrupt GateType = 0xE
	GateTrap      GateType = 0xF
)

// IDTEntry is one 8-byte i386 interrupt-descriptor-table gate: a 32-bit
// stub offset split across two 16-bit halves, a code-segment selector,
// and a type/DPL/present byte.
type IDTEntry struct {
	OffsetLow  uint16
	Selector   uint16
	Zero       uint8
	TypeAttr   uint8
	OffsetHigh uint16
}

// kernelCS is the flat-model kernel code selector every gate points
// into; cmd/kernel's GDT setup defines the same value.
const kernelCS uint16 = 0x08

func makeEntry(stubAddr uint32, gate GateType, dpl uint8) IDTEntry {
	present := uint8(1) << 7
	typeAttr := present | (dpl&0x3)<<5 | uint8(gate)
	return IDTEntry{
		OffsetLow:  uint16(stubAddr),
		Selector:   kernelCS,
		Zero:       0,
		TypeAttr:   typeAttr,
		OffsetHigh: uint16(stubAddr >> 16),
	}
}

// StubAddr holds, per vector, the linear address of that vector's
// assembly entry stub. cmd/kernel's boot code fills this in once the
// stubs are assembled and linked; until it does, BuildIDT's present
// gates all carry a zero handler offset, matching the settable-hook pattern used
// throughout this tree (stats.Rdtsc, vm.Invlpg, sched.SwitchContext).
var StubAddr [256]uint32

// BuildIDT constructs the fixed 256-entry IDT spec §4.7 describes:
// interrupt gates at DPL 0 for vectors 0-31 and the IRQ range 32-47,
// trap gates at DPL 3 for the syscall and driver-call gates, and
// present=false everywhere else.
func BuildIDT() [256]IDTEntry {
	var idt [256]IDTEntry
	for v := 0; v <= 31; v++ {
		idt[v] = makeEntry(StubAddr[v], GateInterrupt, 0)
	}
	for v := IRQBase; v <= IRQLast; v++ {
		idt[v] = makeEntry(StubAddr[v], GateInterrupt, 0)
	}
	idt[VecSyscall] = makeEntry(StubAddr[VecSyscall], GateTrap, 3)
	idt[VecDriver] = makeEntry(StubAddr[VecDriver], GateTrap, 3)
	return idt
}
