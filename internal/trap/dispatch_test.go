package trap

import "testing"

func TestBuildIDTGateTypesAndDPL(t *testing.T) {
	StubAddr[VecDivideError] = 0x1000
	StubAddr[IRQBase] = 0x2000
	StubAddr[VecSyscall] = 0x3000
	idt := BuildIDT()

	if idt[VecDivideError].TypeAttr&0x1F != uint8(GateInterrupt) {
		t.Errorf("exception gate type = %#x, want interrupt gate", idt[VecDivideError].TypeAttr&0x1F)
	}
	dpl := (idt[VecDivideError].TypeAttr >> 5) & 0x3
	if dpl != 0 {
		t.Errorf("exception gate DPL = %d, want 0", dpl)
	}

	if idt[VecSyscall].TypeAttr&0x1F != uint8(GateTrap) {
		t.Errorf("syscall gate type = %#x, want trap gate", idt[VecSyscall].TypeAttr&0x1F)
	}
	sdpl := (idt[VecSyscall].TypeAttr >> 5) & 0x3
	if sdpl != 3 {
		t.Errorf("syscall gate DPL = %d, want 3", sdpl)
	}

	if idt[VecDivideError].OffsetLow != uint16(0x1000) {
		t.Errorf("OffsetLow = %#x, want 0x1000", idt[VecDivideError].OffsetLow)
	}
}

func TestBuildIDTLeavesUnusedVectorsNotPresent(t *testing.T) {
	idt := BuildIDT()
	const unused = 200
	if idt[unused].TypeAttr&0x80 != 0 {
		t.Errorf("unused vector %d should not be marked present", unused)
	}
}

func TestEoiAcksSlaveForHighIRQ(t *testing.T) {
	var ports []uint16
	OutB = func(port uint16, val uint8) { ports = append(ports, port) }
	defer func() { OutB = func(port uint16, val uint8) {} }()

	Eoi(10) // >= 8: slave IRQ
	if len(ports) != 2 || ports[0] != picSlaveCmd || ports[1] != picMasterCmd {
		t.Fatalf("Eoi(10) wrote ports %v, want [slave, master]", ports)
	}

	ports = nil
	Eoi(2) // < 8: master only
	if len(ports) != 1 || ports[0] != picMasterCmd {
		t.Fatalf("Eoi(2) wrote ports %v, want [master]", ports)
	}
}

func TestRegisterIRQHandlerInvoked(t *testing.T) {
	var called int
	RegisterIRQHandler(5, func(irq int) { called++ })
	runIRQHandlers(5)
	if called != 1 {
		t.Fatalf("handler invoked %d times, want 1", called)
	}
}

func TestDispatchSyscallVector(t *testing.T) {
	var got uint32
	SyscallDispatch = func(f *InterruptFrame) { got = f.Vector }
	defer func() { SyscallDispatch = func(f *InterruptFrame) {} }()

	Dispatch(&InterruptFrame{Vector: VecSyscall})
	if got != VecSyscall {
		t.Fatalf("SyscallDispatch was not invoked with vector %#x", VecSyscall)
	}
}

func TestFromUser(t *testing.T) {
	kernel := &InterruptFrame{Cs: 0x08}
	user := &InterruptFrame{Cs: 0x1B}
	if kernel.FromUser() {
		t.Errorf("CS=0x08 should not report FromUser")
	}
	if !user.FromUser() {
		t.Errorf("CS=0x1B should report FromUser")
	}
}

func TestDisassembleFaultUnavailableByDefault(t *testing.T) {
	_, ok := DisassembleFault(&InterruptFrame{Eip: 0x400000})
	if ok {
		t.Fatalf("DisassembleFault should report unavailable when ReadCodeAt returns nothing")
	}
}

func TestDisassembleFaultDecodesProvidedCode(t *testing.T) {
	ReadCodeAt = func(va uint32, n int) []byte { return []byte{0x90} } // NOP
	defer func() { ReadCodeAt = func(va uint32, n int) []byte { return nil } }()

	s, ok := DisassembleFault(&InterruptFrame{Eip: 0x400000})
	if !ok || s == "" {
		t.Fatalf("DisassembleFault(nop) = (%q, %v), want a decoded instruction", s, ok)
	}
}
