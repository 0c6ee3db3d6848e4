// Package trap implements the IDT, the per-vector stub-to-dispatcher
// handoff, and the exception/IRQ/syscall/driver-call dispatch of spec
// §4.7. Grounded on the trap-stub/dispatch shape in
// other_examples/f848b9fe_justanotherdot-biscuit__biscuit-src-kernel-main.go.go
// (trapstub's vector switch, tfdump's register dump), adapted from
// amd64's register set to i386's and from biscuit's IRQ-wakes-a-goroutine
// model (runtime.IRQwake) to a directly invoked handler list, since EXOS
// has no forked-runtime IRQ-wait primitive to borrow.
package trap

// Vector numbers (spec §4.7): 0-31 CPU exceptions, 32-47 PIC-remapped
// IRQs, 0x80 the syscall gate, 0x81 the driver-call gate.
const (
	VecDivideError   = 0
	VecDebug         = 1
	VecNMI           = 2
	VecBreakpoint    = 3
	VecOverflow      = 4
	VecBoundRange    = 5
	VecInvalidOpcode = 6
	VecDeviceNA      = 7
	VecDoubleFault   = 8
	VecInvalidTSS    = 10
	VecSegmentNP     = 11
	VecStackFault    = 12
	VecGPFault       = 13
	VecPageFault     = 14
	VecFPError       = 16
	VecAlignCheck    = 17
	VecMachineCheck  = 18
	VecSIMDFP        = 19

	IRQBase = 32
	IRQLast = 47

	VecSyscall = 0x80
	VecDriver  = 0x81
)

// InterruptFrame is the register snapshot built by the common assembly
// stub before calling the dispatcher (spec §4.7 step 2; spec §3's
// InterruptFrame type): general-purpose and segment registers, the
// vector number, an optional CPU error code (0 when the vector doesn't
// push one), and the CPU-pushed return frame (EIP/CS/EFLAGS, plus
// ESP/SS only present on a ring transition).
type InterruptFrame struct {
	Eax, Ebx, Ecx, Edx uint32
	Esi, Edi, Ebp      uint32
	Ds, Es, Fs, Gs     uint32

	Vector    uint32
	ErrorCode uint32

	Eip, Cs, Eflags uint32
	Esp, Ss         uint32 // valid only when the trap crossed rings

	// Cr2 holds the faulting linear address for VecPageFault; zero
	// otherwise.
	Cr2 uint32
}

// FromUser reports whether the frame was taken while running user code
// (CS's RPL bits are 3), determining whether Esp/Ss are meaningful.
func (f *InterruptFrame) FromUser() bool {
	return f.Cs&0x3 == 0x3
}
