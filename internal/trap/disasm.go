package trap

import "golang.org/x/arch/x86/x86asm"

// ReadCodeAt fetches up to n bytes of the current task's code starting
// at a linear address, for disassembling the faulting instruction.
// Nothing in this tree assigns it outside tests; the default returns
// nothing, so disassembly degrades to "unavailable" rather than
// panicking.
var ReadCodeAt = func(va uint32, n int) []byte { return nil }

const maxInstrLen = 15

// DisassembleFault decodes the instruction at f.Eip using the x86
// disassembler, for inclusion in the fault log (spec §4.7's "log
// frame"). Returns false if the code bytes are unavailable or do not
// decode to a valid instruction.
func DisassembleFault(f *InterruptFrame) (string, bool) {
	code := ReadCodeAt(f.Eip, maxInstrLen)
	if len(code) == 0 {
		return "", false
	}
	inst, err := x86asm.Decode(code, 32)
	if err != nil {
		return "", false
	}
	return x86asm.GNUSyntax(inst, uint64(f.Eip), nil), true
}
