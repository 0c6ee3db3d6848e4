package syscall

import (
	"exos/internal/defs"
	"exos/internal/vm"
)

func init() {
	register(FuncConsolePeekKey, defs.PrivUser, consolePeekKeyCall)
	register(FuncConsoleGetKey, defs.PrivUser, consoleGetKeyCall)
	register(FuncConsoleGetModifiers, defs.PrivUser, consoleGetModifiersCall)
	register(FuncConsolePrint, defs.PrivUser, consolePrintCall)
	register(FuncConsoleGetString, defs.PrivUser, consoleGetStringCall)
	register(FuncConsoleGotoXY, defs.PrivUser, consoleGotoXYCall)
	register(FuncConsoleClear, defs.PrivUser, consoleClearCall)
	register(FuncConsoleBlitBuffer, defs.PrivUser, consoleBlitBufferCall)
}

// Console hooks, installed by internal/console's init() once the VGA
// text driver exists (spec §6: "80x25 VGA text buffer at 0xB8000, each
// cell { ascii, attribute }"). syscall cannot import console directly
// for the same reason it cannot import fs: the driver's own diagnostic
// output goes through these same calls.
var (
	ConsolePeekKeyHook      = func() (key uint8, ok bool) { return 0, false }
	ConsoleGetKeyHook       = func() uint8 { return 0 }
	ConsoleGetModifiersHook = func() uint32 { return 0 }
	ConsolePrintHook        = func(s string) {}
	ConsoleGetStringHook    = func(max int) string { return "" }
	ConsoleGotoXYHook       = func(x, y uint32) {}
	ConsoleClearHook        = func() {}
	// ConsoleBlitBufferHook copies an 80x25 cell buffer ({ascii,attr}
	// pairs, 4000 bytes) onto the screen in one shot.
	ConsoleBlitBufferHook = func(cells []byte) {}
)

func consolePeekKeyCall(param uint32) uint32 {
	key, ok := ConsolePeekKeyHook()
	if !ok {
		return errRet(-defs.ENOENT)
	}
	if !writeU32(param, uint32(key)) {
		return errRet(-defs.EFAULT)
	}
	return okRet(uint32(defs.ENONE))
}

func consoleGetKeyCall(_ uint32) uint32 {
	return okRet(uint32(ConsoleGetKeyHook()))
}

func consoleGetModifiersCall(_ uint32) uint32 {
	return okRet(ConsoleGetModifiersHook())
}

const maxPrintLen = 512

func consolePrintCall(param uint32) uint32 {
	s, ok := readCString(param, maxPrintLen)
	if !ok {
		return errRet(-defs.EFAULT)
	}
	ConsolePrintHook(s)
	return okRet(uint32(defs.ENONE))
}

// consoleGetStringArgsSize is {BufferPtr, MaxLen}.
const consoleGetStringArgsSize = 2 * 4

func consoleGetStringCall(param uint32) uint32 {
	if !checkPtr(param, consoleGetStringArgsSize) {
		return errRet(-defs.EFAULT)
	}
	bufPtr, _ := readU32(param)
	maxLen, _ := readU32(param + 4)
	s := ConsoleGetStringHook(int(maxLen))
	buf := make([]byte, maxLen)
	copy(buf, s)
	if !writeBytes(bufPtr, buf) {
		return errRet(-defs.EFAULT)
	}
	return okRet(uint32(len(s)))
}

// gotoXYArgsSize is {X, Y}.
const gotoXYArgsSize = 2 * 4

func consoleGotoXYCall(param uint32) uint32 {
	if !checkPtr(param, gotoXYArgsSize) {
		return errRet(-defs.EFAULT)
	}
	x, _ := readU32(param)
	y, _ := readU32(param + 4)
	ConsoleGotoXYHook(x, y)
	return okRet(uint32(defs.ENONE))
}

func consoleClearCall(_ uint32) uint32 {
	ConsoleClearHook()
	return okRet(uint32(defs.ENONE))
}

// blitBufferCellCount is 80*25 cells of 2 bytes each (ascii, attribute).
const blitBufferCellCount = 80 * 25 * 2

func consoleBlitBufferCall(param uint32) uint32 {
	if !checkPtr(param, blitBufferCellCount) {
		return errRet(-defs.EFAULT)
	}
	as := currentAS()
	if as == nil {
		return errRet(-defs.EUNEXPECTED)
	}
	buf := make([]byte, blitBufferCellCount)
	vm.ReadBytes(as, param, buf)
	ConsoleBlitBufferHook(buf)
	return okRet(uint32(defs.ENONE))
}
