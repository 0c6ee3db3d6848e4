// Package console implements the VGA text console and PS/2 keyboard
// interfaces spec §4.9 exposes to userland (PeekKey, GetKey,
// GetModifiers, Print, GetString, GotoXY, Clear, BlitBuffer). The
// specific hardware access — poking 0xB8000, programming the 8042
// controller — is left to an external driver that plugs into RenderHook
// and PushScancode; this package owns the logical screen/keyboard state
// and the CP437 text model spec §6 describes ("80x25 VGA text buffer at
// 0xB8000... each cell is { ascii, attribute }").
package console

import (
	"exos/internal/klog"
	"exos/internal/kmutex"
	"exos/internal/sched"
	"exos/internal/syscall"
	"exos/internal/trap"

	"golang.org/x/text/encoding/charmap"
)

// keyboardIRQ is the legacy PS/2 keyboard's wire on the master PIC.
const keyboardIRQ = 1

const (
	Cols = 80
	Rows = 25

	defaultAttr = 0x07 // light grey on black
)

// cp437 translates the diagnostic output's UTF-8 runes into the code
// page the VGA text buffer expects; klog and Print both funnel through
// it so box-drawing and accented glyphs in kernel messages survive.
var cp437 = charmap.CodePage437.NewEncoder()

func init() {
	Clear()

	syscall.ConsolePeekKeyHook = PeekKey
	syscall.ConsoleGetKeyHook = GetKey
	syscall.ConsoleGetModifiersHook = GetModifiers
	syscall.ConsolePrintHook = Print
	syscall.ConsoleGetStringHook = GetString
	syscall.ConsoleGotoXYHook = GotoXY
	syscall.ConsoleClearHook = Clear
	syscall.ConsoleBlitBufferHook = BlitBuffer

	trap.RegisterIRQHandler(keyboardIRQ, func(int) {
		PushScancode(trap.InB(kbdDataPort))
	})

	klog.SetOutput(Writer{})
}

// kbdDataPort is the 8042 controller's data register.
const kbdDataPort = 0x60

// RenderHook is called with the full 4000-byte {ascii,attr} cell buffer
// whenever it changes. The default is a no-op; a real VGA driver (or a
// test) sets this to observe or paint the screen.
var RenderHook = func(cells []byte) {}

var (
	cells   [Cols * Rows * 2]byte
	cursorX int
	cursorY int
	attr    byte = defaultAttr
)

func lock()   { kmutex.Console.LockMutex(sched.CurrentTaskID(), kmutex.Infinite) }
func unlock() { kmutex.Console.Unlock(sched.CurrentTaskID()) }

func render() {
	buf := make([]byte, len(cells))
	copy(buf, cells[:])
	RenderHook(buf)
}

func putCell(x, y int, ch byte) {
	off := (y*Cols + x) * 2
	cells[off] = ch
	cells[off+1] = attr
}

func scroll() {
	copy(cells[:], cells[2*Cols:])
	for x := 0; x < Cols; x++ {
		putCell(x, Rows-1, ' ')
	}
}

func newline() {
	cursorX = 0
	cursorY++
	if cursorY >= Rows {
		scroll()
		cursorY = Rows - 1
	}
}

func encodeByte(r rune) byte {
	if r < 0x80 {
		return byte(r)
	}
	b, err := cp437.Bytes([]byte(string(r)))
	if err != nil || len(b) == 0 {
		return '?'
	}
	return b[0]
}

// Print writes s to the console at the current cursor position,
// interpreting \n, \r and \t and wrapping/scrolling as needed.
func Print(s string) {
	lock()
	defer unlock()
	for _, r := range s {
		switch r {
		case '\n':
			newline()
			continue
		case '\r':
			cursorX = 0
			continue
		case '\t':
			cursorX = (cursorX/8 + 1) * 8
			if cursorX >= Cols {
				newline()
			}
			continue
		}
		putCell(cursorX, cursorY, encodeByte(r))
		cursorX++
		if cursorX >= Cols {
			newline()
		}
	}
	render()
}

// GotoXY moves the cursor (spec §4.9's "CSI-lite cursor positioning via
// direct row/column"). A coordinate outside the visible grid is ignored:
// that axis keeps its current value.
func GotoXY(x, y uint32) {
	lock()
	defer unlock()
	if int(x) < Cols {
		cursorX = int(x)
	}
	if int(y) < Rows {
		cursorY = int(y)
	}
}

// Clear blanks the screen and homes the cursor.
func Clear() {
	lock()
	defer unlock()
	for i := range cells {
		cells[i] = 0
	}
	for y := 0; y < Rows; y++ {
		for x := 0; x < Cols; x++ {
			putCell(x, y, ' ')
		}
	}
	cursorX, cursorY = 0, 0
	render()
}

// BlitBuffer overwrites the entire cell grid in one shot (spec §4.9),
// used by fullscreen applications that maintain their own frame buffer.
func BlitBuffer(in []byte) {
	lock()
	defer unlock()
	n := copy(cells[:], in)
	for i := n; i < len(cells); i++ {
		cells[i] = 0
	}
	render()
}

// Snapshot returns a copy of the current cell buffer, for tests and
// diagnostics that want to inspect rendered state without a RenderHook.
func Snapshot() []byte {
	lock()
	defer unlock()
	out := make([]byte, len(cells))
	copy(out, cells[:])
	return out
}

// Writer adapts the console to io.Writer so klog can redirect kernel
// diagnostics onto it once boot brings the screen up.
type Writer struct{}

func (Writer) Write(p []byte) (int, error) {
	Print(string(p))
	return len(p), nil
}

// GetString reads up to max bytes of keyboard input, echoing each
// character and stopping at Enter (matching the blocking line-editor
// shape spec §4.9's shell expects from GetString).
func GetString(max int) string {
	var out []byte
	for len(out) < max {
		k := GetKey()
		if k == '\r' || k == '\n' {
			break
		}
		if k == 0x08 { // backspace
			if len(out) > 0 {
				out = out[:len(out)-1]
				Print("\b \b")
			}
			continue
		}
		out = append(out, k)
		Print(string(rune(k)))
	}
	return string(out)
}
