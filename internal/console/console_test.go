package console

import (
	"strings"
	"testing"
)

func cellChar(buf []byte, x, y int) byte {
	return buf[(y*Cols+x)*2]
}

func TestPrintWritesCellsAndAdvancesCursor(t *testing.T) {
	Clear()
	Print("hi")
	buf := Snapshot()
	if cellChar(buf, 0, 0) != 'h' || cellChar(buf, 1, 0) != 'i' {
		t.Fatalf("cells = %q%q, want h i", cellChar(buf, 0, 0), cellChar(buf, 1, 0))
	}
	if cursorX != 2 || cursorY != 0 {
		t.Fatalf("cursor = (%d,%d), want (2,0)", cursorX, cursorY)
	}
}

func TestPrintNewlineAdvancesRow(t *testing.T) {
	Clear()
	Print("a\nb")
	if cursorX != 1 || cursorY != 1 {
		t.Fatalf("cursor = (%d,%d), want (1,1)", cursorX, cursorY)
	}
	buf := Snapshot()
	if cellChar(buf, 0, 1) != 'b' {
		t.Fatalf("row 1 col 0 = %q, want b", cellChar(buf, 0, 1))
	}
}

func TestPrintWrapsAtLastColumn(t *testing.T) {
	Clear()
	Print(strings.Repeat("x", Cols+1))
	if cursorY != 1 || cursorX != 1 {
		t.Fatalf("cursor = (%d,%d), want (1,1) after wrap", cursorX, cursorY)
	}
}

func TestPrintScrollsWhenPastLastRow(t *testing.T) {
	Clear()
	for i := 0; i < Rows; i++ {
		Print("line\n")
	}
	Print("bottom")
	buf := Snapshot()
	if cellChar(buf, 0, Rows-1) != 'b' {
		t.Fatalf("bottom row col 0 = %q, want b after scroll", cellChar(buf, 0, Rows-1))
	}
}

func TestGotoXYIgnoresOutOfRange(t *testing.T) {
	Clear()
	GotoXY(5, 5)
	if cursorX != 5 || cursorY != 5 {
		t.Fatalf("cursor = (%d,%d), want (5,5)", cursorX, cursorY)
	}
	GotoXY(Cols+10, Rows+10)
	if cursorX != 5 || cursorY != 5 {
		t.Fatalf("cursor = (%d,%d), want unchanged (5,5) on out-of-range GotoXY", cursorX, cursorY)
	}
}

func TestClearResetsCursorAndCells(t *testing.T) {
	Print("junk")
	Clear()
	if cursorX != 0 || cursorY != 0 {
		t.Fatalf("cursor = (%d,%d), want (0,0) after Clear", cursorX, cursorY)
	}
	buf := Snapshot()
	if cellChar(buf, 0, 0) != ' ' {
		t.Fatalf("cell(0,0) = %q, want space after Clear", cellChar(buf, 0, 0))
	}
}

func TestBlitBufferOverwritesWholeGrid(t *testing.T) {
	Clear()
	in := make([]byte, Cols*Rows*2)
	in[0] = 'Z'
	in[1] = 0x1F
	BlitBuffer(in)
	buf := Snapshot()
	if cellChar(buf, 0, 0) != 'Z' {
		t.Fatalf("cell(0,0) = %q, want Z", cellChar(buf, 0, 0))
	}
}

func TestBlitBufferPadsShortInput(t *testing.T) {
	Clear()
	BlitBuffer([]byte{'Q', 0x07})
	buf := Snapshot()
	if cellChar(buf, 0, 0) != 'Q' {
		t.Fatalf("cell(0,0) = %q, want Q", cellChar(buf, 0, 0))
	}
	if buf[2] != 0 {
		t.Fatalf("cell(1,0) ascii = %#x, want 0 (padded)", buf[2])
	}
}

func TestRenderHookFiresOnChange(t *testing.T) {
	var got []byte
	old := RenderHook
	defer func() { RenderHook = old }()
	RenderHook = func(cells []byte) { got = cells }

	Print("z")
	if len(got) != Cols*Rows*2 {
		t.Fatalf("RenderHook saw %d bytes, want %d", len(got), Cols*Rows*2)
	}
}

func TestWriterFeedsThroughPrint(t *testing.T) {
	Clear()
	w := Writer{}
	n, err := w.Write([]byte("ok"))
	if err != nil || n != 2 {
		t.Fatalf("Write() = %d, %v; want 2, nil", n, err)
	}
	buf := Snapshot()
	if cellChar(buf, 0, 0) != 'o' || cellChar(buf, 1, 0) != 'k' {
		t.Fatalf("console did not receive Writer's bytes")
	}
}

func TestEncodeByteHighRuneFallsBackToQuestionMark(t *testing.T) {
	if got := encodeByte(rune(0x110000)); got != '?' {
		t.Fatalf("encodeByte(invalid rune) = %q, want ?", got)
	}
}
