package console

import (
	"testing"

	"exos/internal/circbuf"
)

func resetKeyboard() {
	keysInit = false
	keys = circbuf.Circbuf_t{}
	peeked = nil
	shiftDown, ctrlDown, altDown, capsOn = false, false, false, false
}

func TestPushScancodeLowercaseLetter(t *testing.T) {
	resetKeyboard()
	PushScancode(0x1E) // make 'a'
	k, ok := PeekKey()
	if !ok || k != 'a' {
		t.Fatalf("PeekKey() = %q, %v; want a, true", k, ok)
	}
}

func TestPushScancodeShiftUppercases(t *testing.T) {
	resetKeyboard()
	PushScancode(0x2A)        // left shift make
	PushScancode(0x1E)        // 'a' while shifted
	PushScancode(0x2A | 0x80) // left shift break
	if k := GetKey(); k != 'A' {
		t.Fatalf("GetKey() = %q, want A", k)
	}
}

func TestPushScancodeCapsLockTogglesUppercase(t *testing.T) {
	resetKeyboard()
	PushScancode(0x3A) // caps lock make
	PushScancode(0x1E) // 'a'
	if k := GetKey(); k != 'A' {
		t.Fatalf("GetKey() = %q, want A under caps lock", k)
	}
	PushScancode(0x3A) // caps lock make again (toggle off)
	PushScancode(0x1E)
	if k := GetKey(); k != 'a' {
		t.Fatalf("GetKey() = %q, want a after caps lock toggled off", k)
	}
}

func TestPushScancodeBreakCodeIgnored(t *testing.T) {
	resetKeyboard()
	PushScancode(0x1E | 0x80) // break code for 'a', no preceding make
	if _, ok := PeekKey(); ok {
		t.Fatalf("PeekKey() should report nothing queued for a bare break code")
	}
}

func TestPeekKeyDoesNotConsume(t *testing.T) {
	resetKeyboard()
	PushScancode(0x1E)
	k1, _ := PeekKey()
	k2 := GetKey()
	if k1 != k2 {
		t.Fatalf("PeekKey() = %q then GetKey() = %q, want same key", k1, k2)
	}
}

func TestGetModifiersReflectsCtrlAndAlt(t *testing.T) {
	resetKeyboard()
	PushScancode(0x1D) // ctrl make
	PushScancode(0x38) // alt make
	m := GetModifiers()
	if m&ModCtrl == 0 || m&ModAlt == 0 {
		t.Fatalf("GetModifiers() = %#x, want Ctrl and Alt set", m)
	}
	PushScancode(0x1D | 0x80) // ctrl break
	m = GetModifiers()
	if m&ModCtrl != 0 {
		t.Fatalf("GetModifiers() = %#x, want Ctrl cleared after break", m)
	}
}

func TestTranslateUnmappedScancodeReturnsZero(t *testing.T) {
	if ch := translate(0x7F); ch != 0 {
		t.Fatalf("translate(unmapped) = %q, want 0", ch)
	}
}
