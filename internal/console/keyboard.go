package console

import (
	"exos/internal/circbuf"
	"exos/internal/sched"
	"exos/internal/vm"
)

// Modifier bits for GetModifiers (spec §4.9).
const (
	ModShift = 1 << 0
	ModCtrl  = 1 << 1
	ModAlt   = 1 << 2
	ModCaps  = 1 << 3
)

// scancode set 1 make codes, break code is make|0x80.
const (
	scLeftShift  = 0x2A
	scRightShift = 0x36
	scCtrl       = 0x1D
	scAlt        = 0x38
	scCapsLock   = 0x3A
	scBreakBit   = 0x80
)

var lower = [128]byte{
	0x01: 0x1B, 0x02: '1', 0x03: '2', 0x04: '3', 0x05: '4', 0x06: '5',
	0x07: '6', 0x08: '7', 0x09: '8', 0x0A: '9', 0x0B: '0', 0x0C: '-',
	0x0D: '=', 0x0E: 0x08, 0x0F: '\t',
	0x10: 'q', 0x11: 'w', 0x12: 'e', 0x13: 'r', 0x14: 't', 0x15: 'y',
	0x16: 'u', 0x17: 'i', 0x18: 'o', 0x19: 'p', 0x1A: '[', 0x1B: ']',
	0x1C: '\r',
	0x1E: 'a', 0x1F: 's', 0x20: 'd', 0x21: 'f', 0x22: 'g', 0x23: 'h',
	0x24: 'j', 0x25: 'k', 0x26: 'l', 0x27: ';', 0x28: '\'', 0x29: '`',
	0x2B: '\\',
	0x2C: 'z', 0x2D: 'x', 0x2E: 'c', 0x2F: 'v', 0x30: 'b', 0x31: 'n',
	0x32: 'm', 0x33: ',', 0x34: '.', 0x35: '/',
	0x39: ' ',
}

var upper = [128]byte{
	0x02: '!', 0x03: '@', 0x04: '#', 0x05: '$', 0x06: '%', 0x07: '^',
	0x08: '&', 0x09: '*', 0x0A: '(', 0x0B: ')', 0x0C: '_', 0x0D: '+',
	0x10: 'Q', 0x11: 'W', 0x12: 'E', 0x13: 'R', 0x14: 'T', 0x15: 'Y',
	0x16: 'U', 0x17: 'I', 0x18: 'O', 0x19: 'P', 0x1A: '{', 0x1B: '}',
	0x1E: 'A', 0x1F: 'S', 0x20: 'D', 0x21: 'F', 0x22: 'G', 0x23: 'H',
	0x24: 'J', 0x25: 'K', 0x26: 'L', 0x27: ':', 0x28: '"', 0x29: '~',
	0x2B: '|',
	0x2C: 'Z', 0x2D: 'X', 0x2E: 'C', 0x2F: 'V', 0x30: 'B', 0x31: 'N',
	0x32: 'M', 0x33: '<', 0x34: '>', 0x35: '?',
}

var (
	keys     circbuf.Circbuf_t
	keysInit bool

	// peeked holds a byte PeekKey pulled out of keys to inspect, put
	// back in front of GetKey's own reads so peeking never reorders
	// the queue (Circbuf_t itself has no non-destructive read).
	peeked    *byte
	shiftDown bool
	ctrlDown  bool
	altDown   bool
	capsOn    bool
)

func ensureKeys() {
	if keysInit {
		return
	}
	keys.Cb_init(256, vm.Kalloc)
	keysInit = true
}

// PushScancode feeds one raw scancode byte into the keyboard queue. An
// external 8042 IRQ1 driver calls this from its interrupt handler;
// this package's init() wires trap.RegisterIRQHandler(1, ...) to it.
func PushScancode(b byte) {
	lock()
	defer unlock()
	ensureKeys()

	make_ := b &^ scBreakBit
	isBreak := b&scBreakBit != 0

	switch make_ {
	case scLeftShift, scRightShift:
		shiftDown = !isBreak
		return
	case scCtrl:
		ctrlDown = !isBreak
		return
	case scAlt:
		altDown = !isBreak
		return
	case scCapsLock:
		if !isBreak {
			capsOn = !capsOn
		}
		return
	}
	if isBreak {
		return
	}

	ch := translate(make_)
	if ch == 0 {
		return
	}
	keys.Copyin([]byte{ch})
}

func translate(sc byte) byte {
	if sc >= 128 {
		return 0
	}
	upperCase := shiftDown != capsOn
	if upperCase {
		if c := upper[sc]; c != 0 {
			return c
		}
	}
	return lower[sc]
}

// PeekKey reports the next queued key without consuming it.
func PeekKey() (uint8, bool) {
	lock()
	defer unlock()
	ensureKeys()
	if peeked != nil {
		return *peeked, true
	}
	if keys.Empty() {
		return 0, false
	}
	var b [1]byte
	keys.Copyout(b[:])
	peeked = &b[0]
	return b[0], true
}

// GetKey blocks (cooperatively yielding) until a key is available and
// returns it, consuming it from the queue (or the pending peek).
func GetKey() uint8 {
	for {
		lock()
		ensureKeys()
		if peeked != nil {
			b := *peeked
			peeked = nil
			unlock()
			return b
		}
		if !keys.Empty() {
			var b [1]byte
			keys.Copyout(b[:])
			unlock()
			return b[0]
		}
		unlock()
		sched.Yield()
	}
}

// GetModifiers returns the live Shift/Ctrl/Alt/CapsLock bitmask.
func GetModifiers() uint32 {
	lock()
	defer unlock()
	var m uint32
	if shiftDown {
		m |= ModShift
	}
	if ctrlDown {
		m |= ModCtrl
	}
	if altDown {
		m |= ModAlt
	}
	if capsOn {
		m |= ModCaps
	}
	return m
}
