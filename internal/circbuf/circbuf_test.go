package circbuf

import (
	"testing"

	"exos/internal/mem"
)

// fakePager is a test double for mem.Page_i backed by ordinary Go heap
// memory instead of the kernel's physical allocator.
type fakePager struct {
	next mem.Pa_t
}

func (f *fakePager) Refpg_new_nozero() (*mem.Pg_t, mem.Pa_t, bool) {
	f.next += mem.Pa_t(mem.PGSIZE)
	return &mem.Pg_t{}, f.next, true
}
func (f *fakePager) Refup(mem.Pa_t)        {}
func (f *fakePager) Refdown(mem.Pa_t) bool { return true }

func TestCbInitDefersAllocation(t *testing.T) {
	var cb Circbuf_t
	f := &fakePager{}
	if err := cb.Cb_init(64, f); err != 0 {
		t.Fatalf("Cb_init() = %v, want 0", err)
	}
	if cb.Buf != nil {
		t.Fatalf("Cb_init() should not allocate the backing page eagerly")
	}
}

func TestCopyinCopyoutRoundTrip(t *testing.T) {
	var cb Circbuf_t
	f := &fakePager{}
	cb.Cb_init(16, f)

	src := []uint8("hello world")
	n, err := cb.Copyin(src)
	if err != 0 || n != len(src) {
		t.Fatalf("Copyin() = %d, %v; want %d, 0", n, err, len(src))
	}
	if cb.Used() != len(src) {
		t.Fatalf("Used() = %d; want %d", cb.Used(), len(src))
	}

	dst := make([]uint8, len(src))
	n, err = cb.Copyout(dst)
	if err != 0 || n != len(src) {
		t.Fatalf("Copyout() = %d, %v; want %d, 0", n, err, len(src))
	}
	if string(dst) != string(src) {
		t.Fatalf("Copyout() = %q, want %q", dst, src)
	}
	if !cb.Empty() {
		t.Fatalf("buffer should be empty after draining")
	}
}

func TestCopyinStopsWhenFull(t *testing.T) {
	var cb Circbuf_t
	f := &fakePager{}
	cb.Cb_init(4, f)

	n, err := cb.Copyin([]uint8("abcdef"))
	if err != 0 {
		t.Fatalf("Copyin() error = %v", err)
	}
	if n != 4 {
		t.Fatalf("Copyin() = %d; want 4 (buffer capacity)", n)
	}
	if !cb.Full() {
		t.Fatalf("buffer should report Full() after filling to capacity")
	}
}

func TestWraparound(t *testing.T) {
	var cb Circbuf_t
	f := &fakePager{}
	cb.Cb_init(4, f)

	cb.Copyin([]uint8("ab"))
	out := make([]uint8, 1)
	cb.Copyout(out)
	cb.Copyin([]uint8("cd"))

	rest := make([]uint8, cb.Used())
	n, _ := cb.Copyout(rest)
	if string(rest[:n]) != "bcd" {
		t.Fatalf("Copyout() after wraparound = %q, want bcd", rest[:n])
	}
}

func TestCbRelease(t *testing.T) {
	var cb Circbuf_t
	f := &fakePager{}
	cb.Cb_init(8, f)
	cb.Cb_ensure()
	if cb.Buf == nil {
		t.Fatalf("Cb_ensure() should allocate the backing buffer")
	}
	cb.Cb_release()
	if cb.Buf != nil {
		t.Fatalf("Cb_release() should clear the backing buffer")
	}
}
