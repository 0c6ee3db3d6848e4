// Package circbuf implements a circular byte buffer backing the console
// input queue and driver-to-driver byte pipes.
package circbuf

import (
	"exos/internal/defs"
	"exos/internal/mem"
)

// Circbuf_t is a lazily-backed circular buffer. It is not safe for
// concurrent use; callers serialize access themselves (the console driver
// holds its own mutex around its Circbuf_t).
type Circbuf_t struct {
	mem   mem.Page_i
	Buf   []uint8
	bufsz int
	head  int
	tail  int
	p_pg  mem.Pa_t
}

// Bufsz returns the configured buffer capacity.
func (cb *Circbuf_t) Bufsz() int {
	return cb.bufsz
}

// Cb_init records the desired size and allocator but defers the actual
// page allocation until first use.
func (cb *Circbuf_t) Cb_init(sz int, m mem.Page_i) defs.Err_t {
	if sz <= 0 || sz > mem.PGSIZE {
		panic("bad circbuf size")
	}
	cb.mem = m
	cb.bufsz = sz
	cb.head, cb.tail = 0, 0
	return defs.ENONE
}

// Cb_ensure allocates the backing page on first use, if not already done.
func (cb *Circbuf_t) Cb_ensure() defs.Err_t {
	if cb.Buf != nil {
		return defs.ENONE
	}
	if cb.bufsz == 0 {
		panic("circbuf: not initialized")
	}
	pg, p_pg, ok := cb.mem.Refpg_new_nozero()
	if !ok {
		return -defs.ENOMEM
	}
	bpg := mem.Pg2bytes(pg)[:cb.bufsz]
	cb.p_pg = p_pg
	cb.Buf = bpg
	cb.head, cb.tail = 0, 0
	return defs.ENONE
}

// Cb_release drops the reference to the backing page, if any.
func (cb *Circbuf_t) Cb_release() {
	if cb.Buf == nil {
		return
	}
	cb.mem.Refdown(cb.p_pg)
	cb.p_pg = 0
	cb.Buf = nil
	cb.head, cb.tail = 0, 0
}

// Full reports whether the buffer has no remaining capacity.
func (cb *Circbuf_t) Full() bool {
	return cb.head-cb.tail == cb.bufsz
}

// Empty reports whether the buffer holds no data.
func (cb *Circbuf_t) Empty() bool {
	return cb.head == cb.tail
}

// Left returns the remaining capacity in bytes.
func (cb *Circbuf_t) Left() int {
	return cb.bufsz - (cb.head - cb.tail)
}

// Used returns the number of bytes currently queued.
func (cb *Circbuf_t) Used() int {
	return cb.head - cb.tail
}

// Copyin copies bytes from src into the buffer, stopping when either src
// is exhausted or the buffer fills. It returns the number of bytes copied.
func (cb *Circbuf_t) Copyin(src []uint8) (int, defs.Err_t) {
	if err := cb.Cb_ensure(); err != defs.ENONE {
		return 0, err
	}
	n := 0
	for n < len(src) && !cb.Full() {
		hi := cb.head % cb.bufsz
		cb.Buf[hi] = src[n]
		cb.head++
		n++
	}
	return n, defs.ENONE
}

// Copyout copies up to len(dst) bytes out of the buffer into dst. It
// returns the number of bytes copied.
func (cb *Circbuf_t) Copyout(dst []uint8) (int, defs.Err_t) {
	if err := cb.Cb_ensure(); err != defs.ENONE {
		return 0, err
	}
	n := 0
	for n < len(dst) && !cb.Empty() {
		ti := cb.tail % cb.bufsz
		dst[n] = cb.Buf[ti]
		cb.tail++
		n++
	}
	return n, defs.ENONE
}

// Advhead advances the write position by sz without copying, for callers
// that wrote directly into a slice obtained elsewhere.
func (cb *Circbuf_t) Advhead(sz int) {
	if cb.Left() < sz {
		panic("circbuf: advancing past capacity")
	}
	cb.head += sz
}

// Advtail advances the read position by sz, discarding that much data.
func (cb *Circbuf_t) Advtail(sz int) {
	if cb.Used() < sz {
		panic("circbuf: advancing past available data")
	}
	cb.tail += sz
}
