// Package stat defines the on-the-wire file metadata structure returned by
// the filesystem's GetSize/stat operations.
package stat

import "unsafe"

// Stat_t mirrors a file's stat information (§3 File type: size, timestamps).
type Stat_t struct {
	dev      uint64
	ino      uint64
	mode     uint32
	size     uint64
	atimeSec int64
	mtimeSec int64
	ctimeSec int64
}

// Wdev stores the device id of the owning filesystem.
func (st *Stat_t) Wdev(v uint64) { st.dev = v }

// Wino stores the inode/file-record number.
func (st *Stat_t) Wino(v uint64) { st.ino = v }

// Wmode records the file mode bits.
func (st *Stat_t) Wmode(v uint32) { st.mode = v }

// Wsize records the file size in bytes.
func (st *Stat_t) Wsize(v uint64) { st.size = v }

// Wtimes records access, modify, and create timestamps (unix seconds).
func (st *Stat_t) Wtimes(atime, mtime, ctime int64) {
	st.atimeSec = atime
	st.mtimeSec = mtime
	st.ctimeSec = ctime
}

// Dev returns the stored device id.
func (st *Stat_t) Dev() uint64 { return st.dev }

// Ino returns the stored inode number.
func (st *Stat_t) Ino() uint64 { return st.ino }

// Mode returns the stored mode value.
func (st *Stat_t) Mode() uint32 { return st.mode }

// Size returns the stored size.
func (st *Stat_t) Size() uint64 { return st.size }

// Atime returns the last-access timestamp.
func (st *Stat_t) Atime() int64 { return st.atimeSec }

// Mtime returns the last-modify timestamp.
func (st *Stat_t) Mtime() int64 { return st.mtimeSec }

// Ctime returns the creation timestamp.
func (st *Stat_t) Ctime() int64 { return st.ctimeSec }

// Bytes exposes the raw bytes of the structure for copying to userspace.
func (st *Stat_t) Bytes() []uint8 {
	const sz = unsafe.Sizeof(*st)
	sl := (*[sz]uint8)(unsafe.Pointer(st))
	return sl[:]
}
