// Package limits tracks system-wide resource ceilings and the atomic
// taken/given counters used to enforce them.
package limits

import "sync"

// Syslimit_t holds the hard ceilings EXOS enforces on shared kernel
// resources. Values are the compile-time defaults below and are never
// changed at run time; BootConfig does not set them.
type Syslimit_t struct {
	Tasks     int
	Mutexes   int
	OpenFiles int
	DiskBlks  int
}

// Syslimit is the live limit table.
var Syslimit = Syslimit_t{
	Tasks:     512,
	Mutexes:   4096,
	OpenFiles: 1024,
	DiskBlks:  8192,
}

// Sysatomic_t is a mutex-guarded counter bounded by a ceiling, used to
// account for a single resource class (e.g. live tasks, open mutexes).
type Sysatomic_t struct {
	sync.Mutex
	cur  int
	ceil int
}

// MkSysatomic returns a counter bounded by ceil.
func MkSysatomic(ceil int) *Sysatomic_t {
	return &Sysatomic_t{ceil: ceil}
}

// Taken attempts to reserve one unit of the resource, returning false if
// doing so would exceed the ceiling.
func (s *Sysatomic_t) Taken() bool {
	s.Lock()
	defer s.Unlock()
	if s.cur >= s.ceil {
		return false
	}
	s.cur++
	return true
}

// Given releases one previously-taken unit back to the pool.
func (s *Sysatomic_t) Given() {
	s.Lock()
	defer s.Unlock()
	if s.cur == 0 {
		panic("limits: Given without matching Taken")
	}
	s.cur--
}

// Cur reports the number of units currently taken.
func (s *Sysatomic_t) Cur() int {
	s.Lock()
	defer s.Unlock()
	return s.cur
}

// Per-resource-class counters, sized from Syslimit at package init.
var (
	Tasks     = MkSysatomic(Syslimit.Tasks)
	Mutexes   = MkSysatomic(Syslimit.Mutexes)
	OpenFiles = MkSysatomic(Syslimit.OpenFiles)
	DiskBlks  = MkSysatomic(Syslimit.DiskBlks)
)
