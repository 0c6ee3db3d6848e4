// Package stats implements compile-time-gated counters and cycle timers
// used for optional scheduler/VMM instrumentation.
package stats

import (
	"reflect"
	"strconv"
	"strings"
	"sync/atomic"
	"unsafe"
)

// Stats gates whether Counter_t.Inc has any effect.
const Stats = false

// Timing gates whether Cycles_t.Add has any effect.
const Timing = false

var Nirqs [100]int
var Irqs int

// Rdtsc returns the current cycle count when Timing is enabled, and the
// platform provides a timestamp-counter read (wired in by cmd/kernel's
// arch-specific boot stub); it is 0 otherwise.
var Rdtsc = func() uint64 { return 0 }

// Counter_t is a statistics counter, a no-op unless Stats is true.
type Counter_t int64

// Cycles_t accumulates elapsed cycles, a no-op unless Timing is true.
type Cycles_t int64

// Inc increments the counter by one.
func (c *Counter_t) Inc() {
	if Stats {
		atomic.AddInt64((*int64)(unsafe.Pointer(c)), 1)
	}
}

// Add adds the cycles elapsed since the reading m was taken.
func (c *Cycles_t) Add(m uint64) {
	if Timing {
		atomic.AddInt64((*int64)(unsafe.Pointer(c)), int64(Rdtsc()-m))
	}
}

// Stats2String renders every Counter_t/Cycles_t field of st as a
// printable report, or "" when Stats is disabled.
func Stats2String(st interface{}) string {
	if !Stats {
		return ""
	}
	v := reflect.ValueOf(st)
	s := ""
	for i := 0; i < v.NumField(); i++ {
		t := v.Field(i).Type().String()
		switch {
		case strings.HasSuffix(t, "Counter_t"):
			n := v.Field(i).Interface().(Counter_t)
			s += "\n\t#" + v.Type().Field(i).Name + ": " + strconv.FormatInt(int64(n), 10)
		case strings.HasSuffix(t, "Cycles_t"):
			n := v.Field(i).Interface().(Cycles_t)
			s += "\n\t#" + v.Type().Field(i).Name + ": " + strconv.FormatInt(int64(n), 10)
		}
	}
	return s + "\n"
}
