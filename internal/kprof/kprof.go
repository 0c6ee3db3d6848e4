// Package kprof builds an on-demand pprof profile from live per-task
// accounting. It replaces the original kernel's bprof_t/perfsetup path
// (accumulate raw PMC samples into a buffer, hexdump them to the
// console for offline xxd -r decoding) with the standard pprof wire
// format, so a capture opens directly in `go tool pprof` instead of
// needing a matching offline decoder. Grounded on
// other_examples/...biscuit-src-kernel-main.go.go's bprof_t/perfsetup
// shape and sched.Tasks/accnt.Accnt_t for the samples themselves, built
// on github.com/google/pprof/profile (DOMAIN STACK) rather than a
// hand-rolled encoder.
package kprof

import (
	"io"
	"strconv"

	"github.com/google/pprof/profile"

	"exos/internal/kobj"
	"exos/internal/sched"
)

const (
	sampleTypeSamples = "samples"
	sampleTypeCPU     = "cpu"
	unitCount         = "count"
	unitNanoseconds   = "nanoseconds"
)

// taskSample is one task's accounting, read out under its own Accnt_t
// lock before anything touches the profile builder.
type taskSample struct {
	taskID   kobj.Id
	pid      kobj.Id
	name     string
	status   string
	priority int
	userns   int64
	sysns    int64
}

func snapshot() []taskSample {
	var out []taskSample
	sched.Tasks.Apply(func(id kobj.Id, t *sched.Task_t) {
		t.Accnt.Lock()
		userns, sysns := t.Accnt.Userns, t.Accnt.Sysns
		t.Accnt.Unlock()

		s := taskSample{
			taskID:   id,
			status:   t.Status.String(),
			priority: int(t.Priority),
			userns:   userns,
			sysns:    sysns,
		}
		if t.Process != nil {
			s.pid = t.Process.Hdr.Id
			s.name = t.Process.FileName
		}
		if s.name == "" {
			s.name = "?"
		}
		out = append(out, s)
	})
	return out
}

// Build captures the live task table into a pprof Profile with two
// sample values per task, {samples=1, cpu=user+system nanoseconds}, one
// synthetic Function per distinct process FileName and one Location per
// task pointing at it, so `go tool pprof -top` groups by program rather
// than by task id.
func Build() *profile.Profile {
	samples := snapshot()

	p := &profile.Profile{
		SampleType: []*profile.ValueType{
			{Type: sampleTypeSamples, Unit: unitCount},
			{Type: sampleTypeCPU, Unit: unitNanoseconds},
		},
		PeriodType: &profile.ValueType{Type: sampleTypeCPU, Unit: unitNanoseconds},
		Period:     1,
	}

	funcs := make(map[string]*profile.Function)
	var nextID uint64

	for _, s := range samples {
		fn, ok := funcs[s.name]
		if !ok {
			nextID++
			fn = &profile.Function{ID: nextID, Name: s.name, SystemName: s.name}
			funcs[s.name] = fn
			p.Function = append(p.Function, fn)
		}

		nextID++
		loc := &profile.Location{
			ID:   nextID,
			Line: []profile.Line{{Function: fn}},
		}
		p.Location = append(p.Location, loc)

		p.Sample = append(p.Sample, &profile.Sample{
			Location: []*profile.Location{loc},
			Value:    []int64{1, s.userns + s.sysns},
			Label: map[string][]string{
				"task_id":  {idString(s.taskID)},
				"pid":      {idString(s.pid)},
				"status":   {s.status},
				"priority": {priorityString(s.priority)},
			},
		})
	}

	return p
}

// WriteTo gzip-encodes the current task snapshot as a pprof proto onto
// w, matching bprof_t.dump's "capture now, inspect later" shape without
// its bespoke hexdump format.
func WriteTo(w io.Writer) error {
	return Build().Write(w)
}

// String renders the current task snapshot as pprof's own human-readable
// text dump, for a debug console command that wants output without a
// pprof binary on hand.
func String() string {
	return Build().String()
}

func idString(id kobj.Id) string {
	if id == 0 {
		return "-"
	}
	return strconv.FormatUint(uint64(id), 10)
}

func priorityString(p int) string {
	names := [...]string{"lowest", "low", "medium", "high", "highest"}
	if p < 0 || p >= len(names) {
		return "unknown"
	}
	return names[p]
}
