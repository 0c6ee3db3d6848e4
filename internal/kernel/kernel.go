package kernel

import (
	_ "exos/internal/console" // registers its syscall hooks and IRQ1 handler
	"exos/internal/defs"
	_ "exos/internal/fs" // registers storage.MountHook and the Files syscall group
	"exos/internal/klog"
	"exos/internal/kprof"
	"exos/internal/mem"
	"exos/internal/proc"
	"exos/internal/sched"
	"exos/internal/storage"
	"exos/internal/vm"
)

// lowMemReserve is the identity-mapped low-memory region (BIOS data
// area, VGA text buffer, real-mode IVT) spec §4.1's boot-time marking
// policy reserves unconditionally, matching aspace.LowIdentityBase/End.
const lowMemReserve = 1 << 20 // 1 MiB

// DiskSpec names one block device the loader (or, on a real boot, the
// ATA/AHCI/virtio probe code cmd/kernel links in) wants registered
// before partition discovery runs.
type DiskSpec struct {
	Name string
	Dev  storage.BlockDevice
}

// BootDisks is the settable hook that supplies the set of block devices
// discovered at boot, following the same pattern as storage.MountHook
// and console.RenderHook: Init calls it once, production wiring
// installs a real probe, tests install a fake in-memory disk or leave
// it at the default (no disks, an empty but valid boot).
var BootDisks = func() []DiskSpec { return nil }

// LoadShellImage is the settable hook that supplies the shell
// executable's raw image bytes once a root filesystem is mounted.
// Absent a loader-specific convention for where the shell binary lives,
// EXOS leaves this unwired by default; Init degrades gracefully (logs
// and continues with no shell task) rather than failing the boot when
// it returns false, matching E1's "best-effort cold boot" framing when
// no storage is attached at all.
var LoadShellImage = func() ([]byte, bool) { return nil, false }

// reservedRanges returns the fixed-range reservations spec §4.1 lists
// beyond the low-memory identity map: the kernel image itself and the
// bitmap's own backing pages, placed immediately after the image the
// way the PPB's own doc comment ("residing immediately after the
// kernel image") requires.
func reservedRanges(info StartupInfo) []struct {
	base mem.Pa_t
	size uintptr
} {
	bitmapBytes := uintptr((info.PageCount + 7) / 8)
	return []struct {
		base mem.Pa_t
		size uintptr
	}{
		{0, lowMemReserve},
		{mem.Pa_t(info.KernelPhysicalBase), uintptr(info.KernelSize)},
		{mem.Pa_t(info.KernelPhysicalBase) + mem.Pa_t(info.KernelSize), bitmapBytes},
	}
}

// Init brings the kernel up leaves-first (spec §2's control/data flow):
// physical allocator, then VMM, then the process/task/scheduler layer,
// then storage discovery and filesystem mount, finally the shell task.
// Every subsystem below this point (mutex discipline, interrupt
// plumbing, the syscall table) wires itself via package init()
// functions reached transitively through the imports above; Init's job
// is strictly the boot-time sequencing spec.md and the loader handoff
// require, not re-registering what those packages already do on
// import.
func Init(info StartupInfo) defs.Err_t {
	mem.Physmem.Init(int(info.PageCount))
	for _, r := range reservedRanges(info) {
		mem.Physmem.ReserveRange(r.base, r.size)
	}
	klog.Printf("kernel: %d pages, %d reserved\n", info.PageCount, reservedPageCount(info))

	vm.Init(mem.Pa_t(info.PageDirectory))

	kernelPID, err := proc.NewKernelProcess()
	if err != defs.ENONE {
		return err
	}
	kernelProc := proc.Lookup(kernelPID)
	// The kernel task's system stack is whatever the loader was already
	// running on (StackTop); it owns no separate user stack, matching
	// spec's "kernel process... kernel heap in the kernel window" rather
	// than a user address-space layout.
	if _, err := sched.CreateTask(kernelProc, 0, 0, 0, info.StackTop, uint32(mem.PGSIZE), sched.PriorityHighest); err != defs.ENONE {
		return err
	}

	for _, d := range BootDisks() {
		id := storage.LoadDisk(d.Name, d.Dev)
		if disk := storage.GetDisk(id); disk != nil {
			storage.BootProbe(disk)
		}
	}

	if img, ok := LoadShellImage(); ok {
		_, err := proc.CreateProcess(proc.CreateProcessInfo{
			Image:     img,
			FileName:  "shell",
			Privilege: defs.PrivUser,
			Caller:    proc.NewSecurity(0, 0),
		})
		if err != defs.ENONE {
			klog.Printf("kernel: shell process failed to start: %v\n", err)
		}
	} else {
		klog.Printf("kernel: no shell image available, boot continues without a shell\n")
	}

	bootReport()
	return defs.ENONE
}

// bootReport logs the task snapshot kprof.Build captures (the same data
// a debug console pprof dump would read) plus the scheduler/VMM's
// stats.Counter_t/Cycles_t instrumentation, giving both an exercised
// path at boot rather than only their own package tests. klog.Debug
// gates it the way it gates every other verbose boot log line.
func bootReport() {
	if !klog.Debug {
		return
	}
	klog.Printf("kernel: boot task snapshot:\n%s", kprof.String())
	if s := sched.StatsString(); s != "" {
		klog.Printf("kernel: scheduler stats:%s", s)
	}
	if s := vm.StatsString(); s != "" {
		klog.Printf("kernel: vmm stats:%s", s)
	}
}

func reservedPageCount(info StartupInfo) int {
	var n int
	for _, r := range reservedRanges(info) {
		n += int((r.size + uintptr(mem.PGSIZE) - 1) / uintptr(mem.PGSIZE))
	}
	return n
}
