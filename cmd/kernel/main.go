// Command kernel is the freestanding entry point the two-stage loader
// transfers control to once protected mode is live and paging is enabled
// (spec §1's boot path, spec §6's boot handoff). It mirrors
// original_source/kernel/source/Kernel.c's InitializeKernel: read the
// KERNELSTARTUPINFO block the loader left behind, bring the kernel's
// subsystems up through internal/kernel.Init, then fall into the
// scheduler's idle loop.
//
// This package never runs under `go test`, `go run`, or a hosted `go
// build`: like biscuit's own kernel (built with the patched toolchain
// under this pack's src/cmd/compile rather than a stock `go build`),
// cmd/kernel assumes a freestanding GOARCH=386 target with no host
// runtime underneath it. The settable hooks it would wire to real
// assembly (trap.OutB/InB, trap.StubAddr, vm.Invlpg/LoadCR3,
// sched.SwitchContext, stats.Rdtsc) are left at their documented no-op
// defaults here for the same reason every other package in this tree
// leaves them: the inline-assembly stubs that belong on the other side
// of each hook are a separate, architecture-specific build step, not
// portable Go.
package main

import (
	"exos/internal/console"
	"exos/internal/defs"
	"exos/internal/kernel"
	"exos/internal/klog"
	"exos/internal/mem"
	"exos/internal/sched"
	"exos/internal/trap"
)

// stubBase is the physical load address the loader's protected-mode
// stub occupies, mirroring original_source's global StubAddress.
const stubBase mem.Pa_t = 0x10000

// startupInfoOffset is original_source's KERNEL_STARTUP_INFO_OFFSET: the
// KERNELSTARTUPINFO block the loader populates immediately follows the
// stub's own code and data.
const startupInfoOffset = 0x1000

// bootInfoAddr is where InitializeKernel's
// "StubAddress + KERNEL_STARTUP_INFO_OFFSET" copy source lands.
const bootInfoAddr = stubBase + startupInfoOffset

func main() {
	info, ok := kernel.ReadStartupInfo(bootInfoAddr)
	if !ok {
		klog.Panicf("kernel: no KERNELSTARTUPINFO at %#x, loader handoff failed\n", bootInfoAddr)
	}

	cfg := kernel.ParseBootConfig(kernel.BootConfigBlock(bootInfoAddr))
	klog.Debug = cfg.Bool("Debug", false)

	klog.Printf("kernel: booting, %d bytes memory, stack top %#x\n", info.MemorySize, info.StackTop)
	klog.Printf("kernel: console %dx%d cursor (%d,%d)\n",
		info.ConsoleWidth, info.ConsoleHeight, info.ConsoleCursorX, info.ConsoleCursorY)
	console.GotoXY(info.ConsoleCursorX, info.ConsoleCursorY)

	idt := trap.BuildIDT()
	_ = idt // installed into the IDTR by the arch-specific boot stub

	if err := kernel.Init(info); err != defs.ENONE {
		klog.Panicf("kernel: Init failed: %v\n", err)
	}

	klog.Printf("kernel: boot complete, entering scheduler\n")
	for {
		sched.Scheduler()
		haltCPU()
	}
}

// haltCPU parks the processor between scheduler passes (spec §4.5's
// "nothing is runnable: HLT until the next interrupt"). The default is
// a busy-spin no-op; the boot stub replaces it with an inline HLT once
// assembled, the same settable-hook shape as vm.Invlpg and
// sched.SwitchContext.
var haltCPU = func() {}
