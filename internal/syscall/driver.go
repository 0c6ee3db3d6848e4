package syscall

import (
	"sync"

	"exos/internal/defs"
	"exos/internal/trap"
	"exos/internal/vm"
)

// DriverCommand is a storage/filesystem driver's single entry point
// (spec §4.9: "A storage driver exposes a single Command(Function,
// Parameter) -> U32 entry"). internal/storage and internal/fs register
// one per driver instance; syscall only owns the dispatch plumbing, not
// any driver implementation.
type DriverCommand func(function, parameter uint32) uint32

var (
	driversMu sync.Mutex
	drivers   = map[uint32]DriverCommand{}
)

// RegisterDriver installs cmd as driverID's Command entry point.
func RegisterDriver(driverID uint32, cmd DriverCommand) {
	driversMu.Lock()
	defer driversMu.Unlock()
	drivers[driverID] = cmd
}

// UnregisterDriver removes driverID, e.g. when a hot-unloaded driver is
// torn down.
func UnregisterDriver(driverID uint32) {
	driversMu.Lock()
	defer driversMu.Unlock()
	delete(drivers, driverID)
}

func lookupDriver(driverID uint32) (DriverCommand, bool) {
	driversMu.Lock()
	defer driversMu.Unlock()
	cmd, ok := drivers[driverID]
	return cmd, ok
}

// driverCallArgsSize is {Function, Parameter}, the pair EBX points to on
// the 0x81 gate (spec §6: "EXOS_DRIVER_CALL = 0x81", "same shape" as the
// 0x80 syscall gate, one pointer parameter).
const driverCallArgsSize = 2 * 4

// DriverDispatchFrame implements the 0x81 gate: EAX names the target
// driver, EBX points to { Function, Parameter }; the driver's own
// Command return value flows back verbatim (spec §4.9: "Driver command
// returns flow back verbatim to the caller").
func DriverDispatchFrame(f *trap.InterruptFrame) {
	driverID := f.Eax
	cmd, ok := lookupDriver(driverID)
	if !ok {
		f.Eax = errRet(-defs.ENODEV)
		return
	}
	as := currentAS()
	if as == nil || !checkPtr(f.Ebx, driverCallArgsSize) {
		f.Eax = errRet(-defs.EFAULT)
		return
	}
	var buf [driverCallArgsSize]byte
	vm.ReadBytes(as, f.Ebx, buf[:])
	function := uint32(buf[0]) | uint32(buf[1])<<8 | uint32(buf[2])<<16 | uint32(buf[3])<<24
	parameter := uint32(buf[4]) | uint32(buf[5])<<8 | uint32(buf[6])<<16 | uint32(buf[7])<<24
	f.Eax = cmd(function, parameter)
}
