package storage

import (
	"exos/internal/defs"
	"exos/internal/sched"
	"exos/internal/syscall"
	"exos/internal/vm"
)

// IoControl carries a sector-range transfer request (spec §4.9: "Read/
// Write take an IoControl { disk, sector (64-bit), count, buffer,
// buffer size }"). Disk is redundant with the driver id the 0x81 gate
// already names, but kept so a single IoControl value round-trips
// through logging/diagnostics without its caller context.
type IoControl struct {
	Disk       uint32
	Sector     uint64
	Count      uint32
	Buffer     uint32 // caller-space VA of the transfer buffer
	BufferSize uint32
}

// ioControlWireSize is {Disk, SectorLo, SectorHi, Count, BufferPtr,
// BufferSize}, six U32 fields, the layout Parameter points to for
// FuncDiskRead/FuncDiskWrite.
const ioControlWireSize = 6 * 4

func currentAS() *vm.Vm_t {
	t := sched.CurrentTask()
	if t == nil || t.Process == nil {
		return nil
	}
	return t.Process.Vm
}

func readIoControl(va uint32) (IoControl, bool) {
	as := currentAS()
	if as == nil {
		return IoControl{}, false
	}
	var buf [ioControlWireSize]byte
	vm.ReadBytes(as, va, buf[:])
	le := func(off int) uint32 {
		return uint32(buf[off]) | uint32(buf[off+1])<<8 | uint32(buf[off+2])<<16 | uint32(buf[off+3])<<24
	}
	return IoControl{
		Disk:       le(0),
		Sector:     uint64(le(4)) | uint64(le(8))<<32,
		Count:      le(12),
		Buffer:     le(16),
		BufferSize: le(20),
	}, true
}

// commandFor binds d's Command entry point (spec §4.9's "A storage
// driver exposes a single Command(Function, Parameter) -> U32 entry"),
// registered with internal/syscall under the disk's own id.
func commandFor(d *Disk_t) syscall.DriverCommand {
	return func(function, parameter uint32) uint32 {
		switch Function(function) {
		case FuncLoad:
			return uint32(defs.ENONE)
		case FuncUnload:
			return uint32(UnloadDisk(d.Id))
		case FuncGetVersion:
			return Version
		case FuncDiskReset:
			return uint32(defs.ENONE)
		case FuncDiskRead:
			return uint32(diskTransfer(d, parameter, false))
		case FuncDiskWrite:
			return uint32(diskTransfer(d, parameter, true))
		case FuncDiskGetInfo:
			return diskGetInfo(d, parameter)
		case FuncDiskSetAccess:
			accessMu.Lock()
			d.Access = parameter != 0
			accessMu.Unlock()
			return uint32(defs.ENONE)
		default:
			return uint32(-defs.ENOTIMPL)
		}
	}
}

// diskTransfer moves exactly ioc.Count sectors between d.Dev and the
// caller's buffer, failing outright rather than a partial transfer
// (spec §4.9: "transfer exactly count sectors or fail with an error
// code").
func diskTransfer(d *Disk_t, parameter uint32, write bool) defs.Err_t {
	if !d.Access {
		return -defs.EPERM
	}
	ioc, ok := readIoControl(parameter)
	if !ok {
		return -defs.EFAULT
	}
	size := d.Dev.SectorSize()
	need := uint64(ioc.Count) * uint64(size)
	if need == 0 || need > uint64(ioc.BufferSize) {
		return -defs.EINVAL
	}
	as := currentAS()
	if as == nil {
		return -defs.EUNEXPECTED
	}
	buf := make([]byte, need)
	if write {
		vm.ReadBytes(as, ioc.Buffer, buf)
		return d.Dev.WriteSectors(ioc.Sector, buf)
	}
	if err := d.Dev.ReadSectors(ioc.Sector, buf); err != defs.ENONE {
		return err
	}
	vm.WriteBytes(as, ioc.Buffer, buf)
	return defs.ENONE
}

// diskInfoWireSize is {SectorSize, SectorCountLow, SectorCountHigh}.
const diskInfoWireSize = 3 * 4

func diskGetInfo(d *Disk_t, parameter uint32) uint32 {
	as := currentAS()
	if as == nil {
		return uint32(-defs.EUNEXPECTED)
	}
	var buf [diskInfoWireSize]byte
	put := func(off int, v uint32) {
		buf[off] = byte(v)
		buf[off+1] = byte(v >> 8)
		buf[off+2] = byte(v >> 16)
		buf[off+3] = byte(v >> 24)
	}
	count := d.Dev.SectorCount()
	put(0, d.Dev.SectorSize())
	put(4, uint32(count))
	put(8, uint32(count>>32))
	vm.WriteBytes(as, parameter, buf[:])
	return uint32(defs.ENONE)
}

// ReadSectors/WriteSectors are the in-kernel entry points the boot-time
// partition prober and internal/fs use directly, bypassing the
// pointer-validated Command gate since both run with kernel privilege
// and already hold a plain Go byte slice, not a caller VA.
func ReadSectors(d *Disk_t, sector uint64, buf []byte) defs.Err_t {
	if !d.Access {
		return -defs.EPERM
	}
	return d.Dev.ReadSectors(sector, buf)
}

func WriteSectors(d *Disk_t, sector uint64, buf []byte) defs.Err_t {
	if !d.Access {
		return -defs.EPERM
	}
	return d.Dev.WriteSectors(sector, buf)
}
