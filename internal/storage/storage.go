// Package storage implements the block-storage dispatch contract (spec
// §4.9): a disk driver is a single Command(Function, Parameter) -> U32
// entry, Read/Write move whole sectors through an IoControl block, and
// boot-time MBR/GPT probing turns each loaded disk into a set of named,
// mountable partitions. Grounded on biscuit/src/fs/blk.go's Disk_i/
// Bdev_req_t/Bdevcmd_t shape, generalized from biscuit's async
// request-channel style into the synchronous call EXOS's single-task-
// at-a-time driver model needs (the same simplification internal/sched
// already applies to biscuit's OS-thread-backed runnable set).
package storage

import (
	"sync"

	"exos/internal/defs"
	"exos/internal/kobj"
	"exos/internal/syscall"
)

// Function enumerates the storage driver's command space (spec §4.9).
type Function uint32

const (
	FuncLoad Function = iota
	FuncUnload
	FuncGetVersion
	FuncDiskReset
	FuncDiskRead
	FuncDiskWrite
	FuncDiskGetInfo
	FuncDiskSetAccess
)

// Version is the storage driver contract version reported by
// FuncGetVersion, mirroring internal/syscall.Version's shape.
const Version uint32 = 0x00010000

// BlockDevice is the backing transfer primitive a disk driver plugs in
// at load time: the in-memory test device, or (once wired during boot)
// a real AHCI/USB-storage/virtio backend. Stands in for biscuit's
// Disk_i the way internal/vm's settable hooks stand in for real paging
// hardware: the transfer itself is machine-specific, the dispatch
// around it is not.
type BlockDevice interface {
	ReadSectors(sector uint64, buf []byte) defs.Err_t
	WriteSectors(sector uint64, buf []byte) defs.Err_t
	SectorSize() uint32
	SectorCount() uint64
}

// Disk_t is a loaded physical (or virtual) drive, addressable by both
// its kobj.Id and the driver id LoadDisk hands back for the 0x81 gate
// (the two are the same value).
type Disk_t struct {
	kobj.Header
	Name   string
	Dev    BlockDevice
	Access bool
}

var disks = kobj.NewTable[Disk_t]()

func init() {
	syscall.RegisterObjectDeleter(defs.ObjDisk, deleteDisk)
}

// LoadDisk registers dev under name, tags it ObjDisk, installs its
// Command entry point for the 0x81 driver gate, and returns its id
// (used both as the kobj.Id and as the driver id callers address it
// with, since each disk is its own driver instance per spec §4.9).
func LoadDisk(name string, dev BlockDevice) kobj.Id {
	d := &Disk_t{Name: name, Dev: dev, Access: true}
	id := disks.Insert(d)
	d.Id = id
	d.Type = defs.ObjDisk
	syscall.RegisterDriver(uint32(id), commandFor(d))
	return id
}

// UnloadDisk tears down a previously loaded disk.
func UnloadDisk(id kobj.Id) defs.Err_t {
	d := disks.Get(id)
	if d == nil {
		return -defs.ENODEV
	}
	syscall.UnregisterDriver(uint32(id))
	disks.Remove(id)
	return defs.ENONE
}

func deleteDisk(id kobj.Id) defs.Err_t {
	return UnloadDisk(id)
}

// GetDisk looks up a loaded disk by id, or nil.
func GetDisk(id kobj.Id) *Disk_t {
	return disks.Get(id)
}

// diskByName is a linear scan; the disk list is small (one entry per
// physical drive) so no index is kept.
func diskByName(name string) *Disk_t {
	var found *Disk_t
	disks.Apply(func(_ kobj.Id, d *Disk_t) {
		if d.Name == name {
			found = d
		}
	})
	return found
}

var accessMu sync.Mutex
