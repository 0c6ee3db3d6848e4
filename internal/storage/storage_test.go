package storage

import (
	"encoding/binary"
	"testing"

	"exos/internal/defs"
)

// memDisk is an in-memory BlockDevice for tests, the same role the
// scheduler's plain-slice ready queue plays for internal/sched's
// tests: a stand-in with no real hardware behind it.
type memDisk struct {
	sector uint32
	data   []byte
}

func newMemDisk(sectors int, sectorSize uint32) *memDisk {
	return &memDisk{sector: sectorSize, data: make([]byte, sectors*int(sectorSize))}
}

func (m *memDisk) ReadSectors(sector uint64, buf []byte) defs.Err_t {
	off := sector * uint64(m.sector)
	if off+uint64(len(buf)) > uint64(len(m.data)) {
		return -defs.EBADSECTOR
	}
	copy(buf, m.data[off:off+uint64(len(buf))])
	return defs.ENONE
}

func (m *memDisk) WriteSectors(sector uint64, buf []byte) defs.Err_t {
	off := sector * uint64(m.sector)
	if off+uint64(len(buf)) > uint64(len(m.data)) {
		return -defs.EBADSECTOR
	}
	copy(m.data[off:off+uint64(len(buf))], buf)
	return defs.ENONE
}

func (m *memDisk) SectorSize() uint32  { return m.sector }
func (m *memDisk) SectorCount() uint64 { return uint64(len(m.data)) / uint64(m.sector) }

func TestLoadDiskRegistersDriverCommand(t *testing.T) {
	dev := newMemDisk(16, 512)
	id := LoadDisk("hd0", dev)
	defer UnloadDisk(id)

	cmd := commandFor(GetDisk(id))
	if r := cmd(uint32(FuncGetVersion), 0); r != Version {
		t.Fatalf("FuncGetVersion = %#x, want %#x", r, Version)
	}
	if r := cmd(uint32(FuncDiskReset), 0); defs.Err_t(int32(r)) != defs.ENONE {
		t.Fatalf("FuncDiskReset = %d, want ENONE", int32(r))
	}
	if r := cmd(Function(99), 0); int32(r) != int32(-defs.ENOTIMPL) {
		t.Fatalf("unknown function = %d, want ENOTIMPL", int32(r))
	}
}

func TestDiskTransferWithoutCurrentTaskFails(t *testing.T) {
	dev := newMemDisk(4, 512)
	id := LoadDisk("hd1", dev)
	defer UnloadDisk(id)

	d := GetDisk(id)
	if e := diskTransfer(d, 0, false); e != -defs.EFAULT {
		// readIoControl itself fails first since there is no current
		// task to read the IoControl struct from.
		t.Fatalf("diskTransfer = %v, want EFAULT", e)
	}
}

func TestDiskSetAccessGatesTransfer(t *testing.T) {
	dev := newMemDisk(4, 512)
	id := LoadDisk("hd2", dev)
	defer UnloadDisk(id)

	d := GetDisk(id)
	cmd := commandFor(d)
	cmd(uint32(FuncDiskSetAccess), 0)
	if d.Access {
		t.Fatalf("Access still true after FuncDiskSetAccess(0)")
	}
	if e := diskTransfer(d, 0, false); e != -defs.EPERM {
		t.Fatalf("diskTransfer with access off = %v, want EPERM", e)
	}
}

func TestUnloadDiskRemovesDriver(t *testing.T) {
	dev := newMemDisk(4, 512)
	id := LoadDisk("hd3", dev)
	if e := UnloadDisk(id); e != defs.ENONE {
		t.Fatalf("UnloadDisk = %v, want ENONE", e)
	}
	if GetDisk(id) != nil {
		t.Fatalf("disk still present after UnloadDisk")
	}
	if e := UnloadDisk(id); e != -defs.ENODEV {
		t.Fatalf("double UnloadDisk = %v, want ENODEV", e)
	}
}

func TestChecksumDeterministicAndSensitive(t *testing.T) {
	a := Checksum([]byte("exos"))
	b := Checksum([]byte("exos"))
	if a != b {
		t.Fatalf("Checksum not deterministic")
	}
	if a == Checksum([]byte("exoz")) {
		t.Fatalf("Checksum collided on distinct input")
	}
	if a == 0 {
		t.Fatalf("Checksum returned 0")
	}
}

func buildMBR(entries []mbrEntry) []byte {
	buf := make([]byte, 512)
	for i, e := range entries {
		off := mbrEntryOffset + i*mbrEntrySize
		buf[off+4] = e.TypeByte
		binary.LittleEndian.PutUint32(buf[off+8:off+12], e.StartLBA)
		binary.LittleEndian.PutUint32(buf[off+12:off+16], e.NumSectors)
	}
	buf[mbrSignatureOffset] = 0x55
	buf[mbrSignatureOffset+1] = 0xAA
	return buf
}

func TestProbePartitionsParsesMBR(t *testing.T) {
	dev := newMemDisk(4096, 512)
	mbr := buildMBR([]mbrEntry{
		{TypeByte: 0x0B, StartLBA: 2048, NumSectors: 1000},
		{TypeByte: 0x83, StartLBA: 3048, NumSectors: 2000},
	})
	copy(dev.data[:512], mbr)

	id := LoadDisk("hd4", dev)
	defer UnloadDisk(id)
	d := GetDisk(id)

	parts, err := ProbePartitions(d)
	if err != nil {
		t.Fatalf("ProbePartitions error: %v", err)
	}
	if len(parts) != 2 {
		t.Fatalf("len(parts) = %d, want 2", len(parts))
	}
	if parts[0].Name != "hd4p1" || parts[0].FsHint != "FAT32" {
		t.Fatalf("parts[0] = %+v", parts[0])
	}
	if parts[1].Name != "hd4p2" || parts[1].FsHint != "Linux" {
		t.Fatalf("parts[1] = %+v", parts[1])
	}
	if parts[0].StartSector != 2048 || parts[0].SectorCount != 1000 {
		t.Fatalf("parts[0] sectors = %+v", parts[0])
	}
}

func TestProbePartitionsNoSignatureReturnsEmpty(t *testing.T) {
	dev := newMemDisk(64, 512)
	id := LoadDisk("hd5", dev)
	defer UnloadDisk(id)

	parts, err := ProbePartitions(GetDisk(id))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if parts != nil {
		t.Fatalf("expected no partitions on an unsigned MBR, got %v", parts)
	}
}

func TestBootProbeCallsMountHookPerPartition(t *testing.T) {
	dev := newMemDisk(4096, 512)
	mbr := buildMBR([]mbrEntry{{TypeByte: 0xF8, StartLBA: 100, NumSectors: 500}})
	copy(dev.data[:512], mbr)
	id := LoadDisk("hd6", dev)
	defer UnloadDisk(id)

	saved := MountHook
	defer func() { MountHook = saved }()
	var got []Partition
	MountHook = func(d *Disk_t, p Partition) { got = append(got, p) }

	BootProbe(GetDisk(id))
	if len(got) != 1 || got[0].FsHint != "EXFS" {
		t.Fatalf("MountHook calls = %+v", got)
	}
}
