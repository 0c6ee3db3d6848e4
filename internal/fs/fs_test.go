package fs

import (
	"testing"

	"exos/internal/defs"
	"exos/internal/storage"
)

type memDisk struct {
	sector uint32
	data   []byte
}

func newMemDisk(sectors int, sectorSize uint32) *memDisk {
	return &memDisk{sector: sectorSize, data: make([]byte, sectors*int(sectorSize))}
}

func (m *memDisk) ReadSectors(sector uint64, buf []byte) defs.Err_t {
	off := sector * uint64(m.sector)
	copy(buf, m.data[off:off+uint64(len(buf))])
	return defs.ENONE
}

func (m *memDisk) WriteSectors(sector uint64, buf []byte) defs.Err_t {
	off := sector * uint64(m.sector)
	copy(m.data[off:off+uint64(len(buf))], buf)
	return defs.ENONE
}

func (m *memDisk) SectorSize() uint32  { return m.sector }
func (m *memDisk) SectorCount() uint64 { return uint64(len(m.data)) / uint64(m.sector) }

// mountTestVolume formats and mounts a fresh EXFS volume under name,
// bypassing storage.MountHook's driver-registry plumbing since tests
// only need the FileSystem_t this package itself owns.
func mountTestVolume(t *testing.T, name string) *FileSystem_t {
	t.Helper()
	dev := newMemDisk(2048, 512)
	disk := storage.LoadDisk(name+"-disk", dev)
	part := storage.Partition{Name: name, StartSector: 0, SectorCount: 2048}
	if err := FormatExfs(storage.GetDisk(disk), part); err != defs.ENONE {
		t.Fatalf("FormatExfs: %v", err)
	}
	mountPartition(storage.GetDisk(disk), part)
	f := lookupByName(name)
	if f == nil {
		t.Fatalf("mountPartition did not register %q", name)
	}
	if !f.Mounted || f.Format != "EXFS" {
		t.Fatalf("volume %q not mounted as EXFS: %+v", name, f)
	}
	return f
}

func TestFormatAndMountRoundTrip(t *testing.T) {
	mountTestVolume(t, "vol0")
}

func TestOpenWriteReadFile(t *testing.T) {
	mountTestVolume(t, "vol1")
	path := "vol1:/hello.txt"

	h, err := openFile(1, path)
	if err != defs.ENONE {
		t.Fatalf("openFile (create): %v", err)
	}
	n, err := writeFile(1, h, []byte("hello, exos"))
	if err != defs.ENONE || n != 11 {
		t.Fatalf("writeFile = %d, %v", n, err)
	}
	if err := setFilePosition(1, h, 0); err != defs.ENONE {
		t.Fatalf("setFilePosition: %v", err)
	}
	data, err := readFile(1, h, 64)
	if err != defs.ENONE {
		t.Fatalf("readFile: %v", err)
	}
	if string(data) != "hello, exos" {
		t.Fatalf("readFile = %q, want %q", data, "hello, exos")
	}
	size, err := getFileSize(1, h)
	if err != defs.ENONE || size != 11 {
		t.Fatalf("getFileSize = %d, %v", size, err)
	}

	h2, err := openFile(1, path)
	if err != defs.ENONE {
		t.Fatalf("reopen existing file: %v", err)
	}
	data2, err := readFile(1, h2, 64)
	if err != defs.ENONE || string(data2) != "hello, exos" {
		t.Fatalf("reopen read = %q, %v", data2, err)
	}
}

func TestOpenFileUnknownVolume(t *testing.T) {
	if _, err := openFile(1, "nosuch:/a.txt"); err != -defs.ENODEV {
		t.Fatalf("openFile on unknown volume = %v, want ENODEV", err)
	}
}

func TestOpenFileRejectsPathWithoutVolume(t *testing.T) {
	if _, err := openFile(1, "/a.txt"); err != -defs.EINVAL {
		t.Fatalf("openFile without volume prefix = %v, want EINVAL", err)
	}
}

func TestCreateFolderAndFindFiles(t *testing.T) {
	f := mountTestVolume(t, "vol2")
	drv := f.Driver

	if err := drv.CreateFolder("docs"); err != defs.ENONE {
		t.Fatalf("CreateFolder: %v", err)
	}
	if err := drv.CreateFolder("docs"); err != -defs.EEXIST {
		t.Fatalf("duplicate CreateFolder = %v, want EEXIST", err)
	}

	for _, name := range []string{"docs/a.txt", "docs/b.txt"} {
		h, err := openFile(1, "vol2:/"+name)
		if err != defs.ENONE {
			t.Fatalf("openFile %q: %v", name, err)
		}
		writeFile(1, h, []byte("x"))
	}

	findHandle, first, ok := findFirstFile(1, "vol2:/docs")
	if !ok {
		t.Fatalf("findFirstFile found nothing")
	}
	names := map[string]bool{first: true}
	for {
		name, ok := findNextFile(1, findHandle)
		if !ok {
			break
		}
		names[name] = true
	}
	if !names["a.txt"] || !names["b.txt"] {
		t.Fatalf("directory listing = %v, want a.txt and b.txt", names)
	}
}

func TestDeleteFileAndNonEmptyDirRejected(t *testing.T) {
	f := mountTestVolume(t, "vol3")
	drv := f.Driver

	h, _ := openFile(1, "vol3:/x.txt")
	writeFile(1, h, []byte("data"))
	if !drv.PathExists("x.txt") {
		t.Fatalf("PathExists false for existing file")
	}
	if err := drv.DeleteFile("x.txt"); err != defs.ENONE {
		t.Fatalf("DeleteFile: %v", err)
	}
	if drv.PathExists("x.txt") {
		t.Fatalf("PathExists true after DeleteFile")
	}

	drv.CreateFolder("full")
	openFile(1, "vol3:/full/keep.txt")
	if err := drv.DeleteFile("full"); err != -defs.EBUSY {
		t.Fatalf("DeleteFile non-empty dir = %v, want EBUSY", err)
	}
}

func TestEnumVolumesAndGetVolumeInfo(t *testing.T) {
	mountTestVolume(t, "vol4")
	found := false
	for i := uint32(0); ; i++ {
		name, ok := enumVolumes(i)
		if !ok {
			break
		}
		if name == "vol4" {
			found = true
		}
	}
	if !found {
		t.Fatalf("enumVolumes never returned vol4")
	}
	total, _, fsType, ok := getVolumeInfo("vol4")
	if !ok || fsType != "EXFS" || total == 0 {
		t.Fatalf("getVolumeInfo = total=%d type=%q ok=%v", total, fsType, ok)
	}
}

func TestChecksumAgreesAcrossCalls(t *testing.T) {
	if storage.Checksum([]byte("a")) != storage.Checksum([]byte("a")) {
		t.Fatalf("storage.Checksum not stable across calls")
	}
}
