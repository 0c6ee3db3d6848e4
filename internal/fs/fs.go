// Package fs implements the filesystem mount registry, open-file
// handle table, and the kernel's native on-disk format (spec glossary:
// "EXFS... 4-byte EXOS magic, cluster-based, 256-byte file records
// with direct cluster tables terminated by 0xFFFFFFFF"). Grounded on
// biscuit/src/fs/super.go's field-accessor style over a raw disk block
// and spec.md §3/§4.9's FileSystem/File data model, generalized the way
// DESIGN NOTES' "Ad-hoc polymorphism across drivers" asks: a clean
// FileSystemDriver interface internally, with Command(Function,
// Parameter) reserved for the external driver-ABI boundary.
package fs

import (
	"strings"

	"exos/internal/defs"
	"exos/internal/hashtable"
	"exos/internal/kmutex"
	"exos/internal/kobj"
	"exos/internal/sched"
	"exos/internal/storage"
	"exos/internal/syscall"
)

// FileSystemDriver is the clean, in-process interface a mounted
// filesystem implements (DESIGN NOTES: "FileSystemDriver { open, next,
// close, read, write, … }"). exfs.go's exfsDriver is the only concrete
// implementation this tree ships; unrecognized formats are left
// Unmounted rather than forced through a stub that can only fail.
type FileSystemDriver interface {
	OpenFile(path string) (uint32, defs.Err_t)
	OpenNext(dirHandle uint32) (string, bool)
	CloseFile(handle uint32) defs.Err_t
	Read(handle uint32, n uint32) ([]byte, defs.Err_t)
	Write(handle uint32, data []byte) (uint32, defs.Err_t)
	GetPosition(handle uint32) (uint64, defs.Err_t)
	SetPosition(handle uint32, pos uint64) defs.Err_t
	CreateFolder(path string) defs.Err_t
	DeleteFile(path string) defs.Err_t
	PathExists(path string) bool
}

// FileSystem_t is spec §3's FileSystem type: mount state, owning
// driver, the StorageUnit it sits on, and the partition descriptor
// that located it.
type FileSystem_t struct {
	kobj.Header
	Name      string
	Mounted   bool
	Disk      *storage.Disk_t
	Partition storage.Partition
	Format    string // "EXFS", "FAT32", "NTFS", ... (probe hint or confirmed)
	Driver    FileSystemDriver
}

var (
	fsTable = kobj.NewTable[FileSystem_t]()

	// fsByName indexes fsTable by logical volume name (e.g. "hd0p1") for
	// lookupByName/resolve, which run on every OpenFile; fsTable itself
	// is ordered by kobj.Id and has no name index of its own.
	fsByName = hashtable.MkHashtable[string, *FileSystem_t](hashtable.Hashstring)
)

func init() {
	storage.MountHook = mountPartition
	syscall.RegisterObjectDeleter(defs.ObjFileSystem, deleteFileSystem)

	syscall.EnumVolumesHook = enumVolumes
	syscall.GetVolumeInfoHook = getVolumeInfo
	syscall.OpenFileHook = openFile
	syscall.ReadFileHook = readFile
	syscall.WriteFileHook = writeFile
	syscall.GetFileSizeHook = getFileSize
	syscall.GetFilePositionHook = getFilePosition
	syscall.SetFilePositionHook = setFilePosition
	syscall.FindFirstFileHook = findFirstFile
	syscall.FindNextFileHook = findNextFile
}

func currentTaskID() uint64 {
	return sched.CurrentTaskID()
}

func lockFs()   { kmutex.FileSystem.LockMutex(currentTaskID(), kmutex.Infinite) }
func unlockFs() { kmutex.FileSystem.Unlock(currentTaskID()) }

// mountPartition is storage.MountHook: it probes p for the EXFS magic
// and, on a match, mounts it; any other format is recorded Unmounted
// with Format set to storage's magic-byte hint so diagnostics and
// EnumVolumes can still report it exists (spec §4.9 keeps "mounted and
// unmounted" as two global lists, not a pass/fail decision).
func mountPartition(d *storage.Disk_t, p storage.Partition) {
	fsys := &FileSystem_t{Name: p.Name, Disk: d, Partition: p, Format: p.FsHint}

	if sb, ok := readSuperblock(d, p); ok {
		fsys.Format = "EXFS"
		fsys.Driver = newExfsDriver(fsys, sb)
		fsys.Mounted = true
	}

	lockFs()
	id := fsTable.Insert(fsys)
	fsys.Id = id
	fsys.Type = defs.ObjFileSystem
	fsByName.Insert(fsys.Name, fsys)
	unlockFs()
}

func deleteFileSystem(id kobj.Id) defs.Err_t {
	lockFs()
	defer unlockFs()
	f := fsTable.Get(id)
	if f == nil {
		return -defs.ENODEV
	}
	fsTable.Remove(id)
	fsByName.Remove(f.Name)
	return defs.ENONE
}

// lookupByName returns the mounted (or unmounted) filesystem with the
// given logical name, or nil.
func lookupByName(name string) *FileSystem_t {
	f, ok := fsByName.Lookup(name)
	if !ok {
		return nil
	}
	return f
}

// volumeAt returns the index'th filesystem in insertion order, for
// EnumVolumes's index-based iteration.
func volumeAt(index uint32) *FileSystem_t {
	var list []*FileSystem_t
	fsTable.Apply(func(_ kobj.Id, f *FileSystem_t) { list = append(list, f) })
	if int(index) >= len(list) {
		return nil
	}
	return list[index]
}

// splitVolumePath splits "hd0p1:/dir/file.txt" into its volume name and
// in-filesystem path, the naming convention EnumVolumes's logical names
// (spec §4.9: "e.g. hd0p1") make natural for OpenFile's single string
// argument.
func splitVolumePath(path string) (volume, rest string, ok bool) {
	i := strings.IndexByte(path, ':')
	if i < 0 {
		return "", "", false
	}
	return path[:i], path[i+1:], true
}
