package fs

import (
	"exos/internal/defs"
	"exos/internal/kmutex"
	"exos/internal/kobj"
	"exos/internal/limits"
	"exos/internal/stat"
	"exos/internal/syscall"
)

// dirMode/fileMode are the bits statFile writes into Stat_t.Wmode,
// distinguishing a directory handle from a plain file the way the
// driver's own IsDir flag does on disk.
const (
	fileMode = 0
	dirMode  = 1 << 31
)

// File_t is spec §3's File (open handle): which mounted FileSystem it
// belongs to, the owning task, and the driver's own handle for it. The
// position lives inside the driver's handle state (exfsHandle), since
// only the driver knows the format-specific shape of it; no transient
// buffer is kept, and no timestamps are stored (statFile reports zero).
type File_t struct {
	kobj.Header
	Fs           *FileSystem_t
	Task         uint64
	Name         string
	DriverHandle uint32
	IsDir        bool
}

var openFiles = kobj.NewTable[File_t]()

func init() {
	syscall.RegisterObjectDeleter(defs.ObjFile, closeFile)
}

func lockFile() { kmutex.File.LockMutex(currentTaskID(), kmutex.Infinite) }

func unlockFile() { kmutex.File.Unlock(currentTaskID()) }

func resolve(taskID uint64, path string) (*FileSystem_t, string, defs.Err_t) {
	volume, rest, ok := splitVolumePath(path)
	if !ok {
		return nil, "", -defs.EINVAL
	}
	fsys := lookupByName(volume)
	if fsys == nil || !fsys.Mounted {
		return nil, "", -defs.ENODEV
	}
	return fsys, rest, defs.ENONE
}

func openFile(taskID uint64, path string) (uint32, defs.Err_t) {
	fsys, rest, err := resolve(taskID, path)
	if err != defs.ENONE {
		return 0, err
	}
	if !limits.OpenFiles.Taken() {
		return 0, -defs.ENOMEM
	}
	dh, err := fsys.Driver.OpenFile(rest)
	if err != defs.ENONE {
		limits.OpenFiles.Given()
		return 0, err
	}
	f := &File_t{Fs: fsys, Task: taskID, Name: rest, DriverHandle: dh}
	lockFile()
	id := openFiles.Insert(f)
	unlockFile()
	f.Id = id
	f.Type = defs.ObjFile
	return uint32(id), defs.ENONE
}

func closeFile(id kobj.Id) defs.Err_t {
	lockFile()
	f := openFiles.Get(id)
	unlockFile()
	if f == nil {
		return -defs.ENOENT
	}
	err := f.Fs.Driver.CloseFile(f.DriverHandle)
	lockFile()
	openFiles.Remove(id)
	unlockFile()
	limits.OpenFiles.Given()
	return err
}

func getOpenFile(handle uint32) *File_t {
	lockFile()
	defer unlockFile()
	return openFiles.Get(kobj.Id(handle))
}

func readFile(taskID uint64, handle uint32, n uint32) ([]byte, defs.Err_t) {
	f := getOpenFile(handle)
	if f == nil {
		return nil, -defs.ENOENT
	}
	return f.Fs.Driver.Read(f.DriverHandle, n)
}

func writeFile(taskID uint64, handle uint32, data []byte) (uint32, defs.Err_t) {
	f := getOpenFile(handle)
	if f == nil {
		return 0, -defs.ENOENT
	}
	return f.Fs.Driver.Write(f.DriverHandle, data)
}

// statFile builds spec §3's File stat record for an open handle: size
// from the driver (falling back to the current position when the
// driver exposes no richer accessor), mode from the directory flag,
// and a device/inode pair from the owning filesystem and driver handle
// so two stats of the same file compare equal.
func statFile(f *File_t) (*stat.Stat_t, defs.Err_t) {
	pos, err := f.Fs.Driver.GetPosition(f.DriverHandle)
	if err != defs.ENONE {
		return nil, err
	}
	size := pos
	// Size is queried through the exfs-specific record accessor since
	// the generic FileSystemDriver interface has no Size method of its
	// own; exfsDriver exposes it via sizeOf.
	if e, ok := f.Fs.Driver.(interface {
		sizeOf(uint32) (uint64, defs.Err_t)
	}); ok {
		size, err = e.sizeOf(f.DriverHandle)
		if err != defs.ENONE {
			return nil, err
		}
	}

	var st stat.Stat_t
	st.Wdev(uint64(f.Fs.Id))
	st.Wino(uint64(f.DriverHandle))
	mode := uint32(fileMode)
	if f.IsDir {
		mode = dirMode
	}
	st.Wmode(mode)
	st.Wsize(size)
	st.Wtimes(0, 0, 0) // exfs records carry no timestamps on disk
	return &st, defs.ENONE
}

func getFileSize(taskID uint64, handle uint32) (uint64, defs.Err_t) {
	f := getOpenFile(handle)
	if f == nil {
		return 0, -defs.ENOENT
	}
	st, err := statFile(f)
	if err != defs.ENONE {
		return 0, err
	}
	return st.Size(), defs.ENONE
}

func getFilePosition(taskID uint64, handle uint32) (uint64, defs.Err_t) {
	f := getOpenFile(handle)
	if f == nil {
		return 0, -defs.ENOENT
	}
	return f.Fs.Driver.GetPosition(f.DriverHandle)
}

func setFilePosition(taskID uint64, handle uint32, pos uint64) defs.Err_t {
	f := getOpenFile(handle)
	if f == nil {
		return -defs.ENOENT
	}
	return f.Fs.Driver.SetPosition(f.DriverHandle, pos)
}

func findFirstFile(taskID uint64, dirPath string) (uint32, string, bool) {
	fsys, rest, err := resolve(taskID, dirPath)
	if err != defs.ENONE {
		return 0, "", false
	}
	if !limits.OpenFiles.Taken() {
		return 0, "", false
	}
	dh, err := fsys.Driver.OpenFile(rest)
	if err != defs.ENONE {
		limits.OpenFiles.Given()
		return 0, "", false
	}
	f := &File_t{Fs: fsys, Task: taskID, Name: rest, DriverHandle: dh, IsDir: true}
	lockFile()
	id := openFiles.Insert(f)
	unlockFile()
	f.Id = id
	f.Type = defs.ObjFile

	name, ok := fsys.Driver.OpenNext(dh)
	if !ok {
		return uint32(id), "", false
	}
	return uint32(id), name, true
}

func findNextFile(taskID uint64, findHandle uint32) (string, bool) {
	f := getOpenFile(findHandle)
	if f == nil || !f.IsDir {
		return "", false
	}
	return f.Fs.Driver.OpenNext(f.DriverHandle)
}

func enumVolumes(index uint32) (string, bool) {
	f := volumeAt(index)
	if f == nil {
		return "", false
	}
	return f.Name, true
}

func getVolumeInfo(name string) (total, free uint64, fsType string, ok bool) {
	f := lookupByName(name)
	if f == nil {
		return 0, 0, "", false
	}
	sectorSize := uint64(f.Disk.Dev.SectorSize())
	total = f.Partition.SectorCount * sectorSize
	if ex, isExfs := f.Driver.(*exfsDriver); isExfs {
		free = ex.freeBytes()
	}
	return total, free, f.Format, true
}
