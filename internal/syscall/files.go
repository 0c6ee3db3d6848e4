package syscall

import (
	"exos/internal/defs"
	"exos/internal/sched"
	"exos/internal/vm"
)

func init() {
	register(FuncEnumVolumes, defs.PrivUser, enumVolumesCall)
	register(FuncGetVolumeInfo, defs.PrivUser, getVolumeInfoCall)
	register(FuncOpenFile, defs.PrivUser, openFileCall)
	register(FuncReadFile, defs.PrivUser, readFileCall)
	register(FuncWriteFile, defs.PrivUser, writeFileCall)
	register(FuncGetFileSize, defs.PrivUser, getFileSizeCall)
	register(FuncGetFilePosition, defs.PrivUser, getFilePositionCall)
	register(FuncSetFilePosition, defs.PrivUser, setFilePositionCall)
	register(FuncFindFirstFile, defs.PrivUser, findFirstFileCall)
	register(FuncFindNextFile, defs.PrivUser, findNextFileCall)
}

// File-system hooks. internal/fs's filesystem registry (spec §4.9) owns
// the mounted-volume list and open-file table; syscall cannot import it
// directly without creating fs -> syscall -> fs (fs's mount code itself
// needs to report results back through these same calls), so fs's
// init() installs these the way sched installs proc.CreateInitialTask.
// Every default returns ENODEV or reports not-found until that wiring exists.
var (
	EnumVolumesHook   = func(index uint32) (name string, ok bool) { return "", false }
	GetVolumeInfoHook = func(name string) (totalBytes, freeBytes uint64, fsType string, ok bool) {
		return 0, 0, "", false
	}
	OpenFileHook = func(taskID uint64, path string) (handle uint32, err defs.Err_t) {
		return 0, -defs.ENODEV
	}
	ReadFileHook = func(taskID uint64, handle uint32, n uint32) (data []byte, err defs.Err_t) {
		return nil, -defs.ENODEV
	}
	WriteFileHook = func(taskID uint64, handle uint32, data []byte) (written uint32, err defs.Err_t) {
		return 0, -defs.ENODEV
	}
	GetFileSizeHook = func(taskID uint64, handle uint32) (size uint64, err defs.Err_t) {
		return 0, -defs.ENODEV
	}
	GetFilePositionHook = func(taskID uint64, handle uint32) (pos uint64, err defs.Err_t) {
		return 0, -defs.ENODEV
	}
	SetFilePositionHook = func(taskID uint64, handle uint32, pos uint64) defs.Err_t {
		return -defs.ENODEV
	}
	FindFirstFileHook = func(taskID uint64, dirPath string) (findHandle uint32, name string, ok bool) {
		return 0, "", false
	}
	FindNextFileHook = func(taskID uint64, findHandle uint32) (name string, ok bool) {
		return "", false
	}
)

const volNameBufSize = 64

func enumVolumesCall(param uint32) uint32 {
	if !checkPtr(param, 4+volNameBufSize) {
		return errRet(-defs.EFAULT)
	}
	index, _ := readU32(param)
	name, ok := EnumVolumesHook(index)
	if !ok {
		return errRet(-defs.ENOENT)
	}
	buf := make([]byte, volNameBufSize)
	copy(buf, name)
	writeBytes(param+4, buf)
	return okRet(uint32(defs.ENONE))
}

const volumeInfoArgsSize = 4
const volumeInfoResultSize = 8 + 8 + 16

func getVolumeInfoCall(param uint32) uint32 {
	if !checkPtr(param, volumeInfoArgsSize+volumeInfoResultSize) {
		return errRet(-defs.EFAULT)
	}
	namePtr, _ := readU32(param)
	name, ok := readCString(namePtr, maxNameLen)
	if !ok {
		return errRet(-defs.EFAULT)
	}
	total, free, fsType, found := GetVolumeInfoHook(name)
	if !found {
		return errRet(-defs.ENOENT)
	}
	out := param + volumeInfoArgsSize
	writeU64(out, total)
	writeU64(out+8, free)
	typeBuf := make([]byte, 16)
	copy(typeBuf, fsType)
	writeBytes(out+16, typeBuf)
	return okRet(uint32(defs.ENONE))
}

func openFileCall(param uint32) uint32 {
	path, ok := readCString(param, maxNameLen)
	if !ok {
		return errRet(-defs.EFAULT)
	}
	handle, err := OpenFileHook(sched.CurrentTaskID(), path)
	if err != defs.ENONE {
		return errRet(err)
	}
	return okRet(handle)
}

// readWriteArgsSize is {Handle, BufferPtr, Count}.
const readWriteArgsSize = 3 * 4

func readFileCall(param uint32) uint32 {
	if !checkPtr(param, readWriteArgsSize) {
		return errRet(-defs.EFAULT)
	}
	handle, _ := readU32(param)
	bufPtr, _ := readU32(param + 4)
	count, _ := readU32(param + 8)

	data, err := ReadFileHook(sched.CurrentTaskID(), handle, count)
	if err != defs.ENONE {
		return errRet(err)
	}
	if !writeBytes(bufPtr, data) {
		return errRet(-defs.EFAULT)
	}
	return okRet(uint32(len(data)))
}

func writeFileCall(param uint32) uint32 {
	if !checkPtr(param, readWriteArgsSize) {
		return errRet(-defs.EFAULT)
	}
	handle, _ := readU32(param)
	bufPtr, _ := readU32(param + 4)
	count, _ := readU32(param + 8)

	as := currentAS()
	if !checkPtr(bufPtr, int(count)) || as == nil {
		return errRet(-defs.EFAULT)
	}
	data := make([]byte, count)
	vm.ReadBytes(as, bufPtr, data)
	n, err := WriteFileHook(sched.CurrentTaskID(), handle, data)
	if err != defs.ENONE {
		return errRet(err)
	}
	return okRet(n)
}

func getFileSizeCall(param uint32) uint32 {
	size, err := GetFileSizeHook(sched.CurrentTaskID(), param)
	if err != defs.ENONE {
		return errRet(err)
	}
	return okRet(uint32(size))
}

func getFilePositionCall(param uint32) uint32 {
	pos, err := GetFilePositionHook(sched.CurrentTaskID(), param)
	if err != defs.ENONE {
		return errRet(err)
	}
	return okRet(uint32(pos))
}

// setFilePositionArgsSize is {Handle, PositionLow, PositionHigh}.
const setFilePositionArgsSize = 3 * 4

func setFilePositionCall(param uint32) uint32 {
	if !checkPtr(param, setFilePositionArgsSize) {
		return errRet(-defs.EFAULT)
	}
	handle, _ := readU32(param)
	lo, _ := readU32(param + 4)
	hi, _ := readU32(param + 8)
	pos := uint64(hi)<<32 | uint64(lo)
	return errRet(SetFilePositionHook(sched.CurrentTaskID(), handle, pos))
}

const findResultSize = maxNameLen

// findFirstArgsSize is {DirPathPtr, OutNameBufPtr}.
const findFirstArgsSize = 2 * 4

func findFirstFileCall(param uint32) uint32 {
	if !checkPtr(param, findFirstArgsSize) {
		return errRet(-defs.EFAULT)
	}
	dirPtr, _ := readU32(param)
	outPtr, _ := readU32(param + 4)
	dir, ok := readCString(dirPtr, maxNameLen)
	if !ok {
		return errRet(-defs.EFAULT)
	}
	handle, name, found := FindFirstFileHook(sched.CurrentTaskID(), dir)
	if !found {
		return errRet(-defs.ENOENT)
	}
	buf := make([]byte, findResultSize)
	copy(buf, name)
	writeBytes(outPtr, buf)
	return okRet(handle)
}

// findNextArgsSize is {FindHandle, OutNameBufPtr}.
const findNextArgsSize = 2 * 4

func findNextFileCall(param uint32) uint32 {
	if !checkPtr(param, findNextArgsSize) {
		return errRet(-defs.EFAULT)
	}
	handle, _ := readU32(param)
	outPtr, _ := readU32(param + 4)
	name, found := FindNextFileHook(sched.CurrentTaskID(), handle)
	if !found {
		return errRet(-defs.ENOENT)
	}
	buf := make([]byte, findResultSize)
	copy(buf, name)
	writeBytes(outPtr, buf)
	return okRet(uint32(defs.ENONE))
}
