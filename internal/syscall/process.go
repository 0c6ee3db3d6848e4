package syscall

import (
	"exos/internal/defs"
	"exos/internal/kobj"
	"exos/internal/proc"
	"exos/internal/sched"
	"exos/internal/vm"
)

func init() {
	register(FuncCreateProcess, defs.PrivUser, createProcessCall)
	register(FuncKillProcess, defs.PrivUser, killProcessCall)
	register(FuncGetProcessInfo, defs.PrivUser, getProcessInfoCall)
	register(FuncDeleteObject, defs.PrivUser, deleteObjectCall)

	RegisterObjectDeleter(defs.ObjProcess, func(id kobj.Id) defs.Err_t {
		return proc.KillProcess(id)
	})
	RegisterObjectDeleter(defs.ObjTask, func(id kobj.Id) defs.Err_t {
		return sched.KillTask(id)
	})
}

// createProcessArgsSize is {ImagePtr, ImageSize, FileNamePtr, FileNameLen,
// CmdLinePtr, CmdLineLen} packed as six little-endian U32s, the argument
// struct CreateProcess's single parameter points to (spec §4.8: "a
// pointer to a caller-defined argument struct when more args are
// needed").
const createProcessArgsSize = 6 * 4

const maxNameLen = 256

func createProcessCall(param uint32) uint32 {
	if !checkPtr(param, createProcessArgsSize) {
		return errRet(-defs.EFAULT)
	}
	imagePtr, _ := readU32(param + 0)
	imageSize, _ := readU32(param + 4)
	fileNamePtr, _ := readU32(param + 8)
	fileNameLen, _ := readU32(param + 12)
	cmdLinePtr, _ := readU32(param + 16)
	cmdLineLen, _ := readU32(param + 20)

	if imageSize == 0 || imageSize > 64<<20 {
		return errRet(-defs.EINVAL)
	}
	if !checkPtr(imagePtr, int(imageSize)) {
		return errRet(-defs.EFAULT)
	}
	as := currentAS()
	if as == nil {
		return errRet(-defs.EFAULT)
	}
	image := make([]byte, imageSize)
	vm.ReadBytes(as, imagePtr, image)

	fileName := ""
	if fileNamePtr != 0 {
		if n := int(fileNameLen); n > 0 && n <= maxNameLen {
			if s, ok := readCString(fileNamePtr, n); ok {
				fileName = s
			}
		}
	}
	cmdLine := ""
	if cmdLinePtr != 0 {
		if n := int(cmdLineLen); n > 0 && n <= maxNameLen {
			if s, ok := readCString(cmdLinePtr, n); ok {
				cmdLine = s
			}
		}
	}

	caller := proc.NewSecurity(0, 0)
	parent := defs.Pid_t(0)
	if t := sched.CurrentTask(); t != nil && t.Process != nil {
		caller = t.Process.Security
		parent = defs.Pid_t(t.Process.Hdr.Id)
	}

	id, err := proc.CreateProcess(proc.CreateProcessInfo{
		Image:       image,
		FileName:    fileName,
		CommandLine: cmdLine,
		Parent:      parent,
		Caller:      caller,
		Privilege:   defs.PrivUser,
	})
	if err != defs.ENONE {
		return errRet(err)
	}
	return okRet(uint32(id))
}

func killProcessCall(param uint32) uint32 {
	return errRet(proc.KillProcess(kobj.Id(param)))
}

// processInfoSize mirrors what GetProcessInfo writes back: HeapBase,
// HeapSize, Privilege, Security.User, Security.Group, Security.
// Permissions.
const processInfoSize = 6 * 4

func getProcessInfoCall(param uint32) uint32 {
	if !checkPtr(param, 4+processInfoSize) {
		return errRet(-defs.EFAULT)
	}
	procID, _ := readU32(param)
	outPtr := param + 4

	p := proc.Lookup(kobj.Id(procID))
	if p == nil {
		return errRet(-defs.EINVAL)
	}
	fields := []uint32{
		p.HeapBase, p.HeapSize, uint32(p.Privilege),
		p.Security.User, p.Security.Group, uint32(p.Security.Permissions),
	}
	for i, v := range fields {
		writeU32(outPtr+uint32(i*4), v)
	}
	return okRet(uint32(defs.ENONE))
}

// ObjectDeleter is a generic kernel-object destructor keyed by the
// object header's type id (spec §3's "kernel object header" / §4.8's
// generic DeleteObject entry). internal/storage and internal/fs
// register theirs the same way this package registers Process and Task,
// since DeleteObject has to dispatch across tables it cannot import
// without a cycle.
type ObjectDeleter func(kobj.Id) defs.Err_t

var objectDeleters = map[defs.ObjType]ObjectDeleter{}

// RegisterObjectDeleter installs the destructor for objects of type t.
func RegisterObjectDeleter(t defs.ObjType, fn ObjectDeleter) {
	objectDeleters[t] = fn
}

// deleteObjectArgsSize is {TypeId, Id} as two U32s: the caller names
// both the object's kind and its handle, since handle ids are only
// unique within their own table.
const deleteObjectArgsSize = 2 * 4

func deleteObjectCall(param uint32) uint32 {
	if !checkPtr(param, deleteObjectArgsSize) {
		return errRet(-defs.EFAULT)
	}
	typeID, _ := readU32(param)
	id, _ := readU32(param + 4)
	fn, ok := objectDeleters[defs.ObjType(typeID)]
	if !ok {
		return errRet(-defs.ENOTIMPL)
	}
	return errRet(fn(kobj.Id(id)))
}
