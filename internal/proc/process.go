// Package proc implements the process model of spec §4.4: creating an
// address space from a parsed executable image, committing its
// code/data/heap, and registering the result in the global process
// table. Grounded on original_source/kernel/source/Process.h's PROCESS
// struct (Security, Desktop, Parent, Privilege, PageDirectory, HeapBase/
// HeapSize, FileName/CommandLine, Objects), carried into Go as a
// kobj.Header-tagged struct addressed by kobj.Id the way
// biscuit/src/fs/blk.go's block list is generalized in internal/kobj.
package proc

import (
	"sync"

	"exos/internal/aspace"
	"exos/internal/defs"
	"exos/internal/kmutex"
	"exos/internal/kobj"
	"exos/internal/mem"
	"exos/internal/vm"
)

// Process_t is one running process: its address space, heap bookkeeping,
// and security descriptor.
type Process_t struct {
	Hdr kobj.Header

	mu          sync.Mutex
	Security    Security
	Parent      defs.Pid_t
	Privilege   defs.Privilege
	Vm          *vm.Vm_t
	PageDir     mem.Pa_t
	HeapBase    uint32
	HeapSize    uint32
	FileName    string
	CommandLine string
	Objects     []kobj.Id

	heapMu *kmutex.Mutex_t
}

// Processes is the global process table (spec §4.4's "global list").
var Processes = kobj.NewTable[Process_t]()

// CreateProcessInfo names the inputs CreateProcess needs: the raw
// executable image bytes, its origin name, an optional command line, the
// parent pid (0 for none), the caller's security descriptor to inherit
// from, and the privilege level to run at.
type CreateProcessInfo struct {
	Image       []byte
	FileName    string
	CommandLine string
	Parent      defs.Pid_t
	Caller      Security
	Privilege   defs.Privilege
}

// InitialTaskArgs carries everything CreateProcess has already committed
// into the new address space that the scheduler needs to build the
// process's first task: the entry point, and the bounds of the user and
// system stacks CreateProcess allocated for it.
type InitialTaskArgs struct {
	EntryVA      uint32
	StackBase    uint32
	StackSize    uint32
	SysStackBase uint32
	SysStackSize uint32
}

// CreateInitialTask is the hook sched.init() wires up to actually spin
// off the process's first task once the scheduler package exists. proc
// cannot import sched directly: a Task_t belongs to a Process_t, so the
// dependency runs the other way. The default always fails, matching the
// settable-hook pattern used by stats.Rdtsc/vm.Invlpg/vm.LoadCR3.
var CreateInitialTask = func(p *Process_t, args InitialTaskArgs) defs.Err_t {
	return -defs.ENOTIMPL
}

// CreateProcess implements spec §4.4's five steps: parse the image,
// build a fresh address space, commit code/data/heap/stacks into it,
// register the process, and hand off to the scheduler for its initial
// task.
func CreateProcess(info CreateProcessInfo) (kobj.Id, defs.Err_t) {
	img, err := ParseImage(info.Image)
	if err != defs.ENONE {
		return 0, err
	}

	dirPA, ok := vm.AllocPageDirectory()
	if !ok {
		return 0, -defs.ENOMEM
	}
	as := &vm.Vm_t{Pmap: dirPA, SearchBase: aspace.UserBase, SearchEnd: aspace.UserEnd}

	codeVA := as.AllocRegion(img.CodeBase, 0, img.CodeSize, vm.Commit|vm.ReadWrite)
	if codeVA == 0 {
		return 0, -defs.ENOMEM
	}
	vm.WriteBytes(as, codeVA, img.Code)
	if img.DataSize > 0 {
		dataVA := as.AllocRegion(img.DataBase, 0, img.DataSize, vm.Commit|vm.ReadWrite)
		if dataVA == 0 {
			return 0, -defs.ENOMEM
		}
		vm.WriteBytes(as, dataVA, img.Data)
	}

	heapSize := img.HeapRequested
	if heapSize < img.HeapMinimum {
		heapSize = img.HeapMinimum
	}
	heapBase := as.AllocRegion(0, 0, heapSize, vm.Commit|vm.ReadWrite)
	if heapBase == 0 {
		return 0, -defs.ENOMEM
	}

	stackSize := img.StackRequested
	if stackSize < img.StackMinimum {
		stackSize = img.StackMinimum
	}
	stackBase := as.AllocRegion(0, 0, stackSize, vm.Commit|vm.ReadWrite|vm.AtOrOver)
	if stackBase == 0 {
		return 0, -defs.ENOMEM
	}
	sysStackBase := as.AllocRegion(0, 0, uint32(mem.PGSIZE), vm.Commit|vm.ReadWrite)
	if sysStackBase == 0 {
		return 0, -defs.ENOMEM
	}

	p := &Process_t{
		Hdr:         kobj.Header{Type: defs.ObjProcess},
		Security:    NewSecurity(info.Caller.User, info.Caller.Group),
		Parent:      info.Parent,
		Privilege:   info.Privilege,
		Vm:          as,
		PageDir:     dirPA,
		HeapBase:    heapBase,
		HeapSize:    heapSize,
		FileName:    info.FileName,
		CommandLine: info.CommandLine,
	}
	p.heapMu = kmutex.New("process-heap", kmutex.OrderMemory)
	p.Hdr.Ref()

	depth := kmutex.Process.LockMutex(0, kmutex.Infinite)
	if depth == 0 {
		return 0, -defs.ETIMEDOUT
	}
	id := Processes.Insert(p)
	kmutex.Process.Unlock(0)
	p.Hdr.Id = id

	args := InitialTaskArgs{
		EntryVA:      img.EntryPoint,
		StackBase:    stackBase,
		StackSize:    stackSize,
		SysStackBase: sysStackBase,
		SysStackSize: uint32(mem.PGSIZE),
	}
	if cerr := CreateInitialTask(p, args); cerr != defs.ENONE {
		KillProcess(id)
		return 0, cerr
	}
	return id, defs.ENONE
}

// HeapLock acquires the process's heap mutex (spec §4.6: HeapMutex is a
// Memory-order lock distinct from the process's own structural mutex).
func (p *Process_t) HeapLock(taskID uint64) int {
	return p.heapMu.LockMutex(taskID, kmutex.Infinite)
}

// HeapUnlock releases the process's heap mutex.
func (p *Process_t) HeapUnlock(taskID uint64) {
	p.heapMu.Unlock(taskID)
}

// KillProcess unlinks the process from the global table, clears its
// Objects list and frees its page-directory frame. It does not release
// the kernel objects that list named, does not free the frames behind
// its user regions, and does not mark its tasks Dead.
func KillProcess(id kobj.Id) defs.Err_t {
	depth := kmutex.Process.LockMutex(0, kmutex.Infinite)
	if depth == 0 {
		return -defs.ETIMEDOUT
	}
	p := Processes.Get(id)
	if p == nil {
		kmutex.Process.Unlock(0)
		return -defs.EINVAL
	}
	Processes.Remove(id)
	kmutex.Process.Unlock(0)

	p.mu.Lock()
	objects := p.Objects
	p.Objects = nil
	p.mu.Unlock()

	for _, oid := range objects {
		_ = oid // object-class-specific teardown lives with each registry
	}

	if p.Vm != nil {
		mem.Physmem.FreePhysicalPage(p.PageDir)
	}
	return defs.ENONE
}

// Lookup returns the process registered at id, or nil.
func Lookup(id kobj.Id) *Process_t {
	return Processes.Get(id)
}

// NewKernelProcess registers the process object standing in for the
// kernel's own already-running address space: no image to parse, no
// user code/data/stack regions, PageDir/Vm point at vm.KernelVm rather
// than a freshly allocated directory. internal/kernel.Init calls this
// once at boot so the initial task has a Process_t the same way any
// user task does, instead of special-casing a nil Process everywhere
// kobj/accounting code expects one.
func NewKernelProcess() (kobj.Id, defs.Err_t) {
	p := &Process_t{
		Hdr:       kobj.Header{Type: defs.ObjProcess},
		Security:  NewSecurity(0, 0),
		Privilege: defs.PrivKernel,
		Vm:        vm.KernelVm,
		PageDir:   vm.KernelVm.Pmap,
		FileName:  "kernel",
	}
	p.heapMu = kmutex.New("process-heap", kmutex.OrderMemory)
	p.Hdr.Ref()

	depth := kmutex.Process.LockMutex(0, kmutex.Infinite)
	if depth == 0 {
		return 0, -defs.ETIMEDOUT
	}
	id := Processes.Insert(p)
	kmutex.Process.Unlock(0)
	p.Hdr.Id = id
	return id, defs.ENONE
}
