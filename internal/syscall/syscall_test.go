package syscall

import (
	"testing"

	"exos/internal/defs"
	"exos/internal/kobj"
	"exos/internal/trap"
)

func TestDispatchUnknownFuncIdReturnsEinval(t *testing.T) {
	f := &trap.InterruptFrame{Eax: uint32(numFuncs) + 100}
	Dispatch(f)
	if int32(f.Eax) != int32(-defs.EINVAL) {
		t.Fatalf("Eax = %d, want %d", int32(f.Eax), -defs.EINVAL)
	}
}

func TestDispatchUnregisteredEntryReturnsNotImpl(t *testing.T) {
	saved := Table[FuncListUsers]
	Table[FuncListUsers] = Entry{}
	defer func() { Table[FuncListUsers] = saved }()

	f := &trap.InterruptFrame{Eax: uint32(FuncListUsers)}
	Dispatch(f)
	if int32(f.Eax) != int32(-defs.ENOTIMPL) {
		t.Fatalf("Eax = %d, want ENOTIMPL", int32(f.Eax))
	}
}

func TestDispatchEnforcesKernelPrivilege(t *testing.T) {
	saved := Table[FuncSetSystemTime]
	called := false
	Table[FuncSetSystemTime] = Entry{
		Privilege: defs.PrivKernel,
		Handler:   func(uint32) uint32 { called = true; return okRet(uint32(defs.ENONE)) },
	}
	defer func() { Table[FuncSetSystemTime] = saved }()

	f := &trap.InterruptFrame{Eax: uint32(FuncSetSystemTime), Cs: 0x1B} // user CS
	Dispatch(f)
	if called {
		t.Fatalf("supervisor-only handler ran for a user-mode caller")
	}
	if int32(f.Eax) != int32(-defs.EPERM) {
		t.Fatalf("Eax = %d, want EPERM", int32(f.Eax))
	}
}

func TestDispatchAllowsKernelCallerForKernelEntry(t *testing.T) {
	saved := Table[FuncSetSystemTime]
	called := false
	Table[FuncSetSystemTime] = Entry{
		Privilege: defs.PrivKernel,
		Handler:   func(uint32) uint32 { called = true; return okRet(uint32(defs.ENONE)) },
	}
	defer func() { Table[FuncSetSystemTime] = saved }()

	f := &trap.InterruptFrame{Eax: uint32(FuncSetSystemTime), Cs: 0x08} // kernel CS
	Dispatch(f)
	if !called {
		t.Fatalf("supervisor entry did not run for a kernel-mode caller")
	}
}

func TestRecordAndReturnOnlyTracksFailure(t *testing.T) {
	const taskID = 0
	setLastError(taskID, defs.ENONE)
	recordAndReturn(taskID, okRet(uint32(defs.ENONE)))
	if e := getLastError(taskID); e != defs.ENONE {
		t.Fatalf("getLastError = %v, want ENONE", e)
	}
	recordAndReturn(taskID, errRet(-defs.ENOMEM))
	if e := getLastError(taskID); e != -defs.ENOMEM {
		t.Fatalf("getLastError = %v, want -ENOMEM", e)
	}
	// A subsequent success must not clobber the recorded failure.
	recordAndReturn(taskID, okRet(5))
	if e := getLastError(taskID); e != -defs.ENOMEM {
		t.Fatalf("getLastError after success = %v, want it unchanged at -ENOMEM", e)
	}
}

func TestCreateMutexLockUnlockRoundTrip(t *testing.T) {
	id := createMutexCall(0)
	m := lookupMutex(kobj.Id(id))
	if m == nil {
		t.Fatalf("createMutexCall did not register a lookup-able mutex")
	}
	if depth := m.LockMutex(1, 0); depth != 1 {
		t.Fatalf("LockMutex depth = %d, want 1", depth)
	}
	m.Unlock(1)

	if e := deleteMutexCall(id); int32(e) != int32(defs.ENONE) {
		t.Fatalf("deleteMutexCall = %d, want ENONE", int32(e))
	}
	if lookupMutex(kobj.Id(id)) != nil {
		t.Fatalf("mutex still present after delete")
	}
}

func TestUnlockMutexUnknownHandleFails(t *testing.T) {
	if e := int32(unlockMutexCall(0xdead)); e != int32(-defs.EINVAL) {
		t.Fatalf("unlockMutexCall = %d, want EINVAL", e)
	}
}

func TestDeleteObjectUnknownTypeHasNoDeleter(t *testing.T) {
	// 0xff is not a registered defs.ObjType.
	if fn, ok := objectDeleters[defs.ObjType(0xff)]; ok || fn != nil {
		t.Fatalf("unexpected deleter registered for unused type id")
	}
}

func TestDeleteObjectDispatchesToRegisteredType(t *testing.T) {
	var gotID kobj.Id
	RegisterObjectDeleter(defs.ObjType(250), func(id kobj.Id) defs.Err_t {
		gotID = id
		return defs.ENONE
	})
	defer delete(objectDeleters, defs.ObjType(250))

	fn, ok := objectDeleters[defs.ObjType(250)]
	if !ok {
		t.Fatalf("RegisterObjectDeleter did not install the deleter")
	}
	if err := fn(kobj.Id(42)); err != defs.ENONE {
		t.Fatalf("deleter returned %v, want ENONE", err)
	}
	if gotID != 42 {
		t.Fatalf("deleter saw id %d, want 42", gotID)
	}
}

func TestHeapAllocWithoutCurrentTaskFails(t *testing.T) {
	if e := int32(heapAllocCall(64)); e != int32(-defs.EUNEXPECTED) {
		t.Fatalf("heapAllocCall = %d, want EUNEXPECTED", e)
	}
}

func TestGetCurrentUserWithoutTaskFails(t *testing.T) {
	if e := int32(getCurrentUserCall(0)); e != int32(-defs.EUNEXPECTED) {
		t.Fatalf("getCurrentUserCall = %d, want EUNEXPECTED", e)
	}
}

func TestLoginRejectsBadCredentialsPointer(t *testing.T) {
	// With no current task, currentAS() is nil, so checkPtr must fail
	// before any credential lookup happens.
	if e := int32(loginCall(0)); e != int32(-defs.EFAULT) {
		t.Fatalf("loginCall = %d, want EFAULT", e)
	}
}

func TestHashPasswordDeterministic(t *testing.T) {
	if hashPassword("admin") != hashPassword("admin") {
		t.Fatalf("hashPassword not deterministic")
	}
	if hashPassword("admin") == hashPassword("notadmin") {
		t.Fatalf("hashPassword collided on distinct inputs")
	}
}

func TestRoundAlign(t *testing.T) {
	cases := map[uint32]uint32{0: 0, 1: 16, 15: 16, 16: 16, 17: 32}
	for in, want := range cases {
		if got := roundAlign(in); got != want {
			t.Errorf("roundAlign(%d) = %d, want %d", in, got, want)
		}
	}
}
