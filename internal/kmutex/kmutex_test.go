package kmutex

import "testing"

func TestLockUnlockBasic(t *testing.T) {
	m := New("test1", OrderTask)
	if d := m.LockMutex(1, Infinite); d != 1 {
		t.Fatalf("LockMutex() = %d, want 1", d)
	}
	if _, held := m.Owner(); !held {
		t.Fatalf("mutex should report held after LockMutex")
	}
	m.Unlock(1)
	if _, held := m.Owner(); held {
		t.Fatalf("mutex should report unheld after Unlock")
	}
}

func TestRecursiveLockBumpsDepth(t *testing.T) {
	m := New("test2", OrderTask)
	m.LockMutex(1, Infinite)
	d := m.LockMutex(1, Infinite)
	if d != 2 {
		t.Fatalf("second LockMutex() by owner = %d, want 2", d)
	}
	m.Unlock(1)
	if m.Depth() != 1 {
		t.Fatalf("Depth() after one Unlock = %d, want 1", m.Depth())
	}
	m.Unlock(1)
	if m.Depth() != 0 {
		t.Fatalf("Depth() after final Unlock = %d, want 0", m.Depth())
	}
}

func TestTimeoutReturnsZero(t *testing.T) {
	m := New("test3", OrderTask)
	m.LockMutex(1, Infinite)
	d := m.LockMutex(2, 1) // 1ms timeout, held by a different task
	if d != 0 {
		t.Fatalf("LockMutex() by non-owner with short timeout = %d, want 0", d)
	}
}

func TestUnlockByNonOwnerPanics(t *testing.T) {
	m := New("test4", OrderTask)
	m.LockMutex(1, Infinite)
	defer func() {
		if recover() == nil {
			t.Fatalf("Unlock by non-owner should panic")
		}
	}()
	m.Unlock(2)
}

func TestReleaseAllOwnedBy(t *testing.T) {
	m1 := New("test5a", OrderProcess)
	m2 := New("test5b", OrderTask)
	m1.LockMutex(7, Infinite)
	m2.LockMutex(7, Infinite)
	ReleaseAllOwnedBy(7)
	if _, held := m1.Owner(); held {
		t.Fatalf("m1 should be released after ReleaseAllOwnedBy")
	}
	if _, held := m2.Owner(); held {
		t.Fatalf("m2 should be released after ReleaseAllOwnedBy")
	}
}

func TestLockOrderViolationDetected(t *testing.T) {
	before := ViolationCount()
	task := New("test6a", OrderTask)
	memory := New("test6b", OrderMemory)
	// Task (higher order) then Memory (lower order) is a violation.
	task.LockMutex(42, Infinite)
	memory.LockMutex(42, Infinite)
	if ViolationCount() <= before {
		t.Fatalf("expected a lock order violation to be recorded")
	}
	ReleaseAllOwnedBy(42)
}

func TestDeclaredIncludesFixedSubsystemMutexes(t *testing.T) {
	byName := map[string]*Mutex_t{}
	for _, m := range Declared() {
		byName[m.Name()] = m
	}
	for _, name := range []string{"Kernel", "Memory", "Schedule", "Desktop",
		"Process", "Task", "FileSystem", "File", "Console"} {
		m, ok := byName[name]
		if !ok {
			t.Fatalf("Declared() missing %q", name)
		}
		if m.Order().String() != name {
			t.Fatalf("Declared()[%q].Order() = %v, want %q", name, m.Order(), name)
		}
	}
}
