package limits

import "testing"

func TestTakenRespectsCeiling(t *testing.T) {
	s := MkSysatomic(2)
	if !s.Taken() {
		t.Fatalf("first Taken() should succeed")
	}
	if !s.Taken() {
		t.Fatalf("second Taken() should succeed")
	}
	if s.Taken() {
		t.Fatalf("third Taken() should fail once ceiling is reached")
	}
	if s.Cur() != 2 {
		t.Fatalf("Cur() = %d; want 2", s.Cur())
	}
}

func TestGivenFreesCapacity(t *testing.T) {
	s := MkSysatomic(1)
	if !s.Taken() {
		t.Fatalf("Taken() should succeed")
	}
	s.Given()
	if !s.Taken() {
		t.Fatalf("Taken() after Given() should succeed again")
	}
}

func TestGivenWithoutTakenPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("Given() without a matching Taken() should panic")
		}
	}()
	s := MkSysatomic(1)
	s.Given()
}
