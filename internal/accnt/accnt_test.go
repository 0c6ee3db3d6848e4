package accnt

import "testing"

func TestUtaddSystadd(t *testing.T) {
	var a Accnt_t
	a.Utadd(1000)
	a.Systadd(2000)
	if a.Userns != 1000 {
		t.Fatalf("Userns = %d, want 1000", a.Userns)
	}
	if a.Sysns != 2000 {
		t.Fatalf("Sysns = %d, want 2000", a.Sysns)
	}
}

func TestAddMerges(t *testing.T) {
	var a, b Accnt_t
	a.Utadd(500)
	b.Utadd(700)
	b.Systadd(100)
	a.Add(&b)
	if a.Userns != 1200 {
		t.Fatalf("Userns after Add = %d, want 1200", a.Userns)
	}
	if a.Sysns != 100 {
		t.Fatalf("Sysns after Add = %d, want 100", a.Sysns)
	}
}

func TestToRusageLayout(t *testing.T) {
	var a Accnt_t
	a.Utadd(int(2*1e9 + 500000)) // 2.0005s
	ru := a.Fetch()
	if len(ru) != 32 {
		t.Fatalf("Fetch() length = %d, want 32", len(ru))
	}
}
