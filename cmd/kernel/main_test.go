package main

import "testing"

func TestBootInfoAddrIsStubBasePlusOffset(t *testing.T) {
	if bootInfoAddr != stubBase+startupInfoOffset {
		t.Fatalf("bootInfoAddr = %#x, want stubBase+startupInfoOffset", bootInfoAddr)
	}
}

func TestHaltCPUDefaultIsCallableNoOp(t *testing.T) {
	prev := haltCPU
	defer func() { haltCPU = prev }()

	prev() // the default hook must return without side effects

	called := false
	haltCPU = func() { called = true }
	haltCPU()
	if !called {
		t.Fatalf("haltCPU hook was not invoked")
	}
}
