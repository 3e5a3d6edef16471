package pks

import "testing"

func withFixture(ecx uint32, cr4 uint64) (getCR4 func() uint64, getMSR func() (uint32, uint64)) {
	cpuidFn = func(_ uint32) (uint32, uint32, uint32, uint32) {
		return 0, 0, ecx, 0
	}
	cur := cr4
	readCR4 = func() uint64 { return cur }
	writeCR4 = func(v uint64) { cur = v }

	var msrID uint32
	var msrVal uint64
	wrmsr = func(id uint32, value uint64) { msrID, msrVal = id, value }

	return func() uint64 { return cur }, func() (uint32, uint64) { return msrID, msrVal }
}

func TestSupportedReflectsECXBit31(t *testing.T) {
	defer restoreSeams()

	cpuidFn = func(_ uint32) (uint32, uint32, uint32, uint32) { return 0, 0, 1 << 31, 0 }
	if !Supported() {
		t.Fatal("expected Supported() to be true when ECX bit 31 is set")
	}

	cpuidFn = func(_ uint32) (uint32, uint32, uint32, uint32) { return 0, 0, 0, 0 }
	if Supported() {
		t.Fatal("expected Supported() to be false when ECX bit 31 is clear")
	}
}

func TestInitEnablesWhenSupported(t *testing.T) {
	defer restoreSeams()

	getCR4, getMSR := withFixture(1<<31, 0)

	if ok := Init(); !ok {
		t.Fatal("expected Init to return true when PKS is supported")
	}
	if !Enabled() {
		t.Fatal("expected Enabled() to be true after a successful Init")
	}
	if getCR4()&cr4PKSBit == 0 {
		t.Fatal("expected CR4 bit 24 to be set")
	}
	id, val := getMSR()
	if id != pkrsMSR || val != 0 {
		t.Fatalf("expected PKRS MSR (%#x) written with 0, got msr=%#x val=%d", pkrsMSR, id, val)
	}
}

func TestInitFallsBackWhenUnsupported(t *testing.T) {
	defer restoreSeams()

	withFixture(0, 0)

	if ok := Init(); ok {
		t.Fatal("expected Init to return false when PKS is unsupported")
	}
	if Enabled() {
		t.Fatal("expected Enabled() to remain false")
	}
}

// origCPUIDFn lets restoreSeams reset cpuidFn to its real target between
// tests; readCR4/writeCR4/wrmsr are reset by the next withFixture call
// instead, since every Init test installs a fresh fixture before use.
var origCPUIDFn = cpuidFn

func restoreSeams() {
	cpuidFn = origCPUIDFn
}
