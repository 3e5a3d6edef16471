package apic

import "testing"

func TestRemapAndMaskPICSequence(t *testing.T) {
	defer func() { outB = origOutB }()

	type write struct {
		port  uint16
		value uint8
	}
	var got []write
	outB = func(port uint16, value uint8) {
		got = append(got, write{port, value})
	}

	RemapAndMaskPIC()

	want := []write{
		{0x20, 0x11}, {0xA0, 0x11},
		{0x21, 0x20}, {0xA1, 0x28},
		{0x21, 4}, {0xA1, 2},
		{0x21, 0x01}, {0xA1, 0x01},
		{0x21, 0xFF}, {0xA1, 0xFF},
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d port writes, got %d: %v", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("write %d: expected %+v, got %+v", i, want[i], got[i])
		}
	}
}

func TestEnableIRQEncoding(t *testing.T) {
	defer func() { ioapicWriteFn = ioapicWrite }()

	type write struct {
		reg   uint8
		value uint32
	}
	var got []write
	ioapicWriteFn = func(reg uint8, value uint32) {
		got = append(got, write{reg, value})
	}

	EnableIRQ(1, 0x21, 2)

	wantReg := uint8(ioapicRedirTableBase + 1*2)
	if len(got) != 2 {
		t.Fatalf("expected 2 register writes, got %d", len(got))
	}
	if got[0].reg != wantReg+1 || got[0].value != uint32(2)<<24 {
		t.Errorf("high dword: expected reg=%x value=%x, got reg=%x value=%x", wantReg+1, uint32(2)<<24, got[0].reg, got[0].value)
	}
	if got[1].reg != wantReg || got[1].value != 0x21 {
		t.Errorf("low dword: expected reg=%x value=%x, got reg=%x value=%x", wantReg, 0x21, got[1].reg, got[1].value)
	}
}

// origOutB captures the real seam target so tests can restore it; cpu.OutB
// itself has no body in this host build, but it is never invoked here since
// every test substitutes outB before calling into RemapAndMaskPIC.
var origOutB = outB
