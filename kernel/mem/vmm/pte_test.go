package vmm

import "testing"

func TestEntryFrameRoundTrip(t *testing.T) {
	var e entry
	e.setFrame(0x123456000)
	if got := e.frame(); got != 0x123456000 {
		t.Fatalf("expected frame 0x123456000, got %#x", got)
	}
}

func TestEntryPKSKeyRoundTrip(t *testing.T) {
	var e entry
	e.setPKSKey(0xB)
	if got := e.pksKey(); got != 0xB {
		t.Fatalf("expected key 0xB, got %#x", got)
	}
}

func TestSetFlagsPreservesPKSKeyAndFrame(t *testing.T) {
	var e entry
	e.setFrame(0xABCDE000)
	e.setPKSKey(0x7)
	e.setFlags(flagPresent | flagRW)

	if !e.present() || !e.hasFlags(flagRW) {
		t.Fatal("expected present+RW flags to be set")
	}
	if e.frame() != 0xABCDE000 {
		t.Fatalf("expected frame to survive setFlags, got %#x", e.frame())
	}
	if e.pksKey() != 0x7 {
		t.Fatalf("expected PKS key to survive setFlags, got %#x", e.pksKey())
	}

	// Clearing unrelated flags (dropping RW) must not disturb the key.
	e.setFlags(flagPresent)
	if e.pksKey() != 0x7 {
		t.Fatalf("expected PKS key to survive a second setFlags, got %#x", e.pksKey())
	}
	if e.hasFlags(flagRW) {
		t.Fatal("expected RW to have been cleared")
	}
}

func TestSetFrameDoesNotDisturbKeyOrFlags(t *testing.T) {
	var e entry
	e.setPKSKey(0x3)
	e.setFlags(flagPresent | flagGlobal)
	e.setFrame(0x1000)

	if e.pksKey() != 0x3 {
		t.Fatalf("expected key to survive setFrame, got %#x", e.pksKey())
	}
	if !e.hasFlags(flagPresent | flagGlobal) {
		t.Fatal("expected flags to survive setFrame")
	}
}

func TestPKSKeyMasksToFourBits(t *testing.T) {
	var e entry
	e.setPKSKey(0xFF) // only the low 4 bits are a valid key
	if e.pksKey() != 0xF {
		t.Fatalf("expected key to be masked to 0xF, got %#x", e.pksKey())
	}
}
