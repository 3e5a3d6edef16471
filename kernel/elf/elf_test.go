package elf

import (
	"testing"
	"unsafe"

	"sasos/kernel"
	"sasos/kernel/mem/pmm"
)

// buildImage lays out a one-segment ELF64 image directly through the
// header/progHeader struct overlays this package already uses, rather than
// hand-packing bytes.
func buildImage(t *testing.T, vaddr uint64, fileData []byte, memsz uint64) (fileBase uintptr) {
	t.Helper()

	const dataOffset = 128
	buf := make([]byte, dataOffset+len(fileData))

	h := (*header)(unsafe.Pointer(&buf[0]))
	h.Ident[0], h.Ident[1], h.Ident[2], h.Ident[3] = 0x7F, 'E', 'L', 'F'
	h.Ident[4] = classELF64
	h.Ident[5] = dataLittleEndian
	h.Type = typeExecutable
	h.Machine = machineX86_64
	h.Entry = vaddr
	h.Phoff = 64
	h.Phentsize = 56
	h.Phnum = 1

	ph := (*progHeader)(unsafe.Pointer(&buf[64]))
	ph.Type = progTypeLoad
	ph.Offset = dataOffset
	ph.Vaddr = vaddr
	ph.Filesz = uint64(len(fileData))
	ph.Memsz = memsz

	copy(buf[dataOffset:], fileData)

	return uintptr(unsafe.Pointer(&buf[0]))
}

type mappedCall struct {
	vaddr, paddr uintptr
	flags        uint64
}

// withFixture installs a PMM allocator and a fake "physical memory" buffer
// addressed through hhdmOffset, and records every mapFn call instead of
// routing through the real vmm package.
func withFixture(t *testing.T, physPages int) *[]mappedCall {
	t.Helper()

	physBuf := make([]byte, physPages*pageSize)
	for i := range physBuf {
		physBuf[i] = 0xAA
	}
	base := uintptr(unsafe.Pointer(&physBuf[0]))

	origAlloc, origHHDM, origMapFn := allocator, hhdmOffset, mapFn
	SetAllocator(pmm.NewForTesting(uint64(physPages)))
	SetHHDMOffset(base)

	var calls []mappedCall
	mapFn = func(vaddr, paddr uintptr, flags uint64, _ uint8) *kernel.Error {
		calls = append(calls, mappedCall{vaddr, paddr, flags})
		return nil
	}

	t.Cleanup(func() {
		allocator, hhdmOffset, mapFn = origAlloc, origHHDM, origMapFn
	})
	return &calls
}

func TestValidateRejectsBadMagic(t *testing.T) {
	fileBase := buildImage(t, 0x400000, []byte{1, 2, 3, 4}, 16)
	h := headerAt(fileBase)
	h.Ident[0] = 0

	if err := Validate(fileBase); err != ErrInvalidMagic {
		t.Fatalf("expected ErrInvalidMagic, got %v", err)
	}
}

func TestValidateRejectsWrongMachine(t *testing.T) {
	fileBase := buildImage(t, 0x400000, []byte{1, 2, 3, 4}, 16)
	h := headerAt(fileBase)
	h.Machine = 0x28 // ARM, not x86_64

	if err := Validate(fileBase); err != ErrInvalidMachine {
		t.Fatalf("expected ErrInvalidMachine, got %v", err)
	}
}

func TestValidateAcceptsWellFormedImage(t *testing.T) {
	fileBase := buildImage(t, 0x400000, []byte{1, 2, 3, 4}, 16)
	if err := Validate(fileBase); err != nil {
		t.Fatalf("expected a valid image to pass, got %v", err)
	}
}

func TestLoadCopiesFileDataAndZeroesBSS(t *testing.T) {
	calls := withFixture(t, 4)

	data := []byte{0xDE, 0xAD, 0xBE, 0xEF}
	fileBase := buildImage(t, 0x400000, data, 16)

	entry, err := Load(fileBase)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if entry != 0x400000 {
		t.Fatalf("expected entry 0x400000, got %#x", entry)
	}
	if len(*calls) != 1 {
		t.Fatalf("expected exactly one mapped page for a 16-byte segment, got %d", len(*calls))
	}
	if (*calls)[0].vaddr != 0x400000 {
		t.Fatalf("expected segment mapped at 0x400000, got %#x", (*calls)[0].vaddr)
	}

	pageHHDM := physToVirt((*calls)[0].paddr)
	got := *(*[16]byte)(unsafe.Pointer(pageHHDM))
	for i := 0; i < 4; i++ {
		if got[i] != data[i] {
			t.Errorf("byte %d: expected %#x, got %#x", i, data[i], got[i])
		}
	}
	for i := 4; i < 16; i++ {
		if got[i] != 0 {
			t.Errorf("expected BSS byte %d to be zeroed, got %#x", i, got[i])
		}
	}
}

func TestLoadSpansMultiplePages(t *testing.T) {
	calls := withFixture(t, 8)

	fileBase := buildImage(t, 0x500000, []byte{1}, pageSize+pageSize/2)

	if _, err := Load(fileBase); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(*calls) != 2 {
		t.Fatalf("expected a 1.5-page segment to span exactly 2 pages, got %d", len(*calls))
	}
}
