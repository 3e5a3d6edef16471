package vmm

import (
	"testing"
	"unsafe"

	"sasos/kernel/mem/pmm"
)

// fakePhysMemory backs "physical" addresses (as handed out by a
// pmm.NewForTesting allocator, i.e. small page-aligned offsets) with a real
// Go buffer, so Map/descend/entryAt can dereference them safely on the host
// (spec.md §A.4 / the same translator-seam idiom apic and pmm use).
func fakePhysMemory(pages int) (teardown func()) {
	buf := make([]byte, pages*pageSize)
	bufBase := &buf[0]
	origTranslator := phys2virt
	origAlloc := allocator
	origPML4 := pml4Phys
	origInvlpg := invlpg
	origLoadCR3 := loadCR3

	base := uintptr(unsafe.Pointer(bufBase))
	SetTranslator(func(p uintptr) uintptr {
		return base + p
	})
	SetAllocator(pmm.NewForTesting(uint64(pages)))
	// Consume frame 0 so a table never lands at physical address 0, which
	// this package's pml4Phys==0 sentinel treats as "uninitialized" — a
	// real kernel never hits this because pmm.Init always reserves frame
	// 0 as part of the legacy 1 MiB region.
	allocator.AllocatePage()
	pml4Phys = 0
	invlpg = func(uintptr) {}
	loadCR3 = func(uintptr) {}

	return func() {
		phys2virt = origTranslator
		allocator = origAlloc
		pml4Phys = origPML4
		invlpg = origInvlpg
		loadCR3 = origLoadCR3
	}
}

func TestMapThenTranslateRoundTrip(t *testing.T) {
	defer fakePhysMemory(64)()

	const vaddr = 0x0000700000001000
	const paddr = 3 * pageSize

	if err := Map(vaddr, paddr, FlagRW, 5); err != nil {
		t.Fatalf("Map failed: %v", err)
	}

	got, err := Translate(vaddr)
	if err != nil {
		t.Fatalf("Translate failed: %v", err)
	}
	if got != paddr {
		t.Fatalf("expected translate to return %#x, got %#x", paddr, got)
	}
}

func TestMapPreservesPKSKeyInLeaf(t *testing.T) {
	defer fakePhysMemory(64)()

	const vaddr = 0x0000700000002000
	if err := Map(vaddr, 4*pageSize, FlagRW, 9); err != nil {
		t.Fatalf("Map failed: %v", err)
	}

	pml4i, pdpti, pdi, pti := indices(vaddr)
	pdptPhys := entryAt(pml4Phys, pml4i).frame()
	pdPhys := entryAt(pdptPhys, pdpti).frame()
	ptPhys := entryAt(pdPhys, pdi).frame()
	leaf := entryAt(ptPhys, pti)

	if leaf.pksKey() != 9 {
		t.Fatalf("expected leaf PKS key 9, got %d", leaf.pksKey())
	}
}

func TestMapHugeSetsHugeFlag(t *testing.T) {
	defer fakePhysMemory(64)()

	const vaddr = 0x0000700000200000 // 2 MiB aligned
	const paddr = 2 << 20

	if err := MapHuge(vaddr, paddr, FlagRW, 2); err != nil {
		t.Fatalf("MapHuge failed: %v", err)
	}

	got, err := Translate(vaddr)
	if err != nil {
		t.Fatalf("Translate failed: %v", err)
	}
	if got != paddr {
		t.Fatalf("expected %#x, got %#x", paddr, got)
	}
}

func TestTranslateUnmappedReturnsError(t *testing.T) {
	defer fakePhysMemory(64)()

	if _, err := Translate(0x4000); err == nil {
		t.Fatal("expected an error translating an unmapped address")
	}
}

func TestDescendRejectsWalkThroughHugePage(t *testing.T) {
	defer fakePhysMemory(64)()

	const vaddr = 0x0000700000400000

	if err := MapHuge(vaddr, 4<<20, FlagRW, 0); err != nil {
		t.Fatalf("MapHuge failed: %v", err)
	}

	// Attempting a 4 KiB Map into the same PD slot must fail: it would
	// require treating the huge page's PD entry as an intermediate table.
	if err := Map(vaddr, 8*pageSize, FlagRW, 0); err == nil {
		t.Fatal("expected an error mapping a 4 KiB page over an existing huge page")
	}
}
