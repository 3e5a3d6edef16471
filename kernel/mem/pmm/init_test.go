package pmm

import (
	"sasos/kernel/boot"
	"testing"
)

type fakeInfo struct {
	hhdm    uintptr
	regions []boot.MemoryMapEntry
}

func (f fakeInfo) HHDMOffset() uintptr                  { return f.hhdm }
func (f fakeInfo) KernelAddresses() (uintptr, uintptr)  { return 0xffffffff80000000, 0x100000 }
func (f fakeInfo) Modules() []boot.Module               { return nil }
func (f fakeInfo) Framebuffer() *boot.FramebufferInfo   { return nil }
func (f fakeInfo) BaseRevisionSupported() bool          { return true }
func (f fakeInfo) VisitMemRegions(visitor boot.MemRegionVisitor) {
	for i := range f.regions {
		if !visitor(&f.regions[i]) {
			return
		}
	}
}

// withFakeBitmap installs a real Go-backed buffer behind byteSliceAt so Init
// never dereferences the made-up physical addresses the fake regions use.
func withFakeBitmap(bytes int) func() {
	orig := byteSliceAt
	buf := make([]byte, bytes)
	byteSliceAt = func(_ uintptr, length int) []byte {
		if length > len(buf) {
			buf = make([]byte, length)
		}
		return buf[:length]
	}
	return func() { byteSliceAt = orig }
}

func TestInitClearsUsableRegionsOnly(t *testing.T) {
	defer withFakeBitmap(64)()

	info := fakeInfo{
		hhdm: 0,
		regions: []boot.MemoryMapEntry{
			{Base: 0, Length: 2 << 20, Type: boot.RegionUsable},        // 0..2MiB usable
			{Base: 2 << 20, Length: 1 << 20, Type: boot.RegionReserved}, // 2..3MiB reserved
		},
	}

	a, err := Init(info)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	wantPages := uint64((2 << 20) / PageSize)
	if a.TotalPages() != wantPages {
		t.Fatalf("expected totalPages=%d, got %d", wantPages, a.TotalPages())
	}

	// The first 1 MiB must be reserved (legacy region), regardless of being
	// reported usable.
	if bitSet(a.bitmap, 0) == false {
		t.Fatal("expected frame 0 (within the legacy 1 MiB) to be reserved")
	}

	// A frame safely past the legacy region and past the bitmap's own
	// footprint must be free.
	lateFrame := wantPages - 1
	if bitSet(a.bitmap, lateFrame) {
		t.Fatalf("expected late frame %d to be free", lateFrame)
	}
}

func TestInitFailsWithNoUsableRegion(t *testing.T) {
	defer withFakeBitmap(64)()

	info := fakeInfo{regions: []boot.MemoryMapEntry{
		{Base: 0, Length: 1 << 20, Type: boot.RegionReserved},
	}}

	if _, err := Init(info); err == nil {
		t.Fatal("expected Init to fail when no usable/reclaimable/module region exists")
	}
}

func TestInitAfterBringupAllowsAllocation(t *testing.T) {
	defer withFakeBitmap(64)()

	info := fakeInfo{regions: []boot.MemoryMapEntry{
		{Base: 0, Length: 4 << 20, Type: boot.RegionUsable}, // 4 MiB usable
	}}

	a, err := Init(info)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	addr, ok := a.AllocatePages(4)
	if !ok {
		t.Fatal("expected an allocation to succeed after a clean Init")
	}
	if addr < (1 << 20) {
		t.Fatalf("expected allocation to avoid the legacy 1 MiB region, got %#x", addr)
	}
}
