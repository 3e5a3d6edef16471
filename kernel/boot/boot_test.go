package boot

import "testing"

type fakeInfo struct {
	hhdm    uintptr
	regions []MemoryMapEntry
	mods    []Module
}

func (f fakeInfo) HHDMOffset() uintptr { return f.hhdm }
func (f fakeInfo) KernelAddresses() (uintptr, uintptr) {
	return 0xffffffff80000000, 0x100000
}
func (f fakeInfo) VisitMemRegions(visitor MemRegionVisitor) {
	for i := range f.regions {
		if !visitor(&f.regions[i]) {
			return
		}
	}
}
func (f fakeInfo) Modules() []Module               { return f.mods }
func (f fakeInfo) Framebuffer() *FramebufferInfo   { return nil }
func (f fakeInfo) BaseRevisionSupported() bool     { return true }

func TestActiveRoundTrip(t *testing.T) {
	defer SetActive(nil)

	fi := fakeInfo{hhdm: 0xffff800000000000}
	SetActive(fi)

	if Active() == nil {
		t.Fatal("expected an active boot.Info after SetActive")
	}
	if got := Active().HHDMOffset(); got != fi.hhdm {
		t.Fatalf("expected HHDM offset %x, got %x", fi.hhdm, got)
	}
}

func TestVisitMemRegionsStopsOnFalse(t *testing.T) {
	fi := fakeInfo{regions: []MemoryMapEntry{
		{Base: 0, Length: 0x1000, Type: RegionUsable},
		{Base: 0x1000, Length: 0x1000, Type: RegionReserved},
		{Base: 0x2000, Length: 0x1000, Type: RegionUsable},
	}}

	var visited int
	fi.VisitMemRegions(func(e *MemoryMapEntry) bool {
		visited++
		return e.Type != RegionReserved
	})

	if visited != 2 {
		t.Fatalf("expected scan to stop after 2 visits, got %d", visited)
	}
}

func TestRegionTypeString(t *testing.T) {
	cases := map[RegionType]string{
		RegionUsable:                "usable",
		RegionBootloaderReclaimable: "bootloader-reclaimable",
		RegionExecutableAndModules:  "executable-and-modules",
		RegionType(99):              "unknown",
	}

	for rt, want := range cases {
		if got := rt.String(); got != want {
			t.Errorf("RegionType(%d).String() = %q, want %q", rt, got, want)
		}
	}
}
