package pmm

import (
	"sasos/kernel"
	"sasos/kernel/boot"
)

// legacyRegionPages is the first 1 MiB, re-reserved unconditionally after the
// usable-region pass because the legacy BIOS/VGA area is usable RAM as far
// as the bootloader's memory map is concerned but is not safe to hand out
// (spec.md §4.1 "the first 1 MiB (legacy BIOS/VGA region)").
const legacyRegionPages = (1 << 20) / PageSize

// byteSliceAt is a seam over kernel.ByteSliceAt so host tests can supply a
// backing buffer without dereferencing a real (or fake) physical address
// (spec.md §A.4 / the same seam idiom as kernel/apic's phys2virt).
var byteSliceAt = kernel.ByteSliceAt

// alignDownPage/alignUpPage round an address down/up to a page boundary.
// Init rounds a usable region's start up and its end down, so a partial
// page at either edge stays reserved.
func alignDownPage(addr uint64) uint64 {
	return addr &^ (PageSize - 1)
}

func alignUpPage(addr uint64) uint64 {
	return alignDownPage(addr + PageSize - 1)
}

// Init builds the single flat bitmap allocator described in spec.md §4.1
// from the bootloader's memory map:
//
//  1. Find the highest page-frame number among usable, bootloader-
//     reclaimable, and executable-and-modules regions.
//  2. Size the bitmap at ceil(max_pages/8) bytes and find a usable region
//     big enough to hold it, accessed through HHDM.
//  3. Fill the bitmap with 1s (everything reserved by default).
//  4. Clear the bits for every usable region (start rounded up, end rounded
//     down to a page boundary).
//  5. Re-reserve the bitmap's own pages and the first 1 MiB.
func Init(info boot.Info) (*Allocator, *kernel.Error) {
	hhdm := info.HHDMOffset()

	var maxPage uint64
	info.VisitMemRegions(func(r *boot.MemoryMapEntry) bool {
		switch r.Type {
		case boot.RegionUsable, boot.RegionBootloaderReclaimable, boot.RegionExecutableAndModules:
			end := alignDownPage(r.Base+r.Length) / PageSize
			if end > maxPage {
				maxPage = end
			}
		}
		return true
	})

	if maxPage == 0 {
		return nil, boot.ErrNoBootInfo
	}

	bitmapBytes := (maxPage + 7) / 8
	bitmapPages := (uint64(bitmapBytes) + PageSize - 1) / PageSize

	var bitmapBase uint64
	var placed bool
	info.VisitMemRegions(func(r *boot.MemoryMapEntry) bool {
		if r.Type != boot.RegionUsable {
			return true
		}
		start := alignUpPage(r.Base)
		end := alignDownPage(r.Base + r.Length)
		if end <= start {
			return true
		}
		if (end-start)/PageSize >= bitmapPages {
			bitmapBase = start
			placed = true
			return false
		}
		return true
	})
	if !placed {
		return nil, ErrOutOfBootInfo
	}

	bitmap := byteSliceAt(hhdm+uintptr(bitmapBase), int(bitmapBytes))
	for i := range bitmap {
		bitmap[i] = 0xFF
	}

	a := &Allocator{
		bitmap:     bitmap,
		totalPages: maxPage,
		bitmapBase: uintptr(bitmapBase),
	}

	info.VisitMemRegions(func(r *boot.MemoryMapEntry) bool {
		if r.Type != boot.RegionUsable {
			return true
		}
		start := alignUpPage(r.Base) / PageSize
		end := alignDownPage(r.Base+r.Length) / PageSize
		if end > start {
			clearRange(a.bitmap, start, end-start)
		}
		return true
	})

	setRange(a.bitmap, bitmapBase/PageSize, bitmapPages)
	setRange(a.bitmap, 0, minUint64(legacyRegionPages, maxPage))

	return a, nil
}

func minUint64(a, b uint64) uint64 {
	if a < b {
		return a
	}
	return b
}
