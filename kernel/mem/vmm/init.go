package vmm

import (
	"sasos/kernel"
	"sasos/kernel/boot"
)

// defaultKernelSizeFallback is used when the boot protocol reports no
// executable-and-modules region to sum (spec.md §4.2 "Kernel size is summed
// from 'executable-and-modules' regions with a 2 MiB fallback").
const defaultKernelSizeFallback = hugePageSize

func alignDown(addr uintptr, align uintptr) uintptr {
	return addr &^ (align - 1)
}

func alignUp(addr uintptr, align uintptr) uintptr {
	return alignDown(addr+align-1, align)
}

// Init builds the kernel's top-level page table: it mirrors every
// bootloader-reported physical region into the higher half at
// base+HHDM_offset (using 2 MiB mappings where alignment allows, 4 KiB
// otherwise), maps the kernel image itself at its linked virtual address,
// then loads CR3 (spec.md §4.2 "Initialisation").
func Init(info boot.Info) *kernel.Error {
	hhdm := info.HHDMOffset()
	SetTranslator(func(p uintptr) uintptr { return p + hhdm })

	if err := ensurePML4(); err != nil {
		return err
	}

	var mapErr *kernel.Error
	info.VisitMemRegions(func(r *boot.MemoryMapEntry) bool {
		mapErr = mapHHDMRegion(hhdm, r.Base, r.Length)
		return mapErr == nil
	})
	if mapErr != nil {
		return mapErr
	}

	kernelVirtBase, kernelPhysBase := info.KernelAddresses()
	kernelSize := uintptr(sumExecutableRegions(info))
	if kernelSize == 0 {
		kernelSize = defaultKernelSizeFallback
	}
	kernelSize = alignUp(kernelSize, pageSize)

	for off := uintptr(0); off < kernelSize; off += pageSize {
		if err := Map(kernelVirtBase+off, kernelPhysBase+off, FlagRW, 0); err != nil {
			return err
		}
	}

	loadCR3(ActivePML4())
	return nil
}

// mapHHDMRegion mirrors [base, base+length) into the higher half, preferring
// 2 MiB mappings when both the physical base and the remaining length allow
// it (spec.md §4.2).
func mapHHDMRegion(hhdmOffset uintptr, base, length uint64) *kernel.Error {
	start := uintptr(base)
	end := uintptr(base + length)

	for start < end {
		vaddr := start + hhdmOffset
		remaining := end - start

		if start%hugePageSize == 0 && remaining >= hugePageSize {
			if err := MapHuge(vaddr, start, FlagRW, 0); err != nil {
				return err
			}
			start += hugePageSize
			continue
		}

		if err := Map(vaddr, start, FlagRW|FlagNX, 0); err != nil {
			return err
		}
		start += pageSize
	}
	return nil
}

func sumExecutableRegions(info boot.Info) uint64 {
	var total uint64
	info.VisitMemRegions(func(r *boot.MemoryMapEntry) bool {
		if r.Type == boot.RegionExecutableAndModules {
			total += r.Length
		}
		return true
	})
	return total
}
