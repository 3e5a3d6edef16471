package vmm

import (
	"unsafe"

	"sasos/kernel"
	"sasos/kernel/mem/pmm"
	"sasos/kernel/sync"
)

const (
	pageSize     = 4096
	hugePageSize = 2 << 20

	pml4Shift = 39
	pdptShift = 30
	pdShift   = 21
	ptShift   = 12

	tableIndexBits = 9 // 512 entries per table
	tableIndexMask = (1 << tableIndexBits) - 1
)

// phys2virt translates a physical address into its HHDM virtual alias. It is
// installed once by Init (from boot.Info.HHDMOffset) and overridden by tests
// (spec.md §A.4 / the same seam idiom as kernel/apic.SetTranslator).
var phys2virt = func(p uintptr) uintptr { return p }

// SetTranslator installs the HHDM physical-to-virtual translator.
func SetTranslator(fn func(uintptr) uintptr) {
	phys2virt = fn
}

// allocator supplies zeroed physical pages for new page table levels.
var allocator *pmm.Allocator

// SetAllocator wires the PMM allocator this package carves page tables from.
func SetAllocator(a *pmm.Allocator) {
	allocator = a
}

// invlpg and loadCR3 are seams over the real TLB/CR3 primitives so tests
// never touch hardware state (grounded on kernel/cpu's flushTLBEntryFn
// pattern via the teacher's map.go).
var (
	invlpg  = func(vaddr uintptr) {}
	loadCR3 = func(physAddr uintptr) {}
)

// SetTLBHooks installs the real invlpg/LoadCR3 primitives; called once from
// kernel/kmain bring-up.
func SetTLBHooks(invalidate func(uintptr), loadPML4 func(uintptr)) {
	invlpg = invalidate
	loadCR3 = loadPML4
}

var errOutOfMemory = &kernel.Error{Module: "vmm", Message: "physical memory allocator returned no frames while building a page table"}

// pml4Phys is the physical address of the kernel's single top-level page
// table (spec.md §4.2 "own the kernel's top-level page table").
var pml4Phys uintptr

// lock guards every mutation of the page-table tree (pml4Phys, plus any
// table Map/MapHuge/descend install). Uncontended today, same rationale as
// kernel/mem/pmm's lock.
var lock sync.Spinlock

// indices extracts the four level indices from a virtual address per
// spec.md §4.2 "Address translation model".
func indices(vaddr uintptr) (pml4i, pdpti, pdi, pti uintptr) {
	pml4i = (vaddr >> pml4Shift) & tableIndexMask
	pdpti = (vaddr >> pdptShift) & tableIndexMask
	pdi = (vaddr >> pdShift) & tableIndexMask
	pti = (vaddr >> ptShift) & tableIndexMask
	return
}

// entryAt returns a pointer to the entry-th slot of the table physically
// based at tablePhys, reached through HHDM.
func entryAt(tablePhys uintptr, index uintptr) *entry {
	addr := phys2virt(tablePhys) + index*8
	return (*entry)(unsafe.Pointer(addr))
}

// allocTable carves a zeroed physical page for a new intermediate table.
func allocTable() (uintptr, *kernel.Error) {
	if allocator == nil {
		return 0, errOutOfMemory
	}
	phys, ok := allocator.AllocatePage()
	if !ok {
		return 0, errOutOfMemory
	}
	kernel.Memset(phys2virt(phys), 0, pageSize)
	return phys, nil
}

// descend returns the physical address of the next-level table reached
// through parent's slot at index, allocating and installing a new zeroed
// table if the slot is not yet present. Intermediate entries carry no PKS
// key (spec.md §4.2 "no PKS key (intermediate table entries carry no key;
// only leaves do)").
func descend(parentPhys uintptr, index uintptr) (uintptr, *kernel.Error) {
	e := entryAt(parentPhys, index)
	if e.present() {
		if e.hasFlags(flagHuge) {
			return 0, ErrNoHugePageSupport
		}
		return e.frame(), nil
	}

	childPhys, err := allocTable()
	if err != nil {
		return 0, err
	}

	e.setFrame(childPhys)
	e.setFlags(flagPresent | flagRW)
	return childPhys, nil
}

// ensurePML4 lazily allocates the top-level table on first use so tests can
// call Map without a prior Init.
func ensurePML4() *kernel.Error {
	if pml4Phys != 0 {
		return nil
	}
	phys, err := allocTable()
	if err != nil {
		return err
	}
	pml4Phys = phys
	return nil
}

// Map installs a 4 KiB leaf mapping for vaddr -> paddr with the given flags
// and PKS key, allocating any missing intermediate tables along the way
// (spec.md §4.2 "Map operation").
func Map(vaddr, paddr uintptr, flags uint64, pksKey uint8) *kernel.Error {
	lock.Acquire()
	defer lock.Release()

	if err := ensurePML4(); err != nil {
		return err
	}

	pml4i, pdpti, pdi, pti := indices(vaddr)

	pdptPhys, err := descend(pml4Phys, pml4i)
	if err != nil {
		return err
	}
	pdPhys, err := descend(pdptPhys, pdpti)
	if err != nil {
		return err
	}
	ptPhys, err := descend(pdPhys, pdi)
	if err != nil {
		return err
	}

	leaf := entryAt(ptPhys, pti)
	leaf.setFrame(paddr)
	leaf.setFlags(entry(flags) | flagPresent)
	leaf.setPKSKey(pksKey)

	invlpg(vaddr)
	return nil
}

// MapHuge installs a 2 MiB leaf mapping at the PD level (spec.md §4.2
// "Map-huge operation"). paddr must already be 2 MiB-aligned; callers are
// responsible for the alignment guarantee.
func MapHuge(vaddr, paddr uintptr, flags uint64, pksKey uint8) *kernel.Error {
	lock.Acquire()
	defer lock.Release()

	if err := ensurePML4(); err != nil {
		return err
	}

	pml4i, pdpti, pdi, _ := indices(vaddr)

	pdptPhys, err := descend(pml4Phys, pml4i)
	if err != nil {
		return err
	}
	pdPhys, err := descend(pdptPhys, pdpti)
	if err != nil {
		return err
	}

	leaf := entryAt(pdPhys, pdi)
	leaf.setFrame(paddr)
	leaf.setFlags(entry(flags) | flagPresent | flagHuge)
	leaf.setPKSKey(pksKey)

	invlpg(vaddr)
	return nil
}

// Translate walks the page tables for vaddr and returns the physical
// address it maps to, honoring both 4 KiB and 2 MiB leaves.
func Translate(vaddr uintptr) (uintptr, *kernel.Error) {
	if pml4Phys == 0 {
		return 0, ErrInvalidMapping
	}

	pml4i, pdpti, pdi, pti := indices(vaddr)

	pdptEntry := entryAt(pml4Phys, pml4i)
	if !pdptEntry.present() {
		return 0, ErrInvalidMapping
	}
	pdEntry := entryAt(pdptEntry.frame(), pdpti)
	if !pdEntry.present() {
		return 0, ErrInvalidMapping
	}
	ptEntry := entryAt(pdEntry.frame(), pdi)
	if !ptEntry.present() {
		return 0, ErrInvalidMapping
	}
	if ptEntry.hasFlags(flagHuge) {
		return ptEntry.frame() + (vaddr & (hugePageSize - 1)), nil
	}

	leaf := entryAt(ptEntry.frame(), pti)
	if !leaf.present() {
		return 0, ErrInvalidMapping
	}
	return leaf.frame() + (vaddr & (pageSize - 1)), nil
}

// ActivePML4 returns the physical address of the top-level table, for
// LoadCR3.
func ActivePML4() uintptr {
	return pml4Phys
}
