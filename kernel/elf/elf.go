// Package elf validates and loads an in-memory ELF64 image into the running
// address space (spec.md §4.6). The teacher never grew an ELF loader, so
// the byte layout here is grounded on the raw struct-overlay-via-
// unsafe.Pointer idiom kernel/boot/limine.go already uses to read the
// bootloader's own fixed-layout response structs — debug/elf (the
// stdlib package the teacher's host tool tools/redirects/redirects.go
// imports) is unavailable here since it pulls in fmt-based error
// formatting, which this freestanding build cannot carry.
package elf

import (
	"unsafe"

	"sasos/kernel"
	"sasos/kernel/mem/pmm"
	"sasos/kernel/mem/vmm"
)

const (
	classELF64         = 2
	dataLittleEndian    = 1
	machineX86_64       = 0x3E
	typeExecutable      = 2
	typeSharedObject    = 3
	progTypeLoad        = 1
	pageSize            = 4096
)

// Errors mirror spec.md §4.6 "Failures" one for one.
var (
	ErrInvalidMagic   = &kernel.Error{Module: "elf", Message: "missing 0x7F 'E' 'L' 'F' magic"}
	ErrInvalidClass   = &kernel.Error{Module: "elf", Message: "not a 64-bit ELF image"}
	ErrInvalidEndian  = &kernel.Error{Module: "elf", Message: "not a little-endian ELF image"}
	ErrInvalidMachine = &kernel.Error{Module: "elf", Message: "not an x86_64 ELF image"}
	ErrInvalidType    = &kernel.Error{Module: "elf", Message: "not an executable or shared-object ELF image"}
	ErrLoadFailed     = &kernel.Error{Module: "elf", Message: "failed to allocate or map a PT_LOAD segment"}
)

// header mirrors the on-disk Elf64_Ehdr layout exactly; every field sits at
// its natural alignment boundary so Go's default struct layout introduces no
// padding (verified field-by-field against the ELF64 spec, the same
// assumption kernel/boot/limine.go makes for Limine's response structs).
type header struct {
	Ident     [16]byte
	Type      uint16
	Machine   uint16
	Version   uint32
	Entry     uint64
	Phoff     uint64
	Shoff     uint64
	Flags     uint32
	Ehsize    uint16
	Phentsize uint16
	Phnum     uint16
	Shentsize uint16
	Shnum     uint16
	Shstrndx  uint16
}

// progHeader mirrors Elf64_Phdr.
type progHeader struct {
	Type   uint32
	Flags  uint32
	Offset uint64
	Vaddr  uint64
	Paddr  uint64
	Filesz uint64
	Memsz  uint64
	Align  uint64
}

func headerAt(base uintptr) *header {
	return (*header)(unsafe.Pointer(base))
}

func progHeaderAt(base uintptr) *progHeader {
	return (*progHeader)(unsafe.Pointer(base))
}

// Validate checks the magic, class, endianness, machine and type fields
// (spec.md §4.6 "Validation").
func Validate(fileBase uintptr) *kernel.Error {
	h := headerAt(fileBase)

	if h.Ident[0] != 0x7F || h.Ident[1] != 'E' || h.Ident[2] != 'L' || h.Ident[3] != 'F' {
		return ErrInvalidMagic
	}
	if h.Ident[4] != classELF64 {
		return ErrInvalidClass
	}
	if h.Ident[5] != dataLittleEndian {
		return ErrInvalidEndian
	}
	if h.Machine != machineX86_64 {
		return ErrInvalidMachine
	}
	if h.Type != typeExecutable && h.Type != typeSharedObject {
		return ErrInvalidType
	}
	return nil
}

var (
	allocator  *pmm.Allocator
	hhdmOffset uintptr
	mapFn      = vmm.Map
)

// SetAllocator wires the PMM allocator PT_LOAD segments are backed by.
func SetAllocator(a *pmm.Allocator) {
	allocator = a
}

// SetHHDMOffset installs H so segment contents can be written through the
// HHDM alias of each freshly allocated frame, independent of whether the
// CPU has already switched to the mapping being installed (spec.md §3
// "HHDM"). This is a deliberate departure from writing through p_vaddr
// directly: PT_LOAD pages are not guaranteed physically contiguous (each is
// allocated one page at a time), so a single copy spanning the whole
// segment's virtual range cannot assume a matching contiguous physical
// range — per-page copies through HHDM sidestep that entirely.
func SetHHDMOffset(offset uintptr) {
	hhdmOffset = offset
}

func physToVirt(p uintptr) uintptr { return p + hhdmOffset }

func alignDownPage(addr uintptr) uintptr { return addr &^ (pageSize - 1) }
func alignUpPage(addr uintptr) uintptr   { return alignDownPage(addr + pageSize - 1) }

func maxUintptr(a, b uintptr) uintptr {
	if a > b {
		return a
	}
	return b
}

func minUintptr(a, b uintptr) uintptr {
	if a < b {
		return a
	}
	return b
}

// Load validates fileBase as an ELF64 image, maps and populates every
// PT_LOAD segment, and returns its entry point (spec.md §4.6).
func Load(fileBase uintptr) (entry uintptr, err *kernel.Error) {
	if err := Validate(fileBase); err != nil {
		return 0, err
	}

	h := headerAt(fileBase)
	phBase := fileBase + uintptr(h.Phoff)

	for i := uint16(0); i < h.Phnum; i++ {
		ph := progHeaderAt(phBase + uintptr(i)*uintptr(h.Phentsize))
		if ph.Type != progTypeLoad {
			continue
		}
		if err := loadSegment(fileBase, ph); err != nil {
			return 0, err
		}
	}

	return uintptr(h.Entry), nil
}

// loadSegment maps [S, E) for one PT_LOAD header, copying file contents and
// zeroing BSS one physical page at a time (spec.md §4.6
// "Program-header traversal").
func loadSegment(fileBase uintptr, ph *progHeader) *kernel.Error {
	vaddrStart := uintptr(ph.Vaddr)
	fileStart := uintptr(ph.Offset) + fileBase
	filesz := uintptr(ph.Filesz)
	memsz := uintptr(ph.Memsz)

	s := alignDownPage(vaddrStart)
	e := alignUpPage(vaddrStart + memsz)

	for pageVAddr := s; pageVAddr < e; pageVAddr += pageSize {
		phys, ok := allocator.AllocatePage()
		if !ok {
			return ErrLoadFailed
		}
		if err := mapFn(pageVAddr, phys, vmm.FlagRW, 0); err != nil {
			return ErrLoadFailed
		}

		pageHHDM := physToVirt(phys)
		segStart, segEnd := pageVAddr, pageVAddr+pageSize

		if copyStart, copyEnd := maxUintptr(vaddrStart, segStart), minUintptr(vaddrStart+filesz, segEnd); copyEnd > copyStart {
			kernel.Memcopy(fileStart+(copyStart-vaddrStart), pageHHDM+(copyStart-pageVAddr), copyEnd-copyStart)
		}

		if zStart, zEnd := maxUintptr(vaddrStart+filesz, segStart), minUintptr(vaddrStart+memsz, segEnd); zEnd > zStart {
			kernel.Memset(pageHHDM+(zStart-pageVAddr), 0, zEnd-zStart)
		}
	}

	return nil
}
