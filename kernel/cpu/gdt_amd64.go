package cpu

import "unsafe"

// descriptor is a single 8-byte GDT entry encoded in the legacy
// base/limit/access/flags layout (spec.md §4.4).
type descriptor uint64

const (
	// KernelCodeSelector and KernelDataSelector are the fixed selector
	// values this kernel ever loads. There is no user/ring-3 descriptor:
	// the SASOS model enforces isolation with PKS (kernel/pks), not
	// ring transitions, so every descriptor below is a ring-0 one.
	KernelCodeSelector uint16 = 0x08
	KernelDataSelector uint16 = 0x10
)

// gdt holds the three descriptors this kernel ever installs: null, kernel
// code, kernel data. It is never extended at runtime; SMP and user-mode
// descriptors are both out of scope (spec.md §1).
var gdt [3]descriptor

// gdtPointer is the operand for LGDT: a 16-bit limit followed by a 64-bit
// base address, assembled by installGDT.
type gdtPointer struct {
	limit uint16
	base  uint64
}

var gdtPtr gdtPointer

// newDescriptor packs a (access, granularity) pair into the flat-model GDT
// entry layout used for every selector this kernel installs: base 0,
// limit 0xFFFFF (4 KiB granularity covers the full address space once the
// granularity bit is set).
func newDescriptor(access, granularity uint8) descriptor {
	const limit = 0xFFFFF
	return descriptor(limit&0xFFFF) |
		descriptor(uint64(limit>>16&0xF)<<48) |
		descriptor(uint64(access)<<40) |
		descriptor(uint64(granularity)<<48)
}

// InstallGDT builds the three-entry GDT described in spec.md §4.4 (null,
// kernel code, kernel data) and loads it, reloading every segment register.
// The actual LGDT + far-return + segment-reload sequence lives in an
// assembly stub (loadGDT) since Go cannot express a far jump.
func InstallGDT() {
	gdt[0] = 0
	gdt[1] = newDescriptor(0x9A, 0xAF) // kernel code: present, ring0, code, long mode
	gdt[2] = newDescriptor(0x92, 0xCF) // kernel data: present, ring0, data

	gdtPtr.limit = uint16(len(gdt)*8 - 1)
	gdtPtr.base = uint64(uintptr(unsafe.Pointer(&gdt[0])))

	loadGDT(&gdtPtr, uint64(KernelCodeSelector), uint64(KernelDataSelector))
}

// loadGDT executes LGDT with the supplied pointer, then performs the far
// return sequence that loads codeSel into CS and dataSel into the data
// segment registers. Implemented in assembly.
func loadGDT(ptr *gdtPointer, codeSel, dataSel uint64)
