// Package apic programs the legacy PIC into quiescence and drives the
// LAPIC/IOAPIC pair that actually routes interrupts (spec.md §4.4). There
// is no teacher analogue (gopher-os never got past PIC remapping) so the
// MMIO access pattern here is grounded on the same "alias a physical
// address through HHDM as a raw slice" idiom the teacher uses for its
// framebuffer console (device/video/console/vesa_fb.go's fb []uint8 over
// fbPhysAddr), generalized from a byte-addressed framebuffer to
// uint32-addressed APIC registers.
package apic

import (
	"unsafe"

	"sasos/kernel/cpu"
)

// Fixed MMIO physical addresses (spec.md §6): ACPI-MADT parsing of the
// real addresses is explicitly deferred future work, so these defaults are
// used as-is.
const (
	lapicPhysBase  = 0xFEE00000
	ioapicPhysBase = 0xFEC00000
)

// LAPIC register offsets used by this kernel.
const (
	lapicSpuriousVector = 0x0F0
	lapicEOI            = 0x0B0
)

// IOAPIC indirect register offsets.
const (
	ioapicRegSelect = 0x00
	ioapicRegData   = 0x10
)

const ioapicRedirTableBase = 0x10

// phys2virt is supplied by kernel/kmain through SetTranslator so this
// package does not import kernel/mem/vmm directly (that would create an import cycle once
// vmm needs apic for IRQ-driven page fault diagnostics down the line).
var phys2virt = func(p uintptr) uintptr { return p }

// outB is a seam over cpu.OutB so host-side tests can observe the exact port
// I/O sequence RemapAndMaskPIC issues without real hardware (spec.md §A.4 /
// the teacher's cpuidFn pattern in kernel/cpu/cpu_amd64.go).
var outB = cpu.OutB

// ioapicWriteFn is a seam over ioapicWrite so EnableIRQ's redirection-table
// encoding can be checked in isolation.
var ioapicWriteFn = ioapicWrite

// SetTranslator installs the HHDM physical-to-virtual translator this
// package uses to reach LAPIC/IOAPIC MMIO. Called once during kernel/kmain
// bring-up, with the bootloader's HHDM offset, before the PIC/LAPIC/IOAPIC
// are programmed. The MMIO windows are reached at that offset as they are:
// neither this package nor kernel/mem/vmm.Init maps them, and no
// cache-disable flag is set for them.
func SetTranslator(fn func(uintptr) uintptr) {
	phys2virt = fn
}

func lapicReg(offset uintptr) *uint32 {
	addr := phys2virt(lapicPhysBase) + offset
	return (*uint32)(unsafe.Pointer(addr))
}

func ioapicWrite(reg uint8, value uint32) {
	selectAddr := phys2virt(ioapicPhysBase) + ioapicRegSelect
	dataAddr := phys2virt(ioapicPhysBase) + ioapicRegData
	*(*uint32)(unsafe.Pointer(selectAddr)) = uint32(reg)
	*(*uint32)(unsafe.Pointer(dataAddr)) = value
}

// RemapAndMaskPIC remaps the legacy 8259 PIC to vectors 0x20..0x2F via the
// standard ICW sequence, then masks every line (spec.md §4.4 "Legacy PIC").
// The PIC is never the active controller in this kernel; it is remapped
// purely so a spurious PIC interrupt cannot land on a CPU-exception vector.
func RemapAndMaskPIC() {
	const (
		pic1Cmd, pic1Data = 0x20, 0x21
		pic2Cmd, pic2Data = 0xA0, 0xA1
		icw1Init          = 0x11
		icw4_8086         = 0x01
	)

	outB(pic1Cmd, icw1Init)
	outB(pic2Cmd, icw1Init)
	outB(pic1Data, 0x20) // master offset -> vector 0x20
	outB(pic2Data, 0x28) // slave offset -> vector 0x28
	outB(pic1Data, 4)    // tell master about slave at IRQ2
	outB(pic2Data, 2)    // tell slave its cascade identity
	outB(pic1Data, icw4_8086)
	outB(pic2Data, icw4_8086)

	outB(pic1Data, 0xFF) // mask every line
	outB(pic2Data, 0xFF)
}

// EnableLAPIC enables the local APIC by writing the spurious-vector
// register with the enable bit set and a dedicated spurious vector.
func EnableLAPIC(spuriousVector uint8) {
	const enableBit = 1 << 8
	*lapicReg(lapicSpuriousVector) = enableBit | uint32(spuriousVector)
}

// SendEOI acknowledges the interrupt currently being serviced. It must be
// the last action on every IRQ handler path (spec.md §5): failing to call
// it silently mutes the line.
func SendEOI() {
	*lapicReg(lapicEOI) = 0
}

// EnableIRQ programs the IOAPIC redirection table entry for irq to deliver
// vector on destApicID, using fixed delivery mode, physical destination,
// active-high, edge-triggered, unmasked (spec.md §4.4 "IOAPIC").
func EnableIRQ(irq uint8, vector uint8, destApicID uint8) {
	reg := ioapicRedirTableBase + irq*2

	low := uint32(vector) // delivery mode fixed (bits 8-10 = 0), active high, edge, unmasked
	high := uint32(destApicID) << 24

	ioapicWriteFn(reg+1, high)
	ioapicWriteFn(reg, low)
}
