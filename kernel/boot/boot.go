// Package boot abstracts the Limine-compatible boot protocol response data
// behind a small interface so that PMM/VMM/kmain never depend on the wire
// layout directly. This answers the Open Question spec.md raises in its
// design notes ("abstracting this behind a trait keeps the core independent
// of [the protocol] choice"); it generalizes the teacher's
// kernel/hal/multiboot package (SetInfoPtr + VisitMemRegions seam) from
// Multiboot2 tags to Limine requests/responses.
package boot

import "sasos/kernel"

// RegionType classifies a physical memory map entry as reported by the
// bootloader (spec.md §6).
type RegionType uint32

const (
	RegionUsable RegionType = iota
	RegionReserved
	RegionACPIReclaimable
	RegionACPINvs
	RegionBad
	RegionBootloaderReclaimable
	RegionExecutableAndModules
	RegionFramebuffer
)

// String implements fmt.Stringer-like behavior without importing fmt (not
// safe before kernel/heap exists); used by kfmt.Printf's %s verb.
func (t RegionType) String() string {
	switch t {
	case RegionUsable:
		return "usable"
	case RegionReserved:
		return "reserved"
	case RegionACPIReclaimable:
		return "acpi-reclaimable"
	case RegionACPINvs:
		return "acpi-nvs"
	case RegionBad:
		return "bad"
	case RegionBootloaderReclaimable:
		return "bootloader-reclaimable"
	case RegionExecutableAndModules:
		return "executable-and-modules"
	case RegionFramebuffer:
		return "framebuffer"
	default:
		return "unknown"
	}
}

// MemoryMapEntry describes one physical memory region as reported by the
// bootloader.
type MemoryMapEntry struct {
	Base   uint64
	Length uint64
	Type   RegionType
}

// Module describes a boot module the bootloader loaded alongside the kernel
// image (spec.md §3, "Module").
type Module struct {
	Path string
	Base uintptr
	Size uint64
}

// FramebufferInfo describes the linear framebuffer the bootloader handed
// off, if any.
type FramebufferInfo struct {
	Address uintptr
	Width   uint64
	Height  uint64
	Pitch   uint64
	Bpp     uint16
}

// MemRegionVisitor is invoked by Info.VisitMemRegions for each memory map
// entry; returning false stops the scan early.
type MemRegionVisitor func(entry *MemoryMapEntry) bool

// Info is everything PMM/VMM/kmain need out of the bootloader handoff. The
// Limine implementation (limine.go) is the only production implementor;
// tests supply a fake.
type Info interface {
	// HHDMOffset returns H, the virtual offset at which all physical
	// memory is mirrored (spec.md §3, "HHDM").
	HHDMOffset() uintptr

	// KernelAddresses returns the kernel's virtual and physical load
	// addresses.
	KernelAddresses() (virtualBase, physicalBase uintptr)

	// VisitMemRegions calls visitor once per memory map entry in the
	// order the bootloader reported them.
	VisitMemRegions(visitor MemRegionVisitor)

	// Modules returns the boot modules the bootloader loaded.
	Modules() []Module

	// Framebuffer returns the bootloader-initialized framebuffer, or nil
	// if none was set up.
	Framebuffer() *FramebufferInfo

	// BaseRevisionSupported reports whether the bootloader accepted the
	// kernel's requested protocol base revision.
	BaseRevisionSupported() bool
}

// ErrNoBootInfo is returned by callers that require boot.Info to already be
// set when it is not; this is the "Missing bootloader response" fatal
// condition from spec.md §7.
var ErrNoBootInfo = &kernel.Error{Module: "boot", Message: "bootloader did not supply the expected response"}

// active is the Info instance registered at the start of kernel/kmain.Kmain.
var active Info

// SetActive registers the Info instance the rest of the kernel will query.
// Called exactly once, from kernel/kmain.Kmain.
func SetActive(info Info) {
	active = info
}

// Active returns the registered boot.Info, or nil if SetActive was never
// called (a fatal precondition failure per spec.md §7).
func Active() Info {
	return active
}
