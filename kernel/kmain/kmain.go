// Package kmain implements the bring-up sequence spec.md §2 describes:
// boot handoff, GDT, IDT, PKS, legacy PIC/LAPIC/IOAPIC, PMM, VMM, heap,
// kernel table, module load. It is grounded on the teacher's
// kernel/kmain/kmain.go, which chains the same kind of subsystem Init
// calls behind an early-return-on-error cascade; this version trades the
// teacher's three subsystems for the nine this kernel brings up, and its
// multiboot handoff for the boot.Info abstraction.
package kmain

import (
	"unsafe"

	"sasos/kernel"
	"sasos/kernel/apic"
	"sasos/kernel/boot"
	"sasos/kernel/cpu"
	"sasos/kernel/elf"
	"sasos/kernel/framebuffer"
	"sasos/kernel/heap"
	"sasos/kernel/idt"
	"sasos/kernel/kconfig"
	"sasos/kernel/keyboard"
	"sasos/kernel/kfmt"
	"sasos/kernel/ktable"
	"sasos/kernel/mem/pmm"
	"sasos/kernel/mem/vmm"
	"sasos/kernel/pks"
	"sasos/kernel/serial"
)

var errBaseRevisionUnsupported = &kernel.Error{
	Module:  "kmain",
	Message: "bootloader did not accept the requested Limine base revision",
}

var errPKSRequired = &kernel.Error{
	Module:  "kmain",
	Message: "this build expects Protection Keys for Supervisor but the CPU does not support it",
}

// keyboardVector and spuriousVector are the interrupt vectors this kernel
// dedicates to IRQ1 (keyboard) and the LAPIC spurious-interrupt slot,
// chosen from the 32..255 range idt.Init leaves unpopulated (spec.md
// §4.4).
const (
	spuriousVector = 0xFF
	keyboardVector = 0x21
)

// moduleSuffix is the boot-module path the shell demo's "load test.elf"
// scenario (spec.md §8 scenario 4) expects kmain to pick up automatically
// in the absence of an interactive shell, which spec.md §1 explicitly
// scopes out as a thin external collaborator.
const moduleSuffix = "test.elf"

// logf writes an info-level bring-up line, gated by kconfig.ActiveLogLevel
// the same way every other subsystem's logging would be if it logged
// below info. Bring-up milestones are always info level; none of the
// lines below are ever suppressed in a default build.
func logf(format string, args ...interface{}) {
	if kconfig.Enabled(kconfig.LogInfo) {
		kfmt.Printf(format, args...)
	}
}

// Kmain runs the ten-step bring-up sequence and never returns; on success
// it halts in a loop after attempting to load and jump to a boot module,
// on failure any step calls kernel.Panic.
//
//go:noinline
func Kmain() {
	kfmt.SetOutputSink(serial.Writer{})
	serial.Init()
	logf("Kernel Started\n")

	info := boot.NewLimineInfo()
	boot.SetActive(info)
	if !info.BaseRevisionSupported() {
		kernel.Panic(errBaseRevisionUnsupported)
	}

	cpu.InstallGDT()
	logf("GDT Initialized\n")

	idt.Init()
	logf("IDT Initialized\n")

	if pks.Init() {
		logf("PKS: Enabled\n")
	} else {
		logf("PKS: Not supported\n")
		if kconfig.ExpectPKS {
			kernel.Panic(errPKSRequired)
		}
	}

	hhdm := info.HHDMOffset()
	phys2virt := func(p uintptr) uintptr { return p + hhdm }
	apic.SetTranslator(phys2virt)

	apic.RemapAndMaskPIC()
	apic.EnableLAPIC(spuriousVector)
	apic.EnableIRQ(1, keyboardVector, 0)

	allocator, err := pmm.Init(info)
	if err != nil {
		kernel.Panic(err)
	}
	logf("PMM: Initialization Complete\n")

	// Logged here, after PMM, to match spec.md §8 scenario 1's expected
	// serial log order; the actual fatal check above already ran before
	// any interrupt source was armed (spec.md §7: "Missing bootloader
	// response at init -- fatal; halts before interrupts are enabled").
	logf("Base Revision Supported\n")

	vmm.SetAllocator(allocator)
	vmm.SetTLBHooks(cpu.FlushTLBEntry, cpu.LoadCR3)
	if err := vmm.Init(info); err != nil {
		kernel.Panic(err)
	}

	heap.SetAllocator(allocator)
	heap.SetHHDMOffset(hhdm)

	if fb := info.Framebuffer(); fb != nil {
		framebuffer.Init(phys2virt(fb.Address), uint32(fb.Width), uint32(fb.Height), uint32(fb.Pitch))
	}

	elf.SetAllocator(allocator)
	elf.SetHHDMOffset(hhdm)

	ktable.SetAllocator(allocator)
	ktable.SetTranslator(phys2virt)
	table := ktable.New()

	loadBootModule(info, table)

	// Idle. Kmain never executes STI and idt.Init populates only vectors
	// 0..31, so no IRQ (including IRQ1 to keyboardIRQHandler) is delivered
	// while this loop runs.
	for {
		cpu.Halt()
	}
}

// loadBootModule implements step 10 (spec.md §2, §8 scenario 4): find the
// boot module whose path ends in moduleSuffix, load it, and jump to its
// entry point with table's address in the first argument register.
func loadBootModule(info boot.Info, table *ktable.Table) {
	for _, m := range info.Modules() {
		if !hasSuffix(m.Path, moduleSuffix) {
			continue
		}

		entry, err := elf.Load(m.Base)
		if err != nil {
			kfmt.Printf("module load failed: %s\n", err.Message)
			return
		}

		logf("Jumping to entry point...\n")
		jumpToEntry(entry, uintptr(unsafe.Pointer(table)))
		return
	}
}

func hasSuffix(s, suffix string) bool {
	return len(s) >= len(suffix) && s[len(s)-len(suffix):] == suffix
}

// jumpToEntry transfers control to a loaded module's entry point with
// tablePtr delivered in RDI (SysV's first-argument register), never
// returning (spec.md §2 step 10: "jumps to the entry point"). Implemented
// in assembly, outside this module's scope, same as every other
// declared-but-bodyless function in this codebase.
func jumpToEntry(entry uintptr, tablePtr uintptr)

// keyboardIRQHandler is the Go-callable target the IRQ1 assembly stub
// invokes with the raw scancode from port 0x60, before issuing EOI. It is
// referenced by symbol name from the (unincluded) assembly stub, the same
// linkage convention idt's per-vector stubs use for dispatchInterrupt.
func keyboardIRQHandler(scancode byte) {
	keyboard.Handle(scancode)
	apic.SendEOI()
}
