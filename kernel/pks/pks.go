// Package pks probes for and enables Protection Keys for Supervisor, the
// hardware feature this kernel uses in place of ring transitions to isolate
// kernel-only pages (spec.md §4.5). It follows the same
// detect-via-CPUID/toggle-a-CR-bit shape as the teacher's kernel/cpu package,
// generalized from "is this an Intel CPU" to "does this CPU support PKS."
package pks

import "sasos/kernel/cpu"

const (
	// cpuidLeaf is the CPUID leaf that reports PKS support.
	cpuidLeaf = 7
	// supervisorKeyBit is ECX bit 31 of leaf 7, sub-leaf 0 (spec.md §4.5
	// "Detection").
	supervisorKeyBit = 1 << 31
	// cr4PKSBit enables PKS once set (spec.md §4.5 "Enable").
	cr4PKSBit = 1 << 24
	// pkrsMSR is the per-CPU Protection Key Rights register for supervisor
	// pages (spec.md §4.5 "Enable").
	pkrsMSR = 0x691
)

// cpuidFn and the CR4/MSR seams mirror kernel/cpu's cpuidFn pattern so this
// package's logic can be exercised with fixture CPUID/MSR values on the host
// (spec.md §A.4).
var (
	cpuidFn  = cpu.ID
	readCR4  = cpu.ReadCR4
	writeCR4 = cpu.WriteCR4
	wrmsr    = cpu.WRMSR
)

// Supported reports whether the running CPU advertises PKS in CPUID leaf 7,
// sub-leaf 0, ECX bit 31.
func Supported() bool {
	_, _, ecx, _ := cpuidFn(cpuidLeaf)
	return ecx&supervisorKeyBit != 0
}

// enabled records whether Init successfully turned PKS on, so callers (the
// VMM, the ELF loader) can decide whether PKS key bits in a PTE are
// meaningful or merely inert metadata (spec.md §4.5 "Fallback").
var enabled bool

// Enabled reports whether PKS is active on this CPU.
func Enabled() bool {
	return enabled
}

// Init probes for PKS support and, if present, sets CR4 bit 24 and clears
// the PKRS MSR so every key initially permits full access (spec.md §4.5
// "Enable"). If unsupported, it leaves PKS disabled and returns false; the
// kernel continues without hardware-enforced isolation, and PTE key bits
// become inert metadata the CPU ignores (spec.md §4.5 "Fallback").
func Init() bool {
	if !Supported() {
		enabled = false
		return false
	}

	writeCR4(readCR4() | cr4PKSBit)
	wrmsr(pkrsMSR, 0)
	enabled = true
	return true
}
