// Package cpu exposes the handful of amd64 primitives that cannot be
// expressed in Go: port I/O, MSR access, control-register manipulation, and
// the CPUID instruction. Every function below is declared with no body and
// implemented in a hand-written assembly stub that the build pipeline
// assembles alongside this package (spec.md §1 calls the toolchain/assembly
// pipeline a thin external collaborator, outside this module's scope).
// This mirrors the teacher's kernel/cpu/cpu_amd64.go exactly: Go code calls
// these as ordinary functions, and the compiler/linker wire them to .s
// stubs without either side needing cgo.
package cpu

var cpuidFn = ID

// EnableInterrupts executes STI.
func EnableInterrupts()

// DisableInterrupts executes CLI.
func DisableInterrupts()

// Halt executes HLT. On return (due to a non-maskable interrupt) callers
// are expected to loop back into Halt; kernel.Panic does so implicitly by
// never returning.
func Halt()

// FlushTLBEntry invalidates the TLB entry for virtAddr via INVLPG.
func FlushTLBEntry(virtAddr uintptr)

// LoadCR3 installs a new top-level page table and flushes the TLB.
func LoadCR3(physAddr uintptr)

// ActiveCR3 returns the physical address of the currently active top-level
// page table.
func ActiveCR3() uintptr

// ReadCR2 returns the faulting address recorded by the last page fault.
func ReadCR2() uint64

// ReadCR4 returns the current value of CR4.
func ReadCR4() uint64

// WriteCR4 installs a new value for CR4.
func WriteCR4(value uint64)

// RDMSR reads the model-specific register identified by id.
func RDMSR(id uint32) uint64

// WRMSR writes value to the model-specific register identified by id.
func WRMSR(id uint32, value uint64)

// InB reads a single byte from the given I/O port.
func InB(port uint16) uint8

// OutB writes a single byte to the given I/O port.
func OutB(port uint16, value uint8)

// InL reads a 32-bit value from the given I/O port.
func InL(port uint16) uint32

// OutL writes a 32-bit value to the given I/O port.
func OutL(port uint16, value uint32)

// ID executes CPUID with EAX=leaf, ECX=0 and returns the EAX/EBX/ECX/EDX
// results.
func ID(leaf uint32) (uint32, uint32, uint32, uint32)

// IsIntel reports whether the running CPU identifies itself as Intel.
func IsIntel() bool {
	_, ebx, ecx, edx := cpuidFn(0)
	return ebx == 0x756e6547 && // "Genu"
		edx == 0x49656e69 && // "ineI"
		ecx == 0x6c65746e // "ntel"
}
