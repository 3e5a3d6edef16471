// Package idt installs the interrupt descriptor table and dispatches CPU
// exceptions to registered handlers. It generalizes the teacher's
// kernel/gate and kernel/irq packages (gate_amd64.go's Registers/gate-entry
// design, irq/handler_amd64.go's exception numbering) into the single
// interrupt spine spec.md §4.4 describes: 32 populated CPU-exception
// vectors, a fixed register frame, and a common dispatcher.
package idt

import (
	"sasos/kernel/cpu"
	"sasos/kernel/kfmt"
)

// Vector identifies one of the 256 IDT slots. Only 0..31 are CPU exception
// vectors; 32..255 are available for IRQ routing (kernel/apic).
type Vector uint8

// The CPU exception vectors this kernel populates (spec.md §4.4: "all
// CPU-exception vectors (0..31)").
const (
	DivideByZero            Vector = 0
	NMI                     Vector = 2
	Overflow                Vector = 4
	BoundRangeExceeded      Vector = 5
	InvalidOpcode           Vector = 6
	DeviceNotAvailable      Vector = 7
	DoubleFault             Vector = 8
	InvalidTSS              Vector = 10
	SegmentNotPresent       Vector = 11
	StackSegmentFault       Vector = 12
	GPFException            Vector = 13
	PageFaultException      Vector = 14
	FloatingPointException Vector = 16
	AlignmentCheck          Vector = 17
	MachineCheck            Vector = 18
	SIMDFloatingPoint       Vector = 19
)

// hasErrorCode reports whether the CPU itself pushes an error code for this
// vector. All other vectors get a synthetic zero pushed by the stub so the
// Frame layout is uniform (spec.md §3 "Interrupt frame").
func hasErrorCode(v Vector) bool {
	switch v {
	case 8, 10, 11, 12, 13, 14, 17:
		return true
	default:
		return false
	}
}

// Regs is the snapshot of general-purpose registers the assembly stub
// pushes before calling the common dispatcher.
type Regs struct {
	RAX, RBX, RCX, RDX uint64
	RSI, RDI, RBP      uint64
	R8, R9, R10, R11   uint64
	R12, R13, R14, R15 uint64
}

// Print dumps the register snapshot via kfmt.Printf.
func (r *Regs) Print() {
	kfmt.Printf("RAX = %16x RBX = %16x\n", r.RAX, r.RBX)
	kfmt.Printf("RCX = %16x RDX = %16x\n", r.RCX, r.RDX)
	kfmt.Printf("RSI = %16x RDI = %16x\n", r.RSI, r.RDI)
	kfmt.Printf("RBP = %16x\n", r.RBP)
	kfmt.Printf("R8  = %16x R9  = %16x\n", r.R8, r.R9)
	kfmt.Printf("R10 = %16x R11 = %16x\n", r.R10, r.R11)
	kfmt.Printf("R12 = %16x R13 = %16x\n", r.R12, r.R13)
	kfmt.Printf("R14 = %16x R15 = %16x\n", r.R14, r.R15)
}

// Frame is the CPU-pushed return frame that follows Regs/vector/error-code
// on the stack (spec.md §3 "Interrupt frame").
type Frame struct {
	RIP    uint64
	CS     uint64
	RFlags uint64
	RSP    uint64
	SS     uint64
}

// Print dumps the return frame via kfmt.Printf.
func (f *Frame) Print() {
	kfmt.Printf("RIP = %16x CS  = %16x\n", f.RIP, f.CS)
	kfmt.Printf("RSP = %16x SS  = %16x\n", f.RSP, f.SS)
	kfmt.Printf("RFL = %16x\n", f.RFlags)
}

// ExceptionHandler handles a CPU exception. errorCode is zero for vectors
// that do not push one.
type ExceptionHandler func(vector Vector, errorCode uint64, regs *Regs, frame *Frame)

// handlers holds one optional override per vector; a nil entry falls back
// to defaultHandler.
var handlers [32]ExceptionHandler

// HandleException registers handler for vector, overriding the default
// log-and-halt behavior. Only tests call it; kernel/kmain registers no
// handler, so every vector takes the default path in a real boot.
func HandleException(vector Vector, handler ExceptionHandler) {
	if int(vector) < len(handlers) {
		handlers[vector] = handler
	}
}

// Init installs the IDT: 256 entries, the low 32 populated with interrupt
// gates (type 0x8E) pointing at per-vector assembly stubs (spec.md §4.4).
// The gate table itself is built and loaded by an assembly stub
// (installIDT) since Go cannot express the gate descriptor's split
// base-address encoding as efficiently as a few MOV instructions, and the
// LIDT instruction has no Go equivalent.
func Init() {
	installIDT()
}

// installIDT populates the 256-entry gate table with interrupt gates for
// vectors 0..31 (each pointing at a per-vector stub generated by
// interruptGateEntries) and loads it with LIDT. Implemented in assembly.
func installIDT()

// interruptGateEntries is the set of per-vector trampoline stubs that push
// a synthetic error code (if needed), push the vector number, save Regs,
// and call dispatchInterrupt. Implemented in assembly.
func interruptGateEntries()

// dispatchInterrupt is called by every per-vector stub with the vector
// number, error code, and pointers to the saved Regs/Frame. It is not
// exported: the stub calls it by symbol name, not through a Go-visible
// reference. With no handler registered for the vector it runs
// defaultHandler, which logs and halts (spec.md §4.4 "Common handler"); a
// handler registered through HandleException runs instead, and
// dispatchInterrupt returns when it does.
func dispatchInterrupt(vector Vector, errorCode uint64, regs *Regs, frame *Frame) {
	if h := lookupHandler(vector); h != nil {
		h(vector, errorCode, regs, frame)
		return
	}
	defaultHandler(vector, errorCode, regs, frame)
}

func lookupHandler(vector Vector) ExceptionHandler {
	if int(vector) >= len(handlers) {
		return nil
	}
	return handlers[vector]
}

// defaultHandler logs the vector, error code, saved registers and return
// frame, reads CR2 for page faults, then halts the CPU (spec.md §4.4,
// §7 "CPU exception").
func defaultHandler(vector Vector, errorCode uint64, regs *Regs, frame *Frame) {
	kfmt.Printf("\n*** unhandled exception: vector=%d error_code=%x ***\n", uint8(vector), errorCode)
	regs.Print()
	frame.Print()
	if vector == PageFaultException {
		kfmt.Printf("CR2 = %16x\n", cpu.ReadCR2())
	}
	cpu.Halt()
}
