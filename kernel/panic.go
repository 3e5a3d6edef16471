package kernel

import (
	"sasos/kernel/cpu"
	"sasos/kernel/kfmt"
)

var (
	// cpuHaltFn is swapped out by tests; the compiler inlines it in the
	// real kernel build.
	cpuHaltFn = cpu.Halt

	errRuntimePanic = &Error{Module: "rt", Message: "unknown cause"}
)

// Panic prints the supplied error (if any) to the early console and halts
// the CPU. Panic never returns. It is also the redirection target for the
// Go runtime's panic() in the freestanding build, since runtime.gopanic has
// no unwinder to return to here.
func Panic(e interface{}) {
	var err *Error

	switch t := e.(type) {
	case *Error:
		err = t
	case string:
		errRuntimePanic.Message = t
		err = errRuntimePanic
	case error:
		errRuntimePanic.Message = t.Error()
		err = errRuntimePanic
	}

	kfmt.Printf("\n-----------------------------------\n")
	if err != nil {
		kfmt.Printf("[%s] unrecoverable error: %s\n", err.Module, err.Message)
	}
	kfmt.Printf("*** kernel panic: system halted ***")
	kfmt.Printf("\n-----------------------------------\n")

	cpuHaltFn()
}
