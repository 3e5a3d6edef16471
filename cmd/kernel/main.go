// Command kernel is the rt0 trampoline the bootloader's assembly stub
// jumps to after setting up a minimal stack and long-mode CPU state.
// Grounded on the teacher's stub.go/boot.go: a tiny main whose only job is
// to call the real entry point, so the Go compiler cannot optimize the
// kernel code away for having no visible caller.
package main

import "sasos/kernel/kmain"

// main is not expected to return. If it does, the rt0 stub halts the CPU.
func main() {
	kmain.Kmain()
}
