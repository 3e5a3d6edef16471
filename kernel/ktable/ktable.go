// Package ktable builds the KernelTable: the fixed 48-byte ABI record a
// loaded user module uses to call back into the kernel (spec.md §3
// "KernelTable", §4.7, §6 "KernelTable binary layout"). There is no teacher
// analogue for a capability table handed to loaded code — gopher-os never
// grew past bring-up — so the struct-overlay layout is grounded on the same
// fixed-offset, no-padding reasoning kernel/elf/elf.go applies to
// Elf64_Ehdr, and the declared-but-bodyless-function-as-C-ABI-trampoline
// idiom is grounded on kernel/cpu/cpu_amd64.go, which already relies on Go
// calling assembly-implemented functions with ordinary Go call syntax.
package ktable

import (
	"reflect"
	"unsafe"
)

// Magic is the fixed KernelTable identifier at offset 0 (spec.md §3, §6).
const Magic uint64 = 0xDEADC0DE

// Table is the 48-byte ABI record handed to a loaded module. Every field
// after Magic holds a raw C-ABI function pointer (SysV: first argument in
// RDI, no callee-saved obligations beyond SysV) rather than a Go func
// value, since a loaded module calls these directly and cannot obey Go's
// calling convention. Field order and offsets are the contract: 0, 8, 16,
// 24, 32, 40 — a struct of six 8-byte fields introduces no Go padding, so
// this layout is load-bearing and must not be reordered.
type Table struct {
	Magic uint64

	// Log corresponds to log(ptr, len): writes len bytes starting at ptr
	// to the kernel's log sink.
	Log uintptr

	// DrawRect corresponds to draw_rect(x, y, w, h, color).
	DrawRect uintptr

	// PollKey corresponds to poll_key() -> byte.
	PollKey uintptr

	// SleepMs corresponds to sleep_ms(ms).
	SleepMs uintptr

	// AllocPages corresponds to alloc_pages(count) -> ptr|null.
	AllocPages uintptr
}

// Offsets the layout above must satisfy; asserted at init time rather than
// left to a comment, since a future struct edit that breaks the ABI should
// fail loudly instead of silently corrupting every loaded module's view of
// the table.
const (
	OffsetMagic      = 0
	OffsetLog        = 8
	OffsetDrawRect   = 16
	OffsetPollKey    = 24
	OffsetSleepMs    = 32
	OffsetAllocPages = 40
	Size             = 48
)

func init() {
	var t Table
	if unsafe.Sizeof(t) != Size ||
		unsafe.Offsetof(t.Magic) != OffsetMagic ||
		unsafe.Offsetof(t.Log) != OffsetLog ||
		unsafe.Offsetof(t.DrawRect) != OffsetDrawRect ||
		unsafe.Offsetof(t.PollKey) != OffsetPollKey ||
		unsafe.Offsetof(t.SleepMs) != OffsetSleepMs ||
		unsafe.Offsetof(t.AllocPages) != OffsetAllocPages {
		panic("ktable: Table layout does not match the KernelTable ABI contract")
	}
}

// funcAddr returns the entry address of a declared function, suitable for
// storing in one of Table's pointer fields. reflect.ValueOf(fn).Pointer()
// returns a plain function's code pointer (not a method-value trampoline
// here, since every argument is a package-level func), matching how this
// codebase already relies on reflect.SliceHeader for other raw-pointer
// overlays.
func funcAddr(fn interface{}) uintptr {
	return reflect.ValueOf(fn).Pointer()
}

var table Table

// New builds and returns the singleton KernelTable, wiring each ABI slot to
// its assembly trampoline (ops_amd64.go). Magic is set once here and never
// written again (spec.md §4 invariant: "The magic field of the KernelTable
// is immutable after initialisation").
func New() *Table {
	table = Table{
		Magic:      Magic,
		Log:        funcAddr(logTrampoline),
		DrawRect:   funcAddr(drawRectTrampoline),
		PollKey:    funcAddr(pollKeyTrampoline),
		SleepMs:    funcAddr(sleepMsTrampoline),
		AllocPages: funcAddr(allocPagesTrampoline),
	}
	return &table
}
