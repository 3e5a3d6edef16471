// ops.go holds the actual Go-callable semantics behind each KernelTable
// entry. The bodyless functions in ops_amd64.go are the real ABI-facing
// trampolines a loaded module calls; they are implemented in assembly
// (outside this module's scope, same as kernel/cpu's stubs) and simply
// adapt the incoming SysV arguments into a call to the corresponding *Impl
// function below, which is what this package actually tests.
package ktable

import (
	"sasos/kernel"
	"sasos/kernel/framebuffer"
	"sasos/kernel/keyboard"
	"sasos/kernel/kfmt"
	"sasos/kernel/mem/pmm"
	"sasos/kernel/timer"
)

var allocator *pmm.Allocator

// phys2virt is supplied by kernel/kmain once vmm.Init has mapped HHDM
// (spec.md §3 "HHDM"); AllocPagesImpl never reaches raw physical addresses
// out to a loaded module.
var phys2virt = func(p uintptr) uintptr { return p }

// SetAllocator wires the PMM allocator alloc_pages draws from. Called once
// during kernel/kmain bring-up.
func SetAllocator(a *pmm.Allocator) {
	allocator = a
}

// SetTranslator installs the HHDM physical-to-virtual translator.
func SetTranslator(fn func(uintptr) uintptr) {
	phys2virt = fn
}

// LogImpl implements log(ptr, len): writes len bytes starting at ptr to the
// active kfmt output sink (spec.md §4.7 "log").
func LogImpl(ptr uintptr, length uintptr) {
	if length == 0 {
		return
	}
	kfmt.Printf("%s", kernel.ByteSliceAt(ptr, int(length)))
}

// DrawRectImpl implements draw_rect(x, y, w, h, color) (spec.md §4.7
// "draw_rect"): delegates entirely to kernel/framebuffer, which already
// clips to bounds and no-ops when no framebuffer was ever installed.
func DrawRectImpl(x, y, w, h uint32, color uint32) {
	framebuffer.DrawRect(x, y, w, h, color)
}

// PollKeyImpl implements poll_key() -> byte (spec.md §4.7 "poll_key"):
// returns the next buffered ASCII byte, or 0 if none is queued. Never
// blocks.
func PollKeyImpl() byte {
	b, ok := keyboard.PollKey()
	if !ok {
		return 0
	}
	return b
}

// SleepMsImpl implements sleep_ms(ms) (spec.md §4.7 "sleep_ms").
func SleepMsImpl(ms uint64) {
	timer.SleepMs(ms)
}

// AllocPagesImpl implements alloc_pages(count) -> ptr|null (spec.md §4.7
// "alloc_pages"): allocates count contiguous physical pages via PMM and
// returns their HHDM virtual address, or 0 ("null") if the allocator is
// exhausted.
func AllocPagesImpl(count uint64) uintptr {
	if count == 0 {
		return 0
	}
	phys, ok := allocator.AllocatePages(count)
	if !ok {
		return 0
	}
	return phys2virt(phys)
}
