// Package ktable's ABI-facing trampolines. Each is declared with no body
// and implemented in a hand-written assembly stub (outside this module's
// scope, same convention as kernel/cpu/cpu_amd64.go): the stub adapts the
// incoming SysV arguments (RDI, RSI, RDX, RCX, R8 in order) into a call to
// the matching *Impl function in ops.go, and for poll_key/alloc_pages
// copies the Go return value back into RAX. Only these five functions'
// addresses are ever stored in a Table; callers never invoke them as Go
// functions directly.
package ktable

func logTrampoline(ptr uintptr, length uintptr)

func drawRectTrampoline(x, y, w, h uint32, color uint32)

func pollKeyTrampoline() byte

func sleepMsTrampoline(ms uint64)

func allocPagesTrampoline(count uint64) uintptr
