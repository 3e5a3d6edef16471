package ktable

import (
	"bytes"
	"testing"
	"unsafe"

	"sasos/kernel/framebuffer"
	"sasos/kernel/kfmt"
	"sasos/kernel/mem/pmm"
)

func TestLogImplWritesBytesToSink(t *testing.T) {
	var buf bytes.Buffer
	defer kfmt.SetOutputSink(nil)
	kfmt.SetOutputSink(&buf)

	msg := []byte("hello kernel")
	ptr := uintptr(unsafe.Pointer(&msg[0]))

	LogImpl(ptr, uintptr(len(msg)))

	if buf.String() != "hello kernel" {
		t.Fatalf("expected %q, got %q", "hello kernel", buf.String())
	}
}

func TestLogImplZeroLengthIsNoOp(t *testing.T) {
	var buf bytes.Buffer
	defer kfmt.SetOutputSink(nil)
	kfmt.SetOutputSink(&buf)

	LogImpl(0, 0)

	if buf.Len() != 0 {
		t.Fatalf("expected no output for a zero-length log call, got %q", buf.String())
	}
}

func TestDrawRectImplDelegatesToFramebuffer(t *testing.T) {
	buf := make([]byte, 4*4*4)
	framebuffer.Init(uintptr(unsafe.Pointer(&buf[0])), 4, 4, 16)

	DrawRectImpl(0, 0, 2, 2, 0xFFFFFFFF)

	got := *(*uint32)(unsafe.Pointer(&buf[0]))
	if got != 0xFFFFFFFF {
		t.Fatalf("expected top-left pixel filled, got %#x", got)
	}
}

func TestPollKeyImplReturnsZeroWhenEmpty(t *testing.T) {
	if got := PollKeyImpl(); got != 0 {
		t.Fatalf("expected 0 for an empty keyboard queue, got %#x", got)
	}
}

func TestAllocPagesImplReturnsHHDMAddress(t *testing.T) {
	origAlloc, origTranslator := allocator, phys2virt
	defer func() { allocator, phys2virt = origAlloc, origTranslator }()

	SetAllocator(pmm.NewForTesting(4))
	SetTranslator(func(p uintptr) uintptr { return p + 0x1000_0000 })

	got := AllocPagesImpl(2)
	if got == 0 {
		t.Fatal("expected a non-null address for a satisfiable allocation")
	}
	if got < 0x1000_0000 {
		t.Fatalf("expected the HHDM translator to be applied, got %#x", got)
	}
}

func TestAllocPagesImplReturnsNullOnExhaustion(t *testing.T) {
	origAlloc, origTranslator := allocator, phys2virt
	defer func() { allocator, phys2virt = origAlloc, origTranslator }()

	SetAllocator(pmm.NewForTesting(1))
	SetTranslator(func(p uintptr) uintptr { return p })

	if got := AllocPagesImpl(2); got != 0 {
		t.Fatalf("expected null for an unsatisfiable allocation, got %#x", got)
	}
}

func TestAllocPagesImplZeroCountReturnsNull(t *testing.T) {
	if got := AllocPagesImpl(0); got != 0 {
		t.Fatalf("expected null for a zero-page request, got %#x", got)
	}
}
