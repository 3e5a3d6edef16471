package kfmt

import (
	"bytes"
	"testing"
)

func TestPrintf(t *testing.T) {
	defer func() { outputSink = nil }()

	printfn := Printf

	specs := []struct {
		fn        func()
		expOutput string
	}{
		{func() { printfn("no args") }, "no args"},
		{func() { printfn("%t", true) }, "true"},
		{func() { printfn("%41t", false) }, "false"},
		{func() { printfn("%s arg", "STRING") }, "STRING arg"},
		{func() { printfn("%s arg", []byte("BYTE SLICE")) }, "BYTE SLICE arg"},
		{func() { printfn("'%4s' padded", "AB") }, "'  AB' padded"},
		{func() { printfn("uint arg: %d", uint8(10)) }, "uint arg: 10"},
		{func() { printfn("uint arg: %o", uint16(0777)) }, "uint arg: 777"},
		{func() { printfn("uint arg: 0x%x", uint32(0xbadf00d)) }, "uint arg: 0xbadf00d"},
		{func() { printfn("int arg: %d", int8(-10)) }, "int arg: -10"},
		{func() { printfn("int arg padded: '%10d'", int64(-12345678)) }, "int arg padded: ' -12345678'"},
		{func() { printfn("%%%s%d%t", "foo", 123, true) }, `%foo123true`},
		{func() { printfn("more args", "foo") }, `more args%!(EXTRA)`},
		{func() { printfn("missing args %s") }, `missing args (MISSING)`},
		{func() { printfn("bad verb %q") }, `bad verb %!(NOVERB)`},
		{func() { printfn("not bool %t", "foo") }, `not bool %!(WRONGTYPE)`},
	}

	var buf bytes.Buffer
	SetOutputSink(&buf)

	for specIndex, spec := range specs {
		buf.Reset()
		spec.fn()

		if got := buf.String(); got != spec.expOutput {
			t.Errorf("[spec %d] expected %q, got %q", specIndex, spec.expOutput, got)
		}
	}
}

func TestFprintf(t *testing.T) {
	var buf bytes.Buffer

	exp := "hello world"
	Fprintf(&buf, exp)

	if got := buf.String(); got != exp {
		t.Fatalf("expected %q, got %q", exp, got)
	}
}

func TestPrintfBuffersUntilSinkSet(t *testing.T) {
	defer func() { outputSink = nil }()
	earlyPrintBuffer = ringBuffer{}

	Printf("buffered")

	var buf bytes.Buffer
	SetOutputSink(&buf)

	if got := buf.String(); got != "buffered" {
		t.Fatalf("expected flushed ring buffer contents %q, got %q", "buffered", got)
	}
}

func TestPrefixWriter(t *testing.T) {
	var buf bytes.Buffer
	w := PrefixWriter{Sink: &buf, Prefix: []byte("[pmm] ")}

	w.Write([]byte("line one\nline two\n"))

	exp := "[pmm] line one\n[pmm] line two\n"
	if got := buf.String(); got != exp {
		t.Fatalf("expected %q, got %q", exp, got)
	}
}
