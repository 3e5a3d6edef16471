// Package serial drives the COM1 UART as a byte sink. It is deliberately
// thin (spec.md §1 lists "the serial logger" among the external
// collaborators the core merely consumes), grounded on the teacher's
// port-I/O primitives in kernel/cpu rather than any teacher serial driver
// (gopher-os never wrote one — its console output goes through the VGA/VESA
// framebuffer instead).
package serial

import "sasos/kernel/cpu"

const (
	com1 = 0x3F8

	lineStatusOffset    = 5
	transmitEmptyBit    = 1 << 5
	lineControlOffset   = 3
	divisorLatchBit     = 1 << 7
	fifoControlOffset   = 2
	modemControlOffset  = 4
	interruptEnableOffs = 1
)

// inB/outB are seams over cpu.InB/cpu.OutB so Init/WriteByte can be tested
// without real hardware.
var (
	inB  = cpu.InB
	outB = cpu.OutB
)

// Init programs COM1 for 38400 8N1 with FIFOs enabled, the standard
// sequence for a polled (non-interrupt-driven) serial console.
func Init() {
	outB(com1+interruptEnableOffs, 0x00) // disable interrupts
	outB(com1+lineControlOffset, divisorLatchBit)
	outB(com1+0, 0x03) // divisor low byte: 38400 baud
	outB(com1+1, 0x00) // divisor high byte
	outB(com1+lineControlOffset, 0x03) // 8N1, divisor latch off
	outB(com1+fifoControlOffset, 0xC7) // enable + clear FIFOs, 14-byte threshold
	outB(com1+modemControlOffset, 0x0B) // DTR/RTS set, OUT2 (IRQ enable) set; polled here, so unused
}

func transmitReady() bool {
	return inB(com1+lineStatusOffset)&transmitEmptyBit != 0
}

// WriteByte blocks until the transmit holding register is empty, then
// writes b. Writer wraps it as an io.Writer for kfmt.SetOutputSink.
func WriteByte(b byte) error {
	for !transmitReady() {
	}
	outB(com1, b)
	return nil
}

// Writer adapts WriteByte to io.Writer for kfmt's output sink.
type Writer struct{}

func (Writer) Write(p []byte) (int, error) {
	for _, b := range p {
		if err := WriteByte(b); err != nil {
			return 0, err
		}
	}
	return len(p), nil
}
