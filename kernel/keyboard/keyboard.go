// Package keyboard decodes PS/2 scancodes into ASCII bytes and queues them
// in a fixed-size ring buffer for KernelTable's poll_key entry (spec.md §4.7
// "poll_key"). gopher-os's own kernel/hal/input/keyboard_ps2.go supplies the
// scancode table and IRQ-driven capture this package's Handle and set-1
// table are grounded on; the ring buffer itself follows the single-
// producer/single-consumer index-pair idiom used throughout the teacher
// codebase wherever an ISR hands data to polled consumers.
package keyboard

import "sasos/kernel/kfmt"

// bufferSize must be a power of two so index wraparound is a cheap mask.
const bufferSize = 256

var (
	buf        [bufferSize]byte
	readIndex  uint32
	writeIndex uint32
)

// set1ToASCII maps PS/2 scancode set 1 make-codes to their ASCII
// equivalent for the unshifted US QWERTY layout; 0 marks codes with no
// printable ASCII equivalent (function keys, modifiers, break codes).
var set1ToASCII = [128]byte{
	0x1E: 'a', 0x30: 'b', 0x2E: 'c', 0x20: 'd', 0x12: 'e',
	0x21: 'f', 0x22: 'g', 0x23: 'h', 0x17: 'i', 0x24: 'j',
	0x25: 'k', 0x26: 'l', 0x32: 'm', 0x31: 'n', 0x18: 'o',
	0x19: 'p', 0x10: 'q', 0x13: 'r', 0x1F: 's', 0x14: 't',
	0x16: 'u', 0x2F: 'v', 0x11: 'w', 0x2D: 'x', 0x15: 'y', 0x2C: 'z',
	0x02: '1', 0x03: '2', 0x04: '3', 0x05: '4', 0x06: '5',
	0x07: '6', 0x08: '7', 0x09: '8', 0x0A: '9', 0x0B: '0',
	0x39: ' ', 0x1C: '\n', 0x0E: '\b', 0x0F: '\t',
}

func decode(scancode byte) (b byte, ok bool) {
	if scancode&0x80 != 0 {
		return 0, false // break code, ignore
	}
	if int(scancode) >= len(set1ToASCII) {
		return 0, false
	}
	ascii := set1ToASCII[scancode]
	if ascii == 0 {
		return 0, false
	}
	return ascii, true
}

func full() bool {
	return writeIndex-readIndex == bufferSize
}

// push enqueues b, dropping it and logging a warning if the ring is full
// (spec.md §4.7 "Overflow policy": drop the new byte, keep the old ones).
func push(b byte) {
	if full() {
		kfmt.Printf("keyboard: ring buffer full, dropping scancode\n")
		return
	}
	buf[writeIndex%bufferSize] = b
	writeIndex++
}

// Handle is called from the keyboard IRQ handler with the raw scancode read
// from port 0x60. Non-printable and break codes are silently discarded.
func Handle(scancode byte) {
	if b, ok := decode(scancode); ok {
		push(b)
	}
}

// PollKey implements KernelTable's poll_key: returns the oldest queued byte
// and true, or 0 and false if the ring is empty. Non-blocking by design —
// spec.md §4.7 leaves blocking policy to the caller.
func PollKey() (byte, bool) {
	if readIndex == writeIndex {
		return 0, false
	}
	b := buf[readIndex%bufferSize]
	readIndex++
	return b, true
}
