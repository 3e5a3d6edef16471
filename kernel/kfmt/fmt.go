// Package kfmt implements a minimal, allocation-free Printf that can run
// before the heap (kernel/heap) exists. It is the only formatter this kernel
// uses anywhere below kernel/heap's initialization; once a console or serial
// sink is registered output is flushed there immediately, and before that it
// is captured by a fixed-size ring buffer.
package kfmt

import (
	"io"
	"unsafe"
)

// maxBufSize bounds the scratch buffer used to format a single integer.
const maxBufSize = 32

var (
	errMissingArg   = []byte("(MISSING)")
	errWrongArgType = []byte("%!(WRONGTYPE)")
	errNoVerb       = []byte("%!(NOVERB)")
	errExtraArg     = []byte("%!(EXTRA)")
	trueValue       = []byte("true")
	falseValue      = []byte("false")

	numFmtBuf = []byte("012345678901234567890123456789012")

	// singleByte is reused across calls so that writing one byte at a
	// time does not allocate a new slice header's backing array.
	singleByte = []byte(" ")

	// earlyPrintBuffer captures Printf output until SetOutputSink is
	// called for the first time (serial port, then console).
	earlyPrintBuffer ringBuffer

	// outputSink is where Printf sends output. Nil means "buffer it".
	outputSink io.Writer
)

// SetOutputSink directs future Printf calls to w and flushes anything
// accumulated in earlyPrintBuffer to it.
func SetOutputSink(w io.Writer) {
	outputSink = w
	if w != nil {
		io.Copy(w, &earlyPrintBuffer)
	}
}

// GetOutputSink returns the currently active output sink, or nil if Printf
// output is still being buffered.
func GetOutputSink() io.Writer {
	return outputSink
}

// Printf writes a formatted string to the active output sink (or the early
// ring buffer if none is set yet). Supported verbs: %s %d %o %x %t, with an
// optional decimal width prefix. There is no %p or %v: printing those would
// require the reflect package, which this kernel cannot safely use before
// kernel/heap is initialized.
func Printf(format string, args ...interface{}) {
	Fprintf(outputSink, format, args...)
}

// Fprintf behaves like Printf but writes to the supplied io.Writer instead of
// the package-level sink. Passing a nil writer routes output to the early
// ring buffer, matching Printf's fallback behavior.
func Fprintf(w io.Writer, format string, args ...interface{}) {
	var (
		nextCh                       byte
		nextArgIndex                 int
		blockStart, blockEnd, padLen int
		fmtLen                       = len(format)
	)

	for blockEnd < fmtLen {
		nextCh = format[blockEnd]
		if nextCh != '%' {
			blockEnd++
			continue
		}

		if blockStart < blockEnd {
			for i := blockStart; i < blockEnd; i++ {
				singleByte[0] = format[i]
				doWrite(w, singleByte)
			}
		}

		padLen = 0
		blockEnd++
	parseFmt:
		for ; blockEnd < fmtLen; blockEnd++ {
			nextCh = format[blockEnd]
			switch {
			case nextCh == '%':
				singleByte[0] = '%'
				doWrite(w, singleByte)
				break parseFmt
			case nextCh >= '0' && nextCh <= '9':
				padLen = (padLen * 10) + int(nextCh-'0')
				continue
			case nextCh == 'd' || nextCh == 'x' || nextCh == 'o' || nextCh == 's' || nextCh == 't':
				if nextArgIndex >= len(args) {
					doWrite(w, errMissingArg)
					break parseFmt
				}

				switch nextCh {
				case 'o':
					fmtInt(w, args[nextArgIndex], 8, padLen)
				case 'd':
					fmtInt(w, args[nextArgIndex], 10, padLen)
				case 'x':
					fmtInt(w, args[nextArgIndex], 16, padLen)
				case 's':
					fmtString(w, args[nextArgIndex], padLen)
				case 't':
					fmtBool(w, args[nextArgIndex])
				}

				nextArgIndex++
				break parseFmt
			default:
				doWrite(w, errNoVerb)
				break parseFmt
			}
		}
		blockStart, blockEnd = blockEnd+1, blockEnd+1
	}

	if blockStart != blockEnd {
		for i := blockStart; i < blockEnd; i++ {
			singleByte[0] = format[i]
			doWrite(w, singleByte)
		}
	}

	for ; nextArgIndex < len(args); nextArgIndex++ {
		doWrite(w, errExtraArg)
	}
}

func fmtBool(w io.Writer, v interface{}) {
	b, ok := v.(bool)
	if !ok {
		doWrite(w, errWrongArgType)
		return
	}
	if b {
		doWrite(w, trueValue)
	} else {
		doWrite(w, falseValue)
	}
}

func fmtString(w io.Writer, v interface{}, padLen int) {
	switch casted := v.(type) {
	case string:
		fmtRepeat(w, ' ', padLen-len(casted))
		for i := 0; i < len(casted); i++ {
			singleByte[0] = casted[i]
			doWrite(w, singleByte)
		}
	case []byte:
		fmtRepeat(w, ' ', padLen-len(casted))
		doWrite(w, casted)
	default:
		doWrite(w, errWrongArgType)
	}
}

func fmtRepeat(w io.Writer, ch byte, count int) {
	singleByte[0] = ch
	for i := 0; i < count; i++ {
		doWrite(w, singleByte)
	}
}

// fmtInt formats v (any built-in integer type) in the given base, applying
// left padding to padLen.
func fmtInt(w io.Writer, v interface{}, base, padLen int) {
	var (
		sval             int64
		uval             uint64
		divider          uint64
		padCh            byte
		left, right, end int
	)

	if padLen >= maxBufSize {
		padLen = maxBufSize - 1
	}

	switch base {
	case 8:
		divider, padCh = 8, '0'
	case 10:
		divider, padCh = 10, ' '
	case 16:
		divider, padCh = 16, '0'
	}

	switch casted := v.(type) {
	case uint8:
		uval = uint64(casted)
	case uint16:
		uval = uint64(casted)
	case uint32:
		uval = uint64(casted)
	case uint64:
		uval = casted
	case uintptr:
		uval = uint64(casted)
	case int8:
		sval = int64(casted)
	case int16:
		sval = int64(casted)
	case int32:
		sval = int64(casted)
	case int64:
		sval = casted
	case int:
		sval = int64(casted)
	default:
		doWrite(w, errWrongArgType)
		return
	}

	if sval < 0 {
		uval = uint64(-sval)
	} else if sval > 0 {
		uval = uint64(sval)
	}

	for right < maxBufSize {
		remainder := uval % divider
		if remainder < 10 {
			numFmtBuf[right] = byte(remainder) + '0'
		} else {
			numFmtBuf[right] = byte(remainder-10) + 'a'
		}
		right++

		uval /= divider
		if uval == 0 {
			break
		}
	}

	for ; right-left < padLen; right++ {
		numFmtBuf[right] = padCh
	}

	if sval < 0 {
		for end = right - 1; numFmtBuf[end] == ' '; end-- {
		}
		if end == right-1 {
			right++
		}
		numFmtBuf[end+1] = '-'
	}

	end = right
	for right = right - 1; left < right; left, right = left+1, right-1 {
		numFmtBuf[left], numFmtBuf[right] = numFmtBuf[right], numFmtBuf[left]
	}

	doWrite(w, numFmtBuf[0:end])
}

// doWrite hides p from escape analysis via noEscape so that formatting calls
// made before kernel/heap exists do not trigger a heap allocation.
func doWrite(w io.Writer, p []byte) {
	doRealWrite(w, noEscape(unsafe.Pointer(&p)))
}

func doRealWrite(w io.Writer, bufPtr unsafe.Pointer) {
	p := *(*[]byte)(bufPtr)
	if w != nil {
		w.Write(p)
	} else {
		earlyPrintBuffer.Write(p)
	}
}

//go:nosplit
func noEscape(p unsafe.Pointer) unsafe.Pointer {
	x := uintptr(p)
	return unsafe.Pointer(x ^ 0)
}
