// Package kernel provides the error type and raw-memory primitives shared by
// every other kernel package. It exists at the import root so that leaf
// packages (pmm, vmm, heap, elf) can depend on it without import cycles.
package kernel

import (
	"reflect"
	"unsafe"
)

// Error describes a kernel error. All kernel errors are defined as package
// level variables that are pointers to Error. This mirrors the teacher's
// convention of avoiding errors.New, since the heap this package guards is
// not guaranteed to be up yet when early errors are constructed.
type Error struct {
	// Module names the subsystem that produced the error.
	Module string

	// Message is a short, human readable description.
	Message string
}

// Error implements the error interface.
func (e *Error) Error() string {
	return e.Message
}

// Memset sets size bytes starting at addr to value. It overlays a byte slice
// on top of the raw address via reflect.SliceHeader since there is no
// allocator-backed way to obtain a []byte for an arbitrary physical or HHDM
// address.
func Memset(addr uintptr, value byte, size uintptr) {
	if size == 0 {
		return
	}

	target := *(*[]byte)(unsafe.Pointer(&reflect.SliceHeader{
		Len:  int(size),
		Cap:  int(size),
		Data: addr,
	}))

	target[0] = value
	for index := uintptr(1); index < size; index *= 2 {
		copy(target[index:], target[:index])
	}
}

// Memcopy copies size bytes from src to dst. The two regions must not
// overlap.
func Memcopy(src, dst uintptr, size uintptr) {
	if size == 0 {
		return
	}

	srcSlice := *(*[]byte)(unsafe.Pointer(&reflect.SliceHeader{
		Len:  int(size),
		Cap:  int(size),
		Data: src,
	}))
	dstSlice := *(*[]byte)(unsafe.Pointer(&reflect.SliceHeader{
		Len:  int(size),
		Cap:  int(size),
		Data: dst,
	}))

	copy(dstSlice, srcSlice)
}

// ByteSliceAt overlays a []byte of the given length on top of addr. Callers
// are responsible for ensuring the region is actually mapped and owned.
func ByteSliceAt(addr uintptr, length int) []byte {
	return *(*[]byte)(unsafe.Pointer(&reflect.SliceHeader{
		Len:  length,
		Cap:  length,
		Data: addr,
	}))
}

// Uint64SliceAt overlays a []uint64 of the given length (in words) on top of
// addr.
func Uint64SliceAt(addr uintptr, words int) []uint64 {
	return *(*[]uint64)(unsafe.Pointer(&reflect.SliceHeader{
		Len:  words,
		Cap:  words,
		Data: addr,
	}))
}
