package boot

import "unsafe"

// The request/response structs below mirror the shape of the Limine boot
// protocol (spec.md §6): each request is a fixed-layout struct embedding a
// 4-word magic/ID, a revision, and a response pointer the bootloader fills
// in before jumping to the kernel entry point. In a real build these globals
// are placed inside the `.limine_reqs` link section (bracketed by the
// 32-byte start marker and 16-byte end marker spec.md §6 describes) by the
// linker script that the build pipeline owns; that placement is outside
// this module's scope (spec.md §1 names "the build and boot-image assembly
// pipeline" as a thin external collaborator). This file only defines the
// struct layout and the parsing logic that runs once the bootloader has
// populated it.

// limineMarker is the 32-byte/16-byte sentinel value bracketing the
// .limine_reqs section so the bootloader can find where requests begin and
// end without a symbol table.
type limineMarker [4]uint64

var (
	requestsStartMarker = limineMarker{0xf6b8f4b39de7d1ae, 0xfab91a6940fcb9cf, 0x785c6ed015d3e316, 0x181e920a7852b9d9}
	requestsEndMarker   = [2]uint64{0xadc0e0531bb10d03, 0x9572709f31764c62}
)

type limineID [4]uint64

// memmapRequest/Response mirror Limine's memory map feature.
type memmapRequest struct {
	id       limineID
	revision uint64
	response *memmapResponse
}

type memmapResponse struct {
	revision  uint64
	entryCnt  uint64
	entries   **limineMemmapEntry
}

type limineMemmapEntry struct {
	base   uint64
	length uint64
	typ    uint64
}

// hhdmRequest/Response mirror Limine's higher-half direct map feature.
type hhdmRequest struct {
	id       limineID
	revision uint64
	response *hhdmResponse
}

type hhdmResponse struct {
	revision uint64
	offset   uint64
}

// kernelAddressRequest/Response report the kernel's virtual/physical load
// addresses.
type kernelAddressRequest struct {
	id       limineID
	revision uint64
	response *kernelAddressResponse
}

type kernelAddressResponse struct {
	revision     uint64
	physicalBase uint64
	virtualBase  uint64
}

// moduleRequest/Response report the boot modules loaded alongside the
// kernel.
type moduleRequest struct {
	id       limineID
	revision uint64
	response *moduleResponse
}

type moduleResponse struct {
	revision   uint64
	moduleCnt  uint64
	modules    **limineFile
}

type limineFile struct {
	revision uint64
	address  uintptr
	size     uint64
	path     *byte // NUL-terminated C string
}

// framebufferRequest/Response report the bootloader-initialized linear
// framebuffer.
type framebufferRequest struct {
	id       limineID
	revision uint64
	response *framebufferResponse
}

type framebufferResponse struct {
	revision        uint64
	framebufferCnt  uint64
	framebuffers    **limineFramebuffer
}

type limineFramebuffer struct {
	address uintptr
	width   uint64
	height  uint64
	pitch   uint64
	bpp     uint16
}

// baseRevision is the kernel's requested protocol base revision vector; the
// bootloader zeroes the third word on success (spec.md §6).
var baseRevision = [3]uint64{0xf9562b2d5c95a6c8, 0x6a7b384944536bdc, 3}

var (
	memmapReq  = memmapRequest{response: nil}
	hhdmReq    = hhdmRequest{response: nil}
	kaddrReq   = kernelAddressRequest{response: nil}
	moduleReq  = moduleRequest{response: nil}
	fbReq      = framebufferRequest{response: nil}
)

// limineInfo implements Info on top of the raw Limine response pointers.
// The zero value is unusable; construct one via NewLimineInfo after the
// bootloader has populated the request responses.
type limineInfo struct{}

// NewLimineInfo returns the Info implementation backed by whatever the
// bootloader already wrote into the package-level request responses. It
// does not itself wait for or validate the handoff: kernel/kmain is
// responsible for treating a nil response as the fatal "missing bootloader
// response" condition (spec.md §7).
func NewLimineInfo() Info {
	return limineInfo{}
}

func (limineInfo) HHDMOffset() uintptr {
	if hhdmReq.response == nil {
		return 0
	}
	return uintptr(hhdmReq.response.offset)
}

func (limineInfo) KernelAddresses() (virtualBase, physicalBase uintptr) {
	if kaddrReq.response == nil {
		return 0, 0
	}
	return uintptr(kaddrReq.response.virtualBase), uintptr(kaddrReq.response.physicalBase)
}

func (limineInfo) VisitMemRegions(visitor MemRegionVisitor) {
	if memmapReq.response == nil {
		return
	}

	count := int(memmapReq.response.entryCnt)
	base := uintptr(unsafe.Pointer(memmapReq.response.entries))
	for i := 0; i < count; i++ {
		entryPtrPtr := (**limineMemmapEntry)(unsafe.Pointer(base + uintptr(i)*unsafe.Sizeof(uintptr(0))))
		raw := *entryPtrPtr

		entry := MemoryMapEntry{
			Base:   raw.base,
			Length: raw.length,
			Type:   limineTypeToRegionType(raw.typ),
		}
		if !visitor(&entry) {
			return
		}
	}
}

func limineTypeToRegionType(t uint64) RegionType {
	switch t {
	case 0:
		return RegionUsable
	case 1:
		return RegionReserved
	case 2:
		return RegionACPIReclaimable
	case 3:
		return RegionACPINvs
	case 4:
		return RegionBad
	case 5:
		return RegionBootloaderReclaimable
	case 6:
		return RegionExecutableAndModules
	case 7:
		return RegionFramebuffer
	default:
		return RegionReserved
	}
}

func (limineInfo) Modules() []Module {
	if moduleReq.response == nil {
		return nil
	}

	count := int(moduleReq.response.moduleCnt)
	base := uintptr(unsafe.Pointer(moduleReq.response.modules))
	mods := make([]Module, 0, count)
	for i := 0; i < count; i++ {
		filePtrPtr := (**limineFile)(unsafe.Pointer(base + uintptr(i)*unsafe.Sizeof(uintptr(0))))
		f := *filePtrPtr

		mods = append(mods, Module{
			Path: cStringToGoString(f.path),
			Base: f.address,
			Size: f.size,
		})
	}
	return mods
}

func (limineInfo) Framebuffer() *FramebufferInfo {
	if fbReq.response == nil || fbReq.response.framebufferCnt == 0 {
		return nil
	}

	firstPtrPtr := (**limineFramebuffer)(unsafe.Pointer(fbReq.response.framebuffers))
	raw := *firstPtrPtr

	return &FramebufferInfo{
		Address: raw.address,
		Width:   raw.width,
		Height:  raw.height,
		Pitch:   raw.pitch,
		Bpp:     raw.bpp,
	}
}

func (limineInfo) BaseRevisionSupported() bool {
	return baseRevision[2] == 0
}

// cStringToGoString converts a NUL-terminated C string at ptr into a Go
// string without allocating an intermediate []byte copy of unbounded size.
func cStringToGoString(ptr *byte) string {
	if ptr == nil {
		return ""
	}

	n := 0
	for {
		b := *(*byte)(unsafe.Pointer(uintptr(unsafe.Pointer(ptr)) + uintptr(n)))
		if b == 0 {
			break
		}
		n++
	}

	bytes := make([]byte, n)
	for i := 0; i < n; i++ {
		bytes[i] = *(*byte)(unsafe.Pointer(uintptr(unsafe.Pointer(ptr)) + uintptr(i)))
	}
	return string(bytes)
}
