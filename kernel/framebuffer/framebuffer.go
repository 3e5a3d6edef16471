// Package framebuffer draws flat-color rectangles into the linear 32-bit
// ARGB framebuffer the bootloader hands off, backing KernelTable's
// draw_rect entry (spec.md §4.7 "draw_rect"). gopher-os's
// kernel/hal/multiboot/console_fb.go and kernel/console/console_fb.go pull
// the same bootloader framebuffer description apart (width, height,
// pitch, bpp) to blit glyphs; this package reuses that layout reasoning
// for flat-rectangle fills instead of font rendering.
package framebuffer

import "unsafe"

var (
	base   uintptr // virtual address of the first pixel
	width  uint32
	height uint32
	pitch  uint32 // bytes per scanline, may exceed width*4 for alignment
	ready  bool
)

// Init installs the framebuffer's geometry, as reported by the bootloader
// (spec.md §3 "boot.Info"). Called once during kernel/kmain bring-up.
func Init(virtBase uintptr, w, h, pitchBytes uint32) {
	base, width, height, pitch = virtBase, w, h, pitchBytes
	ready = true
}

func pixelAddr(x, y uint32) uintptr {
	return base + uintptr(y)*uintptr(pitch) + uintptr(x)*4
}

func putPixel(x, y uint32, color uint32) {
	*(*uint32)(unsafe.Pointer(pixelAddr(x, y))) = color
}

// clip restricts [x, x+w) x [y, y+h) to the framebuffer's bounds,
// returning ok=false if the rectangle lies entirely outside it.
func clip(x, y, w, h uint32) (cx, cy, cw, ch uint32, ok bool) {
	if x >= width || y >= height {
		return 0, 0, 0, 0, false
	}
	cw, ch = w, h
	if x+cw > width {
		cw = width - x
	}
	if y+ch > height {
		ch = height - y
	}
	if cw == 0 || ch == 0 {
		return 0, 0, 0, 0, false
	}
	return x, y, cw, ch, true
}

// DrawRect fills [x, x+w) x [y, y+h) with color, clipped to the
// framebuffer's bounds. A no-op if Init has not yet been called or the
// bootloader reported no framebuffer at all (spec.md §4.7: "if unmapped,
// draw_rect is a no-op").
func DrawRect(x, y, w, h uint32, color uint32) {
	if !ready {
		return
	}
	cx, cy, cw, ch, ok := clip(x, y, w, h)
	if !ok {
		return
	}
	for row := cy; row < cy+ch; row++ {
		for col := cx; col < cx+cw; col++ {
			putPixel(col, row, color)
		}
	}
}
