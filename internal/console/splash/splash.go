// Package splash renders a boot banner onto the BCM2837's mailbox
// framebuffer, the fallback diagnostic surface for when UART output
// isn't wired yet or isn't visible (e.g. a real HDMI-attached board).
// Drawing is done with gg.Context the same way the teacher's
// gg_circle_qemu.go draws its test pattern into an in-memory RGBA
// image before flushing it to hardware, except the destination here is
// the real mailbox-allocated framebuffer rather than a QEMU
// bochs-display BAR.
package splash

import (
	"fmt"
	"image"
	"unsafe"

	"github.com/fogleman/gg"
	"golang.org/x/image/font/basicfont"

	"github.com/mazboot/rpi3kernel/internal/bsp/rpi3"
)

const bytesPerPixel = 4 // XRGB8888, matching the VideoCore firmware's default depth

// Mailbox property-tag IDs used to negotiate a framebuffer, per the
// Raspberry Pi firmware's documented property-channel interface.
const (
	tagSetPhysicalSize = 0x00048003
	tagSetVirtualSize  = 0x00048004
	tagSetDepth        = 0x00048005
	tagAllocateBuffer  = 0x00040001
)

// Framebuffer is a mailbox-negotiated linear RGBA buffer.
type Framebuffer struct {
	Width, Height uint32
	Pitch         uint32
	addr          uintptr
	size          uint32
}

// Request asks the VideoCore firmware for a width x height XRGB8888
// framebuffer. The tag sequence mirrors the standard Pi mailbox
// framebuffer negotiation (physical size, virtual size, depth, then
// allocate), built on top of rpi3.MailboxCall the way the teacher builds
// its bochs-display init on top of raw MMIO writes.
func Request(width, height uint32) (*Framebuffer, error) {
	tags := []rpi3.MailboxTag{
		{ID: tagSetPhysicalSize, Values: []uint32{width, height}},
		{ID: tagSetVirtualSize, Values: []uint32{width, height}},
		{ID: tagSetDepth, Values: []uint32{32}},
		{ID: tagAllocateBuffer, Values: []uint32{4096, 0}}, // [alignment, size-out]
	}
	if !rpi3.MailboxCall(tags) {
		return nil, fmt.Errorf("splash: mailbox framebuffer request failed")
	}

	alloc := tags[3].Values
	if len(alloc) < 2 || alloc[0] == 0 {
		return nil, fmt.Errorf("splash: firmware returned no framebuffer")
	}

	return &Framebuffer{
		Width:  width,
		Height: height,
		Pitch:  width * bytesPerPixel,
		addr:   uintptr(alloc[0] &^ 0xC0000000), // bus address -> ARM physical
		size:   alloc[1],
	}, nil
}

func (fb *Framebuffer) pixels() []uint32 {
	return unsafe.Slice((*uint32)(unsafe.Pointer(fb.addr)), fb.size/4)
}

// blit copies an RGBA image into the framebuffer, converting to XRGB8888.
func (fb *Framebuffer) blit(img *image.RGBA) {
	dst := fb.pixels()
	w, h := int(fb.Width), int(fb.Height)
	for y := 0; y < h && y < img.Bounds().Dy(); y++ {
		row := y * int(fb.Pitch/bytesPerPixel)
		for x := 0; x < w && x < img.Bounds().Dx(); x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			dst[row+x] = uint32(b>>8) | uint32(g>>8)<<8 | uint32(r>>8)<<16
		}
	}
}

// Banner draws the boot-time status banner (board name and a handful of
// key/value lines, e.g. granule size and heap byte counts) and flushes
// it to fb.
func Banner(fb *Framebuffer, title string, lines []string) {
	dc := gg.NewContext(int(fb.Width), int(fb.Height))
	dc.SetRGB(0.098, 0.106, 0.439) // midnight blue, matching the teacher's test-pattern fill
	dc.Clear()
	dc.SetFontFace(basicfont.Face7x13)
	dc.SetRGB(1, 1, 1)

	y := 24.0
	dc.DrawString(title, 16, y)
	y += 20
	for _, line := range lines {
		dc.DrawString(line, 16, y)
		y += 16
	}

	fb.blit(dc.Image().(*image.RGBA))
}
