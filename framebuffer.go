// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: Ryan Johnson

package rfb

import (
	"fmt"
	"image"
	"sync"
)

// Framebuffer is the authoritative local mirror of the server's display. It
// holds raw pixel bytes in the negotiated PixelFormat. The session is its
// single writer: decoders mutate it synchronously inside the network loop,
// so no two decode-and-apply operations ever run concurrently. The rendering
// collaborator reads it only through the snapshot methods.
type Framebuffer struct {
	mu sync.RWMutex

	width  uint16
	height uint16
	format PixelFormat
	buf    []byte

	colorMap [ColorMapSize]Color
}

// NewFramebuffer allocates a framebuffer of the given geometry and format.
func NewFramebuffer(width, height uint16, format PixelFormat) *Framebuffer {
	fb := &Framebuffer{}
	fb.reset(width, height, format)
	return fb
}

// reset reallocates the pixel buffer under the write lock.
func (fb *Framebuffer) reset(width, height uint16, format PixelFormat) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.width = width
	fb.height = height
	fb.format = format
	fb.buf = make([]byte, int(width)*int(height)*format.BytesPerPixel())
}

// Size returns the framebuffer dimensions in pixels.
func (fb *Framebuffer) Size() (width, height uint16) {
	fb.mu.RLock()
	defer fb.mu.RUnlock()
	return fb.width, fb.height
}

// Format returns the pixel format the buffer is stored in.
func (fb *Framebuffer) Format() PixelFormat {
	fb.mu.RLock()
	defer fb.mu.RUnlock()
	return fb.format
}

// SetFormat replaces the pixel format and clears the buffer. The old contents
// are meaningless under the new format, so the next update must be a full
// non-incremental one.
func (fb *Framebuffer) SetFormat(format PixelFormat) {
	w, h := fb.Size()
	fb.reset(w, h, format)
}

// Resize replaces the framebuffer geometry, clearing the contents. Used when
// a DesktopSize pseudo-rectangle is honored.
func (fb *Framebuffer) Resize(width, height uint16) {
	fb.reset(width, height, fb.Format())
}

// checkBounds validates a rectangle against the framebuffer geometry. A
// violation means the byte stream is desynchronized and is a fatal protocol
// error, never a clamp.
func (fb *Framebuffer) checkBounds(op string, x, y, w, h uint16) error {
	if uint32(x)+uint32(w) > uint32(fb.width) || uint32(y)+uint32(h) > uint32(fb.height) {
		return protocolError(op,
			fmt.Sprintf("rectangle %dx%d at (%d,%d) exceeds framebuffer %dx%d",
				w, h, x, y, fb.width, fb.height), nil)
	}
	return nil
}

// ApplyRaw copies decoded pixel rows into the rectangle at (x,y). data must
// hold exactly w*h pixels in the framebuffer's format.
func (fb *Framebuffer) ApplyRaw(x, y, w, h uint16, data []byte) error {
	fb.mu.Lock()
	defer fb.mu.Unlock()

	if err := fb.checkBounds("Framebuffer.ApplyRaw", x, y, w, h); err != nil {
		return err
	}

	bpp := fb.format.BytesPerPixel()
	if len(data) != int(w)*int(h)*bpp {
		return protocolError("Framebuffer.ApplyRaw",
			fmt.Sprintf("pixel data length %d does not match %dx%d rectangle", len(data), w, h), nil)
	}

	rowLen := int(w) * bpp
	stride := int(fb.width) * bpp
	src := 0
	dst := (int(y)*int(fb.width) + int(x)) * bpp
	for row := 0; row < int(h); row++ {
		copy(fb.buf[dst:dst+rowLen], data[src:src+rowLen])
		src += rowLen
		dst += stride
	}
	return nil
}

// Fill sets every pixel of the rectangle at (x,y) to the given wire pixel.
func (fb *Framebuffer) Fill(x, y, w, h uint16, pixel []byte) error {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return fb.fillLocked(x, y, w, h, pixel)
}

func (fb *Framebuffer) fillLocked(x, y, w, h uint16, pixel []byte) error {
	if err := fb.checkBounds("Framebuffer.Fill", x, y, w, h); err != nil {
		return err
	}

	bpp := fb.format.BytesPerPixel()
	stride := int(fb.width) * bpp
	rowStart := (int(y)*int(fb.width) + int(x)) * bpp
	for row := 0; row < int(h); row++ {
		off := rowStart
		for col := 0; col < int(w); col++ {
			copy(fb.buf[off:off+bpp], pixel)
			off += bpp
		}
		rowStart += stride
	}
	return nil
}

// FillRegion fills a sub-rectangle relative to an enclosing rectangle, used
// by RRE and Hextile sub-rectangle application. The enclosing rectangle must
// already have been bounds-checked; this validates only the sub-rectangle
// against its parent.
func (fb *Framebuffer) FillRegion(rectX, rectY, rectW, rectH, subX, subY, subW, subH uint16, pixel []byte) error {
	if uint32(subX)+uint32(subW) > uint32(rectW) || uint32(subY)+uint32(subH) > uint32(rectH) {
		return protocolError("Framebuffer.FillRegion",
			fmt.Sprintf("sub-rectangle %dx%d at (%d,%d) exceeds parent %dx%d",
				subW, subH, subX, subY, rectW, rectH), nil)
	}
	return fb.Fill(rectX+subX, rectY+subY, subW, subH, pixel)
}

// CopyRect copies a w*h block from (srcX,srcY) to (dstX,dstY) as a single
// atomic operation: source and destination may overlap in any configuration
// and the result is as if the entire source were read before any write.
func (fb *Framebuffer) CopyRect(dstX, dstY, srcX, srcY, w, h uint16) error {
	fb.mu.Lock()
	defer fb.mu.Unlock()

	if err := fb.checkBounds("Framebuffer.CopyRect", srcX, srcY, w, h); err != nil {
		return err
	}
	if err := fb.checkBounds("Framebuffer.CopyRect", dstX, dstY, w, h); err != nil {
		return err
	}

	bpp := fb.format.BytesPerPixel()
	stride := int(fb.width) * bpp
	rowLen := int(w) * bpp

	// Row-level copies overlap when source and destination rows intersect;
	// choosing the iteration direction by vertical order makes each row copy
	// safe, and copy() itself handles horizontal overlap within a row.
	if dstY <= srcY {
		for row := 0; row < int(h); row++ {
			src := (int(srcY)+row)*stride + int(srcX)*bpp
			dst := (int(dstY)+row)*stride + int(dstX)*bpp
			copy(fb.buf[dst:dst+rowLen], fb.buf[src:src+rowLen])
		}
	} else {
		for row := int(h) - 1; row >= 0; row-- {
			src := (int(srcY)+row)*stride + int(srcX)*bpp
			dst := (int(dstY)+row)*stride + int(dstX)*bpp
			copy(fb.buf[dst:dst+rowLen], fb.buf[src:src+rowLen])
		}
	}
	return nil
}

// SetColorMapEntry installs one color map entry for indexed formats.
func (fb *Framebuffer) SetColorMapEntry(index uint16, c Color) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.colorMap[index%ColorMapSize] = c
}

// ClearColorMap resets all color map entries, as required after a pixel
// format change to an indexed mode.
func (fb *Framebuffer) ClearColorMap() {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.colorMap = [ColorMapSize]Color{}
}

// Snapshot returns a copy of the raw pixel buffer. The copy is taken under
// the read lock, so it never observes a decode in progress.
func (fb *Framebuffer) Snapshot() []byte {
	fb.mu.RLock()
	defer fb.mu.RUnlock()
	out := make([]byte, len(fb.buf))
	copy(out, fb.buf)
	return out
}

// RGBA converts the framebuffer contents to an image for the rendering
// collaborator, scaling channels to 8 bits and resolving indexed pixels
// through the color map.
func (fb *Framebuffer) RGBA() *image.RGBA {
	fb.mu.RLock()
	defer fb.mu.RUnlock()

	img := image.NewRGBA(image.Rect(0, 0, int(fb.width), int(fb.height)))
	bpp := fb.format.BytesPerPixel()

	src := 0
	dst := 0
	for y := 0; y < int(fb.height); y++ {
		for x := 0; x < int(fb.width); x++ {
			r, g, b := pixelToRGB8(fb.buf[src:src+bpp], &fb.format, &fb.colorMap)
			img.Pix[dst+0] = r
			img.Pix[dst+1] = g
			img.Pix[dst+2] = b
			img.Pix[dst+3] = 0xff
			src += bpp
			dst += 4
		}
	}
	return img
}
