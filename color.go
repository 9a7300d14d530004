// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: Ryan Johnson

package rfb

// Color represents a single color with 16-bit components, matching the wire
// precision of SetColourMapEntries.
type Color struct {
	R uint16
	G uint16
	B uint16
}

// ColorMapSize is the number of entries in an indexed-color map.
const ColorMapSize = 256

// RGBA8 converts the color to 8-bit components.
func (c Color) RGBA8() (r, g, b uint8) {
	return uint8(c.R >> 8), uint8(c.G >> 8), uint8(c.B >> 8)
}

// pixelToRGB8 converts one wire pixel to 8-bit RGB under the given format,
// consulting the color map for indexed formats. Channel values are scaled
// from the format's per-channel maxima to the full 0-255 range.
func pixelToRGB8(buf []byte, pf *PixelFormat, colorMap *[ColorMapSize]Color) (r, g, b uint8) {
	if !pf.TrueColor {
		idx := buf[0]
		c := colorMap[idx]
		return uint8(c.R >> 8), uint8(c.G >> 8), uint8(c.B >> 8)
	}

	rv, gv, bv := pf.DecodePixel(buf)
	return scaleChannel(rv, pf.RedMax), scaleChannel(gv, pf.GreenMax), scaleChannel(bv, pf.BlueMax)
}

// scaleChannel maps a channel value from [0, max] onto [0, 255].
func scaleChannel(v, max uint16) uint8 {
	if max == 0 {
		return 0
	}
	if max == 255 {
		return uint8(v)
	}
	return uint8(uint32(v) * 255 / uint32(max))
}
