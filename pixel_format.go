// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: Ryan Johnson

package rfb

import (
	"encoding/binary"
	"fmt"
	"io"
)

// PixelFormat describes how pixel color data is encoded and interpreted on
// the wire. It is negotiated once during initialization and may be replaced
// mid-session by an explicit SetPixelFormat request, which invalidates any
// decoder state keyed to the old format.
type PixelFormat struct {
	// BPP (bits-per-pixel) specifies how many bits represent each pixel.
	// Must be 8, 16 or 32.
	BPP uint8

	// Depth specifies the number of useful bits within each pixel value.
	Depth uint8

	// BigEndian determines the byte order for multi-byte pixel values.
	BigEndian bool

	// TrueColor determines whether pixels carry direct RGB values (true)
	// or indices into a color map (false).
	TrueColor bool

	// RedMax is the maximum value of the red component.
	RedMax uint16

	// GreenMax is the maximum value of the green component.
	GreenMax uint16

	// BlueMax is the maximum value of the blue component.
	BlueMax uint16

	// RedShift positions the red component at the least significant bits.
	RedShift uint8

	// GreenShift positions the green component at the least significant bits.
	GreenShift uint8

	// BlueShift positions the blue component at the least significant bits.
	BlueShift uint8
}

// pixelFormatLen is the wire size of the pixel format structure.
const pixelFormatLen = 16

// readPixelFormat parses the 16-byte pixel format structure from the stream.
func readPixelFormat(r io.Reader, result *PixelFormat) error {
	var raw [pixelFormatLen]byte
	if _, err := io.ReadFull(r, raw[:]); err != nil {
		return transportError("readPixelFormat", "failed to read pixel format data", err)
	}

	result.BPP = raw[0]
	result.Depth = raw[1]
	result.BigEndian = raw[2] != 0
	result.TrueColor = raw[3] != 0
	result.RedMax = binary.BigEndian.Uint16(raw[4:6])
	result.GreenMax = binary.BigEndian.Uint16(raw[6:8])
	result.BlueMax = binary.BigEndian.Uint16(raw[8:10])
	result.RedShift = raw[10]
	result.GreenShift = raw[11]
	result.BlueShift = raw[12]
	// raw[13:16] is padding.

	return nil
}

// writePixelFormat renders the 16-byte wire representation of format.
func writePixelFormat(format *PixelFormat) []byte {
	buf := make([]byte, pixelFormatLen)

	buf[0] = format.BPP
	buf[1] = format.Depth
	if format.BigEndian {
		buf[2] = 1
	}
	if format.TrueColor {
		buf[3] = 1
	}
	binary.BigEndian.PutUint16(buf[4:6], format.RedMax)
	binary.BigEndian.PutUint16(buf[6:8], format.GreenMax)
	binary.BigEndian.PutUint16(buf[8:10], format.BlueMax)
	buf[10] = format.RedShift
	buf[11] = format.GreenShift
	buf[12] = format.BlueShift

	return buf
}

// BytesPerPixel returns the number of bytes used for one pixel on the wire.
func (pf *PixelFormat) BytesPerPixel() int {
	return int(pf.BPP) / 8
}

// Validate checks the format for internal consistency: BPP must be one of
// the protocol's fixed widths, the depth must fit, and the channel shifts and
// maxima must not place color bits outside bits-per-pixel.
func (pf *PixelFormat) Validate() error {
	if pf.BPP != 8 && pf.BPP != 16 && pf.BPP != 32 {
		return validationError("PixelFormat.Validate",
			fmt.Sprintf("bits-per-pixel must be 8, 16 or 32, got %d", pf.BPP), nil)
	}

	if pf.Depth == 0 || pf.Depth > pf.BPP {
		return validationError("PixelFormat.Validate",
			fmt.Sprintf("depth %d invalid for %d bits-per-pixel", pf.Depth, pf.BPP), nil)
	}

	if !pf.TrueColor {
		return nil
	}

	if pf.RedMax == 0 && pf.GreenMax == 0 && pf.BlueMax == 0 {
		return validationError("PixelFormat.Validate",
			"true-colour format with all channel maxima zero", nil)
	}

	channels := []struct {
		name  string
		max   uint16
		shift uint8
	}{
		{"red", pf.RedMax, pf.RedShift},
		{"green", pf.GreenMax, pf.GreenShift},
		{"blue", pf.BlueMax, pf.BlueShift},
	}
	for _, ch := range channels {
		bits := countBits(ch.max)
		if uint16(ch.shift)+uint16(bits) > uint16(pf.BPP) {
			return validationError("PixelFormat.Validate",
				fmt.Sprintf("%s channel (shift %d, %d bits) exceeds %d bits-per-pixel",
					ch.name, ch.shift, bits, pf.BPP), nil)
		}
	}

	return nil
}

// countBits returns the number of bits needed to represent maxVal.
func countBits(maxVal uint16) uint8 {
	bits := uint8(0)
	for maxVal > 0 {
		maxVal >>= 1
		bits++
	}
	return bits
}

// EncodePixel packs the raw channel values into the wire representation of
// one pixel under this format. Channel values are masked to the per-channel
// maxima. The returned slice is BytesPerPixel() long.
func (pf *PixelFormat) EncodePixel(r, g, b uint16) []byte {
	v := uint32(r&pf.RedMax)<<pf.RedShift |
		uint32(g&pf.GreenMax)<<pf.GreenShift |
		uint32(b&pf.BlueMax)<<pf.BlueShift

	buf := make([]byte, pf.BytesPerPixel())
	pf.PutPixel(buf, v)
	return buf
}

// DecodePixel unpacks one wire pixel into its raw channel values.
// EncodePixel followed by DecodePixel recovers the channel values exactly for
// any valid format.
func (pf *PixelFormat) DecodePixel(buf []byte) (r, g, b uint16) {
	v := pf.Pixel(buf)
	r = uint16(v>>pf.RedShift) & pf.RedMax
	g = uint16(v>>pf.GreenShift) & pf.GreenMax
	b = uint16(v>>pf.BlueShift) & pf.BlueMax
	return r, g, b
}

// Pixel reads one pixel value from buf honoring the format's byte order.
// buf must hold at least BytesPerPixel() bytes.
func (pf *PixelFormat) Pixel(buf []byte) uint32 {
	switch pf.BPP {
	case 8:
		return uint32(buf[0])
	case 16:
		if pf.BigEndian {
			return uint32(binary.BigEndian.Uint16(buf))
		}
		return uint32(binary.LittleEndian.Uint16(buf))
	default:
		if pf.BigEndian {
			return binary.BigEndian.Uint32(buf)
		}
		return binary.LittleEndian.Uint32(buf)
	}
}

// PutPixel writes one pixel value into buf honoring the format's byte order.
func (pf *PixelFormat) PutPixel(buf []byte, v uint32) {
	switch pf.BPP {
	case 8:
		buf[0] = uint8(v)
	case 16:
		if pf.BigEndian {
			binary.BigEndian.PutUint16(buf, uint16(v))
		} else {
			binary.LittleEndian.PutUint16(buf, uint16(v))
		}
	default:
		if pf.BigEndian {
			binary.BigEndian.PutUint32(buf, v)
		} else {
			binary.LittleEndian.PutUint32(buf, v)
		}
	}
}

// Common pixel format presets.
var (
	// PixelFormat32BitRGB is the most common 32-bit true-colour format,
	// 8 bits per channel with the red channel in the high color byte.
	PixelFormat32BitRGB = PixelFormat{
		BPP:        32,
		Depth:      24,
		BigEndian:  false,
		TrueColor:  true,
		RedMax:     255,
		GreenMax:   255,
		BlueMax:    255,
		RedShift:   16,
		GreenShift: 8,
		BlueShift:  0,
	}

	// PixelFormat16BitRGB565 is a balanced 16-bit true-colour format.
	PixelFormat16BitRGB565 = PixelFormat{
		BPP:        16,
		Depth:      16,
		BigEndian:  false,
		TrueColor:  true,
		RedMax:     31,
		GreenMax:   63,
		BlueMax:    31,
		RedShift:   11,
		GreenShift: 5,
		BlueShift:  0,
	}

	// PixelFormat8BitIndexed is a bandwidth-efficient indexed color format.
	// Pixel values are indices into the session color map.
	PixelFormat8BitIndexed = PixelFormat{
		BPP:       8,
		Depth:     8,
		BigEndian: false,
		TrueColor: false,
	}
)
