// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: Ryan Johnson

package rfb

import (
	"fmt"
	"io"
)

// HextileDecoder handles the Hextile encoding defined in RFC 6143
// Section 7.7.4. The rectangle is divided into 16x16 tiles ordered left to
// right, top to bottom, with edge tiles truncated to the remaining extent.
// Background and foreground pixel values persist from tile to tile within a
// rectangle and reset between rectangles.
type HextileDecoder struct{}

// Hextile subencoding mask bits and tile geometry from RFC 6143.
const (
	hextileRaw                 = 1
	hextileBackgroundSpecified = 2
	hextileForegroundSpecified = 4
	hextileAnySubrects         = 8
	hextileSubrectsColoured    = 16

	hextileTileSize = 16
)

// Type returns the encoding type identifier for Hextile encoding.
func (*HextileDecoder) Type() int32 {
	return EncHextile
}

// Decode reads every tile of the rectangle and applies it.
func (d *HextileDecoder) Decode(s *Session, rect *Rectangle, r io.Reader) error {
	format := s.fb.Format()
	bpp := format.BytesPerPixel()

	// Running tile state for this rectangle. Tiles that omit the
	// background or foreground reuse the previous tile's value.
	background := make([]byte, bpp)
	foreground := make([]byte, bpp)
	consumed := 0

	for tileY := uint16(0); tileY < rect.Height; tileY += hextileTileSize {
		tileH := rect.Height - tileY
		if tileH > hextileTileSize {
			tileH = hextileTileSize
		}

		for tileX := uint16(0); tileX < rect.Width; tileX += hextileTileSize {
			tileW := rect.Width - tileX
			if tileW > hextileTileSize {
				tileW = hextileTileSize
			}

			sub, err := readUint8(r)
			if err != nil {
				return decodeError("HextileDecoder.Decode", EncHextile,
					"failed to read tile subencoding mask", err)
			}
			consumed++

			if sub&hextileRaw != 0 {
				n := int(tileW) * int(tileH) * bpp
				data := make([]byte, n)
				if _, err := io.ReadFull(r, data); err != nil {
					return decodeError("HextileDecoder.Decode", EncHextile,
						fmt.Sprintf("failed to read %d raw tile bytes", n), err)
				}
				if err := s.fb.ApplyRaw(rect.X+tileX, rect.Y+tileY, tileW, tileH, data); err != nil {
					return err
				}
				consumed += n
				continue
			}

			if sub&hextileBackgroundSpecified != 0 {
				if _, err := io.ReadFull(r, background); err != nil {
					return decodeError("HextileDecoder.Decode", EncHextile,
						"failed to read tile background pixel", err)
				}
				consumed += bpp
			}
			if sub&hextileForegroundSpecified != 0 {
				if _, err := io.ReadFull(r, foreground); err != nil {
					return decodeError("HextileDecoder.Decode", EncHextile,
						"failed to read tile foreground pixel", err)
				}
				consumed += bpp
			}

			if err := s.fb.Fill(rect.X+tileX, rect.Y+tileY, tileW, tileH, background); err != nil {
				return err
			}

			if sub&hextileAnySubrects == 0 {
				continue
			}

			count, err := readUint8(r)
			if err != nil {
				return decodeError("HextileDecoder.Decode", EncHextile,
					"failed to read tile subrectangle count", err)
			}
			consumed++

			coloured := sub&hextileSubrectsColoured != 0
			pixel := foreground
			if coloured {
				pixel = make([]byte, bpp)
			}

			for i := 0; i < int(count); i++ {
				if coloured {
					if _, err := io.ReadFull(r, pixel); err != nil {
						return decodeError("HextileDecoder.Decode", EncHextile,
							fmt.Sprintf("failed to read pixel for subrectangle %d", i), err)
					}
					consumed += bpp
				}

				var geom [2]byte
				if _, err := io.ReadFull(r, geom[:]); err != nil {
					return decodeError("HextileDecoder.Decode", EncHextile,
						fmt.Sprintf("failed to read geometry for subrectangle %d", i), err)
				}
				consumed += 2

				subX := uint16(geom[0] >> 4)
				subY := uint16(geom[0] & 0x0f)
				subW := uint16(geom[1]>>4) + 1
				subH := uint16(geom[1]&0x0f) + 1

				if err := s.fb.FillRegion(rect.X+tileX, rect.Y+tileY, tileW, tileH,
					subX, subY, subW, subH, pixel); err != nil {
					return err
				}
			}
		}
	}

	s.metrics.RectangleDecoded(EncHextile, consumed)
	return nil
}
