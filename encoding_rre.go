// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: Ryan Johnson

package rfb

import (
	"fmt"
	"io"
)

// RREDecoder handles the RRE (rise-and-run-length) encoding defined in
// RFC 6143 Section 7.7.3. The rectangle is painted as a solid background
// color overlaid by solid subrectangles, applied in stream order so later
// subrectangles win where they overlap earlier ones.
type RREDecoder struct{}

// Type returns the encoding type identifier for RRE encoding.
func (*RREDecoder) Type() int32 {
	return EncRRE
}

// Decode reads the background and subrectangle list and applies them.
func (d *RREDecoder) Decode(s *Session, rect *Rectangle, r io.Reader) error {
	format := s.fb.Format()
	bpp := format.BytesPerPixel()

	count, err := readUint32(r)
	if err != nil {
		return decodeError("RREDecoder.Decode", EncRRE,
			"failed to read subrectangle count", err)
	}

	background := make([]byte, bpp)
	if _, err := io.ReadFull(r, background); err != nil {
		return decodeError("RREDecoder.Decode", EncRRE,
			"failed to read background pixel", err)
	}

	if err := s.fb.Fill(rect.X, rect.Y, rect.Width, rect.Height, background); err != nil {
		return err
	}

	pixel := make([]byte, bpp)
	var header [8]byte
	for i := uint32(0); i < count; i++ {
		if _, err := io.ReadFull(r, pixel); err != nil {
			return decodeError("RREDecoder.Decode", EncRRE,
				fmt.Sprintf("failed to read pixel for subrectangle %d", i), err)
		}
		if _, err := io.ReadFull(r, header[:]); err != nil {
			return decodeError("RREDecoder.Decode", EncRRE,
				fmt.Sprintf("failed to read geometry for subrectangle %d", i), err)
		}

		subX := uint16(header[0])<<8 | uint16(header[1])
		subY := uint16(header[2])<<8 | uint16(header[3])
		subW := uint16(header[4])<<8 | uint16(header[5])
		subH := uint16(header[6])<<8 | uint16(header[7])

		if err := s.fb.FillRegion(rect.X, rect.Y, rect.Width, rect.Height,
			subX, subY, subW, subH, pixel); err != nil {
			return err
		}
	}

	s.metrics.RectangleDecoded(EncRRE, 4+bpp+int(count)*(bpp+8))
	return nil
}
