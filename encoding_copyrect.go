// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: Ryan Johnson

package rfb

import (
	"io"
)

// CopyRectDecoder handles the CopyRect encoding defined in RFC 6143
// Section 7.7.2. The payload names a source position in the current
// framebuffer; the rectangle is filled by copying already-present pixels.
// Source and destination may overlap.
type CopyRectDecoder struct{}

// Type returns the encoding type identifier for CopyRect encoding.
func (*CopyRectDecoder) Type() int32 {
	return EncCopyRect
}

// Decode reads the source position and performs the framebuffer copy.
func (d *CopyRectDecoder) Decode(s *Session, rect *Rectangle, r io.Reader) error {
	srcX, err := readUint16(r)
	if err != nil {
		return decodeError("CopyRectDecoder.Decode", EncCopyRect,
			"failed to read source x position", err)
	}
	srcY, err := readUint16(r)
	if err != nil {
		return decodeError("CopyRectDecoder.Decode", EncCopyRect,
			"failed to read source y position", err)
	}

	if err := s.fb.CopyRect(rect.X, rect.Y, srcX, srcY, rect.Width, rect.Height); err != nil {
		return err
	}

	s.metrics.RectangleDecoded(EncCopyRect, 4)
	return nil
}
