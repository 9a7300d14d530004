// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: Ryan Johnson

package rfb

import (
	"fmt"
	"io"
)

// RawDecoder handles the Raw encoding defined in RFC 6143 Section 7.7.1.
// The payload is width*height pixels in the negotiated pixel format, sent
// left to right, top to bottom, with no padding between rows.
type RawDecoder struct{}

// Type returns the encoding type identifier for Raw encoding.
func (*RawDecoder) Type() int32 {
	return EncRaw
}

// Decode reads the raw pixel payload and copies it into the framebuffer.
func (d *RawDecoder) Decode(s *Session, rect *Rectangle, r io.Reader) error {
	format := s.fb.Format()
	n := int(rect.Width) * int(rect.Height) * format.BytesPerPixel()
	if n == 0 {
		return nil
	}

	data := make([]byte, n)
	if _, err := io.ReadFull(r, data); err != nil {
		return decodeError("RawDecoder.Decode", EncRaw,
			fmt.Sprintf("failed to read %d bytes of pixel data", n), err)
	}

	if err := s.fb.ApplyRaw(rect.X, rect.Y, rect.Width, rect.Height, data); err != nil {
		return err
	}

	s.metrics.RectangleDecoded(EncRaw, n)
	return nil
}
