// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: Ryan Johnson

package rfb

import (
	"fmt"
	"io"
)

// CursorDecoder handles the Cursor pseudo-encoding (type -239) defined in
// RFC 6143 Section 7.8.1. The rectangle position is the cursor hotspot and
// the payload carries the cursor image plus a 1-bit transparency bitmask.
// The cursor never touches the framebuffer; it is surfaced as an event so
// the application can render it locally.
type CursorDecoder struct{}

// Type returns the pseudo-encoding type identifier for cursor updates.
func (*CursorDecoder) Type() int32 {
	return EncCursorPseudo
}

// Decode reads the cursor image and bitmask and publishes a CursorEvent.
func (d *CursorDecoder) Decode(s *Session, rect *Rectangle, r io.Reader) error {
	if rect.Width > MaxCursorDimension || rect.Height > MaxCursorDimension {
		return decodeError("CursorDecoder.Decode", EncCursorPseudo,
			fmt.Sprintf("cursor dimensions %dx%d exceed maximum %d",
				rect.Width, rect.Height, MaxCursorDimension), nil)
	}

	format := s.fb.Format()
	pixelLen := int(rect.Width) * int(rect.Height) * format.BytesPerPixel()
	maskLen := int((rect.Width+7)/8) * int(rect.Height)

	pixels := make([]byte, pixelLen)
	if _, err := io.ReadFull(r, pixels); err != nil {
		return decodeError("CursorDecoder.Decode", EncCursorPseudo,
			fmt.Sprintf("failed to read %d cursor pixel bytes", pixelLen), err)
	}

	mask := make([]byte, maskLen)
	if _, err := io.ReadFull(r, mask); err != nil {
		return decodeError("CursorDecoder.Decode", EncCursorPseudo,
			fmt.Sprintf("failed to read %d cursor mask bytes", maskLen), err)
	}

	s.metrics.RectangleDecoded(EncCursorPseudo, pixelLen+maskLen)
	s.publish(&CursorEvent{
		HotspotX: rect.X,
		HotspotY: rect.Y,
		Width:    rect.Width,
		Height:   rect.Height,
		Pixels:   pixels,
		Mask:     mask,
	})
	return nil
}
