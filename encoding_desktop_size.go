// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: Ryan Johnson

package rfb

import (
	"io"
)

// DesktopSizeDecoder handles the DesktopSize pseudo-encoding (type -223)
// defined in RFC 6143 Section 7.8.2. The rectangle width and height announce
// a new framebuffer geometry; there is no payload. Existing framebuffer
// contents are discarded and the next update request must be non-incremental.
type DesktopSizeDecoder struct{}

// Type returns the pseudo-encoding type identifier for desktop resizes.
func (*DesktopSizeDecoder) Type() int32 {
	return EncDesktopSizePseudo
}

// Decode resizes the framebuffer and publishes a ResizeEvent.
func (d *DesktopSizeDecoder) Decode(s *Session, rect *Rectangle, r io.Reader) error {
	if err := newInputValidator().ValidateFramebufferDimensions(rect.Width, rect.Height); err != nil {
		return protocolError("DesktopSizeDecoder.Decode",
			"server announced invalid desktop size", err)
	}

	s.logger.Info("Desktop size changed",
		Field{Key: "width", Value: rect.Width},
		Field{Key: "height", Value: rect.Height})

	s.fb.Resize(rect.Width, rect.Height)
	s.forceFullUpdate()

	s.publish(&ResizeEvent{Width: rect.Width, Height: rect.Height})
	return nil
}
