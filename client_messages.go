// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: Ryan Johnson

package rfb

import (
	"context"
	"fmt"
)

// Client-to-server message construction per RFC 6143 Section 7.5. Every
// message is built as a single buffer and written atomically so concurrent
// senders cannot interleave partial messages on the wire.

// sendSetPixelFormat asks the server to deliver pixels in format from now
// on. The local framebuffer is reset, so the caller must follow up with a
// non-incremental update request.
func (s *Session) sendSetPixelFormat(ctx context.Context, format PixelFormat) error {
	if err := format.Validate(); err != nil {
		return err
	}

	buf := make([]byte, 4+pixelFormatLen)
	buf[0] = msgSetPixelFormat
	copy(buf[4:], writePixelFormat(&format))

	if err := s.writeMessage(ctx, buf); err != nil {
		return transportError("sendSetPixelFormat", "failed to send SetPixelFormat", err)
	}

	s.fb.SetFormat(format)
	s.forceFullUpdate()
	s.logger.Debug("Sent SetPixelFormat",
		Field{Key: "bpp", Value: format.BPP},
		Field{Key: "depth", Value: format.Depth})
	return nil
}

// sendSetEncodings declares the encodings the client understands, in
// preference order.
func (s *Session) sendSetEncodings(ctx context.Context, encodings []int32) error {
	if err := newInputValidator().ValidateEncodingOrder(encodings); err != nil {
		return err
	}
	for _, enc := range encodings {
		if _, ok := s.decoders[enc]; !ok {
			return unsupportedError("sendSetEncodings",
				fmt.Sprintf("no decoder registered for encoding %d", enc), nil)
		}
	}

	buf := make([]byte, 4+4*len(encodings))
	buf[0] = msgSetEncodings
	putUint16(buf, 2, uint16(len(encodings)))
	for i, enc := range encodings {
		putUint32(buf, 4+4*i, uint32(enc))
	}

	if err := s.writeMessage(ctx, buf); err != nil {
		return transportError("sendSetEncodings", "failed to send SetEncodings", err)
	}

	s.logger.Debug("Sent SetEncodings",
		Field{Key: "count", Value: len(encodings)},
		Field{Key: "encodings", Value: encodings})
	return nil
}

// sendFramebufferUpdateRequest asks the server for an update of the given
// region. An incremental request only wants changes since the last update; a
// non-incremental one asks for the full region contents.
func (s *Session) sendFramebufferUpdateRequest(ctx context.Context, incremental bool, x, y, w, h uint16) error {
	buf := make([]byte, 10)
	buf[0] = msgFramebufferUpdateRequest
	if incremental {
		buf[1] = 1
	}
	putUint16(buf, 2, x)
	putUint16(buf, 4, y)
	putUint16(buf, 6, w)
	putUint16(buf, 8, h)

	if err := s.writeMessage(ctx, buf); err != nil {
		return transportError("sendFramebufferUpdateRequest",
			"failed to send FramebufferUpdateRequest", err)
	}

	s.logger.Debug("Sent FramebufferUpdateRequest",
		Field{Key: "incremental", Value: incremental},
		Field{Key: "width", Value: w},
		Field{Key: "height", Value: h})
	return nil
}

// sendKeyEvent reports a key press or release. The key symbol uses X Window
// System keysym values.
func (s *Session) sendKeyEvent(ctx context.Context, keysym uint32, down bool) error {
	buf := make([]byte, 8)
	buf[0] = msgKeyEvent
	if down {
		buf[1] = 1
	}
	putUint32(buf, 4, keysym)

	if err := s.writeMessage(ctx, buf); err != nil {
		return transportError("sendKeyEvent", "failed to send KeyEvent", err)
	}

	s.metrics.InputSent("key")
	return nil
}

// sendPointerEvent reports the pointer position and button state.
func (s *Session) sendPointerEvent(ctx context.Context, buttons ButtonMask, x, y uint16) error {
	buf := make([]byte, 6)
	buf[0] = msgPointerEvent
	buf[1] = byte(buttons)
	putUint16(buf, 2, x)
	putUint16(buf, 4, y)

	if err := s.writeMessage(ctx, buf); err != nil {
		return transportError("sendPointerEvent", "failed to send PointerEvent", err)
	}

	s.metrics.InputSent("pointer")
	return nil
}

// sendClientCutText pushes Latin-1 clipboard text to the server.
func (s *Session) sendClientCutText(ctx context.Context, text string) error {
	if err := newInputValidator().ValidateLatin1(text, MaxClipboardLength); err != nil {
		return err
	}

	buf := make([]byte, 8+len(text))
	buf[0] = msgClientCutText
	putUint32(buf, 4, uint32(len(text)))
	copy(buf[8:], text)

	if err := s.writeMessage(ctx, buf); err != nil {
		return transportError("sendClientCutText", "failed to send ClientCutText", err)
	}

	s.metrics.InputSent("clipboard")
	s.logger.Debug("Sent ClientCutText", Field{Key: "length", Value: len(text)})
	return nil
}
