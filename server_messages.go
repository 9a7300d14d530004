// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: Ryan Johnson

package rfb

import (
	"fmt"
	"io"
)

// processServerMessage dispatches one server-to-client message whose type
// byte has already been consumed. Any returned error is fatal to the
// session: a handler that fails partway leaves the stream position unknown.
func (s *Session) processServerMessage(msgType uint8, r io.Reader) error {
	switch msgType {
	case msgFramebufferUpdate:
		return s.handleFramebufferUpdate(r)
	case msgSetColourMapEntries:
		return s.handleSetColourMapEntries(r)
	case msgBell:
		s.logger.Debug("Received Bell")
		s.publish(&BellEvent{})
		return nil
	case msgServerCutText:
		return s.handleServerCutText(r)
	default:
		return protocolError("processServerMessage",
			fmt.Sprintf("unknown server message type %d", msgType), nil)
	}
}

// handleFramebufferUpdate reads and applies every rectangle of a
// FramebufferUpdate message, then publishes an UpdateEvent.
func (s *Session) handleFramebufferUpdate(r io.Reader) error {
	var head [3]byte
	if _, err := io.ReadFull(r, head[:]); err != nil {
		return transportError("handleFramebufferUpdate",
			"failed to read update header", err)
	}
	numRects := uint16(head[1])<<8 | uint16(head[2])

	if numRects > MaxRectanglesPerUpdate {
		return protocolError("handleFramebufferUpdate",
			fmt.Sprintf("rectangle count %d exceeds limit %d", numRects, MaxRectanglesPerUpdate), nil)
	}

	s.logger.Debug("Received FramebufferUpdate",
		Field{Key: "rectangles", Value: numRects})

	validator := newInputValidator()
	for i := uint16(0); i < numRects; i++ {
		rect, err := readRectangleHeader(r)
		if err != nil {
			return err
		}

		decoder, ok := s.decoders[rect.Encoding]
		if !ok {
			return unsupportedError("handleFramebufferUpdate",
				fmt.Sprintf("server used unadvertised encoding %d", rect.Encoding), nil)
		}

		// Pseudo-encoding rectangles carry metadata in their geometry
		// and are not bounded by the current framebuffer.
		if rect.Encoding >= 0 {
			width, height := s.fb.Size()
			if err := validator.ValidateRectangle(rect.X, rect.Y, rect.Width, rect.Height,
				width, height); err != nil {
				return protocolError("handleFramebufferUpdate",
					fmt.Sprintf("rectangle %d exceeds framebuffer bounds", i), err)
			}
		}

		if err := decoder.Decode(s, rect, r); err != nil {
			return err
		}
	}

	s.metrics.UpdateApplied(int(numRects))
	s.publish(&UpdateEvent{Rectangles: int(numRects)})
	return nil
}

// readRectangleHeader reads the 12-byte rectangle header preceding each
// rectangle payload.
func readRectangleHeader(r io.Reader) (*Rectangle, error) {
	var head [12]byte
	if _, err := io.ReadFull(r, head[:]); err != nil {
		return nil, transportError("readRectangleHeader",
			"failed to read rectangle header", err)
	}

	return &Rectangle{
		X:      uint16(head[0])<<8 | uint16(head[1]),
		Y:      uint16(head[2])<<8 | uint16(head[3]),
		Width:  uint16(head[4])<<8 | uint16(head[5]),
		Height: uint16(head[6])<<8 | uint16(head[7]),
		Encoding: int32(uint32(head[8])<<24 | uint32(head[9])<<16 |
			uint32(head[10])<<8 | uint32(head[11])),
	}, nil
}

// handleSetColourMapEntries updates the color map used by indexed pixel
// formats.
func (s *Session) handleSetColourMapEntries(r io.Reader) error {
	var head [5]byte
	if _, err := io.ReadFull(r, head[:]); err != nil {
		return transportError("handleSetColourMapEntries",
			"failed to read color map header", err)
	}
	first := uint16(head[1])<<8 | uint16(head[2])
	count := uint16(head[3])<<8 | uint16(head[4])

	if int(first)+int(count) > ColorMapSize {
		return protocolError("handleSetColourMapEntries",
			fmt.Sprintf("color map entries %d..%d exceed map size", first, first+count), nil)
	}

	var entry [6]byte
	for i := uint16(0); i < count; i++ {
		if _, err := io.ReadFull(r, entry[:]); err != nil {
			return transportError("handleSetColourMapEntries",
				"failed to read color map entry", err)
		}
		s.fb.SetColorMapEntry(first+i, Color{
			R: uint16(entry[0])<<8 | uint16(entry[1]),
			G: uint16(entry[2])<<8 | uint16(entry[3]),
			B: uint16(entry[4])<<8 | uint16(entry[5]),
		})
	}

	s.logger.Debug("Received SetColourMapEntries",
		Field{Key: "first", Value: first},
		Field{Key: "count", Value: count})
	return nil
}

// handleServerCutText receives clipboard text pushed by the server.
func (s *Session) handleServerCutText(r io.Reader) error {
	var head [7]byte
	if _, err := io.ReadFull(r, head[:]); err != nil {
		return transportError("handleServerCutText",
			"failed to read cut text header", err)
	}
	length := uint32(head[3])<<24 | uint32(head[4])<<16 |
		uint32(head[5])<<8 | uint32(head[6])

	if length > MaxServerClipboardLength {
		return protocolError("handleServerCutText",
			fmt.Sprintf("clipboard length %d exceeds limit %d", length, MaxServerClipboardLength), nil)
	}

	text := make([]byte, length)
	if _, err := io.ReadFull(r, text); err != nil {
		return transportError("handleServerCutText",
			"failed to read clipboard text", err)
	}

	clean := newInputValidator().SanitizeText(string(text))
	s.logger.Debug("Received ServerCutText",
		Field{Key: "length", Value: length})
	s.publish(&ClipboardEvent{Text: clean})
	return nil
}
