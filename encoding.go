// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: Ryan Johnson

package rfb

import (
	"io"
)

// Rectangle describes one rectangle within a FramebufferUpdate message,
// including the encoding its payload uses.
type Rectangle struct {
	X        uint16
	Y        uint16
	Width    uint16
	Height   uint16
	Encoding int32
}

// Decoder consumes the wire payload of one rectangle and applies it to the
// session framebuffer. Decoders must read exactly the bytes the encoding
// defines for the rectangle; a short or over-long read desynchronizes the
// protocol stream and fails the connection.
type Decoder interface {
	// Type returns the RFB encoding type identifier this decoder handles.
	Type() int32

	// Decode reads the rectangle payload from r and applies it.
	Decode(s *Session, rect *Rectangle, r io.Reader) error
}

// defaultDecoders returns the built-in decoder set, covering every encoding
// advertised by DefaultEncodings.
func defaultDecoders() map[int32]Decoder {
	decoders := map[int32]Decoder{}
	for _, d := range []Decoder{
		&RawDecoder{},
		&CopyRectDecoder{},
		&RREDecoder{},
		&HextileDecoder{},
		&ZRLEDecoder{},
		&CursorDecoder{},
		&DesktopSizeDecoder{},
	} {
		decoders[d.Type()] = d
	}
	return decoders
}

// DefaultEncodings is the encoding preference list sent when no explicit
// list is configured, ordered most to least preferred. Pseudo-encodings
// follow the pixel encodings as RFC 6143 recommends.
var DefaultEncodings = []int32{
	EncZRLE,
	EncHextile,
	EncRRE,
	EncCopyRect,
	EncRaw,
	EncCursorPseudo,
	EncDesktopSizePseudo,
}
