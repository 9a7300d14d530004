// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: Ryan Johnson

package rfb

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleSetColourMapEntries(t *testing.T) {
	s := newTestSession(4, 4, PixelFormat8BitIndexed)

	var msg bytes.Buffer
	msg.WriteByte(0) // padding
	_ = binary.Write(&msg, binary.BigEndian, uint16(5))
	_ = binary.Write(&msg, binary.BigEndian, uint16(2))
	for _, c := range []Color{{R: 0xffff}, {G: 0x8000, B: 0x0102}} {
		_ = binary.Write(&msg, binary.BigEndian, c.R)
		_ = binary.Write(&msg, binary.BigEndian, c.G)
		_ = binary.Write(&msg, binary.BigEndian, c.B)
	}

	require.NoError(t, s.processServerMessage(msgSetColourMapEntries, &msg))

	assert.Equal(t, Color{R: 0xffff}, s.fb.colorMap[5])
	assert.Equal(t, Color{G: 0x8000, B: 0x0102}, s.fb.colorMap[6])
}

func TestHandleSetColourMapEntriesOverflow(t *testing.T) {
	s := newTestSession(4, 4, PixelFormat8BitIndexed)

	var msg bytes.Buffer
	msg.WriteByte(0)
	_ = binary.Write(&msg, binary.BigEndian, uint16(250))
	_ = binary.Write(&msg, binary.BigEndian, uint16(10))

	err := s.processServerMessage(msgSetColourMapEntries, &msg)
	require.Error(t, err)
	assert.True(t, IsError(err, ErrProtocol))
}

func TestHandleServerCutTextTooLong(t *testing.T) {
	s := newTestSession(4, 4, PixelFormat32BitRGB)

	var msg bytes.Buffer
	msg.Write([]byte{0, 0, 0})
	_ = binary.Write(&msg, binary.BigEndian, uint32(MaxServerClipboardLength+1))

	err := s.processServerMessage(msgServerCutText, &msg)
	require.Error(t, err)
	assert.True(t, IsError(err, ErrProtocol))
}

func TestProcessServerMessageUnknownType(t *testing.T) {
	s := newTestSession(4, 4, PixelFormat32BitRGB)

	err := s.processServerMessage(200, bytes.NewReader(nil))
	require.Error(t, err)
	assert.True(t, IsError(err, ErrProtocol))
}

func TestHandleFramebufferUpdateTooManyRectangles(t *testing.T) {
	s := newTestSession(4, 4, PixelFormat32BitRGB)

	var msg bytes.Buffer
	msg.WriteByte(0)
	_ = binary.Write(&msg, binary.BigEndian, uint16(MaxRectanglesPerUpdate+1))

	err := s.processServerMessage(msgFramebufferUpdate, &msg)
	require.Error(t, err)
	assert.True(t, IsError(err, ErrProtocol))
}

func TestHandleFramebufferUpdateUnknownEncoding(t *testing.T) {
	s := newTestSession(4, 4, PixelFormat32BitRGB)
	s.decoders = defaultDecoders()

	var msg bytes.Buffer
	msg.WriteByte(0)
	_ = binary.Write(&msg, binary.BigEndian, uint16(1))
	_ = binary.Write(&msg, binary.BigEndian, uint16(0)) // x
	_ = binary.Write(&msg, binary.BigEndian, uint16(0)) // y
	_ = binary.Write(&msg, binary.BigEndian, uint16(2)) // w
	_ = binary.Write(&msg, binary.BigEndian, uint16(2)) // h
	_ = binary.Write(&msg, binary.BigEndian, int32(99))

	err := s.processServerMessage(msgFramebufferUpdate, &msg)
	require.Error(t, err)
	assert.True(t, IsError(err, ErrUnsupported))
}

func TestReadRectangleHeader(t *testing.T) {
	var buf bytes.Buffer
	_ = binary.Write(&buf, binary.BigEndian, uint16(10))
	_ = binary.Write(&buf, binary.BigEndian, uint16(20))
	_ = binary.Write(&buf, binary.BigEndian, uint16(30))
	_ = binary.Write(&buf, binary.BigEndian, uint16(40))
	_ = binary.Write(&buf, binary.BigEndian, int32(EncCursorPseudo))

	rect, err := readRectangleHeader(&buf)
	require.NoError(t, err)
	assert.Equal(t, &Rectangle{X: 10, Y: 20, Width: 30, Height: 40, Encoding: EncCursorPseudo}, rect)
}
