// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: Ryan Johnson

package rfb

import (
	"encoding/binary"
	"io"
)

// Primitive wire codec. All RFB framing is big-endian; anything multi-byte
// below reads or writes network byte order.

// readUint8 reads a single byte from the stream.
func readUint8(r io.Reader) (uint8, error) {
	var b [1]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return b[0], nil
}

// readUint16 reads a big-endian 16-bit unsigned integer.
func readUint16(r io.Reader) (uint16, error) {
	var b [2]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b[:]), nil
}

// readUint32 reads a big-endian 32-bit unsigned integer.
func readUint32(r io.Reader) (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b[:]), nil
}

// putUint16 writes a big-endian 16-bit value into buf at off.
func putUint16(buf []byte, off int, v uint16) {
	binary.BigEndian.PutUint16(buf[off:], v)
}

// putUint32 writes a big-endian 32-bit value into buf at off.
func putUint32(buf []byte, off int, v uint32) {
	binary.BigEndian.PutUint32(buf[off:], v)
}
