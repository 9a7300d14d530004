// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: Ryan Johnson

package rfb

// Wire encoding ids, as negotiated via SetEncodings and tagged per rectangle.
const (
	EncRaw      int32 = 0
	EncCopyRect int32 = 1
	EncRRE      int32 = 2
	EncHextile  int32 = 5
	EncZRLE     int32 = 16

	EncCursorPseudo      int32 = -239
	EncDesktopSizePseudo int32 = -223
)

// Client-to-server message types.
const (
	msgSetPixelFormat           uint8 = 0
	msgSetEncodings             uint8 = 2
	msgFramebufferUpdateRequest uint8 = 3
	msgKeyEvent                 uint8 = 4
	msgPointerEvent             uint8 = 5
	msgClientCutText            uint8 = 6
)

// Server-to-client message types.
const (
	msgFramebufferUpdate   uint8 = 0
	msgSetColourMapEntries uint8 = 1
	msgBell                uint8 = 2
	msgServerCutText       uint8 = 3
)

// Security type ids.
const (
	secTypeInvalid uint8 = 0
	secTypeNone    uint8 = 1
	secTypeVNCAuth uint8 = 2
)

// ButtonMask represents the state of pointer buttons in a pointer event.
type ButtonMask uint8

// Button mask constants for standard mouse buttons and scroll wheel events.
const (
	ButtonLeft ButtonMask = 1 << iota
	ButtonMiddle
	ButtonRight
	Button4
	Button5
	Button6
	Button7
	Button8
)

// Protocol limits enforced against untrusted input.
const (
	MaxRectanglesPerUpdate   = 10000
	MaxClipboardLength       = 1024 * 1024
	MaxServerClipboardLength = 10 * 1024 * 1024
	MaxDesktopNameLength     = 1024 * 1024
	MaxReasonLength          = 64 * 1024
	MaxCursorDimension       = 512
	MaxZRLECompressedLength  = 64 * 1024 * 1024
	Latin1MaxCodePoint       = 255
)
