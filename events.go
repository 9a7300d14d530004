// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: Ryan Johnson

package rfb

// Event is a notification delivered on the session event channel. Concrete
// types are *UpdateEvent, *BellEvent, *ClipboardEvent, *ResizeEvent,
// *CursorEvent and *DisconnectEvent.
type Event interface {
	event()
}

// UpdateEvent signals that a complete FramebufferUpdate message has been
// applied to the framebuffer. Rectangles is the number of rectangles the
// update contained, pseudo-encodings included.
type UpdateEvent struct {
	Rectangles int
}

// BellEvent signals that the server rang its bell.
type BellEvent struct{}

// ClipboardEvent carries Latin-1 clipboard text pushed by the server.
type ClipboardEvent struct {
	Text string
}

// ResizeEvent signals that the framebuffer geometry changed. The framebuffer
// contents have been reset; consumers should drop any cached view.
type ResizeEvent struct {
	Width  uint16
	Height uint16
}

// CursorEvent carries a local cursor shape update. Pixels holds the cursor
// image in the session pixel format and Mask is a left-to-right, top-to-bottom
// bitmask with rows padded to whole bytes; a set bit means the pixel is
// opaque.
type CursorEvent struct {
	HotspotX uint16
	HotspotY uint16
	Width    uint16
	Height   uint16
	Pixels   []byte
	Mask     []byte
}

// DisconnectEvent is the final event on the channel before it closes. Err is
// nil for a clean shutdown and carries the fatal error otherwise.
type DisconnectEvent struct {
	Err error
}

func (*UpdateEvent) event()     {}
func (*BellEvent) event()       {}
func (*ClipboardEvent) event()  {}
func (*ResizeEvent) event()     {}
func (*CursorEvent) event()     {}
func (*DisconnectEvent) event() {}
