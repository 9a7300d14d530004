// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: Ryan Johnson

// Package rfb implements the client side of the Remote Framebuffer (RFB/VNC)
// wire protocol as defined in RFC 6143.
//
// The package negotiates a session with a remote display server (protocol
// versions 3.3, 3.7 and 3.8), authenticates with the None or VNC
// challenge-response security types, maintains a local mirror of the server's
// framebuffer by decoding Raw, CopyRect, RRE, Hextile and ZRLE rectangle
// streams, and translates local pointer/keyboard input into the protocol's
// wire format. The rendering widget, connection persistence and window chrome
// are deliberately out of scope; the engine exposes framebuffer snapshots and
// notification events at its boundary instead.
//
// # Basic Usage
//
//	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
//	defer cancel()
//
//	sess, err := rfb.Dial(ctx, "localhost:5900",
//		rfb.WithAuth(rfb.NewPasswordAuth("secret")),
//		rfb.WithLogger(&rfb.StandardLogger{}),
//	)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer sess.Close()
//
// # Event Handling
//
//	for ev := range sess.Events() {
//		switch e := ev.(type) {
//		case *rfb.UpdateEvent:
//			img := sess.Framebuffer().RGBA() // paint it
//		case *rfb.BellEvent:
//			// ring
//		case *rfb.ClipboardEvent:
//			clipboard.Write(e.Text)
//		}
//	}
//
// # Input Events
//
//	sess.Input().Key(ctx, 0x0061, true)  // 'a' down
//	sess.Input().Key(ctx, 0x0061, false) // 'a' up
//	sess.Input().Pointer(ctx, rfb.ButtonLeft, 100, 100)
//	sess.Input().Pointer(ctx, 0, 100, 100)
//
// Pointer moves are coalesced to a bounded outgoing rate; button transitions
// and key events are always forwarded in order.
//
// # Error Handling
//
//	if rfb.IsError(err, rfb.ErrAuth) {
//		// re-prompt for a password rather than treating it as a network fault
//	}
package rfb
