// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: Ryan Johnson

package rfb

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// pointerEventRate caps pointer motion at roughly one event per 16ms, which
// keeps a fast local mouse from flooding a slow link.
const pointerEventRate = 60

// pointerState is one pending pointer sample.
type pointerState struct {
	buttons ButtonMask
	x, y    uint16
}

// InputSender delivers keyboard, pointer and clipboard input to the server.
//
// Pointer motion is rate limited: samples arriving faster than the cap are
// coalesced by replacement, so the server always receives the most recent
// position rather than a backlog of stale ones. Button state changes and key
// events are never throttled and never dropped, and a pending motion sample
// is flushed ahead of a button change so the server observes the pointer
// path in order.
type InputSender struct {
	s       *Session
	limiter *rate.Limiter

	mu          sync.Mutex
	pending     *pointerState
	lastButtons ButtonMask
}

func newInputSender(s *Session) *InputSender {
	return &InputSender{
		s:       s,
		limiter: rate.NewLimiter(rate.Limit(pointerEventRate), 1),
	}
}

// Key sends a key press or release for an X keysym. Key events bypass the
// pointer rate limit entirely.
func (in *InputSender) Key(ctx context.Context, keysym uint32, down bool) error {
	if in.s.viewOnly {
		return nil
	}
	return in.s.sendKeyEvent(ctx, keysym, down)
}

// KeyPress sends a press immediately followed by a release.
func (in *InputSender) KeyPress(ctx context.Context, keysym uint32) error {
	if err := in.Key(ctx, keysym, true); err != nil {
		return err
	}
	return in.Key(ctx, keysym, false)
}

// Pointer reports the pointer position and button state. Motion with an
// unchanged button mask may be coalesced; a sample that changes the mask is
// always delivered.
func (in *InputSender) Pointer(ctx context.Context, buttons ButtonMask, x, y uint16) error {
	if in.s.viewOnly {
		return nil
	}

	state := pointerState{buttons: buttons, x: x, y: y}

	in.mu.Lock()
	if buttons != in.lastButtons {
		// Button transition. Flush any pending motion first so the
		// press or release lands at the right point in the path.
		flush := in.pending
		in.pending = nil
		in.lastButtons = buttons
		in.mu.Unlock()

		if flush != nil {
			if err := in.s.sendPointerEvent(ctx, flush.buttons, flush.x, flush.y); err != nil {
				return err
			}
		}
		return in.s.sendPointerEvent(ctx, buttons, x, y)
	}

	if in.pending != nil {
		// A sample is already queued for the next slot; replace it.
		in.pending = &state
		in.mu.Unlock()
		in.s.metrics.PointerCoalesced()
		return nil
	}

	if in.limiter.Allow() {
		in.mu.Unlock()
		return in.s.sendPointerEvent(ctx, buttons, x, y)
	}

	// Over the rate cap. Park the sample and schedule a flush for when
	// the limiter next has a token.
	in.pending = &state
	delay := in.limiter.Reserve().Delay()
	in.mu.Unlock()

	time.AfterFunc(delay, in.flushPending)
	return nil
}

// flushPending sends the parked motion sample, if it is still there.
func (in *InputSender) flushPending() {
	in.mu.Lock()
	state := in.pending
	in.pending = nil
	in.mu.Unlock()

	if state == nil {
		return
	}
	if err := in.s.sendPointerEvent(in.s.ctx, state.buttons, state.x, state.y); err != nil {
		in.s.logger.Warn("Failed to flush coalesced pointer event",
			Field{Key: "error", Value: err})
	}
}

// Clipboard pushes Latin-1 text to the server clipboard.
func (in *InputSender) Clipboard(ctx context.Context, text string) error {
	if in.s.viewOnly {
		return nil
	}
	return in.s.sendClientCutText(ctx, text)
}
