// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: Ryan Johnson

package rfb

import (
	"bytes"
	"context"
	"encoding/binary"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// scriptVersionAndSecurity runs the 3.8 version and security handshake with
// the None type on the server side.
func scriptVersionAndSecurity(t *testing.T, c net.Conn) {
	serverWrite(t, c, []byte("RFB 003.008\n"))
	got := serverReadN(t, c, protocolVersionLen)
	if string(got) != "RFB 003.008\n" {
		t.Errorf("unexpected client version %q", got)
	}

	serverWrite(t, c, []byte{1, secTypeNone})
	chosen := serverReadN(t, c, 1)
	if chosen[0] != secTypeNone {
		t.Errorf("client chose security type %d, want %d", chosen[0], secTypeNone)
	}
	serverWrite(t, c, []byte{0, 0, 0, 0})
}

// scriptInit completes ClientInit/ServerInit and consumes the SetEncodings
// message the session sends right after.
func scriptInit(t *testing.T, c net.Conn, width, height uint16, name string) {
	serverReadN(t, c, 1) // shared flag
	serverWrite(t, c, serverInitMessage(width, height, PixelFormat32BitRGB, name))
	serverReadN(t, c, 4+4*len(DefaultEncodings))
}

// scriptUpdateRequest consumes one FramebufferUpdateRequest and reports
// whether it was incremental.
func scriptUpdateRequest(t *testing.T, c net.Conn) bool {
	req := serverReadN(t, c, 10)
	if req[0] != msgFramebufferUpdateRequest {
		t.Errorf("expected update request, got message type %d", req[0])
	}
	return req[1] != 0
}

// drainUntilClosed blocks until the client side closes the connection.
func drainUntilClosed(c net.Conn) {
	_, _ = io.Copy(io.Discard, c)
}

func TestSessionFullHandshakeAndFirstUpdate(t *testing.T) {
	const width, height = 8, 4
	pattern := make([]byte, width*height*4)
	for i := range pattern {
		pattern[i] = byte(i)
	}

	addr := startMockServer(t, func(c net.Conn) {
		scriptVersionAndSecurity(t, c)
		scriptInit(t, c, width, height, "mock-desk")

		if incremental := scriptUpdateRequest(t, c); incremental {
			t.Error("first update request must be non-incremental")
		}
		serverWrite(t, c, rawUpdateMessage(0, 0, width, height, pattern))

		if incremental := scriptUpdateRequest(t, c); !incremental {
			t.Error("follow-up update request must be incremental")
		}
		drainUntilClosed(c)
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	sess, err := Dial(ctx, addr)
	require.NoError(t, err)
	defer func() { _ = sess.Close() }()

	assert.Equal(t, Version38, sess.Version())
	assert.Equal(t, "mock-desk", sess.DesktopName())
	assert.Equal(t, StateActive, sess.State())

	w, h := sess.Framebuffer().Size()
	assert.Equal(t, uint16(width), w)
	assert.Equal(t, uint16(height), h)

	select {
	case ev := <-sess.Events():
		update, ok := ev.(*UpdateEvent)
		require.True(t, ok, "expected *UpdateEvent, got %T", ev)
		assert.Equal(t, 1, update.Rectangles)
	case <-ctx.Done():
		t.Fatal("timed out waiting for update event")
	}

	assert.Equal(t, pattern, sess.Framebuffer().Snapshot())

	require.NoError(t, sess.Close())
	assert.Equal(t, StateClosed, sess.State())
	assert.NoError(t, sess.Err())
}

func TestSessionVersion33DictatedSecurity(t *testing.T) {
	requestRead := make(chan struct{})
	addr := startMockServer(t, func(c net.Conn) {
		serverWrite(t, c, []byte("RFB 003.003\n"))
		got := serverReadN(t, c, protocolVersionLen)
		if string(got) != "RFB 003.003\n" {
			t.Errorf("unexpected client version %q", got)
		}

		// 3.3: the server dictates the type as a u32 and, for None,
		// sends no SecurityResult.
		serverWrite(t, c, []byte{0, 0, 0, secTypeNone})

		scriptInit(t, c, 4, 4, "legacy")
		scriptUpdateRequest(t, c)
		close(requestRead)
		drainUntilClosed(c)
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	sess, err := Dial(ctx, addr)
	require.NoError(t, err)
	defer func() { _ = sess.Close() }()

	assert.Equal(t, Version33, sess.Version())
	assert.Equal(t, "legacy", sess.DesktopName())

	select {
	case <-requestRead:
	case <-ctx.Done():
		t.Fatal("timed out waiting for the first update request")
	}
}

func TestSessionVersion37PasswordAuth(t *testing.T) {
	const password = "hunter2"
	challenge := bytes.Repeat([]byte{0x5a, 0xc3}, 8)

	requestRead := make(chan struct{})
	addr := startMockServer(t, func(c net.Conn) {
		serverWrite(t, c, []byte("RFB 003.007\n"))
		got := serverReadN(t, c, protocolVersionLen)
		if string(got) != "RFB 003.007\n" {
			t.Errorf("unexpected client version %q", got)
		}

		serverWrite(t, c, []byte{1, secTypeVNCAuth})
		chosen := serverReadN(t, c, 1)
		if chosen[0] != secTypeVNCAuth {
			t.Errorf("client chose security type %d", chosen[0])
		}

		serverWrite(t, c, challenge)
		response := serverReadN(t, c, vncChallengeSize)
		want, err := encryptChallenge(password, challenge)
		if err != nil {
			t.Errorf("reference encryption failed: %s", err)
		}
		if !bytes.Equal(response, want) {
			t.Error("challenge response does not match reference encryption")
		}

		serverWrite(t, c, []byte{0, 0, 0, 0})
		scriptInit(t, c, 4, 4, "secured")
		scriptUpdateRequest(t, c)
		close(requestRead)
		drainUntilClosed(c)
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	sess, err := Dial(ctx, addr, WithPassword(password))
	require.NoError(t, err)
	defer func() { _ = sess.Close() }()

	assert.Equal(t, Version37, sess.Version())

	select {
	case <-requestRead:
	case <-ctx.Done():
		t.Fatal("timed out waiting for the first update request")
	}
}

func TestSessionUnsupportedVersion(t *testing.T) {
	addr := startMockServer(t, func(c net.Conn) {
		serverWrite(t, c, []byte("RFB 002.000\n"))
		drainUntilClosed(c)
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := Dial(ctx, addr)
	require.Error(t, err)
	assert.True(t, IsError(err, ErrProtocol))
}

func TestSessionServerRefusesWithReason(t *testing.T) {
	addr := startMockServer(t, func(c net.Conn) {
		serverWrite(t, c, []byte("RFB 003.008\n"))
		serverReadN(t, c, protocolVersionLen)

		// Zero security types followed by a reason string.
		reason := "too many connections"
		serverWrite(t, c, []byte{0})
		var buf []byte
		buf = binary.BigEndian.AppendUint32(buf, uint32(len(reason)))
		serverWrite(t, c, append(buf, reason...))
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := Dial(ctx, addr)
	require.Error(t, err)
	assert.True(t, IsError(err, ErrAuth))
	assert.Contains(t, err.Error(), "too many connections")
}

func TestSessionAuthRejectedWithReason(t *testing.T) {
	addr := startMockServer(t, func(c net.Conn) {
		scriptVersionAndSecurityVncAuth(t, c)

		// Non-zero result plus a 3.8 reason string.
		serverWrite(t, c, []byte{0, 0, 0, 1})
		reason := "bad password"
		var buf []byte
		buf = binary.BigEndian.AppendUint32(buf, uint32(len(reason)))
		serverWrite(t, c, append(buf, reason...))
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := Dial(ctx, addr, WithPassword("wrong"))
	require.Error(t, err)
	assert.True(t, IsError(err, ErrAuth))
	assert.Contains(t, err.Error(), "bad password")
}

// scriptVersionAndSecurityVncAuth negotiates 3.8 with VNC Authentication up
// to (but not including) the SecurityResult word.
func scriptVersionAndSecurityVncAuth(t *testing.T, c net.Conn) {
	serverWrite(t, c, []byte("RFB 003.008\n"))
	serverReadN(t, c, protocolVersionLen)
	serverWrite(t, c, []byte{1, secTypeVNCAuth})
	serverReadN(t, c, 1)
	serverWrite(t, c, bytes.Repeat([]byte{0xab}, vncChallengeSize))
	serverReadN(t, c, vncChallengeSize)
}

func TestSessionBellAndCutText(t *testing.T) {
	addr := startMockServer(t, func(c net.Conn) {
		scriptVersionAndSecurity(t, c)
		scriptInit(t, c, 4, 4, "events")
		scriptUpdateRequest(t, c)

		serverWrite(t, c, []byte{msgBell})

		text := "from server"
		msg := []byte{msgServerCutText, 0, 0, 0}
		msg = binary.BigEndian.AppendUint32(msg, uint32(len(text)))
		serverWrite(t, c, append(msg, text...))

		drainUntilClosed(c)
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	sess, err := Dial(ctx, addr)
	require.NoError(t, err)
	defer func() { _ = sess.Close() }()

	waitEvent := func() Event {
		select {
		case ev := <-sess.Events():
			return ev
		case <-ctx.Done():
			t.Fatal("timed out waiting for event")
			return nil
		}
	}

	_, ok := waitEvent().(*BellEvent)
	require.True(t, ok)

	clip, ok := waitEvent().(*ClipboardEvent)
	require.True(t, ok)
	assert.Equal(t, "from server", clip.Text)
}

// TestSessionOutOfBoundsRectangleFails verifies that a rectangle escaping
// the framebuffer is fatal and mutates nothing.
func TestSessionOutOfBoundsRectangleFails(t *testing.T) {
	addr := startMockServer(t, func(c net.Conn) {
		scriptVersionAndSecurity(t, c)
		scriptInit(t, c, 8, 8, "bounds")
		scriptUpdateRequest(t, c)

		// 4x4 rectangle at (6,6) on an 8x8 screen.
		serverWrite(t, c, rawUpdateMessage(6, 6, 4, 4, make([]byte, 4*4*4)))
		drainUntilClosed(c)
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	sess, err := Dial(ctx, addr)
	require.NoError(t, err)
	defer func() { _ = sess.Close() }()

	var disconnect *DisconnectEvent
	for ev := range sess.Events() {
		if d, ok := ev.(*DisconnectEvent); ok {
			disconnect = d
		}
	}
	require.NotNil(t, disconnect)
	require.Error(t, disconnect.Err)
	assert.True(t, IsError(disconnect.Err, ErrProtocol))

	assert.Equal(t, StateFailed, sess.State())
	assert.True(t, IsError(sess.Err(), ErrProtocol))

	// The rejected rectangle never touched the framebuffer.
	for _, b := range sess.Framebuffer().Snapshot() {
		assert.Zero(t, b)
	}
}

func TestSessionContextCancellationClosesCleanly(t *testing.T) {
	requestRead := make(chan struct{})
	addr := startMockServer(t, func(c net.Conn) {
		scriptVersionAndSecurity(t, c)
		scriptInit(t, c, 4, 4, "cancel")
		scriptUpdateRequest(t, c)
		close(requestRead)
		drainUntilClosed(c)
	})

	ctx, cancel := context.WithCancel(context.Background())
	sess, err := Dial(ctx, addr)
	require.NoError(t, err)

	select {
	case <-requestRead:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for the first update request")
	}

	cancel()
	require.NoError(t, sess.Close())

	assert.Equal(t, StateClosed, sess.State())
	assert.NoError(t, sess.Err())
}

func TestSessionExclusiveFlag(t *testing.T) {
	sharedFlag := make(chan byte, 1)
	requestRead := make(chan struct{})
	addr := startMockServer(t, func(c net.Conn) {
		scriptVersionAndSecurity(t, c)
		flag := serverReadN(t, c, 1)
		sharedFlag <- flag[0]
		serverWrite(t, c, serverInitMessage(4, 4, PixelFormat32BitRGB, "excl"))
		serverReadN(t, c, 4+4*len(DefaultEncodings))
		scriptUpdateRequest(t, c)
		close(requestRead)
		drainUntilClosed(c)
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	sess, err := Dial(ctx, addr, WithExclusive(true))
	require.NoError(t, err)
	defer func() { _ = sess.Close() }()

	assert.Equal(t, byte(0), <-sharedFlag)

	select {
	case <-requestRead:
	case <-ctx.Done():
		t.Fatal("timed out waiting for the first update request")
	}
}
