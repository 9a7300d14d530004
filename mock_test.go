// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: Ryan Johnson

package rfb

import (
	"bytes"
	"context"
	"encoding/binary"
	"io"
	"net"
	"sync"
	"testing"
)

// startMockServer listens on a loopback port and runs script against the
// first accepted connection. The returned address is ready to dial.
func startMockServer(t *testing.T, script func(c net.Conn)) string {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("error listening: %s", err)
	}
	done := make(chan struct{})
	t.Cleanup(func() {
		_ = ln.Close()
		<-done
	})

	go func() {
		defer close(done)
		c, err := ln.Accept()
		if err != nil {
			return
		}
		defer c.Close()
		script(c)
	}()

	return ln.Addr().String()
}

// serverReadN reads exactly n bytes from the client side of a mock session.
func serverReadN(t *testing.T, c net.Conn, n int) []byte {
	t.Helper()
	buf := make([]byte, n)
	if _, err := io.ReadFull(c, buf); err != nil {
		t.Errorf("mock server short read of %d bytes: %s", n, err)
	}
	return buf
}

// serverWrite writes buf to the client, failing the test on error.
func serverWrite(t *testing.T, c net.Conn, buf []byte) {
	t.Helper()
	if _, err := c.Write(buf); err != nil {
		t.Errorf("mock server write failed: %s", err)
	}
}

// serverInitMessage builds a ServerInit for the given geometry, format and
// desktop name.
func serverInitMessage(width, height uint16, format PixelFormat, name string) []byte {
	buf := make([]byte, 0, 24+len(name))
	buf = binary.BigEndian.AppendUint16(buf, width)
	buf = binary.BigEndian.AppendUint16(buf, height)
	buf = append(buf, writePixelFormat(&format)...)
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(name)))
	buf = append(buf, name...)
	return buf
}

// rawUpdateMessage builds a FramebufferUpdate with a single Raw rectangle.
func rawUpdateMessage(x, y, w, h uint16, pixels []byte) []byte {
	buf := make([]byte, 0, 16+len(pixels))
	buf = append(buf, msgFramebufferUpdate, 0)
	buf = binary.BigEndian.AppendUint16(buf, 1)
	buf = binary.BigEndian.AppendUint16(buf, x)
	buf = binary.BigEndian.AppendUint16(buf, y)
	buf = binary.BigEndian.AppendUint16(buf, w)
	buf = binary.BigEndian.AppendUint16(buf, h)
	buf = binary.BigEndian.AppendUint32(buf, uint32(EncRaw))
	buf = append(buf, pixels...)
	return buf
}

// fakeTransport is an in-memory Transport: reads are served from a scripted
// buffer and writes are recorded message by message.
type fakeTransport struct {
	mu     sync.Mutex
	reads  bytes.Buffer
	writes [][]byte
	closed bool
}

func (f *fakeTransport) ReadFull(ctx context.Context, buf []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	_, err := io.ReadFull(&f.reads, buf)
	return err
}

func (f *fakeTransport) Write(ctx context.Context, buf []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	msg := make([]byte, len(buf))
	copy(msg, buf)
	f.writes = append(f.writes, msg)
	return nil
}

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeTransport) written() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]byte, len(f.writes))
	copy(out, f.writes)
	return out
}

// newTestSession builds a minimal session around a framebuffer for decoder
// tests that never touch the network.
func newTestSession(width, height uint16, format PixelFormat) *Session {
	return &Session{
		fb:      NewFramebuffer(width, height, format),
		logger:  &NoOpLogger{},
		metrics: &NoOpMetrics{},
		events:  make(chan Event, 8),
		ctx:     context.Background(),
	}
}
