// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: Ryan Johnson

package rfb

import (
	"context"
	"io"
	"net"
	"time"

	"github.com/gorilla/websocket"
)

// Transport abstracts the bidirectional byte stream carrying the protocol.
// It has no protocol knowledge; the session owns it and is its only user.
// ReadFull and Write must honor context cancellation by unblocking promptly,
// after which the transport is no longer usable.
type Transport interface {
	// ReadFull reads exactly len(buf) bytes or fails.
	ReadFull(ctx context.Context, buf []byte) error

	// Write writes all of buf or fails.
	Write(ctx context.Context, buf []byte) error

	// Close tears down the underlying connection. Safe to call more than once.
	Close() error
}

// TCPTransport is a Transport over a net.Conn. Cancellation is implemented by
// forcing the connection deadline, which unblocks any in-flight read or write.
type TCPTransport struct {
	conn net.Conn
}

// NewTCPTransport wraps an established connection, typically TCP.
func NewTCPTransport(conn net.Conn) *TCPTransport {
	return &TCPTransport{conn: conn}
}

// DialTCP connects to addr and returns a transport over the connection.
func DialTCP(ctx context.Context, addr string) (*TCPTransport, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, transportError("DialTCP", "failed to connect", err)
	}
	return NewTCPTransport(conn), nil
}

// ReadFull reads exactly len(buf) bytes from the connection.
func (t *TCPTransport) ReadFull(ctx context.Context, buf []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	applyDeadline(ctx, t.conn.SetReadDeadline)
	stop := context.AfterFunc(ctx, func() {
		_ = t.conn.SetReadDeadline(time.Unix(1, 0))
	})
	defer stop()

	if _, err := io.ReadFull(t.conn, buf); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return transportError("TCPTransport.ReadFull", "read failed", err)
	}
	return nil
}

// Write writes all of buf to the connection.
func (t *TCPTransport) Write(ctx context.Context, buf []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	applyDeadline(ctx, t.conn.SetWriteDeadline)
	stop := context.AfterFunc(ctx, func() {
		_ = t.conn.SetWriteDeadline(time.Unix(1, 0))
	})
	defer stop()

	if _, err := t.conn.Write(buf); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return transportError("TCPTransport.Write", "write failed", err)
	}
	return nil
}

// Close closes the underlying connection.
func (t *TCPTransport) Close() error {
	return t.conn.Close()
}

// applyDeadline propagates a context deadline, or clears any previous one.
func applyDeadline(ctx context.Context, set func(time.Time) error) {
	if deadline, ok := ctx.Deadline(); ok {
		_ = set(deadline)
	} else {
		_ = set(time.Time{})
	}
}

// WebSocketTransport is a Transport over a WebSocket connection carrying raw
// RFB bytes in binary messages, the framing used by websockify-style proxies
// in front of VNC servers. Message boundaries are not meaningful; the
// transport presents a continuous byte stream.
type WebSocketTransport struct {
	conn *websocket.Conn

	// rest holds unconsumed bytes of the current binary message.
	rest io.Reader
}

// NewWebSocketTransport wraps an established WebSocket connection.
func NewWebSocketTransport(conn *websocket.Conn) *WebSocketTransport {
	return &WebSocketTransport{conn: conn}
}

// DialWebSocket connects to a websockify-style endpoint, e.g.
// "ws://host:5901/websockify", and returns a transport over it.
func DialWebSocket(ctx context.Context, url string) (*WebSocketTransport, error) {
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, transportError("DialWebSocket", "failed to connect", err)
	}
	return NewWebSocketTransport(conn), nil
}

// ReadFull reads exactly len(buf) bytes, spanning binary message boundaries
// as needed.
func (t *WebSocketTransport) ReadFull(ctx context.Context, buf []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	applyDeadline(ctx, t.conn.SetReadDeadline)
	stop := context.AfterFunc(ctx, func() {
		_ = t.conn.SetReadDeadline(time.Unix(1, 0))
	})
	defer stop()

	off := 0
	for off < len(buf) {
		if t.rest == nil {
			msgType, r, err := t.conn.NextReader()
			if err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return ctxErr
				}
				return transportError("WebSocketTransport.ReadFull", "read failed", err)
			}
			if msgType != websocket.BinaryMessage {
				continue
			}
			t.rest = r
		}

		n, err := t.rest.Read(buf[off:])
		off += n
		if err == io.EOF {
			t.rest = nil
			continue
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			return transportError("WebSocketTransport.ReadFull", "read failed", err)
		}
	}
	return nil
}

// Write sends buf as a single binary message.
func (t *WebSocketTransport) Write(ctx context.Context, buf []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	applyDeadline(ctx, t.conn.SetWriteDeadline)
	if err := t.conn.WriteMessage(websocket.BinaryMessage, buf); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return transportError("WebSocketTransport.Write", "write failed", err)
	}
	return nil
}

// Close closes the underlying WebSocket connection.
func (t *WebSocketTransport) Close() error {
	return t.conn.Close()
}
