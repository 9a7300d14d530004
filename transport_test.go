// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: Ryan Johnson

package rfb

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTCPTransportReadWrite(t *testing.T) {
	client, server := net.Pipe()
	defer server.Close()

	transport := NewTCPTransport(client)
	defer transport.Close()

	go func() {
		_, _ = server.Write([]byte{1, 2, 3, 4})
	}()

	ctx := context.Background()
	buf := make([]byte, 4)
	require.NoError(t, transport.ReadFull(ctx, buf))
	assert.Equal(t, []byte{1, 2, 3, 4}, buf)

	go func() {
		out := make([]byte, 2)
		_, _ = server.Read(out)
	}()
	require.NoError(t, transport.Write(ctx, []byte{9, 8}))
}

func TestTCPTransportCancellationUnblocksRead(t *testing.T) {
	client, server := net.Pipe()
	defer server.Close()

	transport := NewTCPTransport(client)
	defer transport.Close()

	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() {
		buf := make([]byte, 1)
		errCh <- transport.ReadFull(ctx, buf)
	}()

	cancel()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("cancelled read did not return")
	}
}

func TestWebSocketTransportSpansMessageBoundaries(t *testing.T) {
	upgrader := websocket.Upgrader{}
	received := make(chan []byte, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer c.Close()

		// Two frames that the client must read as one contiguous stream.
		_ = c.WriteMessage(websocket.BinaryMessage, []byte{1, 2, 3})
		_ = c.WriteMessage(websocket.BinaryMessage, []byte{4, 5})

		if _, msg, err := c.ReadMessage(); err == nil {
			received <- msg
		}
		// Hold the connection until the client hangs up.
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	ctx, cancelTimeout := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelTimeout()

	transport, err := DialWebSocket(ctx, url)
	require.NoError(t, err)

	buf := make([]byte, 5)
	require.NoError(t, transport.ReadFull(ctx, buf))
	assert.Equal(t, []byte{1, 2, 3, 4, 5}, buf)

	require.NoError(t, transport.Write(ctx, []byte{0xca, 0xfe}))
	select {
	case msg := <-received:
		assert.Equal(t, []byte{0xca, 0xfe}, msg)
	case <-ctx.Done():
		t.Fatal("server never received the client frame")
	}

	require.NoError(t, transport.Close())
}

func TestWebSocketTransportPartialFrameConsumption(t *testing.T) {
	upgrader := websocket.Upgrader{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer c.Close()

		_ = c.WriteMessage(websocket.BinaryMessage, []byte{10, 20, 30, 40})
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	ctx, cancelTimeout := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelTimeout()

	transport, err := DialWebSocket(ctx, url)
	require.NoError(t, err)
	defer transport.Close()

	// Reads smaller than the frame leave the remainder for the next read.
	first := make([]byte, 1)
	require.NoError(t, transport.ReadFull(ctx, first))
	assert.Equal(t, []byte{10}, first)

	rest := make([]byte, 3)
	require.NoError(t, transport.ReadFull(ctx, rest))
	assert.Equal(t, []byte{20, 30, 40}, rest)
}
