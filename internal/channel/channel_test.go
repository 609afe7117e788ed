// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package channel

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// echoServer upgrades incoming requests and echoes text frames with a
// "Bot: " prefix, the way the real backend replies.
func echoServer(t *testing.T) (*httptest.Server, string) {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("username") == "" {
			http.Error(w, "missing username", http.StatusBadRequest)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			_, payload, err := conn.ReadMessage()
			if err != nil {
				return
			}
			reply := "Bot: " + string(payload)
			if err := conn.WriteMessage(websocket.TextMessage, []byte(reply)); err != nil {
				return
			}
		}
	}))
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	return srv, wsURL
}

func waitEvent(t *testing.T, ch *Channel, kind EventKind) Event {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case ev := <-ch.Events():
			if ev.Kind == kind {
				return ev
			}
		case <-deadline:
			t.Fatalf("timed out waiting for event kind %d", kind)
		}
	}
}

func TestConnectSendReceive(t *testing.T) {
	srv, wsURL := echoServer(t)
	defer srv.Close()

	ch := New(wsURL, 5*time.Second, nil)
	defer ch.Close()

	gen, err := ch.Connect(context.Background(), "Alice")
	if err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	opened := waitEvent(t, ch, EventOpened)
	if opened.Gen != gen {
		t.Errorf("opened gen = %d, want %d", opened.Gen, gen)
	}
	if !ch.Connected() {
		t.Error("Connected() should be true after open")
	}

	if err := ch.Send(context.Background(), "hello"); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	msg := waitEvent(t, ch, EventMessage)
	if msg.Text != "Bot: hello" {
		t.Errorf("inbound = %q", msg.Text)
	}
	if msg.Gen != gen {
		t.Errorf("message gen = %d, want %d", msg.Gen, gen)
	}
}

func TestSendWhileDisconnected(t *testing.T) {
	ch := New("ws://127.0.0.1:1/ws", time.Second, nil)
	err := ch.Send(context.Background(), "hello")
	if err != ErrNotConnected {
		t.Errorf("err = %v, want ErrNotConnected", err)
	}
}

func TestServerDropEmitsUncleanClose(t *testing.T) {
	srv, wsURL := echoServer(t)

	ch := New(wsURL, 5*time.Second, nil)
	defer ch.Close()

	gen, err := ch.Connect(context.Background(), "Alice")
	if err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	waitEvent(t, ch, EventOpened)

	// Kill the server out from under the connection.
	srv.CloseClientConnections()
	srv.Close()

	closed := waitEvent(t, ch, EventClosed)
	if closed.Clean {
		t.Error("abrupt server drop should not be a clean close")
	}
	if closed.Gen != gen {
		t.Errorf("closed gen = %d, want %d", closed.Gen, gen)
	}
	if ch.Connected() {
		t.Error("Connected() should be false after close")
	}
}

func TestReconnectBumpsGeneration(t *testing.T) {
	srv, wsURL := echoServer(t)
	defer srv.Close()

	ch := New(wsURL, 5*time.Second, nil)
	defer ch.Close()

	gen1, err := ch.Connect(context.Background(), "Alice")
	if err != nil {
		t.Fatalf("first Connect failed: %v", err)
	}
	waitEvent(t, ch, EventOpened)

	gen2, err := ch.Connect(context.Background(), "Bob")
	if err != nil {
		t.Fatalf("second Connect failed: %v", err)
	}
	if gen2 <= gen1 {
		t.Errorf("reconnect generation %d should exceed %d", gen2, gen1)
	}

	// The second open event carries the new generation.
	for {
		ev := waitEvent(t, ch, EventOpened)
		if ev.Gen == gen2 {
			break
		}
	}

	if err := ch.Send(context.Background(), "after reconnect"); err != nil {
		t.Fatalf("Send after reconnect failed: %v", err)
	}
	msg := waitEvent(t, ch, EventMessage)
	if msg.Gen != gen2 {
		t.Errorf("post-reconnect message gen = %d, want %d", msg.Gen, gen2)
	}
}

func TestRequestedCloseIsClean(t *testing.T) {
	srv, wsURL := echoServer(t)
	defer srv.Close()

	ch := New(wsURL, 5*time.Second, nil)
	if _, err := ch.Connect(context.Background(), "Alice"); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	waitEvent(t, ch, EventOpened)

	if err := ch.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	closed := waitEvent(t, ch, EventClosed)
	if !closed.Clean {
		t.Error("a close we requested must be reported as clean")
	}
}

func TestDialFailure(t *testing.T) {
	ch := New("ws://127.0.0.1:1/ws", 500*time.Millisecond, nil)
	if _, err := ch.Connect(context.Background(), "Alice"); err == nil {
		t.Fatal("Connect to dead address should fail")
	}
	if ch.Connected() {
		t.Error("Connected() should be false after failed dial")
	}
}
