package transport

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

var testUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// startWS serves handle on DefaultWSPath and returns the host and port.
func startWS(t *testing.T, handle func(ws *websocket.Conn)) (string, int) {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc(DefaultWSPath, func(w http.ResponseWriter, r *http.Request) {
		ws, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer ws.Close()
		handle(ws)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	host, portStr, err := net.SplitHostPort(strings.TrimPrefix(srv.URL, "http://"))
	if err != nil {
		t.Fatalf("split %q: %v", srv.URL, err)
	}
	port, _ := strconv.Atoi(portStr)
	return host, port
}

func TestWSConnLineExchange(t *testing.T) {
	received := make(chan string, 4)
	host, port := startWS(t, func(ws *websocket.Conn) {
		if err := ws.WriteMessage(websocket.TextMessage, []byte("a\nb\n")); err != nil {
			t.Errorf("write: %v", err)
			return
		}
		for i := 0; i < 2; i++ {
			_, data, err := ws.ReadMessage()
			if err != nil {
				return
			}
			received <- string(data)
		}
		// wait for the client to hang up
		_, _, _ = ws.ReadMessage()
	})

	c := NewWS("")
	if err := c.Connect(context.Background(), host, port); err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer c.Disconnect()

	if !c.IsConnected() {
		t.Fatalf("IsConnected = false after Connect")
	}

	for _, want := range []string{"a", "b"} {
		got, err := c.ReadLine()
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		if got != want {
			t.Fatalf("ReadLine = %q, want %q", got, want)
		}
	}

	if err := c.SendLine("up\ndown"); err != nil {
		t.Fatalf("send: %v", err)
	}
	for _, want := range []string{"up", "down"} {
		select {
		case got := <-received:
			if got != want {
				t.Fatalf("server got %q, want %q", got, want)
			}
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for %q", want)
		}
	}
}

func TestWSConnPeerClose(t *testing.T) {
	host, port := startWS(t, func(ws *websocket.Conn) {
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye")
		_ = ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	})

	c := NewWS(DefaultWSPath)
	if err := c.Connect(context.Background(), host, port); err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer c.Disconnect()

	if _, err := c.ReadLine(); !errors.Is(err, ErrConnectionClosed) {
		t.Fatalf("ReadLine: err = %v, want ErrConnectionClosed", err)
	}
	if c.IsConnected() {
		t.Fatalf("IsConnected = true after close frame")
	}
	if err := c.SendLine("up"); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("SendLine: err = %v, want ErrNotConnected", err)
	}
}

func TestWSConnRejectsOversizedFrame(t *testing.T) {
	host, port := startWS(t, func(ws *websocket.Conn) {
		big := strings.Repeat("x", DefaultMaxLineLength+1)
		_ = ws.WriteMessage(websocket.TextMessage, []byte(big))
		_, _, _ = ws.ReadMessage()
	})

	c := NewWS("")
	if err := c.Connect(context.Background(), host, port); err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer c.Disconnect()

	if _, err := c.ReadLine(); !errors.Is(err, ErrReceiveFailed) {
		t.Fatalf("ReadLine of oversized frame: err = %v, want ErrReceiveFailed", err)
	}
}

func TestWSConnNotConnected(t *testing.T) {
	c := NewWS("")

	if _, err := c.ReadLine(); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("ReadLine: err = %v, want ErrNotConnected", err)
	}
	if err := c.Disconnect(); err != nil {
		t.Fatalf("Disconnect: %v", err)
	}
}
