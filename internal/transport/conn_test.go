package transport

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"
)

func listen(t *testing.T) (net.Listener, int) {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })

	return ln, ln.Addr().(*net.TCPAddr).Port
}

func dial(t *testing.T) (*Conn, net.Conn) {
	t.Helper()

	ln, port := listen(t)
	accepted := make(chan net.Conn, 1)
	go func() {
		nc, err := ln.Accept()
		if err != nil {
			close(accepted)
			return
		}
		accepted <- nc
	}()

	c := New()
	if err := c.Connect(context.Background(), "127.0.0.1", port); err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { c.Disconnect() })

	select {
	case nc, ok := <-accepted:
		if !ok {
			t.Fatalf("accept failed")
		}
		t.Cleanup(func() { nc.Close() })
		return c, nc
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for accept")
	}
	return nil, nil
}

func TestSplitLines(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"up", []string{"up"}},
		{"a\nb", []string{"a", "b"}},
		{"a\r\nb", []string{"a", "b"}},
		{"a\rb\nc\r\nd", []string{"a", "b", "c", "d"}},
		{"a\n", []string{"a", ""}},
		{"", []string{""}},
	}

	for _, tt := range tests {
		if got := SplitLines(tt.in); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("SplitLines(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestConnSendLineSplitsMultiLinePayload(t *testing.T) {
	c, nc := dial(t)

	if err := c.SendLine("up\r\ndown\rleft\nright"); err != nil {
		t.Fatalf("send: %v", err)
	}

	r := bufio.NewReader(nc)
	_ = nc.SetReadDeadline(time.Now().Add(time.Second))
	want := []string{"up", "down", "left", "right"}
	for i, w := range want {
		line, err := r.ReadString('\n')
		if err != nil {
			t.Fatalf("read line %d: %v", i, err)
		}
		if line != w+"\n" {
			t.Fatalf("line %d = %q, want %q", i, line, w+"\n")
		}
	}
}

func TestConnReadLine(t *testing.T) {
	c, nc := dial(t)

	if _, err := nc.Write([]byte("hello\r\nworld\n")); err != nil {
		t.Fatalf("write: %v", err)
	}

	for _, want := range []string{"hello", "world"} {
		got, err := c.ReadLine()
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		if got != want {
			t.Fatalf("ReadLine = %q, want %q", got, want)
		}
	}
}

func TestConnReadLineRejectsOversizedLine(t *testing.T) {
	c, nc := dial(t)
	c.MaxLineLength = 6000

	// Both lines are longer than the reader's internal buffer.
	fits := strings.Repeat("a", 5000)
	tooLong := strings.Repeat("b", 7000)
	if _, err := nc.Write([]byte(fits + "\n" + tooLong + "\n")); err != nil {
		t.Fatalf("write: %v", err)
	}

	if got, err := c.ReadLine(); err != nil || got != fits {
		t.Fatalf("ReadLine = %d bytes, %v; want %d bytes", len(got), err, len(fits))
	}
	if _, err := c.ReadLine(); !errors.Is(err, ErrReceiveFailed) {
		t.Fatalf("ReadLine of oversized line: err = %v, want ErrReceiveFailed", err)
	}
}

func TestConnReadLineAfterPeerClose(t *testing.T) {
	c, nc := dial(t)

	if _, err := nc.Write([]byte("last\n")); err != nil {
		t.Fatalf("write: %v", err)
	}
	nc.Close()

	if got, err := c.ReadLine(); err != nil || got != "last" {
		t.Fatalf("ReadLine = %q, %v; want %q, nil", got, err, "last")
	}
	if _, err := c.ReadLine(); !errors.Is(err, ErrConnectionClosed) {
		t.Fatalf("ReadLine after close: err = %v, want ErrConnectionClosed", err)
	}
}

func TestConnIsConnectedDetectsRemoteClose(t *testing.T) {
	c, nc := dial(t)

	if !c.IsConnected() {
		t.Fatalf("IsConnected = false on a fresh connection")
	}

	nc.Close()

	deadline := time.Now().Add(time.Second)
	for c.IsConnected() {
		if time.Now().After(deadline) {
			t.Fatalf("IsConnected still true after the peer closed")
		}
		time.Sleep(5 * time.Millisecond)
	}

	if err := c.SendLine("up"); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("SendLine after remote close: err = %v, want ErrNotConnected", err)
	}
}

func TestConnIsConnectedKeepsPendingData(t *testing.T) {
	c, nc := dial(t)

	if _, err := nc.Write([]byte("pending\n")); err != nil {
		t.Fatalf("write: %v", err)
	}
	time.Sleep(20 * time.Millisecond)

	if !c.IsConnected() {
		t.Fatalf("IsConnected = false with unread data")
	}
	if got, err := c.ReadLine(); err != nil || got != "pending" {
		t.Fatalf("ReadLine = %q, %v; want %q, nil", got, err, "pending")
	}
}

func TestConnNotConnected(t *testing.T) {
	c := New()

	if c.IsConnected() {
		t.Fatalf("IsConnected = true before Connect")
	}
	if err := c.SendLine("up"); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("SendLine: err = %v, want ErrNotConnected", err)
	}
	if _, err := c.ReadLine(); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("ReadLine: err = %v, want ErrNotConnected", err)
	}
	if err := c.Disconnect(); err != nil {
		t.Fatalf("Disconnect on unconnected: %v", err)
	}
	if err := c.Disconnect(); err != nil {
		t.Fatalf("second Disconnect: %v", err)
	}
}

func TestConnConnectTwiceFails(t *testing.T) {
	c, _ := dial(t)

	err := c.Connect(context.Background(), "127.0.0.1", 1)
	if !errors.Is(err, ErrConnection) {
		t.Fatalf("second Connect: err = %v, want ErrConnection", err)
	}
}

func TestConnConnectRefused(t *testing.T) {
	ln, port := listen(t)
	ln.Close()

	c := New()
	err := c.Connect(context.Background(), "127.0.0.1", port)
	if !errors.Is(err, ErrConnection) {
		t.Fatalf("Connect to closed port: err = %v, want ErrConnection", err)
	}
	if c.IsConnected() {
		t.Fatalf("IsConnected = true after failed Connect")
	}
}

func TestConnDisconnectUnblocksReader(t *testing.T) {
	c, _ := dial(t)

	errCh := make(chan error, 1)
	go func() {
		_, err := c.ReadLine()
		errCh <- err
	}()

	time.Sleep(20 * time.Millisecond)
	if err := c.Disconnect(); err != nil {
		t.Fatalf("Disconnect: %v", err)
	}

	select {
	case err := <-errCh:
		if !errors.Is(err, ErrConnectionClosed) && !errors.Is(err, ErrNotConnected) {
			t.Fatalf("blocked ReadLine: err = %v, want ErrConnectionClosed", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("ReadLine still blocked after Disconnect")
	}

	if c.IsConnected() {
		t.Fatalf("IsConnected = true after Disconnect")
	}
}

func TestConnConcurrentSendersDoNotInterleave(t *testing.T) {
	c, nc := dial(t)

	const senders, perSender = 8, 50
	payload := strings.Repeat("x", 64)

	var wg sync.WaitGroup
	for g := 0; g < senders; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < perSender; i++ {
				if err := c.SendLine(fmt.Sprintf("g%d-%d-%s", g, i, payload)); err != nil {
					t.Errorf("send: %v", err)
					return
				}
			}
		}(g)
	}

	r := bufio.NewReader(nc)
	_ = nc.SetReadDeadline(time.Now().Add(2 * time.Second))
	seen := make(map[string]bool)
	for n := 0; n < senders*perSender; n++ {
		line, err := r.ReadString('\n')
		if err != nil {
			t.Fatalf("read %d: %v", n, err)
		}
		line = strings.TrimSuffix(line, "\n")
		var g, i int
		var rest string
		if _, err := fmt.Sscanf(line, "g%d-%d-%s", &g, &i, &rest); err != nil || rest != payload {
			t.Fatalf("interleaved line %q", line)
		}
		seen[line] = true
	}
	wg.Wait()

	if len(seen) != senders*perSender {
		t.Fatalf("got %d distinct lines, want %d", len(seen), senders*perSender)
	}
}
