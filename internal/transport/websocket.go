package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// DefaultWSPath is the endpoint the arena server upgrades on.
	DefaultWSPath = "/ws"

	closeWriteWait = time.Second
)

// WSConn is a LineConn over a WebSocket. Each outbound line is one text
// frame; an inbound frame holding several lines yields several ReadLine
// results.
type WSConn struct {
	Path   string
	Dialer *websocket.Dialer

	mu     sync.Mutex
	conn   *websocket.Conn
	closed bool

	readMu  sync.Mutex
	pending []string

	writeMu sync.Mutex
}

var _ LineConn = (*WSConn)(nil)

// NewWS returns an unconnected WSConn that dials the given path.
func NewWS(path string) *WSConn {
	if path == "" {
		path = DefaultWSPath
	}
	return &WSConn{
		Path:   path,
		Dialer: websocket.DefaultDialer,
	}
}

// FromWebSocket wraps an upgraded server-side connection.
func FromWebSocket(ws *websocket.Conn) *WSConn {
	ws.SetReadLimit(DefaultMaxLineLength)
	return &WSConn{conn: ws}
}

func (c *WSConn) Connect(ctx context.Context, host string, port int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		return fmt.Errorf("%w: already connected to %s", ErrConnection, c.conn.RemoteAddr())
	}

	u := url.URL{Scheme: "ws", Host: net.JoinHostPort(host, strconv.Itoa(port)), Path: c.Path}
	dialer := c.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	ws, _, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrConnection, err)
	}
	ws.SetReadLimit(DefaultMaxLineLength)
	c.conn = ws
	c.closed = false
	c.pending = nil

	return nil
}

// RemoteAddr returns the peer address, or "" when not connected.
func (c *WSConn) RemoteAddr() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return ""
	}
	return c.conn.RemoteAddr().String()
}

// IsConnected reports the last state observed by ReadLine. WebSocket peers
// announce a close with a close frame, which only a read can see.
func (c *WSConn) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.conn != nil && !c.closed
}

func (c *WSConn) SendLine(text string) error {
	c.mu.Lock()
	ws, closed := c.conn, c.closed
	c.mu.Unlock()
	if ws == nil || closed {
		return ErrNotConnected
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	for _, line := range SplitLines(text) {
		if err := ws.WriteMessage(websocket.TextMessage, []byte(line)); err != nil {
			return fmt.Errorf("%w: %w", ErrSendFailed, err)
		}
	}

	return nil
}

func (c *WSConn) ReadLine() (string, error) {
	c.mu.Lock()
	ws, closed := c.conn, c.closed
	c.mu.Unlock()
	if ws == nil {
		return "", ErrNotConnected
	}

	c.readMu.Lock()
	defer c.readMu.Unlock()

	for len(c.pending) == 0 {
		if closed {
			return "", fmt.Errorf("%w: %w", ErrConnectionClosed, io.EOF)
		}

		mt, data, err := ws.ReadMessage()
		if err != nil {
			var ce *websocket.CloseError
			if errors.As(err, &ce) || errors.Is(err, net.ErrClosed) || errors.Is(err, io.EOF) {
				c.markClosed()
				return "", fmt.Errorf("%w: %w", ErrConnectionClosed, err)
			}
			return "", fmt.Errorf("%w: %w", ErrReceiveFailed, err)
		}
		if mt != websocket.TextMessage {
			continue
		}
		c.pending = SplitLines(strings.TrimSuffix(string(data), "\n"))
	}

	line := c.pending[0]
	c.pending = c.pending[1:]
	return line, nil
}

func (c *WSConn) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return nil
	}

	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeWriteWait))

	err := c.conn.Close()
	c.conn = nil
	c.closed = false
	if err != nil && !errors.Is(err, net.ErrClosed) {
		return fmt.Errorf("failed to close websocket: %w", err)
	}

	return nil
}

func (c *WSConn) markClosed() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		c.closed = true
	}
}
