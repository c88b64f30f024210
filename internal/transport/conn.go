package transport

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"
)

// peekWindow bounds how long IsConnected waits on an idle socket.
const peekWindow = time.Millisecond

// DefaultMaxLineLength caps an inbound line, terminator included.
const DefaultMaxLineLength = 1 << 20

var errLineTooLong = errors.New("line too long")

// Conn is a LineConn over a TCP stream.
type Conn struct {
	// MaxLineLength caps ReadLine; 0 means DefaultMaxLineLength.
	MaxLineLength int

	mu     sync.Mutex
	conn   net.Conn
	reader *bufio.Reader
	writer *bufio.Writer
	eof    bool // the peer closed its side

	readMu  sync.Mutex
	writeMu sync.Mutex
}

var _ LineConn = (*Conn)(nil)

// New returns an unconnected Conn.
func New() *Conn {
	return &Conn{}
}

// FromConn wraps an already established stream, e.g. one returned by
// net.Listener.Accept.
func FromConn(nc net.Conn) *Conn {
	c := &Conn{}
	c.attach(nc)
	return c
}

func (c *Conn) attach(nc net.Conn) {
	c.conn = nc
	c.reader = bufio.NewReader(nc)
	c.writer = bufio.NewWriter(nc)
	c.eof = false
}

func (c *Conn) Connect(ctx context.Context, host string, port int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		return fmt.Errorf("%w: already connected to %s", ErrConnection, c.conn.RemoteAddr())
	}

	var d net.Dialer
	nc, err := d.DialContext(ctx, "tcp", net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrConnection, err)
	}
	c.attach(nc)

	return nil
}

// RemoteAddr returns the peer address, or "" when not connected.
func (c *Conn) RemoteAddr() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return ""
	}
	return c.conn.RemoteAddr().String()
}

func (c *Conn) IsConnected() bool {
	c.mu.Lock()
	nc, r, eof := c.conn, c.reader, c.eof
	c.mu.Unlock()

	if nc == nil || eof {
		return false
	}

	// A reader parked in ReadLine will see a remote close on its own.
	if !c.readMu.TryLock() {
		return true
	}
	defer c.readMu.Unlock()

	if r.Buffered() > 0 {
		return true
	}

	_ = nc.SetReadDeadline(time.Now().Add(peekWindow))
	_, err := r.Peek(1)
	_ = nc.SetReadDeadline(time.Time{})

	if err == nil {
		return true
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	if errors.Is(err, io.EOF) {
		c.markEOF()
	}
	return false
}

func (c *Conn) SendLine(text string) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}

	c.mu.Lock()
	w := c.writer
	c.mu.Unlock()
	if w == nil {
		return ErrNotConnected
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	for _, line := range SplitLines(text) {
		if _, err := w.WriteString(line); err != nil {
			return fmt.Errorf("%w: %w", ErrSendFailed, err)
		}
		if err := w.WriteByte('\n'); err != nil {
			return fmt.Errorf("%w: %w", ErrSendFailed, err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("%w: %w", ErrSendFailed, err)
	}

	return nil
}

func (c *Conn) ReadLine() (string, error) {
	c.mu.Lock()
	r, eof := c.reader, c.eof
	c.mu.Unlock()

	if r == nil {
		return "", ErrNotConnected
	}
	if eof {
		return "", fmt.Errorf("%w: %w", ErrConnectionClosed, io.EOF)
	}

	c.readMu.Lock()
	defer c.readMu.Unlock()

	line, err := readBounded(r, c.maxLineLength())
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
			c.markEOF()
			return "", fmt.Errorf("%w: %w", ErrConnectionClosed, err)
		}
		return "", fmt.Errorf("%w: %w", ErrReceiveFailed, err)
	}

	line = strings.TrimSuffix(line, "\n")
	return strings.TrimSuffix(line, "\r"), nil
}

func (c *Conn) maxLineLength() int {
	if c.MaxLineLength > 0 {
		return c.MaxLineLength
	}
	return DefaultMaxLineLength
}

// readBounded reads through the next '\n' but gives up once the line
// exceeds limit bytes. The rest of the oversized line stays unread.
func readBounded(r *bufio.Reader, limit int) (string, error) {
	var buf []byte
	for {
		chunk, err := r.ReadSlice('\n')
		if len(buf)+len(chunk) > limit {
			return "", fmt.Errorf("%w: more than %d bytes", errLineTooLong, limit)
		}
		buf = append(buf, chunk...)
		if err == nil {
			return string(buf), nil
		}
		if !errors.Is(err, bufio.ErrBufferFull) {
			return "", err
		}
	}
}

func (c *Conn) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return nil
	}

	err := c.conn.Close()
	c.conn, c.reader, c.writer = nil, nil, nil
	c.eof = false
	if err != nil && !errors.Is(err, net.ErrClosed) {
		return fmt.Errorf("failed to close connection: %w", err)
	}

	return nil
}

func (c *Conn) markEOF() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		c.eof = true
	}
}
