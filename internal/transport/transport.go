// Package transport provides line-framed byte exchange over a stream.
// Every message is one UTF-8 line terminated by '\n'. Implementations are
// safe for one reader and any number of concurrent writers.
package transport

import (
	"context"
	"errors"
	"strings"
)

var (
	ErrConnection       = errors.New("connection failed")
	ErrNotConnected     = errors.New("not connected")
	ErrSendFailed       = errors.New("send failed")
	ErrReceiveFailed    = errors.New("receive failed")
	ErrConnectionClosed = errors.New("connection closed")
)

// LineConn is the line-oriented connection contract shared by the TCP and
// WebSocket transports.
type LineConn interface {
	// Connect dials host:port. It fails with ErrConnection when the
	// connection is already open or the dial fails.
	Connect(ctx context.Context, host string, port int) error

	// IsConnected reports whether the stream is open and the peer has not
	// closed its side. The answer is a hint for the next operation only.
	// Conn notices a remote close without a read. WSConn only learns of
	// it from ReadLine, so it may report true until the next read fails.
	IsConnected() bool

	// SendLine writes text as one or more terminated lines.
	SendLine(text string) error

	// ReadLine blocks until a full line is available and returns it
	// without its terminator. Lines over the transport's limit
	// (DefaultMaxLineLength by default) fail with ErrReceiveFailed.
	ReadLine() (string, error)

	// Disconnect closes the stream. It is safe to call more than once.
	Disconnect() error
}

var lineBreaks = strings.NewReplacer("\r\n", "\n", "\r", "\n")

// SplitLines splits text on "\r\n", "\r" and "\n". Each returned segment is
// sent as its own protocol line, so a multi-line payload is several
// messages, not one.
func SplitLines(text string) []string {
	return strings.Split(lineBreaks.Replace(text), "\n")
}
