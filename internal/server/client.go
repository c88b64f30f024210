package server

import (
	"github.com/google/uuid"
)

// Conn is the server side of a line connection. transport.Conn and
// transport.WSConn both satisfy it.
type Conn interface {
	ReadLine() (string, error)
	SendLine(text string) error
	Disconnect() error
	RemoteAddr() string
}

// Client is one connected player.
type Client struct {
	id         uuid.UUID // connection id, for logs
	conn       Conn
	playerID   int
	playerName string
	outbound   chan string
}
