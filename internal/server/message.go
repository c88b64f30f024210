package server

import "github.com/KDT2006/termsnake/internal/protocol"

type MessageType byte

const (
	MessageTypeSteer MessageType = iota
)

// Message is an event from a client connection for the game loop.
type Message struct {
	Client    *Client
	Type      MessageType
	Direction protocol.Direction
}
