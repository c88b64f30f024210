package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Kind identifies which entity a steady-state line describes.
type Kind string

const (
	// Server -> Client
	KindWall    Kind = "wall"
	KindSnake   Kind = "snake"
	KindPowerUp Kind = "power"

	// Client -> Server
	KindCommand Kind = "moving"
)

var (
	ErrProtocol       = errors.New("protocol error")
	ErrUnknownMessage = errors.New("unknown message")
)

// kinds lists the id keys in the order they are probed.
var kinds = []Kind{KindWall, KindSnake, KindPowerUp}

// Classify decodes the top-level keys of a steady-state line, decides the
// entity kind from which id key is present and returns that id. Field order
// and whitespace do not matter.
func Classify(line []byte) (Kind, int, error) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(line, &probe); err != nil {
		return "", 0, fmt.Errorf("%w: %w", ErrUnknownMessage, err)
	}

	for _, k := range kinds {
		raw, ok := probe[string(k)]
		if !ok {
			continue
		}
		var id int
		if err := json.Unmarshal(raw, &id); err != nil {
			return "", 0, fmt.Errorf("%w: %s id %s: %w", ErrUnknownMessage, k, raw, err)
		}
		return k, id, nil
	}

	return "", 0, ErrUnknownMessage
}

// ParseHandshakeInt parses one of the two integer handshake lines.
func ParseHandshakeInt(line string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(line))
	if err != nil {
		return 0, fmt.Errorf("%w: expected integer, got %q", ErrProtocol, line)
	}
	return n, nil
}
