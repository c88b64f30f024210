package protocol

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Direction is a movement command.
type Direction string

const (
	Up    Direction = "up"
	Down  Direction = "down"
	Left  Direction = "left"
	Right Direction = "right"
)

// Command is the only client -> server steady-state message.
type Command struct {
	Moving Direction `json:"moving"`
}

// ParseDirection accepts the four direction names, case-insensitively.
func ParseDirection(s string) (Direction, bool) {
	switch d := Direction(strings.ToLower(strings.TrimSpace(s))); d {
	case Up, Down, Left, Right:
		return d, true
	}
	return "", false
}

// DirectionForKey maps the w/a/s/d movement keys.
func DirectionForKey(key string) (Direction, bool) {
	switch strings.ToLower(key) {
	case "w":
		return Up, true
	case "s":
		return Down, true
	case "a":
		return Left, true
	case "d":
		return Right, true
	}
	return "", false
}

// Vector returns the unit step for d; screen y grows downwards.
func (d Direction) Vector() (dx, dy int) {
	switch d {
	case Up:
		return 0, -1
	case Down:
		return 0, 1
	case Left:
		return -1, 0
	case Right:
		return 1, 0
	}
	return 0, 0
}

func EncodeCommand(d Direction) (string, error) {
	b, err := json.Marshal(Command{Moving: d})
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// DecodeCommand parses a client command line. Unknown directions are
// reported as errors so the server can ignore them.
func DecodeCommand(line string) (Direction, error) {
	var c Command
	if err := json.Unmarshal([]byte(line), &c); err != nil {
		return "", fmt.Errorf("%w: %w", ErrUnknownMessage, err)
	}
	d, ok := ParseDirection(string(c.Moving))
	if !ok {
		return "", fmt.Errorf("%w: bad direction %q", ErrUnknownMessage, c.Moving)
	}
	return d, nil
}
