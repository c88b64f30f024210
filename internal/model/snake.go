package model

import (
	"encoding/json"
	"slices"
)

// Snake is one player's snake. Body is ordered tail to head and is drawn
// as a polyline.
type Snake struct {
	ID           int     `json:"snake"`
	Name         string  `json:"name"`
	Body         []Point `json:"body"`
	Dir          Point   `json:"dir"`
	Score        int     `json:"score"`
	Died         bool    `json:"died"`  // set only on the frame the snake died
	Alive        bool    `json:"alive"`
	Disconnected bool    `json:"dc"`
	Joined       bool    `json:"join"` // set only on the frame the snake appeared
}

// NewSnake returns a snake with the defaults a record falls back to when
// the server omits a field.
func NewSnake(id int, name string, body []Point, dir Point) *Snake {
	return &Snake{
		ID:    id,
		Name:  name,
		Body:  body,
		Dir:   dir,
		Alive: true,
	}
}

// Head returns the last body point, or false for an empty body.
func (s *Snake) Head() (Point, bool) {
	if len(s.Body) == 0 {
		return Point{}, false
	}
	return s.Body[len(s.Body)-1], true
}

// ApplyUpdate replaces every field of s with the record in data, keeping
// s itself so references held elsewhere stay valid. A malformed record
// leaves s unchanged and returns false.
func (s *Snake) ApplyUpdate(data []byte) bool {
	next := NewSnake(0, "", nil, Point{X: 1})
	if err := json.Unmarshal(data, next); err != nil {
		return false
	}
	*s = *next
	return true
}

// Clone returns a copy that shares no memory with s.
func (s *Snake) Clone() Snake {
	c := *s
	c.Body = slices.Clone(s.Body)
	return c
}
