// Package model holds the client-side mirror of the arena: the entity
// records the server streams and the World they are reconciled into.
//
// Entities merge updates wholesale. The server always sends a complete
// record, so ApplyUpdate overwrites every field and never merges
// sub-fields.
package model

import "encoding/json"

// Point is an integer arena coordinate.
type Point struct {
	X int `json:"X"`
	Y int `json:"Y"`
}

// Wall is a segment between two endpoints.
type Wall struct {
	ID int   `json:"wall"`
	P1 Point `json:"p1"`
	P2 Point `json:"p2"`
}

// ApplyUpdate replaces w with the record in data. A malformed record is
// ignored and false is returned.
func (w *Wall) ApplyUpdate(data []byte) bool {
	var next Wall
	if err := json.Unmarshal(data, &next); err != nil {
		return false
	}
	*w = next
	return true
}

// PowerUp is a pickup on the field. The server signals removal with
// Consumed rather than by omitting the record.
type PowerUp struct {
	ID       int   `json:"power"`
	Loc      Point `json:"loc"`
	Consumed bool  `json:"died"`
}

func (p *PowerUp) ApplyUpdate(data []byte) bool {
	var next PowerUp
	if err := json.Unmarshal(data, &next); err != nil {
		return false
	}
	*p = next
	return true
}
