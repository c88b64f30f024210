package protocol

import (
	"encoding/json"

	"github.com/KDT2006/termsnake/internal/model"
)

// EncodeEntity serializes a wall, snake or power-up as one protocol line.
func EncodeEntity(entity any) (string, error) {
	switch entity.(type) {
	case model.Wall, *model.Wall, model.Snake, *model.Snake, model.PowerUp, *model.PowerUp:
	default:
		return "", ErrUnknownMessage
	}
	b, err := json.Marshal(entity)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
