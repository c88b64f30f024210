package game

import (
	"github.com/KDT2006/termsnake/internal/model"
	"github.com/KDT2006/termsnake/internal/protocol"
)

// Player is a snake plus the server-side state that never goes on the
// wire.
type Player struct {
	Snake     *model.Snake
	steer     protocol.Direction // applied on the next tick
	grow      int                // segments still to add
	respawnIn int                // ticks until a dead snake respawns
}

func dirPoint(d protocol.Direction) model.Point {
	dx, dy := d.Vector()
	return model.Point{X: dx, Y: dy}
}
