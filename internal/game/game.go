// Package game runs the authoritative simulation of the development arena:
// snakes on an integer grid centered on the origin, fixed walls and
// power-ups.
package game

import (
	"math/rand"
	"slices"

	"github.com/KDT2006/termsnake/internal/config"
	"github.com/KDT2006/termsnake/internal/model"
	"github.com/KDT2006/termsnake/internal/protocol"
)

const spawnAttempts = 200

var directions = []protocol.Direction{protocol.Up, protocol.Down, protocol.Left, protocol.Right}

// Arena is not safe for concurrent use; the server serializes access.
type Arena struct {
	cfg      config.ArenaConfig
	half     int
	walls    []*model.Wall
	players  map[int]*Player
	powerUps map[int]*model.PowerUp
	nextID   int
	nextPow  int
	rng      *rand.Rand
	tick     int
}

func NewArena(cfg config.ArenaConfig, seed int64) *Arena {
	a := &Arena{
		cfg:      cfg,
		half:     cfg.Size / 2,
		players:  make(map[int]*Player),
		powerUps: make(map[int]*model.PowerUp),
		nextID:   1,
		rng:      rand.New(rand.NewSource(seed)),
	}
	if a.cfg.WallWidth < 1 {
		a.cfg.WallWidth = 1
	}

	for i, w := range cfg.Walls {
		a.walls = append(a.walls, &model.Wall{
			ID: i,
			P1: model.Point{X: w.P1.X, Y: w.P1.Y},
			P2: model.Point{X: w.P2.X, Y: w.P2.Y},
		})
	}

	for len(a.powerUps) < cfg.PowerUps {
		if a.spawnPowerUp() == nil {
			break
		}
	}

	return a
}

func (a *Arena) Size() int {
	return a.cfg.Size
}

func (a *Arena) Tick() int {
	return a.tick
}

func (a *Arena) Walls() []model.Wall {
	out := make([]model.Wall, 0, len(a.walls))
	for _, w := range a.walls {
		out = append(out, *w)
	}
	return out
}

func (a *Arena) PowerUps() []model.PowerUp {
	out := make([]model.PowerUp, 0, len(a.powerUps))
	for _, id := range sortedKeys(a.powerUps) {
		out = append(out, *a.powerUps[id])
	}
	return out
}

// Snake returns a copy of the snake with the given id.
func (a *Arena) Snake(id int) (model.Snake, bool) {
	p, ok := a.players[id]
	if !ok {
		return model.Snake{}, false
	}
	return p.Snake.Clone(), true
}

// Join adds a player and spawns its snake. When the arena has no free
// spot the snake starts dead and respawns later.
func (a *Arena) Join(name string) model.Snake {
	id := a.nextID
	a.nextID++

	p := &Player{Snake: model.NewSnake(id, name, nil, model.Point{X: 1})}
	p.Snake.Joined = true
	a.players[id] = p

	if !a.spawn(p) {
		p.Snake.Alive = false
		p.respawnIn = 1
	}

	return p.Snake.Clone()
}

// Steer queues a direction change for the next tick. Reversing onto the
// snake's own neck is ignored.
func (a *Arena) Steer(id int, d protocol.Direction) {
	p, ok := a.players[id]
	if !ok || !p.Snake.Alive {
		return
	}

	v := dirPoint(d)
	if v.X == -p.Snake.Dir.X && v.Y == -p.Snake.Dir.Y {
		return
	}
	p.steer = d
}

// Leave marks the player disconnected. The snake is reported once more on
// the next Step and then dropped.
func (a *Arena) Leave(id int) {
	p, ok := a.players[id]
	if !ok {
		return
	}
	p.Snake.Disconnected = true
	p.Snake.Alive = false
}

// Step advances the arena one tick and returns the records to broadcast:
// every snake, then every power-up that appeared or was consumed.
func (a *Arena) Step() []any {
	a.tick++

	ids := sortedKeys(a.players)
	var gone []int

	for _, id := range ids {
		p := a.players[id]
		s := p.Snake

		switch {
		case s.Disconnected:
			gone = append(gone, id)
		case !s.Alive:
			if p.respawnIn > 0 {
				p.respawnIn--
			}
			if p.respawnIn == 0 && !a.spawn(p) {
				p.respawnIn = 1
			}
		default:
			a.advance(p)
		}
	}

	for _, id := range ids {
		p := a.players[id]
		if p.Snake.Alive && a.collides(p) {
			p.Snake.Alive = false
			p.Snake.Died = true
			p.respawnIn = a.cfg.RespawnTicks
		}
	}

	var powered []any
	for _, id := range ids {
		p := a.players[id]
		if !p.Snake.Alive {
			continue
		}
		head, _ := p.Snake.Head()
		for _, pid := range sortedKeys(a.powerUps) {
			pu := a.powerUps[pid]
			if pu.Loc != head {
				continue
			}
			p.Snake.Score++
			p.grow += a.cfg.GrowBy
			pu.Consumed = true
			delete(a.powerUps, pid)
			powered = append(powered, *pu)
		}
	}
	for len(a.powerUps) < a.cfg.PowerUps {
		pu := a.spawnPowerUp()
		if pu == nil {
			break
		}
		powered = append(powered, *pu)
	}

	out := make([]any, 0, len(ids)+len(powered))
	for _, id := range ids {
		s := a.players[id].Snake
		out = append(out, s.Clone())
		s.Joined = false
		s.Died = false
	}
	for _, id := range gone {
		delete(a.players, id)
	}

	return append(out, powered...)
}

func (a *Arena) advance(p *Player) {
	s := p.Snake
	if p.steer != "" {
		s.Dir = dirPoint(p.steer)
		p.steer = ""
	}

	head, ok := s.Head()
	if !ok {
		return
	}
	s.Body = append(s.Body, model.Point{X: head.X + s.Dir.X, Y: head.Y + s.Dir.Y})
	if p.grow > 0 {
		p.grow--
	} else {
		s.Body = slices.Delete(s.Body, 0, 1)
	}
}

// collides reports whether p's head left the arena or hit a wall or a
// body, its own neck excluded.
func (a *Arena) collides(p *Player) bool {
	head, ok := p.Snake.Head()
	if !ok {
		return false
	}
	if a.outOfBounds(head) || a.onWall(head) {
		return true
	}

	for _, other := range a.players {
		if !other.Snake.Alive && !other.Snake.Died {
			continue
		}
		body := other.Snake.Body
		if other == p {
			body = body[:len(body)-1]
		}
		if slices.Contains(body, head) {
			return true
		}
	}
	return false
}

func (a *Arena) outOfBounds(pt model.Point) bool {
	return pt.X < -a.half || pt.X > a.half || pt.Y < -a.half || pt.Y > a.half
}

func (a *Arena) onWall(pt model.Point) bool {
	pad := (a.cfg.WallWidth - 1) / 2
	for _, w := range a.walls {
		minX, maxX := min(w.P1.X, w.P2.X)-pad, max(w.P1.X, w.P2.X)+pad
		minY, maxY := min(w.P1.Y, w.P2.Y)-pad, max(w.P1.Y, w.P2.Y)+pad
		if pt.X >= minX && pt.X <= maxX && pt.Y >= minY && pt.Y <= maxY {
			return true
		}
	}
	return false
}

func (a *Arena) occupied(pt model.Point) bool {
	if a.outOfBounds(pt) || a.onWall(pt) {
		return true
	}
	for _, p := range a.players {
		if p.Snake.Alive && slices.Contains(p.Snake.Body, pt) {
			return true
		}
	}
	for _, pu := range a.powerUps {
		if pu.Loc == pt {
			return true
		}
	}
	return false
}

// spawn places p's snake on free cells with room ahead of its head.
func (a *Arena) spawn(p *Player) bool {
	length := max(a.cfg.StartLength, 1)

	for i := 0; i < spawnAttempts; i++ {
		d := directions[a.rng.Intn(len(directions))]
		v := dirPoint(d)
		tail := a.randomPoint()

		body := make([]model.Point, 0, length)
		free := true
		// length cells of body plus length cells of clearance ahead
		for i := 0; i < 2*length && free; i++ {
			pt := model.Point{X: tail.X + v.X*i, Y: tail.Y + v.Y*i}
			free = !a.occupied(pt)
			if i < length {
				body = append(body, pt)
			}
		}
		if !free {
			continue
		}

		s := p.Snake
		s.Body = body
		s.Dir = v
		s.Alive = true
		p.steer = ""
		p.grow = 0
		return true
	}
	return false
}

func (a *Arena) spawnPowerUp() *model.PowerUp {
	for i := 0; i < spawnAttempts; i++ {
		pt := a.randomPoint()
		if a.occupied(pt) {
			continue
		}
		pu := &model.PowerUp{ID: a.nextPow, Loc: pt}
		a.nextPow++
		a.powerUps[pu.ID] = pu
		return pu
	}
	return nil
}

func (a *Arena) randomPoint() model.Point {
	return model.Point{
		X: a.rng.Intn(2*a.half+1) - a.half,
		Y: a.rng.Intn(2*a.half+1) - a.half,
	}
}

func sortedKeys[V any](m map[int]V) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
