package model

// World is the local mirror of the arena. It is written by a single
// goroutine; concurrent readers should use Snapshot instead.
type World struct {
	Size     int
	Snakes   map[int]*Snake
	Walls    map[int]*Wall
	PowerUps map[int]*PowerUp
}

func NewWorld(size int) *World {
	return &World{
		Size:     size,
		Snakes:   make(map[int]*Snake),
		Walls:    make(map[int]*Wall),
		PowerUps: make(map[int]*PowerUp),
	}
}

// PutWall inserts w or replaces the wall with the same id.
func (w *World) PutWall(wall *Wall) {
	w.Walls[wall.ID] = wall
}

// MergeSnake applies data to the snake with the given id, creating it on
// first sighting. Snakes are never removed, dead ones stay in place.
func (w *World) MergeSnake(id int, data []byte) bool {
	if s, ok := w.Snakes[id]; ok {
		return s.ApplyUpdate(data)
	}

	s := NewSnake(0, "", nil, Point{X: 1})
	if !s.ApplyUpdate(data) {
		return false
	}
	w.Snakes[s.ID] = s
	return true
}

// ApplyPowerUp inserts or replaces p, or removes it when consumed.
// Removing an absent id is a no-op.
func (w *World) ApplyPowerUp(p *PowerUp) {
	if p.Consumed {
		delete(w.PowerUps, p.ID)
		return
	}
	w.PowerUps[p.ID] = p
}

// Snapshot is a read-only copy of a World handed to observers.
type Snapshot struct {
	Size     int
	Snakes   map[int]Snake
	Walls    map[int]Wall
	PowerUps map[int]PowerUp
}

// Snapshot deep-copies the world.
func (w *World) Snapshot() Snapshot {
	snap := Snapshot{
		Size:     w.Size,
		Snakes:   make(map[int]Snake, len(w.Snakes)),
		Walls:    make(map[int]Wall, len(w.Walls)),
		PowerUps: make(map[int]PowerUp, len(w.PowerUps)),
	}
	for id, s := range w.Snakes {
		snap.Snakes[id] = s.Clone()
	}
	for id, wall := range w.Walls {
		snap.Walls[id] = *wall
	}
	for id, p := range w.PowerUps {
		snap.PowerUps[id] = *p
	}
	return snap
}

// Alive returns the number of living snakes.
func (s Snapshot) Alive() int {
	n := 0
	for _, snake := range s.Snakes {
		if snake.Alive {
			n++
		}
	}
	return n
}
