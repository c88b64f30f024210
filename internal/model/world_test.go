package model

import "testing"

func TestNewWorldIsEmpty(t *testing.T) {
	w := NewWorld(100)

	if w.Size != 100 {
		t.Fatalf("Size = %d, want 100", w.Size)
	}
	if len(w.Snakes) != 0 || len(w.Walls) != 0 || len(w.PowerUps) != 0 {
		t.Fatalf("new world not empty: %d snakes, %d walls, %d powerups",
			len(w.Snakes), len(w.Walls), len(w.PowerUps))
	}
}

func TestWorldMergeSnakeKeepsIdentity(t *testing.T) {
	w := NewWorld(10)

	if !w.MergeSnake(12, []byte(`{"snake":12,"name":"a","body":[{"X":1,"Y":1}],"score":1,"alive":true}`)) {
		t.Fatalf("first merge rejected")
	}
	first := w.Snakes[12]

	if !w.MergeSnake(12, []byte(`{"snake":12,"name":"a","body":[{"X":2,"Y":1},{"X":3,"Y":1}],"score":5,"alive":true}`)) {
		t.Fatalf("second merge rejected")
	}

	if w.Snakes[12] != first {
		t.Fatalf("merge replaced the snake instead of updating it in place")
	}
	if first.Score != 5 || len(first.Body) != 2 {
		t.Fatalf("snake = %+v, want score 5 and two body points", first)
	}
}

func TestWorldMergeSnakeRejectsMalformed(t *testing.T) {
	w := NewWorld(10)

	if w.MergeSnake(1, []byte(`{"snake":1,`)) {
		t.Fatalf("malformed snake accepted")
	}
	if len(w.Snakes) != 0 {
		t.Fatalf("malformed snake inserted")
	}
}

func TestWorldDeadSnakesStay(t *testing.T) {
	w := NewWorld(10)
	w.MergeSnake(1, []byte(`{"snake":1,"body":[{"X":1,"Y":1}],"alive":true}`))
	w.MergeSnake(1, []byte(`{"snake":1,"body":[{"X":1,"Y":1}],"alive":false,"died":true}`))

	s, ok := w.Snakes[1]
	if !ok {
		t.Fatalf("dead snake removed from world")
	}
	if s.Alive || !s.Died {
		t.Fatalf("snake = %+v, want dead with died pulse", s)
	}
}

func TestWorldApplyPowerUp(t *testing.T) {
	w := NewWorld(10)

	w.ApplyPowerUp(&PowerUp{ID: 3, Consumed: true})
	if len(w.PowerUps) != 0 {
		t.Fatalf("consumed powerup for absent id was inserted")
	}

	w.ApplyPowerUp(&PowerUp{ID: 3, Loc: Point{1, 2}})
	if _, ok := w.PowerUps[3]; !ok {
		t.Fatalf("powerup 3 not inserted")
	}

	w.ApplyPowerUp(&PowerUp{ID: 3, Loc: Point{1, 2}, Consumed: true})
	if _, ok := w.PowerUps[3]; ok {
		t.Fatalf("consumed powerup 3 not removed")
	}

	w.ApplyPowerUp(&PowerUp{ID: 3, Loc: Point{7, 7}})
	if p, ok := w.PowerUps[3]; !ok || p.Loc != (Point{7, 7}) {
		t.Fatalf("powerup 3 not re-inserted fresh: %+v", p)
	}
}

func TestWorldSnapshotIsDetached(t *testing.T) {
	w := NewWorld(50)
	w.PutWall(&Wall{ID: 1, P2: Point{10, 0}})
	w.MergeSnake(2, []byte(`{"snake":2,"body":[{"X":1,"Y":1},{"X":2,"Y":1}],"alive":true}`))
	w.ApplyPowerUp(&PowerUp{ID: 3})

	snap := w.Snapshot()

	w.Snakes[2].Body[0] = Point{99, 99}
	w.Walls[1].P2 = Point{0, 0}
	delete(w.PowerUps, 3)

	if snap.Size != 50 {
		t.Fatalf("snapshot Size = %d, want 50", snap.Size)
	}
	if snap.Snakes[2].Body[0] != (Point{1, 1}) {
		t.Fatalf("snapshot body shares memory with the world")
	}
	if snap.Walls[1].P2 != (Point{10, 0}) {
		t.Fatalf("snapshot wall shares memory with the world")
	}
	if _, ok := snap.PowerUps[3]; !ok {
		t.Fatalf("snapshot lost powerup after world mutation")
	}
	if snap.Alive() != 1 {
		t.Fatalf("Alive() = %d, want 1", snap.Alive())
	}
}
