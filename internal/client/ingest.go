package client

import (
	"github.com/KDT2006/termsnake/internal/model"
	"github.com/KDT2006/termsnake/internal/protocol"
	"github.com/KDT2006/termsnake/internal/transport"
)

// readLoop applies server lines to world in wire order until the stream
// fails. It is the only writer of world.
func (s *Session) readLoop(conn transport.LineConn, world *model.World) {
	var cause error
	defer func() { s.finish(conn, cause) }()

	for {
		line, err := conn.ReadLine()
		if err != nil {
			cause = err
			return
		}

		s.worldMu.Lock()
		applied := s.apply(world, line)
		s.worldMu.Unlock()

		if applied {
			s.publish(world)
		}
	}
}

// apply reconciles one update into world. Lines that cannot be classified
// or parsed are dropped and the world is left as it was.
func (s *Session) apply(world *model.World, line string) bool {
	data := []byte(line)

	kind, id, err := protocol.Classify(data)
	if err != nil {
		s.log.Debug("dropping unrecognized line", "line", line, "error", err)
		return false
	}

	switch kind {
	case protocol.KindWall:
		var w model.Wall
		if !w.ApplyUpdate(data) {
			s.log.Debug("dropping malformed wall", "id", id)
			return false
		}
		world.PutWall(&w)
	case protocol.KindSnake:
		if !world.MergeSnake(id, data) {
			s.log.Debug("dropping malformed snake", "id", id)
			return false
		}
	case protocol.KindPowerUp:
		var p model.PowerUp
		if !p.ApplyUpdate(data) {
			s.log.Debug("dropping malformed powerup", "id", id)
			return false
		}
		world.ApplyPowerUp(&p)
	default:
		return false
	}

	return true
}

// finish moves the session to its terminal state after the read loop
// exits. cause is reported to observers unless the caller asked for the
// disconnect.
func (s *Session) finish(conn transport.LineConn, cause error) {
	s.mu.Lock()
	requested := s.state == StateClosed
	s.state = StateClosed
	s.mu.Unlock()

	_ = conn.Disconnect()

	if requested {
		cause = nil
		s.log.Info("disconnected")
	} else {
		s.log.Warn("connection lost", "error", cause)
	}

	s.notifyDisconnect(cause)
	s.shutdown()
}
