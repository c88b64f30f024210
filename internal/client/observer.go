package client

import (
	"github.com/KDT2006/termsnake/internal/model"
)

// OnWorldChanged registers fn to run after every applied update. Handlers
// run on the ingestion goroutine in wire order and stall ingestion while
// they run; use Subscribe for slow consumers.
func (s *Session) OnWorldChanged(fn func(model.Snapshot)) {
	s.obsMu.Lock()
	defer s.obsMu.Unlock()

	s.onWorld = append(s.onWorld, fn)
}

// OnDisconnect registers fn to run once when an active session ends. err
// is nil when the session was closed with Disconnect.
func (s *Session) OnDisconnect(fn func(err error)) {
	s.obsMu.Lock()
	defer s.obsMu.Unlock()

	s.onDisconnect = append(s.onDisconnect, fn)
}

// Subscribe returns a channel receiving a snapshot per applied update.
// Ingestion never waits on it: when the buffer is full the snapshot is
// dropped. The channel is closed when the session ends.
func (s *Session) Subscribe(buffer int) <-chan model.Snapshot {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan model.Snapshot, buffer)

	s.obsMu.Lock()
	defer s.obsMu.Unlock()

	if s.subsClosed {
		close(ch)
		return ch
	}
	s.subs = append(s.subs, ch)
	return ch
}

func (s *Session) publish(world *model.World) {
	s.obsMu.Lock()
	handlers := s.onWorld
	subs := s.subs
	s.obsMu.Unlock()

	if len(handlers) == 0 && len(subs) == 0 {
		return
	}

	s.worldMu.RLock()
	snap := world.Snapshot()
	s.worldMu.RUnlock()

	for _, fn := range handlers {
		fn(snap)
	}

	for _, ch := range subs {
		select {
		case ch <- snap:
		default:
			s.log.Warn("subscriber too slow, dropping snapshot")
		}
	}
}

func (s *Session) notifyDisconnect(err error) {
	s.obsMu.Lock()
	handlers := s.onDisconnect
	s.obsMu.Unlock()

	for _, fn := range handlers {
		fn(err)
	}
}

// shutdown closes subscriber channels and Done. Safe to call repeatedly.
func (s *Session) shutdown() {
	s.doneOnce.Do(func() {
		s.obsMu.Lock()
		for _, ch := range s.subs {
			close(ch)
		}
		s.subs = nil
		s.subsClosed = true
		s.obsMu.Unlock()

		close(s.done)
	})
}
