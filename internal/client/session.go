// Package client implements the client side of the arena protocol: the
// handshake, the background ingestion loop that reconciles server updates
// into a local World, and outbound movement commands.
package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/KDT2006/termsnake/internal/model"
	"github.com/KDT2006/termsnake/internal/protocol"
	"github.com/KDT2006/termsnake/internal/transport"
	"github.com/google/uuid"
)

type State int

const (
	StateDisconnected State = iota
	StateHandshaking
	StateActive
	StateClosed // terminal
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateHandshaking:
		return "handshaking"
	case StateActive:
		return "active"
	case StateClosed:
		return "closed"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

var (
	ErrAlreadyConnected = errors.New("session already connected")
	ErrNotConnected     = transport.ErrNotConnected
	ErrSessionClosed    = errors.New("session closed")
)

// Session is one connection to an arena server. A session connects at
// most once; reconnecting means creating a new Session.
type Session struct {
	id      uuid.UUID
	newConn func() transport.LineConn
	log     *slog.Logger

	mu       sync.Mutex
	state    State
	conn     transport.LineConn
	playerID int

	worldMu sync.RWMutex
	world   *model.World

	obsMu        sync.Mutex
	onWorld      []func(model.Snapshot)
	onDisconnect []func(error)
	subs         []chan model.Snapshot
	subsClosed   bool

	done     chan struct{}
	doneOnce sync.Once
}

type Option func(*Session)

// WithTransport sets the factory for the session's connection. The
// default is a TCP transport.Conn.
func WithTransport(newConn func() transport.LineConn) Option {
	return func(s *Session) {
		s.newConn = newConn
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Session) {
		s.log = l
	}
}

func New(opts ...Option) *Session {
	s := &Session{
		id:      uuid.New(),
		newConn: func() transport.LineConn { return transport.New() },
		log:     slog.Default(),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With("session", s.id.String())

	return s
}

func (s *Session) ID() uuid.UUID {
	return s.id
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state
}

// PlayerID returns the id assigned at handshake.
func (s *Session) PlayerID() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.playerID
}

// Size returns the arena side length, or 0 before the handshake.
func (s *Session) Size() int {
	s.worldMu.RLock()
	defer s.worldMu.RUnlock()

	if s.world == nil {
		return 0
	}
	return s.world.Size
}

// Snapshot returns a copy of the current world, or false before the
// handshake completed.
func (s *Session) Snapshot() (model.Snapshot, bool) {
	s.worldMu.RLock()
	defer s.worldMu.RUnlock()

	if s.world == nil {
		return model.Snapshot{}, false
	}
	return s.world.Snapshot(), true
}

// Done is closed once the session reached its terminal state and the
// ingestion loop, if any, has exited.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Connect dials the server, sends name and reads the player id and arena
// size. On success the ingestion loop is running when Connect returns.
// A failed handshake leaves the session disconnected.
func (s *Session) Connect(ctx context.Context, host string, port int, name string) (playerID, size int, err error) {
	s.mu.Lock()
	switch s.state {
	case StateHandshaking, StateActive:
		s.mu.Unlock()
		return 0, 0, ErrAlreadyConnected
	case StateClosed:
		s.mu.Unlock()
		return 0, 0, ErrSessionClosed
	}
	conn := s.newConn()
	s.conn = conn
	s.state = StateHandshaking
	s.mu.Unlock()

	playerID, size, err = handshake(ctx, conn, host, port, name)
	if err != nil {
		_ = conn.Disconnect()
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = fmt.Errorf("%w: %w", err, ctxErr)
		}

		s.mu.Lock()
		closed := s.state == StateClosed
		if !closed {
			s.state = StateDisconnected
			s.conn = nil
		}
		s.mu.Unlock()

		if closed {
			s.shutdown()
			err = fmt.Errorf("%w: %w", ErrSessionClosed, err)
		}
		s.log.Error("handshake failed", "host", host, "port", port, "error", err)
		return 0, 0, err
	}

	world := model.NewWorld(size)

	s.mu.Lock()
	if s.state != StateHandshaking {
		// Disconnect ran while the handshake was in flight.
		s.mu.Unlock()
		_ = conn.Disconnect()
		s.shutdown()
		return 0, 0, ErrSessionClosed
	}
	s.playerID = playerID
	s.state = StateActive
	s.mu.Unlock()

	s.worldMu.Lock()
	s.world = world
	s.worldMu.Unlock()

	s.log.Info("connected", "host", host, "port", port, "player", playerID, "size", size)

	go s.readLoop(conn, world)

	return playerID, size, nil
}

func handshake(ctx context.Context, conn transport.LineConn, host string, port int, name string) (int, int, error) {
	if err := conn.Connect(ctx, host, port); err != nil {
		return 0, 0, err
	}

	// Closing the stream is the only way to unblock ReadLine.
	stop := context.AfterFunc(ctx, func() { _ = conn.Disconnect() })
	defer stop()

	if err := conn.SendLine(name); err != nil {
		return 0, 0, fmt.Errorf("failed to send name: %w", err)
	}

	line, err := conn.ReadLine()
	if err != nil {
		return 0, 0, fmt.Errorf("failed to read player id: %w", err)
	}
	playerID, err := protocol.ParseHandshakeInt(line)
	if err != nil {
		return 0, 0, fmt.Errorf("player id: %w", err)
	}

	line, err = conn.ReadLine()
	if err != nil {
		return 0, 0, fmt.Errorf("failed to read arena size: %w", err)
	}
	size, err := protocol.ParseHandshakeInt(line)
	if err != nil {
		return 0, 0, fmt.Errorf("arena size: %w", err)
	}

	// The cancel callback already ran and closed conn.
	if !stop() {
		return 0, 0, fmt.Errorf("%w: handshake interrupted", transport.ErrConnection)
	}

	return playerID, size, nil
}

// SendDirection sends a movement command. Strings that are not one of
// up, down, left or right are ignored.
func (s *Session) SendDirection(direction string) error {
	d, ok := protocol.ParseDirection(direction)
	if !ok {
		return nil
	}

	s.mu.Lock()
	conn, state := s.conn, s.state
	s.mu.Unlock()

	if state != StateActive {
		return ErrNotConnected
	}

	line, err := protocol.EncodeCommand(d)
	if err != nil {
		return fmt.Errorf("failed to encode command: %w", err)
	}
	return conn.SendLine(line)
}

// HandleKey sends the direction bound to a w/a/s/d key. Other keys are
// ignored.
func (s *Session) HandleKey(key string) error {
	d, ok := protocol.DirectionForKey(key)
	if !ok {
		return nil
	}
	return s.SendDirection(string(d))
}

// Disconnect closes the session from any state. The ingestion loop exits
// once it observes the closed stream; wait on Done for that.
func (s *Session) Disconnect() error {
	s.mu.Lock()
	prev := s.state
	conn := s.conn
	s.state = StateClosed
	s.mu.Unlock()

	switch prev {
	case StateClosed:
		return nil
	case StateDisconnected:
		s.shutdown()
		return nil
	}

	s.log.Info("disconnecting", "state", prev)
	if err := conn.Disconnect(); err != nil {
		return fmt.Errorf("failed to disconnect: %w", err)
	}
	return nil
}
