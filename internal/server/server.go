// Package server runs a development arena that speaks the client
// protocol over TCP and, optionally, WebSocket.
package server

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/KDT2006/termsnake/internal/config"
	"github.com/KDT2006/termsnake/internal/game"
	"github.com/KDT2006/termsnake/internal/protocol"
	"github.com/KDT2006/termsnake/internal/transport"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const outboundBuffer = 64

var upgrader = websocket.Upgrader{
	// Development server: accept any origin.
	CheckOrigin: func(r *http.Request) bool { return true },
}

type Server struct {
	ListenAddr string
	WSAddr     string
	clients    map[int]*Client
	mu         sync.Mutex
	arena      *game.Arena
	tickRate   int
	inbox      chan Message
	endCh      chan struct{}
	stopOnce   sync.Once
	wg         sync.WaitGroup
	ln         net.Listener // needed for graceful shutdown
	wsLn       net.Listener
	httpSrv    *http.Server
}

func New(cfg *config.ServerConfig) *Server {
	return &Server{
		ListenAddr: cfg.ListenAddr,
		WSAddr:     cfg.WSAddr,
		clients:    make(map[int]*Client),
		arena:      game.NewArena(cfg.Arena, time.Now().UnixNano()),
		tickRate:   cfg.Arena.TickRate,
		inbox:      make(chan Message, 64),
		endCh:      make(chan struct{}),
	}
}

// Listen opens the TCP listener and, when configured, the WebSocket one.
func (s *Server) Listen() error {
	ln, err := net.Listen("tcp", s.ListenAddr)
	if err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	s.ln = ln

	if s.WSAddr != "" {
		wsLn, err := net.Listen("tcp", s.WSAddr)
		if err != nil {
			ln.Close()
			return fmt.Errorf("failed to start websocket listener: %w", err)
		}
		s.wsLn = wsLn

		mux := http.NewServeMux()
		mux.HandleFunc(transport.DefaultWSPath, s.handleWS)
		s.httpSrv = &http.Server{Handler: mux}
	}

	return nil
}

// Addr returns the TCP listener address once Listen succeeded.
func (s *Server) Addr() net.Addr {
	return s.ln.Addr()
}

// WSListenAddr returns the WebSocket listener address, or nil.
func (s *Server) WSListenAddr() net.Addr {
	if s.wsLn == nil {
		return nil
	}
	return s.wsLn.Addr()
}

// Start listens and serves until Stop is called.
func (s *Server) Start() error {
	if err := s.Listen(); err != nil {
		return err
	}
	return s.Serve()
}

// Serve runs the game loop and accepts connections until Stop.
func (s *Server) Serve() error {
	s.mu.Lock()
	select {
	case <-s.endCh:
		s.mu.Unlock()
		return nil
	default:
	}
	s.wg.Add(1)
	s.mu.Unlock()
	go s.gameLoop()

	if s.httpSrv != nil {
		go func() {
			slog.Info("websocket endpoint listening", "address", s.wsLn.Addr(), "path", transport.DefaultWSPath)
			if err := s.httpSrv.Serve(s.wsLn); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("websocket server failed", "error", err)
			}
		}()
	}

	slog.Info("server is listening", "address", s.ln.Addr())

	for {
		conn, err := s.ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				slog.Info("listener closed", "address", s.ListenAddr)
				return nil
			}

			slog.Error("failed to accept connection", "error", err)
			continue
		}

		slog.Info("accepted connection", "remote", conn.RemoteAddr())
		go s.HandleConn(transport.FromConn(conn))
	}
}

// Stop shuts the server down and waits for connection loops to exit.
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		slog.Info("server shutting down")
		close(s.endCh)
		if s.ln != nil {
			s.ln.Close() // unblocks Accept
		}
		if s.httpSrv != nil {
			s.httpSrv.Close()
		}
		s.closeAllClients()
		s.wg.Wait()
		slog.Info("server shutdown complete")
	})
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	slog.Info("accepted websocket connection", "remote", ws.RemoteAddr())
	s.HandleConn(transport.FromWebSocket(ws))
}

// HandleConn runs the handshake and then the connection's read and write
// loops. It returns when the connection ends.
func (s *Server) HandleConn(conn Conn) {
	connID := uuid.New()

	name, err := conn.ReadLine()
	if err != nil {
		slog.Error("failed to read player name", "conn", connID, "remote", conn.RemoteAddr(), "error", err)
		conn.Disconnect()
		return
	}

	client := &Client{
		id:         connID,
		conn:       conn,
		playerName: name,
		outbound:   make(chan string, outboundBuffer),
	}

	// The greeting is one multi-line payload: SendLine writes each line
	// separately, so it lands as id, size, walls, power-ups.
	s.mu.Lock()
	select {
	case <-s.endCh:
		s.mu.Unlock()
		conn.Disconnect()
		return
	default:
	}
	snake := s.arena.Join(name)
	client.playerID = snake.ID
	greeting := []string{strconv.Itoa(snake.ID), strconv.Itoa(s.arena.Size())}
	for _, w := range s.arena.Walls() {
		greeting = appendEntity(greeting, w)
	}
	for _, p := range s.arena.PowerUps() {
		greeting = appendEntity(greeting, p)
	}
	client.outbound <- strings.Join(greeting, "\n")
	s.clients[client.playerID] = client
	// Added under mu so Stop cannot be waiting already.
	s.wg.Add(2)
	s.mu.Unlock()

	slog.Info("player joined", "conn", connID, "remote", conn.RemoteAddr(), "player", client.playerID, "name", name)

	defer s.unregisterClient(client)

	go s.writeLoop(client)
	s.readLoop(client)
}

func appendEntity(lines []string, entity any) []string {
	line, err := protocol.EncodeEntity(entity)
	if err != nil {
		slog.Error("failed to encode entity", "error", err)
		return lines
	}
	return append(lines, line)
}

func (s *Server) readLoop(client *Client) {
	defer s.wg.Done()

	for {
		line, err := client.conn.ReadLine()
		if err != nil {
			if errors.Is(err, transport.ErrConnectionClosed) {
				slog.Info("connection closed by client", "conn", client.id, "player", client.playerID)
				return
			}

			slog.Error("error reading from client", "conn", client.id, "player", client.playerID, "error", err)
			return
		}

		dir, err := protocol.DecodeCommand(line)
		if err != nil {
			slog.Debug("ignoring client line", "conn", client.id, "line", line, "error", err)
			continue
		}

		select {
		case s.inbox <- Message{Client: client, Type: MessageTypeSteer, Direction: dir}:
		case <-s.endCh:
			return
		}
	}
}

func (s *Server) writeLoop(client *Client) {
	defer s.wg.Done()

	for {
		select {
		case <-s.endCh:
			return
		case payload, ok := <-client.outbound:
			if !ok {
				return
			}
			if err := client.conn.SendLine(payload); err != nil {
				slog.Error("error writing to client", "conn", client.id, "player", client.playerID, "error", err)
				client.conn.Disconnect()
				return
			}
		}
	}
}

func (s *Server) gameLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(time.Second / time.Duration(s.tickRate))
	defer ticker.Stop()

	for {
		select {
		case <-s.endCh:
			slog.Info("game loop shutting down")
			return
		case msg := <-s.inbox:
			s.handleMessage(msg)
		case <-ticker.C:
			s.tick()
		}
	}
}

func (s *Server) handleMessage(msg Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch msg.Type {
	case MessageTypeSteer:
		s.arena.Steer(msg.Client.playerID, msg.Direction)
	default:
		slog.Error("unknown message type", "type", msg.Type, "conn", msg.Client.id)
	}
}

func (s *Server) tick() {
	s.mu.Lock()
	updates := s.arena.Step()
	s.mu.Unlock()

	lines := make([]string, 0, len(updates))
	for _, u := range updates {
		lines = appendEntity(lines, u)
	}
	if len(lines) == 0 {
		return
	}
	s.broadcast(strings.Join(lines, "\n"))
}

// broadcast queues payload for every client. Clients whose queue is full
// are too slow to keep up and get dropped.
func (s *Server) broadcast(payload string) {
	var slow []*Client

	s.mu.Lock()
	for _, client := range s.clients {
		select {
		case client.outbound <- payload:
		default:
			slog.Error("client too slow to receive update, unregistering", "conn", client.id, "player", client.playerID)
			slow = append(slow, client)
		}
	}
	s.mu.Unlock()

	for _, client := range slow {
		s.unregisterClient(client)
	}
}

func (s *Server) unregisterClient(client *Client) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.clients[client.playerID]; ok {
		close(client.outbound)
		delete(s.clients, client.playerID)
		s.arena.Leave(client.playerID)
		client.conn.Disconnect()
		slog.Info("unregistered client", "conn", client.id, "player", client.playerID)
	}
}

func (s *Server) closeAllClients() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, client := range s.clients {
		close(client.outbound)
		client.conn.Disconnect()
		delete(s.clients, id)
	}
}
