// Package server implements the card room server: a WebSocket endpoint
// that multiplexes client sessions onto rooms, a room manager that owns
// membership and host succession, and a prompt router that carries
// questions from running game drivers to individual players and their
// answers back.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/decred/slog"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"

	"github.com/vctt94/cardroom/pkg/game"
	"github.com/vctt94/cardroom/pkg/ident"
	"github.com/vctt94/cardroom/pkg/logging"
	"github.com/vctt94/cardroom/pkg/wire"
)

// Config holds the server's process-level settings.
type Config struct {
	// LogBackend supplies subsystem loggers. Nil disables logging.
	LogBackend *logging.LogBackend

	// Version is reported by the /version endpoint.
	Version string

	// Seed fixes every game's shoe RNG when non-zero. Tests use it;
	// production leaves it zero.
	Seed int64

	// Profile registers net/http/pprof handlers on the returned mux.
	Profile bool
}

// Server terminates WebSocket sessions and multiplexes them onto rooms. It
// owns the session registry, the room table and the prompt router.
//
// Lock ordering: s.mu before s.pmu before any game engine lock. Handlers
// run on session read goroutines and never block while holding s.mu;
// every socket write is a buffered enqueue, and a client that cannot
// drain its queue is evicted rather than allowed to stall a room.
type Server struct {
	log     slog.Logger
	roomLog slog.Logger
	backend *logging.LogBackend

	registry *game.Registry
	version  string
	seed     int64
	profile  bool

	// mu guards sessions, rooms, playerRooms and the identity fields on
	// every clientConn.
	mu          sync.RWMutex
	sessions    map[ident.SessionID]*clientConn
	rooms       map[ident.RoomID]*Room
	playerRooms map[ident.PlayerID]ident.RoomID

	// pmu guards prompts, the table of in-flight prompt sinks.
	pmu     sync.Mutex
	prompts map[ident.SessionID]*promptSink
}

// NewServer builds a server around a populated game registry.
func NewServer(registry *game.Registry, cfg Config) *Server {
	s := &Server{
		log:         slog.Disabled,
		roomLog:     slog.Disabled,
		backend:     cfg.LogBackend,
		registry:    registry,
		version:     cfg.Version,
		seed:        cfg.Seed,
		profile:     cfg.Profile,
		sessions:    make(map[ident.SessionID]*clientConn),
		rooms:       make(map[ident.RoomID]*Room),
		playerRooms: make(map[ident.PlayerID]ident.RoomID),
		prompts:     make(map[ident.SessionID]*promptSink),
	}
	if cfg.LogBackend != nil {
		s.log = cfg.LogBackend.Logger("SRVR")
		s.roomLog = cfg.LogBackend.Logger("ROOM")
	}
	return s
}

// Log subsystem tags for the drivers of registered game types. Types
// without an entry log under GAME.
var gameSubsystems = map[string]string{
	"blackjack": "BJCK",
}

// driverLog returns the logger handed to a game driver.
func (s *Server) driverLog(gameType string) slog.Logger {
	if s.backend == nil {
		return slog.Disabled
	}
	sub, ok := gameSubsystems[gameType]
	if !ok {
		sub = "GAME"
	}
	return s.backend.Logger(sub)
}

// Handler returns the HTTP surface: the WebSocket endpoint plus health and
// version probes.
func (s *Server) Handler() http.Handler {
	mux := httprouter.New()
	mux.GET("/ws", s.serveWS)
	mux.GET("/healthz", s.serveHealthz)
	mux.GET("/version", s.serveVersion)
	if s.profile {
		registerProfileHandlers(mux)
	}
	return mux
}

func (s *Server) serveHealthz(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintln(w, "OK")
}

func (s *Server) serveVersion(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"version": s.version})
}

// serveWS upgrades one connection, registers the session, and runs its
// read pump until the socket dies. The first frame on every session is
// {type:"connected"} carrying the minted session id.
func (s *Server) serveWS(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Debugf("upgrade from %s: %v", r.RemoteAddr, err)
		return
	}
	c := newClientConn(ident.NewSessionID(), ws)

	s.mu.Lock()
	s.sessions[c.id] = c
	active := len(s.sessions)
	s.mu.Unlock()

	s.log.Debugf("session %s open from %s (%d active)", c.id, r.RemoteAddr, active)

	c.enqueue(wire.MustEncode(wire.Connected{Type: wire.TypeConnected, SessionID: c.id}))
	go c.writePump()
	s.readPump(c)
}

// dispatch routes one decoded inbound message. It runs on the session's
// read goroutine, so handlers finish without blocking.
func (s *Server) dispatch(c *clientConn, msg any) {
	switch m := msg.(type) {
	case *wire.Identify:
		s.handleIdentify(c, m)
	case *wire.RoomListRequest:
		s.handleRoomList(c)
	case *wire.GameListRequest:
		s.handleGameList(c)
	case *wire.RoomCreate:
		s.handleRoomCreate(c, m)
	case *wire.RoomJoin:
		s.handleRoomJoin(c, m)
	case *wire.RoomLeave:
		s.handleRoomLeave(c)
	case *wire.RoomReady:
		s.handleRoomReady(c, m)
	case *wire.RoomStart:
		s.handleRoomStart(c)
	case *wire.PromptResponse:
		s.resolvePrompt(c, m)
	default:
		s.log.Warnf("session %s: unhandled message %T", c.id, msg)
	}
}

// dropSession tears a session down: leave its room, cancel its prompt,
// unregister, and close the socket. Safe to call for sessions already
// gone; the read pump calls it unconditionally on exit.
func (s *Server) dropSession(id ident.SessionID) {
	s.mu.Lock()
	c, ok := s.sessions[id]
	if !ok {
		s.mu.Unlock()
		return
	}
	s.leaveRoomLocked(c)
	delete(s.sessions, id)
	active := len(s.sessions)
	s.mu.Unlock()

	// Best effort: on a server-initiated close the client sees the
	// farewell, on a dead socket the frames are simply discarded.
	c.enqueue(wire.MustEncode(wire.Disconnected{Type: wire.TypeDisconnected}))
	c.shut(websocket.CloseNormalClosure, "")
	s.log.Debugf("session %s closed (%d active)", id, active)
}

// Shutdown drains every session: running games are cancelled and each
// client receives {type:"disconnected"} followed by a normal-closure
// frame. Stopping the HTTP listener is the caller's job.
func (s *Server) Shutdown() {
	s.mu.Lock()
	conns := make([]*clientConn, 0, len(s.sessions))
	for _, c := range s.sessions {
		conns = append(conns, c)
	}
	for _, r := range s.rooms {
		if r.cancel != nil {
			r.cancel()
		}
	}
	s.mu.Unlock()

	frame := wire.MustEncode(wire.Disconnected{Type: wire.TypeDisconnected})
	for _, c := range conns {
		c.enqueue(frame)
		c.shut(websocket.CloseNormalClosure, "Server shutting down")
	}
	s.log.Infof("drained %d sessions", len(conns))
}

// reply sends one message to a single session.
func (s *Server) reply(c *clientConn, msg any) {
	if !c.enqueue(wire.MustEncode(msg)) {
		s.evict(c)
	}
}

// replyError sends a room_error to the offending session only.
func (s *Server) replyError(c *clientConn, format string, args ...any) {
	s.reply(c, wire.RoomError{Type: wire.TypeRoomError, Error: fmt.Sprintf(format, args...)})
}

// evict shuts a connection whose send queue is saturated. The write pump
// flushes what it can and the read pump then unwinds the session.
func (s *Server) evict(c *clientConn) {
	s.log.Warnf("session %s: send queue overflow, evicting", c.id)
	c.shut(websocket.ClosePolicyViolation, "send queue overflow")
}

// broadcastRoomLocked fans one message out to every member of a room.
// Caller holds s.mu.
func (s *Server) broadcastRoomLocked(r *Room, msg any) {
	frame := wire.MustEncode(msg)
	for _, pid := range r.order {
		c, ok := s.sessions[r.players[pid].Session]
		if !ok {
			continue
		}
		if !c.enqueue(frame) {
			s.evict(c)
		}
	}
}

// broadcastRoom is broadcastRoomLocked for callers outside the lock, such
// as game drivers. A vanished room is a no-op.
func (s *Server) broadcastRoom(id ident.RoomID, msg any) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if r, ok := s.rooms[id]; ok {
		s.broadcastRoomLocked(r, msg)
	}
}

// startDriver spawns the goroutine hosting one game. The caller holds
// s.mu, has marked the room playing and has broadcast game_starting, so
// the driver's first output serializes after that frame on every session.
func (s *Server) startDriver(ctx context.Context, roomID ident.RoomID, drv game.Driver) {
	go func() {
		// A driver panic kills the game, not the room.
		defer func() {
			if r := recover(); r != nil {
				s.log.Criticalf("room %s: game driver panic: %v", roomID, r)
			}
			s.finishGame(roomID)
		}()
		if err := drv.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			s.roomLog.Errorf("room %s: game driver: %v", roomID, err)
		}
	}()
}

// finishGame returns a room to the lobby after its driver exits. Ready
// flags reset, so the next game needs a fresh round of readying up.
func (s *Server) finishGame(id ident.RoomID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	room, ok := s.rooms[id]
	if !ok {
		// Room emptied out and was destroyed mid-game.
		return
	}
	room.playing = false
	room.driver = nil
	room.adapter = nil
	if room.cancel != nil {
		room.cancel()
		room.cancel = nil
	}
	for _, p := range room.players {
		p.Ready = false
	}
	s.broadcastRoomLocked(room, wire.GameEnded{Type: wire.TypeGameEnded})
	s.broadcastRoomLocked(room, room.playersMsg())
	s.roomLog.Debugf("room %s: game over, back to lobby", id)
}
