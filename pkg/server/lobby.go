package server

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/vctt94/cardroom/pkg/game"
	"github.com/vctt94/cardroom/pkg/ident"
	"github.com/vctt94/cardroom/pkg/wire"
)

// roomCodeAttempts bounds the collision retry when minting a room code.
const roomCodeAttempts = 5

func (s *Server) handleIdentify(c *clientConn, m *wire.Identify) {
	name := strings.TrimSpace(m.Name)
	if utf8.RuneCountInString(name) < 2 {
		s.replyError(c, "name must be at least 2 characters")
		return
	}
	if strings.EqualFold(name, ident.DealerName) {
		s.replyError(c, "that name is reserved")
		return
	}

	s.mu.Lock()
	if c.roomID != "" {
		s.mu.Unlock()
		s.replyError(c, "cannot re-identify while in a room")
		return
	}
	// Re-identifying in the lobby is fine; it just mints a fresh player
	// id and abandons the old one.
	c.playerID = ident.NewPlayerID()
	c.name = name
	pid := c.playerID
	s.mu.Unlock()

	s.reply(c, wire.Identified{Type: wire.TypeIdentified, PlayerID: pid, Name: name})
	s.log.Debugf("session %s identified as %q (%s)", c.id, name, pid)
}

func (s *Server) handleRoomList(c *clientConn) {
	s.mu.RLock()
	rooms := s.publicRoomsLocked()
	s.mu.RUnlock()
	s.reply(c, wire.RoomList{Type: wire.TypeRoomList, Rooms: rooms})
}

func (s *Server) handleGameList(c *clientConn) {
	metas := s.registry.Games()
	games := make([]wire.GameInfo, 0, len(metas))
	for _, m := range metas {
		games = append(games, wire.GameInfo{
			Type:        m.Type,
			Name:        m.Name,
			Category:    m.Category,
			Description: m.Description,
			MinPlayers:  m.MinPlayers,
			MaxPlayers:  m.MaxPlayers,
			Icon:        m.Icon,
		})
	}
	s.reply(c, wire.GameList{Type: wire.TypeGameList, Games: games})
}

func (s *Server) handleRoomCreate(c *clientConn, m *wire.RoomCreate) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c.playerID == "" {
		s.replyError(c, "you must identify first")
		return
	}
	if c.roomID != "" {
		s.replyError(c, "already in a room")
		return
	}

	gameType := m.GameType
	if gameType == "" {
		gameType = "blackjack"
	}
	factory, ok := s.registry.Factory(gameType)
	if !ok {
		s.replyError(c, "unknown game type %q", gameType)
		return
	}
	meta := factory.Meta()

	name := strings.TrimSpace(m.Name)
	if name == "" {
		name = c.name + "'s Room"
	}
	maxPlayers := m.MaxPlayers
	if maxPlayers == 0 {
		maxPlayers = meta.MaxPlayers
	}
	maxPlayers = clamp(maxPlayers, meta.MinPlayers, meta.MaxPlayers)

	settings := RoomSettings{
		StartingChips: defaultChips,
		MinBet:        m.MinBet,
		MaxBet:        m.MaxBet,
		DeckCount:     m.DeckCount,
	}
	if settings.MinBet <= 0 {
		settings.MinBet = defaultMinBet
	}
	if settings.MaxBet <= 0 {
		settings.MaxBet = defaultMaxBet
	}
	if settings.MaxBet < settings.MinBet {
		settings.MaxBet = settings.MinBet
	}
	if settings.DeckCount == 0 {
		settings.DeckCount = defaultDeckCount
	}
	settings.DeckCount = clamp(settings.DeckCount, 1, maxDeckCount)

	// Codes are minted at random, so collisions are possible in
	// principle; a handful of retries makes them unobservable.
	var roomID ident.RoomID
	for i := 0; i < roomCodeAttempts; i++ {
		id := ident.NewRoomID()
		if _, taken := s.rooms[id]; !taken {
			roomID = id
			break
		}
	}
	if roomID == "" {
		s.replyError(c, "could not allocate a room code")
		return
	}

	room := &Room{
		ID:         roomID,
		Name:       name,
		GameType:   gameType,
		MaxPlayers: maxPlayers,
		Private:    m.IsPrivate,
		Settings:   settings,
		players:    make(map[ident.PlayerID]*RoomPlayer),
		hostID:     c.playerID,
	}
	room.addPlayer(&RoomPlayer{
		ID:      c.playerID,
		Session: c.id,
		Name:    c.name,
		Chips:   settings.StartingChips,
	})
	s.rooms[roomID] = room
	s.playerRooms[c.playerID] = roomID
	c.roomID = roomID

	s.reply(c, wire.RoomJoined{Type: wire.TypeRoomJoined, Room: room.summary(), IsHost: true})
	s.broadcastRoomLocked(room, room.playersMsg())
	s.roomLog.Infof("room %s (%q, %s) created by %s", roomID, name, gameType, c.name)
}

func (s *Server) handleRoomJoin(c *clientConn, m *wire.RoomJoin) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c.playerID == "" {
		s.replyError(c, "you must identify first")
		return
	}
	if c.roomID != "" {
		s.replyError(c, "already in a room")
		return
	}
	code, err := ident.NormalizeRoomCode(m.RoomID)
	if err != nil {
		s.replyError(c, "invalid room code")
		return
	}
	room, ok := s.rooms[code]
	if !ok {
		s.replyError(c, "room not found")
		return
	}
	if len(room.order) >= room.MaxPlayers {
		s.replyError(c, "room is full")
		return
	}
	if room.playing {
		s.replyError(c, "game already in progress")
		return
	}

	room.addPlayer(&RoomPlayer{
		ID:      c.playerID,
		Session: c.id,
		Name:    c.name,
		Chips:   room.Settings.StartingChips,
	})
	s.playerRooms[c.playerID] = code
	c.roomID = code

	s.reply(c, wire.RoomJoined{Type: wire.TypeRoomJoined, Room: room.summary(), IsHost: false})
	s.broadcastRoomLocked(room, room.playersMsg())
	s.roomLog.Debugf("%s joined room %s (%d/%d)", c.name, code, len(room.order), room.MaxPlayers)
}

func (s *Server) handleRoomLeave(c *clientConn) {
	s.mu.Lock()
	s.leaveRoomLocked(c)
	s.mu.Unlock()
}

// leaveRoomLocked removes a session from its room, if any. The leaver gets
// room_left, and a running game's driver is told about the departure
// whether or not anyone remains seated. An emptied room is then destroyed
// with no further broadcasts; otherwise host succession runs and the
// remaining members get player_left plus a membership refresh. Any prompt
// pending against the leaver is cancelled first, so a driver blocked on it
// wakes into the post-departure state. Caller holds s.mu.
func (s *Server) leaveRoomLocked(c *clientConn) {
	if c.roomID == "" {
		return
	}
	room, ok := s.rooms[c.roomID]
	c.roomID = ""
	if !ok {
		return
	}

	s.cancelPromptFor(c.id)

	pid := c.playerID
	var name string
	if rp := room.players[pid]; rp != nil {
		name = rp.Name
	}
	room.removePlayer(pid)
	delete(s.playerRooms, pid)

	s.reply(c, wire.RoomLeft{Type: wire.TypeRoomLeft})

	if len(room.order) == 0 {
		// The driver is still told, with the update discarded: its
		// engine must not keep a seat for the departed player.
		if room.playing && room.driver != nil {
			room.driver.PlayerLeft(pid)
		}
		delete(s.rooms, room.ID)
		if room.cancel != nil {
			room.cancel()
		}
		s.roomLog.Infof("room %s destroyed", room.ID)
		return
	}

	// Oldest remaining member inherits the room.
	if room.hostID == pid {
		room.hostID = room.order[0]
		s.roomLog.Debugf("room %s: host passed to %s", room.ID, room.hostID)
	}

	if room.playing && room.driver != nil {
		if update, _ := room.driver.PlayerLeft(pid); update != nil {
			s.broadcastRoomLocked(room, update)
		}
	}

	s.broadcastRoomLocked(room, wire.PlayerLeft{Type: wire.TypePlayerLeft, PlayerID: pid, PlayerName: name})
	s.broadcastRoomLocked(room, room.playersMsg())
}

func (s *Server) handleRoomReady(c *clientConn, m *wire.RoomReady) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Readiness outside a room means nothing.
	if c.roomID == "" {
		return
	}
	room := s.rooms[c.roomID]
	rp := room.players[c.playerID]
	if rp == nil || rp.Ready == m.Ready {
		return
	}
	rp.Ready = m.Ready
	s.broadcastRoomLocked(room, room.playersMsg())
	if m.Ready && room.allReady() {
		s.broadcastRoomLocked(room, wire.RoomReadyToStart{Type: wire.TypeRoomReadyToStart})
	}
}

func (s *Server) handleRoomStart(c *clientConn) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c.playerID == "" {
		s.replyError(c, "you must identify first")
		return
	}
	if c.roomID == "" {
		s.replyError(c, "not in a room")
		return
	}
	room := s.rooms[c.roomID]
	if room.playing {
		s.replyError(c, "game already in progress")
		return
	}
	if room.hostID != c.playerID {
		s.replyError(c, "only the host can start the game")
		return
	}
	factory, ok := s.registry.Factory(room.GameType)
	if !ok {
		s.replyError(c, "unknown game type %q", room.GameType)
		return
	}
	meta := factory.Meta()
	if len(room.order) < meta.MinPlayers {
		s.replyError(c, "need at least %d players", meta.MinPlayers)
		return
	}

	adapter := &roomIO{s: s, roomID: room.ID}
	drv, err := factory.New(adapter, game.Config{
		Seats:         room.seats(),
		StartingChips: room.Settings.StartingChips,
		MinBet:        room.Settings.MinBet,
		MaxBet:        room.Settings.MaxBet,
		DeckCount:     room.Settings.DeckCount,
		Seed:          s.seed,
		Log:           s.driverLog(room.GameType),
	})
	if err != nil {
		s.replyError(c, "failed to start game: %v", err)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	room.playing = true
	room.driver = drv
	room.adapter = adapter
	room.cancel = cancel

	// game_starting goes out before the driver goroutine exists, so no
	// driver output can precede it on any member's session.
	s.broadcastRoomLocked(room, wire.GameStarting{Type: wire.TypeGameStarting})
	s.startDriver(ctx, room.ID, drv)
	s.roomLog.Infof("room %s: %s started with %d players", room.ID, room.GameType, len(room.order))
}
