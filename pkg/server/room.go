package server

import (
	"sort"

	"github.com/vctt94/cardroom/pkg/game"
	"github.com/vctt94/cardroom/pkg/ident"
	"github.com/vctt94/cardroom/pkg/wire"
)

// Defaults applied when a room_create request leaves a setting unset.
const (
	defaultChips     = 1000
	defaultMinBet    = 10
	defaultMaxBet    = 500
	defaultDeckCount = 4
	maxDeckCount     = 8
)

// RoomSettings are the per-game knobs the creator may tune.
type RoomSettings struct {
	StartingChips int64
	MinBet        int64
	MaxBet        int64
	DeckCount     int
}

// RoomPlayer is one member of a room. Ready is the lobby readiness flag;
// Chips is the allotment the member brings into a game.
type RoomPlayer struct {
	ID      ident.PlayerID
	Session ident.SessionID
	Name    string
	Ready   bool
	Chips   int64
}

// Room is a named container of players that is either idle or running one
// game. All fields are guarded by the Server mutex; the host is tracked by
// id so there is exactly one by construction.
type Room struct {
	ID         ident.RoomID
	Name       string
	GameType   string
	MaxPlayers int
	Private    bool
	Settings   RoomSettings

	players map[ident.PlayerID]*RoomPlayer
	order   []ident.PlayerID // join order; order[0] is the oldest member
	hostID  ident.PlayerID

	playing bool
	driver  game.Driver
	adapter *roomIO
	cancel  func() // cancels the driver's context
}

func (r *Room) addPlayer(p *RoomPlayer) {
	r.players[p.ID] = p
	r.order = append(r.order, p.ID)
}

func (r *Room) removePlayer(id ident.PlayerID) {
	delete(r.players, id)
	for i, pid := range r.order {
		if pid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

func (r *Room) allReady() bool {
	for _, p := range r.players {
		if !p.Ready {
			return false
		}
	}
	return len(r.players) > 0
}

// seats returns the members in join order, the order the game seats them.
func (r *Room) seats() []game.Seat {
	out := make([]game.Seat, 0, len(r.order))
	for _, pid := range r.order {
		out = append(out, game.Seat{ID: pid, Name: r.players[pid].Name})
	}
	return out
}

func (r *Room) summary() wire.RoomSummary {
	return wire.RoomSummary{
		ID:          r.ID,
		Name:        r.Name,
		PlayerCount: len(r.order),
		MaxPlayers:  r.MaxPlayers,
		IsPrivate:   r.Private,
		IsPlaying:   r.playing,
		GameType:    r.GameType,
	}
}

// playersMsg builds the room_players broadcast, in join order.
func (r *Room) playersMsg() wire.RoomPlayers {
	players := make([]wire.RoomPlayerInfo, 0, len(r.order))
	for _, pid := range r.order {
		p := r.players[pid]
		players = append(players, wire.RoomPlayerInfo{
			PlayerID: p.ID,
			Name:     p.Name,
			IsReady:  p.Ready,
			IsHost:   p.ID == r.hostID,
		})
	}
	return wire.RoomPlayers{Type: wire.TypeRoomPlayers, Players: players}
}

// publicRoomsLocked lists every non-private room, sorted by id so repeated
// listings with no intervening changes are identical.
func (s *Server) publicRoomsLocked() []wire.RoomSummary {
	out := make([]wire.RoomSummary, 0, len(s.rooms))
	for _, r := range s.rooms {
		if r.Private {
			continue
		}
		out = append(out, r.summary())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
