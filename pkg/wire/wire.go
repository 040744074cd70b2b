// Package wire defines the JSON message vocabulary spoken over each
// WebSocket session and the codec for it. Every message is a single JSON
// object per frame carrying a "type" string; the one exception is the
// prompt response, which has no type and is recognized by its absence.
package wire

import (
	"github.com/vctt94/cardroom/pkg/cards"
	"github.com/vctt94/cardroom/pkg/ident"
)

const (
	// Client -> Server
	TypeIdentify   = "identify"
	TypeRoomList   = "room_list"
	TypeGameList   = "game_list"
	TypeRoomCreate = "room_create"
	TypeRoomJoin   = "room_join"
	TypeRoomLeave  = "room_leave"
	TypeRoomReady  = "room_ready"
	TypeRoomStart  = "room_start"

	// Server -> Client
	TypeConnected        = "connected"
	TypeIdentified       = "identified"
	TypeDisconnected     = "disconnected"
	TypeRoomJoined       = "room_joined"
	TypeRoomPlayers      = "room_players"
	TypeRoomLeft         = "room_left"
	TypeRoomError        = "room_error"
	TypePlayerLeft       = "player_left"
	TypeRoomReadyToStart = "room_ready_to_start"
	TypeGameStarting     = "game_starting"
	TypeGameEnded        = "game_ended"
	TypeIntro            = "intro"
	TypeOutro            = "outro"
	TypeLog              = "log"
	TypeNote             = "note"
	TypeWarning          = "warning"
	TypeValidationError  = "validation_error"
	TypeSpinner          = "spinner"
	TypePrompt           = "prompt"
	TypeGameState        = "game_state"
)

// Prompt kinds carried in Prompt.PromptType.
const (
	PromptText    = "text"
	PromptSelect  = "select"
	PromptConfirm = "confirm"
)

// Spinner actions.
const (
	SpinnerStart   = "start"
	SpinnerStop    = "stop"
	SpinnerMessage = "message"
)

// Client -> Server messages

// Identify declares the session's display name.
type Identify struct {
	Type string `json:"type"`
	Name string `json:"name"`
}

// RoomListRequest asks for the public room list.
type RoomListRequest struct {
	Type string `json:"type"`
}

// GameListRequest asks for the registered game metadata.
type GameListRequest struct {
	Type string `json:"type"`
}

// RoomCreate creates a room. Every field beyond Type is optional and
// defaulted by the room manager.
type RoomCreate struct {
	Type       string `json:"type"`
	Name       string `json:"name,omitempty"`
	IsPrivate  bool   `json:"isPrivate,omitempty"`
	MaxPlayers int    `json:"maxPlayers,omitempty"`
	GameType   string `json:"gameType,omitempty"`
	MinBet     int64  `json:"minBet,omitempty"`
	MaxBet     int64  `json:"maxBet,omitempty"`
	DeckCount  int    `json:"deckCount,omitempty"`
}

// RoomJoin joins a room by code. The code is normalized server-side.
type RoomJoin struct {
	Type   string `json:"type"`
	RoomID string `json:"roomId"`
}

// RoomLeave leaves the current room.
type RoomLeave struct {
	Type string `json:"type"`
}

// RoomReady flips the session's readiness flag.
type RoomReady struct {
	Type  string `json:"type"`
	Ready bool   `json:"ready"`
}

// RoomStart asks to start the game; only honored for the host.
type RoomStart struct {
	Type string `json:"type"`
}

// PromptResponse answers an outstanding prompt. It carries no "type"; the
// decoder classifies any typeless (or unknown-typed) object as one.
type PromptResponse struct {
	Value  any  `json:"value,omitempty"`
	Cancel bool `json:"cancel,omitempty"`
}

// Server -> Client messages

// Connected is the first frame on every session.
type Connected struct {
	Type      string          `json:"type"`
	SessionID ident.SessionID `json:"sessionId"`
}

// Identified confirms an identify and carries the freshly minted player id.
type Identified struct {
	Type     string         `json:"type"`
	PlayerID ident.PlayerID `json:"playerId"`
	Name     string         `json:"name"`
}

// Disconnected is sent just before the server closes a session.
type Disconnected struct {
	Type string `json:"type"`
}

// RoomSummary is the public view of a room, used in room lists and join
// confirmations.
type RoomSummary struct {
	ID          ident.RoomID `json:"id"`
	Name        string       `json:"name"`
	PlayerCount int          `json:"playerCount"`
	MaxPlayers  int          `json:"maxPlayers"`
	IsPrivate   bool         `json:"isPrivate"`
	IsPlaying   bool         `json:"isPlaying"`
	GameType    string       `json:"gameType"`
}

// RoomList carries every public room.
type RoomList struct {
	Type  string        `json:"type"`
	Rooms []RoomSummary `json:"rooms"`
}

// GameInfo is one registered game's metadata.
type GameInfo struct {
	Type        string `json:"type"`
	Name        string `json:"name"`
	Category    string `json:"category"`
	Description string `json:"description"`
	MinPlayers  int    `json:"minPlayers"`
	MaxPlayers  int    `json:"maxPlayers"`
	Icon        string `json:"icon,omitempty"`
}

// GameList carries every registered game's metadata.
type GameList struct {
	Type  string     `json:"type"`
	Games []GameInfo `json:"games"`
}

// RoomJoined confirms room entry to the joining session only.
type RoomJoined struct {
	Type   string      `json:"type"`
	Room   RoomSummary `json:"room"`
	IsHost bool        `json:"isHost"`
}

// RoomPlayerInfo is one member in a room_players broadcast.
type RoomPlayerInfo struct {
	PlayerID ident.PlayerID `json:"playerId"`
	Name     string         `json:"name"`
	IsReady  bool           `json:"isReady"`
	IsHost   bool           `json:"isHost"`
}

// RoomPlayers is the membership broadcast, in join order.
type RoomPlayers struct {
	Type    string           `json:"type"`
	Players []RoomPlayerInfo `json:"players"`
}

// RoomLeft confirms a voluntary leave to the leaver only.
type RoomLeft struct {
	Type string `json:"type"`
}

// RoomError reports a client-logic failure to the offending session only.
type RoomError struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

// PlayerLeft announces a departure to the remaining members.
type PlayerLeft struct {
	Type       string         `json:"type"`
	PlayerID   ident.PlayerID `json:"playerId"`
	PlayerName string         `json:"playerName"`
}

// RoomReadyToStart tells the room every member is ready.
type RoomReadyToStart struct {
	Type string `json:"type"`
}

// GameStarting precedes any driver output for a game.
type GameStarting struct {
	Type string `json:"type"`
}

// GameEnded follows all driver output for a game.
type GameEnded struct {
	Type string `json:"type"`
}

// Notice is the shared shape of intro, outro, log, note and warning
// messages: free text with an optional title.
type Notice struct {
	Type    string `json:"type"`
	Title   string `json:"title,omitempty"`
	Message string `json:"message"`
}

// ValidationError reports a rejected prompt value to the prompted session.
type ValidationError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// Spinner drives the clients' busy indicator.
type Spinner struct {
	Type    string `json:"type"`
	Action  string `json:"action"`
	Message string `json:"message,omitempty"`
}

// SelectOption is one choice in a select prompt.
type SelectOption struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// Prompt asks the targeted player a question. Exactly the fields matching
// PromptType are populated.
type Prompt struct {
	Type        string         `json:"type"`
	PromptType  string         `json:"promptType"`
	Message     string         `json:"message"`
	Placeholder string         `json:"placeholder,omitempty"`
	Default     string         `json:"default,omitempty"`
	Options     []SelectOption `json:"options,omitempty"`
	Initial     bool           `json:"initial,omitempty"`
}

// SplitView is the split half of a player's hand in a game_state broadcast.
type SplitView struct {
	HandID    ident.HandID `json:"handId"`
	Cards     []cards.Card `json:"cards"`
	HandValue int          `json:"handValue"`
	Status    string       `json:"status"`
	Bet       int64        `json:"bet"`
}

// PlayerView is one seat (or the dealer) in a game_state broadcast. The
// dealer's hole card is withheld while HiddenCard is set.
type PlayerView struct {
	PlayerID   ident.PlayerID `json:"playerId"`
	HandID     ident.HandID   `json:"handId,omitempty"`
	Name       string         `json:"name"`
	Cards      []cards.Card   `json:"cards"`
	HandValue  int            `json:"handValue"`
	Status     string         `json:"status"`
	Bet        int64          `json:"bet"`
	Chips      int64          `json:"chips"`
	HiddenCard bool           `json:"hiddenCard,omitempty"`
	Split      *SplitView     `json:"split,omitempty"`
}

// GameState is the full table snapshot broadcast to the room.
type GameState struct {
	Type    string       `json:"type"`
	Phase   string       `json:"phase"`
	Dealer  PlayerView   `json:"dealer"`
	Players []PlayerView `json:"players"`
	Message string       `json:"message"`
}
