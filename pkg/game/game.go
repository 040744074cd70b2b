// Package game defines the contracts between the room manager and the
// pluggable game implementations: the driver interface, the factory that
// produces drivers, the registry of factories, and the room IO surface a
// running driver talks through.
package game

import (
	"context"

	"github.com/decred/slog"

	"github.com/vctt94/cardroom/pkg/ident"
	"github.com/vctt94/cardroom/pkg/wire"
)

// Meta describes a registered game for listings and capacity checks.
type Meta struct {
	Type        string
	Name        string
	Category    string
	Description string
	MinPlayers  int
	MaxPlayers  int
	Icon        string
}

// Seat is one player in join order at game start.
type Seat struct {
	ID   ident.PlayerID
	Name string
}

// Config carries the room's per-game settings into a driver.
type Config struct {
	Seats         []Seat
	StartingChips int64
	MinBet        int64
	MaxBet        int64
	DeckCount     int

	// Seed fixes the shoe RNG when non-zero. Tests use it; production
	// leaves it zero for a time-derived seed.
	Seed int64

	Log slog.Logger
}

// Prompt is a question for one player. Kind selects which of the remaining
// fields apply (wire.PromptText, wire.PromptSelect, wire.PromptConfirm).
type Prompt struct {
	Kind        string
	Message     string
	Placeholder string
	Default     string
	Options     []wire.SelectOption
	Initial     bool

	// Validate is advisory for text prompts: a rejection emits a
	// validation_error to the prompted session but the raw value is
	// still delivered. The driver re-validates.
	Validate func(string) error
}

// Response resolves a prompt: either an answer value or a cancellation
// (disconnect, room leave, shutdown).
type Response struct {
	Value     any
	Cancelled bool
}

// RoomIO is everything a driver can do to the outside world: fan a message
// out to the room, put a question to one player, and consult current room
// facts. Member and Host serialize behind the room manager's event
// handling, so a driver that observed a prompt cancellation sees the
// post-departure state.
type RoomIO interface {
	// Broadcast sends one wire message to every member of the room.
	Broadcast(msg any)

	// Prompt asks one player a question and blocks until an answer,
	// a cancellation, or ctx expiry. At most one prompt may be in
	// flight per session.
	Prompt(ctx context.Context, id ident.PlayerID, p Prompt) Response

	// Member reports whether the player is still in the room.
	Member(id ident.PlayerID) bool

	// Host returns the room's current host, or "" if the room is gone.
	Host() ident.PlayerID
}

// Driver is a live game bound to one room.
type Driver interface {
	// Run plays the game to completion. It is the only goroutine
	// mutating game state except for PlayerLeft.
	Run(ctx context.Context) error

	// PlayerLeft removes a departed player mid-game. It returns a state
	// update for the room manager to broadcast (nil when the player was
	// not in the game) and whether any players remain. Called by the
	// room manager, which may hold its own lock, while Run is live; the
	// driver must not call back into RoomIO here.
	PlayerLeft(id ident.PlayerID) (update any, remaining bool)
}

// Factory builds drivers for one game type.
type Factory interface {
	Meta() Meta
	New(io RoomIO, cfg Config) (Driver, error)
}
