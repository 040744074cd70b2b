package blackjack

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/decred/slog"
	"github.com/vctt94/cardroom/pkg/game"
	"github.com/vctt94/cardroom/pkg/ident"
	"github.com/vctt94/cardroom/pkg/statemachine"
	"github.com/vctt94/cardroom/pkg/wire"
)

// Factory builds Blackjack drivers. Register it with the game registry to
// make "blackjack" available to rooms.
type Factory struct{}

func NewFactory() Factory { return Factory{} }

func (Factory) Meta() game.Meta {
	return game.Meta{
		Type:        "blackjack",
		Name:        "Blackjack",
		Category:    "card",
		Description: "Beat the dealer's hand without going over 21.",
		MinPlayers:  1,
		MaxPlayers:  6,
		Icon:        "🂡",
	}
}

func (Factory) New(io game.RoomIO, cfg game.Config) (game.Driver, error) {
	if len(cfg.Seats) == 0 {
		return nil, fmt.Errorf("blackjack: no seats")
	}
	log := cfg.Log
	if log == nil {
		log = slog.Disabled
	}
	g := NewGame(GameConfig{
		Seats:         cfg.Seats,
		StartingChips: cfg.StartingChips,
		DeckCount:     cfg.DeckCount,
		Seed:          cfg.Seed,
		Log:           log,
	})
	return &Driver{g: g, io: io, log: log, dealerDelay: time.Second}, nil
}

// Driver plays Blackjack for one room. Run owns the round loop and is the
// only writer of game state apart from PlayerLeft, which the room manager
// calls when a seated player leaves mid-game.
type Driver struct {
	g   *Game
	io  game.RoomIO
	log slog.Logger

	// dealerDelay paces the dealer's turn so clients can show their
	// spinner before the results land.
	dealerDelay time.Duration
}

// stateFn is one phase of the round loop; returning nil ends the game.
type stateFn = statemachine.StateFn[Driver]

// Run plays rounds until the players quit, every seat empties, or ctx is
// cancelled, then broadcasts the final standings.
func (d *Driver) Run(ctx context.Context) error {
	d.io.Broadcast(wire.Notice{
		Type:    wire.TypeIntro,
		Title:   "Blackjack",
		Message: "Welcome to Blackjack! Beat the dealer's hand without going over 21.",
	})

	if err := statemachine.New(d, stateBetting).Run(ctx); err != nil {
		d.log.Debugf("round loop stopped: %v", err)
	}

	d.io.Broadcast(wire.Notice{
		Type:    wire.TypeNote,
		Title:   "Final Standings",
		Message: formatStandings(d.g.Standings()),
	})
	d.io.Broadcast(wire.Notice{Type: wire.TypeOutro, Message: "Thanks for playing!"})
	return ctx.Err()
}

// PlayerLeft pulls a departed player out of the running game. It returns
// an updated game_state for the room manager to broadcast and whether any
// players remain seated.
func (d *Driver) PlayerLeft(id ident.PlayerID) (any, bool) {
	name, remaining, ok := d.g.RemovePlayer(id)
	if !ok {
		return nil, remaining > 0
	}
	return d.g.Snapshot(fmt.Sprintf("%s left the game", name)), remaining > 0
}

// stateBetting collects a bet from every seat, then deals.
func stateBetting(ctx context.Context, d *Driver) stateFn {
	for {
		id, name, chips, ok := d.g.NextUnbet()
		if !ok {
			break
		}
		d.io.Broadcast(d.g.Snapshot(fmt.Sprintf("Waiting for %s to bet", name)))

		amount, answered := d.promptBet(ctx, id, name, chips)
		if !answered {
			if ctx.Err() != nil {
				return nil
			}
			if d.io.Member(id) {
				// A present player backing out ends the game.
				return nil
			}
			// The player left; the player-left handler already
			// cleared their seat.
			if d.g.PlayerCount() == 0 {
				return nil
			}
			continue
		}
		if err := d.g.PlaceBet(id, amount); err != nil {
			d.log.Warnf("bet from %s rejected: %v", name, err)
		}
	}

	if d.g.PlayerCount() == 0 {
		return nil
	}
	return stateDeal
}

// stateDeal runs the initial deal. Naturals can end the player phase
// before it starts, in which case play skips straight to the dealer.
func stateDeal(ctx context.Context, d *Driver) stateFn {
	if err := d.g.DealInitialCards(); err != nil {
		d.log.Errorf("initial deal failed: %v", err)
		return nil
	}
	d.io.Broadcast(d.g.Snapshot("Initial cards dealt"))
	if d.g.Phase() == PhaseDealerTurn {
		return stateDealer
	}
	return statePlay
}

// statePlay prompts the hand whose turn it is until no hand is playing.
func statePlay(ctx context.Context, d *Driver) stateFn {
	for {
		id, name, ok := d.g.CurrentTurn()
		if !ok {
			break
		}
		d.io.Broadcast(d.g.Snapshot(fmt.Sprintf("%s's turn", name)))

		res := d.io.Prompt(ctx, id, game.Prompt{
			Kind:    wire.PromptSelect,
			Message: fmt.Sprintf("%s, choose your action:", name),
			Options: d.turnOptions(id),
		})
		if res.Cancelled {
			if ctx.Err() != nil {
				return nil
			}
			if d.io.Member(id) {
				return nil
			}
			if d.g.PlayerCount() == 0 {
				return nil
			}
			continue
		}

		action, _ := res.Value.(string)
		var err error
		advance := true
		switch action {
		case "hit":
			err = d.g.Hit(id)
		case "stand":
			err = d.g.Stand(id)
		case "double":
			err = d.g.DoubleDown(id)
		case "split":
			// The turn stays on the parent hand after a split.
			err = d.g.Split(id)
			advance = false
		case "quit":
			d.io.Broadcast(wire.Notice{
				Type:    wire.TypeLog,
				Message: fmt.Sprintf("%s quit the game", name),
			})
			return nil
		default:
			continue
		}
		if err != nil {
			d.log.Warnf("%s rejected for %s: %v", action, name, err)
			continue
		}
		if advance {
			d.g.NextPlayer()
		}
	}
	return stateDealer
}

// stateDealer reveals the hole card and draws the dealer to seventeen.
func stateDealer(ctx context.Context, d *Driver) stateFn {
	if d.g.PlayerCount() == 0 {
		return nil
	}
	d.io.Broadcast(wire.Spinner{
		Type:    wire.TypeSpinner,
		Action:  wire.SpinnerStart,
		Message: "Dealer is playing...",
	})
	select {
	case <-time.After(d.dealerDelay):
	case <-ctx.Done():
	}
	err := d.g.DealerPlay()
	d.io.Broadcast(wire.Spinner{Type: wire.TypeSpinner, Action: wire.SpinnerStop})
	if err != nil {
		d.log.Errorf("dealer turn failed: %v", err)
		return nil
	}
	return stateSettle
}

// stateSettle pays out the round, drops broke players and asks the host
// whether to run another round.
func stateSettle(ctx context.Context, d *Driver) stateFn {
	results, err := d.g.ResolveRound()
	if err != nil {
		d.log.Errorf("resolve round failed: %v", err)
		return nil
	}
	d.io.Broadcast(d.g.Snapshot("Round over"))
	d.io.Broadcast(wire.Notice{
		Type:    wire.TypeNote,
		Title:   "Round Results",
		Message: formatResults(results),
	})

	for _, out := range d.g.PruneBroke() {
		d.io.Broadcast(wire.Notice{
			Type:    wire.TypeLog,
			Message: fmt.Sprintf("%s is out of chips", out.Name),
		})
	}
	if d.g.PlayerCount() == 0 {
		return nil
	}

	// Ask the host. The host can change between attempts when the
	// current one leaves mid-prompt, so re-read it each time.
	for {
		host := d.io.Host()
		if host == "" {
			return nil
		}
		res := d.io.Prompt(ctx, host, game.Prompt{
			Kind:    wire.PromptSelect,
			Message: "Start a new round?",
			Options: []wire.SelectOption{
				{Label: "New Round", Value: "new_round"},
				{Label: "Quit", Value: "quit"},
			},
		})
		if res.Cancelled {
			if ctx.Err() != nil {
				return nil
			}
			if d.io.Member(host) {
				return nil
			}
			if d.g.PlayerCount() == 0 {
				return nil
			}
			continue
		}
		if v, _ := res.Value.(string); v == "new_round" {
			d.g.ResetRound()
			return stateBetting
		}
		return nil
	}
}

// promptBet asks one player for a bet, re-prompting until the answer
// parses as a positive amount within their stack. The second return is
// false when the prompt was cancelled.
func (d *Driver) promptBet(ctx context.Context, id ident.PlayerID, name string, chips int64) (int64, bool) {
	validate := func(s string) error {
		n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
		if err != nil || n <= 0 {
			return fmt.Errorf("bet must be a positive whole number")
		}
		if n > chips {
			return fmt.Errorf("bet cannot exceed your %d chips", chips)
		}
		return nil
	}

	for {
		res := d.io.Prompt(ctx, id, game.Prompt{
			Kind:        wire.PromptText,
			Message:     fmt.Sprintf("%s, enter your bet (chips: %d):", name, chips),
			Placeholder: "bet amount",
			Validate:    validate,
		})
		if res.Cancelled {
			return 0, false
		}
		amount, ok := parseAmount(res.Value)
		if !ok || amount <= 0 || amount > chips {
			continue
		}
		return amount, true
	}
}

// turnOptions builds the action menu for the current hand. Double and
// split only appear while the game allows them.
func (d *Driver) turnOptions(id ident.PlayerID) []wire.SelectOption {
	opts := []wire.SelectOption{
		{Label: "Hit", Value: "hit"},
		{Label: "Stand", Value: "stand"},
	}
	if d.g.CanDoubleDown(id) {
		opts = append(opts, wire.SelectOption{Label: "Double Down", Value: "double"})
	}
	if d.g.CanSplit(id) {
		opts = append(opts, wire.SelectOption{Label: "Split", Value: "split"})
	}
	return append(opts, wire.SelectOption{Label: "Quit", Value: "quit"})
}

// parseAmount accepts a numeric prompt answer as a string or a JSON
// number.
func parseAmount(v any) (int64, bool) {
	switch x := v.(type) {
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(x), 10, 64)
		return n, err == nil
	case float64:
		if x != math.Trunc(x) {
			return 0, false
		}
		return int64(x), true
	case int:
		return int64(x), true
	case int64:
		return x, true
	}
	return 0, false
}

func formatResults(results []HandResult) string {
	lines := make([]string, 0, len(results))
	for _, r := range results {
		name := r.Name
		if r.IsSplit {
			name += " (split)"
		}
		net := r.Payout - r.Bet
		lines = append(lines, fmt.Sprintf("%s: %s (%d) %+d chips", name, r.Outcome, r.Total, net))
	}
	return strings.Join(lines, "\n")
}

func formatStandings(standings []Standing) string {
	if len(standings) == 0 {
		return "No players remaining."
	}
	medals := []string{"🥇", "🥈", "🥉"}
	lines := make([]string, 0, len(standings))
	for i, s := range standings {
		rank := fmt.Sprintf("%d.", i+1)
		if i < len(medals) {
			rank = medals[i]
		}
		lines = append(lines, fmt.Sprintf("%s %s: %d chips", rank, s.Name, s.Chips))
	}
	return strings.Join(lines, "\n")
}
