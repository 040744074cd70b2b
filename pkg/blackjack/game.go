// Package blackjack implements the Blackjack rules engine and the room
// driver that plays it over a game.RoomIO.
package blackjack

import (
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/decred/slog"

	"github.com/vctt94/cardroom/pkg/cards"
	"github.com/vctt94/cardroom/pkg/game"
	"github.com/vctt94/cardroom/pkg/ident"
	"github.com/vctt94/cardroom/pkg/wire"
)

// Status of a single hand.
type Status string

const (
	StatusPlaying   Status = "playing"
	StatusStay      Status = "stay"
	StatusBust      Status = "bust"
	StatusBlackjack Status = "blackjack"
)

// Phase of a round.
type Phase string

const (
	PhaseBetting    Phase = "betting"
	PhaseDealing    Phase = "dealing"
	PhasePlayerTurn Phase = "player-turn"
	PhaseDealerTurn Phase = "dealer-turn"
	PhaseRoundOver  Phase = "round-over"
)

// dealerStandValue is the total the dealer stands on.
const dealerStandValue = 17

// SplitHand is the second hand produced by a split. It carries its own bet
// and hand id and references the parent player.
type SplitHand struct {
	HandID   ident.HandID
	ParentID ident.PlayerID
	Cards    []cards.Card
	Bet      int64
	Status   Status
}

// Player is one seat in a running game.
type Player struct {
	ID     ident.PlayerID
	HandID ident.HandID
	Name   string
	Hand   []cards.Card
	Bet    int64
	Chips  int64
	Status Status
	Split  *SplitHand

	// natural marks a two-card 21 from the initial deal. A split half
	// that later shows a two-card 21 displays as blackjack but is not
	// natural and pays 1:1.
	natural bool
}

// GameConfig holds configuration for a new game.
type GameConfig struct {
	Seats         []game.Seat
	StartingChips int64
	DeckCount     int
	Seed          int64 // optional seed for deterministic shoes
	Log           slog.Logger
}

// Game holds the state for one Blackjack table: the shoe, the dealer and
// the seated players in join order. Methods serialize on an internal mutex
// because the room manager's player-left path mutates state concurrently
// with the driver.
type Game struct {
	mu sync.RWMutex

	deck         *cards.Deck
	dealer       []cards.Card
	dealerStatus Status

	players []*Player
	current int  // seat index of the active hand's owner
	onSplit bool // whether the active hand is the split half

	phase Phase
	log   slog.Logger
}

// HandResult is the payout outcome for one hand at round end.
type HandResult struct {
	PlayerID ident.PlayerID
	HandID   ident.HandID
	Name     string
	IsSplit  bool
	Bet      int64
	Payout   int64
	Total    int
	Status   Status
	Outcome  string
}

// Standing is one row of the final standings.
type Standing struct {
	PlayerID ident.PlayerID
	Name     string
	Chips    int64
}

// deckConfig is the Blackjack card schedule: faces are worth ten, aces
// start at eleven and are demoted by the hand valuation.
func deckConfig(packs int) cards.Config {
	return cards.Config{
		Suits: cards.StandardSuits(),
		Ranks: cards.StandardRanks(),
		Values: map[cards.Rank]int{
			cards.Two: 2, cards.Three: 3, cards.Four: 4, cards.Five: 5,
			cards.Six: 6, cards.Seven: 7, cards.Eight: 8, cards.Nine: 9,
			cards.Ten: 10, cards.Jack: 10, cards.Queen: 10, cards.King: 10,
			cards.Ace: 11,
		},
		Packs: packs,
	}
}

// NewGame creates a game with one seat per configured player.
func NewGame(cfg GameConfig) *Game {
	if len(cfg.Seats) == 0 {
		panic("blackjack: game needs at least one player")
	}

	var rng *rand.Rand
	if cfg.Seed != 0 {
		rng = rand.New(rand.NewSource(cfg.Seed))
	} else {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	log := cfg.Log
	if log == nil {
		log = slog.Disabled
	}

	g := &Game{
		deck: cards.NewDeck(deckConfig(cfg.DeckCount), rng),
		log:  log,
	}
	for _, seat := range cfg.Seats {
		g.players = append(g.players, &Player{
			ID:     seat.ID,
			HandID: ident.NewHandID(),
			Name:   seat.Name,
			Chips:  cfg.StartingChips,
			Status: StatusPlaying,
		})
	}
	g.resetRoundLocked()
	return g
}

// handValue sums card values counting each Ace as 11, then demotes Aces to
// 1 one at a time while the total exceeds 21.
func handValue(hand []cards.Card) int {
	total := 0
	aces := 0
	for _, c := range hand {
		total += c.GetValue()
		if c.GetRank() == cards.Ace {
			aces++
		}
	}
	for total > 21 && aces > 0 {
		total -= 10
		aces--
	}
	return total
}

// isBlackjack reports a two-card 21.
func isBlackjack(hand []cards.Card) bool {
	return len(hand) == 2 && handValue(hand) == 21
}

// Phase returns the current round phase.
func (g *Game) Phase() Phase {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.phase
}

// PlayerCount returns the number of seated players.
func (g *Game) PlayerCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.players)
}

// HasPlayer reports whether the player is still seated.
func (g *Game) HasPlayer(id ident.PlayerID) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.findLocked(id) != nil
}

func (g *Game) findLocked(id ident.PlayerID) *Player {
	for _, p := range g.players {
		if p.ID == id {
			return p
		}
	}
	return nil
}

// activeHand returns the hand the next action applies to for a player:
// the primary hand while it is playing, then the split half.
func activeHand(p *Player) (hand *[]cards.Card, bet *int64, status *Status, split bool) {
	if p.Status == StatusPlaying {
		return &p.Hand, &p.Bet, &p.Status, false
	}
	if p.Split != nil && p.Split.Status == StatusPlaying {
		return &p.Split.Cards, &p.Split.Bet, &p.Split.Status, true
	}
	return nil, nil, nil, false
}

// NextUnbet returns the first seat in join order that has not placed a bet
// this round.
func (g *Game) NextUnbet() (id ident.PlayerID, name string, chips int64, ok bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.phase != PhaseBetting {
		return "", "", 0, false
	}
	for _, p := range g.players {
		if p.Bet == 0 {
			return p.ID, p.Name, p.Chips, true
		}
	}
	return "", "", 0, false
}

// PlaceBet debits the amount from the player's chips and records it as the
// round bet. Valid only in the betting phase for 0 < amount <= chips.
func (g *Game) PlaceBet(id ident.PlayerID, amount int64) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.phase != PhaseBetting {
		return fmt.Errorf("cannot bet in phase %s", g.phase)
	}
	p := g.findLocked(id)
	if p == nil {
		return fmt.Errorf("player %s not in game", id)
	}
	if p.Bet != 0 {
		return fmt.Errorf("%s already placed a bet", p.Name)
	}
	if amount <= 0 {
		return fmt.Errorf("bet must be positive")
	}
	if amount > p.Chips {
		return fmt.Errorf("bet %d exceeds chips %d", amount, p.Chips)
	}

	p.Chips -= amount
	p.Bet = amount
	g.log.Debugf("%s bets %d (chips %d)", p.Name, amount, p.Chips)
	return nil
}

// DealInitialCards moves betting -> dealing -> player-turn. Each player
// receives a card in seat order, then the dealer, twice over. Two-card 21s
// become natural blackjacks. The turn lands on the first playing hand; if
// none exists the phase skips to dealer-turn.
func (g *Game) DealInitialCards() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.phase != PhaseBetting {
		return fmt.Errorf("cannot deal in phase %s", g.phase)
	}
	for _, p := range g.players {
		if p.Bet == 0 {
			return fmt.Errorf("%s has not bet", p.Name)
		}
	}

	g.phase = PhaseDealing
	for pass := 0; pass < 2; pass++ {
		for _, p := range g.players {
			p.Hand = append(p.Hand, g.deck.Draw())
		}
		g.dealer = append(g.dealer, g.deck.Draw())
	}

	for _, p := range g.players {
		if isBlackjack(p.Hand) {
			p.Status = StatusBlackjack
			p.natural = true
			g.log.Debugf("%s has a natural blackjack", p.Name)
		}
	}

	g.phase = PhasePlayerTurn
	g.current = 0
	g.onSplit = false
	if !g.seekPlayingLocked(0) {
		g.phase = PhaseDealerTurn
	}
	return nil
}

// pos maps (seat, half) to an ordinal over the hand sequence
// (0,primary),(0,split),(1,primary),... used for turn advancement.
func (g *Game) posLocked() int {
	pos := g.current * 2
	if g.onSplit {
		pos++
	}
	return pos
}

// seekPlayingLocked scans the hand sequence starting at ordinal `from`
// (inclusive, wrapping) and parks the turn on the first playing hand.
// Returns false when no hand is playing.
func (g *Game) seekPlayingLocked(from int) bool {
	n := len(g.players) * 2
	if n == 0 {
		return false
	}
	for i := 0; i < n; i++ {
		pos := (from + i) % n
		p := g.players[pos/2]
		if pos%2 == 0 {
			if p.Status == StatusPlaying {
				g.current, g.onSplit = pos/2, false
				return true
			}
		} else if p.Split != nil && p.Split.Status == StatusPlaying {
			g.current, g.onSplit = pos/2, true
			return true
		}
	}
	return false
}

// CurrentTurn returns the owner of the active hand. It self-heals if the
// turn marker points at a finished or vacated position, and flips to
// dealer-turn when no playing hand remains.
func (g *Game) CurrentTurn() (ident.PlayerID, string, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.phase != PhasePlayerTurn {
		return "", "", false
	}
	if g.current >= len(g.players) {
		g.current, g.onSplit = 0, false
	}
	if !g.seekPlayingLocked(g.posLocked()) {
		g.phase = PhaseDealerTurn
		return "", "", false
	}
	p := g.players[g.current]
	return p.ID, p.Name, true
}

// NextPlayer advances to the next active hand; a pending split half is
// visited before the turn moves past its parent. With no active hand left
// the phase becomes dealer-turn.
func (g *Game) NextPlayer() {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.phase != PhasePlayerTurn {
		return
	}
	if !g.seekPlayingLocked(g.posLocked() + 1) {
		g.phase = PhaseDealerTurn
	}
}

// settleHand applies the post-draw status rules to a hand: bust over
// 21 and an automatic stay at exactly 21.
func settleHand(hand []cards.Card, status *Status) {
	switch v := handValue(hand); {
	case v > 21:
		*status = StatusBust
	case v == 21:
		*status = StatusStay
	}
}

// Hit draws one card to the player's active hand.
func (g *Game) Hit(id ident.PlayerID) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.phase != PhasePlayerTurn {
		return fmt.Errorf("cannot hit in phase %s", g.phase)
	}
	p := g.findLocked(id)
	if p == nil {
		return fmt.Errorf("player %s not in game", id)
	}
	hand, _, status, _ := activeHand(p)
	if hand == nil {
		return fmt.Errorf("%s has no playing hand", p.Name)
	}

	card := g.deck.Draw()
	*hand = append(*hand, card)
	settleHand(*hand, status)
	g.log.Debugf("%s hits: %s (total %d, %s)", p.Name, card, handValue(*hand), *status)
	return nil
}

// Stand ends the player's active hand.
func (g *Game) Stand(id ident.PlayerID) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.phase != PhasePlayerTurn {
		return fmt.Errorf("cannot stand in phase %s", g.phase)
	}
	p := g.findLocked(id)
	if p == nil {
		return fmt.Errorf("player %s not in game", id)
	}
	_, _, status, _ := activeHand(p)
	if status == nil {
		return fmt.Errorf("%s has no playing hand", p.Name)
	}
	*status = StatusStay
	return nil
}

// CanDoubleDown reports whether the player's active hand may double: a
// two-card hand with chips covering a second bet.
func (g *Game) CanDoubleDown(id ident.PlayerID) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()

	p := g.findLocked(id)
	if p == nil || g.phase != PhasePlayerTurn {
		return false
	}
	hand, bet, _, _ := activeHand(p)
	return hand != nil && len(*hand) == 2 && p.Chips >= *bet
}

// DoubleDown doubles the active hand's bet, draws exactly one card, then
// stands (or busts).
func (g *Game) DoubleDown(id ident.PlayerID) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.phase != PhasePlayerTurn {
		return fmt.Errorf("cannot double down in phase %s", g.phase)
	}
	p := g.findLocked(id)
	if p == nil {
		return fmt.Errorf("player %s not in game", id)
	}
	hand, bet, status, _ := activeHand(p)
	if hand == nil {
		return fmt.Errorf("%s has no playing hand", p.Name)
	}
	if len(*hand) != 2 {
		return fmt.Errorf("can only double down on a two-card hand")
	}
	if p.Chips < *bet {
		return fmt.Errorf("insufficient chips to double down")
	}

	p.Chips -= *bet
	*bet *= 2

	card := g.deck.Draw()
	*hand = append(*hand, card)
	if handValue(*hand) > 21 {
		*status = StatusBust
	} else {
		*status = StatusStay
	}
	g.log.Debugf("%s doubles down: %s (total %d, %s)", p.Name, card, handValue(*hand), *status)
	return nil
}

// CanSplit reports whether the player may split: the primary hand is the
// active hand, holds a two-card pair of equal rank, no split exists yet,
// and chips cover the second bet.
func (g *Game) CanSplit(id ident.PlayerID) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()

	p := g.findLocked(id)
	if p == nil || g.phase != PhasePlayerTurn {
		return false
	}
	return p.Status == StatusPlaying &&
		p.Split == nil &&
		len(p.Hand) == 2 &&
		p.Hand[0].GetRank() == p.Hand[1].GetRank() &&
		p.Chips >= p.Bet
}

// Split moves the second card of a two-card pair into a new split hand
// carrying the same bet, then deals one card to each half. Play stays on
// the parent hand.
func (g *Game) Split(id ident.PlayerID) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.phase != PhasePlayerTurn {
		return fmt.Errorf("cannot split in phase %s", g.phase)
	}
	p := g.findLocked(id)
	if p == nil {
		return fmt.Errorf("player %s not in game", id)
	}
	if p.Split != nil {
		return fmt.Errorf("%s already split", p.Name)
	}
	if p.Status != StatusPlaying || len(p.Hand) != 2 {
		return fmt.Errorf("can only split a two-card hand")
	}
	if p.Hand[0].GetRank() != p.Hand[1].GetRank() {
		return fmt.Errorf("can only split a pair of equal rank")
	}
	if p.Chips < p.Bet {
		return fmt.Errorf("insufficient chips to split")
	}

	p.Chips -= p.Bet
	p.Split = &SplitHand{
		HandID:   ident.NewHandID(),
		ParentID: p.ID,
		Cards:    []cards.Card{p.Hand[1]},
		Bet:      p.Bet,
		Status:   StatusPlaying,
	}
	p.Hand = p.Hand[:1]

	p.Hand = append(p.Hand, g.deck.Draw())
	p.Split.Cards = append(p.Split.Cards, g.deck.Draw())

	// A split half showing a two-card 21 displays as blackjack but it
	// is not a natural; payouts treat it as a plain 21.
	if isBlackjack(p.Hand) {
		p.Status = StatusBlackjack
	}
	if isBlackjack(p.Split.Cards) {
		p.Split.Status = StatusBlackjack
	}

	g.log.Debugf("%s splits into %s / %s", p.Name, p.Hand, p.Split.Cards)
	return nil
}

// allHandsBustLocked reports whether every hand at the table busted.
func (g *Game) allHandsBustLocked() bool {
	for _, p := range g.players {
		if p.Status != StatusBust {
			return false
		}
		if p.Split != nil && p.Split.Status != StatusBust {
			return false
		}
	}
	return true
}

// DealerPlay runs the dealer's turn: with every player hand bust the
// dealer stands immediately; otherwise the dealer draws to seventeen.
func (g *Game) DealerPlay() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.phase != PhaseDealerTurn {
		return fmt.Errorf("cannot play dealer in phase %s", g.phase)
	}

	if g.allHandsBustLocked() {
		g.dealerStatus = StatusStay
		g.phase = PhaseRoundOver
		g.log.Debugf("all players bust, dealer stands")
		return nil
	}

	for handValue(g.dealer) < dealerStandValue {
		g.dealer = append(g.dealer, g.deck.Draw())
	}
	if handValue(g.dealer) > 21 {
		g.dealerStatus = StatusBust
	} else {
		g.dealerStatus = StatusStay
	}
	g.phase = PhaseRoundOver
	g.log.Debugf("dealer plays to %d (%s)", handValue(g.dealer), g.dealerStatus)
	return nil
}

// payoutLocked computes the credit returned to a hand under the payout
// ladder. The bet itself was already debited at placement.
func (g *Game) payoutLocked(hand []cards.Card, bet int64, status Status, natural bool) (int64, string) {
	dealerTotal := handValue(g.dealer)
	dealerNatural := isBlackjack(g.dealer)
	total := handValue(hand)

	switch {
	case status == StatusBust:
		return 0, "bust"
	case natural && dealerNatural:
		return bet, "push"
	case natural:
		return bet + bet*3/2, "blackjack"
	case dealerNatural:
		return 0, "dealer blackjack"
	case g.dealerStatus == StatusBust:
		return 2 * bet, "dealer bust"
	case total > dealerTotal:
		return 2 * bet, "win"
	case total == dealerTotal:
		return bet, "push"
	default:
		return 0, "lose"
	}
}

// ResolveRound credits every hand's payout and returns the per-hand
// results in seat order (split halves follow their parent).
func (g *Game) ResolveRound() ([]HandResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.phase != PhaseRoundOver {
		return nil, fmt.Errorf("cannot resolve round in phase %s", g.phase)
	}

	var results []HandResult
	for _, p := range g.players {
		payout, outcome := g.payoutLocked(p.Hand, p.Bet, p.Status, p.natural)
		p.Chips += payout
		results = append(results, HandResult{
			PlayerID: p.ID,
			HandID:   p.HandID,
			Name:     p.Name,
			Bet:      p.Bet,
			Payout:   payout,
			Total:    handValue(p.Hand),
			Status:   p.Status,
			Outcome:  outcome,
		})

		if p.Split != nil {
			payout, outcome := g.payoutLocked(p.Split.Cards, p.Split.Bet, p.Split.Status, false)
			p.Chips += payout
			results = append(results, HandResult{
				PlayerID: p.ID,
				HandID:   p.Split.HandID,
				Name:     p.Name,
				IsSplit:  true,
				Bet:      p.Split.Bet,
				Payout:   payout,
				Total:    handValue(p.Split.Cards),
				Status:   p.Split.Status,
				Outcome:  outcome,
			})
		}
	}
	return results, nil
}

// RemovePlayer takes a departed player out of the game mid-round: the
// record is marked bust with zero chips and dropped from the seats, the
// turn marker is adjusted so the next advance lands on a valid seat, and
// the phase moves to dealer-turn if no active hand remains. Returns the
// removed player's name and the number of remaining players.
func (g *Game) RemovePlayer(id ident.PlayerID) (string, int, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	idx := -1
	for i, p := range g.players {
		if p.ID == id {
			idx = i
			break
		}
	}
	if idx == -1 {
		return "", len(g.players), false
	}

	p := g.players[idx]
	p.Status = StatusBust
	if p.Split != nil {
		p.Split.Status = StatusBust
	}
	p.Chips = 0

	g.players = append(g.players[:idx], g.players[idx+1:]...)
	switch {
	case idx < g.current:
		g.current--
	case idx == g.current:
		g.onSplit = false
	}
	if g.current >= len(g.players) {
		g.current, g.onSplit = 0, false
	}

	if g.phase == PhasePlayerTurn && !g.anyPlayingLocked() {
		g.phase = PhaseDealerTurn
	}
	g.log.Debugf("removed %s from the table, %d seats left", p.Name, len(g.players))
	return p.Name, len(g.players), true
}

func (g *Game) anyPlayingLocked() bool {
	for _, p := range g.players {
		if p.Status == StatusPlaying {
			return true
		}
		if p.Split != nil && p.Split.Status == StatusPlaying {
			return true
		}
	}
	return false
}

// PruneBroke removes players with no chips left and returns them.
func (g *Game) PruneBroke() []Standing {
	g.mu.Lock()
	defer g.mu.Unlock()

	var out []Standing
	kept := g.players[:0]
	for _, p := range g.players {
		if p.Chips > 0 {
			kept = append(kept, p)
		} else {
			out = append(out, Standing{PlayerID: p.ID, Name: p.Name, Chips: p.Chips})
		}
	}
	g.players = kept
	if g.current >= len(g.players) {
		g.current, g.onSplit = 0, false
	}
	return out
}

// ResetRound rebuilds and shuffles the shoe, clears every hand and bet,
// and opens the betting phase for a new round.
func (g *Game) ResetRound() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.resetRoundLocked()
}

func (g *Game) resetRoundLocked() {
	g.deck.Reset()
	g.deck.Shuffle()
	g.dealer = nil
	g.dealerStatus = StatusPlaying
	for _, p := range g.players {
		p.Hand = nil
		p.Bet = 0
		p.Status = StatusPlaying
		p.natural = false
		p.Split = nil
	}
	g.current = 0
	g.onSplit = false
	g.phase = PhaseBetting
}

// Standings returns players sorted by chips descending, stable by seat
// order for ties.
func (g *Game) Standings() []Standing {
	g.mu.RLock()
	defer g.mu.RUnlock()

	out := make([]Standing, 0, len(g.players))
	for _, p := range g.players {
		out = append(out, Standing{PlayerID: p.ID, Name: p.Name, Chips: p.Chips})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Chips > out[j].Chips })
	return out
}

// Snapshot builds the game_state broadcast. The dealer's hole card stays
// hidden during player-turn.
func (g *Game) Snapshot(message string) wire.GameState {
	g.mu.RLock()
	defer g.mu.RUnlock()

	dealer := wire.PlayerView{
		PlayerID: ident.DealerID,
		Name:     ident.DealerName,
		Status:   string(g.dealerStatus),
	}
	if g.phase == PhasePlayerTurn && len(g.dealer) >= 2 {
		visible := g.dealer[:1]
		dealer.Cards = append([]cards.Card(nil), visible...)
		dealer.HandValue = handValue(visible)
		dealer.HiddenCard = true
	} else {
		dealer.Cards = append([]cards.Card(nil), g.dealer...)
		dealer.HandValue = handValue(g.dealer)
	}

	players := make([]wire.PlayerView, 0, len(g.players))
	for _, p := range g.players {
		view := wire.PlayerView{
			PlayerID:  p.ID,
			HandID:    p.HandID,
			Name:      p.Name,
			Cards:     append([]cards.Card(nil), p.Hand...),
			HandValue: handValue(p.Hand),
			Status:    string(p.Status),
			Bet:       p.Bet,
			Chips:     p.Chips,
		}
		if p.Split != nil {
			view.Split = &wire.SplitView{
				HandID:    p.Split.HandID,
				Cards:     append([]cards.Card(nil), p.Split.Cards...),
				HandValue: handValue(p.Split.Cards),
				Status:    string(p.Split.Status),
				Bet:       p.Split.Bet,
			}
		}
		players = append(players, view)
	}

	return wire.GameState{
		Type:    wire.TypeGameState,
		Phase:   string(g.phase),
		Dealer:  dealer,
		Players: players,
		Message: message,
	}
}
