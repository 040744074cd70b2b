// Package cards provides playing cards and the multi-pack shoe the game
// engines draw from.
package cards

import (
	"encoding/json"
	"fmt"
	"math/rand"
)

// Suit represents a card suit
type Suit string

const (
	Hearts   Suit = "hearts"
	Diamonds Suit = "diamonds"
	Clubs    Suit = "clubs"
	Spades   Suit = "spades"
)

// Symbol returns the one-glyph form of the suit used in rendered messages.
func (s Suit) Symbol() string {
	switch s {
	case Hearts:
		return "♥"
	case Diamonds:
		return "♦"
	case Clubs:
		return "♣"
	case Spades:
		return "♠"
	}
	return "?"
}

// Rank represents a card rank
type Rank string

const (
	Two   Rank = "2"
	Three Rank = "3"
	Four  Rank = "4"
	Five  Rank = "5"
	Six   Rank = "6"
	Seven Rank = "7"
	Eight Rank = "8"
	Nine  Rank = "9"
	Ten   Rank = "10"
	Jack  Rank = "J"
	Queen Rank = "Q"
	King  Rank = "K"
	Ace   Rank = "A"
)

// StandardSuits returns the four suits in canonical order.
func StandardSuits() []Suit {
	return []Suit{Hearts, Diamonds, Clubs, Spades}
}

// StandardRanks returns the thirteen ranks in canonical order.
func StandardRanks() []Rank {
	return []Rank{Two, Three, Four, Five, Six, Seven, Eight, Nine, Ten, Jack, Queen, King, Ace}
}

// Card represents a playing card. The numeric value is assigned by the deck
// config that produced it; a Card is immutable once dealt.
type Card struct {
	suit  Suit
	rank  Rank
	value int
}

// NewCard creates a Card directly. Needed because the fields are unexported.
func NewCard(suit Suit, rank Rank, value int) Card {
	return Card{suit: suit, rank: rank, value: value}
}

// CardJSON represents a card for JSON serialization
type CardJSON struct {
	Suit  string `json:"suit"`
	Rank  string `json:"rank"`
	Value int    `json:"value"`
}

// MarshalJSON implements json.Marshaler interface for Card
func (c Card) MarshalJSON() ([]byte, error) {
	return json.Marshal(CardJSON{
		Suit:  string(c.suit),
		Rank:  string(c.rank),
		Value: c.value,
	})
}

// UnmarshalJSON implements json.Unmarshaler interface for Card
func (c *Card) UnmarshalJSON(data []byte) error {
	var cardJSON CardJSON
	if err := json.Unmarshal(data, &cardJSON); err != nil {
		return err
	}

	switch cardJSON.Suit {
	case "hearts", "Hearts", "h", "H", "♥":
		c.suit = Hearts
	case "diamonds", "Diamonds", "d", "D", "♦":
		c.suit = Diamonds
	case "clubs", "Clubs", "c", "C", "♣":
		c.suit = Clubs
	case "spades", "Spades", "s", "S", "♠":
		c.suit = Spades
	default:
		return fmt.Errorf("invalid suit: %s", cardJSON.Suit)
	}

	switch cardJSON.Rank {
	case "2", "3", "4", "5", "6", "7", "8", "9", "10":
		c.rank = Rank(cardJSON.Rank)
	case "J", "j", "jack", "Jack":
		c.rank = Jack
	case "Q", "q", "queen", "Queen":
		c.rank = Queen
	case "K", "k", "king", "King":
		c.rank = King
	case "A", "a", "ace", "Ace":
		c.rank = Ace
	default:
		return fmt.Errorf("invalid rank: %s", cardJSON.Rank)
	}

	c.value = cardJSON.Value
	return nil
}

// String returns a string representation of the card, e.g. "A♠".
func (c Card) String() string {
	return string(c.rank) + c.suit.Symbol()
}

// GetSuit returns the card's suit
func (c Card) GetSuit() Suit {
	return c.suit
}

// GetRank returns the card's rank
func (c Card) GetRank() Rank {
	return c.rank
}

// GetValue returns the card's numeric value under the deck config it came
// from.
func (c Card) GetValue() int {
	return c.value
}

// Config describes the composition of a shoe: which suits and ranks each
// pack contains, the numeric value per rank, and how many packs are stacked.
type Config struct {
	Suits  []Suit
	Ranks  []Rank
	Values map[Rank]int
	Packs  int
}

// Deck is a shoe built from one or more packs. It is not safe for
// concurrent use; the owning game serializes access.
type Deck struct {
	cards []Card
	cfg   Config
	rng   *rand.Rand
}

// NewDeck builds a shoe in canonical order from the config. Callers shuffle
// explicitly; the rules engines reset-then-shuffle at every round start.
func NewDeck(cfg Config, rng *rand.Rand) *Deck {
	if cfg.Packs < 1 {
		cfg.Packs = 1
	}
	d := &Deck{cfg: cfg, rng: rng}
	d.Reset()
	return d
}

// Reset reloads the shoe to its configured composition in canonical order.
func (d *Deck) Reset() {
	d.cards = make([]Card, 0, d.cfg.Packs*len(d.cfg.Suits)*len(d.cfg.Ranks))
	for p := 0; p < d.cfg.Packs; p++ {
		for _, suit := range d.cfg.Suits {
			for _, rank := range d.cfg.Ranks {
				d.cards = append(d.cards, Card{suit: suit, rank: rank, value: d.cfg.Values[rank]})
			}
		}
	}
}

// Shuffle randomizes the order of cards in the shoe using Fisher-Yates.
func (d *Deck) Shuffle() {
	d.rng.Shuffle(len(d.cards), func(i, j int) {
		d.cards[i], d.cards[j] = d.cards[j], d.cards[i]
	})
}

// Draw removes and returns the top card of the shoe (the tail of the
// internal slice). Drawing from an empty shoe is a programmer bug: the
// rules engine must reset before a round can exhaust the shoe.
func (d *Deck) Draw() Card {
	if len(d.cards) == 0 {
		panic("cards: draw from empty shoe")
	}
	card := d.cards[len(d.cards)-1]
	d.cards = d.cards[:len(d.cards)-1]
	return card
}

// Size returns the number of cards remaining in the shoe
func (d *Deck) Size() int {
	return len(d.cards)
}
