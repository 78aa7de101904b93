package deck

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Suit represents a card suit
type Suit int

const (
	Clubs Suit = iota
	Diamonds
	Spades
	Hearts
)

// Suits lists all four suits in hand-sort order (clubs low, hearts high).
var Suits = []Suit{Clubs, Diamonds, Spades, Hearts}

// String returns the string representation of a suit
func (s Suit) String() string {
	switch s {
	case Clubs:
		return "♣"
	case Diamonds:
		return "♦"
	case Spades:
		return "♠"
	case Hearts:
		return "♥"
	default:
		return "?"
	}
}

// Rank represents a card rank. Two is low, Ace is high.
type Rank int

const (
	Two Rank = iota + 2
	Three
	Four
	Five
	Six
	Seven
	Eight
	Nine
	Ten
	Jack
	Queen
	King
	Ace
)

// String returns the string representation of a rank
func (r Rank) String() string {
	switch r {
	case Ten:
		return "T"
	case Jack:
		return "J"
	case Queen:
		return "Q"
	case King:
		return "K"
	case Ace:
		return "A"
	default:
		if r >= Two && r <= Nine {
			return fmt.Sprintf("%d", int(r))
		}
		return "?"
	}
}

// Card represents a playing card
type Card struct {
	Rank Rank
	Suit Suit
}

// NewCard creates a new card
func NewCard(rank Rank, suit Suit) Card {
	return Card{Rank: rank, Suit: suit}
}

// String returns the string representation of a card (e.g., "Q♠")
func (c Card) String() string {
	return fmt.Sprintf("%s%s", c.Rank, c.Suit)
}

// Points returns the card's score value under 101 rules: every heart is
// worth 1, the ten of diamonds 10, the queen of spades 13, everything
// else 0. The point cards in a full deck total exactly 36.
func (c Card) Points() int {
	switch {
	case c.Suit == Hearts:
		return 1
	case c.Suit == Diamonds && c.Rank == Ten:
		return 10
	case c.Suit == Spades && c.Rank == Queen:
		return 13
	default:
		return 0
	}
}

// IsPointCard returns true if the card carries any score value
func (c Card) IsPointCard() bool {
	return c.Points() > 0
}

// Beats reports whether c outranks other within the same suit. Cards of
// different suits never beat each other; there is no trump.
func (c Card) Beats(other Card) bool {
	return c.Suit == other.Suit && c.Rank > other.Rank
}

// Code returns the compact two-character form ("qs") used on the wire.
func (c Card) Code() string {
	return strings.ToLower(c.Rank.String()) + suitCode(c.Suit)
}

// MarshalJSON encodes the card as its two-character code.
func (c Card) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.Code())
}

// UnmarshalJSON decodes a two-character card code.
func (c *Card) UnmarshalJSON(data []byte) error {
	var code string
	if err := json.Unmarshal(data, &code); err != nil {
		return err
	}
	parsed, err := ParseCard(code)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

func suitCode(s Suit) string {
	switch s {
	case Clubs:
		return "c"
	case Diamonds:
		return "d"
	case Spades:
		return "s"
	case Hearts:
		return "h"
	default:
		return "?"
	}
}

// ParseCard parses a two-character card string like "qs" or "Th".
func ParseCard(s string) (Card, error) {
	if len(s) != 2 {
		return Card{}, fmt.Errorf("card string must be 2 characters, got %q", s)
	}

	var rank Rank
	switch strings.ToUpper(s[:1]) {
	case "2":
		rank = Two
	case "3":
		rank = Three
	case "4":
		rank = Four
	case "5":
		rank = Five
	case "6":
		rank = Six
	case "7":
		rank = Seven
	case "8":
		rank = Eight
	case "9":
		rank = Nine
	case "T":
		rank = Ten
	case "J":
		rank = Jack
	case "Q":
		rank = Queen
	case "K":
		rank = King
	case "A":
		rank = Ace
	default:
		return Card{}, fmt.Errorf("invalid rank %q", s[:1])
	}

	var suit Suit
	switch strings.ToLower(s[1:]) {
	case "c":
		suit = Clubs
	case "d":
		suit = Diamonds
	case "s":
		suit = Spades
	case "h":
		suit = Hearts
	default:
		return Card{}, fmt.Errorf("invalid suit %q", s[1:])
	}

	return Card{Rank: rank, Suit: suit}, nil
}

// MustParseCard is ParseCard for tests and fixtures; it panics on error.
func MustParseCard(s string) Card {
	c, err := ParseCard(s)
	if err != nil {
		panic(err)
	}
	return c
}

// ParseCards parses a concatenated card string like "qsTh2c".
func ParseCards(s string) ([]Card, error) {
	if len(s)%2 != 0 {
		return nil, fmt.Errorf("card string must have even length, got %d", len(s))
	}

	cards := make([]Card, 0, len(s)/2)
	for i := 0; i < len(s); i += 2 {
		c, err := ParseCard(s[i : i+2])
		if err != nil {
			return nil, err
		}
		cards = append(cards, c)
	}
	return cards, nil
}
