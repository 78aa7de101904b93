package game

import (
	"strings"

	"github.com/wara2/li5a/internal/deck"
)

// Play is a single card played by a seat within a trick.
type Play struct {
	Seat Seat      `json:"seat"`
	Card deck.Card `json:"card"`
}

// Trick is the ordered sequence of plays for one trick, at most one card
// per seat. The first play's suit is the led suit.
type Trick struct {
	Plays []Play `json:"plays"`
}

// Len returns how many cards have been played to the trick.
func (t Trick) Len() int {
	return len(t.Plays)
}

// Complete reports whether all four seats have played.
func (t Trick) Complete() bool {
	return len(t.Plays) == 4
}

// LedSuit returns the suit of the first card played and whether a card
// has been led at all.
func (t Trick) LedSuit() (deck.Suit, bool) {
	if len(t.Plays) == 0 {
		return 0, false
	}
	return t.Plays[0].Card.Suit, true
}

// Has reports whether the seat has already played to this trick.
func (t Trick) Has(seat Seat) bool {
	for _, p := range t.Plays {
		if p.Seat == seat {
			return true
		}
	}
	return false
}

// Add records a play. The caller has already validated legality.
func (t *Trick) Add(seat Seat, card deck.Card) {
	t.Plays = append(t.Plays, Play{Seat: seat, Card: card})
}

// Winner returns the seat holding the highest card of the led suit.
// Off-suit cards never win regardless of rank; there is no trump. The
// result is independent of play order beyond which card was led: ranks
// are unique within a suit, so ties cannot occur.
func (t Trick) Winner() (Seat, bool) {
	if len(t.Plays) == 0 {
		return 0, false
	}

	best := t.Plays[0]
	for _, p := range t.Plays[1:] {
		if p.Card.Beats(best.Card) {
			best = p
		}
	}
	return best.Seat, true
}

// Points returns the total score value of the cards in the trick.
func (t Trick) Points() int {
	total := 0
	for _, p := range t.Plays {
		total += p.Card.Points()
	}
	return total
}

// Cards returns the cards in play order.
func (t Trick) Cards() []deck.Card {
	cards := make([]deck.Card, len(t.Plays))
	for i, p := range t.Plays {
		cards[i] = p.Card
	}
	return cards
}

// String renders the trick compactly for logs, e.g. "top:7♥ left:K♠".
func (t Trick) String() string {
	parts := make([]string, len(t.Plays))
	for i, p := range t.Plays {
		parts[i] = p.Seat.String() + ":" + p.Card.String()
	}
	return strings.Join(parts, " ")
}
