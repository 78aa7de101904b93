package deck

import (
	"errors"
	"fmt"
	rand "math/rand/v2"
	"sort"
)

// DeckSize is the number of cards in a full deck.
const DeckSize = 52

// HandSize is the number of cards dealt to each of the four seats.
const HandSize = 13

// ErrWrongDeckSize is returned by DealHands when the deck does not hold
// exactly 52 cards. Callers treat this as an engine invariant failure.
var ErrWrongDeckSize = errors.New("deck does not contain 52 cards")

// Deck represents a deck of playing cards. A deck lives for one round:
// it is built, shuffled, dealt out entirely, and discarded.
type Deck struct {
	cards []Card
	rng   *rand.Rand
}

// New creates a full 52-card deck using the provided RNG for shuffling.
func New(rng *rand.Rand) *Deck {
	d := &Deck{
		cards: make([]Card, 0, DeckSize),
		rng:   rng,
	}
	for _, suit := range Suits {
		for rank := Two; rank <= Ace; rank++ {
			d.cards = append(d.cards, NewCard(rank, suit))
		}
	}
	return d
}

// Shuffle randomizes the order of cards in the deck.
func (d *Deck) Shuffle() {
	d.rng.Shuffle(len(d.cards), func(i, j int) {
		d.cards[i], d.cards[j] = d.cards[j], d.cards[i]
	})
}

// Size returns the number of cards currently in the deck.
func (d *Deck) Size() int {
	return len(d.cards)
}

// DealHands deals the entire deck round-robin into four sorted 13-card
// hands, consuming the deck. It fails if the deck is not exactly full.
func (d *Deck) DealHands() ([4][]Card, error) {
	var hands [4][]Card
	if len(d.cards) != DeckSize {
		return hands, fmt.Errorf("%w: have %d", ErrWrongDeckSize, len(d.cards))
	}

	for i := range hands {
		hands[i] = make([]Card, 0, HandSize)
	}
	for i, c := range d.cards {
		hands[i%4] = append(hands[i%4], c)
	}
	d.cards = d.cards[:0]

	for i := range hands {
		SortHand(hands[i])
	}
	return hands, nil
}

// SortHand orders cards for display: clubs, diamonds, spades, hearts,
// ascending rank within each suit.
func SortHand(cards []Card) {
	sort.Slice(cards, func(i, j int) bool {
		if cards[i].Suit != cards[j].Suit {
			return cards[i].Suit < cards[j].Suit
		}
		return cards[i].Rank < cards[j].Rank
	})
}
