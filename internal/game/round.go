package game

import (
	"fmt"

	"github.com/wara2/li5a/internal/deck"
)

// TricksPerRound is the number of tricks in a full round.
const TricksPerRound = 13

// GiftSize is the number of cards each seat passes during gifting.
const GiftSize = 3

// RoundPointTotal is the number of points a completed round always
// awards across both teams: 13 hearts at 1, the ten of diamonds at 10
// and the queen of spades at 13.
const RoundPointTotal = 36

// TrickResult describes a resolved trick.
type TrickResult struct {
	Trick  Trick
	Winner Seat
	Points int
}

// Round holds all state for one 13-trick cycle: the four hands, pending
// gift selections, the trick in progress, completed tricks, and the
// points each team has accumulated this round. All mutation of hands
// goes through the round; player objects never touch cards themselves.
type Round struct {
	hands   [4][]deck.Card
	gifts   [4][]deck.Card
	gifted  [4]bool
	current Trick
	played  []TrickResult
	seen    []deck.Card
	leader  Seat
	turn    Seat
	points  [2]int
}

// NewRound builds a round from freshly dealt hands. The leader of the
// first trick is set separately once gifting completes.
func NewRound(hands [4][]deck.Card) (*Round, error) {
	for seat, hand := range hands {
		if len(hand) != deck.HandSize {
			return nil, invariantf("deal", "seat %s dealt %d cards, want %d", Seat(seat), len(hand), deck.HandSize)
		}
	}
	return &Round{hands: hands}, nil
}

// Hand returns a copy of the seat's current hand.
func (r *Round) Hand(seat Seat) []deck.Card {
	hand := make([]deck.Card, len(r.hands[seat]))
	copy(hand, r.hands[seat])
	return hand
}

// Holds reports whether the seat currently holds the card.
func (r *Round) Holds(seat Seat, card deck.Card) bool {
	for _, c := range r.hands[seat] {
		if c == card {
			return true
		}
	}
	return false
}

// LegalMoves computes the set of cards the seat may play to the current
// trick: all held cards of the led suit, or the whole hand when leading
// or when void in the led suit. The result is non-empty whenever the
// hand is non-empty.
func (r *Round) LegalMoves(seat Seat) []deck.Card {
	return LegalMoves(r.hands[seat], &r.current)
}

// LegalMoves is the pure form of the follow-suit rule, shared with the
// AI strategies.
func LegalMoves(hand []deck.Card, trick *Trick) []deck.Card {
	led, ok := trick.LedSuit()
	if !ok {
		// Leading: any card may be played.
		out := make([]deck.Card, len(hand))
		copy(out, hand)
		return out
	}

	var follow []deck.Card
	for _, c := range hand {
		if c.Suit == led {
			follow = append(follow, c)
		}
	}
	if len(follow) > 0 {
		return follow
	}

	out := make([]deck.Card, len(hand))
	copy(out, hand)
	return out
}

// Turn returns the seat whose play is currently awaited.
func (r *Round) Turn() Seat {
	return r.turn
}

// Leader returns the seat that led (or will lead) the current trick.
func (r *Round) Leader() Seat {
	return r.leader
}

// SetLeader establishes the leader of the next trick. Used once per
// round, after gifting, to seat the randomly chosen first leader.
func (r *Round) SetLeader(seat Seat) {
	r.leader = seat
	r.turn = seat
}

// CurrentTrick returns a copy of the trick in progress.
func (r *Round) CurrentTrick() Trick {
	t := Trick{Plays: make([]Play, len(r.current.Plays))}
	copy(t.Plays, r.current.Plays)
	return t
}

// SeenCards returns every card played so far this round, in play order.
// Strategies use this for card counting.
func (r *Round) SeenCards() []deck.Card {
	out := make([]deck.Card, len(r.seen))
	copy(out, r.seen)
	return out
}

// TricksPlayed returns the number of completed tricks.
func (r *Round) TricksPlayed() int {
	return len(r.played)
}

// Complete reports whether all 13 tricks have been resolved.
func (r *Round) Complete() bool {
	return len(r.played) == TricksPerRound
}

// TeamPoints returns the points each team has taken this round so far.
func (r *Round) TeamPoints() (teamA, teamB int) {
	return r.points[TeamA], r.points[TeamB]
}

// PlayCard validates and applies a card play for the seat whose turn it
// is. When the play completes the trick, the trick is resolved: the
// winner's team is awarded the trick's points and the winner leads next.
// The returned result is non-nil only on trick completion.
func (r *Round) PlayCard(seat Seat, card deck.Card) (*TrickResult, error) {
	if seat != r.turn {
		return nil, ErrOutOfTurn
	}
	if !r.Holds(seat, card) {
		return nil, fmt.Errorf("%w: %s not in hand", ErrIllegalMove, card)
	}

	legal := r.LegalMoves(seat)
	if len(legal) == 0 {
		// Structurally impossible while the hand is non-empty.
		return nil, invariantf("play", "no legal moves for %s with %d cards in hand", seat, len(r.hands[seat]))
	}
	if !containsCard(legal, card) {
		led, _ := r.current.LedSuit()
		return nil, fmt.Errorf("%w: must follow %s", ErrIllegalMove, led)
	}

	r.removeFromHand(seat, card)
	r.current.Add(seat, card)
	r.seen = append(r.seen, card)
	r.turn = r.turn.Next()

	if !r.current.Complete() {
		return nil, nil
	}

	winner, ok := r.current.Winner()
	if !ok {
		return nil, invariantf("trick", "completed trick has no winner: %s", r.current.String())
	}
	result := TrickResult{
		Trick:  r.CurrentTrick(),
		Winner: winner,
		Points: r.current.Points(),
	}
	r.points[winner.Team()] += result.Points
	r.played = append(r.played, result)
	r.current = Trick{}
	r.leader = winner
	r.turn = winner

	if r.Complete() {
		if err := r.checkSettlement(); err != nil {
			return nil, err
		}
	}
	return &result, nil
}

// checkSettlement asserts the round's closing invariants: empty hands
// and the full point total awarded.
func (r *Round) checkSettlement() error {
	for seat, hand := range r.hands {
		if len(hand) != 0 {
			return invariantf("settle", "seat %s still holds %d cards after 13 tricks", Seat(seat), len(hand))
		}
	}
	if total := r.points[TeamA] + r.points[TeamB]; total != RoundPointTotal {
		return invariantf("settle", "round points sum to %d, want %d", total, RoundPointTotal)
	}
	return nil
}

// SetGift records the seat's gift selection: exactly three distinct held
// cards. Selections are collected from all four seats before any hand
// changes, so no seat ever sees another's gift before committing its own.
func (r *Round) SetGift(seat Seat, cards []deck.Card) error {
	if r.gifted[seat] {
		return ErrOutOfTurn
	}
	if err := r.ValidateGift(seat, cards); err != nil {
		return err
	}

	r.gifts[seat] = append([]deck.Card(nil), cards...)
	r.gifted[seat] = true
	return nil
}

// ValidateGift checks a gift selection without committing it.
func (r *Round) ValidateGift(seat Seat, cards []deck.Card) error {
	if len(cards) != GiftSize {
		return fmt.Errorf("%w: got %d", ErrInvalidGiftSize, len(cards))
	}
	for i, c := range cards {
		if !r.Holds(seat, c) {
			return fmt.Errorf("%w: %s not in hand", ErrIllegalMove, c)
		}
		for _, prev := range cards[:i] {
			if prev == c {
				return fmt.Errorf("%w: %s selected twice", ErrDuplicateCard, c)
			}
		}
	}
	return nil
}

// AllGiftsIn reports whether every seat has committed a gift selection.
func (r *Round) AllGiftsIn() bool {
	for _, done := range r.gifted {
		if !done {
			return false
		}
	}
	return true
}

// GiftPending reports whether the seat still owes a gift selection.
func (r *Round) GiftPending(seat Seat) bool {
	return !r.gifted[seat]
}

// ApplyGifts performs the simultaneous exchange: each seat's three cards
// move to its counterclockwise neighbour atomically, leaving every hand
// at 13 cards again. The card multiset across all hands is conserved.
func (r *Round) ApplyGifts() error {
	if !r.AllGiftsIn() {
		return invariantf("gift", "exchange applied before all gifts collected")
	}

	for _, seat := range Seats {
		for _, c := range r.gifts[seat] {
			r.removeFromHand(seat, c)
		}
	}
	for _, seat := range Seats {
		to := seat.GiftRecipient()
		r.hands[to] = append(r.hands[to], r.gifts[seat]...)
	}
	for _, seat := range Seats {
		if len(r.hands[seat]) != deck.HandSize {
			return invariantf("gift", "seat %s holds %d cards after exchange, want %d", seat, len(r.hands[seat]), deck.HandSize)
		}
		deck.SortHand(r.hands[seat])
	}
	return nil
}

func (r *Round) removeFromHand(seat Seat, card deck.Card) {
	hand := r.hands[seat]
	for i, c := range hand {
		if c == card {
			r.hands[seat] = append(hand[:i], hand[i+1:]...)
			return
		}
	}
}

func containsCard(cards []deck.Card, card deck.Card) bool {
	for _, c := range cards {
		if c == card {
			return true
		}
	}
	return false
}
