// Package ai implements the computer strategies for filling empty seats.
// A Strategy is a game.Agent: it is consulted synchronously by the
// session and always answers from the legal set it is given.
package ai

import (
	"fmt"
	rand "math/rand/v2"
	"sort"

	"github.com/charmbracelet/log"
	"github.com/wara2/li5a/internal/deck"
	"github.com/wara2/li5a/internal/game"
)

// Difficulty selects how much thought a strategy puts into its moves.
type Difficulty string

const (
	// Easy plays uniformly random legal moves.
	Easy Difficulty = "easy"
	// Medium ducks when leading, wins cheaply, and dumps points when it
	// cannot win.
	Medium Difficulty = "medium"
	// Hard extends the medium strategy with card counting over every
	// card seen this round.
	Hard Difficulty = "hard"
)

// DefaultDifficulty is used when no difficulty is configured.
const DefaultDifficulty = Medium

// ParseDifficulty converts a config string into a Difficulty.
func ParseDifficulty(s string) (Difficulty, error) {
	switch Difficulty(s) {
	case Easy, Medium, Hard:
		return Difficulty(s), nil
	case "":
		return DefaultDifficulty, nil
	default:
		return "", fmt.Errorf("unknown difficulty %q (want easy, medium or hard)", s)
	}
}

// Strategy plays one seat. It is not safe for concurrent use; each seat
// gets its own instance, consulted only from the session goroutine.
type Strategy struct {
	difficulty Difficulty
	rng        *rand.Rand
	logger     *log.Logger
}

// New creates a strategy of the given difficulty. The RNG is shared
// with the owning session so games are reproducible from one seed.
func New(difficulty Difficulty, rng *rand.Rand, logger *log.Logger) *Strategy {
	return &Strategy{
		difficulty: difficulty,
		rng:        rng,
		logger:     logger.WithPrefix("ai").With("difficulty", difficulty),
	}
}

// Factory wraps New as a seat-filling factory for game.Config. Bot
// names are drawn without replacement so a table never seats two
// bots with the same name.
func Factory(difficulty Difficulty, logger *log.Logger) game.AIFactory {
	used := make(map[string]bool)
	return func(seat game.Seat, rng *rand.Rand) (string, game.Agent) {
		name := pickName(rng, used)
		used[name] = true
		return name, New(difficulty, rng, logger)
	}
}

// ChooseCard picks a card from the legal set.
func (s *Strategy) ChooseCard(view game.TableView, legal []deck.Card) (deck.Card, error) {
	if len(legal) == 0 {
		return deck.Card{}, fmt.Errorf("empty legal set for seat %s", view.Seat)
	}

	var card deck.Card
	switch s.difficulty {
	case Easy:
		card = legal[s.rng.IntN(len(legal))]
	case Hard:
		card = s.chooseHard(view, legal)
	default:
		card = s.chooseMedium(view, legal)
	}

	s.logger.Debug("chose card", "seat", view.Seat, "card", card)
	return card, nil
}

// ChooseGift picks three cards to pass.
func (s *Strategy) ChooseGift(view game.TableView) ([]deck.Card, error) {
	if len(view.Hand) < game.GiftSize {
		return nil, fmt.Errorf("seat %s cannot gift from a %d-card hand", view.Seat, len(view.Hand))
	}

	var gift []deck.Card
	switch s.difficulty {
	case Easy:
		gift = s.giftRandom(view.Hand)
	default:
		if view.Seat.Team() == view.GiftRecipient.Team() {
			gift = giftToTeammate(view.Hand)
		} else {
			gift = giftToOpponent(view.Hand)
		}
	}

	s.logger.Debug("chose gift", "seat", view.Seat, "recipient", view.GiftRecipient)
	return gift, nil
}

// chooseMedium implements the basic strategy: duck when leading, win as
// cheaply as possible when following, and shed points when the trick is
// already lost.
func (s *Strategy) chooseMedium(view game.TableView, legal []deck.Card) deck.Card {
	led, leading := view.LedSuit()
	if !leading {
		return leadLow(legal)
	}

	if allOfSuit(legal, led) {
		// Forced to follow.
		if winners := winningCards(legal, view.Trick, led); len(winners) > 0 {
			return lowest(winners)
		}
		return dumpCard(legal)
	}

	// Void in the led suit: shed the most dangerous card.
	return dumpCard(legal)
}

// chooseHard refines the medium strategy with knowledge of which cards
// are still outstanding.
func (s *Strategy) chooseHard(view game.TableView, legal []deck.Card) deck.Card {
	out := outstanding(view)
	led, leading := view.LedSuit()

	if !leading {
		// Lead a guaranteed winner when one exists and carries no
		// points; otherwise fall back to ducking.
		for _, c := range legal {
			if c.Points() == 0 && beatsAll(c, out[c.Suit]) {
				return c
			}
		}
		return leadLow(legal)
	}

	if allOfSuit(legal, led) {
		winners := winningCards(legal, view.Trick, led)
		if len(winners) == 0 {
			return dumpCard(legal)
		}
		// Taking a spade trick with a card above the queen while the
		// queen is still out risks 13 points. Duck instead if we can.
		if led == deck.Spades && outstandingQueenOfSpades(view) {
			queen := deck.NewCard(deck.Queen, deck.Spades)
			safe := filterCards(winners, func(c deck.Card) bool { return !c.Beats(queen) })
			if len(safe) > 0 {
				return lowest(safe)
			}
			if losers := filterCards(legal, func(c deck.Card) bool { return !containsCard(winners, c) }); len(losers) > 0 {
				return lowest(losers)
			}
		}
		// Last to play: nothing can overtake us, win cheap. Earlier in
		// the trick, prefer a winner no outstanding card can beat.
		if view.Trick.Len() == 3 {
			return lowest(winners)
		}
		for _, w := range sortedByRank(winners) {
			if beatsAll(w, out[led]) {
				return w
			}
		}
		return lowest(winners)
	}

	return dumpCard(legal)
}

// leadLow plays the lowest non-point card, or the lowest-value card when
// the hand is all points.
func leadLow(legal []deck.Card) deck.Card {
	nonPoint := filterCards(legal, func(c deck.Card) bool { return c.Points() == 0 })
	if len(nonPoint) > 0 {
		return lowest(nonPoint)
	}
	sorted := append([]deck.Card(nil), legal...)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Points() != sorted[j].Points() {
			return sorted[i].Points() < sorted[j].Points()
		}
		return sorted[i].Rank < sorted[j].Rank
	})
	return sorted[0]
}

// dumpCard sheds the highest-point card, breaking ties toward higher
// ranks so dangerous high cards leave the hand first.
func dumpCard(legal []deck.Card) deck.Card {
	best := legal[0]
	for _, c := range legal[1:] {
		if c.Points() > best.Points() || (c.Points() == best.Points() && c.Rank > best.Rank) {
			best = c
		}
	}
	return best
}

// winningCards returns the legal cards that currently take the trick.
func winningCards(legal []deck.Card, trick game.Trick, led deck.Suit) []deck.Card {
	high := deck.Card{}
	haveHigh := false
	for _, p := range trick.Plays {
		if p.Card.Suit == led && (!haveHigh || p.Card.Beats(high)) {
			high = p.Card
			haveHigh = true
		}
	}
	if !haveHigh {
		return append([]deck.Card(nil), legal...)
	}
	return filterCards(legal, func(c deck.Card) bool { return c.Beats(high) })
}

// outstanding maps each suit to the cards not yet seen and not in our
// hand, i.e. the cards other seats may still hold.
func outstanding(view game.TableView) map[deck.Suit][]deck.Card {
	gone := make(map[deck.Card]bool, len(view.SeenCards)+len(view.Hand))
	for _, c := range view.SeenCards {
		gone[c] = true
	}
	for _, c := range view.Hand {
		gone[c] = true
	}

	out := make(map[deck.Suit][]deck.Card, 4)
	for _, suit := range deck.Suits {
		for r := deck.Two; r <= deck.Ace; r++ {
			c := deck.NewCard(r, suit)
			if !gone[c] {
				out[suit] = append(out[suit], c)
			}
		}
	}
	return out
}

func outstandingQueenOfSpades(view game.TableView) bool {
	queen := deck.NewCard(deck.Queen, deck.Spades)
	for _, c := range view.SeenCards {
		if c == queen {
			return false
		}
	}
	for _, c := range view.Hand {
		if c == queen {
			return false
		}
	}
	for _, p := range view.Trick.Plays {
		if p.Card == queen {
			return false
		}
	}
	return true
}

func beatsAll(c deck.Card, others []deck.Card) bool {
	for _, o := range others {
		if !c.Beats(o) {
			return false
		}
	}
	return true
}

func allOfSuit(cards []deck.Card, suit deck.Suit) bool {
	for _, c := range cards {
		if c.Suit != suit {
			return false
		}
	}
	return true
}

func lowest(cards []deck.Card) deck.Card {
	best := cards[0]
	for _, c := range cards[1:] {
		if c.Rank < best.Rank {
			best = c
		}
	}
	return best
}

func sortedByRank(cards []deck.Card) []deck.Card {
	out := append([]deck.Card(nil), cards...)
	sort.Slice(out, func(i, j int) bool { return out[i].Rank < out[j].Rank })
	return out
}

func filterCards(cards []deck.Card, keep func(deck.Card) bool) []deck.Card {
	var out []deck.Card
	for _, c := range cards {
		if keep(c) {
			out = append(out, c)
		}
	}
	return out
}

func containsCard(cards []deck.Card, card deck.Card) bool {
	for _, c := range cards {
		if c == card {
			return true
		}
	}
	return false
}

// giftRandom picks three distinct cards at random.
func (s *Strategy) giftRandom(hand []deck.Card) []deck.Card {
	perm := s.rng.Perm(len(hand))
	return []deck.Card{hand[perm[0]], hand[perm[1]], hand[perm[2]]}
}

// giftToTeammate passes strong trick-winning cards: high ranks first,
// preferring those that carry no points.
func giftToTeammate(hand []deck.Card) []deck.Card {
	sorted := append([]deck.Card(nil), hand...)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Rank != sorted[j].Rank {
			return sorted[i].Rank > sorted[j].Rank
		}
		return sorted[i].Points() < sorted[j].Points()
	})
	return sorted[:game.GiftSize]
}

// giftToOpponent unloads the most expensive cards, padding with the
// lowest ranks when the hand holds fewer than three point cards.
func giftToOpponent(hand []deck.Card) []deck.Card {
	sorted := append([]deck.Card(nil), hand...)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Points() != sorted[j].Points() {
			return sorted[i].Points() > sorted[j].Points()
		}
		return sorted[i].Rank < sorted[j].Rank
	})

	gift := make([]deck.Card, 0, game.GiftSize)
	for _, c := range sorted {
		if c.Points() > 0 && len(gift) < game.GiftSize {
			gift = append(gift, c)
		}
	}
	if len(gift) == game.GiftSize {
		return gift
	}

	rest := filterCards(hand, func(c deck.Card) bool { return !containsCard(gift, c) })
	sort.Slice(rest, func(i, j int) bool { return rest[i].Rank < rest[j].Rank })
	return append(gift, rest[:game.GiftSize-len(gift)]...)
}
