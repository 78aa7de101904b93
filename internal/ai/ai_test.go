package ai

import (
	"io"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/wara2/li5a/internal/deck"
	"github.com/wara2/li5a/internal/game"
	"github.com/wara2/li5a/internal/randutil"
)

func testLogger() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{})
}

func mustCards(t *testing.T, s string) []deck.Card {
	t.Helper()
	cards, err := deck.ParseCards(s)
	if err != nil {
		t.Fatal(err)
	}
	return cards
}

// playFullRound drives one complete round with four strategies of the
// given difficulty and fails on any illegal decision.
func playFullRound(t *testing.T, difficulty Difficulty, seed int64) {
	t.Helper()
	rng := randutil.New(seed)
	d := deck.New(rng)
	d.Shuffle()
	hands, err := d.DealHands()
	if err != nil {
		t.Fatal(err)
	}
	round, err := game.NewRound(hands)
	if err != nil {
		t.Fatal(err)
	}

	var agents [4]*Strategy
	for i := range agents {
		agents[i] = New(difficulty, rng, testLogger())
	}

	view := func(seat game.Seat) game.TableView {
		return game.TableView{
			Seat:          seat,
			Hand:          round.Hand(seat),
			Trick:         round.CurrentTrick(),
			TricksPlayed:  round.TricksPlayed(),
			SeenCards:     round.SeenCards(),
			GiftRecipient: seat.GiftRecipient(),
		}
	}

	for _, seat := range game.Seats {
		gift, err := agents[seat].ChooseGift(view(seat))
		if err != nil {
			t.Fatalf("seed %d: ChooseGift(%s): %v", seed, seat, err)
		}
		if err := round.SetGift(seat, gift); err != nil {
			t.Fatalf("seed %d: %s gift rejected: %v", seed, seat, err)
		}
	}
	if err := round.ApplyGifts(); err != nil {
		t.Fatal(err)
	}
	round.SetLeader(game.Seat(rng.IntN(4)))

	for !round.Complete() {
		seat := round.Turn()
		legal := round.LegalMoves(seat)
		card, err := agents[seat].ChooseCard(view(seat), legal)
		if err != nil {
			t.Fatalf("seed %d: ChooseCard(%s): %v", seed, seat, err)
		}
		if _, err := round.PlayCard(seat, card); err != nil {
			t.Fatalf("seed %d: %s played illegal %s: %v", seed, seat, card, err)
		}
	}

	a, b := round.TeamPoints()
	if a+b != game.RoundPointTotal {
		t.Fatalf("seed %d: round total %d, want %d", seed, a+b, game.RoundPointTotal)
	}
}

func TestStrategiesAlwaysLegal(t *testing.T) {
	for _, difficulty := range []Difficulty{Easy, Medium, Hard} {
		t.Run(string(difficulty), func(t *testing.T) {
			for seed := int64(1); seed <= 200; seed++ {
				playFullRound(t, difficulty, seed)
			}
		})
	}
}

func TestMediumLeadsLowNonPoint(t *testing.T) {
	s := New(Medium, randutil.New(1), testLogger())
	legal := mustCards(t, "qsah2c9d")
	view := game.TableView{Seat: game.Top, Hand: legal}

	card, err := s.ChooseCard(view, legal)
	if err != nil {
		t.Fatal(err)
	}
	if card != deck.MustParseCard("2c") {
		t.Errorf("lead = %s, want 2c", card)
	}
}

func TestMediumWinsCheaply(t *testing.T) {
	s := New(Medium, randutil.New(1), testLogger())
	var trick game.Trick
	trick.Add(game.Top, deck.MustParseCard("5h"))
	legal := mustCards(t, "2h9hah")
	view := game.TableView{Seat: game.Right, Hand: legal, Trick: trick}

	card, err := s.ChooseCard(view, legal)
	if err != nil {
		t.Fatal(err)
	}
	if card != deck.MustParseCard("9h") {
		t.Errorf("follow = %s, want lowest winner 9h", card)
	}
}

func TestMediumDumpsWhenBeaten(t *testing.T) {
	s := New(Medium, randutil.New(1), testLogger())
	var trick game.Trick
	trick.Add(game.Top, deck.MustParseCard("ah"))
	legal := mustCards(t, "2h9h")
	view := game.TableView{Seat: game.Right, Hand: legal, Trick: trick}

	card, err := s.ChooseCard(view, legal)
	if err != nil {
		t.Fatal(err)
	}
	if card != deck.MustParseCard("9h") {
		t.Errorf("dump = %s, want 9h", card)
	}
}

func TestMediumDumpsPointsWhenVoid(t *testing.T) {
	s := New(Medium, randutil.New(1), testLogger())
	var trick game.Trick
	trick.Add(game.Top, deck.MustParseCard("5d"))
	legal := mustCards(t, "qs2cth")
	view := game.TableView{Seat: game.Right, Hand: legal, Trick: trick}

	card, err := s.ChooseCard(view, legal)
	if err != nil {
		t.Fatal(err)
	}
	if card != deck.MustParseCard("qs") {
		t.Errorf("void dump = %s, want qs", card)
	}
}

func TestHardDucksUnderOutstandingQueen(t *testing.T) {
	s := New(Hard, randutil.New(1), testLogger())
	var trick game.Trick
	trick.Add(game.Top, deck.MustParseCard("2s"))
	legal := mustCards(t, "3sas")
	view := game.TableView{Seat: game.Right, Hand: legal, Trick: trick}

	card, err := s.ChooseCard(view, legal)
	if err != nil {
		t.Fatal(err)
	}
	// The queen of spades is unseen; winning with the ace invites it.
	if card != deck.MustParseCard("3s") {
		t.Errorf("play = %s, want 3s", card)
	}
}

func TestHardTakesTrickWhenQueenIsGone(t *testing.T) {
	s := New(Hard, randutil.New(1), testLogger())
	var trick game.Trick
	trick.Add(game.Top, deck.MustParseCard("2s"))
	trick.Add(game.Right, deck.MustParseCard("qs"))
	trick.Add(game.Bottom, deck.MustParseCard("7s"))
	legal := mustCards(t, "3sas")
	view := game.TableView{Seat: game.Left, Hand: legal, Trick: trick}

	card, err := s.ChooseCard(view, legal)
	if err != nil {
		t.Fatal(err)
	}
	// The queen is already on the table, so there is nothing left to
	// duck from; the cheapest winner takes the trick.
	if card != deck.MustParseCard("as") {
		t.Errorf("play = %s, want as", card)
	}
}

func TestHardLeadsSureWinner(t *testing.T) {
	s := New(Hard, randutil.New(1), testLogger())

	// Every spade except the ace in hand and the deuce has been seen,
	// so the ace cannot lose a spade trick.
	var seen []deck.Card
	for r := deck.Three; r <= deck.King; r++ {
		seen = append(seen, deck.NewCard(r, deck.Spades))
	}
	seen = append(seen, deck.MustParseCard("qh"))
	legal := mustCards(t, "as2c")
	view := game.TableView{Seat: game.Top, Hand: legal, SeenCards: seen}

	card, err := s.ChooseCard(view, legal)
	if err != nil {
		t.Fatal(err)
	}
	if card != deck.MustParseCard("as") {
		t.Errorf("lead = %s, want sure winner as", card)
	}
}

func TestGiftToTeammatePassesHighCards(t *testing.T) {
	hand := mustCards(t, "2c3c4ckhas5d6d7d8dqs9c2h3h")
	gift := giftToTeammate(hand)

	want := map[deck.Card]bool{
		deck.MustParseCard("as"): true,
		deck.MustParseCard("kh"): true,
		deck.MustParseCard("qs"): true,
	}
	for _, c := range gift {
		if !want[c] {
			t.Errorf("teammate gift contains %s", c)
		}
	}
}

func TestGiftToOpponentPassesPoints(t *testing.T) {
	hand := mustCards(t, "qstd2h3c4c5c6c7c8c9ctcjckc")
	gift := giftToOpponent(hand)

	want := map[deck.Card]bool{
		deck.MustParseCard("qs"): true,
		deck.MustParseCard("td"): true,
		deck.MustParseCard("2h"): true,
	}
	for _, c := range gift {
		if !want[c] {
			t.Errorf("opponent gift contains %s", c)
		}
	}
}

func TestGiftToOpponentPadsWithLowCards(t *testing.T) {
	hand := mustCards(t, "td3c4c5c6c7c8c9ctcjcqckcac")
	gift := giftToOpponent(hand)

	want := map[deck.Card]bool{
		deck.MustParseCard("td"): true,
		deck.MustParseCard("3c"): true,
		deck.MustParseCard("4c"): true,
	}
	for _, c := range gift {
		if !want[c] {
			t.Errorf("padded gift contains %s", c)
		}
	}
}

func TestGiftSelectionsAreValid(t *testing.T) {
	rng := randutil.New(33)
	for _, difficulty := range []Difficulty{Easy, Medium, Hard} {
		s := New(difficulty, rng, testLogger())
		for seed := int64(1); seed <= 50; seed++ {
			d := deck.New(randutil.New(seed))
			d.Shuffle()
			hands, err := d.DealHands()
			if err != nil {
				t.Fatal(err)
			}
			for _, seat := range game.Seats {
				view := game.TableView{
					Seat:          seat,
					Hand:          hands[seat],
					GiftRecipient: seat.GiftRecipient(),
				}
				gift, err := s.ChooseGift(view)
				if err != nil {
					t.Fatal(err)
				}
				if len(gift) != game.GiftSize {
					t.Fatalf("%s gift size = %d", difficulty, len(gift))
				}
				seenGift := make(map[deck.Card]bool)
				for _, c := range gift {
					if seenGift[c] {
						t.Fatalf("%s gift repeats %s", difficulty, c)
					}
					seenGift[c] = true
					if !containsCard(hands[seat], c) {
						t.Fatalf("%s gifted unheld %s", difficulty, c)
					}
				}
			}
		}
	}
}

func TestFactoryAssignsDistinctNames(t *testing.T) {
	factory := Factory(Medium, testLogger())
	rng := randutil.New(5)

	names := make(map[string]bool)
	for _, seat := range game.Seats {
		name, agent := factory(seat, rng)
		if agent == nil {
			t.Fatal("factory returned nil agent")
		}
		if names[name] {
			t.Errorf("name %q assigned twice", name)
		}
		names[name] = true
	}
}

func TestParseDifficulty(t *testing.T) {
	tests := []struct {
		in      string
		want    Difficulty
		wantErr bool
	}{
		{"easy", Easy, false},
		{"medium", Medium, false},
		{"hard", Hard, false},
		{"", DefaultDifficulty, false},
		{"brutal", "", true},
	}
	for _, tt := range tests {
		got, err := ParseDifficulty(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseDifficulty(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && got != tt.want {
			t.Errorf("ParseDifficulty(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}
