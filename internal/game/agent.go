package game

import (
	"encoding/json"
	"fmt"

	"github.com/wara2/li5a/internal/deck"
)

// TableView is the read-only snapshot an agent sees when deciding.
// It contains only information the seat is entitled to: its own hand,
// the public trick, everything played so far this round, and the scores.
type TableView struct {
	Seat          Seat
	Hand          []deck.Card
	Trick         Trick
	TricksPlayed  int
	SeenCards     []deck.Card
	RoundPoints   [2]int
	TotalScores   [2]int
	GiftRecipient Seat
}

// LedSuit returns the current trick's led suit, if any.
func (v TableView) LedSuit() (deck.Suit, bool) {
	return v.Trick.LedSuit()
}

// Agent is any entity (human or AI) that can decide for a seat. Agents
// receive immutable state and return a selection; all hand mutation is
// performed by the round engine so there is a single mutation path.
type Agent interface {
	// ChooseCard picks one card from the legal set.
	ChooseCard(view TableView, legal []deck.Card) (deck.Card, error)

	// ChooseGift picks exactly three distinct cards from the hand to
	// pass to the counterclockwise neighbour.
	ChooseGift(view TableView) ([]deck.Card, error)
}

// PlayerKind distinguishes the two participant variants.
type PlayerKind int

const (
	KindHuman PlayerKind = iota
	KindAI
)

// String returns the string representation of a player kind
func (k PlayerKind) String() string {
	if k == KindHuman {
		return "human"
	}
	return "ai"
}

// MarshalJSON encodes the kind by name.
func (k PlayerKind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// UnmarshalJSON decodes the kind from its name.
func (k *PlayerKind) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	switch s {
	case "human":
		*k = KindHuman
	case "ai":
		*k = KindAI
	default:
		return fmt.Errorf("unknown player kind %q", s)
	}
	return nil
}

// Player binds a seat to its participant and decision agent. The hand
// itself lives in the Round; the player object only routes decisions.
type Player struct {
	Seat  Seat
	Kind  PlayerKind
	Name  string
	Ref   string // external participant reference; empty for AI
	Agent Agent

	human *HumanAgent // non-nil iff Kind == KindHuman
}

// PlayerInfo is the externally visible description of a seated player.
type PlayerInfo struct {
	Seat Seat       `json:"seat"`
	Kind PlayerKind `json:"kind"`
	Name string     `json:"name"`
}
