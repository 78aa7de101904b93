package game

import (
	"sync"
	"time"

	"github.com/wara2/li5a/internal/deck"
)

// EventType identifies a session event.
type EventType string

const (
	EventTypeHandDealt      EventType = "hand_dealt"
	EventTypeCardPlayed     EventType = "card_played"
	EventTypeTrickCompleted EventType = "trick_completed"
	EventTypeRoundSettled   EventType = "round_settled"
	EventTypeGameOver       EventType = "game_over"
	EventTypeIllegalAttempt EventType = "illegal_attempt"
	EventTypePhaseChanged   EventType = "phase_changed"
	EventTypeMoveRequested  EventType = "move_requested"
	EventTypeGiftRequested  EventType = "gift_requested"
)

// String returns the string representation of the event type
func (et EventType) String() string {
	return string(et)
}

// Event is anything the session announces to its subscribers. The engine
// performs no I/O itself; transports and renderers consume these.
type Event interface {
	EventType() EventType
	Timestamp() time.Time
}

type stamped struct {
	at time.Time
}

func (s stamped) Timestamp() time.Time { return s.at }

func stamp() stamped { return stamped{at: time.Now()} }

// HandDealtEvent is published per seat after dealing and again after the
// gift exchange updates the hand. Hand contents are private to the seat;
// subscribers are responsible for routing.
type HandDealtEvent struct {
	Seat Seat
	Hand []deck.Card
	stamped
}

func (e HandDealtEvent) EventType() EventType { return EventTypeHandDealt }

// NewHandDealtEvent creates a hand dealt event with a defensive copy.
func NewHandDealtEvent(seat Seat, hand []deck.Card) HandDealtEvent {
	h := make([]deck.Card, len(hand))
	copy(h, hand)
	return HandDealtEvent{Seat: seat, Hand: h, stamped: stamp()}
}

// CardPlayedEvent is published after each accepted play.
type CardPlayedEvent struct {
	Seat  Seat
	Card  deck.Card
	Trick Trick
	stamped
}

func (e CardPlayedEvent) EventType() EventType { return EventTypeCardPlayed }

// NewCardPlayedEvent creates a card played event.
func NewCardPlayedEvent(seat Seat, card deck.Card, trick Trick) CardPlayedEvent {
	return CardPlayedEvent{Seat: seat, Card: card, Trick: trick, stamped: stamp()}
}

// TrickCompletedEvent is published when a trick resolves.
type TrickCompletedEvent struct {
	Number int // 1-based trick number within the round
	Result TrickResult
	stamped
}

func (e TrickCompletedEvent) EventType() EventType { return EventTypeTrickCompleted }

// NewTrickCompletedEvent creates a trick completed event.
func NewTrickCompletedEvent(number int, result TrickResult) TrickCompletedEvent {
	return TrickCompletedEvent{Number: number, Result: result, stamped: stamp()}
}

// RoundSettledEvent is published when a round's points are folded into
// the cumulative team scores.
type RoundSettledEvent struct {
	RoundPoints [2]int
	TotalScores [2]int
	stamped
}

func (e RoundSettledEvent) EventType() EventType { return EventTypeRoundSettled }

// NewRoundSettledEvent creates a round settled event.
func NewRoundSettledEvent(roundPoints, totals [2]int) RoundSettledEvent {
	return RoundSettledEvent{RoundPoints: roundPoints, TotalScores: totals, stamped: stamp()}
}

// GameOverEvent is published exactly once, when the session terminates.
// LosingTeam is set for a score-based finish; Draw means both teams
// crossed 101 in the same settlement; Aborted means the game was ended
// by command or by a fatal engine error (Reason carries diagnostics).
type GameOverEvent struct {
	LosingTeam  *Team
	Draw        bool
	Aborted     bool
	Reason      string
	TotalScores [2]int
	stamped
}

func (e GameOverEvent) EventType() EventType { return EventTypeGameOver }

// IllegalAttemptEvent is published when a seat submits a move or gift
// that violates the rules. The seat is re-prompted; state is unchanged.
type IllegalAttemptEvent struct {
	Seat   Seat
	Reason string
	stamped
}

func (e IllegalAttemptEvent) EventType() EventType { return EventTypeIllegalAttempt }

// PhaseChangedEvent is published on every state machine transition.
type PhaseChangedEvent struct {
	From Phase
	To   Phase
	stamped
}

func (e PhaseChangedEvent) EventType() EventType { return EventTypePhaseChanged }

// MoveRequestedEvent is published when the session starts waiting for a
// seat's card. Legal is private to the seat, like hand contents.
type MoveRequestedEvent struct {
	Seat  Seat
	Legal []deck.Card
	stamped
}

func (e MoveRequestedEvent) EventType() EventType { return EventTypeMoveRequested }

// NewMoveRequestedEvent creates a move requested event with a defensive copy.
func NewMoveRequestedEvent(seat Seat, legal []deck.Card) MoveRequestedEvent {
	l := make([]deck.Card, len(legal))
	copy(l, legal)
	return MoveRequestedEvent{Seat: seat, Legal: l, stamped: stamp()}
}

// GiftRequestedEvent is published when the session starts waiting for a
// seat's gift selection.
type GiftRequestedEvent struct {
	Seat      Seat
	Recipient Seat
	stamped
}

func (e GiftRequestedEvent) EventType() EventType { return EventTypeGiftRequested }

// Subscriber receives session events.
type Subscriber interface {
	OnEvent(event Event)
}

// EventBus fans session events out to subscribers. Publishing happens
// from the session's own goroutine; subscription may happen from any.
type EventBus struct {
	mu          sync.RWMutex
	subscribers []Subscriber
}

// NewEventBus creates an empty event bus.
func NewEventBus() *EventBus {
	return &EventBus{}
}

// Subscribe adds a subscriber.
func (b *EventBus) Subscribe(sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers = append(b.subscribers, sub)
}

// Unsubscribe removes a subscriber.
func (b *EventBus) Unsubscribe(sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, s := range b.subscribers {
		if s == sub {
			b.subscribers = append(b.subscribers[:i], b.subscribers[i+1:]...)
			return
		}
	}
}

// Publish delivers the event to all subscribers synchronously.
func (b *EventBus) Publish(event Event) {
	b.mu.RLock()
	subs := make([]Subscriber, len(b.subscribers))
	copy(subs, b.subscribers)
	b.mu.RUnlock()

	for _, sub := range subs {
		sub.OnEvent(event)
	}
}
