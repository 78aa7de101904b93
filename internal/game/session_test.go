package game

import (
	"context"
	"errors"
	"fmt"
	"io"
	rand "math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/wara2/li5a/internal/deck"
)

// firstLegalAgent is the simplest possible strategy: play the first
// legal card, gift the first three cards in hand.
type firstLegalAgent struct{}

func (firstLegalAgent) ChooseCard(_ TableView, legal []deck.Card) (deck.Card, error) {
	return legal[0], nil
}

func (firstLegalAgent) ChooseGift(view TableView) ([]deck.Card, error) {
	return []deck.Card{view.Hand[0], view.Hand[1], view.Hand[2]}, nil
}

func firstLegalFactory(seat Seat, _ *rand.Rand) (string, Agent) {
	return fmt.Sprintf("bot-%s", seat), firstLegalAgent{}
}

// eventCollector records every published event and can drive a human
// seat by answering its own prompts. OnEvent runs on the session
// goroutine with no locks held, so submitting from here is safe.
type eventCollector struct {
	mu     sync.Mutex
	events []Event
	hands  map[Seat][]deck.Card

	session   *Session
	humanSeat Seat
	driving   bool
}

func newEventCollector() *eventCollector {
	return &eventCollector{hands: make(map[Seat][]deck.Card)}
}

func (c *eventCollector) OnEvent(e Event) {
	c.mu.Lock()
	c.events = append(c.events, e)
	if hd, ok := e.(HandDealtEvent); ok {
		c.hands[hd.Seat] = hd.Hand
	}
	driving := c.driving
	c.mu.Unlock()

	if !driving {
		return
	}
	switch ev := e.(type) {
	case GiftRequestedEvent:
		if ev.Seat == c.humanSeat {
			hand := c.hand(ev.Seat)
			if err := c.session.SubmitGift(ev.Seat, hand[:GiftSize]); err != nil {
				panic(fmt.Sprintf("SubmitGift: %v", err))
			}
		}
	case MoveRequestedEvent:
		if ev.Seat == c.humanSeat {
			if err := c.session.SubmitMove(ev.Seat, ev.Legal[0]); err != nil {
				panic(fmt.Sprintf("SubmitMove: %v", err))
			}
		}
	}
}

func (c *eventCollector) hand(seat Seat) []deck.Card {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hands[seat]
}

func (c *eventCollector) count(et EventType) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, e := range c.events {
		if e.EventType() == et {
			n++
		}
	}
	return n
}

func (c *eventCollector) gameOver() (GameOverEvent, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range c.events {
		if over, ok := e.(GameOverEvent); ok {
			return over, true
		}
	}
	return GameOverEvent{}, false
}

func testLogger() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{})
}

func waitFinished(t *testing.T, s *Session) {
	t.Helper()
	select {
	case <-s.Finished():
	case <-time.After(10 * time.Second):
		t.Fatal("session did not finish in time")
	}
}

func TestJoinAndLeave(t *testing.T) {
	s := NewSession("t1", Config{Seed: 1, Logger: testLogger(), NewAI: firstLegalFactory})

	seats := make(map[Seat]bool)
	for i := 0; i < 4; i++ {
		seat, err := s.Join(fmt.Sprintf("p%d", i), fmt.Sprintf("player %d", i))
		if err != nil {
			t.Fatalf("join %d: %v", i, err)
		}
		if seats[seat] {
			t.Errorf("seat %s assigned twice", seat)
		}
		seats[seat] = true
	}

	if _, err := s.Join("p5", "fifth"); !errors.Is(err, ErrSessionFull) {
		t.Errorf("fifth join: err = %v, want ErrSessionFull", err)
	}

	// Rejoining with a known ref returns the existing seat.
	seat0, err := s.Join("p0", "player 0")
	if err != nil || !seats[seat0] {
		t.Errorf("rejoin: seat = %s, err = %v", seat0, err)
	}

	if err := s.Leave("p3"); err != nil {
		t.Fatalf("leave: %v", err)
	}
	if err := s.Leave("p3"); !errors.Is(err, ErrNotJoined) {
		t.Errorf("double leave: err = %v, want ErrNotJoined", err)
	}
	if len(s.Players()) != 3 {
		t.Errorf("players = %d after leave, want 3", len(s.Players()))
	}

	// Game verbs are rejected while forming.
	if err := s.SubmitMove(Top, deck.MustParseCard("2c")); !errors.Is(err, ErrWrongPhase) {
		t.Errorf("move while forming: err = %v, want ErrWrongPhase", err)
	}
	if err := s.SubmitGift(Top, nil); !errors.Is(err, ErrWrongPhase) {
		t.Errorf("gift while forming: err = %v, want ErrWrongPhase", err)
	}
}

func TestJoinAfterStartRejected(t *testing.T) {
	s := NewSession("t2", Config{Seed: 2, Logger: testLogger(), NewAI: firstLegalFactory})
	if err := s.Start(); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Join("late", "latecomer"); !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("join after start: err = %v, want ErrAlreadyStarted", err)
	}
	if err := s.Start(); !errors.Is(err, ErrWrongPhase) {
		t.Errorf("double start: err = %v, want ErrWrongPhase", err)
	}
	waitFinished(t, s)
}

func TestStartWithoutPlayersOrFactory(t *testing.T) {
	s := NewSession("t2a", Config{Seed: 2, Logger: testLogger()})
	if err := s.Start(); !errors.Is(err, ErrNotEnoughPlayers) {
		t.Errorf("start with empty seats and no AI: err = %v, want ErrNotEnoughPlayers", err)
	}
	// The failed start must leave the session joinable.
	if _, err := s.Join("p1", "alice"); err != nil {
		t.Errorf("join after failed start: %v", err)
	}
}

func TestBotGameRunsToCompletion(t *testing.T) {
	collector := newEventCollector()
	s := NewSession("t3", Config{Seed: 3, Logger: testLogger(), NewAI: firstLegalFactory})
	s.Bus().Subscribe(collector)

	if err := s.Start(); err != nil {
		t.Fatal(err)
	}
	waitFinished(t, s)

	if s.Phase() != PhaseGameOver {
		t.Fatalf("phase = %s, want game_over", s.Phase())
	}

	over, ok := collector.gameOver()
	if !ok {
		t.Fatal("no game over event published")
	}
	if over.Aborted {
		t.Fatalf("game aborted: %s", over.Reason)
	}
	if over.LosingTeam == nil && !over.Draw {
		t.Fatal("finished game has neither a losing team nor a draw")
	}

	a, b := s.Scores()
	if a < LosingScore && b < LosingScore {
		t.Errorf("scores %d/%d: neither team reached %d", a, b, LosingScore)
	}
	if over.LosingTeam != nil {
		loserScore := a
		if *over.LosingTeam == TeamB {
			loserScore = b
		}
		if loserScore < LosingScore {
			t.Errorf("losing team has %d points, below %d", loserScore, LosingScore)
		}
	}

	rounds := collector.count(EventTypeRoundSettled)
	if rounds == 0 {
		t.Fatal("no rounds settled")
	}
	if got := collector.count(EventTypeTrickCompleted); got != rounds*TricksPerRound {
		t.Errorf("trick events = %d, want %d", got, rounds*TricksPerRound)
	}
	// Hands are announced twice per round: at the deal and after gifting.
	if got := collector.count(EventTypeHandDealt); got != rounds*8 {
		t.Errorf("hand dealt events = %d, want %d", got, rounds*8)
	}
	if got := collector.count(EventTypeIllegalAttempt); got != 0 {
		t.Errorf("%d illegal attempts in a bot-only game", got)
	}
	if got := collector.count(EventTypeGameOver); got != 1 {
		t.Errorf("game over published %d times", got)
	}
}

func TestHumanDrivenGame(t *testing.T) {
	collector := newEventCollector()
	s := NewSession("t4", Config{Seed: 4, Logger: testLogger(), NewAI: firstLegalFactory})

	seat, err := s.Join("human", "alex")
	if err != nil {
		t.Fatal(err)
	}
	collector.session = s
	collector.humanSeat = seat
	collector.driving = true
	s.Bus().Subscribe(collector)

	if err := s.Start(); err != nil {
		t.Fatal(err)
	}
	waitFinished(t, s)

	over, ok := collector.gameOver()
	if !ok || over.Aborted {
		t.Fatalf("game over = %+v, ok = %v", over, ok)
	}
	if got := collector.count(EventTypeIllegalAttempt); got != 0 {
		t.Errorf("%d illegal attempts from a rule-following driver", got)
	}
}

func TestSubmitOutOfTurnRejected(t *testing.T) {
	collector := newEventCollector()
	s := NewSession("t5", Config{
		Seed:        5,
		Logger:      testLogger(),
		NewAI:       firstLegalFactory,
		MoveTimeout: time.Hour,
	})

	seat, err := s.Join("human", "casey")
	if err != nil {
		t.Fatal(err)
	}
	s.Bus().Subscribe(collector)
	if err := s.Start(); err != nil {
		t.Fatal(err)
	}

	// Wait for the session to start prompting gifts, then exercise the
	// rejected paths before answering.
	deadline := time.Now().Add(5 * time.Second)
	for collector.count(EventTypeGiftRequested) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("gift never requested")
		}
		time.Sleep(time.Millisecond)
	}

	if err := s.SubmitMove(seat, deck.MustParseCard("2c")); !errors.Is(err, ErrWrongPhase) {
		t.Errorf("move during gifting: err = %v, want ErrWrongPhase", err)
	}

	hand := collector.hand(seat)
	if err := s.SubmitGift(seat, hand[:2]); !errors.Is(err, ErrInvalidGiftSize) {
		t.Errorf("short gift: err = %v, want ErrInvalidGiftSize", err)
	}

	// AI seats cannot be driven from outside.
	for _, other := range Seats {
		if other != seat {
			if err := s.SubmitGift(other, nil); !errors.Is(err, ErrOutOfTurn) {
				t.Errorf("gift for bot seat %s: err = %v, want ErrOutOfTurn", other, err)
			}
		}
	}

	s.End()
	waitFinished(t, s)
}

func TestEndAbortsRunningGame(t *testing.T) {
	collector := newEventCollector()
	s := NewSession("t6", Config{
		Seed:        6,
		Logger:      testLogger(),
		NewAI:       firstLegalFactory,
		MoveTimeout: time.Hour, // human never answers, never times out
	})
	if _, err := s.Join("human", "sam"); err != nil {
		t.Fatal(err)
	}
	s.Bus().Subscribe(collector)

	if err := s.Start(); err != nil {
		t.Fatal(err)
	}
	s.End()
	waitFinished(t, s)

	over, ok := collector.gameOver()
	if !ok {
		t.Fatal("no game over event after End")
	}
	if !over.Aborted {
		t.Error("game over event not marked aborted")
	}
	if s.Phase() != PhaseGameOver {
		t.Errorf("phase = %s, want game_over", s.Phase())
	}
}

func TestEndBeforeStart(t *testing.T) {
	collector := newEventCollector()
	s := NewSession("t7", Config{Seed: 7, Logger: testLogger()})
	s.Bus().Subscribe(collector)

	s.End()
	waitFinished(t, s)

	over, ok := collector.gameOver()
	if !ok || !over.Aborted {
		t.Fatalf("game over = %+v, ok = %v; want aborted", over, ok)
	}
}

func TestTimeoutAbortPolicy(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	mock := quartz.NewMock(t)
	trap := mock.Trap().AfterFunc()
	defer trap.Close()

	collector := newEventCollector()
	s := NewSession("t8", Config{
		Seed:          8,
		Logger:        testLogger(),
		NewAI:         firstLegalFactory,
		Clock:         mock,
		MoveTimeout:   30 * time.Second,
		TimeoutPolicy: TimeoutAbort,
	})
	if _, err := s.Join("human", "riley"); err != nil {
		t.Fatal(err)
	}
	s.Bus().Subscribe(collector)

	if err := s.Start(); err != nil {
		t.Fatal(err)
	}

	// The human's first prompt arms the timeout timer; fire it.
	call := trap.MustWait(ctx)
	call.MustRelease(ctx)
	mock.Advance(30 * time.Second).MustWait(ctx)

	waitFinished(t, s)

	over, ok := collector.gameOver()
	if !ok {
		t.Fatal("no game over event")
	}
	if !over.Aborted {
		t.Error("timeout under abort policy did not abort the game")
	}
}

func TestTimeoutAutoplayPolicy(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	mock := quartz.NewMock(t)
	trap := mock.Trap().AfterFunc()

	collector := newEventCollector()
	s := NewSession("t9", Config{
		Seed:          9,
		Logger:        testLogger(),
		NewAI:         firstLegalFactory,
		Clock:         mock,
		MoveTimeout:   30 * time.Second,
		TimeoutPolicy: TimeoutAutoplay,
	})
	if _, err := s.Join("human", "jordan"); err != nil {
		t.Fatal(err)
	}
	s.Bus().Subscribe(collector)

	if err := s.Start(); err != nil {
		t.Fatal(err)
	}

	// Time out every decision the human is asked for; the session plays
	// the seat's cards itself and the game still completes.
	go func() {
		for {
			call, err := trap.Wait(ctx)
			if err != nil {
				return
			}
			call.MustRelease(ctx)
			mock.Advance(30 * time.Second).MustWait(ctx)
		}
	}()

	waitFinished(t, s)
	trap.Close()

	over, ok := collector.gameOver()
	if !ok {
		t.Fatal("no game over event")
	}
	if over.Aborted {
		t.Fatalf("autoplay game aborted: %s", over.Reason)
	}
	a, b := s.Scores()
	if a < LosingScore && b < LosingScore {
		t.Errorf("scores %d/%d: neither team reached %d", a, b, LosingScore)
	}
}
