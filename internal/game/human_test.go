package game

import (
	"errors"
	"testing"
	"time"

	"github.com/coder/quartz"
	"github.com/wara2/li5a/internal/deck"
)

func newTestHuman(t *testing.T) (*HumanAgent, chan struct{}) {
	t.Helper()
	done := make(chan struct{})
	t.Cleanup(func() {
		select {
		case <-done:
		default:
			close(done)
		}
	})
	h := NewHumanAgent(Top, testLogger(), quartz.NewMock(t), time.Minute, done)
	return h, done
}

func TestSubmitRequiresOpenPrompt(t *testing.T) {
	h, _ := newTestHuman(t)
	card := deck.MustParseCard("2c")

	// No decision is being awaited yet.
	if err := h.submitCard(card); !errors.Is(err, ErrOutOfTurn) {
		t.Fatalf("submit without prompt: err = %v, want ErrOutOfTurn", err)
	}
	if err := h.submitGift([]deck.Card{card}); !errors.Is(err, ErrOutOfTurn) {
		t.Fatalf("gift without prompt: err = %v, want ErrOutOfTurn", err)
	}

	h.beginMovePrompt()
	if err := h.submitCard(card); err != nil {
		t.Fatalf("submit with open prompt: %v", err)
	}

	// The prompt was consumed by the first submission.
	if err := h.submitCard(deck.MustParseCard("3c")); !errors.Is(err, ErrOutOfTurn) {
		t.Fatalf("second submit: err = %v, want ErrOutOfTurn", err)
	}

	got, err := h.ChooseCard(TableView{}, []deck.Card{card})
	if err != nil || got != card {
		t.Fatalf("ChooseCard = %s, %v, want %s", got, err, card)
	}

	// The decision is resolved; a late submission must not buffer for
	// the next turn.
	if err := h.submitCard(deck.MustParseCard("4c")); !errors.Is(err, ErrOutOfTurn) {
		t.Fatalf("submit after resolution: err = %v, want ErrOutOfTurn", err)
	}
}

func TestNewPromptDiscardsStaleSubmission(t *testing.T) {
	h, _ := newTestHuman(t)
	stale := deck.MustParseCard("9d")
	fresh := deck.MustParseCard("ah")

	// A submission accepted for one decision but never consumed must
	// not leak into the next one.
	h.beginMovePrompt()
	if err := h.submitCard(stale); err != nil {
		t.Fatal(err)
	}

	h.beginMovePrompt()
	if err := h.submitCard(fresh); err != nil {
		t.Fatal(err)
	}
	got, err := h.ChooseCard(TableView{}, []deck.Card{fresh})
	if err != nil || got != fresh {
		t.Fatalf("ChooseCard = %s, %v, want %s", got, err, fresh)
	}

	h.beginGiftPrompt()
	if err := h.submitGift([]deck.Card{stale}); err != nil {
		t.Fatal(err)
	}
	h.beginGiftPrompt()
	if err := h.submitGift([]deck.Card{fresh}); err != nil {
		t.Fatal(err)
	}
	cards, err := h.ChooseGift(TableView{})
	if err != nil || len(cards) != 1 || cards[0] != fresh {
		t.Fatalf("ChooseGift = %v, %v, want [%s]", cards, err, fresh)
	}
}

func TestSessionTeardownReleasesWait(t *testing.T) {
	h, done := newTestHuman(t)
	close(done)

	if _, err := h.ChooseCard(TableView{}, nil); !errors.Is(err, ErrSessionEnded) {
		t.Errorf("ChooseCard after teardown: err = %v, want ErrSessionEnded", err)
	}
	if _, err := h.ChooseGift(TableView{}); !errors.Is(err, ErrSessionEnded) {
		t.Errorf("ChooseGift after teardown: err = %v, want ErrSessionEnded", err)
	}
}
