package game

import (
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/wara2/li5a/internal/deck"
)

// HumanAgent is the suspend point for an externally controlled seat.
// ChooseCard and ChooseGift block the session's round loop until the
// transport delivers a submission, the timeout fires, or the session is
// torn down. Submissions are accepted only while a prompt is open:
// the session opens one immediately before each decision, the first
// accepted submission consumes it, and anything arriving outside that
// window is rejected as out of turn rather than buffered for a later
// decision.
type HumanAgent struct {
	seat    Seat
	logger  *log.Logger
	clock   quartz.Clock
	timeout time.Duration
	moveCh  chan deck.Card
	giftCh  chan []deck.Card
	done    <-chan struct{}

	mu           sync.Mutex
	awaitingMove bool
	awaitingGift bool
}

// NewHumanAgent creates a human agent for the seat. done is closed by
// the session on teardown to release a blocked wait.
func NewHumanAgent(seat Seat, logger *log.Logger, clock quartz.Clock, timeout time.Duration, done <-chan struct{}) *HumanAgent {
	return &HumanAgent{
		seat:    seat,
		logger:  logger.WithPrefix("human").With("seat", seat),
		clock:   clock,
		timeout: timeout,
		moveCh:  make(chan deck.Card, 1),
		giftCh:  make(chan []deck.Card, 1),
		done:    done,
	}
}

// beginMovePrompt opens the move window for the seat's next ChooseCard.
// Any submission buffered for an earlier, already-resolved decision is
// discarded.
func (h *HumanAgent) beginMovePrompt() {
	h.mu.Lock()
	defer h.mu.Unlock()
	select {
	case <-h.moveCh:
	default:
	}
	h.awaitingMove = true
}

// beginGiftPrompt opens the gift window for the seat's next ChooseGift.
func (h *HumanAgent) beginGiftPrompt() {
	h.mu.Lock()
	defer h.mu.Unlock()
	select {
	case <-h.giftCh:
	default:
	}
	h.awaitingGift = true
}

func (h *HumanAgent) closeMovePrompt() {
	h.mu.Lock()
	h.awaitingMove = false
	h.mu.Unlock()
}

func (h *HumanAgent) closeGiftPrompt() {
	h.mu.Lock()
	h.awaitingGift = false
	h.mu.Unlock()
}

// ChooseCard waits for the seat's move submission.
func (h *HumanAgent) ChooseCard(view TableView, legal []deck.Card) (deck.Card, error) {
	h.logger.Debug("awaiting move", "legal", len(legal), "trick", view.Trick.String())

	timeout := make(chan struct{})
	timer := h.clock.AfterFunc(h.timeout, func() {
		close(timeout)
	})
	defer timer.Stop()
	defer h.closeMovePrompt()

	select {
	case card := <-h.moveCh:
		return card, nil
	case <-timeout:
		h.logger.Warn("move timed out", "after", h.timeout)
		return deck.Card{}, ErrDecisionTimeout
	case <-h.done:
		return deck.Card{}, ErrSessionEnded
	}
}

// ChooseGift waits for the seat's gift submission.
func (h *HumanAgent) ChooseGift(view TableView) ([]deck.Card, error) {
	h.logger.Debug("awaiting gift", "recipient", view.GiftRecipient)

	timeout := make(chan struct{})
	timer := h.clock.AfterFunc(h.timeout, func() {
		close(timeout)
	})
	defer timer.Stop()
	defer h.closeGiftPrompt()

	select {
	case cards := <-h.giftCh:
		return cards, nil
	case <-timeout:
		h.logger.Warn("gift timed out", "after", h.timeout)
		return nil, ErrDecisionTimeout
	case <-h.done:
		return nil, ErrSessionEnded
	}
}

// submitCard hands a validated move to the waiting ChooseCard. The
// first submission consumes the open prompt; anything else is a
// submission for a turn that is not being awaited.
func (h *HumanAgent) submitCard(card deck.Card) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.awaitingMove {
		return ErrOutOfTurn
	}
	select {
	case h.moveCh <- card:
		h.awaitingMove = false
		return nil
	default:
		return ErrOutOfTurn
	}
}

// submitGift hands a validated gift selection to the waiting ChooseGift.
func (h *HumanAgent) submitGift(cards []deck.Card) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.awaitingGift {
		return ErrOutOfTurn
	}
	select {
	case h.giftCh <- cards:
		h.awaitingGift = false
		return nil
	default:
		return ErrOutOfTurn
	}
}
