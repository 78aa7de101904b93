package game

import (
	"errors"
	"fmt"
)

// Rule and lifecycle errors. All of these are recoverable: the caller is
// told what went wrong and the session keeps waiting for a valid input.
var (
	// ErrWrongPhase means the operation is not valid in the current phase.
	ErrWrongPhase = errors.New("operation not valid in current phase")

	// ErrOutOfTurn means a submission arrived from a seat that is not
	// currently awaited. The submission is rejected, never queued.
	ErrOutOfTurn = errors.New("not this seat's turn")

	// ErrIllegalMove means the submitted card violates the follow-suit rule
	// or is not in the player's hand.
	ErrIllegalMove = errors.New("illegal move")

	// ErrInvalidGiftSize means a gift selection did not contain exactly
	// three cards.
	ErrInvalidGiftSize = errors.New("gift must contain exactly 3 cards")

	// ErrDuplicateCard means a gift selection repeated a card or named a
	// card not held.
	ErrDuplicateCard = errors.New("duplicate or unheld card in gift")

	// ErrSessionFull means all four seats are taken.
	ErrSessionFull = errors.New("session already has 4 players")

	// ErrAlreadyStarted means a join/leave arrived after the game started.
	ErrAlreadyStarted = errors.New("game already started")

	// ErrNotJoined means a leave arrived from a participant who never joined.
	ErrNotJoined = errors.New("participant not in session")

	// ErrDecisionTimeout is returned by a human agent whose await window
	// expired. The session applies the configured timeout policy.
	ErrDecisionTimeout = errors.New("decision timed out")

	// ErrSessionEnded is returned by agents when the session was aborted
	// while they were waiting.
	ErrSessionEnded = errors.New("session ended")

	// ErrNotEnoughPlayers means Start was called with empty seats and no
	// AI factory to fill them.
	ErrNotEnoughPlayers = errors.New("not enough players to start")
)

// InvariantError reports an engine bug: a broken deck, a missing legal
// move, an AI escaping the legal set, or a round whose points do not sum
// to the full total. It is fatal for the session; the session aborts and surfaces the
// diagnostics rather than continuing in a corrupt state.
type InvariantError struct {
	Op     string
	Detail string
	Err    error
}

func (e *InvariantError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invariant violation in %s: %s: %v", e.Op, e.Detail, e.Err)
	}
	return fmt.Sprintf("invariant violation in %s: %s", e.Op, e.Detail)
}

func (e *InvariantError) Unwrap() error {
	return e.Err
}

// invariantf builds an InvariantError with formatted diagnostics.
func invariantf(op, format string, args ...any) *InvariantError {
	return &InvariantError{Op: op, Detail: fmt.Sprintf(format, args...)}
}

// IsInvariantViolation reports whether err is (or wraps) an engine
// invariant failure.
func IsInvariantViolation(err error) bool {
	var ie *InvariantError
	return errors.As(err, &ie)
}
