package server

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/wara2/li5a/internal/deck"
	"github.com/wara2/li5a/internal/game"
)

// MessageType identifies a WebSocket message.
type MessageType string

// Client → Server
const (
	MessageTypeCreateSession MessageType = "create_session"
	MessageTypeJoinSession   MessageType = "join_session"
	MessageTypeLeaveSession  MessageType = "leave_session"
	MessageTypeStartGame     MessageType = "start_game"
	MessageTypeSubmitMove    MessageType = "submit_move"
	MessageTypeSubmitGift    MessageType = "submit_gift"
	MessageTypeEndGame       MessageType = "end_game"
	MessageTypeToggleBoard   MessageType = "toggle_board"
	MessageTypeGetState      MessageType = "get_state"
)

// Server → Client
const (
	MessageTypeSessionCreated MessageType = "session_created"
	MessageTypeJoined         MessageType = "joined"
	MessageTypeLeft           MessageType = "left"
	MessageTypeState          MessageType = "state"
	MessageTypeBoard          MessageType = "board"
	MessageTypeError          MessageType = "error"

	MessageTypeHandDealt      MessageType = "hand_dealt"
	MessageTypeMoveRequested  MessageType = "move_requested"
	MessageTypeGiftRequested  MessageType = "gift_requested"
	MessageTypeCardPlayed     MessageType = "card_played"
	MessageTypeTrickCompleted MessageType = "trick_completed"
	MessageTypeRoundSettled   MessageType = "round_settled"
	MessageTypeGameOver       MessageType = "game_over"
	MessageTypeIllegalAttempt MessageType = "illegal_attempt"
	MessageTypePhaseChanged   MessageType = "phase_changed"
)

// Message is the base WebSocket message structure.
type Message struct {
	Type      MessageType     `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewMessage creates a message with the current timestamp.
func NewMessage(messageType MessageType, data interface{}) (*Message, error) {
	var raw json.RawMessage
	if data != nil {
		bytes, err := json.Marshal(data)
		if err != nil {
			return nil, err
		}
		raw = bytes
	}
	return &Message{Type: messageType, Data: raw, Timestamp: time.Now()}, nil
}

// Client → Server payloads

type CreateSessionData struct {
	// BoardVisible overrides the server default when set.
	BoardVisible *bool `json:"board_visible,omitempty"`
}

type JoinSessionData struct {
	SessionID string `json:"session_id"`
	Name      string `json:"name"`
}

type SubmitMoveData struct {
	Card deck.Card `json:"card"`
}

type SubmitGiftData struct {
	Cards []deck.Card `json:"cards"`
}

// Server → Client payloads

type SessionCreatedData struct {
	SessionID string `json:"session_id"`
}

type JoinedData struct {
	SessionID string    `json:"session_id"`
	Seat      game.Seat `json:"seat"`
}

type BoardData struct {
	Visible bool   `json:"visible"`
	Board   string `json:"board,omitempty"`
}

type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type HandDealtData struct {
	Seat game.Seat   `json:"seat"`
	Hand []deck.Card `json:"hand"`
}

type MoveRequestedData struct {
	Seat  game.Seat   `json:"seat"`
	Legal []deck.Card `json:"legal"`
}

type GiftRequestedData struct {
	Seat      game.Seat `json:"seat"`
	Recipient game.Seat `json:"recipient"`
}

type CardPlayedData struct {
	Seat  game.Seat  `json:"seat"`
	Card  deck.Card  `json:"card"`
	Trick game.Trick `json:"trick"`
}

type TrickCompletedData struct {
	Number int        `json:"number"`
	Winner game.Seat  `json:"winner"`
	Points int        `json:"points"`
	Trick  game.Trick `json:"trick"`
}

type RoundSettledData struct {
	RoundPoints [2]int `json:"round_points"`
	TotalScores [2]int `json:"total_scores"`
}

type GameOverData struct {
	LosingTeam  string `json:"losing_team,omitempty"`
	Draw        bool   `json:"draw"`
	Aborted     bool   `json:"aborted"`
	Reason      string `json:"reason,omitempty"`
	TotalScores [2]int `json:"total_scores"`
}

type IllegalAttemptData struct {
	Seat   game.Seat `json:"seat"`
	Reason string    `json:"reason"`
}

type PhaseChangedData struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// errorCode maps engine errors onto stable wire codes.
func errorCode(err error) string {
	switch {
	case errors.Is(err, game.ErrWrongPhase):
		return "wrong_phase"
	case errors.Is(err, game.ErrOutOfTurn):
		return "out_of_turn"
	case errors.Is(err, game.ErrInvalidGiftSize):
		return "invalid_gift_size"
	case errors.Is(err, game.ErrDuplicateCard):
		return "duplicate_card"
	case errors.Is(err, game.ErrIllegalMove):
		return "illegal_move"
	case errors.Is(err, game.ErrSessionFull):
		return "session_full"
	case errors.Is(err, game.ErrAlreadyStarted):
		return "already_started"
	case errors.Is(err, game.ErrNotJoined):
		return "not_joined"
	case errors.Is(err, game.ErrNotEnoughPlayers):
		return "not_enough_players"
	case errors.Is(err, game.ErrSessionEnded):
		return "session_ended"
	default:
		return "internal"
	}
}
