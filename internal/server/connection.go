package server

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"
	"github.com/wara2/li5a/internal/game"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 8192
)

var ErrConnectionClosed = websocket.ErrCloseSent

// Connection represents a WebSocket connection to a participant. Once
// joined to a session it doubles as that session's event subscriber,
// forwarding engine events as messages while filtering out anything the
// seat is not entitled to see.
type Connection struct {
	conn      *websocket.Conn
	send      chan *Message
	logger    *log.Logger
	server    *Server
	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once

	mu      sync.RWMutex
	session *game.Session
	seat    game.Seat
	name    string
	joined  bool
}

// NewConnection creates a new connection wrapper.
func NewConnection(conn *websocket.Conn, logger *log.Logger, server *Server) *Connection {
	ctx, cancel := context.WithCancel(context.Background())
	return &Connection{
		conn:   conn,
		send:   make(chan *Message, 256),
		logger: logger.WithPrefix("conn"),
		server: server,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start begins handling the connection.
func (c *Connection) Start() {
	go c.writePump()
	go c.readPump()
}

// Close closes the connection.
func (c *Connection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		if session, joined := c.currentSession(); joined {
			session.Bus().Unsubscribe(c)
		}
		c.cancel()
		close(c.send)
		err = c.conn.Close()
		c.server.removeConnection(c)
	})
	return err
}

// SendMessage queues a message for the client. A full buffer closes the
// connection rather than blocking the session goroutine.
func (c *Connection) SendMessage(msg *Message) error {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Debug("send on closed connection", "error", r)
		}
	}()

	select {
	case c.send <- msg:
		return nil
	case <-c.ctx.Done():
		return c.ctx.Err()
	default:
		c.logger.Warn("send buffer full, closing connection")
		_ = c.Close()
		return ErrConnectionClosed
	}
}

func (c *Connection) currentSession() (*game.Session, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.session, c.joined
}

func (c *Connection) ref() string {
	return c.conn.RemoteAddr().String()
}

// readPump handles incoming messages from the client.
func (c *Connection) readPump() {
	defer func() { _ = c.Close() }()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		select {
		case <-c.ctx.Done():
			return
		default:
		}

		var msg Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error("websocket error", "error", err)
			}
			return
		}
		c.handleMessage(&msg)
	}
}

// writePump handles outgoing messages to the client.
func (c *Connection) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(message); err != nil {
				c.logger.Error("failed to write message", "error", err)
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.ctx.Done():
			return
		}
	}
}

// handleMessage dispatches one client message.
func (c *Connection) handleMessage(msg *Message) {
	c.logger.Debug("received message", "type", msg.Type)

	switch msg.Type {
	case MessageTypeCreateSession:
		c.handleCreateSession(msg)
	case MessageTypeJoinSession:
		c.handleJoinSession(msg)
	case MessageTypeLeaveSession:
		c.handleLeaveSession()
	case MessageTypeStartGame:
		c.handleStartGame()
	case MessageTypeSubmitMove:
		c.handleSubmitMove(msg)
	case MessageTypeSubmitGift:
		c.handleSubmitGift(msg)
	case MessageTypeEndGame:
		c.handleEndGame()
	case MessageTypeToggleBoard:
		c.handleToggleBoard()
	case MessageTypeGetState:
		c.handleGetState()
	default:
		c.sendError("invalid_message", "unknown message type")
	}
}

func (c *Connection) handleCreateSession(msg *Message) {
	var data CreateSessionData
	if len(msg.Data) > 0 {
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.sendError("invalid_message", "failed to parse create data")
			return
		}
	}
	session := c.server.manager.Create(data.BoardVisible)
	c.sendData(MessageTypeSessionCreated, SessionCreatedData{SessionID: session.ID()})
}

func (c *Connection) handleJoinSession(msg *Message) {
	var data JoinSessionData
	if err := json.Unmarshal(msg.Data, &data); err != nil {
		c.sendError("invalid_message", "failed to parse join data")
		return
	}
	if data.Name == "" {
		c.sendError("invalid_message", "name is required")
		return
	}

	session, err := c.server.manager.Get(data.SessionID)
	if err != nil {
		c.sendError("not_found", err.Error())
		return
	}

	seat, err := session.Join(c.ref(), data.Name)
	if err != nil {
		c.sendGameError(err)
		return
	}

	c.mu.Lock()
	c.session = session
	c.seat = seat
	c.name = data.Name
	c.joined = true
	c.mu.Unlock()

	session.Bus().Subscribe(c)
	c.logger.Info("joined session", "session", session.ID(), "seat", seat, "name", data.Name)
	c.sendData(MessageTypeJoined, JoinedData{SessionID: session.ID(), Seat: seat})
}

func (c *Connection) handleLeaveSession() {
	session, joined := c.currentSession()
	if !joined {
		c.sendError("not_joined", "not in a session")
		return
	}
	if err := session.Leave(c.ref()); err != nil {
		c.sendGameError(err)
		return
	}

	session.Bus().Unsubscribe(c)
	c.mu.Lock()
	c.session = nil
	c.joined = false
	c.mu.Unlock()
	c.sendData(MessageTypeLeft, nil)
}

func (c *Connection) handleStartGame() {
	session, joined := c.currentSession()
	if !joined {
		c.sendError("not_joined", "not in a session")
		return
	}
	if err := session.Start(); err != nil {
		c.sendGameError(err)
	}
}

func (c *Connection) handleSubmitMove(msg *Message) {
	session, joined := c.currentSession()
	if !joined {
		c.sendError("not_joined", "not in a session")
		return
	}
	var data SubmitMoveData
	if err := json.Unmarshal(msg.Data, &data); err != nil {
		c.sendError("invalid_message", "failed to parse move data")
		return
	}
	if err := session.SubmitMove(c.seat, data.Card); err != nil {
		c.sendGameError(err)
	}
}

func (c *Connection) handleSubmitGift(msg *Message) {
	session, joined := c.currentSession()
	if !joined {
		c.sendError("not_joined", "not in a session")
		return
	}
	var data SubmitGiftData
	if err := json.Unmarshal(msg.Data, &data); err != nil {
		c.sendError("invalid_message", "failed to parse gift data")
		return
	}
	if err := session.SubmitGift(c.seat, data.Cards); err != nil {
		c.sendGameError(err)
	}
}

func (c *Connection) handleEndGame() {
	session, joined := c.currentSession()
	if !joined {
		c.sendError("not_joined", "not in a session")
		return
	}
	session.End()
}

func (c *Connection) handleToggleBoard() {
	session, joined := c.currentSession()
	if !joined {
		c.sendError("not_joined", "not in a session")
		return
	}
	visible := session.ToggleBoardVisibility()
	state := session.PublicState()
	c.sendData(MessageTypeBoard, BoardData{Visible: visible, Board: RenderBoard(state)})
}

func (c *Connection) handleGetState() {
	session, joined := c.currentSession()
	if !joined {
		c.sendError("not_joined", "not in a session")
		return
	}
	c.sendData(MessageTypeState, session.PublicState())
}

// OnEvent implements game.Subscriber: engine events become client
// messages. Private information (hands, legal moves) is forwarded only
// to the seat that owns it.
func (c *Connection) OnEvent(event game.Event) {
	c.mu.RLock()
	seat := c.seat
	c.mu.RUnlock()

	switch e := event.(type) {
	case game.HandDealtEvent:
		if e.Seat == seat {
			c.sendData(MessageTypeHandDealt, HandDealtData{Seat: e.Seat, Hand: e.Hand})
		}
	case game.MoveRequestedEvent:
		if e.Seat == seat {
			c.sendData(MessageTypeMoveRequested, MoveRequestedData{Seat: e.Seat, Legal: e.Legal})
		}
	case game.GiftRequestedEvent:
		c.sendData(MessageTypeGiftRequested, GiftRequestedData{Seat: e.Seat, Recipient: e.Recipient})
	case game.IllegalAttemptEvent:
		if e.Seat == seat {
			c.sendData(MessageTypeIllegalAttempt, IllegalAttemptData{Seat: e.Seat, Reason: e.Reason})
		}
	case game.CardPlayedEvent:
		c.sendData(MessageTypeCardPlayed, CardPlayedData{Seat: e.Seat, Card: e.Card, Trick: e.Trick})
	case game.TrickCompletedEvent:
		c.sendData(MessageTypeTrickCompleted, TrickCompletedData{
			Number: e.Number,
			Winner: e.Result.Winner,
			Points: e.Result.Points,
			Trick:  e.Result.Trick,
		})
	case game.RoundSettledEvent:
		c.sendData(MessageTypeRoundSettled, RoundSettledData{
			RoundPoints: e.RoundPoints,
			TotalScores: e.TotalScores,
		})
	case game.GameOverEvent:
		data := GameOverData{
			Draw:        e.Draw,
			Aborted:     e.Aborted,
			Reason:      e.Reason,
			TotalScores: e.TotalScores,
		}
		if e.LosingTeam != nil {
			data.LosingTeam = e.LosingTeam.String()
		}
		c.sendData(MessageTypeGameOver, data)
	case game.PhaseChangedEvent:
		c.sendData(MessageTypePhaseChanged, PhaseChangedData{From: e.From.String(), To: e.To.String()})
	}
}

func (c *Connection) sendData(messageType MessageType, data interface{}) {
	msg, err := NewMessage(messageType, data)
	if err != nil {
		c.logger.Error("failed to build message", "type", messageType, "error", err)
		return
	}
	_ = c.SendMessage(msg)
}

func (c *Connection) sendError(code, message string) {
	c.sendData(MessageTypeError, ErrorData{Code: code, Message: message})
}

func (c *Connection) sendGameError(err error) {
	c.sendError(errorCode(err), err.Error())
}
