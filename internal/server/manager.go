package server

import (
	"context"
	"fmt"
	"sync"
	"time"

	charmlog "github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/wara2/li5a/internal/ai"
	"github.com/wara2/li5a/internal/game"
)

// SessionDefaults are the settings applied to every new session.
type SessionDefaults struct {
	MoveTimeout   time.Duration
	TimeoutPolicy game.TimeoutPolicy
	Difficulty    ai.Difficulty
	BoardVisible  bool
	IdleTimeout   time.Duration
}

// SessionManager owns every live session: creation, lookup, teardown,
// result recording and the reaping of idle tables.
type SessionManager struct {
	logger     zerolog.Logger
	gameLogger *charmlog.Logger
	clock      quartz.Clock
	stats      *StatsStore
	defaults   SessionDefaults

	mu       sync.RWMutex
	sessions map[string]*game.Session
}

// NewSessionManager creates an empty manager. The charm logger is
// handed down to the game engine; the stats store may be nil when
// result tracking is disabled.
func NewSessionManager(defaults SessionDefaults, stats *StatsStore, clock quartz.Clock, logger zerolog.Logger, gameLogger *charmlog.Logger) *SessionManager {
	if clock == nil {
		clock = quartz.NewReal()
	}
	return &SessionManager{
		logger:     logger.With().Str("component", "session_manager").Logger(),
		gameLogger: gameLogger,
		clock:      clock,
		stats:      stats,
		defaults:   defaults,
		sessions:   make(map[string]*game.Session),
	}
}

// Create builds and registers a new session in the forming phase. A nil
// boardVisible takes the server default.
func (m *SessionManager) Create(boardVisible *bool) *game.Session {
	visible := m.defaults.BoardVisible
	if boardVisible != nil {
		visible = *boardVisible
	}
	id := uuid.NewString()
	session := game.NewSession(id, game.Config{
		BoardVisible:  visible,
		MoveTimeout:   m.defaults.MoveTimeout,
		TimeoutPolicy: m.defaults.TimeoutPolicy,
		NewAI:         ai.Factory(m.defaults.Difficulty, m.gameLogger),
		Clock:         m.clock,
		Logger:        m.gameLogger,
	})

	if m.stats != nil {
		session.Bus().Subscribe(&resultRecorder{session: session, stats: m.stats})
	}

	m.mu.Lock()
	m.sessions[id] = session
	m.mu.Unlock()

	m.logger.Info().Str("session", id).Msg("session created")
	return session
}

// Get returns the session by ID.
func (m *SessionManager) Get(id string) (*game.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	session, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("no session %s", id)
	}
	return session, nil
}

// List returns spectator-safe snapshots of every live session.
func (m *SessionManager) List() []game.PublicState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]game.PublicState, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s.PublicState())
	}
	return out
}

// End terminates a session and removes it from the manager.
func (m *SessionManager) End(id string) error {
	session, err := m.Get(id)
	if err != nil {
		return err
	}
	session.End()

	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()

	m.logger.Info().Str("session", id).Msg("session ended")
	return nil
}

// EndAll terminates every session. Used during shutdown.
func (m *SessionManager) EndAll() {
	m.mu.Lock()
	sessions := make([]*game.Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.sessions = make(map[string]*game.Session)
	m.mu.Unlock()

	for _, s := range sessions {
		s.End()
	}
}

// RunSweeper reaps finished and idle sessions once a minute until the
// context is cancelled.
func (m *SessionManager) RunSweeper(ctx context.Context) {
	waiter := m.clock.TickerFunc(ctx, time.Minute, func() error {
		m.sweep()
		return nil
	}, "session_sweeper")
	_ = waiter.Wait()
}

func (m *SessionManager) sweep() {
	m.mu.Lock()
	var stale []*game.Session
	for id, s := range m.sessions {
		finished := false
		select {
		case <-s.Finished():
			finished = true
		default:
		}
		if finished || time.Since(s.LastActivity()) > m.defaults.IdleTimeout {
			stale = append(stale, s)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, s := range stale {
		m.logger.Info().Str("session", s.ID()).Msg("reaping stale session")
		s.End()
	}
}

// resultRecorder counts per-seat activity during a session and folds
// the final result into the stats store. Only human participants are
// recorded; bots have no persistent record.
type resultRecorder struct {
	session *game.Session
	stats   *StatsStore
	once    sync.Once

	mu          sync.Mutex
	cardsPlayed [4]int
	tricksWon   [4]int
}

func (r *resultRecorder) OnEvent(event game.Event) {
	switch e := event.(type) {
	case game.CardPlayedEvent:
		r.mu.Lock()
		r.cardsPlayed[e.Seat]++
		r.mu.Unlock()
	case game.TrickCompletedEvent:
		r.mu.Lock()
		r.tricksWon[e.Result.Winner]++
		r.mu.Unlock()
	case game.GameOverEvent:
		r.once.Do(func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			for _, p := range r.session.Players() {
				if p.Kind != game.KindHuman {
					continue
				}
				r.stats.RecordResult(p.Name, GameRecord{
					Outcome:     outcomeFor(p.Seat, e),
					CardsPlayed: r.cardsPlayed[p.Seat],
					TricksWon:   r.tricksWon[p.Seat],
				})
			}
		})
	}
}

func outcomeFor(seat game.Seat, over game.GameOverEvent) Outcome {
	switch {
	case over.Aborted:
		return OutcomeAborted
	case over.Draw:
		return OutcomeDraw
	case over.LosingTeam != nil && seat.Team() == *over.LosingTeam:
		return OutcomeLoss
	default:
		return OutcomeWin
	}
}
