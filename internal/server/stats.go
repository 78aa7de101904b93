package server

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/wara2/li5a/internal/fileutil"
)

// Outcome is a participant's result for one finished game.
type Outcome string

const (
	OutcomeWin     Outcome = "win"
	OutcomeLoss    Outcome = "loss"
	OutcomeDraw    Outcome = "draw"
	OutcomeAborted Outcome = "aborted"
)

// PlayerStats accumulates a participant's lifetime results.
type PlayerStats struct {
	Name        string    `json:"name"`
	GamesPlayed int       `json:"games_played"`
	Wins        int       `json:"wins"`
	Losses      int       `json:"losses"`
	Draws       int       `json:"draws"`
	Aborted     int       `json:"aborted"`
	CardsPlayed int       `json:"cards_played"`
	TricksWon   int       `json:"tricks_won"`
	LastPlayed  time.Time `json:"last_played"`
}

// GameRecord is one participant's contribution to a finished game.
type GameRecord struct {
	Outcome     Outcome
	CardsPlayed int
	TricksWon   int
}

// StatsStore persists per-participant statistics as a JSON file. Writes
// are atomic so a crash mid-save never corrupts the file.
type StatsStore struct {
	logger zerolog.Logger
	path   string

	mu      sync.Mutex
	players map[string]*PlayerStats
}

// NewStatsStore opens (or creates) the store at path.
func NewStatsStore(path string, logger zerolog.Logger) (*StatsStore, error) {
	s := &StatsStore{
		logger:  logger.With().Str("component", "stats").Logger(),
		path:    path,
		players: make(map[string]*PlayerStats),
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read stats file: %w", err)
	}
	if err := json.Unmarshal(data, &s.players); err != nil {
		return nil, fmt.Errorf("decode stats file %s: %w", path, err)
	}
	return s, nil
}

// RecordResult folds one game record into the participant's lifetime
// stats and persists the store.
func (s *StatsStore) RecordResult(name string, rec GameRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.players[name]
	if p == nil {
		p = &PlayerStats{Name: name}
		s.players[name] = p
	}
	p.GamesPlayed++
	p.CardsPlayed += rec.CardsPlayed
	p.TricksWon += rec.TricksWon
	p.LastPlayed = time.Now()
	switch rec.Outcome {
	case OutcomeWin:
		p.Wins++
	case OutcomeLoss:
		p.Losses++
	case OutcomeDraw:
		p.Draws++
	case OutcomeAborted:
		p.Aborted++
	}

	if err := s.saveLocked(); err != nil {
		s.logger.Error().Err(err).Msg("failed to persist stats")
	}
}

// Get returns the participant's stats.
func (s *StatsStore) Get(name string) (PlayerStats, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.players[name]
	if !ok {
		return PlayerStats{}, false
	}
	return *p, true
}

// All returns a snapshot of every participant's stats.
func (s *StatsStore) All() []PlayerStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]PlayerStats, 0, len(s.players))
	for _, p := range s.players {
		out = append(out, *p)
	}
	return out
}

func (s *StatsStore) saveLocked() error {
	data, err := json.MarshalIndent(s.players, "", "  ")
	if err != nil {
		return err
	}
	return fileutil.WriteFileAtomic(s.path, data, 0o644)
}
