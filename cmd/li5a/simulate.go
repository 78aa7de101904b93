package main

import (
	"context"
	"fmt"
	rand "math/rand/v2"
	"runtime"
	"time"

	charmlog "github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/wara2/li5a/cmd/li5a/shared"
	"github.com/wara2/li5a/internal/ai"
	"github.com/wara2/li5a/internal/game"
	"github.com/wara2/li5a/internal/randutil"
)

// SimulateCmd runs AI-vs-AI games in parallel and reports aggregate
// results. Useful for comparing difficulty levels and sanity-checking
// strategy changes.
type SimulateCmd struct {
	Games   int    `kong:"default='1000',help='Number of games to simulate'"`
	TeamA   string `kong:"default='medium',help='Difficulty for the top/bottom team'"`
	TeamB   string `kong:"default='medium',help='Difficulty for the left/right team'"`
	Seed    int64  `kong:"help='Deterministic RNG seed (0 for random)'"`
	Workers int    `kong:"help='Parallel workers (default: GOMAXPROCS)'"`
	Verbose bool   `kong:"short='v',help='Verbose logging'"`
}

// gameResult captures one finished game.
type gameResult struct {
	winner *game.Team
	draw   bool
	rounds int
	scores [2]int
	seed   int64
}

// simStats aggregates results across all simulated games.
type simStats struct {
	games      int
	teamAWins  int
	teamBWins  int
	draws      int
	sumRounds  int
	maxRounds  int
	sumScores  [2]int
	worstLoss  int
	worstSeed  int64
}

func (s *simStats) add(r gameResult) {
	s.games++
	s.sumRounds += r.rounds
	if r.rounds > s.maxRounds {
		s.maxRounds = r.rounds
	}
	s.sumScores[0] += r.scores[0]
	s.sumScores[1] += r.scores[1]

	switch {
	case r.draw:
		s.draws++
	case r.winner != nil && *r.winner == game.TeamA:
		s.teamAWins++
	case r.winner != nil && *r.winner == game.TeamB:
		s.teamBWins++
	}

	for _, score := range r.scores {
		if score > s.worstLoss {
			s.worstLoss = score
			s.worstSeed = r.seed
		}
	}
}

func (c *SimulateCmd) Run() error {
	logger := shared.SetupGameLogger(c.Verbose)
	if !c.Verbose {
		logger.SetLevel(charmlog.ErrorLevel)
	}

	if c.Games <= 0 {
		return fmt.Errorf("games must be positive, got %d", c.Games)
	}
	teamA, err := ai.ParseDifficulty(c.TeamA)
	if err != nil {
		return err
	}
	teamB, err := ai.ParseDifficulty(c.TeamB)
	if err != nil {
		return err
	}

	seed := c.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	workers := c.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers > c.Games {
		workers = c.Games
	}

	fmt.Printf("Simulating %d games: team A (%s) vs team B (%s), seed %d, %d workers\n\n",
		c.Games, teamA, teamB, seed, workers)

	masterRng := randutil.New(seed)
	seeds := make([]int64, c.Games)
	for i := range seeds {
		seeds[i] = masterRng.Int64()
	}

	start := time.Now()
	g, ctx := errgroup.WithContext(context.Background())
	results := make(chan gameResult, workers)

	perWorker := c.Games / workers
	remainder := c.Games % workers
	next := 0
	for w := 0; w < workers; w++ {
		count := perWorker
		if w < remainder {
			count++
		}
		batch := seeds[next : next+count]
		next += count

		g.Go(func() error {
			for _, gameSeed := range batch {
				result, err := runSimGame(gameSeed, teamA, teamB, logger)
				if err != nil {
					return err
				}
				select {
				case results <- result:
				case <-ctx.Done():
					return ctx.Err()
				}
			}
			return nil
		})
	}

	go func() {
		_ = g.Wait()
		close(results)
	}()

	var stats simStats
	for result := range results {
		stats.add(result)
	}
	if err := g.Wait(); err != nil {
		return err
	}

	printSimReport(&stats, teamA, teamB, time.Since(start))
	return nil
}

// runSimGame plays one bot-only game to completion and reports how it
// ended.
func runSimGame(seed int64, teamA, teamB ai.Difficulty, logger *charmlog.Logger) (gameResult, error) {
	factoryA := ai.Factory(teamA, logger)
	factoryB := ai.Factory(teamB, logger)

	session := game.NewSession(fmt.Sprintf("sim-%d", seed), game.Config{
		Seed: seed,
		NewAI: func(seat game.Seat, rng *rand.Rand) (string, game.Agent) {
			if seat.Team() == game.TeamA {
				return factoryA(seat, rng)
			}
			return factoryB(seat, rng)
		},
		Logger: logger,
	})

	recorder := &simRecorder{}
	session.Bus().Subscribe(recorder)
	if err := session.Start(); err != nil {
		return gameResult{}, err
	}
	<-session.Finished()

	if recorder.over == nil {
		return gameResult{}, fmt.Errorf("game %d finished without a result", seed)
	}
	if recorder.over.Aborted {
		return gameResult{}, fmt.Errorf("game %d aborted: %s", seed, recorder.over.Reason)
	}

	var winner *game.Team
	if recorder.over.LosingTeam != nil {
		w := recorder.over.LosingTeam.Other()
		winner = &w
	}
	return gameResult{
		winner: winner,
		draw:   recorder.over.Draw,
		rounds: recorder.rounds,
		scores: recorder.over.TotalScores,
		seed:   seed,
	}, nil
}

// simRecorder counts rounds and captures the final event. Bot-only
// sessions publish from a single goroutine, so no locking is needed.
type simRecorder struct {
	rounds int
	over   *game.GameOverEvent
}

func (r *simRecorder) OnEvent(event game.Event) {
	switch e := event.(type) {
	case game.RoundSettledEvent:
		r.rounds++
	case game.GameOverEvent:
		r.over = &e
	}
}

func printSimReport(stats *simStats, teamA, teamB ai.Difficulty, elapsed time.Duration) {
	pct := func(n int) float64 {
		if stats.games == 0 {
			return 0
		}
		return 100 * float64(n) / float64(stats.games)
	}

	fmt.Printf("Results over %d games (%.1fs, %.0f games/s)\n",
		stats.games, elapsed.Seconds(), float64(stats.games)/elapsed.Seconds())
	fmt.Printf("  team A (%s): %6d wins  (%5.1f%%)\n", teamA, stats.teamAWins, pct(stats.teamAWins))
	fmt.Printf("  team B (%s): %6d wins  (%5.1f%%)\n", teamB, stats.teamBWins, pct(stats.teamBWins))
	fmt.Printf("  draws:         %6d       (%5.1f%%)\n", stats.draws, pct(stats.draws))
	fmt.Println()
	fmt.Printf("  rounds per game: %.1f avg, %d max\n",
		float64(stats.sumRounds)/float64(stats.games), stats.maxRounds)
	fmt.Printf("  final scores:    %.1f avg (team A), %.1f avg (team B)\n",
		float64(stats.sumScores[0])/float64(stats.games),
		float64(stats.sumScores[1])/float64(stats.games))
	fmt.Printf("  highest score:   %d (seed %d)\n", stats.worstLoss, stats.worstSeed)
}
