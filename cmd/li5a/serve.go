package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/wara2/li5a/cmd/li5a/shared"
	"github.com/wara2/li5a/internal/ai"
	"github.com/wara2/li5a/internal/server"
)

// ServeCmd runs the websocket game server and the admin API.
type ServeCmd struct {
	Config     string `kong:"help='Path to HCL config file',type='path'"`
	Addr       string `kong:"help='Override listen address'"`
	Port       int    `kong:"help='Override game server port'"`
	AdminPort  int    `kong:"help='Override admin API port'"`
	Difficulty string `kong:"help='Override AI difficulty (easy, medium, hard)'"`
	StatsPath  string `kong:"help='Override statistics file path'"`
	NoStats    bool   `kong:"help='Disable statistics collection'"`
	Debug      bool   `kong:"help='Enable debug logging'"`
}

func (c *ServeCmd) Run() error {
	cfg, err := server.LoadConfig(c.Config)
	if err != nil {
		return err
	}
	debug := c.Debug || cfg.Server.LogLevel == "debug"
	logger := shared.SetupLogger(debug)
	gameLogger := shared.SetupGameLogger(debug)

	if c.Addr != "" {
		cfg.Server.Address = c.Addr
	}
	if c.Port != 0 {
		cfg.Server.Port = c.Port
	}
	if c.AdminPort != 0 {
		cfg.Server.AdminPort = c.AdminPort
	}
	if c.Difficulty != "" {
		cfg.Game.AIDifficulty = c.Difficulty
	}
	if c.StatsPath != "" {
		cfg.Stats.Path = c.StatsPath
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	policy, err := cfg.ParseTimeoutPolicy()
	if err != nil {
		return err
	}
	difficulty, err := ai.ParseDifficulty(cfg.Game.AIDifficulty)
	if err != nil {
		return err
	}

	var stats *server.StatsStore
	if !c.NoStats {
		stats, err = server.NewStatsStore(cfg.Stats.Path, logger)
		if err != nil {
			return err
		}
	}

	defaults := server.SessionDefaults{
		MoveTimeout:   cfg.MoveTimeout(),
		TimeoutPolicy: policy,
		Difficulty:    difficulty,
		BoardVisible:  cfg.Game.BoardVisible == nil || *cfg.Game.BoardVisible,
		IdleTimeout:   cfg.IdleTimeout(),
	}
	manager := server.NewSessionManager(defaults, stats, nil, logger, gameLogger)

	gameServer := server.NewServer(cfg.GameAddress(), manager, gameLogger)
	adminAPI := server.NewAdminAPI(manager, stats, logger)
	adminServer := &http.Server{
		Addr:    cfg.AdminAddress(),
		Handler: adminAPI.Router(),
	}

	logger.Info().
		Str("game_address", cfg.GameAddress()).
		Str("admin_address", cfg.AdminAddress()).
		Str("difficulty", string(difficulty)).
		Dur("move_timeout", cfg.MoveTimeout()).
		Bool("stats", stats != nil).
		Msg("Starting li5a server")

	ctx := shared.SetupSignalHandlerWithLogger(logger)
	go manager.RunSweeper(ctx)

	serverErr := make(chan error, 2)
	go func() {
		if err := gameServer.Start(); err != nil {
			serverErr <- err
		}
	}()
	go func() {
		if err := adminServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info().Msg("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		manager.EndAll()
		_ = adminServer.Shutdown(shutdownCtx)
		return gameServer.Stop(shutdownCtx)
	case err := <-serverErr:
		return err
	}
}
