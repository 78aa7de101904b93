package server

import (
	"fmt"
	"os"
	"time"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/wara2/li5a/internal/ai"
	"github.com/wara2/li5a/internal/game"
)

// Config represents the complete server configuration
type Config struct {
	Server ServerSettings `hcl:"server,block"`
	Game   GameSettings   `hcl:"game,block"`
	Stats  StatsSettings  `hcl:"stats,block"`
}

// ServerSettings contains server-level configuration
type ServerSettings struct {
	Address   string `hcl:"address,optional"`
	Port      int    `hcl:"port,optional"`
	AdminPort int    `hcl:"admin_port,optional"`
	LogLevel  string `hcl:"log_level,optional"`
}

// GameSettings contains the defaults applied to new sessions
type GameSettings struct {
	MoveTimeoutSeconds int    `hcl:"move_timeout_seconds,optional"`
	TimeoutPolicy      string `hcl:"timeout_policy,optional"`
	AIDifficulty       string `hcl:"ai_difficulty,optional"`
	BoardVisible       *bool  `hcl:"board_visible,optional"`
	IdleTimeoutMinutes int    `hcl:"idle_timeout_minutes,optional"`
}

// StatsSettings configures the participant statistics store
type StatsSettings struct {
	Path string `hcl:"path,optional"`
}

// DefaultConfig returns the default server configuration
func DefaultConfig() *Config {
	visible := true
	return &Config{
		Server: ServerSettings{
			Address:   "localhost",
			Port:      8080,
			AdminPort: 8081,
			LogLevel:  "info",
		},
		Game: GameSettings{
			MoveTimeoutSeconds: 60,
			TimeoutPolicy:      "autoplay",
			AIDifficulty:       string(ai.DefaultDifficulty),
			BoardVisible:       &visible,
			IdleTimeoutMinutes: 30,
		},
		Stats: StatsSettings{
			Path: "li5a-stats.json",
		},
	}
}

// LoadConfig loads server configuration from an HCL file. A missing
// file yields the defaults.
func LoadConfig(filename string) (*Config, error) {
	if _, err := os.Stat(filename); os.IsNotExist(err) {
		return DefaultConfig(), nil
	}

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file: %s", diags.Error())
	}

	var config Config
	diags = gohcl.DecodeBody(file.Body, nil, &config)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL: %s", diags.Error())
	}

	defaults := DefaultConfig()
	if config.Server.Address == "" {
		config.Server.Address = defaults.Server.Address
	}
	if config.Server.Port == 0 {
		config.Server.Port = defaults.Server.Port
	}
	if config.Server.AdminPort == 0 {
		config.Server.AdminPort = defaults.Server.AdminPort
	}
	if config.Server.LogLevel == "" {
		config.Server.LogLevel = defaults.Server.LogLevel
	}
	if config.Game.MoveTimeoutSeconds == 0 {
		config.Game.MoveTimeoutSeconds = defaults.Game.MoveTimeoutSeconds
	}
	if config.Game.TimeoutPolicy == "" {
		config.Game.TimeoutPolicy = defaults.Game.TimeoutPolicy
	}
	if config.Game.AIDifficulty == "" {
		config.Game.AIDifficulty = defaults.Game.AIDifficulty
	}
	if config.Game.BoardVisible == nil {
		config.Game.BoardVisible = defaults.Game.BoardVisible
	}
	if config.Game.IdleTimeoutMinutes == 0 {
		config.Game.IdleTimeoutMinutes = defaults.Game.IdleTimeoutMinutes
	}
	if config.Stats.Path == "" {
		config.Stats.Path = defaults.Stats.Path
	}

	return &config, nil
}

// Validate validates the server configuration
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Server.Port)
	}
	if c.Server.AdminPort < 1 || c.Server.AdminPort > 65535 {
		return fmt.Errorf("invalid admin port: %d", c.Server.AdminPort)
	}
	if c.Server.AdminPort == c.Server.Port {
		return fmt.Errorf("admin port %d collides with game port", c.Server.AdminPort)
	}
	if c.Game.MoveTimeoutSeconds < 1 {
		return fmt.Errorf("move timeout must be positive, got %d", c.Game.MoveTimeoutSeconds)
	}
	if _, err := c.ParseTimeoutPolicy(); err != nil {
		return err
	}
	if _, err := ai.ParseDifficulty(c.Game.AIDifficulty); err != nil {
		return err
	}
	return nil
}

// ParseTimeoutPolicy converts the configured policy name.
func (c *Config) ParseTimeoutPolicy() (game.TimeoutPolicy, error) {
	switch c.Game.TimeoutPolicy {
	case "autoplay", "":
		return game.TimeoutAutoplay, nil
	case "abort":
		return game.TimeoutAbort, nil
	default:
		return 0, fmt.Errorf("unknown timeout policy %q (want autoplay or abort)", c.Game.TimeoutPolicy)
	}
}

// GameAddress returns the address the websocket server listens on.
func (c *Config) GameAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Address, c.Server.Port)
}

// AdminAddress returns the address the admin API listens on.
func (c *Config) AdminAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Address, c.Server.AdminPort)
}

// MoveTimeout returns the per-decision timeout as a duration.
func (c *Config) MoveTimeout() time.Duration {
	return time.Duration(c.Game.MoveTimeoutSeconds) * time.Second
}

// IdleTimeout returns how long a session may sit untouched before the
// manager reaps it.
func (c *Config) IdleTimeout() time.Duration {
	return time.Duration(c.Game.IdleTimeoutMinutes) * time.Minute
}
