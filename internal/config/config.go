package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config holds the [comprl] table of the server config file.
type Config struct {
	Port                 int     `toml:"port"`
	ServerUpdateInterval float64 `toml:"server_update_interval"`
	Timeout              int     `toml:"timeout"`
	LogLevel             string  `toml:"log_level"`

	// GamePath is accepted for compatibility with older config files but is
	// not used: adapters are compiled in and selected by GameClass.
	GamePath  string `toml:"game_path"`
	GameClass string `toml:"game_class"`

	DatabasePath   string `toml:"database_path"`
	DataDir        string `toml:"data_dir"`
	MonitorLogPath string `toml:"monitor_log_path"`

	RegistrationKey string `toml:"registration_key"`
	ServerURL       string `toml:"server_url"`

	Matchmaking Matchmaking `toml:"matchmaking"`
	ScoreDecay  ScoreDecay  `toml:"score_decay"`
}

// Matchmaking tunables. Reloadable at runtime via SIGHUP.
type Matchmaking struct {
	MatchQualityThreshold       float64 `toml:"match_quality_threshold"`
	PercentageMinPlayersWaiting float64 `toml:"percentage_min_players_waiting"`
	PercentalTimeBonus          float64 `toml:"percental_time_bonus"`
	MaxParallelGames            int     `toml:"max_parallel_games"`
}

// ScoreDecay settings. IntervalMinutes = 0 disables the worker. Reloadable
// at runtime via SIGHUP.
type ScoreDecay struct {
	IntervalMinutes int     `toml:"interval_minutes"`
	Delta           float64 `toml:"delta"`
}

type fileRoot struct {
	Comprl Config `toml:"comprl"`
}

func defaults() Config {
	return Config{
		Port:                 8080,
		ServerUpdateInterval: 1.0,
		Timeout:              10,
		LogLevel:             "INFO",
		RegistrationKey:      "",
		Matchmaking: Matchmaking{
			MatchQualityThreshold:       0.3,
			PercentageMinPlayersWaiting: 0.1,
			PercentalTimeBonus:          0.1,
			MaxParallelGames:            100,
		},
		ScoreDecay: ScoreDecay{
			IntervalMinutes: 0,
			Delta:           0.5,
		},
	}
}

// Load reads the config file. Relative paths are resolved against the
// file's directory. Callers that need a complete server config should also
// call Validate; tools that only use parts of it can skip that.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	root := fileRoot{Comprl: defaults()}
	if err := toml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg := root.Comprl

	base, err := filepath.Abs(filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("resolve config dir: %w", err)
	}
	cfg.DatabasePath = resolve(base, cfg.DatabasePath)
	cfg.DataDir = resolve(base, cfg.DataDir)
	cfg.MonitorLogPath = resolve(base, cfg.MonitorLogPath)
	cfg.GamePath = resolve(base, cfg.GamePath)

	return &cfg, nil
}

func resolve(base, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(base, p)
}

// Validate checks that everything the game server needs is present and
// usable.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.ServerUpdateInterval <= 0 {
		return fmt.Errorf("server_update_interval must be positive, got %v", c.ServerUpdateInterval)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %d", c.Timeout)
	}
	if c.GameClass == "" {
		return fmt.Errorf("game_class is required")
	}
	if c.DatabasePath == "" {
		return fmt.Errorf("database_path is required")
	}
	if c.DataDir == "" {
		return fmt.Errorf("data_dir is required")
	}
	info, err := os.Stat(c.DataDir)
	if err != nil {
		return fmt.Errorf("data_dir: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("data_dir %s is not a directory", c.DataDir)
	}
	if c.Matchmaking.MaxParallelGames <= 0 {
		return fmt.Errorf("matchmaking.max_parallel_games must be positive, got %d", c.Matchmaking.MaxParallelGames)
	}
	return nil
}

// UpdateInterval is the scheduler tick period.
func (c *Config) UpdateInterval() time.Duration {
	return time.Duration(c.ServerUpdateInterval * float64(time.Second))
}

// RPCTimeout is the per-call timeout for agent RPCs.
func (c *Config) RPCTimeout() time.Duration {
	return time.Duration(c.Timeout) * time.Second
}
