package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

const fullConfig = `
[comprl]
port = 9090
server_update_interval = 0.5
timeout = 30
log_level = "DEBUG"
game_class = "duel"
database_path = "state/comprl.db"
data_dir = "state"
monitor_log_path = "/dev/shm/comprl_monitor"
registration_key = "sekrit"
server_url = "wss://comprl.example.org/ws"

[comprl.matchmaking]
match_quality_threshold = 0.42
percentage_min_players_waiting = 0.2
percental_time_bonus = 0.05
max_parallel_games = 25

[comprl.score_decay]
interval_minutes = 60
delta = 0.25
`

func TestLoadFullConfig(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(writeConfig(t, dir, fullConfig))
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Port != 9090 {
		t.Errorf("port = %d, want 9090", cfg.Port)
	}
	if cfg.ServerUpdateInterval != 0.5 {
		t.Errorf("server_update_interval = %v, want 0.5", cfg.ServerUpdateInterval)
	}
	if cfg.Timeout != 30 {
		t.Errorf("timeout = %d, want 30", cfg.Timeout)
	}
	if cfg.LogLevel != "DEBUG" {
		t.Errorf("log_level = %q, want DEBUG", cfg.LogLevel)
	}
	if cfg.GameClass != "duel" {
		t.Errorf("game_class = %q, want duel", cfg.GameClass)
	}
	if cfg.RegistrationKey != "sekrit" {
		t.Errorf("registration_key = %q, want sekrit", cfg.RegistrationKey)
	}
	if cfg.ServerURL != "wss://comprl.example.org/ws" {
		t.Errorf("server_url = %q", cfg.ServerURL)
	}

	// Relative paths resolve against the config file's directory, absolute
	// ones pass through.
	if want := filepath.Join(dir, "state", "comprl.db"); cfg.DatabasePath != want {
		t.Errorf("database_path = %q, want %q", cfg.DatabasePath, want)
	}
	if want := filepath.Join(dir, "state"); cfg.DataDir != want {
		t.Errorf("data_dir = %q, want %q", cfg.DataDir, want)
	}
	if cfg.MonitorLogPath != "/dev/shm/comprl_monitor" {
		t.Errorf("monitor_log_path = %q", cfg.MonitorLogPath)
	}

	mm := cfg.Matchmaking
	if mm.MatchQualityThreshold != 0.42 || mm.PercentageMinPlayersWaiting != 0.2 ||
		mm.PercentalTimeBonus != 0.05 || mm.MaxParallelGames != 25 {
		t.Errorf("matchmaking = %+v", mm)
	}
	if cfg.ScoreDecay.IntervalMinutes != 60 || cfg.ScoreDecay.Delta != 0.25 {
		t.Errorf("score_decay = %+v", cfg.ScoreDecay)
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, t.TempDir(), "[comprl]\ngame_class = \"duel\"\n"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Port != 8080 {
		t.Errorf("port = %d, want 8080", cfg.Port)
	}
	if cfg.ServerUpdateInterval != 1.0 {
		t.Errorf("server_update_interval = %v, want 1.0", cfg.ServerUpdateInterval)
	}
	if cfg.Timeout != 10 {
		t.Errorf("timeout = %d, want 10", cfg.Timeout)
	}
	if cfg.LogLevel != "INFO" {
		t.Errorf("log_level = %q, want INFO", cfg.LogLevel)
	}
	if cfg.RegistrationKey != "" {
		t.Errorf("registration_key = %q, want empty (registration disabled)", cfg.RegistrationKey)
	}

	mm := cfg.Matchmaking
	if mm.MatchQualityThreshold != 0.3 || mm.PercentageMinPlayersWaiting != 0.1 ||
		mm.PercentalTimeBonus != 0.1 || mm.MaxParallelGames != 100 {
		t.Errorf("matchmaking defaults = %+v", mm)
	}
	if cfg.ScoreDecay.IntervalMinutes != 0 || cfg.ScoreDecay.Delta != 0.5 {
		t.Errorf("score_decay defaults = %+v", cfg.ScoreDecay)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.toml")); err == nil {
		t.Error("expected an error for a missing file")
	}
}

func TestLoadRejectsBadTOML(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "[comprl\nport =")
	if _, err := Load(path); err == nil {
		t.Error("expected a parse error")
	}
}

func TestValidate(t *testing.T) {
	dir := t.TempDir()
	valid := func() *Config {
		return &Config{
			Port:                 8080,
			ServerUpdateInterval: 1,
			Timeout:              10,
			GameClass:            "duel",
			DatabasePath:         filepath.Join(dir, "comprl.db"),
			DataDir:              dir,
			Matchmaking:          Matchmaking{MaxParallelGames: 100},
		}
	}

	if err := valid().Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"zero port", func(c *Config) { c.Port = 0 }, "port"},
		{"port too large", func(c *Config) { c.Port = 70000 }, "port"},
		{"zero update interval", func(c *Config) { c.ServerUpdateInterval = 0 }, "server_update_interval"},
		{"zero timeout", func(c *Config) { c.Timeout = 0 }, "timeout"},
		{"missing game class", func(c *Config) { c.GameClass = "" }, "game_class"},
		{"missing database path", func(c *Config) { c.DatabasePath = "" }, "database_path"},
		{"missing data dir", func(c *Config) { c.DataDir = "" }, "data_dir"},
		{"absent data dir", func(c *Config) { c.DataDir = filepath.Join(dir, "missing") }, "data_dir"},
		{"zero parallel games", func(c *Config) { c.Matchmaking.MaxParallelGames = 0 }, "max_parallel_games"},
	}
	for _, tc := range cases {
		cfg := valid()
		tc.mutate(cfg)
		err := cfg.Validate()
		if err == nil {
			t.Errorf("%s: expected an error", tc.name)
			continue
		}
		if !strings.Contains(err.Error(), tc.want) {
			t.Errorf("%s: error %q does not mention %s", tc.name, err, tc.want)
		}
	}

	file := filepath.Join(dir, "not-a-dir")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg := valid()
	cfg.DataDir = file
	if err := cfg.Validate(); err == nil {
		t.Error("expected an error for data_dir pointing at a file")
	}
}

func TestDurationConversions(t *testing.T) {
	cfg := &Config{ServerUpdateInterval: 0.25, Timeout: 15}
	if got := cfg.UpdateInterval(); got != 250*time.Millisecond {
		t.Errorf("update interval = %v, want 250ms", got)
	}
	if got := cfg.RPCTimeout(); got != 15*time.Second {
		t.Errorf("rpc timeout = %v, want 15s", got)
	}
}
