package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"crashcasino/internal/game"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("CRASH_CONFIG_FILE", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Game.Countdown.Std() != game.BETTING_TIME {
		t.Errorf("Countdown = %v, want %v", cfg.Game.Countdown.Std(), game.BETTING_TIME)
	}
	if cfg.Game.Ceiling != game.DEFAULT_CRASH_CEILING {
		t.Errorf("Ceiling = %v, want %v", cfg.Game.Ceiling, game.DEFAULT_CRASH_CEILING)
	}
	// 100ms polling for a full minute stays under the default budget.
	if got := Default().RateLimitMax; got < 600 {
		t.Errorf("RateLimitMax = %d, want room for 100ms polling", got)
	}
}

func TestLoad_Env(t *testing.T) {
	t.Setenv("CRASH_CONFIG_FILE", "")
	t.Setenv("PORT", "9090")
	t.Setenv("CRASH_COUNTDOWN", "7s")
	t.Setenv("CRASH_CEILING", "10")
	t.Setenv("CRASH_MAX_BET", "250")
	t.Setenv("REDIS_URL", "cache:6380")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Port != 9090 || cfg.Redis.Addr != "cache:6380" {
		t.Errorf("server settings = %d %s", cfg.Port, cfg.Redis.Addr)
	}

	mc := cfg.Game.Manager()
	if mc.CountdownDuration != 7*time.Second || mc.Curve.Ceiling != 10 || mc.MaxBet != 250 {
		t.Errorf("Manager() = %+v", mc)
	}
}

func TestLoad_EnvErrors(t *testing.T) {
	t.Setenv("CRASH_CONFIG_FILE", "")
	t.Setenv("PORT", "eighty")
	t.Setenv("CRASH_TICK", "fast")

	_, err := Load()
	if err == nil {
		t.Fatal("Load() should reject malformed values")
	}
	for _, key := range []string{"PORT", "CRASH_TICK"} {
		if !strings.Contains(err.Error(), key) {
			t.Errorf("error %q should name %s", err, key)
		}
	}
}

func TestLoad_YAMLThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "crash.yaml")
	content := `
rate_limit_max: 50
game:
  countdown: 3s
  cooldown: 1500ms
  rate: 0.7
  min_bet: 1
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CRASH_CONFIG_FILE", path)
	t.Setenv("CRASH_COOLDOWN", "2s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.RateLimitMax != 50 || cfg.Game.Rate != 0.7 || cfg.Game.MinBet != 1 {
		t.Errorf("yaml values not applied: %+v", cfg)
	}
	if cfg.Game.Countdown.Std() != 3*time.Second {
		t.Errorf("Countdown = %v, want 3s", cfg.Game.Countdown.Std())
	}
	if cfg.Game.Cooldown.Std() != 2*time.Second {
		t.Errorf("Cooldown = %v, want env override 2s", cfg.Game.Cooldown.Std())
	}
	// Untouched keys keep their defaults.
	if cfg.Game.StepGrowth != game.DEFAULT_STEP_GROWTH {
		t.Errorf("StepGrowth = %v, want default", cfg.Game.StepGrowth)
	}
}

func TestLoad_BadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "crash.yaml")
	os.WriteFile(path, []byte("game:\n  countdown: soon\n"), 0o600)
	t.Setenv("CRASH_CONFIG_FILE", path)

	if _, err := Load(); err == nil {
		t.Error("Load() should reject an invalid duration")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"zero countdown", func(c *Config) { c.Game.Countdown = 0 }, true},
		{"negative cooldown", func(c *Config) { c.Game.Cooldown = Duration(-time.Second) }, true},
		{"zero rate", func(c *Config) { c.Game.Rate = 0 }, true},
		{"ceiling below one", func(c *Config) { c.Game.Ceiling = 0.5 }, true},
		{"min above max", func(c *Config) { c.Game.MinBet = 50; c.Game.MaxBet = 10 }, true},
		{"bad port", func(c *Config) { c.Port = 0 }, true},
		{"zero cooldown", func(c *Config) { c.Game.Cooldown = 0 }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			if err := cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
