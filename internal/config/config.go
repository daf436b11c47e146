package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"gopkg.in/yaml.v3"

	"crashcasino/internal/game"
)

// Duration reads "250ms" or "5s" from YAML.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	parsed, err := time.ParseDuration(node.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// GameConfig tunes the round timing, the crash distribution and the stake
// limits.
type GameConfig struct {
	Countdown         Duration `yaml:"countdown"`
	Cooldown          Duration `yaml:"cooldown"`
	Tick              Duration `yaml:"tick"`
	Step              Duration `yaml:"step"`
	StepGrowth        float64  `yaml:"step_growth"`
	Rate              float64  `yaml:"rate"`
	Ceiling           float64  `yaml:"ceiling"`
	MinBet            float64  `yaml:"min_bet"`
	MaxBet            float64  `yaml:"max_bet"`
	StartingBalance   float64  `yaml:"starting_balance"`
	HistorySize       int      `yaml:"history_size"`
	SettlementTimeout Duration `yaml:"settlement_timeout"`
}

type Config struct {
	Port           int         `yaml:"port"`
	Env            string      `yaml:"env"`
	LogLevel       string      `yaml:"log_level"`
	RateLimitMax   int         `yaml:"rate_limit_max"`
	MigrationsPath string      `yaml:"migrations_path"`
	Redis          RedisConfig `yaml:"redis"`
	Game           GameConfig  `yaml:"game"`
}

func Default() Config {
	return Config{
		Port:           8080,
		Env:            "local",
		LogLevel:       "info",
		RateLimitMax:   1200,
		MigrationsPath: "./migrations",
		Redis: RedisConfig{
			Addr: "localhost:6379",
		},
		Game: GameConfig{
			Countdown:         Duration(game.BETTING_TIME),
			Cooldown:          Duration(game.COOLDOWN_TIME),
			Tick:              Duration(game.TICK_INTERVAL),
			Step:              Duration(game.DEFAULT_STEP_INTERVAL),
			StepGrowth:        game.DEFAULT_STEP_GROWTH,
			Rate:              game.DEFAULT_CRASH_RATE,
			Ceiling:           game.DEFAULT_CRASH_CEILING,
			MinBet:            0.10,
			MaxBet:            game.MAX_BET_AMOUNT,
			StartingBalance:   1000,
			HistorySize:       game.HISTORY_SIZE,
			SettlementTimeout: Duration(game.SETTLEMENT_TIMEOUT),
		},
	}
}

// Load builds the configuration from defaults, then the YAML file named by
// CRASH_CONFIG_FILE, then environment variables.
func Load() (Config, error) {
	cfg := Default()

	if path := os.Getenv("CRASH_CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return cfg, err
		}
	}

	if err := cfg.loadEnv(); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

func (c *Config) loadFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func (c *Config) loadEnv() error {
	var errs []error
	collect := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	collect(envInt("PORT", &c.Port))
	envString("APP_ENV", &c.Env)
	envString("LOG_LEVEL", &c.LogLevel)
	collect(envInt("RATE_LIMIT_MAX", &c.RateLimitMax))
	envString("MIGRATIONS_PATH", &c.MigrationsPath)

	envString("REDIS_URL", &c.Redis.Addr)
	envString("REDIS_PASSWORD", &c.Redis.Password)
	collect(envInt("REDIS_DB", &c.Redis.DB))

	collect(envDuration("CRASH_COUNTDOWN", &c.Game.Countdown))
	collect(envDuration("CRASH_COOLDOWN", &c.Game.Cooldown))
	collect(envDuration("CRASH_TICK", &c.Game.Tick))
	collect(envDuration("CRASH_STEP", &c.Game.Step))
	collect(envFloat("CRASH_STEP_GROWTH", &c.Game.StepGrowth))
	collect(envFloat("CRASH_RATE", &c.Game.Rate))
	collect(envFloat("CRASH_CEILING", &c.Game.Ceiling))
	collect(envFloat("CRASH_MIN_BET", &c.Game.MinBet))
	collect(envFloat("CRASH_MAX_BET", &c.Game.MaxBet))
	collect(envFloat("CRASH_STARTING_BALANCE", &c.Game.StartingBalance))
	collect(envInt("CRASH_HISTORY_SIZE", &c.Game.HistorySize))
	collect(envDuration("CRASH_SETTLEMENT_TIMEOUT", &c.Game.SettlementTimeout))

	return errors.Join(errs...)
}

func (c Config) Validate() error {
	g := c.Game
	switch {
	case c.Port <= 0 || c.Port > 65535:
		return fmt.Errorf("port %d out of range", c.Port)
	case g.Countdown <= 0:
		return errors.New("countdown must be positive")
	case g.Cooldown < 0:
		return errors.New("cooldown cannot be negative")
	case g.Tick <= 0 || g.Step <= 0:
		return errors.New("tick and step must be positive")
	case g.StepGrowth <= 0:
		return errors.New("step growth must be positive")
	case g.Rate <= 0:
		return errors.New("crash rate must be positive")
	case g.Ceiling < game.MIN_MULTIPLIER:
		return fmt.Errorf("ceiling %.2f below %.2f", g.Ceiling, game.MIN_MULTIPLIER)
	case g.MinBet < 0 || (g.MaxBet > 0 && g.MinBet > g.MaxBet):
		return fmt.Errorf("bet limits %.2f..%.2f are inconsistent", g.MinBet, g.MaxBet)
	case g.StartingBalance < 0:
		return errors.New("starting balance cannot be negative")
	}
	return nil
}

func (c Config) IsLocal() bool {
	return c.Env == "local"
}

// Manager maps the game settings onto the round scheduler configuration.
func (g GameConfig) Manager() game.Config {
	return game.Config{
		CountdownDuration: g.Countdown.Std(),
		CooldownDuration:  g.Cooldown.Std(),
		TickInterval:      g.Tick.Std(),
		Curve: game.Curve{
			Step:    g.Step.Std(),
			Growth:  g.StepGrowth,
			Ceiling: g.Ceiling,
		},
		MinBet:            g.MinBet,
		MaxBet:            g.MaxBet,
		SettlementTimeout: g.SettlementTimeout.Std(),
		HistorySize:       g.HistorySize,
	}
}

func envString(key string, dst *string) {
	if val := os.Getenv(key); val != "" {
		*dst = val
	}
}

func envInt(key string, dst *int) error {
	val := os.Getenv(key)
	if val == "" {
		return nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}

func envFloat(key string, dst *float64) error {
	val := os.Getenv(key)
	if val == "" {
		return nil
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = f
	return nil
}

func envDuration(key string, dst *Duration) error {
	val := os.Getenv(key)
	if val == "" {
		return nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = Duration(d)
	return nil
}
