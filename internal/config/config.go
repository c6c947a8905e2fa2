package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type EngineConfig struct {
	Addr             string
	DatabaseURL      string
	RedisAddr        string
	RedisPassword    string
	RedisDB          int
	SessionTTL       time.Duration
	PriceTickEvery   time.Duration
	EventTickEvery   time.Duration
	MarketVolatility string
	RateLimitPerSec  float64
	RateLimitBurst   int
	DiscordToken     string
	DiscordChannelID string
	LogLevel         string
}

type CLIConfig struct {
	APIBaseURL string
}

// LoadDotEnv reads .env from the working directory when present. Variables
// already set in the environment win.
func LoadDotEnv() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}
	return nil
}

func LoadEngineFromEnv() (EngineConfig, error) {
	if err := LoadDotEnv(); err != nil {
		return EngineConfig{}, err
	}

	addr := os.Getenv("PORT")
	if addr != "" {
		if !strings.HasPrefix(addr, ":") {
			addr = ":" + addr
		}
	} else {
		addr = envDefault("REALTOPIA_API_ADDR", ":8080")
	}

	cfg := EngineConfig{
		Addr:             addr,
		DatabaseURL:      strings.TrimSpace(os.Getenv("DATABASE_URL")),
		RedisAddr:        strings.TrimSpace(os.Getenv("REDIS_ADDR")),
		RedisPassword:    os.Getenv("REDIS_PASSWORD"),
		RedisDB:          envIntDefault("REDIS_DB", 0),
		SessionTTL:       envDurationDefault("REALTOPIA_SESSION_TTL", 0),
		PriceTickEvery:   envDurationDefault("REALTOPIA_PRICE_TICK_EVERY", 5*time.Second),
		EventTickEvery:   envDurationDefault("REALTOPIA_EVENT_TICK_EVERY", 5*time.Second),
		MarketVolatility: envVolatilityDefault(),
		RateLimitPerSec:  envFloatDefault("REALTOPIA_RATE_LIMIT_RPS", 5),
		RateLimitBurst:   envIntDefault("REALTOPIA_RATE_LIMIT_BURST", 10),
		DiscordToken:     strings.TrimSpace(os.Getenv("DISCORD_BOT_TOKEN")),
		DiscordChannelID: strings.TrimSpace(os.Getenv("DISCORD_CHANNEL_ID")),
		LogLevel:         strings.ToLower(envDefault("LOG_LEVEL", "info")),
	}
	if cfg.PriceTickEvery <= 0 {
		return cfg, fmt.Errorf("REALTOPIA_PRICE_TICK_EVERY must be positive")
	}
	if cfg.EventTickEvery <= 0 {
		return cfg, fmt.Errorf("REALTOPIA_EVENT_TICK_EVERY must be positive")
	}
	if (cfg.DiscordToken == "") != (cfg.DiscordChannelID == "") {
		return cfg, fmt.Errorf("DISCORD_BOT_TOKEN and DISCORD_CHANNEL_ID must be set together")
	}
	return cfg, nil
}

func LoadCLIFromEnv() CLIConfig {
	_ = LoadDotEnv()
	return CLIConfig{
		APIBaseURL: strings.TrimRight(envDefault("RTP_API_BASE_URL", "http://localhost:8080"), "/"),
	}
}

func envDefault(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func envDurationDefault(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func envFloatDefault(key string, fallback float64) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func envIntDefault(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envBoolDefault(key string, fallback bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

// RunOnce reports whether the worker should run a single tick and exit.
func RunOnce() bool {
	return envBoolDefault("REALTOPIA_WORKER_RUN_ONCE", false)
}

func envVolatilityDefault() string {
	v := strings.ToLower(strings.TrimSpace(os.Getenv("VOLATILITY")))
	if v == "" {
		v = strings.ToLower(strings.TrimSpace(os.Getenv("REALTOPIA_MARKET_VOLATILITY")))
	}
	switch v {
	case "calm", "mor", "wild":
		return v
	default:
		return "mor"
	}
}
