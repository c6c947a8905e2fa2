package engine

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"realtopia/internal/cache"
	"realtopia/internal/config"
	"realtopia/internal/db"
	"realtopia/internal/game"
	"realtopia/internal/notify"
	"realtopia/internal/store"
)

// Engine is a loaded game service plus the connections it owns.
type Engine struct {
	Game *game.Service

	log     *slog.Logger
	pool    *pgxpool.Pool
	redis   *redis.Client
	discord *notify.Discord
}

func NewLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}

// Open wires the store, session cache and notifier from cfg and loads the
// game. Postgres and Redis are optional; without them the board lives in
// memory and the session starts fresh.
func Open(ctx context.Context, cfg config.EngineConfig, logger *slog.Logger) (*Engine, error) {
	e := &Engine{log: logger}

	var st game.Store
	if cfg.DatabaseURL != "" {
		pool, err := db.Connect(ctx, cfg.DatabaseURL, logger)
		if err != nil {
			return nil, err
		}
		e.pool = pool
		if err := db.Migrate(cfg.DatabaseURL, logger); err != nil {
			e.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
		st = store.NewPostgres(pool)
	} else {
		logger.Warn("DATABASE_URL not set, using in-memory store")
		st = store.NewMemory()
	}

	opts := []game.Option{
		game.WithVolatility(cfg.MarketVolatility),
		game.WithTickIntervals(cfg.PriceTickEvery, cfg.EventTickEvery),
	}
	if cfg.RedisAddr != "" {
		client, err := cache.Connect(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			e.Close()
			return nil, err
		}
		e.redis = client
		opts = append(opts, game.WithSessionCache(cache.NewRedis(client, cache.DefaultSessionKey, cfg.SessionTTL)))
	}

	e.Game = game.NewService(st, logger, opts...)
	if err := e.Game.Load(ctx); err != nil {
		e.Close()
		return nil, err
	}

	if cfg.DiscordToken != "" {
		d, err := notify.NewDiscord(cfg.DiscordToken, cfg.DiscordChannelID, logger)
		if err != nil {
			e.Close()
			return nil, err
		}
		e.discord = d
	}
	return e, nil
}

// StartNotifier forwards game updates to Discord until ctx is done. It is a
// no-op when no bot token is configured.
func (e *Engine) StartNotifier(ctx context.Context) {
	if e.discord == nil {
		return
	}
	updates, cancel := e.Game.Subscribe()
	go func() {
		defer cancel()
		e.discord.Run(ctx, updates)
	}()
	e.log.Info("discord notifier started")
}

func (e *Engine) Close() {
	if e.redis != nil {
		_ = e.redis.Close()
	}
	if e.pool != nil {
		e.pool.Close()
	}
}
