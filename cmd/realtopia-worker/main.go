package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"realtopia/internal/config"
	"realtopia/internal/engine"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadEngineFromEnv()
	if err != nil {
		slog.Error("load config", "err", err)
		os.Exit(1)
	}

	logger := engine.NewLogger(cfg.LogLevel)
	eng, err := engine.Open(ctx, cfg, logger)
	if err != nil {
		logger.Error("engine init failed", "err", err)
		os.Exit(1)
	}
	defer eng.Close()

	if config.RunOnce() {
		if err := eng.Game.UpdateMarketPrices(ctx); err != nil {
			logger.Error("price tick failed", "err", err)
			os.Exit(1)
		}
		ev, err := eng.Game.TriggerMarketEvent(ctx)
		if err != nil {
			logger.Error("event tick failed", "err", err)
			os.Exit(1)
		}
		if ev != nil {
			logger.Info("market event started", "code", ev.Code)
		}
		logger.Info("worker run-once completed")
		return
	}

	eng.StartNotifier(ctx)
	logger.Info("worker started",
		"price_every", cfg.PriceTickEvery.String(),
		"event_every", cfg.EventTickEvery.String(),
		"volatility", cfg.MarketVolatility,
	)
	if err := eng.Game.Run(ctx); err != nil {
		logger.Error("market loop failed", "err", err)
		os.Exit(1)
	}
	logger.Info("worker shutdown")
}
