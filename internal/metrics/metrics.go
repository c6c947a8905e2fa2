package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	Ticks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "realtopia_ticks_total",
		Help: "Total number of market timer ticks processed",
	}, []string{"timer"})

	TickErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "realtopia_tick_errors_total",
		Help: "Total number of failed market timer ticks",
	}, []string{"timer"})

	Trades = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "realtopia_trades_total",
		Help: "Total number of completed buys and sells",
	}, []string{"side"})

	EventsStarted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "realtopia_market_events_started_total",
		Help: "Total number of market events started",
	}, []string{"code"})

	AchievementsUnlocked = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "realtopia_achievements_unlocked_total",
		Help: "Total number of achievements unlocked",
	}, []string{"achievement"})

	DroppedUpdates = promauto.NewCounter(prometheus.CounterOpts{
		Name: "realtopia_dropped_updates_total",
		Help: "Updates dropped because an observer was not keeping up",
	})

	Balance = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "realtopia_balance_coins",
		Help: "Current player balance",
	})

	PortfolioValue = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "realtopia_portfolio_value_coins",
		Help: "Current value of owned properties",
	})

	ActiveEvents = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "realtopia_active_market_events",
		Help: "Number of market events currently active",
	})

	Subscribers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "realtopia_subscribers",
		Help: "Number of registered update observers",
	})

	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "realtopia_http_requests_total",
		Help: "Total number of HTTP requests by route and status",
	}, []string{"route", "status"})

	HTTPLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "realtopia_http_request_duration_seconds",
		Help:    "Latency of HTTP requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})

	StoreLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "realtopia_store_duration_seconds",
		Help:    "Latency of store operations",
		Buckets: prometheus.DefBuckets,
	}, []string{"op"})
)
