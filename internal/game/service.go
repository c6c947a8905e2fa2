package game

import (
	"context"
	"fmt"
	"log/slog"
	mathrand "math/rand"
	"slices"
	"sync"
	"time"

	"realtopia/internal/metrics"
)

const (
	DefaultPriceTickEvery = 5 * time.Second
	DefaultEventTickEvery = 5 * time.Second

	priceHistoryLimit = 64
)

// Changeset is the set of rows one operation writes. Stores apply it
// atomically.
type Changeset struct {
	Properties   []Property
	Achievements []Achievement
	Prices       []PricePoint
}

func (c Changeset) Empty() bool {
	return len(c.Properties) == 0 && len(c.Achievements) == 0 && len(c.Prices) == 0
}

type Store interface {
	ListProperties(ctx context.Context) ([]Property, error)
	ListAchievements(ctx context.Context) ([]Achievement, error)
	PriceHistory(ctx context.Context, propertyID string, limit int) ([]PricePoint, error)
	Apply(ctx context.Context, cs Changeset) error
	Replace(ctx context.Context, properties []Property, achievements []Achievement) error
}

// Session is the part of the game that lives outside the store.
type Session struct {
	State   GameState     `json:"state"`
	Events  []MarketEvent `json:"events"`
	Trend   float64       `json:"trend"`
	SavedAt time.Time     `json:"saved_at"`
}

type SessionCache interface {
	LoadSession(ctx context.Context) (Session, bool, error)
	SaveSession(ctx context.Context, sess Session) error
}

type Service struct {
	store Store
	cache SessionCache
	log   *slog.Logger
	now   func() time.Time

	params     marketDynamics
	priceEvery time.Duration
	eventEvery time.Duration

	randMu sync.Mutex
	rand   *mathrand.Rand

	mu           sync.Mutex
	state        GameState
	properties   []Property
	achievements []Achievement
	events       []MarketEvent
	trend        float64

	subMu   sync.Mutex
	subs    map[int]chan Update
	nextSub int
}

type Option func(*Service)

func WithRand(r *mathrand.Rand) Option {
	return func(s *Service) { s.rand = r }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithVolatility(mode string) Option {
	return func(s *Service) { s.params = volatilityParams(mode) }
}

func WithTickIntervals(price, event time.Duration) Option {
	return func(s *Service) {
		if price > 0 {
			s.priceEvery = price
		}
		if event > 0 {
			s.eventEvery = event
		}
	}
}

func WithSessionCache(c SessionCache) Option {
	return func(s *Service) { s.cache = c }
}

func NewService(store Store, logger *slog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		store:      store,
		log:        logger,
		now:        time.Now,
		params:     volatilityParams(""),
		priceEvery: DefaultPriceTickEvery,
		eventEvery: DefaultEventTickEvery,
		rand:       mathrand.New(mathrand.NewSource(time.Now().UnixNano())),
		state:      NewGameState(),
		trend:      DefaultTrend,
		subs:       make(map[int]chan Update),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load reads the board from the store, seeding it when empty, and restores
// the cached session if there is one.
func (s *Service) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	props, err := s.store.ListProperties(ctx)
	if err != nil {
		return fmt.Errorf("load properties: %w", err)
	}
	achs, err := s.store.ListAchievements(ctx)
	if err != nil {
		return fmt.Errorf("load achievements: %w", err)
	}

	var seed Changeset
	if len(props) == 0 {
		props = s.generateProperties()
		seed.Properties = props
	}
	if len(achs) == 0 {
		achs = DefaultAchievements()
		seed.Achievements = achs
	}
	if !seed.Empty() {
		if err := s.store.Apply(ctx, seed); err != nil {
			return fmt.Errorf("seed board: %w", err)
		}
	}
	sortProperties(props)
	s.properties = props
	s.achievements = achs

	restored := false
	if s.cache != nil {
		sess, ok, err := s.cache.LoadSession(ctx)
		if err != nil {
			s.log.Warn("session restore failed", "err", err)
		} else if ok {
			s.state = sess.State.clone()
			s.events = slices.Clone(sess.Events)
			s.trend = sess.Trend
			restored = true
		}
	}
	if !restored {
		s.state = NewGameState()
		for _, p := range s.properties {
			if p.Owned {
				s.state.TotalPropertiesOwned++
			}
		}
	}

	d := s.newDraft()
	d.refreshPortfolio()
	d.unlockTypes()
	s.state = d.state
	s.purgeExpired()
	s.observeGauges()

	s.log.Info("game loaded",
		"properties", len(s.properties),
		"achievements", len(s.achievements),
		"restored_session", restored,
		"balance", MicrosToCoins(s.state.BalanceMicros),
	)
	return nil
}

func (s *Service) State() GameState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.clone()
}

func (s *Service) Properties(filter PropertyFilter) []Property {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Property, 0, len(s.properties))
	for _, p := range s.properties {
		switch filter {
		case FilterOwned:
			if !p.Owned {
				continue
			}
		case FilterAvailable:
			if p.Owned {
				continue
			}
		}
		out = append(out, p)
	}
	return out
}

func (s *Service) Property(ctx context.Context, id string) (PropertyDetail, error) {
	s.mu.Lock()
	i := s.indexOf(id)
	if i < 0 {
		s.mu.Unlock()
		return PropertyDetail{}, ErrPropertyNotFound
	}
	out := PropertyDetail{Property: s.properties[i]}
	s.mu.Unlock()

	series, err := s.store.PriceHistory(ctx, id, priceHistoryLimit)
	if err != nil {
		return out, fmt.Errorf("price history: %w", err)
	}
	out.Series = series
	return out, nil
}

// ActiveEvents returns the events that have not expired yet.
func (s *Service) ActiveEvents() []MarketEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.liveEvents()
}

func (s *Service) Achievements(unlockedOnly bool) []Achievement {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Achievement, 0, len(s.achievements))
	for _, a := range s.achievements {
		if unlockedOnly && !a.Unlocked {
			continue
		}
		out = append(out, a)
	}
	return out
}

func (s *Service) Market() MarketInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return MarketInfo{
		Trend:      s.trend,
		Volatility: s.params.Mode,
		Events:     s.liveEvents(),
	}
}

func (s *Service) SetPaused(ctx context.Context, paused bool) GameState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setPausedLocked(ctx, paused)
}

func (s *Service) TogglePause(ctx context.Context) GameState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setPausedLocked(ctx, !s.state.Paused)
}

// setPausedLocked requires s.mu.
func (s *Service) setPausedLocked(ctx context.Context, paused bool) GameState {
	if s.state.Paused != paused {
		s.state.Paused = paused
		s.log.Info("game pause changed", "paused", paused)
		s.saveSession(ctx)
		s.publishState()
	}
	return s.state.clone()
}

// Reset starts a new session on a freshly generated board.
func (s *Service) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	props := s.generateProperties()
	achs := DefaultAchievements()
	if err := s.store.Replace(ctx, props, achs); err != nil {
		return fmt.Errorf("reset board: %w", err)
	}
	sortProperties(props)
	s.state = NewGameState()
	s.properties = props
	s.achievements = achs
	s.events = nil
	s.trend = DefaultTrend

	s.log.Info("game reset", "properties", len(props))
	s.saveSession(ctx)
	s.observeGauges()
	s.publishAll()
	return nil
}

// Run drives the price and event timers until ctx is cancelled.
func (s *Service) Run(ctx context.Context) error {
	priceTicker := time.NewTicker(s.priceEvery)
	defer priceTicker.Stop()
	eventTicker := time.NewTicker(s.eventEvery)
	defer eventTicker.Stop()

	s.log.Info("market started",
		"price_every", s.priceEvery.String(),
		"event_every", s.eventEvery.String(),
		"volatility", s.params.Mode,
	)
	for {
		select {
		case <-ctx.Done():
			s.log.Info("market stopped")
			return nil
		case <-priceTicker.C:
			if err := s.UpdateMarketPrices(ctx); err != nil {
				metrics.TickErrors.WithLabelValues("price").Inc()
				s.log.Error("price tick failed", "err", err)
			}
		case <-eventTicker.C:
			if _, err := s.TriggerMarketEvent(ctx); err != nil {
				metrics.TickErrors.WithLabelValues("event").Inc()
				s.log.Error("event tick failed", "err", err)
			}
		}
	}
}

// commit writes the draft to the store and, on success, makes it current.
// Caller holds s.mu.
func (s *Service) commit(ctx context.Context, d *draft) error {
	cs := d.changeset()
	if !cs.Empty() {
		if err := s.store.Apply(ctx, cs); err != nil {
			return fmt.Errorf("persist: %w", err)
		}
	}
	s.state = d.state
	s.properties = d.properties
	s.achievements = d.achievements
	s.trend = d.trend

	s.saveSession(ctx)
	s.observeGauges()
	if len(cs.Properties) > 0 {
		s.publishProperties()
	}
	if len(cs.Achievements) > 0 {
		s.publishAchievements()
	}
	s.publishState()
	s.announceUnlocks(d.unlocked)
	return nil
}

func (s *Service) saveSession(ctx context.Context) {
	if s.cache == nil {
		return
	}
	sess := Session{
		State:   s.state.clone(),
		Events:  slices.Clone(s.events),
		Trend:   s.trend,
		SavedAt: s.now(),
	}
	if err := s.cache.SaveSession(ctx, sess); err != nil {
		s.log.Warn("session save failed", "err", err)
	}
}

func (s *Service) observeGauges() {
	metrics.Balance.Set(MicrosToCoins(s.state.BalanceMicros))
	metrics.PortfolioValue.Set(MicrosToCoins(s.state.PortfolioValueMicros))
	metrics.ActiveEvents.Set(float64(len(s.events)))
}

func (s *Service) indexOf(id string) int {
	for i, p := range s.properties {
		if p.ID == id {
			return i
		}
	}
	return -1
}

func (s *Service) nextFloat() float64 {
	s.randMu.Lock()
	defer s.randMu.Unlock()
	return s.rand.Float64()
}

func (s *Service) nextIntn(n int) int {
	s.randMu.Lock()
	defer s.randMu.Unlock()
	return s.rand.Intn(n)
}

func sortProperties(props []Property) {
	slices.SortStableFunc(props, func(a, b Property) int {
		if a.GridY != b.GridY {
			return a.GridY - b.GridY
		}
		return a.GridX - b.GridX
	})
}
