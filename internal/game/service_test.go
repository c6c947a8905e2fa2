package game_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	mathrand "math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"realtopia/internal/game"
	"realtopia/internal/store"
)

// constSource makes every draw identical: 0 yields Float64() == 0 and
// 1<<62 yields Float64() == 0.5.
type constSource int64

func (c constSource) Int63() int64 { return int64(c) }
func (c constSource) Seed(int64)   {}

const (
	drawZero = constSource(0)
	drawHalf = constSource(1 << 62)
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func coins(v int64) int64 { return v * game.MicrosPerCoin }

func seedBoard(t *testing.T, mem *store.Memory) {
	t.Helper()
	board := []game.Property{
		{ID: "apt-1", Name: "Modern Loft", Type: game.TypeApartment, Location: game.LocationSuburb, ListingMicros: coins(200), CurrentMicros: coins(200), GridX: 0},
		{ID: "house-1", Name: "Beach House", Type: game.TypeHouse, Location: game.LocationCoast, ListingMicros: coins(100), CurrentMicros: coins(100), GridX: 1},
		{ID: "apt-2", Name: "Golden Tower", Type: game.TypeApartment, Location: game.LocationCenter, ListingMicros: coins(20_000), CurrentMicros: coins(20_000), GridX: 2},
	}
	require.NoError(t, mem.Apply(context.Background(), game.Changeset{Properties: board}))
}

func newTestService(t *testing.T, src mathrand.Source, opts ...game.Option) (*game.Service, *store.Memory, *testClock) {
	t.Helper()
	mem := store.NewMemory()
	seedBoard(t, mem)
	clock := &testClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	opts = append([]game.Option{game.WithRand(mathrand.New(src)), game.WithClock(clock.Now)}, opts...)
	svc := game.NewService(mem, logger, opts...)
	require.NoError(t, svc.Load(context.Background()))
	return svc, mem, clock
}

func achievement(t *testing.T, svc *game.Service, id string) game.Achievement {
	t.Helper()
	for _, a := range svc.Achievements(false) {
		if a.ID == id {
			return a
		}
	}
	t.Fatalf("achievement %s not found", id)
	return game.Achievement{}
}

func property(t *testing.T, svc *game.Service, id string) game.Property {
	t.Helper()
	detail, err := svc.Property(context.Background(), id)
	require.NoError(t, err)
	return detail.Property
}

func TestLoadSeedsEmptyStore(t *testing.T) {
	mem := store.NewMemory()
	svc := game.NewService(mem, slog.New(slog.NewTextHandler(io.Discard, nil)), game.WithRand(mathrand.New(mathrand.NewSource(7))))
	require.NoError(t, svc.Load(context.Background()))

	props := svc.Properties(game.FilterAll)
	require.Len(t, props, game.GeneratedProperties)
	for i, p := range props {
		assert.Equal(t, i%game.PropertyGridWidth, p.GridX)
		assert.Equal(t, i/game.PropertyGridWidth, p.GridY)
		assert.False(t, p.Owned)
		assert.GreaterOrEqual(t, p.CurrentMicros, int64(0))
	}
	assert.Len(t, svc.Achievements(false), len(game.DefaultAchievements()))

	stored, err := mem.ListProperties(context.Background())
	require.NoError(t, err)
	assert.Len(t, stored, game.GeneratedProperties)

	st := svc.State()
	assert.Equal(t, game.StarterBalanceMicros, st.BalanceMicros)
	assert.Equal(t, []game.PropertyType{game.TypeApartment}, st.UnlockedPropertyTypes)
}

func TestBuyProperty(t *testing.T) {
	svc, _, _ := newTestService(t, drawHalf)
	ctx := context.Background()

	res, err := svc.BuyProperty(ctx, "apt-1")
	require.NoError(t, err)
	assert.True(t, res.Property.Owned)
	assert.Equal(t, coins(200), res.Property.PurchaseMicros)
	require.NotNil(t, res.Property.PurchasedAt)

	// 10,000 - 200 + 100 first_property reward
	st := svc.State()
	assert.Equal(t, coins(9_900), st.BalanceMicros)
	assert.Equal(t, coins(200), st.PortfolioValueMicros)
	assert.Equal(t, 1, st.TotalPropertiesOwned)
	assert.Equal(t, res.State, st)

	first := achievement(t, svc, "first_property")
	assert.True(t, first.Unlocked)
	assert.NotNil(t, first.UnlockedAt)
	assert.Equal(t, float64(1), achievement(t, svc, "property_mogul").Progress)
	assert.False(t, achievement(t, svc, "millionaire").Unlocked)

	assert.Len(t, svc.Properties(game.FilterOwned), 1)
	assert.Len(t, svc.Properties(game.FilterAvailable), 2)
}

func TestBuyPropertyErrors(t *testing.T) {
	svc, _, _ := newTestService(t, drawHalf)
	ctx := context.Background()

	_, err := svc.BuyProperty(ctx, "missing")
	assert.ErrorIs(t, err, game.ErrPropertyNotFound)

	_, err = svc.BuyProperty(ctx, "apt-2")
	assert.ErrorIs(t, err, game.ErrInsufficientBalance)

	_, err = svc.BuyProperty(ctx, "apt-1")
	require.NoError(t, err)
	_, err = svc.BuyProperty(ctx, "apt-1")
	assert.ErrorIs(t, err, game.ErrAlreadyOwned)

	assert.Equal(t, coins(9_900), svc.State().BalanceMicros)
}

func TestSellPropertyRealizesProfit(t *testing.T) {
	svc, _, _ := newTestService(t, drawHalf)
	ctx := context.Background()

	_, err := svc.SellProperty(ctx, "apt-1")
	assert.ErrorIs(t, err, game.ErrNotOwned)
	_, err = svc.SellProperty(ctx, "missing")
	assert.ErrorIs(t, err, game.ErrPropertyNotFound)

	_, err = svc.BuyProperty(ctx, "apt-1")
	require.NoError(t, err)

	// zero shock leaves only the 2% trend: 200 -> 204
	require.NoError(t, svc.UpdateMarketPrices(ctx))
	assert.Equal(t, coins(204), property(t, svc, "apt-1").CurrentMicros)

	res, err := svc.SellProperty(ctx, "apt-1")
	require.NoError(t, err)
	assert.Equal(t, coins(4), res.ProfitMicros)
	assert.False(t, res.Property.Owned)
	assert.Nil(t, res.Property.PurchasedAt)

	// 9,900 + 204 crosses 10,000 and pays the millionaire reward
	st := svc.State()
	assert.Equal(t, coins(11_104), st.BalanceMicros)
	assert.Equal(t, int64(0), st.PortfolioValueMicros)
	assert.Equal(t, 1, st.TotalPropertiesSold)
	assert.Equal(t, coins(4), st.TotalProfitMicros)
	assert.True(t, achievement(t, svc, "millionaire").Unlocked)
	assert.Equal(t, float64(4), achievement(t, svc, "profit_master").Progress)
	assert.True(t, st.IsUnlocked(game.TypeHouse))
	assert.False(t, st.IsUnlocked(game.TypeVilla))
	assert.Equal(t, float64(2), achievement(t, svc, "risk_taker").Progress)
}

func TestBuyLockedTypeIsAllowed(t *testing.T) {
	svc, _, _ := newTestService(t, drawHalf)
	ctx := context.Background()
	require.False(t, svc.State().IsUnlocked(game.TypeHouse))

	res, err := svc.BuyProperty(ctx, "house-1")
	require.NoError(t, err)
	assert.True(t, res.Property.Owned)
	assert.Equal(t, game.TypeHouse, res.Property.Type)
	assert.Equal(t, coins(10_000), svc.State().BalanceMicros)
	assert.False(t, svc.State().IsUnlocked(game.TypeHouse))
}

func TestBalanceProgressAccumulatesAcrossTrades(t *testing.T) {
	svc, _, _ := newTestService(t, drawHalf)
	ctx := context.Background()

	_, err := svc.BuyProperty(ctx, "apt-1")
	require.NoError(t, err)
	millionaire := achievement(t, svc, "millionaire")
	assert.Equal(t, float64(9_800), millionaire.Progress)
	assert.False(t, millionaire.Unlocked)

	// 9,900 - 100 adds 9,800 more, crossing 10,000
	_, err = svc.BuyProperty(ctx, "house-1")
	require.NoError(t, err)
	millionaire = achievement(t, svc, "millionaire")
	assert.True(t, millionaire.Unlocked)
	assert.Equal(t, float64(19_600), millionaire.Progress)

	st := svc.State()
	assert.Equal(t, coins(10_800), st.BalanceMicros)
	assert.Equal(t, coins(300), st.PortfolioValueMicros)
	assert.Equal(t, float64(300), achievement(t, svc, "portfolio_manager").Progress)
}

func TestProfitIsMeasuredFromListingPrice(t *testing.T) {
	mem := store.NewMemory()
	loft := game.Property{ID: "loft", Name: "Harbor Loft", Type: game.TypeApartment, Location: game.LocationCoast,
		ListingMicros: coins(200), CurrentMicros: coins(300)}
	require.NoError(t, mem.Apply(context.Background(), game.Changeset{Properties: []game.Property{loft}}))
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := game.NewService(mem, logger, game.WithRand(mathrand.New(drawHalf)))
	require.NoError(t, svc.Load(context.Background()))
	ctx := context.Background()

	bought, err := svc.BuyProperty(ctx, "loft")
	require.NoError(t, err)
	assert.Equal(t, coins(300), bought.Property.PurchaseMicros)
	assert.Equal(t, coins(100), bought.Property.ProfitMicros())
	assert.Equal(t, coins(9_800), svc.State().BalanceMicros)

	res, err := svc.SellProperty(ctx, "loft")
	require.NoError(t, err)
	assert.Equal(t, coins(100), res.ProfitMicros)

	// 9,800 + 300 plus the millionaire and risk_taker rewards; the 50%
	// return is measured against the 200 listing
	st := svc.State()
	assert.Equal(t, coins(100), st.TotalProfitMicros)
	assert.Equal(t, coins(12_300), st.BalanceMicros)
	assert.Equal(t, float64(100), achievement(t, svc, "profit_master").Progress)
	assert.True(t, achievement(t, svc, "risk_taker").Unlocked)
}

func TestFailedWriteLeavesStateUnchanged(t *testing.T) {
	svc, mem, _ := newTestService(t, drawHalf)
	ctx := context.Background()
	before := svc.State()

	mem.FailWith(errors.New("db down"))
	_, err := svc.BuyProperty(ctx, "apt-1")
	require.Error(t, err)
	assert.Equal(t, before, svc.State())
	assert.False(t, property(t, svc, "apt-1").Owned)
	assert.False(t, achievement(t, svc, "first_property").Unlocked)

	require.Error(t, svc.UpdateMarketPrices(ctx))
	assert.Equal(t, coins(200), property(t, svc, "apt-1").CurrentMicros)

	mem.FailWith(nil)
	_, err = svc.BuyProperty(ctx, "apt-1")
	require.NoError(t, err)
}

func TestUpdateMarketPricesRecordsHistory(t *testing.T) {
	svc, _, _ := newTestService(t, drawZero)
	ctx := context.Background()

	for range 3 {
		require.NoError(t, svc.UpdateMarketPrices(ctx))
	}
	detail, err := svc.Property(ctx, "apt-2")
	require.NoError(t, err)
	require.Len(t, detail.Series, 3)
	assert.Equal(t, detail.CurrentMicros, detail.Series[2].PriceMicros)
	assert.Less(t, detail.PriceChangeMicros, int64(0))

	for _, p := range svc.Properties(game.FilterAll) {
		assert.GreaterOrEqual(t, p.CurrentMicros, game.PriceFloor(p.Type))
		assert.LessOrEqual(t, p.CurrentMicros, game.PriceCeiling(p.Type))
	}
	assert.GreaterOrEqual(t, svc.Market().Trend, -0.05)
}

func TestPauseSkipsTicks(t *testing.T) {
	svc, _, _ := newTestService(t, drawZero)
	ctx := context.Background()

	st := svc.TogglePause(ctx)
	require.True(t, st.Paused)

	require.NoError(t, svc.UpdateMarketPrices(ctx))
	assert.Equal(t, coins(200), property(t, svc, "apt-1").CurrentMicros)

	ev, err := svc.TriggerMarketEvent(ctx)
	require.NoError(t, err)
	assert.Nil(t, ev)
	assert.Empty(t, svc.ActiveEvents())

	_, err = svc.BuyProperty(ctx, "apt-1")
	require.NoError(t, err)

	st = svc.SetPaused(ctx, false)
	assert.False(t, st.Paused)
	require.NoError(t, svc.UpdateMarketPrices(ctx))
	assert.NotEqual(t, coins(200), property(t, svc, "apt-1").CurrentMicros)
}

func TestConcurrentTogglePause(t *testing.T) {
	svc, _, _ := newTestService(t, drawZero)
	ctx := context.Background()

	const toggles = 64
	var wg sync.WaitGroup
	for range toggles {
		wg.Add(1)
		go func() {
			defer wg.Done()
			svc.TogglePause(ctx)
		}()
	}
	wg.Wait()
	assert.False(t, svc.State().Paused)

	assert.True(t, svc.TogglePause(ctx).Paused)
}

func TestTriggerMarketEventLifecycle(t *testing.T) {
	svc, _, clock := newTestService(t, drawZero)
	ctx := context.Background()

	ev, err := svc.TriggerMarketEvent(ctx)
	require.NoError(t, err)
	require.NotNil(t, ev)
	assert.Equal(t, "metro_line", ev.Code)
	assert.NotEmpty(t, ev.ID)
	assert.Equal(t, float64(1), achievement(t, svc, "market_watcher").Progress)

	again, err := svc.TriggerMarketEvent(ctx)
	require.NoError(t, err)
	assert.Nil(t, again, "only one event may be active")
	assert.Len(t, svc.ActiveEvents(), 1)

	clock.Advance(21 * time.Second)
	assert.Empty(t, svc.ActiveEvents())

	next, err := svc.TriggerMarketEvent(ctx)
	require.NoError(t, err)
	require.NotNil(t, next)
	assert.NotEqual(t, ev.ID, next.ID)
	assert.Equal(t, float64(2), achievement(t, svc, "market_watcher").Progress)
}

func TestEventMultiplierAppliesToAffectedTypes(t *testing.T) {
	svc, _, _ := newTestService(t, drawHalf)
	ctx := context.Background()

	ev, err := svc.StartEvent(ctx, "metro_line")
	require.NoError(t, err)
	assert.Equal(t, 1.3, ev.Multiplier)

	require.NoError(t, svc.UpdateMarketPrices(ctx))
	// 200 * 1.02 * 1.3
	assert.Equal(t, game.CoinsToMicros(265.2), property(t, svc, "apt-1").CurrentMicros)
}

func TestStartEventErrors(t *testing.T) {
	svc, _, clock := newTestService(t, drawHalf)
	ctx := context.Background()

	_, err := svc.StartEvent(ctx, "alien_invasion")
	assert.ErrorIs(t, err, game.ErrUnknownEvent)

	_, err = svc.StartEvent(ctx, "tech_boom")
	require.NoError(t, err)
	_, err = svc.StartEvent(ctx, "shopping_mall")
	assert.ErrorIs(t, err, game.ErrEventActive)

	clock.Advance(time.Minute)
	_, err = svc.StartEvent(ctx, "shopping_mall")
	require.NoError(t, err)
	require.Len(t, svc.Market().Events, 1)
	assert.Equal(t, "shopping_mall", svc.Market().Events[0].Code)
}

func TestUpdateAchievementProgressPaysOnce(t *testing.T) {
	svc, _, _ := newTestService(t, drawHalf)
	ctx := context.Background()

	require.NoError(t, svc.UpdateAchievementProgress(ctx, game.AchievementMarketEvents, 0))
	require.NoError(t, svc.UpdateAchievementProgress(ctx, game.AchievementMarketEvents, -3))
	assert.Equal(t, float64(0), achievement(t, svc, "market_watcher").Progress)

	require.NoError(t, svc.UpdateAchievementProgress(ctx, game.AchievementMarketEvents, 5))
	a := achievement(t, svc, "market_watcher")
	assert.True(t, a.Unlocked)
	assert.Equal(t, coins(10_300), svc.State().BalanceMicros)

	require.NoError(t, svc.UpdateAchievementProgress(ctx, game.AchievementMarketEvents, 5))
	assert.Equal(t, coins(10_300), svc.State().BalanceMicros)
	assert.Equal(t, a.Progress, achievement(t, svc, "market_watcher").Progress)
	assert.Len(t, svc.Achievements(true), 1)
}

func TestSubscribeReceivesUpdates(t *testing.T) {
	svc, _, _ := newTestService(t, drawHalf)
	ctx := context.Background()

	updates, cancel := svc.Subscribe()
	svc.SetPaused(ctx, true)

	select {
	case u := <-updates:
		require.Equal(t, game.UpdateState, u.Kind)
		require.NotNil(t, u.State)
		assert.True(t, u.State.Paused)
	case <-time.After(time.Second):
		t.Fatal("no update received")
	}

	_, err := svc.BuyProperty(ctx, "apt-1")
	require.NoError(t, err)
	kinds := make(map[game.UpdateKind]bool)
	for len(updates) > 0 {
		kinds[(<-updates).Kind] = true
	}
	assert.True(t, kinds[game.UpdateProperties])
	assert.True(t, kinds[game.UpdateAchievements])
	assert.True(t, kinds[game.UpdateAchievementUnlocked])

	cancel()
	_, ok := <-updates
	assert.False(t, ok)
	cancel()
}

func TestSlowSubscriberDoesNotBlock(t *testing.T) {
	svc, _, _ := newTestService(t, drawHalf)
	ctx := context.Background()

	_, cancel := svc.Subscribe()
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for range 100 {
			svc.TogglePause(ctx)
		}
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("publishing blocked on a full subscriber")
	}
}

func TestReset(t *testing.T) {
	svc, mem, _ := newTestService(t, drawHalf)
	ctx := context.Background()

	_, err := svc.BuyProperty(ctx, "apt-1")
	require.NoError(t, err)
	_, err = svc.StartEvent(ctx, "metro_line")
	require.NoError(t, err)

	require.NoError(t, svc.Reset(ctx))
	st := svc.State()
	assert.Equal(t, game.StarterBalanceMicros, st.BalanceMicros)
	assert.Zero(t, st.TotalPropertiesOwned)
	assert.Empty(t, svc.ActiveEvents())
	assert.Empty(t, svc.Achievements(true))
	assert.Len(t, svc.Properties(game.FilterAll), game.GeneratedProperties)
	assert.Empty(t, svc.Properties(game.FilterOwned))

	stored, err := mem.ListProperties(ctx)
	require.NoError(t, err)
	assert.Len(t, stored, game.GeneratedProperties)
}

type memorySession struct {
	mu    sync.Mutex
	sess  game.Session
	ok    bool
	saves int
}

func (m *memorySession) LoadSession(context.Context) (game.Session, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sess, m.ok, nil
}

func (m *memorySession) SaveSession(_ context.Context, sess game.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sess, m.ok = sess, true
	m.saves++
	return nil
}

func TestSessionSurvivesRestart(t *testing.T) {
	cache := &memorySession{}
	svc, mem, clock := newTestService(t, drawHalf, game.WithSessionCache(cache))
	ctx := context.Background()

	_, err := svc.BuyProperty(ctx, "apt-1")
	require.NoError(t, err)
	_, err = svc.StartEvent(ctx, "metro_line")
	require.NoError(t, err)
	assert.Positive(t, cache.saves)

	restarted := game.NewService(mem, slog.New(slog.NewTextHandler(io.Discard, nil)),
		game.WithRand(mathrand.New(drawHalf)),
		game.WithClock(clock.Now),
		game.WithSessionCache(cache),
	)
	require.NoError(t, restarted.Load(ctx))
	assert.Equal(t, svc.State(), restarted.State())
	assert.Len(t, restarted.ActiveEvents(), 1)
	assert.True(t, property(t, restarted, "apt-1").Owned)
}

func TestLoadWithoutSessionRebuildsOwnership(t *testing.T) {
	svc, mem, _ := newTestService(t, drawHalf)
	ctx := context.Background()
	_, err := svc.BuyProperty(ctx, "apt-1")
	require.NoError(t, err)

	restarted := game.NewService(mem, slog.New(slog.NewTextHandler(io.Discard, nil)), game.WithRand(mathrand.New(drawHalf)))
	require.NoError(t, restarted.Load(ctx))
	st := restarted.State()
	assert.Equal(t, 1, st.TotalPropertiesOwned)
	assert.Equal(t, coins(200), st.PortfolioValueMicros)
	assert.True(t, achievement(t, restarted, "first_property").Unlocked)
}

func TestRunStopsOnCancel(t *testing.T) {
	svc, _, _ := newTestService(t, drawHalf, game.WithTickIntervals(time.Millisecond, time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()
	require.Eventually(t, func() bool {
		return svc.Properties(game.FilterAll)[0].CurrentMicros != coins(200)
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop")
	}
}
