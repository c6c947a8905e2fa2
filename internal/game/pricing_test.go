package game

import (
	"math"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestNextPriceStaysInBand(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("price never leaves floor and ceiling", prop.ForAll(
		func(typeIdx int, current int64, shock, trend, mult float64) bool {
			pt := PropertyTypes[typeIdx]
			next := nextPrice(current, pt, shock, trend, mult)
			return next >= PriceFloor(pt) && next <= PriceCeiling(pt)
		},
		gen.IntRange(0, len(PropertyTypes)-1),
		gen.Int64Range(1, 10_000*MicrosPerCoin),
		gen.Float64Range(-1, 1),
		gen.Float64Range(-0.08, 0.08),
		gen.Float64Range(0.5, 2),
	))

	properties.Property("clamp is idempotent", prop.ForAll(
		func(raw float64) bool {
			floor, ceiling := PriceFloor(TypeVilla), PriceCeiling(TypeVilla)
			once := clampPrice(raw, floor, ceiling)
			return clampPrice(float64(once), floor, ceiling) == once
		},
		gen.Float64Range(-1e12, 1e12),
	))

	properties.TestingRun(t)
}

func TestNextPriceRange(t *testing.T) {
	current := 200 * MicrosPerCoin
	lo := CoinsToMicros(156.4)
	hi := CoinsToMicros(244.0)
	for _, shock := range []float64{-1, -0.5, 0, 0.5, 0.999} {
		got := nextPrice(current, TypeApartment, shock, 0.02, 1)
		if got < lo || got > hi {
			t.Fatalf("shock=%v got=%d outside [%d, %d]", shock, got, lo, hi)
		}
	}
	if got := nextPrice(current, TypeApartment, 0, 0.02, 1); got != 204*MicrosPerCoin {
		t.Fatalf("trend only got=%d", got)
	}
	if got := nextPrice(current, PropertyType("CASTLE"), 1, 0.02, 1); got != current {
		t.Fatalf("unknown type should keep price, got=%d", got)
	}
}

func TestClampPrice(t *testing.T) {
	if got := clampPrice(math.NaN(), 10, 100); got != 10 {
		t.Fatalf("NaN got=%d", got)
	}
	if got := clampPrice(5, 10, 100); got != 10 {
		t.Fatalf("below floor got=%d", got)
	}
	if got := clampPrice(500, 10, 100); got != 100 {
		t.Fatalf("above ceiling got=%d", got)
	}
	if got := clampPrice(42.6, 10, 100); got != 43 {
		t.Fatalf("rounding got=%d", got)
	}
}

func TestEventMultiplier(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	events := []MarketEvent{
		{Multiplier: 1.3, AffectedTypes: []PropertyType{TypeApartment}, Duration: time.Minute, StartedAt: now, Active: true},
		{Multiplier: 0.8, AffectedTypes: PropertyTypes, Duration: time.Minute, StartedAt: now, Active: true},
		{Multiplier: 2, AffectedTypes: PropertyTypes, Duration: time.Second, StartedAt: now.Add(-time.Hour), Active: true},
		{Multiplier: 3, AffectedTypes: PropertyTypes, Duration: time.Minute, StartedAt: now, Active: false},
	}
	if got := eventMultiplier(events, TypeApartment, now); math.Abs(got-1.04) > 1e-9 {
		t.Fatalf("apartment got=%v want=1.04", got)
	}
	if got := eventMultiplier(events, TypeShop, now); math.Abs(got-0.8) > 1e-9 {
		t.Fatalf("shop got=%v want=0.8", got)
	}
	if got := eventMultiplier(nil, TypeShop, now); got != 1 {
		t.Fatalf("no events got=%v", got)
	}
}

func TestNudgeTrendBounded(t *testing.T) {
	for _, mode := range []string{"calm", "mor", "wild"} {
		params := volatilityParams(mode)
		trend := DefaultTrend
		for range 1_000 {
			trend = nudgeTrend(trend, 1, params)
		}
		if trend != params.MaxTrend {
			t.Fatalf("%s upper bound got=%v want=%v", mode, trend, params.MaxTrend)
		}
		for range 1_000 {
			trend = nudgeTrend(trend, 0, params)
		}
		if trend != -params.MaxTrend {
			t.Fatalf("%s lower bound got=%v want=%v", mode, trend, -params.MaxTrend)
		}
		if got := nudgeTrend(0.01, 0.5, params); got != 0.01 {
			t.Fatalf("%s neutral seed moved trend to %v", mode, got)
		}
	}
	if got := volatilityParams("unknown").Mode; got != "mor" {
		t.Fatalf("default mode got=%q", got)
	}
}
