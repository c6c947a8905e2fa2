package game

import (
	"math"
	"strings"
	"time"
)

type marketDynamics struct {
	Mode        string
	TrendStep   float64
	MaxTrend    float64
	EventChance float64
}

func volatilityParams(mode string) marketDynamics {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "calm":
		return marketDynamics{
			Mode:        "calm",
			TrendStep:   0.002,
			MaxTrend:    0.03,
			EventChance: 0.10,
		}
	case "wild":
		return marketDynamics{
			Mode:        "wild",
			TrendStep:   0.010,
			MaxTrend:    0.08,
			EventChance: 0.35,
		}
	default:
		return marketDynamics{
			Mode:        "mor",
			TrendStep:   0.005,
			MaxTrend:    0.05,
			EventChance: 0.20,
		}
	}
}

// nextPrice applies one pricing step. shock is the raw perturbation in
// [-1, 1) and is scaled by the category risk.
func nextPrice(current int64, t PropertyType, shock, trend, eventMultiplier float64) int64 {
	spec, ok := t.Spec()
	if !ok {
		return current
	}
	ret := shock*spec.Risk + trend*spec.TrendMultiplier
	raw := float64(current) * (1 + ret) * eventMultiplier
	return clampPrice(raw, PriceFloor(t), PriceCeiling(t))
}

func clampPrice(raw float64, floor, ceiling int64) int64 {
	if math.IsNaN(raw) || raw < float64(floor) {
		return floor
	}
	if raw > float64(ceiling) {
		return ceiling
	}
	return int64(math.Round(raw))
}

// eventMultiplier is the product of all live events that affect t.
func eventMultiplier(events []MarketEvent, t PropertyType, now time.Time) float64 {
	m := 1.0
	for _, e := range events {
		if !e.Active || e.Expired(now) || !e.Affects(t) {
			continue
		}
		m *= e.Multiplier
	}
	return m
}

func nudgeTrend(trend, seed float64, params marketDynamics) float64 {
	trend += (seed*2 - 1) * params.TrendStep
	if trend > params.MaxTrend {
		return params.MaxTrend
	}
	if trend < -params.MaxTrend {
		return -params.MaxTrend
	}
	return trend
}
