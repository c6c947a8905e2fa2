package game

import (
	"errors"
	"math"
)

const (
	MicrosPerCoin = int64(1_000_000)

	StarterBalanceMicros = int64(10_000) * MicrosPerCoin

	DefaultTrend        = 0.02
	PropertyGridWidth   = 3
	GeneratedProperties = 18

	floorFactor   = 0.3
	ceilingFactor = 2.0
)

var (
	ErrPropertyNotFound    = errors.New("property not found")
	ErrAlreadyOwned        = errors.New("property already owned")
	ErrNotOwned            = errors.New("property not owned")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrUnknownPropertyType = errors.New("unknown property type")
	ErrUnknownEvent        = errors.New("unknown market event")
	ErrEventActive         = errors.New("a market event is already active")
)

func CoinsToMicros(v float64) int64 {
	return int64(math.Round(v * float64(MicrosPerCoin)))
}

func MicrosToCoins(v int64) float64 {
	return float64(v) / float64(MicrosPerCoin)
}

// PriceFloor is the lowest price a property of type t can reach.
func PriceFloor(t PropertyType) int64 {
	spec, ok := t.Spec()
	if !ok {
		return 0
	}
	return int64(math.Round(float64(spec.BaseMicros) * floorFactor))
}

// PriceCeiling is the highest price a property of type t can reach.
func PriceCeiling(t PropertyType) int64 {
	spec, ok := t.Spec()
	if !ok {
		return math.MaxInt64
	}
	return int64(math.Round(float64(spec.MaxMicros) * ceilingFactor))
}

func deltaPercent(prev, next int64) float64 {
	if prev == 0 {
		return 0
	}
	return float64(next-prev) / float64(prev) * 100
}
