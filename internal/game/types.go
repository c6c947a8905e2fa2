package game

import (
	"slices"
	"time"
)

type Property struct {
	ID                 string       `json:"id"`
	Name               string       `json:"name"`
	Type               PropertyType `json:"type"`
	Location           Location     `json:"location"`
	ListingMicros      int64        `json:"listing_micros"`
	CurrentMicros      int64        `json:"current_micros"`
	PurchaseMicros     int64        `json:"purchase_micros"`
	Owned              bool         `json:"owned"`
	PurchasedAt        *time.Time   `json:"purchased_at,omitempty"`
	GridX              int          `json:"grid_x"`
	GridY              int          `json:"grid_y"`
	PriceChangeMicros  int64        `json:"price_change_micros"`
	PriceChangePercent float64      `json:"price_change_percent"`
}

// ProfitMicros is the gain of an owned property over its listing price.
func (p Property) ProfitMicros() int64 {
	if !p.Owned || p.PurchasedAt == nil {
		return 0
	}
	return p.CurrentMicros - p.ListingMicros
}

func (p Property) ProfitPercent() float64 {
	if !p.Owned || p.PurchasedAt == nil || p.ListingMicros <= 0 {
		return 0
	}
	return float64(p.CurrentMicros-p.ListingMicros) / float64(p.ListingMicros) * 100
}

type GameState struct {
	BalanceMicros         int64          `json:"balance_micros"`
	PortfolioValueMicros  int64          `json:"portfolio_value_micros"`
	TotalPropertiesOwned  int            `json:"total_properties_owned"`
	TotalPropertiesSold   int            `json:"total_properties_sold"`
	TotalProfitMicros     int64          `json:"total_profit_micros"`
	UnlockedPropertyTypes []PropertyType `json:"unlocked_property_types"`
	Paused                bool           `json:"paused"`
}

func NewGameState() GameState {
	return GameState{
		BalanceMicros:         StarterBalanceMicros,
		UnlockedPropertyTypes: []PropertyType{TypeApartment},
	}
}

func (g GameState) NetWorthMicros() int64 {
	return g.BalanceMicros + g.PortfolioValueMicros
}

func (g GameState) IsUnlocked(t PropertyType) bool {
	return slices.Contains(g.UnlockedPropertyTypes, t)
}

// NextUnlockableType returns the first locked category in unlock order.
func (g GameState) NextUnlockableType() (PropertyType, bool) {
	for _, t := range PropertyTypes {
		if !g.IsUnlocked(t) {
			return t, true
		}
	}
	return "", false
}

func (g GameState) clone() GameState {
	g.UnlockedPropertyTypes = slices.Clone(g.UnlockedPropertyTypes)
	return g
}

type MarketEvent struct {
	ID            string         `json:"id"`
	Code          string         `json:"code"`
	Name          string         `json:"name"`
	Description   string         `json:"description"`
	Duration      time.Duration  `json:"duration"`
	Multiplier    float64        `json:"multiplier"`
	AffectedTypes []PropertyType `json:"affected_types"`
	Color         string         `json:"color"`
	StartedAt     time.Time      `json:"started_at"`
	Active        bool           `json:"active"`
}

func (e MarketEvent) Expired(now time.Time) bool {
	return now.Sub(e.StartedAt) > e.Duration
}

func (e MarketEvent) Remaining(now time.Time) time.Duration {
	left := e.Duration - now.Sub(e.StartedAt)
	if left < 0 {
		return 0
	}
	return left
}

func (e MarketEvent) Affects(t PropertyType) bool {
	return slices.Contains(e.AffectedTypes, t)
}

type AchievementType string

const (
	AchievementTotalBalance     AchievementType = "TOTAL_BALANCE"
	AchievementPropertiesOwned  AchievementType = "PROPERTIES_OWNED"
	AchievementPropertiesSold   AchievementType = "PROPERTIES_SOLD"
	AchievementTotalProfit      AchievementType = "TOTAL_PROFIT"
	AchievementLevelReached     AchievementType = "LEVEL_REACHED"
	AchievementMarketEvents     AchievementType = "MARKET_EVENTS"
	AchievementInvestmentReturn AchievementType = "INVESTMENT_RETURN"
	AchievementPortfolioValue   AchievementType = "PORTFOLIO_VALUE"
	AchievementConsecutiveDays  AchievementType = "CONSECUTIVE_DAYS"
	AchievementSpecialEvents    AchievementType = "SPECIAL_EVENTS"
)

// Achievement progress and target are in the natural unit of the type:
// counts, whole coins or percent.
type Achievement struct {
	ID           string          `json:"id"`
	Title        string          `json:"title"`
	Description  string          `json:"description"`
	Type         AchievementType `json:"type"`
	Target       float64         `json:"target"`
	Progress     float64         `json:"progress"`
	Unlocked     bool            `json:"unlocked"`
	Hidden       bool            `json:"hidden"`
	RewardMicros int64           `json:"reward_micros"`
	UnlockedAt   *time.Time      `json:"unlocked_at,omitempty"`
}

func (a Achievement) ProgressRatio() float64 {
	if a.Target <= 0 {
		return 0
	}
	return min(a.Progress/a.Target, 1)
}

func (a Achievement) Completed() bool {
	return a.Progress >= a.Target
}

type PricePoint struct {
	PropertyID  string    `json:"property_id"`
	TickAt      time.Time `json:"tick_at"`
	PriceMicros int64     `json:"price_micros"`
}

type PropertyDetail struct {
	Property
	Series []PricePoint `json:"series"`
}

type MarketInfo struct {
	Trend      float64       `json:"trend"`
	Volatility string        `json:"volatility"`
	Events     []MarketEvent `json:"events"`
}

type PropertyFilter string

const (
	FilterAll       PropertyFilter = "all"
	FilterOwned     PropertyFilter = "owned"
	FilterAvailable PropertyFilter = "available"
)
