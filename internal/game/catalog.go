package game

import (
	"strings"
	"time"
)

type PropertyType string

const (
	TypeApartment  PropertyType = "APARTMENT"
	TypeHouse      PropertyType = "HOUSE"
	TypeVilla      PropertyType = "VILLA"
	TypeShop       PropertyType = "SHOP"
	TypeOffice     PropertyType = "OFFICE"
	TypePlaza      PropertyType = "PLAZA"
	TypeSkyscraper PropertyType = "SKYSCRAPER"
)

// PropertyTypes lists every category in unlock order.
var PropertyTypes = []PropertyType{
	TypeApartment,
	TypeHouse,
	TypeVilla,
	TypeShop,
	TypeOffice,
	TypePlaza,
	TypeSkyscraper,
}

type TypeSpec struct {
	DisplayName          string  `json:"display_name"`
	BaseMicros           int64   `json:"base_micros"`
	MaxMicros            int64   `json:"max_micros"`
	Risk                 float64 `json:"risk"`
	TrendMultiplier      float64 `json:"trend_multiplier"`
	Color                string  `json:"color"`
	UnlockNetWorthMicros int64   `json:"unlock_net_worth_micros"`
}

var typeSpecs = map[PropertyType]TypeSpec{
	TypeApartment:  {"Apartment", 200 * MicrosPerCoin, 600 * MicrosPerCoin, 0.20, 1.0, "#4CAF50", 0},
	TypeHouse:      {"House", 100 * MicrosPerCoin, 300 * MicrosPerCoin, 0.10, 1.1, "#2196F3", 11_000 * MicrosPerCoin},
	TypeVilla:      {"Villa", 500 * MicrosPerCoin, 1_500 * MicrosPerCoin, 0.30, 1.2, "#9C27B0", 12_500 * MicrosPerCoin},
	TypeShop:       {"Shop", 150 * MicrosPerCoin, 450 * MicrosPerCoin, 0.15, 1.3, "#FF9800", 15_000 * MicrosPerCoin},
	TypeOffice:     {"Office", 300 * MicrosPerCoin, 900 * MicrosPerCoin, 0.25, 1.4, "#F44336", 20_000 * MicrosPerCoin},
	TypePlaza:      {"Plaza", 800 * MicrosPerCoin, 2_400 * MicrosPerCoin, 0.30, 1.5, "#FFD700", 30_000 * MicrosPerCoin},
	TypeSkyscraper: {"Skyscraper", 1_500 * MicrosPerCoin, 4_500 * MicrosPerCoin, 0.35, 1.6, "#E91E63", 50_000 * MicrosPerCoin},
}

func (t PropertyType) Spec() (TypeSpec, bool) {
	spec, ok := typeSpecs[t]
	return spec, ok
}

func ParsePropertyType(s string) (PropertyType, error) {
	t := PropertyType(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := typeSpecs[t]; !ok {
		return "", ErrUnknownPropertyType
	}
	return t, nil
}

type Location string

const (
	LocationCenter Location = "CENTER"
	LocationCoast  Location = "COAST"
	LocationSuburb Location = "SUBURB"
)

var Locations = []Location{LocationCenter, LocationCoast, LocationSuburb}

func (l Location) PriceMultiplier() float64 {
	switch l {
	case LocationCenter:
		return 1.5
	case LocationCoast:
		return 1.3
	case LocationSuburb:
		return 0.8
	default:
		return 1.0
	}
}

func (l Location) Color() string {
	switch l {
	case LocationCenter:
		return "#4CAF50"
	case LocationCoast:
		return "#2196F3"
	default:
		return "#9E9E9E"
	}
}

var propertyNames = []string{
	"Central Plaza", "Seaside Villa", "Trade Center", "Garden Apartments", "Golden Tower",
	"Coastal View", "Business Center", "Modern Loft", "Luxury Villa", "City Office",
	"Beach House", "Downtown Plaza", "Sky Garden", "Executive Suite", "Ocean View",
	"Metro Station", "Shopping Mall", "Tech Hub", "Residential Complex", "Commercial Tower",
}

const defaultEventDuration = 20 * time.Second

type eventTemplate struct {
	Code        string
	Name        string
	Description string
	Multiplier  float64
	Affected    []PropertyType
	Color       string
}

var eventCatalog = []eventTemplate{
	{
		Code:        "metro_line",
		Name:        "New Metro Line!",
		Description: "Central properties rise 30%!",
		Multiplier:  1.3,
		Affected:    []PropertyType{TypeApartment, TypeHouse},
		Color:       "#4CAF50",
	},
	{
		Code:        "economic_crisis",
		Name:        "Economic Crisis",
		Description: "All property prices drop 20%!",
		Multiplier:  0.8,
		Affected:    PropertyTypes,
		Color:       "#F44336",
	},
	{
		Code:        "coastal_development",
		Name:        "Coastal Development",
		Description: "Coastal properties rise 25%!",
		Multiplier:  1.25,
		Affected:    []PropertyType{TypeVilla, TypeHouse},
		Color:       "#2196F3",
	},
	{
		Code:        "business_district",
		Name:        "Business District Opening",
		Description: "Office and plaza prices rise 35%!",
		Multiplier:  1.35,
		Affected:    []PropertyType{TypeOffice, TypePlaza},
		Color:       "#FF9800",
	},
	{
		Code:        "shopping_mall",
		Name:        "Shopping Mall Opening",
		Description: "Shop prices rise 40%!",
		Multiplier:  1.4,
		Affected:    []PropertyType{TypeShop},
		Color:       "#9C27B0",
	},
	{
		Code:        "tech_boom",
		Name:        "Tech Boom",
		Description: "Skyscraper prices rise 50%!",
		Multiplier:  1.5,
		Affected:    []PropertyType{TypeSkyscraper},
		Color:       "#E91E63",
	},
}

func DefaultAchievements() []Achievement {
	return []Achievement{
		{ID: "first_property", Title: "First Property", Description: "Buy your first property", Type: AchievementPropertiesOwned, Target: 1, RewardMicros: 100 * MicrosPerCoin},
		{ID: "property_mogul", Title: "Property Mogul", Description: "Buy 10 properties", Type: AchievementPropertiesOwned, Target: 10, RewardMicros: 500 * MicrosPerCoin},
		{ID: "millionaire", Title: "Millionaire", Description: "Reach a balance of 10,000", Type: AchievementTotalBalance, Target: 10_000, RewardMicros: 1_000 * MicrosPerCoin},
		{ID: "level_master", Title: "Level Master", Description: "Reach level 10", Type: AchievementLevelReached, Target: 10, RewardMicros: 2_000 * MicrosPerCoin},
		{ID: "market_watcher", Title: "Market Watcher", Description: "Experience 5 market events", Type: AchievementMarketEvents, Target: 5, RewardMicros: 300 * MicrosPerCoin},
		{ID: "profit_master", Title: "Profit Master", Description: "Earn 5,000 in profit", Type: AchievementTotalProfit, Target: 5_000, RewardMicros: 800 * MicrosPerCoin},
		{ID: "portfolio_manager", Title: "Portfolio Manager", Description: "Hold a portfolio worth 50,000", Type: AchievementPortfolioValue, Target: 50_000, RewardMicros: 1_500 * MicrosPerCoin},
		{ID: "risk_taker", Title: "Risk Taker", Description: "Reach a 50% investment return", Type: AchievementInvestmentReturn, Target: 50, RewardMicros: 1_200 * MicrosPerCoin},
	}
}
