package game

import (
	"context"

	"realtopia/internal/metrics"
)

type TradeResult struct {
	Property     Property  `json:"property"`
	State        GameState `json:"state"`
	ProfitMicros int64     `json:"profit_micros"`
}

func (s *Service) BuyProperty(ctx context.Context, id string) (TradeResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d := s.newDraft()
	i := s.indexOf(id)
	if i < 0 {
		return TradeResult{}, ErrPropertyNotFound
	}
	p := &d.properties[i]
	if p.Owned {
		return TradeResult{}, ErrAlreadyOwned
	}
	if d.state.BalanceMicros < p.CurrentMicros {
		return TradeResult{}, ErrInsufficientBalance
	}

	now := s.now()
	at := now
	d.state.BalanceMicros -= p.CurrentMicros
	p.Owned = true
	p.PurchasedAt = &at
	p.PurchaseMicros = p.CurrentMicros
	d.touchProperty(i)
	d.state.TotalPropertiesOwned++

	balance := d.state.BalanceMicros
	d.addProgress(AchievementPropertiesOwned, 1, now)
	d.addProgress(AchievementTotalBalance, MicrosToCoins(balance), now)
	d.addProgress(AchievementPortfolioValue, MicrosToCoins(p.PurchaseMicros), now)
	d.settle()

	if err := s.commit(ctx, d); err != nil {
		return TradeResult{}, err
	}
	bought := d.properties[i]
	metrics.Trades.WithLabelValues("buy").Inc()
	s.log.Info("property bought",
		"property_id", bought.ID,
		"type", bought.Type,
		"price", MicrosToCoins(bought.PurchaseMicros),
		"balance", MicrosToCoins(d.state.BalanceMicros),
	)
	return TradeResult{Property: bought, State: d.state.clone()}, nil
}

func (s *Service) SellProperty(ctx context.Context, id string) (TradeResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d := s.newDraft()
	i := s.indexOf(id)
	if i < 0 {
		return TradeResult{}, ErrPropertyNotFound
	}
	p := &d.properties[i]
	if !p.Owned {
		return TradeResult{}, ErrNotOwned
	}

	now := s.now()
	profit := p.CurrentMicros - p.ListingMicros
	var ret float64
	if p.ListingMicros > 0 {
		ret = float64(profit) / float64(p.ListingMicros) * 100
	}
	d.state.BalanceMicros += p.CurrentMicros
	d.state.TotalPropertiesSold++
	d.state.TotalProfitMicros += profit
	p.Owned = false
	p.PurchasedAt = nil
	p.PurchaseMicros = 0
	d.touchProperty(i)

	balance := d.state.BalanceMicros
	d.addProgress(AchievementPropertiesSold, 1, now)
	d.addProgress(AchievementTotalProfit, MicrosToCoins(profit), now)
	d.addProgress(AchievementInvestmentReturn, ret, now)
	d.addProgress(AchievementTotalBalance, MicrosToCoins(balance), now)
	d.settle()

	if err := s.commit(ctx, d); err != nil {
		return TradeResult{}, err
	}
	sold := d.properties[i]
	metrics.Trades.WithLabelValues("sell").Inc()
	s.log.Info("property sold",
		"property_id", sold.ID,
		"type", sold.Type,
		"price", MicrosToCoins(sold.CurrentMicros),
		"profit", MicrosToCoins(profit),
		"balance", MicrosToCoins(d.state.BalanceMicros),
	)
	return TradeResult{Property: sold, State: d.state.clone(), ProfitMicros: profit}, nil
}
