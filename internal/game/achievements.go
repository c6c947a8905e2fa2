package game

import (
	"context"
	"math"
	"slices"
	"time"

	"realtopia/internal/metrics"
)

// draft is a copy of the mutable session that a single operation edits.
// It is committed to the service only after the store accepted the changes.
type draft struct {
	state        GameState
	properties   []Property
	achievements []Achievement
	trend        float64

	touchedProperties   map[int]struct{}
	touchedAchievements map[int]struct{}
	unlocked            []Achievement
	prices              []PricePoint
}

func (s *Service) newDraft() *draft {
	return &draft{
		state:               s.state.clone(),
		properties:          slices.Clone(s.properties),
		achievements:        slices.Clone(s.achievements),
		trend:               s.trend,
		touchedProperties:   make(map[int]struct{}),
		touchedAchievements: make(map[int]struct{}),
	}
}

func (d *draft) touchProperty(i int) {
	d.touchedProperties[i] = struct{}{}
}

func (d *draft) changeset() Changeset {
	var cs Changeset
	for i := range d.properties {
		if _, ok := d.touchedProperties[i]; ok {
			cs.Properties = append(cs.Properties, d.properties[i])
		}
	}
	for i := range d.achievements {
		if _, ok := d.touchedAchievements[i]; ok {
			cs.Achievements = append(cs.Achievements, d.achievements[i])
		}
	}
	cs.Prices = d.prices
	return cs
}

// addProgress accumulates delta on every locked achievement of type t.
// Non-positive deltas are ignored so progress never decreases.
func (d *draft) addProgress(t AchievementType, delta float64, now time.Time) {
	if delta <= 0 || math.IsNaN(delta) {
		return
	}
	for i := range d.achievements {
		a := &d.achievements[i]
		if a.Type != t || a.Unlocked {
			continue
		}
		a.Progress += delta
		d.touchedAchievements[i] = struct{}{}
		d.maybeUnlock(i, now)
	}
}

func (d *draft) maybeUnlock(i int, now time.Time) {
	a := &d.achievements[i]
	if a.Unlocked || !a.Completed() {
		return
	}
	at := now
	a.Unlocked = true
	a.UnlockedAt = &at
	if a.RewardMicros > 0 {
		d.state.BalanceMicros += a.RewardMicros
	}
	d.unlocked = append(d.unlocked, *a)
}

func (d *draft) refreshPortfolio() {
	var value int64
	for _, p := range d.properties {
		if p.Owned {
			value += p.CurrentMicros
		}
	}
	d.state.PortfolioValueMicros = value
}

// unlockTypes marks every category whose net worth milestone is met. The
// list is informational; it does not restrict buying.
func (d *draft) unlockTypes() []PropertyType {
	var opened []PropertyType
	netWorth := d.state.NetWorthMicros()
	for _, t := range PropertyTypes {
		if d.state.IsUnlocked(t) {
			continue
		}
		spec, _ := t.Spec()
		if netWorth >= spec.UnlockNetWorthMicros {
			d.state.UnlockedPropertyTypes = append(d.state.UnlockedPropertyTypes, t)
			opened = append(opened, t)
		}
	}
	return opened
}

// settle recomputes derived state after a balance or price change.
func (d *draft) settle() {
	d.refreshPortfolio()
	d.unlockTypes()
}

// UpdateAchievementProgress adds delta to every locked achievement of type t
// and pays out rewards for the ones that reach their target.
func (s *Service) UpdateAchievementProgress(ctx context.Context, t AchievementType, delta float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	d := s.newDraft()
	d.addProgress(t, delta, s.now())
	if len(d.touchedAchievements) == 0 {
		return nil
	}
	d.unlockTypes()
	return s.commit(ctx, d)
}

func (s *Service) announceUnlocks(unlocked []Achievement) {
	for _, a := range unlocked {
		metrics.AchievementsUnlocked.WithLabelValues(a.ID).Inc()
		s.log.Info("achievement unlocked", "id", a.ID, "reward", MicrosToCoins(a.RewardMicros))
		s.publish(Update{Kind: UpdateAchievementUnlocked, Achievement: &a})
	}
}
