package game

import (
	"context"
	"fmt"
	"math"
	"slices"

	"github.com/google/uuid"

	"realtopia/internal/metrics"
)

// UpdateMarketPrices runs one pricing step over every property.
func (s *Service) UpdateMarketPrices(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.Paused {
		return nil
	}
	now := s.now()
	d := s.newDraft()
	for i := range d.properties {
		p := &d.properties[i]
		shock := s.nextFloat()*2 - 1
		next := nextPrice(p.CurrentMicros, p.Type, shock, d.trend, eventMultiplier(s.events, p.Type, now))
		p.PriceChangeMicros = next - p.CurrentMicros
		p.PriceChangePercent = deltaPercent(p.CurrentMicros, next)
		p.CurrentMicros = next
		d.touchProperty(i)
		d.prices = append(d.prices, PricePoint{PropertyID: p.ID, TickAt: now, PriceMicros: next})
	}
	d.trend = nudgeTrend(d.trend, s.nextFloat(), s.params)
	d.settle()

	if err := s.commit(ctx, d); err != nil {
		return fmt.Errorf("price tick: %w", err)
	}
	metrics.Ticks.WithLabelValues("price").Inc()

	if s.purgeExpired() {
		s.saveSession(ctx)
		s.publishEvents()
	}
	s.log.Debug("prices updated", "properties", len(d.properties), "trend", d.trend)
	return nil
}

// TriggerMarketEvent purges expired events and, when none is active, rolls
// for a new one. It returns the spawned event or nil.
func (s *Service) TriggerMarketEvent(ctx context.Context) (*MarketEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.Paused {
		return nil, nil
	}
	metrics.Ticks.WithLabelValues("event").Inc()
	if s.purgeExpired() {
		s.saveSession(ctx)
		s.publishEvents()
	}
	if len(s.events) > 0 {
		return nil, nil
	}
	if s.nextFloat() >= s.params.EventChance {
		return nil, nil
	}
	tmpl := eventCatalog[s.nextIntn(len(eventCatalog))]
	return s.startEvent(ctx, tmpl)
}

// startEvent activates an event from tmpl. Caller holds s.mu.
func (s *Service) startEvent(ctx context.Context, tmpl eventTemplate) (*MarketEvent, error) {
	now := s.now()
	ev := MarketEvent{
		ID:            uuid.NewString(),
		Code:          tmpl.Code,
		Name:          tmpl.Name,
		Description:   tmpl.Description,
		Duration:      defaultEventDuration,
		Multiplier:    tmpl.Multiplier,
		AffectedTypes: slices.Clone(tmpl.Affected),
		Color:         tmpl.Color,
		StartedAt:     now,
		Active:        true,
	}

	prev := s.events
	s.events = append(slices.Clone(prev), ev)

	d := s.newDraft()
	d.addProgress(AchievementMarketEvents, 1, now)
	d.unlockTypes()
	if err := s.commit(ctx, d); err != nil {
		s.events = prev
		return nil, fmt.Errorf("start event %s: %w", tmpl.Code, err)
	}

	metrics.EventsStarted.WithLabelValues(ev.Code).Inc()
	s.log.Info("market event started",
		"event_id", ev.ID,
		"code", ev.Code,
		"multiplier", ev.Multiplier,
		"duration", ev.Duration.String(),
	)
	out := ev
	s.publish(Update{Kind: UpdateEventStarted, Event: &out})
	s.publishEvents()
	return &ev, nil
}

// liveEvents copies the events that are active and not expired.
func (s *Service) liveEvents() []MarketEvent {
	now := s.now()
	out := make([]MarketEvent, 0, len(s.events))
	for _, e := range s.events {
		if e.Active && !e.Expired(now) {
			out = append(out, e)
		}
	}
	return out
}

// purgeExpired drops expired events and reports whether any were removed.
func (s *Service) purgeExpired() bool {
	now := s.now()
	before := len(s.events)
	s.events = slices.DeleteFunc(s.events, func(e MarketEvent) bool {
		return !e.Active || e.Expired(now)
	})
	metrics.ActiveEvents.Set(float64(len(s.events)))
	return len(s.events) != before
}

// generateProperties lays out a fresh board on the city grid.
func (s *Service) generateProperties() []Property {
	props := make([]Property, 0, GeneratedProperties)
	for i := range GeneratedProperties {
		t := PropertyTypes[s.nextIntn(len(PropertyTypes))]
		loc := Locations[s.nextIntn(len(Locations))]
		name := propertyNames[s.nextIntn(len(propertyNames))]
		spec, _ := t.Spec()
		factor := 0.8 + 0.5*s.nextFloat()
		price := int64(math.Round(float64(spec.BaseMicros) * loc.PriceMultiplier() * factor))
		props = append(props, Property{
			ID:            uuid.NewString(),
			Name:          name,
			Type:          t,
			Location:      loc,
			ListingMicros: price,
			CurrentMicros: price,
			GridX:         i % PropertyGridWidth,
			GridY:         i / PropertyGridWidth,
		})
	}
	return props
}

func eventTemplateByCode(code string) (eventTemplate, bool) {
	for _, tmpl := range eventCatalog {
		if tmpl.Code == code {
			return tmpl, true
		}
	}
	return eventTemplate{}, false
}

// StartEvent activates the catalog event with the given code immediately,
// bypassing the spawn roll. It fails when another event is active.
func (s *Service) StartEvent(ctx context.Context, code string) (*MarketEvent, error) {
	tmpl, ok := eventTemplateByCode(code)
	if !ok {
		return nil, ErrUnknownEvent
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.purgeExpired()
	if len(s.events) > 0 {
		return nil, ErrEventActive
	}
	return s.startEvent(ctx, tmpl)
}

// EventCodes lists the catalog in spawn order.
func EventCodes() []string {
	out := make([]string, 0, len(eventCatalog))
	for _, tmpl := range eventCatalog {
		out = append(out, tmpl.Code)
	}
	return out
}
