package store

import (
	"context"
	"slices"
	"sync"

	"realtopia/internal/game"
)

const memoryHistoryLimit = 512

// Memory keeps the board in process. It backs the engine when no database
// is configured and in tests.
type Memory struct {
	mu           sync.Mutex
	properties   []game.Property
	achievements []game.Achievement
	prices       map[string][]game.PricePoint
	fail         error
}

func NewMemory() *Memory {
	return &Memory{prices: make(map[string][]game.PricePoint)}
}

// FailWith makes every following write return err until called with nil.
func (m *Memory) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fail = err
}

func (m *Memory) ListProperties(ctx context.Context) ([]game.Property, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.properties), nil
}

func (m *Memory) ListAchievements(ctx context.Context) ([]game.Achievement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.achievements), nil
}

func (m *Memory) PriceHistory(ctx context.Context, propertyID string, limit int) ([]game.PricePoint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	points := m.prices[propertyID]
	if limit > 0 && len(points) > limit {
		points = points[len(points)-limit:]
	}
	return slices.Clone(points), nil
}

func (m *Memory) Apply(ctx context.Context, cs game.Changeset) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	for _, p := range cs.Properties {
		i := slices.IndexFunc(m.properties, func(x game.Property) bool { return x.ID == p.ID })
		if i < 0 {
			m.properties = append(m.properties, p)
			continue
		}
		m.properties[i] = p
	}
	for _, a := range cs.Achievements {
		i := slices.IndexFunc(m.achievements, func(x game.Achievement) bool { return x.ID == a.ID })
		if i < 0 {
			m.achievements = append(m.achievements, a)
			continue
		}
		m.achievements[i] = a
	}
	for _, pt := range cs.Prices {
		points := append(m.prices[pt.PropertyID], pt)
		if len(points) > memoryHistoryLimit {
			points = points[len(points)-memoryHistoryLimit:]
		}
		m.prices[pt.PropertyID] = points
	}
	return nil
}

func (m *Memory) Replace(ctx context.Context, properties []game.Property, achievements []game.Achievement) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	m.properties = slices.Clone(properties)
	m.achievements = slices.Clone(achievements)
	m.prices = make(map[string][]game.PricePoint)
	return nil
}
