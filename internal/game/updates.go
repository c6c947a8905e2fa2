package game

import (
	"slices"

	"realtopia/internal/metrics"
)

type UpdateKind string

const (
	UpdateState               UpdateKind = "state"
	UpdateProperties          UpdateKind = "properties"
	UpdateEvents              UpdateKind = "events"
	UpdateAchievements        UpdateKind = "achievements"
	UpdateEventStarted        UpdateKind = "event_started"
	UpdateAchievementUnlocked UpdateKind = "achievement_unlocked"
)

// Update is one message to observers. Only the field matching Kind is set.
type Update struct {
	Kind         UpdateKind    `json:"kind"`
	State        *GameState    `json:"state,omitempty"`
	Properties   []Property    `json:"properties,omitempty"`
	Events       []MarketEvent `json:"events,omitempty"`
	Achievements []Achievement `json:"achievements,omitempty"`
	Event        *MarketEvent  `json:"event,omitempty"`
	Achievement  *Achievement  `json:"achievement,omitempty"`
}

const subscriberBuffer = 32

// Subscribe registers an observer. Delivery never blocks the engine: when
// the buffer is full the update is dropped for that observer. The returned
// func unregisters and closes the channel.
func (s *Service) Subscribe() (<-chan Update, func()) {
	ch := make(chan Update, subscriberBuffer)

	s.subMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	metrics.Subscribers.Set(float64(len(s.subs)))
	s.subMu.Unlock()

	cancel := func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		if _, ok := s.subs[id]; !ok {
			return
		}
		delete(s.subs, id)
		close(ch)
		metrics.Subscribers.Set(float64(len(s.subs)))
	}
	return ch, cancel
}

func (s *Service) publish(u Update) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- u:
		default:
			metrics.DroppedUpdates.Inc()
		}
	}
}

// The publish helpers below copy state; callers hold s.mu.

func (s *Service) publishState() {
	st := s.state.clone()
	s.publish(Update{Kind: UpdateState, State: &st})
}

func (s *Service) publishProperties() {
	s.publish(Update{Kind: UpdateProperties, Properties: slices.Clone(s.properties)})
}

func (s *Service) publishAchievements() {
	s.publish(Update{Kind: UpdateAchievements, Achievements: slices.Clone(s.achievements)})
}

func (s *Service) publishEvents() {
	s.publish(Update{Kind: UpdateEvents, Events: slices.Clone(s.events)})
}

func (s *Service) publishAll() {
	s.publishState()
	s.publishProperties()
	s.publishEvents()
	s.publishAchievements()
}
