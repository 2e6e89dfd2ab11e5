package plan

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"storegate/pkg/platform/sentinel"
)

// InMemoryStore keeps plans in a mutex-guarded map. It intentionally favors
// clarity over performance; operational volume is tens of plans, not millions.
type InMemoryStore struct {
	mu    sync.Mutex
	ttl   time.Duration
	now   func() time.Time
	plans map[string]Plan
}

// Option customizes an InMemoryStore; tests pin the clock.
type Option func(*InMemoryStore)

func WithClock(now func() time.Time) Option {
	return func(s *InMemoryStore) { s.now = now }
}

func NewInMemoryStore(ttl time.Duration, opts ...Option) *InMemoryStore {
	s := &InMemoryStore{
		ttl:   ttl,
		now:   time.Now,
		plans: make(map[string]Plan),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *InMemoryStore) Create(_ context.Context, spec NewPlan) (Plan, error) {
	now := s.now()
	diffs := spec.SampleDiffs
	if len(diffs) > MaxSampleDiffs {
		diffs = diffs[:MaxSampleDiffs]
	}
	p := Plan{
		ID:            uuid.NewString(),
		Action:        spec.Action,
		Scope:         spec.Scope,
		CreatedAt:     now,
		ExpiresAt:     now.Add(s.ttl),
		Payload:       spec.Payload,
		AffectedCount: spec.AffectedCount,
		SampleDiffs:   diffs,
		Warnings:      spec.Warnings,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.plans[p.ID] = p
	return p, nil
}

func (s *InMemoryStore) Get(_ context.Context, id string) (Plan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.plans[id]
	if !ok {
		return Plan{}, sentinel.ErrNotFound
	}
	if p.Expired(s.now()) {
		// Lazy expiry: the id is gone for good once evicted.
		delete(s.plans, id)
		return Plan{}, sentinel.ErrNotFound
	}
	return p, nil
}

func (s *InMemoryStore) Consume(_ context.Context, id string) (Plan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.plans[id]
	if !ok {
		return Plan{}, sentinel.ErrNotFound
	}
	delete(s.plans, id)
	if p.Expired(s.now()) {
		return Plan{}, sentinel.ErrNotFound
	}
	return p, nil
}

func (s *InMemoryStore) Cleanup(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	removed := 0
	for id, p := range s.plans {
		if p.Expired(now) {
			delete(s.plans, id)
			removed++
		}
	}
	return removed, nil
}
