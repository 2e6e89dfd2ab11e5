package plan

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"storegate/internal/session"
	"storegate/pkg/platform/sentinel"
)

type MemoryStoreSuite struct {
	suite.Suite
	now   time.Time
	store *InMemoryStore
}

func (s *MemoryStoreSuite) SetupTest() {
	s.now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.store = NewInMemoryStore(15*time.Minute, WithClock(func() time.Time { return s.now }))
}

func TestMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(MemoryStoreSuite))
}

func (s *MemoryStoreSuite) newPriceSpec(items int) NewPlan {
	changes := make([]PriceChange, items)
	diffs := make([]Diff, items)
	for i := range changes {
		changes[i] = PriceChange{SKU: "SKU-" + string(rune('A'+i)), OldPrice: 100, NewPrice: 90}
		diffs[i] = Diff{Key: changes[i].SKU, Field: "price", Old: "100", New: "90"}
	}
	return NewPlan{
		Action:        ActionPriceUpdate,
		Scope:         session.Scope{StoreCode: "default"},
		Payload:       Payload{PriceUpdate: &PriceUpdatePayload{Items: changes}},
		AffectedCount: items,
		SampleDiffs:   diffs,
	}
}

func (s *MemoryStoreSuite) TestCreate() {
	s.Run("assigns id and expiry from ttl", func() {
		p, err := s.store.Create(context.Background(), s.newPriceSpec(3))
		s.Require().NoError(err)
		s.NotEmpty(p.ID)
		s.Equal(s.now, p.CreatedAt)
		s.Equal(s.now.Add(15*time.Minute), p.ExpiresAt)
		s.Equal(3, p.AffectedCount)
	})

	s.Run("truncates sample diffs to the review cap", func() {
		p, err := s.store.Create(context.Background(), s.newPriceSpec(MaxSampleDiffs+4))
		s.Require().NoError(err)
		s.Len(p.SampleDiffs, MaxSampleDiffs)
	})
}

func (s *MemoryStoreSuite) TestGet() {
	s.Run("returns plan without consuming", func() {
		created, err := s.store.Create(context.Background(), s.newPriceSpec(2))
		s.Require().NoError(err)

		for i := 0; i < 2; i++ {
			got, err := s.store.Get(context.Background(), created.ID)
			s.Require().NoError(err)
			s.Equal(created.ID, got.ID)
		}
	})

	s.Run("evicts expired plans lazily", func() {
		created, err := s.store.Create(context.Background(), s.newPriceSpec(1))
		s.Require().NoError(err)

		s.now = s.now.Add(16 * time.Minute)
		_, err = s.store.Get(context.Background(), created.ID)
		s.Require().ErrorIs(err, sentinel.ErrNotFound)

		// The id never revives, even if the clock were to rewind.
		s.now = s.now.Add(-16 * time.Minute)
		_, err = s.store.Get(context.Background(), created.ID)
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *MemoryStoreSuite) TestConsume() {
	s.Run("returns the plan once and not found after", func() {
		created, err := s.store.Create(context.Background(), s.newPriceSpec(3))
		s.Require().NoError(err)

		got, err := s.store.Consume(context.Background(), created.ID)
		s.Require().NoError(err)
		s.Equal(created.ID, got.ID)

		_, err = s.store.Consume(context.Background(), created.ID)
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
		_, err = s.store.Get(context.Background(), created.ID)
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("treats an expired plan as absent even if never consumed", func() {
		created, err := s.store.Create(context.Background(), s.newPriceSpec(1))
		s.Require().NoError(err)

		s.now = s.now.Add(time.Hour)
		_, err = s.store.Consume(context.Background(), created.ID)
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("admits exactly one winner under concurrency", func() {
		created, err := s.store.Create(context.Background(), s.newPriceSpec(1))
		s.Require().NoError(err)

		var winners atomic.Int32
		var wg sync.WaitGroup
		for i := 0; i < 32; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := s.store.Consume(context.Background(), created.ID); err == nil {
					winners.Add(1)
				}
			}()
		}
		wg.Wait()
		s.Equal(int32(1), winners.Load())
	})
}

func (s *MemoryStoreSuite) TestCleanup() {
	fresh, err := s.store.Create(context.Background(), s.newPriceSpec(1))
	s.Require().NoError(err)

	s.now = s.now.Add(10 * time.Minute)
	young, err := s.store.Create(context.Background(), s.newPriceSpec(1))
	s.Require().NoError(err)

	s.now = s.now.Add(6 * time.Minute) // fresh is now past ttl, young is not
	removed, err := s.store.Cleanup(context.Background())
	s.Require().NoError(err)
	s.Equal(1, removed)

	_, err = s.store.Get(context.Background(), fresh.ID)
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
	_, err = s.store.Get(context.Background(), young.ID)
	s.Require().NoError(err)
}
