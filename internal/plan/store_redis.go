package plan

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"storegate/pkg/platform/sentinel"
)

const redisKeyPrefix = "storegate:plan:"

// RedisStore holds plans in Redis for deployments running more than one
// gateway worker. Expiry rides on Redis key TTLs; Consume uses GETDEL so the
// retrieve-and-delete is a single server-side operation and two racing commits
// cannot both win.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func (s *RedisStore) Create(ctx context.Context, spec NewPlan) (Plan, error) {
	now := time.Now()
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

	raw, err := json.Marshal(p)
	if err != nil {
		return Plan{}, fmt.Errorf("marshal plan: %w", err)
	}
	if err := s.client.Set(ctx, redisKeyPrefix+p.ID, raw, s.ttl).Err(); err != nil {
		return Plan{}, fmt.Errorf("store plan: %w", err)
	}
	return p, nil
}

func (s *RedisStore) Get(ctx context.Context, id string) (Plan, error) {
	raw, err := s.client.Get(ctx, redisKeyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return Plan{}, sentinel.ErrNotFound
	}
	if err != nil {
		return Plan{}, fmt.Errorf("load plan: %w", err)
	}
	return decodePlan(raw)
}

func (s *RedisStore) Consume(ctx context.Context, id string) (Plan, error) {
	raw, err := s.client.GetDel(ctx, redisKeyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return Plan{}, sentinel.ErrNotFound
	}
	if err != nil {
		return Plan{}, fmt.Errorf("consume plan: %w", err)
	}
	return decodePlan(raw)
}

// Cleanup is a no-op for Redis; key TTLs evict expired plans server-side.
func (s *RedisStore) Cleanup(context.Context) (int, error) {
	return 0, nil
}

func decodePlan(raw []byte) (Plan, error) {
	var p Plan
	if err := json.Unmarshal(raw, &p); err != nil {
		return Plan{}, fmt.Errorf("decode plan: %w", err)
	}
	return p, nil
}
