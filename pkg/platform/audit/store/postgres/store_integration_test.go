//go:build integration

package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storegate/pkg/platform/audit"
	"storegate/pkg/platform/audit/store/postgres"
	"storegate/pkg/testutil/containers"
)

func TestPostgresStoreAppendAndList(t *testing.T) {
	ctx := context.Background()
	pg := containers.NewPostgres(t)

	store := postgres.New(pg.DB)
	require.NoError(t, store.EnsureSchema(ctx))
	// EnsureSchema must be idempotent across restarts.
	require.NoError(t, store.EnsureSchema(ctx))

	base := time.Now().UTC().Truncate(time.Microsecond)
	events := []audit.Event{
		{
			ID:        "ev-1",
			Timestamp: base,
			Actor:     "ops@example.test",
			Action:    audit.ActionPlanPrepared,
			SessionID: "sess-1",
			PlanID:    "plan-1",
			Result:    "plan staged for 3 records",
			Params:    map[string]any{"sku_pattern": "TSHIRT-%"},
		},
		{
			ID:            "ev-2",
			Timestamp:     base.Add(time.Second),
			Actor:         "ops@example.test",
			Action:        audit.ActionPlanCommitted,
			SessionID:     "sess-1",
			PlanID:        "plan-1",
			Justification: "seasonal reprice",
			Result:        "catalog.price_update: 3 succeeded, 0 failed",
		},
	}
	for _, ev := range events {
		require.NoError(t, store.Append(ctx, ev))
	}

	committed, err := store.ListByAction(ctx, audit.ActionPlanCommitted, 10)
	require.NoError(t, err)
	require.Len(t, committed, 1)
	assert.Equal(t, "ev-2", committed[0].ID)
	assert.Equal(t, "seasonal reprice", committed[0].Justification)

	prepared, err := store.ListByAction(ctx, audit.ActionPlanPrepared, 10)
	require.NoError(t, err)
	require.Len(t, prepared, 1)
	assert.Equal(t, "TSHIRT-%", prepared[0].Params["sku_pattern"])
}
