package idempotency

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storegate/pkg/platform/sentinel"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestLedgerRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.json")
	ledger := Load(path, WithLogger(quietLogger()))

	require.False(t, ledger.Has(context.Background(), "key-1"))
	_, err := ledger.Get(context.Background(), "key-1")
	require.ErrorIs(t, err, sentinel.ErrNotFound)

	require.NoError(t, ledger.Record(context.Background(), "key-1", "catalog.price_update", "updated 3 of 3 records"))

	entry, err := ledger.Get(context.Background(), "key-1")
	require.NoError(t, err)
	assert.Equal(t, "catalog.price_update", entry.Action)
	assert.Equal(t, "updated 3 of 3 records", entry.Summary)
	assert.False(t, entry.CreatedAt.IsZero())
}

func TestLedgerStampsEntriesWithInjectedClock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.json")
	frozen := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
	ledger := Load(path, WithLogger(quietLogger()), WithClock(func() time.Time { return frozen }))

	require.NoError(t, ledger.Record(context.Background(), "key-1", "catalog.price_update", "updated 3 of 3 records"))

	entry, err := ledger.Get(context.Background(), "key-1")
	require.NoError(t, err)
	assert.Equal(t, frozen, entry.CreatedAt)
}

func TestLedgerSurvivesRestart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.json")

	first := Load(path, WithLogger(quietLogger()))
	require.NoError(t, first.Record(context.Background(), "key-1", "pricing.coupon_batch", "generated 100 coupons"))
	require.NoError(t, first.Record(context.Background(), "key-2", "cms.content_update", "updated 2 of 2 records"))

	reloaded := Load(path, WithLogger(quietLogger()))
	assert.Equal(t, 2, reloaded.Len())

	entry, err := reloaded.Get(context.Background(), "key-1")
	require.NoError(t, err)
	assert.Equal(t, "generated 100 coupons", entry.Summary)
}

func TestLedgerFailsOpenOnCorruption(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	ledger := Load(path, WithLogger(quietLogger()))
	assert.Equal(t, 0, ledger.Len())

	// A corrupt snapshot must not wedge future writes.
	require.NoError(t, ledger.Record(context.Background(), "key-1", "catalog.price_update", "ok"))
	reloaded := Load(path, WithLogger(quietLogger()))
	assert.Equal(t, 1, reloaded.Len())
}

func TestLedgerMissingFileIsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "never-written.json")
	ledger := Load(path, WithLogger(quietLogger()))
	assert.Equal(t, 0, ledger.Len())
}
