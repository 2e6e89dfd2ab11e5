package file

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storegate/pkg/platform/audit"
)

func TestAppendWritesOneLinePerEvent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.log")
	store, err := Open(path)
	require.NoError(t, err)

	events := []audit.Event{
		{ID: "ev-1", Timestamp: time.Now().UTC(), Actor: "ops", Action: audit.ActionSessionLogin, Result: "ok"},
		{ID: "ev-2", Timestamp: time.Now().UTC(), Actor: "ops", Action: audit.ActionPlanPrepared, PlanID: "p1", Result: "staged"},
	}
	for _, ev := range events {
		require.NoError(t, store.Append(context.Background(), ev))
	}
	require.NoError(t, store.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var got []audit.Event
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var ev audit.Event
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &ev))
		got = append(got, ev)
	}
	require.NoError(t, scanner.Err())
	require.Len(t, got, 2)
	assert.Equal(t, "ev-1", got[0].ID)
	assert.Equal(t, audit.ActionPlanPrepared, got[1].Action)
}

func TestOpenAppendsAcrossRestarts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.log")

	first, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, first.Append(context.Background(), audit.Event{ID: "ev-1", Result: "ok"}))
	require.NoError(t, first.Close())

	second, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, second.Append(context.Background(), audit.Event{ID: "ev-2", Result: "ok"}))
	require.NoError(t, second.Close())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "ev-1")
	assert.Contains(t, string(raw), "ev-2")
}
