package worker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	audit "storegate/pkg/platform/audit"
	"storegate/pkg/platform/audit/store/memory"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []audit.Event
	fail   bool
}

func (p *recordingPublisher) Publish(_ context.Context, event audit.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail {
		return errors.New("broker down")
	}
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}

func TestWorkerFansOut(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := &recordingPublisher{}
	inbox := make(chan audit.Event, 4)

	w := New(store, inbox, WithPublisher(pub), WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = w.Run(ctx)
	}()

	inbox <- audit.Event{ID: "1", Action: audit.ActionPlanPrepared, Result: "ok"}
	inbox <- audit.Event{ID: "2", Action: audit.ActionPlanCommitted, Result: "ok"}

	require.Eventually(t, func() bool {
		events, _ := store.ListAll(context.Background())
		return len(events) == 2 && pub.count() == 2
	}, time.Second, 10*time.Millisecond)

	cancel()
	<-done
}

func TestWorkerToleratesFailingPublisher(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := &recordingPublisher{fail: true}
	inbox := make(chan audit.Event, 1)

	w := New(store, inbox, WithPublisher(pub), WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = w.Run(ctx) }()
	defer cancel()

	inbox <- audit.Event{ID: "1", Action: audit.ActionCommitDenied, Result: "denied"}

	require.Eventually(t, func() bool {
		events, _ := store.ListAll(context.Background())
		return len(events) == 1
	}, time.Second, 10*time.Millisecond)

	events, err := store.ListAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, audit.ActionCommitDenied, events[0].Action)
}
