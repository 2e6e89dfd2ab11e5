package worker

import (
	"context"
	"log/slog"

	audit "storegate/pkg/platform/audit"
)

// Worker consumes audit events from a channel and fans them out to the store
// and an optional publisher. Audit is fire-and-forget for business handlers: a
// failing sink is logged, never propagated back to the operation that emitted
// the event.
type Worker struct {
	store     audit.Store
	publisher audit.Publisher
	inbox     <-chan audit.Event
	logger    *slog.Logger
}

// Option customizes a Worker.
type Option func(*Worker)

func WithPublisher(p audit.Publisher) Option {
	return func(w *Worker) { w.publisher = p }
}

func WithLogger(logger *slog.Logger) Option {
	return func(w *Worker) { w.logger = logger }
}

func New(store audit.Store, inbox <-chan audit.Event, opts ...Option) *Worker {
	w := &Worker{store: store, inbox: inbox, logger: slog.Default()}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run drains the inbox until the context is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event := <-w.inbox:
			if err := w.store.Append(ctx, event); err != nil {
				w.logger.Error("audit append failed", "action", event.Action, "error", err)
			}
			if w.publisher != nil {
				if err := w.publisher.Publish(ctx, event); err != nil {
					w.logger.Error("audit publish failed", "action", event.Action, "error", err)
				}
			}
		}
	}
}
