package plan

import (
	"context"
)

// Store holds pending plans. Implementations must make Consume atomic with
// respect to concurrent consumers of the same id: only one caller may ever
// receive the plan. The reference deployment is single-threaded today, but a
// multi-worker deployment must not be able to race two commits past each
// other.
type Store interface {
	// Create assigns a fresh unique id and expiry, stores the plan, and
	// returns it. Sample diffs beyond MaxSampleDiffs are truncated.
	Create(ctx context.Context, spec NewPlan) (Plan, error)

	// Get returns the plan without consuming it, or sentinel.ErrNotFound.
	// An expired plan is evicted as a side effect and reported as not found;
	// the store does not distinguish "expired" from "never existed".
	Get(ctx context.Context, id string) (Plan, error)

	// Consume atomically retrieves and deletes the plan. A second call with
	// the same id returns sentinel.ErrNotFound, never the plan again.
	Consume(ctx context.Context, id string) (Plan, error)

	// Cleanup sweeps expired plans and returns how many were removed. Lazy
	// expiry alone keeps correctness; the sweep keeps memory bounded.
	Cleanup(ctx context.Context) (int, error)
}
