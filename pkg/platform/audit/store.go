package audit

import "context"

// Store persists audit events. Appends must never fail a business operation;
// the worker logs and drops on error rather than propagating.
type Store interface {
	Append(ctx context.Context, event Event) error
}

// Publisher forwards audit events to an external sink (message broker, SIEM).
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// Tee appends to every store, returning the first error after trying all of
// them. Used when a durable file trail and a queryable database trail run side
// by side.
type Tee []Store

func (t Tee) Append(ctx context.Context, event Event) error {
	var first error
	for _, s := range t {
		if err := s.Append(ctx, event); err != nil && first == nil {
			first = err
		}
	}
	return first
}
