// Package bulk owns the prepare → review → commit lifecycle for irreversible
// administrative mutations. Prepare resolves what would change and stores a
// plan; commit re-checks guardrails, consumes the plan exactly once, applies
// each change sequentially with per-record failure isolation, and records the
// outcome in the idempotency ledger.
package bulk

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"storegate/internal/client"
	"storegate/internal/guardrail"
	"storegate/internal/idempotency"
	"storegate/internal/plan"
	"storegate/internal/platform/metrics"
	"storegate/internal/session"
	"storegate/pkg/platform/audit"
)

// riskTiers maps each action to the tier the confirmation gate applies at.
// Every bulk mutation this gateway ships is at least risky; nothing here is
// tier-safe by construction.
var riskTiers = map[plan.Action]guardrail.RiskTier{
	plan.ActionPriceUpdate:   guardrail.TierCritical,
	plan.ActionCouponBatch:   guardrail.TierRisky,
	plan.ActionContentUpdate: guardrail.TierRisky,
}

// Service composes the core stores and the platform client. It is the only
// writer of plans and ledger entries; transports stay thin.
type Service struct {
	sessions *session.Registry
	plans    plan.Store
	ledger   *idempotency.Ledger
	guards   *guardrail.Engine
	platform *client.Client
	metrics  *metrics.Metrics
	auditout chan<- audit.Event
	logger   *slog.Logger
	tracer   trace.Tracer
}

// Option customizes a Service.
type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithAuditSink(sink chan<- audit.Event) Option {
	return func(s *Service) { s.auditout = sink }
}

func New(
	sessions *session.Registry,
	plans plan.Store,
	ledger *idempotency.Ledger,
	guards *guardrail.Engine,
	platform *client.Client,
	opts ...Option,
) *Service {
	s := &Service{
		sessions: sessions,
		plans:    plans,
		ledger:   ledger,
		guards:   guards,
		platform: platform,
		logger:   slog.Default(),
		tracer:   otel.Tracer("storegate/bulk"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// emit hands an event to the audit worker without ever blocking a business
// operation. A full inbox drops the event and logs; the audit trail is a
// sink, not a dependency.
func (s *Service) emit(event audit.Event) {
	if s.auditout == nil {
		return
	}
	select {
	case s.auditout <- event:
	default:
		s.logger.Warn("audit inbox full, dropping event", "action", event.Action)
	}
}

func (s *Service) span(ctx context.Context, name string, action plan.Action) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, name, trace.WithAttributes(
		attribute.String("storegate.action", string(action)),
	))
}

// scopeStoreCode maps a plan scope onto the platform's REST route segment.
// The global sentinel uses the platform's "all" store code; otherwise the
// narrowest populated code wins.
func scopeStoreCode(scope session.Scope) string {
	switch {
	case scope.Global:
		return "all"
	case scope.StoreViewCode != "":
		return scope.StoreViewCode
	case scope.StoreCode != "":
		return scope.StoreCode
	}
	return ""
}

// scopeLabel renders a scope for audit records.
func scopeLabel(scope session.Scope) string {
	if scope.Global {
		return "global"
	}
	switch {
	case scope.StoreViewCode != "":
		return "store_view:" + scope.StoreViewCode
	case scope.StoreCode != "":
		return "store:" + scope.StoreCode
	case scope.WebsiteCode != "":
		return "website:" + scope.WebsiteCode
	}
	return ""
}

// resolveScope picks the request scope, falling back to the session default,
// and enforces that a populated scope exists.
func (s *Service) resolveScope(sess session.Session, requested *session.Scope) (session.Scope, error) {
	scope := requested
	if scope == nil {
		scope = sess.DefaultScope
	}
	if err := s.guards.RequireExplicitScope(scope); err != nil {
		return session.Scope{}, err
	}
	return *scope, nil
}
