// Package httptransport is the thin HTTP layer over the gateway services.
// Handlers parse, validate, delegate, and translate errors; business rules
// live below.
package httptransport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"storegate/internal/bulk"
	"storegate/internal/client"
	"storegate/internal/guardrail"
	"storegate/internal/platform/metrics"
	"storegate/internal/platform/middleware"
	"storegate/internal/session"
	"storegate/internal/token"
	"storegate/pkg/platform/audit"
)

// Deps carries everything the router wires together. Metrics and the audit
// sink are optional; nil disables them.
type Deps struct {
	Logger       *slog.Logger
	Metrics      *metrics.Metrics
	Sessions     *session.Registry
	Bulk         *bulk.Service
	Tokens       *token.Service
	Platform     *client.Client
	Throttle     *guardrail.PurgeThrottle
	AdminKeyHash string
	Audit        chan<- audit.Event
}

// tokenValidator adapts the token service to the middleware's interface.
type tokenValidator struct {
	tokens *token.Service
}

func (v tokenValidator) Validate(tokenString string) (string, string, error) {
	claims, err := v.tokens.Validate(tokenString)
	if err != nil {
		return "", "", err
	}
	return claims.Actor, claims.SessionID, nil
}

// NewRouter wires every endpoint. Login, health, and metrics are public;
// everything else sits behind the operator token gate.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(deps.Logger))
	r.Use(middleware.Latency(deps.Metrics))
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	sessions := NewSessionHandler(deps.Sessions, deps.Tokens, deps.AdminKeyHash, deps.Logger, deps.Audit)
	plans := NewPlanHandler(deps.Bulk, deps.Logger)
	cache := NewCacheHandler(deps.Platform, deps.Sessions, deps.Throttle, deps.Metrics, deps.Logger)

	r.Post("/session/login", sessions.handleLogin)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(tokenValidator{tokens: deps.Tokens}, deps.Logger))
		r.Post("/session/logout", sessions.handleLogout)
		r.Put("/session/scope", sessions.handleSetScope)

		r.Get("/plans/{planID}", plans.handleGet)
		r.Post("/plans/price-update/prepare", plans.handlePreparePriceUpdate)
		r.Post("/plans/coupon-batch/prepare", plans.handlePrepareCouponBatch)
		r.Post("/plans/content-update/prepare", plans.handlePrepareContentUpdate)
		r.Post("/plans/commit", plans.handleCommit)

		r.Post("/cache/purge", cache.handlePurge)
	})

	return r
}
