package httptransport

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"storegate/internal/client"
	"storegate/internal/guardrail"
	"storegate/internal/platform/metrics"
	"storegate/internal/session"
	"storegate/internal/transport/http/shared"
	dErrors "storegate/pkg/domain-errors"
	"storegate/pkg/platform/sentinel"
	platstrings "storegate/pkg/platform/strings"
	"storegate/pkg/requestcontext"
)

// CacheHandler exposes cache invalidation against the platform, throttled so
// a scripted caller cannot stampede the CDN.
type CacheHandler struct {
	platform *client.Client
	sessions *session.Registry
	throttle *guardrail.PurgeThrottle
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

func NewCacheHandler(
	platform *client.Client,
	sessions *session.Registry,
	throttle *guardrail.PurgeThrottle,
	m *metrics.Metrics,
	logger *slog.Logger,
) *CacheHandler {
	return &CacheHandler{
		platform: platform,
		sessions: sessions,
		throttle: throttle,
		metrics:  m,
		logger:   logger,
	}
}

type purgeRequest struct {
	Tags []string `json:"tags"`
}

func (h *CacheHandler) handlePurge(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req purgeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeValidation, "invalid request body"))
		return
	}
	req.Tags = platstrings.DedupeAndTrim(req.Tags)
	if len(req.Tags) == 0 {
		shared.WriteError(w, dErrors.New(dErrors.CodeValidation, "tags must not be empty"))
		return
	}

	if err := h.throttle.Allow(); err != nil {
		if h.metrics != nil {
			h.metrics.PurgesThrottled.Inc()
		}
		shared.WriteError(w, err)
		return
	}

	sess, err := h.sessions.Find(ctx, requestcontext.SessionID(ctx))
	if errors.Is(err, sentinel.ErrNotFound) {
		shared.WriteError(w, dErrors.New(dErrors.CodeUnauthenticated, "no active session; log in first"))
		return
	}
	if err != nil {
		shared.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "session lookup failed"))
		return
	}

	if err := h.platform.Do(ctx, client.Call{
		Session: sess,
		Method:  http.MethodPost,
		Path:    "cache/invalidate",
		Body:    map[string]any{"tags": req.Tags},
	}); err != nil {
		shared.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "cache purge issued",
		"tags", len(req.Tags),
		"request_id", requestcontext.RequestID(ctx),
	)
	w.WriteHeader(http.StatusAccepted)
}
