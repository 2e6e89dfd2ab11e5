package httptransport

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/asaskevich/govalidator"
	"github.com/google/uuid"

	"storegate/internal/session"
	"storegate/internal/session/secrets"
	"storegate/internal/signing"
	"storegate/internal/token"
	"storegate/internal/transport/http/shared"
	dErrors "storegate/pkg/domain-errors"
	"storegate/pkg/platform/audit"
	"storegate/pkg/requestcontext"
)

// SessionHandler owns login, logout, and default-scope endpoints.
type SessionHandler struct {
	sessions     *session.Registry
	tokens       *token.Service
	adminKeyHash string
	logger       *slog.Logger
	audit        chan<- audit.Event
}

func NewSessionHandler(
	sessions *session.Registry,
	tokens *token.Service,
	adminKeyHash string,
	logger *slog.Logger,
	auditSink chan<- audit.Event,
) *SessionHandler {
	return &SessionHandler{
		sessions:     sessions,
		tokens:       tokens,
		adminKeyHash: adminKeyHash,
		logger:       logger,
		audit:        auditSink,
	}
}

// loginRequest authenticates the operator against the gateway and opens a
// platform session. Exactly one of BearerToken or the four-field credential
// tuple is supplied.
type loginRequest struct {
	AdminKey string `json:"admin_key"`
	BaseURL  string `json:"base_url"`
	Username string `json:"username"`

	BearerToken string `json:"bearer_token,omitempty"`

	ConsumerKey    string `json:"consumer_key,omitempty"`
	ConsumerSecret string `json:"consumer_secret,omitempty"`
	AccessToken    string `json:"access_token,omitempty"`
	TokenSecret    string `json:"token_secret,omitempty"`

	Scope *session.Scope `json:"scope,omitempty"`
}

type loginResponse struct {
	Token     string `json:"token"`
	SessionID string `json:"session_id"`
	ExpiresIn int    `json:"expires_in"`
}

func validateLoginRequest(req loginRequest) error {
	if !govalidator.IsURL(req.BaseURL) {
		return dErrors.New(dErrors.CodeValidation, "base_url must be a valid URL")
	}
	if !govalidator.StringLength(req.Username, "1", "255") {
		return dErrors.New(dErrors.CodeValidation, "username is required")
	}
	hasBearer := req.BearerToken != ""
	hasTuple := req.ConsumerKey != "" || req.ConsumerSecret != "" || req.AccessToken != "" || req.TokenSecret != ""
	if hasBearer == hasTuple {
		return dErrors.New(dErrors.CodeValidation, "supply either bearer_token or the credential tuple, not both")
	}
	if hasTuple {
		creds := signing.Credentials{
			ConsumerKey:    req.ConsumerKey,
			ConsumerSecret: req.ConsumerSecret,
			AccessToken:    req.AccessToken,
			TokenSecret:    req.TokenSecret,
		}
		if !creds.Complete() {
			return dErrors.New(dErrors.CodeValidation, "credential tuple must carry all four fields")
		}
	}
	return nil
}

func (h *SessionHandler) handleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeValidation, "invalid request body"))
		return
	}
	if err := validateLoginRequest(req); err != nil {
		shared.WriteError(w, err)
		return
	}
	if err := secrets.Verify(req.AdminKey, h.adminKeyHash); err != nil {
		h.logger.WarnContext(ctx, "login rejected",
			"username", req.Username,
			"request_id", requestcontext.RequestID(ctx),
		)
		shared.WriteError(w, err)
		return
	}

	id := uuid.NewString()
	var sess session.Session
	if req.BearerToken != "" {
		sess = h.sessions.CreateWithToken(ctx, id, req.BaseURL, req.BearerToken, req.Username)
	} else {
		creds := signing.Credentials{
			ConsumerKey:    req.ConsumerKey,
			ConsumerSecret: req.ConsumerSecret,
			AccessToken:    req.AccessToken,
			TokenSecret:    req.TokenSecret,
		}
		sess = h.sessions.CreateWithCredentials(ctx, id, req.BaseURL, creds, req.Username)
	}
	if req.Scope != nil {
		h.sessions.SetDefaultScope(ctx, sess.ID, *req.Scope)
	}

	operatorToken, err := h.tokens.Issue(req.Username, sess.ID)
	if err != nil {
		h.logger.ErrorContext(ctx, "token issuance failed", "error", err)
		shared.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "could not issue token"))
		return
	}

	h.emit(audit.Event{
		ID:        uuid.NewString(),
		Timestamp: time.Now(),
		Actor:     req.Username,
		Action:    audit.ActionSessionLogin,
		SessionID: sess.ID,
		Result:    "session opened against " + req.BaseURL,
		RequestID: requestcontext.RequestID(ctx),
		Params:    audit.Redact(map[string]any{"base_url": req.BaseURL, "mode": string(sess.Mode)}),
	})

	shared.WriteJSON(w, http.StatusOK, loginResponse{
		Token:     operatorToken,
		SessionID: sess.ID,
		ExpiresIn: int(h.tokens.TTL().Seconds()),
	})
}

func (h *SessionHandler) handleLogout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessionID := requestcontext.SessionID(ctx)

	// Destroy is idempotent; a logout for an already-gone session is fine.
	h.sessions.Destroy(ctx, sessionID)

	h.emit(audit.Event{
		ID:        uuid.NewString(),
		Timestamp: time.Now(),
		Actor:     requestcontext.Actor(ctx),
		Action:    audit.ActionSessionLogout,
		SessionID: sessionID,
		Result:    "session destroyed",
		RequestID: requestcontext.RequestID(ctx),
	})
	w.WriteHeader(http.StatusNoContent)
}

func (h *SessionHandler) handleSetScope(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var scope session.Scope
	if err := json.NewDecoder(r.Body).Decode(&scope); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeValidation, "invalid request body"))
		return
	}
	if !scope.Populated() {
		shared.WriteError(w, dErrors.New(dErrors.CodeScopeRequired, "scope must name a website, store, store view, or the global sentinel"))
		return
	}

	sessionID := requestcontext.SessionID(ctx)
	if !h.sessions.SetDefaultScope(ctx, sessionID, scope) {
		shared.WriteError(w, dErrors.New(dErrors.CodeUnauthenticated, "no active session; log in first"))
		return
	}

	h.emit(audit.Event{
		ID:        uuid.NewString(),
		Timestamp: time.Now(),
		Actor:     requestcontext.Actor(ctx),
		Action:    audit.ActionScopeChanged,
		SessionID: sessionID,
		Result:    "default scope updated",
		RequestID: requestcontext.RequestID(ctx),
	})
	w.WriteHeader(http.StatusNoContent)
}

func (h *SessionHandler) emit(event audit.Event) {
	if h.audit == nil {
		return
	}
	select {
	case h.audit <- event:
	default:
		h.logger.Warn("audit inbox full, dropping event", "action", event.Action)
	}
}
