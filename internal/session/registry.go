package session

import (
	"context"
	"sync"
	"time"

	"storegate/internal/signing"
	"storegate/pkg/platform/sentinel"
)

// Registry keeps sessions in memory, keyed by id. One session exists in the
// reference deployment; the map shape anticipates many. Sessions are working
// state, not durable record: a restart drops them and operators log in again.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]Session
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]Session)}
}

// CreateWithToken registers a bearer-token session. Re-login under the same id
// replaces the prior session rather than erroring.
func (r *Registry) CreateWithToken(_ context.Context, id, baseURL, token, username string) Session {
	sess := Session{
		ID:          id,
		BaseURL:     baseURL,
		Mode:        AuthBearer,
		BearerToken: token,
		Username:    username,
		CreatedAt:   time.Now(),
	}
	r.put(sess)
	return sess
}

// CreateWithCredentials registers a session authenticated by the OAuth
// credential tuple. Same replace-on-re-login semantics as CreateWithToken.
func (r *Registry) CreateWithCredentials(_ context.Context, id, baseURL string, creds signing.Credentials, username string) Session {
	sess := Session{
		ID:          id,
		BaseURL:     baseURL,
		Mode:        AuthCredentials,
		Credentials: creds,
		Username:    username,
		CreatedAt:   time.Now(),
	}
	r.put(sess)
	return sess
}

func (r *Registry) put(sess Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[sess.ID] = sess
}

// Find returns the session or sentinel.ErrNotFound.
func (r *Registry) Find(_ context.Context, id string) (Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if sess, ok := r.sessions[id]; ok {
		return sess, nil
	}
	return Session{}, sentinel.ErrNotFound
}

// Destroy removes a session. Destroying an unknown id is not an error; the
// return value reports whether anything was actually removed.
func (r *Registry) Destroy(_ context.Context, id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[id]; !ok {
		return false
	}
	delete(r.sessions, id)
	return true
}

// SetDefaultScope mutates the one mutable session field. It is a no-op on an
// unknown id; it never creates a session implicitly.
func (r *Registry) SetDefaultScope(_ context.Context, id string, scope Scope) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	sess, ok := r.sessions[id]
	if !ok {
		return false
	}
	sess.DefaultScope = &scope
	r.sessions[id] = sess
	return true
}
