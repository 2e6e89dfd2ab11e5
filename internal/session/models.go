// Package session holds the registry of logical platform sessions. A session
// binds an operator to one commerce platform deployment: its base address, a
// way to authenticate against it, and an optional default multi-store scope.
package session

import (
	"time"

	"storegate/internal/signing"
)

// AuthMode selects how outbound calls authenticate.
type AuthMode string

const (
	// AuthBearer sends a long-lived admin bearer token.
	AuthBearer AuthMode = "bearer"
	// AuthCredentials signs every request with the OAuth credential tuple.
	AuthCredentials AuthMode = "credential-tuple"
)

// Scope is the multi-store addressing tuple a mutation applies to. The Global
// sentinel addresses every store at once. Scope is immutable once attached to
// a plan.
type Scope struct {
	WebsiteCode   string `json:"website_code,omitempty"`
	StoreCode     string `json:"store_code,omitempty"`
	StoreViewCode string `json:"store_view_code,omitempty"`
	Global        bool   `json:"global,omitempty"`
}

// Populated reports whether at least one addressing field is set. Every
// write-affecting call requires a populated scope.
func (s Scope) Populated() bool {
	return s.Global || s.WebsiteCode != "" || s.StoreCode != "" || s.StoreViewCode != ""
}

// Session is the per-deployment connection state. Exactly one field is mutable
// after creation: DefaultScope. Credentials and tokens are held in process
// memory only and are never persisted or logged.
type Session struct {
	ID           string
	BaseURL      string
	Mode         AuthMode
	BearerToken  string
	Credentials  signing.Credentials
	Username     string
	DefaultScope *Scope
	CreatedAt    time.Time
}

// Authenticated reports whether the session carries usable credentials for its
// mode. Signing fails fast on sessions that return false here.
func (s Session) Authenticated() bool {
	switch s.Mode {
	case AuthBearer:
		return s.BearerToken != ""
	case AuthCredentials:
		return s.Credentials.Complete()
	}
	return false
}
