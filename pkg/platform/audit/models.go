package audit

import (
	"strings"
	"time"
)

// Event is emitted once per tool call, success or failure. Keep it
// transport-agnostic so stores and sinks can fan out. Credential-shaped
// parameters must be stripped before an event is constructed; Redact helps.
type Event struct {
	ID            string         `json:"id"`
	Timestamp     time.Time      `json:"timestamp"`
	Actor         string         `json:"actor"`
	Action        string         `json:"action"`
	SessionID     string         `json:"session_id,omitempty"`
	Scope         string         `json:"scope,omitempty"`
	PlanID        string         `json:"plan_id,omitempty"`
	Justification string         `json:"justification,omitempty"`
	Result        string         `json:"result"`
	RequestID     string         `json:"request_id,omitempty"`
	Params        map[string]any `json:"params,omitempty"`
}

// Action names recorded by the gateway.
const (
	ActionSessionLogin  = "session_login"
	ActionSessionLogout = "session_logout"
	ActionScopeChanged  = "scope_changed"
	ActionPlanPrepared  = "plan_prepared"
	ActionPlanCommitted = "plan_committed"
	ActionCommitDenied  = "commit_denied"
	ActionReplayServed  = "replay_served"
)

// secretKeywords marks parameter names whose values never reach the audit
// trail.
var secretKeywords = []string{"secret", "token", "password", "key", "credential"}

// Redact returns a copy of params with credential-shaped values replaced by a
// placeholder. The original map is left untouched.
func Redact(params map[string]any) map[string]any {
	if params == nil {
		return nil
	}
	out := make(map[string]any, len(params))
	for k, v := range params {
		if isSecretName(k) {
			out[k] = "[REDACTED]"
			continue
		}
		out[k] = v
	}
	return out
}

func isSecretName(name string) bool {
	lower := strings.ToLower(name)
	for _, kw := range secretKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
