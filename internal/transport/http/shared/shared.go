// Package shared holds the response envelope helpers every handler uses, so
// error translation to HTTP stays consistent across the transport.
package shared

import (
	"encoding/json"
	"net/http"

	dErrors "storegate/pkg/domain-errors"
)

// ErrorBody is the JSON error envelope.
type ErrorBody struct {
	Error   string         `json:"error"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

var statusByCode = map[dErrors.Code]int{
	dErrors.CodeValidation:           http.StatusBadRequest,
	dErrors.CodeInvalidInput:         http.StatusBadRequest,
	dErrors.CodeUnauthenticated:      http.StatusUnauthorized,
	dErrors.CodeUnauthorized:         http.StatusUnauthorized,
	dErrors.CodeConfirmationRequired: http.StatusPreconditionRequired,
	dErrors.CodeCapExceeded:          http.StatusUnprocessableEntity,
	dErrors.CodeFieldNotAllowed:      http.StatusUnprocessableEntity,
	dErrors.CodeScopeRequired:        http.StatusUnprocessableEntity,
	dErrors.CodePlanNotFound:         http.StatusNotFound,
	dErrors.CodeNotFound:             http.StatusNotFound,
	dErrors.CodeConflict:             http.StatusConflict,
	dErrors.CodeRateLimited:          http.StatusTooManyRequests,
	dErrors.CodePlatformError:        http.StatusBadGateway,
	dErrors.CodeInternal:             http.StatusInternalServerError,
}

// WriteError translates a coded error into the JSON envelope. Unknown errors
// become opaque 500s; their text never reaches the client.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	status, ok := statusByCode[code]
	body := ErrorBody{Error: string(code), Message: err.Error(), Details: dErrors.DetailsOf(err)}
	if !ok {
		status = http.StatusInternalServerError
		body = ErrorBody{Error: string(dErrors.CodeInternal), Message: "internal error"}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// WriteJSON writes a success payload.
func WriteJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
