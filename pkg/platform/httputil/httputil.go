// Package httputil centralizes JSON envelopes for HTTP handlers so every
// endpoint translates domain errors the same way.
package httputil

import (
	"encoding/json"
	"errors"
	"net/http"

	dErrors "caseflow/pkg/domain-errors"
)

// errorResponse is the JSON error envelope returned by all endpoints.
type errorResponse struct {
	Error   string         `json:"error"`
	Message string         `json:"message,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// WriteError renders a coded domain error as a JSON envelope. Forbidden
// errors get a generic message so role names never leak to the caller.
func WriteError(w http.ResponseWriter, err error) {
	WriteErrorDetails(w, err, nil)
}

// WriteErrorDetails renders a coded error with optional structured details
// (e.g. the valid actions for an invalid-transition failure).
func WriteErrorDetails(w http.ResponseWriter, err error, details map[string]any) {
	code := dErrors.CodeOf(err)
	resp := errorResponse{Error: string(code), Details: details}
	switch code {
	case dErrors.CodeForbidden:
		resp.Message = "operation not permitted"
	case dErrors.CodeInternal:
		// Internal details stay in logs.
	default:
		var de *dErrors.Error
		if errors.As(err, &de) {
			resp.Message = de.Message
		}
	}
	WriteJSON(w, dErrors.ToHTTPStatus(code), resp)
}

// Decode parses a JSON request body into dst, returning a coded error the
// caller can pass straight to WriteError.
func Decode[T any](r *http.Request) (T, error) {
	var dst T
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&dst); err != nil {
		return dst, dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid request body")
	}
	return dst, nil
}
