// Package api provides the Suqaba API client and its error types.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	nethttp "net/http"
	"strings"
)

// ErrUnauthenticated is returned by protected calls made without a session.
// No request is sent.
var ErrUnauthenticated = errors.New("not authenticated: please log in")

const (
	genericAuthMessage   = "authentication failed"
	genericServerMessage = "the server could not process the request"

	// maxErrorBody caps how much of an error response is read for its message
	maxErrorBody = 64 * 1024
)

// NetworkError means no HTTP response was received. It is never retried
// automatically; retrying is left to the user.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: network error: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// AuthError means the server rejected the credentials (401).
type AuthError struct {
	Op      string
	Message string
}

func (e *AuthError) Error() string {
	return e.Message
}

// ValidationError is a client-side check that blocked an operation.
// Step is the wizard step index the failure belongs to, or -1.
type ValidationError struct {
	Field   string
	Step    int
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// NewValidationError returns a ValidationError not tied to a wizard step.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Step: -1, Message: message}
}

// ServerError is any other non-2xx response.
type ServerError struct {
	Op         string
	StatusCode int
	Message    string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("%s failed: status %d: %s", e.Op, e.StatusCode, e.Message)
}

// IsAuthError reports whether err is (or wraps) an *AuthError.
func IsAuthError(err error) bool {
	var target *AuthError
	return errors.As(err, &target)
}

// IsNetworkError reports whether err is (or wraps) a *NetworkError.
func IsNetworkError(err error) bool {
	var target *NetworkError
	return errors.As(err, &target)
}

// IsValidationError reports whether err is (or wraps) a *ValidationError.
func IsValidationError(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

// IsNotFound reports whether err is a 404 ServerError.
func IsNotFound(err error) bool {
	var target *ServerError
	return errors.As(err, &target) && target.StatusCode == nethttp.StatusNotFound
}

// errorFromResponse converts a non-2xx response into AuthError or ServerError,
// using the server's message when the body carries one.
func errorFromResponse(op string, resp *nethttp.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	msg := extractMessage(body)

	if resp.StatusCode == nethttp.StatusUnauthorized {
		if msg == "" {
			msg = genericAuthMessage
		}
		return &AuthError{Op: op, Message: msg}
	}

	if msg == "" {
		msg = genericServerMessage
	}
	return &ServerError{Op: op, StatusCode: resp.StatusCode, Message: msg}
}

// extractMessage understands {"detail": "..."}, {"detail": [{"msg": "..."}]},
// {"message": "..."}, {"error": "..."} and the results endpoint's
// {"not-ready": "..."}. A short plain-text body is used as is.
func extractMessage(body []byte) string {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return ""
	}

	var payload struct {
		Detail  json.RawMessage `json:"detail"`
		Message  string          `json:"message"`
		Error    string          `json:"error"`
		NotReady string          `json:"not-ready"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		if strings.HasPrefix(trimmed, "<") || len(trimmed) > 200 {
			return ""
		}
		return trimmed
	}

	if len(payload.Detail) > 0 {
		var s string
		if err := json.Unmarshal(payload.Detail, &s); err == nil && s != "" {
			return s
		}
		var items []struct {
			Loc []interface{} `json:"loc"`
			Msg string        `json:"msg"`
		}
		if err := json.Unmarshal(payload.Detail, &items); err == nil {
			msgs := make([]string, 0, len(items))
			for _, it := range items {
				if it.Msg == "" {
					continue
				}
				if n := len(it.Loc); n > 0 {
					msgs = append(msgs, fmt.Sprintf("%v: %s", it.Loc[n-1], it.Msg))
				} else {
					msgs = append(msgs, it.Msg)
				}
			}
			if len(msgs) > 0 {
				return strings.Join(msgs, "; ")
			}
		}
	}

	switch {
	case payload.Message != "":
		return payload.Message
	case payload.Error != "":
		return payload.Error
	}
	return payload.NotReady
}
