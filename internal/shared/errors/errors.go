// Package errors defines the typed error taxonomy used across the
// generation pipeline. Callers branch on the error kind rather than on
// string matching; every expected failure path produces one of these.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error into one of the pipeline failure categories.
type Kind string

const (
	// KindValidation indicates bad caller input. No network call was made.
	KindValidation Kind = "validation"
	// KindConfiguration indicates a missing or invalid credential or setting.
	KindConfiguration Kind = "configuration"
	// KindUpstream indicates a non-2xx response from a third-party API.
	KindUpstream Kind = "upstream"
	// KindProtocol indicates a 2xx response missing expected fields.
	KindProtocol Kind = "protocol"
	// KindEmptyResponse indicates a successful completion with no content.
	KindEmptyResponse Kind = "empty_response"
	// KindGenerationFailed indicates a terminal failure status from the
	// generation service.
	KindGenerationFailed Kind = "generation_failed"
	// KindTimeout indicates the poll budget was exhausted.
	KindTimeout Kind = "timeout"
)

// Error is the application error carried through the pipeline.
type Error struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
	// UpstreamStatus is the HTTP status returned by a third-party API,
	// set only for KindUpstream.
	UpstreamStatus int   `json:"upstream_status,omitempty"`
	Err            error `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Validation creates a validation error.
func Validation(message string) *Error {
	return &Error{Kind: KindValidation, Message: message}
}

// Configuration creates a configuration error.
func Configuration(message string) *Error {
	return &Error{Kind: KindConfiguration, Message: message}
}

// Upstream creates an upstream error carrying the provider status and body.
func Upstream(status int, body string) *Error {
	return &Error{
		Kind:           KindUpstream,
		Message:        fmt.Sprintf("upstream returned status %d: %s", status, body),
		UpstreamStatus: status,
	}
}

// UpstreamTransport creates an upstream error for a failed transport
// round trip (no HTTP status available).
func UpstreamTransport(err error) *Error {
	return &Error{Kind: KindUpstream, Message: "upstream request failed", Err: err}
}

// Protocol creates a protocol error.
func Protocol(message string) *Error {
	return &Error{Kind: KindProtocol, Message: message}
}

// EmptyResponse creates an empty-response error.
func EmptyResponse(message string) *Error {
	return &Error{Kind: KindEmptyResponse, Message: message}
}

// GenerationFailed creates a terminal generation failure error.
func GenerationFailed(reason string) *Error {
	if reason == "" {
		reason = "unknown reason"
	}
	return &Error{Kind: KindGenerationFailed, Message: "video generation failed: " + reason}
}

// Timeout creates a poll-budget-exhausted error.
func Timeout(attempts int) *Error {
	return &Error{
		Kind:    KindTimeout,
		Message: fmt.Sprintf("timed out waiting for video generation after %d attempts", attempts),
	}
}

// KindOf returns the kind of err, or an empty Kind if err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsKind reports whether err is an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// HTTPStatus maps an error to the status code returned by the HTTP layer.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindConfiguration:
		return http.StatusInternalServerError
	case KindUpstream, KindProtocol, KindEmptyResponse, KindGenerationFailed:
		return http.StatusBadGateway
	case KindTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// ErrorResponse is the uniform JSON error body returned by handlers.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains the error kind and a human-readable message.
type ErrorDetail struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
}

// ToResponse converts an error into the uniform response shape.
func ToResponse(err error) ErrorResponse {
	var e *Error
	if errors.As(err, &e) {
		return ErrorResponse{Error: ErrorDetail{Kind: e.Kind, Message: e.Message}}
	}
	return ErrorResponse{Error: ErrorDetail{Kind: "internal", Message: "internal error"}}
}
