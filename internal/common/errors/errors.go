// Package errors provides the standardized error taxonomy used across the gateway.
package errors

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Kind groups errors by the component that raised them. Classifier errors are
// absorbed into a fallback intent and must never surface to the client.
type Kind string

const (
	KindDecode        Kind = "decode"
	KindNormalization Kind = "normalization"
	KindClassifier    Kind = "classifier"
	KindRouting       Kind = "routing"
	KindDownstream    Kind = "downstream"
	KindInternal      Kind = "internal"
)

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeMalformedJSON        ErrorCode = "MALFORMED_JSON"
	ErrCodeUnsupportedVersion   ErrorCode = "UNSUPPORTED_VERSION"
	ErrCodeMissingRequiredField ErrorCode = "MISSING_REQUIRED_FIELD"

	ErrCodeMissingTranscript ErrorCode = "MISSING_TRANSCRIPT"
	ErrCodeUnsupportedType   ErrorCode = "UNSUPPORTED_REQUEST_TYPE"
	ErrCodeEmptyText         ErrorCode = "EMPTY_TEXT"

	ErrCodeClassifierFailed  ErrorCode = "CLASSIFIER_FAILED"
	ErrCodeClassifierTimeout ErrorCode = "CLASSIFIER_TIMEOUT"

	ErrCodeRouteNotFound ErrorCode = "ROUTE_NOT_FOUND"

	ErrCodeDownstreamTimeout     ErrorCode = "DOWNSTREAM_TIMEOUT"
	ErrCodeDownstreamUnavailable ErrorCode = "DOWNSTREAM_UNAVAILABLE"
	ErrCodeDownstreamRejected    ErrorCode = "DOWNSTREAM_REJECTED"
	ErrCodeDownstreamPayload     ErrorCode = "DOWNSTREAM_INVALID_PAYLOAD"

	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)

// GatewayError is the structured error carried from any component failure to
// the coordinator, where it is translated into a single error envelope shape.
type GatewayError struct {
	Kind       Kind                   `json:"kind"`
	Code       ErrorCode              `json:"code"`
	HTTPStatus int                    `json:"httpStatus"`
	Message    string                 `json:"message"`
	Details    map[string]interface{} `json:"details,omitempty"`
	Retryable  bool                   `json:"retryable"`
	Timestamp  time.Time              `json:"timestamp"`
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("GatewayError[%s]: %s", e.Code, e.Message)
}

// AsGatewayError unwraps err into a *GatewayError, or wraps it as an internal
// error so the coordinator always has a well-formed taxonomy error to emit.
func AsGatewayError(err error) *GatewayError {
	var ge *GatewayError
	if errors.As(err, &ge) {
		return ge
	}
	return NewInternalError(err)
}

// ==========================
// Decode errors (client)
// ==========================

func NewMalformedJSONError(err error) *GatewayError {
	return &GatewayError{
		Kind:       KindDecode,
		Code:       ErrCodeMalformedJSON,
		HTTPStatus: http.StatusBadRequest,
		Message:    "Request envelope is not valid JSON",
		Details:    map[string]interface{}{"error": err.Error()},
		Retryable:  false,
		Timestamp:  time.Now().UTC(),
	}
}

func NewUnsupportedVersionError(version string) *GatewayError {
	return &GatewayError{
		Kind:       KindDecode,
		Code:       ErrCodeUnsupportedVersion,
		HTTPStatus: http.StatusBadRequest,
		Message:    "Unsupported envelope version",
		Details:    map[string]interface{}{"version": version},
		Retryable:  false,
		Timestamp:  time.Now().UTC(),
	}
}

func NewMissingRequiredFieldError(fields []string) *GatewayError {
	return &GatewayError{
		Kind:       KindDecode,
		Code:       ErrCodeMissingRequiredField,
		HTTPStatus: http.StatusBadRequest,
		Message:    "Request envelope is missing required fields",
		Details:    map[string]interface{}{"fields": fields},
		Retryable:  false,
		Timestamp:  time.Now().UTC(),
	}
}

// ==========================
// Normalization errors (client)
// ==========================

func NewMissingTranscriptError() *GatewayError {
	return &GatewayError{
		Kind:       KindNormalization,
		Code:       ErrCodeMissingTranscript,
		HTTPStatus: http.StatusBadRequest,
		Message:    "Audio request carries no transcript",
		Retryable:  false,
		Timestamp:  time.Now().UTC(),
	}
}

func NewUnsupportedTypeError(requestType string) *GatewayError {
	return &GatewayError{
		Kind:       KindNormalization,
		Code:       ErrCodeUnsupportedType,
		HTTPStatus: http.StatusBadRequest,
		Message:    fmt.Sprintf("Request type '%s' is not supported", requestType),
		Details:    map[string]interface{}{"supported": []string{"text", "audio"}},
		Retryable:  false,
		Timestamp:  time.Now().UTC(),
	}
}

func NewEmptyTextError() *GatewayError {
	return &GatewayError{
		Kind:       KindNormalization,
		Code:       ErrCodeEmptyText,
		HTTPStatus: http.StatusBadRequest,
		Message:    "No text content available in the request payload",
		Retryable:  false,
		Timestamp:  time.Now().UTC(),
	}
}

// ==========================
// Classifier errors (absorbed by the intent resolver)
// ==========================

func NewClassifierFailedError(err error) *GatewayError {
	return &GatewayError{
		Kind:       KindClassifier,
		Code:       ErrCodeClassifierFailed,
		HTTPStatus: http.StatusBadGateway,
		Message:    "Intent classifier call failed",
		Details:    map[string]interface{}{"error": err.Error()},
		Retryable:  true,
		Timestamp:  time.Now().UTC(),
	}
}

func NewClassifierTimeoutError() *GatewayError {
	return &GatewayError{
		Kind:       KindClassifier,
		Code:       ErrCodeClassifierTimeout,
		HTTPStatus: http.StatusGatewayTimeout,
		Message:    "Intent classifier call timed out",
		Retryable:  true,
		Timestamp:  time.Now().UTC(),
	}
}

// ==========================
// Routing errors (configuration)
// ==========================

func NewRouteNotFoundError(label string) *GatewayError {
	return &GatewayError{
		Kind:       KindRouting,
		Code:       ErrCodeRouteNotFound,
		HTTPStatus: http.StatusInternalServerError,
		Message:    "No route configured for intent and no catch-all available",
		Details:    map[string]interface{}{"intent": label},
		Retryable:  false,
		Timestamp:  time.Now().UTC(),
	}
}

// ==========================
// Downstream errors
// ==========================

func NewDownstreamTimeoutError(target string) *GatewayError {
	return &GatewayError{
		Kind:       KindDownstream,
		Code:       ErrCodeDownstreamTimeout,
		HTTPStatus: http.StatusBadGateway,
		Message:    "Downstream service call timed out",
		Details:    map[string]interface{}{"target": target},
		Retryable:  true,
		Timestamp:  time.Now().UTC(),
	}
}

// NewDownstreamStatusError classifies a non-2xx downstream status. Transient
// statuses (502, 503, 504) are retryable, everything else is not.
func NewDownstreamStatusError(target string, status int) *GatewayError {
	retryable := status == http.StatusBadGateway ||
		status == http.StatusServiceUnavailable ||
		status == http.StatusGatewayTimeout

	code := ErrCodeDownstreamRejected
	if retryable {
		code = ErrCodeDownstreamUnavailable
	}

	return &GatewayError{
		Kind:       KindDownstream,
		Code:       code,
		HTTPStatus: http.StatusBadGateway,
		Message:    fmt.Sprintf("Downstream service returned status %d", status),
		Details:    map[string]interface{}{"target": target, "status": status},
		Retryable:  retryable,
		Timestamp:  time.Now().UTC(),
	}
}

// NewDownstreamUnavailableError covers transport-level failures (connection
// refused, DNS) where the service never answered; retry is sensible.
func NewDownstreamUnavailableError(target string, err error) *GatewayError {
	return &GatewayError{
		Kind:       KindDownstream,
		Code:       ErrCodeDownstreamUnavailable,
		HTTPStatus: http.StatusBadGateway,
		Message:    "Downstream service is unreachable",
		Details:    map[string]interface{}{"target": target, "error": err.Error()},
		Retryable:  true,
		Timestamp:  time.Now().UTC(),
	}
}

func NewDownstreamPayloadError(target string, err error) *GatewayError {
	return &GatewayError{
		Kind:       KindDownstream,
		Code:       ErrCodeDownstreamPayload,
		HTTPStatus: http.StatusBadGateway,
		Message:    "Downstream service returned an unusable payload",
		Details:    map[string]interface{}{"target": target, "error": err.Error()},
		Retryable:  false,
		Timestamp:  time.Now().UTC(),
	}
}

// ==========================
// Internal
// ==========================

func NewInternalError(err error) *GatewayError {
	details := map[string]interface{}{}
	if err != nil {
		details["error"] = err.Error()
	}
	return &GatewayError{
		Kind:       KindInternal,
		Code:       ErrCodeInternal,
		HTTPStatus: http.StatusInternalServerError,
		Message:    "Internal error in gateway",
		Details:    details,
		Retryable:  false,
		Timestamp:  time.Now().UTC(),
	}
}
