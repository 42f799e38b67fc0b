// Package apperrors provides structured error handling for remote API calls.
// Every failure surfaced to the user flows through this taxonomy so the UI can
// show the upstream-supplied message when one exists and a generic fallback
// otherwise.
package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode classifies a remote-call failure
type ErrorCode string

const (
	// CodeTransport covers network-level failures: DNS, connect, timeout
	CodeTransport ErrorCode = "TRANSPORT_FAILURE"
	// CodeUnauthorized covers authentication rejection (missing/invalid/expired token)
	CodeUnauthorized ErrorCode = "UNAUTHORIZED"
	// CodeNotFound covers a missing remote resource
	CodeNotFound ErrorCode = "NOT_FOUND"
	// CodeValidation covers client-side input rejection before any network call
	CodeValidation ErrorCode = "VALIDATION_FAILED"
	// CodeRemote covers any other rejection by the remote service
	CodeRemote ErrorCode = "REMOTE_REJECTED"
)

// AppError represents a classified failure with an optional upstream message
type AppError struct {
	Code       ErrorCode
	StatusCode int    // HTTP status from the remote service, 0 for transport/validation
	Message    string // upstream-supplied message, may be empty
	Fallback   string // generic user-facing message when Message is empty
	Cause      error
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Code, e.Cause)
	}
	return string(e.Code)
}

// Unwrap returns the underlying cause error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// UserMessage returns the message shown to the user: the remote-supplied one
// when present, else the generic fallback
func (e *AppError) UserMessage() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Fallback != "" {
		return e.Fallback
	}
	return "Something went wrong. Please try again."
}

// NewTransport creates a transport/network failure error
func NewTransport(cause error, fallback string) *AppError {
	return &AppError{Code: CodeTransport, Fallback: fallback, Cause: cause}
}

// NewValidation creates a validation failure that never reached the network
func NewValidation(message string) *AppError {
	return &AppError{Code: CodeValidation, Message: message}
}

// FromStatus classifies a remote HTTP rejection by its status code
func FromStatus(status int, upstreamMessage, fallback string) *AppError {
	code := CodeRemote
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		code = CodeUnauthorized
	case http.StatusNotFound:
		code = CodeNotFound
	}
	return &AppError{
		Code:       code,
		StatusCode: status,
		Message:    upstreamMessage,
		Fallback:   fallback,
	}
}

// Is reports whether err carries the given error code
func Is(err error, code ErrorCode) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// IsUnauthorized reports whether err is an authentication rejection
func IsUnauthorized(err error) bool {
	return Is(err, CodeUnauthorized)
}

// UserMessage extracts the user-facing message from any error
func UserMessage(err error, fallback string) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		if appErr.Message != "" {
			return appErr.Message
		}
		if appErr.Fallback != "" {
			return appErr.Fallback
		}
	}
	return fallback
}
