/*
Copyright 2025 Jordi Gil.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package errors provides a structured application error used across the
// governance and executor services, with a stable HTTP status mapping.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// ErrorType classifies an AppError for HTTP status mapping and for callers
// that need to branch on error category.
type ErrorType string

const (
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeAuth       ErrorType = "auth"
	ErrorTypeNotFound   ErrorType = "not_found"
	ErrorTypeConflict   ErrorType = "conflict"
	ErrorTypeTimeout    ErrorType = "timeout"
	ErrorTypeRateLimit  ErrorType = "rate_limit"
	ErrorTypeDatabase   ErrorType = "database"
	ErrorTypeNetwork    ErrorType = "network"
	ErrorTypeInternal   ErrorType = "internal"
	ErrorTypeTemplate   ErrorType = "template"
	ErrorTypeState      ErrorType = "state"
	ErrorTypeUpstream   ErrorType = "upstream"
)

var statusCodes = map[ErrorType]int{
	ErrorTypeValidation: http.StatusBadRequest,
	ErrorTypeAuth:       http.StatusUnauthorized,
	ErrorTypeNotFound:   http.StatusNotFound,
	ErrorTypeConflict:   http.StatusConflict,
	ErrorTypeTimeout:    http.StatusRequestTimeout,
	ErrorTypeRateLimit:  http.StatusTooManyRequests,
	ErrorTypeDatabase:   http.StatusInternalServerError,
	ErrorTypeNetwork:    http.StatusInternalServerError,
	ErrorTypeInternal:   http.StatusInternalServerError,
	ErrorTypeTemplate:   http.StatusUnprocessableEntity,
	ErrorTypeState:      http.StatusBadRequest,
	ErrorTypeUpstream:   http.StatusBadGateway,
}

// AppError is the structured error carried across every service boundary.
// It never exposes a stack trace; Details is operator-facing context only.
type AppError struct {
	Type       ErrorType
	Message    string
	Details    string
	StatusCode int
	Cause      error
}

func New(t ErrorType, message string) *AppError {
	return &AppError{
		Type:       t,
		Message:    message,
		StatusCode: statusCodes[t],
	}
}

func Newf(t ErrorType, format string, args ...any) *AppError {
	return New(t, fmt.Sprintf(format, args...))
}

func Wrap(cause error, t ErrorType, message string) *AppError {
	err := New(t, message)
	err.Cause = cause
	return err
}

func Wrapf(cause error, t ErrorType, format string, args ...any) *AppError {
	return Wrap(cause, t, fmt.Sprintf(format, args...))
}

func (e *AppError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Type, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithDetails sets operator-facing details and returns the same error, for
// fluent construction at the call site.
func (e *AppError) WithDetails(details string) *AppError {
	e.Details = details
	return e
}

func (e *AppError) WithDetailsf(format string, args ...any) *AppError {
	return e.WithDetails(fmt.Sprintf(format, args...))
}

// ── Predefined constructors used throughout the governance and executor
// services; these match the shape of the error a caller most commonly
// needs without repeating the ErrorType at every call site.

func NewValidationError(message string) *AppError {
	return New(ErrorTypeValidation, message)
}

func NewNotFoundError(resource string) *AppError {
	return New(ErrorTypeNotFound, fmt.Sprintf("%s not found", resource))
}

func NewConflictError(message string) *AppError {
	return New(ErrorTypeConflict, message)
}

func NewDatabaseError(operation string, cause error) *AppError {
	return Wrapf(cause, ErrorTypeDatabase, "database operation failed: %s", operation)
}

// NewTemplateError marks a fatal, non-retryable failure to build DDL from
// params (unknown operation, invalid identifier, disallowed privilege,
// invalid interval).
func NewTemplateError(message string) *AppError {
	return New(ErrorTypeTemplate, message)
}

func NewTemplateErrorf(format string, args ...any) *AppError {
	return Newf(ErrorTypeTemplate, format, args...)
}

// NewStateError marks a state-machine violation, always surfaced as 400
// with the offending current status named in Details.
func NewStateError(message string) *AppError {
	return New(ErrorTypeState, message)
}

// NewUpstreamError marks an executor RPC failure or cluster HTTP failure
// observed at the proposal-execute boundary.
func NewUpstreamError(cause error, message string) *AppError {
	return Wrap(cause, ErrorTypeUpstream, message)
}

// StatusCodeFor returns the HTTP status an arbitrary error should surface
// as. Non-AppError values map to 500.
func StatusCodeFor(err error) int {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.StatusCode
	}
	return http.StatusInternalServerError
}
