// Package apperrors defines the domain error taxonomy shared by services and handlers.
package apperrors

import (
	"errors"
	"sort"
	"strings"
)

// Kind groups error codes into the categories callers branch on.
type Kind string

const (
	KindNotFound      Kind = "NOT_FOUND"
	KindConflict      Kind = "CONFLICT"
	KindAuthorization Kind = "AUTHORIZATION"
	KindProvisioning  Kind = "PROVISIONING"
	KindValidation    Kind = "VALIDATION"
	KindInternal      Kind = "INTERNAL"
)

// Code is a machine-readable error code.
type Code string

const (
	CodeNotFound            Code = "NOT_FOUND"
	CodeLiveSessionExists   Code = "STREAM_ALREADY_RUNNING"
	CodeNotPresenter        Code = "NOT_AUTHORIZED"
	CodeProvisioningFailed  Code = "STREAM_CREATION_FAILED"
	CodeProvisioningTimeout Code = "PROVISIONING_TIMEOUT"
	CodeStreamStopFailed    Code = "STREAM_STOP_FAILED"
	CodePaymentFailed       Code = "PAYMENT_PROVIDER_FAILED"
	CodeVoiceAgentFailed    Code = "VOICE_AGENT_FAILED"
	CodeInvalidInput        Code = "INVALID_INPUT"
	CodeInvalidTransition   Code = "INVALID_TRANSITION"
	CodeCallUnavailable     Code = "CALL_UNAVAILABLE"
	CodeInternal            Code = "INTERNAL"
)

// Error is the domain error type with structured metadata.
type Error struct {
	Kind     Kind
	Code     Code
	Message  string            // user-facing, short
	Metadata map[string]string // extra context, e.g. blocking webinar ids
	Fields   map[string]string // field -> reason, validation only
	Cause    error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error by code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// Sentinels for errors.Is comparisons.
var (
	ErrNotFound            = &Error{Kind: KindNotFound, Code: CodeNotFound}
	ErrLiveSessionExists   = &Error{Kind: KindConflict, Code: CodeLiveSessionExists}
	ErrNotPresenter        = &Error{Kind: KindAuthorization, Code: CodeNotPresenter}
	ErrProvisioningFailed  = &Error{Kind: KindProvisioning, Code: CodeProvisioningFailed}
	ErrProvisioningTimeout = &Error{Kind: KindProvisioning, Code: CodeProvisioningTimeout}
	ErrInvalidInput        = &Error{Kind: KindValidation, Code: CodeInvalidInput}
	ErrInvalidTransition   = &Error{Kind: KindValidation, Code: CodeInvalidTransition}
)

// NotFound returns a NotFoundError for the named entity.
func NotFound(entity string) *Error {
	return &Error{Kind: KindNotFound, Code: CodeNotFound, Message: entity + " not found"}
}

// Conflict returns a ConflictError carrying metadata about what blocks the operation.
func Conflict(code Code, message string, metadata map[string]string) *Error {
	return &Error{Kind: KindConflict, Code: code, Message: message, Metadata: metadata}
}

// Unauthorized returns the generic AuthorizationError.
func Unauthorized() *Error {
	return &Error{Kind: KindAuthorization, Code: CodeNotPresenter, Message: "not authorized"}
}

// Provisioning wraps a failed call to an external provider.
func Provisioning(code Code, message string, cause error) *Error {
	return &Error{Kind: KindProvisioning, Code: code, Message: message, Cause: cause}
}

// Validation returns a ValidationError with per-field reasons.
func Validation(message string, fields map[string]string) *Error {
	return &Error{Kind: KindValidation, Code: CodeInvalidInput, Message: message, Fields: fields}
}

// New creates an error of the given kind and code.
func New(kind Kind, code Code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

// Wrap creates an error of the given kind wrapping cause.
func Wrap(kind Kind, code Code, message string, cause error) *Error {
	return &Error{Kind: kind, Code: code, Message: message, Cause: cause}
}

// As extracts the domain error from err's chain.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// KindOf returns the kind of err, or KindInternal for errors outside the taxonomy.
func KindOf(err error) Kind {
	if e, ok := As(err); ok {
		return e.Kind
	}
	return KindInternal
}

// JoinTitles renders a stable comma-separated list for conflict messages.
func JoinTitles(titles []string) string {
	sorted := append([]string(nil), titles...)
	sort.Strings(sorted)
	return strings.Join(sorted, ", ")
}
