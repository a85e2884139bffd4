package common

import (
	"errors"
	"net/http"
)

// Kind classifies an AppError. The set is closed; the HTTP error classifier
// switches on it instead of inspecting error strings.
type Kind uint8

const (
	// KindInternal is any failure without a more specific classification.
	KindInternal Kind = iota
	// KindValidation marks malformed or semantically invalid input.
	KindValidation
	// KindUnauthorized marks a missing or rejected caller identity.
	KindUnauthorized
	// KindNotFound marks a referenced resource that does not exist.
	KindNotFound
	// KindUpstream marks a failed call to a payment or courier provider.
	KindUpstream
	// KindPersistence marks a database failure carrying a server error code.
	KindPersistence
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindUnauthorized:
		return "unauthorized"
	case KindNotFound:
		return "not_found"
	case KindUpstream:
		return "upstream"
	case KindPersistence:
		return "persistence"
	default:
		return "internal"
	}
}

// FieldError describes a single invalid input field.
type FieldError struct {
	Field   string `json:"field"`
	Rule    string `json:"rule,omitempty"`
	Message string `json:"message"`
}

// AppError represents an error with an attached kind, code and HTTP status.
type AppError struct {
	Kind    Kind
	Code    string
	Message string
	// HTTPStatus is the upstream response status for KindUpstream errors.
	HTTPStatus int
	Errors     []FieldError
	Err        error
	Details    any
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e == nil {
		return ""
	}
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Kind.String()
}

// Unwrap allows errors.Is/As to inspect the underlying error.
func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewAppError constructs an AppError of the given kind.
func NewAppError(kind Kind, code, message string, err error) *AppError {
	return &AppError{Kind: kind, Code: code, Message: message, Err: err}
}

// Validation returns a KindValidation error with optional per-field detail.
func Validation(message string, fields ...FieldError) *AppError {
	if message == "" {
		message = "validation failed"
	}
	return &AppError{Kind: KindValidation, Code: "VALIDATION_ERROR", Message: message, Errors: fields}
}

// Unauthorized returns a KindUnauthorized error.
func Unauthorized(message string) *AppError {
	if message == "" {
		message = "unauthorized"
	}
	return &AppError{Kind: KindUnauthorized, Code: "UNAUTHORIZED", Message: message}
}

// NotFound returns a KindNotFound error for the named resource.
func NotFound(resource string) *AppError {
	if resource == "" {
		resource = "resource"
	}
	return &AppError{Kind: KindNotFound, Code: "NOT_FOUND", Message: resource + " not found"}
}

// Upstream returns a KindUpstream error carrying the provider status and payload.
func Upstream(provider string, status int, payload any, err error) *AppError {
	message := "upstream provider request failed"
	if provider != "" {
		message = provider + " request failed"
	}
	return &AppError{Kind: KindUpstream, Code: "UPSTREAM_ERROR", Message: message, HTTPStatus: status, Details: payload, Err: err}
}

// Persistence returns a KindPersistence error for a database error code.
func Persistence(code string, err error) *AppError {
	return &AppError{Kind: KindPersistence, Code: code, Message: "database error", Err: err}
}

// IsAppError checks whether the error is an AppError.
func IsAppError(err error) bool {
	var target *AppError
	return errors.As(err, &target)
}

// AsAppError returns the first AppError in the chain.
func AsAppError(err error) (*AppError, bool) {
	var target *AppError
	if errors.As(err, &target) && target != nil {
		return target, true
	}
	return nil, false
}

// KindOf reports the kind of err, KindInternal when it carries none.
func KindOf(err error) Kind {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Kind
	}
	return KindInternal
}

// StatusFor maps an error kind onto its default HTTP status.
func StatusFor(kind Kind) int {
	switch kind {
	case KindValidation, KindPersistence:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
