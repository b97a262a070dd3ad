package session

import (
	"errors"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	TextCodeValidation   = "SESSION_VALIDATION"
	TextCodeUnauthorized = "SESSION_UNAUTHORIZED"
	TextCodeForbidden    = "SESSION_FORBIDDEN"
	TextCodeTransient    = "SESSION_TRANSIENT"
	TextCodeConflict     = "SESSION_CONFLICT"
	TextCodeNotActive    = "SESSION_NOT_ACTIVE"
)

// ErrorKind is the client-side classification of a failure.
type ErrorKind string

const (
	KindNone         ErrorKind = ""
	KindValidation   ErrorKind = "validation"
	KindUnauthorized ErrorKind = "unauthorized"
	KindForbidden    ErrorKind = "forbidden"
	KindTransient    ErrorKind = "transient"
	KindConflict     ErrorKind = "conflict"
	KindNotActive    ErrorKind = "not_active"
)

// ErrIdentityNotFound is returned when a response carries no usable identity
var ErrIdentityNotFound = errors.New("identity not found")

// ErrNoToken is the source error for refreshes attempted without a stored token
var ErrNoToken = errors.New("no session token stored")

// NewValidationError wraps a form validation failure. It is returned before
// any request is dispatched.
func NewValidationError(message string, source error) *goerrors.Error {
	return build(source, goerrors.CategoryValidation, message).
		WithTextCode(TextCodeValidation).
		WithCode(goerrors.CodeBadRequest)
}

// NewUnauthorizedError signals an invalid or expired token.
func NewUnauthorizedError(message string, source error) *goerrors.Error {
	return build(source, goerrors.CategoryAuth, message).
		WithTextCode(TextCodeUnauthorized).
		WithCode(goerrors.CodeUnauthorized)
}

// NewForbiddenError signals an identity without the required role.
func NewForbiddenError(message string, source error) *goerrors.Error {
	return build(source, goerrors.CategoryAuthz, message).
		WithTextCode(TextCodeForbidden).
		WithCode(goerrors.CodeForbidden)
}

// NewTransientError signals a network, server or decoding failure where the
// validity of the session could not be determined.
func NewTransientError(message string, source error) *goerrors.Error {
	return build(source, goerrors.CategoryOperation, message).
		WithTextCode(TextCodeTransient).
		WithCode(http.StatusServiceUnavailable)
}

// NewConflictError signals a business rule rejection such as a duplicate email.
func NewConflictError(message string, source error, status int) *goerrors.Error {
	if status == 0 {
		status = goerrors.CodeConflict
	}
	return build(source, goerrors.CategoryConflict, message).
		WithTextCode(TextCodeConflict).
		WithCode(status)
}

// NewNotActiveError is returned when an authenticated operation is invoked
// while the session is not active.
func NewNotActiveError(operation string, status Status) *goerrors.Error {
	return goerrors.New("session is not active", goerrors.CategoryBadInput).
		WithTextCode(TextCodeNotActive).
		WithCode(goerrors.CodeBadRequest).
		WithMetadata(map[string]any{
			"operation": operation,
			"status":    string(status),
		})
}

// build keeps source as the cause without inheriting its category or text code
func build(source error, category goerrors.Category, message string) *goerrors.Error {
	err := goerrors.New(message, category)
	err.Source = source
	return err
}

// KindOf classifies err. Errors that were not produced by this module are
// treated as transient.
func KindOf(err error) ErrorKind {
	if err == nil {
		return KindNone
	}

	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		return KindTransient
	}

	switch richErr.TextCode {
	case TextCodeValidation:
		return KindValidation
	case TextCodeUnauthorized:
		return KindUnauthorized
	case TextCodeForbidden:
		return KindForbidden
	case TextCodeTransient:
		return KindTransient
	case TextCodeConflict:
		return KindConflict
	case TextCodeNotActive:
		return KindNotActive
	}

	switch richErr.Category {
	case goerrors.CategoryValidation, goerrors.CategoryBadInput:
		return KindValidation
	case goerrors.CategoryAuth:
		return KindUnauthorized
	case goerrors.CategoryAuthz:
		return KindForbidden
	case goerrors.CategoryConflict:
		return KindConflict
	default:
		return KindTransient
	}
}

// IsUnauthorized reports whether err means the token is no longer valid
func IsUnauthorized(err error) bool { return KindOf(err) == KindUnauthorized }

// IsForbidden reports whether err is a role/capability rejection
func IsForbidden(err error) bool { return KindOf(err) == KindForbidden }

// IsTransient reports whether err is a recoverable network or server failure
func IsTransient(err error) bool { return KindOf(err) == KindTransient }

// IsConflict reports whether err is a business rule rejection
func IsConflict(err error) bool { return KindOf(err) == KindConflict }

// IsValidation reports whether err was raised before dispatch by form validation
func IsValidation(err error) bool { return KindOf(err) == KindValidation }

// IsNotActive reports whether err was raised because the session was not active
func IsNotActive(err error) bool { return KindOf(err) == KindNotActive }

// UserMessage returns the message that presentation code should surface for
// err: the backend detail when one was captured, fallback otherwise.
func UserMessage(err error, fallback string) string {
	if err == nil {
		return ""
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		if detail, ok := richErr.Metadata[MetadataDetail].(string); ok && strings.TrimSpace(detail) != "" {
			return detail
		}
		if richErr.Category == goerrors.CategoryValidation && richErr.Message != "" {
			return richErr.Message
		}
	}

	return fallback
}

// MetadataDetail is the metadata key holding the verbatim backend detail.
const MetadataDetail = "detail"

// recordableError converts err into the rich error stored as LastError,
// replacing the message with what the user should read.
func recordableError(err error, fallback string) *goerrors.Error {
	if err == nil {
		return nil
	}

	message := UserMessage(err, fallback)

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		recorded := richErr.Clone()
		recorded.Message = message
		recorded.Source = err
		return recorded
	}

	return NewTransientError(message, err)
}
