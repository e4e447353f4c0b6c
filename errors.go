package auth

import (
	"errors"
	"net/http"
	"strings"
)

// Category groups errors by the outcome a caller should observe.
type Category string

const (
	CategoryValidation Category = "validation"
	CategoryAuth       Category = "authentication"
	CategoryAuthz      Category = "authorization"
	CategoryNotFound   Category = "not_found"
	CategoryDependency Category = "dependency"
	CategoryInternal   Category = "internal"
)

// Error is the typed failure returned by every operation in this package.
// Two errors are considered equal by errors.Is when their TextCode matches,
// so a wrapped clone still matches the sentinel it was derived from.
type Error struct {
	Category Category
	TextCode string
	Message  string
	Fields   map[string]string
	Source   error
}

func newError(category Category, code, message string) *Error {
	return &Error{Category: category, TextCode: code, Message: message}
}

func (e *Error) Error() string {
	if e.Source == nil {
		return e.Message
	}
	return e.Message + ": " + e.Source.Error()
}

// Unwrap exposes the underlying cause.
func (e *Error) Unwrap() error {
	return e.Source
}

// Is matches any *Error carrying the same text code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || t == nil {
		return false
	}
	return e.TextCode == t.TextCode
}

// Clone returns a shallow copy safe to decorate.
func (e *Error) Clone() *Error {
	if e == nil {
		return nil
	}
	clone := *e
	if e.Fields != nil {
		clone.Fields = make(map[string]string, len(e.Fields))
		for k, v := range e.Fields {
			clone.Fields[k] = v
		}
	}
	return &clone
}

// Wrap returns a copy of e with source attached as the cause.
func (e *Error) Wrap(source error) *Error {
	clone := e.Clone()
	clone.Source = source
	return clone
}

// WithFields returns a copy of e carrying per-field messages.
func (e *Error) WithFields(fields map[string]string) *Error {
	clone := e.Clone()
	if clone.Fields == nil {
		clone.Fields = make(map[string]string, len(fields))
	}
	for k, v := range fields {
		clone.Fields[k] = v
	}
	return clone
}

// WithMessage returns a copy of e with a more specific message.
func (e *Error) WithMessage(message string) *Error {
	clone := e.Clone()
	clone.Message = message
	return clone
}

var (
	// ErrValidation is the generic bad input error
	ErrValidation = newError(CategoryValidation, "VALIDATION_FAILED", "invalid input")
	// ErrEmptyPassword is returned when hashing an empty password
	ErrEmptyPassword = newError(CategoryValidation, "EMPTY_PASSWORD", "password cannot be empty")
	// ErrPasswordTooLong is returned for passwords bcrypt would truncate
	ErrPasswordTooLong = newError(CategoryValidation, "PASSWORD_TOO_LONG", "password must be at most 72 bytes")
	// ErrEmailTaken is returned when registering an email twice
	ErrEmailTaken = newError(CategoryValidation, "EMAIL_TAKEN", "email already registered")
	// ErrCurrentPasswordRequired is returned when changing a password without the current one
	ErrCurrentPasswordRequired = newError(CategoryValidation, "CURRENT_PASSWORD_REQUIRED", "current password is required to set a new password")
	// ErrCurrentPasswordMismatch is returned when the current password does not match
	ErrCurrentPasswordMismatch = newError(CategoryValidation, "CURRENT_PASSWORD_MISMATCH", "current password does not match")

	// ErrMissingToken no bearer token on the request
	ErrMissingToken = newError(CategoryAuth, "MISSING_TOKEN", "missing or malformed authorization header")
	// ErrInvalidToken token present but not acceptable
	ErrInvalidToken = newError(CategoryAuth, "INVALID_TOKEN", "invalid or expired token")
	// ErrTokenMalformed token could not be parsed
	ErrTokenMalformed = newError(CategoryAuth, "TOKEN_MALFORMED", "token is malformed")
	// ErrTokenSignatureInvalid token signature did not verify
	ErrTokenSignatureInvalid = newError(CategoryAuth, "TOKEN_SIGNATURE_INVALID", "token signature is invalid")
	// ErrTokenExpired token lifetime elapsed
	ErrTokenExpired = newError(CategoryAuth, "TOKEN_EXPIRED", "token is expired")
	// ErrInvalidCredentials unknown email or wrong password, never distinguished
	ErrInvalidCredentials = newError(CategoryAuth, "INVALID_CREDENTIALS", "invalid email or password")
	// ErrUnauthenticated authorization was attempted without an identity
	ErrUnauthenticated = newError(CategoryAuth, "UNAUTHENTICATED", "authentication required")

	// ErrInsufficientRole identity role not in the allowed set
	ErrInsufficientRole = newError(CategoryAuthz, "INSUFFICIENT_ROLE", "insufficient role")

	// ErrUserNotFound subject does not exist
	ErrUserNotFound = newError(CategoryNotFound, "USER_NOT_FOUND", "user not found")

	// ErrDependency store or lookup unavailable
	ErrDependency = newError(CategoryDependency, "DEPENDENCY_FAILED", "dependency unavailable")

	// ErrCorruptHash stored hash could not be decoded
	ErrCorruptHash = newError(CategoryInternal, "CORRUPT_HASH", "stored password hash is malformed")
	// ErrMissingSigningKey no signing key configured
	ErrMissingSigningKey = newError(CategoryInternal, "MISSING_SIGNING_KEY", "token signing key is required")
	// ErrInternal unexpected failure
	ErrInternal = newError(CategoryInternal, "INTERNAL", "internal error")
)

// AsError returns the first *Error in the chain, or wraps err as ErrInternal.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var richErr *Error
	if errors.As(err, &richErr) {
		return richErr
	}
	return ErrInternal.Wrap(err)
}

// CategoryOf returns the category of err.
func CategoryOf(err error) Category {
	if err == nil {
		return ""
	}
	return AsError(err).Category
}

// HTTPStatus maps an error to the status code a transport should use.
func HTTPStatus(err error) int {
	switch CategoryOf(err) {
	case "":
		return http.StatusOK
	case CategoryValidation:
		return http.StatusBadRequest
	case CategoryAuth:
		return http.StatusUnauthorized
	case CategoryAuthz:
		return http.StatusForbidden
	case CategoryNotFound:
		return http.StatusNotFound
	case CategoryDependency:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// IsTokenExpiredError will check for expired tokens
func IsTokenExpiredError(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrTokenExpired) || strings.Contains(err.Error(), "token is expired")
}

// IsMalformedError will check for malformed tokens
func IsMalformedError(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrTokenMalformed) || strings.Contains(err.Error(), "token is malformed")
}
