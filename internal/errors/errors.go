package errors

import (
	"errors"
	"net/http"
)

// Kind classifies an authentication failure. Each kind maps to exactly one HTTP status.
type Kind string

const (
	KindValidation         Kind = "VALIDATION_ERROR"
	KindConflict           Kind = "ACCOUNT_EXISTS"
	KindForbidden          Kind = "ACCOUNT_NOT_VERIFIED"
	KindInvalidCredentials Kind = "INVALID_CREDENTIALS"
	KindInvalidToken       Kind = "INVALID_TOKEN"
	KindNotFound           Kind = "NOT_FOUND"
)

// AuthError is a typed, terminal failure of an authentication operation.
// Message is safe to show to clients.
type AuthError struct {
	Kind    Kind
	Message string
}

func (e *AuthError) Error() string {
	return e.Message
}

// Is matches any AuthError of the same kind, so callers can test against the sentinels below.
func (e *AuthError) Is(target error) bool {
	var t *AuthError
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// New builds an AuthError of the given kind.
func New(kind Kind, message string) *AuthError {
	return &AuthError{Kind: kind, Message: message}
}

var (
	// ErrValidation matches malformed or mismatched input.
	ErrValidation = New(KindValidation, "validation failed")
	// ErrConflict matches a registration against an already verified account.
	ErrConflict = New(KindConflict, "account already exists")
	// ErrForbidden matches an operation on an account that is still pending verification.
	ErrForbidden = New(KindForbidden, "account not verified yet")
	// ErrInvalidCredentials is the single login failure, whatever part of the credentials was wrong.
	ErrInvalidCredentials = New(KindInvalidCredentials, "incorrect email or password")
	// ErrInvalidToken is the single token failure, whatever check rejected the token.
	ErrInvalidToken = New(KindInvalidToken, "could not validate credentials")
	// ErrNotFound matches a user record that vanished between read and write, or before a refresh.
	ErrNotFound = New(KindNotFound, "user not found")
)

// Validation messages surfaced by the auth flows.
var (
	ErrPasswordMismatch = New(KindValidation, "passwords do not match")
	ErrIncorrectEmail   = New(KindValidation, "incorrect email")
	ErrIncorrectCode    = New(KindValidation, "incorrect code")
)

// ErrorResponse represents a standardized error response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// HTTPError represents an HTTP error with status code.
type HTTPError struct {
	StatusCode int
	Message    string
	Code       string
}

func (e *HTTPError) Error() string {
	return e.Message
}

// NewHTTPError creates a new HTTP error.
func NewHTTPError(statusCode int, message, code string) *HTTPError {
	return &HTTPError{
		StatusCode: statusCode,
		Message:    message,
		Code:       code,
	}
}

// ToErrorResponse converts an HTTPError to ErrorResponse.
func (e *HTTPError) ToErrorResponse() ErrorResponse {
	return ErrorResponse{
		Error: e.Message,
		Code:  e.Code,
	}
}

// StatusFor returns the HTTP status code for an error kind.
func StatusFor(kind Kind) int {
	switch kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindConflict:
		return http.StatusConflict
	case KindForbidden:
		return http.StatusForbidden
	case KindInvalidCredentials:
		// Login failures have always been reported as a bad request.
		return http.StatusBadRequest
	case KindInvalidToken:
		return http.StatusUnauthorized
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// MapErrorToHTTP maps domain errors to HTTP errors. Unknown errors never leak their text.
func MapErrorToHTTP(err error) *HTTPError {
	var authErr *AuthError
	if errors.As(err, &authErr) {
		return NewHTTPError(StatusFor(authErr.Kind), authErr.Message, string(authErr.Kind))
	}
	return NewHTTPError(http.StatusInternalServerError, "internal server error", "INTERNAL_ERROR")
}
