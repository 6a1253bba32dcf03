// AngelaMos | 2026
// errors.go

package core

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrDuplicateKey  = errors.New("duplicate key")
	ErrConflict      = errors.New("conflict")
	ErrInvalidInput  = errors.New("invalid input")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrForbidden     = errors.New("forbidden")
	ErrTokenExpired  = errors.New("token expired")
	ErrTokenInvalid  = errors.New("token invalid")
	ErrTokenRevoked  = errors.New("token revoked")
	ErrInternalError = errors.New("internal error")
)

// AppError is an error that already knows how it should be rendered.
type AppError struct {
	Err        error
	Message    string
	StatusCode int
	Code       string
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NewAppError(err error, message string, status int, code string) *AppError {
	return &AppError{
		Err:        err,
		Message:    message,
		StatusCode: status,
		Code:       code,
	}
}

func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

func UnauthorizedError(message string) *AppError {
	if message == "" {
		message = "authentication required"
	}
	return NewAppError(ErrUnauthorized, message, http.StatusUnauthorized, "UNAUTHORIZED")
}

func ForbiddenError(message string) *AppError {
	if message == "" {
		message = "insufficient permissions"
	}
	return NewAppError(ErrForbidden, message, http.StatusForbidden, "FORBIDDEN")
}

func ValidationError(message string) *AppError {
	return NewAppError(ErrInvalidInput, message, http.StatusBadRequest, "VALIDATION_ERROR")
}

func NotFoundError(resource string) *AppError {
	return NewAppError(
		ErrNotFound,
		resource+" not found",
		http.StatusNotFound,
		"NOT_FOUND",
	)
}

// ConflictError renders as 400 to keep the contract the web client expects.
func ConflictError(message string) *AppError {
	return NewAppError(ErrConflict, message, http.StatusBadRequest, "CONFLICT")
}

func DuplicateError(field string) *AppError {
	return NewAppError(
		ErrDuplicateKey,
		field+" already exists",
		http.StatusBadRequest,
		"CONFLICT",
	)
}

func ServerError() *AppError {
	return NewAppError(
		ErrInternalError,
		"internal server error",
		http.StatusInternalServerError,
		"SERVER_ERROR",
	)
}

func TokenExpiredError() *AppError {
	return NewAppError(ErrTokenExpired, "session expired", http.StatusUnauthorized, "TOKEN_EXPIRED")
}

func TokenInvalidError() *AppError {
	return NewAppError(ErrTokenInvalid, "invalid session", http.StatusUnauthorized, "TOKEN_INVALID")
}

func TokenRevokedError() *AppError {
	return NewAppError(ErrTokenRevoked, "session revoked", http.StatusUnauthorized, "TOKEN_REVOKED")
}

// Classify maps an arbitrary error onto the public error taxonomy.
// The boolean is false when the error is unexpected and must be logged.
func Classify(err error) (*AppError, bool) {
	if appErr, ok := AsAppError(err); ok {
		return appErr, true
	}

	switch {
	case errors.Is(err, ErrNotFound):
		return NotFoundError("resource"), true
	case errors.Is(err, ErrDuplicateKey):
		return DuplicateError("resource"), true
	case errors.Is(err, ErrConflict):
		return ConflictError("request conflicts with current state"), true
	case errors.Is(err, ErrInvalidInput):
		return ValidationError("invalid input"), true
	case errors.Is(err, ErrUnauthorized):
		return UnauthorizedError(""), true
	case errors.Is(err, ErrForbidden):
		return ForbiddenError(""), true
	case errors.Is(err, ErrTokenExpired):
		return TokenExpiredError(), true
	case errors.Is(err, ErrTokenRevoked):
		return TokenRevokedError(), true
	case errors.Is(err, ErrTokenInvalid):
		return TokenInvalidError(), true
	}

	return ServerError(), false
}
