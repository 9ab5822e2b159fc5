package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError provides a structured error that can be rendered to API consumers.
type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"`
	Internal   error  `json:"-"`
}

func (e *AppError) Error() string {
	if e == nil {
		return "<nil>"
	}

	if e.Internal != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Internal)
	}

	return e.Message
}

// Unwrap exposes the internal error for errors.Is / errors.As compatibility.
func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Internal
}

// Is reports whether target carries the same error kind. Two AppErrors match when their
// codes are equal, so errors.Is(err, ErrAuth) holds for every AuthError regardless of message.
func (e *AppError) Is(target error) bool {
	var other *AppError
	if !errors.As(target, &other) || e == nil || other == nil {
		return false
	}
	return e.Code == other.Code
}

// WithInternal returns a copy of the AppError with an attached internal error.
func (e *AppError) WithInternal(err error) *AppError {
	if e == nil {
		return nil
	}

	cpy := *e
	cpy.Internal = err
	return &cpy
}

// WithMessage returns a copy of the AppError carrying a different client-facing message.
func (e *AppError) WithMessage(message string) *AppError {
	if e == nil {
		return nil
	}

	cpy := *e
	cpy.Message = message
	return &cpy
}

// Error kinds. Code is stable and safe for clients to branch on.
const (
	CodeValidation = "VALIDATION_ERROR"
	CodeAuth       = "AUTH_ERROR"
	CodeNotFound   = "NOT_FOUND"
	CodeToken      = "TOKEN_ERROR"
	CodeExpired    = "EXPIRED_ERROR"
	CodeMismatch   = "MISMATCH_ERROR"
	CodeDelivery   = "DELIVERY_ERROR"
	CodeLookup     = "LOOKUP_ERROR"
	CodeStore      = "STORE_ERROR"
)

// Common errors exposed to the rest of the application.
var (
	ErrUnauthorized = &AppError{
		Code:       "UNAUTHORIZED",
		Message:    "Not authorized to access this route",
		StatusCode: http.StatusUnauthorized,
	}

	ErrValidation = &AppError{
		Code:       CodeValidation,
		Message:    "Invalid request",
		StatusCode: http.StatusBadRequest,
	}

	// ErrInvalidCredentials is shared by unknown-email and wrong-password logins.
	ErrInvalidCredentials = &AppError{
		Code:       CodeAuth,
		Message:    "Invalid credentials",
		StatusCode: http.StatusUnauthorized,
	}

	ErrPasswordIncorrect = &AppError{
		Code:       CodeAuth,
		Message:    "Password is incorrect",
		StatusCode: http.StatusUnauthorized,
	}

	ErrNotFound = &AppError{
		Code:       CodeNotFound,
		Message:    "Resource not found",
		StatusCode: http.StatusNotFound,
	}

	ErrUserNotFound = &AppError{
		Code:       CodeNotFound,
		Message:    "There is no user with that email",
		StatusCode: http.StatusNotFound,
	}

	ErrInvalidToken = &AppError{
		Code:       CodeToken,
		Message:    "Invalid token",
		StatusCode: http.StatusBadRequest,
	}

	ErrCodeExpired = &AppError{
		Code:       CodeExpired,
		Message:    "Bvn token expired",
		StatusCode: http.StatusBadRequest,
	}

	ErrCodeMismatch = &AppError{
		Code:       CodeMismatch,
		Message:    "invalid Token",
		StatusCode: http.StatusUnauthorized,
	}

	ErrDelivery = &AppError{
		Code:       CodeDelivery,
		Message:    "Email could not be sent",
		StatusCode: http.StatusInternalServerError,
	}

	ErrInvalidBVN = &AppError{
		Code:       CodeLookup,
		Message:    "Enter a valid BVN Number",
		StatusCode: http.StatusBadRequest,
	}

	ErrLookupUnavailable = &AppError{
		Code:       CodeLookup,
		Message:    "Identity lookup is unavailable",
		StatusCode: http.StatusBadGateway,
	}

	ErrStore = &AppError{
		Code:       CodeStore,
		Message:    "Storage is unavailable",
		StatusCode: http.StatusServiceUnavailable,
	}

	ErrInternalServer = &AppError{
		Code:       "INTERNAL_SERVER_ERROR",
		Message:    "Internal server error",
		StatusCode: http.StatusInternalServerError,
	}
)

// FromError converts a generic error into an AppError, defaulting to ErrInternalServer.
func FromError(err error) *AppError {
	if err == nil {
		return nil
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	return ErrInternalServer.WithInternal(err)
}

// NewValidation wraps validation errors with a helpful message.
func NewValidation(message string) *AppError {
	return ErrValidation.WithMessage(message)
}

// KindOf returns the stable code of err, or an empty string when err is not an AppError.
func KindOf(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr != nil {
		return appErr.Code
	}
	return ""
}
