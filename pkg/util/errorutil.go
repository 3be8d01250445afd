package util

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5"
)

// Flash levels used for user-facing messages.
const (
	FlashSuccess = "success"
	FlashInfo    = "info"
	FlashWarning = "warning"
	FlashDanger  = "danger"
)

// DomainError standardizes application errors.
//
// A non-empty Redirect marks a soft failure: the HTTP layer queues Message as a
// flash of level FlashLevel and answers with a redirect instead of an error body.
type DomainError struct {
	Code       string
	Message    string
	HTTPStatus int
	Details    map[string]any
	Redirect   string
	FlashLevel string
	Err        error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// IsSoft reports whether the error should be rendered as flash + redirect.
func (e *DomainError) IsSoft() bool {
	return e != nil && e.Redirect != ""
}

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, status int, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Details: details}
}

func NewValidationError(message string, details map[string]any) error {
	return NewDomainError("VALIDATION_FAILED", message, http.StatusBadRequest, details)
}

// NewFieldError is a validation error carrying a single field message.
func NewFieldError(field, message string) error {
	return NewValidationError("validation failed", map[string]any{field: message})
}

func NewNotFound(resource string, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	return &DomainError{
		Code:       "NOT_FOUND",
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
		Details:    details,
	}
}

func NewUnauthorized(message string) error {
	return NewDomainError("UNAUTHORIZED", message, http.StatusUnauthorized, nil)
}

// NewLoginRequired sends anonymous callers to the login page.
func NewLoginRequired() error {
	return &DomainError{
		Code:       "LOGIN_REQUIRED",
		Message:    "please log in to access this page",
		HTTPStatus: http.StatusSeeOther,
		Redirect:   "/login",
		FlashLevel: FlashInfo,
	}
}

// NewDenied is a soft authorization denial: warning flash and redirect to the index.
func NewDenied(message string) error {
	return &DomainError{
		Code:       "DENIED",
		Message:    message,
		HTTPStatus: http.StatusSeeOther,
		Redirect:   "/index",
		FlashLevel: FlashWarning,
	}
}

func NewConflict(message string, details map[string]any) error {
	return NewDomainError("CONFLICT", message, http.StatusConflict, details)
}

// NewConflictRedirect reports a rolled back uniqueness conflict as a danger flash.
func NewConflictRedirect(message, redirect string) error {
	return &DomainError{
		Code:       "CONFLICT",
		Message:    message,
		HTTPStatus: http.StatusSeeOther,
		Redirect:   redirect,
		FlashLevel: FlashDanger,
	}
}

// NewRedirectError is a soft failure answered with a flash and a redirect.
func NewRedirectError(code, message, redirect, level string) error {
	return &DomainError{
		Code:       code,
		Message:    message,
		HTTPStatus: http.StatusSeeOther,
		Redirect:   redirect,
		FlashLevel: level,
	}
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       "INTERNAL_ERROR",
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// ToDomainError converts generic errors to DomainError.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	if errors.Is(err, sql.ErrNoRows) || errors.Is(err, pgx.ErrNoRows) {
		if de, ok := NewNotFound("resource", nil).(*DomainError); ok {
			return de
		}
	}
	if de, ok := NewInternalError(err).(*DomainError); ok {
		return de
	}
	return &DomainError{
		Code:       "INTERNAL_ERROR",
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

func MapError(err error) error {
	return ToDomainError(err)
}
