package domain

import (
	"errors"
	"fmt"
)

// Code classifies an application error for transport mapping.
type Code string

const (
	CodeValidation   Code = "VALIDATION"
	CodeNotFound     Code = "NOT_FOUND"
	CodeForbidden    Code = "FORBIDDEN"
	CodeUnauthorized Code = "UNAUTHORIZED"
	CodeConflict     Code = "CONFLICT"
	CodeInvariant    Code = "INVARIANT"
	CodeInternal     Code = "INTERNAL"
)

// FieldError is a single violated input rule.
type FieldError struct {
	Field   string `json:"field"`
	Rule    string `json:"rule"`
	Message string `json:"message"`
}

// AppError is the error type returned across service boundaries.
type AppError struct {
	Code    Code         `json:"code"`
	Message string       `json:"message"`
	Fields  []FieldError `json:"fields,omitempty"`
	Cause   error        `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error { return e.Cause }

// Is matches any AppError carrying the same code, so sentinels below work with errors.Is.
func (e *AppError) Is(target error) bool {
	var t *AppError
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// Sentinel errors for the application.
var (
	ErrValidation   = &AppError{Code: CodeValidation, Message: "validation failed"}
	ErrNotFound     = &AppError{Code: CodeNotFound, Message: "resource not found"}
	ErrForbidden    = &AppError{Code: CodeForbidden, Message: "forbidden"}
	ErrUnauthorized = &AppError{Code: CodeUnauthorized, Message: "unauthorized access"}
	ErrConflict     = &AppError{Code: CodeConflict, Message: "concurrent modification, retry"}
	ErrInvariant    = &AppError{Code: CodeInvariant, Message: "invariant violated"}
	ErrInternal     = &AppError{Code: CodeInternal, Message: "internal server error"}
)

func Validation(fields ...FieldError) error {
	return &AppError{Code: CodeValidation, Message: "validation failed", Fields: fields}
}

func NotFound(msg string) error {
	return &AppError{Code: CodeNotFound, Message: msg}
}

func Forbidden(msg string) error {
	return &AppError{Code: CodeForbidden, Message: msg}
}

func Conflict(msg string) error {
	return &AppError{Code: CodeConflict, Message: msg}
}

func Invariant(msg string) error {
	return &AppError{Code: CodeInvariant, Message: msg}
}

// CodeOf reports the code of err, or CodeInternal for foreign errors.
func CodeOf(err error) Code {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeInternal
}
