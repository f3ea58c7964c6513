package httpserver

import (
	"errors"
	"log/slog"
	"net/http"

	"estatehub/internal/domain"
	"estatehub/internal/obs"
)

type errorBody struct {
	Code    domain.Code         `json:"code"`
	Message string              `json:"message"`
	Fields  []domain.FieldError `json:"fields,omitempty"`
}

func statusFor(code domain.Code) int {
	switch code {
	case domain.CodeValidation:
		return http.StatusBadRequest
	case domain.CodeNotFound:
		return http.StatusNotFound
	case domain.CodeForbidden:
		return http.StatusForbidden
	case domain.CodeUnauthorized:
		return http.StatusUnauthorized
	case domain.CodeConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

type errorWriter struct {
	log *slog.Logger
}

// write maps err onto the JSON error envelope. Internal details never reach the client.
func (e errorWriter) write(w http.ResponseWriter, r *http.Request, err error) {
	var appErr *domain.AppError
	if !errors.As(err, &appErr) {
		appErr = &domain.AppError{Code: domain.CodeInternal, Message: domain.ErrInternal.Message, Cause: err}
	}
	status := statusFor(appErr.Code)
	body := errorBody{Code: appErr.Code, Message: appErr.Message, Fields: appErr.Fields}
	if status >= http.StatusInternalServerError {
		e.log.ErrorContext(r.Context(), "request failed",
			"code", appErr.Code,
			"err", err,
			"request_id", obs.RequestIDFromContext(r.Context()),
		)
		body = errorBody{Code: appErr.Code, Message: domain.ErrInternal.Message}
	}
	writeJSON(w, status, map[string]any{"error": body})
}

func (e errorWriter) badRequest(w http.ResponseWriter, r *http.Request, field, msg string) {
	e.write(w, r, domain.Validation(domain.FieldError{Field: field, Rule: "format", Message: msg}))
}
