package api

import (
	"errors"
	"log/slog"
	"net/http"
)

// Machine-readable codes for client errors that are not access denials.
const (
	CodeValidation        = "VALIDATION_FAILED"
	CodeMalformedBody     = "MALFORMED_BODY"
	CodeRetentionDisabled = "AUTO_DELETE_NOT_ENABLED"
)

// AppError is an error with a known HTTP status and a message that is safe
// to show to clients.
type AppError struct {
	Status  int    `json:"-"`
	Message string `json:"error"`
	Code    string `json:"code,omitempty"`
}

func (e *AppError) Error() string {
	return e.Message
}

var (
	ErrUnauthorized   = &AppError{Status: http.StatusUnauthorized, Message: "unauthorized"}
	ErrInvalidToken   = &AppError{Status: http.StatusUnauthorized, Message: "invalid or expired token"}
	ErrNotFound       = &AppError{Status: http.StatusNotFound, Message: "not found"}
	ErrInternalServer = &AppError{Status: http.StatusInternalServerError, Message: "internal server error"}
)

func NewNotFoundError(msg string) *AppError {
	return &AppError{Status: http.StatusNotFound, Message: msg}
}

func NewValidationError(msg string) *AppError {
	return NewCodedError(http.StatusBadRequest, CodeValidation, msg)
}

// NewCodedError builds an error carrying a machine-readable code.
func NewCodedError(status int, code, msg string) *AppError {
	return &AppError{Status: status, Message: msg, Code: code}
}

// HandleError writes err as a JSON error body. Errors that are not an
// *AppError are logged and reported as a bare 500.
func HandleError(w http.ResponseWriter, err error) {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		slog.Error("api: unhandled error", "error", err)
		appErr = ErrInternalServer
	}
	writeJSON(w, appErr.Status, Response{Error: appErr.Message, Code: appErr.Code})
}
