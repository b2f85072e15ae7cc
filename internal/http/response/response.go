// Package response writes JSON responses and GraphQL-shaped error bodies for
// requests that end before reaching the GraphQL executor.
package response

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	domainerrors "github.com/librarycatalog/catalog-server/internal/errors"
)

// Body is a GraphQL response carrying only errors.
type Body struct {
	Errors []Entry `json:"errors"`
}

// Entry is one GraphQL error.
type Entry struct {
	Message    string         `json:"message"`
	Extensions map[string]any `json:"extensions,omitempty"`
}

// Code values for failures that have no domain error behind them.
const (
	CodeBadRequest       = "BAD_REQUEST"
	CodeRateLimited      = "RATE_LIMITED"
	CodeMethodNotAllowed = "METHOD_NOT_ALLOWED"
)

// JSON writes v as JSON with the given status code.
func JSON(w http.ResponseWriter, status int, v any, logger *slog.Logger) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil && logger != nil {
		logger.Error("failed to encode JSON response", slog.String("error", err.Error()))
	}
}

// GraphQLError writes a single GraphQL error with extensions.code set to code.
func GraphQLError(w http.ResponseWriter, status int, message, code string, logger *slog.Logger) {
	JSON(w, status, Body{Errors: []Entry{{
		Message:    message,
		Extensions: map[string]any{"code": code},
	}}}, logger)
}

// BadRequest writes a 400 with code BAD_REQUEST.
func BadRequest(w http.ResponseWriter, message string, logger *slog.Logger) {
	GraphQLError(w, http.StatusBadRequest, message, CodeBadRequest, logger)
}

// MethodNotAllowed writes a 405 listing the allowed methods.
func MethodNotAllowed(w http.ResponseWriter, allow string, logger *slog.Logger) {
	w.Header().Set("Allow", allow)
	GraphQLError(w, http.StatusMethodNotAllowed, "method not allowed", CodeMethodNotAllowed, logger)
}

// TooManyRequests writes a 429 with code RATE_LIMITED.
func TooManyRequests(w http.ResponseWriter, message string, logger *slog.Logger) {
	GraphQLError(w, http.StatusTooManyRequests, message, CodeRateLimited, logger)
}

// HandleError writes err as a GraphQL error. Domain errors keep their code,
// status and extensions; anything else is logged and becomes a generic 500.
func HandleError(w http.ResponseWriter, err error, logger *slog.Logger) {
	var de *domainerrors.Error
	if errors.As(err, &de) && de.Code != domainerrors.CodeInternal {
		JSON(w, de.HTTPStatus(), Body{Errors: []Entry{{
			Message:    de.Message,
			Extensions: de.Extensions(),
		}}}, logger)
		return
	}

	if logger != nil {
		logger.Error("unhandled error", slog.String("error", err.Error()))
	}
	GraphQLError(w, http.StatusInternalServerError, "internal server error", string(domainerrors.CodeInternal), logger)
}
