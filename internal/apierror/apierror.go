// Package apierror provides standardized error response structures for the API.
// All errors returned to clients go through this package to ensure consistency
// and to prevent leaking internal details (stack traces, DB errors, etc.).
package apierror

import (
	"net/http"

	"almacenpos/internal/apperr"

	"github.com/rs/zerolog/log"
)

// APIError is the canonical error envelope for all 4xx/5xx HTTP responses.
// Kind and Context are set for domain errors so the terminal can show the
// numeric detail (e.g. requested credit vs. remaining limit).
type APIError struct {
	Detail  string         `json:"detail"`
	Kind    string         `json:"kind,omitempty"`
	Context map[string]any `json:"context,omitempty"`
}

func New(msg string) *APIError {
	return &APIError{Detail: msg}
}

// Validation wraps multiple field errors.
type ValidationError struct {
	Detail string            `json:"detail"`
	Fields map[string]string `json:"fields"`
}

func NewValidation(fields map[string]string) *ValidationError {
	return &ValidationError{Detail: "Error de validacion", Fields: fields}
}

var statusByKind = map[apperr.Kind]int{
	apperr.KindInvalidRequest:    http.StatusBadRequest,
	apperr.KindNotFound:          http.StatusNotFound,
	apperr.KindInvalidMovement:   http.StatusUnprocessableEntity,
	apperr.KindInvalidCount:      http.StatusUnprocessableEntity,
	apperr.KindCreditDenied:      http.StatusConflict,
	apperr.KindInsufficientStock: http.StatusConflict,
	apperr.KindShiftClosed:       http.StatusConflict,
	apperr.KindAlreadyClosed:     http.StatusConflict,
	apperr.KindDuplicate:         http.StatusConflict,
	apperr.KindResourceConflict:  http.StatusServiceUnavailable,
}

// FromError maps a service error to an HTTP status and envelope.
// Unclassified errors become a generic 500 and are logged, never echoed.
func FromError(err error) (int, *APIError) {
	e, ok := apperr.As(err)
	if !ok {
		log.Error().Err(err).Msg("apierror: unclassified error")
		return http.StatusInternalServerError, New("Error interno del servidor")
	}
	status, known := statusByKind[e.Kind]
	if !known {
		status = http.StatusInternalServerError
	}
	return status, &APIError{Detail: e.Msg, Kind: string(e.Kind), Context: e.Context}
}
