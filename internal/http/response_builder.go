// Package http provides the JSON API server and its handlers.
//
// This file implements the Builder Pattern for constructing JSON responses.
// It keeps status codes, headers and error bodies consistent across handlers.

package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"paisable/internal/core"
	applog "paisable/internal/log"
)

// JSONResponseBuilder provides a fluent API for building JSON responses.
type JSONResponseBuilder struct {
	statusCode int
	body       any
	headers    map[string]string
}

// NewJSONResponse creates a new response builder with default 200 status.
func NewJSONResponse() *JSONResponseBuilder {
	return &JSONResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

// Status sets the HTTP status code for the response.
func (b *JSONResponseBuilder) Status(code int) *JSONResponseBuilder {
	b.statusCode = code
	return b
}

// Header adds a custom header to the response.
func (b *JSONResponseBuilder) Header(name, value string) *JSONResponseBuilder {
	b.headers[name] = value
	return b
}

// Body sets the value encoded as the response body.
func (b *JSONResponseBuilder) Body(v any) *JSONResponseBuilder {
	b.body = v
	return b
}

// Message sets a {"message": ...} body.
func (b *JSONResponseBuilder) Message(msg string) *JSONResponseBuilder {
	return b.Body(messageBody{Message: msg})
}

// Write sends the built response to the http.ResponseWriter.
func (b *JSONResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(b.statusCode)
	if b.body == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(b.body); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

type messageBody struct {
	Message string `json:"message"`
}

// ErrorResponse creates a standard {"message": ...} error response.
func ErrorResponse(statusCode int, message string) *JSONResponseBuilder {
	return NewJSONResponse().Status(statusCode).Message(message)
}

// BadRequestError creates a 400 Bad Request error response.
func BadRequestError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusBadRequest, message)
}

// NotFoundError creates a 404 Not Found error response.
func NotFoundError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusNotFound, message)
}

// InternalServerError creates a 500 Internal Server Error response.
func InternalServerError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusInternalServerError, message)
}

// statusFor maps a service error onto its HTTP status and client message.
// Store and unknown errors never leak their text.
func statusFor(err error) (int, string) {
	var (
		ve *core.ValidationError
		ue *core.UpstreamError
	)
	switch {
	case errors.As(err, &ve):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, core.ErrUnauthorized):
		return http.StatusUnauthorized, "Invalid credentials"
	case errors.Is(err, core.ErrForbidden):
		return http.StatusForbidden, "User not authorized"
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound, "Not found"
	case errors.Is(err, core.ErrConflict):
		return http.StatusConflict, "Already exists"
	case errors.As(err, &ue):
		return http.StatusBadGateway, "Receipt processing failed"
	default:
		return http.StatusInternalServerError, "Server Error"
	}
}

// writeServiceError logs err at a level matching its class and writes the
// mapped response.
func writeServiceError(w http.ResponseWriter, r *http.Request, op string, err error) {
	status, msg := statusFor(err)
	logger := applog.FromContext(r.Context())
	if status >= http.StatusInternalServerError {
		logger.ErrorContext(r.Context(), "Request failed", "operation", op, "status", status, "error", err)
	} else {
		logger.WarnContext(r.Context(), "Request rejected", "operation", op, "status", status, "error", err)
	}
	ErrorResponse(status, msg).Write(w)
}
