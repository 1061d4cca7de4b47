// Package response writes the JSON error bodies of the API:
// {code, message} for client errors and {code, message, error} for server
// errors, where error only carries the request id to look up in the logs.
package response

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"blog/internal/lib/sl"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

const (
	CodeValidation      = "VALIDATION_ERROR"
	CodeUnauthorized    = "UNAUTHORIZED"
	CodeTokenExpired    = "TOKEN_EXPIRED"
	CodeForbidden       = "FORBIDDEN"
	CodeNotFound        = "NOT_FOUND"
	CodeTooManyRequests = "TOO_MANY_REQUESTS"
	CodeInternal        = "INTERNAL_ERROR"
)

// RequestIDKey is the gin context key of the request id.
const RequestIDKey = "request_id"

type Body struct {
	Code    string     `json:"code"`
	Message string     `json:"message"`
	Error   *ErrorBody `json:"error,omitempty"`
}

type ErrorBody struct {
	RequestID string `json:"requestId"`
}

// Error is a client error with its HTTP status.
type Error struct {
	Status  int
	Code    string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%d %s: %s", e.Status, e.Code, e.Message)
}

func Validation(message string) *Error {
	return &Error{Status: http.StatusBadRequest, Code: CodeValidation, Message: message}
}

func Unauthorized(message string) *Error {
	return &Error{Status: http.StatusUnauthorized, Code: CodeUnauthorized, Message: message}
}

func TokenExpired(message string) *Error {
	return &Error{Status: http.StatusUnauthorized, Code: CodeTokenExpired, Message: message}
}

func Forbidden(message string) *Error {
	return &Error{Status: http.StatusForbidden, Code: CodeForbidden, Message: message}
}

func NotFound(message string) *Error {
	return &Error{Status: http.StatusNotFound, Code: CodeNotFound, Message: message}
}

func TooManyRequests(message string) *Error {
	return &Error{Status: http.StatusTooManyRequests, Code: CodeTooManyRequests, Message: message}
}

// Abort ends the request with e.
func Abort(c *gin.Context, e *Error) {
	c.AbortWithStatusJSON(e.Status, Body{Code: e.Code, Message: e.Message})
}

// Internal logs err with the request id and ends the request with a generic
// 500. Nothing from err reaches the client.
func Internal(c *gin.Context, logger *slog.Logger, err error) {
	requestID := c.GetString(RequestIDKey)

	logger.Error("internal error",
		slog.String("request_id", requestID),
		slog.String("method", c.Request.Method),
		slog.String("path", c.Request.URL.Path),
		sl.Err(err),
	)

	c.AbortWithStatusJSON(http.StatusInternalServerError, Body{
		Code:    CodeInternal,
		Message: "Internal server error",
		Error:   &ErrorBody{RequestID: requestID},
	})
}

// Handle writes err: client errors as they are, anything else as a 500.
func Handle(c *gin.Context, logger *slog.Logger, err error) {
	var e *Error
	if errors.As(err, &e) {
		Abort(c, e)
		return
	}
	Internal(c, logger, err)
}

// Bind turns a binding failure into a validation error with a readable
// message.
func Bind(c *gin.Context, err error) {
	Abort(c, Validation(BindMessage(err)))
}

func BindMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return "Malformed request"
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fieldMessage(fe))
	}
	return strings.Join(msgs, "; ")
}

func fieldMessage(fe validator.FieldError) string {
	field := lowerFirst(fe.Field())

	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "email":
		return field + " must be a valid email"
	case "url":
		return field + " must be a valid URL"
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, fe.Param())
	default:
		return field + " is invalid"
	}
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}
