package models

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/GoSTEAN/velo-sub001/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ErrorCode represents standardized error codes
type ErrorCode string

const (
	// Authentication errors
	ErrorCodeMissingToken ErrorCode = "MISSING_TOKEN"
	ErrorCodeInvalidToken ErrorCode = "INVALID_TOKEN"

	// Rate limiting errors
	ErrorCodeRateLimitExceeded ErrorCode = "RATE_LIMIT_EXCEEDED"

	// Validation errors
	ErrorCodeMissingField   ErrorCode = "MISSING_FIELD"
	ErrorCodeInvalidAmount  ErrorCode = "INVALID_AMOUNT"
	ErrorCodeInvalidAddress ErrorCode = "INVALID_ADDRESS"
	ErrorCodeMalformedJSON  ErrorCode = "MALFORMED_JSON"

	// Lookup errors
	ErrorCodeNotFound ErrorCode = "NOT_FOUND"

	// Chain errors
	ErrorCodeChainUnavailable ErrorCode = "CHAIN_UNAVAILABLE"

	// Internal errors
	ErrorCodeStoreDisabled ErrorCode = "STORE_DISABLED"
	ErrorCodeDatabaseError ErrorCode = "DATABASE_ERROR"
	ErrorCodeInternalError ErrorCode = "INTERNAL_ERROR"
)

// HTTPStatusCode returns the appropriate HTTP status code for each error type
func (e ErrorCode) HTTPStatusCode() int {
	switch e {
	case ErrorCodeMissingToken, ErrorCodeInvalidToken:
		return http.StatusUnauthorized
	case ErrorCodeRateLimitExceeded:
		return http.StatusTooManyRequests
	case ErrorCodeMissingField, ErrorCodeInvalidAmount, ErrorCodeInvalidAddress, ErrorCodeMalformedJSON:
		return http.StatusBadRequest
	case ErrorCodeNotFound:
		return http.StatusNotFound
	case ErrorCodeStoreDisabled:
		return http.StatusServiceUnavailable
	case ErrorCodeChainUnavailable, ErrorCodeDatabaseError, ErrorCodeInternalError:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// ErrorResponse is the body of every non-2xx answer. Error carries the human
// readable message so that clients only reading "error" still get it.
type ErrorResponse struct {
	Error         string    `json:"error"`
	Code          ErrorCode `json:"code"`
	Details       string    `json:"details,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
	CorrelationID string    `json:"correlation_id,omitempty"`
}

// NewErrorResponse creates a new error response with timestamp
func NewErrorResponse(code ErrorCode, message, details, correlationID string) *ErrorResponse {
	return &ErrorResponse{
		Error:         message,
		Code:          code,
		Details:       details,
		Timestamp:     time.Now().UTC(),
		CorrelationID: correlationID,
	}
}

// AppError represents an application error with context
type AppError struct {
	Code       ErrorCode
	Message    string
	Details    string
	Cause      error
	Context    map[string]interface{}
	StatusCode int
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithContext adds context to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// NewAppError creates a new application error
func NewAppError(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		StatusCode: code.HTTPStatusCode(),
		Context:    make(map[string]interface{}),
	}
}

// NewAppErrorWithCause creates a new application error with underlying cause
func NewAppErrorWithCause(code ErrorCode, message string, cause error) *AppError {
	e := NewAppError(code, message)
	e.Cause = cause
	return e
}

// NewAppErrorWithDetails creates a new application error with details
func NewAppErrorWithDetails(code ErrorCode, message, details string) *AppError {
	e := NewAppError(code, message)
	e.Details = details
	return e
}

// HandleError logs err and answers with its status and an ErrorResponse.
// Errors that are not an *AppError become a 500 without their text leaking.
func HandleError(c *gin.Context, err error, log *logger.Logger) {
	ctx := c.Request.Context()
	correlationID := logger.GetCorrelationIDFromContext(ctx)

	var appErr *AppError
	if !errors.As(err, &appErr) {
		appErr = NewAppErrorWithCause(ErrorCodeInternalError, "Internal server error", err)
	}

	appErr.WithContext("method", c.Request.Method).
		WithContext("path", c.Request.URL.Path)

	if log != nil {
		logFields := []zap.Field{
			zap.String("error_code", string(appErr.Code)),
			zap.String("error_message", appErr.Message),
			zap.Any("error_context", appErr.Context),
		}
		if appErr.Cause != nil {
			logFields = append(logFields, zap.Error(appErr.Cause))
		}

		contextLogger := log.WithContext(ctx)
		if appErr.StatusCode >= 500 {
			contextLogger.Error("Application error", logFields...)
		} else {
			contextLogger.Warn("Client error", logFields...)
		}
	}

	c.AbortWithStatusJSON(appErr.StatusCode, NewErrorResponse(
		appErr.Code,
		appErr.Message,
		appErr.Details,
		correlationID,
	))
}

// Common error constructors for specific scenarios

// NewValidationError creates a 400 error for one request field
func NewValidationError(code ErrorCode, message string) *AppError {
	return NewAppError(code, message)
}

// NewAuthenticationError creates an authentication error
func NewAuthenticationError(code ErrorCode, details string) *AppError {
	return NewAppErrorWithDetails(code, "Unauthorized", details)
}

// NewChainUnavailableError reports that no chain endpoint could be reached.
// The cause stays server side; Details only carries its Summary when it has one.
func NewChainUnavailableError(cause error) *AppError {
	e := NewAppErrorWithCause(ErrorCodeChainUnavailable, "Failed to connect to blockchain", cause)
	e.Details = "chain endpoints unreachable"
	var s interface{ Summary() string }
	if errors.As(cause, &s) {
		e.Details = s.Summary()
	}
	return e
}

// NewDatabaseError creates a database error
func NewDatabaseError(message string, cause error) *AppError {
	return NewAppErrorWithCause(ErrorCodeDatabaseError, message, cause)
}
