package common

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

// RequestIDKey is the gin context key holding the request ID.
const RequestIDKey = "requestID"

// APIResponse is the JSON envelope of every API response.
type APIResponse struct {
	Success   bool      `json:"success"`
	RequestID string    `json:"request_id,omitempty"`
	Data      any       `json:"data,omitempty"`
	Error     *APIError `json:"error,omitempty"`
}

// APIError describes a failed request.
type APIError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func write(c *gin.Context, statusCode int, data any, apiErr *APIError) {
	c.JSON(statusCode, APIResponse{
		Success:   apiErr == nil,
		RequestID: c.GetString(RequestIDKey),
		Data:      data,
		Error:     apiErr,
	})
}

// Success writes data with statusCode.
func Success(c *gin.Context, statusCode int, data any) {
	write(c, statusCode, data, nil)
}

// Error writes an error envelope without data.
func Error(c *gin.Context, statusCode int, message string) {
	Failure(c, statusCode, message, nil)
}

// Failure writes an error envelope that still carries data, such as the
// outcomes of a send no transport delivered.
func Failure(c *gin.Context, statusCode int, message string, data any) {
	write(c, statusCode, data, &APIError{Code: statusCode, Message: message})
}

// StatusOf maps an error chain to its HTTP status and client-facing message.
// Provider and unknown errors get a fixed message so upstream details stay in the logs.
func StatusOf(err error) (int, string) {
	var (
		notFound     *NotFoundError
		validation   *ValidationError
		unauthorized *UnauthorizedError
		provider     *ProviderError
	)
	switch {
	case errors.As(err, &notFound):
		return http.StatusNotFound, notFound.Error()
	case errors.As(err, &validation):
		return http.StatusBadRequest, validation.Error()
	case errors.As(err, &unauthorized):
		return http.StatusUnauthorized, unauthorized.Error()
	case errors.As(err, &provider):
		return http.StatusBadGateway, "notification delivery failed"
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

// HandleError writes the envelope for err.
func HandleError(c *gin.Context, err error) {
	status, message := StatusOf(err)
	Error(c, status, message)
}
