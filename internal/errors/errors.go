// Package errors writes the JSON error envelope returned by the read-only API.
package errors

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/stwalsh4118/kakaku/internal/logger"
	"github.com/stwalsh4118/kakaku/internal/middleware"
)

// Error codes
const (
	ErrNotFound           = "NOT_FOUND"
	ErrBadRequest         = "BAD_REQUEST"
	ErrInternalServer     = "INTERNAL_SERVER_ERROR"
	ErrValidation         = "VALIDATION_ERROR"
	ErrServiceUnavailable = "SERVICE_UNAVAILABLE"
)

// ErrorResponse is the top-level error response structure.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains the error information.
type ErrorDetail struct {
	Details   map[string]interface{} `json:"details,omitempty"`
	Code      string                 `json:"code"`
	Message   string                 `json:"message"`
	RequestID string                 `json:"request_id,omitempty"`
}

// requestFields is the log context shared by every error response.
func requestFields(c *gin.Context, requestID string) logger.Fields {
	return logger.Fields{
		"request_id": requestID,
		"method":     c.Request.Method,
		"path":       c.Request.URL.Path,
	}
}

func abort(c *gin.Context, status int, detail ErrorDetail) {
	c.AbortWithStatusJSON(status, ErrorResponse{Error: detail})
}

// NotFound writes a 404 response.
func NotFound(c *gin.Context, message string) {
	requestID := middleware.GetRequestID(c)
	if log := middleware.GetLogger(c); log != nil {
		fields := requestFields(c, requestID)
		fields["message"] = message
		log.Warn("Resource not found", fields)
	}

	abort(c, http.StatusNotFound, ErrorDetail{
		Code:      ErrNotFound,
		Message:   message,
		RequestID: requestID,
	})
}

// BadRequest writes a 400 response with optional details.
func BadRequest(c *gin.Context, message string, details map[string]interface{}) {
	requestID := middleware.GetRequestID(c)
	if log := middleware.GetLogger(c); log != nil {
		fields := requestFields(c, requestID)
		fields["message"] = message
		if details != nil {
			fields["details"] = details
		}
		log.Warn("Bad request", fields)
	}

	abort(c, http.StatusBadRequest, ErrorDetail{
		Code:      ErrBadRequest,
		Message:   message,
		Details:   details,
		RequestID: requestID,
	})
}

// InternalServerError writes a 500 response. err is logged but never sent
// to the client.
func InternalServerError(c *gin.Context, message string, err error) {
	requestID := middleware.GetRequestID(c)
	if log := middleware.GetLogger(c); log != nil {
		fields := requestFields(c, requestID)
		fields["message"] = message
		log.Error("Internal server error", err, fields)
	}

	abort(c, http.StatusInternalServerError, ErrorDetail{
		Code:      ErrInternalServer,
		Message:   message,
		RequestID: requestID,
	})
}

// ServiceUnavailable writes a 503 response.
func ServiceUnavailable(c *gin.Context, message string, err error) {
	requestID := middleware.GetRequestID(c)
	if log := middleware.GetLogger(c); log != nil {
		fields := requestFields(c, requestID)
		fields["message"] = message
		log.Error("Service unavailable", err, fields)
	}

	abort(c, http.StatusServiceUnavailable, ErrorDetail{
		Code:      ErrServiceUnavailable,
		Message:   message,
		RequestID: requestID,
	})
}

// ValidationError writes a 400 response listing every invalid query field.
func ValidationError(c *gin.Context, validationErrors validator.ValidationErrors) {
	requestID := middleware.GetRequestID(c)

	details := make(map[string]interface{}, len(validationErrors))
	for _, fe := range validationErrors {
		details[fe.Field()] = formatValidationError(fe)
	}

	if log := middleware.GetLogger(c); log != nil {
		fields := requestFields(c, requestID)
		fields["fields"] = details
		log.Warn("Validation error", fields)
	}

	abort(c, http.StatusBadRequest, ErrorDetail{
		Code:      ErrValidation,
		Message:   "Validation failed for one or more fields",
		Details:   details,
		RequestID: requestID,
	})
}

func formatValidationError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required"
	case "min", "gte":
		return "Must be at least " + fe.Param()
	case "max", "lte":
		return "Must be at most " + fe.Param()
	case "oneof":
		return "Must be one of: " + fe.Param()
	case "numeric":
		return "Must be a number"
	case "startswith":
		return "Must start with " + fe.Param()
	default:
		return "Validation failed for tag: " + fe.Tag()
	}
}
