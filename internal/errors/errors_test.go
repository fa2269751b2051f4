package errors

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/gin-gonic/gin"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stwalsh4118/kakaku/internal/logger"
	"github.com/stwalsh4118/kakaku/internal/middleware"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// setupTestContext creates a test Gin context with a logger and request ID.
func setupTestContext() (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/api/v1/listings", nil)
	c.Set(middleware.LoggerKey, logger.Nop())
	c.Set(middleware.RequestIDKey, "test-request-id")
	return c, w
}

func parseErrorResponse(t *testing.T, body *bytes.Buffer) ErrorResponse {
	var response ErrorResponse
	err := json.Unmarshal(body.Bytes(), &response)
	require.NoError(t, err, "Failed to parse error response JSON")
	return response
}

func TestNotFound(t *testing.T) {
	c, w := setupTestContext()

	NotFound(c, "Listing not found")

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.True(t, c.IsAborted())

	response := parseErrorResponse(t, w.Body)
	assert.Equal(t, ErrNotFound, response.Error.Code)
	assert.Equal(t, "Listing not found", response.Error.Message)
	assert.Equal(t, "test-request-id", response.Error.RequestID)
	assert.Nil(t, response.Error.Details)
}

func TestBadRequest(t *testing.T) {
	t.Run("without details", func(t *testing.T) {
		c, w := setupTestContext()

		BadRequest(c, "Invalid query parameters", nil)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		response := parseErrorResponse(t, w.Body)
		assert.Equal(t, ErrBadRequest, response.Error.Code)
		assert.Nil(t, response.Error.Details)
	})

	t.Run("with details", func(t *testing.T) {
		c, w := setupTestContext()

		BadRequest(c, "Invalid status", map[string]interface{}{"status": "sold"})

		assert.Equal(t, http.StatusBadRequest, w.Code)
		response := parseErrorResponse(t, w.Body)
		assert.Equal(t, ErrBadRequest, response.Error.Code)
		assert.Equal(t, "sold", response.Error.Details["status"])
	})
}

func TestInternalServerError(t *testing.T) {
	c, w := setupTestContext()

	InternalServerError(c, "Failed to list listings", errors.New("connection refused"))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	response := parseErrorResponse(t, w.Body)
	assert.Equal(t, ErrInternalServer, response.Error.Code)
	assert.Equal(t, "Failed to list listings", response.Error.Message)
	assert.NotContains(t, w.Body.String(), "connection refused")
}

func TestServiceUnavailable(t *testing.T) {
	c, w := setupTestContext()

	ServiceUnavailable(c, "Database unavailable", errors.New("timeout"))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	response := parseErrorResponse(t, w.Body)
	assert.Equal(t, ErrServiceUnavailable, response.Error.Code)
}

func TestValidationError(t *testing.T) {
	c, w := setupTestContext()

	type query struct {
		Status string `validate:"omitempty,oneof=active inactive"`
		Limit  int    `validate:"omitempty,min=1,max=500"`
	}
	err := validator.New().Struct(query{Status: "sold", Limit: 501})
	require.Error(t, err)

	var validationErrors validator.ValidationErrors
	require.True(t, errors.As(err, &validationErrors))

	ValidationError(c, validationErrors)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	response := parseErrorResponse(t, w.Body)
	assert.Equal(t, ErrValidation, response.Error.Code)
	assert.Equal(t, "Validation failed for one or more fields", response.Error.Message)
	assert.Equal(t, "Must be one of: active inactive", response.Error.Details["Status"])
	assert.Equal(t, "Must be at most 500", response.Error.Details["Limit"])
}

func TestFormatValidationError(t *testing.T) {
	tests := []struct {
		tag      string
		param    string
		expected string
	}{
		{tag: "required", expected: "This field is required"},
		{tag: "min", param: "1", expected: "Must be at least 1"},
		{tag: "gte", param: "-100", expected: "Must be at least -100"},
		{tag: "max", param: "500", expected: "Must be at most 500"},
		{tag: "lte", param: "100", expected: "Must be at most 100"},
		{tag: "oneof", param: "active inactive", expected: "Must be one of: active inactive"},
		{tag: "numeric", expected: "Must be a number"},
		{tag: "startswith", param: "suumo_", expected: "Must start with suumo_"},
		{tag: "unknown_tag", expected: "Validation failed for tag: unknown_tag"},
	}

	for _, tt := range tests {
		t.Run(tt.tag, func(t *testing.T) {
			result := formatValidationError(&mockFieldError{tag: tt.tag, param: tt.param})
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestErrorResponseWithoutContext(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/api/v1/listings/x", nil)

	NotFound(c, "Listing not found")

	assert.Equal(t, http.StatusNotFound, w.Code)
	response := parseErrorResponse(t, w.Body)
	assert.Equal(t, ErrNotFound, response.Error.Code)
	assert.Empty(t, response.Error.RequestID)
}

// mockFieldError is a mock implementation of validator.FieldError for testing.
type mockFieldError struct {
	tag   string
	param string
}

func (m *mockFieldError) Tag() string                    { return m.tag }
func (m *mockFieldError) ActualTag() string              { return m.tag }
func (m *mockFieldError) Namespace() string              { return "" }
func (m *mockFieldError) StructNamespace() string        { return "" }
func (m *mockFieldError) Field() string                  { return "limit" }
func (m *mockFieldError) StructField() string            { return "Limit" }
func (m *mockFieldError) Value() interface{}             { return nil }
func (m *mockFieldError) Param() string                  { return m.param }
func (m *mockFieldError) Kind() reflect.Kind             { return reflect.Int }
func (m *mockFieldError) Type() reflect.Type             { return nil }
func (m *mockFieldError) Translate(ut.Translator) string { return "" }
func (m *mockFieldError) Error() string                  { return "" }
