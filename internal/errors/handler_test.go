package errors

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cpicli/internal/cpi"
	"cpicli/internal/shared/testutil"
)

func decodeProblem(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestNewErrorHandler(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	handler := NewErrorHandler(logger, true)
	assert.True(t, handler.includeStack)
	assert.NotNil(t, handler.logger)
}

func TestErrorHandler_HandleError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantType   string
		check      func(t *testing.T, body map[string]any)
	}{
		{
			name:       "context deadline exceeded",
			err:        fmt.Errorf("load prices: %w", context.DeadlineExceeded),
			wantStatus: http.StatusGatewayTimeout,
			wantType:   TypeTimeout,
		},
		{
			name: "missing input columns",
			err: fmt.Errorf("validate inputs: %w", &cpi.ValidationError{
				Table:   "price",
				Field:   "price",
				Missing: []string{"price"},
				Message: "price missing required fields: price",
			}),
			wantStatus: http.StatusBadRequest,
			wantType:   TypeInputSchema,
			check: func(t *testing.T, body map[string]any) {
				assert.Equal(t, "price", body["table"])
				assert.Equal(t, []any{"price"}, body["missing"])
				assert.NotContains(t, body, "row")
			},
		},
		{
			name:       "unparseable cell",
			err:        &cpi.ValidationError{Table: "price", Field: "price", Row: 3, Message: "price row 3 field price: bad"},
			wantStatus: http.StatusBadRequest,
			wantType:   TypeInputUnparseable,
			check: func(t *testing.T, body map[string]any) {
				assert.Equal(t, float64(3), body["row"])
			},
		},
		{
			name:       "api error",
			err:        ErrValidation("base_date", "required"),
			wantStatus: http.StatusBadRequest,
			wantType:   TypeValidation,
			check: func(t *testing.T, body map[string]any) {
				assert.Equal(t, "VALIDATION_FAILED", body["error_code"])
				assert.NotNil(t, body["details"])
			},
		},
		{
			name:       "no results",
			err:        ErrNoResults,
			wantStatus: http.StatusNotFound,
			wantType:   TypeNoResults,
		},
		{
			name:       "source error hides cause",
			err:        NewSourceError("load prices", errors.New("password authentication failed")).WithContext("source", "warehouse"),
			wantStatus: http.StatusServiceUnavailable,
			wantType:   TypeSourceUnavailable,
			check: func(t *testing.T, body map[string]any) {
				assert.Equal(t, "load prices", body["detail"])
				assert.Equal(t, "warehouse", body["source"])
				assert.Equal(t, "SOURCE", body["error_type"])
			},
		},
		{
			name:       "parsing error",
			err:        NewParsingError("read workbook", errors.New("zip: not a valid zip file")),
			wantStatus: http.StatusUnprocessableEntity,
			wantType:   TypeInputUnparseable,
		},
		{
			name:       "config error",
			err:        NewConfigError("unknown source kind", nil),
			wantStatus: http.StatusInternalServerError,
			wantType:   TypeConfig,
		},
		{
			name:       "plain not found",
			err:        errors.New("sheet prices not found"),
			wantStatus: http.StatusNotFound,
			wantType:   TypeNotFound,
		},
		{
			name:       "body too large",
			err:        errors.New("http: request body too large"),
			wantStatus: http.StatusRequestEntityTooLarge,
			wantType:   TypePayloadTooLarge,
		},
		{
			name:       "unknown error",
			err:        errors.New("boom"),
			wantStatus: http.StatusInternalServerError,
			wantType:   TypeInternal,
			check: func(t *testing.T, body map[string]any) {
				assert.NotContains(t, body["detail"], "boom")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, logs := testutil.NewTestLogger(t)
			handler := NewErrorHandler(logger, false)

			req := httptest.NewRequest(http.MethodPost, "/api/v1/cpi/compute", nil)
			rec := httptest.NewRecorder()
			handler.HandleError(rec, req, tt.err)

			assert.Equal(t, tt.wantStatus, rec.Code)
			body := decodeProblem(t, rec)
			assert.Equal(t, tt.wantType, body["type"])
			assert.Equal(t, "/api/v1/cpi/compute", body["instance"])
			assert.Contains(t, body, "trace_id")
			assert.NotContains(t, body, "stack")
			if tt.check != nil {
				tt.check(t, body)
			}

			level := slog.LevelWarn
			if tt.wantStatus >= http.StatusInternalServerError {
				level = slog.LevelError
			}
			testutil.AssertLogContains(t, logs, level, "request failed")
		})
	}
}

func TestErrorHandler_HandleNilError(t *testing.T) {
	logger, logs := testutil.NewTestLogger(t)
	rec := httptest.NewRecorder()
	NewErrorHandler(logger, false).HandleError(rec, httptest.NewRequest(http.MethodGet, "/", nil), nil)

	assert.Empty(t, rec.Body.String())
	assert.Zero(t, logs.Count())
}

func TestErrorHandler_IncludeStack(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	rec := httptest.NewRecorder()
	NewErrorHandler(logger, true).HandleError(rec, httptest.NewRequest(http.MethodGet, "/", nil), errors.New("boom"))

	assert.Contains(t, decodeProblem(t, rec), "stack")
}

func TestErrorHandler_Recoverer(t *testing.T) {
	logger, logs := testutil.NewTestLogger(t)
	handler := NewErrorHandler(logger, false)

	panicking := handler.Recoverer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("nil categories")
	}))

	rec := httptest.NewRecorder()
	panicking.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/cpi/latest", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decodeProblem(t, rec)
	assert.Equal(t, TypeInternal, body["type"])
	assert.NotContains(t, body, "panic")
	testutil.AssertLogContains(t, logs, slog.LevelError, "panic recovered")
}

func TestErrorHandler_NotFoundAndMethodNotAllowed(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	handler := NewErrorHandler(logger, false)

	rec := httptest.NewRecorder()
	handler.NotFound(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, TypeNotFound, decodeProblem(t, rec)["type"])

	rec = httptest.NewRecorder()
	handler.MethodNotAllowed(rec, httptest.NewRequest(http.MethodDelete, "/api/v1/cpi/latest", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Contains(t, decodeProblem(t, rec)["detail"], "DELETE")
}
