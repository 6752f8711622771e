package errors

import (
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAPIErrorConstructors(t *testing.T) {
	tests := []struct {
		name       string
		err        *APIError
		wantStatus int
		wantCode   string
		wantMsg    string
	}{
		{"invalid request", InvalidRequestWithError(errors.New("unexpected EOF")), http.StatusBadRequest, "INVALID_REQUEST", "Invalid request format"},
		{"field validation", ErrValidation("base_date", "required"), http.StatusBadRequest, "VALIDATION_FAILED", "Request validation failed"},
		{"not found", NotFoundError("result"), http.StatusNotFound, "NOT_FOUND", "result not found"},
		{"no results", ErrNoResults, http.StatusNotFound, "NO_RESULTS", "No index has been computed yet"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantStatus, tt.err.StatusCode)
			assert.Equal(t, tt.wantCode, tt.err.ErrorCode)
			assert.Equal(t, tt.wantMsg, tt.err.Error())
		})
	}
}

func TestErrValidationDetails(t *testing.T) {
	err := ErrValidation("weighting", "must be one of sum normalized")
	details, ok := err.Details.(FieldError)
	require.True(t, ok)
	assert.Equal(t, "weighting", details.Field)

	multi := NewValidationErrors([]FieldError{{Field: "base_date", Message: "required"}, {Field: "mode", Message: "oneof"}})
	fields, ok := multi.Details.(FieldErrors)
	require.True(t, ok)
	assert.Len(t, fields.Errors, 2)
}

func TestProblemDetailsJSON(t *testing.T) {
	problem := NewProblemDetails(http.StatusBadRequest, TypeInputSchema, "Invalid Input Data", "price missing required fields: price", "/api/v1/cpi/compute").
		WithExtension("missing", []string{"price"}).
		WithExtension("status", 999)

	data, err := json.Marshal(problem)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, TypeInputSchema, decoded["type"])
	assert.Equal(t, float64(http.StatusBadRequest), decoded["status"], "extensions never override standard members")
	assert.Equal(t, []any{"price"}, decoded["missing"])
	assert.Equal(t, "/api/v1/cpi/compute", decoded["instance"])

	bare := &ProblemDetails{Type: TypeInternal, Title: "Internal Server Error", Status: 500}
	bare.WithExtension("trace_id", "abc")
	data, err = json.Marshal(bare)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "detail")
	assert.Contains(t, string(data), `"trace_id":"abc"`)
}
