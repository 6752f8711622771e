package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppError(t *testing.T) {
	cause := errors.New("connection refused")

	tests := []struct {
		name     string
		err      *AppError
		wantType ErrorType
		wantMsg  string
	}{
		{"source", NewSourceError("load prices", cause), ErrTypeSource, "[SOURCE] load prices: connection refused"},
		{"network", NewNetworkError("dial redis", cause), ErrTypeNetwork, "[NETWORK] dial redis: connection refused"},
		{"parsing", NewParsingError("read workbook", cause), ErrTypeParsing, "[PARSING] read workbook: connection refused"},
		{"storage", NewStorageError("save result", cause), ErrTypeStorage, "[STORAGE] save result: connection refused"},
		{"validation", NewAppValidationError("base date after report date"), ErrTypeValidation, "[VALIDATION] base date after report date"},
		{"not found", NewNotFoundError("sheet prices"), ErrTypeNotFound, "[NOT_FOUND] sheet prices not found"},
		{"config", NewConfigError("unknown source kind", nil), ErrTypeConfig, "[CONFIG] unknown source kind"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantType, tt.err.Type)
			assert.Equal(t, tt.wantMsg, tt.err.Error())
			assert.NotNil(t, tt.err.Context)
		})
	}
}

func TestAppErrorUnwrapAndContext(t *testing.T) {
	cause := errors.New("no such file")
	err := NewSourceError("open prices.csv", cause).WithContext("path", "data/prices.csv")
	wrapped := fmt.Errorf("load inputs: %w", err)

	assert.ErrorIs(t, wrapped, cause)

	var appErr *AppError
	require.ErrorAs(t, wrapped, &appErr)
	assert.Equal(t, "data/prices.csv", appErr.Context["path"])

	assert.True(t, IsType(wrapped, ErrTypeSource))
	assert.False(t, IsType(wrapped, ErrTypeStorage))
	assert.False(t, IsType(cause, ErrTypeSource))

	bare := &AppError{Type: ErrTypeConfig, Message: "x"}
	bare.WithContext("key", 1)
	assert.Equal(t, 1, bare.Context["key"])
}
