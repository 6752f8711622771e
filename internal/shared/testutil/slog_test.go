package testutil

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBufferedSlogHandler(t *testing.T) {
	logger, handler := NewTestLogger(t)

	logger.With("component", "loader").Info("loaded prices", "rows", 6)
	logger.Error("load failed")

	require.Equal(t, 2, handler.Count())
	records := handler.GetRecords()
	assert.Equal(t, "loader", records[0].Attrs["component"])
	assert.Equal(t, int64(6), records[0].Attrs["rows"])
	assert.True(t, handler.ContainsMessage("loaded"))
	assert.Len(t, handler.GetRecordsByLevel(slog.LevelError), 1)
	AssertLogContains(t, handler, slog.LevelInfo, "loaded prices")
}

func TestFixtures(t *testing.T) {
	prices := ExamplePrices()
	assert.Equal(t, 6, prices.Len())
	assert.True(t, prices.Has("category_id"))

	categories := ExampleCategories()
	assert.Empty(t, categories.Missing("id", "parent", "weight"))

	pricesPath, categoriesPath := WriteExampleCSV(t, t.TempDir())
	assert.FileExists(t, pricesPath)
	assert.FileExists(t, categoriesPath)
}
