package main

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cpicli/internal/config"
	"cpicli/internal/loader"
	"cpicli/internal/shared/testutil"
)

func TestRun(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "cpi.db")
	logger, logs := testutil.NewTestLogger(t)
	var stdout, stderr bytes.Buffer

	args := []string{
		"-out", dir,
		"-days", "5",
		"-products", "40",
		"-daily", "30",
		"-dsn", dbPath,
	}
	require.NoError(t, run(context.Background(), args, &stdout, &stderr, logger))

	assert.FileExists(t, filepath.Join(dir, "prices.csv"))
	assert.FileExists(t, filepath.Join(dir, "categories.csv"))
	assert.Contains(t, stdout.String(), "Seeded sqlite database")
	assert.True(t, logs.ContainsMessage("sample data generated"))

	// The CSV files and the database hold the same rows
	ctx := context.Background()
	files := loader.NewFileSource(filepath.Join(dir, "prices.csv"), filepath.Join(dir, "categories.csv"), logger)
	db, err := loader.OpenDatabase(ctx, config.SourceConfig{Driver: "sqlite", DSN: dbPath}, logger)
	require.NoError(t, err)
	defer db.Close()

	filePrices, fileCategories, err := loader.LoadBoth(ctx, files, time.Time{}, time.Time{})
	require.NoError(t, err)
	dbPrices, dbCategories, err := loader.LoadBoth(ctx, db, time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, filePrices.Len(), dbPrices.Len())
	assert.Equal(t, fileCategories.Len(), dbCategories.Len())
}

func TestRunErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"bad start", []string{"-start", "soon"}},
		{"zero days", []string{"-days", "0"}},
		{"bad driver", []string{"-days", "2", "-products", "10", "-daily", "5", "-driver", "mysql", "-dsn", "x"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, _ := testutil.NewTestLogger(t)
			var stdout, stderr bytes.Buffer
			args := append([]string{"-out", t.TempDir()}, tt.args...)
			assert.Error(t, run(context.Background(), args, &stdout, &stderr, logger))
		})
	}
}
