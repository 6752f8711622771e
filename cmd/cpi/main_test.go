package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cpicli/internal/shared/testutil"
)

// writeConfig points a config file at the example CSV inputs
func writeConfig(t *testing.T) (configPath, outDir string) {
	t.Helper()
	dir := t.TempDir()
	pricesPath, categoriesPath := testutil.WriteExampleCSV(t, dir)
	outDir = filepath.Join(dir, "reports")

	configPath = filepath.Join(dir, "config.yaml")
	content := fmt.Sprintf("source:\n  prices_path: %q\n  categories_path: %q\noutput:\n  dir: %q\n",
		pricesPath, categoriesPath, outDir)
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0o644))
	return configPath, outDir
}

func TestRun(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		contains []string
		files    []string
	}{
		{
			name:     "sum weighting with png report",
			args:     []string{"-base", testutil.BaseDate, "-report", testutil.ReportDate},
			contains: []string{"index:    83.0000", "ratio:    0.830000", "Series of 2 points"},
			files:    []string{"cpi_20230201.png"},
		},
		{
			name:     "normalized with csv report",
			args:     []string{"-base", testutil.BaseDate, "-normalize", "-engine", "csv", "-mode", "chain"},
			contains: []string{"index:    103.7500", "(normalized weighting)", "(chain)"},
			files:    []string{"cpi_20230201.csv"},
		},
		{
			name:     "breakdown without series",
			args:     []string{"-base", testutil.BaseDate, "-series=false", "-breakdown", "breakdown.csv"},
			contains: []string{"Breakdown written to"},
			files:    []string{"breakdown.csv"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			configPath, outDir := writeConfig(t)
			logger, _ := testutil.NewTestLogger(t)
			var stdout, stderr bytes.Buffer

			args := append([]string{"-config", configPath}, tt.args...)
			require.NoError(t, run(context.Background(), args, &stdout, &stderr, logger))

			for _, s := range tt.contains {
				assert.Contains(t, stdout.String(), s)
			}
			for _, f := range tt.files {
				assert.FileExists(t, filepath.Join(outDir, f))
			}
		})
	}
}

func TestRunErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		msg  string
	}{
		{"missing base date", nil, "base date is required"},
		{"bad engine", []string{"-base", testutil.BaseDate, "-engine", "svg"}, "unsupported plot engine"},
		{"bad date", []string{"-base", "first of january"}, "base_date"},
		{"unknown flag", []string{"-nope"}, "flag provided but not defined"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			configPath, _ := writeConfig(t)
			logger, _ := testutil.NewTestLogger(t)
			var stdout, stderr bytes.Buffer

			args := append([]string{"-config", configPath}, tt.args...)
			err := run(context.Background(), args, &stdout, &stderr, logger)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestRunVersion(t *testing.T) {
	var stdout, stderr bytes.Buffer
	require.NoError(t, run(context.Background(), []string{"-version"}, &stdout, &stderr, nil))
	assert.Contains(t, stdout.String(), "cpicli v")
}
