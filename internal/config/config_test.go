package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cpicli/internal/cpi"
)

// TestLoad tests the Load function with various scenarios
func TestLoad(t *testing.T) {
	tests := []struct {
		name        string
		env         map[string]string
		file        string
		wantErr     bool
		validateCfg func(*testing.T, *Config)
	}{
		{
			name: "defaults without file or env",
			validateCfg: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 8080, cfg.Server.Port)
				assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
				assert.Equal(t, 30*time.Second, cfg.Server.ShutdownTimeout)
				assert.True(t, cfg.Server.RateLimit.Enabled)

				assert.Equal(t, "info", cfg.Logging.Level)
				assert.Equal(t, "console", cfg.Logging.Output)

				assert.Equal(t, "sum", cfg.Calculation.Weighting)
				assert.Equal(t, "last", cfg.Calculation.Duplicates)
				assert.Equal(t, SourceFile, cfg.Source.Kind)
				assert.Equal(t, "png", cfg.Output.Engine)
				assert.Equal(t, 100.0, cfg.Output.Scale)
				assert.Equal(t, ResultsMemory, cfg.Results.Kind)
			},
		},
		{
			name: "yaml file overrides defaults",
			file: `
server:
  port: 9090
  read_timeout: 30s
calculation:
  base_date: "2023-01-01"
  weighting: normalized
source:
  kind: database
  driver: sqlite
  dsn: "file::memory:"
output:
  engine: xlsx
  scale: 1
`,
			validateCfg: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 9090, cfg.Server.Port)
				assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)
				// Keys absent from the file keep their defaults
				assert.Equal(t, 60*time.Second, cfg.Server.WriteTimeout)
				assert.Equal(t, "2023-01-01", cfg.Calculation.BaseDate)
				assert.Equal(t, SourceDatabase, cfg.Source.Kind)
				assert.Equal(t, "xlsx", cfg.Output.Engine)
				assert.Equal(t, 1.0, cfg.Output.Scale)
			},
		},
		{
			name: "environment wins over file",
			file: `
server:
  port: 9090
calculation:
  weighting: normalized
`,
			env: map[string]string{
				"CPI_SERVER_PORT":           "7070",
				"CPI_CALCULATION_WEIGHTING": "sum",
				"CPI_CALCULATION_BASE_DATE": "2023-02-01",
				"CPI_LOGGING_LEVEL":         "debug",
			},
			validateCfg: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 7070, cfg.Server.Port)
				assert.Equal(t, "sum", cfg.Calculation.Weighting)
				assert.Equal(t, "2023-02-01", cfg.Calculation.BaseDate)
				assert.Equal(t, "debug", cfg.Logging.Level)
			},
		},
		{
			name:    "invalid port number",
			env:     map[string]string{"CPI_SERVER_PORT": "99999"},
			wantErr: true,
		},
		{
			name:    "invalid base date",
			env:     map[string]string{"CPI_CALCULATION_BASE_DATE": "01/13/2023"},
			wantErr: true,
		},
		{
			name:    "unknown weighting",
			env:     map[string]string{"CPI_CALCULATION_WEIGHTING": "median"},
			wantErr: true,
		},
		{
			name:    "unknown plot engine",
			env:     map[string]string{"CPI_OUTPUT_ENGINE": "svg"},
			wantErr: true,
		},
		{
			name:    "unknown key in file",
			file:    "calculation:\n  base: 2023-01-01\n",
			wantErr: true,
		},
		{
			name:    "malformed yaml",
			file:    "server: [port",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			path := filepath.Join(t.TempDir(), "config.yaml")
			if tt.file != "" {
				require.NoError(t, os.WriteFile(path, []byte(tt.file), 0644))
			} else {
				require.NoError(t, os.WriteFile(path, []byte("{}\n"), 0644))
			}

			cfg, err := Load(path)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			tt.validateCfg(t, cfg)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"zero read timeout", func(c *Config) { c.Server.ReadTimeout = 0 }, "read timeout"},
		{"rate limit without rps", func(c *Config) { c.Server.RateLimit.RPS = 0 }, "rps"},
		{"file source without paths", func(c *Config) { c.Source.PricesPath = "" }, "prices_path"},
		{"database without dsn", func(c *Config) { c.Source.Kind = SourceDatabase }, "dsn"},
		{"database with unknown driver", func(c *Config) {
			c.Source.Kind = SourceDatabase
			c.Source.Driver = "oracle"
		}, "driver"},
		{"warehouse without dsn", func(c *Config) { c.Source.Kind = SourceWarehouse }, "dsn"},
		{"bucket without name", func(c *Config) { c.Source.Kind = SourceBucket }, "source.bucket"},
		{"unknown source", func(c *Config) { c.Source.Kind = "ftp" }, "unknown source kind"},
		{"non positive scale", func(c *Config) { c.Output.Scale = 0 }, "scale"},
		{"upload without bucket", func(c *Config) { c.Output.Upload = true }, "output.bucket"},
		{"redis without address", func(c *Config) {
			c.Results.Kind = ResultsRedis
			c.Results.RedisAddr = ""
		}, "redis_addr"},
		{"unknown results store", func(c *Config) { c.Results.Kind = "disk" }, "results store"},
		{"negative concurrency", func(c *Config) { c.Calculation.Concurrency = -1 }, "concurrency"},
		{"unknown series mode", func(c *Config) { c.Calculation.SeriesMode = "rolling" }, "series mode"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateNormalizesLogging(t *testing.T) {
	cfg := Default()
	cfg.Logging.Output = "syslog"
	cfg.Logging.FilePath = ""
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "console", cfg.Logging.Output)
	assert.Equal(t, "logs/cpi.log", cfg.Logging.FilePath)
}

func TestCalculationOptions(t *testing.T) {
	calc := CalculationConfig{
		BaseDate:    "2023-01-01",
		ReportDate:  "2023-02-01",
		Weighting:   "normalized",
		Duplicates:  "reject",
		SeriesMode:  "chain",
		Concurrency: 8,
	}

	opts, err := calc.Options()
	require.NoError(t, err)
	assert.Equal(t, time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC), opts.BaseDate)
	assert.Equal(t, time.Date(2023, 2, 1, 0, 0, 0, 0, time.UTC), opts.ReportDate)
	assert.Equal(t, cpi.WeightingNormalized, opts.Weighting)
	assert.Equal(t, cpi.DuplicateReject, opts.Duplicates)

	series, err := calc.SeriesOptions()
	require.NoError(t, err)
	assert.Equal(t, cpi.SeriesChain, series.Mode)
	assert.Equal(t, 8, series.Concurrency)
	assert.Equal(t, opts.BaseDate, series.BaseDate)

	empty := CalculationConfig{}
	base, err := empty.Base()
	require.NoError(t, err)
	assert.True(t, base.IsZero())
}

// Options must surface parse errors when Validate was skipped
func TestCalculationOptionsErrors(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*CalculationConfig)
		msg    string
	}{
		{"base date", func(c *CalculationConfig) { c.BaseDate = "first of january" }, "calculation.base_date"},
		{"report date", func(c *CalculationConfig) { c.ReportDate = "2023/13/45" }, "calculation.report_date"},
		{"weighting", func(c *CalculationConfig) { c.Weighting = "geometric" }, "geometric"},
		{"duplicates", func(c *CalculationConfig) { c.Duplicates = "first" }, "first"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calc := Default().Calculation
			tt.modify(&calc)

			_, err := calc.Options()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.msg)

			_, err = calc.SeriesOptions()
			require.Error(t, err)
		})
	}

	calc := Default().Calculation
	calc.SeriesMode = "rolling"
	_, err := calc.Options()
	require.NoError(t, err)
	_, err = calc.SeriesOptions()
	assert.ErrorContains(t, err, "rolling")
}
