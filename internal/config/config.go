package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"

	"cpicli/internal/cpi"
	"cpicli/internal/table"
)

// EnvPrefix namespaces every environment variable, e.g. CPI_SERVER_PORT
const EnvPrefix = "CPI"

// Config represents the complete application configuration
type Config struct {
	Server      ServerConfig      `yaml:"server" envconfig:"SERVER"`
	Logging     LoggingConfig     `yaml:"logging" envconfig:"LOGGING"`
	Calculation CalculationConfig `yaml:"calculation" envconfig:"CALCULATION"`
	Source      SourceConfig      `yaml:"source" envconfig:"SOURCE"`
	Output      OutputConfig      `yaml:"output" envconfig:"OUTPUT"`
	Results     ResultsConfig     `yaml:"results" envconfig:"RESULTS"`
	Telemetry   TelemetryConfig   `yaml:"telemetry" envconfig:"TELEMETRY"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port            int             `yaml:"port" envconfig:"PORT"`
	ReadTimeout     time.Duration   `yaml:"read_timeout" envconfig:"READ_TIMEOUT"`
	WriteTimeout    time.Duration   `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT"`
	IdleTimeout     time.Duration   `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT"`
	MaxHeaderBytes  int             `yaml:"max_header_bytes" envconfig:"MAX_HEADER_BYTES"`
	ShutdownTimeout time.Duration   `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT"`
	RequestTimeout  time.Duration   `yaml:"request_timeout" envconfig:"REQUEST_TIMEOUT"`
	RateLimit       RateLimitConfig `yaml:"rate_limit" envconfig:"RATE_LIMIT"`
}

// RateLimitConfig contains rate limiting configuration
type RateLimitConfig struct {
	Enabled bool    `yaml:"enabled" envconfig:"ENABLED"`
	RPS     float64 `yaml:"rps" envconfig:"RPS"`
	Burst   int     `yaml:"burst" envconfig:"BURST"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level    string `yaml:"level" envconfig:"LEVEL"`
	Output   string `yaml:"output" envconfig:"OUTPUT"` // console, file or both
	FilePath string `yaml:"file_path" envconfig:"FILE_PATH"`
}

// CalculationConfig holds the index parameters. Dates are YYYY-MM-DD.
type CalculationConfig struct {
	BaseDate    string `yaml:"base_date" envconfig:"BASE_DATE"`
	ReportDate  string `yaml:"report_date" envconfig:"REPORT_DATE"`
	Weighting   string `yaml:"weighting" envconfig:"WEIGHTING"`
	Duplicates  string `yaml:"duplicates" envconfig:"DUPLICATES"`
	SeriesMode  string `yaml:"series_mode" envconfig:"SERIES_MODE"`
	Concurrency int    `yaml:"concurrency" envconfig:"CONCURRENCY"`
}

// Source kinds
const (
	SourceFile      = "file"
	SourceDatabase  = "database"
	SourceWarehouse = "warehouse"
	SourceBucket    = "bucket"
)

// SourceConfig selects where price and category tables are loaded from
type SourceConfig struct {
	Kind    string        `yaml:"kind" envconfig:"KIND"`
	Timeout time.Duration `yaml:"timeout" envconfig:"TIMEOUT"`

	// file
	PricesPath     string `yaml:"prices_path" envconfig:"PRICES_PATH"`
	CategoriesPath string `yaml:"categories_path" envconfig:"CATEGORIES_PATH"`

	// database (gorm) and warehouse (pgx)
	Driver          string `yaml:"driver" envconfig:"DRIVER"` // sqlite or postgres
	DSN             string `yaml:"dsn" envconfig:"DSN"`
	PricesTable     string `yaml:"prices_table" envconfig:"PRICES_TABLE"`
	CategoriesTable string `yaml:"categories_table" envconfig:"CATEGORIES_TABLE"`
	MaxConns        int    `yaml:"max_conns" envconfig:"MAX_CONNS"`

	// bucket
	Bucket           string `yaml:"bucket" envconfig:"BUCKET"`
	PricesObject     string `yaml:"prices_object" envconfig:"PRICES_OBJECT"`
	CategoriesObject string `yaml:"categories_object" envconfig:"CATEGORIES_OBJECT"`
	CredentialsFile  string `yaml:"credentials_file" envconfig:"CREDENTIALS_FILE"`
}

// OutputConfig controls report rendering and upload
type OutputConfig struct {
	Dir    string  `yaml:"dir" envconfig:"DIR"`
	Engine string  `yaml:"engine" envconfig:"ENGINE"` // png, xlsx or csv
	Scale  float64 `yaml:"scale" envconfig:"SCALE"`
	Title  string  `yaml:"title" envconfig:"TITLE"`
	Upload bool    `yaml:"upload" envconfig:"UPLOAD"`
	Bucket string  `yaml:"bucket" envconfig:"BUCKET"`
	Prefix string  `yaml:"prefix" envconfig:"PREFIX"`
}

// Results store kinds
const (
	ResultsMemory = "memory"
	ResultsRedis  = "redis"
)

// ResultsConfig selects where computed indexes are recorded
type ResultsConfig struct {
	Kind          string        `yaml:"kind" envconfig:"KIND"`
	RedisAddr     string        `yaml:"redis_addr" envconfig:"REDIS_ADDR"`
	RedisPassword string        `yaml:"redis_password" envconfig:"REDIS_PASSWORD"`
	RedisDB       int           `yaml:"redis_db" envconfig:"REDIS_DB"`
	Key           string        `yaml:"key" envconfig:"KEY"`
	MaxHistory    int           `yaml:"max_history" envconfig:"MAX_HISTORY"`
	DialTimeout   time.Duration `yaml:"dial_timeout" envconfig:"DIAL_TIMEOUT"`
}

// TelemetryConfig toggles tracing and metrics
type TelemetryConfig struct {
	ServiceName   string `yaml:"service_name" envconfig:"SERVICE_NAME"`
	EnableTracing bool   `yaml:"enable_tracing" envconfig:"ENABLE_TRACING"`
	EnableMetrics bool   `yaml:"enable_metrics" envconfig:"ENABLE_METRICS"`
}

// Load builds the configuration from defaults, an optional YAML file and
// CPI_* environment variables, in increasing order of precedence.
// An empty path searches the usual locations.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = getConfigFilePath()
	}
	if path != "" {
		if err := loadFromFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// loadFromFile overlays a YAML file on cfg; keys absent from the file keep
// their current values
func loadFromFile(filePath string, cfg *Config) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return err
	}
	if err := yaml.UnmarshalStrict(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", filePath, err)
	}
	return nil
}

// Validate checks ranges and enumerations and normalizes logging output
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server read timeout must be positive")
	}
	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server write timeout must be positive")
	}
	if c.Server.RateLimit.Enabled && c.Server.RateLimit.RPS <= 0 {
		return fmt.Errorf("rate limit rps must be positive when enabled")
	}

	switch strings.ToLower(c.Logging.Output) {
	case "console", "file", "both":
	default:
		c.Logging.Output = "console"
	}
	if c.Logging.FilePath == "" {
		c.Logging.FilePath = "logs/cpi.log"
	}

	if err := c.Calculation.validate(); err != nil {
		return err
	}
	if err := c.Source.validate(); err != nil {
		return err
	}

	switch c.Output.Engine {
	case "png", "xlsx", "csv":
	default:
		return fmt.Errorf("unsupported plot engine: %q", c.Output.Engine)
	}
	if c.Output.Scale <= 0 {
		return fmt.Errorf("output scale must be positive, got %g", c.Output.Scale)
	}
	if c.Output.Upload && c.Output.Bucket == "" {
		return fmt.Errorf("output.bucket is required when upload is enabled")
	}

	switch c.Results.Kind {
	case ResultsMemory:
	case ResultsRedis:
		if c.Results.RedisAddr == "" {
			return fmt.Errorf("results.redis_addr is required for the redis store")
		}
	default:
		return fmt.Errorf("unknown results store %q", c.Results.Kind)
	}
	return nil
}

func (c CalculationConfig) validate() error {
	if _, err := c.SeriesOptions(); err != nil {
		return err
	}
	if c.Concurrency < 0 {
		return fmt.Errorf("calculation concurrency must not be negative")
	}
	return nil
}

// Base returns the parsed base date, zero when unset
func (c CalculationConfig) Base() (time.Time, error) {
	return parseOptionalDate("calculation.base_date", c.BaseDate)
}

// Report returns the parsed report date, zero when unset
func (c CalculationConfig) Report() (time.Time, error) {
	return parseOptionalDate("calculation.report_date", c.ReportDate)
}

// Options converts the section into calculator options
func (c CalculationConfig) Options() (cpi.Options, error) {
	base, err := c.Base()
	if err != nil {
		return cpi.Options{}, err
	}
	report, err := c.Report()
	if err != nil {
		return cpi.Options{}, err
	}
	weighting, err := cpi.ParseWeighting(c.Weighting)
	if err != nil {
		return cpi.Options{}, err
	}
	duplicates, err := cpi.ParseDuplicatePolicy(c.Duplicates)
	if err != nil {
		return cpi.Options{}, err
	}
	return cpi.Options{
		BaseDate:   base,
		ReportDate: report,
		Weighting:  weighting,
		Duplicates: duplicates,
	}, nil
}

// SeriesOptions converts the section into series options
func (c CalculationConfig) SeriesOptions() (cpi.SeriesOptions, error) {
	opts, err := c.Options()
	if err != nil {
		return cpi.SeriesOptions{}, err
	}
	mode, err := cpi.ParseSeriesMode(c.SeriesMode)
	if err != nil {
		return cpi.SeriesOptions{}, err
	}
	return cpi.SeriesOptions{
		BaseDate:    opts.BaseDate,
		Mode:        mode,
		Weighting:   opts.Weighting,
		Duplicates:  opts.Duplicates,
		Concurrency: c.Concurrency,
	}, nil
}

func parseOptionalDate(field, value string) (time.Time, error) {
	if strings.TrimSpace(value) == "" {
		return time.Time{}, nil
	}
	d, err := table.ParseDate(value)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s: %w", field, err)
	}
	return d, nil
}

func (s SourceConfig) validate() error {
	switch s.Kind {
	case SourceFile:
		if s.PricesPath == "" || s.CategoriesPath == "" {
			return fmt.Errorf("source.prices_path and source.categories_path are required for file sources")
		}
	case SourceDatabase:
		if s.Driver != "sqlite" && s.Driver != "postgres" {
			return fmt.Errorf("unsupported database driver %q (use sqlite or postgres)", s.Driver)
		}
		if s.DSN == "" {
			return fmt.Errorf("source.dsn is required for database sources")
		}
	case SourceWarehouse:
		if s.DSN == "" {
			return fmt.Errorf("source.dsn is required for warehouse sources")
		}
	case SourceBucket:
		if s.Bucket == "" || s.PricesObject == "" || s.CategoriesObject == "" {
			return fmt.Errorf("source.bucket, source.prices_object and source.categories_object are required for bucket sources")
		}
	default:
		return fmt.Errorf("unknown source kind %q", s.Kind)
	}
	return nil
}

// getConfigFilePath returns the first config file found in the usual places
func getConfigFilePath() string {
	locations := []string{
		"config.yaml",
		"configs/config.yaml",
		"../configs/config.yaml",
	}

	for _, location := range locations {
		if _, err := os.Stat(location); err == nil {
			return location
		}
	}

	return "" // No config file found, use env vars only
}

// Default returns default configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    60 * time.Second,
			IdleTimeout:     60 * time.Second,
			MaxHeaderBytes:  1 << 20, // 1MB
			ShutdownTimeout: 30 * time.Second,
			RequestTimeout:  time.Minute,
			RateLimit: RateLimitConfig{
				Enabled: true,
				RPS:     20,
				Burst:   10,
			},
		},
		Logging: LoggingConfig{
			Level:    "info",
			Output:   "console",
			FilePath: "logs/cpi.log",
		},
		Calculation: CalculationConfig{
			Weighting:   string(cpi.WeightingSum),
			Duplicates:  string(cpi.DuplicateKeepLast),
			SeriesMode:  string(cpi.SeriesFixedBase),
			Concurrency: cpi.DefaultSeriesConcurrency,
		},
		Source: SourceConfig{
			Kind:             SourceFile,
			Timeout:          30 * time.Second,
			PricesPath:       "data/prices.csv",
			CategoriesPath:   "data/categories.csv",
			Driver:           "sqlite",
			PricesTable:      "price",
			CategoriesTable:  "category",
			MaxConns:         4,
			PricesObject:     "prices.csv",
			CategoriesObject: "categories.csv",
		},
		Output: OutputConfig{
			Dir:    "reports",
			Engine: "png",
			Scale:  100,
			Title:  "Consumer Price Index",
			Prefix: "reports/",
		},
		Results: ResultsConfig{
			Kind:        ResultsMemory,
			RedisAddr:   "localhost:6379",
			Key:         "cpi:results",
			MaxHistory:  500,
			DialTimeout: 5 * time.Second,
		},
		Telemetry: TelemetryConfig{
			ServiceName:   "cpi",
			EnableTracing: false,
			EnableMetrics: true,
		},
	}
}
