package config

import (
	"fmt"
	"time"
	"unicode/utf8"
)

// BaseConfig holds the settings shared by every connector.
type BaseConfig struct {
	// Name identifies the connector instance
	Name string `yaml:"name" json:"name"`
	// Type is "source" or "destination"
	Type string `yaml:"type" json:"type"`
	// Version indicates the configuration version
	Version string `yaml:"version" json:"version"`

	// Performance settings control buffering between reader and writer
	Performance PerformanceConfig `yaml:"performance" json:"performance"`

	// Observability settings for monitoring and debugging
	Observability ObservabilityConfig `yaml:"observability" json:"observability"`

	// Storage configures access to s3:// and gs:// locations
	Storage StorageConfig `yaml:"storage" json:"storage"`
}

// PerformanceConfig contains throughput settings.
type PerformanceConfig struct {
	// BufferSize is the capacity of the record channel between reader and writer
	BufferSize int `yaml:"buffer_size" json:"buffer_size"`
	// ProgressInterval is how often a running copy logs its progress
	ProgressInterval time.Duration `yaml:"progress_interval" json:"progress_interval"`
}

// ObservabilityConfig contains observability settings.
type ObservabilityConfig struct {
	EnableMetrics     bool    `yaml:"enable_metrics" json:"enable_metrics"`
	MetricsAddr       string  `yaml:"metrics_addr" json:"metrics_addr"`
	EnableTracing     bool    `yaml:"enable_tracing" json:"enable_tracing"`
	TracingSampleRate float64 `yaml:"tracing_sample_rate" json:"tracing_sample_rate"`
	LogLevel          string  `yaml:"log_level" json:"log_level"`
	LogFormat         string  `yaml:"log_format" json:"log_format"`
}

// StorageConfig contains object store settings.
type StorageConfig struct {
	// Region is the AWS region for s3:// locations
	Region string `yaml:"region" json:"region"`
	// CredentialsFile is a Google service account file for gs:// locations
	CredentialsFile string `yaml:"credentials_file" json:"credentials_file"`
	// PartSize is the S3 multipart chunk size in bytes
	PartSize int64 `yaml:"part_size" json:"part_size"`
	// Concurrency is the number of parallel S3 part transfers
	Concurrency int `yaml:"concurrency" json:"concurrency"`
	// TempDir holds staged copies of remote files
	TempDir string `yaml:"temp_dir" json:"temp_dir"`
	// MaxAttempts bounds each download or upload
	MaxAttempts int `yaml:"max_attempts" json:"max_attempts"`
	// RetryDelay is the backoff before the first transfer retry
	RetryDelay time.Duration `yaml:"retry_delay" json:"retry_delay"`
}

// NewBaseConfig creates a BaseConfig with defaults.
func NewBaseConfig(name, connectorType string) *BaseConfig {
	return &BaseConfig{
		Name:    name,
		Type:    connectorType,
		Version: "1.0.0",
		Performance: PerformanceConfig{
			BufferSize:       1000,
			ProgressInterval: 10 * time.Second,
		},
		Observability: ObservabilityConfig{
			EnableMetrics:     true,
			EnableTracing:     false,
			TracingSampleRate: 1.0,
			LogLevel:          "info",
			LogFormat:         "json",
		},
		Storage: StorageConfig{
			PartSize:    5 * 1024 * 1024,
			Concurrency: 4,
			MaxAttempts: 3,
			RetryDelay:  500 * time.Millisecond,
		},
	}
}

// Validate checks the shared settings.
func (bc *BaseConfig) Validate() error {
	if bc.Name == "" {
		return fmt.Errorf("name is required")
	}
	if bc.Type != "source" && bc.Type != "destination" {
		return fmt.Errorf("type must be source or destination, got %q", bc.Type)
	}
	if bc.Performance.BufferSize <= 0 {
		return fmt.Errorf("buffer_size must be positive")
	}
	if bc.Observability.TracingSampleRate < 0 || bc.Observability.TracingSampleRate > 1 {
		return fmt.Errorf("tracing_sample_rate must be between 0 and 1")
	}
	if bc.Storage.PartSize < 0 {
		return fmt.Errorf("part_size cannot be negative")
	}
	if bc.Storage.MaxAttempts < 0 {
		return fmt.Errorf("max_attempts cannot be negative")
	}
	return nil
}

// SpreadsheetConfig configures a spreadsheet source or destination.
type SpreadsheetConfig struct {
	BaseConfig `yaml:",inline" json:",inline"`

	// Path is a local path or an s3:// or gs:// URI
	Path string `yaml:"path" json:"path"`

	// HeaderRow is the zero-based row holding column names
	HeaderRow *int `yaml:"header_row,omitempty" json:"header_row,omitempty"`
	// Sheet is the zero-based index of the sheet to read
	Sheet int `yaml:"sheet" json:"sheet"`
	// PreserveEmptyRows keeps rows with no values (XLSX only). Unset preserves them
	PreserveEmptyRows *bool `yaml:"preserve_empty_rows,omitempty" json:"preserve_empty_rows,omitempty"`
	// KeepText disables cell type inference
	KeepText bool `yaml:"keep_text" json:"keep_text"`
	// Delimiter is the CSV field separator
	Delimiter string `yaml:"delimiter" json:"delimiter"`
	// Password opens encrypted XLSX workbooks
	Password string `yaml:"password" json:"password"`

	// Format forces the output format ("xlsx" or "csv")
	Format string `yaml:"format" json:"format"`
	// SheetName names the written sheet
	SheetName string `yaml:"sheet_name" json:"sheet_name"`
	// PrependHeader writes column names as the first row
	PrependHeader bool `yaml:"prepend_header" json:"prepend_header"`
	// CompressionLevel applies to compressed CSV output (1-9)
	CompressionLevel int `yaml:"compression_level" json:"compression_level"`
}

// NewSpreadsheetConfig creates a SpreadsheetConfig with defaults.
func NewSpreadsheetConfig(name, connectorType string) *SpreadsheetConfig {
	return &SpreadsheetConfig{
		BaseConfig:    *NewBaseConfig(name, connectorType),
		PrependHeader: connectorType == "destination",
	}
}

// Validate checks the spreadsheet settings.
func (sc *SpreadsheetConfig) Validate() error {
	if err := sc.BaseConfig.Validate(); err != nil {
		return err
	}
	if sc.Path == "" {
		return fmt.Errorf("path is required")
	}
	if sc.HeaderRow != nil && *sc.HeaderRow < 0 {
		return fmt.Errorf("header_row cannot be negative")
	}
	if sc.Sheet < 0 {
		return fmt.Errorf("sheet cannot be negative")
	}
	if utf8.RuneCountInString(sc.Delimiter) > 1 {
		return fmt.Errorf("delimiter must be a single character, got %q", sc.Delimiter)
	}
	if sc.Format != "" && sc.Format != "xlsx" && sc.Format != "csv" {
		return fmt.Errorf("format must be xlsx or csv, got %q", sc.Format)
	}
	if sc.CompressionLevel < 0 || sc.CompressionLevel > 9 {
		return fmt.Errorf("compression_level must be between 0 and 9")
	}
	return nil
}

// DelimiterRune returns the configured delimiter, or 0 for the format default.
func (sc *SpreadsheetConfig) DelimiterRune() rune {
	r, _ := utf8.DecodeRuneInString(sc.Delimiter)
	if r == utf8.RuneError {
		return 0
	}
	return r
}

// Int returns a pointer to n, for optional integer settings.
func Int(n int) *int { return &n }

// Bool returns a pointer to b, for optional boolean settings.
func Bool(b bool) *bool { return &b }
