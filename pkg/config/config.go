// Package config provides the unified configuration for a Lumen server and
// the lumen command.
//
// The configuration is organized into logical sections:
//   - Ingest: delimiter defaults, datetime layouts, per-column parallelism
//   - Registry: table naming and name collision policy
//   - Transport: wire compression and HTTP limits
//   - Observability: logging, metrics and tracing
//
// Example usage:
//
//	cfg := config.NewConfig("analytics")
//	cfg.Registry.OnConflict = config.ConflictReplace
//
//	if err := cfg.Validate(); err != nil {
//	    log.Fatal(err)
//	}
package config

import (
	"fmt"
	"runtime"
	"time"
	"unicode/utf8"

	"github.com/ajitpratap0/lumen/pkg/compression"
)

// ConflictPolicy decides what happens when a table is created under a name
// that is already registered.
type ConflictPolicy string

const (
	// ConflictReject fails the second construction with a name_in_use error
	ConflictReject ConflictPolicy = "reject"
	// ConflictReplace swaps the registered table once the new one is built
	ConflictReplace ConflictPolicy = "replace"
)

// Config is the single configuration structure for a server instance.
type Config struct {
	// Name identifies the server instance in logs and metrics
	Name string `yaml:"name" json:"name"`

	// Ingest controls the format adapters
	Ingest IngestConfig `yaml:"ingest" json:"ingest"`

	// Registry controls table naming
	Registry RegistryConfig `yaml:"registry" json:"registry"`

	// Transport configures the wire codec and the HTTP transport
	Transport TransportConfig `yaml:"transport" json:"transport"`

	// Observability settings for monitoring and debugging
	Observability ObservabilityConfig `yaml:"observability" json:"observability"`
}

// IngestConfig contains the format adapter settings.
type IngestConfig struct {
	// Delimiter is the default field separator for delimited text
	Delimiter string `yaml:"delimiter" json:"delimiter"`
	// Workers bounds per-column parallelism inside one construction
	Workers int `yaml:"workers" json:"workers"`
	// DatetimeLayouts are tried in order when inferring datetime columns
	DatetimeLayouts []string `yaml:"datetime_layouts" json:"datetime_layouts"`
}

// RegistryConfig contains the table registry settings.
type RegistryConfig struct {
	// OnConflict is the policy for an already registered name
	OnConflict ConflictPolicy `yaml:"on_conflict" json:"on_conflict"`
	// NamePrefix is prepended to auto-generated table names
	NamePrefix string `yaml:"name_prefix" json:"name_prefix"`
	// MaxNameLength caps caller-supplied names (in bytes)
	MaxNameLength int `yaml:"max_name_length" json:"max_name_length"`
	// MaxTables caps the number of registered tables (0 = unlimited)
	MaxTables int `yaml:"max_tables" json:"max_tables"`
}

// TransportConfig contains the wire and HTTP settings.
type TransportConfig struct {
	// Addr is the listen address of the HTTP transport
	Addr string `yaml:"addr" json:"addr"`
	// Compression is the envelope compression algorithm
	Compression string `yaml:"compression" json:"compression"`
	// MaxBodyBytes limits a single request envelope
	MaxBodyBytes int64 `yaml:"max_body_bytes" json:"max_body_bytes"`
	// ReadTimeout for HTTP requests
	ReadTimeout time.Duration `yaml:"read_timeout" json:"read_timeout"`
	// WriteTimeout for HTTP responses
	WriteTimeout time.Duration `yaml:"write_timeout" json:"write_timeout"`
}

// ObservabilityConfig contains monitoring settings.
type ObservabilityConfig struct {
	// LogLevel is the zap level name (debug, info, warn, error)
	LogLevel string `yaml:"log_level" json:"log_level"`
	// LogEncoding is json or console
	LogEncoding string `yaml:"log_encoding" json:"log_encoding"`
	// Development enables human-friendly logs with stack traces
	Development bool `yaml:"development" json:"development"`
	// EnableMetrics registers prometheus collectors
	EnableMetrics bool `yaml:"enable_metrics" json:"enable_metrics"`
	// EnableTracing exports spans to stdout from the command line tool
	EnableTracing bool `yaml:"enable_tracing" json:"enable_tracing"`
	// ServiceName is reported on spans
	ServiceName string `yaml:"service_name" json:"service_name"`
	// TraceSampleRate is the fraction of constructions traced (0..1)
	TraceSampleRate float64 `yaml:"trace_sample_rate" json:"trace_sample_rate"`
}

// DefaultDatetimeLayouts are the layouts tried when inferring datetime columns.
var DefaultDatetimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.000",
}

// NewConfig creates a configuration with defaults for the named server.
func NewConfig(name string) *Config {
	return &Config{
		Name: name,
		Ingest: IngestConfig{
			Delimiter:       ",",
			Workers:         runtime.NumCPU(),
			DatetimeLayouts: append([]string(nil), DefaultDatetimeLayouts...),
		},
		Registry: RegistryConfig{
			OnConflict:    ConflictReject,
			NamePrefix:    "table-",
			MaxNameLength: 255,
			MaxTables:     0,
		},
		Transport: TransportConfig{
			Addr:         "127.0.0.1:8760",
			Compression:  "none",
			MaxBodyBytes: 64 << 20, // 64MB
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		Observability: ObservabilityConfig{
			LogLevel:        "info",
			LogEncoding:     "json",
			EnableMetrics:   true,
			ServiceName:     "lumen",
			TraceSampleRate: 1.0,
		},
	}
}

// Validate checks required fields and ensures values are within acceptable
// ranges. Call it after loading configuration to catch errors early.
func (c *Config) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("name is required")
	}
	if utf8.RuneCountInString(c.Ingest.Delimiter) != 1 {
		return fmt.Errorf("ingest.delimiter must be a single character, got %q", c.Ingest.Delimiter)
	}
	if d, _ := utf8.DecodeRuneInString(c.Ingest.Delimiter); d == '"' || d == '\r' || d == '\n' {
		return fmt.Errorf("ingest.delimiter %q is not allowed", c.Ingest.Delimiter)
	}
	if c.Ingest.Workers < 0 {
		return fmt.Errorf("ingest.workers cannot be negative")
	}
	switch c.Registry.OnConflict {
	case ConflictReject, ConflictReplace:
	default:
		return fmt.Errorf("registry.on_conflict must be %q or %q, got %q", ConflictReject, ConflictReplace, c.Registry.OnConflict)
	}
	if c.Registry.MaxNameLength <= 0 {
		return fmt.Errorf("registry.max_name_length must be positive")
	}
	if c.Registry.MaxTables < 0 {
		return fmt.Errorf("registry.max_tables cannot be negative")
	}
	if _, err := compression.ParseAlgorithm(c.Transport.Compression); err != nil {
		return fmt.Errorf("transport.compression: %w", err)
	}
	if c.Transport.MaxBodyBytes <= 0 {
		return fmt.Errorf("transport.max_body_bytes must be positive")
	}
	if c.Observability.TraceSampleRate < 0 || c.Observability.TraceSampleRate > 1 {
		return fmt.Errorf("observability.trace_sample_rate must be between 0 and 1")
	}
	return nil
}

// GetWorkers returns the number of workers, ensuring it's at least 1
func (i *IngestConfig) GetWorkers() int {
	if i.Workers <= 0 {
		return runtime.NumCPU()
	}
	return i.Workers
}

// DelimiterRune returns the configured delimiter as a rune
func (i *IngestConfig) DelimiterRune() rune {
	r, _ := utf8.DecodeRuneInString(i.Delimiter)
	if r == utf8.RuneError {
		return ','
	}
	return r
}

// GetDatetimeLayouts returns the configured layouts or the defaults
func (i *IngestConfig) GetDatetimeLayouts() []string {
	if len(i.DatetimeLayouts) == 0 {
		return DefaultDatetimeLayouts
	}
	return i.DatetimeLayouts
}
