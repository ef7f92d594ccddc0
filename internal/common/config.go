package common

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration
type Config struct {
	Environment string           `toml:"environment"` // "development" or "production"
	Server      ServerConfig     `toml:"server"`
	Queue       QueueConfig      `toml:"queue"`
	Storage     StorageConfig    `toml:"storage"`
	Intake      IntakeConfig     `toml:"intake"`
	Pipeline    PipelineConfig   `toml:"pipeline"`
	Extraction  ExtractionConfig `toml:"extraction"`
	Logging     LoggingConfig    `toml:"logging"`
	WebSocket   WebSocketConfig  `toml:"websocket"`
}

type ServerConfig struct {
	Port int    `toml:"port" validate:"gt=0,lte=65535"`
	Host string `toml:"host" validate:"required"`
}

type QueueConfig struct {
	Concurrency       int    `toml:"concurrency" validate:"gte=1"` // Number of pipeline workers
	VisibilityTimeout string `toml:"visibility_timeout"`           // Redelivery window for claimed messages
	MaxReceive        int    `toml:"max_receive"`                  // Max deliveries before a message is dropped
	QueueName         string `toml:"queue_name"`                   // Queue keyspace prefix in Badger
}

type StorageConfig struct {
	Badger BadgerConfig `toml:"badger"`
	Blobs  BlobsConfig  `toml:"blobs"`
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path           string `toml:"path"`             // Database directory path
	ResetOnStartup bool   `toml:"reset_on_startup"` // Delete database on startup for clean test runs
}

// BlobsConfig configures the filesystem staging area for uploaded payloads
type BlobsConfig struct {
	Path string `toml:"path"`
}

// IntakeConfig holds upload validation policy. Accepted types and the size
// ceiling are configuration, not hardcoded policy.
type IntakeConfig struct {
	MaxFileSizeBytes  int64    `toml:"max_file_size_bytes" validate:"gt=0"`
	AcceptedMimeTypes []string `toml:"accepted_mime_types" validate:"min=1"`
}

type PipelineConfig struct {
	StaleAfter    string `toml:"stale_after"`    // Active documents untouched for this long are failed with a timeout
	SweepSchedule string `toml:"sweep_schedule"` // Cron schedule for the stale sweep
}

// ExtractionConfig configures the extraction backend client.
// An empty BackendURL selects the built-in local extractor.
type ExtractionConfig struct {
	BackendURL     string  `toml:"backend_url"`     // Extraction service base URL, empty = local extractor
	APIKey         string  `toml:"api_key"`         // Bearer token for the backend, optional
	RequestTimeout string  `toml:"request_timeout"` // Per-document backend timeout as duration string
	RateLimit      float64 `toml:"rate_limit"`      // Backend submissions per second (0 = unlimited)
}

type LoggingConfig struct {
	Level     string   `toml:"level"`     // "debug", "info", "warn", "error"
	Format    string   `toml:"format"`    // "json" or "text"
	Output    []string `toml:"output"`    // "stdout", "file"
	Directory string   `toml:"directory"` // Log and crash report directory; relative paths resolve next to the binary
}

// WebSocketConfig contains configuration for the WebSocket event stream
type WebSocketConfig struct {
	// Whitelist of event types to broadcast. Empty list allows all events.
	AllowedEvents []string `toml:"allowed_events"`
	// Throttle intervals for high-frequency events, event type -> duration string.
	// Example: {"document_status_changed": "250ms"}
	ThrottleIntervals map[string]string `toml:"throttle_intervals"`
}

// NewDefaultConfig creates a configuration with default values.
// Only user-facing settings should be exposed in docpipe.toml.
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Port: 8080,
			Host: "localhost",
		},
		Queue: QueueConfig{
			Concurrency:       4,
			VisibilityTimeout: "5m",
			MaxReceive:        3,
			QueueName:         "docpipe_documents",
		},
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Path: "./data",
			},
			Blobs: BlobsConfig{
				Path: "./data/blobs",
			},
		},
		Intake: IntakeConfig{
			MaxFileSizeBytes: 25 * 1024 * 1024, // 25MB
			AcceptedMimeTypes: []string{
				"application/pdf",
				"image/png",
				"image/jpeg",
				"image/tiff",
				"text/csv",
				"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
			},
		},
		Pipeline: PipelineConfig{
			StaleAfter:    "15m",
			SweepSchedule: "*/5 * * * *", // Every 5 minutes
		},
		Extraction: ExtractionConfig{
			RequestTimeout: "2m",
			RateLimit:      5, // Submissions per second
		},
		Logging: LoggingConfig{
			Level:     "info",
			Format:    "text",
			Output:    []string{"stdout", "file"},
			Directory: "logs",
		},
		WebSocket: WebSocketConfig{
			AllowedEvents: []string{},
			ThrottleIntervals: map[string]string{
				"document_status_changed": "250ms",
			},
		},
	}
}

// LoadFromFile loads configuration with priority: defaults -> file -> env.
func LoadFromFile(path string) (*Config, error) {
	if path == "" {
		return LoadFromFiles()
	}
	return LoadFromFiles(path)
}

// LoadFromFiles loads configuration from multiple files. Later files override
// earlier files; environment variables override all files.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks the resolved configuration for structural errors
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if _, err := time.ParseDuration(c.Queue.VisibilityTimeout); err != nil {
		return fmt.Errorf("invalid queue.visibility_timeout %q: %w", c.Queue.VisibilityTimeout, err)
	}
	if _, err := time.ParseDuration(c.Pipeline.StaleAfter); err != nil {
		return fmt.Errorf("invalid pipeline.stale_after %q: %w", c.Pipeline.StaleAfter, err)
	}
	if _, err := time.ParseDuration(c.Extraction.RequestTimeout); err != nil {
		return fmt.Errorf("invalid extraction.request_timeout %q: %w", c.Extraction.RequestTimeout, err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("DOCPIPE_ENV"); env != "" {
		config.Environment = env
	} else if env := os.Getenv("GO_ENV"); env != "" {
		config.Environment = env
	}

	// Server configuration
	if port := os.Getenv("DOCPIPE_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if host := os.Getenv("DOCPIPE_SERVER_HOST"); host != "" {
		config.Server.Host = host
	}

	// Queue configuration
	if concurrency := os.Getenv("DOCPIPE_QUEUE_CONCURRENCY"); concurrency != "" {
		if c, err := strconv.Atoi(concurrency); err == nil {
			config.Queue.Concurrency = c
		}
	}
	if visibilityTimeout := os.Getenv("DOCPIPE_QUEUE_VISIBILITY_TIMEOUT"); visibilityTimeout != "" {
		config.Queue.VisibilityTimeout = visibilityTimeout
	}
	if maxReceive := os.Getenv("DOCPIPE_QUEUE_MAX_RECEIVE"); maxReceive != "" {
		if mr, err := strconv.Atoi(maxReceive); err == nil {
			config.Queue.MaxReceive = mr
		}
	}
	if queueName := os.Getenv("DOCPIPE_QUEUE_NAME"); queueName != "" {
		config.Queue.QueueName = queueName
	}

	// Storage configuration
	if badgerPath := os.Getenv("DOCPIPE_BADGER_PATH"); badgerPath != "" {
		config.Storage.Badger.Path = badgerPath
	}
	if blobsPath := os.Getenv("DOCPIPE_BLOBS_PATH"); blobsPath != "" {
		config.Storage.Blobs.Path = blobsPath
	}

	// Intake configuration
	if maxSize := os.Getenv("DOCPIPE_INTAKE_MAX_FILE_SIZE_BYTES"); maxSize != "" {
		if ms, err := strconv.ParseInt(maxSize, 10, 64); err == nil {
			config.Intake.MaxFileSizeBytes = ms
		}
	}
	if mimeTypes := os.Getenv("DOCPIPE_INTAKE_ACCEPTED_MIME_TYPES"); mimeTypes != "" {
		types := []string{}
		for _, t := range strings.Split(mimeTypes, ",") {
			if trimmed := strings.TrimSpace(t); trimmed != "" {
				types = append(types, trimmed)
			}
		}
		if len(types) > 0 {
			config.Intake.AcceptedMimeTypes = types
		}
	}

	// Pipeline configuration
	if staleAfter := os.Getenv("DOCPIPE_PIPELINE_STALE_AFTER"); staleAfter != "" {
		config.Pipeline.StaleAfter = staleAfter
	}
	if schedule := os.Getenv("DOCPIPE_PIPELINE_SWEEP_SCHEDULE"); schedule != "" {
		config.Pipeline.SweepSchedule = schedule
	}

	// Extraction configuration
	if backendURL := os.Getenv("DOCPIPE_EXTRACTION_BACKEND_URL"); backendURL != "" {
		config.Extraction.BackendURL = backendURL
	}
	if apiKey := os.Getenv("DOCPIPE_EXTRACTION_API_KEY"); apiKey != "" {
		config.Extraction.APIKey = apiKey
	}
	if timeout := os.Getenv("DOCPIPE_EXTRACTION_REQUEST_TIMEOUT"); timeout != "" {
		config.Extraction.RequestTimeout = timeout
	}
	if rateLimit := os.Getenv("DOCPIPE_EXTRACTION_RATE_LIMIT"); rateLimit != "" {
		if rl, err := strconv.ParseFloat(rateLimit, 64); err == nil {
			config.Extraction.RateLimit = rl
		}
	}

	// Logging configuration
	if level := os.Getenv("DOCPIPE_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if format := os.Getenv("DOCPIPE_LOG_FORMAT"); format != "" {
		config.Logging.Format = format
	}
	if dir := os.Getenv("DOCPIPE_LOG_DIRECTORY"); dir != "" {
		config.Logging.Directory = dir
	}
	if output := os.Getenv("DOCPIPE_LOG_OUTPUT"); output != "" {
		outputs := []string{}
		for _, o := range strings.Split(output, ",") {
			if trimmed := strings.TrimSpace(o); trimmed != "" {
				outputs = append(outputs, trimmed)
			}
		}
		if len(outputs) > 0 {
			config.Logging.Output = outputs
		}
	}
}

// ApplyFlagOverrides applies command-line flag overrides to config.
// Command-line flags have the highest priority.
func ApplyFlagOverrides(config *Config, port int, host string) {
	if port > 0 {
		config.Server.Port = port
	}
	if host != "" {
		config.Server.Host = host
	}
}

// VisibilityTimeout returns the parsed queue visibility timeout
func (c *Config) VisibilityTimeout() time.Duration {
	return parseDurationOr(c.Queue.VisibilityTimeout, 5*time.Minute)
}

// StaleAfter returns the parsed stale-document window
func (c *Config) StaleAfter() time.Duration {
	return parseDurationOr(c.Pipeline.StaleAfter, 15*time.Minute)
}

// ExtractionTimeout returns the parsed per-document backend timeout
func (c *Config) ExtractionTimeout() time.Duration {
	return parseDurationOr(c.Extraction.RequestTimeout, 2*time.Minute)
}

// LogDirectory resolves the configured log directory. Relative paths land
// next to the binary so the service can run from any working directory.
func (c *Config) LogDirectory() string {
	dir := c.Logging.Directory
	if dir == "" {
		dir = "logs"
	}
	if filepath.IsAbs(dir) {
		return dir
	}
	execPath, err := os.Executable()
	if err != nil {
		return dir
	}
	return filepath.Join(filepath.Dir(execPath), dir)
}

// IsProduction returns true if the environment is set to production
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}

func parseDurationOr(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}
