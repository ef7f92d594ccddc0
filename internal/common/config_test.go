package common

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()

	if cfg.Server.Port != 8080 {
		t.Errorf("expected default port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Queue.Concurrency != 4 {
		t.Errorf("expected default concurrency 4, got %d", cfg.Queue.Concurrency)
	}
	if cfg.Intake.MaxFileSizeBytes != 25*1024*1024 {
		t.Errorf("expected default max file size 25MB, got %d", cfg.Intake.MaxFileSizeBytes)
	}
	if len(cfg.Intake.AcceptedMimeTypes) == 0 {
		t.Error("expected default accepted MIME types to be non-empty")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestLoadFromFiles_FileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "docpipe.toml")

	content := `
environment = "production"

[server]
port = 9090
host = "0.0.0.0"

[queue]
concurrency = 8
visibility_timeout = "10m"

[intake]
max_file_size_bytes = 1048576
accepted_mime_types = ["application/pdf"]
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg, err := LoadFromFiles(path)
	if err != nil {
		t.Fatalf("LoadFromFiles failed: %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("expected port 9090, got %d", cfg.Server.Port)
	}
	if cfg.Queue.Concurrency != 8 {
		t.Errorf("expected concurrency 8, got %d", cfg.Queue.Concurrency)
	}
	if cfg.VisibilityTimeout() != 10*time.Minute {
		t.Errorf("expected visibility timeout 10m, got %s", cfg.VisibilityTimeout())
	}
	if cfg.Intake.MaxFileSizeBytes != 1048576 {
		t.Errorf("expected max file size 1048576, got %d", cfg.Intake.MaxFileSizeBytes)
	}
	if !cfg.IsProduction() {
		t.Error("expected IsProduction() to be true")
	}
	// Defaults not mentioned in the file should survive
	if cfg.Queue.MaxReceive != 3 {
		t.Errorf("expected default max_receive 3, got %d", cfg.Queue.MaxReceive)
	}
}

func TestLoadFromFiles_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "docpipe.toml")

	content := `
[server]
port = 9090
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	t.Setenv("DOCPIPE_SERVER_PORT", "7070")
	t.Setenv("DOCPIPE_INTAKE_ACCEPTED_MIME_TYPES", "application/pdf, image/png")
	t.Setenv("DOCPIPE_LOG_DIRECTORY", "/var/log/docpipe")

	cfg, err := LoadFromFiles(path)
	if err != nil {
		t.Fatalf("LoadFromFiles failed: %v", err)
	}

	if cfg.Server.Port != 7070 {
		t.Errorf("expected env override port 7070, got %d", cfg.Server.Port)
	}
	if len(cfg.Intake.AcceptedMimeTypes) != 2 {
		t.Fatalf("expected 2 accepted MIME types, got %d", len(cfg.Intake.AcceptedMimeTypes))
	}
	if cfg.Intake.AcceptedMimeTypes[1] != "image/png" {
		t.Errorf("expected trimmed MIME type image/png, got %q", cfg.Intake.AcceptedMimeTypes[1])
	}
	if cfg.Logging.Directory != "/var/log/docpipe" {
		t.Errorf("expected env override log directory, got %q", cfg.Logging.Directory)
	}
	if cfg.LogDirectory() != "/var/log/docpipe" {
		t.Errorf("absolute log directory should be used as-is, got %q", cfg.LogDirectory())
	}
}

func TestLoadFromFiles_InvalidDuration(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "docpipe.toml")

	content := `
[queue]
visibility_timeout = "not-a-duration"
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	if _, err := LoadFromFiles(path); err == nil {
		t.Error("expected error for invalid visibility_timeout")
	}
}

func TestApplyFlagOverrides(t *testing.T) {
	cfg := NewDefaultConfig()

	ApplyFlagOverrides(cfg, 3000, "127.0.0.1")
	if cfg.Server.Port != 3000 {
		t.Errorf("expected port 3000, got %d", cfg.Server.Port)
	}
	if cfg.Server.Host != "127.0.0.1" {
		t.Errorf("expected host 127.0.0.1, got %q", cfg.Server.Host)
	}

	// Zero values leave config untouched
	ApplyFlagOverrides(cfg, 0, "")
	if cfg.Server.Port != 3000 || cfg.Server.Host != "127.0.0.1" {
		t.Error("zero-value flags should not override configuration")
	}
}
