package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_EnvOnly(t *testing.T) {
	t.Setenv("DB_DSN", "file:timetrack.db")
	t.Setenv("DB_DRIVER", "sqlite3")
	t.Setenv("DIRECTORY_FILE", "tasks.yaml")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTP.Address != ":8080" || cfg.HTTP.Timeout != 5*time.Second {
		t.Fatalf("http defaults not applied: %+v", cfg.HTTP)
	}
	if cfg.Directory.Timeout != 10*time.Second || cfg.LogLevel != "INFO" {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
	if cfg.Database.Driver != "sqlite3" || cfg.Directory.File != "tasks.yaml" {
		t.Fatalf("env not read: %+v", cfg)
	}
}

func TestLoad_FileWithEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
log_level: DEBUG
http:
  address: ":9090"
database:
  driver: pgx
  dsn: postgres://u:p@localhost/timetrack
directory:
  base_url: http://pm.internal
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("HTTP_ADDRESS", ":7070")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTP.Address != ":7070" {
		t.Fatalf("env did not override file: %q", cfg.HTTP.Address)
	}
	if cfg.Database.Driver != "pgx" || cfg.LogLevel != "DEBUG" || cfg.Directory.BaseURL != "http://pm.internal" {
		t.Fatalf("file values not read: %+v", cfg)
	}
}

func TestLoad_Validation(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "missing dsn", env: map[string]string{"DIRECTORY_FILE": "x.yaml"}},
		{name: "bad log level", env: map[string]string{"DB_DSN": "x", "LOG_LEVEL": "LOUD"}},
		{name: "unknown driver", env: map[string]string{"DB_DSN": "x", "DB_DRIVER": "oracle", "DIRECTORY_FILE": "x.yaml"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, k := range []string{"DB_DSN", "DB_DRIVER", "DIRECTORY_FILE", "DIRECTORY_BASE_URL", "LOG_LEVEL"} {
				t.Setenv(k, "")
				os.Unsetenv(k)
			}
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			if _, err := Load(""); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestLoad_DirectoryOptional(t *testing.T) {
	for _, k := range []string{"DIRECTORY_FILE", "DIRECTORY_BASE_URL", "DB_DRIVER", "LOG_LEVEL"} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
	t.Setenv("DB_DSN", "user:pass@tcp(db:3306)/timetrack")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load without directory: %v", err)
	}
	if err := cfg.ValidateDirectory(); err == nil {
		t.Fatal("expected directory validation error")
	}

	cfg.Directory.File = "tasks.yaml"
	if err := cfg.ValidateDirectory(); err != nil {
		t.Fatalf("file directory: %v", err)
	}
	cfg.Directory.BaseURL = "http://pm.internal"
	if err := cfg.ValidateDirectory(); err == nil {
		t.Fatal("expected error with both directories set")
	}
}

func TestLevel(t *testing.T) {
	tests := map[string]slog.Level{"": slog.LevelInfo, "DEBUG": slog.LevelDebug, "warn": slog.LevelWarn, "ERROR": slog.LevelError}
	for in, want := range tests {
		if got := (Config{LogLevel: in}).Level(); got != want {
			t.Fatalf("Level(%q) = %v, want %v", in, got, want)
		}
	}
}
