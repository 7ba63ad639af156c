package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds file- and environment-driven configuration. Environment
// variables override values from the YAML file.
type Config struct {
	LogLevel string `yaml:"log_level" env:"LOG_LEVEL" env-default:"INFO"`
	HTTP     struct {
		Address string        `yaml:"address" env:"HTTP_ADDRESS" env-default:":8080"`
		Timeout time.Duration `yaml:"timeout" env:"HTTP_TIMEOUT" env-default:"5s"`
	} `yaml:"http"`
	Database struct {
		Driver string `yaml:"driver" env:"DB_DRIVER" env-default:"mysql"` // mysql, pgx or sqlite3
		DSN    string `yaml:"dsn" env:"DB_DSN"`                            // e.g., user:pass@tcp(host:3306)/timetrack
	} `yaml:"database"`
	Directory struct {
		BaseURL  string        `yaml:"base_url" env:"DIRECTORY_BASE_URL"`
		APIToken string        `yaml:"api_token" env:"DIRECTORY_API_TOKEN"`
		File     string        `yaml:"file" env:"DIRECTORY_FILE"` // YAML task catalogue, replaces BaseURL
		Timeout  time.Duration `yaml:"timeout" env:"DIRECTORY_TIMEOUT" env-default:"10s"`
	} `yaml:"directory"`
}

// Load reads configuration from path, falling back to the environment alone
// when path is empty or the file does not exist.
func Load(path string) (Config, error) {
	var cfg Config

	if path != "" {
		err := cleanenv.ReadConfig(path, &cfg)
		if err == nil {
			return cfg, cfg.validate()
		}
		var pe *os.PathError
		if !errors.As(err, &pe) {
			return cfg, err
		}
	}
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return cfg, err
	}
	return cfg, cfg.validate()
}

func (c Config) validate() error {
	if _, err := parseLevel(c.LogLevel); err != nil {
		return err
	}
	if c.Database.DSN == "" {
		return errors.New("DB_DSN is required")
	}
	switch c.Database.Driver {
	case "mysql", "pgx", "sqlite3":
	default:
		return errors.New("DB_DRIVER must be one of mysql, pgx, sqlite3")
	}
	return nil
}

// ValidateDirectory checks the task directory settings. Only commands that
// resolve tasks need them, so Load leaves this check to the caller.
func (c Config) ValidateDirectory() error {
	if (c.Directory.BaseURL == "") == (c.Directory.File == "") {
		return errors.New("exactly one of DIRECTORY_BASE_URL or DIRECTORY_FILE must be set")
	}
	return nil
}

// Level returns the configured log level. Load has already validated it.
func (c Config) Level() slog.Level {
	l, _ := parseLevel(c.LogLevel)
	return l
}

func parseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if s == "" {
		return slog.LevelInfo, nil
	}
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, fmt.Errorf("LOG_LEVEL %q: must be one of DEBUG, INFO, WARN, ERROR", s)
	}
	return l, nil
}
