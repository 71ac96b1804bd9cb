package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix is the prefix for environment variable overrides, e.g.
// SWEEPERBOARD_ADDR or SWEEPERBOARD_LOG_LEVEL.
const EnvPrefix = "SWEEPERBOARD_"

// PathEnvVar overrides the config file location.
const PathEnvVar = "SWEEPERBOARD_CONFIG"

// DefaultPaths lists where a config file is searched, first match wins.
var DefaultPaths = []string{
	"sweeperboard.yaml",
	"sweeperboard.yml",
}

var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds every runtime setting of the dashboard server.
type Config struct {
	// Addr is the listen address. The dashboard is meant for the local
	// operator only, so the default binds loopback.
	Addr string `koanf:"addr"`

	// BroadcastInterval is the cadence of the change-checked state broadcast.
	BroadcastInterval time.Duration `koanf:"broadcast_interval"`

	// PagePath is the dashboard HTML document served on GET /.
	PagePath string `koanf:"page_path"`

	// UploadPath is where uploaded robot code is written. The simulator
	// watches this path; the server only overwrites it.
	UploadPath string `koanf:"upload_path"`

	Log LogConfig `koanf:"log"`
}

// LogConfig mirrors logging.Config for the koanf layers.
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// Default returns the configuration used when no file or env overrides exist.
func Default() *Config {
	return &Config{
		Addr:              "127.0.0.1:8000",
		BroadcastInterval: time.Second,
		PagePath:          "static/index.html",
		UploadPath:        "robot/robot.py",
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load layers defaults, an optional YAML file and SWEEPERBOARD_* environment
// variables into a validated Config. path may be empty, in which case
// PathEnvVar and then DefaultPaths are consulted; a missing file is not an
// error, only an unreadable or unparseable one is.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path == "" {
		path = os.Getenv(PathEnvVar)
	}
	if path == "" {
		for _, p := range DefaultPaths {
			if _, err := os.Stat(p); err == nil {
				path = p
				break
			}
		}
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envTransform), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// envMappings pins each supported environment variable to its config key.
// An explicit table beats a generic underscore-to-dot transform here because
// top-level keys themselves contain underscores.
var envMappings = map[string]string{
	"addr":               "addr",
	"broadcast_interval": "broadcast_interval",
	"page_path":          "page_path",
	"upload_path":        "upload_path",
	"log_level":          "log.level",
	"log_format":         "log.format",
}

func envTransform(key string) string {
	key = strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
	if mapped, ok := envMappings[key]; ok {
		return mapped
	}
	// Unknown SWEEPERBOARD_* variables are dropped rather than guessed at.
	return ""
}

// Validate checks the handful of settings the server cannot run without.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	}
	if c.BroadcastInterval <= 0 {
		return fmt.Errorf("%w: broadcast_interval must be positive", ErrInvalidConfig)
	}
	if c.PagePath == "" {
		return fmt.Errorf("%w: page_path must not be empty", ErrInvalidConfig)
	}
	if c.UploadPath == "" {
		return fmt.Errorf("%w: upload_path must not be empty", ErrInvalidConfig)
	}
	return nil
}
