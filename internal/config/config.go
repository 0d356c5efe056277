package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

const (
	DefaultPath       = "config.yaml"
	DefaultDebounceMs = 200

	configPathEnv = "CONFIG_PATH"
)

var (
	ErrInvalidConfig = errors.New("invalid config file")
	ErrEmptyCommand  = errors.New("command is empty")
)

// Config is loaded once at startup and never mutated afterwards.
type Config struct {
	Env            string   `yaml:"env" env:"KUBEWATCH_ENV" env-default:"local"`
	WatchDir       string   `yaml:"watch_dir" env:"KUBEWATCH_WATCH_DIR" env-default:"/tmp/"`
	Command        string   `yaml:"command" env:"KUBEWATCH_COMMAND" env-default:"kubectl apply -f"`
	FileExtensions []string `yaml:"file_extensions" env:"KUBEWATCH_FILE_EXTENSIONS" env-default:"yaml,yml"`
	FilePrefixes   []string `yaml:"file_prefixes" env:"KUBEWATCH_FILE_PREFIXES" env-default:"dev-,prod-,staging-"`
	IgnorePatterns []string `yaml:"ignore_patterns" env:"KUBEWATCH_IGNORE_PATTERNS"`
	HistoryPath    string   `yaml:"history_path" env:"KUBEWATCH_HISTORY_PATH"`

	// DebounceTime is in milliseconds. nil disables time based suppression.
	DebounceTime *uint64 `yaml:"debounce_time"`
}

// Load reads the config file at path. A missing file yields Default().
// A file that exists but cannot be parsed returns ErrInvalidConfig and the
// caller decides whether to fall back to defaults.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Default()
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidConfig, path, err)
	}

	var cfg Config

	if err := cleanenv.ReadConfig(path, &cfg); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidConfig, path, err)
	}

	return &cfg, nil
}

// Default returns the built-in configuration with environment overrides applied.
func Default() (*Config, error) {
	var cfg Config

	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("cannot read config from env: %w", err)
	}

	debounce := uint64(DefaultDebounceMs)
	cfg.DebounceTime = &debounce

	return &cfg, nil
}

// ResolvePath picks the config file location.
// Priority: flag > env > default.
func ResolvePath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if res := os.Getenv(configPathEnv); res != "" {
		return res
	}
	return DefaultPath
}

// Validate catches configuration that would fail on every dispatch.
func (c *Config) Validate() error {
	if len(strings.Fields(c.Command)) == 0 {
		return ErrEmptyCommand
	}
	return nil
}

// Debounce returns the debounce window and whether one is configured.
func (c *Config) Debounce() (time.Duration, bool) {
	if c.DebounceTime == nil {
		return 0, false
	}
	return time.Duration(*c.DebounceTime) * time.Millisecond, true
}
