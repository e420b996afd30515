// Package config loads runtime configuration from a YAML file, environment
// variables and command-line flags, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	"github.com/recallkit/recall/internal/storage"
)

// envPrefix namespaces the environment variables read by Load.
// RECALL_STORAGE__BACKEND maps to the key "storage.backend".
const envPrefix = "RECALL_"

// StorageConfig selects and parameterizes the persistence backend.
type StorageConfig struct {
	Backend string `koanf:"backend" validate:"oneof=file sqlite"`
	Dir     string `koanf:"dir"` // file backend: blob directory
	DSN     string `koanf:"dsn"` // sqlite backend: database path
}

// CorpusConfig locates the reviewable content corpus.
type CorpusConfig struct {
	Root   string `koanf:"root"`    // local corpus root
	GitURL string `koanf:"git_url"` // when set, track a git repository instead
	GitDir string `koanf:"git_dir"` // checkout path for the git corpus
}

// Config is the full runtime configuration.
type Config struct {
	Storage  StorageConfig    `koanf:"storage"`
	Corpus   CorpusConfig     `koanf:"corpus"`
	Settings storage.Settings `koanf:"settings"`
	LogLevel string           `koanf:"log_level" validate:"oneof=debug info warn error"`
}

// Default returns the configuration used when nothing is specified.
func Default() Config {
	return Config{
		Storage: StorageConfig{
			Backend: "file",
			Dir:     ".recall",
			DSN:     "recall.db",
		},
		Corpus: CorpusConfig{
			Root:   ".",
			GitDir: ".recall/corpus",
		},
		Settings: storage.DefaultSettings(),
		LogLevel: "info",
	}
}

var validate = validator.New()

// Load merges defaults, the optional YAML file named by the --config flag,
// RECALL_* environment variables and the parsed flags. Out-of-range
// algorithm settings are clamped, never rejected; structurally invalid
// choices (unknown backend, log level) fall back to defaults with a warning.
func Load(flags *pflag.FlagSet, logger *slog.Logger) (Config, error) {
	if logger == nil {
		logger = slog.Default()
	}
	k := koanf.New(".")

	if path, _ := flags.GetString("config"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Config{}, fmt.Errorf("loading config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", envToKey), nil); err != nil {
		return Config{}, fmt.Errorf("loading environment: %w", err)
	}

	if err := k.Load(posflag.Provider(flags, ".", k), nil); err != nil {
		return Config{}, fmt.Errorf("loading flags: %w", err)
	}

	cfg := Default()
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("decoding config: %w", err)
	}

	normalize(&cfg, logger)
	return cfg, nil
}

// normalize repairs invalid values in place rather than failing startup.
func normalize(cfg *Config, logger *slog.Logger) {
	var verrs validator.ValidationErrors
	if err := validate.Struct(cfg); errors.As(err, &verrs) {
		for _, fe := range verrs {
			switch fe.StructField() {
			case "Backend":
				logger.Warn("unknown storage backend, using file", "value", cfg.Storage.Backend)
				cfg.Storage.Backend = "file"
			case "LogLevel":
				logger.Warn("unknown log level, using info", "value", cfg.LogLevel)
				cfg.LogLevel = "info"
			}
		}
	}

	if fixed := storage.ClampSettings(&cfg.Settings); len(fixed) > 0 {
		logger.Warn("settings out of range, clamped", "fields", fixed)
	}
}

// envToKey maps RECALL_STORAGE__BACKEND to storage.backend. A double
// underscore separates path segments so setting names may keep single
// underscores (RECALL_SETTINGS__NEW_PER_DAY).
func envToKey(s string) string {
	s = strings.TrimPrefix(s, envPrefix)
	s = strings.ToLower(s)
	return strings.ReplaceAll(s, "__", ".")
}
