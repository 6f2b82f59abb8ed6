// Package config holds the handful of engine-wide tunables that aren't part
// of a single build call: whether to colorize log output, the verbosity
// level, the preferred cache directory, and the default file comparison
// strategy. Only cmd/filebuildctl consults it, and only for Colorize; the
// core engine/cache/builddirs types remain pure and are always constructed
// with explicit Go values.
package config

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/btrekkie/file-builder/operation"
)

// Config is the resolved set of tunables, after layering defaults, an
// optional .env file, and an optional YAML project file.
type Config struct {
	// LogLevel is "debug", "info", or "warn". Empty means "info".
	LogLevel string `yaml:"log_level"`
	// CacheDir is the preferred directory for cache files. Nothing in this
	// module reads it; cmd/filebuildctl takes cache paths from its arguments.
	CacheDir string `yaml:"cache_dir"`
	// Colorize enables ANSI color on warning/error log output.
	Colorize bool `yaml:"colorize"`
	// DefaultComparison is the preferred FileComparison for build-file calls.
	// Nothing in this module reads it; engine.Builder.BuildFile always uses
	// operation.ComparisonMetadata.
	DefaultComparison operation.FileComparison `yaml:"default_comparison"`
}

// Default returns the compiled-in defaults, before any environment or file
// layering is applied.
func Default() Config {
	return Config{
		LogLevel:          "info",
		Colorize:          true,
		DefaultComparison: operation.ComparisonMetadata,
	}
}

// EnvPrefix is the prefix shared by every environment variable this package
// recognizes.
const EnvPrefix = "FILEBUILD_"

// Load resolves a Config by starting from Default, layering in a .env-style
// file at envPath (if present; a missing file is not an error), then the
// process environment, then a YAML file at yamlPath (if present; a missing
// file is not an error). Later layers win.
func Load(envPath, yamlPath string) (Config, error) {
	cfg := Default()

	if err := applyDotenv(&cfg, envPath); err != nil {
		return Config{}, err
	}
	applyEnviron(&cfg)
	if err := applyYAML(&cfg, yamlPath); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func applyDotenv(cfg *Config, path string) error {
	if path == "" {
		return nil
	}
	values, err := godotenv.Read(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.Wrap(err, "unable to read dotenv file")
	}
	applyVars(cfg, func(key string) (string, bool) {
		v, ok := values[key]
		return v, ok
	})
	return nil
}

func applyEnviron(cfg *Config) {
	applyVars(cfg, func(key string) (string, bool) {
		return os.LookupEnv(key)
	})
}

func applyVars(cfg *Config, lookup func(key string) (string, bool)) {
	if v, ok := lookup(EnvPrefix + "LOG_LEVEL"); ok && v != "" {
		cfg.LogLevel = v
	}
	if v, ok := lookup(EnvPrefix + "CACHE_DIR"); ok && v != "" {
		cfg.CacheDir = v
	}
	if v, ok := lookup(EnvPrefix + "COLORIZE"); ok && v != "" {
		cfg.Colorize = parseBool(v, cfg.Colorize)
	}
	if v, ok := lookup(EnvPrefix + "DEFAULT_COMPARISON"); ok && v != "" {
		switch operation.FileComparison(strings.ToUpper(v)) {
		case operation.ComparisonMetadata:
			cfg.DefaultComparison = operation.ComparisonMetadata
		case operation.ComparisonHash:
			cfg.DefaultComparison = operation.ComparisonHash
		}
	}
}

func parseBool(s string, fallback bool) bool {
	switch strings.ToLower(s) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func applyYAML(cfg *Config, path string) error {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.Wrap(err, "unable to read YAML configuration file")
	}

	var overlay Config
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return errors.Wrap(err, "unable to parse YAML configuration file")
	}

	if overlay.LogLevel != "" {
		cfg.LogLevel = overlay.LogLevel
	}
	if overlay.CacheDir != "" {
		cfg.CacheDir = overlay.CacheDir
	}
	if overlay.DefaultComparison != "" {
		cfg.DefaultComparison = overlay.DefaultComparison
	}
	cfg.Colorize = overlay.colorizeOr(cfg.Colorize, data)

	return nil
}

// colorizeOr returns the YAML-provided colorize value if the raw document
// actually sets the key, or fallback otherwise. yaml.v3 can't distinguish
// "absent" from "false" on a plain bool field, so this re-parses into a
// map to check key presence.
func (overlay Config) colorizeOr(fallback bool, data []byte) bool {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return fallback
	}
	if _, ok := raw["colorize"]; !ok {
		return fallback
	}
	return overlay.Colorize
}
