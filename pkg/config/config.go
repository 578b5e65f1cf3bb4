package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const DefaultFileName = "config.yaml"

// EnvPrefix marks environment overrides; "__" separates nested keys, so
// BEHAVIOR_CAPTURE__SAMPLE_RATE sets capture.sample_rate.
const EnvPrefix = "BEHAVIOR_"

const (
	DefaultCSVFileName    = "behavioral_data.csv"
	DefaultSQLiteFileName = "behavioral_data.db"
)

// Config captures the user-adjustable knobs for behavioural capture.
type Config struct {
	Paths     PathsConfig     `koanf:"paths"`
	Capture   CaptureConfig   `koanf:"capture"`
	Persist   PersistConfig   `koanf:"persist"`
	Privacy   PrivacyConfig   `koanf:"privacy"`
	Logging   LoggingConfig   `koanf:"logging"`
	Telemetry TelemetryConfig `koanf:"telemetry"`

	// Source indicates where the configuration originated (defaults or a file path).
	Source string `koanf:"-"`
}

// PathsConfig controls filesystem locations used by the CLI.
type PathsConfig struct {
	RunsDir string `koanf:"runs_dir"`
}

// CaptureConfig tunes the ingestion pipeline.
type CaptureConfig struct {
	// Source is "auto" for the platform tap or "synthetic" for the scripted generator.
	Source            string        `koanf:"source"`
	SyntheticInterval time.Duration `koanf:"synthetic_interval"`
	SampleRate        int           `koanf:"sample_rate"`
	LogCapacity       int           `koanf:"log_capacity"`
	// EvictCount of zero means half of LogCapacity.
	EvictCount      int           `koanf:"evict_count"`
	RefreshInterval time.Duration `koanf:"refresh_interval"`
}

// PersistConfig selects the durable sink.
type PersistConfig struct {
	Format         string `koanf:"format"`
	FileName       string `koanf:"file_name"`
	FlushThreshold int    `koanf:"flush_threshold"`
}

// PrivacyConfig limits what is recorded.
type PrivacyConfig struct {
	AllowApps      []string `koanf:"allow_apps"`
	DropUnknown    bool     `koanf:"drop_unknown"`
	RedactPatterns []string `koanf:"redact_patterns"`
}

// LoggingConfig defines log verbosity and formatting.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// TelemetryConfig toggles span export for a run.
type TelemetryConfig struct {
	Enabled     bool   `koanf:"enabled"`
	ServiceName string `koanf:"service_name"`
}

var knownKeys = map[string]struct{}{
	"paths.runs_dir":             {},
	"capture.source":             {},
	"capture.synthetic_interval": {},
	"capture.sample_rate":        {},
	"capture.log_capacity":       {},
	"capture.evict_count":        {},
	"capture.refresh_interval":   {},
	"persist.format":             {},
	"persist.file_name":          {},
	"persist.flush_threshold":    {},
	"privacy.allow_apps":         {},
	"privacy.drop_unknown":       {},
	"privacy.redact_patterns":    {},
	"logging.level":              {},
	"logging.format":             {},
	"telemetry.enabled":          {},
	"telemetry.service_name":     {},
}

// Default returns the baseline configuration used when no overrides are supplied.
func Default() Config {
	return Config{
		Paths: PathsConfig{
			RunsDir: "runs",
		},
		Capture: CaptureConfig{
			Source:            "auto",
			SyntheticInterval: 20 * time.Millisecond,
			SampleRate:        3,
			LogCapacity:       50000,
			EvictCount:        0,
			RefreshInterval:   500 * time.Millisecond,
		},
		Persist: PersistConfig{
			Format:         "csv",
			FileName:       DefaultCSVFileName,
			FlushThreshold: 100,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Telemetry: TelemetryConfig{
			Enabled:     false,
			ServiceName: "behavioral-capture",
		},
		Source: "<defaults>",
	}
}

// Load layers a YAML file and BEHAVIOR_* environment variables over the
// defaults. When path is empty, the loader attempts to read ./config.yaml but
// tolerates a missing file.
func Load(path string) (Config, error) {
	cfg := Default()

	candidate := strings.TrimSpace(path)
	explicit := candidate != ""
	if !explicit {
		candidate = DefaultFileName
	}

	k := koanf.New(".")
	source := cfg.Source
	if err := k.Load(file.Provider(candidate), yaml.Parser()); err != nil {
		if !os.IsNotExist(err) {
			return cfg, fmt.Errorf("load config file %q: %w", candidate, err)
		}
		if explicit {
			return cfg, fmt.Errorf("config file %q not found", candidate)
		}
	} else {
		source = candidate
	}
	if unknown := unknownKeys(k.Keys()); len(unknown) > 0 {
		return cfg, fmt.Errorf("unknown config key(s) in %s: %s", candidate, strings.Join(unknown, ", "))
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return cfg, fmt.Errorf("load environment overrides: %w", err)
	}

	if err := k.Unmarshal("", &cfg); err != nil {
		return cfg, fmt.Errorf("decode config: %w", err)
	}
	cfg.Source = source
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}

	return cfg, nil
}

// envKey maps BEHAVIOR_CAPTURE__SAMPLE_RATE to capture.sample_rate. Variables
// that do not name a config key are ignored.
func envKey(name string) string {
	key := strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(name, EnvPrefix)), "__", ".")
	if _, ok := knownKeys[key]; !ok {
		return ""
	}
	return key
}

func unknownKeys(keys []string) []string {
	var unknown []string
	for _, key := range keys {
		if _, ok := knownKeys[key]; !ok {
			unknown = append(unknown, key)
		}
	}
	sort.Strings(unknown)
	return unknown
}

// Validate ensures essential configuration values are present and sensible.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Paths.RunsDir) == "" {
		return errors.New("paths.runs_dir must not be empty")
	}

	if _, err := NormalizeLogLevel(c.Logging.Level); err != nil {
		return err
	}
	if _, err := NormalizeFormat(c.Logging.Format); err != nil {
		return err
	}

	switch c.Capture.Source {
	case "auto", "synthetic":
	default:
		return fmt.Errorf("capture.source must be auto or synthetic, got %q", c.Capture.Source)
	}
	if c.Capture.SyntheticInterval <= 0 {
		return errors.New("capture.synthetic_interval must be positive")
	}
	if c.Capture.SampleRate < 1 {
		return errors.New("capture.sample_rate must be at least 1")
	}
	if c.Capture.LogCapacity <= 0 {
		return errors.New("capture.log_capacity must be positive")
	}
	if c.Capture.EvictCount < 0 || c.Capture.EvictCount > c.Capture.LogCapacity {
		return errors.New("capture.evict_count must be between 0 and capture.log_capacity")
	}
	if c.Capture.RefreshInterval <= 0 {
		return errors.New("capture.refresh_interval must be positive")
	}

	switch c.Persist.Format {
	case "csv", "sqlite":
	default:
		return fmt.Errorf("persist.format must be csv or sqlite, got %q", c.Persist.Format)
	}
	if strings.TrimSpace(c.Persist.FileName) == "" {
		return errors.New("persist.file_name must not be empty")
	}
	if strings.ContainsAny(c.Persist.FileName, `/\`) {
		return errors.New("persist.file_name must be a bare file name")
	}
	if c.Persist.FlushThreshold <= 0 {
		return errors.New("persist.flush_threshold must be positive")
	}

	if c.Telemetry.Enabled && strings.TrimSpace(c.Telemetry.ServiceName) == "" {
		return errors.New("telemetry.service_name must not be empty when telemetry is enabled")
	}

	return nil
}

// EffectiveEvictCount resolves the zero default against the capacity.
func (c CaptureConfig) EffectiveEvictCount() int {
	if c.EvictCount > 0 {
		return c.EvictCount
	}
	if half := c.LogCapacity / 2; half > 0 {
		return half
	}
	return 1
}

func (c *Config) normalize() {
	defaults := Default()

	c.Paths.RunsDir = filepath.Clean(strings.TrimSpace(c.Paths.RunsDir))
	if c.Paths.RunsDir == "." || c.Paths.RunsDir == "" {
		c.Paths.RunsDir = defaults.Paths.RunsDir
	}

	if level, err := NormalizeLogLevel(c.Logging.Level); err == nil {
		c.Logging.Level = level
	}
	if format, err := NormalizeFormat(c.Logging.Format); err == nil {
		c.Logging.Format = format
	}

	c.Capture.Source = strings.ToLower(strings.TrimSpace(c.Capture.Source))
	if c.Capture.Source == "" {
		c.Capture.Source = defaults.Capture.Source
	}
	if c.Capture.SyntheticInterval <= 0 {
		c.Capture.SyntheticInterval = defaults.Capture.SyntheticInterval
	}
	if c.Capture.SampleRate == 0 {
		c.Capture.SampleRate = defaults.Capture.SampleRate
	}
	if c.Capture.LogCapacity == 0 {
		c.Capture.LogCapacity = defaults.Capture.LogCapacity
	}
	if c.Capture.RefreshInterval <= 0 {
		c.Capture.RefreshInterval = defaults.Capture.RefreshInterval
	}

	c.Persist.Format = strings.ToLower(strings.TrimSpace(c.Persist.Format))
	switch c.Persist.Format {
	case "":
		c.Persist.Format = defaults.Persist.Format
	case "sqlite3", "db":
		c.Persist.Format = "sqlite"
	}
	c.Persist.FileName = strings.TrimSpace(c.Persist.FileName)
	if c.Persist.FileName == "" {
		c.Persist.FileName = DefaultCSVFileName
	}
	if c.Persist.Format == "sqlite" && c.Persist.FileName == DefaultCSVFileName {
		c.Persist.FileName = DefaultSQLiteFileName
	}
	if c.Persist.FlushThreshold == 0 {
		c.Persist.FlushThreshold = defaults.Persist.FlushThreshold
	}

	c.Privacy.AllowApps = splitList(c.Privacy.AllowApps)
	c.Privacy.RedactPatterns = splitList(c.Privacy.RedactPatterns)

	c.Telemetry.ServiceName = strings.TrimSpace(c.Telemetry.ServiceName)
	if c.Telemetry.ServiceName == "" {
		c.Telemetry.ServiceName = defaults.Telemetry.ServiceName
	}
}

// splitList trims entries and expands comma-joined values, which is how list
// keys arrive from environment overrides.
func splitList(values []string) []string {
	var out []string
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				out = append(out, trimmed)
			}
		}
	}
	return out
}

// NormalizeLogLevel validates and lowercases known logging levels.
func NormalizeLogLevel(level string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "", "info":
		return "info", nil
	case "debug":
		return "debug", nil
	case "warn", "warning":
		return "warn", nil
	case "error":
		return "error", nil
	default:
		return "", fmt.Errorf("unsupported log level %q", level)
	}
}

// NormalizeFormat validates and canonicalizes logging format identifiers.
func NormalizeFormat(format string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "json":
		return "json", nil
	case "console", "text":
		return "console", nil
	default:
		return "", fmt.Errorf("unsupported log format %q", format)
	}
}
