// Package config loads polarkv's engine configuration from environment
// variables, a YAML file, and built-in defaults, in that descending
// order of precedence.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/laekov/polarkv/internal/bytesize"
)

// Options is the top-level engine configuration.
//
// Configuration sources, highest precedence first:
//  1. Environment variables (POLARKV_*)
//  2. Configuration file (YAML)
//  3. Default values
type Options struct {
	// Engine controls the storage engine's tunables (chunking, journal,
	// flush cadence, resident-chunk budget).
	Engine EngineConfig `mapstructure:"engine" yaml:"engine"`

	// Logging controls log output behavior.
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// Metrics configures the optional Prometheus exposition.
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
}

// EngineConfig mirrors the tunables named in the storage engine's
// component design: chunk size, journal depth, resident chunk budget,
// and the daemon's adaptive flush interval bounds.
type EngineConfig struct {
	// ChunkSize is the size of one arena chunk. Default 32MiB, matching
	// the original engine's compile-time constant.
	ChunkSize bytesize.ByteSize `mapstructure:"chunk_size" yaml:"chunk_size"`

	// MaxJournal is the number of journal slots. Default 1024.
	MaxJournal int `mapstructure:"max_journal" yaml:"max_journal"`

	// ResidentBudget is the maximum total size of chunk buffers kept
	// resident in memory at once; the recycler evicts to stay under this.
	ResidentBudget bytesize.ByteSize `mapstructure:"resident_budget" yaml:"resident_budget"`

	// RecycleInterval is how often the recycler checks the resident
	// budget against actual usage.
	RecycleInterval time.Duration `mapstructure:"recycle_interval" yaml:"recycle_interval"`

	// DaemonMinInterval and DaemonMaxInterval bound the background
	// flush daemon's adaptive polling interval.
	DaemonMinInterval time.Duration `mapstructure:"daemon_min_interval" yaml:"daemon_min_interval"`
	DaemonMaxInterval time.Duration `mapstructure:"daemon_max_interval" yaml:"daemon_max_interval"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level: DEBUG, INFO, WARN, or ERROR.
	Level string `mapstructure:"level" yaml:"level"`

	// Format is the output encoding: text or json.
	Format string `mapstructure:"format" yaml:"format"`

	// Output is stdout, stderr, or a file path.
	Output string `mapstructure:"output" yaml:"output"`
}

// MetricsConfig configures the optional engine monitor. Enabled turns it
// on, and with it the registration of its collectors in the default
// Prometheus registry; when false, no metrics are registered (zero
// overhead). No HTTP endpoint is served, and Port is not read by the
// engine or the CLI.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	Port    int  `mapstructure:"port" yaml:"port"`
}

// Load reads configuration from configPath (if non-empty), environment
// variables prefixed POLARKV_, and defaults, in that order.
func Load(configPath string) (*Options, error) {
	v := viper.New()
	setupViper(v, configPath)

	if _, err := readConfigFile(v); err != nil {
		return nil, err
	}

	// AutomaticEnv only reaches keys viper already knows about, so bind
	// each key explicitly to let POLARKV_* apply without a config file.
	for _, key := range []string{
		"engine.chunk_size", "engine.max_journal", "engine.resident_budget",
		"engine.recycle_interval", "engine.daemon_min_interval", "engine.daemon_max_interval",
		"logging.level", "logging.format", "logging.output",
		"metrics.enabled", "metrics.port",
	} {
		_ = v.BindEnv(key)
	}

	opts := &Options{}
	if err := v.Unmarshal(opts, viper.DecodeHook(decodeHooks())); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	ApplyDefaults(opts)
	return opts, nil
}

// SaveConfig writes opts to path in YAML.
func SaveConfig(opts *Options, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("config: create directory: %w", err)
	}
	data, err := yaml.Marshal(opts)
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("config: write: %w", err)
	}
	return nil
}

func setupViper(v *viper.Viper, configPath string) {
	v.SetEnvPrefix("POLARKV")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("polarkv")
		v.SetConfigType("yaml")
	}
}

func readConfigFile(v *viper.Viper) (bool, error) {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return false, nil
		}
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("config: read file: %w", err)
	}
	return true, nil
}

func decodeHooks() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		byteSizeDecodeHook(),
		durationDecodeHook(),
	)
}

func byteSizeDecodeHook() mapstructure.DecodeHookFunc {
	return func(_ reflect.Type, to reflect.Type, data any) (any, error) {
		if to != reflect.TypeOf(bytesize.ByteSize(0)) {
			return data, nil
		}
		switch v := data.(type) {
		case string:
			return bytesize.Parse(v)
		case int:
			return bytesize.ByteSize(v), nil
		case int64:
			return bytesize.ByteSize(v), nil
		case uint64:
			return bytesize.ByteSize(v), nil
		case float64:
			return bytesize.ByteSize(v), nil
		default:
			return data, nil
		}
	}
}

func durationDecodeHook() mapstructure.DecodeHookFunc {
	return func(_ reflect.Type, to reflect.Type, data any) (any, error) {
		if to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}
		switch v := data.(type) {
		case string:
			return time.ParseDuration(v)
		case int:
			return time.Duration(v), nil
		case int64:
			return time.Duration(v), nil
		case float64:
			return time.Duration(v), nil
		default:
			return data, nil
		}
	}
}
