package config

import (
	"strings"
	"time"

	"github.com/laekov/polarkv/internal/bytesize"
)

// Default tunables. ChunkSize and MaxJournal mirror the original
// engine's compile-time constants (32MiB chunks, 1024 journal slots);
// everything else is a reasonable choice for an embedded library with
// no caller-supplied policy.
const (
	defaultChunkSize      = 32 * bytesize.MiB
	defaultMaxJournal     = 1024
	defaultResidentBudget = 512 * bytesize.MiB
	defaultRecycleInterval = 5 * time.Second
	defaultDaemonMinInterval = 10 * time.Millisecond
	defaultDaemonMaxInterval = 1 * time.Second
)

// ApplyDefaults fills zero-valued fields of opts with the defaults
// above. Explicit values (from file, env, or flags) are preserved.
func ApplyDefaults(opts *Options) {
	applyEngineDefaults(&opts.Engine)
	applyLoggingDefaults(&opts.Logging)
	applyMetricsDefaults(&opts.Metrics)
}

func applyEngineDefaults(cfg *EngineConfig) {
	if cfg.ChunkSize == 0 {
		cfg.ChunkSize = defaultChunkSize
	}
	if cfg.MaxJournal == 0 {
		cfg.MaxJournal = defaultMaxJournal
	}
	if cfg.ResidentBudget == 0 {
		cfg.ResidentBudget = defaultResidentBudget
	}
	if cfg.RecycleInterval == 0 {
		cfg.RecycleInterval = defaultRecycleInterval
	}
	if cfg.DaemonMinInterval == 0 {
		cfg.DaemonMinInterval = defaultDaemonMinInterval
	}
	if cfg.DaemonMaxInterval == 0 {
		cfg.DaemonMaxInterval = defaultDaemonMaxInterval
	}
}

func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stderr"
	}
}

func applyMetricsDefaults(cfg *MetricsConfig) {
	if cfg.Port == 0 {
		cfg.Port = 9090
	}
}
