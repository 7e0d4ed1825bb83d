package commands

import (
	"fmt"

	"github.com/laekov/polarkv/pkg/config"
	"github.com/laekov/polarkv/pkg/kv/engine"
)

func openEngine() (*engine.Engine, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("--db is required")
	}

	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	opts := engine.DefaultOptions()
	opts.ChunkSize = int(cfg.Engine.ChunkSize)
	opts.MaxJournal = cfg.Engine.MaxJournal
	if cfg.Engine.ResidentBudget > 0 && cfg.Engine.ChunkSize > 0 {
		opts.MaxResidentChunks = int(cfg.Engine.ResidentBudget / cfg.Engine.ChunkSize)
	}
	opts.RecycleInterval = cfg.Engine.RecycleInterval
	opts.DaemonMinInterval = cfg.Engine.DaemonMinInterval
	opts.DaemonMaxInterval = cfg.Engine.DaemonMaxInterval
	opts.EnableMonitor = cfg.Metrics.Enabled

	return engine.Open(dbPath, opts)
}

func loadConfigOrDefault() *config.Options {
	cfg, err := loadConfig()
	if err != nil {
		cfg = &config.Options{}
		config.ApplyDefaults(cfg)
	}
	return cfg
}
