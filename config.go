// Copyright (c) 2026 Michael D Henderson. All rights reserved.

package dbfactory

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/mdhender/dbfactory/internal/config"
)

// BlockedPolicy selects how Delete reacts when the engine reports that
// other connections block the request.
type BlockedPolicy string

const (
	// ResumeOnBlocked fails the call with a *BlockedError whose Resume
	// continues the same request.
	ResumeOnBlocked BlockedPolicy = "resume"

	// RetryOnBlocked gives a blocked delete RetryDelay to complete and then
	// fails with ErrBlocked.
	RetryOnBlocked BlockedPolicy = "retry"
)

// Config holds factory configuration options.
type Config struct {
	// FlushDelay is the wait between closing a connection and deleting its
	// database in DeleteConn. Default: 100ms. Negative disables the wait.
	FlushDelay time.Duration `env:"DBFACTORY_FLUSH_DELAY"`

	// BlockedPolicy applies to Delete and DeleteConn. Open always uses
	// ResumeOnBlocked. Default: ResumeOnBlocked.
	BlockedPolicy BlockedPolicy `env:"DBFACTORY_BLOCKED_POLICY"`

	// RetryDelay is the grace period of RetryOnBlocked. Default: 100ms.
	RetryDelay time.Duration `env:"DBFACTORY_RETRY_DELAY"`

	// Logger for lifecycle tracing. Uses slog.Default() if nil.
	Logger *slog.Logger
}

// LoadConfig reads the DBFACTORY_* environment variables.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := config.ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.defaults().validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// defaults returns a copy of cfg with default values applied.
func (cfg Config) defaults() Config {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.FlushDelay == 0 {
		cfg.FlushDelay = 100 * time.Millisecond
	}
	if cfg.BlockedPolicy == "" {
		cfg.BlockedPolicy = ResumeOnBlocked
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = 100 * time.Millisecond
	}
	return cfg
}

func (cfg Config) validate() error {
	switch cfg.BlockedPolicy {
	case ResumeOnBlocked, RetryOnBlocked:
		return nil
	}
	return fmt.Errorf("blocked policy %q: expected %q or %q", cfg.BlockedPolicy, ResumeOnBlocked, RetryOnBlocked)
}
