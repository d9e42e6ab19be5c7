// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SiteDesk Contributors

package main

import (
	"os"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"
)

// serveConfig holds configuration for the serve command.
type serveConfig struct {
	ListenAddr    string
	MetricsAddr   string
	LogFormat     string
	DatabaseURL   string
	Debug         bool
	SecureCookies bool
	SweepInterval time.Duration
}

// Validate checks that the configuration is usable.
func (cfg *serveConfig) Validate() error {
	if cfg.ListenAddr == "" {
		return oops.Code("CONFIG_INVALID").Errorf("listen-addr is required")
	}
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return oops.Code("CONFIG_INVALID").
			With("log_format", cfg.LogFormat).
			Errorf("log-format must be 'json' or 'text'")
	}
	if cfg.DatabaseURL == "" {
		return oops.Code("CONFIG_INVALID").
			Errorf("database URL is required (--database-url flag, config file, or DATABASE_URL)")
	}
	if cfg.SweepInterval <= 0 {
		return oops.Code("CONFIG_INVALID").Errorf("sweep-interval must be positive")
	}
	return nil
}

// loadServeConfig layers configuration sources: YAML config file first, then
// command-line flags on top (explicit flags win over file values), with the
// DATABASE_URL environment variable as the database fallback.
func loadServeConfig(flags *pflag.FlagSet, path string) (*serveConfig, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, oops.Code("CONFIG_INVALID").
				With("path", path).
				Wrap(err)
		}
	}

	if err := k.Load(posflag.Provider(flags, ".", k), nil); err != nil {
		return nil, oops.Code("CONFIG_INVALID").Wrap(err)
	}

	cfg := &serveConfig{
		ListenAddr:    k.String("listen-addr"),
		MetricsAddr:   k.String("metrics-addr"),
		LogFormat:     k.String("log-format"),
		DatabaseURL:   k.String("database-url"),
		Debug:         k.Bool("debug"),
		SecureCookies: k.Bool("secure-cookies"),
		SweepInterval: k.Duration("sweep-interval"),
	}

	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// databaseURLFromEnv resolves the database URL for one-shot commands that do
// not go through the full serve configuration.
func databaseURLFromEnv(flagValue string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	if url := os.Getenv("DATABASE_URL"); url != "" {
		return url, nil
	}
	return "", oops.Code("CONFIG_INVALID").
		Errorf("database URL is required (--database-url flag or DATABASE_URL)")
}
