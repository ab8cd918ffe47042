// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 OrgCentral Contributors

// Package config loads process configuration from an optional YAML file
// overlaid with command-line flags.
package config

import (
	"os"
	"path/filepath"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/orgcentral/authcore/internal/authz"
	"github.com/orgcentral/authcore/internal/xdg"
)

// AuditConfig configures the audit logging pipeline.
type AuditConfig struct {
	// FailHard escalates audit-sink failures to request failures for
	// audit-critical deployments.
	FailHard bool `koanf:"fail_hard"`

	// WALPath is the fallback write-ahead log for entries that could not
	// reach any sink. Empty disables the WAL.
	WALPath string `koanf:"wal_path"`

	// ForwarderURL, when set, enables the HTTP forwarding sink.
	ForwarderURL   string `koanf:"forwarder_url"`
	ForwarderToken string `koanf:"forwarder_token"`

	BufferSize int `koanf:"buffer_size"`
}

// DefaultsConfig sets the classification floor and residency backfill
// applied to audit entries.
type DefaultsConfig struct {
	Classification string `koanf:"classification"`
	Residency      string `koanf:"residency"`
}

// Config is the full process configuration.
type Config struct {
	DatabaseURL string `koanf:"database_url"`
	LogFormat   string `koanf:"log_format"`
	MetricsAddr string `koanf:"metrics_addr"`

	// RegistryPath optionally overrides the built-in capability registry
	// with a YAML statements file.
	RegistryPath string `koanf:"registry_path"`

	Audit    AuditConfig    `koanf:"audit"`
	Defaults DefaultsConfig `koanf:"defaults"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		LogFormat:   "json",
		MetricsAddr: "127.0.0.1:9100",
		Audit: AuditConfig{
			WALPath:    filepath.Join(xdg.StateDir(), "audit.wal"),
			BufferSize: 1024,
		},
		Defaults: DefaultsConfig{
			Classification: authz.ClassificationOfficial.String(),
			Residency:      string(authz.ResidencyUKOnly),
		},
	}
}

// DefaultPath returns the default config file location.
func DefaultPath() string {
	return filepath.Join(xdg.ConfigDir(), "config.yaml")
}

// Load reads configuration from path (skipped when the file does not
// exist), then overlays any set flags. A missing explicit path is an error;
// only the default path may be silently absent.
func Load(path string, flags *pflag.FlagSet) (Config, error) {
	k := koanf.New(".")

	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}

	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Config{}, oops.
				Code(authz.CodeConfigInvalid).
				With("path", path).
				Wrapf(err, "parse config file")
		}
	} else if explicit {
		return Config{}, oops.
			Code(authz.CodeConfigInvalid).
			With("path", path).
			Wrapf(err, "read config file")
	}

	if flags != nil {
		if err := k.Load(posflag.Provider(flags, ".", k), nil); err != nil {
			return Config{}, oops.Code(authz.CodeConfigInvalid).Wrapf(err, "load flags")
		}
	}

	cfg := Default()
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, oops.Code(authz.CodeConfigInvalid).Wrapf(err, "unmarshal config")
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects configurations that cannot be acted on.
func (c Config) Validate() error {
	if c.LogFormat != "json" && c.LogFormat != "text" {
		return oops.
			Code(authz.CodeConfigInvalid).
			With("log_format", c.LogFormat).
			Errorf("log_format must be json or text")
	}
	if c.Audit.BufferSize <= 0 {
		return oops.
			Code(authz.CodeConfigInvalid).
			With("buffer_size", c.Audit.BufferSize).
			Errorf("audit buffer_size must be positive")
	}
	// Wrapping the parse error would surface its VALIDATION_FAILED code
	// instead of CONFIG_INVALID, so fold it into the message.
	if _, err := authz.ParseClassification(c.Defaults.Classification); err != nil {
		return oops.
			Code(authz.CodeConfigInvalid).
			With("classification", c.Defaults.Classification).
			Errorf("defaults.classification: %v", err)
	}
	if _, err := authz.ParseResidency(c.Defaults.Residency); err != nil {
		return oops.
			Code(authz.CodeConfigInvalid).
			With("residency", c.Defaults.Residency).
			Errorf("defaults.residency: %v", err)
	}
	return nil
}

// DefaultClassification parses the configured classification floor.
// Validate must have accepted the config first.
func (c Config) DefaultClassification() authz.Classification {
	parsed, err := authz.ParseClassification(c.Defaults.Classification)
	if err != nil {
		return authz.ClassificationOfficial
	}
	return parsed
}

// DefaultResidency parses the configured residency zone.
func (c Config) DefaultResidency() authz.Residency {
	parsed, err := authz.ParseResidency(c.Defaults.Residency)
	if err != nil {
		return authz.ResidencyUKOnly
	}
	return parsed
}
