// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config provides configuration loading for the personalization
// service: server settings, storage backend selection, telemetry, and
// the tool catalog.
//
// Thread Safety:
//
//	Load returns a fresh Config per call; the result is read-only
//	afterwards and safe to share.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/AleutianStudio/services/personalize/recommend"
	"github.com/AleutianAI/AleutianStudio/services/personalize/telemetry"
)

// MaxYAMLFileSize is the maximum allowed config file size (1MB).
const MaxYAMLFileSize = 1024 * 1024

// MaxToolsInCatalog bounds the tool catalog.
const MaxToolsInCatalog = 200

//go:embed tools.yaml
var defaultCatalogYAML []byte

// Sentinel errors for config loading.
var (
	ErrFileTooLarge   = errors.New("config file exceeds size limit")
	ErrInvalidConfig  = errors.New("invalid configuration")
	ErrCatalogTooBig  = errors.New("tool catalog exceeds limit")
	ErrEmptyCatalog   = errors.New("tool catalog is empty")
	ErrDuplicateTools = errors.New("duplicate tool ids in catalog")
)

var configValidate = validator.New()

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	// Port is the listen port.
	Port int `yaml:"port" validate:"gte=1,lte=65535"`

	// Mode is the gin mode: "debug", "release", or "test".
	Mode string `yaml:"mode" validate:"oneof=debug release test"`

	// ShutdownGraceSeconds bounds graceful shutdown.
	ShutdownGraceSeconds int `yaml:"shutdown_grace_seconds" validate:"gte=0,lte=300"`
}

// StorageConfig selects and tunes the storage backend.
type StorageConfig struct {
	// Backend is "memory" or "badger".
	Backend string `yaml:"backend" validate:"oneof=memory badger"`

	// Dir is the badger data directory. Ignored for the memory backend.
	Dir string `yaml:"dir"`

	// InMemory runs badger without disk persistence.
	InMemory bool `yaml:"in_memory"`
}

// MonitorConfig tunes the monitoring service.
type MonitorConfig struct {
	// SweepIntervalSeconds is how often the stale-model sweep runs.
	SweepIntervalSeconds int `yaml:"sweep_interval_seconds" validate:"gte=0"`

	// DriftThreshold is the KS statistic above which a feature drifts.
	DriftThreshold float64 `yaml:"drift_threshold" validate:"gte=0,lte=1"`
}

// Config is the root configuration.
type Config struct {
	Server    ServerConfig     `yaml:"server"`
	Storage   StorageConfig    `yaml:"storage"`
	Monitor   MonitorConfig    `yaml:"monitor"`
	Telemetry telemetry.Config `yaml:"telemetry"`
	Catalog   []recommend.Tool `yaml:"catalog"`
}

// SweepInterval returns the sweep interval as a duration.
func (c *Config) SweepInterval() time.Duration {
	return time.Duration(c.Monitor.SweepIntervalSeconds) * time.Second
}

// ShutdownGrace returns the shutdown grace period as a duration.
func (c *Config) ShutdownGrace() time.Duration {
	return time.Duration(c.Server.ShutdownGraceSeconds) * time.Second
}

// Default returns the development defaults, including the embedded
// tool catalog.
func Default() (*Config, error) {
	catalog, err := parseCatalog(defaultCatalogYAML)
	if err != nil {
		return nil, fmt.Errorf("embedded catalog: %w", err)
	}
	return &Config{
		Server: ServerConfig{
			Port:                 8086,
			Mode:                 "release",
			ShutdownGraceSeconds: 10,
		},
		Storage: StorageConfig{
			Backend: "memory",
		},
		Monitor: MonitorConfig{
			SweepIntervalSeconds: 60,
			DriftThreshold:       0.3,
		},
		Telemetry: telemetry.DefaultConfig(),
		Catalog:   catalog,
	}, nil
}

// Load reads configuration from an optional YAML file, applies
// environment overrides, and validates the result.
//
// Description:
//
//	Starts from Default(). A non-empty path must name a YAML file under
//	1MB; its values override the defaults, and a catalog in the file
//	replaces the embedded one entirely. Environment variables override
//	last:
//	  - PERSONALIZE_PORT: listen port
//	  - PERSONALIZE_STORAGE_BACKEND: "memory" or "badger"
//	  - PERSONALIZE_STORAGE_DIR: badger data directory
//
// Outputs:
//
//	*Config - The validated configuration.
//	error - ErrFileTooLarge, ErrInvalidConfig, or catalog errors.
func Load(path string) (*Config, error) {
	cfg, err := Default()
	if err != nil {
		return nil, err
	}

	if path != "" {
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("stat config: %w", err)
		}
		if info.Size() > MaxYAMLFileSize {
			return nil, fmt.Errorf("%w: %d bytes", ErrFileTooLarge, info.Size())
		}
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
	}

	applyEnvOverrides(cfg)

	if err := configValidate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if err := validateCatalog(cfg.Catalog); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides applies environment variables on top of file
// values.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("PERSONALIZE_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("PERSONALIZE_STORAGE_BACKEND"); v != "" {
		cfg.Storage.Backend = v
	}
	if v := os.Getenv("PERSONALIZE_STORAGE_DIR"); v != "" {
		cfg.Storage.Dir = v
	}
}

// parseCatalog decodes a YAML tool catalog.
func parseCatalog(raw []byte) ([]recommend.Tool, error) {
	var doc struct {
		Tools []recommend.Tool `yaml:"tools"`
	}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if err := validateCatalog(doc.Tools); err != nil {
		return nil, err
	}
	return doc.Tools, nil
}

// validateCatalog enforces catalog shape invariants.
func validateCatalog(tools []recommend.Tool) error {
	if len(tools) == 0 {
		return ErrEmptyCatalog
	}
	if len(tools) > MaxToolsInCatalog {
		return fmt.Errorf("%w: %d tools", ErrCatalogTooBig, len(tools))
	}
	seen := make(map[string]struct{}, len(tools))
	for _, tool := range tools {
		if tool.ID == "" {
			return fmt.Errorf("%w: tool with empty id", ErrInvalidConfig)
		}
		if _, dup := seen[tool.ID]; dup {
			return fmt.Errorf("%w: %s", ErrDuplicateTools, tool.ID)
		}
		seen[tool.ID] = struct{}{}
	}
	return nil
}
