// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package countdown

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/countdown/pkg/logging"
	"github.com/AleutianAI/countdown/services/countdown/engine"
	storage "github.com/AleutianAI/countdown/services/countdown/storage/badger"
	"github.com/AleutianAI/countdown/services/countdown/telemetry"
)

// Config contains all countdown configuration.
// This is the top-level config struct that can be loaded from files/env.
//
// Thread Safety: Safe to read concurrently. Not safe to modify after creation.
type Config struct {
	// Search contains engine and job settings.
	Search SearchConfig `json:"search" yaml:"search"`

	// Server contains HTTP server settings.
	Server ServerConfig `json:"server" yaml:"server"`

	// History contains search history persistence settings.
	History HistoryConfig `json:"history" yaml:"history"`

	// Observability contains logging, tracing and metrics settings.
	Observability ObservabilityConfig `json:"observability" yaml:"observability"`
}

// SearchConfig contains engine and job settings.
type SearchConfig struct {
	SliceBudget      time.Duration `json:"slice_budget" yaml:"slice_budget"`
	MaxDepth         int           `json:"max_depth" yaml:"max_depth"`
	TimeLimit        time.Duration `json:"time_limit" yaml:"time_limit"`
	MaxConcurrent    int           `json:"max_concurrent" yaml:"max_concurrent"`
	RetainFinished   int           `json:"retain_finished" yaml:"retain_finished"`
	ExpressionLimit  int           `json:"expression_limit" yaml:"expression_limit"`
	AllowSourceReuse bool          `json:"allow_source_reuse" yaml:"allow_source_reuse"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Addr            string        `json:"addr" yaml:"addr"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout" yaml:"shutdown_timeout"`

	// StreamRate caps progress frames per second on a websocket stream.
	// Solution and terminal frames are never dropped.
	StreamRate  float64 `json:"stream_rate" yaml:"stream_rate"`
	StreamBurst int     `json:"stream_burst" yaml:"stream_burst"`
}

// HistoryConfig contains search history persistence settings.
type HistoryConfig struct {
	Enabled  bool           `json:"enabled" yaml:"enabled"`
	MaxItems int            `json:"max_items" yaml:"max_items"`
	Storage  storage.Config `json:"storage" yaml:"storage"`
}

// ObservabilityConfig contains logging, tracing and metrics settings.
type ObservabilityConfig struct {
	LogLevel       string           `json:"log_level" yaml:"log_level"`
	LogDir         string           `json:"log_dir" yaml:"log_dir"`
	LogJSON        bool             `json:"log_json" yaml:"log_json"`
	TracingEnabled bool             `json:"tracing_enabled" yaml:"tracing_enabled"`
	Telemetry      telemetry.Config `json:"telemetry" yaml:"telemetry"`
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	historyPath := filepath.Join(".countdown", "history")
	if home, err := os.UserHomeDir(); err == nil {
		historyPath = filepath.Join(home, ".countdown", "history")
	}
	store := storage.DefaultConfig()
	store.Path = historyPath

	return Config{
		Search: SearchConfig{
			SliceBudget:     engine.DefaultSliceBudget,
			MaxDepth:        0,
			TimeLimit:       0,
			MaxConcurrent:   16,
			RetainFinished:  100,
			ExpressionLimit: 10000,
		},
		Server: ServerConfig{
			Addr:            ":8080",
			ShutdownTimeout: 10 * time.Second,
			StreamRate:      10,
			StreamBurst:     1,
		},
		History: HistoryConfig{
			Enabled:  true,
			MaxItems: 500,
			Storage:  store,
		},
		Observability: ObservabilityConfig{
			LogLevel:       "info",
			TracingEnabled: false,
			Telemetry:      telemetry.DefaultConfig(),
		},
	}
}

// LoadConfig loads configuration with priority: env > file > defaults.
//
// Inputs:
//   - configPath: Path to YAML/JSON config file (optional, can be empty).
//
// Outputs:
//   - Config: Merged configuration.
//   - error: Non-nil if file exists but is invalid.
func LoadConfig(configPath string) (Config, error) {
	config := DefaultConfig()

	if configPath != "" {
		if err := loadConfigFile(configPath, &config); err != nil {
			return config, fmt.Errorf("load config file: %w", err)
		}
	}

	loadConfigFromEnv(&config)

	if err := config.Validate(); err != nil {
		return config, fmt.Errorf("invalid config: %w", err)
	}

	return config, nil
}

func loadConfigFile(path string, config *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	// Try YAML first, then JSON
	if err := yaml.Unmarshal(data, config); err != nil {
		if jsonErr := json.Unmarshal(data, config); jsonErr != nil {
			return fmt.Errorf("parse config (tried YAML and JSON): YAML error: %v, JSON error: %w", err, jsonErr)
		}
	}

	return nil
}

func loadConfigFromEnv(config *Config) {
	// Search
	if v := os.Getenv("COUNTDOWN_SLICE_BUDGET"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			config.Search.SliceBudget = d
		}
	}
	if v := os.Getenv("COUNTDOWN_MAX_DEPTH"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			config.Search.MaxDepth = i
		}
	}
	if v := os.Getenv("COUNTDOWN_TIME_LIMIT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			config.Search.TimeLimit = d
		}
	}
	if v := os.Getenv("COUNTDOWN_MAX_CONCURRENT"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			config.Search.MaxConcurrent = i
		}
	}
	if v := os.Getenv("COUNTDOWN_ALLOW_SOURCE_REUSE"); v != "" {
		config.Search.AllowSourceReuse = v == "true" || v == "1"
	}

	// Server
	if v := os.Getenv("COUNTDOWN_ADDR"); v != "" {
		config.Server.Addr = v
	}
	if v := os.Getenv("COUNTDOWN_STREAM_RATE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			config.Server.StreamRate = f
		}
	}

	// History
	if v := os.Getenv("COUNTDOWN_HISTORY_ENABLED"); v != "" {
		config.History.Enabled = v == "true" || v == "1"
	}
	if v := os.Getenv("COUNTDOWN_HISTORY_PATH"); v != "" {
		config.History.Storage.Path = v
	}
	if v := os.Getenv("COUNTDOWN_HISTORY_MAX_ITEMS"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			config.History.MaxItems = i
		}
	}

	// Observability
	if v := os.Getenv("COUNTDOWN_LOG_LEVEL"); v != "" {
		config.Observability.LogLevel = v
	}
	if v := os.Getenv("COUNTDOWN_LOG_DIR"); v != "" {
		config.Observability.LogDir = v
	}
	if v := os.Getenv("COUNTDOWN_TRACING_ENABLED"); v != "" {
		config.Observability.TracingEnabled = v == "true" || v == "1"
	}
}

// Validate checks that the configuration is valid.
//
// Outputs:
//   - error: Wraps ErrInvalidConfig if any value is out of range.
func (c Config) Validate() error {
	if c.Search.SliceBudget <= 0 {
		return fmt.Errorf("%w: slice_budget must be > 0", ErrInvalidConfig)
	}
	if c.Search.MaxDepth < 0 {
		return fmt.Errorf("%w: max_depth must be >= 0", ErrInvalidConfig)
	}
	if c.Search.TimeLimit < 0 {
		return fmt.Errorf("%w: time_limit must be >= 0", ErrInvalidConfig)
	}
	if c.Search.MaxConcurrent < 1 {
		return fmt.Errorf("%w: max_concurrent must be >= 1", ErrInvalidConfig)
	}
	if c.Search.RetainFinished < 0 {
		return fmt.Errorf("%w: retain_finished must be >= 0", ErrInvalidConfig)
	}
	if c.Server.StreamRate <= 0 {
		return fmt.Errorf("%w: stream_rate must be > 0", ErrInvalidConfig)
	}
	if c.Server.StreamBurst < 1 {
		return fmt.Errorf("%w: stream_burst must be >= 1", ErrInvalidConfig)
	}
	if c.History.Enabled && !c.History.Storage.InMemory && c.History.Storage.Path == "" {
		return fmt.Errorf("%w: history storage path required", ErrInvalidConfig)
	}
	if c.History.MaxItems < 0 {
		return fmt.Errorf("%w: max_items must be >= 0", ErrInvalidConfig)
	}
	if _, err := logging.ParseLevel(c.Observability.LogLevel); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}
