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
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/countdown/services/countdown/engine"
)

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, engine.DefaultSliceBudget, cfg.Search.SliceBudget)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.True(t, cfg.History.Enabled)
	assert.NotEmpty(t, cfg.History.Storage.Path)
}

func TestLoadConfig_NoFile(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Search, cfg.Search)

	cfg, err = LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 16, cfg.Search.MaxConcurrent)
}

func TestLoadConfig_YAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "countdown.yaml")
	data := `
search:
  slice_budget: 10ms
  max_depth: 6
  time_limit: 30s
server:
  addr: ":9090"
history:
  enabled: false
observability:
  log_level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 10*time.Millisecond, cfg.Search.SliceBudget)
	assert.Equal(t, 6, cfg.Search.MaxDepth)
	assert.Equal(t, 30*time.Second, cfg.Search.TimeLimit)
	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.False(t, cfg.History.Enabled)
	assert.Equal(t, "debug", cfg.Observability.LogLevel)
	assert.Equal(t, 16, cfg.Search.MaxConcurrent, "unset keys keep defaults")
}

func TestLoadConfig_JSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "countdown.json")
	data := `{"search": {"slice_budget": 5000000, "max_concurrent": 2}, "server": {"addr": ":7070"}}`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 5*time.Millisecond, cfg.Search.SliceBudget)
	assert.Equal(t, 2, cfg.Search.MaxConcurrent)
	assert.Equal(t, ":7070", cfg.Server.Addr)
}

func TestLoadConfig_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("search: [unclosed"), 0o600))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestLoadConfig_Env(t *testing.T) {
	t.Setenv("COUNTDOWN_MAX_DEPTH", "4")
	t.Setenv("COUNTDOWN_TIME_LIMIT", "2s")
	t.Setenv("COUNTDOWN_ADDR", ":6060")
	t.Setenv("COUNTDOWN_HISTORY_ENABLED", "0")
	t.Setenv("COUNTDOWN_ALLOW_SOURCE_REUSE", "true")
	t.Setenv("COUNTDOWN_LOG_LEVEL", "warn")

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.Search.MaxDepth)
	assert.Equal(t, 2*time.Second, cfg.Search.TimeLimit)
	assert.Equal(t, ":6060", cfg.Server.Addr)
	assert.False(t, cfg.History.Enabled)
	assert.True(t, cfg.Search.AllowSourceReuse)
	assert.Equal(t, "warn", cfg.Observability.LogLevel)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero slice budget", func(c *Config) { c.Search.SliceBudget = 0 }},
		{"negative depth", func(c *Config) { c.Search.MaxDepth = -1 }},
		{"negative time limit", func(c *Config) { c.Search.TimeLimit = -time.Second }},
		{"no concurrency", func(c *Config) { c.Search.MaxConcurrent = 0 }},
		{"zero stream rate", func(c *Config) { c.Server.StreamRate = 0 }},
		{"zero stream burst", func(c *Config) { c.Server.StreamBurst = 0 }},
		{"history without path", func(c *Config) { c.History.Storage.Path = "" }},
		{"bad log level", func(c *Config) { c.Observability.LogLevel = "loud" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
		})
	}
}
