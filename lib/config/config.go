// Copyright 2026 The Leapmux Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides configuration loading for Leapmux client
// binaries.
//
// Configuration is loaded from a single file specified by:
//   - LEAPMUX_CONFIG environment variable, or
//   - --config flag passed to the command
//
// There are no fallbacks or automatic discovery. The config file is
// the single source of truth; the only transformation applied is
// ${VAR} and ${VAR:-default} expansion in path and URL values.
package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/leapmux/leapmux-go/wire"
)

// Config is the master configuration for Leapmux clients.
type Config struct {
	// Hub configures how to reach the Leapmux hub.
	Hub HubConfig `yaml:"hub"`

	// Auth configures credentials.
	Auth AuthConfig `yaml:"auth"`

	// Workspace selects the default org and workspace.
	Workspace WorkspaceConfig `yaml:"workspace"`

	// Sync tunes the synchronization engine.
	Sync SyncConfig `yaml:"sync"`
}

// HubConfig configures how to reach the Leapmux hub.
type HubConfig struct {
	// URL is the hub root, e.g. "https://hub.leapmux.dev".
	URL string `yaml:"url"`

	// HandshakeTimeout bounds the WebSocket upgrade. Default: 10s.
	HandshakeTimeout string `yaml:"handshake_timeout"`
}

// AuthConfig configures credentials. At most one of Token and
// TokenFile may be set. TokenFile is re-read on every use so an
// external refresher can rotate the token without a restart.
type AuthConfig struct {
	Token     string `yaml:"token"`
	TokenFile string `yaml:"token_file"`
}

// WorkspaceConfig selects the default org and workspace.
type WorkspaceConfig struct {
	OrgID       string `yaml:"org_id"`
	WorkspaceID string `yaml:"workspace_id"`
}

// SyncConfig tunes the synchronization engine.
type SyncConfig struct {
	// PageSize is the history page size. Default: 50.
	PageSize int `yaml:"page_size"`

	// BackoffFloor and BackoffCap bound the reconnect delay.
	// Defaults: 1s and 30s.
	BackoffFloor string `yaml:"backoff_floor"`
	BackoffCap   string `yaml:"backoff_cap"`
}

// Default returns the default configuration. These defaults are a
// base for the loaded file, not a substitute for it: Hub.URL has no
// default and Validate rejects a config without one.
func Default() *Config {
	return &Config{
		Hub: HubConfig{
			HandshakeTimeout: "10s",
		},
		Sync: SyncConfig{
			PageSize:     50,
			BackoffFloor: "1s",
			BackoffCap:   "30s",
		},
	}
}

// Load loads configuration from the LEAPMUX_CONFIG environment
// variable. Fails when the variable is not set.
func Load() (*Config, error) {
	configPath := os.Getenv("LEAPMUX_CONFIG")
	if configPath == "" {
		return nil, fmt.Errorf("LEAPMUX_CONFIG environment variable not set; " +
			"set it to the path of your leapmux.yaml config file, or use --config flag")
	}
	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	cfg.expandVariables()
	return cfg, nil
}

// expandVariables expands ${VAR} patterns in path and URL values.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"HOME": os.Getenv("HOME"),
	}
	c.Hub.URL = expandVars(c.Hub.URL, vars)
	c.Auth.TokenFile = expandVars(c.Auth.TokenFile, vars)
}

// expandVars expands ${VAR} and ${VAR:-default} patterns.
var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.Hub.URL == "" {
		errs = append(errs, fmt.Errorf("hub.url is required"))
	}
	if c.Auth.Token != "" && c.Auth.TokenFile != "" {
		errs = append(errs, fmt.Errorf("auth.token and auth.token_file are mutually exclusive"))
	}
	for name, value := range map[string]string{
		"hub.handshake_timeout": c.Hub.HandshakeTimeout,
		"sync.backoff_floor":    c.Sync.BackoffFloor,
		"sync.backoff_cap":      c.Sync.BackoffCap,
	} {
		if value == "" {
			continue
		}
		if _, err := time.ParseDuration(value); err != nil {
			errs = append(errs, fmt.Errorf("%s: invalid duration %q", name, value))
		}
	}
	if c.Sync.PageSize < 0 {
		errs = append(errs, fmt.Errorf("sync.page_size must not be negative"))
	}

	return errors.Join(errs...)
}

// Duration parses a duration field, returning fallback for empty or
// invalid values.
func Duration(value string, fallback time.Duration) time.Duration {
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

// TokenSource builds the credential source described by the Auth
// section. A token file is re-read on every call; a missing or empty
// file yields an empty token, which callers treat as "not yet
// authenticated" rather than an error.
func (c *Config) TokenSource() wire.TokenSource {
	if c.Auth.TokenFile != "" {
		path := c.Auth.TokenFile
		return wire.TokenFunc(func() string {
			data, err := os.ReadFile(path)
			if err != nil {
				return ""
			}
			return strings.TrimSpace(string(data))
		})
	}
	return wire.StaticToken(c.Auth.Token)
}
