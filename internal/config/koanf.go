// Consolesync - Console App Mirror and DSL Versioning
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/consolesync

package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in order of priority.
// The first file found will be used.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/consolesync/config.yaml",
	"/etc/consolesync/config.yml",
}

// ConfigPathEnvVar is the environment variable that can override the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns a Config struct with all default values.
// These defaults are applied first, then overridden by config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path:     "/data/consolesync",
			InMemory: false,
		},
		Console: ConsoleConfig{
			Timeout:             30 * time.Second,
			PageSize:            100,
			RequestsPerSecond:   0,
			UserAgent:           "consolesync/1.0",
			BreakerFailureRatio: 0.6,
			BreakerMinRequests:  5,
			BreakerTimeout:      60 * time.Second,
			BreakerInterval:     2 * time.Minute,
		},
		Sync: SyncConfig{
			Concurrency:  4,
			DSLRetention: 0,
			FetchDetail:  true,
		},
		NATS: NATSConfig{
			Enabled:              false,
			URL:                  "nats://127.0.0.1:4222",
			Topic:                "consolesync.sync",
			StreamName:           "CONSOLESYNC",
			QueueGroup:           "consolesync-workers",
			DurableName:          "consolesync-sync",
			SubscribersCount:     1,
			RetryCount:           3,
			RetryInitialInterval: time.Second,
			PoisonTopic:          "consolesync.sync.poison",
			DedupTTL:             5 * time.Minute,
			CloseTimeout:         30 * time.Second,
			EmbeddedServer:       false,
			EmbeddedPort:         4222,
			StoreDir:             "/data/consolesync-nats",
		},
		Server: ServerConfig{
			Host:               "0.0.0.0",
			Port:               8085,
			RateLimitPerMinute: 60,
			CORSOrigins:        []string{},
			ShutdownTimeout:    15 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// LoadWithKoanf loads configuration using Koanf v2 with layered sources:
//  1. Defaults: Built-in defaults
//  2. Config File: Optional YAML config file (if exists)
//  3. Environment Variables: Override any mapped setting
func LoadWithKoanf() (*Config, error) {
	return load(findConfigFile())
}

// LoadFile loads configuration from an explicit YAML file path plus env overrides.
func LoadFile(path string) (*Config, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}
	return load(path)
}

func load(configPath string) (*Config, error) {
	k := koanf.New(".")

	// Layer 1: Load defaults from struct
	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// Layer 2: Load config file (optional)
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// Layer 3: Load environment variables (highest priority)
	// CONSOLE_TIMEOUT -> console.timeout
	envProvider := env.Provider("", ".", envTransformFunc)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile searches for a config file in the default paths.
// Returns the path to the first file found, or empty string if none found.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// sliceConfigPaths defines which config paths should be parsed as comma-separated slices
var sliceConfigPaths = []string{
	"server.cors_origins",
}

// processSliceFields converts comma-separated string values to slices for known slice fields.
// Env vars come in as strings, but the config expects slices.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		strVal, ok := k.Get(path).(string)
		if !ok || strVal == "" {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if err := k.Set(path, trimmed); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

// envMappings maps environment variable names (lower-cased) to koanf paths.
var envMappings = map[string]string{
	// Database
	"database_path":      "database.path",
	"database_in_memory": "database.in_memory",

	// Console client
	"console_timeout":               "console.timeout",
	"console_page_size":             "console.page_size",
	"console_requests_per_second":   "console.requests_per_second",
	"console_user_agent":            "console.user_agent",
	"console_breaker_failure_ratio": "console.breaker_failure_ratio",
	"console_breaker_min_requests":  "console.breaker_min_requests",
	"console_breaker_timeout":       "console.breaker_timeout",
	"console_breaker_interval":      "console.breaker_interval",

	// Sync engine
	"sync_concurrency":   "sync.concurrency",
	"sync_dsl_retention": "sync.dsl_retention",
	"sync_fetch_detail":  "sync.fetch_detail",
	"sync_interval":      "sync.interval",

	// NATS
	"nats_enabled":        "nats.enabled",
	"nats_url":            "nats.url",
	"nats_topic":          "nats.topic",
	"nats_queue_group":    "nats.queue_group",
	"nats_durable_name":   "nats.durable_name",
	"nats_subscribers":    "nats.subscribers_count",
	"nats_retry_count":    "nats.retry_count",
	"nats_retry_interval": "nats.retry_initial_interval",
	"nats_poison_topic":   "nats.poison_topic",
	"nats_dedup_ttl":      "nats.dedup_ttl",
	"nats_close_timeout":  "nats.close_timeout",
	"nats_stream_name":    "nats.stream_name",
	"nats_embedded":       "nats.embedded_server",
	"nats_embedded_port":  "nats.embedded_port",
	"nats_store_dir":      "nats.store_dir",

	// Server
	"http_host":             "server.host",
	"http_port":             "server.port",
	"rate_limit_per_minute": "server.rate_limit_per_minute",
	"cors_origins":          "server.cors_origins",
	"shutdown_timeout":      "server.shutdown_timeout",

	// Security
	"secret_key": "security.secret_key",

	// Logging
	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",
}

// envTransformFunc transforms environment variable names to koanf config paths.
// Unmapped keys return "" so random environment variables never pollute config.
func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}

func joinHostPort(host string, port int) string {
	return net.JoinHostPort(host, strconv.Itoa(port))
}
