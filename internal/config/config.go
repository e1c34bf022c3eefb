// Consolesync - Console App Mirror and DSL Versioning
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/consolesync

package config

import "time"

// Config holds all application configuration.
type Config struct {
	Database  DatabaseConfig   `koanf:"database"`
	Console   ConsoleConfig    `koanf:"console"`
	Sync      SyncConfig       `koanf:"sync"`
	NATS      NATSConfig       `koanf:"nats"`
	Server    ServerConfig     `koanf:"server"`
	Security  SecurityConfig   `koanf:"security"`
	Logging   LoggingConfig    `koanf:"logging"`
	Instances []InstanceConfig `koanf:"instances"`
}

// DatabaseConfig selects the store backend.
type DatabaseConfig struct {
	Path     string `koanf:"path"`
	InMemory bool   `koanf:"in_memory"`
}

// ConsoleConfig configures the remote console HTTP client.
type ConsoleConfig struct {
	Timeout           time.Duration `koanf:"timeout"`
	PageSize          int           `koanf:"page_size"`
	RequestsPerSecond float64       `koanf:"requests_per_second"` // 0 = unlimited
	UserAgent         string        `koanf:"user_agent"`

	// Circuit breaker (per instance). Only InstanceUnavailable errors count as failures.
	BreakerFailureRatio float64       `koanf:"breaker_failure_ratio"`
	BreakerMinRequests  uint32        `koanf:"breaker_min_requests"`
	BreakerTimeout      time.Duration `koanf:"breaker_timeout"`
	BreakerInterval     time.Duration `koanf:"breaker_interval"`
}

// SyncConfig configures the sync engine.
type SyncConfig struct {
	Concurrency  int           `koanf:"concurrency"`
	DSLRetention int           `koanf:"dsl_retention"` // 0 = prune disabled
	FetchDetail  bool          `koanf:"fetch_detail"`
	Interval     time.Duration `koanf:"interval"` // serve mode only; 0 = no scheduled runs
}

// NATSConfig configures the queued sync transport.
type NATSConfig struct {
	Enabled              bool          `koanf:"enabled"`
	URL                  string        `koanf:"url"`
	Topic                string        `koanf:"topic"`
	StreamName           string        `koanf:"stream_name"` // JetStream stream holding Topic and PoisonTopic
	QueueGroup           string        `koanf:"queue_group"`
	DurableName          string        `koanf:"durable_name"`
	SubscribersCount     int           `koanf:"subscribers_count"`
	RetryCount           int           `koanf:"retry_count"`
	RetryInitialInterval time.Duration `koanf:"retry_initial_interval"`
	PoisonTopic          string        `koanf:"poison_topic"` // empty disables the poison queue
	DedupTTL             time.Duration `koanf:"dedup_ttl"`    // 0 disables deduplication
	CloseTimeout         time.Duration `koanf:"close_timeout"`

	// Embedded server (serve mode only)
	EmbeddedServer bool   `koanf:"embedded_server"`
	EmbeddedPort   int    `koanf:"embedded_port"`
	StoreDir       string `koanf:"store_dir"`
}

// ServerConfig configures the HTTP trigger surface.
type ServerConfig struct {
	Host               string        `koanf:"host"`
	Port               int           `koanf:"port"`
	RateLimitPerMinute int           `koanf:"rate_limit_per_minute"` // 0 disables
	CORSOrigins        []string      `koanf:"cors_origins"`
	ShutdownTimeout    time.Duration `koanf:"shutdown_timeout"`
}

// SecurityConfig holds secrets for data at rest.
type SecurityConfig struct {
	SecretKey string `koanf:"secret_key"`
}

// LoggingConfig configures zerolog.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// InstanceConfig is a remote console deployment registered on startup.
type InstanceConfig struct {
	ID       string          `koanf:"id"`
	Name     string          `koanf:"name"`
	URL      string          `koanf:"url"`
	Enabled  bool            `koanf:"enabled"`
	Accounts []AccountConfig `koanf:"accounts"`
}

// AccountConfig holds the login credentials of one account.
type AccountConfig struct {
	ID       string `koanf:"id"`
	Email    string `koanf:"email"`
	Password string `koanf:"password"`
	Enabled  bool   `koanf:"enabled"`
}

// Addr returns the HTTP listen address.
func (s ServerConfig) Addr() string {
	return joinHostPort(s.Host, s.Port)
}
