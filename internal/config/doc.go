// Consolesync - Console App Mirror and DSL Versioning
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/consolesync

/*
Package config provides configuration management for Consolesync.

# Configuration Sources

Configuration is layered with koanf v2, later layers overriding earlier ones:
  - Built-in defaults (defaultConfig)
  - Optional YAML file (CONFIG_PATH, config.yaml, /etc/consolesync/config.yaml)
  - Mapped environment variables

# Configuration Structure

  - DatabaseConfig: badger directory or in-memory store
  - ConsoleConfig: remote console HTTP client (timeout, page size, breaker, limiter)
  - SyncConfig: engine fan-out and DSL retention
  - NATSConfig: JetStream transport and watermill router middleware
  - ServerConfig: HTTP trigger surface
  - SecurityConfig: secret used to encrypt stored credentials
  - LoggingConfig: zerolog level, format and caller
  - Instances: remote console deployments and their accounts

Instances and accounts are only configurable from the YAML file since they are
lists of nested records.

# Environment Variables

Console client:
  - CONSOLE_TIMEOUT: per-call timeout (default: 30s)
  - CONSOLE_PAGE_SIZE: list page size (default: 100)
  - CONSOLE_REQUESTS_PER_SECOND: per-instance request limit (default: 0, unlimited)
  - CONSOLE_USER_AGENT: User-Agent header

Sync engine:
  - SYNC_CONCURRENCY: parallel (instance, account) scopes (default: 4)
  - SYNC_DSL_RETENTION: versions kept by prune-dsl (default: 0, disabled)
  - SYNC_FETCH_DETAIL: always fetch app detail (default: true)
  - SYNC_INTERVAL: scheduled full sync in serve mode, e.g. "15m" (default: 0, off)

Storage:
  - DATABASE_PATH: badger directory (default: /data/consolesync)
  - DATABASE_IN_MEMORY: use the in-memory store (default: false)

NATS:
  - NATS_ENABLED, NATS_URL, NATS_TOPIC, NATS_QUEUE_GROUP, NATS_DURABLE_NAME,
    NATS_SUBSCRIBERS, NATS_RETRY_COUNT, NATS_RETRY_INTERVAL, NATS_POISON_TOPIC,
    NATS_DEDUP_TTL, NATS_CLOSE_TIMEOUT, NATS_STREAM_NAME
  - NATS_EMBEDDED, NATS_EMBEDDED_PORT, NATS_STORE_DIR: run a JetStream server
    inside the serve process

Server and security:
  - HTTP_HOST, HTTP_PORT, RATE_LIMIT_PER_MINUTE, CORS_ORIGINS
  - SECRET_KEY: enables AES-256-GCM encryption of stored credentials

Logging:
  - LOG_LEVEL, LOG_FORMAT, LOG_CALLER

# Credential Encryption

CredentialEncryptor derives an AES-256 key from SECRET_KEY with HKDF-SHA256 and
seals account passwords and cached tokens before they reach the store.
*/
package config
