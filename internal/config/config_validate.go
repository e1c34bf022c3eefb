// Consolesync - Console App Mirror and DSL Versioning
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/consolesync

package config

import (
	"fmt"
	"strings"
)

// Validate checks that required configuration is present and valid
func (c *Config) Validate() error {
	if err := c.validateDatabase(); err != nil {
		return err
	}
	if err := c.validateConsole(); err != nil {
		return err
	}
	if err := c.validateSync(); err != nil {
		return err
	}
	if err := c.validateNATS(); err != nil {
		return err
	}
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.validateInstances(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateDatabase() error {
	if !c.Database.InMemory && c.Database.Path == "" {
		return fmt.Errorf("DATABASE_PATH is required unless DATABASE_IN_MEMORY=true")
	}
	return nil
}

func (c *Config) validateConsole() error {
	if c.Console.Timeout <= 0 {
		return fmt.Errorf("CONSOLE_TIMEOUT must be positive, got %s", c.Console.Timeout)
	}
	if c.Console.PageSize < 1 || c.Console.PageSize > 1000 {
		return fmt.Errorf("CONSOLE_PAGE_SIZE must be between 1 and 1000, got %d", c.Console.PageSize)
	}
	if c.Console.RequestsPerSecond < 0 {
		return fmt.Errorf("CONSOLE_REQUESTS_PER_SECOND must be >= 0, got %v", c.Console.RequestsPerSecond)
	}
	if c.Console.BreakerFailureRatio <= 0 || c.Console.BreakerFailureRatio > 1 {
		return fmt.Errorf("CONSOLE_BREAKER_FAILURE_RATIO must be in (0, 1], got %v", c.Console.BreakerFailureRatio)
	}
	return nil
}

func (c *Config) validateSync() error {
	if c.Sync.Concurrency < 1 {
		return fmt.Errorf("SYNC_CONCURRENCY must be at least 1, got %d", c.Sync.Concurrency)
	}
	if c.Sync.DSLRetention < 0 {
		return fmt.Errorf("SYNC_DSL_RETENTION must be >= 0, got %d", c.Sync.DSLRetention)
	}
	if c.Sync.Interval < 0 {
		return fmt.Errorf("SYNC_INTERVAL must be >= 0, got %s", c.Sync.Interval)
	}
	return nil
}

// validateNATS validates NATS configuration (only if enabled)
func (c *Config) validateNATS() error {
	if !c.NATS.Enabled {
		return nil
	}
	if err := validateNATSURL(c.NATS.URL); err != nil {
		return err
	}
	if c.NATS.Topic == "" {
		return fmt.Errorf("NATS_TOPIC is required when NATS_ENABLED=true")
	}
	if c.NATS.StreamName == "" || strings.ContainsAny(c.NATS.StreamName, ".*> \t") {
		return fmt.Errorf("NATS_STREAM_NAME %q must be non-empty without '.', '*', '>' or whitespace", c.NATS.StreamName)
	}
	if c.NATS.EmbeddedServer && c.NATS.StoreDir == "" {
		return fmt.Errorf("NATS_STORE_DIR is required when NATS_EMBEDDED=true")
	}
	if c.NATS.PoisonTopic == c.NATS.Topic {
		return fmt.Errorf("NATS_POISON_TOPIC must differ from NATS_TOPIC")
	}
	if c.NATS.SubscribersCount < 1 {
		return fmt.Errorf("NATS_SUBSCRIBERS must be at least 1, got %d", c.NATS.SubscribersCount)
	}
	if c.NATS.RetryCount < 0 {
		return fmt.Errorf("NATS_RETRY_COUNT must be >= 0, got %d", c.NATS.RetryCount)
	}
	return nil
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.RateLimitPerMinute < 0 {
		return fmt.Errorf("RATE_LIMIT_PER_MINUTE must be >= 0, got %d", c.Server.RateLimitPerMinute)
	}
	return nil
}

// validateInstances enforces http(s) base URLs and unique ids across
// instances and across all accounts.
func (c *Config) validateInstances() error {
	instanceIDs := make(map[string]struct{}, len(c.Instances))
	accountIDs := make(map[string]struct{})

	for i, inst := range c.Instances {
		field := fmt.Sprintf("instances[%d]", i)
		if inst.ID == "" {
			return fmt.Errorf("%s.id is required", field)
		}
		if _, dup := instanceIDs[inst.ID]; dup {
			return fmt.Errorf("%s.id %q is duplicated", field, inst.ID)
		}
		instanceIDs[inst.ID] = struct{}{}

		if err := validateHTTPURL(inst.URL, field+".url"); err != nil {
			return err
		}

		for j, acc := range inst.Accounts {
			accField := fmt.Sprintf("%s.accounts[%d]", field, j)
			if acc.ID == "" {
				return fmt.Errorf("%s.id is required", accField)
			}
			if _, dup := accountIDs[acc.ID]; dup {
				return fmt.Errorf("%s.id %q is duplicated", accField, acc.ID)
			}
			accountIDs[acc.ID] = struct{}{}
			if !strings.Contains(acc.Email, "@") {
				return fmt.Errorf("%s.email %q is not an email address", accField, acc.Email)
			}
			if acc.Password == "" {
				return fmt.Errorf("%s.password is required", accField)
			}
		}
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch strings.ToLower(c.Logging.Level) {
	case "trace", "debug", "info", "warn", "warning", "error", "fatal", "panic", "disabled", "":
	default:
		return fmt.Errorf("LOG_LEVEL %q is invalid", c.Logging.Level)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "json", "console", "":
	default:
		return fmt.Errorf("LOG_FORMAT must be json or console, got %q", c.Logging.Format)
	}
	return nil
}
