package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Validate checks Config for production-critical problems.
// It collects all errors into a single joined error.
func (c *Config) Validate() error {
	var errs []string

	if len(c.JWT.AccessSecret) < 32 {
		errs = append(errs, "JWT_ACCESS_SECRET must be at least 32 characters")
	}

	if c.DB.Password == "" {
		errs = append(errs, "DB_PASSWORD is required")
	}

	// Port ranges
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("SERVER_PORT must be 1–65535, got %d", c.Server.Port))
	}
	if c.DB.Port < 1 || c.DB.Port > 65535 {
		errs = append(errs, fmt.Sprintf("DB_PORT must be 1–65535, got %d", c.DB.Port))
	}
	if c.Redis.Port < 1 || c.Redis.Port > 65535 {
		errs = append(errs, fmt.Sprintf("REDIS_PORT must be 1–65535, got %d", c.Redis.Port))
	}

	if c.DB.MinConns < 0 || c.DB.MinConns > c.DB.MaxConns {
		errs = append(errs, fmt.Sprintf("DB_MIN_CONNS must be between 0 and DB_MAX_CONNS (%d), got %d", c.DB.MaxConns, c.DB.MinConns))
	}
	if c.NATS.NotificationMaxAge < time.Minute {
		errs = append(errs, "NATS_NOTIFICATION_MAX_AGE must be at least 1m")
	}

	// Quotas
	g := c.Governance
	if g.FreeMessageLimit < 0 {
		errs = append(errs, "GOVERNANCE_FREE_MESSAGE_LIMIT must not be negative")
	}
	if g.FreeTokenQuota < 0 {
		errs = append(errs, "GOVERNANCE_FREE_TOKEN_QUOTA must not be negative")
	}
	if g.FreeImageLimit < 0 {
		errs = append(errs, "GOVERNANCE_FREE_IMAGE_LIMIT must not be negative")
	}
	if g.FreeTranscribeLimit < 0 {
		errs = append(errs, "GOVERNANCE_FREE_TRANSCRIBE_LIMIT must not be negative")
	}
	if g.ProCostCapCents != nil && *g.ProCostCapCents < 0 {
		errs = append(errs, "GOVERNANCE_PRO_COST_CAP_CENTS must not be negative")
	}
	if g.ProImageLimit != nil && *g.ProImageLimit < 0 {
		errs = append(errs, "GOVERNANCE_PRO_IMAGE_LIMIT must not be negative")
	}
	if g.ProTranscribeLimit != nil && *g.ProTranscribeLimit < 0 {
		errs = append(errs, "GOVERNANCE_PRO_TRANSCRIBE_LIMIT must not be negative")
	}

	// Retention
	if c.Retention.Workers < 1 {
		errs = append(errs, fmt.Sprintf("RETENTION_WORKERS must be at least 1, got %d", c.Retention.Workers))
	}
	if c.Retention.Interval <= 0 {
		errs = append(errs, "RETENTION_INTERVAL must be positive")
	}
	if c.Retention.ManualMaxRequests < 1 {
		errs = append(errs, "RETENTION_MANUAL_MAX_REQUESTS must be at least 1")
	}
	if c.Retention.ManualWindow < time.Second {
		errs = append(errs, "RETENTION_MANUAL_WINDOW must be at least 1s")
	}

	if len(errs) > 0 {
		return errors.New("config validation failed:\n  " + strings.Join(errs, "\n  "))
	}
	return nil
}
