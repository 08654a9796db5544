package config

import "time"

// Database connection pool settings
const (
	DBMaxOpenConns    = 25
	DBMaxIdleConns    = 5
	DBConnMaxLifetime = 5 * time.Minute
)

// HTTP server timeouts
const (
	ServerRequestTimeout  = 60 * time.Second
	ServerReadTimeout     = 15 * time.Second
	ServerIdleTimeout     = 120 * time.Second
	ServerShutdownTimeout = 30 * time.Second
)

// Database ping timeout for health checks
const DBPingTimeout = 5 * time.Second

// Outbound Plaid API call timeout. Bounded so a stuck exchange cannot
// exhaust the webhook request budget.
const PlaidClientTimeout = 30 * time.Second

// Background job intervals
const CleanupJobInterval = 5 * time.Minute

// Soft-deleted items are purged after this retention window.
const DeletedItemRetention = 90 * 24 * time.Hour

// Default rate limiting
const DefaultRateLimitPerMin = 60
