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

// Receipt polling: bounded exponential backoff, then RECEIPT_TIMEOUT.
const (
	ReceiptMaxPolls    = 8
	ReceiptBackoffBase = 500 * time.Millisecond
	ReceiptBackoffMax  = 8 * time.Second
)

// Deadline for the optional identity/name lookup; on expiry the answer is
// "unknown" and processing continues with degraded information.
const IdentityLookupTimeout = 3 * time.Second

// Cache TTL for agent identity lookups
const IdentityCacheTTL = 5 * time.Minute

// Default rate limiting
const DefaultRateLimitPerMin = 60
