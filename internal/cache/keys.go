// Package cache centralises Redis key construction and TTL policy for the
// ingestion checkpoint store. Key layout lives here so operators can grep one
// file to know what the application writes.
package cache

import (
	"fmt"
	"strings"
	"time"

	"tickvault/internal/config"
)

// Namespace is the Redis key prefix for the application.
const Namespace = "tickvault"

// TTLClass represents a config-driven TTL bucket.
type TTLClass string

const (
	TTLShort  TTLClass = "short"
	TTLMedium TTLClass = "medium"
	TTLLong   TTLClass = "long"
)

// TTLSet normalises cache TTLs from config into time.Duration values.
type TTLSet struct {
	Short  time.Duration
	Medium time.Duration
	Long   time.Duration
}

// NewTTLSet converts config TTLs (in seconds) into durations.
func NewTTLSet(cfg config.CacheTTL) TTLSet {
	return TTLSet{
		Short:  durationOrDefault(cfg.Short, 10*time.Second),
		Medium: durationOrDefault(cfg.Medium, time.Minute),
		Long:   durationOrDefault(cfg.Long, 5*time.Minute),
	}
}

func durationOrDefault(seconds int, fallback time.Duration) time.Duration {
	if seconds < 0 {
		return 0
	}
	if seconds == 0 {
		return fallback
	}
	return time.Duration(seconds) * time.Second
}

// Duration returns the configured duration for the given TTL class.
func (t TTLSet) Duration(class TTLClass) time.Duration {
	switch class {
	case TTLShort:
		return t.Short
	case TTLMedium:
		return t.Medium
	case TTLLong:
		return t.Long
	default:
		return 0
	}
}

// Scaled applies a multiplier to a TTL class.
func (t TTLSet) Scaled(class TTLClass, factor float64) time.Duration {
	base := t.Duration(class)
	if base <= 0 || factor <= 0 {
		return base
	}
	return time.Duration(float64(base) * factor)
}

func formatKey(parts ...string) string {
	values := make([]string, 0, len(parts)+1)
	values = append(values, Namespace)
	for _, part := range parts {
		clean := strings.TrimSpace(part)
		if clean == "" {
			continue
		}
		values = append(values, clean)
	}
	return strings.Join(values, ":")
}

// --- Checkpoint Keys ---------------------------------------------------------

// CheckpointKey stores the newest written timestamp per target and symbol.
// Symbol may be empty for targets without symbol scoping.
func CheckpointKey(target, symbol string) string {
	return formatKey("checkpoint", target, symbol)
}

// CheckpointLockKey guards concurrent checkpoint rewrites across processes.
func CheckpointLockKey(target string) string {
	return formatKey("lock", "checkpoint", target)
}

// --- Gap Scan Keys -----------------------------------------------------------

// GapScanKey caches the last completed gap scan window for a candle target.
func GapScanKey(target, symbol string) string {
	return formatKey("gapscan", target, symbol)
}

// --- Service Health ----------------------------------------------------------

// HealthSnapshotKey caches the last persistence health payload.
func HealthSnapshotKey() string {
	return formatKey("health", "persist")
}

// --- TTL Helpers --------------------------------------------------------------

// CheckpointTTL returns the retention for checkpoint markers. Long-lived by
// design: a checkpoint older than this is no better than none.
func CheckpointTTL(ttl TTLSet) time.Duration {
	return ttl.Scaled(TTLLong, 12) // target ~1h when long=300s
}

// CheckpointLockTTL returns the TTL for checkpoint locks.
func CheckpointLockTTL(ttl TTLSet) time.Duration {
	return ttl.Scaled(TTLShort, 0.5) // target ~5s when short=10s
}

// GapScanTTL returns the retention for gap scan markers.
func GapScanTTL(ttl TTLSet) time.Duration {
	return ttl.Duration(TTLLong)
}

// HealthSnapshotTTL returns the retention for cached health payloads.
func HealthSnapshotTTL(ttl TTLSet) time.Duration {
	return ttl.Duration(TTLShort)
}

// FormatCacheKey is exported for dynamic key construction when patterns are
// not covered by helpers.
func FormatCacheKey(parts ...string) string {
	return formatKey(parts...)
}

// BuildKeyWithSuffix appends an arbitrary suffix to an existing key.
func BuildKeyWithSuffix(baseKey, suffix string) string {
	if strings.TrimSpace(suffix) == "" {
		return baseKey
	}
	return fmt.Sprintf("%s:%s", baseKey, strings.TrimSpace(suffix))
}
