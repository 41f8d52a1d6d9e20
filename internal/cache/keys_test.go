package cache

import (
	"testing"
	"time"

	"tickvault/internal/config"
)

func TestCheckpointKey(t *testing.T) {
	if got := CheckpointKey("kline_15m", "BTCUSDT"); got != "tickvault:checkpoint:kline_15m:BTCUSDT" {
		t.Fatalf("CheckpointKey = %q", got)
	}
	// Empty symbol collapses instead of leaving a dangling separator.
	if got := CheckpointKey("funding_BTCUSDT", ""); got != "tickvault:checkpoint:funding_BTCUSDT" {
		t.Fatalf("CheckpointKey without symbol = %q", got)
	}
}

func TestGapScanAndHealthKeys(t *testing.T) {
	if got := GapScanKey("kline_1h", "ETHUSDT"); got != "tickvault:gapscan:kline_1h:ETHUSDT" {
		t.Fatalf("GapScanKey = %q", got)
	}
	if got := HealthSnapshotKey(); got != "tickvault:health:persist" {
		t.Fatalf("HealthSnapshotKey = %q", got)
	}
	if got := CheckpointLockKey("kline_1h"); got != "tickvault:lock:checkpoint:kline_1h" {
		t.Fatalf("CheckpointLockKey = %q", got)
	}
}

func TestNewTTLSet(t *testing.T) {
	ttl := NewTTLSet(config.CacheTTL{Short: 10, Medium: 60, Long: 300})
	if ttl.Short != 10*time.Second || ttl.Medium != time.Minute || ttl.Long != 5*time.Minute {
		t.Fatalf("TTLSet wrong: %+v", ttl)
	}
	// Zero values fall back to defaults; negatives disable.
	ttl = NewTTLSet(config.CacheTTL{Short: 0, Medium: -1, Long: 0})
	if ttl.Short != 10*time.Second {
		t.Fatalf("Short fallback wrong: %s", ttl.Short)
	}
	if ttl.Medium != 0 {
		t.Fatalf("negative TTL should disable, got %s", ttl.Medium)
	}
}

func TestTTLHelpers(t *testing.T) {
	ttl := NewTTLSet(config.CacheTTL{Short: 10, Medium: 60, Long: 300})
	if got := CheckpointTTL(ttl); got != time.Hour {
		t.Fatalf("CheckpointTTL = %s, want 1h", got)
	}
	if got := CheckpointLockTTL(ttl); got != 5*time.Second {
		t.Fatalf("CheckpointLockTTL = %s, want 5s", got)
	}
	if got := HealthSnapshotTTL(ttl); got != 10*time.Second {
		t.Fatalf("HealthSnapshotTTL = %s, want 10s", got)
	}
}

func TestBuildKeyWithSuffix(t *testing.T) {
	if got := BuildKeyWithSuffix("tickvault:checkpoint:kline_1m", "shard2"); got != "tickvault:checkpoint:kline_1m:shard2" {
		t.Fatalf("BuildKeyWithSuffix = %q", got)
	}
	if got := BuildKeyWithSuffix("base", "  "); got != "base" {
		t.Fatalf("blank suffix should be ignored, got %q", got)
	}
}
