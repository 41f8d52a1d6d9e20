// Command probe is a one-shot connectivity diagnostic for the persistence
// service. It loads the application config, connects the ingestion adapter,
// and reports health, latest records, candle gaps, and checkpoint state for
// every planned target.
package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/zeromicro/go-zero/core/logx"
	"github.com/zeromicro/go-zero/core/stores/redis"

	"tickvault/internal/cache"
	"tickvault/internal/checkpoint"
	"tickvault/internal/cli"
	"tickvault/internal/config"
	"tickvault/pkg/ingest"
)

const probeTimeout = 60 * time.Second

func main() {
	configPath := flag.String("config", "etc/tickvault.yaml", "path to the application config")
	gapWindow := flag.Duration("gap-window", 24*time.Hour, "default lookback for candle gap scans")
	flag.Parse()

	log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds)
	log.Println("[probe] starting persistence probe...")

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("[probe] load config %s: %v", *configPath, err)
	}
	if cfg.Log.Mode != "" {
		logx.MustSetup(cfg.Log)
	}
	log.Println("[probe] configuration loaded:")
	for _, line := range cli.ConfigSummaryLines(cfg) {
		log.Printf("  - %s", line)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	var store *checkpoint.Store
	var opts []ingest.AdapterOption
	if cfg.Redis.Host != "" {
		store = checkpoint.NewStore(redis.MustNewRedis(cfg.Redis), cache.NewTTLSet(cfg.TTL))
		opts = append(opts, ingest.WithCheckpointer(store))
		log.Printf("[probe] checkpoint store enabled redis=%s", cfg.Redis.Host)
	}

	ingest.InitMetrics()
	adapter := ingest.New(cfg.Persist.AdapterConfig(), opts...)
	defer adapter.Disconnect()

	health, err := adapter.HealthCheck(ctx)
	if err != nil {
		log.Fatalf("[probe] health check failed: %v", err)
	}
	log.Printf("[probe] service health: %v", health)

	plan := cfg.Ingest.Value
	if plan == nil {
		log.Println("[probe] no ingest plan configured; done")
		return
	}

	now := time.Now().UTC()
	for _, target := range plan.Targets {
		symbol := ""
		if len(target.Symbols) > 0 {
			symbol = target.Symbols[0]
		}

		rows := adapter.QueryLatest(ctx, target.Name, symbol, 1)
		if len(rows) == 0 {
			log.Printf("[probe] target=%s symbol=%s no records", target.Name, symbol)
		} else {
			log.Printf("[probe] target=%s symbol=%s latest=%v", target.Name, symbol, rows[0])
		}

		window := *gapWindow
		if target.GapLookback > 0 {
			window = target.GapLookback
		}
		gaps := adapter.FindGaps(ctx, target.Name, now.Add(-window), now, "", symbol)
		for _, gap := range gaps {
			log.Printf("[probe] target=%s gap %s -> %s", target.Name, gap.Start.Format(time.RFC3339), gap.End.Format(time.RFC3339))
		}
		if len(gaps) == 0 {
			log.Printf("[probe] target=%s no gaps in last %s", target.Name, window)
		}

		if store != nil {
			ts, ok, err := store.LastWrite(ctx, target.Name, symbol)
			switch {
			case err != nil:
				log.Printf("[probe] target=%s checkpoint read failed: %v", target.Name, err)
			case ok:
				log.Printf("[probe] target=%s checkpoint=%s", target.Name, time.UnixMilli(ts).UTC().Format(time.RFC3339))
			default:
				log.Printf("[probe] target=%s no checkpoint", target.Name)
			}
		}
	}

	breakerStats := adapter.BreakerStats()
	log.Printf("[probe] breaker state=%s calls=%d success_rate=%.2f", breakerStats.State, breakerStats.TotalCalls, breakerStats.SuccessRate)

	errStats := adapter.Stats()
	if errStats.Total > 0 {
		log.Printf("[probe] error distribution: %v", errStats.Distribution)
	}
	log.Println("[probe] done")
}
