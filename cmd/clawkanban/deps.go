package main

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/Strob0t/clawkanban/internal/adapter/filestore"
	cfnats "github.com/Strob0t/clawkanban/internal/adapter/nats"
	"github.com/Strob0t/clawkanban/internal/adapter/natskv"
	cfotel "github.com/Strob0t/clawkanban/internal/adapter/otel"
	"github.com/Strob0t/clawkanban/internal/adapter/ristretto"
	"github.com/Strob0t/clawkanban/internal/adapter/sessionlog"
	"github.com/Strob0t/clawkanban/internal/adapter/tiered"
	"github.com/Strob0t/clawkanban/internal/config"
	"github.com/Strob0t/clawkanban/internal/domain/cost"
	"github.com/Strob0t/clawkanban/internal/port/cache"
	"github.com/Strob0t/clawkanban/internal/resilience"
	"github.com/Strob0t/clawkanban/internal/service"
)

// sharedL1Expire bounds how long a mapping fetched from the shared cache is
// served from process memory.
const sharedL1Expire = 5 * time.Second

// core holds the components shared by the server and the admin commands.
type core struct {
	store *filestore.Store
	l1    *ristretto.Cache
	costs *service.CostService
}

func (c *core) Close() { c.l1.Close() }

// newCore opens the task store, the session log source and the cost cache.
// With a NATS queue and a configured bucket the cost cache is tiered over a
// JetStream KV bucket so every process shares one scan per TTL.
func newCore(ctx context.Context, cfg *config.Config, queue *cfnats.Queue, metrics *cfotel.Metrics) (*core, error) {
	root, err := filepath.Abs(cfg.Data.Root)
	if err != nil {
		return nil, fmt.Errorf("data root: %w", err)
	}
	store, err := filestore.New(root)
	if err != nil {
		return nil, err
	}
	l1, err := ristretto.New(cfg.Cost.CacheMaxBytes)
	if err != nil {
		return nil, fmt.Errorf("cost cache: %w", err)
	}

	var costCache cache.Cache = l1
	if queue != nil && cfg.NATS.CacheBucket != "" {
		l2, err := natskv.Open(ctx, queue.JetStream(), cfg.NATS.CacheBucket, cfg.Cost.CacheTTL)
		if err != nil {
			slog.Warn("shared cost cache unavailable", "bucket", cfg.NATS.CacheBucket, "error", err)
		} else {
			breaker := resilience.NewBreaker(3, 30*time.Second, resilience.OnStateChange(func(from, to resilience.State) {
				slog.Warn("shared cost cache breaker", "from", from.String(), "to", to.String())
			}))
			costCache = tiered.New(l1, l2, min(sharedL1Expire, cfg.Cost.CacheTTL), breaker)
			slog.Info("shared cost cache enabled", "bucket", cfg.NATS.CacheBucket)
		}
	}

	costs := service.NewCostService(
		sessionlog.New(cfg.Sessions.Dir),
		pricing(cfg.Cost),
		costCache,
		service.CostConfig{
			CacheTTL:    cfg.Cost.CacheTTL,
			WindowLead:  cfg.Cost.WindowLead,
			WindowTrail: cfg.Cost.WindowTrail,
		},
		metrics,
	)
	return &core{store: store, l1: l1, costs: costs}, nil
}

// connectNATS dials the optional broker. A missing URL or an unreachable
// server yields nil: everything that uses NATS degrades to local-only.
func connectNATS(ctx context.Context, cfg config.NATS) *cfnats.Queue {
	if cfg.URL == "" {
		return nil
	}
	queue, err := cfnats.Connect(ctx, cfg.URL, cfg.SubjectPrefix)
	if err != nil {
		slog.Warn("nats unavailable, continuing without it", "url", cfg.URL, "error", err)
		return nil
	}
	return queue
}

// pricing merges the configured per-model rates over the built-in table.
func pricing(cfg config.Cost) *cost.Pricing {
	overrides := make(map[string]cost.Rates, len(cfg.Pricing))
	for model, r := range cfg.Pricing {
		overrides[model] = cost.Rates{
			Input:      r.Input,
			Output:     r.Output,
			CacheRead:  r.CacheRead,
			CacheWrite: r.CacheWrite,
		}
	}
	return cost.NewPricing(overrides)
}
