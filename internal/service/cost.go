package service

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	cfotel "github.com/Strob0t/clawkanban/internal/adapter/otel"
	"github.com/Strob0t/clawkanban/internal/domain/cost"
	"github.com/Strob0t/clawkanban/internal/domain/task"
	"github.com/Strob0t/clawkanban/internal/domain/usage"
	"github.com/Strob0t/clawkanban/internal/port/cache"
	"github.com/Strob0t/clawkanban/internal/port/usagelog"
)

const taskCostsCacheKey = "task-costs:all"

// CostConfig tunes cost attribution.
type CostConfig struct {
	CacheTTL    time.Duration // lifetime of the tag-split mapping
	WindowLead  time.Duration // slack before the start of a task's span
	WindowTrail time.Duration // slack after the end of a task's span
}

// CostService attributes LLM usage cost to tasks. It implements two
// independent heuristics: windowed matching over a task's activity span and
// tag-split matching over sessions that mention task ids.
type CostService struct {
	source  usagelog.Source
	pricing *cost.Pricing
	cache   cache.Cache
	cfg     CostConfig
	metrics *cfotel.Metrics
	scans   singleflight.Group
}

// NewCostService creates a new CostService.
func NewCostService(source usagelog.Source, pricing *cost.Pricing, c cache.Cache, cfg CostConfig, metrics *cfotel.Metrics) *CostService {
	return &CostService{
		source:  source,
		pricing: pricing,
		cache:   c,
		cfg:     cfg,
		metrics: metrics,
	}
}

// EstimateByWindow sums the assistant usage events stamped within
// [start-lead, end+trail] of the task's activity span. It returns nil when no
// session log source exists.
func (s *CostService) EstimateByWindow(ctx context.Context, t *task.Task) (*cost.Estimate, error) {
	ctx, span := cfotel.StartScanSpan(ctx, "window")
	defer span.End()
	started := time.Now()
	defer func() { s.metrics.RecordScan(ctx, "window", time.Since(started)) }()

	sessions, err := s.source.Sessions(ctx)
	if err != nil {
		if errors.Is(err, usage.ErrNoSource) {
			return nil, nil
		}
		return nil, fmt.Errorf("estimate by window: %w", err)
	}

	first, last := t.Span()
	from := first.Add(-s.cfg.WindowLead).UnixMilli()
	to := last.Add(s.cfg.WindowTrail).UnixMilli()

	var usd float64
	est := &cost.Estimate{}
	for _, name := range sessions {
		err := s.eachLine(ctx, name, func(line []byte) {
			ev, ok := usage.ParseLine(line)
			if !ok || ev.Role != usage.RoleAssistant {
				return
			}
			if ev.Timestamp < from || ev.Timestamp > to {
				return
			}
			usd += s.pricing.Cost(ev.Model, ev.Usage)
			est.InputTokens += ev.Usage.Input + ev.Usage.CacheRead
			est.OutputTokens += ev.Usage.Output
			est.Messages++
		})
		if err != nil {
			slog.Warn("skipping unreadable session", "session", name, "error", err)
		}
	}
	est.USD = cost.RoundCents(usd)
	return est, nil
}

// TaskCostsJSON returns the encoded tag-split mapping. Within the cache TTL
// repeated calls return the same bytes; an empty mapping is never cached.
func (s *CostService) TaskCostsJSON(ctx context.Context) ([]byte, error) {
	if data, ok, err := s.cache.Get(ctx, taskCostsCacheKey); err != nil {
		slog.Warn("task cost cache get failed", "error", err)
	} else if ok {
		return data, nil
	}

	// Concurrent misses share one scan, detached from any single caller.
	v, err, _ := s.scans.Do(taskCostsCacheKey, func() (any, error) {
		scanCtx := context.WithoutCancel(ctx)
		costs, err := s.scanAllSessionCosts(scanCtx)
		if err != nil {
			return nil, err
		}
		data, err := json.Marshal(costs)
		if err != nil {
			return nil, fmt.Errorf("encode task costs: %w", err)
		}
		if len(costs) > 0 {
			if err := s.cache.Set(scanCtx, taskCostsCacheKey, data, s.cfg.CacheTTL); err != nil {
				slog.Warn("task cost cache set failed", "error", err)
			}
		}
		return data, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

// ScanAllSessionCosts returns the tag-split mapping of task id to cost,
// served from the cache when fresh.
func (s *CostService) ScanAllSessionCosts(ctx context.Context) (map[string]cost.TaskCost, error) {
	data, err := s.TaskCostsJSON(ctx)
	if err != nil {
		return nil, err
	}
	costs := make(map[string]cost.TaskCost)
	if err := json.Unmarshal(data, &costs); err != nil {
		return nil, fmt.Errorf("decode task costs: %w", err)
	}
	return costs, nil
}

// TaskCost returns the tag-split cost of one task, or the zero value when no
// session references it.
func (s *CostService) TaskCost(ctx context.Context, taskID string) (cost.TaskCost, error) {
	costs, err := s.ScanAllSessionCosts(ctx)
	if err != nil {
		return cost.TaskCost{}, err
	}
	return costs[taskID], nil
}

// scanAllSessionCosts splits every tagged session's total evenly across the
// distinct task ids it mentions and accumulates the shares per task.
func (s *CostService) scanAllSessionCosts(ctx context.Context) (map[string]cost.TaskCost, error) {
	ctx, span := cfotel.StartScanSpan(ctx, "split")
	defer span.End()
	started := time.Now()
	defer func() { s.metrics.RecordScan(ctx, "split", time.Since(started)) }()

	out := make(map[string]cost.TaskCost)
	sessions, err := s.source.Sessions(ctx)
	if err != nil {
		if errors.Is(err, usage.ErrNoSource) {
			return out, nil
		}
		return nil, fmt.Errorf("scan session costs: %w", err)
	}

	for _, name := range sessions {
		var (
			tags          usage.TagSet
			usd           float64
			input, output int64
		)
		err := s.eachLine(ctx, name, func(line []byte) {
			tags.Scan(line)
			ev, ok := usage.ParseLine(line)
			if !ok {
				return
			}
			usd += s.pricing.Cost(ev.Model, ev.Usage)
			input += ev.Usage.Input + ev.Usage.CacheRead + ev.Usage.CacheWrite
			output += ev.Usage.Output
		})
		if err != nil {
			slog.Warn("skipping unreadable session", "session", name, "error", err)
			continue
		}
		if tags.Len() == 0 {
			continue
		}
		share := cost.Share(usd, input, output, tags.Len())
		for _, id := range tags.IDs() {
			c := out[id]
			c.Add(share)
			out[id] = c
		}
	}

	for id, c := range out {
		c.Cost = cost.RoundCents(c.Cost)
		out[id] = c
	}
	return out, nil
}

// eachLine streams one session and calls fn for every non-empty line.
func (s *CostService) eachLine(ctx context.Context, session string, fn func([]byte)) error {
	rc, err := s.source.Open(ctx, session)
	if err != nil {
		return err
	}
	defer rc.Close()

	r := bufio.NewReaderSize(rc, 64<<10)
	for {
		line, err := r.ReadBytes('\n')
		if len(line) > 0 {
			if trimmed := trimEOL(line); len(trimmed) > 0 {
				fn(trimmed)
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("read session %s: %w", session, err)
		}
	}
}

func trimEOL(b []byte) []byte {
	for len(b) > 0 && (b[len(b)-1] == '\n' || b[len(b)-1] == '\r') {
		b = b[:len(b)-1]
	}
	return b
}
