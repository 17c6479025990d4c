package otel

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "clawkanban"

// Metrics holds all board metric instruments. A nil *Metrics records nothing.
type Metrics struct {
	Settles       metric.Int64Counter
	Broadcasts    metric.Int64Counter
	Dropped       metric.Int64Counter
	CostsAttached metric.Int64Counter
	ScanDuration  metric.Float64Histogram
}

// NewMetrics creates all metric instruments on the global meter provider.
func NewMetrics() (*Metrics, error) {
	return NewMetricsWithProvider(otel.GetMeterProvider())
}

// NewMetricsWithProvider creates all metric instruments on mp.
func NewMetricsWithProvider(mp metric.MeterProvider) (*Metrics, error) {
	meter := mp.Meter(meterName)
	m := &Metrics{}
	var err error

	m.Settles, err = meter.Int64Counter("clawkanban.watcher.settles",
		metric.WithDescription("Number of debounced file settles"))
	if err != nil {
		return nil, err
	}

	m.Broadcasts, err = meter.Int64Counter("clawkanban.broadcast.events",
		metric.WithDescription("Number of events published to live subscribers"))
	if err != nil {
		return nil, err
	}

	m.Dropped, err = meter.Int64Counter("clawkanban.broadcast.dropped",
		metric.WithDescription("Number of messages dropped for slow subscribers"))
	if err != nil {
		return nil, err
	}

	m.CostsAttached, err = meter.Int64Counter("clawkanban.cost.attached",
		metric.WithDescription("Number of cost estimates attached to tasks"))
	if err != nil {
		return nil, err
	}

	m.ScanDuration, err = meter.Float64Histogram("clawkanban.cost.scan_duration_seconds",
		metric.WithDescription("Session log scan duration in seconds"))
	if err != nil {
		return nil, err
	}

	return m, nil
}

// RecordSettle counts one watcher settle.
func (m *Metrics) RecordSettle(ctx context.Context, project string) {
	if m == nil {
		return
	}
	m.Settles.Add(ctx, 1, metric.WithAttributes(attribute.String("project", project)))
}

// RecordBroadcast counts one published event.
func (m *Metrics) RecordBroadcast(ctx context.Context, event string) {
	if m == nil {
		return
	}
	m.Broadcasts.Add(ctx, 1, metric.WithAttributes(attribute.String("event", event)))
}

// RecordDropped counts one message dropped for a slow subscriber.
func (m *Metrics) RecordDropped(ctx context.Context) {
	if m == nil {
		return
	}
	m.Dropped.Add(ctx, 1)
}

// RecordCostAttached counts one cost estimate attached by source ("api" or "watcher").
func (m *Metrics) RecordCostAttached(ctx context.Context, source string) {
	if m == nil {
		return
	}
	m.CostsAttached.Add(ctx, 1, metric.WithAttributes(attribute.String("source", source)))
}

// RecordScan records the duration of a session log scan by algorithm.
func (m *Metrics) RecordScan(ctx context.Context, algorithm string, d time.Duration) {
	if m == nil {
		return
	}
	m.ScanDuration.Record(ctx, d.Seconds(), metric.WithAttributes(attribute.String("algorithm", algorithm)))
}
