// Package observe wires shard metrics into OpenTelemetry.
//
// Instruments are created once per [metric.MeterProvider] through
// [NewMetrics]. The returned [Metrics] satisfies the recorder interfaces of
// the persistence engine and the movement validator, so those packages never
// import the SDK directly.
package observe

import (
	"context"
	"sync"
	"time"

	"github.com/runeshard/server/internal/world"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/runeshard/server"

// Metrics holds the shard's instruments.
type Metrics struct {
	SaveDuration   metric.Float64Histogram
	SaveEntities   metric.Int64Histogram
	SaveFailures   metric.Int64Counter
	LoadDuration   metric.Float64Histogram
	LoadDropped    metric.Int64Counter
	MovementChecks metric.Int64Counter
	Ticks          metric.Int64Counter

	meter metric.Meter
}

// NewMetrics creates every instrument from mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	met := &Metrics{meter: m}
	var err error

	if met.SaveDuration, err = m.Float64Histogram("runeshard.save.duration",
		metric.WithDescription("Wall time of a world save."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30),
	); err != nil {
		return nil, err
	}
	if met.SaveEntities, err = m.Int64Histogram("runeshard.save.entities",
		metric.WithDescription("Entities written by a world save."),
		metric.WithExplicitBucketBoundaries(100, 1000, 10000, 100000, 1000000),
	); err != nil {
		return nil, err
	}
	if met.SaveFailures, err = m.Int64Counter("runeshard.save.failures",
		metric.WithDescription("World saves that did not commit."),
	); err != nil {
		return nil, err
	}
	if met.LoadDuration, err = m.Float64Histogram("runeshard.load.duration",
		metric.WithDescription("Wall time of a world load."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30),
	); err != nil {
		return nil, err
	}
	if met.LoadDropped, err = m.Int64Counter("runeshard.load.dropped",
		metric.WithDescription("Entities discarded while loading."),
	); err != nil {
		return nil, err
	}
	if met.MovementChecks, err = m.Int64Counter("runeshard.movement.checks",
		metric.WithDescription("Movement validations by result."),
	); err != nil {
		return nil, err
	}
	if met.Ticks, err = m.Int64Counter("runeshard.ticks",
		metric.WithDescription("Game loop ticks run."),
	); err != nil {
		return nil, err
	}
	return met, nil
}

var (
	defaultOnce    sync.Once
	defaultMetrics *Metrics
)

// DefaultMetrics returns metrics bound to the global meter provider. Call it
// after [InitProvider].
func DefaultMetrics() *Metrics {
	defaultOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// RecordSave records one save attempt.
func (m *Metrics) RecordSave(d time.Duration, entities int, err error) {
	ctx := context.Background()
	if err != nil {
		m.SaveFailures.Add(ctx, 1)
		return
	}
	m.SaveDuration.Record(ctx, d.Seconds())
	m.SaveEntities.Record(ctx, int64(entities))
}

// RecordLoad records one completed load.
func (m *Metrics) RecordLoad(d time.Duration, dropped int) {
	ctx := context.Background()
	m.LoadDuration.Record(ctx, d.Seconds())
	m.LoadDropped.Add(ctx, int64(dropped))
}

var (
	resultOK      = metric.WithAttributes(attribute.String("result", "ok"))
	resultBlocked = metric.WithAttributes(attribute.String("result", "blocked"))
)

// RecordMovement counts one movement check.
func (m *Metrics) RecordMovement(ok bool) {
	opt := resultBlocked
	if ok {
		opt = resultOK
	}
	m.MovementChecks.Add(context.Background(), 1, opt)
}

// RecordTick counts one game loop tick.
func (m *Metrics) RecordTick() {
	m.Ticks.Add(context.Background(), 1)
}

// WorldStats is the read side of the world the gauges sample.
type WorldStats interface {
	QueryCount() int64
	Count(kind world.Kind) int
}

// ObserveWorld registers asynchronous instruments sampling w on every
// collection.
func (m *Metrics) ObserveWorld(w WorldStats) error {
	queries, err := m.meter.Int64ObservableCounter("runeshard.query.count",
		metric.WithDescription("Sector range queries served."),
	)
	if err != nil {
		return err
	}
	entities, err := m.meter.Int64ObservableGauge("runeshard.world.entities",
		metric.WithDescription("Live entities by kind."),
	)
	if err != nil {
		return err
	}
	mobiles := metric.WithAttributes(attribute.String("kind", "mobile"))
	items := metric.WithAttributes(attribute.String("kind", "item"))
	_, err = m.meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		o.ObserveInt64(queries, w.QueryCount())
		o.ObserveInt64(entities, int64(w.Count(world.KindMobile)), mobiles)
		o.ObserveInt64(entities, int64(w.Count(world.KindItem)), items)
		return nil
	}, queries, entities)
	return err
}
