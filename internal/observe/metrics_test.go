package observe

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/runeshard/server/internal/world"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func newTestMetrics(t *testing.T) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	return rm
}

func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

func sumByAttr(t *testing.T, m *metricdata.Metrics, key, value string) int64 {
	t.Helper()
	sum, ok := m.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("%s: data is %T, want Sum[int64]", m.Name, m.Data)
	}
	for _, dp := range sum.DataPoints {
		if key == "" {
			return dp.Value
		}
		if v, ok := dp.Attributes.Value(attribute.Key(key)); ok && v.AsString() == value {
			return dp.Value
		}
	}
	return 0
}

func TestRecordSave(t *testing.T) {
	m, reader := newTestMetrics(t)

	m.RecordSave(250*time.Millisecond, 40, nil)
	m.RecordSave(time.Second, 60, nil)
	m.RecordSave(time.Second, 0, errors.New("disk full"))

	rm := collect(t, reader)
	dur := findMetric(rm, "runeshard.save.duration")
	if dur == nil {
		t.Fatal("save duration not found")
	}
	hist, ok := dur.Data.(metricdata.Histogram[float64])
	if !ok {
		t.Fatalf("data is %T", dur.Data)
	}
	if got := hist.DataPoints[0].Count; got != 2 {
		t.Errorf("save duration count = %d, want 2", got)
	}
	if got := hist.DataPoints[0].Sum; got != 1.25 {
		t.Errorf("save duration sum = %v, want 1.25", got)
	}

	ents := findMetric(rm, "runeshard.save.entities")
	if ents == nil {
		t.Fatal("save entities not found")
	}
	if got := ents.Data.(metricdata.Histogram[int64]).DataPoints[0].Sum; got != 100 {
		t.Errorf("save entities sum = %d, want 100", got)
	}

	fails := findMetric(rm, "runeshard.save.failures")
	if fails == nil {
		t.Fatal("save failures not found")
	}
	if got := sumByAttr(t, fails, "", ""); got != 1 {
		t.Errorf("save failures = %d, want 1", got)
	}
}

func TestRecordLoad(t *testing.T) {
	m, reader := newTestMetrics(t)
	m.RecordLoad(2*time.Second, 3)

	rm := collect(t, reader)
	dropped := findMetric(rm, "runeshard.load.dropped")
	if dropped == nil {
		t.Fatal("load dropped not found")
	}
	if got := sumByAttr(t, dropped, "", ""); got != 3 {
		t.Errorf("dropped = %d, want 3", got)
	}
	if findMetric(rm, "runeshard.load.duration") == nil {
		t.Error("load duration not found")
	}
}

func TestRecordMovement(t *testing.T) {
	m, reader := newTestMetrics(t)
	for range 3 {
		m.RecordMovement(true)
	}
	m.RecordMovement(false)

	checks := findMetric(collect(t, reader), "runeshard.movement.checks")
	if checks == nil {
		t.Fatal("movement checks not found")
	}
	if got := sumByAttr(t, checks, "result", "ok"); got != 3 {
		t.Errorf("ok = %d, want 3", got)
	}
	if got := sumByAttr(t, checks, "result", "blocked"); got != 1 {
		t.Errorf("blocked = %d, want 1", got)
	}
}

type fakeWorld struct {
	queries        int64
	mobiles, items int
}

func (f *fakeWorld) QueryCount() int64 { return f.queries }

func (f *fakeWorld) Count(kind world.Kind) int {
	if kind == world.KindMobile {
		return f.mobiles
	}
	return f.items
}

func TestObserveWorld(t *testing.T) {
	m, reader := newTestMetrics(t)
	fw := &fakeWorld{queries: 12, mobiles: 4, items: 9}
	if err := m.ObserveWorld(fw); err != nil {
		t.Fatalf("ObserveWorld: %v", err)
	}

	rm := collect(t, reader)
	q := findMetric(rm, "runeshard.query.count")
	if q == nil {
		t.Fatal("query count not found")
	}
	if got := sumByAttr(t, q, "", ""); got != 12 {
		t.Errorf("queries = %d, want 12", got)
	}

	fw.queries = 20
	fw.items = 10
	rm = collect(t, reader)
	if got := sumByAttr(t, findMetric(rm, "runeshard.query.count"), "", ""); got != 20 {
		t.Errorf("queries after update = %d, want 20", got)
	}

	ents := findMetric(rm, "runeshard.world.entities")
	if ents == nil {
		t.Fatal("world entities not found")
	}
	gauge, ok := ents.Data.(metricdata.Gauge[int64])
	if !ok {
		t.Fatalf("data is %T", ents.Data)
	}
	byKind := map[string]int64{}
	for _, dp := range gauge.DataPoints {
		v, _ := dp.Attributes.Value("kind")
		byKind[v.AsString()] = dp.Value
	}
	if byKind["mobile"] != 4 || byKind["item"] != 10 {
		t.Errorf("entities = %v, want mobile=4 item=10", byKind)
	}
}

func TestInitProvider(t *testing.T) {
	shutdown, err := InitProvider(context.Background(), ProviderConfig{ServiceVersion: "test"})
	if err != nil {
		t.Fatalf("InitProvider: %v", err)
	}
	if _, ok := otel.GetMeterProvider().(*sdkmetric.MeterProvider); !ok {
		t.Fatalf("global provider is %T, want *sdkmetric.MeterProvider", otel.GetMeterProvider())
	}
	if _, err := NewMetrics(otel.GetMeterProvider()); err != nil {
		t.Fatalf("NewMetrics on installed provider: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}
