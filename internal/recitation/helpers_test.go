package recitation

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/amrmuhaffez/muhaffez/internal/observe"
	"github.com/amrmuhaffez/muhaffez/pkg/corpus"
)

// Line indices in testdata/sample.txt.
const (
	lineBaqarah3 = 9
	lineBaqarah4 = 10
	lineNisa58   = 11
	lineNisa59   = 12
	lineIkhlas4  = 16
)

var sampleSurahs = []corpus.Surah{
	{StartPage: 1, Name: "الفاتحة"},
	{StartPage: 2, Name: "البقرة"},
	{StartPage: 3, Name: "النساء"},
	{StartPage: 4, Name: "الإخلاص"},
}

func loadSample(t *testing.T) *corpus.Index {
	t.Helper()
	idx, err := corpus.LoadFile(filepath.Join("testdata", "sample.txt"), corpus.WithSurahs(sampleSurahs))
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	return idx
}

// testConfig shortens both timers so tests run quickly.
func testConfig() Config {
	cfg := DefaultConfig()
	cfg.FallbackDelay = 10 * time.Millisecond
	cfg.PeekDelay = 30 * time.Millisecond
	return cfg
}

func newTestMetrics(t *testing.T) (*observe.Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	m, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m, reader
}

// counter sums every data point of an int64 counter whose attribute key
// equals value. An empty key sums all points.
func counter(t *testing.T, reader *sdkmetric.ManualReader, name, key, value string) int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				t.Fatalf("%s is %T", name, m.Data)
			}
			for _, dp := range sum.DataPoints {
				if key == "" {
					total += dp.Value
					continue
				}
				if v, ok := dp.Attributes.Value(attribute.Key(key)); ok && v.AsString() == value {
					total += dp.Value
				}
			}
		}
	}
	return total
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func wordsOf(idx *corpus.Index, line int) []string {
	return idx.Line(line).Words()
}
