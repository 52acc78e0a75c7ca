package middleware_test

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	mw "github.com/debnit/MsmeBazaar-sub000/middleware"
)

func setupTestMeter() (*sdkmetric.ManualReader, *sdkmetric.MeterProvider) {
	reader := sdkmetric.NewManualReader()
	return reader, sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
}

func collectMetrics(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("collect metrics: %v", err)
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

func TestMetrics_RecordsDuration(t *testing.T) {
	reader, mp := setupTestMeter()
	m := mw.MetricsWithMeter(mp.Meter("test"))

	_ = m(context.Background(), newTestJob(), func(context.Context) error { return nil })

	metric := findMetric(collectMetrics(t, reader), "escrow.job.duration")
	if metric == nil {
		t.Fatal("escrow.job.duration not recorded")
	}
	hist, ok := metric.Data.(metricdata.Histogram[float64])
	if !ok {
		t.Fatalf("data type %T, want Histogram[float64]", metric.Data)
	}
	if len(hist.DataPoints) != 1 || hist.DataPoints[0].Count != 1 {
		t.Fatalf("unexpected data points: %+v", hist.DataPoints)
	}
}

func TestMetrics_ExecutionStatus(t *testing.T) {
	tests := []struct {
		name       string
		handlerErr error
		wantStatus string
	}{
		{"success", nil, "ok"},
		{"failure", errors.New("boom"), "error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reader, mp := setupTestMeter()
			m := mw.MetricsWithMeter(mp.Meter("test"))

			err := m(context.Background(), newTestJob(), func(context.Context) error { return tt.handlerErr })
			if !errors.Is(err, tt.handlerErr) {
				t.Fatalf("middleware changed the error: %v", err)
			}

			metric := findMetric(collectMetrics(t, reader), "escrow.job.executions")
			if metric == nil {
				t.Fatal("escrow.job.executions not recorded")
			}
			sum, ok := metric.Data.(metricdata.Sum[int64])
			if !ok || len(sum.DataPoints) != 1 {
				t.Fatalf("unexpected data: %+v", metric.Data)
			}
			dp := sum.DataPoints[0]
			if dp.Value != 1 {
				t.Errorf("value = %d, want 1", dp.Value)
			}
			want := map[attribute.Key]string{
				"status":   tt.wantStatus,
				"job_type": "notify-seller-funded",
				"queue":    "notifications",
				"mode":     "broker",
			}
			for k, v := range want {
				got, ok := dp.Attributes.Value(k)
				if !ok || got.AsString() != v {
					t.Errorf("attribute %s = %q, want %q", k, got.AsString(), v)
				}
			}
		})
	}
}
