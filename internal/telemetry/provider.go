package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// Provider is an in-process meter provider whose measurements are read
// on demand, for the end-of-run summary.
type Provider struct {
	mp     *sdkmetric.MeterProvider
	reader *sdkmetric.ManualReader
}

// NewProvider creates a provider with a manual reader.
func NewProvider() *Provider {
	reader := sdkmetric.NewManualReader()
	return &Provider{
		mp:     sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)),
		reader: reader,
	}
}

// MeterProvider returns the provider to create instruments on.
func (p *Provider) MeterProvider() metric.MeterProvider {
	return p.mp
}

// Shutdown flushes and stops the provider.
func (p *Provider) Shutdown(ctx context.Context) error {
	return p.mp.Shutdown(ctx)
}

// HistogramSummary aggregates every data point of a histogram.
type HistogramSummary struct {
	Count uint64
	Sum   float64
}

// Mean returns the average recorded value, or 0 with no data.
func (h HistogramSummary) Mean() float64 {
	if h.Count == 0 {
		return 0
	}
	return h.Sum / float64(h.Count)
}

// Summary is a flattened view of the collected metrics. Attributes are
// summed away.
type Summary struct {
	Counters   map[string]int64
	Histograms map[string]HistogramSummary
}

// Collect reads the current cumulative values.
func (p *Provider) Collect(ctx context.Context) (Summary, error) {
	var rm metricdata.ResourceMetrics
	if err := p.reader.Collect(ctx, &rm); err != nil {
		return Summary{}, fmt.Errorf("collect metrics: %w", err)
	}

	s := Summary{
		Counters:   make(map[string]int64),
		Histograms: make(map[string]HistogramSummary),
	}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			switch data := m.Data.(type) {
			case metricdata.Sum[int64]:
				for _, dp := range data.DataPoints {
					s.Counters[m.Name] += dp.Value
				}
			case metricdata.Histogram[float64]:
				h := s.Histograms[m.Name]
				for _, dp := range data.DataPoints {
					h.Count += dp.Count
					h.Sum += dp.Sum
				}
				s.Histograms[m.Name] = h
			}
		}
	}
	return s, nil
}
