package observability

import (
	"context"
	"log"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
)

// Observability records analysis-run level measurements through OTel,
// exported via the shared Prometheus registry.
type Observability struct {
	meterProvider *metric.MeterProvider
	analysisRuns  otelmetric.Int64Counter
	runDuration   otelmetric.Float64Histogram
}

func New(serviceName string) *Observability {
	exporter, err := prometheus.New()
	if err != nil {
		log.Printf("Failed to create Prometheus exporter: %v", err)
		return &Observability{}
	}

	provider := metric.NewMeterProvider(metric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	meter := provider.Meter(serviceName)

	analysisRuns, _ := meter.Int64Counter(
		"analysis.runs",
		otelmetric.WithDescription("Number of feasibility analyses performed"),
	)

	runDuration, _ := meter.Float64Histogram(
		"analysis.duration",
		otelmetric.WithDescription("Feasibility analysis duration"),
		otelmetric.WithUnit("ms"),
	)

	return &Observability{
		meterProvider: provider,
		analysisRuns:  analysisRuns,
		runDuration:   runDuration,
	}
}

// RecordAnalysis counts one completed analysis with its confidence tier.
func (o *Observability) RecordAnalysis(ctx context.Context, confidence string) {
	if o.analysisRuns != nil {
		o.analysisRuns.Add(ctx, 1, otelmetric.WithAttributes(
			attribute.String("confidence", confidence),
		))
	}
}

// RecordDuration records how long one analysis took.
func (o *Observability) RecordDuration(ctx context.Context, duration time.Duration, outcome string) {
	if o.runDuration != nil {
		o.runDuration.Record(ctx, float64(duration.Milliseconds()), otelmetric.WithAttributes(
			attribute.String("outcome", outcome),
		))
	}
}

func (o *Observability) Shutdown() {
	if o.meterProvider != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		o.meterProvider.Shutdown(ctx)
	}
}
