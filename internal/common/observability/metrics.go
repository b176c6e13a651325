package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"

	"taas-es-processor/internal/common/logger"
)

type Observability struct {
	meterProvider   *metric.MeterProvider
	meter           otelmetric.Meter
	messageCounter  otelmetric.Int64Counter
	messageDuration otelmetric.Float64Histogram
	retryCounter    otelmetric.Int64Counter
}

// New registers an OpenTelemetry meter provider backed by the Prometheus
// exporter. On exporter failure the returned value records nothing.
func New(serviceName string, log logger.Logger) *Observability {
	exporter, err := prometheus.New()
	if err != nil {
		log.Error("Failed to create Prometheus exporter", map[string]interface{}{"error": err})
		return &Observability{}
	}

	provider := metric.NewMeterProvider(metric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	meter := provider.Meter(serviceName)

	messageCounter, _ := meter.Int64Counter(
		"messages.processed",
		otelmetric.WithDescription("Number of bus messages processed"),
	)

	messageDuration, _ := meter.Float64Histogram(
		"messages.duration",
		otelmetric.WithDescription("Message processing duration"),
		otelmetric.WithUnit("ms"),
	)

	retryCounter, _ := meter.Int64Counter(
		"messages.retries",
		otelmetric.WithDescription("Number of retry decisions by outcome"),
	)

	return &Observability{
		meterProvider:   provider,
		meter:           meter,
		messageCounter:  messageCounter,
		messageDuration: messageDuration,
		retryCounter:    retryCounter,
	}
}

func (o *Observability) RecordMessageProcessed(ctx context.Context, topic, status string) {
	if o == nil || o.messageCounter == nil {
		return
	}
	o.messageCounter.Add(ctx, 1, otelmetric.WithAttributes(
		attribute.String("topic", topic),
		attribute.String("status", status),
	))
}

func (o *Observability) RecordMessageDuration(ctx context.Context, topic string, duration time.Duration, status string) {
	if o == nil || o.messageDuration == nil {
		return
	}
	o.messageDuration.Record(ctx, float64(duration.Milliseconds()), otelmetric.WithAttributes(
		attribute.String("topic", topic),
		attribute.String("status", status),
	))
}

// RecordRetry counts a retry decision; outcome is "scheduled" or "dropped".
func (o *Observability) RecordRetry(ctx context.Context, topic, outcome string) {
	if o == nil || o.retryCounter == nil {
		return
	}
	o.retryCounter.Add(ctx, 1, otelmetric.WithAttributes(
		attribute.String("topic", topic),
		attribute.String("outcome", outcome),
	))
}

func (o *Observability) Shutdown() {
	if o == nil || o.meterProvider == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = o.meterProvider.Shutdown(ctx)
}
