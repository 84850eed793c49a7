package observability

import (
	"context"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/iamwavecut/prime"

var (
	violationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "prime_violations_total",
			Help: "Violations detected by kind",
		},
		[]string{"kind"},
	)

	sanctionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "prime_sanctions_total",
			Help: "Sanctions applied by action and failure flag",
		},
		[]string{"action", "failed"},
	)

	classificationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "prime_classification_duration_seconds",
			Help:    "Time spent in AI classification calls",
			Buckets: []float64{.25, .5, 1, 2.5, 5, 10, 20, 30, 45},
		},
		[]string{"classifier", "status"},
	)

	moderationCollectors = []prometheus.Collector{violationsTotal, sanctionsTotal, classificationDuration}
)

// RecordViolation counts a detected violation.
func RecordViolation(kind string) {
	violationsTotal.WithLabelValues(kind).Inc()
}

// RecordSanction counts an applied (or attempted) sanction.
func RecordSanction(action string, failed bool) {
	sanctionsTotal.WithLabelValues(action, strconv.FormatBool(failed)).Inc()
}

// ObserveClassification records how long an AI classification took.
func ObserveClassification(classifier, status string, started time.Time) {
	classificationDuration.WithLabelValues(classifier, status).Observe(time.Since(started).Seconds())
}

// StartSpan opens a span on the global tracer provider.
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return otel.Tracer(instrumentationName).Start(ctx, name, opts...)
}
