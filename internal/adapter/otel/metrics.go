package otel

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "humancheck"

// Metrics holds all humancheck metric instruments.
type Metrics struct {
	ReviewsCreated    metric.Int64Counter
	DecisionsRecorded metric.Int64Counter
	DeliveriesSent    metric.Int64Counter
	DeliveriesFailed  metric.Int64Counter
	DeliveryDuration  metric.Float64Histogram
	DecisionLatency   metric.Float64Histogram
}

// NewMetrics creates all metric instruments.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)
	m := &Metrics{}
	var err error

	m.ReviewsCreated, err = meter.Int64Counter("humancheck.reviews.created",
		metric.WithDescription("Number of reviews created"))
	if err != nil {
		return nil, err
	}

	m.DecisionsRecorded, err = meter.Int64Counter("humancheck.decisions.recorded",
		metric.WithDescription("Number of decisions recorded"))
	if err != nil {
		return nil, err
	}

	m.DeliveriesSent, err = meter.Int64Counter("humancheck.deliveries.sent",
		metric.WithDescription("Number of notification deliveries sent"))
	if err != nil {
		return nil, err
	}

	m.DeliveriesFailed, err = meter.Int64Counter("humancheck.deliveries.failed",
		metric.WithDescription("Number of notification deliveries failed"))
	if err != nil {
		return nil, err
	}

	m.DeliveryDuration, err = meter.Float64Histogram("humancheck.delivery.duration_seconds",
		metric.WithDescription("Delivery attempt duration in seconds"))
	if err != nil {
		return nil, err
	}

	m.DecisionLatency, err = meter.Float64Histogram("humancheck.decision.latency_seconds",
		metric.WithDescription("Time from review creation to decision in seconds"))
	if err != nil {
		return nil, err
	}

	return m, nil
}
