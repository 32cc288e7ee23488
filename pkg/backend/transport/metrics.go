package transport

import (
	"context"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const meterName = "github.com/fastygo/places/pkg/backend/transport"

type instruments struct {
	requests metric.Int64Counter
	duration metric.Float64Histogram
}

func newInstruments(meter metric.Meter) (*instruments, error) {
	if meter == nil {
		meter = noop.NewMeterProvider().Meter(meterName)
	}
	requests, err := meter.Int64Counter("backend.requests",
		metric.WithDescription("Backend requests issued, by service, method and status class"))
	if err != nil {
		return nil, err
	}
	duration, err := meter.Float64Histogram("backend.request.duration",
		metric.WithDescription("Backend request latency"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}
	return &instruments{requests: requests, duration: duration}, nil
}

func (i *instruments) record(ctx context.Context, service Service, method string, status int, elapsed time.Duration) {
	if i == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("service", string(service)),
		attribute.String("method", method),
		attribute.String("status_class", statusClass(status)),
	)
	i.requests.Add(ctx, 1, attrs)
	i.duration.Record(ctx, elapsed.Seconds(), attrs)
}

func statusClass(status int) string {
	if status <= 0 {
		return "error"
	}
	return strconv.Itoa(status/100) + "xx"
}
