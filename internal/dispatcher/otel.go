package dispatcher

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/dronelab/swarmsim/internal/dispatcher"

type metrics struct {
	processed metric.Int64Counter
	failed    metric.Int64Counter
	dropped   metric.Int64Counter
	latency   metric.Float64Histogram
}

// newMetrics creates the dispatcher instruments on the global meter, a no-op
// until a provider is installed. depths reports the queue length per
// buffered command.
func newMetrics(depths func() map[string]int) (*metrics, error) {
	m := otel.Meter(instrumentationName)
	var (
		mx  metrics
		err error
	)
	if mx.processed, err = m.Int64Counter("dispatcher.commands.processed",
		metric.WithDescription("Commands handled")); err != nil {
		return nil, fmt.Errorf("creating processed counter: %w", err)
	}
	if mx.failed, err = m.Int64Counter("dispatcher.commands.failed",
		metric.WithDescription("Commands whose handler returned an error")); err != nil {
		return nil, fmt.Errorf("creating failed counter: %w", err)
	}
	if mx.dropped, err = m.Int64Counter("dispatcher.commands.dropped",
		metric.WithDescription("Commands dropped on a full queue")); err != nil {
		return nil, fmt.Errorf("creating dropped counter: %w", err)
	}
	if mx.latency, err = m.Float64Histogram("dispatcher.command.duration",
		metric.WithDescription("Handler run time"), metric.WithUnit("ms")); err != nil {
		return nil, fmt.Errorf("creating latency histogram: %w", err)
	}

	queued, err := m.Int64ObservableGauge("dispatcher.queue.size",
		metric.WithDescription("Commands waiting in a buffered queue"))
	if err != nil {
		return nil, fmt.Errorf("creating queue gauge: %w", err)
	}
	_, err = m.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		for cmd, n := range depths() {
			o.ObserveInt64(queued, int64(n), metric.WithAttributes(attribute.String("command", cmd)))
		}
		return nil
	}, queued)
	if err != nil {
		return nil, fmt.Errorf("registering queue callback: %w", err)
	}
	return &mx, nil
}

func (m *metrics) record(command string, took time.Duration, err error) {
	ctx := context.Background()
	attrs := metric.WithAttributes(attribute.String("command", command))
	m.processed.Add(ctx, 1, attrs)
	m.latency.Record(ctx, float64(took.Microseconds())/1000, attrs)
	if err != nil {
		m.failed.Add(ctx, 1, attrs)
	}
}

func (m *metrics) drop(command string) {
	m.dropped.Add(context.Background(), 1, metric.WithAttributes(attribute.String("command", command)))
}
