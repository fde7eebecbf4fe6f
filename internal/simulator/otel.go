package simulator

import (
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/dronelab/swarmsim/internal/simulator"

type metrics struct {
	tickDuration  metric.Float64Histogram
	collisions    metric.Int64Counter
	crashes       metric.Int64Counter
	commands      metric.Int64Counter
	droppedFrames metric.Int64Counter
}

// newMetrics registers instruments on the global meter (no-op if not configured).
func newMetrics() (*metrics, error) {
	m := otel.Meter(instrumentationName)
	var (
		out metrics
		err error
	)

	out.tickDuration, err = m.Float64Histogram(
		"simulator.tick.duration",
		metric.WithDescription("Wall time spent in one simulation tick"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating tick duration histogram: %w", err)
	}

	out.collisions, err = m.Int64Counter(
		"simulator.collisions",
		metric.WithDescription("Drone-drone and drone-obstacle collisions"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating collisions counter: %w", err)
	}

	out.crashes, err = m.Int64Counter(
		"simulator.crashes",
		metric.WithDescription("Drones crashed by a hard impact"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating crashes counter: %w", err)
	}

	out.commands, err = m.Int64Counter(
		"simulator.commands",
		metric.WithDescription("Queued commands applied"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating commands counter: %w", err)
	}

	out.droppedFrames, err = m.Int64Counter(
		"simulator.frames.dropped",
		metric.WithDescription("Frames not delivered to a slow subscriber"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating dropped frames counter: %w", err)
	}

	return &out, nil
}
