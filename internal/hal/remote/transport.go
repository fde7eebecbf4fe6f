package remote

import (
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
)

// Transport carries commands to and telemetry from flight controllers.
type Transport interface {
	Publish(subject string, data []byte) error
	Subscribe(subject string, handler func(data []byte)) (unsubscribe func() error, err error)
	Close()
}

// CommandSubject is the subject a drone listens on for commands.
func CommandSubject(id int) string { return fmt.Sprintf("swarm.drone.%d.cmd", id) }

// TelemetrySubject is the subject a drone publishes telemetry on.
func TelemetrySubject(id int) string { return fmt.Sprintf("swarm.drone.%d.telemetry", id) }

// NATSTransport is a Transport over a core NATS connection.
type NATSTransport struct {
	conn *nats.Conn
}

// Connect dials the NATS server at url.
func Connect(url string, timeout time.Duration) (*NATSTransport, error) {
	nc, err := nats.Connect(url,
		nats.Name("swarmsim"),
		nats.Timeout(timeout),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return &NATSTransport{conn: nc}, nil
}

// Publish sends data on subject.
func (t *NATSTransport) Publish(subject string, data []byte) error {
	if err := t.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", subject, err)
	}
	return nil
}

// Subscribe delivers every message on subject to handler.
func (t *NATSTransport) Subscribe(subject string, handler func([]byte)) (func() error, error) {
	sub, err := t.conn.Subscribe(subject, func(msg *nats.Msg) {
		handler(msg.Data)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to %s: %w", subject, err)
	}
	return sub.Unsubscribe, nil
}

// Close drains and closes the connection.
func (t *NATSTransport) Close() {
	if t.conn != nil {
		_ = t.conn.Drain()
	}
}
