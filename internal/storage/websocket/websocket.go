// Package websocket streams recordings live to the replay server.
package websocket

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dronelab/swarmsim/internal/storage"
	"github.com/dronelab/swarmsim/pkg/core"
	"github.com/dronelab/swarmsim/pkg/streaming"
)

// ErrAckTimeout is returned when the server does not acknowledge in time.
var ErrAckTimeout = errors.New("timeout waiting for ack")

// Config holds WebSocket backend configuration.
type Config struct {
	URL    string
	Secret string
	// AckTimeout bounds start and end handshakes. Zero means 10s.
	AckTimeout time.Duration
}

// Backend streams frames and events as they are recorded. Session start and
// end wait for an ack; everything else is fire-and-forget. There is no
// exported file, so it is not storage.Uploadable.
type Backend struct {
	cfg  Config
	link *link

	mu     sync.Mutex
	active bool
}

var _ storage.Backend = (*Backend)(nil)

// New creates the backend. Nothing is dialed before Init.
func New(cfg Config, logger *slog.Logger) *Backend {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.AckTimeout <= 0 {
		cfg.AckTimeout = ackTimeout
	}
	return &Backend{
		cfg:  cfg,
		link: newLink(logger.With("component", "websocket")),
	}
}

func (b *Backend) Init() error {
	return b.link.open(b.cfg.URL, b.cfg.Secret)
}

func (b *Backend) Close() error {
	return b.link.close()
}

func encode(msgType string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding %s payload: %w", msgType, err)
	}
	return json.Marshal(streaming.Envelope{Type: msgType, Payload: raw})
}

func (b *Backend) isActive() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.active
}

func (b *Backend) publish(msgType string, payload any) error {
	if !b.isActive() {
		return storage.ErrNoSession
	}
	data, err := encode(msgType, payload)
	if err != nil {
		return err
	}
	b.link.enqueue(data)
	return nil
}

// StartSession announces s and becomes active once the server acks. The
// announcement is replayed after every reconnect until EndSession.
func (b *Backend) StartSession(s *core.Session) error {
	data, err := encode(streaming.TypeStartSession, streaming.StartSessionPayload{Session: s})
	if err != nil {
		return err
	}
	b.link.setGreeting(data)
	if err := b.link.request(data, streaming.TypeStartSession, b.cfg.AckTimeout); err != nil {
		b.link.setGreeting(nil)
		return err
	}

	b.mu.Lock()
	b.active = true
	b.mu.Unlock()
	return nil
}

// EndSession deactivates the backend even when the ack never arrives.
func (b *Backend) EndSession() error {
	if !b.isActive() {
		return storage.ErrNoSession
	}
	data, err := encode(streaming.TypeEndSession, nil)
	if err != nil {
		return err
	}
	err = b.link.request(data, streaming.TypeEndSession, b.cfg.AckTimeout)

	b.link.setGreeting(nil)
	b.mu.Lock()
	b.active = false
	b.mu.Unlock()
	return err
}

func (b *Backend) RecordObstacles(defs []core.ObstacleDef) error {
	return b.publish(streaming.TypeObstacles, streaming.ObstaclesPayload{Obstacles: defs})
}

func (b *Backend) RecordFrame(f *core.Frame) error {
	return b.publish(streaming.TypeFrame, f)
}

func (b *Backend) RecordEvent(e *core.Event) error {
	return b.publish(streaming.TypeEvent, e)
}
