// Package redis keeps the latest swarm snapshot in Redis so dashboards can
// poll live drone state without reading the full recording.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dronelab/swarmsim/internal/config"
	"github.com/dronelab/swarmsim/internal/storage"
	"github.com/dronelab/swarmsim/pkg/core"
)

const (
	keyPrefix = "swarmsim:"
	opTimeout = 5 * time.Second

	// DefaultTTL is used when the config leaves TTL unset.
	DefaultTTL = 30 * time.Second
)

// ClientInterface defines the Redis operations used by the backend
type ClientInterface interface {
	Ping(ctx context.Context) *redis.StatusCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Close() error
}

// Backend writes the current session, obstacle scene, last event and the
// latest state of every drone. Drone keys expire after TTL so drones that
// stop reporting disappear.
type Backend struct {
	client ClientInterface
	ttl    time.Duration

	mu      sync.Mutex
	session *core.Session
	drones  map[int]struct{}
}

// New creates a backend on a real Redis connection.
func New(cfg config.RedisConfig) *Backend {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return NewWithClient(client, cfg.TTL)
}

// NewWithClient creates a backend with a custom ClientInterface (useful for testing)
func NewWithClient(client ClientInterface, ttl time.Duration) *Backend {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Backend{
		client: client,
		ttl:    ttl,
		drones: make(map[int]struct{}),
	}
}

// SessionKey is the key holding the active session.
func SessionKey() string { return keyPrefix + "session" }

// ObstaclesKey is the key holding the obstacle scene.
func ObstaclesKey() string { return keyPrefix + "obstacles" }

// EventKey is the key holding the most recent event.
func EventKey() string { return keyPrefix + "event:last" }

// DroneKey is the key holding the latest state of drone id.
func DroneKey(id int) string { return fmt.Sprintf("%sdrone:%d", keyPrefix, id) }

// Init tests the connection.
func (b *Backend) Init() error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	if err := b.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return nil
}

// Close closes the Redis connection
func (b *Backend) Close() error {
	return b.client.Close()
}

func (b *Backend) set(key string, v any, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", key, err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	return b.client.Set(ctx, key, data, ttl).Err()
}

func (b *Backend) active() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.session != nil
}

// StartSession publishes the session. It does not expire.
func (b *Backend) StartSession(s *core.Session) error {
	if err := b.set(SessionKey(), s, 0); err != nil {
		return err
	}
	b.mu.Lock()
	cp := *s
	b.session = &cp
	b.mu.Unlock()
	return nil
}

// EndSession removes the session and every drone key written by it.
func (b *Backend) EndSession() error {
	b.mu.Lock()
	if b.session == nil {
		b.mu.Unlock()
		return storage.ErrNoSession
	}
	keys := []string{SessionKey(), ObstaclesKey(), EventKey()}
	for id := range b.drones {
		keys = append(keys, DroneKey(id))
	}
	b.session = nil
	b.drones = make(map[int]struct{})
	b.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	return b.client.Del(ctx, keys...).Err()
}

// RecordObstacles publishes the obstacle scene for the session lifetime.
func (b *Backend) RecordObstacles(defs []core.ObstacleDef) error {
	if !b.active() {
		return storage.ErrNoSession
	}
	if defs == nil {
		defs = []core.ObstacleDef{}
	}
	return b.set(ObstaclesKey(), defs, 0)
}

// RecordFrame overwrites the latest state of every drone in the frame.
func (b *Backend) RecordFrame(f *core.Frame) error {
	if !b.active() {
		return storage.ErrNoSession
	}
	for _, d := range f.Drones {
		snap := snapshot{Timestamp: f.Timestamp, DroneState: d}
		if err := b.set(DroneKey(d.ID), snap, b.ttl); err != nil {
			return err
		}
		b.mu.Lock()
		b.drones[d.ID] = struct{}{}
		b.mu.Unlock()
	}
	return nil
}

// RecordEvent overwrites the last event.
func (b *Backend) RecordEvent(e *core.Event) error {
	if !b.active() {
		return storage.ErrNoSession
	}
	return b.set(EventKey(), e, b.ttl)
}

// snapshot is a drone state stamped with the frame time.
type snapshot struct {
	Timestamp float64 `json:"timestamp"`
	core.DroneState
}

// GetDroneState reads the latest state of drone id. It returns false when
// the key is missing or expired.
func (b *Backend) GetDroneState(ctx context.Context, id int) (core.DroneState, float64, bool, error) {
	data, err := b.client.Get(ctx, DroneKey(id)).Bytes()
	if err == redis.Nil {
		return core.DroneState{}, 0, false, nil
	}
	if err != nil {
		return core.DroneState{}, 0, false, fmt.Errorf("failed to get drone %d: %w", id, err)
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return core.DroneState{}, 0, false, fmt.Errorf("failed to unmarshal drone %d: %w", id, err)
	}
	return snap.DroneState, snap.Timestamp, true, nil
}
