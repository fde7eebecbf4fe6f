package redis

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dronelab/swarmsim/internal/config"
	"github.com/dronelab/swarmsim/internal/storage"
	"github.com/dronelab/swarmsim/pkg/core"
)

var _ storage.Backend = (*Backend)(nil)

// fakeClient is an in-memory ClientInterface recording TTLs.
type fakeClient struct {
	mu      sync.Mutex
	data    map[string]string
	ttls    map[string]time.Duration
	pingErr error
	closed  bool
}

func newFakeClient() *fakeClient {
	return &fakeClient{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (f *fakeClient) Ping(ctx context.Context) *redis.StatusCmd {
	cmd := redis.NewStatusCmd(ctx)
	if f.pingErr != nil {
		cmd.SetErr(f.pingErr)
	} else {
		cmd.SetVal("PONG")
	}
	return cmd
}

func (f *fakeClient) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch v := value.(type) {
	case []byte:
		f.data[key] = string(v)
	case string:
		f.data[key] = v
	}
	f.ttls[key] = expiration
	cmd := redis.NewStatusCmd(ctx)
	cmd.SetVal("OK")
	return cmd
}

func (f *fakeClient) Get(ctx context.Context, key string) *redis.StringCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	cmd := redis.NewStringCmd(ctx)
	v, ok := f.data[key]
	if !ok {
		cmd.SetErr(redis.Nil)
		return cmd
	}
	cmd.SetVal(v)
	return cmd
}

func (f *fakeClient) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, k := range keys {
		if _, ok := f.data[k]; ok {
			delete(f.data, k)
			n++
		}
	}
	cmd := redis.NewIntCmd(ctx)
	cmd.SetVal(n)
	return cmd
}

func (f *fakeClient) Close() error {
	f.closed = true
	return nil
}

func (f *fakeClient) has(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.data[key]
	return ok
}

func TestNew_DefaultTTL(t *testing.T) {
	b := New(config.RedisConfig{Addr: "localhost:6379"})
	assert.Equal(t, DefaultTTL, b.ttl)
	_ = b.Close()
}

func TestInit(t *testing.T) {
	fake := newFakeClient()
	b := NewWithClient(fake, time.Second)
	assert.NoError(t, b.Init())

	fake.pingErr = errors.New("connection refused")
	assert.ErrorContains(t, b.Init(), "failed to connect to Redis")

	require.NoError(t, b.Close())
	assert.True(t, fake.closed)
}

func TestRecordWithoutSession(t *testing.T) {
	b := NewWithClient(newFakeClient(), time.Second)

	assert.ErrorIs(t, b.RecordFrame(&core.Frame{}), storage.ErrNoSession)
	assert.ErrorIs(t, b.RecordEvent(&core.Event{}), storage.ErrNoSession)
	assert.ErrorIs(t, b.RecordObstacles(nil), storage.ErrNoSession)
	assert.ErrorIs(t, b.EndSession(), storage.ErrNoSession)
}

func TestRecordFrame_LatestStateWithTTL(t *testing.T) {
	fake := newFakeClient()
	b := NewWithClient(fake, 15*time.Second)
	ctx := context.Background()

	require.NoError(t, b.StartSession(&core.Session{ID: "s", Name: "live"}))
	assert.Equal(t, time.Duration(0), fake.ttls[SessionKey()])

	require.NoError(t, b.RecordFrame(&core.Frame{Timestamp: 1, Drones: []core.DroneState{
		{ID: 0, Battery: 90}, {ID: 3, Battery: 70},
	}}))
	require.NoError(t, b.RecordFrame(&core.Frame{Timestamp: 2, Drones: []core.DroneState{
		{ID: 0, Battery: 89},
	}}))

	state, ts, ok, err := b.GetDroneState(ctx, 0)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 89.0, state.Battery)
	assert.Equal(t, 2.0, ts)
	assert.Equal(t, 15*time.Second, fake.ttls[DroneKey(0)])

	state, ts, ok, err = b.GetDroneState(ctx, 3)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 3, state.ID)
	assert.Equal(t, 1.0, ts)

	_, _, ok, err = b.GetDroneState(ctx, 7)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEndSession_RemovesKeys(t *testing.T) {
	fake := newFakeClient()
	b := NewWithClient(fake, time.Second)

	require.NoError(t, b.StartSession(&core.Session{ID: "s"}))
	require.NoError(t, b.RecordObstacles([]core.ObstacleDef{{Type: core.ShapeBox}}))
	require.NoError(t, b.RecordFrame(&core.Frame{Drones: []core.DroneState{{ID: 1}}}))
	require.NoError(t, b.RecordEvent(&core.Event{Type: core.EventCrash}))

	for _, key := range []string{SessionKey(), ObstaclesKey(), EventKey(), DroneKey(1)} {
		assert.True(t, fake.has(key), key)
	}

	require.NoError(t, b.EndSession())
	for _, key := range []string{SessionKey(), ObstaclesKey(), EventKey(), DroneKey(1)} {
		assert.False(t, fake.has(key), key)
	}
}

func TestRecordObstacles_Empty(t *testing.T) {
	fake := newFakeClient()
	b := NewWithClient(fake, time.Second)
	require.NoError(t, b.StartSession(&core.Session{ID: "s"}))
	require.NoError(t, b.RecordObstacles(nil))

	var defs []core.ObstacleDef
	require.NoError(t, json.Unmarshal([]byte(fake.data[ObstaclesKey()]), &defs))
	assert.NotNil(t, defs)
	assert.Empty(t, defs)
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "swarmsim:drone:12", DroneKey(12))
	assert.Equal(t, "swarmsim:session", SessionKey())
}
