package worker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dronelab/swarmsim/internal/config"
	"github.com/dronelab/swarmsim/internal/geo"
	"github.com/dronelab/swarmsim/internal/parser"
	"github.com/dronelab/swarmsim/internal/session"
	"github.com/dronelab/swarmsim/internal/simulator"
	"github.com/dronelab/swarmsim/internal/spawn"
	"github.com/dronelab/swarmsim/internal/storage"
	"github.com/dronelab/swarmsim/internal/storage/memory"
	"github.com/dronelab/swarmsim/internal/swarm"
	"github.com/dronelab/swarmsim/pkg/core"
)

// mockBackend implements storage.Backend for testing
type mockBackend struct {
	mu sync.Mutex

	session   *core.Session
	ended     bool
	obstacles [][]core.ObstacleDef
	frames    []core.Frame
	events    []core.Event
	startErr  error
}

var _ storage.Backend = (*mockBackend)(nil)

func (b *mockBackend) Init() error  { return nil }
func (b *mockBackend) Close() error { return nil }

func (b *mockBackend) StartSession(s *core.Session) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.startErr != nil {
		return b.startErr
	}
	b.session = s
	b.ended = false
	return nil
}

func (b *mockBackend) EndSession() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ended = true
	return nil
}

func (b *mockBackend) RecordObstacles(defs []core.ObstacleDef) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.obstacles = append(b.obstacles, defs)
	return nil
}

func (b *mockBackend) RecordFrame(f *core.Frame) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.frames = append(b.frames, *f)
	return nil
}

func (b *mockBackend) RecordEvent(e *core.Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, *e)
	return nil
}

func (b *mockBackend) frameCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.frames)
}

func (b *mockBackend) eventCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.events)
}

type fakeTelemetry struct {
	mu       sync.Mutex
	sessions []string
	drones   int
}

func (f *fakeTelemetry) WriteFrame(sessionID string, fr *core.Frame, _ geo.Origin, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions = append(f.sessions, sessionID)
	f.drones += len(fr.Drones)
	return nil
}

type fakeUploader struct {
	path string
	meta core.UploadMetadata
	err  error
}

func (u *fakeUploader) Upload(path string, meta core.UploadMetadata) error {
	u.path = path
	u.meta = meta
	return u.err
}

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func newSimulator(t *testing.T) *simulator.Simulator {
	t.Helper()
	cfg := swarm.DefaultConfig()
	cfg.Count = 2
	cfg.Preset = spawn.PresetLine
	cfg.Spacing = 5
	cfg.Wind.Enabled = false
	sw, err := swarm.New(cfg)
	require.NoError(t, err)
	sim, err := simulator.New(sw, simulator.Options{Logger: discard, FrameBuffer: 256})
	require.NoError(t, err)
	t.Cleanup(sim.Stop)
	return sim
}

func newManager(t *testing.T, sim *simulator.Simulator, backend storage.Backend, mutate func(*Dependencies)) *Manager {
	t.Helper()
	deps := Dependencies{
		Simulator:     sim,
		Parser:        parser.NewParser(discard),
		Session:       session.NewContext(),
		FrameInterval: 6,
		TickRate:      simulator.DefaultTickRate,
		DefaultTag:    "Sim",
		Logger:        discard,
		Now: func() time.Time {
			return time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
		},
	}
	if mutate != nil {
		mutate(&deps)
	}
	m := NewManager(deps, backend)
	m.Start(context.Background())
	t.Cleanup(m.Stop)
	return m
}

func TestStartSession(t *testing.T) {
	sim := newSimulator(t)
	backend := &mockBackend{}
	m := newManager(t, sim, backend, nil)

	s, err := m.StartSession("Wind test", "")
	require.NoError(t, err)
	assert.NotEmpty(t, s.ID)
	assert.Equal(t, "Wind test", s.Name)
	assert.Equal(t, "Sim", s.Tag)
	assert.Equal(t, 2, s.DroneCount)
	assert.Equal(t, spawn.PresetLine, s.Preset)
	assert.Equal(t, simulator.DefaultTickRate, s.TickRate)

	backend.mu.Lock()
	assert.Same(t, s, backend.session)
	require.Len(t, backend.obstacles, 1)
	assert.Empty(t, backend.obstacles[0])
	require.Len(t, backend.frames, 1)
	assert.Zero(t, backend.frames[0].Timestamp)
	backend.mu.Unlock()

	_, err = m.StartSession("again", "")
	assert.ErrorIs(t, err, ErrSessionActive)
}

func TestStartSession_BackendError(t *testing.T) {
	sim := newSimulator(t)
	boom := errors.New("boom")
	m := newManager(t, sim, &mockBackend{startErr: boom}, nil)

	_, err := m.StartSession("x", "")
	assert.ErrorIs(t, err, boom)
	assert.False(t, m.deps.Session.Active())
}

func TestRecordsEveryNthFrame(t *testing.T) {
	sim := newSimulator(t)
	backend := &mockBackend{}
	m := newManager(t, sim, backend, nil)

	for range 5 {
		sim.Step()
	}
	_, err := m.StartSession("", "")
	require.NoError(t, err)
	for range 12 {
		sim.Step()
	}

	require.Eventually(t, func() bool { return backend.frameCount() == 3 }, time.Second, 5*time.Millisecond)
	backend.mu.Lock()
	defer backend.mu.Unlock()
	assert.Equal(t, uint(5), backend.frames[0].Index)
	assert.Equal(t, uint(11), backend.frames[1].Index)
	assert.Equal(t, uint(17), backend.frames[2].Index)
	assert.InDelta(t, 6/simulator.DefaultTickRate, backend.frames[1].Timestamp, 1e-9)
	assert.InDelta(t, 12/simulator.DefaultTickRate, backend.frames[2].Timestamp, 1e-9)
}

func TestNoSession_NothingRecorded(t *testing.T) {
	sim := newSimulator(t)
	backend := &mockBackend{}
	m := newManager(t, sim, backend, nil)

	for range 12 {
		sim.Step()
	}
	require.Eventually(t, func() bool { return m.Stats().FramesSeen == 12 }, time.Second, 5*time.Millisecond)
	assert.Zero(t, backend.frameCount())
}

func TestEvents_RelativeAndSceneRerecorded(t *testing.T) {
	sim := newSimulator(t)
	backend := &mockBackend{}
	m := newManager(t, sim, backend, nil)

	sim.Step()
	_, err := m.StartSession("scene", "")
	require.NoError(t, err)

	sim.Enqueue(simulator.Command{
		Name: "obstacle_add",
		Apply: func(sw *swarm.Swarm) error {
			sw.Obstacles().AddBox(mgl64.Vec3{0, 5, -30}, mgl64.Vec3{2, 10, 2}, nil)
			return nil
		},
	})
	sim.Step()

	require.Eventually(t, func() bool { return backend.eventCount() == 1 }, time.Second, 5*time.Millisecond)
	backend.mu.Lock()
	defer backend.mu.Unlock()
	e := backend.events[0]
	assert.Equal(t, core.EventCommand, e.Type)
	assert.Equal(t, "obstacle_add", e.Data["command"])
	assert.InDelta(t, 0, e.Timestamp, 1e-9)
	require.Len(t, backend.obstacles, 2)
	require.Len(t, backend.obstacles[1], 1)
	assert.Equal(t, core.ShapeBox, backend.obstacles[1][0].Type)
}

func TestTelemetry(t *testing.T) {
	sim := newSimulator(t)
	tel := &fakeTelemetry{}
	m := newManager(t, sim, &mockBackend{}, func(d *Dependencies) {
		d.Telemetry = tel
		d.FrameInterval = 1
	})

	s, err := m.StartSession("tel", "")
	require.NoError(t, err)
	sim.Step()
	sim.Step()

	require.Eventually(t, func() bool {
		tel.mu.Lock()
		defer tel.mu.Unlock()
		return len(tel.sessions) == 3
	}, time.Second, 5*time.Millisecond)
	tel.mu.Lock()
	defer tel.mu.Unlock()
	assert.Equal(t, s.ID, tel.sessions[2])
	assert.Equal(t, 6, tel.drones)
}

func TestEndSession(t *testing.T) {
	sim := newSimulator(t)
	backend := &mockBackend{}
	m := newManager(t, sim, backend, nil)

	assert.ErrorIs(t, m.EndSession(), ErrNoSession)

	_, err := m.StartSession("end", "")
	require.NoError(t, err)
	require.NoError(t, m.EndSession())
	assert.True(t, backend.ended)
	assert.False(t, m.deps.Session.Active())
	assert.Equal(t, "end", m.deps.Session.GetSession().Name)
}

func TestEndSession_UploadsExport(t *testing.T) {
	sim := newSimulator(t)
	backend := memory.New(config.MemoryConfig{OutputDir: t.TempDir()})
	up := &fakeUploader{}
	m := newManager(t, sim, backend, func(d *Dependencies) { d.Uploader = up })

	_, err := m.StartSession("Upload Me", "ci")
	require.NoError(t, err)
	for range 6 {
		sim.Step()
	}
	require.Eventually(t, func() bool { return backend.FrameCount() == 2 }, time.Second, 5*time.Millisecond)
	require.NoError(t, m.EndSession())

	require.NotEmpty(t, up.path)
	_, err = os.Stat(up.path)
	assert.NoError(t, err)
	assert.Equal(t, "Upload Me", up.meta.SessionName)
	assert.Equal(t, "ci", up.meta.Tag)
	assert.Equal(t, 2, up.meta.DroneCount)
}

func TestEndSession_UploadFailureIsNotFatal(t *testing.T) {
	sim := newSimulator(t)
	backend := memory.New(config.MemoryConfig{OutputDir: t.TempDir()})
	up := &fakeUploader{err: errors.New("server down")}
	m := newManager(t, sim, backend, func(d *Dependencies) { d.Uploader = up })

	_, err := m.StartSession("x", "")
	require.NoError(t, err)
	assert.NoError(t, m.EndSession())
	assert.NotEmpty(t, up.path)
}

func TestStop_EndsActiveSession(t *testing.T) {
	sim := newSimulator(t)
	backend := &mockBackend{}
	m := newManager(t, sim, backend, nil)

	_, err := m.StartSession("x", "")
	require.NoError(t, err)
	m.Stop()
	assert.True(t, backend.ended)
	m.Stop()
}

type timedBackend struct {
	mockBackend
}

func (b *timedBackend) GetLastWriteDuration() time.Duration { return 42 * time.Millisecond }

func TestGetLastWriteDuration(t *testing.T) {
	sim := newSimulator(t)
	assert.Zero(t, newManager(t, sim, &mockBackend{}, nil).GetLastWriteDuration())
	assert.Equal(t, 42*time.Millisecond, newManager(t, sim, &timedBackend{}, nil).GetLastWriteDuration())
}
