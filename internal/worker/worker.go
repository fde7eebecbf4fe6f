// Package worker records the running simulation. It consumes the frames and
// events published by the simulator and forwards them to the storage
// backend and the telemetry sink while a session is active.
package worker

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/dronelab/swarmsim/internal/geo"
	"github.com/dronelab/swarmsim/internal/parser"
	"github.com/dronelab/swarmsim/internal/session"
	"github.com/dronelab/swarmsim/internal/simulator"
	"github.com/dronelab/swarmsim/internal/storage"
	"github.com/dronelab/swarmsim/internal/swarm"
	"github.com/dronelab/swarmsim/pkg/core"
)

// DefaultFrameInterval records every sixth simulated frame.
const DefaultFrameInterval = 6

var (
	// ErrSessionActive is returned when starting a session while one is recording.
	ErrSessionActive = errors.New("session already active")
	// ErrNoSession is returned when ending a session that was never started.
	ErrNoSession = errors.New("no active session")
)

// TelemetryWriter receives recorded frames as time series points.
type TelemetryWriter interface {
	WriteFrame(sessionID string, f *core.Frame, origin geo.Origin, at time.Time) error
}

// Uploader sends an exported recording to the replay server.
type Uploader interface {
	Upload(filePath string, meta core.UploadMetadata) error
}

// Dependencies holds all dependencies for the worker manager
type Dependencies struct {
	Simulator *simulator.Simulator
	Parser    *parser.Parser
	Session   *session.Context
	// Telemetry and Uploader are optional.
	Telemetry     TelemetryWriter
	Uploader      Uploader
	Origin        geo.Origin
	FrameInterval int
	TickRate      float64
	DefaultTag    string
	Logger        *slog.Logger
	Now           func() time.Time
}

// Stats counts what the manager has seen and written.
type Stats struct {
	FramesSeen     uint64 `json:"framesSeen"`
	FramesRecorded uint64 `json:"framesRecorded"`
	EventsRecorded uint64 `json:"eventsRecorded"`
	Errors         uint64 `json:"errors"`
}

// Manager manages the recording goroutine
type Manager struct {
	deps    Dependencies
	backend storage.Backend
	log     *slog.Logger

	// mu serializes backend calls and guards the recording state.
	mu         sync.Mutex
	startTime  float64
	startIndex uint
	stats      Stats

	cancel context.CancelFunc
	done   chan struct{}
}

// NewManager creates a new worker manager
func NewManager(deps Dependencies, backend storage.Backend) *Manager {
	if deps.FrameInterval <= 0 {
		deps.FrameInterval = DefaultFrameInterval
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Session == nil {
		deps.Session = session.NewContext()
	}
	return &Manager{
		deps:    deps,
		backend: backend,
		log:     deps.Logger,
	}
}

// Start subscribes to the simulator and records in the background until
// ctx is cancelled or Stop is called.
func (m *Manager) Start(ctx context.Context) {
	frames := m.deps.Simulator.Subscribe()
	events := m.deps.Simulator.SubscribeEvents()

	ctx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.done = make(chan struct{})

	go func() {
		defer close(m.done)
		for {
			select {
			case <-ctx.Done():
				return
			case f, ok := <-frames.Receive():
				if !ok {
					return
				}
				m.handleFrame(f)
			case e, ok := <-events.Receive():
				if !ok {
					return
				}
				m.handleEvent(e)
			}
		}
	}()
}

// Stop stops the recording goroutine. An active session is ended first.
func (m *Manager) Stop() {
	if m.deps.Session.Active() {
		if err := m.EndSession(); err != nil {
			m.log.Error("Failed to end session on shutdown", "error", err)
		}
	}
	if m.cancel == nil {
		return
	}
	m.cancel()
	<-m.done
	m.cancel = nil
}

// StartSession begins recording. The current frame is recorded at time zero
// together with the obstacle scene.
func (m *Manager) StartSession(name, tag string) (*core.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.deps.Session.Active() {
		return nil, ErrSessionActive
	}
	if tag == "" {
		tag = m.deps.DefaultTag
	}

	s := session.New(name, tag, m.deps.Now())
	s.TickRate = m.deps.TickRate

	var obstacles []core.ObstacleDef
	err := m.deps.Simulator.Exec(func(sw *swarm.Swarm) error {
		cfg := sw.Config()
		s.DroneCount = sw.Len()
		s.Preset = cfg.Preset
		s.Seed = cfg.Seed
		obstacles = sw.Obstacles().States()
		return nil
	})
	if err != nil {
		return nil, err
	}
	first := m.deps.Simulator.Snapshot()

	if err := m.backend.StartSession(s); err != nil {
		return nil, err
	}
	m.deps.Session.SetSession(s)
	m.startTime = first.Timestamp
	m.startIndex = first.Index
	m.stats = Stats{}

	if err := m.backend.RecordObstacles(obstacles); err != nil {
		m.log.Error("Failed to record obstacles", "error", err)
	}
	m.recordFrame(first)

	m.log.Info("Session started",
		"id", s.ID,
		"name", s.Name,
		"drones", s.DroneCount,
		"preset", s.Preset)
	return s, nil
}

// EndSession stops recording and finalizes the backend. Exported
// recordings are uploaded when an uploader is configured.
func (m *Manager) EndSession() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.deps.Session.Active() {
		return ErrNoSession
	}
	m.deps.Session.End()
	s := m.deps.Session.GetSession()

	if err := m.backend.EndSession(); err != nil {
		return err
	}
	m.log.Info("Session ended",
		"id", s.ID,
		"frames", m.stats.FramesRecorded,
		"events", m.stats.EventsRecorded)

	m.upload()
	return nil
}

func (m *Manager) upload() {
	u, ok := m.backend.(storage.Uploadable)
	if !ok || m.deps.Uploader == nil {
		return
	}
	path := u.GetExportedFilePath()
	if path == "" {
		return
	}
	if err := m.deps.Uploader.Upload(path, u.GetExportMetadata()); err != nil {
		m.log.Error("Failed to upload recording", "path", path, "error", err)
		return
	}
	m.log.Info("Uploaded recording", "path", path)
}

func (m *Manager) handleFrame(f core.Frame) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stats.FramesSeen++
	if !m.deps.Session.Active() || f.Index <= m.startIndex {
		return
	}
	if (f.Index-m.startIndex)%uint(m.deps.FrameInterval) != 0 {
		return
	}
	m.recordFrame(f)
}

// recordFrame must be called with m.mu held.
func (m *Manager) recordFrame(f core.Frame) {
	f.Timestamp -= m.startTime
	if err := m.backend.RecordFrame(&f); err != nil {
		m.stats.Errors++
		m.log.Error("Failed to record frame", "index", f.Index, "error", err)
		return
	}
	m.stats.FramesRecorded++

	if m.deps.Telemetry == nil {
		return
	}
	sessionID := m.deps.Session.GetSession().ID
	if err := m.deps.Telemetry.WriteFrame(sessionID, &f, m.deps.Origin, m.deps.Now()); err != nil {
		m.stats.Errors++
		m.log.Warn("Failed to write telemetry", "error", err)
	}
}

func (m *Manager) handleEvent(e core.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.deps.Session.Active() || e.Timestamp < m.startTime {
		return
	}
	e.Timestamp -= m.startTime
	if err := m.backend.RecordEvent(&e); err != nil {
		m.stats.Errors++
		m.log.Error("Failed to record event", "type", e.Type, "error", err)
		return
	}
	m.stats.EventsRecorded++

	if cmd, _ := e.Data["command"].(string); e.Type == core.EventCommand && isSceneCommand(cmd) {
		m.recordScene()
	}
}

// isSceneCommand reports whether cmd changed the obstacle scene.
func isSceneCommand(cmd string) bool {
	return strings.HasPrefix(cmd, "obstacle_")
}

// recordScene must be called with m.mu held.
func (m *Manager) recordScene() {
	var defs []core.ObstacleDef
	_ = m.deps.Simulator.Exec(func(sw *swarm.Swarm) error {
		defs = sw.Obstacles().States()
		return nil
	})
	if err := m.backend.RecordObstacles(defs); err != nil {
		m.stats.Errors++
		m.log.Error("Failed to record obstacles", "error", err)
	}
}

// Stats returns the counters of the current session.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stats
}

// GetLastWriteDuration returns the duration of the last backend write cycle.
// Returns 0 if the backend doesn't support this metric.
func (m *Manager) GetLastWriteDuration() time.Duration {
	if p, ok := m.backend.(storage.WriteDurationProvider); ok {
		return p.GetLastWriteDuration()
	}
	return 0
}

// Backend returns the storage backend.
func (m *Manager) Backend() storage.Backend {
	return m.backend
}
