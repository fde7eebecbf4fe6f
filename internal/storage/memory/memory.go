// Package memory buffers a session in memory and exports it to a JSON file
// when the session ends.
package memory

import (
	"sync"

	"github.com/dronelab/swarmsim/internal/config"
	"github.com/dronelab/swarmsim/internal/storage"
	"github.com/dronelab/swarmsim/pkg/core"
)

// Backend stores session data in memory and exports to JSON
type Backend struct {
	cfg     config.MemoryConfig
	session *core.Session

	obstacles []core.ObstacleDef
	frames    []core.Frame
	events    []core.Event

	lastExportPath     string
	lastExportMetadata core.UploadMetadata
	mu                 sync.RWMutex
}

// New creates a new memory backend
func New(cfg config.MemoryConfig) *Backend {
	return &Backend{cfg: cfg}
}

// Init initializes the backend
func (b *Backend) Init() error {
	return nil
}

// Close cleans up resources
func (b *Backend) Close() error {
	return nil
}

// StartSession begins recording a new session and drops anything buffered
// from the previous one.
func (b *Backend) StartSession(s *core.Session) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	cp := *s
	b.session = &cp
	b.obstacles = nil
	b.frames = nil
	b.events = nil
	return nil
}

// EndSession exports the buffered session to disk.
func (b *Backend) EndSession() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.session == nil {
		return storage.ErrNoSession
	}
	if err := b.exportJSON(); err != nil {
		return err
	}
	b.session = nil
	return nil
}

// RecordObstacles replaces the recorded obstacle scene.
func (b *Backend) RecordObstacles(defs []core.ObstacleDef) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.session == nil {
		return storage.ErrNoSession
	}
	b.obstacles = append(b.obstacles[:0], defs...)
	return nil
}

// RecordFrame appends a frame. The drone slice is copied.
func (b *Backend) RecordFrame(f *core.Frame) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.session == nil {
		return storage.ErrNoSession
	}
	cp := *f
	cp.Drones = append([]core.DroneState(nil), f.Drones...)
	b.frames = append(b.frames, cp)
	return nil
}

// RecordEvent appends an event.
func (b *Backend) RecordEvent(e *core.Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.session == nil {
		return storage.ErrNoSession
	}
	b.events = append(b.events, *e)
	return nil
}

// FrameCount returns the number of frames buffered for the current session.
func (b *Backend) FrameCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.frames)
}

// GetExportedFilePath returns the path of the last exported file
func (b *Backend) GetExportedFilePath() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastExportPath
}

// GetExportMetadata returns metadata about the last export
func (b *Backend) GetExportMetadata() core.UploadMetadata {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastExportMetadata
}
