// Package storage defines the recording backend contract.
package storage

import (
	"errors"
	"time"

	"github.com/dronelab/swarmsim/pkg/core"
)

// ErrNoSession is returned when recording without a started session.
var ErrNoSession = errors.New("no active session")

// Backend is the interface all storage implementations must satisfy.
// Record calls arrive from a single goroutine, in simulation order.
type Backend interface {
	// Lifecycle
	Init() error
	Close() error

	// Session management
	StartSession(s *core.Session) error
	EndSession() error

	// Recording
	RecordObstacles(defs []core.ObstacleDef) error
	RecordFrame(f *core.Frame) error
	RecordEvent(e *core.Event) error
}

// Uploadable is an optional interface for storage backends that produce
// files suitable for upload to the replay server.
type Uploadable interface {
	GetExportedFilePath() string
	GetExportMetadata() core.UploadMetadata
}

// WriteDurationProvider is an optional interface for backends that batch
// writes and can report how long the last batch took.
type WriteDurationProvider interface {
	GetLastWriteDuration() time.Duration
}
