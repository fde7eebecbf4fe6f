// Package gormstorage implements the storage.Backend interface on GORM with
// internal queues and a background DB writer goroutine. Postgres and SQLite
// backends wrap it.
package gormstorage

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/dronelab/swarmsim/internal/database"
	"github.com/dronelab/swarmsim/internal/geo"
	"github.com/dronelab/swarmsim/internal/model"
	"github.com/dronelab/swarmsim/internal/model/convert"
	"github.com/dronelab/swarmsim/internal/queue"
	"github.com/dronelab/swarmsim/internal/storage"
	"github.com/dronelab/swarmsim/pkg/core"
)

// DefaultWriteInterval is how often the writer drains its queues.
const DefaultWriteInterval = 2 * time.Second

// ErrNoDB is returned by Init when no database was injected.
var ErrNoDB = errors.New("no database configured")

// Dependencies holds all dependencies for the GORM storage backend.
type Dependencies struct {
	DB            *gorm.DB
	Origin        geo.Origin
	Logger        zerolog.Logger
	WriteInterval time.Duration
	// SkipSetup leaves schema migration to the caller.
	SkipSetup bool
}

// queues holds all the write queues for batch DB insertion.
type queues struct {
	Drones       *queue.Queue[model.Drone]
	DroneStates  *queue.Queue[model.DroneState]
	Obstacles    *queue.Queue[model.Obstacle]
	Events       *queue.Queue[model.SimEvent]
	Performances *queue.Queue[model.Performance]
}

func newQueues() *queues {
	return &queues{
		Drones:       queue.New[model.Drone](),
		DroneStates:  queue.New[model.DroneState](),
		Obstacles:    queue.New[model.Obstacle](),
		Events:       queue.New[model.SimEvent](),
		Performances: queue.New[model.Performance](),
	}
}

// Backend implements storage.Backend using GORM with queue-based batch writes.
type Backend struct {
	deps   Dependencies
	queues *queues

	mu        sync.Mutex
	session   *model.Session
	drones    map[uint16]struct{}
	sessionID atomic.Uint64

	writeMu       sync.Mutex
	lastWriteNano atomic.Int64

	stopChan chan struct{}
	done     chan struct{}
}

// New creates a new GORM storage backend.
func New(deps Dependencies) *Backend {
	if deps.WriteInterval <= 0 {
		deps.WriteInterval = DefaultWriteInterval
	}
	return &Backend{
		deps:   deps,
		queues: newQueues(),
		drones: make(map[uint16]struct{}),
	}
}

// DB returns the underlying connection.
func (b *Backend) DB() *gorm.DB {
	return b.deps.DB
}

// Init runs schema migration and starts the DB writer goroutine.
func (b *Backend) Init() error {
	if b.deps.DB == nil {
		return ErrNoDB
	}
	if !b.deps.SkipSetup {
		if err := database.Setup(b.deps.DB, b.deps.Logger); err != nil {
			return fmt.Errorf("failed to setup DB: %w", err)
		}
	}

	b.stopChan = make(chan struct{})
	b.done = make(chan struct{})
	go b.writerLoop()
	return nil
}

// Close stops the writer goroutine after a final flush.
func (b *Backend) Close() error {
	if b.stopChan == nil {
		return nil
	}
	close(b.stopChan)
	<-b.done
	b.stopChan = nil
	return nil
}

// StartSession inserts the session row synchronously so that queued rows
// can reference its ID.
func (b *Backend) StartSession(s *core.Session) error {
	if b.deps.DB == nil {
		return ErrNoDB
	}
	row, err := convert.CoreToSession(*s, b.deps.Origin)
	if err != nil {
		return fmt.Errorf("failed to convert session: %w", err)
	}
	if err := b.deps.DB.Create(&row).Error; err != nil {
		return fmt.Errorf("failed to insert new session: %w", err)
	}

	b.mu.Lock()
	b.session = &row
	b.drones = make(map[uint16]struct{})
	b.mu.Unlock()
	b.sessionID.Store(uint64(row.ID))

	b.deps.Logger.Info().Str("uuid", row.UUID).Uint("sessionId", row.ID).Msg("Session started")
	return nil
}

// EndSession flushes pending rows and stamps the session end time.
func (b *Backend) EndSession() error {
	b.mu.Lock()
	row := b.session
	b.session = nil
	b.mu.Unlock()
	if row == nil {
		return storage.ErrNoSession
	}

	b.Flush()
	b.sessionID.Store(0)

	convert.EndSession(row, time.Now())
	if err := b.deps.DB.Model(row).Update("end_time", row.EndTime).Error; err != nil {
		return fmt.Errorf("failed to update session end time: %w", err)
	}
	b.deps.Logger.Info().Str("uuid", row.UUID).Msg("Session ended")
	return nil
}

// SessionID returns the database ID of the active session, or 0.
func (b *Backend) SessionID() uint {
	return uint(b.sessionID.Load())
}

// RecordObstacles queues the obstacle scene.
func (b *Backend) RecordObstacles(defs []core.ObstacleDef) error {
	id := b.SessionID()
	if id == 0 {
		return storage.ErrNoSession
	}
	rows := make([]model.Obstacle, len(defs))
	for i, def := range defs {
		row, err := convert.CoreToObstacle(def, b.deps.Origin)
		if err != nil {
			return fmt.Errorf("failed to convert obstacle %d: %w", i, err)
		}
		row.SessionID = id
		rows[i] = row
	}
	b.queues.Obstacles.Push(rows...)
	return nil
}

// RecordFrame queues one state row per drone, registering drones seen for
// the first time in this session.
func (b *Backend) RecordFrame(f *core.Frame) error {
	id := b.SessionID()
	if id == 0 {
		return storage.ErrNoSession
	}

	now := time.Now()
	states, err := convert.CoreToFrame(f, b.deps.Origin, now)
	if err != nil {
		return fmt.Errorf("failed to convert frame: %w", err)
	}

	b.mu.Lock()
	for i, d := range f.Drones {
		states[i].SessionID = id
		if _, ok := b.drones[states[i].DroneID]; ok {
			continue
		}
		b.drones[states[i].DroneID] = struct{}{}
		drone := convert.CoreToDrone(d)
		drone.SessionID = id
		b.queues.Drones.Push(drone)
	}
	b.mu.Unlock()

	b.queues.DroneStates.Push(states...)
	return nil
}

// RecordEvent queues an event.
func (b *Backend) RecordEvent(e *core.Event) error {
	id := b.SessionID()
	if id == 0 {
		return storage.ErrNoSession
	}
	row := convert.CoreToEvent(*e, time.Now())
	row.SessionID = id
	b.queues.Events.Push(row)
	return nil
}

// RecordPerformance queues a pipeline performance sample.
func (b *Backend) RecordPerformance(p model.Performance) error {
	id := b.SessionID()
	if id == 0 {
		return storage.ErrNoSession
	}
	p.SessionID = id
	b.queues.Performances.Push(p)
	return nil
}

// QueueLengths returns the pending frame-state and event rows.
func (b *Backend) QueueLengths() (states, events int) {
	return b.queues.DroneStates.Len(), b.queues.Events.Len()
}

// GetLastWriteDuration returns how long the last write cycle took.
func (b *Backend) GetLastWriteDuration() time.Duration {
	return time.Duration(b.lastWriteNano.Load())
}

// Flush writes every queue to the database.
func (b *Backend) Flush() {
	b.writeMu.Lock()
	defer b.writeMu.Unlock()

	start := time.Now()
	db := b.deps.DB
	log := b.deps.Logger

	// Drones go first: states reference them.
	writeQueue(db, b.queues.Drones, "drones", log)
	writeQueue(db, b.queues.Obstacles, "obstacles", log)
	writeQueue(db, b.queues.DroneStates, "drone states", log)
	writeQueue(db, b.queues.Events, "events", log)
	writeQueue(db, b.queues.Performances, "performances", log)

	b.lastWriteNano.Store(int64(time.Since(start)))
}

// writeQueue writes all items from a queue to the database in a transaction.
// Failed batches are pushed back for the next cycle.
func writeQueue[T any](db *gorm.DB, q *queue.Queue[T], name string, log zerolog.Logger) {
	if q.Empty() {
		return
	}

	tx := db.Begin()
	items := q.Drain()
	if err := tx.Create(&items).Error; err != nil {
		log.Error().Err(err).Str("queue", name).Int("count", len(items)).Msg("Error writing queue")
		tx.Rollback()
		q.Push(items...)
		return
	}
	if err := tx.Commit().Error; err != nil {
		log.Error().Err(err).Str("queue", name).Msg("Error committing queue")
		q.Push(items...)
	}
}

// writerLoop periodically drains queues into the DB.
func (b *Backend) writerLoop() {
	defer close(b.done)

	ticker := time.NewTicker(b.deps.WriteInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopChan:
			b.Flush()
			return
		case <-ticker.C:
			b.Flush()
		}
	}
}
