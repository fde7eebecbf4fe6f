// Package monitor periodically reports the state of the simulation and the
// recording pipeline.
package monitor

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/dronelab/swarmsim/internal/model"
	"github.com/dronelab/swarmsim/internal/session"
	"github.com/dronelab/swarmsim/internal/simulator"
	"github.com/dronelab/swarmsim/internal/worker"
)

// DefaultInterval is the reporting period.
const DefaultInterval = time.Second

// Hypertables lists the time series tables and their compression segment
// columns.
var Hypertables = map[string][]string{
	"drone_states": {"session_id", "drone_id"},
	"sim_events":   {"session_id"},
	"performances": {"session_id"},
}

// PerformanceRecorder is implemented by backends that persist pipeline
// samples.
type PerformanceRecorder interface {
	RecordPerformance(p model.Performance) error
	QueueLengths() (states, events int)
}

// Dependencies holds all dependencies for the monitor service
type Dependencies struct {
	Simulator     *simulator.Simulator
	WorkerManager *worker.Manager
	Session       *session.Context
	// Recorder is optional.
	Recorder PerformanceRecorder
	// StatusPath is rewritten on every report when set.
	StatusPath string
	Interval   time.Duration
	Logger     *slog.Logger
	// DB is only needed for ValidateHypertables.
	DB *gorm.DB
}

// Status is one report.
type Status struct {
	Time          time.Time    `json:"time"`
	SimTime       float64      `json:"simTime"`
	Frame         uint         `json:"frame"`
	Paused        bool         `json:"paused"`
	Drones        int          `json:"drones"`
	Crashed       int          `json:"crashed"`
	Settled       int          `json:"settled"`
	MinBattery    float64      `json:"minBattery"`
	SessionActive bool         `json:"sessionActive"`
	SessionName   string       `json:"sessionName"`
	Recording     worker.Stats `json:"recording"`
	FramesQueued  int          `json:"framesQueued"`
	EventsQueued  int          `json:"eventsQueued"`
	DroppedFrames uint64       `json:"droppedFrames"`
	LastWriteMs   float32      `json:"lastWriteMs"`
}

// Service manages status monitoring
type Service struct {
	deps      Dependencies
	isRunning bool
	mu        sync.RWMutex
	stopChan  chan struct{}
	done      chan struct{}
}

// NewService creates a new monitor service
func NewService(deps Dependencies) *Service {
	if deps.Interval <= 0 {
		deps.Interval = DefaultInterval
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Service{
		deps:     deps,
		stopChan: make(chan struct{}),
	}
}

// IsRunning returns whether the status monitor is running
func (s *Service) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// GetStatus collects the current status and its performance sample.
func (s *Service) GetStatus() (Status, model.Performance) {
	f := s.deps.Simulator.Snapshot()
	st := Status{
		Time:          time.Now(),
		SimTime:       f.Timestamp,
		Frame:         f.Index,
		Paused:        s.deps.Simulator.Paused(),
		Drones:        len(f.Drones),
		DroppedFrames: s.deps.Simulator.DroppedFrames(),
	}
	for i, d := range f.Drones {
		if d.Crashed {
			st.Crashed++
		}
		if d.Settled {
			st.Settled++
		}
		if i == 0 || d.Battery < st.MinBattery {
			st.MinBattery = d.Battery
		}
	}

	if s.deps.Session != nil {
		st.SessionActive = s.deps.Session.Active()
		st.SessionName = s.deps.Session.GetSession().Name
	}
	if s.deps.WorkerManager != nil {
		st.Recording = s.deps.WorkerManager.Stats()
		st.LastWriteMs = float32(s.deps.WorkerManager.GetLastWriteDuration().Microseconds()) / 1000
	}
	if s.deps.Recorder != nil {
		st.FramesQueued, st.EventsQueued = s.deps.Recorder.QueueLengths()
	}

	perf := model.Performance{
		Time:                st.Time,
		SimTime:             st.SimTime,
		DroneCount:          uint16(st.Drones),
		FramesQueued:        uint32(st.FramesQueued),
		EventsQueued:        uint32(st.EventsQueued),
		DroppedFrames:       st.DroppedFrames,
		LastWriteDurationMs: st.LastWriteMs,
	}
	return st, perf
}

// Report collects a status, writes the status file and stores the
// performance sample.
func (s *Service) Report() Status {
	st, perf := s.GetStatus()
	logger := s.deps.Logger

	if s.deps.StatusPath != "" {
		if err := writeStatusFile(s.deps.StatusPath, st); err != nil {
			logger.Error("Error writing status file", "error", err)
		}
	}
	if s.deps.Recorder != nil && st.SessionActive {
		if err := s.deps.Recorder.RecordPerformance(perf); err != nil {
			logger.Error("Error recording performance sample", "error", err)
		}
	}
	logger.Debug("Status",
		"simTime", st.SimTime,
		"drones", st.Drones,
		"crashed", st.Crashed,
		"framesRecorded", st.Recording.FramesRecorded,
		"dropped", st.DroppedFrames)
	return st
}

func writeStatusFile(path string, st Status) error {
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}

// ValidateHypertables validates and creates TimescaleDB hypertables
func (s *Service) ValidateHypertables(tables map[string][]string) error {
	logger := s.deps.Logger.With("function", "validateHypertables")
	if s.deps.DB == nil {
		return fmt.Errorf("no database connection")
	}

	for table, segmentBy := range tables {
		var count int64
		err := s.deps.DB.Raw(`SELECT count(*) FROM timescaledb_information.hypertables WHERE hypertable_name = ?`, table).
			Scan(&count).Error
		if err != nil {
			return fmt.Errorf("checking hypertable %s: %w", table, err)
		}
		if count > 0 {
			logger.Info("Table is already configured", "table", table)
			continue
		}

		err = s.deps.DB.Exec(fmt.Sprintf(
			`SELECT create_hypertable('%s', 'time', chunk_time_interval => interval '1 day', if_not_exists => true, migrate_data => true);`,
			table)).Error
		if err != nil {
			logger.Error("Failed to create hypertable", "table", table, "error", err)
			return err
		}
		logger.Info("Created hypertable", "table", table)

		err = s.deps.DB.Exec(fmt.Sprintf(
			`ALTER TABLE %s SET (timescaledb.compress, timescaledb.compress_segmentby = '%s');`,
			table, strings.Join(segmentBy, ","))).Error
		if err != nil {
			logger.Error("Failed to enable compression", "table", table, "error", err)
			return err
		}

		err = s.deps.DB.Exec(fmt.Sprintf(
			`SELECT add_compression_policy('%s', compress_after => interval '14 day');`,
			table)).Error
		if err != nil {
			logger.Error("Failed to set compress_after", "table", table, "error", err)
			return err
		}
		logger.Info("Enabled hypertable compression", "table", table)
	}
	return nil
}

// Start starts the status monitor goroutine
func (s *Service) Start() error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = true
	s.stopChan = make(chan struct{})
	s.done = make(chan struct{})
	stop, done := s.stopChan, s.done
	s.mu.Unlock()

	go func() {
		defer close(done)

		s.deps.Logger.Debug("Starting status monitor goroutine", "interval", s.deps.Interval)
		ticker := time.NewTicker(s.deps.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				s.Report()
			}
		}
	}()

	return nil
}

// Stop stops the status monitor and waits for it to exit.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = false
	close(s.stopChan)
	done := s.done
	s.mu.Unlock()
	<-done
}
