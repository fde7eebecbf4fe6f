package memory

import (
	"compress/gzip"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dronelab/swarmsim/internal/config"
	"github.com/dronelab/swarmsim/internal/storage"
	v1 "github.com/dronelab/swarmsim/internal/storage/memory/export/v1"
	"github.com/dronelab/swarmsim/pkg/core"
)

// Verify Backend implements storage.Backend interface
var _ storage.Backend = (*Backend)(nil)

// Verify Backend implements storage.Uploadable interface
var _ storage.Uploadable = (*Backend)(nil)

func testSession(name string) *core.Session {
	return &core.Session{
		ID:         "0b7d2c58-6a43-4c1e-9a9e-1f1f6c1c2a11",
		Name:       name,
		StartTime:  time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC),
		DroneCount: 2,
		Preset:     "line",
		TickRate:   60,
		Tag:        "test",
	}
}

func frame(ts float64) *core.Frame {
	return &core.Frame{
		Timestamp: ts,
		Drones: []core.DroneState{
			{ID: 0, Position: [3]float64{0, 5, 0}, Battery: 99},
			{ID: 1, Position: [3]float64{2, 5, 0}, Battery: 98},
		},
	}
}

func TestInitAndClose(t *testing.T) {
	b := New(config.MemoryConfig{})

	if err := b.Init(); err != nil {
		t.Errorf("Init failed: %v", err)
	}
	if err := b.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
}

func TestRecordWithoutSession(t *testing.T) {
	b := New(config.MemoryConfig{})

	assert.ErrorIs(t, b.RecordFrame(frame(0)), storage.ErrNoSession)
	assert.ErrorIs(t, b.RecordEvent(&core.Event{Type: core.EventCrash}), storage.ErrNoSession)
	assert.ErrorIs(t, b.RecordObstacles(nil), storage.ErrNoSession)
	assert.ErrorIs(t, b.EndSession(), storage.ErrNoSession)
}

func TestStartSessionResets(t *testing.T) {
	b := New(config.MemoryConfig{OutputDir: t.TempDir()})

	require.NoError(t, b.StartSession(testSession("first")))
	require.NoError(t, b.RecordFrame(frame(0)))
	require.NoError(t, b.RecordFrame(frame(0.1)))
	assert.Equal(t, 2, b.FrameCount())

	require.NoError(t, b.StartSession(testSession("second")))
	assert.Equal(t, 0, b.FrameCount())
}

func TestRecordFrameCopiesDrones(t *testing.T) {
	b := New(config.MemoryConfig{})
	require.NoError(t, b.StartSession(testSession("copy")))

	f := frame(0)
	require.NoError(t, b.RecordFrame(f))
	f.Drones[0].Battery = 0

	assert.Equal(t, 99.0, b.frames[0].Drones[0].Battery)
}

func TestEndSession_WritesJSON(t *testing.T) {
	dir := t.TempDir()
	b := New(config.MemoryConfig{OutputDir: dir})

	require.NoError(t, b.StartSession(testSession("Wind Test: 1")))
	require.NoError(t, b.RecordObstacles([]core.ObstacleDef{{Type: core.ShapeCylinder, Radius: 1, Height: 10}}))
	require.NoError(t, b.RecordFrame(frame(0)))
	require.NoError(t, b.RecordEvent(&core.Event{Timestamp: 0.05, Type: core.EventCollision, Data: map[string]any{"a": 0, "b": 1}}))
	require.NoError(t, b.RecordFrame(frame(0.1)))
	require.NoError(t, b.EndSession())

	path := b.GetExportedFilePath()
	assert.Equal(t, filepath.Join(dir, "Wind_Test__1_20260314_092653.json"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var export v1.Export
	require.NoError(t, json.Unmarshal(data, &export))
	assert.Equal(t, 2, export.FrameCount)
	assert.Equal(t, 0.1, export.Duration)
	assert.Len(t, export.Obstacles, 1)
	assert.Len(t, export.Events, 1)
	assert.Equal(t, "Wind Test: 1", export.Metadata.Name)

	meta := b.GetExportMetadata()
	assert.Equal(t, "Wind Test: 1", meta.SessionName)
	assert.Equal(t, 2, meta.DroneCount)
	assert.Equal(t, 0.1, meta.Duration)
	assert.Equal(t, "test", meta.Tag)

	// a second end without a new session is rejected
	assert.ErrorIs(t, b.EndSession(), storage.ErrNoSession)
}

func TestEndSession_Gzip(t *testing.T) {
	dir := t.TempDir()
	b := New(config.MemoryConfig{OutputDir: dir, CompressOutput: true})

	require.NoError(t, b.StartSession(testSession("gz")))
	require.NoError(t, b.RecordFrame(frame(0.25)))
	require.NoError(t, b.EndSession())

	path := b.GetExportedFilePath()
	assert.Equal(t, ".gz", filepath.Ext(path))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	gz, err := gzip.NewReader(f)
	require.NoError(t, err)
	defer gz.Close()

	var export v1.Export
	require.NoError(t, json.NewDecoder(gz).Decode(&export))
	assert.Equal(t, 1, export.FrameCount)
	assert.Equal(t, 0.25, export.Duration)
}

func TestEndSession_EmptyNameFallback(t *testing.T) {
	dir := t.TempDir()
	b := New(config.MemoryConfig{OutputDir: dir})

	require.NoError(t, b.StartSession(testSession("  ")))
	require.NoError(t, b.EndSession())
	assert.Equal(t, filepath.Join(dir, "swarm_20260314_092653.json"), b.GetExportedFilePath())
}

func TestConcurrentRecord(t *testing.T) {
	b := New(config.MemoryConfig{})
	require.NoError(t, b.StartSession(testSession("race")))

	var wg sync.WaitGroup
	for i := range 10 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := range 50 {
				_ = b.RecordFrame(frame(float64(i*50 + j)))
				_ = b.RecordEvent(&core.Event{Type: core.EventCommand})
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 500, b.FrameCount())
	assert.Len(t, b.events, 500)
}
