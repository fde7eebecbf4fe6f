package sqlitestorage

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dronelab/swarmsim/internal/config"
	"github.com/dronelab/swarmsim/internal/geo"
	"github.com/dronelab/swarmsim/internal/storage"
	"github.com/dronelab/swarmsim/pkg/core"
)

var _ storage.Backend = (*Backend)(nil)

func newTestBackend(t *testing.T, cfg config.SQLiteConfig) *Backend {
	t.Helper()
	b, err := newWithPath(filepath.Join(t.TempDir(), "mem.db"), cfg, geo.Origin{}, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, b.Init())
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func TestEndSession_Dumps(t *testing.T) {
	dump := filepath.Join(t.TempDir(), "out.db")
	b := newTestBackend(t, config.SQLiteConfig{DumpPath: dump})

	require.NoError(t, b.StartSession(&core.Session{ID: "s1", Name: "sqlite", StartTime: time.Now()}))
	require.NoError(t, b.RecordFrame(&core.Frame{Drones: []core.DroneState{{ID: 0}}}))
	require.NoError(t, b.EndSession())

	info, err := os.Stat(dump)
	require.NoError(t, err)
	assert.Positive(t, info.Size())
}

func TestDump_NoPath(t *testing.T) {
	b := newTestBackend(t, config.SQLiteConfig{})
	assert.NoError(t, b.Dump())
}

func TestDumpLoop(t *testing.T) {
	dump := filepath.Join(t.TempDir(), "loop.db")
	newTestBackend(t, config.SQLiteConfig{DumpPath: dump, DumpInterval: 20 * time.Millisecond})

	assert.Eventually(t, func() bool {
		_, err := os.Stat(dump)
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)
}

func TestClose_Idempotent(t *testing.T) {
	b := newTestBackend(t, config.SQLiteConfig{})
	require.NoError(t, b.Close())
	require.NoError(t, b.Close())
}
