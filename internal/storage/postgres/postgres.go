// Package postgres implements the storage.Backend interface on PostgreSQL
// with PostGIS, through the GORM backend.
package postgres

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/dronelab/swarmsim/internal/config"
	"github.com/dronelab/swarmsim/internal/database"
	"github.com/dronelab/swarmsim/internal/geo"
	gormstorage "github.com/dronelab/swarmsim/internal/storage/gorm"
)

// maxOpenConns caps the pool used by the writer goroutine.
const maxOpenConns = 10

// Backend is the GORM backend bound to a Postgres connection.
type Backend struct {
	*gormstorage.Backend
}

// New connects to Postgres and validates the connection.
func New(cfg config.PostgresConfig, origin geo.Origin, log zerolog.Logger) (*Backend, error) {
	db, err := database.GetPostgresDB(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to access sql interface: %w", err)
	}
	if err = sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to validate connection: %w", err)
	}
	sqlDB.SetMaxOpenConns(maxOpenConns)

	return &Backend{
		Backend: gormstorage.New(gormstorage.Dependencies{
			DB:     db,
			Origin: origin,
			Logger: log,
		}),
	}, nil
}

// Close flushes pending rows and closes the connection pool.
func (b *Backend) Close() error {
	if err := b.Backend.Close(); err != nil {
		return err
	}
	sqlDB, err := b.DB().DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
