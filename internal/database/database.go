// Package database opens the gorm connections used by the recording backends
// and prepares their schema.
package database

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/glebarez/sqlite"
	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/dronelab/swarmsim/internal/config"
	"github.com/dronelab/swarmsim/internal/model"
)

// ErrNoDumpPath is returned when dumping without a target file.
var ErrNoDumpPath = errors.New("sqlite file path not set")

const (
	postgresBatchSize = 10000
	sqliteBatchSize   = 2000
	sharedMemoryDSN   = "file::memory:?cache=shared"
)

// sqlitePragmas trade durability for write speed. The file is rebuilt from
// memory by DumpMemoryDBToDisk, so a crash loses nothing that was durable.
var sqlitePragmas = []string{
	"user_version = 1",
	"journal_mode = MEMORY",
	"synchronous = OFF",
	"cache_size = -32000",
	"temp_store = MEMORY",
	"page_size = 32768",
}

// PostgresDSN builds the connection string for cfg.
func PostgresDSN(cfg config.PostgresConfig) string {
	kv := [][2]string{
		{"host", cfg.Host},
		{"port", cfg.Port},
		{"user", cfg.Username},
		{"password", cfg.Password},
		{"dbname", cfg.Database},
		{"sslmode", "disable"},
	}
	parts := make([]string, len(kv))
	for i, p := range kv {
		parts[i] = p[0] + "=" + p[1]
	}
	return strings.Join(parts, " ")
}

func gormConfig(batch int) *gorm.Config {
	return &gorm.Config{
		SkipDefaultTransaction: true,
		CreateBatchSize:        batch,
		Logger:                 logger.Default.LogMode(logger.Silent),
	}
}

// GetPostgresDB connects to the recording database.
func GetPostgresDB(cfg config.PostgresConfig, log zerolog.Logger) (*gorm.DB, error) {
	log.Debug().
		Str("host", cfg.Host).
		Str("port", cfg.Port).
		Str("database", cfg.Database).
		Msg("Connecting to Postgres")

	dialector := postgres.New(postgres.Config{
		DSN:                  PostgresDSN(cfg),
		PreferSimpleProtocol: true,
	})
	db, err := gorm.Open(dialector, gormConfig(postgresBatchSize))
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres at %s:%s: %w", cfg.Host, cfg.Port, err)
	}
	return db, nil
}

// GetSqliteDB opens a SQLite database at path, or a shared in-memory one
// when path is empty.
func GetSqliteDB(path string, log zerolog.Logger) (*gorm.DB, error) {
	dsn := path
	if dsn == "" {
		dsn = sharedMemoryDSN
	}

	cfg := gormConfig(sqliteBatchSize)
	cfg.PrepareStmt = true
	db, err := gorm.Open(sqlite.Open(dsn), cfg)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite %q: %w", dsn, err)
	}

	for _, p := range sqlitePragmas {
		if err := db.Exec("PRAGMA " + p).Error; err != nil {
			return nil, fmt.Errorf("setting pragma %q: %w", p, err)
		}
	}

	ev := log.Info()
	if path != "" {
		ev = ev.Str("path", path)
	} else {
		ev = ev.Bool("inMemory", true)
	}
	ev.Msg("SQLite database ready")
	return db, nil
}

// Setup migrates the schema and seeds the instance row once.
func Setup(db *gorm.DB, log zerolog.Logger) error {
	if db.Dialector.Name() == "postgres" {
		if err := db.Exec("CREATE EXTENSION IF NOT EXISTS postgis").Error; err != nil {
			return fmt.Errorf("enabling postgis: %w", err)
		}
		log.Info().Msg("PostGIS extension enabled")
	}

	log.Info().Int("tables", len(model.DatabaseModels)).Msg("Migrating schema")
	if err := db.AutoMigrate(model.DatabaseModels...); err != nil {
		return fmt.Errorf("migrating schema: %w", err)
	}

	var instances int64
	if err := db.Model(&model.InstanceInfo{}).Count(&instances).Error; err != nil {
		return fmt.Errorf("counting instance rows: %w", err)
	}
	if instances == 0 {
		info := model.InstanceInfo{
			GroupName:        "swarmsim",
			GroupDescription: "Quadrotor swarm simulation recordings",
		}
		if err := db.Create(&info).Error; err != nil {
			return fmt.Errorf("seeding instance row: %w", err)
		}
	}

	log.Info().Msg("Database setup complete")
	return nil
}

// DumpMemoryDBToDisk writes the database to path with VACUUM INTO,
// replacing any existing file.
func DumpMemoryDBToDisk(db *gorm.DB, path string) error {
	if path == "" {
		return ErrNoDumpPath
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing old dump: %w", err)
	}
	if err := db.Exec("VACUUM INTO '" + strings.ReplaceAll("file:"+path, "'", "''") + "'").Error; err != nil {
		return fmt.Errorf("dumping database to %s: %w", path, err)
	}
	return nil
}
