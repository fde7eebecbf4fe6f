package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/dronelab/swarmsim/internal/config"
	"github.com/dronelab/swarmsim/internal/geo"
	"github.com/dronelab/swarmsim/internal/storage"
	"github.com/dronelab/swarmsim/internal/storage/memory"
	pgstorage "github.com/dronelab/swarmsim/internal/storage/postgres"
	redisstorage "github.com/dronelab/swarmsim/internal/storage/redis"
	sqlitestorage "github.com/dronelab/swarmsim/internal/storage/sqlite"
	wsstorage "github.com/dronelab/swarmsim/internal/storage/websocket"
)

func createStorageBackend(storageCfg config.StorageConfig, origin geo.Origin) (storage.Backend, error) {
	switch storageCfg.Type {
	case "postgres":
		backend, err := pgstorage.New(storageCfg.Postgres, origin, newZerolog("postgres"))
		if err != nil {
			return nil, err
		}
		Logger.Info("Postgres storage backend initialized", "host", storageCfg.Postgres.Host)
		return backend, nil

	case "sqlite":
		cfg := storageCfg.SQLite
		if cfg.DumpPath == "" {
			cfg.DumpPath = filepath.Join(config.GetString("logsDir"),
				fmt.Sprintf("%s_%s.db", AppName, SessionStartTime.Format("20060102_150405")))
		}
		backend, err := sqlitestorage.New(cfg, origin, newZerolog("sqlite"))
		if err != nil {
			return nil, fmt.Errorf("failed to create SQLite backend: %w", err)
		}
		Logger.Info("SQLite storage backend initialized", "dumpPath", cfg.DumpPath)
		return backend, nil

	case "websocket":
		wsURL := httpToWS(config.GetString("api.serverUrl")) + "/api"
		Logger.Info("WebSocket storage backend initialized", "url", wsURL)
		return wsstorage.New(wsstorage.Config{
			URL:    wsURL,
			Secret: config.GetString("api.apiKey"),
		}, Logger), nil

	case "redis":
		Logger.Info("Redis storage backend initialized", "addr", storageCfg.Redis.Addr)
		return redisstorage.New(storageCfg.Redis), nil

	case "memory", "":
		Logger.Info("Memory storage backend initialized", "outputDir", storageCfg.Memory.OutputDir)
		return memory.New(storageCfg.Memory), nil

	default:
		return nil, fmt.Errorf("unknown storage type %q", storageCfg.Type)
	}
}

// httpToWS converts an HTTP(S) URL to a WebSocket URL.
func httpToWS(httpURL string) string {
	s := strings.TrimRight(httpURL, "/")
	s = strings.Replace(s, "https://", "wss://", 1)
	s = strings.Replace(s, "http://", "ws://", 1)
	return s
}
