package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/dronelab/swarmsim/internal/api"
	"github.com/dronelab/swarmsim/internal/config"
	"github.com/dronelab/swarmsim/internal/database"
	"github.com/dronelab/swarmsim/internal/dispatcher"
	"github.com/dronelab/swarmsim/internal/hal/remote"
	"github.com/dronelab/swarmsim/internal/hal/sim"
	"github.com/dronelab/swarmsim/internal/handlers"
	"github.com/dronelab/swarmsim/internal/influx"
	"github.com/dronelab/swarmsim/internal/logging"
	"github.com/dronelab/swarmsim/internal/monitor"
	intOtel "github.com/dronelab/swarmsim/internal/otel"
	"github.com/dronelab/swarmsim/internal/parser"
	"github.com/dronelab/swarmsim/internal/session"
	"github.com/dronelab/swarmsim/internal/simulator"
	"github.com/dronelab/swarmsim/internal/storage"
	"github.com/dronelab/swarmsim/internal/swarm"
	"github.com/dronelab/swarmsim/internal/worker"
	"github.com/dronelab/swarmsim/pkg/hal"
)

// build info - BuildDate can be set at build time via ldflags
var (
	CurrentVersion string = "0.0.1"
	BuildDate      string = "unknown"

	AppName string = "swarmsim"
)

// global variables
var (
	// SlogManager handles all slog-based logging
	SlogManager *logging.SlogManager

	// Logger is the slog logger (convenience reference)
	Logger *slog.Logger

	// OTelProvider handles OpenTelemetry
	OTelProvider *intOtel.Provider

	SessionStartTime time.Time = time.Now()

	LogFilePath string
	LogFile     *os.File

	// closers run in reverse order on shutdown
	closers []func()
)

func main() {
	configDir := os.Getenv("SWARMSIM_CONFIG_DIR")
	if configDir == "" {
		configDir = "."
	}

	command := "run"
	if len(os.Args) > 1 {
		command = os.Args[1]
	}
	if command == "version" {
		fmt.Printf("%s %s (built %s)\n", AppName, CurrentVersion, BuildDate)
		return
	}

	if err := initLogging(configDir); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logging: %v\n", err)
		os.Exit(1)
	}
	defer shutdown()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	switch command {
	case "run":
		err = run(ctx, os.Stdin, os.Stdout)
	case "setupdb":
		err = setupDB()
	default:
		err = fmt.Errorf("unknown command %q, expected run, setupdb or version", command)
	}
	if err != nil {
		Logger.Error("Exiting with error", "command", command, "error", err)
		shutdown()
		os.Exit(1)
	}
}

// initLogging loads the config and sets up the file, OTel and GELF outputs.
// Stdout stays reserved for console replies.
func initLogging(configDir string) error {
	SlogManager = logging.NewSlogManager()
	SlogManager.Setup(os.Stderr, "info", nil)
	Logger = SlogManager.Logger()

	if err := config.Load(configDir); err != nil {
		Logger.Warn("Failed to load config, using defaults!", "error", err)
	} else {
		Logger.Info("Loaded config")
	}

	logsDir := config.GetString("logsDir")
	if err := os.MkdirAll(logsDir, 0o755); err != nil {
		return fmt.Errorf("creating logs dir: %w", err)
	}

	LogFilePath = logging.LogFilePath(logsDir, AppName, SessionStartTime)
	if _, err := os.Stat(LogFilePath); err == nil {
		_ = os.Rename(LogFilePath, LogFilePath+".old")
	}
	var err error
	LogFile, err = os.OpenFile(LogFilePath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o666)
	if err != nil {
		return fmt.Errorf("opening log file %s: %w", LogFilePath, err)
	}
	closers = append(closers, func() { _ = LogFile.Close() })

	level := config.GetString("logLevel")
	otelCfg := config.GetOTelConfig()
	OTelProvider, err = intOtel.New(intOtel.Config{
		Enabled:      otelCfg.Enabled,
		ServiceName:  otelCfg.ServiceName,
		BatchTimeout: otelCfg.BatchTimeout,
		LogWriter:    LogFile,
		Endpoint:     otelCfg.Endpoint,
		Insecure:     otelCfg.Insecure,
	})
	if err != nil {
		Logger.Error("Failed to initialize OTel, continuing without it", "error", err)
		OTelProvider, _ = intOtel.New(intOtel.Config{})
	}
	closers = append(closers, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := OTelProvider.Shutdown(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "OTel shutdown: %v\n", err)
		}
	})

	var extra []slog.Handler
	if config.GetBool("graylog.enabled") {
		h, c, err := logging.NewGELFHandler(config.GetString("graylog.address"), level)
		if err != nil {
			Logger.Error("Failed to connect to Graylog", "error", err)
		} else {
			extra = append(extra, h)
			closers = append(closers, func() { _ = c.Close() })
		}
	}

	SlogManager.Setup(io.MultiWriter(os.Stderr, LogFile), level, OTelProvider.LoggerProvider(), extra...)
	Logger = SlogManager.Logger()
	Logger.Info("Starting",
		"app", AppName,
		"version", CurrentVersion,
		"buildDate", BuildDate,
		"logFile", LogFilePath)
	return nil
}

func shutdown() {
	for i := len(closers) - 1; i >= 0; i-- {
		closers[i]()
	}
	closers = nil
}

// newZerolog returns a zerolog logger for the GORM and Influx layers,
// writing to the same file as slog.
func newZerolog(component string) zerolog.Logger {
	var out io.Writer = os.Stderr
	if LogFile != nil {
		out = io.MultiWriter(os.Stderr, LogFile)
	}
	return logging.NewZerolog(out, config.GetString("logLevel"), component)
}

// run builds the simulation and its pipeline, then serves the console until
// ctx is cancelled or the console quits.
func run(ctx context.Context, in io.Reader, out io.Writer) error {
	simCfg, err := config.GetSimulationConfig()
	if err != nil {
		return fmt.Errorf("loading simulation config: %w", err)
	}
	origin, err := config.GetGeoOrigin()
	if err != nil {
		return err
	}

	sw, err := swarm.New(simCfg.Swarm)
	if err != nil {
		return fmt.Errorf("creating swarm: %w", err)
	}
	if err := sw.Obstacles().LoadScene(simCfg.Obstacles); err != nil {
		return fmt.Errorf("loading obstacles: %w", err)
	}

	simulation, err := simulator.New(sw, simulator.Options{
		TickRate: simCfg.TickRate,
		Logger:   Logger.With("component", "simulator"),
	})
	if err != nil {
		return err
	}

	sessions := session.NewContext()
	SlogManager.WithContext(func() []slog.Attr {
		s := sessions.GetSession()
		return []slog.Attr{slog.String("session", s.Name)}
	})
	Logger = SlogManager.Logger()

	p := parser.NewParser(Logger.With("component", "parser"))
	if !origin.IsZero() {
		p.SetOrigin(origin)
	}

	storageCfg := config.GetStorageConfig()
	backend, err := createStorageBackend(storageCfg, origin)
	if err != nil {
		return fmt.Errorf("creating storage backend: %w", err)
	}
	if err := backend.Init(); err != nil {
		return fmt.Errorf("initializing %s storage: %w", storageCfg.Type, err)
	}
	defer func() {
		if err := backend.Close(); err != nil {
			Logger.Error("Failed to close storage backend", "error", err)
		}
	}()

	var telemetry worker.TelemetryWriter
	if influxCfg := config.GetInfluxConfig(); influxCfg.Enabled {
		backup := filepath.Join(config.GetString("logsDir"), "influx_backup.log.gzip")
		im := influx.NewManager(influxCfg, newZerolog("influx"), backup)
		if err := im.Connect(ctx); err != nil {
			Logger.Error("Failed to connect to InfluxDB, telemetry disabled", "error", err)
		} else {
			telemetry = im
			defer im.Close()
		}
	}

	var uploader worker.Uploader
	if key := config.GetString("api.apiKey"); key != "" {
		client := api.New(config.GetString("api.serverUrl"), key)
		if err := client.Healthcheck(); err != nil {
			Logger.Warn("Replay server healthcheck failed, uploads may fail", "error", err)
		}
		uploader = client
	}

	var fleet hal.Registry
	if natsCfg := config.GetNATSConfig(); natsCfg.Enabled {
		f, t, err := connectFleet(natsCfg)
		if err != nil {
			return err
		}
		defer t.Close()
		defer f.Close()
		fleet = f
	}

	d, err := dispatcher.New(logging.NewDispatcherLogger(newZerolog("dispatcher")))
	if err != nil {
		return err
	}
	defer d.Close()

	handlers.NewService(handlers.Dependencies{
		Simulator: simulation,
		Parser:    p,
		HAL:       sim.NewRegistry(sw, origin),
		Fleet:     fleet,
		Logger:    Logger.With("component", "handlers"),
	}).RegisterHandlers(d)

	wm := worker.NewManager(worker.Dependencies{
		Simulator:     simulation,
		Parser:        p,
		Session:       sessions,
		Telemetry:     telemetry,
		Uploader:      uploader,
		Origin:        origin,
		FrameInterval: storageCfg.FrameInterval,
		TickRate:      simCfg.TickRate,
		DefaultTag:    config.GetString("defaultTag"),
		Logger:        Logger.With("component", "worker"),
	}, backend)
	wm.RegisterHandlers(d)
	wm.Start(ctx)

	if config.GetBool("monitor.enabled") {
		ms := newMonitor(simulation, wm, sessions, backend)
		if err := ms.Start(); err != nil {
			return err
		}
		defer ms.Stop()
	}

	if err := simulation.Start(ctx); err != nil {
		return err
	}
	// the worker ends the session before the simulator closes its feeds
	defer simulation.Stop()
	defer wm.Stop()

	Logger.Info("Simulation running",
		"drones", simCfg.Swarm.Count,
		"preset", simCfg.Swarm.Preset,
		"storage", storageCfg.Type,
		"commands", len(d.Commands()))

	c := newConsole(d, in, out, Logger.With("component", "console"))
	err = c.Serve(ctx)
	if errors.Is(err, errQuit) {
		return nil
	}
	if err != nil {
		return err
	}
	<-ctx.Done()
	return nil
}

func connectFleet(cfg config.NATSConfig) (*remote.Fleet, *remote.NATSTransport, error) {
	t, err := remote.Connect(cfg.URL, cfg.Timeout)
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to NATS at %s: %w", cfg.URL, err)
	}
	f, err := remote.NewFleet(t, cfg.Drones,
		remote.WithLogger(Logger.With("component", "fleet")),
		remote.WithTimeout(cfg.Timeout))
	if err != nil {
		t.Close()
		return nil, nil, err
	}
	Logger.Info("Connected hardware fleet", "url", cfg.URL, "drones", cfg.Drones)
	return f, t, nil
}

func newMonitor(simulation *simulator.Simulator, wm *worker.Manager, sessions *session.Context, backend storage.Backend) *monitor.Service {
	deps := monitor.Dependencies{
		Simulator:     simulation,
		WorkerManager: wm,
		Session:       sessions,
		Logger:        Logger.With("component", "monitor"),
	}
	if d, err := time.ParseDuration(config.GetString("monitor.interval")); err == nil {
		deps.Interval = d
	}
	if name := config.GetString("monitor.statusFile"); name != "" {
		deps.StatusPath = filepath.Join(config.GetString("logsDir"), name)
	}
	if rec, ok := backend.(monitor.PerformanceRecorder); ok {
		deps.Recorder = rec
	}
	return monitor.NewService(deps)
}

// setupDB migrates the Postgres schema and configures the TimescaleDB
// hypertables when enabled.
func setupDB() error {
	cfg := config.GetStorageConfig()
	log := newZerolog("database")

	db, err := database.GetPostgresDB(cfg.Postgres, log)
	if err != nil {
		return err
	}
	if err := database.Setup(db, log); err != nil {
		return err
	}
	Logger.Info("Database schema ready", "host", cfg.Postgres.Host, "database", cfg.Postgres.Database)

	if !cfg.Timescale {
		return nil
	}
	ms := monitor.NewService(monitor.Dependencies{
		DB:     db,
		Logger: Logger.With("component", "monitor"),
	})
	return ms.ValidateHypertables(monitor.Hypertables)
}
