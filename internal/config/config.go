package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/dronelab/swarmsim/internal/drone"
	"github.com/dronelab/swarmsim/internal/geo"
	"github.com/dronelab/swarmsim/internal/swarm"
	"github.com/dronelab/swarmsim/pkg/core"
)

// FileName is the JSON config file looked up in the config directory.
const FileName = "swarmsim.cfg.json"

// EnvPrefix prefixes environment overrides, e.g. SWARMSIM_STORAGE_TYPE.
const EnvPrefix = "SWARMSIM"

// envReplacer maps nested keys to environment names: storage.type becomes
// SWARMSIM_STORAGE_TYPE.
var envReplacer = strings.NewReplacer(".", "_")

// MemoryConfig holds in-memory/JSON storage backend settings
type MemoryConfig struct {
	OutputDir      string `json:"outputDir" mapstructure:"outputDir"`
	CompressOutput bool   `json:"compressOutput" mapstructure:"compressOutput"`
}

// SQLiteConfig holds SQLite storage backend settings
type SQLiteConfig struct {
	DumpInterval time.Duration `json:"dumpInterval" mapstructure:"dumpInterval"`
	DumpPath     string        `json:"dumpPath" mapstructure:"dumpPath"`
}

// PostgresConfig holds the Postgres connection settings
type PostgresConfig struct {
	Host     string `json:"host" mapstructure:"host"`
	Port     string `json:"port" mapstructure:"port"`
	Username string `json:"username" mapstructure:"username"`
	Password string `json:"password" mapstructure:"password"`
	Database string `json:"database" mapstructure:"database"`
}

// RedisConfig holds the Redis snapshot cache settings
type RedisConfig struct {
	Addr     string        `json:"addr" mapstructure:"addr"`
	Password string        `json:"password" mapstructure:"password"`
	DB       int           `json:"db" mapstructure:"db"`
	TTL      time.Duration `json:"ttl" mapstructure:"ttl"`
}

// StorageConfig selects and configures the recording backend
type StorageConfig struct {
	Type          string         `json:"type" mapstructure:"type"`
	FrameInterval int            `json:"frameInterval" mapstructure:"frameInterval"`
	Memory        MemoryConfig   `json:"memory" mapstructure:"memory"`
	SQLite        SQLiteConfig   `json:"sqlite" mapstructure:"sqlite"`
	Postgres      PostgresConfig `json:"postgres" mapstructure:"postgres"`
	Timescale     bool           `json:"timescale" mapstructure:"timescale"`
	Redis         RedisConfig    `json:"redis" mapstructure:"redis"`
}

// OTelConfig configures OpenTelemetry export
type OTelConfig struct {
	Enabled      bool          `json:"enabled" mapstructure:"enabled"`
	ServiceName  string        `json:"serviceName" mapstructure:"serviceName"`
	BatchTimeout time.Duration `json:"batchTimeout" mapstructure:"batchTimeout"`
	Endpoint     string        `json:"endpoint" mapstructure:"endpoint"`
	Insecure     bool          `json:"insecure" mapstructure:"insecure"`
}

// InfluxConfig configures the telemetry sink
type InfluxConfig struct {
	Enabled  bool   `json:"enabled" mapstructure:"enabled"`
	Host     string `json:"host" mapstructure:"host"`
	Port     string `json:"port" mapstructure:"port"`
	Protocol string `json:"protocol" mapstructure:"protocol"`
	Token    string `json:"token" mapstructure:"token"`
	Org      string `json:"org" mapstructure:"org"`
	Bucket   string `json:"bucket" mapstructure:"bucket"`
}

// NATSConfig configures the hardware HAL transport
type NATSConfig struct {
	Enabled bool          `json:"enabled" mapstructure:"enabled"`
	URL     string        `json:"url" mapstructure:"url"`
	Timeout time.Duration `json:"timeout" mapstructure:"timeout"`
	Drones  []int         `json:"drones" mapstructure:"drones"`
}

// SimulationConfig is everything needed to build and drive a swarm
type SimulationConfig struct {
	TickRate  float64
	Swarm     swarm.Config
	Obstacles []core.ObstacleDef
}

// Load reads configuration from JSON file and sets default values.
// configDir is the directory containing the config file. A .env file in the
// working directory is loaded first if present.
func Load(configDir string) error {
	_ = godotenv.Load()

	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(envReplacer)
	viper.AutomaticEnv()

	setDefaults()

	viper.SetConfigName(FileName)
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	err := viper.ReadInConfig()
	if err != nil {
		return fmt.Errorf("error reading config file: %v", err)
	}

	return nil
}

func setDefaults() {
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("defaultTag", "Sim")
	viper.SetDefault("logsDir", "./swarmlogs")

	viper.SetDefault("api.serverUrl", "http://localhost:5000")
	viper.SetDefault("api.apiKey", "")

	viper.SetDefault("storage.type", "memory")
	viper.SetDefault("storage.frameInterval", 6)
	viper.SetDefault("storage.memory.outputDir", "./recordings")
	viper.SetDefault("storage.memory.compressOutput", true)
	viper.SetDefault("storage.sqlite.dumpInterval", "3m")
	viper.SetDefault("storage.sqlite.dumpPath", "")
	viper.SetDefault("storage.postgres.host", "localhost")
	viper.SetDefault("storage.postgres.port", "5432")
	viper.SetDefault("storage.postgres.username", "postgres")
	viper.SetDefault("storage.postgres.password", "postgres")
	viper.SetDefault("storage.postgres.database", "swarmsim")
	viper.SetDefault("storage.postgres.timescale", false)
	viper.SetDefault("storage.redis.addr", "localhost:6379")
	viper.SetDefault("storage.redis.password", "")
	viper.SetDefault("storage.redis.db", 0)
	viper.SetDefault("storage.redis.ttl", "30s")

	viper.SetDefault("influx.enabled", false)
	viper.SetDefault("influx.host", "localhost")
	viper.SetDefault("influx.port", "8086")
	viper.SetDefault("influx.protocol", "http")
	viper.SetDefault("influx.token", "supersecrettoken")
	viper.SetDefault("influx.org", "swarmsim")
	viper.SetDefault("influx.bucket", "swarm-telemetry")

	viper.SetDefault("monitor.enabled", true)
	viper.SetDefault("monitor.interval", "5s")
	viper.SetDefault("monitor.statusFile", "status.json")

	viper.SetDefault("graylog.enabled", false)
	viper.SetDefault("graylog.address", "localhost:12201")

	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.serviceName", "swarmsim")
	viper.SetDefault("otel.batchTimeout", "5s")
	viper.SetDefault("otel.endpoint", "")
	viper.SetDefault("otel.insecure", true)

	viper.SetDefault("nats.enabled", false)
	viper.SetDefault("nats.url", "nats://localhost:4222")
	viper.SetDefault("nats.timeout", "5s")

	viper.SetDefault("geo.origin", "")

	sc := swarm.DefaultConfig()
	viper.SetDefault("simulation.tickRate", 60.0)
	viper.SetDefault("simulation.swarm.count", sc.Count)
	viper.SetDefault("simulation.swarm.maxDrones", sc.MaxDrones)
	viper.SetDefault("simulation.swarm.preset", sc.Preset)
	viper.SetDefault("simulation.swarm.spacing", sc.Spacing)
	viper.SetDefault("simulation.swarm.altitude", sc.Altitude)
	viper.SetDefault("simulation.swarm.seed", sc.Seed)
	viper.SetDefault("simulation.collision.enabled", sc.Collision.Enabled)
	viper.SetDefault("simulation.wind.enabled", sc.Wind.Enabled)
	viper.SetDefault("simulation.battery.capacityJ", drone.DefaultCapacityJ)
	viper.SetDefault("simulation.battery.cells", drone.DefaultCells)
}

// GetString returns a string config value.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt returns an int config value.
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool returns a bool config value.
func GetBool(key string) bool {
	return viper.GetBool(key)
}

// GetStorageConfig returns the recording backend configuration.
func GetStorageConfig() StorageConfig {
	return StorageConfig{
		Type:          viper.GetString("storage.type"),
		FrameInterval: viper.GetInt("storage.frameInterval"),
		Memory: MemoryConfig{
			OutputDir:      viper.GetString("storage.memory.outputDir"),
			CompressOutput: viper.GetBool("storage.memory.compressOutput"),
		},
		SQLite: SQLiteConfig{
			DumpInterval: viper.GetDuration("storage.sqlite.dumpInterval"),
			DumpPath:     viper.GetString("storage.sqlite.dumpPath"),
		},
		Postgres: PostgresConfig{
			Host:     viper.GetString("storage.postgres.host"),
			Port:     viper.GetString("storage.postgres.port"),
			Username: viper.GetString("storage.postgres.username"),
			Password: viper.GetString("storage.postgres.password"),
			Database: viper.GetString("storage.postgres.database"),
		},
		Timescale: viper.GetBool("storage.postgres.timescale"),
		Redis: RedisConfig{
			Addr:     viper.GetString("storage.redis.addr"),
			Password: viper.GetString("storage.redis.password"),
			DB:       viper.GetInt("storage.redis.db"),
			TTL:      viper.GetDuration("storage.redis.ttl"),
		},
	}
}

// GetOTelConfig returns the OpenTelemetry configuration.
func GetOTelConfig() OTelConfig {
	return OTelConfig{
		Enabled:      viper.GetBool("otel.enabled"),
		ServiceName:  viper.GetString("otel.serviceName"),
		BatchTimeout: viper.GetDuration("otel.batchTimeout"),
		Endpoint:     viper.GetString("otel.endpoint"),
		Insecure:     viper.GetBool("otel.insecure"),
	}
}

// GetInfluxConfig returns the InfluxDB configuration.
func GetInfluxConfig() InfluxConfig {
	return InfluxConfig{
		Enabled:  viper.GetBool("influx.enabled"),
		Host:     viper.GetString("influx.host"),
		Port:     viper.GetString("influx.port"),
		Protocol: viper.GetString("influx.protocol"),
		Token:    viper.GetString("influx.token"),
		Org:      viper.GetString("influx.org"),
		Bucket:   viper.GetString("influx.bucket"),
	}
}

// GetNATSConfig returns the hardware transport configuration.
func GetNATSConfig() NATSConfig {
	return NATSConfig{
		Enabled: viper.GetBool("nats.enabled"),
		URL:     viper.GetString("nats.url"),
		Timeout: viper.GetDuration("nats.timeout"),
		Drones:  viper.GetIntSlice("nats.drones"),
	}
}

// GetRedisConfig returns the Redis snapshot cache configuration.
func GetRedisConfig() RedisConfig {
	return GetStorageConfig().Redis
}

// GetGeoOrigin returns the configured geodetic origin, or the zero origin
// when none is set.
func GetGeoOrigin() (geo.Origin, error) {
	s := viper.GetString("geo.origin")
	if s == "" {
		return geo.Origin{}, nil
	}
	o, err := geo.ParseOrigin(s)
	if err != nil {
		return geo.Origin{}, fmt.Errorf("geo.origin %q: %w", s, err)
	}
	return o, nil
}

// GetSimulationConfig assembles the swarm configuration from defaults and
// the simulation section.
func GetSimulationConfig() (SimulationConfig, error) {
	sc := swarm.DefaultConfig()
	sc.Count = viper.GetInt("simulation.swarm.count")
	sc.MaxDrones = viper.GetInt("simulation.swarm.maxDrones")
	sc.Preset = viper.GetString("simulation.swarm.preset")
	sc.Spacing = viper.GetFloat64("simulation.swarm.spacing")
	sc.Altitude = viper.GetFloat64("simulation.swarm.altitude")
	sc.Seed = viper.GetUint64("simulation.swarm.seed")
	sc.Drone.CapacityJ = viper.GetFloat64("simulation.battery.capacityJ")
	sc.Drone.Cells = viper.GetInt("simulation.battery.cells")

	sections := []struct {
		key    string
		target any
	}{
		{"simulation.swarm.colors", &sc.Colors},
		{"simulation.collision", &sc.Collision},
		{"simulation.wind", &sc.Wind},
		{"simulation.physics", &sc.Drone.Physics},
		{"simulation.controller", &sc.Drone.Controller},
		{"simulation.sensors", &sc.Drone.Sensors},
		{"simulation.avoidance", &sc.Drone.Controller.Avoidance},
	}
	for _, s := range sections {
		if !viper.IsSet(s.key) {
			continue
		}
		if err := viper.UnmarshalKey(s.key, s.target); err != nil {
			return SimulationConfig{}, fmt.Errorf("decoding %s: %w", s.key, err)
		}
	}
	if err := sc.Drone.Physics.Validate(); err != nil {
		return SimulationConfig{}, err
	}

	var obstacles []core.ObstacleDef
	if viper.IsSet("simulation.obstacles") {
		if err := viper.UnmarshalKey("simulation.obstacles", &obstacles); err != nil {
			return SimulationConfig{}, fmt.Errorf("decoding simulation.obstacles: %w", err)
		}
	}

	cfg := SimulationConfig{
		TickRate:  viper.GetFloat64("simulation.tickRate"),
		Swarm:     sc,
		Obstacles: obstacles,
	}
	if cfg.TickRate <= 0 {
		return SimulationConfig{}, errors.New("simulation.tickRate must be positive")
	}
	return cfg, nil
}
