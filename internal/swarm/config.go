package swarm

import (
	"github.com/dronelab/swarmsim/internal/drone"
	"github.com/dronelab/swarmsim/internal/environment"
	"github.com/dronelab/swarmsim/internal/spawn"
)

// DefaultMaxDrones bounds the swarm size accepted by Respawn.
const DefaultMaxDrones = 100

// CollisionConfig tunes the collision pass.
type CollisionConfig struct {
	Enabled     bool    `json:"enabled" mapstructure:"enabled"`
	DroneRadius float64 `json:"droneRadius" mapstructure:"droneRadius"`
	Restitution float64 `json:"restitution" mapstructure:"restitution"`
	CrashSpeed  float64 `json:"crashSpeed" mapstructure:"crashSpeed"`
}

// DefaultCollisionConfig returns the collision defaults.
func DefaultCollisionConfig() CollisionConfig {
	return CollisionConfig{
		Enabled:     true,
		DroneRadius: 0.3,
		Restitution: 0.3,
		CrashSpeed:  8.0,
	}
}

// Config describes a swarm.
type Config struct {
	Count     int                    `json:"count" mapstructure:"count"`
	MaxDrones int                    `json:"maxDrones" mapstructure:"maxDrones"`
	Preset    string                 `json:"preset" mapstructure:"preset"`
	Spacing   float64                `json:"spacing" mapstructure:"spacing"`
	Altitude  float64                `json:"altitude" mapstructure:"altitude"`
	Seed      uint64                 `json:"seed" mapstructure:"seed"`
	Colors    [][3]float64           `json:"colors" mapstructure:"colors"`
	Collision CollisionConfig        `json:"collision" mapstructure:"collision"`
	Wind      environment.WindConfig `json:"wind" mapstructure:"wind"`
	Drone     drone.Options          `json:"-" mapstructure:"-"`
}

// DefaultConfig returns a six-drone V formation at 10 m.
func DefaultConfig() Config {
	return Config{
		Count:     6,
		MaxDrones: DefaultMaxDrones,
		Preset:    spawn.PresetV,
		Spacing:   3.0,
		Altitude:  10.0,
		Seed:      42,
		Collision: DefaultCollisionConfig(),
		Wind:      environment.DefaultWindConfig(),
		Drone:     drone.DefaultOptions(),
	}
}

var palette = [][3]float64{
	{0.90, 0.30, 0.24},
	{0.18, 0.80, 0.44},
	{0.20, 0.60, 0.86},
	{0.95, 0.77, 0.06},
	{0.61, 0.35, 0.71},
	{0.10, 0.74, 0.61},
	{0.90, 0.49, 0.13},
	{0.93, 0.94, 0.95},
}

func (c Config) color(i int) [3]float64 {
	if len(c.Colors) > 0 {
		return c.Colors[i%len(c.Colors)]
	}
	return palette[i%len(palette)]
}
