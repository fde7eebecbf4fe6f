// Package environment models the atmosphere around the swarm. Wind is a
// constant base velocity plus a mean-reverting random gust.
package environment

import (
	"math"
	"math/rand/v2"

	"github.com/go-gl/mathgl/mgl64"
)

// DefaultDrag is the drag coefficient used when converting wind to force.
const DefaultDrag = 0.1

// verticalGustScale damps the vertical gust component.
const verticalGustScale = 0.2

// WindConfig describes the wind field.
type WindConfig struct {
	Enabled       bool       `json:"enabled" mapstructure:"enabled"`
	BaseVelocity  [3]float64 `json:"baseVelocity" mapstructure:"baseVelocity"`
	GustMagnitude float64    `json:"gustMagnitude" mapstructure:"gustMagnitude"`
	GustFrequency float64    `json:"gustFrequency" mapstructure:"gustFrequency"`
}

// DefaultWindConfig returns disabled wind with moderate gust settings.
func DefaultWindConfig() WindConfig {
	return WindConfig{
		GustMagnitude: 2.0,
		GustFrequency: 0.1,
	}
}

// Environment holds the evolving wind state.
type Environment struct {
	cfg  WindConfig
	gust mgl64.Vec3
	rng  *rand.Rand
}

// New returns an environment whose gusts are drawn from seed.
func New(cfg WindConfig, seed uint64) *Environment {
	return &Environment{
		cfg: cfg,
		rng: rand.New(rand.NewPCG(seed, seed^0xda942042e4dd58b5)),
	}
}

// Config returns the wind configuration.
func (e *Environment) Config() WindConfig {
	return e.cfg
}

// SetConfig replaces the wind configuration. Gusts restart from calm.
func (e *Environment) SetConfig(cfg WindConfig) {
	e.cfg = cfg
	e.gust = mgl64.Vec3{}
}

// Update advances the gust process by dt seconds. The gust is an
// Ornstein-Uhlenbeck process whose stationary deviation per axis equals
// GustMagnitude and whose correlation rate is 2π·GustFrequency.
func (e *Environment) Update(dt float64) {
	if !e.cfg.Enabled || dt <= 0 || e.cfg.GustMagnitude <= 0 {
		return
	}
	theta := 2 * math.Pi * e.cfg.GustFrequency
	if theta <= 0 {
		theta = 1
	}
	decay := math.Exp(-theta * dt)
	spread := e.cfg.GustMagnitude * math.Sqrt(1-decay*decay)
	for i := range e.gust {
		e.gust[i] = e.gust[i]*decay + spread*e.rng.NormFloat64()
	}
}

// Velocity returns the current wind velocity in world frame.
func (e *Environment) Velocity() mgl64.Vec3 {
	if !e.cfg.Enabled {
		return mgl64.Vec3{}
	}
	g := e.gust
	g[1] *= verticalGustScale
	return mgl64.Vec3(e.cfg.BaseVelocity).Add(g)
}

// Force converts the wind velocity into an aerodynamic force using the
// quadratic drag law drag·w·|w| per axis.
func (e *Environment) Force(drag float64) mgl64.Vec3 {
	w := e.Velocity()
	return mgl64.Vec3{
		drag * w[0] * math.Abs(w[0]),
		drag * w[1] * math.Abs(w[1]),
		drag * w[2] * math.Abs(w[2]),
	}
}
