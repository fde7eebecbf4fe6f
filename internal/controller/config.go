package controller

import "github.com/dronelab/swarmsim/internal/avoidance"

// Config holds the gains and limits of every cascade stage.
type Config struct {
	PosKp       float64 `json:"posKp" mapstructure:"posKp"`
	PosKi       float64 `json:"posKi" mapstructure:"posKi"`
	PosKd       float64 `json:"posKd" mapstructure:"posKd"`
	MaxVelocity float64 `json:"maxVelocity" mapstructure:"maxVelocity"`

	VelKp        float64 `json:"velKp" mapstructure:"velKp"`
	VelKi        float64 `json:"velKi" mapstructure:"velKi"`
	VelKd        float64 `json:"velKd" mapstructure:"velKd"`
	MaxTiltAngle float64 `json:"maxTiltAngle" mapstructure:"maxTiltAngle"`

	AltKp            float64 `json:"altKp" mapstructure:"altKp"`
	AltKi            float64 `json:"altKi" mapstructure:"altKi"`
	AltKd            float64 `json:"altKd" mapstructure:"altKd"`
	MaxVerticalVel   float64 `json:"maxVerticalVel" mapstructure:"maxVerticalVel"`
	MaxThrustAdjust  float64 `json:"maxThrustAdjust" mapstructure:"maxThrustAdjust"`
	VelocityThrustKp float64 `json:"velocityThrustKp" mapstructure:"velocityThrustKp"`

	AttKp   float64 `json:"attKp" mapstructure:"attKp"`
	AttKi   float64 `json:"attKi" mapstructure:"attKi"`
	AttKd   float64 `json:"attKd" mapstructure:"attKd"`
	MaxRate float64 `json:"maxRate" mapstructure:"maxRate"`

	RateKp float64 `json:"rateKp" mapstructure:"rateKp"`
	RateKi float64 `json:"rateKi" mapstructure:"rateKi"`
	RateKd float64 `json:"rateKd" mapstructure:"rateKd"`

	DroneRadius float64          `json:"droneRadius" mapstructure:"droneRadius"`
	Avoidance   avoidance.Config `json:"avoidance" mapstructure:"avoidance"`
}

// DefaultConfig returns gains tuned for the default airframe.
func DefaultConfig() Config {
	return Config{
		PosKp:       0.8,
		PosKi:       0.0,
		PosKd:       0.2,
		MaxVelocity: 8.0,

		VelKp:        1.2,
		VelKi:        0.05,
		VelKd:        0.02,
		MaxTiltAngle: 0.35,

		AltKp:            1.0,
		AltKi:            0.1,
		AltKd:            0.6,
		MaxVerticalVel:   5.0,
		MaxThrustAdjust:  0.25,
		VelocityThrustKp: 0.15,

		AttKp:   5.0,
		AttKi:   0.0,
		AttKd:   0.2,
		MaxRate: 4.0,

		RateKp: 0.3,
		RateKi: 0.02,
		RateKd: 0.0,

		DroneRadius: 0.3,
		Avoidance:   avoidance.DefaultConfig(),
	}
}
