package physics

import "fmt"

// Config holds the airframe and motor constants of a quadrotor.
type Config struct {
	Mass              float64 `json:"mass" mapstructure:"mass"`
	ArmLength         float64 `json:"armLength" mapstructure:"armLength"`
	Gravity           float64 `json:"gravity" mapstructure:"gravity"`
	Drag              float64 `json:"drag" mapstructure:"drag"`
	AngularDrag       float64 `json:"angularDrag" mapstructure:"angularDrag"`
	ThrustCoeff       float64 `json:"thrustCoeff" mapstructure:"thrustCoeff"`
	TorqueCoeff       float64 `json:"torqueCoeff" mapstructure:"torqueCoeff"`
	MaxRPM            float64 `json:"maxRpm" mapstructure:"maxRpm"`
	MinRPM            float64 `json:"minRpm" mapstructure:"minRpm"`
	MotorTimeConstant float64 `json:"motorTimeConstant" mapstructure:"motorTimeConstant"`
	InertiaXX         float64 `json:"inertiaXX" mapstructure:"inertiaXX"`
	InertiaYY         float64 `json:"inertiaYY" mapstructure:"inertiaYY"`
	InertiaZZ         float64 `json:"inertiaZZ" mapstructure:"inertiaZZ"`
}

// DefaultConfig returns the constants of a 1.5 kg, 250 mm-arm quadrotor.
func DefaultConfig() Config {
	return Config{
		Mass:              1.5,
		ArmLength:         0.25,
		Gravity:           9.81,
		Drag:              0.1,
		AngularDrag:       0.05,
		ThrustCoeff:       1.9e-7,
		TorqueCoeff:       5e-9,
		MaxRPM:            8000,
		MinRPM:            0,
		MotorTimeConstant: 0.02,
		InertiaXX:         0.02,
		InertiaYY:         0.04,
		InertiaZZ:         0.02,
	}
}

// ConfigError reports an invalid physics constant.
type ConfigError struct {
	Field string
	Value float64
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid physics config: %s = %v", e.Field, e.Value)
}

// Validate rejects constants that would make the dynamics undefined.
func (c Config) Validate() error {
	positive := []struct {
		name  string
		value float64
	}{
		{"mass", c.Mass},
		{"inertiaXX", c.InertiaXX},
		{"inertiaYY", c.InertiaYY},
		{"inertiaZZ", c.InertiaZZ},
		{"thrustCoeff", c.ThrustCoeff},
	}
	for _, p := range positive {
		if !(p.value > 0) {
			return &ConfigError{Field: p.name, Value: p.value}
		}
	}
	if c.Gravity < 0 {
		return &ConfigError{Field: "gravity", Value: c.Gravity}
	}
	if c.MaxRPM <= c.MinRPM {
		return &ConfigError{Field: "maxRpm", Value: c.MaxRPM}
	}
	return nil
}
