// Package avoidance computes artificial-potential-field repulsion from
// obstacles as a velocity correction.
package avoidance

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/dronelab/swarmsim/internal/obstacle"
)

const (
	minEffectiveSq = 0.01
	axisEpsilon    = 1e-8
)

// Config tunes the repulsive field.
type Config struct {
	Enabled       bool    `json:"enabled" mapstructure:"enabled"`
	SensorRange   float64 `json:"sensorRange" mapstructure:"sensorRange"`
	SafetyMargin  float64 `json:"safetyMargin" mapstructure:"safetyMargin"`
	RepulsionGain float64 `json:"repulsionGain" mapstructure:"repulsionGain"`
	VelocityLimit float64 `json:"velocityLimit" mapstructure:"velocityLimit"`
}

// DefaultConfig returns a disabled field with a 5 m sensing range.
func DefaultConfig() Config {
	return Config{
		Enabled:       false,
		SensorRange:   5.0,
		SafetyMargin:  0.5,
		RepulsionGain: 3.0,
		VelocityLimit: 2.0,
	}
}

// APF evaluates the repulsive field.
type APF struct {
	Config Config
}

// New returns an APF with the given configuration.
func New(cfg Config) *APF {
	return &APF{Config: cfg}
}

// Velocity returns the repulsive velocity at pos for a drone of the given
// radius. It is zero when disabled or without obstacles, and never longer
// than the configured limit.
func (a *APF) Velocity(pos mgl64.Vec3, obstacles obstacle.Source, droneRadius float64) mgl64.Vec3 {
	c := a.Config
	if !c.Enabled || obstacles == nil {
		return mgl64.Vec3{}
	}

	var total mgl64.Vec3
	add := func(dist float64, dir mgl64.Vec3) {
		effective := dist - droneRadius - c.SafetyMargin
		if effective > 0 && effective < c.SensorRange {
			total = total.Add(dir.Mul(c.RepulsionGain / math.Max(effective*effective, minEffectiveSq)))
		}
	}
	for _, b := range obstacles.Boxes() {
		add(DistanceToBox(pos, b))
	}
	for _, cyl := range obstacles.Cylinders() {
		add(DistanceToCylinder(pos, cyl))
	}

	if mag := total.Len(); mag > c.VelocityLimit {
		total = total.Mul(c.VelocityLimit / mag)
	}
	return total
}

// DistanceToBox returns the distance from pos to the box surface and the unit
// direction pointing away from it. Inside the box the distance is zero and the
// direction points to the nearest face.
func DistanceToBox(pos mgl64.Vec3, b obstacle.Box) (float64, mgl64.Vec3) {
	delta := pos.Sub(b.ClosestPoint(pos))
	dist := delta.Len()
	if dist < axisEpsilon {
		dir, _ := b.NearestFace(pos)
		return 0, dir
	}
	return dist, delta.Mul(1 / dist)
}

// DistanceToCylinder returns the distance from pos to the cylinder surface and
// the unit direction pointing away from it.
func DistanceToCylinder(pos mgl64.Vec3, c obstacle.Cylinder) (float64, mgl64.Vec3) {
	dx, dz := pos[0]-c.Base[0], pos[2]-c.Base[2]
	distXZ := math.Hypot(dx, dz)

	capDistance := func(capY, up float64) (float64, mgl64.Vec3) {
		if distXZ <= c.Radius {
			return math.Abs(pos[1] - capY), mgl64.Vec3{0, up, 0}
		}
		edge := mgl64.Vec3{c.Base[0] + c.Radius*dx/distXZ, capY, c.Base[2] + c.Radius*dz/distXZ}
		delta := pos.Sub(edge)
		d := delta.Len()
		if d <= axisEpsilon {
			return 0, mgl64.Vec3{0, up, 0}
		}
		return d, delta.Mul(1 / d)
	}

	switch {
	case pos[1] < c.YMin():
		return capDistance(c.YMin(), -1)
	case pos[1] > c.YMax():
		return capDistance(c.YMax(), 1)
	}

	if distXZ < axisEpsilon {
		return c.Radius, mgl64.Vec3{1, 0, 0}
	}
	dir := mgl64.Vec3{dx / distXZ, 0, dz / distXZ}
	return math.Abs(distXZ - c.Radius), dir
}
