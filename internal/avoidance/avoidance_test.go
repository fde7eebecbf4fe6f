package avoidance

import (
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"

	"github.com/dronelab/swarmsim/internal/obstacle"
)

func enabled() *APF {
	cfg := DefaultConfig()
	cfg.Enabled = true
	return New(cfg)
}

func TestVelocity_DisabledOrEmpty(t *testing.T) {
	m := obstacle.NewManager()
	m.AddBox(mgl64.Vec3{2, 5, 0}, mgl64.Vec3{1, 10, 1}, nil)

	assert.Equal(t, mgl64.Vec3{}, New(DefaultConfig()).Velocity(mgl64.Vec3{0, 5, 0}, m, 0.3))
	assert.Equal(t, mgl64.Vec3{}, enabled().Velocity(mgl64.Vec3{0, 5, 0}, nil, 0.3))
	assert.Equal(t, mgl64.Vec3{}, enabled().Velocity(mgl64.Vec3{0, 5, 0}, obstacle.NewManager(), 0.3))
}

func TestVelocity_PushesAwayFromBox(t *testing.T) {
	m := obstacle.NewManager()
	m.AddBox(mgl64.Vec3{4, 5, 0}, mgl64.Vec3{2, 10, 2}, nil)

	// surface at x=3, effective distance 3-0.3-0.5 = 2.2
	v := enabled().Velocity(mgl64.Vec3{0, 5, 0}, m, 0.3)
	assert.Less(t, v.X(), 0.0)
	assert.InDelta(t, 3/(2.2*2.2), -v.X(), 1e-9)
	assert.InDelta(t, 0, v.Z(), 1e-12)
}

func TestVelocity_ClampedToLimit(t *testing.T) {
	m := obstacle.NewManager()
	m.AddBox(mgl64.Vec3{1.5, 5, 0}, mgl64.Vec3{1, 10, 1}, nil)

	// surface at x=1, effective 0.2: raw magnitude 75
	v := enabled().Velocity(mgl64.Vec3{0, 5, 0}, m, 0.3)
	assert.InDelta(t, 2.0, v.Len(), 1e-9)
}

func TestVelocity_IgnoresOutOfRangeAndInside(t *testing.T) {
	m := obstacle.NewManager()
	m.AddBox(mgl64.Vec3{20, 5, 0}, mgl64.Vec3{1, 10, 1}, nil)
	m.AddBox(mgl64.Vec3{0, 5, 0}, mgl64.Vec3{4, 10, 4}, nil)

	assert.Equal(t, mgl64.Vec3{}, enabled().Velocity(mgl64.Vec3{0, 5, 0}, m, 0.3))
}

func TestVelocity_Cylinder(t *testing.T) {
	m := obstacle.NewManager()
	m.AddCylinder(mgl64.Vec3{0, 0, 3}, 1, 10, nil)

	v := enabled().Velocity(mgl64.Vec3{0, 5, 0}, m, 0.3)
	assert.Less(t, v.Z(), 0.0)
	assert.InDelta(t, 0, v.X(), 1e-12)
}

func TestDistanceToCylinder(t *testing.T) {
	c := obstacle.Cylinder{Base: mgl64.Vec3{0, 0, 0}, Radius: 1, Height: 4}

	d, dir := DistanceToCylinder(mgl64.Vec3{3, 2, 0}, c)
	assert.InDelta(t, 2, d, 1e-12)
	assert.Equal(t, mgl64.Vec3{1, 0, 0}, dir)

	d, dir = DistanceToCylinder(mgl64.Vec3{0.5, 6, 0}, c)
	assert.InDelta(t, 2, d, 1e-12)
	assert.Equal(t, mgl64.Vec3{0, 1, 0}, dir)

	d, dir = DistanceToCylinder(mgl64.Vec3{0, -1, 0}, c)
	assert.InDelta(t, 1, d, 1e-12)
	assert.Equal(t, mgl64.Vec3{0, -1, 0}, dir)

	d, dir = DistanceToCylinder(mgl64.Vec3{4, 8, 0}, c)
	assert.InDelta(t, 5, d, 1e-12)
	assert.True(t, dir.ApproxEqual(mgl64.Vec3{0.6, 0.8, 0}))

	d, dir = DistanceToCylinder(mgl64.Vec3{0, 2, 0}, c)
	assert.Equal(t, 1.0, d)
	assert.Equal(t, mgl64.Vec3{1, 0, 0}, dir)
}

func TestDistanceToBox_Inside(t *testing.T) {
	b := obstacle.Box{Center: mgl64.Vec3{0, 0, 0}, HalfSize: mgl64.Vec3{1, 1, 1}}
	d, dir := DistanceToBox(mgl64.Vec3{0, 0.9, 0}, b)
	assert.Zero(t, d)
	assert.Equal(t, mgl64.Vec3{0, 1, 0}, dir)
}
