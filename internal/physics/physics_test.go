package physics

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dronelab/swarmsim/internal/util"
)

const tick = 1.0 / 60

func newBody(t *testing.T) *Quadrotor {
	t.Helper()
	q, err := New(DefaultConfig())
	require.NoError(t, err)
	return q
}

func TestNew_RejectsInvalidConfig(t *testing.T) {
	tests := []struct {
		name  string
		mut   func(*Config)
		field string
	}{
		{"zero mass", func(c *Config) { c.Mass = 0 }, "mass"},
		{"negative inertia", func(c *Config) { c.InertiaYY = -1 }, "inertiaYY"},
		{"nan mass", func(c *Config) { c.Mass = math.NaN() }, "mass"},
		{"max below min", func(c *Config) { c.MaxRPM = 0; c.MinRPM = 10 }, "maxRpm"},
		{"negative gravity", func(c *Config) { c.Gravity = -1 }, "gravity"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mut(&cfg)
			_, err := New(cfg)
			var cfgErr *ConfigError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, tt.field, cfgErr.Field)
		})
	}
}

func TestFreeFall(t *testing.T) {
	q := newBody(t)
	q.Position = mgl64.Vec3{0, 50, 0}
	for range 120 {
		q.Update(tick, mgl64.Vec3{})
	}
	assert.Less(t, q.Position.Y(), 40.0)
	assert.Less(t, q.Velocity.Y(), -10.0)
	assert.InDelta(t, 0, q.Position.X(), 0.01)
	assert.InDelta(t, 0, q.Position.Z(), 0.01)
}

func TestGroundConstraint(t *testing.T) {
	q := newBody(t)
	q.Position = mgl64.Vec3{0, 1, 0}
	for range 600 {
		q.Update(tick, mgl64.Vec3{})
	}
	assert.GreaterOrEqual(t, q.Position.Y(), 0.0)
	assert.GreaterOrEqual(t, q.Velocity.Y(), 0.0)
	assert.True(t, q.OnGround())
}

func TestHoverRPM(t *testing.T) {
	q := newBody(t)
	cfg := q.Config()
	rpm := q.HoverRPM()
	total := 4 * cfg.ThrustCoeff * rpm * rpm
	assert.InDelta(t, cfg.Mass*cfg.Gravity, total, 0.01)
	assert.Greater(t, rpm, 3000.0)
	assert.Less(t, rpm, 6000.0)
}

func TestHoverHoldsAltitude(t *testing.T) {
	q := newBody(t)
	q.Position = mgl64.Vec3{0, 10, 0}
	h := q.HoverRPM()
	q.MotorRPMs = [4]float64{h, h, h, h}
	q.SetMotorRPMs([4]float64{h, h, h, h})
	for range 60 {
		q.Update(tick, mgl64.Vec3{})
	}
	assert.InDelta(t, 10, q.Position.Y(), 1e-6)
	assert.InDelta(t, 0, q.AngularVelocity.Len(), 1e-9)
}

func TestMotorDynamics(t *testing.T) {
	q := newBody(t)
	q.SetMotorRPMs([4]float64{5000, 5000, 5000, 5000})
	q.Update(tick, mgl64.Vec3{})
	for _, r := range q.MotorRPMs {
		assert.Greater(t, r, 0.0)
		assert.Less(t, r, 5000.0)
	}
	for range 200 {
		q.Update(tick, mgl64.Vec3{})
	}
	for _, r := range q.MotorRPMs {
		assert.InDelta(t, 5000, r, 1.0)
	}
}

func TestSetMotorRPMs_Clamps(t *testing.T) {
	q := newBody(t)
	q.SetMotorRPMs([4]float64{-100, 9000, 100, 8000})
	assert.Equal(t, [4]float64{0, 8000, 100, 8000}, q.MotorTargets)
}

func TestUpdate_NonPositiveDt(t *testing.T) {
	q := newBody(t)
	q.Position = mgl64.Vec3{1, 2, 3}
	q.Velocity = mgl64.Vec3{1, 0, 0}
	before := *q
	q.Update(0, mgl64.Vec3{})
	q.Update(-1, mgl64.Vec3{})
	assert.Equal(t, before.Position, q.Position)
	assert.Equal(t, before.Velocity, q.Velocity)
}

func TestNaNRecovery(t *testing.T) {
	tests := []struct {
		name  string
		spoil func(q *Quadrotor)
	}{
		{"velocity", func(q *Quadrotor) { q.Velocity = mgl64.Vec3{math.NaN(), 0, 0} }},
		{"angular velocity", func(q *Quadrotor) { q.AngularVelocity = mgl64.Vec3{math.NaN(), 0, 0} }},
		{"orientation", func(q *Quadrotor) { q.Orientation = mgl64.Quat{W: math.NaN()} }},
		{"position", func(q *Quadrotor) { q.Position = mgl64.Vec3{0, math.Inf(1), 0} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := newBody(t)
			q.Position = mgl64.Vec3{0, 10, 0}
			q.SetMotorRPMs([4]float64{4000, 4000, 4000, 4000})
			tt.spoil(q)

			q.Update(tick, mgl64.Vec3{})
			assert.True(t, util.Finite(q.Velocity))
			assert.True(t, util.Finite(q.AngularVelocity))
			assert.Equal(t, mgl64.QuatIdent(), q.Orientation)

			for range 5 {
				q.Update(tick, mgl64.Vec3{})
			}
			assert.True(t, util.Finite(q.Position))
			assert.True(t, util.Finite(q.Velocity))
			assert.True(t, util.Finite(q.AngularVelocity))
		})
	}
}

func TestDifferentialThrustRolls(t *testing.T) {
	q := newBody(t)
	q.Position = mgl64.Vec3{0, 10, 0}
	// left motors faster: positive roll torque about Z
	q.MotorRPMs = [4]float64{5000, 4000, 5000, 4000}
	q.SetMotorRPMs(q.MotorRPMs)
	q.Update(tick, mgl64.Vec3{})
	assert.Greater(t, q.AngularVelocity.Z(), 0.0)
	assert.InDelta(t, 0, q.AngularVelocity.X(), 1e-12)

	// front motors faster: positive pitch torque about X
	q = newBody(t)
	q.MotorRPMs = [4]float64{5000, 5000, 4000, 4000}
	q.SetMotorRPMs(q.MotorRPMs)
	q.Update(tick, mgl64.Vec3{})
	assert.Greater(t, q.AngularVelocity.X(), 0.0)
}

func TestYawTorque(t *testing.T) {
	q := newBody(t)
	q.MotorRPMs = [4]float64{5000, 4000, 4000, 5000}
	q.SetMotorRPMs(q.MotorRPMs)
	q.Update(tick, mgl64.Vec3{})
	assert.Greater(t, q.AngularVelocity.Y(), 0.0)
}

func TestAngularVelocityClamp(t *testing.T) {
	q := newBody(t)
	q.Position = mgl64.Vec3{0, 100, 0}
	q.AngularVelocity = mgl64.Vec3{50, -50, 50}
	q.Update(tick, mgl64.Vec3{})
	for _, w := range q.AngularVelocity {
		assert.LessOrEqual(t, math.Abs(w), MaxAngularVelocity)
	}
}

func TestWindPushesBody(t *testing.T) {
	q := newBody(t)
	q.Position = mgl64.Vec3{0, 10, 0}
	for range 30 {
		q.Update(tick, mgl64.Vec3{3, 0, 0})
	}
	assert.Greater(t, q.Velocity.X(), 0.0)
	assert.Greater(t, q.Position.X(), 0.0)
}

func TestDirectionVectors(t *testing.T) {
	q := newBody(t)
	q.Update(tick, mgl64.Vec3{})
	assert.True(t, q.UpVector().ApproxEqual(mgl64.Vec3{0, 1, 0}))
	assert.True(t, q.ForwardVector().ApproxEqual(mgl64.Vec3{0, 0, 1}))
}

func TestPowerDraw(t *testing.T) {
	q := newBody(t)
	assert.Zero(t, q.PowerDraw())
	q.MotorRPMs = [4]float64{4000, 4000, 4000, 4000}
	k := q.Config().ThrustCoeff * 1e-3
	assert.InDelta(t, 4*k*math.Pow(4000, 3), q.PowerDraw(), 1e-9)
}
