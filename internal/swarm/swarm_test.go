package swarm

import (
	"errors"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dronelab/swarmsim/internal/spawn"
	"github.com/dronelab/swarmsim/pkg/core"
	"github.com/dronelab/swarmsim/pkg/hal"
)

const tick = 1.0 / 60

func newSwarm(t *testing.T, count int, mutate ...func(*Config)) *Swarm {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Count = count
	cfg.Preset = spawn.PresetLine
	cfg.Spacing = 10
	cfg.Wind.Enabled = false
	for _, m := range mutate {
		m(&cfg)
	}
	s, err := New(cfg)
	require.NoError(t, err)
	return s
}

// place positions the first two drones on the X axis with the given velocities.
func place(s *Swarm, x0, x1 float64, v0, v1 mgl64.Vec3) {
	a, b := s.drones[0].Body(), s.drones[1].Body()
	a.Position = mgl64.Vec3{x0, 10, 0}
	b.Position = mgl64.Vec3{x1, 10, 0}
	a.Velocity = v0
	b.Velocity = v1
}

func kinetic(s *Swarm) float64 {
	var e float64
	for _, d := range s.drones {
		v := d.Velocity()
		e += v.Dot(v)
	}
	return e
}

func momentum(s *Swarm) mgl64.Vec3 {
	var p mgl64.Vec3
	for _, d := range s.drones {
		p = p.Add(d.Velocity())
	}
	return p
}

func TestNew(t *testing.T) {
	s := newSwarm(t, 4)
	assert.Equal(t, 4, s.Len())
	assert.Zero(t, s.Time())
	for i, d := range s.Drones() {
		assert.Equal(t, i, d.ID())
		assert.InDelta(t, 10.0, d.Position().Y(), 1e-12)
	}
	assert.NotEqual(t, s.drones[0].Color(), s.drones[1].Color())
}

func TestNew_UnknownPreset(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Preset = "spiral"
	_, err := New(cfg)
	assert.ErrorIs(t, err, spawn.ErrUnknownPreset)
}

func TestRespawn(t *testing.T) {
	s := newSwarm(t, 3)
	s.Obstacles().AddBox(mgl64.Vec3{20, 2, 20}, mgl64.Vec3{1, 1, 1}, nil)
	s.Update(tick)

	require.NoError(t, s.Respawn(spawn.PresetCircle, 8))
	assert.Equal(t, 8, s.Len())
	assert.Equal(t, spawn.PresetCircle, s.Config().Preset)
	assert.Equal(t, 1, s.Obstacles().Len())
	assert.InDelta(t, tick, s.Time(), 1e-12)

	require.NoError(t, s.Respawn(spawn.PresetGrid, 0))
	assert.Zero(t, s.Len())
	s.Update(tick)
}

func TestRespawn_EmptyPresetKeepsCurrent(t *testing.T) {
	s := newSwarm(t, 3)
	want, err := spawn.Positions(4, spawn.PresetLine, 10, s.Config().Altitude, s.Config().Seed)
	require.NoError(t, err)

	require.NoError(t, s.Respawn("", 4))
	assert.Equal(t, spawn.PresetLine, s.Config().Preset)
	for i, d := range s.Drones() {
		assert.Equal(t, want[i], d.Body().Position, "drone %d", i)
	}
}

func TestRespawn_UnknownPresetWithoutDrones(t *testing.T) {
	s := newSwarm(t, 2)
	err := s.Respawn("spiral", 0)
	assert.ErrorIs(t, err, spawn.ErrUnknownPreset)
	assert.Equal(t, 2, s.Len())
	assert.Equal(t, spawn.PresetLine, s.Config().Preset)
}

func TestRespawn_InvalidCount(t *testing.T) {
	s := newSwarm(t, 2)
	for _, n := range []int{-1, DefaultMaxDrones + 1} {
		err := s.Respawn(spawn.PresetLine, n)
		assert.True(t, errors.Is(err, ErrInvalidCount), "count %d", n)
	}
	assert.Equal(t, 2, s.Len())
}

func TestDrone_NotFound(t *testing.T) {
	s := newSwarm(t, 2)
	d, err := s.Drone(1)
	require.NoError(t, err)
	assert.Equal(t, 1, d.ID())

	_, err = s.Drone(2)
	assert.ErrorIs(t, err, hal.ErrDroneNotFound)
	_, err = s.Drone(-1)
	assert.ErrorIs(t, err, hal.ErrDroneNotFound)
}

func TestSetFormation(t *testing.T) {
	s := newSwarm(t, 2)
	targets := []mgl64.Vec3{{0, 5, 0}, {4, 5, 0}}
	require.NoError(t, s.SetFormation(targets))
	assert.Equal(t, targets[1], s.drones[1].Target())
	assert.Error(t, s.SetFormation(targets[:1]))
}

func TestStates(t *testing.T) {
	s := newSwarm(t, 3)
	states := s.States()
	require.Len(t, states, 3)
	assert.Equal(t, 2, states[2].ID)
	assert.Equal(t, [3]float64(s.drones[2].Position()), states[2].Position)
}

func TestCollision_FarApartUnchanged(t *testing.T) {
	s := newSwarm(t, 2)
	v0, v1 := mgl64.Vec3{1, 0, 0}, mgl64.Vec3{-1, 0, 0}
	place(s, 0, 5, v0, v1)
	s.DetectCollisions()
	assert.Equal(t, v0, s.drones[0].Velocity())
	assert.Equal(t, v1, s.drones[1].Velocity())
	assert.Equal(t, mgl64.Vec3{0, 10, 0}, s.drones[0].Position())
	assert.Empty(t, s.CollisionEvents())
}

func TestCollision_ApproachingBounce(t *testing.T) {
	s := newSwarm(t, 2)
	place(s, 0, 0.4, mgl64.Vec3{1, 0, 0}, mgl64.Vec3{-1, 0, 0})
	s.DetectCollisions()

	assert.Less(t, s.drones[0].Velocity().X(), 0.0)
	assert.Greater(t, s.drones[1].Velocity().X(), 0.0)
	assert.False(t, s.drones[0].Crashed())

	events := s.CollisionEvents()
	require.Len(t, events, 1)
	assert.Equal(t, core.EventCollision, events[0].Type)
	assert.Equal(t, []int{0, 1}, events[0].Data["drones"])
	assert.Empty(t, s.CollisionEvents())
}

func TestCollision_SeparatingKeepsVelocity(t *testing.T) {
	s := newSwarm(t, 2)
	v0, v1 := mgl64.Vec3{-1, 0, 0}, mgl64.Vec3{1, 0, 0}
	place(s, 0, 0.4, v0, v1)
	s.DetectCollisions()

	assert.Equal(t, v0, s.drones[0].Velocity())
	assert.Equal(t, v1, s.drones[1].Velocity())
	d := s.drones[1].Position().Sub(s.drones[0].Position()).Len()
	assert.GreaterOrEqual(t, d, 2*s.Config().Collision.DroneRadius-1e-6)
}

func TestCollision_Separation(t *testing.T) {
	s := newSwarm(t, 2)
	place(s, 0, 0.1, mgl64.Vec3{}, mgl64.Vec3{})
	s.drones[1].Body().Position = mgl64.Vec3{0.05, 10.05, 0.02}
	s.DetectCollisions()

	d := s.drones[1].Position().Sub(s.drones[0].Position()).Len()
	assert.GreaterOrEqual(t, d, 0.6-1e-6)
}

func TestCollision_CoincidentUsesX(t *testing.T) {
	s := newSwarm(t, 2)
	place(s, 0, 0, mgl64.Vec3{}, mgl64.Vec3{})
	s.DetectCollisions()

	assert.InDelta(t, -0.3, s.drones[0].Position().X(), 1e-12)
	assert.InDelta(t, 0.3, s.drones[1].Position().X(), 1e-12)
}

func TestCollision_MomentumConserved(t *testing.T) {
	s := newSwarm(t, 2)
	place(s, 0, 0.5, mgl64.Vec3{2, 0.5, -1}, mgl64.Vec3{-1, 0, 0.3})
	before := momentum(s)
	s.DetectCollisions()
	after := momentum(s)
	for i := range 3 {
		assert.InDelta(t, before[i], after[i], 1e-10)
	}
}

func TestCollision_InelasticLosesEnergy(t *testing.T) {
	s := newSwarm(t, 2)
	place(s, 0, 0.5, mgl64.Vec3{2, 0, 0}, mgl64.Vec3{-2, 0, 0})
	before := kinetic(s)
	s.DetectCollisions()
	assert.Less(t, kinetic(s), before)
}

func TestCollision_ElasticConservesEnergy(t *testing.T) {
	s := newSwarm(t, 2, func(c *Config) { c.Collision.Restitution = 1 })
	place(s, 0, 0.5, mgl64.Vec3{2, 0.3, 0}, mgl64.Vec3{-1, 0, 0.5})
	before := kinetic(s)
	s.DetectCollisions()
	assert.InDelta(t, before, kinetic(s), 1e-8)
}

func TestCollision_ElasticHeadOnSwaps(t *testing.T) {
	s := newSwarm(t, 2, func(c *Config) { c.Collision.Restitution = 1 })
	place(s, 0, 0.5, mgl64.Vec3{1, 0, 0}, mgl64.Vec3{-1, 0, 0})
	s.DetectCollisions()
	assert.InDelta(t, -1.0, s.drones[0].Velocity().X(), 1e-12)
	assert.InDelta(t, 1.0, s.drones[1].Velocity().X(), 1e-12)
}

func TestCollision_CrashThreshold(t *testing.T) {
	tests := []struct {
		name     string
		speed    float64
		expected bool
	}{
		{"gentle", 3, false},
		{"at threshold", 4, true},
		{"violent", 6, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newSwarm(t, 2)
			place(s, 0, 0.5, mgl64.Vec3{tt.speed, 0, 0}, mgl64.Vec3{-tt.speed, 0, 0})
			s.DetectCollisions()
			assert.Equal(t, tt.expected, s.drones[0].Crashed())
			assert.Equal(t, tt.expected, s.drones[1].Crashed())

			crashes := 0
			for _, e := range s.CollisionEvents() {
				if e.Type == core.EventCrash {
					crashes++
				}
			}
			if tt.expected {
				assert.Equal(t, 2, crashes)
			} else {
				assert.Zero(t, crashes)
			}
		})
	}
}

func TestCollision_CrashedDronesFall(t *testing.T) {
	s := newSwarm(t, 2)
	place(s, 0, 0.5, mgl64.Vec3{6, 0, 0}, mgl64.Vec3{-6, 0, 0})
	s.DetectCollisions()
	require.True(t, s.drones[0].Crashed())

	for range 120 {
		s.Update(tick)
	}
	for _, d := range s.drones {
		assert.Less(t, d.Position().Y(), 10.0)
		assert.Equal(t, [4]float64{}, d.Body().MotorTargets)
	}
}

func TestCollision_CrashedPairSkipped(t *testing.T) {
	s := newSwarm(t, 2)
	place(s, 0, 0.2, mgl64.Vec3{1, 0, 0}, mgl64.Vec3{-1, 0, 0})
	s.drones[0].Crash()
	s.drones[1].Crash()
	s.DetectCollisions()
	assert.Equal(t, mgl64.Vec3{1, 0, 0}, s.drones[0].Velocity())
	assert.Equal(t, mgl64.Vec3{0.2, 10, 0}, s.drones[1].Position())
}

func TestCollision_Disabled(t *testing.T) {
	s := newSwarm(t, 2, func(c *Config) { c.Collision.Enabled = false })
	place(s, 0, 0.2, mgl64.Vec3{1, 0, 0}, mgl64.Vec3{-1, 0, 0})
	s.DetectCollisions()
	assert.Equal(t, mgl64.Vec3{1, 0, 0}, s.drones[0].Velocity())
	assert.Equal(t, mgl64.Vec3{0, 10, 0}, s.drones[0].Position())
}

func TestObstacleCollision_Bounce(t *testing.T) {
	s := newSwarm(t, 1)
	s.Obstacles().AddBox(mgl64.Vec3{0, 10, 0}, mgl64.Vec3{2, 2, 2}, nil)
	body := s.drones[0].Body()
	body.Position = mgl64.Vec3{1.2, 10, 0}
	body.Velocity = mgl64.Vec3{-2, 0, 0}

	s.DetectCollisions()
	assert.InDelta(t, 1.3, body.Position.X(), 1e-12)
	assert.InDelta(t, 0.6, body.Velocity.X(), 1e-12)
	assert.False(t, s.drones[0].Crashed())

	events := s.CollisionEvents()
	require.Len(t, events, 1)
	assert.Equal(t, core.EventObstacleCollision, events[0].Type)
}

func TestObstacleCollision_LeavingKeepsVelocity(t *testing.T) {
	s := newSwarm(t, 1)
	s.Obstacles().AddCylinder(mgl64.Vec3{0, 0, 0}, 1, 20, nil)
	body := s.drones[0].Body()
	body.Position = mgl64.Vec3{1.2, 10, 0}
	body.Velocity = mgl64.Vec3{1, 0, 0}

	s.DetectCollisions()
	assert.InDelta(t, 1.3, body.Position.X(), 1e-12)
	assert.Equal(t, mgl64.Vec3{1, 0, 0}, body.Velocity)
}

func TestObstacleCollision_Crash(t *testing.T) {
	s := newSwarm(t, 1)
	s.Obstacles().AddBox(mgl64.Vec3{0, 10, 0}, mgl64.Vec3{2, 2, 2}, nil)
	body := s.drones[0].Body()
	body.Position = mgl64.Vec3{1.2, 10, 0}
	body.Velocity = mgl64.Vec3{-9, 0, 0}

	s.DetectCollisions()
	assert.True(t, s.drones[0].Crashed())
}

func TestUpdate_AdvancesClock(t *testing.T) {
	s := newSwarm(t, 1)
	s.Update(tick)
	s.Update(0)
	s.Update(-1)
	assert.InDelta(t, tick, s.Time(), 1e-12)
}

func TestWind_DriftsSwarm(t *testing.T) {
	s := newSwarm(t, 3, func(c *Config) {
		c.Spacing = 3
		c.Wind.Enabled = true
		c.Wind.BaseVelocity = [3]float64{50, 0, 0}
		c.Wind.GustMagnitude = 0
	})
	start := make([]float64, s.Len())
	for i, d := range s.drones {
		start[i] = d.Position().X()
	}
	for range 60 {
		s.Update(tick)
	}
	for i, d := range s.drones {
		assert.Greater(t, d.Position().X(), start[i], "drone %d", i)
	}
}

func TestWind_DisabledHoldsFormation(t *testing.T) {
	s := newSwarm(t, 4, func(c *Config) { c.Spacing = 3 })
	for range 120 {
		s.Update(tick)
	}
	for _, d := range s.drones {
		assert.Less(t, d.Position().Sub(d.Target()).Len(), 2.0)
	}
}
