// Package swarm steps a set of drones together and resolves drone-drone and
// drone-obstacle collisions after every tick.
package swarm

import (
	"errors"
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/dronelab/swarmsim/internal/drone"
	"github.com/dronelab/swarmsim/internal/environment"
	"github.com/dronelab/swarmsim/internal/obstacle"
	"github.com/dronelab/swarmsim/internal/spawn"
	"github.com/dronelab/swarmsim/pkg/core"
	"github.com/dronelab/swarmsim/pkg/hal"
)

const coincidentEpsilon = 1e-9

// ErrInvalidCount is returned for a negative or oversized drone count.
var ErrInvalidCount = errors.New("invalid drone count")

// Swarm owns the drones, the obstacle scene and the environment.
type Swarm struct {
	cfg       Config
	drones    []*drone.Drone
	obstacles *obstacle.Manager
	env       *environment.Environment
	time      float64
	events    []core.Event
}

// New builds a swarm from cfg.
func New(cfg Config) (*Swarm, error) {
	if cfg.MaxDrones <= 0 {
		cfg.MaxDrones = DefaultMaxDrones
	}
	s := &Swarm{
		cfg:       cfg,
		obstacles: obstacle.NewManager(),
		env:       environment.New(cfg.Wind, cfg.Seed),
	}
	if err := s.Respawn(cfg.Preset, cfg.Count); err != nil {
		return nil, err
	}
	return s, nil
}

// Respawn replaces every drone with count fresh drones in preset formation.
// An empty preset keeps the current one. Obstacles, wind and the clock are
// kept.
func (s *Swarm) Respawn(preset string, count int) error {
	if count < 0 || count > s.cfg.MaxDrones {
		return fmt.Errorf("%w: %d (allowed 0..%d)", ErrInvalidCount, count, s.cfg.MaxDrones)
	}
	if preset == "" {
		preset = s.cfg.Preset
	}
	name, err := spawn.Normalize(preset)
	if err != nil {
		return err
	}
	positions, err := spawn.Positions(count, name, s.cfg.Spacing, s.cfg.Altitude, s.cfg.Seed)
	if err != nil {
		return err
	}

	drones := make([]*drone.Drone, 0, count)
	for i, p := range positions {
		opts := s.cfg.Drone
		opts.Seed = s.cfg.Seed + uint64(i)
		d, err := drone.New(i, p, s.cfg.color(i), opts)
		if err != nil {
			return err
		}
		d.SetObstacles(s.obstacles)
		drones = append(drones, d)
	}
	s.drones = drones
	s.cfg.Count = count
	s.cfg.Preset = name
	return nil
}

// Config returns the current configuration.
func (s *Swarm) Config() Config { return s.cfg }

// Drones returns the drones ordered by id.
func (s *Swarm) Drones() []*drone.Drone { return s.drones }

// Len is the number of drones.
func (s *Swarm) Len() int { return len(s.drones) }

// Drone returns the drone with the given id.
func (s *Swarm) Drone(id int) (*drone.Drone, error) {
	if id < 0 || id >= len(s.drones) {
		return nil, fmt.Errorf("%w: %d", hal.ErrDroneNotFound, id)
	}
	return s.drones[id], nil
}

// Obstacles returns the shared obstacle scene.
func (s *Swarm) Obstacles() *obstacle.Manager { return s.obstacles }

// Environment returns the wind model.
func (s *Swarm) Environment() *environment.Environment { return s.env }

// Time is the simulated time in seconds.
func (s *Swarm) Time() float64 { return s.time }

// SetCollision replaces the collision configuration.
func (s *Swarm) SetCollision(cfg CollisionConfig) { s.cfg.Collision = cfg }

// SetFormation assigns one target per drone.
func (s *Swarm) SetFormation(targets []mgl64.Vec3) error {
	if len(targets) != len(s.drones) {
		return fmt.Errorf("formation has %d targets for %d drones", len(targets), len(s.drones))
	}
	for i, d := range s.drones {
		d.SetTarget(targets[i])
	}
	return nil
}

// Update advances the wind, every drone, the clock and the collision pass.
func (s *Swarm) Update(dt float64) {
	if dt <= 0 {
		return
	}
	s.env.Update(dt)
	wind := s.env.Force(s.cfg.Drone.Physics.Drag)
	for _, d := range s.drones {
		d.Update(dt, wind)
	}
	s.time += dt
	s.DetectCollisions()
}

// States returns a snapshot of every drone.
func (s *Swarm) States() []core.DroneState {
	out := make([]core.DroneState, len(s.drones))
	for i, d := range s.drones {
		out[i] = d.State()
	}
	return out
}

// CollisionEvents returns and clears the events recorded since the last call.
func (s *Swarm) CollisionEvents() []core.Event {
	ev := s.events
	s.events = nil
	return ev
}

func (s *Swarm) emit(kind string, data map[string]any) {
	s.events = append(s.events, core.Event{Timestamp: s.time, Type: kind, Data: data})
}

// DetectCollisions separates overlapping drones, bounces approaching pairs,
// and resolves drone-obstacle contacts. Impacts at or above the crash speed
// crash the drones involved.
func (s *Swarm) DetectCollisions() {
	c := s.cfg.Collision
	if !c.Enabled {
		return
	}
	minDist := 2 * c.DroneRadius

	for i := 0; i < len(s.drones); i++ {
		a := s.drones[i]
		if a.Crashed() {
			continue
		}
		for j := i + 1; j < len(s.drones); j++ {
			b := s.drones[j]
			if b.Crashed() || a.Crashed() {
				continue
			}
			s.resolvePair(a, b, minDist)
		}
	}

	for _, d := range s.drones {
		if d.Crashed() {
			continue
		}
		s.resolveObstacle(d)
	}
}

func (s *Swarm) crash(d *drone.Drone) {
	d.Crash()
	s.emit(core.EventCrash, map[string]any{"drone": d.ID()})
}

func (s *Swarm) resolvePair(a, b *drone.Drone, minDist float64) {
	c := s.cfg.Collision
	pa, pb := a.Body(), b.Body()
	delta := pb.Position.Sub(pa.Position)
	dist := delta.Len()
	if dist >= minDist {
		return
	}

	n := mgl64.Vec3{1, 0, 0}
	if dist > coincidentEpsilon {
		n = delta.Mul(1 / dist)
	}
	half := (minDist - dist) / 2
	pa.Position = pa.Position.Sub(n.Mul(half))
	pb.Position = pb.Position.Add(n.Mul(half))

	vRel := pb.Velocity.Sub(pa.Velocity).Dot(n)
	if vRel >= 0 {
		return
	}
	dv := n.Mul(-(1 + c.Restitution) * vRel / 2)
	pa.Velocity = pa.Velocity.Sub(dv)
	pb.Velocity = pb.Velocity.Add(dv)

	crash := -vRel >= c.CrashSpeed
	if crash {
		s.crash(a)
		s.crash(b)
	}
	s.emit(core.EventCollision, map[string]any{
		"drones":         []int{a.ID(), b.ID()},
		"relative_speed": -vRel,
		"crashed":        crash,
	})
}

func (s *Swarm) resolveObstacle(d *drone.Drone) {
	c := s.cfg.Collision
	body := d.Body()
	hit, ok := s.obstacles.CheckCollision(body.Position, c.DroneRadius)
	if !ok {
		return
	}
	body.Position = body.Position.Add(hit.Normal.Mul(hit.Penetration))

	vn := body.Velocity.Dot(hit.Normal)
	if vn >= 0 {
		return
	}
	body.Velocity = body.Velocity.Sub(hit.Normal.Mul((1 + c.Restitution) * vn))

	crash := math.Abs(vn) >= c.CrashSpeed
	if crash {
		s.crash(d)
	}
	s.emit(core.EventObstacleCollision, map[string]any{
		"drone":        d.ID(),
		"impact_speed": -vn,
		"crashed":      crash,
	})
}
