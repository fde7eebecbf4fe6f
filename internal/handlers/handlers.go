// Package handlers registers the command vocabulary on the dispatcher.
//
// Mutating commands are validated when they are dispatched and applied by
// the simulator at the start of the next tick. Reads run under the
// simulator lock and return immediately.
package handlers

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/dronelab/swarmsim/internal/dispatcher"
	"github.com/dronelab/swarmsim/internal/parser"
	"github.com/dronelab/swarmsim/internal/simulator"
	"github.com/dronelab/swarmsim/internal/spawn"
	"github.com/dronelab/swarmsim/internal/swarm"
	"github.com/dronelab/swarmsim/pkg/core"
	"github.com/dronelab/swarmsim/pkg/hal"
)

// Queued is returned by commands that are applied on the next tick.
const Queued = "queued"

// ErrRejected is returned when a drone refuses a command, such as a takeoff
// while disarmed.
var ErrRejected = errors.New("command rejected")

// Dependencies holds all dependencies needed by handlers.
type Dependencies struct {
	Simulator *simulator.Simulator
	Parser    *parser.Parser
	// HAL resolves drone ids inside queued commands. It must see the swarm
	// owned by Simulator.
	HAL hal.Registry
	// Fleet, when set, receives drone commands directly instead of the
	// simulated swarm.
	Fleet  hal.Registry
	Logger *slog.Logger
}

// Status is the reply of the status command.
type Status struct {
	Time      float64           `json:"time"`
	Frame     uint              `json:"frame"`
	Paused    bool              `json:"paused"`
	Drones    int               `json:"drones"`
	Obstacles int               `json:"obstacles"`
	Preset    string            `json:"preset"`
	States    []core.DroneState `json:"states"`
}

// Service provides handler methods for processing commands.
type Service struct {
	deps Dependencies
	log  *slog.Logger
}

// NewService creates a new handler service.
func NewService(deps Dependencies) *Service {
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Service{deps: deps, log: log}
}

// RegisterHandlers registers every command with the dispatcher.
func (s *Service) RegisterHandlers(d *dispatcher.Dispatcher) {
	// drone commands
	d.Register("arm", s.handleArm, dispatcher.Logged())
	d.Register("disarm", s.handleDisarm, dispatcher.Logged())
	d.Register("takeoff", s.handleTakeoff, dispatcher.Logged())
	d.Register("land", s.handleLand, dispatcher.Logged())
	d.Register("set_position", s.handleSetPosition, dispatcher.Logged())
	d.Register("set_position_geo", s.handleSetPositionGeo, dispatcher.Logged())
	d.Register("set_velocity", s.handleSetVelocity, dispatcher.Logged())
	d.Register("set_attitude", s.handleSetAttitude, dispatcher.Logged())
	d.Register("battery", s.handleBattery, dispatcher.Logged())

	// swarm and scene
	d.Register("respawn", s.handleRespawn, dispatcher.Logged())
	d.Register("formation", s.handleFormation, dispatcher.Logged())
	d.Register("obstacle_add", s.handleObstacleAdd, dispatcher.Logged())
	d.Register("obstacle_remove", s.handleObstacleRemove, dispatcher.Logged())
	d.Register("obstacle_clear", s.handleObstacleClear, dispatcher.Logged())
	d.Register("wind", s.handleWind, dispatcher.Logged())
	d.Register("collision", s.handleCollision, dispatcher.Logged())

	// time and state
	d.Register("pause", s.handlePause, dispatcher.Logged())
	d.Register("resume", s.handleResume, dispatcher.Logged())
	d.Register("step", s.handleStep, dispatcher.Logged())
	d.Register("status", s.handleStatus)

	s.log.Debug("Registered command handlers", "count", len(d.Commands()))
}

// checkDrone verifies that id exists in the swarm or fleet.
func (s *Service) checkDrone(id int) error {
	if s.deps.Fleet != nil {
		_, err := s.deps.Fleet.HAL(id)
		return err
	}
	return s.deps.Simulator.Exec(func(sw *swarm.Swarm) error {
		_, err := sw.Drone(id)
		return err
	})
}

// onDrones runs fn for each drone selected by t. Against a fleet the calls
// are made immediately, otherwise they are queued for the next tick.
func (s *Service) onDrones(name string, t parser.Target, fn func(h hal.DroneHAL) error) (any, error) {
	if !t.All {
		if err := s.checkDrone(t.ID); err != nil {
			return nil, err
		}
	}

	if s.deps.Fleet != nil {
		if err := forEach(s.deps.Fleet, t, fn); err != nil {
			return nil, err
		}
		return "ok", nil
	}

	s.deps.Simulator.Enqueue(simulator.Command{
		Name: name,
		Apply: func(*swarm.Swarm) error {
			return forEach(s.deps.HAL, t, fn)
		},
	})
	return Queued, nil
}

func forEach(r hal.Registry, t parser.Target, fn func(h hal.DroneHAL) error) error {
	ids := []int{t.ID}
	if t.All {
		ids = r.IDs()
	}
	var errs []error
	for _, id := range ids {
		h, err := r.HAL(id)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if err := fn(h); err != nil {
			errs = append(errs, fmt.Errorf("drone %d: %w", id, err))
		}
	}
	return errors.Join(errs...)
}

func accepted(ok bool, what string) error {
	if !ok {
		return fmt.Errorf("%w: %s", ErrRejected, what)
	}
	return nil
}

// enqueue schedules a swarm mutation for the next tick.
func (s *Service) enqueue(name string, apply func(sw *swarm.Swarm) error) (any, error) {
	s.deps.Simulator.Enqueue(simulator.Command{Name: name, Apply: apply})
	return Queued, nil
}

func (s *Service) handleArm(e dispatcher.Event) (any, error) {
	t, err := s.deps.Parser.ParseTarget(e.Args)
	if err != nil {
		return nil, err
	}
	return s.onDrones(e.Command, t, func(h hal.DroneHAL) error {
		return accepted(h.Arm(), "arm")
	})
}

func (s *Service) handleDisarm(e dispatcher.Event) (any, error) {
	t, err := s.deps.Parser.ParseTarget(e.Args)
	if err != nil {
		return nil, err
	}
	return s.onDrones(e.Command, t, func(h hal.DroneHAL) error {
		return accepted(h.Disarm(), "disarm")
	})
}

func (s *Service) handleTakeoff(e dispatcher.Event) (any, error) {
	cmd, err := s.deps.Parser.ParseTakeoff(e.Args)
	if err != nil {
		return nil, err
	}
	return s.onDrones(e.Command, cmd.Target, func(h hal.DroneHAL) error {
		return accepted(h.Takeoff(cmd.Altitude), "takeoff while disarmed")
	})
}

func (s *Service) handleLand(e dispatcher.Event) (any, error) {
	t, err := s.deps.Parser.ParseTarget(e.Args)
	if err != nil {
		return nil, err
	}
	return s.onDrones(e.Command, t, func(h hal.DroneHAL) error {
		return accepted(h.Land(), "land")
	})
}

func (s *Service) setPosition(name string, cmd parser.PositionCommand) (any, error) {
	p := cmd.Position
	return s.onDrones(name, parser.Target{ID: cmd.ID}, func(h hal.DroneHAL) error {
		h.SetPosition(p.X(), p.Y(), p.Z(), cmd.Yaw)
		return nil
	})
}

func (s *Service) handleSetPosition(e dispatcher.Event) (any, error) {
	cmd, err := s.deps.Parser.ParsePosition(e.Args)
	if err != nil {
		return nil, err
	}
	return s.setPosition(e.Command, cmd)
}

func (s *Service) handleSetPositionGeo(e dispatcher.Event) (any, error) {
	cmd, err := s.deps.Parser.ParseGeoPosition(e.Args)
	if err != nil {
		return nil, err
	}
	return s.setPosition(e.Command, cmd)
}

func (s *Service) handleSetVelocity(e dispatcher.Event) (any, error) {
	cmd, err := s.deps.Parser.ParseVelocity(e.Args)
	if err != nil {
		return nil, err
	}
	v := cmd.Velocity
	return s.onDrones(e.Command, parser.Target{ID: cmd.ID}, func(h hal.DroneHAL) error {
		h.SetVelocity(v.X(), v.Y(), v.Z(), cmd.YawRate)
		return nil
	})
}

func (s *Service) handleSetAttitude(e dispatcher.Event) (any, error) {
	cmd, err := s.deps.Parser.ParseAttitude(e.Args)
	if err != nil {
		return nil, err
	}
	return s.onDrones(e.Command, parser.Target{ID: cmd.ID}, func(h hal.DroneHAL) error {
		h.SetAttitude(cmd.Roll, cmd.Pitch, cmd.YawRate, cmd.Thrust)
		return nil
	})
}

// handleBattery overrides simulated charge. Real packs cannot be set.
func (s *Service) handleBattery(e dispatcher.Event) (any, error) {
	if s.deps.Fleet != nil {
		return nil, fmt.Errorf("%w: battery override needs the simulator", ErrRejected)
	}
	cmd, err := s.deps.Parser.ParseBattery(e.Args)
	if err != nil {
		return nil, err
	}
	if !cmd.All {
		if err := s.checkDrone(cmd.ID); err != nil {
			return nil, err
		}
	}
	return s.enqueue(e.Command, func(sw *swarm.Swarm) error {
		if !cmd.All {
			d, err := sw.Drone(cmd.ID)
			if err != nil {
				return err
			}
			d.SetBattery(cmd.Percent)
			return nil
		}
		for _, d := range sw.Drones() {
			d.SetBattery(cmd.Percent)
		}
		return nil
	})
}

func (s *Service) handleRespawn(e dispatcher.Event) (any, error) {
	var (
		cmd   parser.RespawnCommand
		limit int
	)
	err := s.deps.Simulator.Exec(func(sw *swarm.Swarm) error {
		var err error
		limit = sw.Config().MaxDrones
		cmd, err = s.deps.Parser.ParseRespawn(e.Args, sw.Config())
		return err
	})
	if err != nil {
		return nil, err
	}
	if cmd.Count < 0 || cmd.Count > limit {
		return nil, fmt.Errorf("%w: %d", swarm.ErrInvalidCount, cmd.Count)
	}
	return s.enqueue(e.Command, func(sw *swarm.Swarm) error {
		return sw.Respawn(cmd.Preset, cmd.Count)
	})
}

func (s *Service) handleFormation(e dispatcher.Event) (any, error) {
	var targets []mgl64.Vec3
	err := s.deps.Simulator.Exec(func(sw *swarm.Swarm) error {
		cfg := sw.Config()
		cmd, err := s.deps.Parser.ParseFormation(e.Args, cfg)
		if err != nil {
			return err
		}
		targets, err = spawn.Positions(sw.Len(), cmd.Preset, cmd.Spacing, cmd.Altitude, cfg.Seed)
		return err
	})
	if err != nil {
		return nil, err
	}
	return s.enqueue(e.Command, func(sw *swarm.Swarm) error {
		return sw.SetFormation(targets)
	})
}

func (s *Service) handleObstacleAdd(e dispatcher.Event) (any, error) {
	cmd, err := s.deps.Parser.ParseObstacle(e.Args)
	if err != nil {
		return nil, err
	}
	def := cmd.Def
	return s.enqueue(e.Command, func(sw *swarm.Swarm) error {
		m := sw.Obstacles()
		switch def.Type {
		case core.ShapeBox:
			m.AddBox(mgl64.Vec3(def.Position), mgl64.Vec3(*def.Size), def.Color)
		case core.ShapeCylinder:
			m.AddCylinder(mgl64.Vec3(def.Position), def.Radius, def.Height, def.Color)
		}
		return nil
	})
}

func (s *Service) handleObstacleRemove(e dispatcher.Event) (any, error) {
	return s.enqueue(e.Command, func(sw *swarm.Swarm) error {
		if _, ok := sw.Obstacles().RemoveLast(); !ok {
			return errors.New("no obstacle to remove")
		}
		return nil
	})
}

func (s *Service) handleObstacleClear(e dispatcher.Event) (any, error) {
	return s.enqueue(e.Command, func(sw *swarm.Swarm) error {
		sw.Obstacles().Clear()
		return nil
	})
}

func (s *Service) handleWind(e dispatcher.Event) (any, error) {
	var cfg parser.WindCommand
	err := s.deps.Simulator.Exec(func(sw *swarm.Swarm) error {
		var err error
		cfg, err = s.deps.Parser.ParseWind(e.Args, sw.Environment().Config())
		return err
	})
	if err != nil {
		return nil, err
	}
	return s.enqueue(e.Command, func(sw *swarm.Swarm) error {
		sw.Environment().SetConfig(cfg)
		return nil
	})
}

func (s *Service) handleCollision(e dispatcher.Event) (any, error) {
	var cfg parser.CollisionCommand
	err := s.deps.Simulator.Exec(func(sw *swarm.Swarm) error {
		var err error
		cfg, err = s.deps.Parser.ParseCollision(e.Args, sw.Config().Collision)
		return err
	})
	if err != nil {
		return nil, err
	}
	return s.enqueue(e.Command, func(sw *swarm.Swarm) error {
		sw.SetCollision(cfg)
		return nil
	})
}

func (s *Service) handlePause(e dispatcher.Event) (any, error) {
	s.deps.Simulator.Pause()
	return "paused", nil
}

func (s *Service) handleResume(e dispatcher.Event) (any, error) {
	s.deps.Simulator.Resume()
	return "running", nil
}

// handleStep advances by whole ticks and returns the last frame.
func (s *Service) handleStep(e dispatcher.Event) (any, error) {
	cmd, err := s.deps.Parser.ParseStep(e.Args)
	if err != nil {
		return nil, err
	}
	var f core.Frame
	for range cmd.Count {
		f = s.deps.Simulator.Step()
	}
	return f, nil
}

func (s *Service) handleStatus(e dispatcher.Event) (any, error) {
	f := s.deps.Simulator.Snapshot()
	st := Status{
		Time:   f.Timestamp,
		Frame:  f.Index,
		Paused: s.deps.Simulator.Paused(),
		Drones: len(f.Drones),
		States: f.Drones,
	}
	err := s.deps.Simulator.Exec(func(sw *swarm.Swarm) error {
		st.Obstacles = sw.Obstacles().Len()
		st.Preset = sw.Config().Preset
		return nil
	})
	return st, err
}
