// Package drone composes the rigid body, flight controller, sensors and
// battery of a single quadrotor.
package drone

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/dronelab/swarmsim/internal/controller"
	"github.com/dronelab/swarmsim/internal/obstacle"
	"github.com/dronelab/swarmsim/internal/physics"
	"github.com/dronelab/swarmsim/internal/sensors"
	"github.com/dronelab/swarmsim/pkg/core"
)

const (
	// SettleDistance is the target distance under which a drone may count as settled.
	SettleDistance = 0.3
	// SettleSpeed is the speed under which a drone may count as settled.
	SettleSpeed = 0.5

	// DefaultCapacityJ is a 5000 mAh 4S pack: 5 Ah * 14.8 V * 3600 s.
	DefaultCapacityJ = 5.0 * 14.8 * 3600
	// DefaultCells is the series cell count of the pack.
	DefaultCells = 4

	cellEmptyV = 3.3
	cellRangeV = 0.9
)

// Options configure a drone.
type Options struct {
	Physics    physics.Config
	Controller controller.Config
	Sensors    sensors.Config
	CapacityJ  float64
	Cells      int
	Seed       uint64
}

// DefaultOptions returns the default airframe, gains, sensors and battery.
func DefaultOptions() Options {
	return Options{
		Physics:    physics.DefaultConfig(),
		Controller: controller.DefaultConfig(),
		Sensors:    sensors.DefaultConfig(),
		CapacityJ:  DefaultCapacityJ,
		Cells:      DefaultCells,
	}
}

// Drone is one simulated quadrotor.
type Drone struct {
	id    int
	color [3]float64

	body    *physics.Quadrotor
	ctrl    *controller.FlightController
	sensors *sensors.Suite

	target    mgl64.Vec3
	settled   bool
	battery   float64
	crashed   bool
	capacityJ float64
	cells     int
}

// New builds a drone at pos. It is armed and holding pos on return.
func New(id int, pos mgl64.Vec3, color [3]float64, opts Options) (*Drone, error) {
	body, err := physics.New(opts.Physics)
	if err != nil {
		return nil, fmt.Errorf("drone %d: %w", id, err)
	}
	body.Position = pos

	if opts.CapacityJ <= 0 {
		opts.CapacityJ = DefaultCapacityJ
	}
	if opts.Cells <= 0 {
		opts.Cells = DefaultCells
	}

	d := &Drone{
		id:        id,
		color:     color,
		body:      body,
		ctrl:      controller.New(body, opts.Controller),
		sensors:   sensors.New(opts.Sensors, opts.Seed),
		target:    pos,
		battery:   100,
		capacityJ: opts.CapacityJ,
		cells:     opts.Cells,
	}
	d.ctrl.Arm()
	d.ctrl.SetPosition(pos, 0)
	return d, nil
}

// ID returns the drone index within its swarm.
func (d *Drone) ID() int { return d.id }

// Color returns the display color.
func (d *Drone) Color() [3]float64 { return d.color }

// Body returns the rigid-body state.
func (d *Drone) Body() *physics.Quadrotor { return d.body }

// Controller returns the flight controller.
func (d *Drone) Controller() *controller.FlightController { return d.ctrl }

// Sensors returns the sensor suite.
func (d *Drone) Sensors() *sensors.Suite { return d.sensors }

// Position returns the current position.
func (d *Drone) Position() mgl64.Vec3 { return d.body.Position }

// Velocity returns the current velocity.
func (d *Drone) Velocity() mgl64.Vec3 { return d.body.Velocity }

// Target returns the position target.
func (d *Drone) Target() mgl64.Vec3 { return d.target }

// Battery returns the remaining charge in percent.
func (d *Drone) Battery() float64 { return d.battery }

// SetBattery overrides the remaining charge, clamped to [0, 100].
func (d *Drone) SetBattery(pct float64) { d.battery = mgl64.Clamp(pct, 0, 100) }

// Settled reports whether the drone is holding its target.
func (d *Drone) Settled() bool { return d.settled }

// Crashed reports whether the drone has crashed.
func (d *Drone) Crashed() bool { return d.crashed }

// Crash marks the drone as crashed. Its motors stop on the next update.
func (d *Drone) Crash() {
	d.crashed = true
	d.settled = false
}

// SetObstacles wires the scene used by obstacle avoidance.
func (d *Drone) SetObstacles(src obstacle.Source) {
	d.ctrl.SetObstacles(src)
}

// SetTarget commands a position hold at pos.
func (d *Drone) SetTarget(pos mgl64.Vec3) {
	d.target = pos
	d.settled = false
	d.ctrl.SetPosition(pos, 0)
}

// SyncTarget mirrors a controller position setpoint set through another
// path, such as takeoff or landing.
func (d *Drone) SyncTarget() {
	d.target = d.ctrl.PositionSetpoint()
}

// Update advances the drone by dt seconds under the given wind force.
func (d *Drone) Update(dt float64, wind mgl64.Vec3) {
	if d.crashed || d.battery <= 0 {
		d.body.SetMotorRPMs([4]float64{})
		d.body.Update(dt, wind)
		d.settled = false
		return
	}

	d.body.SetMotorRPMs(d.ctrl.Update(dt))
	d.body.Update(dt, wind)

	if dt > 0 {
		drain := d.body.PowerDraw() * dt / d.capacityJ * 100
		d.battery = max(0, d.battery-drain)
	}

	d.settled = d.body.Position.Sub(d.target).Len() < SettleDistance && d.body.Speed() < SettleSpeed
}

// Voltage is the pack voltage for the current charge.
func (d *Drone) Voltage() float64 {
	return float64(d.cells) * CellVoltage(d.battery)
}

// Current is the pack current at the present power draw.
func (d *Drone) Current() float64 {
	v := d.Voltage()
	if v <= 0 {
		return 0
	}
	return d.body.PowerDraw() / v
}

// CellVoltage approximates a LiPo cell voltage from its charge percentage.
func CellVoltage(pct float64) float64 {
	return cellEmptyV + pct/100*cellRangeV
}

// State returns a snapshot of the drone.
func (d *Drone) State() core.DroneState {
	return core.DroneState{
		ID:              d.id,
		Position:        d.body.Position,
		Velocity:        d.body.Velocity,
		Target:          d.target,
		Color:           d.color,
		Battery:         d.battery,
		Settled:         d.settled,
		Orientation:     d.body.EulerAngles(),
		AngularVelocity: d.body.AngularVelocity,
		MotorRPMs:       d.body.MotorRPMs,
		Armed:           d.ctrl.Armed(),
		Mode:            string(d.ctrl.Mode()),
		Crashed:         d.crashed,
	}
}
