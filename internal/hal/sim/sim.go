// Package sim implements hal.DroneHAL on top of a simulated drone.
//
// A HAL is a thin view over the drone and is not safe for concurrent use. When
// the swarm is driven by a simulator, call into it through Simulator.Exec.
package sim

import (
	"github.com/go-gl/mathgl/mgl64"

	"github.com/dronelab/swarmsim/internal/drone"
	"github.com/dronelab/swarmsim/internal/geo"
	"github.com/dronelab/swarmsim/pkg/hal"
)

// Clock returns the current simulated time in seconds.
type Clock func() float64

// HAL forwards HAL calls to a drone and its flight controller.
type HAL struct {
	drone  *drone.Drone
	clock  Clock
	origin geo.Origin
}

var _ hal.DroneHAL = (*HAL)(nil)

// New wraps d. Readings are stamped with clock. A non-zero origin fills the
// geodetic fields of GPS readings.
func New(d *drone.Drone, clock Clock, origin geo.Origin) *HAL {
	return &HAL{drone: d, clock: clock, origin: origin}
}

// DroneID returns the drone id.
func (h *HAL) DroneID() int { return h.drone.ID() }

// IMU reads the accelerometer and gyroscope.
func (h *HAL) IMU() hal.IMUReading {
	return h.drone.Sensors().IMU(h.drone.Body(), h.clock())
}

// GPS reads the receiver. Between receiver updates the previous fix is
// returned unchanged.
func (h *HAL) GPS() hal.GPSReading {
	r := h.drone.Sensors().GPS(h.drone.Body(), h.clock())
	if !h.origin.IsZero() {
		r.Latitude, r.Longitude, r.AltitudeMSL = h.origin.ToGeodetic(r.Position)
	}
	return r
}

// Altitude reads the barometer, rangefinder and GPS altitude.
func (h *HAL) Altitude() hal.AltitudeReading {
	return h.drone.Sensors().Altitude(h.drone.Body(), h.clock())
}

// Battery reads the pack.
func (h *HAL) Battery() hal.BatteryReading {
	d := h.drone
	return d.Sensors().Battery(d.Battery(), d.Voltage(), d.Current(), h.clock())
}

// Status summarizes the flight state.
func (h *HAL) Status() hal.DroneStatus {
	d := h.drone
	ctrl := d.Controller()
	st := hal.DroneStatus{
		Timestamp: h.clock(),
		Armed:     ctrl.Armed(),
		Mode:      string(ctrl.Mode()),
		Airborne:  !d.Body().OnGround(),
	}
	if d.Crashed() {
		st.Mode = hal.ModeCrashed
		st.ErrorFlags |= hal.ErrorMotor
	}
	if d.Battery() <= hal.BatteryLowPct {
		st.ErrorFlags |= hal.ErrorBatteryLow
	}
	return st
}

// GroundTruth returns the true position and velocity.
func (h *HAL) GroundTruth() (position, velocity [3]float64) {
	return h.drone.Position(), h.drone.Velocity()
}

// SetPosition commands a position hold.
func (h *HAL) SetPosition(x, y, z, yaw float64) {
	h.drone.Controller().SetPosition(mgl64.Vec3{x, y, z}, yaw)
	h.drone.SyncTarget()
}

// SetVelocity commands a velocity in the world frame.
func (h *HAL) SetVelocity(vx, vy, vz, yawRate float64) {
	h.drone.Controller().SetVelocity(mgl64.Vec3{vx, vy, vz}, yawRate)
}

// SetAttitude commands roll and pitch angles, a yaw rate and a normalized
// collective thrust.
func (h *HAL) SetAttitude(roll, pitch, yawRate, thrust float64) {
	h.drone.Controller().SetAttitude(roll, pitch, yawRate, thrust)
}

// Arm enables the motors.
func (h *HAL) Arm() bool {
	h.drone.Controller().Arm()
	return true
}

// Disarm stops the motors.
func (h *HAL) Disarm() bool {
	h.drone.Controller().Disarm()
	return true
}

// Takeoff climbs vertically to altitude. It fails while
// disarmed.
func (h *HAL) Takeoff(altitude float64) bool {
	if !h.drone.Controller().Takeoff(altitude) {
		return false
	}
	h.drone.SyncTarget()
	return true
}

// Land descends to the ground below the current position.
func (h *HAL) Land() bool {
	if h.drone.Controller().Land() {
		h.drone.SyncTarget()
	}
	return true
}
