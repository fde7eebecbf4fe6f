// Package hal defines the hardware abstraction layer shared by simulated and
// real drones. Control code written against DroneHAL runs unchanged on either.
package hal

import "errors"

// ErrDroneNotFound is returned when looking up an unknown drone id.
var ErrDroneNotFound = errors.New("drone not found")

// ModeCrashed is reported by Status for a drone that hit something too hard.
const ModeCrashed = "CRASHED"

// DroneHAL is the capability interface of one drone.
//
// Sensor reads return immutable values. Commands report false only when a
// precondition fails, such as Takeoff while disarmed.
type DroneHAL interface {
	DroneID() int

	IMU() IMUReading
	GPS() GPSReading
	Altitude() AltitudeReading
	Battery() BatteryReading
	Status() DroneStatus
	// GroundTruth returns the true local position and velocity. Real
	// backends return their best estimate.
	GroundTruth() (position, velocity [3]float64)

	SetPosition(x, y, z, yaw float64)
	SetVelocity(vx, vy, vz, yawRate float64)
	SetAttitude(roll, pitch, yawRate, thrust float64)
	Arm() bool
	Disarm() bool
	Takeoff(altitude float64) bool
	Land() bool
}

// Registry resolves drone ids to HAL instances.
type Registry interface {
	HAL(id int) (DroneHAL, error)
	IDs() []int
}
