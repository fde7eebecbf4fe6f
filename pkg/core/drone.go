// pkg/core/drone.go
package core

// DroneState is a point-in-time snapshot of one drone.
// Orientation holds Euler angles (roll, pitch, yaw) in radians.
type DroneState struct {
	ID              int        `json:"id"`
	Position        [3]float64 `json:"position"`
	Velocity        [3]float64 `json:"velocity"`
	Target          [3]float64 `json:"target"`
	Color           [3]float64 `json:"color"`
	Battery         float64    `json:"battery"`
	Settled         bool       `json:"settled"`
	Orientation     [3]float64 `json:"orientation"`
	AngularVelocity [3]float64 `json:"angular_velocity"`
	MotorRPMs       [4]float64 `json:"motor_rpms"`
	Armed           bool       `json:"armed"`
	Mode            string     `json:"mode"`
	Crashed         bool       `json:"crashed"`
}
