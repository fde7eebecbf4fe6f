// Package physics integrates the 6-DOF rigid-body dynamics of an X-configuration
// quadrotor in a Y-up world frame.
//
// Motors are numbered 0 front-left, 1 front-right, 2 back-left, 3 back-right.
// Motors 0 and 3 spin clockwise.
package physics

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/dronelab/swarmsim/internal/quat"
	"github.com/dronelab/swarmsim/internal/util"
)

const (
	// MaxAngularVelocity bounds each body rate component in rad/s.
	MaxAngularVelocity = 20.0
	// GroundThreshold is the altitude below which the body counts as landed.
	GroundThreshold = 0.05

	armProjection = 0.7071
	powerCoeffK   = 1e-3
)

// Quadrotor is the rigid-body state of a single airframe.
type Quadrotor struct {
	Position        mgl64.Vec3
	Velocity        mgl64.Vec3
	Orientation     mgl64.Quat
	AngularVelocity mgl64.Vec3
	MotorRPMs       [4]float64
	MotorTargets    [4]float64
	Acceleration    mgl64.Vec3
	Rotation        mgl64.Mat3

	cfg        Config
	inertia    mgl64.Mat3
	inertiaInv mgl64.Mat3
	gravity    mgl64.Vec3
}

// New returns a body at rest at the origin.
func New(cfg Config) (*Quadrotor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Quadrotor{
		Orientation: quat.Identity(),
		Rotation:    mgl64.Ident3(),
		cfg:         cfg,
		inertia:     mgl64.Diag3(mgl64.Vec3{cfg.InertiaXX, cfg.InertiaYY, cfg.InertiaZZ}),
		inertiaInv:  mgl64.Diag3(mgl64.Vec3{1 / cfg.InertiaXX, 1 / cfg.InertiaYY, 1 / cfg.InertiaZZ}),
		gravity:     mgl64.Vec3{0, -cfg.Gravity, 0},
	}, nil
}

// Config returns the constants the body was built with.
func (q *Quadrotor) Config() Config {
	return q.cfg
}

// SetMotorRPMs sets the motor targets. Actual RPMs follow with first-order lag.
func (q *Quadrotor) SetMotorRPMs(rpms [4]float64) {
	for i, r := range rpms {
		q.MotorTargets[i] = mgl64.Clamp(r, q.cfg.MinRPM, q.cfg.MaxRPM)
	}
}

// HoverRPM is the per-motor speed whose thrust balances the weight.
func (q *Quadrotor) HoverRPM() float64 {
	perMotor := q.cfg.Mass * q.cfg.Gravity / 4
	return math.Sqrt(perMotor / q.cfg.ThrustCoeff)
}

// Update advances the body by dt seconds under the given world-frame wind
// force. A non-positive dt leaves the state untouched.
func (q *Quadrotor) Update(dt float64, wind mgl64.Vec3) {
	if dt <= 0 {
		return
	}
	c := q.cfg
	lastPosition := q.Position

	alpha := 1.0
	if c.MotorTimeConstant > 0 {
		alpha = math.Min(1, dt/c.MotorTimeConstant)
	}
	var thrusts [4]float64
	total := 0.0
	for i := range q.MotorRPMs {
		rpm := q.MotorRPMs[i] + alpha*(q.MotorTargets[i]-q.MotorRPMs[i])
		q.MotorRPMs[i] = mgl64.Clamp(rpm, c.MinRPM, c.MaxRPM)
		thrusts[i] = c.ThrustCoeff * q.MotorRPMs[i] * q.MotorRPMs[i]
		total += thrusts[i]
	}

	q.Rotation = quat.ToRotationMatrix(q.Orientation)
	thrustWorld := q.Rotation.Mul3x1(mgl64.Vec3{0, total, 0})
	drag := mgl64.Vec3{
		-c.Drag * q.Velocity[0] * math.Abs(q.Velocity[0]),
		-c.Drag * q.Velocity[1] * math.Abs(q.Velocity[1]),
		-c.Drag * q.Velocity[2] * math.Abs(q.Velocity[2]),
	}
	force := thrustWorld.Add(q.gravity.Mul(c.Mass)).Add(drag).Add(wind)

	q.Acceleration = force.Mul(1 / c.Mass)
	q.Velocity = q.Velocity.Add(q.Acceleration.Mul(dt))
	q.Position = q.Position.Add(q.Velocity.Mul(dt))

	if q.Position[1] < 0 {
		q.Position[1] = 0
		if q.Velocity[1] < 0 {
			q.Velocity[1] = 0
		}
	}

	l := c.ArmLength * armProjection
	r := q.MotorRPMs
	tauRoll := l * (thrusts[0] + thrusts[2] - thrusts[1] - thrusts[3])
	tauPitch := l * (thrusts[0] + thrusts[1] - thrusts[2] - thrusts[3])
	tauYaw := c.TorqueCoeff * (r[0]*r[0] + r[3]*r[3] - r[1]*r[1] - r[2]*r[2])
	torque := mgl64.Vec3{tauPitch, tauYaw, tauRoll}

	w := q.AngularVelocity
	gyroscopic := w.Cross(q.inertia.Mul3x1(w))
	angularAccel := q.inertiaInv.Mul3x1(torque.Sub(w.Mul(c.AngularDrag)).Sub(gyroscopic))
	w = w.Add(angularAccel.Mul(dt))
	for i := range w {
		w[i] = mgl64.Clamp(w[i], -MaxAngularVelocity, MaxAngularVelocity)
	}
	q.AngularVelocity = w
	q.Orientation = quat.Normalize(quat.Integrate(q.Orientation, w, dt))

	if !util.Finite(q.Position) || !util.Finite(q.Velocity) ||
		!util.Finite(q.AngularVelocity) || !quat.IsFinite(q.Orientation) {
		q.recover(lastPosition)
	}
}

// recover resets the dynamic state after a numerical blow-up.
func (q *Quadrotor) recover(lastPosition mgl64.Vec3) {
	q.Velocity = mgl64.Vec3{}
	q.AngularVelocity = mgl64.Vec3{}
	q.Orientation = quat.Identity()
	q.MotorRPMs = [4]float64{}
	q.MotorTargets = [4]float64{}
	q.Acceleration = mgl64.Vec3{}
	q.Rotation = mgl64.Ident3()
	if util.Finite(lastPosition) {
		q.Position = lastPosition
	} else {
		q.Position = mgl64.Vec3{}
	}
}

// EulerAngles returns (roll, pitch, yaw) of the current orientation.
func (q *Quadrotor) EulerAngles() mgl64.Vec3 {
	roll, pitch, yaw := quat.ToEuler(q.Orientation)
	return mgl64.Vec3{roll, pitch, yaw}
}

// UpVector is the body +Y axis in world frame as of the last update.
func (q *Quadrotor) UpVector() mgl64.Vec3 {
	return q.Rotation.Mul3x1(mgl64.Vec3{0, 1, 0})
}

// ForwardVector is the body +Z axis in world frame as of the last update.
func (q *Quadrotor) ForwardVector() mgl64.Vec3 {
	return q.Rotation.Mul3x1(mgl64.Vec3{0, 0, 1})
}

// OnGround reports whether the body sits at ground level.
func (q *Quadrotor) OnGround() bool {
	return q.Position[1] < GroundThreshold
}

// Speed is the magnitude of the linear velocity.
func (q *Quadrotor) Speed() float64 {
	return q.Velocity.Len()
}

// PowerDraw estimates electrical power in watts from the motor speeds.
func (q *Quadrotor) PowerDraw() float64 {
	k := q.cfg.ThrustCoeff * powerCoeffK
	p := 0.0
	for _, r := range q.MotorRPMs {
		a := math.Abs(r)
		p += k * a * a * a
	}
	return p
}
