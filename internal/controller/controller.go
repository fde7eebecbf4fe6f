// Package controller implements the cascaded flight controller that turns
// position, velocity or attitude setpoints into motor RPM targets.
//
// The cascade runs position -> velocity -> tilt -> body rate -> motor mix,
// with a separate altitude loop producing collective thrust.
package controller

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/dronelab/swarmsim/internal/avoidance"
	"github.com/dronelab/swarmsim/internal/obstacle"
	"github.com/dronelab/swarmsim/internal/physics"
	"github.com/dronelab/swarmsim/internal/pid"
	"github.com/dronelab/swarmsim/internal/util"
)

// Mode is the flight mode of the controller.
type Mode string

const (
	ModeIdle     Mode = "IDLE"
	ModeHover    Mode = "HOVER"
	ModePosition Mode = "POSITION"
	ModeVelocity Mode = "VELOCITY"
	ModeAttitude Mode = "ATTITUDE"
	ModeTakeoff  Mode = "TAKEOFF"
	ModeLanding  Mode = "LANDING"
)

const (
	minThrust      = 0.05
	maxThrust      = 0.95
	mixScale       = 0.08
	landedAltitude = 0.1
	landedSpeed    = 0.1
	takeoffReached = 0.1
	innerIntegral  = 2.0
)

// FlightController drives one quadrotor body.
type FlightController struct {
	body *physics.Quadrotor
	cfg  Config

	posX, posZ *pid.Controller
	velX, velZ *pid.Controller
	alt        *pid.Controller
	att        *pid.Controller3D
	rate       *pid.Controller3D

	apf       *avoidance.APF
	obstacles obstacle.Source

	mode  Mode
	armed bool

	positionSP mgl64.Vec3
	velocitySP mgl64.Vec3
	attitudeSP mgl64.Vec3
	thrustSP   float64
	yawRateSP  float64

	hoverThrust float64
}

// New returns a disarmed controller in IDLE for body.
func New(body *physics.Quadrotor, cfg Config) *FlightController {
	fc := &FlightController{
		body: body,
		cfg:  cfg,
		posX: pid.New(cfg.PosKp, cfg.PosKi, cfg.PosKd, pid.WithSymmetricLimit(cfg.MaxVelocity)),
		posZ: pid.New(cfg.PosKp, cfg.PosKi, cfg.PosKd, pid.WithSymmetricLimit(cfg.MaxVelocity)),
		velX: pid.New(cfg.VelKp, cfg.VelKi, cfg.VelKd, pid.WithSymmetricLimit(cfg.MaxTiltAngle)),
		velZ: pid.New(cfg.VelKp, cfg.VelKi, cfg.VelKd, pid.WithSymmetricLimit(cfg.MaxTiltAngle)),
		alt: pid.New(cfg.AltKp, cfg.AltKi, cfg.AltKd,
			pid.WithSymmetricLimit(cfg.MaxThrustAdjust), pid.WithIntegralLimit(innerIntegral)),
		att:  pid.New3D(cfg.AttKp, cfg.AttKi, cfg.AttKd, pid.WithSymmetricLimit(cfg.MaxRate)),
		rate: pid.New3D(cfg.RateKp, cfg.RateKi, cfg.RateKd, pid.WithIntegralLimit(innerIntegral)),
		apf:  avoidance.New(cfg.Avoidance),
		mode: ModeIdle,
	}
	fc.hoverThrust = 0.5
	if maxRPM := body.Config().MaxRPM; maxRPM > 0 {
		fc.hoverThrust = body.HoverRPM() / maxRPM
	}
	return fc
}

// SetObstacles wires the scene used by obstacle avoidance.
func (fc *FlightController) SetObstacles(src obstacle.Source) {
	fc.obstacles = src
}

// SetAvoidance replaces the avoidance configuration.
func (fc *FlightController) SetAvoidance(cfg avoidance.Config) {
	fc.cfg.Avoidance = cfg
	fc.apf.Config = cfg
}

// Mode returns the current flight mode.
func (fc *FlightController) Mode() Mode { return fc.mode }

// Armed reports whether the motors are enabled.
func (fc *FlightController) Armed() bool { return fc.armed }

// PositionSetpoint returns the current position target.
func (fc *FlightController) PositionSetpoint() mgl64.Vec3 { return fc.positionSP }

// AttitudeSetpoint returns the last commanded (roll, pitch, yaw) attitude.
func (fc *FlightController) AttitudeSetpoint() mgl64.Vec3 { return fc.attitudeSP }

// Thrust returns the last normalized collective thrust.
func (fc *FlightController) Thrust() float64 { return fc.thrustSP }

// HoverThrust returns the normalized thrust that balances the weight.
func (fc *FlightController) HoverThrust() float64 { return fc.hoverThrust }

func (fc *FlightController) protected() bool {
	return fc.mode == ModeTakeoff || fc.mode == ModeLanding
}

func (fc *FlightController) setMode(m Mode) {
	if !fc.protected() {
		fc.mode = m
	}
}

// SetPosition commands a position hold. Yaw is accepted for interface parity
// and holds a zero yaw rate.
func (fc *FlightController) SetPosition(pos mgl64.Vec3, yaw float64) {
	fc.positionSP = pos
	fc.yawRateSP = 0
	fc.setMode(ModePosition)
}

// SetVelocity commands a world-frame velocity and yaw rate. The vertical
// component is limited to the configured climb rate.
func (fc *FlightController) SetVelocity(vel mgl64.Vec3, yawRate float64) {
	if fc.cfg.MaxVerticalVel > 0 {
		vel[1] = mgl64.Clamp(vel[1], -fc.cfg.MaxVerticalVel, fc.cfg.MaxVerticalVel)
	}
	fc.velocitySP = vel
	fc.yawRateSP = yawRate
	fc.setMode(ModeVelocity)
}

// SetAttitude commands roll and pitch angles, a yaw rate, and normalized thrust.
func (fc *FlightController) SetAttitude(roll, pitch, yawRate, thrust float64) {
	fc.attitudeSP = mgl64.Vec3{roll, pitch, 0}
	fc.yawRateSP = yawRate
	fc.thrustSP = mgl64.Clamp(thrust, 0, 1)
	fc.setMode(ModeAttitude)
}

// Arm enables the motors. An idle controller starts hovering.
func (fc *FlightController) Arm() {
	fc.armed = true
	if fc.mode == ModeIdle {
		fc.mode = ModeHover
	}
	fc.resetPIDs()
}

// Disarm stops the motors.
func (fc *FlightController) Disarm() {
	fc.armed = false
	fc.mode = ModeIdle
}

// Takeoff climbs vertically to altitude. It fails when disarmed.
func (fc *FlightController) Takeoff(altitude float64) bool {
	if !fc.armed {
		return false
	}
	fc.positionSP = fc.body.Position
	fc.positionSP[1] = altitude
	fc.mode = ModeTakeoff
	fc.resetPIDs()
	return true
}

// Land descends vertically to the ground and disarms on touchdown. It fails
// when disarmed.
func (fc *FlightController) Land() bool {
	if !fc.armed {
		return false
	}
	fc.positionSP = fc.body.Position
	fc.positionSP[1] = 0
	fc.mode = ModeLanding
	return true
}

func (fc *FlightController) altitudeHold() bool {
	switch fc.mode {
	case ModePosition, ModeHover, ModeTakeoff, ModeLanding:
		return true
	}
	return false
}

// Update runs one control cycle and returns motor RPM targets. A disarmed or
// idle controller, or a non-positive dt, returns zeros.
func (fc *FlightController) Update(dt float64) [4]float64 {
	if !fc.armed || fc.mode == ModeIdle || dt <= 0 {
		return [4]float64{}
	}
	pos, vel := fc.body.Position, fc.body.Velocity

	switch {
	case fc.altitudeHold():
		adjust := fc.alt.Update(fc.positionSP[1]-pos[1], dt)
		fc.thrustSP = mgl64.Clamp(fc.hoverThrust+adjust, minThrust, maxThrust)

		if fc.mode == ModeLanding && pos[1] < landedAltitude && math.Abs(vel[1]) < landedSpeed {
			fc.mode = ModeIdle
			fc.armed = false
			return [4]float64{}
		}
		if fc.mode == ModeTakeoff && math.Abs(fc.positionSP[1]-pos[1]) < takeoffReached {
			fc.mode = ModePosition
		}
	case fc.mode == ModeVelocity:
		adjust := fc.cfg.VelocityThrustKp * (fc.velocitySP[1] - vel[1])
		fc.thrustSP = mgl64.Clamp(fc.hoverThrust+adjust, minThrust, maxThrust)
	}

	var roll, pitch float64
	switch {
	case fc.altitudeHold():
		avoid := fc.apf.Velocity(pos, fc.obstacles, fc.cfg.DroneRadius)
		spX := fc.posX.Update(fc.positionSP[0]-pos[0], dt) + avoid[0]
		spZ := fc.posZ.Update(fc.positionSP[2]-pos[2], dt) + avoid[2]
		roll = -fc.velX.Update(spX-vel[0], dt)
		pitch = fc.velZ.Update(spZ-vel[2], dt)
	case fc.mode == ModeVelocity:
		avoid := fc.apf.Velocity(pos, fc.obstacles, fc.cfg.DroneRadius)
		roll = -fc.velX.Update(fc.velocitySP[0]+avoid[0]-vel[0], dt)
		pitch = fc.velZ.Update(fc.velocitySP[2]+avoid[2]-vel[2], dt)
	}
	if fc.mode != ModeAttitude {
		fc.attitudeSP = mgl64.Vec3{roll, pitch, 0}
	}

	euler := fc.body.EulerAngles()
	attErr := util.WrapVec3(fc.attitudeSP.Sub(mgl64.Vec3{euler[0], euler[1], 0}))
	rateSP := fc.att.Update(attErr, dt)
	rateSP[2] = fc.yawRateSP

	w := fc.body.AngularVelocity
	rates := mgl64.Vec3{w[2], w[0], w[1]}
	torque := fc.rate.Update(rateSP.Sub(rates), dt)

	return fc.mix(fc.thrustSP, torque)
}

// mix converts normalized thrust and (roll, pitch, yaw) torque commands into
// X-configuration motor RPMs.
func (fc *FlightController) mix(thrust float64, torque mgl64.Vec3) [4]float64 {
	pc := fc.body.Config()
	base := thrust * pc.MaxRPM
	scale := pc.MaxRPM * mixScale
	r, p, y := torque[0]*scale, torque[1]*scale, torque[2]*scale

	out := [4]float64{
		base + r + p + y,
		base - r + p - y,
		base + r - p - y,
		base - r - p + y,
	}
	for i := range out {
		out[i] = mgl64.Clamp(out[i], pc.MinRPM, pc.MaxRPM)
	}
	return out
}

func (fc *FlightController) resetPIDs() {
	fc.posX.Reset()
	fc.posZ.Reset()
	fc.velX.Reset()
	fc.velZ.Reset()
	fc.alt.Reset()
	fc.att.Reset()
	fc.rate.Reset()
}
