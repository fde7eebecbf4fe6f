// Package sensors turns rigid-body ground truth into noisy readings.
//
// Every drone owns a Suite with its own seeded random stream, so noise is
// reproducible for a given seed and independent between drones.
package sensors

import (
	"math"
	"math/rand/v2"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/dronelab/swarmsim/internal/physics"
	"github.com/dronelab/swarmsim/pkg/hal"
)

// Suite holds the bias and rate-limiting state of one drone's sensors.
type Suite struct {
	cfg Config
	rng *rand.Rand

	accelBias mgl64.Vec3
	gyroBias  mgl64.Vec3
	baroBias  float64

	gpsLast     float64
	gpsSampled  bool
	gpsPosition mgl64.Vec3
	gpsVelocity mgl64.Vec3
}

// New returns a suite whose noise stream is derived from seed.
func New(cfg Config, seed uint64) *Suite {
	return &Suite{
		cfg: cfg,
		rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
}

// Config returns the noise configuration.
func (s *Suite) Config() Config {
	return s.cfg
}

func (s *Suite) normal(std float64) float64 {
	return s.rng.NormFloat64() * std
}

func (s *Suite) normal3(std float64) mgl64.Vec3 {
	return mgl64.Vec3{s.normal(std), s.normal(std), s.normal(std)}
}

func clamp3(v mgl64.Vec3, limit float64) mgl64.Vec3 {
	for i := range v {
		v[i] = mgl64.Clamp(v[i], -limit, limit)
	}
	return v
}

// IMU returns body-frame specific force and angular rate at time t.
func (s *Suite) IMU(body *physics.Quadrotor, t float64) hal.IMUReading {
	gravity := mgl64.Vec3{0, -body.Config().Gravity, 0}
	accel := body.Rotation.Transpose().Mul3x1(body.Acceleration.Sub(gravity))
	gyro := body.AngularVelocity

	if !s.cfg.PerfectMode {
		accel = accel.Add(s.accelBias).Add(s.normal3(s.cfg.AccelNoiseStd))
		gyro = gyro.Add(s.gyroBias).Add(s.normal3(s.cfg.GyroNoiseStd))
		s.accelBias = clamp3(s.accelBias.Add(s.normal3(s.cfg.AccelBiasStep)), s.cfg.AccelBiasMax)
		s.gyroBias = clamp3(s.gyroBias.Add(s.normal3(s.cfg.GyroBiasStep)), s.cfg.GyroBiasMax)
	}
	return hal.IMUReading{Timestamp: t, Accel: accel, Gyro: gyro}
}

// GPS returns a rate-limited fix. Between updates the previous fix is
// returned unchanged, including its timestamp.
func (s *Suite) GPS(body *physics.Quadrotor, t float64) hal.GPSReading {
	c := s.cfg
	if c.PerfectMode || !s.gpsSampled || t-s.gpsLast >= c.GPSPeriod() {
		s.gpsLast = t
		s.gpsSampled = true
		if c.PerfectMode {
			s.gpsPosition = body.Position
			s.gpsVelocity = body.Velocity
		} else {
			noise := mgl64.Vec3{s.normal(c.GPSNoiseH), s.normal(c.GPSNoiseV), s.normal(c.GPSNoiseH)}
			s.gpsPosition = body.Position.Add(noise)
			s.gpsVelocity = body.Velocity.Add(s.normal3(c.GPSVelNoise))
		}
	}
	return hal.GPSReading{
		Timestamp: s.gpsLast,
		Position:  s.gpsPosition,
		Velocity:  s.gpsVelocity,
		AccuracyH: c.GPSNoiseH,
		AccuracyV: c.GPSNoiseV,
		FixType:   hal.Fix3D,
	}
}

// Altitude returns barometric, rangefinder and GPS altitude at time t.
func (s *Suite) Altitude(body *physics.Quadrotor, t float64) hal.AltitudeReading {
	c := s.cfg
	trueAlt := body.Position[1]
	if c.PerfectMode {
		return hal.AltitudeReading{Timestamp: t, Baro: trueAlt, AGL: trueAlt, GPS: trueAlt}
	}

	baro := trueAlt + s.baroBias + s.normal(c.BaroNoiseStd)
	s.baroBias = mgl64.Clamp(s.baroBias+s.normal(c.BaroBiasStep), -c.BaroBiasMax, c.BaroBiasMax)

	agl := -1.0
	if trueAlt <= c.RangeMax {
		agl = trueAlt + s.normal(c.RangeNoiseStd)
	}

	gps := s.GPS(body, t)
	return hal.AltitudeReading{Timestamp: t, Baro: baro, AGL: agl, GPS: gps.Position[1]}
}

// Battery adds ADC noise to the pack voltage and current. Current never
// reads negative.
func (s *Suite) Battery(remainingPct, voltage, current, t float64) hal.BatteryReading {
	if !s.cfg.PerfectMode {
		voltage += s.normal(s.cfg.VoltageNoiseStd)
		current = math.Max(0, current+s.normal(s.cfg.CurrentNoiseStd))
	}
	return hal.BatteryReading{
		Timestamp:    t,
		Voltage:      voltage,
		Current:      current,
		RemainingPct: remainingPct,
	}
}
