// Package pid implements parallel-form PID controllers with integral
// anti-windup and output saturation.
package pid

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// DefaultIntegralLimit bounds the accumulated integral unless overridden.
const DefaultIntegralLimit = 10.0

// Option configures a controller.
type Option func(*limits)

type limits struct {
	outMin, outMax float64
	integralMax    float64
}

// WithOutputLimits saturates the output to [min, max].
func WithOutputLimits(min, max float64) Option {
	return func(l *limits) {
		l.outMin = min
		l.outMax = max
	}
}

// WithSymmetricLimit saturates the output to [-limit, limit].
func WithSymmetricLimit(limit float64) Option {
	return WithOutputLimits(-limit, limit)
}

// WithIntegralLimit bounds the accumulated integral to [-max, max].
func WithIntegralLimit(max float64) Option {
	return func(l *limits) { l.integralMax = max }
}

func newLimits(opts []Option) limits {
	l := limits{
		outMin:      math.Inf(-1),
		outMax:      math.Inf(1),
		integralMax: DefaultIntegralLimit,
	}
	for _, opt := range opts {
		opt(&l)
	}
	return l
}

// Controller is a single-axis PID.
type Controller struct {
	Kp, Ki, Kd float64

	limits
	integral    float64
	prevError   float64
	initialized bool
}

// New returns a controller with unbounded output and the default integral limit.
func New(kp, ki, kd float64, opts ...Option) *Controller {
	return &Controller{Kp: kp, Ki: ki, Kd: kd, limits: newLimits(opts)}
}

// Update returns the control output for err over dt seconds. The derivative
// term is zero on the first call after construction or Reset. A non-positive
// dt returns 0 and leaves the state unchanged.
func (c *Controller) Update(err, dt float64) float64 {
	if dt <= 0 {
		return 0
	}
	c.integral = mgl64.Clamp(c.integral+err*dt, -c.integralMax, c.integralMax)

	d := 0.0
	if c.initialized {
		d = c.Kd * (err - c.prevError) / dt
	}
	c.initialized = true
	c.prevError = err

	return mgl64.Clamp(c.Kp*err+c.Ki*c.integral+d, c.outMin, c.outMax)
}

// Integral returns the accumulated integral.
func (c *Controller) Integral() float64 {
	return c.integral
}

// Reset clears the integral and derivative history.
func (c *Controller) Reset() {
	c.integral = 0
	c.prevError = 0
	c.initialized = false
}

// Controller3D runs three independent controllers that share gains and limits.
type Controller3D struct {
	axes [3]*Controller
}

// New3D returns a three-axis controller.
func New3D(kp, ki, kd float64, opts ...Option) *Controller3D {
	c := &Controller3D{}
	for i := range c.axes {
		c.axes[i] = New(kp, ki, kd, opts...)
	}
	return c
}

// Update applies each axis controller to the matching error component.
func (c *Controller3D) Update(err mgl64.Vec3, dt float64) mgl64.Vec3 {
	return mgl64.Vec3{
		c.axes[0].Update(err[0], dt),
		c.axes[1].Update(err[1], dt),
		c.axes[2].Update(err[2], dt),
	}
}

// Axis returns the controller for component i.
func (c *Controller3D) Axis(i int) *Controller {
	return c.axes[i]
}

// Reset clears all three axes.
func (c *Controller3D) Reset() {
	for _, a := range c.axes {
		a.Reset()
	}
}
