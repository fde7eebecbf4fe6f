// Package remote implements hal.DroneHAL for a real flight controller that
// publishes telemetry and accepts commands over a message transport.
package remote

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dronelab/swarmsim/pkg/hal"
)

// DefaultTelemetryTimeout is how long telemetry stays fresh.
const DefaultTelemetryTimeout = 2 * time.Second

// Command is the JSON payload published on a drone's command subject.
type Command struct {
	Type string             `json:"type"`
	Args map[string]float64 `json:"args,omitempty"`
}

// Command types understood by flight controller bridges.
const (
	CmdSetPosition = "set_position"
	CmdSetVelocity = "set_velocity"
	CmdSetAttitude = "set_attitude"
	CmdArm         = "arm"
	CmdDisarm      = "disarm"
	CmdTakeoff     = "takeoff"
	CmdLand        = "land"
)

// Telemetry is the JSON payload received on a drone's telemetry subject.
type Telemetry struct {
	IMU      hal.IMUReading      `json:"imu"`
	GPS      hal.GPSReading      `json:"gps"`
	Altitude hal.AltitudeReading `json:"altitude"`
	Battery  hal.BatteryReading  `json:"battery"`
	Status   hal.DroneStatus     `json:"status"`
	Position [3]float64          `json:"position"`
	Velocity [3]float64          `json:"velocity"`
}

// Option configures a HAL.
type Option func(*HAL)

// WithTimeout sets how long telemetry stays fresh.
func WithTimeout(d time.Duration) Option {
	return func(h *HAL) { h.timeout = d }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(h *HAL) { h.logger = l }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(h *HAL) { h.now = now }
}

// HAL is a DroneHAL backed by a remote flight controller. Readings come from
// the latest telemetry message. It is safe for concurrent use.
type HAL struct {
	id        int
	transport Transport
	timeout   time.Duration
	logger    *slog.Logger
	now       func() time.Time

	mu       sync.RWMutex
	last     Telemetry
	received time.Time
	unsub    func() error
}

var _ hal.DroneHAL = (*HAL)(nil)

// New subscribes to the telemetry of drone id.
func New(id int, t Transport, opts ...Option) (*HAL, error) {
	h := &HAL{
		id:        id,
		transport: t,
		timeout:   DefaultTelemetryTimeout,
		logger:    slog.Default(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	h.logger = h.logger.With("drone", id)

	unsub, err := t.Subscribe(TelemetrySubject(id), h.onTelemetry)
	if err != nil {
		return nil, fmt.Errorf("drone %d: %w", id, err)
	}
	h.unsub = unsub
	return h, nil
}

// Close stops receiving telemetry.
func (h *HAL) Close() error {
	if h.unsub == nil {
		return nil
	}
	return h.unsub()
}

func (h *HAL) onTelemetry(data []byte) {
	var tm Telemetry
	if err := json.Unmarshal(data, &tm); err != nil {
		h.logger.Warn("Dropping malformed telemetry", "error", err)
		return
	}
	h.mu.Lock()
	h.last = tm
	h.received = h.now()
	h.mu.Unlock()
}

// snapshot returns the last telemetry, whether it is fresh, and whether any
// telemetry arrived at all.
func (h *HAL) snapshot() (tm Telemetry, fresh, seen bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	seen = !h.received.IsZero()
	fresh = seen && h.now().Sub(h.received) <= h.timeout
	return h.last, fresh, seen
}

func (h *HAL) send(cmd Command) bool {
	data, err := json.Marshal(cmd)
	if err != nil {
		h.logger.Error("Failed to encode command", "command", cmd.Type, "error", err)
		return false
	}
	if err := h.transport.Publish(CommandSubject(h.id), data); err != nil {
		h.logger.Error("Failed to send command", "command", cmd.Type, "error", err)
		return false
	}
	h.logger.Debug("Sent command", "command", cmd.Type)
	return true
}

// DroneID returns the drone id.
func (h *HAL) DroneID() int { return h.id }

// IMU returns the last IMU reading.
func (h *HAL) IMU() hal.IMUReading {
	tm, _, _ := h.snapshot()
	return tm.IMU
}

// GPS returns the last fix. Stale telemetry reports no fix.
func (h *HAL) GPS() hal.GPSReading {
	tm, fresh, _ := h.snapshot()
	if !fresh {
		tm.GPS.FixType = hal.FixNone
	}
	return tm.GPS
}

// Altitude returns the last altitude reading.
func (h *HAL) Altitude() hal.AltitudeReading {
	tm, _, _ := h.snapshot()
	return tm.Altitude
}

// Battery returns the last battery reading.
func (h *HAL) Battery() hal.BatteryReading {
	tm, _, _ := h.snapshot()
	return tm.Battery
}

// Status returns the last reported status. ErrorGPSLost is set while
// telemetry is stale and ErrorBatteryLow follows the reported charge.
func (h *HAL) Status() hal.DroneStatus {
	tm, fresh, seen := h.snapshot()
	st := tm.Status
	if !fresh {
		st.ErrorFlags |= hal.ErrorGPSLost
	}
	if seen && tm.Battery.RemainingPct <= hal.BatteryLowPct {
		st.ErrorFlags |= hal.ErrorBatteryLow
	}
	return st
}

// GroundTruth returns the flight controller's position and velocity estimate.
func (h *HAL) GroundTruth() (position, velocity [3]float64) {
	tm, _, _ := h.snapshot()
	return tm.Position, tm.Velocity
}

// SetPosition commands a position hold.
func (h *HAL) SetPosition(x, y, z, yaw float64) {
	h.send(Command{Type: CmdSetPosition, Args: map[string]float64{"x": x, "y": y, "z": z, "yaw": yaw}})
}

// SetVelocity commands a world-frame velocity.
func (h *HAL) SetVelocity(vx, vy, vz, yawRate float64) {
	h.send(Command{Type: CmdSetVelocity, Args: map[string]float64{"vx": vx, "vy": vy, "vz": vz, "yaw_rate": yawRate}})
}

// SetAttitude commands an attitude and normalized thrust.
func (h *HAL) SetAttitude(roll, pitch, yawRate, thrust float64) {
	h.send(Command{Type: CmdSetAttitude, Args: map[string]float64{"roll": roll, "pitch": pitch, "yaw_rate": yawRate, "thrust": thrust}})
}

// Arm requests arming.
func (h *HAL) Arm() bool { return h.send(Command{Type: CmdArm}) }

// Disarm requests disarming.
func (h *HAL) Disarm() bool { return h.send(Command{Type: CmdDisarm}) }

// Takeoff requests a climb to altitude. It fails unless the last status
// reported the drone armed.
func (h *HAL) Takeoff(altitude float64) bool {
	tm, _, _ := h.snapshot()
	if !tm.Status.Armed {
		return false
	}
	return h.send(Command{Type: CmdTakeoff, Args: map[string]float64{"altitude": altitude}})
}

// Land requests a landing.
func (h *HAL) Land() bool { return h.send(Command{Type: CmdLand}) }
