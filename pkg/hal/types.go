package hal

// IMUReading is body-frame specific force and angular rate.
type IMUReading struct {
	Timestamp float64    `json:"timestamp"`
	Accel     [3]float64 `json:"accel"`
	Gyro      [3]float64 `json:"gyro"`
}

// Fix types reported by GPS receivers.
const (
	FixNone = 0
	Fix2D   = 2
	Fix3D   = 3
)

// GPSReading is a position and velocity fix in the local frame. Timestamp is
// the time of the underlying measurement, so repeated reads between updates
// return the same value. Latitude, Longitude and AltitudeMSL are filled when
// the backend knows its geodetic origin.
type GPSReading struct {
	Timestamp   float64    `json:"timestamp"`
	Position    [3]float64 `json:"position"`
	Velocity    [3]float64 `json:"velocity"`
	AccuracyH   float64    `json:"accuracy_h"`
	AccuracyV   float64    `json:"accuracy_v"`
	FixType     int        `json:"fix_type"`
	Latitude    float64    `json:"latitude,omitempty"`
	Longitude   float64    `json:"longitude,omitempty"`
	AltitudeMSL float64    `json:"altitude_msl,omitempty"`
}

// AltitudeReading combines barometer, rangefinder and GPS altitude. AGL is -1
// when the ground is out of rangefinder range.
type AltitudeReading struct {
	Timestamp float64 `json:"timestamp"`
	Baro      float64 `json:"altitude_baro"`
	AGL       float64 `json:"altitude_agl"`
	GPS       float64 `json:"altitude_gps"`
}

// BatteryReading is the pack state.
type BatteryReading struct {
	Timestamp    float64 `json:"timestamp"`
	Voltage      float64 `json:"voltage"`
	Current      float64 `json:"current"`
	RemainingPct float64 `json:"remaining_pct"`
}

// Error flag bits of DroneStatus.ErrorFlags.
const (
	ErrorMotor      = 1 << 0
	ErrorBatteryLow = 1 << 1
	ErrorGPSLost    = 1 << 2
	ErrorIMUFault   = 1 << 3
)

// BatteryLowPct is the remaining charge at or below which ErrorBatteryLow is set.
const BatteryLowPct = 5.0

// DroneStatus summarizes the flight state and health of a drone.
type DroneStatus struct {
	Timestamp  float64 `json:"timestamp"`
	Armed      bool    `json:"armed"`
	Mode       string  `json:"mode"`
	Airborne   bool    `json:"airborne"`
	ErrorFlags int     `json:"error_flags"`
}

// Has reports whether flag is set.
func (s DroneStatus) Has(flag int) bool {
	return s.ErrorFlags&flag != 0
}
