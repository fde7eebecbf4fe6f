package sensors

// Config sets the noise characteristics of every simulated sensor. Defaults
// approximate consumer hardware (MPU6000 IMU, u-blox M8 GPS, MS5611 baro).
type Config struct {
	PerfectMode bool `json:"perfectMode" mapstructure:"perfectMode"`

	AccelNoiseStd float64 `json:"accelNoiseStd" mapstructure:"accelNoiseStd"`
	AccelBiasStep float64 `json:"accelBiasDrift" mapstructure:"accelBiasDrift"`
	AccelBiasMax  float64 `json:"accelBiasMax" mapstructure:"accelBiasMax"`

	GyroNoiseStd float64 `json:"gyroNoiseStd" mapstructure:"gyroNoiseStd"`
	GyroBiasStep float64 `json:"gyroBiasDrift" mapstructure:"gyroBiasDrift"`
	GyroBiasMax  float64 `json:"gyroBiasMax" mapstructure:"gyroBiasMax"`

	GPSRate      float64 `json:"gpsUpdateRate" mapstructure:"gpsUpdateRate"`
	GPSNoiseH    float64 `json:"gpsPosNoiseH" mapstructure:"gpsPosNoiseH"`
	GPSNoiseV    float64 `json:"gpsPosNoiseV" mapstructure:"gpsPosNoiseV"`
	GPSVelNoise  float64 `json:"gpsVelNoiseStd" mapstructure:"gpsVelNoiseStd"`
	BaroNoiseStd float64 `json:"baroNoiseStd" mapstructure:"baroNoiseStd"`
	BaroBiasStep float64 `json:"baroBiasDrift" mapstructure:"baroBiasDrift"`
	BaroBiasMax  float64 `json:"baroBiasMax" mapstructure:"baroBiasMax"`

	RangeNoiseStd float64 `json:"rangefinderNoiseStd" mapstructure:"rangefinderNoiseStd"`
	RangeMax      float64 `json:"rangefinderMaxRange" mapstructure:"rangefinderMaxRange"`

	VoltageNoiseStd float64 `json:"batteryVoltageNoiseStd" mapstructure:"batteryVoltageNoiseStd"`
	CurrentNoiseStd float64 `json:"batteryCurrentNoiseStd" mapstructure:"batteryCurrentNoiseStd"`
}

// DefaultConfig returns consumer-grade noise levels.
func DefaultConfig() Config {
	return Config{
		AccelNoiseStd:   0.02,
		AccelBiasStep:   0.0001,
		AccelBiasMax:    0.2,
		GyroNoiseStd:    0.001,
		GyroBiasStep:    0.00005,
		GyroBiasMax:     0.01,
		GPSRate:         10.0,
		GPSNoiseH:       1.5,
		GPSNoiseV:       3.0,
		GPSVelNoise:     0.1,
		BaroNoiseStd:    0.3,
		BaroBiasStep:    0.001,
		BaroBiasMax:     2.0,
		RangeNoiseStd:   0.02,
		RangeMax:        40.0,
		VoltageNoiseStd: 0.01,
		CurrentNoiseStd: 0.05,
	}
}

// GPSPeriod is the time between fresh GPS samples.
func (c Config) GPSPeriod() float64 {
	if c.GPSRate > 0 {
		return 1 / c.GPSRate
	}
	return 0.1
}
