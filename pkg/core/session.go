// pkg/core/session.go
package core

import "time"

// Session describes one recording of a simulation run.
type Session struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	StartTime  time.Time `json:"start_time"`
	DroneCount int       `json:"num_drones"`
	Preset     string    `json:"preset"`
	TickRate   float64   `json:"tick_rate"`
	Seed       uint64    `json:"seed"`
	Tag        string    `json:"tag,omitempty"`
}

// UploadMetadata describes an exported recording for the upload API.
type UploadMetadata struct {
	SessionID   string  `json:"sessionId"`
	SessionName string  `json:"sessionName"`
	Tag         string  `json:"tag"`
	DroneCount  int     `json:"droneCount"`
	Duration    float64 `json:"duration"`
}
