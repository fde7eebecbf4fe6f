// Package v1 contains the v1 export format for recorded swarm sessions.
// This format is read by the web replay viewer.
package v1

import "github.com/dronelab/swarmsim/pkg/core"

// FormatVersion is written into every export.
const FormatVersion = 1

// Export is the root JSON structure for v1 format.
type Export struct {
	Metadata   Metadata           `json:"metadata"`
	Obstacles  []core.ObstacleDef `json:"obstacles"`
	Frames     []core.Frame       `json:"frames"`
	Events     []core.Event       `json:"events"`
	Duration   float64            `json:"duration"`
	FrameCount int                `json:"frame_count"`
}

// Metadata describes the recorded session.
type Metadata struct {
	Version    int     `json:"version"`
	SessionID  string  `json:"session_id"`
	Name       string  `json:"name"`
	Tag        string  `json:"tag,omitempty"`
	StartTime  float64 `json:"start_time"` // unix seconds
	DroneCount int     `json:"num_drones"`
	Preset     string  `json:"preset"`
	TickRate   float64 `json:"tick_rate"`
	Seed       uint64  `json:"seed"`
}
