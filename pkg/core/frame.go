// pkg/core/frame.go
package core

// Frame is the swarm state at one simulation time.
type Frame struct {
	Index     uint         `json:"-"`
	Timestamp float64      `json:"timestamp"`
	Drones    []DroneState `json:"drones"`
}

// Event types emitted by the simulation.
const (
	EventCollision         = "collision"
	EventObstacleCollision = "obstacle_collision"
	EventCrash             = "crash"
	EventCommand           = "command"
	EventRespawn           = "respawn"
	EventWind              = "wind"
)

// Event is something notable that happened at a simulation time.
type Event struct {
	Timestamp float64        `json:"timestamp"`
	Type      string         `json:"type"`
	Data      map[string]any `json:"data"`
}

