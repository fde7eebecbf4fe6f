// Package streaming defines the live recording protocol spoken between the
// simulator and the replay server over WebSocket.
package streaming

import (
	"encoding/json"

	"github.com/dronelab/swarmsim/pkg/core"
)

// Message type constants matching the streaming protocol.
const (
	TypeStartSession = "start_session"
	TypeEndSession   = "end_session"
	TypeObstacles    = "obstacles"
	TypeFrame        = "frame"
	TypeEvent        = "event"
	TypeAck          = "ack"
)

// Envelope wraps all messages sent over the WebSocket.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// AckMessage is the server's acknowledgement response.
type AckMessage struct {
	Type string `json:"type"` // always "ack"
	For  string `json:"for"`  // the message type being acknowledged
}

// StartSessionPayload carries the session being recorded.
type StartSessionPayload struct {
	Session *core.Session `json:"session"`
}

// ObstaclesPayload carries the static scene.
type ObstaclesPayload struct {
	Obstacles []core.ObstacleDef `json:"obstacles"`
}
