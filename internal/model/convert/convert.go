package convert

import (
	"encoding/json"

	"github.com/dronelab/swarmsim/internal/model"
	"github.com/dronelab/swarmsim/pkg/core"
)

// DroneStateToCore converts a GORM DroneState back to a core.DroneState.
// Angular velocity is not stored and reads back as zero.
func DroneStateToCore(s model.DroneState) core.DroneState {
	d := core.DroneState{
		ID:          int(s.DroneID),
		Position:    [3]float64{s.LocalX, s.LocalY, s.LocalZ},
		Velocity:    [3]float64{s.VelX, s.VelY, s.VelZ},
		Battery:     float64(s.Battery),
		Settled:     s.Settled,
		Orientation: [3]float64{float64(s.Roll), float64(s.Pitch), float64(s.Yaw)},
		Armed:       s.Armed,
		Mode:        s.Mode,
		Crashed:     s.Crashed,
	}
	if len(s.Target) > 0 {
		_ = json.Unmarshal(s.Target, &d.Target)
	}
	if len(s.MotorRPMs) > 0 {
		_ = json.Unmarshal(s.MotorRPMs, &d.MotorRPMs)
	}
	return d
}

// SessionToCore converts a GORM Session to a core.Session.
func SessionToCore(s model.Session) core.Session {
	return core.Session{
		ID:         s.UUID,
		Name:       s.Name,
		Tag:        s.Tag,
		StartTime:  s.StartTime,
		DroneCount: int(s.DroneCount),
		Preset:     s.Preset,
		TickRate:   float64(s.TickRate),
		Seed:       uint64(s.Seed),
	}
}

// ObstacleToCore converts a GORM Obstacle back to its definition.
func ObstacleToCore(o model.Obstacle) core.ObstacleDef {
	var def core.ObstacleDef
	if len(o.Def) > 0 {
		_ = json.Unmarshal(o.Def, &def)
	}
	if def.Type == "" {
		def.Type = o.Type
	}
	return def
}

// EventToCore converts a GORM SimEvent to a core.Event.
func EventToCore(e model.SimEvent) core.Event {
	ev := core.Event{
		Timestamp: e.SimTime,
		Type:      e.Type,
	}
	if len(e.Data) > 0 {
		_ = json.Unmarshal(e.Data, &ev.Data)
	}
	return ev
}
