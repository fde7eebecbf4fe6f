// Package convert provides functions to convert between GORM models and core models
package convert

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"

	"github.com/dronelab/swarmsim/internal/geo"
	"github.com/dronelab/swarmsim/internal/model"
	"github.com/dronelab/swarmsim/pkg/core"
)

// toJSON marshals v for a JSON column, falling back to empty.
func toJSON(v any, empty string) datatypes.JSON {
	data, err := json.Marshal(v)
	if err != nil || string(data) == "null" {
		return datatypes.JSON(empty)
	}
	return datatypes.JSON(data)
}

// CoreToSession converts a core.Session to a GORM model.Session. The origin
// is stored as a 3857 point.
func CoreToSession(s core.Session, origin geo.Origin) (model.Session, error) {
	point, err := origin.Point3857([3]float64{})
	if err != nil {
		return model.Session{}, err
	}
	return model.Session{
		UUID:       s.ID,
		Name:       s.Name,
		Tag:        s.Tag,
		StartTime:  s.StartTime,
		DroneCount: uint16(s.DroneCount),
		Preset:     s.Preset,
		TickRate:   float32(s.TickRate),
		Seed:       int64(s.Seed),
		Origin:     point,
	}, nil
}

// EndSession stamps the end time of a session row.
func EndSession(s *model.Session, end time.Time) {
	s.EndTime = sql.NullTime{Time: end, Valid: true}
}

// CoreToDrone converts the first state of a drone into its registration row.
func CoreToDrone(d core.DroneState) model.Drone {
	return model.Drone{
		DroneID: uint16(d.ID),
		Color:   toJSON(d.Color, "[]"),
	}
}

// CoreToDroneState converts one drone of a frame to a GORM model.DroneState.
func CoreToDroneState(d core.DroneState, frame *core.Frame, origin geo.Origin, at time.Time) (model.DroneState, error) {
	point, err := origin.Point3857(d.Position)
	if err != nil {
		return model.DroneState{}, fmt.Errorf("drone %d: %w", d.ID, err)
	}
	return model.DroneState{
		Time:       at,
		FrameIndex: frame.Index,
		SimTime:    frame.Timestamp,
		DroneID:    uint16(d.ID),
		Position:   point,
		LocalX:     d.Position[0],
		LocalY:     d.Position[1],
		LocalZ:     d.Position[2],
		VelX:       d.Velocity[0],
		VelY:       d.Velocity[1],
		VelZ:       d.Velocity[2],
		Target:     toJSON(d.Target, "[]"),
		Roll:       float32(d.Orientation[0]),
		Pitch:      float32(d.Orientation[1]),
		Yaw:        float32(d.Orientation[2]),
		MotorRPMs:  toJSON(d.MotorRPMs, "[]"),
		Battery:    float32(d.Battery),
		Armed:      d.Armed,
		Mode:       d.Mode,
		Settled:    d.Settled,
		Crashed:    d.Crashed,
	}, nil
}

// CoreToFrame converts every drone of a frame.
func CoreToFrame(f *core.Frame, origin geo.Origin, at time.Time) ([]model.DroneState, error) {
	out := make([]model.DroneState, len(f.Drones))
	for i, d := range f.Drones {
		row, err := CoreToDroneState(d, f, origin, at)
		if err != nil {
			return nil, fmt.Errorf("frame %d: %w", f.Index, err)
		}
		out[i] = row
	}
	return out, nil
}

// CoreToObstacle converts an obstacle definition. Position is the box
// center or the cylinder base.
func CoreToObstacle(def core.ObstacleDef, origin geo.Origin) (model.Obstacle, error) {
	point, err := origin.Point3857(def.Position)
	if err != nil {
		return model.Obstacle{}, fmt.Errorf("%s obstacle: %w", def.Type, err)
	}
	return model.Obstacle{
		Type:     def.Type,
		Position: point,
		Def:      toJSON(def, "{}"),
	}, nil
}

// CoreToEvent converts a simulation event.
func CoreToEvent(e core.Event, at time.Time) model.SimEvent {
	return model.SimEvent{
		Time:    at,
		SimTime: e.Timestamp,
		Type:    e.Type,
		Data:    toJSON(e.Data, "{}"),
	}
}
