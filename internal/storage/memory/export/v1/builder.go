package v1

import (
	"github.com/dronelab/swarmsim/pkg/core"
)

// Build assembles the export for a session. Frame and event timestamps are
// expected relative to the session start, so Duration is the timestamp of
// the last frame.
func Build(session *core.Session, obstacles []core.ObstacleDef, frames []core.Frame, events []core.Event) Export {
	export := Export{
		Obstacles:  obstacles,
		Frames:     frames,
		Events:     events,
		FrameCount: len(frames),
	}
	if export.Obstacles == nil {
		export.Obstacles = []core.ObstacleDef{}
	}
	if export.Frames == nil {
		export.Frames = []core.Frame{}
	}
	if export.Events == nil {
		export.Events = []core.Event{}
	}
	if len(frames) > 0 {
		export.Duration = frames[len(frames)-1].Timestamp
	}

	export.Metadata = Metadata{Version: FormatVersion}
	if session != nil {
		export.Metadata.SessionID = session.ID
		export.Metadata.Name = session.Name
		export.Metadata.Tag = session.Tag
		export.Metadata.DroneCount = session.DroneCount
		export.Metadata.Preset = session.Preset
		export.Metadata.TickRate = session.TickRate
		export.Metadata.Seed = session.Seed
		if !session.StartTime.IsZero() {
			export.Metadata.StartTime = float64(session.StartTime.UnixMilli()) / 1000
		}
	}
	return export
}
