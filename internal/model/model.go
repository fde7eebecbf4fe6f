package model

import (
	"database/sql"
	"time"

	geom "github.com/peterstace/simplefeatures/geom"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

////////////////////////
// DATABASE STRUCTURES //
////////////////////////

// DatabaseModels is a list of all the structs exported here which represent tables in the database schema
var DatabaseModels = []any{
	&InstanceInfo{},
	&Session{},
	&Drone{},
	&DroneState{},
	&Obstacle{},
	&SimEvent{},
	&Performance{},
}

////////////////////////
// SYSTEM MODELS
////////////////////////

// InstanceInfo identifies the lab that owns the database.
type InstanceInfo struct {
	gorm.Model
	GroupName        string `json:"groupName" gorm:"size:127"`
	GroupDescription string `json:"groupDescription" gorm:"size:255"`
	GroupWebsite     string `json:"groupURL" gorm:"size:255"`
}

func (*InstanceInfo) TableName() string {
	return "instance_infos"
}

// Performance is a periodic snapshot of the recording pipeline.
type Performance struct {
	Time                time.Time `json:"time" gorm:"type:timestamptz;index:idx_performance_time"`
	SessionID           uint      `json:"sessionId" gorm:"index:idx_performance_session_id"`
	Session             Session   `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:SessionID;"`
	SimTime             float64   `json:"simTime"`
	DroneCount          uint16    `json:"droneCount"`
	FramesQueued        uint32    `json:"framesQueued"`
	EventsQueued        uint32    `json:"eventsQueued"`
	DroppedFrames       uint64    `json:"droppedFrames"`
	LastWriteDurationMs float32   `json:"lastWriteDurationMs"`
}

func (*Performance) TableName() string {
	return "performances"
}

////////////////////////
// RECORDING MODELS
////////////////////////

// Session is one recorded simulation run.
type Session struct {
	gorm.Model
	UUID       string       `json:"uuid" gorm:"size:36;uniqueIndex:idx_session_uuid"`
	Name       string       `json:"name" gorm:"size:200"`
	Tag        string       `json:"tag" gorm:"size:127"`
	StartTime  time.Time    `json:"startTime" gorm:"type:timestamptz;index:idx_session_start"`
	EndTime    sql.NullTime `json:"endTime" gorm:"type:timestamptz"`
	DroneCount uint16       `json:"droneCount"`
	Preset     string       `json:"preset" gorm:"size:32"`
	TickRate   float32      `json:"tickRate"`
	Seed       int64        `json:"seed"`
	Origin     geom.Point   `json:"origin"`

	Drones    []Drone
	Obstacles []Obstacle
	Events    []SimEvent
}

func (*Session) TableName() string {
	return "sessions"
}

// Drone is one airframe within a session.
// Uses composite primary key (SessionID, DroneID).
type Drone struct {
	SessionID uint           `json:"sessionId" gorm:"primaryKey;autoIncrement:false"`
	DroneID   uint16         `json:"droneId" gorm:"primaryKey;autoIncrement:false"`
	Session   Session        `gorm:"foreignkey:SessionID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
	CreatedAt time.Time      `json:"createdAt"`
	Color     datatypes.JSON `json:"color" gorm:"type:jsonb;default:'[]'"`
}

func (*Drone) TableName() string {
	return "drones"
}

// DroneState is the recorded state of one drone in one frame.
// References Drone by (SessionID, DroneID) composite FK.
type DroneState struct {
	ID         uint      `json:"id" gorm:"primarykey;autoIncrement;"`
	Time       time.Time `json:"time" gorm:"type:timestamptz;"`
	SessionID  uint      `json:"sessionId" gorm:"index:idx_dronestate_session_id"`
	Session    Session   `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:SessionID;"`
	FrameIndex uint      `json:"frameIndex" gorm:"index:idx_dronestate_frame"`
	SimTime    float64   `json:"simTime"`
	DroneID    uint16    `json:"droneId" gorm:"index:idx_dronestate_drone_id"`
	Drone      Drone     `gorm:"foreignkey:SessionID,DroneID;references:SessionID,DroneID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`

	Position geom.Point     `json:"position"` // EPSG:3857 with altitude above origin as Z
	LocalX   float64        `json:"localX"`
	LocalY   float64        `json:"localY"`
	LocalZ   float64        `json:"localZ"`
	VelX     float64        `json:"velX"`
	VelY     float64        `json:"velY"`
	VelZ     float64        `json:"velZ"`
	Target   datatypes.JSON `json:"target" gorm:"type:jsonb;default:'[]'"`
	Roll     float32        `json:"roll"`
	Pitch    float32        `json:"pitch"`
	Yaw      float32        `json:"yaw"`

	MotorRPMs datatypes.JSON `json:"motorRpms" gorm:"type:jsonb;default:'[]'"`
	Battery   float32        `json:"battery"`
	Armed     bool           `json:"armed" gorm:"default:false"`
	Mode      string         `json:"mode" gorm:"size:16"`
	Settled   bool           `json:"settled" gorm:"default:false"`
	Crashed   bool           `json:"crashed" gorm:"default:false"`
}

func (*DroneState) TableName() string {
	return "drone_states"
}

// Obstacle is one static obstacle of the session scene.
type Obstacle struct {
	ID        uint           `json:"id" gorm:"primarykey;autoIncrement;"`
	SessionID uint           `json:"sessionId" gorm:"index:idx_obstacle_session_id"`
	Session   Session        `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:SessionID;"`
	Type      string         `json:"type" gorm:"size:16"`
	Position  geom.Point     `json:"position"`
	Def       datatypes.JSON `json:"def" gorm:"type:jsonb;default:'{}'"`
}

func (*Obstacle) TableName() string {
	return "obstacles"
}

// SimEvent is a collision, crash, command or other notable event.
type SimEvent struct {
	ID        uint           `json:"id" gorm:"primarykey;autoIncrement;"`
	Time      time.Time      `json:"time" gorm:"type:timestamptz;"`
	SessionID uint           `json:"sessionId" gorm:"index:idx_simevent_session_id"`
	Session   Session        `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:SessionID;"`
	SimTime   float64        `json:"simTime" gorm:"index:idx_simevent_sim_time"`
	Type      string         `json:"type" gorm:"size:32;index:idx_simevent_type"`
	Data      datatypes.JSON `json:"data" gorm:"type:jsonb;default:'{}'"`
}

func (*SimEvent) TableName() string {
	return "sim_events"
}
