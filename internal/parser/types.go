package parser

import (
	"github.com/go-gl/mathgl/mgl64"

	"github.com/dronelab/swarmsim/internal/environment"
	"github.com/dronelab/swarmsim/internal/swarm"
	"github.com/dronelab/swarmsim/pkg/core"
)

// Target selects one drone or, when All is set, the whole swarm.
type Target struct {
	ID  int
	All bool
}

// PositionCommand is a position setpoint for one drone.
type PositionCommand struct {
	ID       int
	Position mgl64.Vec3
	Yaw      float64
}

// VelocityCommand is a velocity setpoint for one drone.
type VelocityCommand struct {
	ID       int
	Velocity mgl64.Vec3
	YawRate  float64
}

// AttitudeCommand is a direct attitude and thrust setpoint.
type AttitudeCommand struct {
	ID      int
	Roll    float64
	Pitch   float64
	YawRate float64
	Thrust  float64
}

// TakeoffCommand climbs the selected drones to Altitude.
type TakeoffCommand struct {
	Target
	Altitude float64
}

// BatteryCommand overrides the charge of the selected drones.
type BatteryCommand struct {
	Target
	Percent float64
}

// RespawnCommand rebuilds the swarm.
type RespawnCommand struct {
	Preset string
	Count  int
}

// FormationCommand retargets the swarm onto a preset layout.
type FormationCommand struct {
	Preset   string
	Spacing  float64
	Altitude float64
}

// StepCommand advances a paused simulation by Count fixed ticks.
type StepCommand struct {
	Count int
}

// SessionCommand starts a recording session.
type SessionCommand struct {
	Name string
	Tag  string
}

// ObstacleCommand adds one obstacle to the scene.
type ObstacleCommand struct {
	Def core.ObstacleDef
}

// WindCommand is the wind configuration after applying a partial update.
type WindCommand = environment.WindConfig

// CollisionCommand is the collision configuration after applying a partial update.
type CollisionCommand = swarm.CollisionConfig

type targetArgs struct {
	ID *float64 `json:"id"`
}

type positionArgs struct {
	ID  *float64 `json:"id"`
	X   float64  `json:"x"`
	Y   float64  `json:"y"`
	Z   float64  `json:"z"`
	Yaw float64  `json:"yaw"`
}

type geoPositionArgs struct {
	ID        *float64 `json:"id"`
	Latitude  float64  `json:"lat"`
	Longitude float64  `json:"lon"`
	Altitude  float64  `json:"alt"`
	Yaw       float64  `json:"yaw"`
}

type velocityArgs struct {
	ID      *float64 `json:"id"`
	VX      float64  `json:"vx"`
	VY      float64  `json:"vy"`
	VZ      float64  `json:"vz"`
	YawRate float64  `json:"yawRate"`
}

type attitudeArgs struct {
	ID      *float64 `json:"id"`
	Roll    float64  `json:"roll"`
	Pitch   float64  `json:"pitch"`
	YawRate float64  `json:"yawRate"`
	Thrust  float64  `json:"thrust"`
}

type takeoffArgs struct {
	ID       *float64 `json:"id"`
	Altitude *float64 `json:"altitude"`
}

type batteryArgs struct {
	ID      *float64 `json:"id"`
	Percent *float64 `json:"percent"`
}

type respawnArgs struct {
	Preset string   `json:"preset"`
	Count  *float64 `json:"count"`
}

type formationArgs struct {
	Preset   string   `json:"preset"`
	Spacing  *float64 `json:"spacing"`
	Altitude *float64 `json:"altitude"`
}

type windArgs struct {
	Enabled       *bool       `json:"enabled"`
	BaseVelocity  *[3]float64 `json:"baseVelocity"`
	GustMagnitude *float64    `json:"gustMagnitude"`
	GustFrequency *float64    `json:"gustFrequency"`
}

type collisionArgs struct {
	Enabled     *bool    `json:"enabled"`
	DroneRadius *float64 `json:"droneRadius"`
	Restitution *float64 `json:"restitution"`
	CrashSpeed  *float64 `json:"crashSpeed"`
}

type stepArgs struct {
	Count *float64 `json:"count"`
}

type sessionArgs struct {
	Name string `json:"name"`
	Tag  string `json:"tag"`
}
