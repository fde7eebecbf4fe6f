package parser

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dronelab/swarmsim/internal/environment"
	"github.com/dronelab/swarmsim/internal/spawn"
	"github.com/dronelab/swarmsim/internal/swarm"
)

// maxStep bounds a single step request.
const maxStep = 10000

func preset(name, fallback string) (string, error) {
	if strings.TrimSpace(name) == "" {
		return fallback, nil
	}
	return spawn.Normalize(name)
}

// ParseRespawn parses {"preset"?,"count"?}. Absent fields keep the values of
// the current configuration.
func (p *Parser) ParseRespawn(raw json.RawMessage, current swarm.Config) (RespawnCommand, error) {
	var args respawnArgs
	if err := decode(raw, &args); err != nil {
		return RespawnCommand{}, err
	}
	name, err := preset(args.Preset, current.Preset)
	if err != nil {
		return RespawnCommand{}, err
	}
	cmd := RespawnCommand{Preset: name, Count: current.Count}
	if args.Count != nil {
		n, err := intFromFloat("count", *args.Count)
		if err != nil {
			return RespawnCommand{}, err
		}
		cmd.Count = n
	}
	return cmd, nil
}

// ParseFormation parses {"preset","spacing"?,"altitude"?}.
func (p *Parser) ParseFormation(raw json.RawMessage, current swarm.Config) (FormationCommand, error) {
	var args formationArgs
	if err := decode(raw, &args); err != nil {
		return FormationCommand{}, err
	}
	if strings.TrimSpace(args.Preset) == "" {
		return FormationCommand{}, fmt.Errorf("%w: preset", ErrMissingField)
	}
	name, err := preset(args.Preset, current.Preset)
	if err != nil {
		return FormationCommand{}, err
	}
	cmd := FormationCommand{Preset: name, Spacing: current.Spacing, Altitude: current.Altitude}
	if args.Spacing != nil {
		if *args.Spacing <= 0 {
			return FormationCommand{}, fmt.Errorf("%w: spacing %v must be positive", ErrInvalidValue, *args.Spacing)
		}
		cmd.Spacing = *args.Spacing
	}
	if args.Altitude != nil {
		cmd.Altitude = *args.Altitude
	}
	return cmd, nil
}

// ParseWind applies a partial wind update onto current.
func (p *Parser) ParseWind(raw json.RawMessage, current environment.WindConfig) (WindCommand, error) {
	var args windArgs
	if err := decode(raw, &args); err != nil {
		return current, err
	}
	next := current
	if args.Enabled != nil {
		next.Enabled = *args.Enabled
	}
	if args.BaseVelocity != nil {
		next.BaseVelocity = *args.BaseVelocity
	}
	if args.GustMagnitude != nil {
		if *args.GustMagnitude < 0 {
			return current, fmt.Errorf("%w: gustMagnitude %v is negative", ErrInvalidValue, *args.GustMagnitude)
		}
		next.GustMagnitude = *args.GustMagnitude
	}
	if args.GustFrequency != nil {
		if *args.GustFrequency < 0 {
			return current, fmt.Errorf("%w: gustFrequency %v is negative", ErrInvalidValue, *args.GustFrequency)
		}
		next.GustFrequency = *args.GustFrequency
	}
	return next, nil
}

// ParseCollision applies a partial collision update onto current.
func (p *Parser) ParseCollision(raw json.RawMessage, current swarm.CollisionConfig) (CollisionCommand, error) {
	var args collisionArgs
	if err := decode(raw, &args); err != nil {
		return current, err
	}
	next := current
	if args.Enabled != nil {
		next.Enabled = *args.Enabled
	}
	if args.DroneRadius != nil {
		if *args.DroneRadius <= 0 {
			return current, fmt.Errorf("%w: droneRadius %v must be positive", ErrInvalidValue, *args.DroneRadius)
		}
		next.DroneRadius = *args.DroneRadius
	}
	if args.Restitution != nil {
		if *args.Restitution < 0 || *args.Restitution > 1 {
			return current, fmt.Errorf("%w: restitution %v outside [0, 1]", ErrInvalidValue, *args.Restitution)
		}
		next.Restitution = *args.Restitution
	}
	if args.CrashSpeed != nil {
		if *args.CrashSpeed <= 0 {
			return current, fmt.Errorf("%w: crashSpeed %v must be positive", ErrInvalidValue, *args.CrashSpeed)
		}
		next.CrashSpeed = *args.CrashSpeed
	}
	return next, nil
}

// ParseStep parses {"count"?}. The default is one tick.
func (p *Parser) ParseStep(raw json.RawMessage) (StepCommand, error) {
	var args stepArgs
	if err := decode(raw, &args); err != nil {
		return StepCommand{}, err
	}
	if args.Count == nil {
		return StepCommand{Count: 1}, nil
	}
	n, err := intFromFloat("count", *args.Count)
	if err != nil {
		return StepCommand{}, err
	}
	if n < 1 || n > maxStep {
		return StepCommand{}, fmt.Errorf("%w: count %d outside [1, %d]", ErrInvalidValue, n, maxStep)
	}
	return StepCommand{Count: n}, nil
}

// ParseSession parses {"name"?,"tag"?}.
func (p *Parser) ParseSession(raw json.RawMessage) (SessionCommand, error) {
	var args sessionArgs
	if err := decode(raw, &args); err != nil {
		return SessionCommand{}, err
	}
	return SessionCommand{Name: strings.TrimSpace(args.Name), Tag: strings.TrimSpace(args.Tag)}, nil
}
