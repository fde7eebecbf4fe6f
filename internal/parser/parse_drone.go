package parser

import (
	"encoding/json"
	"fmt"

	"github.com/go-gl/mathgl/mgl64"
)

// ParseTarget parses {"id"?} for commands that address one drone or all.
func (p *Parser) ParseTarget(raw json.RawMessage) (Target, error) {
	var args targetArgs
	if err := decode(raw, &args); err != nil {
		return Target{}, err
	}
	return target(args.ID)
}

// ParsePosition parses {"id","x","y","z","yaw"?} in the local frame.
func (p *Parser) ParsePosition(raw json.RawMessage) (PositionCommand, error) {
	var args positionArgs
	if err := decode(raw, &args); err != nil {
		return PositionCommand{}, err
	}
	id, err := droneID(args.ID)
	if err != nil {
		return PositionCommand{}, err
	}
	return PositionCommand{
		ID:       id,
		Position: mgl64.Vec3{args.X, args.Y, args.Z},
		Yaw:      args.Yaw,
	}, nil
}

// ParseGeoPosition parses {"id","lat","lon","alt","yaw"?} and converts the
// geodetic target into the local frame around the configured origin.
func (p *Parser) ParseGeoPosition(raw json.RawMessage) (PositionCommand, error) {
	origin, ok := p.Origin()
	if !ok {
		return PositionCommand{}, ErrNoOrigin
	}
	var args geoPositionArgs
	if err := decode(raw, &args); err != nil {
		return PositionCommand{}, err
	}
	id, err := droneID(args.ID)
	if err != nil {
		return PositionCommand{}, err
	}
	if args.Latitude < -90 || args.Latitude > 90 || args.Longitude < -180 || args.Longitude > 180 {
		return PositionCommand{}, fmt.Errorf("%w: coordinates %v,%v", ErrInvalidValue, args.Latitude, args.Longitude)
	}
	local := origin.FromGeodetic(args.Latitude, args.Longitude, args.Altitude)

	p.logger.Debug("Converted geodetic target",
		"id", id,
		"lat", args.Latitude,
		"lon", args.Longitude,
		"local", local)

	return PositionCommand{ID: id, Position: local, Yaw: args.Yaw}, nil
}

// ParseVelocity parses {"id","vx","vy","vz","yawRate"?}.
func (p *Parser) ParseVelocity(raw json.RawMessage) (VelocityCommand, error) {
	var args velocityArgs
	if err := decode(raw, &args); err != nil {
		return VelocityCommand{}, err
	}
	id, err := droneID(args.ID)
	if err != nil {
		return VelocityCommand{}, err
	}
	return VelocityCommand{
		ID:       id,
		Velocity: mgl64.Vec3{args.VX, args.VY, args.VZ},
		YawRate:  args.YawRate,
	}, nil
}

// ParseAttitude parses {"id","roll","pitch","yawRate","thrust"}. Thrust is
// normalized to [0, 1].
func (p *Parser) ParseAttitude(raw json.RawMessage) (AttitudeCommand, error) {
	var args attitudeArgs
	if err := decode(raw, &args); err != nil {
		return AttitudeCommand{}, err
	}
	id, err := droneID(args.ID)
	if err != nil {
		return AttitudeCommand{}, err
	}
	if args.Thrust < 0 || args.Thrust > 1 {
		return AttitudeCommand{}, fmt.Errorf("%w: thrust %v outside [0, 1]", ErrInvalidValue, args.Thrust)
	}
	return AttitudeCommand{
		ID:      id,
		Roll:    args.Roll,
		Pitch:   args.Pitch,
		YawRate: args.YawRate,
		Thrust:  args.Thrust,
	}, nil
}

// ParseTakeoff parses {"id"?,"altitude"}.
func (p *Parser) ParseTakeoff(raw json.RawMessage) (TakeoffCommand, error) {
	var args takeoffArgs
	if err := decode(raw, &args); err != nil {
		return TakeoffCommand{}, err
	}
	t, err := target(args.ID)
	if err != nil {
		return TakeoffCommand{}, err
	}
	if args.Altitude == nil {
		return TakeoffCommand{}, fmt.Errorf("%w: altitude", ErrMissingField)
	}
	if *args.Altitude <= 0 {
		return TakeoffCommand{}, fmt.Errorf("%w: altitude %v must be positive", ErrInvalidValue, *args.Altitude)
	}
	return TakeoffCommand{Target: t, Altitude: *args.Altitude}, nil
}

// ParseBattery parses {"id"?,"percent"}.
func (p *Parser) ParseBattery(raw json.RawMessage) (BatteryCommand, error) {
	var args batteryArgs
	if err := decode(raw, &args); err != nil {
		return BatteryCommand{}, err
	}
	t, err := target(args.ID)
	if err != nil {
		return BatteryCommand{}, err
	}
	if args.Percent == nil {
		return BatteryCommand{}, fmt.Errorf("%w: percent", ErrMissingField)
	}
	if *args.Percent < 0 || *args.Percent > 100 {
		return BatteryCommand{}, fmt.Errorf("%w: percent %v outside [0, 100]", ErrInvalidValue, *args.Percent)
	}
	return BatteryCommand{Target: t, Percent: *args.Percent}, nil
}
