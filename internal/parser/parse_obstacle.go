package parser

import (
	"encoding/json"
	"fmt"

	"github.com/dronelab/swarmsim/internal/obstacle"
	"github.com/dronelab/swarmsim/pkg/core"
)

// ParseObstacle parses one obstacle definition in scene-file form.
func (p *Parser) ParseObstacle(raw json.RawMessage) (ObstacleCommand, error) {
	var def core.ObstacleDef
	if err := decode(raw, &def); err != nil {
		return ObstacleCommand{}, err
	}
	if err := validateObstacle(def); err != nil {
		return ObstacleCommand{}, err
	}
	return ObstacleCommand{Def: def}, nil
}

func validateObstacle(def core.ObstacleDef) error {
	switch def.Type {
	case core.ShapeBox:
		if def.Size == nil {
			return fmt.Errorf("%w: size", ErrMissingField)
		}
		for i, s := range def.Size {
			if s <= 0 {
				return fmt.Errorf("%w: size[%d] %v must be positive", ErrInvalidValue, i, s)
			}
		}
	case core.ShapeCylinder:
		if def.Radius <= 0 || def.Height <= 0 {
			return fmt.Errorf("%w: cylinder needs positive radius and height", ErrInvalidValue)
		}
	case "":
		return fmt.Errorf("%w: type", ErrMissingField)
	default:
		return fmt.Errorf("%w: %q", obstacle.ErrUnknownShape, def.Type)
	}
	return nil
}
