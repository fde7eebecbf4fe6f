// Package parser turns raw JSON command arguments into validated commands.
// It has no dependency on the running simulation.
package parser

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync/atomic"

	"github.com/dronelab/swarmsim/internal/geo"
)

var (
	// ErrMissingField is returned when a required argument is absent.
	ErrMissingField = errors.New("missing field")
	// ErrInvalidValue is returned for arguments outside their domain.
	ErrInvalidValue = errors.New("invalid value")
	// ErrNoOrigin is returned for geodetic commands without a configured origin.
	ErrNoOrigin = errors.New("no geodetic origin configured")
)

// Parser provides pure JSON -> command conversion.
type Parser struct {
	logger *slog.Logger
	origin atomic.Pointer[geo.Origin]
}

// NewParser creates a new parser with only a logger dependency.
func NewParser(logger *slog.Logger) *Parser {
	return &Parser{logger: logger}
}

// SetOrigin sets the geodetic origin used by geodetic commands.
func (p *Parser) SetOrigin(o geo.Origin) {
	p.origin.Store(&o)
}

// Origin returns the configured origin and whether one is set.
func (p *Parser) Origin() (geo.Origin, bool) {
	o := p.origin.Load()
	if o == nil || o.IsZero() {
		return geo.Origin{}, false
	}
	return *o, true
}

// decode unmarshals raw into v, rejecting unknown fields. Empty input is
// treated as an empty object.
func decode(raw json.RawMessage, v any) error {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		raw = []byte("{}")
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("error unmarshalling args: %w", err)
	}
	return nil
}

// intFromFloat converts a JSON number to an int, rejecting fractions.
// Clients commonly send every number as a float.
func intFromFloat(name string, f float64) (int, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, fmt.Errorf("%w: %s %v is not an integer", ErrInvalidValue, name, f)
	}
	if f < math.MinInt32 || f > math.MaxInt32 {
		return 0, fmt.Errorf("%w: %s %v out of range", ErrInvalidValue, name, f)
	}
	return int(f), nil
}

// droneID validates a required drone id.
func droneID(id *float64) (int, error) {
	if id == nil {
		return 0, fmt.Errorf("%w: id", ErrMissingField)
	}
	v, err := intFromFloat("id", *id)
	if err != nil {
		return 0, err
	}
	if v < 0 {
		return 0, fmt.Errorf("%w: id %d is negative", ErrInvalidValue, v)
	}
	return v, nil
}

// target resolves an optional drone id. Absent means every drone.
func target(id *float64) (Target, error) {
	if id == nil {
		return Target{All: true}, nil
	}
	v, err := droneID(id)
	if err != nil {
		return Target{}, err
	}
	return Target{ID: v}, nil
}
