package geo

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	geom "github.com/peterstace/simplefeatures/geom"
	"github.com/wroge/wgs84"
)

// GEO POINTS
// The simulation frame is local and Y-up: +X east, +Y up, -Z north.
// Geodetic conversion goes through EPSG:3857 around the origin, scaled by the
// Mercator factor at the origin latitude. Stored points are always 3857 so the
// database never has to know the local frame.

// ErrInvalidCoordinates is returned when the coordinates are invalid
var ErrInvalidCoordinates = errors.New("invalid coordinates provided")

// Origin anchors the local frame on the WGS84 ellipsoid.
type Origin struct {
	Latitude  float64 `json:"latitude" mapstructure:"latitude"`
	Longitude float64 `json:"longitude" mapstructure:"longitude"`
	Altitude  float64 `json:"altitude" mapstructure:"altitude"`
}

// IsZero reports whether no origin is configured.
func (o Origin) IsZero() bool {
	return o == Origin{}
}

// ParseOrigin parses "lat,lon" or "lat,lon,alt".
func ParseOrigin(coords string) (Origin, error) {
	// split the string into its components
	parts := strings.Split(coords, ",")
	if len(parts) < 2 {
		return Origin{}, ErrInvalidCoordinates
	}
	var vals [3]float64
	for i := 0; i < len(parts) && i < 3; i++ {
		v, err := strconv.ParseFloat(strings.TrimSpace(parts[i]), 64)
		if err != nil {
			return Origin{}, ErrInvalidCoordinates
		}
		vals[i] = v
	}
	if math.Abs(vals[0]) > 90 || math.Abs(vals[1]) > 180 {
		return Origin{}, ErrInvalidCoordinates
	}
	return Origin{Latitude: vals[0], Longitude: vals[1], Altitude: vals[2]}, nil
}

func (o Origin) mercator() (x, y, scale float64) {
	f := wgs84.EPSG().Transform(4326, 3857)
	x, y, _ = f(o.Longitude, o.Latitude, 0)
	return x, y, 1 / math.Cos(o.Latitude*math.Pi/180)
}

// Coords3857 returns the Web Mercator coordinates of a local position.
func (o Origin) Coords3857(local [3]float64) (x, y float64) {
	ox, oy, k := o.mercator()
	return ox + local[0]*k, oy - local[2]*k
}

// ToGeodetic converts a local position to latitude, longitude and altitude
// above mean sea level.
func (o Origin) ToGeodetic(local [3]float64) (lat, lon, alt float64) {
	x, y := o.Coords3857(local)
	f := wgs84.EPSG().Transform(3857, 4326)
	lon, lat, _ = f(x, y, 0)
	return lat, lon, o.Altitude + local[1]
}

// FromGeodetic converts latitude, longitude and altitude to a local position.
func (o Origin) FromGeodetic(lat, lon, alt float64) [3]float64 {
	ox, oy, k := o.mercator()
	f := wgs84.EPSG().Transform(4326, 3857)
	x, y, _ := f(lon, lat, 0)
	return [3]float64{(x - ox) / k, alt - o.Altitude, -(y - oy) / k}
}

// Point3857 creates a 3857 point for a local position, with the altitude
// above the origin as Z. Non-finite positions are rejected.
func (o Origin) Point3857(local [3]float64) (geom.Point, error) {
	x, y := o.Coords3857(local)
	p, err := geom.NewPoint(geom.Coordinates{
		XY:   geom.XY{X: x, Y: y},
		Z:    local[1],
		Type: geom.DimXYZ,
	})
	if err != nil {
		return geom.Point{}, fmt.Errorf("%w: %v", ErrInvalidCoordinates, err)
	}
	return p, nil
}
