// Package spawn generates initial drone positions for formation presets.
// Positions are Y-up: formations lie in the XZ plane at the given altitude.
package spawn

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"slices"
	"strings"

	"github.com/go-gl/mathgl/mgl64"
)

// Preset names.
const (
	PresetV      = "v"
	PresetLine   = "line"
	PresetCircle = "circle"
	PresetGrid   = "grid"
	PresetRandom = "random"
)

// vAngle is the half-angle of the V formation wings.
const vAngle = 40.0

// ErrUnknownPreset is returned for an unsupported preset name.
var ErrUnknownPreset = errors.New("unknown spawn preset")

// Presets lists the supported preset names.
func Presets() []string {
	return []string{PresetV, PresetLine, PresetCircle, PresetGrid, PresetRandom}
}

// Normalize returns the canonical name of preset. An empty preset selects
// the V formation.
func Normalize(preset string) (string, error) {
	p := strings.ToLower(strings.TrimSpace(preset))
	if p == "" {
		return PresetV, nil
	}
	if !slices.Contains(Presets(), p) {
		return "", fmt.Errorf("%w: %q", ErrUnknownPreset, preset)
	}
	return p, nil
}

// Positions returns n spawn points for preset with the given spacing and
// altitude. The preset is validated even when n is zero. The seed only
// affects the random preset.
func Positions(n int, preset string, spacing, altitude float64, seed uint64) ([]mgl64.Vec3, error) {
	p, err := Normalize(preset)
	if err != nil {
		return nil, err
	}
	if n <= 0 {
		return nil, nil
	}
	switch p {
	case PresetLine:
		return line(n, spacing, altitude), nil
	case PresetCircle:
		return circle(n, spacing, altitude), nil
	case PresetGrid:
		return grid(n, spacing, altitude), nil
	case PresetRandom:
		return random(n, spacing, altitude, seed), nil
	default:
		return vFormation(n, spacing, altitude), nil
	}
}

func line(n int, d, alt float64) []mgl64.Vec3 {
	start := -float64(n-1) * 0.5 * d
	out := make([]mgl64.Vec3, n)
	for i := range out {
		out[i] = mgl64.Vec3{start + float64(i)*d, alt, 0}
	}
	return out
}

// circle spaces neighbours roughly d apart along the circumference.
func circle(n int, d, alt float64) []mgl64.Vec3 {
	r := math.Max(d, d/(2*math.Sin(math.Pi/float64(max(n, 3)))))
	out := make([]mgl64.Vec3, n)
	for i := range out {
		a := 2 * math.Pi * float64(i) / float64(n)
		out[i] = mgl64.Vec3{r * math.Cos(a), alt, r * math.Sin(a)}
	}
	return out
}

// vFormation puts the leader at the origin and alternates right and left
// wing positions behind it.
func vFormation(n int, d, alt float64) []mgl64.Vec3 {
	theta := mgl64.DegToRad(vAngle)
	out := []mgl64.Vec3{{0, alt, 0}}
	for k := 1; k < n; k++ {
		arm := float64((k + 1) / 2)
		sign := 1.0
		if k%2 == 0 {
			sign = -1
		}
		out = append(out, mgl64.Vec3{arm * d * math.Cos(theta), alt, sign * arm * d * math.Sin(theta)})
	}
	return out
}

func grid(n int, d, alt float64) []mgl64.Vec3 {
	rows := int(math.Floor(math.Sqrt(float64(n))))
	cols := int(math.Ceil(float64(n) / float64(rows)))
	ox := -float64(cols-1) * 0.5 * d
	oz := -float64(rows-1) * 0.5 * d
	out := make([]mgl64.Vec3, 0, n)
	for r := 0; r < rows && len(out) < n; r++ {
		for c := 0; c < cols && len(out) < n; c++ {
			out = append(out, mgl64.Vec3{ox + float64(c)*d, alt, oz + float64(r)*d})
		}
	}
	return out
}

// random scatters drones over a square whose side grows with sqrt(n).
func random(n int, d, alt float64, seed uint64) []mgl64.Vec3 {
	rng := rand.New(rand.NewPCG(seed, seed+1))
	half := math.Max(d*math.Sqrt(float64(n)), d*3) * 0.5
	out := make([]mgl64.Vec3, n)
	for i := range out {
		out[i] = mgl64.Vec3{
			-half + rng.Float64()*2*half,
			alt,
			-half + rng.Float64()*2*half,
		}
	}
	return out
}
