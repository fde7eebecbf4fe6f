// Package util provides small helpers shared across the simulator.
package util

import (
	"math"
	"strings"

	"github.com/go-gl/mathgl/mgl64"
)

// WrapAngle maps an angle in radians to [-π, π).
func WrapAngle(a float64) float64 {
	return a - 2*math.Pi*math.Floor((a+math.Pi)/(2*math.Pi))
}

// WrapVec3 applies WrapAngle to each component.
func WrapVec3(v mgl64.Vec3) mgl64.Vec3 {
	return mgl64.Vec3{WrapAngle(v[0]), WrapAngle(v[1]), WrapAngle(v[2])}
}

// Horizontal drops the vertical component of a Y-up vector.
func Horizontal(v mgl64.Vec3) mgl64.Vec3 {
	return mgl64.Vec3{v[0], 0, v[2]}
}

// Finite reports whether every component of v is a real number.
func Finite(v mgl64.Vec3) bool {
	for _, c := range v {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	return true
}

// SanitizeFileName replaces characters that are unsafe in file names.
func SanitizeFileName(s string) string {
	r := strings.NewReplacer(" ", "_", ":", "_", "/", "_", "\\", "_")
	return r.Replace(strings.TrimSpace(s))
}

// Contains reports whether str is present in slice.
func Contains(slice []string, str string) bool {
	for _, s := range slice {
		if s == str {
			return true
		}
	}
	return false
}
