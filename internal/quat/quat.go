// Package quat provides the quaternion helpers used by the rigid-body engine.
//
// Quaternions are mgl64.Quat values in [w, x, y, z] order. The world frame is
// Y-up and Euler angles follow R = Rz(roll) * Rx(pitch) * Ry(yaw): roll about
// the forward Z axis, pitch about X, yaw about the vertical Y axis.
package quat

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// normEpsilon is the smallest norm that is still renormalized after integration.
const normEpsilon = 1e-10

// Identity returns the no-rotation quaternion.
func Identity() mgl64.Quat {
	return mgl64.QuatIdent()
}

// Multiply returns the Hamilton product q1 ⊗ q2.
func Multiply(q1, q2 mgl64.Quat) mgl64.Quat {
	w1, x1, y1, z1 := q1.W, q1.V[0], q1.V[1], q1.V[2]
	w2, x2, y2, z2 := q2.W, q2.V[0], q2.V[1], q2.V[2]
	return mgl64.Quat{
		W: w1*w2 - x1*x2 - y1*y2 - z1*z2,
		V: mgl64.Vec3{
			w1*x2 + x1*w2 + y1*z2 - z1*y2,
			w1*y2 - x1*z2 + y1*w2 + z1*x2,
			w1*z2 + x1*y2 - y1*x2 + z1*w2,
		},
	}
}

// Norm returns the Euclidean length of q.
func Norm(q mgl64.Quat) float64 {
	return math.Sqrt(q.W*q.W + q.V.Dot(q.V))
}

// Normalize scales q to unit length. A degenerate quaternion becomes identity.
func Normalize(q mgl64.Quat) mgl64.Quat {
	n := Norm(q)
	if n <= normEpsilon || math.IsNaN(n) || math.IsInf(n, 0) {
		return Identity()
	}
	return mgl64.Quat{W: q.W / n, V: q.V.Mul(1 / n)}
}

// IsFinite reports whether every component of q is a real number.
func IsFinite(q mgl64.Quat) bool {
	for _, c := range [4]float64{q.W, q.V[0], q.V[1], q.V[2]} {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	return true
}

// ToRotationMatrix returns the body-to-world rotation matrix of a unit quaternion.
func ToRotationMatrix(q mgl64.Quat) mgl64.Mat3 {
	w, x, y, z := q.W, q.V[0], q.V[1], q.V[2]
	return mgl64.Mat3FromRows(
		mgl64.Vec3{1 - 2*(y*y+z*z), 2 * (x*y - w*z), 2 * (x*z + w*y)},
		mgl64.Vec3{2 * (x*y + w*z), 1 - 2*(x*x+z*z), 2 * (y*z - w*x)},
		mgl64.Vec3{2 * (x*z - w*y), 2 * (y*z + w*x), 1 - 2*(x*x+y*y)},
	)
}

// Integrate advances q by the body angular velocity omega over dt:
// q + 0.5 * q ⊗ [0, ω] * dt. The result is renormalized when its norm is
// meaningful; otherwise the raw sum is returned for the caller to repair.
func Integrate(q mgl64.Quat, omega mgl64.Vec3, dt float64) mgl64.Quat {
	dq := Multiply(q, mgl64.Quat{W: 0, V: omega})
	out := mgl64.Quat{
		W: q.W + 0.5*dq.W*dt,
		V: q.V.Add(dq.V.Mul(0.5 * dt)),
	}
	n := Norm(out)
	if n > normEpsilon {
		return mgl64.Quat{W: out.W / n, V: out.V.Mul(1 / n)}
	}
	return out
}

// ToEuler converts q to (roll, pitch, yaw) in radians.
func ToEuler(q mgl64.Quat) (roll, pitch, yaw float64) {
	w, x, y, z := q.W, q.V[0], q.V[1], q.V[2]
	roll = math.Atan2(2*(w*z-x*y), 1-2*(x*x+z*z))
	pitch = math.Asin(mgl64.Clamp(2*(w*x+y*z), -1, 1))
	yaw = math.Atan2(2*(w*y-x*z), 1-2*(x*x+y*y))
	return roll, pitch, yaw
}

// FromEuler is the inverse of ToEuler.
func FromEuler(roll, pitch, yaw float64) mgl64.Quat {
	cr, sr := math.Cos(roll/2), math.Sin(roll/2)
	cp, sp := math.Cos(pitch/2), math.Sin(pitch/2)
	cy, sy := math.Cos(yaw/2), math.Sin(yaw/2)
	return mgl64.Quat{
		W: cr*cp*cy - sr*sp*sy,
		V: mgl64.Vec3{
			cr*sp*cy - sr*cp*sy,
			cr*cp*sy + sr*sp*cy,
			cr*sp*sy + sr*cp*cy,
		},
	}
}

// Rotate applies the rotation q to v.
func Rotate(q mgl64.Quat, v mgl64.Vec3) mgl64.Vec3 {
	return ToRotationMatrix(q).Mul3x1(v)
}
