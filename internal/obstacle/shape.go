package obstacle

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/dronelab/swarmsim/pkg/core"
)

// insideEpsilon is the distance under which a sphere center counts as inside a shape.
const insideEpsilon = 1e-8

var (
	DefaultBoxColor      = [3]float64{0.5, 0.5, 0.5}
	DefaultCylinderColor = [3]float64{0.6, 0.3, 0.1}
)

// Shape is a static obstacle. It is implemented only by Box and Cylinder.
type Shape interface {
	Def() core.ObstacleDef
	collide(pos mgl64.Vec3, radius float64) (Hit, bool)
}

// Hit describes a sphere overlapping an obstacle. Normal points away from the
// obstacle surface and Penetration is the overlap depth in meters.
type Hit struct {
	Normal      mgl64.Vec3
	Penetration float64
}

// Box is an axis-aligned box.
type Box struct {
	Center   mgl64.Vec3
	HalfSize mgl64.Vec3
	Color    [3]float64
}

// Min is the lower corner.
func (b Box) Min() mgl64.Vec3 { return b.Center.Sub(b.HalfSize) }

// Max is the upper corner.
func (b Box) Max() mgl64.Vec3 { return b.Center.Add(b.HalfSize) }

// ClosestPoint clamps p onto the box volume.
func (b Box) ClosestPoint(p mgl64.Vec3) mgl64.Vec3 {
	lo, hi := b.Min(), b.Max()
	return mgl64.Vec3{
		mgl64.Clamp(p[0], lo[0], hi[0]),
		mgl64.Clamp(p[1], lo[1], hi[1]),
		mgl64.Clamp(p[2], lo[2], hi[2]),
	}
}

// NearestFace returns the outward axis normal of the face closest to an
// interior point p and the distance to it.
func (b Box) NearestFace(p mgl64.Vec3) (mgl64.Vec3, float64) {
	lo, hi := b.Min(), b.Max()
	best := math.Inf(1)
	var normal mgl64.Vec3
	for axis := range 3 {
		if d := p[axis] - lo[axis]; d < best {
			best = d
			normal = mgl64.Vec3{}
			normal[axis] = -1
		}
	}
	for axis := range 3 {
		if d := hi[axis] - p[axis]; d < best {
			best = d
			normal = mgl64.Vec3{}
			normal[axis] = 1
		}
	}
	return normal, best
}

// Def implements Shape.
func (b Box) Def() core.ObstacleDef {
	size := [3]float64(b.HalfSize.Mul(2))
	color := b.Color
	return core.ObstacleDef{
		Type:     core.ShapeBox,
		Position: [3]float64(b.Center),
		Size:     &size,
		Color:    &color,
	}
}

func (b Box) collide(pos mgl64.Vec3, radius float64) (Hit, bool) {
	delta := pos.Sub(b.ClosestPoint(pos))
	distSq := delta.Dot(delta)
	if distSq >= radius*radius {
		return Hit{}, false
	}
	dist := math.Sqrt(distSq)
	if dist < insideEpsilon {
		normal, faceDist := b.NearestFace(pos)
		return Hit{Normal: normal, Penetration: radius + faceDist}, true
	}
	return Hit{Normal: delta.Mul(1 / dist), Penetration: radius - dist}, true
}

// Cylinder is an upright cylinder standing on Base.
type Cylinder struct {
	Base   mgl64.Vec3
	Radius float64
	Height float64
	Color  [3]float64
}

// YMin is the height of the bottom cap.
func (c Cylinder) YMin() float64 { return c.Base[1] }

// YMax is the height of the top cap.
func (c Cylinder) YMax() float64 { return c.Base[1] + c.Height }

// Def implements Shape.
func (c Cylinder) Def() core.ObstacleDef {
	color := c.Color
	return core.ObstacleDef{
		Type:     core.ShapeCylinder,
		Position: [3]float64(c.Base),
		Radius:   c.Radius,
		Height:   c.Height,
		Color:    &color,
	}
}

func (c Cylinder) collide(pos mgl64.Vec3, radius float64) (Hit, bool) {
	yMin, yMax := c.YMin(), c.YMax()
	if pos[1]+radius < yMin || pos[1]-radius > yMax {
		return Hit{}, false
	}
	dx, dz := pos[0]-c.Base[0], pos[2]-c.Base[2]
	distXZ := math.Hypot(dx, dz)

	if pos[1] >= yMin && pos[1] <= yMax {
		combined := c.Radius + radius
		if distXZ >= combined {
			return Hit{}, false
		}
		normal := mgl64.Vec3{1, 0, 0}
		if distXZ >= insideEpsilon {
			normal = mgl64.Vec3{dx / distXZ, 0, dz / distXZ}
		}
		return Hit{Normal: normal, Penetration: combined - distXZ}, true
	}

	capY, up := yMin, -1.0
	if pos[1] > yMax {
		capY, up = yMax, 1.0
	}
	if distXZ <= c.Radius {
		gap := math.Abs(pos[1] - capY)
		if gap >= radius {
			return Hit{}, false
		}
		return Hit{Normal: mgl64.Vec3{0, up, 0}, Penetration: radius - gap}, true
	}

	edge := mgl64.Vec3{
		c.Base[0] + dx/distXZ*c.Radius,
		capY,
		c.Base[2] + dz/distXZ*c.Radius,
	}
	delta := pos.Sub(edge)
	dist := delta.Len()
	if dist >= radius {
		return Hit{}, false
	}
	return Hit{Normal: delta.Mul(1 / dist), Penetration: radius - dist}, true
}
