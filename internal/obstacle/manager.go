// Package obstacle keeps the static scene geometry and answers sphere
// collision queries against it.
package obstacle

import (
	"errors"
	"fmt"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/dronelab/swarmsim/pkg/core"
)

// ErrUnknownShape is returned when a scene entry names an unsupported type.
var ErrUnknownShape = errors.New("unknown obstacle type")

type kind uint8

const (
	kindBox kind = iota
	kindCylinder
)

// Source exposes the obstacle geometry to readers such as avoidance.
type Source interface {
	Boxes() []Box
	Cylinders() []Cylinder
}

// Manager owns the boxes and cylinders of a scene.
type Manager struct {
	boxes     []Box
	cylinders []Cylinder
	order     []kind
}

// NewManager returns an empty scene.
func NewManager() *Manager {
	return &Manager{}
}

// AddBox adds a box centered at center with full extents size. A nil color
// uses the default grey.
func (m *Manager) AddBox(center, size mgl64.Vec3, color *[3]float64) Box {
	b := Box{Center: center, HalfSize: size.Mul(0.5), Color: DefaultBoxColor}
	if color != nil {
		b.Color = *color
	}
	m.boxes = append(m.boxes, b)
	m.order = append(m.order, kindBox)
	return b
}

// AddCylinder adds an upright cylinder whose bottom cap is centered on base.
func (m *Manager) AddCylinder(base mgl64.Vec3, radius, height float64, color *[3]float64) Cylinder {
	c := Cylinder{Base: base, Radius: radius, Height: height, Color: DefaultCylinderColor}
	if color != nil {
		c.Color = *color
	}
	m.cylinders = append(m.cylinders, c)
	m.order = append(m.order, kindCylinder)
	return c
}

// RemoveLast removes the most recently added obstacle and returns it. It
// reports false when the scene is empty.
func (m *Manager) RemoveLast() (Shape, bool) {
	if len(m.order) == 0 {
		return nil, false
	}
	last := m.order[len(m.order)-1]
	m.order = m.order[:len(m.order)-1]
	if last == kindBox {
		b := m.boxes[len(m.boxes)-1]
		m.boxes = m.boxes[:len(m.boxes)-1]
		return b, true
	}
	c := m.cylinders[len(m.cylinders)-1]
	m.cylinders = m.cylinders[:len(m.cylinders)-1]
	return c, true
}

// Clear removes every obstacle.
func (m *Manager) Clear() {
	m.boxes = nil
	m.cylinders = nil
	m.order = nil
}

// LoadScene replaces the scene with defs. The scene is left untouched when
// any entry is invalid.
func (m *Manager) LoadScene(defs []core.ObstacleDef) error {
	next := NewManager()
	for i, d := range defs {
		switch d.Type {
		case core.ShapeBox:
			if d.Size == nil {
				return fmt.Errorf("obstacle %d: box without size", i)
			}
			next.AddBox(mgl64.Vec3(d.Position), mgl64.Vec3(*d.Size), d.Color)
		case core.ShapeCylinder:
			if d.Radius <= 0 || d.Height <= 0 {
				return fmt.Errorf("obstacle %d: cylinder needs positive radius and height", i)
			}
			next.AddCylinder(mgl64.Vec3(d.Position), d.Radius, d.Height, d.Color)
		default:
			return fmt.Errorf("obstacle %d: %w: %q", i, ErrUnknownShape, d.Type)
		}
	}
	*m = *next
	return nil
}

// States serializes the scene, boxes first.
func (m *Manager) States() []core.ObstacleDef {
	out := make([]core.ObstacleDef, 0, m.Len())
	for _, b := range m.boxes {
		out = append(out, b.Def())
	}
	for _, c := range m.cylinders {
		out = append(out, c.Def())
	}
	return out
}

// Boxes returns the boxes in insertion order.
func (m *Manager) Boxes() []Box { return m.boxes }

// Cylinders returns the cylinders in insertion order.
func (m *Manager) Cylinders() []Cylinder { return m.cylinders }

// Len is the number of obstacles.
func (m *Manager) Len() int { return len(m.order) }

// CheckCollision tests a sphere against every obstacle, boxes first, and
// returns the first hit.
func (m *Manager) CheckCollision(pos mgl64.Vec3, radius float64) (Hit, bool) {
	for _, b := range m.boxes {
		if h, ok := b.collide(pos, radius); ok {
			return h, true
		}
	}
	for _, c := range m.cylinders {
		if h, ok := c.collide(pos, radius); ok {
			return h, true
		}
	}
	return Hit{}, false
}
