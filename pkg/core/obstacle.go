// pkg/core/obstacle.go
package core

// Obstacle shape names.
const (
	ShapeBox      = "box"
	ShapeCylinder = "cylinder"
)

// ObstacleDef is the serialized form of a static obstacle. Boxes use Position
// as the center and Size as the full extents. Cylinders use Position as the
// base center plus Radius and Height.
type ObstacleDef struct {
	Type     string      `json:"type"`
	Position [3]float64  `json:"position"`
	Size     *[3]float64 `json:"size,omitempty"`
	Radius   float64     `json:"radius,omitempty"`
	Height   float64     `json:"height,omitempty"`
	Color    *[3]float64 `json:"color,omitempty"`
}
