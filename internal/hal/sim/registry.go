package sim

import (
	"github.com/dronelab/swarmsim/internal/geo"
	"github.com/dronelab/swarmsim/internal/swarm"
	"github.com/dronelab/swarmsim/pkg/hal"
)

// Registry resolves drone ids of a swarm to simulated HALs. Lookups follow
// respawns.
type Registry struct {
	swarm  *swarm.Swarm
	origin geo.Origin
}

var _ hal.Registry = (*Registry)(nil)

// NewRegistry returns a registry over s.
func NewRegistry(s *swarm.Swarm, origin geo.Origin) *Registry {
	return &Registry{swarm: s, origin: origin}
}

// HAL returns the HAL of drone id, or hal.ErrDroneNotFound.
func (r *Registry) HAL(id int) (hal.DroneHAL, error) {
	d, err := r.swarm.Drone(id)
	if err != nil {
		return nil, err
	}
	return New(d, r.swarm.Time, r.origin), nil
}

// IDs lists the drone ids in order.
func (r *Registry) IDs() []int {
	ids := make([]int, r.swarm.Len())
	for i := range ids {
		ids[i] = i
	}
	return ids
}
