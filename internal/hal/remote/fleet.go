package remote

import (
	"errors"
	"fmt"
	"sort"

	"github.com/dronelab/swarmsim/pkg/hal"
)

// Fleet is a hal.Registry of remote drones sharing one transport.
type Fleet struct {
	hals map[int]*HAL
}

var _ hal.Registry = (*Fleet)(nil)

// NewFleet creates a HAL for every id.
func NewFleet(t Transport, ids []int, opts ...Option) (*Fleet, error) {
	f := &Fleet{hals: make(map[int]*HAL, len(ids))}
	for _, id := range ids {
		if _, dup := f.hals[id]; dup {
			continue
		}
		h, err := New(id, t, opts...)
		if err != nil {
			_ = f.Close()
			return nil, err
		}
		f.hals[id] = h
	}
	return f, nil
}

// HAL returns the HAL of drone id, or hal.ErrDroneNotFound.
func (f *Fleet) HAL(id int) (hal.DroneHAL, error) {
	h, ok := f.hals[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", hal.ErrDroneNotFound, id)
	}
	return h, nil
}

// IDs lists the drone ids in ascending order.
func (f *Fleet) IDs() []int {
	ids := make([]int, 0, len(f.hals))
	for id := range f.hals {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// Close unsubscribes every HAL.
func (f *Fleet) Close() error {
	var errs []error
	for _, h := range f.hals {
		if err := h.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
