package interp

import (
	"math"

	"mriregrid/pkg/volume"
)

// Nearest samples the voxel whose centre is closest to the requested
// position. It reproduces stored values exactly at integer coordinates.
type Nearest struct {
	base
}

var _ Interpolator = (*Nearest)(nil)

// NewNearest creates a nearest-neighbour interpolator over the volume.
func NewNearest(vol *volume.Volume, outOfBounds float64) Interpolator {
	return &Nearest{base: newBase(vol, outOfBounds)}
}

// Voxel positions the interpolator at a continuous voxel coordinate.
func (n *Nearest) Voxel(p [3]float64) {
	n.position(p)
}

// Value returns the sample of the nearest voxel, or the out-of-bounds
// substitution value when the position is invalid.
func (n *Nearest) Value() float64 {
	if !n.valid {
		return n.oob
	}
	var idx [3]int
	for i := 0; i < 3; i++ {
		idx[i] = clamp(int(math.Floor(n.pos[i]+0.5)), 0, n.vol.Size(i)-1)
	}
	return n.sample(idx[0], idx[1], idx[2])
}
