package interp

import (
	"math"

	"mriregrid/pkg/volume"
)

// Linear performs trilinear interpolation over the 8-voxel neighbourhood of
// the requested position. Neighbour indices are clamped at the volume faces,
// so positions within half a voxel of the boundary still interpolate.
type Linear struct {
	base
}

var _ Interpolator = (*Linear)(nil)

// NewLinear creates a trilinear interpolator over the volume.
func NewLinear(vol *volume.Volume, outOfBounds float64) Interpolator {
	return &Linear{base: newBase(vol, outOfBounds)}
}

// Voxel positions the interpolator at a continuous voxel coordinate.
func (l *Linear) Voxel(p [3]float64) {
	l.position(p)
}

// Value returns the trilinearly interpolated sample, or the out-of-bounds
// substitution value when the position is invalid.
func (l *Linear) Value() float64 {
	if !l.valid {
		return l.oob
	}

	var lo, hi [3]int
	var t [3]float64
	for i := 0; i < 3; i++ {
		f := math.Floor(l.pos[i])
		t[i] = l.pos[i] - f
		lo[i] = clamp(int(f), 0, l.vol.Size(i)-1)
		hi[i] = clamp(int(f)+1, 0, l.vol.Size(i)-1)
	}

	// accumulate the 8 corners weighted by the complement/fraction product
	result := 0.0
	for cz := 0; cz < 2; cz++ {
		wz := 1 - t[2]
		iz := lo[2]
		if cz == 1 {
			wz = t[2]
			iz = hi[2]
		}
		if wz == 0 {
			continue
		}
		for cy := 0; cy < 2; cy++ {
			wy := 1 - t[1]
			iy := lo[1]
			if cy == 1 {
				wy = t[1]
				iy = hi[1]
			}
			if wy == 0 {
				continue
			}
			for cx := 0; cx < 2; cx++ {
				wx := 1 - t[0]
				ix := lo[0]
				if cx == 1 {
					wx = t[0]
					ix = hi[0]
				}
				if wx == 0 {
					continue
				}
				result += wx * wy * wz * l.sample(ix, iy, iz)
			}
		}
	}
	return result
}
