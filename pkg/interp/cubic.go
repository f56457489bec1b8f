package interp

import (
	"math"

	"mriregrid/pkg/volume"
)

// Cubic performs Catmull-Rom cubic interpolation over the 4x4x4
// neighbourhood of the requested position. It is smoother than trilinear
// interpolation at the cost of a larger support; at integer coordinates the
// kernel weights collapse to a single voxel, so stored values are
// reproduced exactly.
type Cubic struct {
	base
}

var _ Interpolator = (*Cubic)(nil)

// NewCubic creates a cubic interpolator over the volume.
func NewCubic(vol *volume.Volume, outOfBounds float64) Interpolator {
	return &Cubic{base: newBase(vol, outOfBounds)}
}

// Voxel positions the interpolator at a continuous voxel coordinate.
func (c *Cubic) Voxel(p [3]float64) {
	c.position(p)
}

// catmullRom returns the four tap weights for fractional offset t in [0,1).
// At t=0 the weights are (0, 1, 0, 0).
func catmullRom(t float64) [4]float64 {
	t2 := t * t
	t3 := t2 * t
	return [4]float64{
		-0.5*t3 + t2 - 0.5*t,
		1.5*t3 - 2.5*t2 + 1,
		-1.5*t3 + 2*t2 + 0.5*t,
		0.5*t3 - 0.5*t2,
	}
}

// Value returns the cubic-interpolated sample, or the out-of-bounds
// substitution value when the position is invalid.
func (c *Cubic) Value() float64 {
	if !c.valid {
		return c.oob
	}

	var taps [3][4]int
	var weights [3][4]float64
	for i := 0; i < 3; i++ {
		f := math.Floor(c.pos[i])
		weights[i] = catmullRom(c.pos[i] - f)
		for k := 0; k < 4; k++ {
			taps[i][k] = clamp(int(f)+k-1, 0, c.vol.Size(i)-1)
		}
	}

	result := 0.0
	for kz := 0; kz < 4; kz++ {
		wz := weights[2][kz]
		if wz == 0 {
			continue
		}
		for ky := 0; ky < 4; ky++ {
			wy := weights[1][ky]
			if wy == 0 {
				continue
			}
			for kx := 0; kx < 4; kx++ {
				wx := weights[0][kx]
				if wx == 0 {
					continue
				}
				result += wx * wy * wz * c.sample(taps[0][kx], taps[1][ky], taps[2][kz])
			}
		}
	}
	return result
}
