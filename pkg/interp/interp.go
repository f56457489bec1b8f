// Package interp provides the interpolation strategies used to sample a
// volume at continuous voxel coordinates. Every strategy satisfies the
// Interpolator interface, so the resampling engine can be composed with any
// of them (nearest-neighbour, trilinear or cubic) without knowing which one
// it is driving.
package interp

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"mriregrid/pkg/volume"
)

// DefaultOutOfBounds is the substitution value used for samples outside the
// source volume when the caller does not choose one. NaN is recognizable as
// "no data" by every downstream consumer.
func DefaultOutOfBounds() float64 { return math.NaN() }

// Interpolator is the capability contract the resampling engine requires
// from an interpolation strategy: geometry accessors mirroring the source
// volume, a positioning operation taking a continuous voxel coordinate on
// the three spatial axes, a validity test for the most recent positioning,
// a value query, and a movable index for any axes beyond the first three.
type Interpolator interface {
	Ndim() int
	Size(axis int) int
	VoxSize(axis int) float64
	Transform() *mat.Dense
	Name() string

	// Voxel positions the interpolator at a continuous source-voxel
	// coordinate on axes 0-2.
	Voxel(p [3]float64)

	// Valid reports whether the most recent positioning fell inside the
	// source domain.
	Valid() bool

	// Value returns the interpolated sample at the current position, or
	// the out-of-bounds substitution value when the position is invalid.
	Value() float64

	// Index, SetIndex and MoveIndex operate the cursor for axes >= 3
	// (e.g. a channel or volume axis).
	Index(axis int) int
	SetIndex(axis, idx int)
	MoveIndex(axis, delta int)
}

// Factory constructs an interpolator over a source volume with the given
// out-of-bounds substitution value. NewNearest, NewLinear and NewCubic all
// have this shape.
type Factory func(vol *volume.Volume, outOfBounds float64) Interpolator

// ByName returns the factory for a strategy name: "nearest", "linear" or
// "cubic".
func ByName(name string) (Factory, error) {
	switch name {
	case "nearest":
		return NewNearest, nil
	case "linear":
		return NewLinear, nil
	case "cubic":
		return NewCubic, nil
	default:
		return nil, fmt.Errorf("unknown interpolation %q (expected nearest, linear or cubic)", name)
	}
}

// base carries the state shared by all strategies: the source volume, the
// substitution value, the current continuous position, the validity of that
// position, and the cursor for axes beyond the first three.
type base struct {
	vol   *volume.Volume
	oob   float64
	pos   [3]float64
	valid bool
	extra []int

	// spatial strides of the source, cached at construction
	stride [3]int
}

func newBase(vol *volume.Volume, outOfBounds float64) base {
	b := base{
		vol:   vol,
		oob:   outOfBounds,
		extra: make([]int, vol.Ndim()-3),
	}
	for i := 0; i < 3; i++ {
		b.stride[i] = vol.Stride(i)
	}
	return b
}

// Ndim returns the number of axes of the source volume.
func (b *base) Ndim() int { return b.vol.Ndim() }

// Size returns the source extent along the given axis.
func (b *base) Size(axis int) int { return b.vol.Size(axis) }

// VoxSize returns the source voxel size along the given axis.
func (b *base) VoxSize(axis int) float64 { return b.vol.VoxSize(axis) }

// Transform returns the source voxel-to-scanner transform.
func (b *base) Transform() *mat.Dense { return b.vol.Transform() }

// Name returns the source volume's label.
func (b *base) Name() string { return b.vol.Name() }

// Valid reports whether the most recent positioning was inside the source.
func (b *base) Valid() bool { return b.valid }

// Index returns the cursor position for an axis >= 3.
func (b *base) Index(axis int) int { return b.extra[axis-3] }

// SetIndex moves the cursor for an axis >= 3.
func (b *base) SetIndex(axis, idx int) { b.extra[axis-3] = idx }

// MoveIndex shifts the cursor for an axis >= 3.
func (b *base) MoveIndex(axis, delta int) { b.extra[axis-3] += delta }

// position records a continuous coordinate and computes its validity. A
// coordinate is in-bounds when every spatial component lies within
// [-0.5, size-0.5] (voxel-centre convention) and every cursor position on
// the trailing axes is within its extent.
func (b *base) position(p [3]float64) {
	b.pos = p
	for i := 0; i < 3; i++ {
		if !(p[i] >= -0.5 && p[i] <= float64(b.vol.Size(i))-0.5) {
			b.valid = false
			return
		}
	}
	for n, idx := range b.extra {
		if idx < 0 || idx >= b.vol.Size(n + 3) {
			b.valid = false
			return
		}
	}
	b.valid = true
}

// extraOffset returns the data offset contributed by the cursor on axes >= 3.
func (b *base) extraOffset() int {
	off := 0
	for n, idx := range b.extra {
		off += idx * b.vol.Stride(n+3)
	}
	return off
}

// sample reads the source at an integer spatial coordinate combined with
// the trailing-axis cursor. Indices must already be clamped in-bounds.
func (b *base) sample(ix, iy, iz int) float64 {
	return b.vol.Data[ix*b.stride[0]+iy*b.stride[1]+iz*b.stride[2]+b.extraOffset()]
}

func clamp(x, lo, hi int) int {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
