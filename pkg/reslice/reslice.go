// Package reslice implements the spatial-resampling engine of the toolkit.
// A Reslicer exposes a source volume through the voxel layout and transform
// of a reference grid: it composes the two grids' geometries (plus an
// optional user-supplied scanner-space transform) into a single direct
// transform, delegates sample extraction to an interpolation strategy, and
// suppresses aliasing by averaging a sub-voxel lattice of samples whenever
// a reference voxel spans more than one source voxel.
//
// A Reslicer satisfies the volume.Accessor contract, so any code that reads
// grids through that contract (slice extraction, regridding, metrics) can
// consume a resampled view exactly as it would a directly backed volume.
// Nothing is cached: every Value call recomputes from the source.
package reslice

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"mriregrid/pkg/interp"
	"mriregrid/pkg/transform"
	"mriregrid/pkg/volume"
)

// Params holds the construction-time configuration of a Reslicer.
type Params struct {
	// Transform is an additional affine applied in scanner space, mapping
	// scanner coordinates of the reference onto scanner coordinates of
	// the source. nil means identity.
	Transform *mat.Dense

	// Oversample holds one oversampling factor per spatial axis. A nil or
	// empty slice derives the factors from the local stretching of the
	// composed transform; otherwise exactly 3 positive integers are
	// required, and [1 1 1] disables oversampling.
	Oversample []int

	// OutOfBounds is the substitution value for samples that fall outside
	// the source domain.
	OutOfBounds float64
}

// DefaultParams returns the default configuration: no user transform,
// auto-derived oversampling, NaN out-of-bounds substitution.
func DefaultParams() Params {
	return Params{OutOfBounds: interp.DefaultOutOfBounds()}
}

// Reslicer is a read-only view of a source volume resampled onto a
// reference grid. Its cursor is mutable per-instance state: one Reslicer
// serves one goroutine, and concurrent samplers must each construct their
// own (the source volume and reference geometry may be shared, as the
// engine never mutates them).
type Reslicer struct {
	interp interp.Interpolator

	x   [3]int
	dim [3]int
	vox [3]float64

	// reference transform, exposed as the view's own
	transform *mat.Dense

	// direct maps reference-voxel coordinates to source-voxel coordinates
	direct *mat.Dense

	oversampling bool
	os           [3]int
	from, inc    [3]float64
	norm         float64
}

var _ volume.Accessor = (*Reslicer)(nil)

// New constructs a resampled view of src on the reference grid, using the
// given interpolation strategy. Configuration errors (a reference geometry
// with fewer than 3 axes, a non-positive explicit oversampling factor, a
// non-invertible source transform) abort construction.
func New(factory interp.Factory, src *volume.Volume, ref volume.Geometry, p Params) (*Reslicer, error) {
	if ref.Ndim() < 3 {
		return nil, fmt.Errorf("reference geometry must have at least 3 axes, got %d", ref.Ndim())
	}

	userTransform := p.Transform
	if userTransform == nil {
		userTransform = transform.Identity()
	}
	scanner2voxel, err := transform.ScannerToVoxel(src)
	if err != nil {
		return nil, fmt.Errorf("failed to invert source transform: %v", err)
	}

	r := &Reslicer{
		interp:    factory(src, p.OutOfBounds),
		transform: ref.Transform(),
		direct:    transform.Compose(scanner2voxel, userTransform, transform.VoxelToScanner(ref)),
	}
	for i := 0; i < 3; i++ {
		r.dim[i] = ref.Size(i)
		r.vox[i] = ref.VoxSize(i)
	}

	if len(p.Oversample) > 0 {
		if len(p.Oversample) != 3 {
			return nil, fmt.Errorf("expected 3 oversampling factors, got %d", len(p.Oversample))
		}
		for i, f := range p.Oversample {
			if f < 1 {
				return nil, fmt.Errorf("oversampling factor for axis %d must be greater than zero, got %d", i, f)
			}
			r.os[i] = f
		}
	} else {
		// Estimate how many source voxels one reference voxel step spans
		// along each axis. When the step covers more than one source
		// voxel, single-point sampling would alias, so that many evenly
		// spaced samples are averaged instead. The 0.999 factor avoids
		// oversampling when the span is only just above an integer due
		// to floating-point error.
		origin := transform.Apply(r.direct, [3]float64{0, 0, 0})
		for i := 0; i < 3; i++ {
			var unit [3]float64
			unit[i] = 1
			d := transform.Apply(r.direct, unit)
			length := math.Sqrt(sq(d[0]-origin[0]) + sq(d[1]-origin[1]) + sq(d[2]-origin[2]))
			r.os[i] = int(math.Ceil(0.999 * length))
			if r.os[i] < 1 {
				r.os[i] = 1
			}
		}
	}

	if r.os[0]*r.os[1]*r.os[2] > 1 {
		r.oversampling = true
		total := 1.0
		for i := 0; i < 3; i++ {
			r.inc[i] = 1.0 / float64(r.os[i])
			r.from[i] = 0.5 * (r.inc[i] - 1.0)
			total *= float64(r.os[i])
		}
		r.norm = 1.0 / total
	}

	return r, nil
}

func sq(x float64) float64 { return x * x }

// Ndim returns the number of axes of the view, matching the source.
func (r *Reslicer) Ndim() int { return r.interp.Ndim() }

// Size returns the reference extent for the three spatial axes and the
// source extent for any trailing axes.
func (r *Reslicer) Size(axis int) int {
	if axis < 3 {
		return r.dim[axis]
	}
	return r.interp.Size(axis)
}

// VoxSize returns the reference voxel size for the three spatial axes and
// the source voxel size for any trailing axes.
func (r *Reslicer) VoxSize(axis int) float64 {
	if axis < 3 {
		return r.vox[axis]
	}
	return r.interp.VoxSize(axis)
}

// Transform returns the reference grid's transform: the resampled view
// occupies the reference's physical space.
func (r *Reslicer) Transform() *mat.Dense { return r.transform }

// Name returns the source volume's label.
func (r *Reslicer) Name() string { return r.interp.Name() }

// Oversample returns the per-axis oversampling factors in effect, whether
// supplied explicitly or auto-derived.
func (r *Reslicer) Oversample() [3]int { return r.os }

// Index returns the cursor position along the given axis.
func (r *Reslicer) Index(axis int) int {
	if axis < 3 {
		return r.x[axis]
	}
	return r.interp.Index(axis)
}

// SetIndex moves the cursor along one axis. Axes >= 3 are delegated to the
// interpolation strategy's own cursor.
func (r *Reslicer) SetIndex(axis, idx int) {
	if axis < 3 {
		r.x[axis] = idx
	} else {
		r.interp.SetIndex(axis, idx)
	}
}

// MoveIndex shifts the cursor by delta along one axis.
func (r *Reslicer) MoveIndex(axis, delta int) {
	if axis < 3 {
		r.x[axis] += delta
	} else {
		r.interp.MoveIndex(axis, delta)
	}
}

// Reset returns the cursor to the origin on the spatial axes and on every
// trailing axis.
func (r *Reslicer) Reset() {
	r.x[0], r.x[1], r.x[2] = 0, 0, 0
	for n := 3; n < r.interp.Ndim(); n++ {
		r.interp.SetIndex(n, 0)
	}
}

// Value returns the resampled sample at the current cursor position.
//
// Without oversampling the cursor coordinate is mapped through the direct
// transform and sampled once. With oversampling, samples are taken on a
// regular sub-voxel lattice centred within the reference voxel and summed;
// lattice positions outside the source are skipped but still count towards
// the fixed normalization, so partially covered voxels fade towards zero
// at the boundary rather than renormalizing over the valid subset.
func (r *Reslicer) Value() float64 {
	if r.oversampling {
		d := [3]float64{
			float64(r.x[0]) + r.from[0],
			float64(r.x[1]) + r.from[1],
			float64(r.x[2]) + r.from[2],
		}
		result := 0.0
		var s [3]float64
		for z := 0; z < r.os[2]; z++ {
			s[2] = d[2] + float64(z)*r.inc[2]
			for y := 0; y < r.os[1]; y++ {
				s[1] = d[1] + float64(y)*r.inc[1]
				for x := 0; x < r.os[0]; x++ {
					s[0] = d[0] + float64(x)*r.inc[0]
					r.interp.Voxel(transform.Apply(r.direct, s))
					if !r.interp.Valid() {
						continue
					}
					result += r.interp.Value()
				}
			}
		}
		return result * r.norm
	}

	p := [3]float64{float64(r.x[0]), float64(r.x[1]), float64(r.x[2])}
	r.interp.Voxel(transform.Apply(r.direct, p))
	return r.interp.Value()
}
