// Package volume provides the grid geometry and storage types shared by the
// resampling toolkit. A Volume couples a voxel grid (dimensions, voxel sizes
// and a voxel-to-scanner transform) with flat row-major sample data, and the
// Accessor interface defines the read contract that both directly backed
// volumes and resampled views satisfy.
package volume

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Geometry describes the layout of a voxel grid: its extent, the physical
// size of each voxel in mm, and the affine transform mapping voxel
// coordinates to scanner (physical) coordinates.
type Geometry interface {
	// Ndim returns the number of axes of the grid.
	Ndim() int

	// Size returns the extent of the grid along the given axis in voxels.
	Size(axis int) int

	// VoxSize returns the physical voxel size along the given axis in mm.
	VoxSize(axis int) float64

	// Transform returns the 4x4 affine mapping voxel coordinates to
	// scanner coordinates. The matrix is in mm and does not include the
	// voxel size scaling.
	Transform() *mat.Dense
}

// Accessor is the generic read surface of a grid: geometry accessors plus a
// movable cursor and a value query. Both in-memory volumes and resampled
// views implement it, so downstream code (slice extraction, regridding,
// metrics) can treat them identically.
type Accessor interface {
	Ndim() int
	Size(axis int) int
	VoxSize(axis int) float64
	Transform() *mat.Dense
	Name() string

	// Index returns the current cursor position along the given axis.
	Index(axis int) int

	// SetIndex moves the cursor to the given position along one axis.
	SetIndex(axis, idx int)

	// MoveIndex shifts the cursor by delta along one axis.
	MoveIndex(axis, delta int)

	// Reset returns the cursor to the origin on every axis.
	Reset()

	// Value returns the sample under the current cursor position.
	Value() float64
}

// Grid is a concrete voxel grid geometry. It is immutable after construction
// and safe for concurrent reads.
type Grid struct {
	dims      []int
	voxSizes  []float64
	transform *mat.Dense
}

// NewGrid creates a grid geometry from dimensions, voxel sizes and a
// voxel-to-scanner transform. A nil voxSizes defaults every axis to 1 mm and
// a nil transform defaults to identity. At least 3 axes are required and all
// dimensions must be non-negative with positive voxel sizes.
func NewGrid(dims []int, voxSizes []float64, transform *mat.Dense) (*Grid, error) {
	if len(dims) < 3 {
		return nil, fmt.Errorf("grid requires at least 3 axes, got %d", len(dims))
	}
	for i, d := range dims {
		if d < 0 {
			return nil, fmt.Errorf("dimension %d is negative: %d", i, d)
		}
	}

	if voxSizes == nil {
		voxSizes = make([]float64, len(dims))
		for i := range voxSizes {
			voxSizes[i] = 1.0
		}
	}
	if len(voxSizes) != len(dims) {
		return nil, fmt.Errorf("got %d voxel sizes for %d axes", len(voxSizes), len(dims))
	}
	for i, v := range voxSizes {
		if v <= 0 || math.IsNaN(v) {
			return nil, fmt.Errorf("voxel size for axis %d must be positive, got %g", i, v)
		}
	}

	if transform == nil {
		transform = identityTransform()
	}
	r, c := transform.Dims()
	if r != 4 || c != 4 {
		return nil, fmt.Errorf("transform must be 4x4, got %dx%d", r, c)
	}

	g := &Grid{
		dims:      append([]int(nil), dims...),
		voxSizes:  append([]float64(nil), voxSizes...),
		transform: mat.DenseCopyOf(transform),
	}
	return g, nil
}

// MustGrid is a convenience wrapper around NewGrid that panics on error.
// It is intended for fixed geometries in tests and examples.
func MustGrid(dims []int, voxSizes []float64, transform *mat.Dense) *Grid {
	g, err := NewGrid(dims, voxSizes, transform)
	if err != nil {
		panic(err)
	}
	return g
}

func identityTransform() *mat.Dense {
	m := mat.NewDense(4, 4, nil)
	for i := 0; i < 4; i++ {
		m.Set(i, i, 1)
	}
	return m
}

// Ndim returns the number of axes.
func (g *Grid) Ndim() int { return len(g.dims) }

// Size returns the extent along the given axis in voxels.
func (g *Grid) Size(axis int) int { return g.dims[axis] }

// VoxSize returns the voxel size along the given axis in mm.
func (g *Grid) VoxSize(axis int) float64 { return g.voxSizes[axis] }

// Transform returns the voxel-to-scanner transform. Callers must not modify
// the returned matrix.
func (g *Grid) Transform() *mat.Dense { return g.transform }

// Dims returns a copy of the grid dimensions.
func (g *Grid) Dims() []int { return append([]int(nil), g.dims...) }

// VoxSizes returns a copy of the per-axis voxel sizes.
func (g *Grid) VoxSizes() []float64 { return append([]float64(nil), g.voxSizes...) }

// NumVoxels returns the total number of voxels in the grid.
func (g *Grid) NumVoxels() int {
	n := 1
	for _, d := range g.dims {
		n *= d
	}
	return n
}

// Volume is an in-memory volumetric dataset: a grid geometry plus flat
// sample data stored in row-major order with axis 0 varying fastest
// (the same layout the slice loader produces, x then y then z then any
// trailing volume axis).
type Volume struct {
	*Grid

	// Data holds one float64 sample per voxel.
	Data []float64

	name string
}

// NewVolume allocates a zero-filled volume on the given grid.
func NewVolume(g *Grid) *Volume {
	return &Volume{
		Grid: g,
		Data: make([]float64, g.NumVoxels()),
	}
}

// Name returns the volume's label, typically the path it was loaded from.
func (v *Volume) Name() string { return v.name }

// SetName assigns the volume's label.
func (v *Volume) SetName(name string) { v.name = name }

// Stride returns the number of samples between consecutive voxels along the
// given axis.
func (v *Volume) Stride(axis int) int {
	s := 1
	for i := 0; i < axis; i++ {
		s *= v.dims[i]
	}
	return s
}

// Offset converts a full voxel coordinate to an index into Data. It returns
// -1 when the coordinate lies outside the grid.
func (v *Volume) Offset(idx ...int) int {
	if len(idx) != len(v.dims) {
		return -1
	}
	off := 0
	stride := 1
	for i, x := range idx {
		if x < 0 || x >= v.dims[i] {
			return -1
		}
		off += x * stride
		stride *= v.dims[i]
	}
	return off
}

// At returns the sample at the given voxel coordinate, or NaN when the
// coordinate is out of bounds.
func (v *Volume) At(idx ...int) float64 {
	off := v.Offset(idx...)
	if off < 0 {
		return math.NaN()
	}
	return v.Data[off]
}

// Set stores a sample at the given voxel coordinate. Out-of-bounds
// coordinates are ignored.
func (v *Volume) Set(val float64, idx ...int) {
	off := v.Offset(idx...)
	if off >= 0 {
		v.Data[off] = val
	}
}

// Cursor is the accessor over a directly backed volume: a movable voxel
// index per axis and a value query at the current position. One Cursor
// belongs to one caller; create a separate Cursor per goroutine.
type Cursor struct {
	vol *Volume
	idx []int
}

var _ Accessor = (*Cursor)(nil)

// NewAccessor creates a cursor over the volume, positioned at the origin.
func NewAccessor(vol *Volume) *Cursor {
	return &Cursor{
		vol: vol,
		idx: make([]int, vol.Ndim()),
	}
}

// Ndim returns the number of axes of the underlying volume.
func (c *Cursor) Ndim() int { return c.vol.Ndim() }

// Size returns the extent along the given axis.
func (c *Cursor) Size(axis int) int { return c.vol.Size(axis) }

// VoxSize returns the voxel size along the given axis.
func (c *Cursor) VoxSize(axis int) float64 { return c.vol.VoxSize(axis) }

// Transform returns the voxel-to-scanner transform of the underlying volume.
func (c *Cursor) Transform() *mat.Dense { return c.vol.Transform() }

// Name returns the underlying volume's label.
func (c *Cursor) Name() string { return c.vol.Name() }

// Index returns the current position along the given axis.
func (c *Cursor) Index(axis int) int { return c.idx[axis] }

// SetIndex moves the cursor along one axis.
func (c *Cursor) SetIndex(axis, idx int) { c.idx[axis] = idx }

// MoveIndex shifts the cursor by delta along one axis.
func (c *Cursor) MoveIndex(axis, delta int) { c.idx[axis] += delta }

// Reset returns the cursor to the origin on every axis.
func (c *Cursor) Reset() {
	for i := range c.idx {
		c.idx[i] = 0
	}
}

// Value returns the sample under the cursor, or NaN when the cursor lies
// outside the volume.
func (c *Cursor) Value() float64 {
	return c.vol.At(c.idx...)
}
