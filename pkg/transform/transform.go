// Package transform provides the affine bookkeeping used throughout the
// toolkit: conversions between voxel and scanner coordinate systems,
// composition of 4x4 transforms, and point mapping. All matrices are 4x4
// homogeneous affines built on gonum's mat.Dense.
package transform

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"

	"mriregrid/pkg/volume"
)

// Identity returns a new 4x4 identity transform.
func Identity() *mat.Dense {
	m := mat.NewDense(4, 4, nil)
	for i := 0; i < 4; i++ {
		m.Set(i, i, 1)
	}
	return m
}

// VoxelToScanner returns the affine mapping voxel coordinates of the grid to
// scanner coordinates. The grid's stored transform is in mm, so the voxel
// size scaling is folded in here: voxel2scanner = transform * diag(voxsize).
func VoxelToScanner(g volume.Geometry) *mat.Dense {
	scale := mat.NewDense(4, 4, nil)
	for i := 0; i < 3; i++ {
		scale.Set(i, i, g.VoxSize(i))
	}
	scale.Set(3, 3, 1)

	out := mat.NewDense(4, 4, nil)
	out.Mul(g.Transform(), scale)
	return out
}

// ScannerToVoxel returns the inverse of VoxelToScanner for the grid. It
// fails when the grid transform is singular.
func ScannerToVoxel(g volume.Geometry) (*mat.Dense, error) {
	v2s := VoxelToScanner(g)
	out := mat.NewDense(4, 4, nil)
	if err := out.Inverse(v2s); err != nil {
		return nil, fmt.Errorf("grid transform is not invertible: %v", err)
	}
	return out, nil
}

// Compose multiplies the given transforms into a single affine. The result
// applies the rightmost transform first, matching standard matrix product
// semantics: Compose(A, B) applied to p computes A*(B*p).
func Compose(ms ...*mat.Dense) *mat.Dense {
	out := Identity()
	for _, m := range ms {
		next := mat.NewDense(4, 4, nil)
		next.Mul(out, m)
		out = next
	}
	return out
}

// Apply maps a 3-D point through the affine using homogeneous coordinates.
func Apply(m *mat.Dense, p [3]float64) [3]float64 {
	var out [3]float64
	for i := 0; i < 3; i++ {
		out[i] = m.At(i, 0)*p[0] + m.At(i, 1)*p[1] + m.At(i, 2)*p[2] + m.At(i, 3)
	}
	return out
}

// Parse reads a 4x4 transform from whitespace-separated text, one row per
// line. A 3x4 matrix is accepted and completed with the [0 0 0 1] row.
func Parse(text string) (*mat.Dense, error) {
	var values []float64
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		for _, field := range strings.Fields(line) {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid matrix entry %q: %v", field, err)
			}
			values = append(values, v)
		}
	}

	switch len(values) {
	case 16:
	case 12:
		values = append(values, 0, 0, 0, 1)
	default:
		return nil, fmt.Errorf("expected 12 or 16 matrix entries, got %d", len(values))
	}
	return mat.NewDense(4, 4, values), nil
}

// LoadMatrix reads a 4x4 (or 3x4) transform from a text file.
func LoadMatrix(path string) (*mat.Dense, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read transform file: %v", err)
	}
	m, err := Parse(string(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %v", path, err)
	}
	return m, nil
}
