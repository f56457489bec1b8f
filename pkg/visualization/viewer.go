// Package visualization extracts and exports 2D slices from volumetric
// grids. It reads through the generic grid accessor contract, so it can
// preview a resampled view directly without materializing it first.
package visualization

import (
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"math"
	"os"
	"path/filepath"

	"mriregrid/pkg/volume"
)

// Viewer extracts orthogonal 2D slices from a grid. Sample values are
// expected in [0,1] and are clamped into that range for export; non-finite
// samples (e.g. out-of-bounds substitutions) render black.
type Viewer struct {
	grid volume.Accessor
}

// NewViewer creates a viewer over any grid accessor: a directly backed
// volume cursor or a resampled view.
func NewViewer(grid volume.Accessor) *Viewer {
	return &Viewer{grid: grid}
}

// ExtractSlice extracts a 2D slice from the grid along the specified axis.
// Trailing axes (e.g. a volume axis) are read at index zero.
func (v *Viewer) ExtractSlice(axis string, position int) (image.Image, error) {
	if position < 0 {
		return nil, fmt.Errorf("position must be non-negative")
	}

	width := v.grid.Size(0)
	height := v.grid.Size(1)
	depth := v.grid.Size(2)

	v.grid.Reset()

	var img *image.Gray16

	switch axis {
	case "x", "X":
		// Extract slice along YZ plane
		if position >= width {
			return nil, fmt.Errorf("position %d exceeds width %d", position, width)
		}

		img = image.NewGray16(image.Rect(0, 0, depth, height))
		v.grid.SetIndex(0, position)
		for y := 0; y < height; y++ {
			v.grid.SetIndex(1, y)
			for z := 0; z < depth; z++ {
				v.grid.SetIndex(2, z)
				img.SetGray16(z, y, color.Gray16{Y: toGray(v.grid.Value())})
			}
		}

	case "y", "Y":
		// Extract slice along XZ plane
		if position >= height {
			return nil, fmt.Errorf("position %d exceeds height %d", position, height)
		}

		img = image.NewGray16(image.Rect(0, 0, width, depth))
		v.grid.SetIndex(1, position)
		for z := 0; z < depth; z++ {
			v.grid.SetIndex(2, z)
			for x := 0; x < width; x++ {
				v.grid.SetIndex(0, x)
				img.SetGray16(x, z, color.Gray16{Y: toGray(v.grid.Value())})
			}
		}

	case "z", "Z":
		// Extract slice along XY plane
		if position >= depth {
			return nil, fmt.Errorf("position %d exceeds depth %d", position, depth)
		}

		img = image.NewGray16(image.Rect(0, 0, width, height))
		v.grid.SetIndex(2, position)
		for y := 0; y < height; y++ {
			v.grid.SetIndex(1, y)
			for x := 0; x < width; x++ {
				v.grid.SetIndex(0, x)
				img.SetGray16(x, y, color.Gray16{Y: toGray(v.grid.Value())})
			}
		}

	default:
		return nil, fmt.Errorf("invalid axis: %s (must be x, y, or z)", axis)
	}

	return img, nil
}

// toGray maps a sample in [0,1] to a 16-bit gray level.
func toGray(value float64) uint16 {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0
	}
	return uint16(math.Max(0, math.Min(65535, value*65535)))
}

// SaveSlice saves an extracted slice as a JPEG image
func (v *Viewer) SaveSlice(img image.Image, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	return jpeg.Encode(file, img, &jpeg.Options{Quality: 90})
}

// SaveSliceSequence extracts and saves a sequence of slices along the
// specified axis.
func (v *Viewer) SaveSliceSequence(axis string, outputDir string) error {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return err
	}

	var maxPos int
	switch axis {
	case "x", "X":
		maxPos = v.grid.Size(0)
	case "y", "Y":
		maxPos = v.grid.Size(1)
	case "z", "Z":
		maxPos = v.grid.Size(2)
	default:
		return fmt.Errorf("invalid axis: %s (must be x, y, or z)", axis)
	}

	for pos := 0; pos < maxPos; pos++ {
		img, err := v.ExtractSlice(axis, pos)
		if err != nil {
			return err
		}

		filename := filepath.Join(outputDir, fmt.Sprintf("slice_%s_%03d.jpg", axis, pos))
		if err := v.SaveSlice(img, filename); err != nil {
			return err
		}
	}

	return nil
}
