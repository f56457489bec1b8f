package models

import (
	"image"
)

// Slice represents a single acquired 2D slice with metadata, as produced by
// the slice-stack loader before the samples are assembled into a volume.
type Slice struct {
	// Image is the actual slice image data
	Image image.Image

	// Index is the position of this slice in the sequence
	Index int

	// Filename is the original filename of the slice
	Filename string

	// Thickness is the physical thickness of the slice in mm
	Thickness float64

	// Position is the physical position of the slice along the stack axis
	Position float64
}
