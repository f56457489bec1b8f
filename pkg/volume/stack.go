package volume

import (
	"fmt"
	"image"
	"image/jpeg"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"mriregrid/internal/models"
)

// LoadStack builds a volume from a directory of 2D slice images. It performs
// the following operations:
// 1. Reads all files from the input directory
// 2. Filters for JPEG image files which contain the slice data
// 3. Sorts the files based on numerical values in their filenames to ensure
//    anatomical order
// 4. Converts each slice to grayscale samples in [0,1] and stacks them along
//    the z axis
//
// The proper ordering of slices is critical, as it preserves the spatial
// relationship between adjacent anatomical structures. The resulting volume
// has in-plane voxel sizes of 1 mm and a z spacing of sliceGap mm, with an
// identity voxel-to-scanner orientation.
func LoadStack(dir string, sliceGap float64) (*Volume, error) {
	if sliceGap <= 0 {
		return nil, fmt.Errorf("slice gap must be positive, got %g", sliceGap)
	}

	files, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var imageFiles []string
	for _, file := range files {
		ext := strings.ToLower(filepath.Ext(file.Name()))
		if ext == ".jpg" || ext == ".jpeg" {
			imageFiles = append(imageFiles, file.Name())
		}
	}
	if len(imageFiles) == 0 {
		return nil, fmt.Errorf("no JPG images found in input directory")
	}

	// Sort files alphanumerically to ensure correct slice order
	sort.Slice(imageFiles, func(i, j int) bool {
		return extractNumber(imageFiles[i]) < extractNumber(imageFiles[j])
	})

	var slices []models.Slice
	width, height := 0, 0
	for i, filename := range imageFiles {
		img, err := loadImage(filepath.Join(dir, filename))
		if err != nil {
			return nil, fmt.Errorf("failed to load image %s: %v", filename, err)
		}

		bounds := img.Bounds()
		if i == 0 {
			width = bounds.Dx()
			height = bounds.Dy()
		} else if bounds.Dx() != width || bounds.Dy() != height {
			return nil, fmt.Errorf("slice %s is %dx%d, expected %dx%d",
				filename, bounds.Dx(), bounds.Dy(), width, height)
		}

		slices = append(slices, models.Slice{
			Image:     img,
			Index:     i,
			Filename:  filename,
			Thickness: sliceGap,
			Position:  float64(i) * sliceGap,
		})
	}

	grid, err := NewGrid([]int{width, height, len(slices)}, []float64{1, 1, sliceGap}, nil)
	if err != nil {
		return nil, err
	}

	vol := NewVolume(grid)
	vol.SetName(dir)
	for _, slice := range slices {
		bounds := slice.Image.Bounds()
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				r, g, b, _ := slice.Image.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
				// luminance of the 16-bit channels, normalized to [0,1]
				gray := (0.299*float64(r) + 0.587*float64(g) + 0.114*float64(b)) / 65535.0
				vol.Set(gray, x, y, slice.Index)
			}
		}
	}

	return vol, nil
}

// extractNumber extracts the numeric part from a filename
func extractNumber(filename string) int {
	base := filepath.Base(filename)
	numStr := ""
	for _, c := range base {
		if c >= '0' && c <= '9' {
			numStr += string(c)
		}
	}

	if numStr != "" {
		num, err := strconv.Atoi(numStr)
		if err == nil {
			return num
		}
	}
	return 0
}

// loadImage reads a single JPEG image from disk
func loadImage(path string) (image.Image, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return jpeg.Decode(file)
}
