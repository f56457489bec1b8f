package visualization

import (
	"image"
	"math"
	"os"
	"path/filepath"
	"testing"

	"mriregrid/pkg/interp"
	"mriregrid/pkg/reslice"
	"mriregrid/pkg/volume"
)

// gradientVolume creates a volume whose intensity rises with z, so each
// extracted z slice is uniform and distinguishable.
func gradientVolume(t *testing.T, nx, ny, nz int) *volume.Volume {
	t.Helper()
	grid, err := volume.NewGrid([]int{nx, ny, nz}, nil, nil)
	if err != nil {
		t.Fatalf("Failed to create grid: %v", err)
	}
	vol := volume.NewVolume(grid)
	for z := 0; z < nz; z++ {
		level := float64(z) / float64(nz-1)
		for y := 0; y < ny; y++ {
			for x := 0; x < nx; x++ {
				vol.Set(level, x, y, z)
			}
		}
	}
	return vol
}

func grayAt(img image.Image, x, y int) uint32 {
	r, _, _, _ := img.At(x, y).RGBA()
	return r
}

func TestExtractSliceDimensions(t *testing.T) {
	vol := gradientVolume(t, 4, 5, 6)
	viewer := NewViewer(volume.NewAccessor(vol))

	cases := []struct {
		axis          string
		width, height int
	}{
		{"x", 6, 5},
		{"y", 4, 6},
		{"z", 4, 5},
	}
	for _, c := range cases {
		t.Run(c.axis, func(t *testing.T) {
			img, err := viewer.ExtractSlice(c.axis, 0)
			if err != nil {
				t.Fatalf("Failed to extract slice: %v", err)
			}
			bounds := img.Bounds()
			if bounds.Dx() != c.width || bounds.Dy() != c.height {
				t.Errorf("Slice is %dx%d, want %dx%d", bounds.Dx(), bounds.Dy(), c.width, c.height)
			}
		})
	}
}

func TestExtractSliceValues(t *testing.T) {
	vol := gradientVolume(t, 4, 4, 3)
	viewer := NewViewer(volume.NewAccessor(vol))

	// z slice 2 is uniform full intensity
	img, err := viewer.ExtractSlice("z", 2)
	if err != nil {
		t.Fatalf("Failed to extract slice: %v", err)
	}
	if got := grayAt(img, 1, 1); got != 65535 {
		t.Errorf("Gray level = %d, want 65535", got)
	}

	// z slice 0 is uniform black
	img, err = viewer.ExtractSlice("z", 0)
	if err != nil {
		t.Fatalf("Failed to extract slice: %v", err)
	}
	if got := grayAt(img, 1, 1); got != 0 {
		t.Errorf("Gray level = %d, want 0", got)
	}
}

func TestExtractSliceErrors(t *testing.T) {
	vol := gradientVolume(t, 4, 4, 4)
	viewer := NewViewer(volume.NewAccessor(vol))

	if _, err := viewer.ExtractSlice("w", 0); err == nil {
		t.Error("Expected error for invalid axis")
	}
	if _, err := viewer.ExtractSlice("z", -1); err == nil {
		t.Error("Expected error for negative position")
	}
	if _, err := viewer.ExtractSlice("z", 4); err == nil {
		t.Error("Expected error for position beyond extent")
	}
}

// A resliced identity view must render exactly like its source volume.
func TestViewerOverReslicedView(t *testing.T) {
	vol := gradientVolume(t, 4, 4, 3)

	p := reslice.DefaultParams()
	p.Oversample = []int{1, 1, 1}
	view, err := reslice.New(interp.NewLinear, vol, vol.Grid, p)
	if err != nil {
		t.Fatalf("Failed to construct view: %v", err)
	}

	direct := NewViewer(volume.NewAccessor(vol))
	resliced := NewViewer(view)

	for z := 0; z < 3; z++ {
		want, err := direct.ExtractSlice("z", z)
		if err != nil {
			t.Fatalf("Failed to extract source slice: %v", err)
		}
		got, err := resliced.ExtractSlice("z", z)
		if err != nil {
			t.Fatalf("Failed to extract resliced slice: %v", err)
		}
		for y := 0; y < 4; y++ {
			for x := 0; x < 4; x++ {
				if grayAt(got, x, y) != grayAt(want, x, y) {
					t.Fatalf("Slice %d differs at (%d,%d)", z, x, y)
				}
			}
		}
	}
}

func TestNaNRendersBlack(t *testing.T) {
	vol := gradientVolume(t, 2, 2, 2)
	vol.Set(math.NaN(), 0, 0, 0)
	viewer := NewViewer(volume.NewAccessor(vol))

	img, err := viewer.ExtractSlice("z", 0)
	if err != nil {
		t.Fatalf("Failed to extract slice: %v", err)
	}
	if got := grayAt(img, 0, 0); got != 0 {
		t.Errorf("NaN gray level = %d, want 0", got)
	}
}

func TestSaveSliceSequence(t *testing.T) {
	vol := gradientVolume(t, 4, 4, 3)
	viewer := NewViewer(volume.NewAccessor(vol))

	dir := filepath.Join(t.TempDir(), "slices")
	if err := viewer.SaveSliceSequence("z", dir); err != nil {
		t.Fatalf("Failed to save slice sequence: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("Failed to read output dir: %v", err)
	}
	if len(entries) != 3 {
		t.Errorf("Saved %d slices, want 3", len(entries))
	}
}
