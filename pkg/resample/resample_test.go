package resample

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"

	"mriregrid/pkg/interp"
	"mriregrid/pkg/reslice"
	"mriregrid/pkg/volume"
)

// rampVolume creates a volume whose samples equal their flat data index.
func rampVolume(t *testing.T, dims []int, voxSizes []float64) *volume.Volume {
	t.Helper()
	grid, err := volume.NewGrid(dims, voxSizes, nil)
	if err != nil {
		t.Fatalf("Failed to create grid: %v", err)
	}
	vol := volume.NewVolume(grid)
	for i := range vol.Data {
		vol.Data[i] = float64(i)
	}
	return vol
}

// sequentialRegrid fills the output with a single engine instance, as the
// reference behavior for the parallel driver.
func sequentialRegrid(t *testing.T, src *volume.Volume, ref volume.Geometry, p Params) []float64 {
	t.Helper()
	factory, err := interp.ByName(p.Interpolation)
	if err != nil {
		t.Fatalf("Unknown interpolation: %v", err)
	}
	view, err := reslice.New(factory, src, ref, reslice.Params{
		Transform:   p.Transform,
		Oversample:  p.Oversample,
		OutOfBounds: p.OutOfBounds,
	})
	if err != nil {
		t.Fatalf("Failed to construct view: %v", err)
	}

	out := make([]float64, 0, ref.Size(0)*ref.Size(1)*ref.Size(2))
	for z := 0; z < ref.Size(2); z++ {
		view.SetIndex(2, z)
		for y := 0; y < ref.Size(1); y++ {
			view.SetIndex(1, y)
			for x := 0; x < ref.Size(0); x++ {
				view.SetIndex(0, x)
				out = append(out, view.Value())
			}
		}
	}
	return out
}

// The worker split must be invisible: regridding with several cores yields
// exactly the values a single sequential engine produces.
func TestRegridMatchesSequentialScan(t *testing.T) {
	src := rampVolume(t, []int{6, 5, 7}, nil)
	ref := volume.MustGrid([]int{3, 5, 4}, []float64{2, 1, 1.5}, nil)

	for _, cores := range []int{1, 2, 4} {
		p := DefaultParams()
		p.NumCores = cores
		p.OutOfBounds = 0

		out, err := Regrid(src, ref, p)
		if err != nil {
			t.Fatalf("Regrid with %d cores failed: %v", cores, err)
		}

		want := sequentialRegrid(t, src, ref, p)
		if diff := cmp.Diff(want, out.Data); diff != "" {
			t.Errorf("Regrid with %d cores diverges from sequential scan (-want +got):\n%s", cores, diff)
		}
	}
}

func TestRegridIdentity(t *testing.T) {
	src := rampVolume(t, []int{4, 4, 4}, nil)

	p := DefaultParams()
	p.Oversample = []int{1, 1, 1}
	out, err := Regrid(src, src.Grid, p)
	if err != nil {
		t.Fatalf("Regrid failed: %v", err)
	}

	if diff := cmp.Diff(src.Data, out.Data); diff != "" {
		t.Errorf("Identity regrid changed data (-want +got):\n%s", diff)
	}
}

func TestRegridOutputGeometry(t *testing.T) {
	src := rampVolume(t, []int{8, 8, 8, 2}, nil)
	ref := volume.MustGrid([]int{4, 4, 2}, []float64{2, 2, 4}, nil)

	out, err := Regrid(src, ref, DefaultParams())
	if err != nil {
		t.Fatalf("Regrid failed: %v", err)
	}

	if diff := cmp.Diff([]int{4, 4, 2, 2}, out.Dims()); diff != "" {
		t.Errorf("Output dims mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]float64{2, 2, 4, 1}, out.VoxSizes()); diff != "" {
		t.Errorf("Output voxel sizes mismatch (-want +got):\n%s", diff)
	}
}

// Trailing-axis frames are resampled independently; each output frame must
// reproduce its own source frame under an identity regrid.
func TestRegridTrailingAxis(t *testing.T) {
	src := rampVolume(t, []int{3, 3, 3, 2}, nil)

	p := DefaultParams()
	p.Oversample = []int{1, 1, 1}
	out, err := Regrid(src, src.Grid, p)
	if err != nil {
		t.Fatalf("Regrid failed: %v", err)
	}

	for v := 0; v < 2; v++ {
		for z := 0; z < 3; z++ {
			for y := 0; y < 3; y++ {
				for x := 0; x < 3; x++ {
					if got, want := out.At(x, y, z, v), src.At(x, y, z, v); got != want {
						t.Fatalf("Frame %d at (%d,%d,%d) = %g, want %g", v, x, y, z, got, want)
					}
				}
			}
		}
	}
}

func TestRegridConfigurationErrors(t *testing.T) {
	src := rampVolume(t, []int{4, 4, 4}, nil)

	t.Run("UnknownInterpolation", func(t *testing.T) {
		p := DefaultParams()
		p.Interpolation = "spline"
		if _, err := Regrid(src, src.Grid, p); err == nil {
			t.Fatal("Expected error for unknown interpolation")
		}
	})

	t.Run("BadOversample", func(t *testing.T) {
		p := DefaultParams()
		p.Oversample = []int{0, 1, 1}
		if _, err := Regrid(src, src.Grid, p); err == nil {
			t.Fatal("Expected error for non-positive oversampling factor")
		}
	})
}

func TestRegridOutOfBoundsRegions(t *testing.T) {
	src := rampVolume(t, []int{2, 2, 2}, nil)
	// A reference grid extending well past the source: distant voxels get
	// the NaN substitution.
	ref := volume.MustGrid([]int{6, 6, 6}, nil, nil)

	p := DefaultParams()
	p.Oversample = []int{1, 1, 1}
	out, err := Regrid(src, ref, p)
	if err != nil {
		t.Fatalf("Regrid failed: %v", err)
	}

	if got := out.At(5, 5, 5); !math.IsNaN(got) {
		t.Errorf("Distant voxel = %g, want NaN", got)
	}
	if got, want := out.At(1, 1, 1), src.At(1, 1, 1); got != want {
		t.Errorf("Covered voxel = %g, want %g", got, want)
	}
}
