package quality

import (
	"math"
	"testing"

	"mriregrid/pkg/volume"
)

// patternVolume creates a volume with a smooth non-constant pattern so the
// statistical metrics have structure to work with.
func patternVolume(t *testing.T, dims []int) *volume.Volume {
	t.Helper()
	grid, err := volume.NewGrid(dims, nil, nil)
	if err != nil {
		t.Fatalf("Failed to create grid: %v", err)
	}
	vol := volume.NewVolume(grid)
	for z := 0; z < dims[2]; z++ {
		for y := 0; y < dims[1]; y++ {
			for x := 0; x < dims[0]; x++ {
				v := 0.5 + 0.5*math.Sin(float64(x)*0.7)*math.Cos(float64(y)*0.4+float64(z)*0.2)
				vol.Set(v, x, y, z)
			}
		}
	}
	return vol
}

func TestCompareIdenticalVolumes(t *testing.T) {
	vol := patternVolume(t, []int{8, 8, 8})

	m, err := Compare(vol, vol)
	if err != nil {
		t.Fatalf("Compare failed: %v", err)
	}

	if m.RMSE != 0 {
		t.Errorf("RMSE = %g, want 0", m.RMSE)
	}
	if math.Abs(m.SSIM-1) > 1e-9 {
		t.Errorf("SSIM = %g, want 1", m.SSIM)
	}
	if m.EntropyDiff != 0 {
		t.Errorf("EntropyDiff = %g, want 0", m.EntropyDiff)
	}
	if math.Abs(m.EdgePreserved-1) > 1e-9 {
		t.Errorf("EdgePreserved = %g, want 1", m.EdgePreserved)
	}
}

func TestCompareDegradedVolume(t *testing.T) {
	orig := patternVolume(t, []int{8, 8, 8})

	noisy := volume.NewVolume(orig.Grid)
	for i, v := range orig.Data {
		// deterministic perturbation
		noisy.Data[i] = v + 0.05*math.Sin(float64(i)*12.9898)
	}

	m, err := Compare(orig, noisy)
	if err != nil {
		t.Fatalf("Compare failed: %v", err)
	}

	if m.RMSE <= 0 {
		t.Errorf("RMSE = %g, want > 0", m.RMSE)
	}
	if m.SSIM >= 1 {
		t.Errorf("SSIM = %g, want < 1", m.SSIM)
	}
	if m.EdgePreserved >= 1 {
		t.Errorf("EdgePreserved = %g, want < 1", m.EdgePreserved)
	}
}

func TestCompareExcludesNonFinitePairs(t *testing.T) {
	orig := patternVolume(t, []int{4, 4, 4})

	withNaN := volume.NewVolume(orig.Grid)
	copy(withNaN.Data, orig.Data)
	// simulate out-of-bounds substitutions in a resampled result
	withNaN.Data[0] = math.NaN()
	withNaN.Data[7] = math.Inf(1)

	m, err := Compare(orig, withNaN)
	if err != nil {
		t.Fatalf("Compare failed: %v", err)
	}
	if math.IsNaN(m.RMSE) {
		t.Error("RMSE is NaN, non-finite pairs were not excluded")
	}
	if m.RMSE != 0 {
		t.Errorf("RMSE = %g, want 0 after excluding non-finite pairs", m.RMSE)
	}
}

func TestCompareShapeMismatch(t *testing.T) {
	a := patternVolume(t, []int{4, 4, 4})
	b := patternVolume(t, []int{4, 4, 5})

	if _, err := Compare(a, b); err == nil {
		t.Fatal("Expected error for mismatched volume sizes")
	}

	c := patternVolume(t, []int{4, 5, 4})
	d := patternVolume(t, []int{5, 4, 4})
	if _, err := Compare(c, d); err == nil {
		t.Fatal("Expected error for mismatched dimensions")
	}
}

func TestCompareAllNonFinite(t *testing.T) {
	grid, err := volume.NewGrid([]int{2, 2, 2}, nil, nil)
	if err != nil {
		t.Fatalf("Failed to create grid: %v", err)
	}
	a := volume.NewVolume(grid)
	b := volume.NewVolume(grid)
	for i := range a.Data {
		a.Data[i] = math.NaN()
	}

	if _, err := Compare(a, b); err == nil {
		t.Fatal("Expected error when no finite pairs remain")
	}
}
