// Package quality computes validation metrics between two volumes on the
// same grid, typically an original volume and a resampled version of it.
// The metrics quantify how much information the resampling preserved and
// follow the usual image-quality measures (RMSE, SSIM, mutual information,
// entropy difference, edge preservation).
package quality

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"mriregrid/pkg/volume"
)

// Metrics holds the comparison results between an original and a resampled
// volume.
type Metrics struct {
	// MI (Mutual Information) measures the statistical dependency between
	// the two datasets. Higher values indicate better information
	// preservation.
	MI float64

	// EntropyDiff is the difference in information content (entropy)
	// between the two volumes. Lower values indicate better information
	// preservation.
	EntropyDiff float64

	// RMSE (Root Mean Square Error) measures the average squared
	// difference between voxel intensities. Lower values indicate better
	// fidelity.
	RMSE float64

	// SSIM (Structural Similarity Index) measures perceived similarity,
	// considering luminance, contrast, and structure. Values range from
	// -1 to 1, with 1 indicating perfect similarity.
	SSIM float64

	// EdgePreserved measures how well edges and boundaries are
	// maintained. Values range from 0 to 1, with 1 indicating perfect
	// edge preservation.
	EdgePreserved float64

	// Accuracy is the overall combined score calculated from the other
	// metrics, in percent.
	Accuracy float64
}

// Compare computes the metrics between an original volume and a resampled
// one. The volumes must have identical dimensions. Voxel pairs where either
// sample is non-finite (e.g. NaN out-of-bounds substitutions from the
// resampler) are excluded from all statistics.
func Compare(original, resampled *volume.Volume) (Metrics, error) {
	if len(original.Data) != len(resampled.Data) {
		return Metrics{}, fmt.Errorf("volume sizes differ: %d vs %d voxels",
			len(original.Data), len(resampled.Data))
	}
	for i := 0; i < original.Ndim() && i < resampled.Ndim(); i++ {
		if original.Size(i) != resampled.Size(i) {
			return Metrics{}, fmt.Errorf("dimension %d differs: %d vs %d",
				i, original.Size(i), resampled.Size(i))
		}
	}

	orig, res := finitePairs(original.Data, resampled.Data)
	if len(orig) == 0 {
		return Metrics{}, fmt.Errorf("no finite voxel pairs to compare")
	}

	m := Metrics{
		MI:            mutualInformation(orig, res),
		EntropyDiff:   math.Abs(entropy(orig) - entropy(res)),
		RMSE:          rmse(orig, res),
		SSIM:          ssim(orig, res),
		EdgePreserved: edgePreservation(original, resampled),
	}

	// Combined score following the accuracy formula used for assessing
	// reconstruction pipelines: each factor degrades the score as its
	// metric departs from the ideal.
	m.Accuracy = (1 - m.EntropyDiff) *
		(1 - (1 - m.MI)) *
		(1 - m.RMSE) *
		m.SSIM *
		m.EdgePreserved
	m.Accuracy *= 100

	return m, nil
}

// finitePairs returns the subset of sample pairs where both values are
// finite.
func finitePairs(a, b []float64) ([]float64, []float64) {
	outA := make([]float64, 0, len(a))
	outB := make([]float64, 0, len(b))
	for i := range a {
		if math.IsNaN(a[i]) || math.IsInf(a[i], 0) || math.IsNaN(b[i]) || math.IsInf(b[i], 0) {
			continue
		}
		outA = append(outA, a[i])
		outB = append(outB, b[i])
	}
	return outA, outB
}

// mutualInformation computes a Gaussian approximation of the mutual
// information between two datasets:
// MI ≈ 0.5 * log(var(X) * var(Y) / (var(X) * var(Y) - cov(X,Y)²))
func mutualInformation(original, resampled []float64) float64 {
	if len(original) == 0 {
		return 0
	}

	varOrig := stat.Variance(original, nil)
	varRes := stat.Variance(resampled, nil)
	covar := stat.Covariance(original, resampled, nil)

	if varOrig > 0 && varRes > 0 {
		determinant := varOrig*varRes - covar*covar
		if determinant > 0 {
			return 0.5 * math.Log(varOrig*varRes/determinant)
		}
	}
	return 0
}

// rmse computes the root mean square error between two datasets.
func rmse(original, resampled []float64) float64 {
	n := len(original)
	if n == 0 {
		return 0
	}

	mse := 0.0
	for i := 0; i < n; i++ {
		diff := original[i] - resampled[i]
		mse += diff * diff
	}
	mse /= float64(n)

	return math.Sqrt(mse)
}

// ssim computes the Structural Similarity Index between two datasets.
func ssim(original, resampled []float64) float64 {
	// Constants for SSIM calculation
	const L = 1.0 // Dynamic range
	const k1 = 0.01
	const k2 = 0.03

	c1 := (k1 * L) * (k1 * L)
	c2 := (k2 * L) * (k2 * L)

	if len(original) == 0 {
		return 0
	}

	muX := stat.Mean(original, nil)
	muY := stat.Mean(resampled, nil)

	sigmaX := stat.Variance(original, nil)
	sigmaY := stat.Variance(resampled, nil)
	sigmaXY := stat.Covariance(original, resampled, nil)

	num := (2*muX*muY + c1) * (2*sigmaXY + c2)
	den := (muX*muX + muY*muY + c1) * (sigmaX + sigmaY + c2)

	if den > 0 {
		return num / den
	}
	return 0
}

// entropy computes the Shannon entropy of data using a 256-bin histogram.
func entropy(data []float64) float64 {
	n := len(data)
	if n == 0 {
		return 0
	}

	min, max := findMinMax(data)
	if max <= min {
		return 0
	}

	const numBins = 256
	hist := make([]float64, numBins)
	binWidth := (max - min) / float64(numBins)

	for _, v := range data {
		binIdx := int((v - min) / binWidth)
		if binIdx >= numBins {
			binIdx = numBins - 1
		} else if binIdx < 0 {
			binIdx = 0
		}
		hist[binIdx]++
	}

	result := 0.0
	for _, count := range hist {
		if count > 0 {
			p := count / float64(n)
			result -= p * math.Log2(p)
		}
	}
	return result
}

// findMinMax returns the minimum and maximum values in a slice
func findMinMax(data []float64) (min, max float64) {
	if len(data) == 0 {
		return 0, 0
	}

	min = data[0]
	max = data[0]
	for _, v := range data {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	return min, max
}

// edgePreservation computes the Pearson correlation between the gradient
// magnitudes of the two volumes. Gradients are central differences over the
// three spatial axes; voxels with non-finite neighbours contribute zero
// gradient.
func edgePreservation(original, resampled *volume.Volume) float64 {
	edgesOrig := gradientMagnitude(original)
	edgesRes := gradientMagnitude(resampled)

	correlation := stat.Correlation(edgesOrig, edgesRes, nil)
	if math.IsNaN(correlation) {
		// Flat volumes have no edges to preserve.
		return 1
	}
	return correlation
}

// gradientMagnitude returns a per-voxel edge map for the first 3D frame of
// the volume.
func gradientMagnitude(vol *volume.Volume) []float64 {
	nx, ny, nz := vol.Size(0), vol.Size(1), vol.Size(2)
	out := make([]float64, nx*ny*nz)

	idx := make([]int, vol.Ndim())
	at := func(x, y, z int) float64 {
		idx[0], idx[1], idx[2] = x, y, z
		return vol.At(idx...)
	}

	for z := 0; z < nz; z++ {
		for y := 0; y < ny; y++ {
			for x := 0; x < nx; x++ {
				gx := centralDiff(at(clampInt(x-1, nx), y, z), at(clampInt(x+1, nx), y, z))
				gy := centralDiff(at(x, clampInt(y-1, ny), z), at(x, clampInt(y+1, ny), z))
				gz := centralDiff(at(x, y, clampInt(z-1, nz)), at(x, y, clampInt(z+1, nz)))
				out[z*nx*ny+y*nx+x] = math.Sqrt(gx*gx + gy*gy + gz*gz)
			}
		}
	}
	return out
}

func centralDiff(lo, hi float64) float64 {
	d := 0.5 * (hi - lo)
	if math.IsNaN(d) || math.IsInf(d, 0) {
		return 0
	}
	return d
}

func clampInt(x, size int) int {
	if x < 0 {
		return 0
	}
	if x >= size {
		return size - 1
	}
	return x
}
