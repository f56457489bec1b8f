// Package resample materializes resampled views into concrete volumes. It
// drives the reslice engine over every voxel of the reference grid, split
// across worker goroutines. Because the engine's cursor is per-instance
// state, each worker constructs its own Reslicer; the workers share only the
// immutable source volume and reference geometry.
package resample

import (
	"fmt"
	"runtime"

	"gonum.org/v1/gonum/mat"

	"mriregrid/pkg/interp"
	"mriregrid/pkg/reslice"
	"mriregrid/pkg/volume"
)

// Params configures a regridding run.
type Params struct {
	// Interpolation selects the sampling strategy: "nearest", "linear" or
	// "cubic".
	Interpolation string

	// Oversample holds explicit per-axis oversampling factors; nil or
	// empty auto-derives them from the composed transform.
	Oversample []int

	// OutOfBounds is the substitution value for samples outside the
	// source domain.
	OutOfBounds float64

	// Transform is an optional additional affine applied in scanner
	// space. nil means identity.
	Transform *mat.Dense

	// NumCores is the number of worker goroutines; values < 1 use all
	// available CPU cores.
	NumCores int
}

// DefaultParams returns the default regridding configuration: linear
// interpolation, auto-derived oversampling, NaN out-of-bounds substitution,
// all CPU cores.
func DefaultParams() Params {
	return Params{
		Interpolation: "linear",
		OutOfBounds:   interp.DefaultOutOfBounds(),
		NumCores:      runtime.NumCPU(),
	}
}

// Regrid resamples src onto the reference grid and returns the result as a
// new volume. The output occupies the reference's layout and physical space
// on the spatial axes and keeps the source's trailing axes (e.g. a volume
// or channel axis).
func Regrid(src *volume.Volume, ref volume.Geometry, p Params) (*volume.Volume, error) {
	factory, err := interp.ByName(p.Interpolation)
	if err != nil {
		return nil, err
	}

	out, err := outputVolume(src, ref)
	if err != nil {
		return nil, err
	}

	rp := reslice.Params{
		Transform:   p.Transform,
		Oversample:  p.Oversample,
		OutOfBounds: p.OutOfBounds,
	}

	// Validate the engine configuration once before spawning workers, so
	// configuration errors surface immediately rather than from a
	// goroutine.
	if _, err := reslice.New(factory, src, ref, rp); err != nil {
		return nil, err
	}

	numWorkers := p.NumCores
	if numWorkers < 1 {
		numWorkers = runtime.NumCPU()
	}
	depth := ref.Size(2)
	if numWorkers > depth {
		numWorkers = depth
	}
	if numWorkers < 1 {
		numWorkers = 1
	}

	// Split the z-range across workers; each fills its own band of the
	// output so no synchronization is needed on the data.
	type workerResult struct {
		worker int
		err    error
	}
	resultChan := make(chan workerResult, numWorkers)

	slicesPerWorker := (depth + numWorkers - 1) / numWorkers
	for w := 0; w < numWorkers; w++ {
		zStart := w * slicesPerWorker
		zEnd := zStart + slicesPerWorker
		if zEnd > depth {
			zEnd = depth
		}

		go func(worker, zStart, zEnd int) {
			view, err := reslice.New(factory, src, ref, rp)
			if err != nil {
				resultChan <- workerResult{worker: worker, err: err}
				return
			}
			fillBand(out, view, zStart, zEnd)
			resultChan <- workerResult{worker: worker}
		}(w, zStart, zEnd)
	}

	for i := 0; i < numWorkers; i++ {
		res := <-resultChan
		if res.err != nil {
			return nil, fmt.Errorf("worker %d failed: %v", res.worker, res.err)
		}
	}

	out.SetName(src.Name())
	return out, nil
}

// outputVolume allocates the result volume: reference layout on axes 0-2,
// source layout on any trailing axes, reference transform throughout.
func outputVolume(src *volume.Volume, ref volume.Geometry) (*volume.Volume, error) {
	dims := []int{ref.Size(0), ref.Size(1), ref.Size(2)}
	voxSizes := []float64{ref.VoxSize(0), ref.VoxSize(1), ref.VoxSize(2)}
	for n := 3; n < src.Ndim(); n++ {
		dims = append(dims, src.Size(n))
		voxSizes = append(voxSizes, src.VoxSize(n))
	}

	grid, err := volume.NewGrid(dims, voxSizes, ref.Transform())
	if err != nil {
		return nil, fmt.Errorf("failed to build output grid: %v", err)
	}
	return volume.NewVolume(grid), nil
}

// fillBand raster-scans the view over out's voxels for z in [zStart, zEnd),
// covering every combination of trailing-axis indices.
func fillBand(out *volume.Volume, view *reslice.Reslicer, zStart, zEnd int) {
	extra := make([]int, out.Ndim()-3)
	idx := make([]int, out.Ndim())

	for {
		for n, e := range extra {
			view.SetIndex(n+3, e)
			idx[n+3] = e
		}

		for z := zStart; z < zEnd; z++ {
			view.SetIndex(2, z)
			idx[2] = z
			for y := 0; y < out.Size(1); y++ {
				view.SetIndex(1, y)
				idx[1] = y
				for x := 0; x < out.Size(0); x++ {
					view.SetIndex(0, x)
					idx[0] = x
					out.Data[out.Offset(idx...)] = view.Value()
				}
			}
		}

		if !advance(extra, out) {
			return
		}
	}
}

// advance steps the trailing-axis odometer; it returns false once all
// combinations have been visited.
func advance(extra []int, out *volume.Volume) bool {
	for n := 0; n < len(extra); n++ {
		extra[n]++
		if extra[n] < out.Size(n+3) {
			return true
		}
		extra[n] = 0
	}
	return false
}
