package images

import (
	"math"
	"runtime"
	"sync"
)

// ResampleFilter defines the resampling algorithm used for image scaling.
type ResampleFilter int

const (
	// NearestNeighborFilter uses block interpolation (fastest, lowest quality).
	NearestNeighborFilter ResampleFilter = iota
	// BilinearFilter uses linear interpolation (fast, good quality).
	BilinearFilter
	// BicubicFilter uses Catmull-Rom cubic interpolation (slower, better quality).
	BicubicFilter
)

// String returns the name of the filter.
func (f ResampleFilter) String() string {
	switch f {
	case NearestNeighborFilter:
		return "nearest"
	case BilinearFilter:
		return "bilinear"
	case BicubicFilter:
		return "bicubic"
	default:
		return "unknown"
	}
}

// kernel represents a resampling kernel function.
type kernel struct {
	// Support is the radius of the kernel in source pixels.
	Support float64
	// At evaluates the kernel at distance x.
	At func(x float64) float64
}

// kernels maps each filter type to its kernel function.
var kernels = map[ResampleFilter]kernel{
	NearestNeighborFilter: {
		Support: 0.5,
		At: func(x float64) float64 {
			// Half-open box so that exactly one source pixel wins at a boundary.
			if x >= -0.5 && x < 0.5 {
				return 1.0
			}
			return 0.0
		},
	},
	BilinearFilter: {
		Support: 1.0,
		At: func(x float64) float64 {
			x = math.Abs(x)
			if x < 1.0 {
				return 1.0 - x
			}
			return 0.0
		},
	},
	BicubicFilter: {
		Support: 2.0,
		At: func(x float64) float64 {
			// Catmull-Rom (B=0, C=0.5).
			x = math.Abs(x)
			if x < 1.0 {
				return (1.5*x-2.5)*x*x + 1.0
			}
			if x < 2.0 {
				return ((-0.5*x+2.5)*x-4.0)*x + 2.0
			}
			return 0.0
		},
	},
}

// Contribution represents a single source sample's contribution to an output sample.
type Contribution struct {
	// pixel is the source pixel index.
	pixel int
	// weight is the normalized contribution weight.
	weight float32
}

// contributions pre-computes the normalized source weights of every output index
// along one axis.
//
// Arguments:
// - srcSize: The number of source samples on the axis.
// - dstSize: The number of output samples on the axis.
// - filter: The resampling filter.
//
// Returns:
// - One weight list per output index.
func contributions(srcSize, dstSize int, filter ResampleFilter) [][]Contribution {
	k, ok := kernels[filter]
	if !ok {
		k = kernels[BilinearFilter]
	}

	scale := float64(srcSize) / float64(dstSize)
	// When downsampling, the filter support is widened to avoid aliasing.
	filterScale := math.Max(scale, 1.0)
	support := k.Support * filterScale

	out := make([][]Contribution, dstSize)
	for i := 0; i < dstSize; i++ {
		center := (float64(i)+0.5)*scale - 0.5

		left := int(math.Floor(center - support))
		right := int(math.Ceil(center + support))

		var weights []Contribution
		var sum float64
		for s := left; s <= right; s++ {
			w := k.At((float64(s) - center) / filterScale)
			if w == 0 {
				continue
			}
			// Clamp-to-edge sampling.
			p := s
			if p < 0 {
				p = 0
			} else if p >= srcSize {
				p = srcSize - 1
			}
			weights = append(weights, Contribution{pixel: p, weight: float32(w)})
			sum += w
		}

		if len(weights) == 0 {
			p := int(math.Round(center))
			if p < 0 {
				p = 0
			} else if p >= srcSize {
				p = srcSize - 1
			}
			weights = []Contribution{{pixel: p, weight: 1}}
			sum = 1
		}

		// Normalize weights so that brightness is preserved.
		for j := range weights {
			weights[j].weight = float32(float64(weights[j].weight) / sum)
		}
		out[i] = weights
	}
	return out
}

// Clamp restricts a value to the specified range [min, max].
//
// Arguments:
// - value: The value to Clamp.
// - min: Minimum allowed value.
// - max: Maximum allowed value.
//
// Returns:
// - The clamped value within [min, max].
//
// @example
// clamped := Clamp(300.5, 0, 255) // Returns 255
func Clamp(value, min, max float64) float64 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}

// Parallel executes fn across runtime.NumCPU() goroutines.
//
// Arguments:
// - dataSize: The size of the data to process.
// - fn: Function to execute for each partition (receives start and end indices).
//
// @example
//
//	Parallel(height, func(start, end int) {
//	    for y := start; y < end; y++ {
//	        // Process row y
//	    }
//	})
func Parallel(dataSize int, fn func(partStart, partEnd int)) {
	ParallelN(runtime.NumCPU(), dataSize, fn)
}

// ParallelN executes fn across at most workers goroutines, splitting [0, dataSize)
// into contiguous partitions. Small inputs are processed serially.
//
// Arguments:
// - workers: The maximum number of goroutines.
// - dataSize: The size of the data to process.
// - fn: Function to execute for each partition.
func ParallelN(workers, dataSize int, fn func(partStart, partEnd int)) {
	if dataSize <= 0 {
		return
	}
	if workers < 1 {
		workers = 1
	}

	// Parallel processing overhead isn't worth it for tiny inputs.
	if workers == 1 || dataSize < workers*2 {
		fn(0, dataSize)
		return
	}

	partSize := dataSize / workers

	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		partStart := i * partSize
		partEnd := partStart + partSize
		// Last partition gets any remaining data.
		if i == workers-1 {
			partEnd = dataSize
		}
		go func(start, end int) {
			defer wg.Done()
			fn(start, end)
		}(partStart, partEnd)
	}
	wg.Wait()
}
