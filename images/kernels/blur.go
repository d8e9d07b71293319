package kernels

import (
	"sync"

	"github.com/chewxy/math32"
)

// EdgeMode defines how sampling behaves outside the plane bounds.
// - Clamp: repeats edge samples.
// - Mirror: reflects coordinates.
// - Wrap: tiles the plane.
type EdgeMode int

const (
	EdgeClamp EdgeMode = iota
	EdgeMirror
	EdgeWrap
)

// Options configures the blur call.
type Options struct {
	Sigma     float32  // Standard deviation in pixels. Values <= 0 copy the input.
	Precision float32  // Kernel radius in multiples of Sigma. Defaults to 3.
	Edge      EdgeMode // Edge sampling mode.
	Workers   int      // Row/column parallelism; <= 1 runs serially.
	Pool      *Pool    // Optional scratch buffer pool.
}

// Pool lets callers reuse plane-sized scratch buffers across solver iterations.
type Pool struct {
	bufs sync.Pool // *[]float32
}

// Get returns a buffer of exactly n samples. Contents are undefined.
func (p *Pool) Get(n int) []float32 {
	if p == nil {
		return make([]float32, n)
	}
	if v := p.bufs.Get(); v != nil {
		buf := *(v.(*[]float32))
		if cap(buf) >= n {
			return buf[:n]
		}
	}
	return make([]float32, n)
}

// Put hands a buffer back for reuse.
func (p *Pool) Put(buf []float32) {
	if p == nil || buf == nil {
		return
	}
	p.bufs.Put(&buf)
}

// GaussianKernel returns a normalized 1D Gaussian of the given radius.
func GaussianKernel(sigma float32, radius int) []float32 {
	k := make([]float32, 2*radius+1)
	denom := 2 * sigma * sigma
	var sum float32
	for i := range k {
		x := float32(i - radius)
		k[i] = math32.Exp(-(x * x) / denom)
		sum += k[i]
	}
	for i := range k {
		k[i] /= sum
	}
	return k
}

// Radius returns the kernel radius used for sigma at the given precision.
func Radius(sigma, precision float32) int {
	if precision <= 0 {
		precision = 3
	}
	return int(math32.Ceil(sigma * precision))
}

// GaussianBlur applies a separable Gaussian blur to a w x h plane.
// dst and src may not alias. Both must hold w*h samples.
func GaussianBlur(dst, src []float32, w, h int, opt Options) {
	if opt.Sigma <= 0 || w == 0 || h == 0 {
		copy(dst, src)
		return
	}
	r := Radius(opt.Sigma, opt.Precision)
	k := GaussianKernel(opt.Sigma, r)

	tmp := opt.Pool.Get(w * h)
	blurHoriz(src, tmp, w, h, k, opt.Edge, opt.Workers)
	blurVert(tmp, dst, w, h, k, opt.Edge, opt.Workers)
	opt.Pool.Put(tmp)
}

// blurHoriz convolves every row of src with k into dst.
func blurHoriz(src, dst []float32, w, h int, k []float32, edge EdgeMode, workers int) {
	r := len(k) / 2
	rowTask := func(y int) {
		row := src[y*w : (y+1)*w]
		out := dst[y*w : (y+1)*w]
		for x := 0; x < w; x++ {
			var sum float32
			// Interior fast path skips coordinate mapping.
			if x-r >= 0 && x+r < w {
				win := row[x-r : x+r+1]
				for i, kv := range k {
					sum += win[i] * kv
				}
			} else {
				for i, kv := range k {
					sum += row[mapCoord(x+i-r, w, edge)] * kv
				}
			}
			out[x] = sum
		}
	}
	forEach(h, workers, rowTask)
}

// blurVert mirrors blurHoriz along columns.
func blurVert(src, dst []float32, w, h int, k []float32, edge EdgeMode, workers int) {
	r := len(k) / 2
	colTask := func(x int) {
		for y := 0; y < h; y++ {
			var sum float32
			for i, kv := range k {
				yy := y + i - r
				if yy < 0 || yy >= h {
					yy = mapCoord(yy, h, edge)
				}
				sum += src[yy*w+x] * kv
			}
			dst[y*w+x] = sum
		}
	}
	forEach(w, workers, colTask)
}

// forEach runs task for every index in [0, n), chunked across workers goroutines.
func forEach(n, workers int, task func(i int)) {
	if workers <= 1 || n < 4 {
		for i := 0; i < n; i++ {
			task(i)
		}
		return
	}
	chunk := chooseChunk(n)
	if per := (n + workers - 1) / workers; per < chunk {
		chunk = per
	}
	var wg sync.WaitGroup
	for start := 0; start < n; start += chunk {
		end := min(start+chunk, n)
		wg.Add(1)
		go func(s, e int) {
			defer wg.Done()
			for i := s; i < e; i++ {
				task(i)
			}
		}(start, end)
	}
	wg.Wait()
}

// mapCoord maps an index i to [0, n) according to edge mode.
// For Mirror: reflect indices ... -2,-1,0,1,2, ... -> 1,0,0,1,2, ... (no duplication at edges).
func mapCoord(i, n int, mode EdgeMode) int {
	switch mode {
	case EdgeMirror:
		if n == 1 {
			return 0
		}
		for i < 0 || i >= n {
			if i < 0 {
				i = -i - 1
			} else {
				i = 2*n - i - 1
			}
		}
		return i
	case EdgeWrap:
		if n == 0 {
			return 0
		}
		i %= n
		if i < 0 {
			i += n
		}
		return i
	default:
		if i < 0 {
			return 0
		}
		if i >= n {
			return n - 1
		}
		return i
	}
}

// chooseChunk picks a work chunk size that balances overhead and cache locality.
func chooseChunk(n int) int {
	switch {
	case n >= 2048:
		return 128
	case n >= 512:
		return 64
	default:
		return 32
	}
}
