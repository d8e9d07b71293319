package images

// Planes is a planar float buffer. Channel c of pixel (x, y) lives at
// Data[c*Width*Height + y*Width + x].
type Planes struct {
	Width    int
	Height   int
	Channels int
	Data     []float32
}

// NewPlanes allocates a zeroed planar buffer.
func NewPlanes(width, height, channels int) *Planes {
	return &Planes{
		Width:    width,
		Height:   height,
		Channels: channels,
		Data:     make([]float32, width*height*channels),
	}
}

// Plane returns the samples of channel c.
func (p *Planes) Plane(c int) []float32 {
	n := p.Width * p.Height
	return p.Data[c*n : (c+1)*n : (c+1)*n]
}

// At returns channel c of the pixel at (x, y).
func (p *Planes) At(x, y, c int) float32 {
	return p.Data[c*p.Width*p.Height+y*p.Width+x]
}

// Set writes channel c of the pixel at (x, y).
func (p *Planes) Set(x, y, c int, v float32) {
	p.Data[c*p.Width*p.Height+y*p.Width+x] = v
}

// Clone returns a deep copy.
func (p *Planes) Clone() *Planes {
	c := *p
	c.Data = append([]float32(nil), p.Data...)
	return &c
}

// ResizePlanes resamples every channel to width x height with a separable filter:
// horizontal pass first, then vertical.
//
// Arguments:
// - src: The source planes.
// - width: Target width in pixels.
// - height: Target height in pixels.
// - filter: The resampling filter.
//
// Returns:
// - The resized planes. A copy is returned when the size does not change.
//
// @example
// estimate := ResizePlanes(work, 1024, 768, BicubicFilter)
func ResizePlanes(src *Planes, width, height int, filter ResampleFilter) *Planes {
	if width <= 0 || height <= 0 {
		return NewPlanes(0, 0, src.Channels)
	}
	if src.Width == width && src.Height == height {
		return src.Clone()
	}

	intermediate := NewPlanes(width, src.Height, src.Channels)
	xContrib := contributions(src.Width, width, filter)
	for c := 0; c < src.Channels; c++ {
		in := src.Plane(c)
		out := intermediate.Plane(c)
		Parallel(src.Height, func(start, end int) {
			for y := start; y < end; y++ {
				row := in[y*src.Width : (y+1)*src.Width]
				for x := 0; x < width; x++ {
					var sum float32
					for _, ct := range xContrib[x] {
						sum += row[ct.pixel] * ct.weight
					}
					out[y*width+x] = sum
				}
			}
		})
	}

	dst := NewPlanes(width, height, src.Channels)
	yContrib := contributions(src.Height, height, filter)
	for c := 0; c < src.Channels; c++ {
		in := intermediate.Plane(c)
		out := dst.Plane(c)
		Parallel(width, func(start, end int) {
			for x := start; x < end; x++ {
				for y := 0; y < height; y++ {
					var sum float32
					for _, ct := range yContrib[y] {
						sum += in[ct.pixel*width+x] * ct.weight
					}
					out[y*width+x] = sum
				}
			}
		})
	}
	return dst
}

// HalveXY halves both dimensions by averaging 2x2 blocks. An odd trailing row or
// column is folded into the last output row or column.
func HalveXY(src *Planes) *Planes {
	w, h := src.Width/2, src.Height/2
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	dst := NewPlanes(w, h, src.Channels)
	for c := 0; c < src.Channels; c++ {
		in := src.Plane(c)
		out := dst.Plane(c)
		Parallel(h, func(start, end int) {
			for y := start; y < end; y++ {
				y0 := 2 * y
				y1 := min(y0+1, src.Height-1)
				for x := 0; x < w; x++ {
					x0 := 2 * x
					x1 := min(x0+1, src.Width-1)
					out[y*w+x] = 0.25 * (in[y0*src.Width+x0] + in[y0*src.Width+x1] +
						in[y1*src.Width+x0] + in[y1*src.Width+x1])
				}
			}
		})
	}
	return dst
}
