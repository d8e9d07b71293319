package restoration

import (
	"image"

	"github.com/chewxy/math32"
	"github.com/nvr-ai/go-restore/images"
	"github.com/nvr-ai/go-restore/images/kernels"
)

// passParams is the full parameter tuple of one diffusion pass.
type passParams struct {
	amplitude  float32
	sharpness  float32
	anisotropy float32
	alpha      float32
	sigma      float32
	gfact      float32
	dl         float32
	da         float32
	gaussPrec  float32
	interp     Interpolation
	fastApprox bool
	tile       int
	btile      int
	workers    int
}

// newPassParams derives pass parameters from settings. Non-positive integration
// steps fall back to the restoration defaults, since they would never terminate.
func newPassParams(s Settings, sixteenBit bool, workers int) passParams {
	def := RestorationDefaults()
	p := passParams{
		amplitude:  s.Amplitude,
		sharpness:  s.Sharpness,
		anisotropy: s.Anisotropy,
		alpha:      s.Alpha,
		sigma:      s.Sigma,
		gfact:      1,
		dl:         s.Dl,
		da:         s.Da,
		gaussPrec:  s.GaussPrec,
		interp:     s.Interpolation,
		fastApprox: s.FastApprox,
		tile:       s.Tile,
		btile:      s.BTile,
		workers:    workers,
	}
	if sixteenBit {
		p.gfact = 1.0 / 256.0
	}
	if p.dl <= 0 {
		p.dl = def.Dl
	}
	if p.da <= 0 {
		p.da = def.Da
	}
	if p.amplitude < 0 {
		p.amplitude = 0
	}
	if p.btile < 0 {
		p.btile = 0
	}
	return p
}

// angles returns the integration directions in degrees: (360 mod da)/2, then every
// da degrees below 360.
func (p passParams) angles() []float32 {
	var out []float32
	for theta := math32.Mod(360, p.da) / 2; theta < 360; theta += p.da {
		out = append(out, theta)
	}
	return out
}

// region is one unit of tiled work: the interior is written back, the outer
// rectangle (interior plus border) is what the solver reads.
type region struct {
	interior image.Rectangle
	outer    image.Rectangle
}

// tileRegions partitions a w x h image into tiles with the given overlap.
func tileRegions(w, h, tile, border int) []region {
	bounds := image.Rect(0, 0, w, h)
	if tile <= 0 || (tile >= w && tile >= h) {
		return []region{{interior: bounds, outer: bounds}}
	}
	var out []region
	for y0 := 0; y0 < h; y0 += tile {
		for x0 := 0; x0 < w; x0 += tile {
			in := image.Rect(x0, y0, min(x0+tile, w), min(y0+tile, h))
			out = append(out, region{
				interior: in,
				outer:    in.Inset(-border).Intersect(bounds),
			})
		}
	}
	return out
}

// field is a set of same-sized float planes addressed row-major.
type field struct {
	w, h   int
	planes [][]float32
}

func newField(w, h, n int) *field {
	f := &field{w: w, h: h, planes: make([][]float32, n)}
	for i := range f.planes {
		f.planes[i] = make([]float32, w*h)
	}
	return f
}

// crop copies rectangle r of planes src into a new field.
func crop(src *images.Planes, r image.Rectangle) *field {
	f := newField(r.Dx(), r.Dy(), src.Channels)
	for c := 0; c < src.Channels; c++ {
		in := src.Plane(c)
		for y := 0; y < f.h; y++ {
			off := (r.Min.Y+y)*src.Width + r.Min.X
			copy(f.planes[c][y*f.w:(y+1)*f.w], in[off:off+f.w])
		}
	}
	return f
}

// solver runs the anisotropic smoothing of one region.
type solver struct {
	prm  passParams
	pool *workerPool
	bufs *kernels.Pool
}

// tensorField computes the diffusion tensor (a, b, c) of every pixel of img:
// a smoothed structure tensor is eigen-decomposed and its eigenvalues mapped to
// diffusion strengths along and across the local edge direction.
func (s *solver) tensorField(img *field) (*field, error) {
	w, h := img.w, img.h
	n := len(img.planes)

	blurred := make([][]float32, n)
	for c := range blurred {
		blurred[c] = s.bufs.Get(w * h)
	}
	defer func() {
		for _, b := range blurred {
			s.bufs.Put(b)
		}
	}()
	if err := s.pool.parallel(n, func(start, end int) {
		for c := start; c < end; c++ {
			kernels.GaussianBlur(blurred[c], img.planes[c], w, h, kernels.Options{Sigma: s.prm.alpha, Pool: s.bufs})
		}
	}); err != nil {
		return nil, err
	}

	g := newField(w, h, 3)
	gf := s.prm.gfact
	if err := s.pool.parallel(h, func(start, end int) {
		for y := start; y < end; y++ {
			yp, yn := max(y-1, 0), min(y+1, h-1)
			for x := 0; x < w; x++ {
				xp, xn := max(x-1, 0), min(x+1, w-1)
				var a, b, c float32
				for ch := 0; ch < n; ch++ {
					p := blurred[ch]
					ix := 0.5 * gf * (p[y*w+xn] - p[y*w+xp])
					iy := 0.5 * gf * (p[yn*w+x] - p[yp*w+x])
					a += ix * ix
					b += ix * iy
					c += iy * iy
				}
				i := y*w + x
				g.planes[0][i], g.planes[1][i], g.planes[2][i] = a, b, c
			}
		}
	}); err != nil {
		return nil, err
	}

	t := newField(w, h, 3)
	if err := s.pool.parallel(3, func(start, end int) {
		for c := start; c < end; c++ {
			kernels.GaussianBlur(t.planes[c], g.planes[c], w, h, kernels.Options{Sigma: s.prm.sigma, Pool: s.bufs})
		}
	}); err != nil {
		return nil, err
	}

	power1 := 0.5 * s.prm.sharpness
	power2 := power1 / (1e-7 + 1 - s.prm.anisotropy)
	err := s.pool.parallel(h, func(start, end int) {
		for i := start * w; i < end*w; i++ {
			a, b, c := t.planes[0][i], t.planes[1][i], t.planes[2][i]
			l1, l2, ux, uy := eigen(a, b, c)
			vx, vy := -uy, ux
			n1 := math32.Pow(1+l1+l2, -power1)
			n2 := math32.Pow(1+l1+l2, -power2)
			t.planes[0][i] = n1*ux*ux + n2*vx*vx
			t.planes[1][i] = n1*ux*uy + n2*vx*vy
			t.planes[2][i] = n1*uy*uy + n2*vy*vy
		}
	})
	return t, err
}

// eigen decomposes the symmetric matrix [a b; b c]. It returns the smaller and the
// larger eigenvalue (both clamped at zero) and the unit eigenvector of the smaller.
func eigen(a, b, c float32) (lmin, lmax, ux, uy float32) {
	half := 0.5 * (a - c)
	disc := math32.Sqrt(half*half + b*b)
	mean := 0.5 * (a + c)
	lmax = max(mean+disc, 0)
	lmin = max(mean-disc, 0)

	// Eigenvector of the larger eigenvalue, then rotate by 90 degrees.
	var ex, ey float32
	switch {
	case b != 0:
		ex, ey = mean+disc-c, b
	case a >= c:
		ex, ey = 1, 0
	default:
		ex, ey = 0, 1
	}
	if n := math32.Sqrt(ex*ex + ey*ey); n > 0 {
		ex, ey = ex/n, ey/n
	} else {
		ex, ey = 1, 0
	}
	return lmin, lmax, -ey, ex
}

// vectorField fills (u, v, n) for direction theta: the diffusion tensor applied to
// the direction, rescaled so that one step has length dl.
func (s *solver) vectorField(t, wf *field, theta float32) error {
	rad := theta * math32.Pi / 180
	dx, dy := math32.Cos(rad), math32.Sin(rad)
	w := t.w
	return s.pool.parallel(t.h, func(start, end int) {
		for i := start * w; i < end*w; i++ {
			a, b, c := t.planes[0][i], t.planes[1][i], t.planes[2][i]
			u := a*dx + b*dy
			v := b*dx + c*dy
			n := math32.Sqrt(1e-5 + u*u + v*v)
			dln := s.prm.dl / n
			wf.planes[0][i] = u * dln
			wf.planes[1][i] = v * dln
			wf.planes[2][i] = n
		}
	})
}

// convolve integrates the image along the streamlines of wf and adds the
// normalized result of every pixel selected by mask to acc.
func (s *solver) convolve(img, wf, acc *field, mask []bool, stopped func() bool) error {
	w, h := img.w, img.h
	sqrt2amplitude := math32.Sqrt(2 * s.prm.amplitude)
	dl := s.prm.dl
	xMax, yMax := float32(w-1), float32(h-1)
	U, V, N := wf.planes[0], wf.planes[1], wf.planes[2]
	nc := len(img.planes)

	return s.pool.parallel(h, func(start, end int) {
		var val [channels]float32
		for y := start; y < end; y++ {
			if stopped() {
				return
			}
			for x := 0; x < w; x++ {
				i := y*w + x
				if mask != nil && !mask[i] {
					continue
				}
				fsigma := N[i] * sqrt2amplitude
				fsigma2 := 2 * fsigma * fsigma
				length := s.prm.gaussPrec * fsigma

				for c := range val {
					val[c] = 0
				}
				var S float32
				X, Y := float32(x), float32(y)
				pu, pv := U[i], V[i]

				for l := float32(0); l < length && X >= 0 && X <= xMax && Y >= 0 && Y <= yMax; l += dl {
					coef := float32(1)
					if !s.prm.fastApprox {
						coef = math32.Exp(-l * l / fsigma2)
					}

					var u, v float32
					switch s.prm.interp {
					case Linear:
						u, v = bilinear(U, w, h, X, Y), bilinear(V, w, h, X, Y)
						for c := 0; c < nc; c++ {
							val[c] += coef * bilinear(img.planes[c], w, h, X, Y)
						}
					case RungeKutta:
						u0 := 0.5 * bilinear(U, w, h, X, Y)
						v0 := 0.5 * bilinear(V, w, h, X, Y)
						u, v = bilinear(U, w, h, X+u0, Y+v0), bilinear(V, w, h, X+u0, Y+v0)
						for c := 0; c < nc; c++ {
							val[c] += coef * bilinear(img.planes[c], w, h, X, Y)
						}
					default:
						cx, cy := int(X+0.5), int(Y+0.5)
						j := cy*w + cx
						u, v = U[j], V[j]
						for c := 0; c < nc; c++ {
							val[c] += coef * img.planes[c][j]
						}
					}
					S += coef

					// Keep a consistent orientation along the streamline.
					if pu*u+pv*v < 0 {
						u, v = -u, -v
					}
					X += u
					Y += v
					pu, pv = u, v
				}

				for c := 0; c < nc; c++ {
					if S > 0 {
						acc.planes[c][i] += val[c] / S
					} else {
						acc.planes[c][i] += img.planes[c][i]
					}
				}
			}
		}
	})
}

// bilinear samples plane p at (x, y), clamping the position to the plane.
func bilinear(p []float32, w, h int, x, y float32) float32 {
	x = max(0, min(x, float32(w-1)))
	y = max(0, min(y, float32(h-1)))
	x0, y0 := int(x), int(y)
	x1, y1 := min(x0+1, w-1), min(y0+1, h-1)
	fx, fy := x-float32(x0), y-float32(y0)
	top := p[y0*w+x0] + fx*(p[y0*w+x1]-p[y0*w+x0])
	bot := p[y1*w+x0] + fx*(p[y1*w+x1]-p[y1*w+x0])
	return top + fy*(bot-top)
}
