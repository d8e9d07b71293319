package restoration

import (
	"sync/atomic"

	"github.com/pkg/errors"

	"github.com/nvr-ai/go-restore/images"
	"github.com/nvr-ai/go-restore/images/kernels"
)

// errPassStopped is the internal result of a pass interrupted by Stop.
var errPassStopped = errors.New("diffusion pass stopped")

// pass is one asynchronous diffusion pass over the whole image. It owns its
// worker pool and reports progress as completed units of work.
type pass struct {
	done chan struct{}
	stop atomic.Bool

	total     int64
	completed atomic.Int64

	// Written by the pass goroutine before done is closed.
	result *images.Planes
	err    error
}

// startPass launches a diffusion pass over src and returns immediately.
// update selects the pixels the pass may change; nil selects every pixel.
// src is only read; the result is a new buffer.
func startPass(src *images.Planes, update []bool, prm passParams, bufs *kernels.Pool) *pass {
	regions := tileRegions(src.Width, src.Height, prm.tile, prm.btile)
	angles := prm.angles()

	p := &pass{
		done:  make(chan struct{}),
		total: int64(len(regions) * (len(angles) + 1)),
	}
	go p.run(src, update, prm, bufs, regions, angles)
	return p
}

// Done is closed once the pass has finished, failed or stopped.
func (p *pass) Done() <-chan struct{} {
	return p.done
}

// Progress returns the completion of the pass in percent.
func (p *pass) Progress() float32 {
	if p.total == 0 {
		return 100
	}
	return 100 * float32(p.completed.Load()) / float32(p.total)
}

// Stop asks the workers to abandon the pass as soon as possible.
func (p *pass) Stop() {
	p.stop.Store(true)
}

// Err returns the pass error once Done is closed.
func (p *pass) Err() error {
	return p.err
}

// Result returns the smoothed planes once Done is closed without error.
func (p *pass) Result() *images.Planes {
	return p.result
}

func (p *pass) stopped() bool {
	return p.stop.Load()
}

func (p *pass) run(src *images.Planes, update []bool, prm passParams, bufs *kernels.Pool, regions []region, angles []float32) {
	defer close(p.done)

	pool := newWorkerPool(prm.workers)
	defer pool.close()

	defer func() {
		if r := recover(); r != nil {
			p.err = errors.Errorf("diffusion pass panic: %v", r)
			p.result = nil
		}
	}()

	s := &solver{prm: prm, pool: pool, bufs: bufs}
	out := src.Clone()

	for _, rg := range regions {
		if p.stopped() {
			p.err = errPassStopped
			return
		}
		if err := p.smoothRegion(s, src, out, update, rg, angles); err != nil {
			p.err = err
			return
		}
	}
	p.result = out
}

// smoothRegion smooths one tile of src and writes its interior into out.
func (p *pass) smoothRegion(s *solver, src, out *images.Planes, update []bool, rg region, angles []float32) error {
	img := crop(src, rg.outer)
	w, h := img.w, img.h

	// Pixels of the outer rectangle that this tile is responsible for.
	sel := make([]bool, w*h)
	for y := rg.interior.Min.Y; y < rg.interior.Max.Y; y++ {
		for x := rg.interior.Min.X; x < rg.interior.Max.X; x++ {
			if update == nil || update[y*src.Width+x] {
				sel[(y-rg.outer.Min.Y)*w+(x-rg.outer.Min.X)] = true
			}
		}
	}

	t, err := s.tensorField(img)
	if err != nil {
		return err
	}
	p.completed.Add(1)

	acc := newField(w, h, len(img.planes))
	wf := newField(w, h, 3)
	for _, theta := range angles {
		if p.stopped() {
			return errPassStopped
		}
		if err := s.vectorField(t, wf, theta); err != nil {
			return err
		}
		if err := s.convolve(img, wf, acc, sel, p.stopped); err != nil {
			return err
		}
		p.completed.Add(1)
	}
	if p.stopped() {
		return errPassStopped
	}

	inv := 1 / float32(max(len(angles), 1))
	for c := 0; c < src.Channels; c++ {
		dst := out.Plane(c)
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				i := y*w + x
				if sel[i] {
					dst[(rg.outer.Min.Y+y)*src.Width+rg.outer.Min.X+x] = acc.planes[c][i] * inv
				}
			}
		}
	}
	return nil
}
