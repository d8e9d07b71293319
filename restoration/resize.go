package restoration

import "github.com/nvr-ai/go-restore/images"

// resizeEstimate builds the initial estimate of a reconstruction resize with a
// bicubic filter. When both axes are enlarged, the target pixel nearest to every
// source pixel is anchored to the exact source value and excluded from diffusion.
// The returned update mask is nil when nothing is anchored.
func resizeEstimate(src *images.Planes, width, height int) (*images.Planes, []bool) {
	est := images.ResizePlanes(src, width, height, images.BicubicFilter)
	if width < src.Width || height < src.Height {
		return est, nil
	}

	update := make([]bool, width*height)
	for i := range update {
		update[i] = true
	}
	for sy := 0; sy < src.Height; sy++ {
		ty := min(int((float64(sy)+0.5)*float64(height)/float64(src.Height)), height-1)
		for sx := 0; sx < src.Width; sx++ {
			tx := min(int((float64(sx)+0.5)*float64(width)/float64(src.Width)), width-1)
			update[ty*width+tx] = false
			for c := 0; c < src.Channels; c++ {
				est.Set(tx, ty, c, src.At(sx, sy, c))
			}
		}
	}
	return est, update
}

// simpleResize halves the planes while both sides stay above twice the target,
// then resamples once to the exact target with a linear filter.
func simpleResize(src *images.Planes, width, height int) *images.Planes {
	p := src
	for p.Width > 2*width && p.Height > 2*height {
		p = images.HalveXY(p)
	}
	return images.ResizePlanes(p, width, height, images.BilinearFilter)
}
