package restoration

import "github.com/nvr-ai/go-restore/images"

// maskUpdate returns the pixels to synthesize: those whose mask colour is black.
// The mask alpha channel is ignored.
func maskUpdate(mask *images.Image) []bool {
	update := make([]bool, mask.Width*mask.Height)
	for y := 0; y < mask.Height; y++ {
		for x := 0; x < mask.Width; x++ {
			b, g, r, _ := mask.At(x, y)
			update[y*mask.Width+x] = b == 0 && g == 0 && r == 0
		}
	}
	return update
}

// fillUnknown seeds the pixels to synthesize with an onion-peel estimate: layer by
// layer, every unknown pixel touching a known one takes the mean of its known
// 8-neighbours. Without any known pixel the buffer is left unchanged.
func fillUnknown(p *images.Planes, update []bool) {
	w, h := p.Width, p.Height
	known := make([]bool, len(update))
	var pending []int
	for i, u := range update {
		known[i] = !u
		if u {
			pending = append(pending, i)
		}
	}

	type sample struct {
		index int
		value [channels]float32
	}
	for len(pending) > 0 {
		var layer []sample
		var rest []int
		for _, i := range pending {
			x, y := i%w, i/w
			var sum [channels]float32
			n := 0
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					nx, ny := x+dx, y+dy
					if (dx == 0 && dy == 0) || nx < 0 || ny < 0 || nx >= w || ny >= h || !known[ny*w+nx] {
						continue
					}
					for c := 0; c < channels; c++ {
						sum[c] += p.At(nx, ny, c)
					}
					n++
				}
			}
			if n == 0 {
				rest = append(rest, i)
				continue
			}
			s := sample{index: i}
			for c := range sum {
				s.value[c] = sum[c] / float32(n)
			}
			layer = append(layer, s)
		}
		if len(layer) == 0 {
			return
		}
		for _, s := range layer {
			for c := 0; c < channels; c++ {
				p.Set(s.index%w, s.index/w, c, s.value[c])
			}
			known[s.index] = true
		}
		pending = rest
	}
}
