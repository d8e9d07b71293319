package restoration

import (
	"encoding/binary"

	"github.com/nvr-ai/go-restore/images"
)

// channels is the number of working channels: blue, green, red and alpha.
// Alpha is always diffused like a colour channel.
const channels = 4

// toPlanes unpacks interleaved BGRA samples into four float planes.
func toPlanes(img *images.Image) *images.Planes {
	p := images.NewPlanes(img.Width, img.Height, channels)
	n := img.Width * img.Height
	b, g, r, a := p.Plane(0), p.Plane(1), p.Plane(2), p.Plane(3)
	pix := img.Pix

	if !img.SixteenBit {
		images.Parallel(img.Height, func(start, end int) {
			for i := start * img.Width; i < end*img.Width && i < n; i++ {
				s := pix[i*4 : i*4+4 : i*4+4]
				b[i] = float32(s[0])
				g[i] = float32(s[1])
				r[i] = float32(s[2])
				a[i] = float32(s[3])
			}
		})
		return p
	}

	images.Parallel(img.Height, func(start, end int) {
		for i := start * img.Width; i < end*img.Width && i < n; i++ {
			s := pix[i*8 : i*8+8 : i*8+8]
			b[i] = float32(binary.LittleEndian.Uint16(s[0:]))
			g[i] = float32(binary.LittleEndian.Uint16(s[2:]))
			r[i] = float32(binary.LittleEndian.Uint16(s[4:]))
			a[i] = float32(binary.LittleEndian.Uint16(s[6:]))
		}
	})
	return p
}

// fromPlanes packs four float planes into a new image of the planes' dimensions.
// Samples are rounded and clamped to the range of the requested bit depth.
func fromPlanes(p *images.Planes, sixteenBit, hasAlpha bool) *images.Image {
	img := images.NewImage(p.Width, p.Height, sixteenBit, hasAlpha)
	n := p.Width * p.Height
	b, g, r, a := p.Plane(0), p.Plane(1), p.Plane(2), p.Plane(3)
	pix := img.Pix

	if !sixteenBit {
		images.Parallel(p.Height, func(start, end int) {
			for i := start * p.Width; i < end*p.Width && i < n; i++ {
				d := pix[i*4 : i*4+4 : i*4+4]
				d[0] = to8(b[i])
				d[1] = to8(g[i])
				d[2] = to8(r[i])
				d[3] = to8(a[i])
			}
		})
		return img
	}

	images.Parallel(p.Height, func(start, end int) {
		for i := start * p.Width; i < end*p.Width && i < n; i++ {
			d := pix[i*8 : i*8+8 : i*8+8]
			binary.LittleEndian.PutUint16(d[0:], to16(b[i]))
			binary.LittleEndian.PutUint16(d[2:], to16(g[i]))
			binary.LittleEndian.PutUint16(d[4:], to16(r[i]))
			binary.LittleEndian.PutUint16(d[6:], to16(a[i]))
		}
	})
	return img
}

func to8(v float32) uint8 {
	if v != v {
		return 0
	}
	return uint8(images.Clamp(float64(v)+0.5, 0, 255))
}

func to16(v float32) uint16 {
	if v != v {
		return 0
	}
	return uint16(images.Clamp(float64(v)+0.5, 0, 65535))
}
