package images

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rampPlanes(w, h, channels int) *Planes {
	p := NewPlanes(w, h, channels)
	for c := 0; c < channels; c++ {
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				p.Set(x, y, c, float32(c*100+x+y*w))
			}
		}
	}
	return p
}

func TestPlanesLayout(t *testing.T) {
	p := NewPlanes(3, 2, 2)
	p.Set(2, 1, 1, 5)
	assert.Equal(t, float32(5), p.Data[6+5])
	assert.Equal(t, float32(5), p.Plane(1)[5])
	assert.Len(t, p.Plane(0), 6)

	c := p.Clone()
	c.Set(2, 1, 1, 9)
	assert.Equal(t, float32(5), p.At(2, 1, 1))
}

func TestResizePlanesConstant(t *testing.T) {
	src := NewPlanes(13, 9, 2)
	for i := range src.Data {
		src.Data[i] = 42
	}
	for _, filter := range []ResampleFilter{NearestNeighborFilter, BilinearFilter, BicubicFilter} {
		for _, size := range [][2]int{{26, 18}, {5, 4}, {13, 30}, {1, 1}} {
			dst := ResizePlanes(src, size[0], size[1], filter)
			require.Equal(t, size[0], dst.Width)
			require.Equal(t, size[1], dst.Height)
			for _, v := range dst.Data {
				require.InDelta(t, 42, v, 1e-3, "%s %v", filter, size)
			}
		}
	}
}

func TestResizePlanesNearestUpscale(t *testing.T) {
	src := NewPlanes(2, 1, 1)
	src.Data[0], src.Data[1] = 1, 9
	dst := ResizePlanes(src, 4, 1, NearestNeighborFilter)
	assert.Equal(t, []float32{1, 1, 9, 9}, dst.Data)
}

func TestResizePlanesSameSizeCopies(t *testing.T) {
	src := rampPlanes(4, 3, 1)
	dst := ResizePlanes(src, 4, 3, BicubicFilter)
	assert.Equal(t, src.Data, dst.Data)
	dst.Data[0] = -1
	assert.NotEqual(t, src.Data[0], dst.Data[0])

	assert.Empty(t, ResizePlanes(src, 0, 3, BicubicFilter).Data)
}

func TestHalveXY(t *testing.T) {
	src := NewPlanes(4, 2, 1)
	copy(src.Data, []float32{
		1, 3, 10, 20,
		5, 7, 30, 40,
	})
	dst := HalveXY(src)
	assert.Equal(t, 2, dst.Width)
	assert.Equal(t, 1, dst.Height)
	assert.Equal(t, []float32{4, 25}, dst.Data)

	odd := HalveXY(rampPlanes(1, 1, 3))
	assert.Equal(t, 1, odd.Width)
	assert.Equal(t, 1, odd.Height)
}

func TestContributionsNormalized(t *testing.T) {
	for _, filter := range []ResampleFilter{NearestNeighborFilter, BilinearFilter, BicubicFilter} {
		for _, sizes := range [][2]int{{10, 3}, {3, 10}, {7, 7}} {
			for i, ws := range contributions(sizes[0], sizes[1], filter) {
				var sum float32
				for _, c := range ws {
					assert.True(t, c.pixel >= 0 && c.pixel < sizes[0])
					sum += c.weight
				}
				assert.InDelta(t, 1, sum, 1e-5, "%s %v index %d", filter, sizes, i)
			}
		}
	}
}

func BenchmarkResizePlanesBicubic(b *testing.B) {
	src := rampPlanes(640, 480, 4)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		ResizePlanes(src, 1280, 960, BicubicFilter)
	}
}
