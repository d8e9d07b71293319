package kernels

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGaussianBlurSigmaZeroReturnsCopy(t *testing.T) {
	src := []float32{1, 2, 3, 4, 5, 6}
	dst := make([]float32, len(src))
	GaussianBlur(dst, src, 3, 2, Options{Sigma: 0})
	assert.Equal(t, src, dst)
}

func TestGaussianBlurPreservesConstantPlane(t *testing.T) {
	const w, h = 17, 9
	src := make([]float32, w*h)
	for i := range src {
		src[i] = 42
	}
	for _, edge := range []EdgeMode{EdgeClamp, EdgeMirror, EdgeWrap} {
		dst := make([]float32, w*h)
		GaussianBlur(dst, src, w, h, Options{Sigma: 1.5, Edge: edge, Workers: 4})
		for i, v := range dst {
			require.InDelta(t, 42, v, 1e-3, "edge=%d index=%d", edge, i)
		}
	}
}

func TestGaussianBlurSpreadsImpulse(t *testing.T) {
	const w, h = 9, 9
	src := make([]float32, w*h)
	src[4*w+4] = 100
	dst := make([]float32, w*h)
	GaussianBlur(dst, src, w, h, Options{Sigma: 1})

	assert.Less(t, dst[4*w+4], float32(100))
	assert.Greater(t, dst[4*w+5], float32(0))
	assert.InDelta(t, dst[4*w+3], dst[4*w+5], 1e-5, "kernel must be symmetric")

	var sum float32
	for _, v := range dst {
		sum += v
	}
	assert.InDelta(t, 100, sum, 0.5, "energy is preserved away from edges")
}

func TestGaussianBlurParallelConsistency(t *testing.T) {
	const w, h = 64, 48
	src := make([]float32, w*h)
	for i := range src {
		src[i] = float32((i * 7919) % 255)
	}
	serial := make([]float32, w*h)
	parallel := make([]float32, w*h)
	pool := &Pool{}
	GaussianBlur(serial, src, w, h, Options{Sigma: 2, Precision: 2})
	GaussianBlur(parallel, src, w, h, Options{Sigma: 2, Precision: 2, Workers: 8, Pool: pool})
	assert.Equal(t, serial, parallel)
}

func TestGaussianKernelNormalized(t *testing.T) {
	k := GaussianKernel(1.1, Radius(1.1, 2))
	require.Len(t, k, 2*3+1)
	var sum float32
	for _, v := range k {
		sum += v
	}
	assert.InDelta(t, 1, sum, 1e-6)
}

func TestMapCoord(t *testing.T) {
	tests := []struct {
		i, n int
		mode EdgeMode
		want int
	}{
		{-1, 5, EdgeClamp, 0},
		{7, 5, EdgeClamp, 4},
		{-1, 5, EdgeMirror, 0},
		{-2, 5, EdgeMirror, 1},
		{5, 5, EdgeMirror, 4},
		{-1, 5, EdgeWrap, 4},
		{6, 5, EdgeWrap, 1},
		{3, 1, EdgeMirror, 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, mapCoord(tt.i, tt.n, tt.mode), "i=%d n=%d mode=%d", tt.i, tt.n, tt.mode)
	}
}

func TestPoolReusesBuffers(t *testing.T) {
	var nilPool *Pool
	assert.Len(t, nilPool.Get(10), 10)
	nilPool.Put(make([]float32, 3))

	p := &Pool{}
	buf := p.Get(32)
	require.Len(t, buf, 32)
	p.Put(buf)
	assert.Len(t, p.Get(16), 16)
}
