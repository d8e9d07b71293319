package restoration

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/nvr-ai/go-restore/images"
	"github.com/nvr-ai/go-restore/images/kernels"
)

// gradientImage builds a deterministic test image with a diagonal ramp and an edge.
func gradientImage(w, h int, sixteenBit bool) *images.Image {
	img := images.NewImage(w, h, sixteenBit, false)
	scale := 1
	if sixteenBit {
		scale = 257
	}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := (x*3 + y*5) % 256
			if x > w/2 {
				v = 255 - v/4
			}
			img.Set(x, y, uint16(v*scale), uint16((v/2)*scale), uint16((255-v)*scale), uint16(255*scale))
		}
	}
	return img
}

func quickSettings() Settings {
	s := RestorationDefaults()
	s.Iterations = 2
	s.Tile = 16
	s.BTile = 2
	s.Da = 90
	return s
}

// recordingSink captures every notification it receives.
type recordingSink struct {
	mu       sync.Mutex
	progress []int
	finished []*images.Image
	failed   []error
}

func (s *recordingSink) Progress(p int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.progress = append(s.progress, p)
}

func (s *recordingSink) Finished(img *images.Image) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finished = append(s.finished, img)
}

func (s *recordingSink) Failed(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failed = append(s.failed, err)
}

func TestRestoreKeepsDimensionsAndDepth(t *testing.T) {
	for _, sixteen := range []bool{false, true} {
		src := gradientImage(40, 30, sixteen)
		sink := &recordingSink{}
		e := NewEngine(src, quickSettings(), Restore{}, WithSink(sink), WithWorkers(3))

		out, err := e.Run(context.Background())
		require.NoError(t, err)
		assert.Equal(t, src.Width, out.Width)
		assert.Equal(t, src.Height, out.Height)
		assert.Equal(t, sixteen, out.SixteenBit)
		assert.Equal(t, src.HasAlpha, out.HasAlpha)
		assert.Len(t, out.Pix, src.NumBytes())

		require.Len(t, sink.finished, 1)
		assert.Same(t, out, sink.finished[0])
		assert.Empty(t, sink.failed)
	}
}

func TestRestoreZeroAmplitudeKeepsImage(t *testing.T) {
	src := gradientImage(24, 24, false)
	s := quickSettings()
	s.Amplitude = 0

	out, err := NewEngine(src, s, Restore{}).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, src.Pix, out.Pix)
}

func TestZeroIterationsRoundTrip(t *testing.T) {
	for _, sixteen := range []bool{false, true} {
		src := gradientImage(17, 9, sixteen)
		s := quickSettings()
		s.Iterations = 0

		out, err := NewEngine(src, s, Restore{}).Run(context.Background())
		require.NoError(t, err)
		assert.Equal(t, src.Pix, out.Pix, "sixteen=%v", sixteen)
	}
}

func TestRestoreConstantImageIsStable(t *testing.T) {
	src := images.NewImage(20, 20, false, true)
	for y := 0; y < 20; y++ {
		for x := 0; x < 20; x++ {
			src.Set(x, y, 90, 120, 200, 255)
		}
	}
	for _, interp := range []Interpolation{NearestNeighbor, Linear, RungeKutta} {
		s := quickSettings()
		s.Interpolation = interp
		s.FastApprox = false

		out, err := NewEngine(src, s, Restore{}).Run(context.Background())
		require.NoError(t, err, interp.String())
		assert.Equal(t, src.Pix, out.Pix, interp.String())
	}
}

func TestSourceIsNotModified(t *testing.T) {
	src := gradientImage(20, 20, false)
	before := src.Copy()

	_, err := NewEngine(src, quickSettings(), Restore{}).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, before.Pix, src.Pix)
}

func TestResizeProducesTargetDimensions(t *testing.T) {
	cases := []struct {
		name string
		mode Mode
		w, h int
	}{
		{"enlarge", Resize{Width: 50, Height: 40}, 50, 40},
		{"shrink", Resize{Width: 10, Height: 7}, 10, 7},
		{"mixed", Resize{Width: 40, Height: 10}, 40, 10},
		{"simple enlarge", SimpleResize{Width: 45, Height: 33}, 45, 33},
		{"simple shrink", SimpleResize{Width: 5, Height: 3}, 5, 3},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			src := gradientImage(25, 20, true)
			s := ResizeDefaults()
			s.Iterations = 1
			s.Da = 90

			out, err := NewEngine(src, s, tc.mode).Run(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tc.w, out.Width)
			assert.Equal(t, tc.h, out.Height)
			assert.True(t, out.SixteenBit)
			assert.Len(t, out.Pix, tc.w*tc.h*8)
		})
	}
}

func TestSameSizeResizeKeepsImage(t *testing.T) {
	src := gradientImage(16, 12, false)
	out, err := NewEngine(src, ResizeDefaults(), Resize{Width: 16, Height: 12}).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, src.Pix, out.Pix)
}

func TestSimpleResizeHalvesUniformImage(t *testing.T) {
	src := images.NewImage(100, 100, false, false)
	for y := 0; y < 100; y++ {
		for x := 0; x < 100; x++ {
			src.Set(x, y, 10, 200, 60, 255)
		}
	}
	sink := &recordingSink{}

	out, err := NewEngine(src, ResizeDefaults(), SimpleResize{Width: 50, Height: 50}, WithSink(sink)).
		Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 50, out.Width)
	assert.Equal(t, 50, out.Height)
	b, g, r, _ := out.At(25, 25)
	assert.Equal(t, []uint16{10, 200, 60}, []uint16{b, g, r})
	assert.Empty(t, sink.progress, "a simple resize runs no diffusion pass")
	assert.Len(t, sink.finished, 1)
}

func TestPreconditionFailures(t *testing.T) {
	src := gradientImage(10, 10, false)
	cases := []struct {
		name string
		src  *images.Image
		mode Mode
		want error
	}{
		{"nil mask", src, InPainting{}, ErrMissingMask},
		{"mask size", src, InPainting{Mask: images.NewImage(5, 5, false, false)}, ErrInvalidMask},
		{"zero resize", src, Resize{Width: 0, Height: 10}, ErrInvalidTarget},
		{"negative simple resize", src, SimpleResize{Width: 10, Height: -1}, ErrInvalidTarget},
		{"null image", images.NewImage(0, 0, false, false), Restore{}, ErrInvalidImage},
		{"short buffer", &images.Image{Width: 4, Height: 4, Pix: make([]byte, 3)}, Restore{}, ErrInvalidImage},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sink := &recordingSink{}
			out, err := NewEngine(tc.src, quickSettings(), tc.mode, WithSink(sink)).Run(context.Background())
			assert.Nil(t, out)
			require.ErrorIs(t, err, tc.want)
			assert.True(t, IsPrecondition(err))
			assert.Empty(t, sink.finished)
			require.Len(t, sink.failed, 1)
			assert.ErrorIs(t, sink.failed[0], tc.want)
		})
	}
}

func TestInPaintingOnlyChangesMaskedPixels(t *testing.T) {
	src := gradientImage(24, 24, false)
	mask := images.NewImage(24, 24, false, false)
	for y := 0; y < 24; y++ {
		for x := 0; x < 24; x++ {
			v := uint16(255)
			if x >= 8 && x < 14 && y >= 9 && y < 15 {
				v = 0
			}
			mask.Set(x, y, v, v, v, 255)
		}
	}
	s := InpaintingDefaults()
	s.Iterations = 3
	s.Da = 60

	out, err := NewEngine(src, s, InPainting{Mask: mask}).Run(context.Background())
	require.NoError(t, err)
	for y := 0; y < 24; y++ {
		for x := 0; x < 24; x++ {
			inside := x >= 8 && x < 14 && y >= 9 && y < 15
			if inside {
				continue
			}
			b0, g0, r0, a0 := src.At(x, y)
			b1, g1, r1, a1 := out.At(x, y)
			require.Equal(t, [4]uint16{b0, g0, r0, a0}, [4]uint16{b1, g1, r1, a1}, "pixel %d,%d", x, y)
		}
	}
}

func TestProgressIsMonotonicAndEndsAt100(t *testing.T) {
	src := gradientImage(64, 48, false)
	s := quickSettings()
	s.Iterations = 4
	sink := &recordingSink{}

	_, err := NewEngine(src, s, Restore{}, WithSink(sink), WithPollInterval(time.Millisecond)).
		Run(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, sink.progress)
	for i := 1; i < len(sink.progress); i++ {
		assert.Greater(t, sink.progress[i], sink.progress[i-1])
	}
	assert.Equal(t, 100, sink.progress[len(sink.progress)-1])
	for _, p := range sink.progress {
		assert.True(t, p >= 0 && p <= 100)
	}
}

func TestCancelledRunReportsNothing(t *testing.T) {
	src := gradientImage(32, 32, false)
	s := quickSettings()
	s.Iterations = 50
	sink := &recordingSink{}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	out, err := NewEngine(src, s, Restore{}, WithSink(sink)).Run(ctx)
	assert.Nil(t, out)
	require.ErrorIs(t, err, ErrCancelled)
	assert.Empty(t, sink.finished)
	assert.Empty(t, sink.failed)
}

func TestStartCancelWait(t *testing.T) {
	src := gradientImage(96, 96, false)
	s := InpaintingDefaults()
	s.Iterations = 200
	sink := &recordingSink{}

	e := NewEngine(src, s, Restore{}, WithSink(sink), WithPollInterval(time.Millisecond))
	require.NoError(t, e.Start(context.Background()))
	e.Cancel()
	e.Cancel()

	out, err := e.Wait()
	assert.Nil(t, out)
	require.ErrorIs(t, err, ErrCancelled)
	assert.Empty(t, sink.finished)
	assert.Empty(t, sink.failed)
}

// firstProgressSink records notifications and closes started on the first
// progress event.
type firstProgressSink struct {
	recordingSink
	once    sync.Once
	started chan struct{}
}

func (s *firstProgressSink) Progress(p int) {
	s.recordingSink.Progress(p)
	s.once.Do(func() { close(s.started) })
}

func TestCancelStopsRunningPass(t *testing.T) {
	src := gradientImage(256, 256, false)
	s := RestorationDefaults()
	s.Iterations = 1
	s.Tile = 16
	s.BTile = 2

	core, logs := observer.New(zap.DebugLevel)
	sink := &firstProgressSink{started: make(chan struct{})}
	e := NewEngine(src, s, Restore{},
		WithSink(sink),
		WithLogger(zap.New(core)),
		WithWorkers(2),
		WithPollInterval(time.Millisecond),
	)
	require.NoError(t, e.Start(context.Background()))

	select {
	case <-sink.started:
	case <-time.After(30 * time.Second):
		t.Fatal("no progress reported")
	}
	e.Cancel()

	waited := make(chan error, 1)
	go func() {
		_, err := e.Wait()
		waited <- err
	}()
	select {
	case err := <-waited:
		require.ErrorIs(t, err, ErrCancelled)
	case <-time.After(10 * time.Second):
		t.Fatal("Wait did not return after Cancel")
	}

	stopped := logs.FilterMessage("diffusion pass stopped").All()
	require.Len(t, stopped, 1)
	progress, ok := stopped[0].ContextMap()["progress"].(float32)
	require.True(t, ok)
	assert.Less(t, progress, float32(100), "the pass must be interrupted, not drained")

	sink.mu.Lock()
	defer sink.mu.Unlock()
	assert.Empty(t, sink.finished)
	assert.Empty(t, sink.failed)
}

func TestPassErrorReportsFailure(t *testing.T) {
	src := gradientImage(24, 24, false)
	mask := images.NewImage(24, 24, false, false)
	sink := &recordingSink{}

	e := NewEngine(src, quickSettings(), InPainting{Mask: mask}, WithSink(sink))
	// A truncated update set makes the pass index out of range.
	e.startPass = func(src *images.Planes, update []bool, prm passParams, bufs *kernels.Pool) *pass {
		return startPass(src, update[:1], prm, bufs)
	}

	out, err := e.Run(context.Background())
	assert.Nil(t, out)
	require.ErrorIs(t, err, ErrComputationFailed)
	assert.False(t, IsPrecondition(err))

	require.Len(t, sink.failed, 1)
	assert.ErrorIs(t, sink.failed[0], ErrComputationFailed)
	assert.Empty(t, sink.finished)
}

func TestRunWhileStartedIsRejected(t *testing.T) {
	gate := make(chan struct{})
	sink := SinkFuncs{OnFinished: func(*images.Image) { <-gate }}
	e := NewEngine(gradientImage(8, 8, false), quickSettings(), Restore{}, WithSink(sink))

	require.NoError(t, e.Start(context.Background()))
	_, err := e.Run(context.Background())
	assert.ErrorIs(t, err, ErrAlreadyRunning)
	close(gate)

	_, err = e.Wait()
	require.NoError(t, err)

	out, err := e.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 8, out.Width)
}

func TestStartTwice(t *testing.T) {
	src := gradientImage(8, 8, false)
	gate := make(chan struct{})
	sink := SinkFuncs{OnFinished: func(*images.Image) { <-gate }}

	e := NewEngine(src, quickSettings(), Restore{}, WithSink(sink))
	require.NoError(t, e.Start(context.Background()))
	assert.ErrorIs(t, e.Start(context.Background()), ErrAlreadyRunning)
	close(gate)

	out, err := e.Wait()
	require.NoError(t, err)
	assert.Equal(t, 8, out.Width)
}

func TestWaitWithoutStart(t *testing.T) {
	_, err := NewEngine(gradientImage(4, 4, false), quickSettings(), nil).Wait()
	assert.ErrorIs(t, err, ErrNotStarted)
}

func TestNilModeRestores(t *testing.T) {
	e := NewEngine(gradientImage(4, 4, false), quickSettings(), nil)
	assert.Equal(t, Restore{}, e.Mode())
}

func TestChannelSink(t *testing.T) {
	events := make(ChannelSink, 256)
	src := gradientImage(16, 16, false)

	_, err := NewEngine(src, quickSettings(), Restore{}, WithSink(events)).Run(context.Background())
	require.NoError(t, err)
	close(events)

	var last Event
	for ev := range events {
		last = ev
	}
	assert.Equal(t, EventFinished, last.Kind)
	assert.NotNil(t, last.Image)
}

type fakeRecorder struct {
	mu         sync.Mutex
	operations map[string]int
	metrics    map[string]float64
}

func (r *fakeRecorder) RecordOperation(name string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.operations[name]++
}

func (r *fakeRecorder) RecordMetric(name string, v float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.metrics[name] = v
}

func TestRecorderReceivesTimings(t *testing.T) {
	rec := &fakeRecorder{operations: map[string]int{}, metrics: map[string]float64{}}
	s := quickSettings()
	s.Iterations = 3

	_, err := NewEngine(gradientImage(16, 16, false), s, Restore{}, WithRecorder(rec)).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, rec.operations["restoration.pass"])
	assert.Equal(t, 1, rec.operations["restoration.run"])
	assert.Equal(t, float64(3), rec.metrics["restoration.iterations"])
}

func TestEngineWorkers(t *testing.T) {
	src := gradientImage(4, 4, false)
	assert.Equal(t, 2, NewEngine(src, quickSettings(), nil, WithProcessors(1)).Workers())
	assert.Equal(t, 8, NewEngine(src, quickSettings(), nil, WithProcessors(4)).Workers())
	assert.Equal(t, 5, NewEngine(src, quickSettings(), nil, WithProcessors(4), WithWorkers(5)).Workers())
}

func TestProgressReporter(t *testing.T) {
	var got []int
	r := &progressReporter{sink: SinkFuncs{OnProgress: func(p int) { got = append(got, p) }}}
	r.report(0, 4, 40)
	r.report(0, 4, 40)
	r.report(0, 4, 100)
	r.report(1, 4, 0)
	r.report(3, 4, 100)
	r.report(3, 4, 100)
	assert.Equal(t, []int{10, 25, 100}, got)
}

func BenchmarkRestore(b *testing.B) {
	src := gradientImage(256, 256, false)
	s := RestorationDefaults()
	for i := 0; i < b.N; i++ {
		if _, err := NewEngine(src, s, Restore{}).Run(context.Background()); err != nil {
			b.Fatal(err)
		}
	}
}
