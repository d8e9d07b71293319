package restoration

import (
	"context"
	"math"
	"runtime"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/nvr-ai/go-restore/images"
	"github.com/nvr-ai/go-restore/images/kernels"
)

// DefaultPollInterval is how often a running pass is sampled for progress.
const DefaultPollInterval = 100 * time.Millisecond

// Option configures an Engine.
type Option func(*Engine)

// WithSink sets the receiver of progress and completion notifications.
func WithSink(s Sink) Option {
	return func(e *Engine) {
		if s != nil {
			e.sink = s
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithRecorder sets the collector of run timings.
func WithRecorder(r Recorder) Option {
	return func(e *Engine) {
		if r != nil {
			e.recorder = r
		}
	}
}

// WithWorkers forces the size of the diffusion worker pool.
func WithWorkers(n int) Option {
	return func(e *Engine) { e.workers = n }
}

// WithProcessors overrides the processor count used to size the worker pool.
func WithProcessors(n int) Option {
	return func(e *Engine) { e.processors = n }
}

// WithPollInterval sets how often progress is sampled while a pass runs.
func WithPollInterval(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.pollInterval = d
		}
	}
}

// Engine applies one restoration run to a private copy of a source image.
//
// Run executes synchronously on the caller's goroutine. Start executes the same
// run on a background goroutine; Cancel stops it and Wait collects the outcome.
type Engine struct {
	src      *images.Image
	settings Settings
	mode     Mode

	sink         Sink
	logger       *zap.Logger
	recorder     Recorder
	workers      int
	processors   int
	pollInterval time.Duration
	bufs         *kernels.Pool
	startPass    func(src *images.Planes, update []bool, prm passParams, bufs *kernels.Pool) *pass

	mu      sync.Mutex
	cancel  context.CancelFunc
	running bool
	done    chan struct{}
	result  *images.Image
	err     error
}

// NewEngine creates an engine for src. The image data is copied, so the caller may
// keep using src. The settings value is copied as well.
//
// Arguments:
//   - src: The source image.
//   - settings: The diffusion parameters.
//   - mode: What the run does; nil means Restore.
//   - opts: Optional configuration.
//
// Returns:
//   - *Engine: The configured engine.
func NewEngine(src *images.Image, settings Settings, mode Mode, opts ...Option) *Engine {
	if mode == nil {
		mode = Restore{}
	}
	e := &Engine{
		src:          src.Copy(),
		settings:     settings,
		mode:         mode,
		sink:         nopSink{},
		logger:       zap.NewNop(),
		recorder:     nopRecorder{},
		pollInterval: DefaultPollInterval,
		bufs:         &kernels.Pool{},
		startPass:    startPass,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Settings returns the settings of the engine.
func (e *Engine) Settings() Settings {
	return e.settings
}

// Mode returns the run mode of the engine.
func (e *Engine) Mode() Mode {
	return e.mode
}

// Workers returns the diffusion worker pool size used by a run.
func (e *Engine) Workers() int {
	if e.workers > 0 {
		return e.workers
	}
	procs := e.processors
	if procs <= 0 {
		procs = runtime.NumCPU()
	}
	return WorkerCount(procs)
}

// Run executes the run on the calling goroutine.
//
// Arguments:
//   - ctx: Cancelling ctx stops the run; ErrCancelled is then returned and the
//     sink receives no terminal notification.
//
// Returns:
//   - *images.Image: The result, with the target dimensions for resize modes.
//   - error: A precondition error, ErrComputationFailed, ErrCancelled, or
//     ErrAlreadyRunning while another Run or Start is in progress.
func (e *Engine) Run(ctx context.Context) (*images.Image, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return nil, ErrAlreadyRunning
	}
	e.running = true
	e.cancel = cancel
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.running = false
		e.mu.Unlock()
	}()
	return e.run(ctx)
}

// Start executes the run on a new goroutine and returns immediately. It fails
// with ErrAlreadyRunning while another Run or Start is in progress.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running {
		return ErrAlreadyRunning
	}

	ctx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	e.running = true
	e.done = make(chan struct{})
	e.result, e.err = nil, nil

	go func(done chan struct{}) {
		defer close(done)
		defer cancel()
		res, err := e.run(ctx)

		e.mu.Lock()
		e.result, e.err = res, err
		e.running = false
		e.mu.Unlock()
	}(e.done)
	return nil
}

// Cancel requests the current run to stop. A pass in flight is interrupted.
// It is safe to call at any time and more than once.
func (e *Engine) Cancel() {
	e.mu.Lock()
	cancel := e.cancel
	e.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Wait blocks until the run launched by Start has terminated and returns its outcome.
func (e *Engine) Wait() (*images.Image, error) {
	e.mu.Lock()
	done := e.done
	e.mu.Unlock()
	if done == nil {
		return nil, ErrNotStarted
	}
	<-done

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.result, e.err
}

func (e *Engine) run(ctx context.Context) (*images.Image, error) {
	start := time.Now()
	log := e.logger.With(
		zap.Stringer("mode", e.mode),
		zap.Int("width", e.src.Width),
		zap.Int("height", e.src.Height),
		zap.Bool("sixteen_bit", e.src.SixteenBit),
	)
	log.Debug("restoration started")

	img, err := e.execute(ctx, log)
	e.recorder.RecordOperation("restoration.run", time.Since(start))

	switch {
	case errors.Is(err, ErrCancelled):
		log.Info("restoration cancelled", zap.Duration("elapsed", time.Since(start)))
		return nil, err
	case err != nil:
		log.Error("restoration failed", zap.Error(err))
		e.sink.Failed(err)
		return nil, err
	}

	log.Info("restoration finished",
		zap.Int("out_width", img.Width),
		zap.Int("out_height", img.Height),
		zap.Duration("elapsed", time.Since(start)),
	)
	e.sink.Finished(img)
	return img, nil
}

// validate checks the preconditions of the selected mode.
func (e *Engine) validate() error {
	if e.src.IsNull() {
		return ErrInvalidImage
	}
	if err := e.src.Validate(); err != nil {
		return errors.Wrap(ErrInvalidImage, err.Error())
	}
	switch m := e.mode.(type) {
	case InPainting:
		if m.Mask.IsNull() {
			return ErrMissingMask
		}
		if m.Mask.Validate() != nil || m.Mask.Width != e.src.Width || m.Mask.Height != e.src.Height {
			return errors.Wrapf(ErrInvalidMask, "mask %dx%d, image %dx%d",
				m.Mask.Width, m.Mask.Height, e.src.Width, e.src.Height)
		}
	case Resize:
		if m.Width <= 0 || m.Height <= 0 {
			return errors.Wrapf(ErrInvalidTarget, "%dx%d", m.Width, m.Height)
		}
	case SimpleResize:
		if m.Width <= 0 || m.Height <= 0 {
			return errors.Wrapf(ErrInvalidTarget, "%dx%d", m.Width, m.Height)
		}
	}
	return nil
}

func (e *Engine) execute(ctx context.Context, log *zap.Logger) (out *images.Image, err error) {
	if err := e.validate(); err != nil {
		return nil, err
	}

	defer func() {
		if r := recover(); r != nil {
			out, err = nil, computationFailed(errors.Errorf("panic: %v", r))
		}
	}()

	t := time.Now()
	work := toPlanes(e.src)
	e.recorder.RecordOperation("restoration.unpack", time.Since(t))

	workers := e.Workers()
	prm := newPassParams(e.settings, e.src.SixteenBit, workers)
	log.Debug("diffusion configured",
		zap.Int("workers", workers),
		zap.Uint("iterations", e.settings.Iterations),
		zap.Int("angles", len(prm.angles())),
	)

	switch m := e.mode.(type) {
	case Restore:
		work, err = e.iterate(ctx, work, nil, prm, log)
	case InPainting:
		update := maskUpdate(m.Mask)
		fillUnknown(work, update)
		work, err = e.iterate(ctx, work, update, prm, log)
	case Resize:
		var update []bool
		work, update = resizeEstimate(work, m.Width, m.Height)
		work, err = e.iterate(ctx, work, update, prm, log)
	case SimpleResize:
		work = simpleResize(work, m.Width, m.Height)
	default:
		return nil, errors.Errorf("restoration: unsupported mode %T", e.mode)
	}
	if err != nil {
		return nil, err
	}
	if ctx.Err() != nil {
		return nil, ErrCancelled
	}

	t = time.Now()
	out = fromPlanes(work, e.src.SixteenBit, e.src.HasAlpha)
	e.recorder.RecordOperation("restoration.pack", time.Since(t))
	return out, nil
}

// iterate runs the configured number of diffusion passes, reporting the global
// progress of all passes.
func (e *Engine) iterate(ctx context.Context, work *images.Planes, update []bool, prm passParams, log *zap.Logger) (*images.Planes, error) {
	iterations := e.settings.Iterations
	rep := &progressReporter{sink: e.sink}

	for iter := uint(0); iter < iterations; iter++ {
		if ctx.Err() != nil {
			return nil, ErrCancelled
		}

		t := time.Now()
		ps := e.startPass(work, update, prm, e.bufs)
		if err := e.await(ctx, ps, log, func(step float32) { rep.report(iter, iterations, step) }); err != nil {
			return nil, err
		}
		work = ps.Result()
		rep.report(iter, iterations, 100)

		e.recorder.RecordOperation("restoration.pass", time.Since(t))
		log.Debug("diffusion pass done", zap.Uint("iteration", iter+1), zap.Duration("elapsed", time.Since(t)))
	}
	e.recorder.RecordMetric("restoration.iterations", float64(iterations))
	return work, nil
}

// await blocks until ps terminates, sampling its progress every poll interval.
// On cancellation the pass is stopped and drained before ErrCancelled is returned.
func (e *Engine) await(ctx context.Context, ps *pass, log *zap.Logger, progress func(step float32)) error {
	ticker := time.NewTicker(e.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ps.Done():
			switch err := ps.Err(); {
			case err == nil:
				return nil
			case errors.Is(err, errPassStopped):
				return ErrCancelled
			default:
				return computationFailed(err)
			}
		case <-ticker.C:
			progress(ps.Progress())
		case <-ctx.Done():
			ps.Stop()
			<-ps.Done()
			log.Debug("diffusion pass stopped", zap.Float32("progress", ps.Progress()))
			return ErrCancelled
		}
	}
}

// progressReporter turns per-pass progress into a global percentage and forwards
// it only when the integer value increases.
type progressReporter struct {
	sink Sink
	last int
}

func (r *progressReporter) report(iter, iterations uint, step float32) {
	if iterations == 0 {
		return
	}
	p := int(math.Floor((float64(iter)*100 + float64(step)) / float64(iterations)))
	p = max(0, min(p, 100))
	if p > r.last {
		r.last = p
		r.sink.Progress(p)
	}
}
