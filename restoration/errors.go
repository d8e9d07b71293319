package restoration

import "github.com/pkg/errors"

var (
	// ErrMissingMask is returned when InPainting runs without a mask.
	ErrMissingMask = errors.New("restoration: inpainting mask is missing")
	// ErrInvalidMask is returned when the mask does not cover the source image.
	ErrInvalidMask = errors.New("restoration: inpainting mask does not match the image")
	// ErrInvalidTarget is returned when a resize target is not strictly positive.
	ErrInvalidTarget = errors.New("restoration: invalid target size")
	// ErrInvalidImage is returned when the source image is null or malformed.
	ErrInvalidImage = errors.New("restoration: invalid source image")
	// ErrComputationFailed wraps any failure raised while computing a run.
	ErrComputationFailed = errors.New("restoration: computation failed")
	// ErrCancelled is returned when a run stops because it was cancelled.
	// It is not a failure and is never reported to a Sink.
	ErrCancelled = errors.New("restoration: cancelled")
	// ErrAlreadyRunning is returned by Start when a run is in flight.
	ErrAlreadyRunning = errors.New("restoration: engine is already running")
)

// IsPrecondition reports whether err was raised before any computation started.
func IsPrecondition(err error) bool {
	return errors.Is(err, ErrMissingMask) ||
		errors.Is(err, ErrInvalidMask) ||
		errors.Is(err, ErrInvalidTarget) ||
		errors.Is(err, ErrInvalidImage)
}

// ErrNotStarted is returned by Wait when Start was never called.
var ErrNotStarted = errors.New("restoration: engine was not started")

// computationError ties a solver failure to ErrComputationFailed while keeping
// the underlying cause reachable through errors.Is and errors.As.
type computationError struct {
	cause error
}

func (e *computationError) Error() string {
	return ErrComputationFailed.Error() + ": " + e.cause.Error()
}

func (e *computationError) Unwrap() []error {
	return []error{ErrComputationFailed, e.cause}
}

func computationFailed(cause error) error {
	return &computationError{cause: cause}
}
