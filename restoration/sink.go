package restoration

import "github.com/nvr-ai/go-restore/images"

// Sink receives run notifications. Calls are made from the run goroutine.
// A run delivers at most one of Finished or Failed, and neither when cancelled.
type Sink interface {
	Progress(percent int)
	Finished(result *images.Image)
	Failed(err error)
}

// SinkFuncs adapts plain functions to a Sink. Nil fields are ignored.
type SinkFuncs struct {
	OnProgress func(percent int)
	OnFinished func(result *images.Image)
	OnFailed   func(err error)
}

// Progress calls OnProgress.
func (s SinkFuncs) Progress(percent int) {
	if s.OnProgress != nil {
		s.OnProgress(percent)
	}
}

// Finished calls OnFinished.
func (s SinkFuncs) Finished(result *images.Image) {
	if s.OnFinished != nil {
		s.OnFinished(result)
	}
}

// Failed calls OnFailed.
func (s SinkFuncs) Failed(err error) {
	if s.OnFailed != nil {
		s.OnFailed(err)
	}
}

// EventKind identifies an Event.
type EventKind int

const (
	// EventProgress reports a new global percentage in Event.Progress.
	EventProgress EventKind = iota
	// EventFinished carries the result in Event.Image.
	EventFinished
	// EventFailed carries the failure in Event.Err.
	EventFailed
)

// Event is a run notification delivered by a ChannelSink.
type Event struct {
	Kind     EventKind
	Progress int
	Image    *images.Image
	Err      error
}

// ChannelSink forwards notifications as Events. Sends block, so the channel must
// be drained or buffered.
type ChannelSink chan Event

// Progress sends an EventProgress carrying percent.
func (c ChannelSink) Progress(percent int) {
	c <- Event{Kind: EventProgress, Progress: percent}
}

// Finished sends an EventFinished carrying the result image.
func (c ChannelSink) Finished(result *images.Image) {
	c <- Event{Kind: EventFinished, Image: result}
}

// Failed sends an EventFailed carrying err.
func (c ChannelSink) Failed(err error) {
	c <- Event{Kind: EventFailed, Err: err}
}

type nopSink struct{}

func (nopSink) Progress(int)            {}
func (nopSink) Finished(*images.Image) {}
func (nopSink) Failed(error)            {}
