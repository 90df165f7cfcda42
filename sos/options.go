package sos

import (
	"io"
	"time"

	"github.com/sirupsen/logrus"
)

// Recorder receives engine telemetry. metrics.Collector implements it.
type Recorder interface {
	ObserveOperation(op string, err error)
	ObserveBroadcast(observers int)
	SetObservers(n int)
	SetCases(n int)
}

type nopRecorder struct{}

func (nopRecorder) ObserveOperation(string, error) {}
func (nopRecorder) ObserveBroadcast(int)           {}
func (nopRecorder) SetObservers(int)               {}
func (nopRecorder) SetCases(int)                   {}

type options struct {
	logger   *logrus.Logger
	clock    func() time.Time
	recorder Recorder
}

// Option configures a Service.
type Option func(*options)

// WithLogger sets the logger used for best-effort failures and lifecycle messages.
func WithLogger(logger *logrus.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithClock overrides the wall clock used for createdAt, updatedAt and event timestamps.
func WithClock(clock func() time.Time) Option {
	return func(o *options) {
		if clock != nil {
			o.clock = clock
		}
	}
}

// WithRecorder attaches a telemetry sink.
func WithRecorder(r Recorder) Option {
	return func(o *options) {
		if r != nil {
			o.recorder = r
		}
	}
}

func defaultOptions() options {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return options{
		logger:   logger,
		clock:    time.Now,
		recorder: nopRecorder{},
	}
}
