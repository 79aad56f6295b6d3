package mjpeg

import (
	"math"
	"time"
)

// ErrorAction defines the action to take when a recoverable protocol violation occurs.
type ErrorAction int

const (
	// Disconnect ends the session.
	Disconnect ErrorAction = iota
	// Continue drops the offending header and resumes seeking the next frame.
	Continue
)

// Default configuration values.
const (
	defaultBufferSize  = 64 * 1024
	defaultReadSize    = 32 * 1024
	defaultDialTimeout = 10 * time.Second

	// defaultMaxFrameSize bounds a declared frame when MaxFrameSizeOption is not set.
	defaultMaxFrameSize = 64 << 20
	// maxFrameSizeLimit keeps every size derived from a frame length, including
	// the doubled assembly target, within int.
	maxFrameSizeLimit = math.MaxInt / 4
)

// options holds the configuration shared by Transport and Extractor.
type options struct {
	logger  Logger
	framing Framing

	// onError decides what happens after a recoverable protocol violation.
	onError func(error) ErrorAction

	bufferSize   int           // initial assembly buffer capacity
	readSize     int           // bytes requested per socket read
	maxFrameSize int           // largest accepted frame, always positive after checkOptions
	dialTimeout  time.Duration // bound on a single connect attempt
}

// Option is a function that configures Transport and Extractor options.
type Option func(*options)

func newOptions(opt []Option) options {
	var opts options
	for _, o := range opt {
		o(&opts)
	}
	checkOptions(&opts)
	return opts
}

// checkOptions sets default values for unset or invalid options.
func checkOptions(opts *options) {
	if opts.logger == nil {
		opts.logger = defaultLogger()
	}

	if opts.bufferSize <= 0 {
		opts.bufferSize = defaultBufferSize
	}

	if opts.readSize <= 0 {
		opts.readSize = defaultReadSize
	}

	if opts.maxFrameSize <= 0 {
		opts.maxFrameSize = defaultMaxFrameSize
	}
	if opts.maxFrameSize > maxFrameSizeLimit {
		opts.maxFrameSize = maxFrameSizeLimit
	}

	if opts.dialTimeout <= 0 {
		opts.dialTimeout = defaultDialTimeout
	}

	if opts.onError == nil {
		opts.onError = func(error) ErrorAction { return Disconnect }
	}
}

// LoggerOption returns an Option that sets the logger.
// If not set, slog.Default() is used.
func LoggerOption(logger Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// FramingOption returns an Option that selects how frames are delimited.
// The default, FramingAuto, picks the mode from the first marker in the stream.
func FramingOption(framing Framing) Option {
	return func(o *options) {
		o.framing = framing
	}
}

// BufferSizeOption returns an Option that sets the initial capacity of the assembly buffer.
// The buffer grows past it on demand.
func BufferSizeOption(size int) Option {
	return func(o *options) {
		o.bufferSize = size
	}
}

// ReadSizeOption returns an Option that sets how many bytes are requested per socket read.
func ReadSizeOption(size int) Option {
	return func(o *options) {
		o.readSize = size
	}
}

// MaxFrameSizeOption returns an Option that caps the length of a single frame.
// Zero or a negative size selects the 64 MiB default.
func MaxFrameSizeOption(size int) Option {
	return func(o *options) {
		o.maxFrameSize = size
	}
}

// DialTimeoutOption returns an Option that bounds each connect attempt.
func DialTimeoutOption(timeout time.Duration) Option {
	return func(o *options) {
		o.dialTimeout = timeout
	}
}

// OnErrorOption returns an Option that sets the protocol error callback.
// Return Disconnect to end the session, or Continue to skip the malformed header.
func OnErrorOption(cb func(error) ErrorAction) Option {
	return func(o *options) {
		o.onError = cb
	}
}
