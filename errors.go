package mjpeg

import "github.com/pkg/errors"

// Transport errors.
var (
	// ErrAlreadyConnected is returned by Connect while an attempt is pending or established.
	ErrAlreadyConnected = errors.New("transport already connected or connecting")
	// ErrNotConnected is returned when the operation needs an established connection.
	ErrNotConnected = errors.New("transport not connected")
	// ErrStreamInUse is returned when a second consumer asks for the stream of one session.
	ErrStreamInUse = errors.New("stream already taken")
	// ErrDisconnected completes a pending Stream call that was interrupted by Disconnect.
	ErrDisconnected = errors.New("transport disconnected")
	// ErrInvalidEndpoint is returned for an endpoint without address or port.
	ErrInvalidEndpoint = errors.New("invalid endpoint")
)

// Protocol errors.
var (
	// ErrInvalidContentLength is returned when a length field is not a non-negative decimal.
	ErrInvalidContentLength = errors.New("invalid content length")
	// ErrInvalidBoundary is returned when the multipart boundary parameter is empty.
	ErrInvalidBoundary = errors.New("invalid multipart boundary")
	// ErrFrameTooLarge is returned when a declared frame exceeds MaxFrameSizeOption.
	ErrFrameTooLarge = errors.New("frame too large")
	// ErrUnexpectedStatus is returned when the server answers with a non-2xx status.
	ErrUnexpectedStatus = errors.New("unexpected http status")
)

// Session errors.
var (
	// ErrStreamEnded is returned by Run when the server closed the stream.
	ErrStreamEnded = errors.New("stream ended")
	// ErrAlreadyRunning is returned when Run or Start is called twice.
	ErrAlreadyRunning = errors.New("extractor already running")
	// ErrClosed is returned when Run is called on a stopped extractor.
	ErrClosed = errors.New("extractor closed")
	// ErrQueueClosed is returned by Pop once the queue is closed and empty.
	ErrQueueClosed = errors.New("frame queue closed")
)

// recoverable reports whether err is a protocol violation that an OnErrorOption
// callback may choose to skip.
func recoverable(err error) bool {
	return errors.Is(err, ErrInvalidContentLength) || errors.Is(err, ErrInvalidBoundary)
}
