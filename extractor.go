package mjpeg

import (
	"context"
	"io"
	"net"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// State is the phase of the frame extraction state machine.
type State int32

const (
	// Negotiating waits for the connection, sends the request and classifies the framing.
	Negotiating State = iota
	// Seeking scans the unresolved bytes for the next frame marker.
	Seeking
	// HeaderParsing has found a marker and waits for the rest of its header.
	HeaderParsing
	// PayloadWaiting knows where the frame ends and waits for its bytes.
	PayloadWaiting
	// Emitting publishes a complete frame.
	Emitting
	// Stopped is terminal.
	Stopped
)

func (s State) String() string {
	switch s {
	case Negotiating:
		return "negotiating"
	case Seeking:
		return "seeking"
	case HeaderParsing:
		return "header-parsing"
	case PayloadWaiting:
		return "payload-waiting"
	case Emitting:
		return "emitting"
	case Stopped:
		return "stopped"
	default:
		return "state(" + strconv.Itoa(int(s)) + ")"
	}
}

// readBuffers is the number of read buffers rotating between the socket reader
// and the reassembler: one being filled while the other is processed.
const readBuffers = 2

// Extractor reads an MJPEG stream and publishes complete frames to its queue.
// An Extractor runs a single session; create a new one to reconnect.
type Extractor struct {
	endpoint  Endpoint
	opts      options
	transport *Transport
	queue     *FrameQueue
	session   string
	logger    Logger

	state   atomic.Int32
	running atomic.Bool
	stopped atomic.Bool

	mu     sync.Mutex
	cancel context.CancelFunc

	done chan struct{}
	err  error
}

// NewExtractor creates an extractor for endpoint. It returns ErrInvalidEndpoint
// when the endpoint cannot be dialed.
func NewExtractor(endpoint Endpoint, opt ...Option) (*Extractor, error) {
	if err := endpoint.Validate(); err != nil {
		return nil, err
	}

	opts := newOptions(opt)
	session := uuid.NewString()
	logger := withSession(opts.logger, session)
	opts.logger = logger

	return &Extractor{
		endpoint:  endpoint,
		opts:      opts,
		transport: NewTransport(endpoint, LoggerOption(logger), DialTimeoutOption(opts.dialTimeout)),
		queue:     NewFrameQueue(),
		session:   session,
		logger:    logger,
		done:      make(chan struct{}),
	}, nil
}

// Frames returns the queue the consumer reads from.
func (e *Extractor) Frames() *FrameQueue {
	return e.queue
}

// Next waits for the next frame. The caller owns the frame and must Release it.
func (e *Extractor) Next(ctx context.Context) (*Frame, error) {
	return e.queue.Pop(ctx)
}

// State returns the current extraction phase.
func (e *Extractor) State() State {
	return State(e.state.Load())
}

// Session returns the identifier attached to this extractor's log records.
func (e *Extractor) Session() string {
	return e.session
}

// Start runs the extractor in a new goroutine. Use Wait for its result.
func (e *Extractor) Start(ctx context.Context) error {
	if e.running.Load() {
		return ErrAlreadyRunning
	}
	started := make(chan error, 1)
	go func() {
		_ = e.run(ctx, started)
	}()
	return <-started
}

// Wait blocks until the session started by Start or Run has ended and returns its result.
func (e *Extractor) Wait() error {
	<-e.done
	return e.err
}

// Run connects, sends the request and extracts frames until the stream ends,
// a fault occurs, Stop is called or ctx is canceled. It returns nil after Stop,
// ctx.Err() after cancellation, an error wrapping ErrStreamEnded when the server
// closed the stream, and the fault otherwise. The frame queue is closed on
// return; frames already queued remain readable.
func (e *Extractor) Run(ctx context.Context) error {
	return e.run(ctx, nil)
}

func (e *Extractor) run(ctx context.Context, started chan<- error) error {
	if !e.running.CompareAndSwap(false, true) {
		if started != nil {
			started <- ErrAlreadyRunning
		}
		return ErrAlreadyRunning
	}

	err := e.runSession(ctx, started)

	e.state.Store(int32(Stopped))
	e.err = err
	close(e.done)
	return err
}

func (e *Extractor) runSession(ctx context.Context, started chan<- error) error {
	defer e.queue.Close()

	e.mu.Lock()
	if e.stopped.Load() {
		e.mu.Unlock()
		if started != nil {
			started <- ErrClosed
		}
		return ErrClosed
	}
	ctx, e.cancel = context.WithCancel(ctx)
	cancel := e.cancel
	e.mu.Unlock()
	defer cancel()

	e.state.Store(int32(Negotiating))
	err := e.transport.Connect(ctx)
	if started != nil {
		started <- err
	}
	if err != nil {
		return err
	}
	defer func() { _ = e.transport.Disconnect() }()

	e.logger.Info("session started", "endpoint", e.endpoint.String(), "framing", e.opts.framing)

	err = e.extract(ctx)
	switch {
	case e.stopped.Load():
		e.logger.Info("session stopped")
		return nil
	case ctx.Err() != nil:
		e.logger.Info("session canceled")
		return ctx.Err()
	case errors.Is(err, ErrStreamEnded):
		e.logger.Info("session ended by server")
	default:
		e.logger.Error("session faulted", "error", err)
	}
	return err
}

// extract negotiates the stream and runs the reader and the reassembler until
// one of them fails.
func (e *Extractor) extract(ctx context.Context) error {
	conn, err := e.transport.Stream(ctx)
	if err != nil {
		return err
	}
	if err = e.transport.SendRequest(e.endpoint.RequestPath()); err != nil {
		return err
	}

	r := newReassembler(e.opts, e.queue, &e.state, e.logger)
	defer r.release()

	bufs := make([][]byte, readBuffers)
	free := make(chan []byte, readBuffers)
	for i := range bufs {
		b := sharedPool.get(e.opts.readSize)
		bufs[i] = b
		free <- b
	}
	defer func() {
		for _, b := range bufs {
			sharedPool.put(b)
		}
	}()
	chunks := make(chan []byte, 1)

	group, child := errgroup.WithContext(ctx)

	group.Go(func() error {
		return e.readLoop(child, conn, free, chunks)
	})

	group.Go(func() error {
		return e.assembleLoop(r, free, chunks)
	})

	// A blocked read only returns once the socket is closed.
	group.Go(func() error {
		<-child.Done()
		return e.transport.Disconnect()
	})

	return group.Wait()
}

// readLoop keeps one read in flight while the previous chunk is reassembled.
// It takes buffers from free and puts back the ones an empty read left unused.
// It closes chunks on return so everything read before a failure is still processed.
func (e *Extractor) readLoop(ctx context.Context, conn net.Conn, free chan []byte, chunks chan<- []byte) error {
	defer close(chunks)

	for {
		var buf []byte
		select {
		case <-ctx.Done():
			return ctx.Err()
		case buf = <-free:
		}

		n, err := conn.Read(buf[:cap(buf)])
		if n > 0 {
			select {
			case chunks <- buf[:n]:
			case <-ctx.Done():
				return ctx.Err()
			}
		} else {
			e.recycle(free, buf)
		}

		if err != nil {
			if errors.Is(err, io.EOF) {
				return errors.Wrap(ErrStreamEnded, "read")
			}
			if e.stopped.Load() || ctx.Err() != nil {
				return context.Canceled
			}
			return errors.Wrap(err, "read")
		}
	}
}

// assembleLoop feeds chunks to the reassembler. Once Stop is observed,
// chunks still in flight are discarded.
func (e *Extractor) assembleLoop(r *reassembler, free chan<- []byte, chunks <-chan []byte) error {
	for chunk := range chunks {
		if e.stopped.Load() {
			return context.Canceled
		}
		err := r.feed(chunk)
		e.recycle(free, chunk)
		if err != nil {
			return err
		}
	}
	return nil
}

func (e *Extractor) recycle(free chan<- []byte, buf []byte) {
	select {
	case free <- buf[:cap(buf)]:
	default:
	}
}

// Stop ends the session. The read loop notices at its next iteration; an
// in-flight read is unblocked by closing the connection. Safe to call multiple
// times and before Run.
func (e *Extractor) Stop() error {
	e.stopped.Store(true)

	e.mu.Lock()
	cancel := e.cancel
	e.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	return e.transport.Disconnect()
}
