// Package mjpeg extracts discrete JPEG frames from a Motion-JPEG stream served
// over a raw HTTP connection.
//
// A Transport owns the TCP connection and sends the single GET request. An
// Extractor drives the read loop over that connection, reassembles frames out
// of arbitrarily fragmented reads using either per-frame Content-Length headers
// or multipart boundaries, and publishes each frame to an unbounded FrameQueue
// without ever blocking the reader.
package mjpeg

import (
	"context"
	"net"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
)

// ConnectionState is the lifecycle state of a Transport.
type ConnectionState int32

const (
	Disconnected ConnectionState = iota
	Connecting
	Connected
	Faulted
)

func (s ConnectionState) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Faulted:
		return "faulted"
	default:
		return "state(" + strconv.Itoa(int(s)) + ")"
	}
}

// attempt is one asynchronous connect. done is closed exactly once, when the
// dial completes or Disconnect abandons it.
type attempt struct {
	done   chan struct{}
	conn   net.Conn
	err    error
	cancel context.CancelFunc
	once   sync.Once
}

func (a *attempt) finish(conn net.Conn, err error) {
	a.once.Do(func() {
		a.conn, a.err = conn, err
		close(a.done)
	})
}

// Transport manages the TCP connection to an MJPEG endpoint.
// Connect and Disconnect may be called from any goroutine.
type Transport struct {
	endpoint Endpoint
	logger   Logger
	dialer   net.Dialer

	state atomic.Int32

	// mu guards the attempt and the stream handle so a dial completing
	// concurrently with Disconnect never leaves a connection behind.
	mu          sync.Mutex
	current     *attempt
	streamTaken bool
}

// NewTransport creates a disconnected transport for endpoint.
func NewTransport(endpoint Endpoint, opt ...Option) *Transport {
	opts := newOptions(opt)
	return &Transport{
		endpoint: endpoint,
		logger:   opts.logger,
		dialer:   net.Dialer{Timeout: opts.dialTimeout},
	}
}

// State returns the current connection state.
func (t *Transport) State() ConnectionState {
	return ConnectionState(t.state.Load())
}

// Endpoint returns the endpoint the transport dials.
func (t *Transport) Endpoint() Endpoint {
	return t.endpoint
}

// Connect starts an asynchronous connect and returns immediately.
// It returns ErrAlreadyConnected, without changing state, while a previous
// attempt is pending or established. Use Stream to wait for the outcome.
func (t *Transport) Connect(ctx context.Context) error {
	if err := t.endpoint.Validate(); err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	switch t.State() {
	case Connecting, Connected:
		return ErrAlreadyConnected
	}

	if t.current != nil {
		t.teardownLocked()
	}

	dialCtx, cancel := context.WithCancel(ctx)
	a := &attempt{done: make(chan struct{}), cancel: cancel}
	t.current = a
	t.streamTaken = false
	t.state.Store(int32(Connecting))

	t.logger.Debug("connecting", "addr", t.endpoint.HostPort())
	go t.dial(dialCtx, a)
	return nil
}

func (t *Transport) dial(ctx context.Context, a *attempt) {
	conn, err := t.dialer.DialContext(ctx, "tcp", t.endpoint.HostPort())

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.current != a {
		// Disconnect won the race; the attempt was already abandoned.
		if conn != nil {
			_ = conn.Close()
		}
		return
	}

	if err != nil {
		t.state.Store(int32(Faulted))
		t.logger.Info("connect failed", "addr", t.endpoint.HostPort(), "error", err)
		a.finish(nil, errors.Wrapf(err, "connect %s", t.endpoint.HostPort()))
		return
	}

	if tcp, ok := conn.(*net.TCPConn); ok {
		_ = tcp.SetNoDelay(true)
	}
	t.state.Store(int32(Connected))
	t.logger.Info("connected", "addr", conn.RemoteAddr())
	a.finish(conn, nil)
}

// Stream waits for the pending connect and returns the connection. It returns
// immediately when already connected. Only one caller per session may take the
// stream; the connection stays owned by the Transport and is closed by Disconnect.
func (t *Transport) Stream(ctx context.Context) (net.Conn, error) {
	t.mu.Lock()
	a := t.current
	if a == nil {
		t.mu.Unlock()
		return nil, ErrNotConnected
	}
	if t.streamTaken {
		t.mu.Unlock()
		return nil, ErrStreamInUse
	}
	t.streamTaken = true
	t.mu.Unlock()

	select {
	case <-a.done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if a.err != nil {
		return nil, a.err
	}
	return a.conn, nil
}

// SendRequest writes the GET request for path. It fails with ErrNotConnected
// unless the connect has completed.
func (t *Transport) SendRequest(path string) error {
	t.mu.Lock()
	if t.State() != Connected || t.current == nil {
		t.mu.Unlock()
		return ErrNotConnected
	}
	conn := t.current.conn
	t.mu.Unlock()

	if _, err := conn.Write(getRequest(t.endpoint.Address, path)); err != nil {
		return errors.Wrap(err, "send request")
	}
	t.logger.Debug("request sent", "path", path)
	return nil
}

// Disconnect shuts down both directions and closes the connection, abandoning
// any pending connect. Safe to call multiple times, from any state and
// concurrently with a read on the stream, which then fails with net.ErrClosed.
func (t *Transport) Disconnect() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.current == nil {
		t.state.Store(int32(Disconnected))
		return nil
	}
	t.teardownLocked()
	t.logger.Debug("disconnected", "addr", t.endpoint.HostPort())
	return nil
}

// teardownLocked releases the current attempt. Errors from an already closed
// socket are expected here and ignored.
func (t *Transport) teardownLocked() {
	a := t.current
	t.current = nil
	t.streamTaken = false
	t.state.Store(int32(Disconnected))

	a.cancel()
	a.finish(nil, ErrDisconnected)
	if a.conn == nil {
		return
	}
	if tcp, ok := a.conn.(*net.TCPConn); ok {
		_ = tcp.CloseRead()
		_ = tcp.CloseWrite()
	}
	_ = a.conn.Close()
}
