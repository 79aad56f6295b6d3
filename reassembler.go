package mjpeg

import (
	"bytes"
	"strconv"
	"sync/atomic"

	"github.com/pkg/errors"
)

var httpPrefix = []byte("HTTP/")

// reassembler turns raw chunks into frames. It is owned by a single goroutine:
// nothing else touches the assembly buffer or the framer.
type reassembler struct {
	buf     *assembly
	framer  framer
	queue   *FrameQueue
	pool    *bufferPool
	logger  Logger
	onError func(error) ErrorAction
	state   *atomic.Int32

	statusChecked bool
	seq           uint64
}

func newReassembler(opts options, queue *FrameQueue, state *atomic.Int32, logger Logger) *reassembler {
	return &reassembler{
		buf:     newAssembly(sharedPool, opts.bufferSize),
		framer:  newFramer(opts.framing, opts.maxFrameSize),
		queue:   queue,
		pool:    sharedPool,
		logger:  logger,
		onError: opts.onError,
		state:   state,
	}
}

func (r *reassembler) setState(s State) {
	r.state.Store(int32(s))
}

// feed appends a chunk and extracts every frame it completes. The chunk is not
// retained. A non-nil error is a fault that ends the session.
func (r *reassembler) feed(chunk []byte) error {
	if r.buf.write(chunk) {
		r.logger.Debug("assembly buffer grown", "capacity", r.buf.Cap(), "pending", r.buf.Len())
	}
	return r.drain()
}

func (r *reassembler) drain() error {
	if !r.statusChecked {
		ok, err := r.checkStatus(r.buf.window())
		if err != nil || !ok {
			return err
		}
	}

	for {
		mode := r.framer.mode()
		res, err := r.framer.split(r.buf.window())
		if mode == FramingAuto && r.framer.mode() != FramingAuto {
			r.logger.Info("framing selected", "framing", r.framer.mode())
		}

		if err != nil {
			if !recoverable(err) || r.onError(err) == Disconnect {
				return err
			}
			r.logger.Warn("skipping malformed header", "error", err)
			r.buf.consume(res.advance)
			continue
		}

		if res.payload != nil {
			r.setState(Emitting)
			r.emit(res.payload)
			r.buf.consume(res.advance)
			r.setState(Seeking)
			continue
		}

		if res.advance > 0 {
			r.buf.consume(res.advance)
			continue
		}

		r.setState(res.wait)
		if res.need > 0 && r.buf.ensure(res.need) {
			r.logger.Debug("assembly buffer sized for frame", "capacity", r.buf.Cap(), "need", res.need)
		}
		return nil
	}
}

// emit copies payload into an owned frame and publishes it.
func (r *reassembler) emit(payload []byte) {
	r.seq++
	f := newFrame(r.pool, payload, r.seq)
	if err := r.queue.Push(f); err != nil {
		r.logger.Debug("frame dropped", "seq", f.seq, "error", err)
	}
}

// checkStatus inspects the response status line when the stream starts with
// one. It reports false while the line is still incomplete.
func (r *reassembler) checkStatus(w []byte) (bool, error) {
	if len(w) < len(httpPrefix) {
		return false, nil
	}
	if !bytes.HasPrefix(w, httpPrefix) {
		r.statusChecked = true
		return true, nil
	}

	eol := Find(w, crlf)
	if eol == NotFound {
		return false, nil
	}
	r.statusChecked = true

	line := string(w[:eol])
	fields := bytes.Fields(w[:eol])
	if len(fields) < 2 {
		return false, errors.Wrapf(ErrUnexpectedStatus, "%q", line)
	}
	code, err := strconv.Atoi(string(fields[1]))
	if err != nil || code < 200 || code > 299 {
		return false, errors.Wrapf(ErrUnexpectedStatus, "%q", line)
	}
	r.logger.Debug("response accepted", "status", line)
	return true, nil
}

func (r *reassembler) release() {
	r.buf.release()
}
