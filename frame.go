package mjpeg

// Frame is one complete image payload. It owns a pooled buffer; whoever holds
// the Frame last must call Release exactly once, after which Bytes returns nil.
type Frame struct {
	buf  []byte
	seq  uint64
	pool *bufferPool
}

// newFrame copies payload into a freshly acquired buffer.
func newFrame(pool *bufferPool, payload []byte, seq uint64) *Frame {
	buf := pool.get(len(payload))
	copy(buf, payload)
	return &Frame{buf: buf, seq: seq, pool: pool}
}

// Bytes returns the frame payload. The slice must not be retained past Release.
func (f *Frame) Bytes() []byte {
	return f.buf
}

// Len returns the payload length.
func (f *Frame) Len() int {
	return len(f.buf)
}

// Seq returns the 1-based position of the frame within its session.
func (f *Frame) Seq() uint64 {
	return f.seq
}

// JFIF inspects the APP0 header at the start of the frame.
func (f *Frame) JFIF() (JFIFHeader, error) {
	return InspectJFIF(f.buf)
}

// Release gives the buffer back to the pool. Further calls are no-ops.
func (f *Frame) Release() {
	if f.buf == nil {
		return
	}
	if f.pool != nil {
		f.pool.put(f.buf)
	}
	f.buf = nil
}
