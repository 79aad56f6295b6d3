package mjpeg

import "math"

// assembly holds the bytes that have been read but not yet resolved into a
// frame. The unresolved bytes are always buf[start:end]. Capacity only grows
// during a session; every replaced buffer goes straight back to the pool.
type assembly struct {
	pool       *bufferPool
	buf        []byte
	start, end int
}

func newAssembly(pool *bufferPool, capacity int) *assembly {
	b := pool.get(capacity)
	return &assembly{pool: pool, buf: b[:cap(b)]}
}

// window returns the unresolved bytes. The slice is only valid until the next
// write, reserve or ensure.
func (a *assembly) window() []byte {
	return a.buf[a.start:a.end]
}

// Len returns the number of unresolved bytes.
func (a *assembly) Len() int {
	return a.end - a.start
}

// Cap returns the current capacity.
func (a *assembly) Cap() int {
	return len(a.buf)
}

// consume marks the first n unresolved bytes as resolved.
func (a *assembly) consume(n int) {
	a.start += n
	if a.start >= a.end {
		a.start, a.end = 0, 0
	}
}

// write appends p after the unresolved bytes and reports whether the buffer grew.
func (a *assembly) write(p []byte) bool {
	grew := a.reserve(len(p))
	a.end += copy(a.buf[a.end:], p)
	return grew
}

// reserve makes room for n more bytes after the unresolved window, compacting
// first and doubling only when compaction is not enough.
func (a *assembly) reserve(n int) bool {
	if len(a.buf)-a.end >= n {
		return false
	}
	return a.resize(a.Len()+n, 2*len(a.buf))
}

// ensure makes the buffer able to hold an unresolved window of need bytes.
// A known target larger than the capacity sizes the buffer to twice the target.
func (a *assembly) ensure(need int) bool {
	if need <= len(a.buf) {
		return false
	}
	target := need
	if need <= math.MaxInt/2 {
		target = 2 * need
	}
	return a.resize(need, target)
}

// resize is the one compaction routine: the unresolved bytes move to offset 0,
// into a new buffer of max(need, target) bytes when need exceeds the capacity.
func (a *assembly) resize(need, target int) bool {
	n := a.Len()
	if need <= len(a.buf) {
		copy(a.buf, a.buf[a.start:a.end])
		a.start, a.end = 0, n
		return false
	}

	if target < need {
		target = need
	}
	b := a.pool.get(target)
	b = b[:cap(b)]
	copy(b, a.buf[a.start:a.end])
	a.pool.put(a.buf)
	a.buf = b
	a.start, a.end = 0, n
	return true
}

// release returns the buffer to the pool. The assembly must not be used afterwards.
func (a *assembly) release() {
	if a.buf != nil {
		a.pool.put(a.buf)
		a.buf = nil
	}
	a.start, a.end = 0, 0
}
