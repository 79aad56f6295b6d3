package mjpeg

import (
	"math/bits"
	"sync"
)

// Buffers are pooled in power-of-two classes between 512 B and 64 MiB.
// Larger requests are allocated directly and left to the garbage collector.
const (
	minClassShift = 9
	maxClassShift = 26
)

// bufferPool hands out byte slices grouped by capacity class.
type bufferPool struct {
	classes [maxClassShift - minClassShift + 1]sync.Pool
}

// sharedPool backs every assembly buffer, read buffer and frame.
var sharedPool = newBufferPool()

func newBufferPool() *bufferPool {
	p := &bufferPool{}
	for i := range p.classes {
		size := 1 << (i + minClassShift)
		p.classes[i].New = func() any {
			b := make([]byte, size)
			return &b
		}
	}
	return p
}

// classOf returns the class index whose capacity is the smallest power of two >= n,
// or -1 when n exceeds the largest class.
func classOf(n int) int {
	if n <= 1<<minClassShift {
		return 0
	}
	shift := bits.Len(uint(n - 1))
	if shift > maxClassShift {
		return -1
	}
	return shift - minClassShift
}

// get returns a slice of length n. Its capacity may be larger.
func (p *bufferPool) get(n int) []byte {
	c := classOf(n)
	if c < 0 {
		return make([]byte, n)
	}
	b := p.classes[c].Get().(*[]byte)
	return (*b)[:n]
}

// put returns b to its class. Slices whose capacity is not exactly a class size
// did not come from the pool and are dropped.
func (p *bufferPool) put(b []byte) {
	c := cap(b)
	if c == 0 || c&(c-1) != 0 {
		return
	}
	idx := classOf(c)
	if idx < 0 || 1<<(idx+minClassShift) != c {
		return
	}
	b = b[:c]
	p.classes[idx].Put(&b)
}
