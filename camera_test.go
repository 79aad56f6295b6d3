package mjpeg

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"sync"
	"testing"
	"time"
)

// cameraHandler serves one accepted client after its request has been read.
type cameraHandler func(conn *net.TCPConn, req *http.Request)

// testCamera is a loopback MJPEG source: it accepts TCP clients, parses their
// GET request and hands the connection to a handler.
type testCamera struct {
	listener *net.TCPListener
	handler  cameraHandler

	mu       sync.Mutex
	shutdown bool
	requests []*http.Request
	rawReqs  [][]byte
	wg       sync.WaitGroup
}

func newTestCamera(t *testing.T, handler cameraHandler) *testCamera {
	t.Helper()

	listener, err := net.ListenTCP("tcp", &net.TCPAddr{IP: net.ParseIP("127.0.0.1"), Port: 0})
	if err != nil {
		t.Fatalf("failed to create listener: %v", err)
	}

	c := &testCamera{listener: listener, handler: handler}
	c.wg.Add(1)
	go c.serve()
	t.Cleanup(c.Close)
	return c
}

func (c *testCamera) serve() {
	defer c.wg.Done()
	for {
		conn, err := c.listener.AcceptTCP()
		if err != nil {
			c.mu.Lock()
			isShutdown := c.shutdown
			c.mu.Unlock()
			if isShutdown {
				return
			}
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			return
		}

		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			defer conn.Close()
			c.handle(conn)
		}()
	}
}

func (c *testCamera) handle(conn *net.TCPConn) {
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var raw bytes.Buffer
	req, err := http.ReadRequest(bufio.NewReader(teeReader{conn, &raw}))
	if err != nil {
		return
	}
	_ = conn.SetReadDeadline(time.Time{})

	c.mu.Lock()
	c.requests = append(c.requests, req)
	c.rawReqs = append(c.rawReqs, raw.Bytes())
	c.mu.Unlock()

	if c.handler != nil {
		c.handler(conn, req)
	}
}

// Endpoint returns the endpoint clients should dial.
func (c *testCamera) Endpoint(path string) Endpoint {
	addr := c.listener.Addr().(*net.TCPAddr)
	return Endpoint{Address: addr.IP.String(), Port: addr.Port, Path: path}
}

// Requests returns the requests received so far.
func (c *testCamera) Requests() []*http.Request {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*http.Request(nil), c.requests...)
}

// Close stops accepting clients and waits for the handlers to return.
func (c *testCamera) Close() {
	c.mu.Lock()
	if c.shutdown {
		c.mu.Unlock()
		return
	}
	c.shutdown = true
	c.mu.Unlock()

	_ = c.listener.Close()
	c.wg.Wait()
}

// teeReader copies every byte read from r into w. bufio may read past the
// request, so the copy is only used to check the request head.
type teeReader struct {
	r net.Conn
	w *bytes.Buffer
}

func (t teeReader) Read(p []byte) (int, error) {
	n, err := t.r.Read(p)
	t.w.Write(p[:n])
	return n, err
}

// contentLengthStream wraps every payload as "\nContent-Length: N\n\r\n<payload>".
func contentLengthStream(payloads ...[]byte) []byte {
	var b bytes.Buffer
	for _, p := range payloads {
		b.WriteString("\nContent-Length: ")
		b.WriteString(strconv.Itoa(len(p)))
		b.WriteString("\n\r\n")
		b.Write(p)
	}
	return b.Bytes()
}

// multipartStream renders a multipart/x-mixed-replace body with boundary.
func multipartStream(boundary string, withLength bool, payloads ...[]byte) []byte {
	var b bytes.Buffer
	b.WriteString("HTTP/1.1 200 OK\r\nContent-Type: multipart/x-mixed-replace; boundary=\"")
	b.WriteString(boundary)
	b.WriteString("\"\r\n\r\n")
	for _, p := range payloads {
		b.WriteString("--")
		b.WriteString(boundary)
		b.WriteString("\r\nContent-Type: image/jpeg\r\n")
		if withLength {
			b.WriteString("Content-Length: ")
			b.WriteString(strconv.Itoa(len(p)))
			b.WriteString("\r\n")
		}
		b.WriteString("\r\n")
		b.Write(p)
		b.WriteString("\r\n")
	}
	b.WriteString("--")
	b.WriteString(boundary)
	b.WriteString("--\r\n")
	return b.Bytes()
}

// servePayload writes data in chunks of size chunk, flushing each one.
func servePayload(data []byte, chunk int) cameraHandler {
	return func(conn *net.TCPConn, _ *http.Request) {
		for len(data) > 0 {
			n := min(chunk, len(data))
			if _, err := conn.Write(data[:n]); err != nil {
				return
			}
			data = data[n:]
		}
	}
}

// testJPEG builds a small JFIF-looking payload of the given size.
func testJPEG(size int, seed byte) []byte {
	p := make([]byte, size)
	for i := range p {
		p[i] = seed + byte(i*7)
	}
	if size >= jfifFixedSize {
		copy(p, []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 'J', 'F', 'I', 'F', 0x00, 0x01, 0x02, 0x01, 0x00, 0x48, 0x00, 0x48, 0x00, 0x00})
	}
	return p
}

// collect pops n frames from q, copying and releasing each one.
func collect(t *testing.T, q *FrameQueue, n int) [][]byte {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	out := make([][]byte, 0, n)
	for len(out) < n {
		f, err := q.Pop(ctx)
		if err != nil {
			t.Fatalf("Pop after %d frames: %v", len(out), err)
		}
		out = append(out, bytes.Clone(f.Bytes()))
		f.Release()
	}
	return out
}

// RawRequests returns the raw request heads received so far.
func (c *testCamera) RawRequests() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]byte(nil), c.rawReqs...)
}
