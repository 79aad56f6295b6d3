package mjpeg

import (
	"bytes"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Framing selects how frame boundaries are found in the stream.
type Framing int

const (
	// FramingAuto chooses the mode from whichever marker appears first.
	FramingAuto Framing = iota
	// FramingContentLength expects a Content-Length header before every frame.
	FramingContentLength
	// FramingMultipart splits on the boundary announced by a boundary= parameter.
	FramingMultipart
)

func (f Framing) String() string {
	switch f {
	case FramingAuto:
		return "auto"
	case FramingContentLength:
		return "content-length"
	case FramingMultipart:
		return "multipart"
	default:
		return "framing(" + strconv.Itoa(int(f)) + ")"
	}
}

// UnmarshalText parses the names produced by String.
func (f *Framing) UnmarshalText(text []byte) error {
	switch strings.ToLower(strings.TrimSpace(string(text))) {
	case "", "auto":
		*f = FramingAuto
	case "content-length":
		*f = FramingContentLength
	case "multipart":
		*f = FramingMultipart
	default:
		return errors.Errorf("unknown framing %q", text)
	}
	return nil
}

var (
	contentLengthToken = []byte("Content-Length:")
	boundaryParam      = []byte("boundary=")
	lf                 = []byte("\n")
	cr                 = []byte("\r")
	crlf               = []byte("\r\n")
	headerEnd          = []byte("\r\n\r\n")
	lengthLineEnd      = []byte("\n\r\n")
	dashes             = []byte("--")
)

// splitResult describes one step over the unresolved window.
//
// advance > 0 consumes bytes; payload != nil is a complete frame (payload
// aliases the window and must be copied before the window changes). When
// neither is set the framer needs more input: wait names the phase it stopped
// in and need, if positive, is the window length it must reach.
type splitResult struct {
	advance int
	payload []byte
	need    int
	wait    State
}

// framer locates frames in the unresolved window.
type framer interface {
	split(window []byte) (splitResult, error)
	mode() Framing
}

func newFramer(f Framing, maxFrameSize int) framer {
	switch f {
	case FramingContentLength:
		return &contentLengthFramer{maxFrameSize: maxFrameSize}
	case FramingMultipart:
		return &multipartFramer{maxFrameSize: maxFrameSize}
	default:
		return &autoFramer{maxFrameSize: maxFrameSize}
	}
}

// parseLength parses a decimal length field, ignoring surrounding whitespace.
// Lengths above maxFrameSize, or above what a buffer can be sized for, are
// rejected before anything is allocated.
func parseLength(field []byte, maxFrameSize int) (int, error) {
	limit := maxFrameSize
	if limit <= 0 || limit > maxFrameSizeLimit {
		limit = maxFrameSizeLimit
	}

	s := string(bytes.TrimSpace(field))
	n, err := strconv.Atoi(s)
	if errors.Is(err, strconv.ErrRange) && !strings.HasPrefix(s, "-") {
		return 0, errors.Wrapf(ErrFrameTooLarge, "%s > %d", s, limit)
	}
	if err != nil || n < 0 {
		return 0, errors.Wrapf(ErrInvalidContentLength, "%q", s)
	}
	if n > limit {
		return 0, errors.Wrapf(ErrFrameTooLarge, "%d > %d", n, limit)
	}
	return n, nil
}

// contentLengthFramer handles streams where each frame is announced by its own
// "Content-Length: N" line, followed by a blank line and exactly N bytes.
type contentLengthFramer struct {
	maxFrameSize int
}

func (f *contentLengthFramer) mode() Framing { return FramingContentLength }

func (f *contentLengthFramer) split(w []byte) (splitResult, error) {
	i := Find(w, contentLengthToken)
	if i == NotFound {
		return splitResult{wait: Seeking}, nil
	}
	if i > 0 {
		return splitResult{advance: i}, nil
	}

	digits := len(contentLengthToken)
	eol := findFrom(w, digits, lf)
	if eol == NotFound {
		return splitResult{wait: HeaderParsing}, nil
	}

	n, err := parseLength(w[digits:eol], f.maxFrameSize)
	if err != nil {
		return splitResult{advance: eol + 1}, err
	}

	// The blank line usually follows directly; other part headers may sit in between.
	sep := findFrom(w, eol, lengthLineEnd)
	if sep == NotFound {
		return splitResult{wait: HeaderParsing}, nil
	}

	body := sep + len(lengthLineEnd)
	if len(w)-body < n {
		return splitResult{need: body + n, wait: PayloadWaiting}, nil
	}
	return splitResult{advance: body + n, payload: w[body : body+n]}, nil
}

// multipartFramer handles multipart/x-mixed-replace streams.
type multipartFramer struct {
	maxFrameSize int

	// delimiter is "--" followed by the boundary token. A token announced with
	// its leading dashes is used as is.
	delimiter []byte
	dashed    bool
	// resume is where the next-delimiter search continues in the window, so a
	// slowly arriving body is not rescanned from its start on every read.
	resume int
}

func (f *multipartFramer) mode() Framing { return FramingMultipart }

func (f *multipartFramer) split(w []byte) (splitResult, error) {
	if f.delimiter == nil {
		return f.negotiate(w)
	}

	i := Find(w, f.delimiter)
	if i == NotFound {
		return splitResult{wait: Seeking}, nil
	}
	if i > 0 {
		f.resume = 0
		return splitResult{advance: i}, nil
	}

	headers := len(f.delimiter)
	if len(w) < headers+2 {
		return splitResult{wait: HeaderParsing}, nil
	}
	if bytes.Equal(w[headers:headers+2], dashes) {
		f.resume = 0
		return splitResult{advance: headers + 2}, nil
	}

	sep := findFrom(w, headers, headerEnd)
	if sep == NotFound {
		return splitResult{wait: HeaderParsing}, nil
	}
	body := sep + len(headerEnd)

	n, ok, err := partLength(w[headers:sep], f.maxFrameSize)
	if err != nil {
		f.resume = 0
		return splitResult{advance: body}, err
	}
	if ok {
		if len(w)-body < n {
			return splitResult{need: body + n, wait: PayloadWaiting}, nil
		}
		f.resume = 0
		return splitResult{advance: body + n, payload: w[body : body+n]}, nil
	}

	from := max(body, f.resume)
	next := findFrom(w, from, f.delimiter)
	if next == NotFound {
		f.resume = max(body, len(w)-len(f.delimiter)+1)
		if f.maxFrameSize > 0 && len(w)-body > f.maxFrameSize+len(f.delimiter)+4 {
			return splitResult{}, errors.Wrapf(ErrFrameTooLarge, "part exceeds %d bytes", f.maxFrameSize)
		}
		return splitResult{wait: PayloadWaiting}, nil
	}

	// The line break before the delimiter belongs to the delimiter. Dashes
	// are left over when the announced token already carried its own.
	end := next
	if f.dashed && end-len(dashes) >= body && bytes.Equal(w[end-len(dashes):end], dashes) {
		end -= len(dashes)
	}
	if end-len(crlf) >= body && bytes.Equal(w[end-len(crlf):end], crlf) {
		end -= len(crlf)
	}
	f.resume = 0
	return splitResult{advance: next, payload: w[body:end]}, nil
}

// negotiate scans the preamble for boundary= and reads the token up to the
// carriage return, dropping quotes.
func (f *multipartFramer) negotiate(w []byte) (splitResult, error) {
	i := Find(w, boundaryParam)
	if i == NotFound {
		return splitResult{wait: Negotiating}, nil
	}
	start := i + len(boundaryParam)
	end := findFrom(w, start, cr)
	if end == NotFound {
		return splitResult{wait: Negotiating}, nil
	}

	token := w[start:end]
	if semi := bytes.IndexByte(token, ';'); semi >= 0 {
		token = token[:semi]
	}
	token = bytes.ReplaceAll(token, []byte(`"`), nil)
	token = bytes.TrimSpace(token)
	if len(token) == 0 {
		return splitResult{advance: end}, ErrInvalidBoundary
	}

	f.dashed = bytes.HasPrefix(token, dashes)
	if f.dashed {
		f.delimiter = bytes.Clone(token)
	} else {
		f.delimiter = append(bytes.Clone(dashes), token...)
	}
	return splitResult{advance: end}, nil
}

// partLength looks for a Content-Length header among the part headers.
func partLength(headers []byte, maxFrameSize int) (int, bool, error) {
	for _, line := range bytes.Split(headers, crlf) {
		key, value, ok := bytes.Cut(line, []byte(":"))
		if !ok || !strings.EqualFold(string(bytes.TrimSpace(key)), "Content-Length") {
			continue
		}
		n, err := parseLength(value, maxFrameSize)
		if err != nil {
			return 0, false, err
		}
		return n, true, nil
	}
	return 0, false, nil
}

// autoFramer picks a framer from the first marker seen: a boundary= parameter
// before any Content-Length header means multipart.
type autoFramer struct {
	maxFrameSize int
	selected     framer
}

func (f *autoFramer) mode() Framing {
	if f.selected == nil {
		return FramingAuto
	}
	return f.selected.mode()
}

func (f *autoFramer) split(w []byte) (splitResult, error) {
	if f.selected != nil {
		return f.selected.split(w)
	}

	b := Find(w, boundaryParam)
	c := Find(w, contentLengthToken)
	switch {
	case b != NotFound && (c == NotFound || b < c):
		f.selected = &multipartFramer{maxFrameSize: f.maxFrameSize}
	case c != NotFound:
		f.selected = &contentLengthFramer{maxFrameSize: f.maxFrameSize}
	default:
		return splitResult{wait: Negotiating}, nil
	}
	return f.selected.split(w)
}
