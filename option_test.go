package mjpeg

import (
	"errors"
	"math"
	"testing"
	"time"
)

func TestFramingOption(t *testing.T) {
	var opts options
	FramingOption(FramingMultipart)(&opts)

	if opts.framing != FramingMultipart {
		t.Errorf("framing = %v, want multipart", opts.framing)
	}
}

func TestBufferSizeOption(t *testing.T) {
	var opts options
	BufferSizeOption(100)(&opts)

	if opts.bufferSize != 100 {
		t.Errorf("bufferSize = %d, want 100", opts.bufferSize)
	}
}

func TestReadSizeOption(t *testing.T) {
	var opts options
	ReadSizeOption(2048)(&opts)

	if opts.readSize != 2048 {
		t.Errorf("readSize = %d, want 2048", opts.readSize)
	}
}

func TestMaxFrameSizeOption(t *testing.T) {
	var opts options
	MaxFrameSizeOption(4096)(&opts)

	if opts.maxFrameSize != 4096 {
		t.Errorf("maxFrameSize = %d, want 4096", opts.maxFrameSize)
	}
}

func TestCheckOptions_MaxFrameSizeLimit(t *testing.T) {
	opts := newOptions([]Option{MaxFrameSizeOption(math.MaxInt)})

	if opts.maxFrameSize != maxFrameSizeLimit {
		t.Errorf("maxFrameSize = %d, want %d", opts.maxFrameSize, maxFrameSizeLimit)
	}
}

func TestDialTimeoutOption(t *testing.T) {
	var opts options
	DialTimeoutOption(time.Minute)(&opts)

	if opts.dialTimeout != time.Minute {
		t.Errorf("dialTimeout = %v, want %v", opts.dialTimeout, time.Minute)
	}
}

func TestOnErrorOption(t *testing.T) {
	called := false
	var opts options
	OnErrorOption(func(err error) ErrorAction {
		called = true
		return Continue
	})(&opts)

	if opts.onError(errors.New("test")) != Continue {
		t.Error("onError should return Continue")
	}
	if !called {
		t.Error("callback was not called")
	}
}

func TestLoggerOption(t *testing.T) {
	logger := &mockLogger{}
	var opts options
	LoggerOption(logger)(&opts)

	if opts.logger != logger {
		t.Error("logger not set correctly")
	}
}

func TestCheckOptions_DefaultValues(t *testing.T) {
	opts := newOptions(nil)

	if opts.bufferSize != defaultBufferSize {
		t.Errorf("bufferSize = %d, want %d", opts.bufferSize, defaultBufferSize)
	}
	if opts.readSize != defaultReadSize {
		t.Errorf("readSize = %d, want %d", opts.readSize, defaultReadSize)
	}
	if opts.dialTimeout != defaultDialTimeout {
		t.Errorf("dialTimeout = %v, want %v", opts.dialTimeout, defaultDialTimeout)
	}
	if opts.maxFrameSize != defaultMaxFrameSize {
		t.Errorf("maxFrameSize = %d, want %d", opts.maxFrameSize, defaultMaxFrameSize)
	}
	if opts.framing != FramingAuto {
		t.Errorf("framing = %v, want auto", opts.framing)
	}
	if opts.logger == nil {
		t.Error("logger should have default value")
	}
	if opts.onError(errors.New("test")) != Disconnect {
		t.Error("default onError should return Disconnect")
	}
}

func TestCheckOptions_InvalidValues(t *testing.T) {
	opts := newOptions([]Option{
		BufferSizeOption(-1),
		ReadSizeOption(0),
		MaxFrameSizeOption(-5),
		DialTimeoutOption(-time.Second),
	})

	if opts.bufferSize != defaultBufferSize || opts.readSize != defaultReadSize {
		t.Errorf("sizes not defaulted: %d/%d", opts.bufferSize, opts.readSize)
	}
	if opts.maxFrameSize != defaultMaxFrameSize {
		t.Errorf("maxFrameSize = %d, want %d", opts.maxFrameSize, defaultMaxFrameSize)
	}
	if opts.dialTimeout != defaultDialTimeout {
		t.Errorf("dialTimeout = %v", opts.dialTimeout)
	}
}
