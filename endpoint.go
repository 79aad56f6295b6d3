package mjpeg

import (
	"bytes"
	"net"
	"strconv"

	"github.com/pkg/errors"
)

// defaultPath is requested when the endpoint carries no path.
const defaultPath = "/"

// Endpoint identifies an MJPEG source. It is not modified once a session starts.
type Endpoint struct {
	Address string `yaml:"address"`
	Port    int    `yaml:"port"`
	Path    string `yaml:"path"`
}

// Validate reports whether the endpoint can be dialed.
func (e Endpoint) Validate() error {
	if e.Address == "" {
		return errors.Wrap(ErrInvalidEndpoint, "empty address")
	}
	if e.Port <= 0 || e.Port > 65535 {
		return errors.Wrapf(ErrInvalidEndpoint, "port %d out of range", e.Port)
	}
	return nil
}

// HostPort returns the dial address.
func (e Endpoint) HostPort() string {
	return net.JoinHostPort(e.Address, strconv.Itoa(e.Port))
}

// RequestPath returns Path, or "/" when it is empty.
func (e Endpoint) RequestPath() string {
	if e.Path == "" {
		return defaultPath
	}
	return e.Path
}

func (e Endpoint) String() string {
	return e.HostPort() + e.RequestPath()
}

// getRequest renders the single request sent on a session.
func getRequest(host, path string) []byte {
	var b bytes.Buffer
	b.WriteString("GET ")
	b.WriteString(path)
	b.WriteString(" HTTP/1.1\r\nHost: ")
	b.WriteString(host)
	b.WriteString("\r\nContent-Length: 0\r\n\r\n")
	return b.Bytes()
}
