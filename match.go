package mjpeg

import "bytes"

// NotFound is returned by Find when the pattern does not fully occur in the window.
const NotFound = -1

// Find returns the index of the first full occurrence of pattern in window, or
// NotFound. A pattern longer than the window is never reported as found, so a
// marker split across reads is simply looked up again once more bytes arrive.
func Find(window, pattern []byte) int {
	if len(pattern) > len(window) {
		return NotFound
	}
	return bytes.Index(window, pattern)
}

// findFrom is Find starting at offset from, returning an index relative to window.
func findFrom(window []byte, from int, pattern []byte) int {
	if from < 0 {
		from = 0
	}
	if from > len(window) {
		return NotFound
	}
	i := Find(window[from:], pattern)
	if i == NotFound {
		return NotFound
	}
	return from + i
}
