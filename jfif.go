package mjpeg

import (
	"bytes"
	"encoding/binary"
	"strconv"

	"github.com/pkg/errors"
)

// JFIF header errors.
var (
	// ErrNotJPEG is returned when the data does not start with the SOI marker.
	ErrNotJPEG = errors.New("not a jpeg: missing start-of-image marker")
	// ErrNotJFIF is returned when the first segment is not an APP0 JFIF segment.
	ErrNotJFIF = errors.New("not jfif")
	// ErrTruncated is returned when the data ends before the fixed APP0 fields.
	ErrTruncated = errors.New("jfif header truncated")
)

const (
	markerPrefix = 0xFF
	markerSOI    = 0xD8
	markerAPP0   = 0xE0

	// SOI(2) + APP0 marker(2) + length(2) + identifier(5) + version(2) +
	// units(1) + densities(4) + thumbnail dimensions(2).
	jfifFixedSize = 20
	// minAPP0Length counts the length field itself and excludes the marker.
	minAPP0Length = 16
)

var jfifIdentifier = []byte{'J', 'F', 'I', 'F', 0x00}

// Units is the unit of the JFIF X and Y densities.
type Units uint8

const (
	// NoUnits means the densities only give the pixel aspect ratio.
	NoUnits Units = iota
	DotsPerInch
	DotsPerCm
)

func (u Units) String() string {
	switch u {
	case NoUnits:
		return "none"
	case DotsPerInch:
		return "dpi"
	case DotsPerCm:
		return "dpcm"
	default:
		return "units(" + strconv.Itoa(int(u)) + ")"
	}
}

// JFIFHeader is the fixed part of a JFIF APP0 segment.
type JFIFHeader struct {
	Length       uint16 // segment length including the length field
	VersionMajor uint8
	VersionMinor uint8
	Units        Units
	XDensity     uint16
	YDensity     uint16
	XThumbnail   uint8
	YThumbnail   uint8
}

// Version formats the version as major.minor, e.g. "1.02".
func (h JFIFHeader) Version() string {
	minor := strconv.Itoa(int(h.VersionMinor))
	if h.VersionMinor < 10 {
		minor = "0" + minor
	}
	return strconv.Itoa(int(h.VersionMajor)) + "." + minor
}

// HasThumbnail reports whether an embedded thumbnail follows the header.
func (h JFIFHeader) HasThumbnail() bool {
	return h.XThumbnail > 0 && h.YThumbnail > 0
}

// ThumbnailSize is the size in bytes of the uncompressed RGB thumbnail.
func (h JFIFHeader) ThumbnailSize() int {
	return 3 * int(h.XThumbnail) * int(h.YThumbnail)
}

// InspectJFIF reads the JFIF APP0 header at the start of a JPEG image without
// decoding anything past it. It never modifies data.
func InspectJFIF(data []byte) (JFIFHeader, error) {
	var h JFIFHeader

	if len(data) < 2 {
		return h, ErrTruncated
	}
	if data[0] != markerPrefix || data[1] != markerSOI {
		return h, ErrNotJPEG
	}

	if len(data) < 4 {
		return h, ErrTruncated
	}
	if data[2] != markerPrefix || data[3] != markerAPP0 {
		return h, errors.Wrapf(ErrNotJFIF, "first marker %02X %02X", data[2], data[3])
	}

	if len(data) < 11 {
		return h, ErrTruncated
	}
	if !bytes.Equal(data[6:11], jfifIdentifier) {
		return h, errors.Wrap(ErrNotJFIF, "identifier mismatch")
	}

	if len(data) < jfifFixedSize {
		return h, ErrTruncated
	}

	h.Length = binary.BigEndian.Uint16(data[4:6])
	if h.Length < minAPP0Length {
		return h, errors.Wrapf(ErrNotJFIF, "segment length %d", h.Length)
	}
	h.VersionMajor = data[11]
	h.VersionMinor = data[12]
	h.Units = Units(data[13])
	h.XDensity = binary.BigEndian.Uint16(data[14:16])
	h.YDensity = binary.BigEndian.Uint16(data[16:18])
	h.XThumbnail = data[18]
	h.YThumbnail = data[19]
	return h, nil
}
