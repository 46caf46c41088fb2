package wire

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strings"
	"time"
)

// TimestampLayout is the time format used by every timestamp field.
const TimestampLayout = "2006-01-02-15:04"

// Placeholder replaces byte sequences that are not valid UTF-8.
const Placeholder = "_"

// Pack encodes v as a little-endian unsigned integer of the given width.
// Only widths 2 and 4 exist in the protocol.
func Pack(v uint32, width int) []byte {
	b := make([]byte, width)
	switch width {
	case 2:
		binary.LittleEndian.PutUint16(b, uint16(v))
	case 4:
		binary.LittleEndian.PutUint32(b, v)
	default:
		panic(fmt.Sprintf("wire: unsupported integer width %d", width))
	}
	return b
}

// Unpack decodes a 2- or 4-byte little-endian unsigned integer.
func Unpack(b []byte) uint32 {
	switch len(b) {
	case 2:
		return uint32(binary.LittleEndian.Uint16(b))
	case 4:
		return binary.LittleEndian.Uint32(b)
	default:
		panic(fmt.Sprintf("wire: unsupported integer width %d", len(b)))
	}
}

// SanitizeText turns a fixed-width, null-padded text field into a string.
// Everything after the first null is padding. Control bytes (< 32 and DEL)
// are dropped, invalid UTF-8 is replaced by Placeholder, and surrounding
// whitespace is trimmed.
func SanitizeText(field []byte) string {
	if i := bytes.IndexByte(field, 0); i >= 0 {
		field = field[:i]
	}
	out := make([]byte, 0, len(field))
	for _, b := range field {
		if b < 32 || b == 127 {
			continue
		}
		out = append(out, b)
	}
	return strings.TrimSpace(strings.ToValidUTF8(string(out), Placeholder))
}

// putText copies s into a fixed-width field, null padding the remainder.
// Overlong strings are truncated.
func putText(dst []byte, s string) {
	n := copy(dst, s)
	clear(dst[n:])
}

// rawText returns the bytes of a fixed-width field up to the first null.
func rawText(field []byte) string {
	if i := bytes.IndexByte(field, 0); i >= 0 {
		field = field[:i]
	}
	return string(field)
}

// FormatTimestamp renders t in TimestampLayout.
func FormatTimestamp(t time.Time) string {
	return t.Format(TimestampLayout)
}

// ParseTimestamp parses a TimestampLayout string.
func ParseTimestamp(s string) (time.Time, error) {
	return time.Parse(TimestampLayout, s)
}
