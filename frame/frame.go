// Package frame encodes and decodes the 16-byte frame header that precedes
// every payload in a zerobuffer ring: an 8-byte little-endian payload size
// followed by an 8-byte little-endian sequence number. A header with both
// fields zero is a wrap marker, not a logical frame.
package frame

import "encoding/binary"

// HeaderSize is the fixed, wire-exact size of a frame header in bytes.
const HeaderSize = 16

// Header is the decoded form of a frame header.
type Header struct {
	PayloadSize uint64
	Sequence    uint64
}

// IsWrapMarker reports whether h denotes a wrap marker: PayloadSize == 0
// (sequence is always 0 for a wrap marker too, but PayloadSize is the
// discriminant per spec.md §3).
func (h Header) IsWrapMarker() bool { return h.PayloadSize == 0 }

// Encode writes h into the first HeaderSize bytes of dst.
func Encode(dst []byte, h Header) {
	binary.LittleEndian.PutUint64(dst[0:8], h.PayloadSize)
	binary.LittleEndian.PutUint64(dst[8:16], h.Sequence)
}

// Decode reads a Header from the first HeaderSize bytes of src.
func Decode(src []byte) Header {
	return Header{
		PayloadSize: binary.LittleEndian.Uint64(src[0:8]),
		Sequence:    binary.LittleEndian.Uint64(src[8:16]),
	}
}

// WrapMarker is the canonical wrap-marker header value.
var WrapMarker = Header{PayloadSize: 0, Sequence: 0}
