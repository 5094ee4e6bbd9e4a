package frame

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	buf := make([]byte, HeaderSize)
	h := Header{PayloadSize: 4096, Sequence: 7}
	Encode(buf, h)

	got := Decode(buf)
	assert.Equal(t, h, got)
}

func TestWrapMarkerIsZeroHeader(t *testing.T) {
	assert.True(t, WrapMarker.IsWrapMarker())
	assert.Equal(t, uint64(0), WrapMarker.Sequence)
}

func TestIsWrapMarkerOnlyChecksPayloadSize(t *testing.T) {
	assert.False(t, Header{PayloadSize: 1, Sequence: 0}.IsWrapMarker())
	assert.True(t, Header{PayloadSize: 0, Sequence: 123}.IsWrapMarker())
}

func TestEncodeIsLittleEndian(t *testing.T) {
	buf := make([]byte, HeaderSize)
	Encode(buf, Header{PayloadSize: 1, Sequence: 0})
	assert.Equal(t, byte(1), buf[0])
	assert.Equal(t, byte(0), buf[1])
}
