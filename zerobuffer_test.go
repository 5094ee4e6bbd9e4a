package zerobuffer

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modelingevolution/zerobuffer/errs"
)

var testNameCounter int64

// uniqueName avoids collisions between parallel test processes sharing
// the same /dev/shm namespace.
func uniqueName(t *testing.T) string {
	n := atomic.AddInt64(&testNameCounter, 1)
	return fmt.Sprintf("zb-test-%d-%d", time.Now().UnixNano(), n)
}

func testOptions() Options {
	return Options{Timeout: time.Second}
}

func TestWriterFailsNotFoundBeforeReader(t *testing.T) {
	_, err := NewWriter(uniqueName(t), testOptions())
	require.Error(t, err)
	assert.Equal(t, errs.KindNotFound, errs.KindOf(err))
}

func TestReaderWriterRoundTrip(t *testing.T) {
	name := uniqueName(t)

	r, err := NewReader(name, 256, 64*1024, testOptions())
	require.NoError(t, err)
	defer r.Close()

	w, err := NewWriter(name, testOptions())
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, w.SetMetadata([]byte("hello-metadata")))
	meta, err := r.ReadMetadata()
	require.NoError(t, err)
	assert.Equal(t, "hello-metadata", string(meta))

	require.NoError(t, w.WriteFrame([]byte("frame-one")))
	f, err := r.ReadFrame()
	require.NoError(t, err)
	assert.Equal(t, "frame-one", string(f.Bytes()))
	assert.Equal(t, uint64(1), f.Sequence())
	require.NoError(t, f.Release())

	assert.True(t, r.IsWriterConnected())
	assert.True(t, w.IsReaderConnected())
}

func TestSecondWriterRejectedWhileFirstIsAlive(t *testing.T) {
	name := uniqueName(t)

	r, err := NewReader(name, 0, 64*1024, testOptions())
	require.NoError(t, err)
	defer r.Close()

	w1, err := NewWriter(name, testOptions())
	require.NoError(t, err)
	defer w1.Close()

	_, err = NewWriter(name, testOptions())
	require.Error(t, err)
	assert.Equal(t, errs.KindWriterAlreadyConnected, errs.KindOf(err))
}

func TestMetadataCannotBeWrittenTwice(t *testing.T) {
	name := uniqueName(t)

	r, err := NewReader(name, 256, 64*1024, testOptions())
	require.NoError(t, err)
	defer r.Close()

	w, err := NewWriter(name, testOptions())
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, w.SetMetadata([]byte("v1")))
	err = w.SetMetadata([]byte("v2"))
	require.Error(t, err)
	assert.Equal(t, errs.KindMetadataAlreadyWritten, errs.KindOf(err))
}

func TestMetadataRejectedWhenBufferHasNoMetadataSection(t *testing.T) {
	name := uniqueName(t)

	r, err := NewReader(name, 0, 64*1024, testOptions())
	require.NoError(t, err)
	defer r.Close()

	w, err := NewWriter(name, testOptions())
	require.NoError(t, err)
	defer w.Close()

	err = w.SetMetadata([]byte("x"))
	require.Error(t, err)
	assert.Equal(t, errs.KindMetadataNotSupported, errs.KindOf(err))
}

func TestSecondReaderReclaimsAfterCleanClose(t *testing.T) {
	name := uniqueName(t)

	r1, err := NewReader(name, 0, 4096, testOptions())
	require.NoError(t, err)
	require.NoError(t, r1.Close())

	r2, err := NewReader(name, 0, 4096, testOptions())
	require.NoError(t, err)
	defer r2.Close()
}

func TestInvalidBufferNameRejected(t *testing.T) {
	_, err := NewReader("not a valid name!", 0, 4096, testOptions())
	require.Error(t, err)
	assert.Equal(t, errs.KindInvalidArgument, errs.KindOf(err))
}
