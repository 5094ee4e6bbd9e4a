package ring

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modelingevolution/zerobuffer/errs"
	"github.com/modelingevolution/zerobuffer/oieb"
	"github.com/modelingevolution/zerobuffer/platform"
)

// fakeSemaphore is an in-process counting semaphore standing in for a
// named OS semaphore, so ring tests exercise the write/read engine
// without touching shared memory or cgo.
type fakeSemaphore struct {
	mu    sync.Mutex
	count int
}

func (s *fakeSemaphore) Post() error {
	s.mu.Lock()
	s.count++
	s.mu.Unlock()
	return nil
}

func (s *fakeSemaphore) Wait(timeout time.Duration) (platform.WaitResult, error) {
	deadline := time.Now().Add(timeout)
	for {
		s.mu.Lock()
		if s.count > 0 {
			s.count--
			s.mu.Unlock()
			return platform.Signalled, nil
		}
		s.mu.Unlock()
		if time.Now().After(deadline) {
			return platform.TimedOut, nil
		}
		time.Sleep(time.Millisecond)
	}
}

func (s *fakeSemaphore) Close() error { return nil }

func alwaysAlive(int) bool { return true }

func newTestRing(payloadSize uint64) (*Writer, *Reader, *oieb.View) {
	region := make([]byte, oieb.Size)
	ov, _ := oieb.New(region)
	ov.Init(0, payloadSize, 1)
	payload := make([]byte, payloadSize)

	semW := &fakeSemaphore{}
	semR := &fakeSemaphore{}

	w := NewWriter(payload, ov, semW, semR, 100*time.Millisecond, alwaysAlive, nil, nil)
	r := NewReader(payload, ov, semR, semW, 100*time.Millisecond, alwaysAlive)
	return w, r, ov
}

func TestWriteReadRoundTrip(t *testing.T) {
	w, r, _ := newTestRing(4096)

	require.NoError(t, w.WriteFrame([]byte("hello")))
	f, err := r.Read()
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), f.Bytes())
	assert.Equal(t, uint64(1), f.Sequence())
	require.NoError(t, f.Release())
}

func TestSequenceNumbersAreContiguous(t *testing.T) {
	w, r, _ := newTestRing(4096)

	for i := 0; i < 5; i++ {
		require.NoError(t, w.WriteFrame([]byte{byte(i)}))
	}
	for i := 0; i < 5; i++ {
		f, err := r.Read()
		require.NoError(t, err)
		assert.Equal(t, uint64(i+1), f.Sequence())
		require.NoError(t, f.Release())
	}
}

func TestWrapMarkerIsTransparentToReader(t *testing.T) {
	// Ring of 128 bytes. Two 40-byte-payload frames (56 bytes each on the
	// wire) leave the write cursor at 112 with only 16 contiguous bytes
	// left at the tail — just enough for a marker but not for a third
	// frame, forcing a wrap.
	w, r, _ := newTestRing(128)

	require.NoError(t, w.WriteFrame(make([]byte, 40))) // seq 1, occupies [0,56)
	require.NoError(t, w.WriteFrame(make([]byte, 40))) // seq 2, occupies [56,112)

	f1, err := r.Read()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), f1.Sequence())
	require.NoError(t, f1.Release())

	require.NoError(t, w.WriteFrame(make([]byte, 30))) // seq 3: must wrap to offset 0

	f2, err := r.Read()
	require.NoError(t, err)
	assert.Equal(t, uint64(2), f2.Sequence())
	require.NoError(t, f2.Release())

	f3, err := r.Read()
	require.NoError(t, err)
	assert.Equal(t, uint64(3), f3.Sequence(), "wrap marker must not consume a sequence number")
	assert.Len(t, f3.Bytes(), 30)
	require.NoError(t, f3.Release())
}

func TestReserveRejectsZeroLength(t *testing.T) {
	w, _, _ := newTestRing(4096)
	_, err := w.Reserve(0)
	require.Error(t, err)
	assert.Equal(t, errs.KindInvalidFrameSize, errs.KindOf(err))
}

func TestReserveRejectsFrameLargerThanRing(t *testing.T) {
	w, _, _ := newTestRing(64)
	_, err := w.Reserve(1000)
	require.Error(t, err)
	assert.Equal(t, errs.KindFrameTooLarge, errs.KindOf(err))
}

func TestDoubleReleasePanics(t *testing.T) {
	w, r, _ := newTestRing(4096)
	require.NoError(t, w.WriteFrame([]byte("x")))
	f, err := r.Read()
	require.NoError(t, err)
	require.NoError(t, f.Release())

	assert.Panics(t, func() { _ = f.Release() })
}

func TestReadBeforeReleaseIsRejected(t *testing.T) {
	w, r, _ := newTestRing(4096)
	require.NoError(t, w.WriteFrame([]byte("a")))
	require.NoError(t, w.WriteFrame([]byte("b")))

	_, err := r.Read()
	require.NoError(t, err)

	_, err = r.Read()
	require.Error(t, err, "a second Read before Release must fail")
}

func TestReadTimesOutWhenRingIsEmpty(t *testing.T) {
	_, r, _ := newTestRing(4096)
	_, err := r.Read()
	require.Error(t, err)
	assert.Equal(t, errs.KindTimeout, errs.KindOf(err))
}

func TestReserveBlocksUntilSpaceIsReclaimed(t *testing.T) {
	w, r, _ := newTestRing(80) // room for exactly one 44-byte payload frame

	require.NoError(t, w.WriteFrame(make([]byte, 44)))

	done := make(chan error, 1)
	go func() {
		_, err := w.Reserve(44)
		done <- err
	}()

	// Give the writer goroutine a chance to block on sem-r.
	time.Sleep(10 * time.Millisecond)

	f, err := r.Read()
	require.NoError(t, err)
	require.NoError(t, f.Release())

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("writer did not unblock after reader released space")
	}
}
