package duplex

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modelingevolution/zerobuffer"
)

var testNameCounter int64

func uniqueName() string {
	n := atomic.AddInt64(&testNameCounter, 1)
	return fmt.Sprintf("zb-duplex-%d-%d", time.Now().UnixNano(), n)
}

func echoUpper(req []byte) ([]byte, error) {
	return []byte(strings.ToUpper(string(req))), nil
}

func TestServeEchoesRequestsInOrder(t *testing.T) {
	name := uniqueName()
	opts := zerobuffer.Options{Timeout: 500 * time.Millisecond}

	srv, err := NewServer(name, 0, 4096, opts)
	require.NoError(t, err)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.Serve(ctx, echoUpper) }()

	client, err := NewClient(name, 0, 4096, opts)
	require.NoError(t, err)
	defer client.Close()

	seq1, err := client.SendRequest([]byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, uint64(1), seq1)

	gotSeq, payload, err := client.ReceiveResponse()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), gotSeq)
	assert.Equal(t, "HELLO", string(payload))

	seq2, err := client.SendRequest([]byte("world"))
	require.NoError(t, err)
	assert.Equal(t, uint64(2), seq2)

	gotSeq, payload, err = client.ReceiveResponse()
	require.NoError(t, err)
	assert.Equal(t, uint64(2), gotSeq)
	assert.Equal(t, "WORLD", string(payload))

	cancel()
	select {
	case err := <-serveErr:
		assert.Error(t, err, "Serve should return ctx.Err() after cancellation")
	case <-time.After(time.Second):
		t.Fatal("Serve did not return after context cancellation")
	}
}

func TestNewClientFailsWhenServerAbsent(t *testing.T) {
	name := uniqueName()
	opts := zerobuffer.Options{Timeout: 100 * time.Millisecond}

	_, err := NewClient(name, 0, 4096, opts)
	require.Error(t, err)
}

// A handler error must still produce a response frame (carrying
// statusError) so the response ring's sequence number keeps matching
// the request that triggered it instead of drifting out of lockstep.
func TestHandlerErrorPreservesSequenceCorrelation(t *testing.T) {
	name := uniqueName()
	opts := zerobuffer.Options{Timeout: 500 * time.Millisecond}

	srv, err := NewServer(name, 0, 4096, opts)
	require.NoError(t, err)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	handler := func(req []byte) ([]byte, error) {
		if string(req) == "bad" {
			return nil, errors.New("refused")
		}
		return []byte(strings.ToUpper(string(req))), nil
	}

	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.Serve(ctx, handler) }()

	client, err := NewClient(name, 0, 4096, opts)
	require.NoError(t, err)
	defer client.Close()

	seq1, err := client.SendRequest([]byte("bad"))
	require.NoError(t, err)
	assert.Equal(t, uint64(1), seq1)

	gotSeq, payload, err := client.ReceiveResponse()
	require.Error(t, err)
	var remoteErr *RemoteError
	require.ErrorAs(t, err, &remoteErr)
	assert.Equal(t, "refused", remoteErr.Message)
	assert.Nil(t, payload)
	assert.Equal(t, uint64(1), gotSeq, "failed request still consumes sequence 1 on the response ring")

	seq2, err := client.SendRequest([]byte("ok"))
	require.NoError(t, err)
	assert.Equal(t, uint64(2), seq2)

	gotSeq, payload, err = client.ReceiveResponse()
	require.NoError(t, err)
	assert.Equal(t, uint64(2), gotSeq, "next response's sequence must still match its request")
	assert.Equal(t, "OK", string(payload))

	cancel()
	<-serveErr
}

func TestCallReturnsMatchingResponse(t *testing.T) {
	name := uniqueName()
	opts := zerobuffer.Options{Timeout: 500 * time.Millisecond}

	srv, err := NewServer(name, 0, 4096, opts)
	require.NoError(t, err)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go srv.Serve(ctx, echoUpper)

	client, err := NewClient(name, 0, 4096, opts)
	require.NoError(t, err)
	defer client.Close()

	seq, payload, err := client.Call([]byte("round-trip"))
	require.NoError(t, err)
	assert.Equal(t, uint64(1), seq)
	assert.Equal(t, "ROUND-TRIP", string(payload))
}
