// Package duplex layers a request/response channel on top of two
// zerobuffer rings (spec.md §4.8). The request ring is created by the
// server, which consumes it as a zerobuffer.Reader; the client attaches
// to it as a zerobuffer.Writer. The response ring is created by the
// client, which consumes it as a zerobuffer.Reader; the server attaches
// to it as a zerobuffer.Writer, retrying on the attachBackoff schedule
// and failing if the client has not created it by the end of that
// schedule — the same reconnect-with-backoff shape the teacher
// uses for its exchange connections, adapted here to "wait for the
// peer-created resource to appear" instead of "wait for a socket to
// reconnect".
package duplex

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/modelingevolution/zerobuffer"
	"github.com/modelingevolution/zerobuffer/errs"
	"github.com/modelingevolution/zerobuffer/internal/metrics"
	"github.com/modelingevolution/zerobuffer/internal/obslog"
)

func requestName(base string) string  { return base + "_request" }
func responseName(base string) string { return base + "_response" }

// Response frames carry a one-byte status envelope ahead of the payload
// so the response ring's own sequence number always corresponds 1:1 to
// the request that produced it (spec.md §4.8), even when the handler
// itself fails: a failed request still produces a response frame, just
// one carrying statusError instead of being skipped.
const (
	statusOK    byte = 0
	statusError byte = 1
)

func encodeResponse(status byte, payload []byte) []byte {
	buf := make([]byte, 1+len(payload))
	buf[0] = status
	copy(buf[1:], payload)
	return buf
}

// RemoteError is returned by Client.ReceiveResponse when the server's
// handler failed for the corresponding request; Message is the error
// text the server observed.
type RemoteError struct {
	Message string
}

func (e *RemoteError) Error() string { return "duplex: remote handler error: " + e.Message }

// Handler processes one request payload and returns the response
// payload to write back with the same sequence number.
type Handler func(request []byte) ([]byte, error)

// attachBackoff is the schedule Server.Serve uses while waiting for the
// client to create the response ring.
var attachBackoff = []time.Duration{50 * time.Millisecond, 100 * time.Millisecond, 250 * time.Millisecond, 500 * time.Millisecond, time.Second}

// Server is the immutable server side of a duplex channel: it owns the
// request ring as a reader and the response ring as a writer, and
// processes requests single-threaded, preserving sequence numbers
// across the two rings (spec.md §4.8's SingleThread processing mode).
type Server struct {
	name         string
	metadataSize uint64
	payloadSize  uint64
	opts         zerobuffer.Options
	log          *zap.Logger

	requests  *zerobuffer.Reader
	responses *zerobuffer.Writer
}

// NewServer creates the request ring for base name name. The response
// ring does not exist yet; Serve attaches to it once a client creates
// it.
func NewServer(name string, metadataSize, payloadSize uint64, opts zerobuffer.Options) (*Server, error) {
	opts = withDefaultLogger(opts)
	reqR, err := zerobuffer.NewReader(requestName(name), metadataSize, payloadSize, opts)
	if err != nil {
		return nil, errs.Newf(errs.KindResourceExhausted, err, "create request ring for %q", name)
	}
	return &Server{
		name: name, metadataSize: metadataSize, payloadSize: payloadSize,
		opts: opts, log: opts.Logger, requests: reqR,
	}, nil
}

// Serve attaches to the client-created response ring (retrying on the
// attachBackoff schedule, then one final attempt whose error is
// returned if the client has still not created it) and then processes
// requests until ctx is cancelled or a structural error poisons the
// channel.
func (s *Server) Serve(ctx context.Context, handler Handler) error {
	respW, err := s.attachResponses(ctx)
	if err != nil {
		return err
	}
	s.responses = respW

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.loop(ctx, handler)
	})
	return g.Wait()
}

func (s *Server) attachResponses(ctx context.Context) (*zerobuffer.Writer, error) {
	for _, wait := range attachBackoff {
		w, err := zerobuffer.NewWriter(responseName(s.name), s.opts)
		if err == nil {
			return w, nil
		}
		if errs.KindOf(err) != errs.KindNotFound {
			return nil, err
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
	}
	return zerobuffer.NewWriter(responseName(s.name), s.opts)
}

func (s *Server) loop(ctx context.Context, handler Handler) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		req, err := s.requests.ReadFrame()
		if err != nil {
			if errs.KindOf(err) == errs.KindTimeout {
				continue
			}
			return err
		}

		seq := req.Sequence()
		payload := append([]byte(nil), req.Bytes()...)
		if err := req.Release(); err != nil {
			return err
		}

		resp, handlerErr := handler(payload)
		var frame []byte
		if handlerErr != nil {
			s.log.Warn("duplex handler error", zap.String("name", s.name), zap.Uint64("sequence", seq), zap.Error(handlerErr))
			frame = encodeResponse(statusError, []byte(handlerErr.Error()))
		} else {
			frame = encodeResponse(statusOK, resp)
		}
		// Written unconditionally, success or failure, so the response
		// ring's auto-incrementing sequence never drifts from the
		// request it answers.
		if err := s.responses.WriteFrame(frame); err != nil {
			return err
		}
	}
}

// Close releases both rings.
func (s *Server) Close() error {
	var first error
	if s.responses != nil {
		first = s.responses.Close()
	}
	if err := s.requests.Close(); err != nil && first == nil {
		first = err
	}
	return first
}

// Client is the mirror of Server: it attaches as a writer to the
// request ring and creates the response ring as a reader.
type Client struct {
	name      string
	requests  *zerobuffer.Writer
	responses *zerobuffer.Reader
	met       *metrics.Set
}

// NewClient attaches to an existing server's request ring (failing with
// kind NotFound if the server has not started) and creates the response
// ring.
func NewClient(name string, metadataSize, payloadSize uint64, opts zerobuffer.Options) (*Client, error) {
	opts = withDefaultLogger(opts)
	reqW, err := zerobuffer.NewWriter(requestName(name), opts)
	if err != nil {
		return nil, err
	}
	respR, err := zerobuffer.NewReader(responseName(name), metadataSize, payloadSize, opts)
	if err != nil {
		reqW.Close()
		return nil, errs.Newf(errs.KindResourceExhausted, err, "create response ring for %q", name)
	}
	return &Client{name: name, requests: reqW, responses: respR, met: opts.Metrics}, nil
}

// SendRequest writes a request frame and returns its sequence number.
func (c *Client) SendRequest(payload []byte) (uint64, error) {
	resv, err := c.requests.Reserve(uint64(len(payload)))
	if err != nil {
		return 0, err
	}
	copy(resv.Bytes(), payload)
	seq := resv.Sequence()
	if err := resv.Commit(); err != nil {
		return 0, err
	}
	return seq, nil
}

// ReceiveResponse returns the next response in FIFO order. The caller
// correlates it to a prior SendRequest by sequence number. If the
// server's handler failed for this request, err is a *RemoteError and
// payload is nil; the sequence returned is still valid and still
// matches the corresponding request, since the server writes one
// response frame per request regardless of handler outcome.
func (c *Client) ReceiveResponse() (sequence uint64, payload []byte, err error) {
	f, err := c.responses.ReadFrame()
	if err != nil {
		return 0, nil, err
	}
	seq := f.Sequence()
	body := f.Bytes()
	if len(body) == 0 {
		if relErr := f.Release(); relErr != nil {
			return 0, nil, relErr
		}
		return 0, nil, errs.New(errs.KindInvalidFrameSize, "response frame missing status envelope")
	}
	status := body[0]
	payload = append([]byte(nil), body[1:]...)
	if relErr := f.Release(); relErr != nil {
		return 0, nil, relErr
	}
	if status == statusError {
		return seq, nil, &RemoteError{Message: string(payload)}
	}
	return seq, payload, nil
}

// Call sends request and waits for its matching response, observing the
// round trip latency (spec.md §9's duplex round-trip metric). It is the
// synchronous convenience path; SendRequest/ReceiveResponse remain
// available separately for callers that pipeline requests ahead of
// their responses.
func (c *Client) Call(request []byte) (sequence uint64, payload []byte, err error) {
	start := time.Now()
	if _, err := c.SendRequest(request); err != nil {
		return 0, nil, err
	}
	seq, payload, err := c.ReceiveResponse()
	c.met.ObserveRoundTrip(time.Since(start).Seconds())
	return seq, payload, err
}

// Close releases both rings. The response ring is also unlinked, since
// the client created it and owns its lifetime.
func (c *Client) Close() error {
	var first error
	if err := c.requests.Close(); err != nil {
		first = err
	}
	if err := c.responses.Close(); err != nil && first == nil {
		first = err
	}
	return first
}

func withDefaultLogger(opts zerobuffer.Options) zerobuffer.Options {
	if opts.Logger == nil {
		opts.Logger = obslog.Nop()
	}
	return opts
}
