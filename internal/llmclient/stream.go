package llmclient

import (
	"context"
	"errors"
	"io"
	"iter"
	"mime"
	"net/http"
	"sync"
	"time"

	"rainy/internal/core"
	"rainy/internal/retry"
	"rainy/internal/sse"
)

// streamReadSize is the size of a single body read
const streamReadSize = 32 * 1024

// ErrStreamClosed is returned by Next once the stream has been closed
var ErrStreamClosed = errors.New("stream closed")

// OpenStream connects a streaming request. Only establishing the connection is
// retried; once frames start flowing a failure ends the stream. Every failed
// connection attempt has its body closed before the next one starts.
//
// Close, and breaking out of All, release the connection before they return.
// Canceling ctx also releases it, but asynchronously: the body is closed on
// the context's AfterFunc goroutine, and a pending Next returns once that
// close unblocks its read.
func (c *Client) OpenStream(ctx context.Context, req Request, decode sse.DecodeFunc) (*Stream, error) {
	ctx, requestID := core.EnsureRequestID(ctx)
	info := c.requestInfo(req, requestID, true)
	if c.hooks.OnRequestStart != nil {
		ctx = c.hooks.OnRequestStart(ctx, info)
	}

	start := time.Now()
	obs := &attemptObserver{ctx: ctx, hooks: c.hooks, info: info}
	resp, err := retry.Execute(ctx, c.policy(ctx, req), func(ctx context.Context, attempt int) retry.Outcome[*http.Response] {
		return c.connect(ctx, req, requestID)
	}, c.retryOptions(info.Operation, obs)...)
	latency := time.Since(start)

	if err != nil {
		status := 0
		if ce, ok := core.AsClassified(err); ok {
			status = ce.RawStatus
		}
		c.end(ctx, info, status, obs.attempts, latency, err)
		return nil, err
	}
	c.end(ctx, info, resp.StatusCode, obs.attempts, latency, nil)

	md := Metadata(c.config.ProviderName, &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Attempts:   obs.attempts,
		Latency:    latency,
		RequestID:  requestID,
	})
	return newStream(ctx, c.config.ProviderName, requestID, resp.Body, sse.NewDecoder(decode), c.hooks, md), nil
}

// connect performs one connection attempt. On success the body is left open
// for the stream; on failure it is always closed.
func (c *Client) connect(ctx context.Context, req Request, requestID string) retry.Outcome[*http.Response] {
	if ce := c.admit(ctx, requestID); ce != nil {
		return retry.Failure[*http.Response](ce)
	}

	httpReq, err := c.buildRequest(ctx, req, requestID)
	if err != nil {
		return retry.Failure[*http.Response](c.requestBuildError(err, requestID))
	}
	httpReq.Header.Set("Accept", "text/event-stream")
	httpReq.Header.Set("Cache-Control", "no-cache")

	resp, err := c.doer.Do(httpReq)
	if err != nil {
		return retry.Failure[*http.Response](c.transportFailure(err, requestID))
	}

	ok := resp.StatusCode >= 200 && resp.StatusCode <= 299
	if ok && !isJSONResponse(resp.Header) {
		c.record(nil)
		return retry.Success(resp)
	}

	body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodySize))
	_ = resp.Body.Close()
	if readErr != nil {
		return retry.Failure[*http.Response](c.transportFailure(readErr, requestID))
	}

	ce := core.Classify(core.Attempt{
		Provider:   c.config.ProviderName,
		RequestID:  requestID,
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
	})
	if ce == nil {
		// a 2xx JSON body without an error object is not a stream
		ce = core.NewClassifiedError(core.KindMalformed, false, resp.StatusCode,
			"expected event stream, got "+resp.Header.Get("Content-Type"), nil, nil)
		ce.Provider = c.config.ProviderName
		ce.RequestID = requestID
	}
	c.record(ce)
	return retry.Failure[*http.Response](ce)
}

func isJSONResponse(h http.Header) bool {
	mediaType, _, err := mime.ParseMediaType(h.Get("Content-Type"))
	return err == nil && mediaType == "application/json"
}

// Stream is an open streaming session. Next must be called from a single
// goroutine; Close may be called from any goroutine.
type Stream struct {
	ctx       context.Context
	provider  string
	requestID string
	body      io.ReadCloser
	decoder   *sse.Decoder
	hooks     Hooks
	metadata  *core.ResponseMetadata

	queue []core.StreamFrame
	buf   []byte
	// end is io.EOF after a clean finish or the terminal error
	end error

	mu       sync.Mutex
	closeErr error

	bodyOnce    sync.Once
	bodyErr     error
	stopSession func() bool
}

func newStream(ctx context.Context, provider, requestID string, body io.ReadCloser, decoder *sse.Decoder, hooks Hooks, md *core.ResponseMetadata) *Stream {
	s := &Stream{
		ctx:       ctx,
		provider:  provider,
		requestID: requestID,
		body:      body,
		decoder:   decoder,
		hooks:     hooks,
		metadata:  md,
		buf:       make([]byte, streamReadSize),
	}
	s.stopSession = context.AfterFunc(ctx, func() {
		s.shutdown(s.interrupted(ctx.Err()))
	})
	return s
}

// Metadata returns what is known about the exchange from its response headers
func (s *Stream) Metadata() *core.ResponseMetadata {
	return s.metadata
}

// Next returns the next frame. It returns io.EOF after the Done frame or when
// the body ends, ErrStreamClosed after Close, and a non-retryable
// *core.ClassifiedError when the session is canceled or the connection fails.
// ParseError frames are returned with a nil error; the stream continues.
func (s *Stream) Next(ctx context.Context) (core.StreamFrame, error) {
	for {
		if err := s.closedErr(); err != nil {
			return core.StreamFrame{}, err
		}
		if len(s.queue) > 0 {
			frame := s.queue[0]
			s.queue = s.queue[1:]
			if s.hooks.OnStreamFrame != nil {
				s.hooks.OnStreamFrame(s.ctx, s.provider, frame.Kind)
			}
			return frame, nil
		}
		if s.end != nil {
			return core.StreamFrame{}, s.end
		}
		if err := ctx.Err(); err != nil {
			s.shutdown(s.interrupted(err))
			continue
		}
		s.fill(ctx)
	}
}

// fill performs one body read and queues the frames it completes
func (s *Stream) fill(ctx context.Context) {
	stop := context.AfterFunc(ctx, func() {
		s.shutdown(s.interrupted(ctx.Err()))
	})
	n, err := s.body.Read(s.buf)
	stop()

	if n > 0 {
		s.queue = append(s.queue, s.decoder.Feed(s.buf[:n])...)
		if s.decoder.Terminated() {
			s.finish(io.EOF)
			return
		}
	}
	switch {
	case err == nil:
	case errors.Is(err, io.EOF):
		s.queue = append(s.queue, s.decoder.Close()...)
		s.finish(io.EOF)
	case s.closedErr() != nil:
		// the read failed because the body was closed underneath it
	default:
		ce := core.Classify(core.Attempt{Provider: s.provider, RequestID: s.requestID, Err: err})
		ce.Retryable = false
		ce.Message = "stream interrupted: " + ce.Message
		s.finish(ce)
	}
}

// finish records how the stream ended and releases the connection. Frames
// already queued are still delivered.
func (s *Stream) finish(end error) {
	s.end = end
	s.stopSession()
	s.closeBody()
}

// All returns an iterator over the remaining frames. The stream is closed
// when the loop ends, including when the consumer breaks out early.
// A terminal error is yielded once with an empty frame; io.EOF is not yielded.
func (s *Stream) All(ctx context.Context) iter.Seq2[core.StreamFrame, error] {
	return func(yield func(core.StreamFrame, error) bool) {
		defer func() {
			_ = s.Close()
		}()
		for {
			frame, err := s.Next(ctx)
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				yield(core.StreamFrame{}, err)
				return
			}
			if !yield(frame, nil) {
				return
			}
		}
	}
}

// Close releases the connection. It is safe to call more than once and from
// any goroutine; the body is closed before Close returns.
func (s *Stream) Close() error {
	return s.shutdown(ErrStreamClosed)
}

func (s *Stream) shutdown(cause error) error {
	s.mu.Lock()
	if s.closeErr == nil {
		s.closeErr = cause
	}
	s.mu.Unlock()
	s.stopSession()
	return s.closeBody()
}

func (s *Stream) closeBody() error {
	s.bodyOnce.Do(func() {
		s.bodyErr = s.body.Close()
	})
	return s.bodyErr
}

func (s *Stream) closedErr() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeErr
}

// interrupted converts a context error into the error a canceled stream reports
func (s *Stream) interrupted(err error) error {
	kind := core.KindNetwork
	msg := "stream canceled"
	if errors.Is(err, context.DeadlineExceeded) {
		kind = core.KindTimeout
		msg = "stream deadline exceeded"
	}
	ce := core.NewClassifiedError(kind, false, 0, msg, nil, err)
	ce.Provider = s.provider
	ce.RequestID = s.requestID
	return ce
}
