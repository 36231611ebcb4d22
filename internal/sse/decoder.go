// Package sse decodes Server-Sent Events streams of chat completion chunks.
package sse

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"rainy/internal/core"
)

// DoneSentinel is the payload that ends an OpenAI-compatible stream
const DoneSentinel = "[DONE]"

// maxEventBytes bounds a single buffered event
const maxEventBytes = 8 << 20

// ErrIncompleteEvent is reported when the stream ends inside an event
var ErrIncompleteEvent = errors.New("stream ended inside an incomplete event")

// ParseError describes an event payload that could not be decoded
type ParseError struct {
	Payload string
	Err     error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("decode stream event: %v", e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// DecodeFunc turns one event payload into a chunk
type DecodeFunc func(payload []byte) (*core.ChatCompletionChunk, error)

// Decoder splits raw stream bytes into frames. Chunks may be split anywhere;
// bytes are buffered until an event's terminating blank line arrives.
// A Decoder is owned by one stream and is not safe for concurrent use.
type Decoder struct {
	decode DecodeFunc

	buf        []byte
	data       [][]byte
	hasData    bool
	fields     [][]byte // other fields of the pending event
	skipLF     bool
	discarding bool
	terminated bool
}

// NewDecoder returns a decoder that uses decode for every data payload.
// A nil decode uses plain JSON decoding into core.ChatCompletionChunk.
func NewDecoder(decode DecodeFunc) *Decoder {
	if decode == nil {
		decode = DecodeJSON
	}
	return &Decoder{decode: decode}
}

// Reset clears all buffered state so the decoder can serve a new stream
func (d *Decoder) Reset() {
	d.buf = d.buf[:0]
	d.data = nil
	d.hasData = false
	d.fields = nil
	d.skipLF = false
	d.discarding = false
	d.terminated = false
}

// Terminated reports whether the [DONE] sentinel has been seen
func (d *Decoder) Terminated() bool {
	return d.terminated
}

// Feed appends chunk and returns a frame for every event it completed, in order.
// After a Done frame all further input is ignored.
func (d *Decoder) Feed(chunk []byte) []core.StreamFrame {
	if d.terminated || len(chunk) == 0 {
		return nil
	}
	if d.skipLF {
		d.skipLF = false
		if chunk[0] == '\n' {
			chunk = chunk[1:]
		}
	}
	d.buf = append(d.buf, chunk...)

	var frames []core.StreamFrame
	for !d.terminated {
		line, ok := d.nextLine()
		if !ok {
			break
		}
		if frame, emitted := d.processLine(line); emitted {
			frames = append(frames, frame)
		}
	}

	if d.terminated {
		d.buf = nil
		return frames
	}
	if len(d.buf)+d.pendingSize() > maxEventBytes {
		frames = append(frames, parseErrorFrame("", fmt.Errorf("event exceeds %d bytes", maxEventBytes)))
		d.buf = nil
		d.data = nil
		d.hasData = false
		d.fields = nil
		d.discarding = true
	}
	return frames
}

// Close flushes the decoder at end of stream. A non-empty unterminated event
// becomes a ParseError frame; comments and blank tails are dropped silently.
func (d *Decoder) Close() []core.StreamFrame {
	if d.terminated {
		return nil
	}
	if len(d.buf) > 0 && !d.discarding {
		d.processField(d.buf)
	}
	d.buf = nil

	var frames []core.StreamFrame
	payload := bytes.TrimSpace(bytes.Join(d.data, []byte("\n")))
	if len(payload) == 0 {
		payload = bytes.Join(d.fields, []byte("\n"))
	}
	if len(payload) > 0 {
		frames = append(frames, parseErrorFrame(string(payload), ErrIncompleteEvent))
	}
	d.data = nil
	d.hasData = false
	d.fields = nil
	d.terminated = true
	return frames
}

// processLine handles one complete line. An empty line dispatches the event.
func (d *Decoder) processLine(line []byte) (core.StreamFrame, bool) {
	if len(line) == 0 {
		if d.discarding {
			d.discarding = false
			return core.StreamFrame{}, false
		}
		return d.dispatch()
	}
	if d.discarding {
		return core.StreamFrame{}, false
	}
	d.processField(line)
	return core.StreamFrame{}, false
}

func (d *Decoder) processField(line []byte) {
	if len(line) == 0 || line[0] == ':' {
		return
	}
	name, value, found := bytes.Cut(line, []byte(":"))
	if !found {
		value = nil
	}
	if string(name) != "data" {
		// event, id and retry carry nothing the chunk decoder needs
		if t := bytes.TrimSpace(line); len(t) > 0 {
			d.fields = append(d.fields, bytes.Clone(t))
		}
		return
	}
	value = bytes.TrimPrefix(value, []byte(" "))
	d.data = append(d.data, bytes.Clone(value))
	d.hasData = true
}

func (d *Decoder) dispatch() (core.StreamFrame, bool) {
	d.fields = nil
	if !d.hasData {
		return core.StreamFrame{}, false
	}
	payload := bytes.Join(d.data, []byte("\n"))
	d.data = nil
	d.hasData = false

	trimmed := bytes.TrimSpace(payload)
	if string(trimmed) == DoneSentinel {
		d.terminated = true
		return core.StreamFrame{Kind: core.FrameDone}, true
	}
	if len(trimmed) == 0 {
		return core.StreamFrame{}, false
	}

	chunk, err := d.decode(payload)
	if err != nil {
		return parseErrorFrame(string(payload), err), true
	}
	return core.StreamFrame{Kind: core.FrameData, Chunk: chunk}, true
}

func (d *Decoder) pendingSize() int {
	n := 0
	for _, l := range d.data {
		n += len(l) + 1
	}
	for _, l := range d.fields {
		n += len(l) + 1
	}
	return n
}

func parseErrorFrame(payload string, err error) core.StreamFrame {
	return core.StreamFrame{Kind: core.FrameParseError, Err: &ParseError{Payload: payload, Err: err}}
}

// nextLine consumes the first line terminated by CRLF, LF or CR. A CR that
// ends the buffer terminates the line; an LF arriving next is then skipped.
func (d *Decoder) nextLine() ([]byte, bool) {
	i := bytes.IndexAny(d.buf, "\r\n")
	if i < 0 {
		return nil, false
	}
	line := d.buf[:i]
	if d.buf[i] == '\r' {
		if i+1 < len(d.buf) && d.buf[i+1] == '\n' {
			d.buf = d.buf[i+2:]
			return line, true
		}
		if i+1 == len(d.buf) {
			d.skipLF = true
		}
	}
	d.buf = d.buf[i+1:]
	return line, true
}

// DecodeJSON decodes an OpenAI-compatible chunk payload
func DecodeJSON(payload []byte) (*core.ChatCompletionChunk, error) {
	var chunk core.ChatCompletionChunk
	if err := json.Unmarshal(payload, &chunk); err != nil {
		return nil, err
	}
	return &chunk, nil
}

// DecodeFor returns a decoder that also recognises in-band provider errors
// using the provider's error shape. Such payloads are reported as a
// ParseError wrapping a *core.ClassifiedError.
func DecodeFor(provider string) DecodeFunc {
	extract := core.ExtractorFor(provider)
	return func(payload []byte) (*core.ChatCompletionChunk, error) {
		if info := extract(payload); info.Present {
			ce := core.NewClassifiedError(core.KindProviderError, false, 0, info.Message, nil, nil)
			ce.Provider = provider
			ce.Code = info.Code
			return nil, ce
		}
		return DecodeJSON(payload)
	}
}
