package httpclient

import (
	"compress/flate"
	"compress/gzip"
	"io"
	"net/http"
	"strings"

	"github.com/andybalholm/brotli"
)

// acceptEncoding is advertised when the caller has not chosen an encoding
const acceptEncoding = "br, gzip, deflate"

// DecompressingTransport negotiates br, gzip and deflate and hands callers a
// decoded body. Decoding is incremental so event streams are not buffered.
type DecompressingTransport struct {
	Base http.RoundTripper
}

// RoundTrip implements http.RoundTripper
func (t *DecompressingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}

	negotiated := false
	if req.Header.Get("Accept-Encoding") == "" {
		req = req.Clone(req.Context())
		req.Header.Set("Accept-Encoding", acceptEncoding)
		negotiated = true
	}

	resp, err := base.RoundTrip(req)
	if err != nil || !negotiated {
		return resp, err
	}

	encoding := strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding")))
	var body io.ReadCloser
	switch encoding {
	case "br":
		body = &decodedBody{Reader: brotli.NewReader(resp.Body), raw: resp.Body}
	case "gzip":
		body = &decodedBody{Reader: &lazyGzip{src: resp.Body}, raw: resp.Body}
	case "deflate":
		fr := flate.NewReader(resp.Body)
		body = &decodedBody{Reader: fr, raw: resp.Body, closeFn: fr.Close}
	default:
		return resp, nil
	}

	resp.Body = body
	resp.Header.Del("Content-Encoding")
	resp.Header.Del("Content-Length")
	resp.ContentLength = -1
	resp.Uncompressed = true
	return resp, nil
}

// decodedBody reads through a decoder and closes the underlying body
type decodedBody struct {
	io.Reader
	raw     io.Closer
	closeFn func() error
}

func (b *decodedBody) Close() error {
	if b.closeFn != nil {
		_ = b.closeFn()
	}
	return b.raw.Close()
}

// lazyGzip defers reading the gzip header to the first Read so that
// RoundTrip never blocks on the body.
type lazyGzip struct {
	src io.Reader
	zr  *gzip.Reader
	err error
}

func (g *lazyGzip) Read(p []byte) (int, error) {
	if g.zr == nil && g.err == nil {
		g.zr, g.err = gzip.NewReader(g.src)
	}
	if g.err != nil {
		return 0, g.err
	}
	return g.zr.Read(p)
}
