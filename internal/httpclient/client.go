// Package httpclient builds the pooled HTTP client shared by every provider.
package httpclient

import (
	"net"
	"net/http"
	"time"

	"rainy/config"
)

// Config shapes the shared transport
type Config struct {
	Pool     Pool
	Timeouts Timeouts

	// Compression advertises br, gzip and deflate and decodes the response
	Compression bool
}

// Pool sizes the keep-alive connection pool. Every provider host shares it.
type Pool struct {
	MaxIdleConns        int
	MaxIdleConnsPerHost int
	IdleConnTimeout     time.Duration
}

// Timeouts bound each phase of a request. A zero Request timeout leaves long
// streams to context cancellation.
type Timeouts struct {
	Request        time.Duration
	Dial           time.Duration
	KeepAlive      time.Duration
	TLSHandshake   time.Duration
	ResponseHeader time.Duration
}

// DefaultConfig allows ten minutes for a completion, long enough for slow
// reasoning models to start answering.
func DefaultConfig() Config {
	return Config{
		Pool: Pool{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 20,
			IdleConnTimeout:     90 * time.Second,
		},
		Timeouts: Timeouts{
			Request:        600 * time.Second,
			Dial:           30 * time.Second,
			KeepAlive:      30 * time.Second,
			TLSHandshake:   10 * time.Second,
			ResponseHeader: 600 * time.Second,
		},
		Compression: true,
	}
}

// FromSettings applies the http section of the configuration to the
// defaults. Non-positive timeouts keep the default.
func FromSettings(s config.HTTPConfig) Config {
	c := DefaultConfig()
	if s.Timeout > 0 {
		c.Timeouts.Request = time.Duration(s.Timeout) * time.Second
	}
	if s.ResponseHeaderTimeout > 0 {
		c.Timeouts.ResponseHeader = time.Duration(s.ResponseHeaderTimeout) * time.Second
	}
	c.Compression = !s.DisableCompression
	return c
}

// New returns a client over a fresh pooled transport
func New(c Config) *http.Client {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   c.Timeouts.Dial,
			KeepAlive: c.Timeouts.KeepAlive,
		}).DialContext,
		MaxIdleConns:          c.Pool.MaxIdleConns,
		MaxIdleConnsPerHost:   c.Pool.MaxIdleConnsPerHost,
		IdleConnTimeout:       c.Pool.IdleConnTimeout,
		TLSHandshakeTimeout:   c.Timeouts.TLSHandshake,
		ResponseHeaderTimeout: c.Timeouts.ResponseHeader,
		ForceAttemptHTTP2:     true,
		ExpectContinueTimeout: time.Second,
	}

	var rt http.RoundTripper = transport
	if c.Compression {
		rt = &DecompressingTransport{Base: transport}
	}
	return &http.Client{Transport: rt, Timeout: c.Timeouts.Request}
}

// NewDefault is New(DefaultConfig())
func NewDefault() *http.Client {
	return New(DefaultConfig())
}
