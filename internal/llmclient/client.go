// Package llmclient provides the HTTP client shared by every provider with:
// - Request marshaling/unmarshaling
// - Retries through retry.Execute with classified errors
// - Circuit breaking and client-side rate limiting
// - Streaming sessions decoded from SSE
package llmclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"rainy/internal/core"
	"rainy/internal/httpclient"
	"rainy/internal/retry"
)

// maxResponseBodySize caps how much of a non-streaming body is read
const maxResponseBodySize int64 = 10 * 1024 * 1024

// Config holds configuration for the LLM client
type Config struct {
	// ProviderName identifies the provider for error extraction, logs and metrics
	ProviderName string

	// BaseURL is the API base URL
	BaseURL string

	// Retry is the default policy for every call made by this client
	Retry retry.Policy

	// CircuitBreaker is optional; nil disables it
	CircuitBreaker *CircuitBreakerConfig

	// RateLimitRPM limits attempts per minute; 0 disables it
	RateLimitRPM int

	// UserAgent is sent on every request when set
	UserAgent string
}

// DefaultConfig returns default client configuration
func DefaultConfig(providerName, baseURL string) Config {
	return Config{
		ProviderName: providerName,
		BaseURL:      baseURL,
		Retry:        retry.DefaultPolicy(),
		CircuitBreaker: &CircuitBreakerConfig{
			FailureThreshold: 5,
			SuccessThreshold: 2,
			Timeout:          30 * time.Second,
		},
	}
}

// HeaderSetter is a function that sets headers on an HTTP request
type HeaderSetter func(req *http.Request)

// Doer sends one HTTP request. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client is a base HTTP client for LLM providers
type Client struct {
	doer           Doer
	config         Config
	headerSetter   HeaderSetter
	circuitBreaker *circuitBreaker
	limiter        *rate.Limiter
	hooks          Hooks
	logger         *slog.Logger
	rng            retry.Rand
	sleeper        retry.Sleeper
}

// Option customizes a Client
type Option func(*Client)

// WithDoer replaces the pooled HTTP client
func WithDoer(d Doer) Option {
	return func(c *Client) { c.doer = d }
}

// WithHooks installs observability callbacks
func WithHooks(h Hooks) Option {
	return func(c *Client) { c.hooks = h }
}

// WithLogger sets the logger; slog.Default() is used otherwise
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithRand sets the jitter source shared by all calls of this client
func WithRand(r retry.Rand) Option {
	return func(c *Client) { c.rng = r }
}

// WithSleeper replaces the wait between attempts, mostly for tests
func WithSleeper(s retry.Sleeper) Option {
	return func(c *Client) { c.sleeper = s }
}

// New creates a new LLM client with the given configuration
func New(config Config, headerSetter HeaderSetter, opts ...Option) *Client {
	c := &Client{
		config:       config,
		headerSetter: headerSetter,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.doer == nil {
		c.doer = httpclient.NewDefault()
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.rng == nil {
		c.rng = retry.NewLockedRand()
	}

	if config.CircuitBreaker != nil {
		c.circuitBreaker = newCircuitBreaker(*config.CircuitBreaker)
	}
	if config.RateLimitRPM > 0 {
		c.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(config.RateLimitRPM)), max(1, config.RateLimitRPM/10))
	}

	return c
}

// SetBaseURL updates the base URL
func (c *Client) SetBaseURL(url string) {
	c.config.BaseURL = url
}

// BaseURL returns the current base URL
func (c *Client) BaseURL() string {
	return c.config.BaseURL
}

// ProviderName returns the provider identity of this client
func (c *Client) ProviderName() string {
	return c.config.ProviderName
}

// Request represents an HTTP request to be made
type Request struct {
	Method   string
	Endpoint string
	Body     any // JSON marshaled if not nil
	Headers  map[string]string

	// Operation names the call in logs and metrics, e.g. "chat_completion"
	Operation string

	// Policy overrides the client's retry policy for this call
	Policy *retry.Policy
}

// Response represents a completed HTTP exchange
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	Attempts   int
	Latency    time.Duration
	RequestID  string
}

// Do executes a request with retries and circuit breaking, then unmarshals the
// response into result. A 2xx body that does not decode is a malformed error.
func (c *Client) Do(ctx context.Context, req Request, result any) error {
	var decode func([]byte) error
	if result != nil {
		decode = func(body []byte) error { return json.Unmarshal(body, result) }
	}
	_, err := c.execute(ctx, req, decode)
	return err
}

// DoWithResponse is Do that also returns the raw exchange for metadata
func (c *Client) DoWithResponse(ctx context.Context, req Request, result any) (*Response, error) {
	var decode func([]byte) error
	if result != nil {
		decode = func(body []byte) error { return json.Unmarshal(body, result) }
	}
	return c.execute(ctx, req, decode)
}

// DoRaw executes a request with retries and circuit breaking, returning the raw response
func (c *Client) DoRaw(ctx context.Context, req Request) (*Response, error) {
	return c.execute(ctx, req, nil)
}

func (c *Client) execute(ctx context.Context, req Request, decode func([]byte) error) (*Response, error) {
	ctx, requestID := core.EnsureRequestID(ctx)
	info := c.requestInfo(req, requestID, false)
	if c.hooks.OnRequestStart != nil {
		ctx = c.hooks.OnRequestStart(ctx, info)
	}

	start := time.Now()
	obs := &attemptObserver{ctx: ctx, hooks: c.hooks, info: info}
	resp, err := retry.Execute(ctx, c.policy(ctx, req), func(ctx context.Context, attempt int) retry.Outcome[*Response] {
		return c.attempt(ctx, req, requestID, decode)
	}, c.retryOptions(info.Operation, obs)...)

	latency := time.Since(start)
	status := 0
	if resp != nil {
		resp.Attempts = obs.attempts
		resp.Latency = latency
		status = resp.StatusCode
	} else if ce, ok := core.AsClassified(err); ok {
		status = ce.RawStatus
	}
	c.end(ctx, info, status, obs.attempts, latency, err)
	return resp, err
}

// attempt performs exactly one request. The response body is always consumed
// and closed before it returns.
func (c *Client) attempt(ctx context.Context, req Request, requestID string, decode func([]byte) error) retry.Outcome[*Response] {
	if ce := c.admit(ctx, requestID); ce != nil {
		return retry.Failure[*Response](ce)
	}

	httpReq, err := c.buildRequest(ctx, req, requestID)
	if err != nil {
		return retry.Failure[*Response](c.requestBuildError(err, requestID))
	}

	resp, err := c.doer.Do(httpReq)
	if err != nil {
		return retry.Failure[*Response](c.transportFailure(err, requestID))
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodySize))
	if err != nil {
		return retry.Failure[*Response](c.transportFailure(err, requestID))
	}

	a := core.Attempt{
		Provider:   c.config.ProviderName,
		RequestID:  requestID,
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
	}
	if decode != nil && resp.StatusCode >= 200 && resp.StatusCode <= 299 {
		a.DecodeErr = decode(body)
	}
	if ce := core.Classify(a); ce != nil {
		c.record(ce)
		return retry.Failure[*Response](ce)
	}

	c.record(nil)
	return retry.Success(&Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
		RequestID:  requestID,
	})
}

// admit applies the circuit breaker and the rate limiter before an attempt
func (c *Client) admit(ctx context.Context, requestID string) *core.ClassifiedError {
	if c.circuitBreaker != nil && !c.circuitBreaker.Allow() {
		ce := core.NewClassifiedError(core.KindServerError, false, 0,
			"circuit breaker is open - provider temporarily unavailable", nil, nil)
		ce.Provider = c.config.ProviderName
		ce.RequestID = requestID
		return ce
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			kind := core.KindTimeout
			if errors.Is(ctx.Err(), context.Canceled) {
				kind = core.KindNetwork
			}
			ce := core.NewClassifiedError(kind, false, 0, "rate limiter: "+err.Error(), nil, err)
			ce.Provider = c.config.ProviderName
			ce.RequestID = requestID
			return ce
		}
	}
	return nil
}

// record feeds an attempt's outcome to the circuit breaker. Only failures on
// the provider's side count against it.
func (c *Client) record(ce *core.ClassifiedError) {
	if c.circuitBreaker == nil {
		return
	}
	if ce == nil {
		c.circuitBreaker.RecordSuccess()
		return
	}
	switch ce.Kind {
	case core.KindNetwork, core.KindTimeout, core.KindServerError, core.KindRateLimited:
		if ce.Retryable {
			c.circuitBreaker.RecordFailure()
		}
	}
}

func (c *Client) transportFailure(err error, requestID string) *core.ClassifiedError {
	ce := core.Classify(core.Attempt{Provider: c.config.ProviderName, RequestID: requestID, Err: err})
	c.record(ce)
	return ce
}

func (c *Client) requestBuildError(err error, requestID string) *core.ClassifiedError {
	ce := core.NewClassifiedError(core.KindClientError, false, 0, err.Error(), nil, err)
	ce.Provider = c.config.ProviderName
	ce.RequestID = requestID
	return ce
}

type policyKey struct{}

// WithPolicy returns a context that overrides the retry policy of every call
// made with it. Request.Policy still takes precedence.
func WithPolicy(ctx context.Context, p retry.Policy) context.Context {
	return context.WithValue(ctx, policyKey{}, p)
}

func (c *Client) policy(ctx context.Context, req Request) retry.Policy {
	if req.Policy != nil {
		return *req.Policy
	}
	if p, ok := ctx.Value(policyKey{}).(retry.Policy); ok {
		return p
	}
	return c.config.Retry
}

func (c *Client) retryOptions(operation string, obs retry.Observer) []retry.Option {
	opts := []retry.Option{
		retry.WithRand(c.rng),
		retry.WithLogger(c.logger.With("provider", c.config.ProviderName)),
		retry.WithObserver(obs),
		retry.WithOperation(operation),
	}
	if c.sleeper != nil {
		opts = append(opts, retry.WithSleeper(c.sleeper))
	}
	return opts
}

func (c *Client) requestInfo(req Request, requestID string, stream bool) RequestInfo {
	op := req.Operation
	if op == "" {
		op = strings.ToLower(req.Method) + " " + req.Endpoint
	}
	return RequestInfo{
		Provider:  c.config.ProviderName,
		Operation: op,
		Method:    req.Method,
		Endpoint:  req.Endpoint,
		RequestID: requestID,
		Stream:    stream,
	}
}

func (c *Client) end(ctx context.Context, info RequestInfo, status, attempts int, latency time.Duration, err error) {
	if c.hooks.OnRequestEnd == nil {
		return
	}
	c.hooks.OnRequestEnd(ctx, ResponseInfo{
		Provider:   info.Provider,
		Operation:  info.Operation,
		RequestID:  info.RequestID,
		Stream:     info.Stream,
		StatusCode: status,
		Attempts:   attempts,
		Latency:    latency,
		Err:        err,
	})
}

// buildRequest creates an HTTP request from a Request
func (c *Client) buildRequest(ctx context.Context, req Request, requestID string) (*http.Request, error) {
	url := c.config.BaseURL + req.Endpoint

	var bodyReader io.Reader
	if req.Body != nil {
		bodyBytes, err := json.Marshal(req.Body)
		if err != nil {
			return nil, errors.New("failed to marshal request: " + err.Error())
		}
		bodyReader = bytes.NewReader(bodyBytes)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, url, bodyReader)
	if err != nil {
		return nil, errors.New("failed to create request: " + err.Error())
	}

	// Set default content type for requests with body
	if req.Body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("X-Request-ID", requestID)
	if c.config.UserAgent != "" {
		httpReq.Header.Set("User-Agent", c.config.UserAgent)
	}

	// Apply provider-specific headers
	if c.headerSetter != nil {
		c.headerSetter(httpReq)
	}

	// Apply request-specific headers
	for key, value := range req.Headers {
		httpReq.Header.Set(key, value)
	}

	return httpReq, nil
}

// CircuitState returns "closed", "open" or "half-open", or "" when disabled
func (c *Client) CircuitState() string {
	if c.circuitBreaker == nil {
		return ""
	}
	return c.circuitBreaker.State()
}

// Metadata builds the caller-facing metadata of a completed exchange, reading
// the optional x-provider, x-request-id, x-tokens-used, x-credits-used,
// x-credits-remaining and x-response-time headers.
func Metadata(provider string, resp *Response) *core.ResponseMetadata {
	md := &core.ResponseMetadata{Provider: provider}
	if resp == nil {
		return md
	}
	md.RequestID = resp.RequestID
	md.Latency = resp.Latency
	md.Attempts = resp.Attempts
	md.StatusCode = resp.StatusCode

	h := resp.Header
	if h == nil {
		return md
	}
	if v := h.Get("X-Provider"); v != "" {
		md.Provider = v
	}
	if v := h.Get("X-Request-Id"); v != "" {
		md.RequestID = v
	}
	if v, err := strconv.Atoi(strings.TrimSpace(h.Get("X-Tokens-Used"))); err == nil {
		md.TokensUsed = &v
	}
	if v, err := strconv.ParseFloat(strings.TrimSpace(h.Get("X-Credits-Used")), 64); err == nil {
		md.CreditsUsed = &v
	}
	if v, err := strconv.ParseFloat(strings.TrimSpace(h.Get("X-Credits-Remaining")), 64); err == nil {
		md.CreditsRemaining = &v
	}
	if d, ok := parseResponseTime(h.Get("X-Response-Time")); ok {
		md.ServerTime = &d
	}
	return md
}

// parseResponseTime accepts "123ms", "1.5s" or a bare number of milliseconds
func parseResponseTime(v string) (time.Duration, bool) {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0, false
	}
	if ms, err := strconv.ParseFloat(v, 64); err == nil && ms >= 0 {
		return time.Duration(ms * float64(time.Millisecond)), true
	}
	if d, err := time.ParseDuration(v); err == nil && d >= 0 {
		return d, true
	}
	return 0, false
}
