// Package observability exports client activity as Prometheus metrics.
package observability

import (
	"context"
	"io"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/common/expfmt"

	"rainy/internal/core"
	"rainy/internal/llmclient"
)

const namespace = "rainy"

// Metrics holds the collectors updated by the hooks
type Metrics struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	attempts        *prometheus.HistogramVec
	retriesTotal    *prometheus.CounterVec
	inFlight        *prometheus.GaugeVec
	streamFrames    *prometheus.CounterVec
}

// NewMetrics registers the client collectors on reg. A nil reg uses the
// default registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &Metrics{
		requestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "requests_total",
				Help:      "Logical requests by final outcome (ok or error kind)",
			},
			[]string{"provider", "operation", "outcome"},
		),
		requestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "request_duration_seconds",
				Help:      "Duration of logical requests including retries",
				Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"provider", "operation"},
		),
		attempts: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "request_attempts",
				Help:      "Attempts made per logical request",
				Buckets:   []float64{1, 2, 3, 4, 5, 8},
			},
			[]string{"provider", "operation"},
		),
		retriesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "retries_total",
				Help:      "Failed attempts that were retried, by error kind",
			},
			[]string{"provider", "operation", "kind"},
		),
		inFlight: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "requests_in_flight",
				Help:      "Logical requests currently running",
			},
			[]string{"provider"},
		),
		streamFrames: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "stream_frames_total",
				Help:      "Frames yielded by streaming sessions",
			},
			[]string{"provider", "kind"},
		),
	}
}

// Hooks returns llmclient hooks that update m
func (m *Metrics) Hooks() llmclient.Hooks {
	return llmclient.Hooks{
		OnRequestStart: func(ctx context.Context, info llmclient.RequestInfo) context.Context {
			m.inFlight.WithLabelValues(info.Provider).Inc()
			return ctx
		},
		OnRequestEnd: func(_ context.Context, info llmclient.ResponseInfo) {
			m.inFlight.WithLabelValues(info.Provider).Dec()
			m.requestsTotal.WithLabelValues(info.Provider, info.Operation, outcome(info.Err)).Inc()
			m.requestDuration.WithLabelValues(info.Provider, info.Operation).Observe(info.Latency.Seconds())
			if info.Attempts > 0 {
				m.attempts.WithLabelValues(info.Provider, info.Operation).Observe(float64(info.Attempts))
			}
		},
		OnRetry: func(_ context.Context, info llmclient.RetryInfo) {
			kind := "unknown"
			if info.Err != nil {
				kind = string(info.Err.Kind)
			}
			m.retriesTotal.WithLabelValues(info.Provider, info.Operation, kind).Inc()
		},
		OnStreamFrame: func(_ context.Context, provider string, kind core.FrameKind) {
			m.streamFrames.WithLabelValues(provider, kind.String()).Inc()
		},
	}
}

// NewPrometheusHooks registers collectors on reg and returns hooks feeding them
func NewPrometheusHooks(reg prometheus.Registerer) llmclient.Hooks {
	return NewMetrics(reg).Hooks()
}

// Handler serves the metrics gathered by g in the text exposition format
func Handler(g prometheus.Gatherer) http.Handler {
	if g == nil {
		g = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// WriteText writes the metrics gathered by g to w in the text exposition format
func WriteText(w io.Writer, g prometheus.Gatherer) error {
	if g == nil {
		g = prometheus.DefaultGatherer
	}
	families, err := g.Gather()
	if err != nil {
		return err
	}
	enc := expfmt.NewEncoder(w, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			return err
		}
	}
	return nil
}

func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	if kind := core.KindOf(err); kind != "" {
		return string(kind)
	}
	return "error"
}
