package api

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

const (
	defaultHTTPTimeout = 30 * time.Second
	maxSnippetRunes    = 200
)

// Metrics counts upstream calls by purpose and outcome.
type Metrics struct {
	Requests *prometheus.CounterVec
	Latency  *prometheus.HistogramVec
}

// NewMetrics builds unregistered upstream collectors.
func NewMetrics() *Metrics {
	return &Metrics{
		Requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "elecview_upstream_requests_total",
				Help: "Upstream HTTP requests by purpose and status code.",
			},
			[]string{"purpose", "code"},
		),
		Latency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "elecview_upstream_request_duration_seconds",
				Help:    "Upstream HTTP request latency.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"purpose"},
		),
	}
}

// Register adds the collectors to reg.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	if err := reg.Register(m.Requests); err != nil {
		return err
	}
	return reg.Register(m.Latency)
}

func (m *Metrics) observe(purpose Purpose, code string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.Requests.WithLabelValues(string(purpose), code).Inc()
	m.Latency.WithLabelValues(string(purpose)).Observe(elapsed.Seconds())
}

// Transport performs the GET requests of every upstream client. It is the
// only place that touches the network.
type Transport struct {
	client  *http.Client
	limiter *rate.Limiter
	logger  *logrus.Logger
	metrics *Metrics
}

// Option configures a Transport.
type Option func(*Transport)

// WithHTTPClient injects a custom http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(t *Transport) {
		if hc != nil {
			t.client = hc
		}
	}
}

// WithRateLimit caps outbound requests per second. A zero rate disables the
// limiter.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(t *Transport) {
		if perSecond <= 0 {
			t.limiter = nil
			return
		}
		if burst <= 0 {
			burst = 1
		}
		t.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// WithLogger injects a logger.
func WithLogger(l *logrus.Logger) Option {
	return func(t *Transport) {
		if l != nil {
			t.logger = l
		}
	}
}

// WithMetrics records every request into m.
func WithMetrics(m *Metrics) Option {
	return func(t *Transport) {
		t.metrics = m
	}
}

// NewTransport builds a Transport with a 30s timeout client by default.
func NewTransport(opts ...Option) *Transport {
	t := &Transport{
		client: &http.Client{Timeout: defaultHTTPTimeout},
		logger: logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Get fetches endpoint and returns the body of a 2xx response. Any other
// outcome is a *FetchError.
func (t *Transport) Get(ctx context.Context, purpose Purpose, zone, endpoint, accept string) ([]byte, error) {
	if t.limiter != nil {
		if err := t.limiter.Wait(ctx); err != nil {
			return nil, &FetchError{Purpose: purpose, Zone: zone, Err: fmt.Errorf("%w: %w", ErrUpstreamRequest, err)}
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, &FetchError{Purpose: purpose, Zone: zone, Err: fmt.Errorf("%w: %v", ErrUpstreamRequest, err)}
	}
	if accept != "" {
		req.Header.Set("Accept", accept)
	}

	start := time.Now()
	resp, err := t.client.Do(req)
	if err != nil {
		t.metrics.observe(purpose, "error", time.Since(start))
		if ctx.Err() != nil {
			return nil, &FetchError{Purpose: purpose, Zone: zone, Err: ctx.Err()}
		}
		return nil, &FetchError{Purpose: purpose, Zone: zone, Err: fmt.Errorf("%w: %v", ErrUpstreamRequest, err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	elapsed := time.Since(start)
	t.metrics.observe(purpose, strconv.Itoa(resp.StatusCode), elapsed)

	t.logger.WithFields(logrus.Fields{
		"purpose":  purpose,
		"zone":     zone,
		"status":   resp.StatusCode,
		"duration": elapsed,
	}).Debug("Upstream request completed")

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, &FetchError{
			Purpose:    purpose,
			Zone:       zone,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("%w: %s", ErrUpstreamStatus, snippet(body)),
		}
	}
	if err != nil {
		return nil, &FetchError{Purpose: purpose, Zone: zone, StatusCode: resp.StatusCode, Err: fmt.Errorf("read response body: %w", err)}
	}
	return body, nil
}

func snippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	if r := []rune(s); len(r) > maxSnippetRunes {
		s = string(r[:maxSnippetRunes]) + "..."
	}
	return s
}
