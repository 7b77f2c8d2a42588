package middleware

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/royals-league/rally/pkg/commit"
	"github.com/royals-league/rally/pkg/optimistic"
)

// MetricsConfig configures the Prometheus metrics.
type MetricsConfig struct {
	// Namespace is the metrics namespace (default: "rally").
	Namespace string

	// Subsystem is the metrics subsystem (default: "").
	Subsystem string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Buckets are the histogram buckets for commit duration.
	// Default: prometheus.DefBuckets
	Buckets []float64

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

// MetricsOption configures the Prometheus metrics.
type MetricsOption func(*MetricsConfig)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Namespace = namespace
	}
}

// WithSubsystem sets the metrics subsystem.
func WithSubsystem(subsystem string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Subsystem = subsystem
	}
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) MetricsOption {
	return func(c *MetricsConfig) {
		c.ConstLabels = labels
	}
}

// WithBuckets sets the histogram buckets.
func WithBuckets(buckets []float64) MetricsOption {
	return func(c *MetricsConfig) {
		c.Buckets = buckets
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) MetricsOption {
	return func(c *MetricsConfig) {
		c.Registry = registry
	}
}

func defaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Namespace: "rally",
		Buckets:   prometheus.DefBuckets,
		Registry:  prometheus.DefaultRegisterer,
	}
}

// Metrics collects Prometheus metrics for commits, control reconciliation
// and live sessions. A nil *Metrics records nothing.
type Metrics struct {
	commitsTotal   *prometheus.CounterVec
	commitDuration *prometheus.HistogramVec
	commitErrors   *prometheus.CounterVec
	actionsTotal   *prometheus.CounterVec
	pending        prometheus.Gauge
	patchesSent    prometheus.Counter
	activeSessions prometheus.Gauge
	wsErrors       *prometheus.CounterVec
}

// NewMetrics registers the metrics.
//
// Metrics collected:
//   - rally_commits_total: commits by selector and outcome
//     (accepted, rejected, transport, config)
//   - rally_commit_duration_seconds: commit round trip by selector
//   - rally_commit_errors_total: failed commits by selector and error type
//   - rally_actions_total: dispatches by selector and result
//     (committed, reverted, dropped, superseded)
//   - rally_pending_actions: actions awaiting the server
//   - rally_patches_sent_total: patches pushed to live clients
//   - rally_active_sessions: open live sessions
//   - rally_websocket_errors_total: websocket errors by type
//
// Example:
//
//	m := middleware.NewMetrics(middleware.WithNamespace("league"))
//	ctl := optimistic.NewController(optimistic.WithObserver(m))
//	league.Install(ctl, page, league.Deps{Middleware: []commit.Middleware{m.Commits()}})
//	http.Handle("/metrics", promhttp.Handler())
func NewMetrics(opts ...MetricsOption) *Metrics {
	config := defaultMetricsConfig()
	for _, opt := range opts {
		opt(&config)
	}
	factory := promauto.With(config.Registry)

	return &Metrics{
		commitsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "commits_total",
			Help:        "Total number of commits sent to the backend",
			ConstLabels: config.ConstLabels,
		}, []string{"selector", "outcome"}),

		commitDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "commit_duration_seconds",
			Help:        "Commit round trip duration in seconds",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}, []string{"selector"}),

		commitErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "commit_errors_total",
			Help:        "Total number of failed commits by error type",
			ConstLabels: config.ConstLabels,
		}, []string{"selector", "error_type"}),

		actionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "actions_total",
			Help:        "Total number of dispatched actions by result",
			ConstLabels: config.ConstLabels,
		}, []string{"selector", "result"}),

		pending: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "pending_actions",
			Help:        "Number of actions awaiting a server response",
			ConstLabels: config.ConstLabels,
		}),

		patchesSent: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "patches_sent_total",
			Help:        "Total number of patches sent to clients",
			ConstLabels: config.ConstLabels,
		}),

		activeSessions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "active_sessions",
			Help:        "Number of active WebSocket sessions",
			ConstLabels: config.ConstLabels,
		}),

		wsErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "websocket_errors_total",
			Help:        "Total WebSocket errors by type",
			ConstLabels: config.ConstLabels,
		}, []string{"type"}),
	}
}

// Commits returns a commit middleware that times every commit and counts
// its outcome.
func (m *Metrics) Commits() commit.Middleware {
	return func(next optimistic.Committer) optimistic.Committer {
		if m == nil {
			return next
		}
		return optimistic.CommitFunc(func(ctx context.Context, a optimistic.ToggleAction) error {
			start := time.Now()
			err := next.Commit(ctx, a)
			m.commitDuration.WithLabelValues(a.Selector).Observe(time.Since(start).Seconds())

			outcome := "accepted"
			if err != nil {
				outcome = optimistic.Classify(err).String()
				m.commitErrors.WithLabelValues(a.Selector, categorizeError(err)).Inc()
			}
			m.commitsTotal.WithLabelValues(a.Selector, outcome).Inc()
			return err
		})
	}
}

// Pending implements optimistic.Observer.
func (m *Metrics) Pending(optimistic.ToggleAction) {
	if m != nil {
		m.pending.Inc()
	}
}

// Resolved implements optimistic.Observer. Dropped actions were never
// pending.
func (m *Metrics) Resolved(a optimistic.ToggleAction, r optimistic.Result, _ error, _ time.Duration) {
	if m == nil {
		return
	}
	if r != optimistic.ResultDropped {
		m.pending.Dec()
	}
	m.actionsTotal.WithLabelValues(a.Selector, r.String()).Inc()
}

// RecordPatches records the number of patches sent.
func (m *Metrics) RecordPatches(count int) {
	if m != nil && count > 0 {
		m.patchesSent.Add(float64(count))
	}
}

// RecordSessionOpen records a new live session.
func (m *Metrics) RecordSessionOpen() {
	if m != nil {
		m.activeSessions.Inc()
	}
}

// RecordSessionClose records the end of a live session.
func (m *Metrics) RecordSessionClose() {
	if m != nil {
		m.activeSessions.Dec()
	}
}

// RecordWebSocketError records a WebSocket error.
func (m *Metrics) RecordWebSocketError(errorType string) {
	if m != nil {
		m.wsErrors.WithLabelValues(errorType).Inc()
	}
}

// categorizeError returns a low-cardinality category for err.
func categorizeError(err error) string {
	var rej *optimistic.RejectedError
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.As(err, &rej):
		switch {
		case rej.Redirected():
			return "redirect"
		case rej.Status == 429:
			return "rate_limit"
		case rej.Status == 401 || rej.Status == 403:
			return "forbidden"
		case rej.Status >= 500:
			return "server"
		default:
			return "validation"
		}
	case optimistic.Classify(err) == optimistic.KindConfig:
		return "config"
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "timeout"):
		return "timeout"
	case strings.Contains(msg, "connection refused"):
		return "refused"
	default:
		return "network"
	}
}
