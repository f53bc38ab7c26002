// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTPRequests counts served requests by method, chi route pattern and status code.
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests by route pattern and status",
		},
		[]string{"method", "route", "status"},
	)

	// HTTPRequestDuration observes request latency by method and route pattern.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// AuthFailures counts rejected requests; reason is one of missing_token, invalid_token,
	// expired_token, forbidden, bad_credentials, inactive_account.
	AuthFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_failures_total",
			Help: "Total number of authentication and authorization failures",
		},
		[]string{"reason"},
	)

	// ReviewMutations counts committed review writes; op is one of create, update, delete, moderate.
	ReviewMutations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "review_mutations_total",
			Help: "Total number of committed review writes",
		},
		[]string{"op"},
	)

	// AverageRecomputes counts movie average recomputations, whether triggered by a review
	// write or requested on demand.
	AverageRecomputes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "movie_average_recomputes_total",
			Help: "Total number of movie average rating recomputations",
		},
	)
)

// RecordHTTPRequest records one served request.
func RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	HTTPRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordAuthFailure increments the failure counter for reason.
func RecordAuthFailure(reason string) {
	AuthFailures.WithLabelValues(reason).Inc()
}

// RecordReviewMutation counts a committed review write and the recompute it triggered.
// Every review write, moderation included, recomputes the movie average.
func RecordReviewMutation(op string) {
	ReviewMutations.WithLabelValues(op).Inc()
	AverageRecomputes.Inc()
}

// RecordAverageRefresh counts an on-demand recompute.
func RecordAverageRefresh() {
	AverageRecomputes.Inc()
}

// PoolCollector exposes pgxpool statistics as gauges at scrape time.
type PoolCollector struct {
	stat func() *pgxpool.Stat

	acquired *prometheus.Desc
	idle     *prometheus.Desc
	total    *prometheus.Desc
	max      *prometheus.Desc
	waits    *prometheus.Desc
}

// NewPoolCollector returns a collector reading from stat on every scrape.
func NewPoolCollector(stat func() *pgxpool.Stat) *PoolCollector {
	return &PoolCollector{
		stat:     stat,
		acquired: prometheus.NewDesc("db_pool_acquired_conns", "Connections currently in use", nil, nil),
		idle:     prometheus.NewDesc("db_pool_idle_conns", "Idle connections in the pool", nil, nil),
		total:    prometheus.NewDesc("db_pool_total_conns", "Total connections in the pool", nil, nil),
		max:      prometheus.NewDesc("db_pool_max_conns", "Configured maximum pool size", nil, nil),
		waits:    prometheus.NewDesc("db_pool_empty_acquire_total", "Acquires that had to wait for a connection", nil, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *PoolCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.acquired
	ch <- c.idle
	ch <- c.total
	ch <- c.max
	ch <- c.waits
}

// Collect implements prometheus.Collector.
func (c *PoolCollector) Collect(ch chan<- prometheus.Metric) {
	s := c.stat()
	if s == nil {
		return
	}
	ch <- prometheus.MustNewConstMetric(c.acquired, prometheus.GaugeValue, float64(s.AcquiredConns()))
	ch <- prometheus.MustNewConstMetric(c.idle, prometheus.GaugeValue, float64(s.IdleConns()))
	ch <- prometheus.MustNewConstMetric(c.total, prometheus.GaugeValue, float64(s.TotalConns()))
	ch <- prometheus.MustNewConstMetric(c.max, prometheus.GaugeValue, float64(s.MaxConns()))
	ch <- prometheus.MustNewConstMetric(c.waits, prometheus.CounterValue, float64(s.EmptyAcquireCount()))
}
