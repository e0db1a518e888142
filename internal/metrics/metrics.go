package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mitabo_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mitabo_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "mitabo_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)
)

// Database metrics
var (
	DBQueryTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mitabo_db_queries_total",
			Help: "Total number of database queries",
		},
		[]string{"operation", "status"},
	)

	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mitabo_db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"operation"},
	)

	DBConnectionsOpen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "mitabo_db_connections_open",
			Help: "Number of open database connections",
		},
	)
)

// Upload pipeline metrics
var (
	UploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mitabo_uploads_total",
			Help: "Total number of upload attempts by outcome",
		},
		[]string{"outcome"},
	)

	UploadBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "mitabo_upload_bytes",
			Help:    "Size distribution of stored uploads in bytes",
			Buckets: prometheus.ExponentialBuckets(1<<20, 4, 8), // 1 MiB .. 16 GiB
		},
	)
)

// Transcode metrics
var (
	TranscodeJobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mitabo_transcode_jobs_total",
			Help: "Total number of transcode jobs by final status",
		},
		[]string{"status"},
	)

	TranscodeDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "mitabo_transcode_duration_seconds",
			Help:    "Wall-clock duration of ffmpeg transcode runs",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12), // 1s .. ~68m
		},
	)

	TranscodeQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "mitabo_transcode_queue_depth",
			Help: "Number of transcode jobs waiting in the queue",
		},
	)
)

// Auth metrics
var (
	AuthAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mitabo_auth_attempts_total",
			Help: "Total number of login attempts",
		},
		[]string{"result"},
	)
)
