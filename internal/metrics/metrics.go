package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Render metrics
var (
	RendersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "thumbcache_renders_total",
			Help: "Total number of thumbnail renders by outcome",
		},
		[]string{"outcome"}, // "cached", "generated", "passthrough", "fallback", "invalid"
	)

	FallbacksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "thumbcache_fallbacks_total",
			Help: "Total number of renders answered with the default image, by reason",
		},
		[]string{"reason"},
	)

	RenderDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "thumbcache_render_duration_seconds",
			Help:    "Render duration in seconds by outcome",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"outcome"},
	)
)

// Cache metrics
var (
	CacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "thumbcache_cache_hits_total",
			Help: "Total number of renders served from an existing artifact",
		},
	)

	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "thumbcache_cache_misses_total",
			Help: "Total number of renders that found no artifact",
		},
	)

	SharedGenerations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "thumbcache_shared_generations_total",
			Help: "Renders that waited on an identical in-flight generation instead of composing",
		},
	)
)

// Generation metrics
var (
	GenerationPhaseDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "thumbcache_generation_phase_duration_seconds",
			Help:    "Duration of each thumbnail generation phase",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"phase"}, // "decode", "compose", "encode", "write"
	)

	DecodesByFormat = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "thumbcache_decodes_total",
			Help: "Source images decoded by format and decoder",
		},
		[]string{"format", "decoder"},
	)

	ArtifactBytes = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "thumbcache_artifact_bytes",
			Help:    "Size of written thumbnail artifacts in bytes",
			Buckets: prometheus.ExponentialBuckets(1024, 2, 12),
		},
		[]string{"format"},
	)

	PlacementsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "thumbcache_placements_total",
			Help: "Composition placement policy chosen for generated thumbnails",
		},
		[]string{"policy"}, // "stretch", "center", "fit_height", "fit_width"
	)
)

// Warm metrics
var (
	WarmRunsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "thumbcache_warm_runs_total",
			Help: "Total number of warm runs",
		},
	)

	WarmRunning = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "thumbcache_warm_running",
			Help: "Whether a warm run is in progress (1 = running, 0 = idle)",
		},
	)

	WarmLastDuration = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "thumbcache_warm_last_duration_seconds",
			Help: "Duration of the last warm run in seconds",
		},
	)

	WarmLastTimestamp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "thumbcache_warm_last_timestamp",
			Help: "Unix timestamp of the last warm run completion",
		},
	)

	WarmFiles = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "thumbcache_warm_files",
			Help: "Number of files in the last warm run by outcome",
		},
		[]string{"outcome"},
	)

	WarmWorkers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "thumbcache_warm_workers",
			Help: "Number of workers used by the last warm run",
		},
	)
)

// Filesystem metrics
var (
	FilesystemOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "thumbcache_filesystem_operation_duration_seconds",
			Help:    "Filesystem operation duration by volume and operation",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		},
		[]string{"volume", "operation"},
	)

	FilesystemOperationErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "thumbcache_filesystem_operation_errors_total",
			Help: "Filesystem operation errors by volume and operation",
		},
		[]string{"volume", "operation"},
	)

	FilesystemRetryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "thumbcache_filesystem_retry_attempts_total",
			Help: "Retries performed after NFS stale file handle errors",
		},
		[]string{"operation", "volume"},
	)

	FilesystemRetrySuccess = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "thumbcache_filesystem_retry_success_total",
			Help: "Operations that succeeded after at least one retry",
		},
		[]string{"operation", "volume"},
	)

	FilesystemRetryFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "thumbcache_filesystem_retry_failures_total",
			Help: "Operations that failed after exhausting retries",
		},
		[]string{"operation", "volume"},
	)

	FilesystemStaleErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "thumbcache_filesystem_stale_errors_total",
			Help: "NFS stale file handle errors observed",
		},
		[]string{"operation", "volume"},
	)
)

// Memory metrics
var (
	MemoryUsageRatio = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "thumbcache_memory_usage_ratio",
			Help: "Heap allocation as a fraction of the configured memory limit",
		},
	)

	MemoryPaused = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "thumbcache_memory_paused",
			Help: "Whether warm processing is paused for memory (1 = paused, 0 = running)",
		},
	)

	MemoryPauses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "thumbcache_memory_pauses_total",
			Help: "Number of times warm processing was paused for memory",
		},
	)
)

// HTTP metrics for the operations server
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "thumbcache_http_requests_total",
			Help: "Total number of HTTP requests to the operations server",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "thumbcache_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "thumbcache_http_requests_in_flight",
			Help: "Number of HTTP requests currently being served",
		},
	)
)

// Application info metric
var (
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "thumbcache_app_info",
			Help: "Application information",
		},
		[]string{"version", "commit", "go_version"},
	)
)

// SetAppInfo sets the application info metric
func SetAppInfo(version, commit, goVersion string) {
	AppInfo.WithLabelValues(version, commit, goVersion).Set(1)
}
