// Package metrics provides Prometheus instrumentation for thumbcache.
//
// All metrics are prefixed with "thumbcache_" and registered on the default
// registry through promauto, so importing the package is enough to expose
// them from promhttp.Handler.
//
// # Metric Categories
//
// ## Render Metrics
//
//   - RendersTotal: Counter of renders by outcome (cached/generated/passthrough/fallback/invalid)
//   - FallbacksTotal: Counter of default-image answers by reason
//   - RenderDuration: Histogram of render latency by outcome
//
// ## Cache Metrics
//
//   - CacheHits / CacheMisses: artifact existence probe results
//   - SharedGenerations: renders that joined an in-flight generation of the same key
//
// ## Generation Metrics
//
//   - GenerationPhaseDuration: decode, compose, encode and write timings
//   - DecodesByFormat: decoded sources by format and decoder backend
//   - ArtifactBytes: encoded artifact sizes by output format
//   - PlacementsTotal: placement policy chosen for each composition
//
// ## Warm Metrics
//
//   - WarmRunsTotal, WarmRunning, WarmLastDuration, WarmLastTimestamp
//   - WarmFiles: per-outcome counts of the last run
//   - WarmWorkers: worker pool size of the last run
//
// ## Filesystem Metrics
//
// Recorded through the filesystem.Observer returned by NewFilesystemObserver:
//   - FilesystemOperationDuration / FilesystemOperationErrors by volume and operation
//   - FilesystemRetryAttempts, FilesystemRetrySuccess, FilesystemRetryFailures
//   - FilesystemStaleErrors: ESTALE occurrences
//
// Call InitializeMetrics once at startup so every label combination is
// exported from the first scrape.
package metrics
