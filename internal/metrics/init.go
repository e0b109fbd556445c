package metrics

// Label values pre-populated by InitializeMetrics. The thumbnail package uses
// the same strings when recording.
var (
	Outcomes        = []string{"cached", "generated", "passthrough", "fallback", "invalid"}
	FallbackReasons = []string{"empty_filename", "missing_source", "unsafe_path", "unsupported_format", "decode_failure", "write_failure"}
	Phases          = []string{"decode", "compose", "encode", "write"}
	Policies        = []string{"stretch", "center", "fit_height", "fit_width"}
	Formats         = []string{"jpeg", "png", "gif"}
	Volumes         = []string{"source", "thumbnails", "unknown"}
	FSOperations    = []string{"stat", "open", "mkdir", "write"}
)

// InitializeMetrics pre-populates all expected label combinations so that
// every metric is exported from the first Prometheus scrape.
func InitializeMetrics() {
	for _, o := range Outcomes {
		RendersTotal.WithLabelValues(o)
		RenderDuration.WithLabelValues(o)
		WarmFiles.WithLabelValues(o)
	}

	for _, r := range FallbackReasons {
		FallbacksTotal.WithLabelValues(r)
	}

	for _, p := range Phases {
		GenerationPhaseDuration.WithLabelValues(p)
	}

	for _, p := range Policies {
		PlacementsTotal.WithLabelValues(p)
	}

	for _, f := range Formats {
		ArtifactBytes.WithLabelValues(f)
		for _, d := range []string{"imaging", "vips"} {
			DecodesByFormat.WithLabelValues(f, d)
		}
	}

	for _, vol := range Volumes {
		for _, op := range FSOperations {
			FilesystemOperationDuration.WithLabelValues(vol, op)
			FilesystemOperationErrors.WithLabelValues(vol, op)
			FilesystemRetryAttempts.WithLabelValues(op, vol)
			FilesystemRetrySuccess.WithLabelValues(op, vol)
			FilesystemRetryFailures.WithLabelValues(op, vol)
			FilesystemStaleErrors.WithLabelValues(op, vol)
		}
	}
}
