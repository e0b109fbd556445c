/*
Package filesystem wraps the handful of filesystem operations the thumbnail
cache performs (stat, open, directory creation and artifact writes) with
retry logic for NFS stale file handle errors and with metrics hooks.

# Retry Behavior

Only ESTALE (errno 116 on Linux) triggers a retry. Every other error is
returned immediately. Backoff is exponential and capped:

	config := filesystem.DefaultRetryConfig() // 3 retries, 50ms → 500ms
	info, err := filesystem.StatWithRetry(path, config)

# Artifact Writes

WriteFileAtomic writes to a temporary file in the destination directory and
renames it into place, so readers never observe a partially written
thumbnail. Concurrent writers of the same path leave exactly one complete
file behind (last rename wins).

# Metrics

The package does not import the metrics package. An Observer is installed at
startup with SetObserver; when none is set, recording is skipped. Paths are
labelled with a volume name ("source", "thumbnails") by a VolumeResolver.
*/
package filesystem
