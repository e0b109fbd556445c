package thumbnail

import (
	"path/filepath"

	"thumbcache/internal/filesystem"
)

// ArtifactPath is where the thumbnail of filename at g is stored under dir.
func ArtifactPath(dir string, g Geometry, filename string) string {
	return filepath.Join(dir, g.String(), filename)
}

// ProbeCache reports whether a thumbnail of filename at g already exists
// under dir. Only regular files count; the probe never creates anything.
func ProbeCache(dir string, g Geometry, filename string) (path string, hit bool) {
	return probeCache(dir, g, filename, filesystem.DefaultRetryConfig())
}

func probeCache(dir string, g Geometry, filename string, retry filesystem.RetryConfig) (string, bool) {
	path := ArtifactPath(dir, g, filename)
	return path, filesystem.IsRegularFile(path, retry)
}
