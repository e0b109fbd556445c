package thumbnail

import (
	"path/filepath"
	"strings"
)

const sep = string(filepath.Separator)

// PathResolver turns configured base paths into absolute directories and
// maps files under the base path back to public URLs.
type PathResolver struct {
	basePath string
	baseURL  string
}

// NewPathResolver creates a resolver. An empty basePath means paths are
// already absolute; an empty baseURL means URLs are the bare paths.
func NewPathResolver(basePath, baseURL string) PathResolver {
	return PathResolver{basePath: basePath, baseURL: baseURL}
}

// SourceDir returns the absolute directory for rel, substituting def when
// rel is empty. The result ends in exactly one separator and contains no
// doubled separators.
func (r PathResolver) SourceDir(rel, def string) string {
	if rel == "" {
		rel = def
	}
	dir := rel
	if r.basePath != "" {
		dir = r.basePath + sep + rel
	}
	return collapse(dir+sep, sep)
}

// URL maps an absolute path under the base path to a forward-slash URL
// below the base URL. Paths outside the base path are kept whole.
func (r PathResolver) URL(absPath string) string {
	rel := absPath
	if base := strings.TrimRight(r.basePath, sep); base != "" {
		if rel == base || strings.HasPrefix(rel, base+sep) {
			rel = rel[len(base):]
		}
	}
	rel = collapse(filepath.ToSlash(rel), "/")

	if r.baseURL == "" {
		return rel
	}
	return strings.TrimRight(r.baseURL, "/") + "/" + strings.TrimLeft(rel, "/")
}

// ArtifactURL is the public URL of <dir>/<g>/<filename>.
func (r PathResolver) ArtifactURL(dir string, g Geometry, filename string) string {
	return r.URL(dir+g.String()+sep) + filepath.ToSlash(filename)
}

// cleanFilename normalizes a caller-supplied filename into a relative path
// that stays inside its directory. ok is false for anything that would
// escape it.
func cleanFilename(filename string) (rel string, ok bool) {
	rel = filepath.Clean(strings.TrimLeft(filepath.FromSlash(filename), sep))
	if rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+sep) {
		return "", false
	}
	return rel, true
}

func collapse(s, sep string) string {
	double := sep + sep
	for strings.Contains(s, double) {
		s = strings.ReplaceAll(s, double, sep)
	}
	return s
}
