package thumbnail

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"thumbcache/internal/config"
	"thumbcache/internal/filesystem"
	"thumbcache/internal/logging"
	"thumbcache/internal/metrics"
)

// Generator renders thumbnails. It is safe for concurrent use; the
// configuration can be swapped at any time with SetConfig.
type Generator struct {
	cfg     atomic.Pointer[config.Config]
	decoder Decoder
	retry   filesystem.RetryConfig
	group   singleflight.Group
}

// Option configures a Generator.
type Option func(*Generator)

// WithDecoder replaces the default imaging decoder.
func WithDecoder(d Decoder) Option {
	return func(g *Generator) {
		g.decoder = d
	}
}

// WithRetryConfig sets the retry policy for source and cache lookups.
func WithRetryConfig(rc filesystem.RetryConfig) Option {
	return func(g *Generator) {
		g.retry = rc
	}
}

// New creates a Generator. A nil cfg uses config.Default().
func New(cfg *config.Config, opts ...Option) *Generator {
	g := &Generator{retry: filesystem.DefaultRetryConfig()}
	for _, opt := range opts {
		opt(g)
	}
	if g.decoder == nil {
		g.decoder = ImagingDecoder{Retry: g.retry}
	}
	g.SetConfig(cfg)
	return g
}

// Config returns the configuration in effect.
func (g *Generator) Config() *config.Config {
	return g.cfg.Load()
}

// SetConfig replaces the configuration for subsequent renders. Renders
// already running keep the configuration they started with.
func (g *Generator) SetConfig(cfg *config.Config) {
	if cfg == nil {
		cfg = config.Default()
	}
	g.cfg.Store(cfg.Clone())
}

// Render produces the <img> description for filename under sourcePath.
// Only precondition violations and context cancellation are returned as
// errors; every other problem yields a tag pointing at the default image.
func (g *Generator) Render(ctx context.Context, sourcePath, filename string, opts Options, attrs map[string]string) (ImageTag, error) {
	res, err := g.Thumbnail(ctx, opts.Request(sourcePath, filename))
	if err != nil {
		return ImageTag{}, err
	}
	return newImageTag(res.URL, attrs), nil
}

// Thumbnail resolves req to a URL, generating and caching the artifact
// when needed.
func (g *Generator) Thumbnail(ctx context.Context, req RenderRequest) (Result, error) {
	start := time.Now()
	res, err := g.thumbnail(ctx, g.Config(), req)

	outcome := res.Kind.String()
	if err != nil {
		outcome = "invalid"
	}
	metrics.RendersTotal.WithLabelValues(outcome).Inc()
	metrics.RenderDuration.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
	if err == nil && res.Kind == KindFallback {
		metrics.FallbacksTotal.WithLabelValues(res.Reason.String()).Inc()
	}
	return res, err
}

func (g *Generator) thumbnail(ctx context.Context, cfg *config.Config, req RenderRequest) (Result, error) {
	if err := checkDimensions(req.Width, req.Height); err != nil {
		return Result{}, err
	}
	w, h := req.Width, req.Height
	if w == 0 {
		w = Px(cfg.DefaultWidth)
	}
	if h == 0 {
		h = Px(cfg.DefaultHeight)
	}

	paths := NewPathResolver(cfg.BasePath, cfg.BaseURL)
	sourceDir := paths.SourceDir(req.SourcePath, cfg.SourcePath)
	destDir := sourceDir
	if cfg.DestinationPath != "" {
		destDir = paths.SourceDir(cfg.DestinationPath, "")
	}

	// The placeholder size becomes the resolved target once it is known.
	placeholder := placeholderGeometry(w, h, cfg.DefaultWidth, cfg.DefaultHeight)
	fallback := func(reason FallbackReason) Result {
		return Result{
			URL:      FallbackURL(req.DefaultImage, cfg.DefaultImage, placeholder),
			Kind:     KindFallback,
			Reason:   reason,
			Geometry: placeholder,
		}
	}

	if strings.TrimSpace(req.Filename) == "" {
		return fallback(ReasonEmptyFilename), nil
	}
	rel, ok := cleanFilename(req.Filename)
	if !ok {
		logging.Warn("Refusing filename outside %s: %q", sourceDir, req.Filename)
		return fallback(ReasonUnsafePath), nil
	}

	sourceFile := filepath.Join(sourceDir, rel)
	if !filesystem.IsRegularFile(sourceFile, g.retry) {
		logging.Debug("Source not found: %s", sourceFile)
		return fallback(ReasonMissingSource), nil
	}
	format := ClassifyFormat(rel)
	if format == FormatUnsupported {
		logging.Debug("Unsupported format: %s", sourceFile)
		return fallback(ReasonUnsupportedFormat), nil
	}

	// With both sides explicit the artifact key is known before the source
	// is read, so a hit costs two stats.
	var target Geometry
	probed := false
	if !w.IsAuto() && !h.IsAuto() {
		target = Geometry{Width: int(w), Height: int(h)}
		if res, hit := g.cached(paths, destDir, target, rel); hit {
			return res, nil
		}
		probed = true
	}

	src, err := readGeometry(sourceFile, format, g.retry, cfg.MaxPixels)
	if err != nil {
		logging.Warn("Failed to read %s: %v", sourceFile, err)
		return fallback(ReasonDecodeFailure), nil
	}
	target, err = ResolveTarget(src, w, h)
	if err != nil {
		return Result{}, err
	}
	placeholder = target

	if !probed {
		if res, hit := g.cached(paths, destDir, target, rel); hit {
			return res, nil
		}
	}
	metrics.CacheMisses.Inc()

	if src == target {
		return Result{
			URL:      paths.URL(sourceDir) + filepath.ToSlash(rel),
			Path:     sourceFile,
			Kind:     KindPassThrough,
			Geometry: target,
		}, nil
	}

	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	artifact := ArtifactPath(destDir, target, rel)
	_, err, shared := g.group.Do(artifact, func() (any, error) {
		if filesystem.IsRegularFile(artifact, g.retry) {
			return nil, nil
		}
		return nil, g.generate(cfg, sourceFile, format, src, target, req.PreserveRatio, artifact)
	})
	if shared {
		metrics.SharedGenerations.Inc()
	}
	if err != nil {
		if errors.Is(err, errDecode) {
			logging.Warn("Failed to decode %s: %v", sourceFile, err)
			return fallback(ReasonDecodeFailure), nil
		}
		logging.Warn("Failed to write thumbnail %s: %v", artifact, err)
		return fallback(ReasonWriteFailure), nil
	}

	logging.Debug("Generated %s thumbnail for %s", target, sourceFile)
	return Result{
		URL:      paths.ArtifactURL(destDir, target, rel),
		Path:     artifact,
		Kind:     KindGenerated,
		Geometry: target,
	}, nil
}

func (g *Generator) cached(paths PathResolver, destDir string, target Geometry, rel string) (Result, bool) {
	artifact, hit := probeCache(destDir, target, rel, g.retry)
	if !hit {
		return Result{}, false
	}
	metrics.CacheHits.Inc()
	return Result{
		URL:      paths.ArtifactURL(destDir, target, rel),
		Path:     artifact,
		Kind:     KindCached,
		Geometry: target,
	}, true
}

// generate decodes, composes, encodes and persists one artifact. Nothing
// is written unless encoding succeeded.
func (g *Generator) generate(cfg *config.Config, sourceFile string, format Format, src, target Geometry, preserveRatio bool, artifact string) error {
	placed, _ := Place(src, target, preserveRatio)
	least := Geometry{Width: placed.Dx(), Height: placed.Dy()}

	phase := time.Now()
	img, err := g.decoder.Decode(sourceFile, format, least)
	if err != nil {
		return fmt.Errorf("%w: %w", errDecode, err)
	}
	phase = observePhase("decode", phase)

	out := OutputFormat(format, cfg.JPEGOnly)
	fill := cfg.CanvasFill()
	if out == FormatJPEG {
		// JPEG has no alpha; the encoder would turn transparent areas black.
		fill.A = 0xff
	}
	canvas, policy := Compose(img, target, preserveRatio, fill)
	metrics.PlacementsTotal.WithLabelValues(policy.String()).Inc()
	phase = observePhase("compose", phase)

	var buf bytes.Buffer
	if err := Encode(&buf, canvas, out); err != nil {
		return fmt.Errorf("encode %s: %w", out, err)
	}
	phase = observePhase("encode", phase)

	if err := filesystem.WriteFileAtomic(artifact, buf.Bytes(), cfg.FileMode, cfg.DirMode); err != nil {
		return err
	}
	observePhase("write", phase)
	metrics.ArtifactBytes.WithLabelValues(out.String()).Observe(float64(buf.Len()))
	return nil
}

func observePhase(name string, since time.Time) time.Time {
	now := time.Now()
	metrics.GenerationPhaseDuration.WithLabelValues(name).Observe(now.Sub(since).Seconds())
	return now
}
