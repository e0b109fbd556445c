package warmer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"regexp"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"thumbcache/internal/config"
	"thumbcache/internal/logging"
	"thumbcache/internal/memory"
	"thumbcache/internal/metrics"
	"thumbcache/internal/thumbnail"
	"thumbcache/internal/workers"
)

// MaxWorkers caps the automatically sized pool.
const MaxWorkers = 8

var geometryDir = regexp.MustCompile(`^\d+x\d+$`)

// Renderer is the part of *thumbnail.Generator the warmer drives.
type Renderer interface {
	Thumbnail(ctx context.Context, req thumbnail.RenderRequest) (thumbnail.Result, error)
	Config() *config.Config
	SetConfig(cfg *config.Config)
}

// Options controls what a warm pass renders.
type Options struct {
	// SourcePath is resolved like a render's source path; empty uses the
	// configured default.
	SourcePath    string
	Width         thumbnail.Dimension
	Height        thumbnail.Dimension
	PreserveRatio bool
	// Workers is the pool size; 0 sizes it from the available CPUs.
	Workers int
	// Monitor, when set, pauses workers under memory pressure.
	Monitor *memory.Monitor
	// Debounce is how long Watch waits for a file to stop changing.
	Debounce time.Duration
}

// Stats summarizes one warm pass.
type Stats struct {
	Files       int
	Cached      int
	Generated   int
	PassThrough int
	Fallback    int
	Duration    time.Duration
}

func (s Stats) String() string {
	return fmt.Sprintf("%d files (%d generated, %d cached, %d passthrough, %d fallback) in %v",
		s.Files, s.Generated, s.Cached, s.PassThrough, s.Fallback, s.Duration.Round(time.Millisecond))
}

type counters struct {
	files, cached, generated, passThrough, fallback atomic.Int64
}

func (c *counters) record(k thumbnail.Kind) {
	c.files.Add(1)
	switch k {
	case thumbnail.KindCached:
		c.cached.Add(1)
	case thumbnail.KindGenerated:
		c.generated.Add(1)
	case thumbnail.KindPassThrough:
		c.passThrough.Add(1)
	default:
		c.fallback.Add(1)
	}
}

func (c *counters) stats(d time.Duration) Stats {
	return Stats{
		Files:       int(c.files.Load()),
		Cached:      int(c.cached.Load()),
		Generated:   int(c.generated.Load()),
		PassThrough: int(c.passThrough.Load()),
		Fallback:    int(c.fallback.Load()),
		Duration:    d,
	}
}

// Warmer renders thumbnails in bulk.
type Warmer struct {
	r    Renderer
	opts Options
}

// New creates a Warmer.
func New(r Renderer, opts Options) *Warmer {
	if opts.Workers <= 0 {
		opts.Workers = workers.ForCPU(MaxWorkers)
	}
	if opts.Debounce <= 0 {
		opts.Debounce = 500 * time.Millisecond
	}
	return &Warmer{r: r, opts: opts}
}

// Workers returns the pool size in use.
func (w *Warmer) Workers() int {
	return w.opts.Workers
}

// roots returns the directory to walk and the destination directory to
// leave alone when it lives inside it.
func (w *Warmer) roots() (source, dest string) {
	cfg := w.r.Config()
	paths := thumbnail.NewPathResolver(cfg.BasePath, cfg.BaseURL)
	source = paths.SourceDir(w.opts.SourcePath, cfg.SourcePath)
	if cfg.DestinationPath != "" {
		dest = paths.SourceDir(cfg.DestinationPath, "")
	}
	return filepath.Clean(source), filepath.Clean(dest)
}

// skipDir reports whether a directory below the source root is ignored.
func skipDir(path, name, dest string) bool {
	return strings.HasPrefix(name, ".") || geometryDir.MatchString(name) || (dest != "." && path == dest)
}

func (w *Warmer) request(rel string) thumbnail.RenderRequest {
	return thumbnail.RenderRequest{
		SourcePath:    w.opts.SourcePath,
		Filename:      filepath.ToSlash(rel),
		Width:         w.opts.Width,
		Height:        w.opts.Height,
		PreserveRatio: w.opts.PreserveRatio,
	}
}

// Run performs one warm pass. It stops at the first precondition error
// or when ctx ends; individual fallbacks are only counted.
func (w *Warmer) Run(ctx context.Context) (Stats, error) {
	start := time.Now()
	metrics.WarmRunsTotal.Inc()
	metrics.WarmRunning.Set(1)
	metrics.WarmWorkers.Set(float64(w.opts.Workers))
	defer metrics.WarmRunning.Set(0)

	root, dest := w.roots()
	logging.Info("Warming thumbnails under %s with %d workers", root, w.opts.Workers)

	var c counters
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.opts.Workers)

	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			logging.Warn("Skipping %s: %v", path, err)
			return nil
		}
		if ctxErr := gctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() {
			if path != root && skipDir(path, d.Name(), dest) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || thumbnail.ClassifyFormat(d.Name()) == thumbnail.FormatUnsupported {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return nil
		}
		g.Go(func() error {
			return w.renderOne(gctx, rel, &c)
		})
		return nil
	})

	err := g.Wait()
	if err == nil && walkErr != nil && !errors.Is(walkErr, context.Canceled) {
		err = fmt.Errorf("failed to walk %s: %w", root, walkErr)
	}
	if err == nil {
		err = ctx.Err()
	}

	stats := c.stats(time.Since(start))
	metrics.WarmLastDuration.Set(stats.Duration.Seconds())
	metrics.WarmLastTimestamp.Set(float64(time.Now().Unix()))
	metrics.WarmFiles.WithLabelValues("cached").Set(float64(stats.Cached))
	metrics.WarmFiles.WithLabelValues("generated").Set(float64(stats.Generated))
	metrics.WarmFiles.WithLabelValues("passthrough").Set(float64(stats.PassThrough))
	metrics.WarmFiles.WithLabelValues("fallback").Set(float64(stats.Fallback))

	if err != nil {
		logging.Warn("Warm pass stopped after %s: %v", stats, err)
		return stats, err
	}
	logging.Info("Warm pass complete: %s", stats)
	return stats, nil
}

func (w *Warmer) renderOne(ctx context.Context, rel string, c *counters) error {
	if w.opts.Monitor != nil {
		if err := w.opts.Monitor.Wait(ctx); err != nil {
			return err
		}
	}

	res, err := w.r.Thumbnail(ctx, w.request(rel))
	if err != nil {
		return fmt.Errorf("%s: %w", rel, err)
	}
	c.record(res.Kind)
	if res.Kind == thumbnail.KindFallback {
		logging.Debug("Warm fallback for %s: %s", rel, res.Reason)
	}
	return nil
}

// ReloadFunc produces the configuration for the next pass.
type ReloadFunc func() (*config.Config, error)

// RunEvery runs a pass immediately and then every interval until ctx
// ends. When reload is set, its configuration is applied before each
// later pass; a failed reload keeps the current one.
func (w *Warmer) RunEvery(ctx context.Context, interval time.Duration, reload ReloadFunc) error {
	if _, err := w.Run(ctx); err != nil && !isDone(ctx, err) {
		return err
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if reload != nil {
				cfg, err := reload()
				if err != nil {
					logging.Warn("Config reload failed, keeping current configuration: %v", err)
				} else {
					w.r.SetConfig(cfg)
					logging.Debug("Configuration reloaded")
				}
			}
			if _, err := w.Run(ctx); err != nil && !isDone(ctx, err) {
				return err
			}
		}
	}
}

func isDone(ctx context.Context, err error) bool {
	return ctx.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded))
}
