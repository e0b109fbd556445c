package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"thumbcache/internal/config"
	"thumbcache/internal/filesystem"
	"thumbcache/internal/logging"
	"thumbcache/internal/memory"
	"thumbcache/internal/metrics"
	"thumbcache/internal/middleware"
	"thumbcache/internal/startup"
	"thumbcache/internal/thumbnail"
	"thumbcache/internal/warmer"
)

var (
	warmSource      string
	warmWidth       string
	warmHeight      string
	warmNoPreserve  bool
	warmInterval    time.Duration
	warmWatch       bool
	warmWorkers     int
	warmMetricsAddr string
)

var warmCmd = &cobra.Command{
	Use:   "warm",
	Short: "Pre-generate thumbnails for a directory",
	Long: `Walk the source directory and render a thumbnail for every supported
image, so later renders are cache hits.

By default warm makes one pass and exits. --interval repeats the pass,
reloading the configuration before each one; --watch renders new and
rewritten files as they appear. Both run until interrupted.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		width, height, err := parseSize(warmWidth, warmHeight)
		if err != nil {
			return err
		}
		return runWarm(cmd.Context(), width, height)
	},
}

func init() {
	rootCmd.AddCommand(warmCmd)

	warmCmd.Flags().StringVar(&warmSource, "source", "", "source directory (default: configured source path)")
	warmCmd.Flags().StringVar(&warmWidth, "width", "", `thumbnail width in pixels or "auto"`)
	warmCmd.Flags().StringVar(&warmHeight, "height", "", `thumbnail height in pixels or "auto"`)
	warmCmd.Flags().BoolVar(&warmNoPreserve, "no-preserve-ratio", false, "stretch sources to fill the thumbnail")
	warmCmd.Flags().DurationVar(&warmInterval, "interval", 0, "repeat the warm pass at this interval (0: once)")
	warmCmd.Flags().BoolVar(&warmWatch, "watch", false, "render new files as they are written")
	warmCmd.Flags().IntVar(&warmWorkers, "workers", 0, fmt.Sprintf("concurrent renders (default: CPU count, max %d)", warmer.MaxWorkers))
	warmCmd.Flags().StringVar(&warmMetricsAddr, "metrics-addr", "", "serve /metrics and /healthz on this address")
}

func runWarm(parent context.Context, width, height thumbnail.Dimension) error {
	startTime := time.Now()
	if parent == nil {
		parent = context.Background()
	}

	startup.LogStartup()
	startup.LogMemoryConfig(memory.ConfigureFromEnv())
	startup.LogConfig(cfg, configSource())

	metrics.InitializeMetrics()
	info := startup.GetBuildInfo()
	metrics.SetAppInfo(info.Version, info.Commit, info.GoVersion)

	paths := thumbnail.NewPathResolver(cfg.BasePath, cfg.BaseURL)
	sourceDir := paths.SourceDir(warmSource, cfg.SourcePath)
	volumes := map[string]string{"source": sourceDir}
	if cfg.DestinationPath != "" {
		destDir := paths.SourceDir(cfg.DestinationPath, "")
		volumes["thumbnails"] = destDir
		startup.CheckDestination(destDir, cfg.DirMode)
	}
	filesystem.SetDefaultVolumeResolver(filesystem.NewVolumeResolver(volumes))
	filesystem.SetObserver(metrics.NewFilesystemObserver())

	decoder, cleanup := newDecoder(cfg)
	defer cleanup()
	gen := thumbnail.New(cfg, thumbnail.WithDecoder(decoder))

	monitor := memory.NewMonitor(memory.DefaultConfig())
	if monitor.Enabled() {
		monitor.Start()
		defer monitor.Stop()
	}

	w := warmer.New(gen, warmer.Options{
		SourcePath:    warmSource,
		Width:         width,
		Height:        height,
		PreserveRatio: !warmNoPreserve,
		Workers:       warmWorkers,
		Monitor:       monitor,
	})
	startup.LogWarmerInit(startup.WarmerConfig{
		SourceDir: sourceDir,
		Size:      fmt.Sprintf("%s x %s", dimensionString(width, cfg.DefaultWidth), dimensionString(height, cfg.DefaultHeight)),
		Workers:   w.Workers(),
		Interval:  warmInterval,
		Watch:     warmWatch,
	})

	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	var srv *http.Server
	if warmMetricsAddr != "" {
		router := newMetricsRouter()
		startup.LogHTTPRoutes(router)
		srv = &http.Server{
			Addr:              warmMetricsAddr,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
			IdleTimeout:       60 * time.Second,
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logging.Error("Metrics server error: %v", err)
				cancel()
			}
		}()
	}

	go handleShutdown(ctx, cancel)

	long := warmWatch || warmInterval > 0
	if long {
		startup.LogServerStarted(startup.ServerConfig{
			MetricsAddr:     warmMetricsAddr,
			StartupDuration: time.Since(startTime),
		})
	}

	err := warm(ctx, w)

	if srv != nil {
		startup.LogShutdownStep("Shutting down metrics server")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if serr := srv.Shutdown(shutdownCtx); serr != nil {
			logging.Warn("Metrics server shutdown error: %v", serr)
		} else {
			startup.LogShutdownStepComplete("Metrics server stopped")
		}
	}
	if long {
		startup.LogShutdownComplete()
	}
	return err
}

// warm runs the pass, interval loop and watcher the flags ask for.
func warm(ctx context.Context, w *warmer.Warmer) error {
	if !warmWatch && warmInterval <= 0 {
		_, err := w.Run(ctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	if warmInterval > 0 {
		g.Go(func() error {
			return w.RunEvery(gctx, warmInterval, reloadConfig)
		})
	} else {
		g.Go(func() error {
			_, err := w.Run(gctx)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}
	if warmWatch {
		g.Go(func() error {
			return w.Watch(gctx)
		})
	}
	return g.Wait()
}

// reloadConfig rereads the file named by --config and the environment.
func reloadConfig() (*config.Config, error) {
	return config.Load(cfgFile)
}

func newMetricsRouter() *mux.Router {
	r := mux.NewRouter()
	r.Use(middleware.Logger(middleware.DefaultLoggingConfig()))
	r.Use(middleware.Metrics)

	r.Handle("/metrics", promhttp.Handler()).Methods("GET")
	r.HandleFunc("/healthz", healthCheck).Methods("GET")
	return r
}

func healthCheck(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("ok\n")); err != nil {
		logging.Debug("failed to write health response: %v", err)
	}
}

// handleShutdown cancels the warm context on SIGINT or SIGTERM.
func handleShutdown(ctx context.Context, cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case sig := <-sigChan:
		startup.LogShutdownInitiated(sig.String())
		startup.LogShutdownStep("Stopping warmer")
		cancel()
	case <-ctx.Done():
	}
}

func dimensionString(d thumbnail.Dimension, def int) string {
	switch {
	case d == thumbnail.Auto:
		return "auto"
	case d == 0:
		return fmt.Sprintf("%d", def)
	default:
		return fmt.Sprintf("%d", int(d))
	}
}
