package startup

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"thumbcache/internal/config"
	"thumbcache/internal/logging"
	"thumbcache/internal/memory"
)

// Build-time variables (injected via -ldflags)
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
	GoVersion = runtime.Version()
)

// BuildInfo contains version and build information
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"buildTime"`
	GoVersion string `json:"goVersion"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
}

// GetBuildInfo returns the current build information
func GetBuildInfo() BuildInfo {
	return BuildInfo{
		Version:   Version,
		Commit:    Commit,
		BuildTime: BuildTime,
		GoVersion: GoVersion,
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
}

func (b BuildInfo) String() string {
	return fmt.Sprintf("thumbcache %s (commit %s, built %s, %s %s/%s)",
		b.Version, b.Commit, b.BuildTime, b.GoVersion, b.OS, b.Arch)
}

// RouteInfo contains information about a registered route
type RouteInfo struct {
	Method string
	Path   string
	Name   string
}

const rule = "------------------------------------------------------------"

func section(title string) {
	logging.Info("")
	logging.Info(rule)
	logging.Info(title)
	logging.Info(rule)
}

// LogStartup prints the banner and system information. Long-running
// commands call it once before anything else.
func LogStartup() {
	printBanner()
	logSystemInfo()
}

// LogConfig logs the effective render configuration. source names where
// it came from (a file path, or "defaults").
func LogConfig(cfg *config.Config, source string) {
	section("CONFIGURATION")
	logging.Info("  Source:            %s", source)
	logging.Info("  Base path:         %s", orNone(cfg.BasePath))
	logging.Info("  Base URL:          %s", orNone(cfg.BaseURL))
	logging.Info("  Source path:       %s", orNone(cfg.SourcePath))
	logging.Info("  Destination path:  %s", orDefault(cfg.DestinationPath, "alongside sources"))
	logging.Info("  Default size:      %dx%d", cfg.DefaultWidth, cfg.DefaultHeight)
	logging.Info("  Default image:     %s", orNone(cfg.DefaultImage))
	logging.Info("  Background:        %s (%s)", config.FormatColor(cfg.DefaultBackground), cfg.Fill)
	logging.Info("  JPEG only:         %v", cfg.JPEGOnly)
	logging.Info("  Modes:             dir %04o, file %04o", cfg.DirMode.Perm(), cfg.FileMode.Perm())
	logging.Info("  Max pixels:        %d", cfg.MaxPixels)
	logging.Info("  libvips:           %s", enabledString(cfg.UseVips))
	logging.Info("  LOG_LEVEL:         %s", logging.GetLevel())
}

// CheckDestination makes sure dir exists and is writable. Renders still
// work without it (they fall back), so failures are only logged.
func CheckDestination(dir string, mode os.FileMode) bool {
	section("DIRECTORY SETUP")
	logging.Debug("  Checking thumbnail directory: %s", dir)

	if err := os.MkdirAll(dir, mode); err != nil {
		logging.Warn("  Failed to create thumbnail directory: %v", err)
		logging.Warn("  Every render will use the default image")
		return false
	}

	testFile := filepath.Join(dir, ".write-test")
	if err := os.WriteFile(testFile, []byte("test"), 0o644); err != nil {
		logging.Warn("  Thumbnail directory is not writable: %v", err)
		logging.Warn("  Every render will use the default image")
		return false
	}
	if err := os.Remove(testFile); err != nil {
		logging.Warn("  failed to remove test file %s: %v", testFile, err)
	}

	logging.Info("  [OK] Thumbnail directory is writable: %s", dir)
	return true
}

// LogMemoryConfig logs how the Go memory limit was configured
func LogMemoryConfig(res memory.ConfigResult) {
	section("MEMORY")
	switch res.Source {
	case memory.EnvGoMemLimit:
		logging.Info("  GOMEMLIMIT:        %d bytes (from environment)", res.GoMemLimit)
	case memory.EnvMemoryLimit:
		logging.Info("  Container limit:   %d bytes", res.ContainerLimit)
		logging.Info("  GOMEMLIMIT:        %d bytes (%.0f%%)", res.GoMemLimit, res.Ratio*100)
	default:
		logging.Info("  No memory limit configured (set MEMORY_LIMIT or GOMEMLIMIT)")
	}
}

// LogVipsInit logs the decoder backend in use
func LogVipsInit(requested, available bool) {
	switch {
	case !requested:
		logging.Info("  Decoder:           imaging")
	case available:
		logging.Info("  Decoder:           libvips (imaging fallback)")
	default:
		logging.Warn("  libvips requested but unavailable, using imaging")
	}
}

// WarmerConfig holds the settings shown when the warmer starts
type WarmerConfig struct {
	SourceDir string
	Size      string
	Workers   int
	Interval  time.Duration
	Watch     bool
}

// LogWarmerInit logs warmer initialization
func LogWarmerInit(c WarmerConfig) {
	section("WARMER INITIALIZATION")
	logging.Info("  Source directory:  %s", c.SourceDir)
	logging.Info("  Size:              %s", c.Size)
	logging.Info("  Workers:           %d", c.Workers)
	if c.Interval > 0 {
		logging.Info("  Interval:          %v", c.Interval)
	} else {
		logging.Info("  Interval:          one-shot")
	}
	logging.Info("  Watch:             %s", enabledString(c.Watch))
}

// GetRoutes extracts all registered routes from a mux.Router
func GetRoutes(router *mux.Router) ([]RouteInfo, error) {
	var routes []RouteInfo

	err := router.Walk(func(route *mux.Route, _ *mux.Router, _ []*mux.Route) error {
		pathTemplate, err := route.GetPathTemplate()
		if err != nil {
			return err
		}

		methods, err := route.GetMethods()
		if err != nil {
			methods = []string{"*"}
		}

		for _, method := range methods {
			routes = append(routes, RouteInfo{
				Method: method,
				Path:   pathTemplate,
				Name:   route.GetName(),
			})
		}
		return nil
	})

	sort.SliceStable(routes, func(i, j int) bool {
		return routes[i].Path < routes[j].Path
	})
	return routes, err
}

// LogHTTPRoutes logs the routes of the metrics server at debug level
func LogHTTPRoutes(router *mux.Router) {
	if !logging.IsDebugEnabled() {
		return
	}
	routes, err := GetRoutes(router)
	if err != nil {
		logging.Warn("error walking routes: %v", err)
	}
	logging.Debug("  Registered routes (%d total):", len(routes))
	for _, route := range routes {
		logging.Debug("    %-6s %s", route.Method, route.Path)
	}
}

// ServerConfig holds configuration for the server startup log
type ServerConfig struct {
	MetricsAddr     string
	StartupDuration time.Duration
}

// LogServerStarted logs the metrics endpoint once it is listening
func LogServerStarted(c ServerConfig) {
	section("SERVER STARTED")
	logging.Info("  Startup time:    %v", c.StartupDuration)
	if c.MetricsAddr != "" {
		logging.Info("  Metrics:         http://%s/metrics", displayAddr(c.MetricsAddr))
		logging.Info("  Health:          http://%s/healthz", displayAddr(c.MetricsAddr))
	} else {
		logging.Info("  Metrics:         DISABLED")
	}
	logging.Info("")
	logging.Info("  Press Ctrl+C to stop")
	logging.Info(rule)
}

// LogShutdownInitiated logs shutdown start
func LogShutdownInitiated(signal string) {
	section(fmt.Sprintf("SHUTDOWN INITIATED (received %s)", signal))
}

// LogShutdownStep logs a shutdown step
func LogShutdownStep(step string) {
	logging.Debug("  %s...", step)
}

// LogShutdownStepComplete logs a completed shutdown step
func LogShutdownStepComplete(step string) {
	logging.Info("  [OK] %s", step)
}

// LogShutdownComplete logs shutdown completion
func LogShutdownComplete() {
	logging.Info("  [OK] Shutdown complete")
}

// LogFatal logs a fatal error and exits
func LogFatal(format string, args ...interface{}) {
	logging.Fatal(format, args...)
}

func printBanner() {
	banner := `
------------------------------------------------------------
  _   _                     _                     _
 | |_| |__  _   _ _ __ ___ | |__   ___ __ _  ___| |__
 | __| '_ \| | | | '_ ' _ \| '_ \ / __/ _' |/ __| '_ \
 | |_| | | | |_| | | | | | | |_) | (_| (_| | (__| | | |
  \__|_| |_|\__,_|_| |_| |_|_.__/ \___\__,_|\___|_| |_|

------------------------------------------------------------`
	fmt.Fprintln(os.Stderr, banner)
	logging.Info("  Version:    %s", Version)
	logging.Info("  Commit:     %s", Commit)
	logging.Info("  Build Time: %s", BuildTime)
	logging.Info("  Started:    %s", time.Now().Format(time.RFC1123))
}

func logSystemInfo() {
	section("SYSTEM INFORMATION")
	logging.Info("  Go version:      %s", runtime.Version())
	logging.Info("  OS/Arch:         %s/%s", runtime.GOOS, runtime.GOARCH)
	logging.Info("  CPUs available:  %d", runtime.NumCPU())
	logging.Info("  GOMAXPROCS:      %d", runtime.GOMAXPROCS(0))

	if runtime.GOMAXPROCS(0) < runtime.NumCPU() {
		logging.Info("  (Container CPU limit detected)")
	}

	if logging.IsDebugEnabled() {
		if wd, err := os.Getwd(); err == nil {
			logging.Debug("  Working dir:     %s", wd)
		}
		if hostname, err := os.Hostname(); err == nil {
			logging.Debug("  Hostname:        %s", hostname)
		}
	}
}

func displayAddr(addr string) string {
	if strings.HasPrefix(addr, ":") {
		return "localhost" + addr
	}
	return addr
}

func enabledString(enabled bool) string {
	if enabled {
		return "ENABLED"
	}
	return "DISABLED"
}

func orNone(s string) string {
	return orDefault(s, "(none)")
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
