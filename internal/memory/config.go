package memory

import (
	"math"
	"os"
	"runtime/debug"
	"strconv"

	"thumbcache/internal/logging"
)

// DefaultMemoryRatio is the share of the container limit given to the Go
// heap; the rest is left for libvips and goroutine stacks.
const DefaultMemoryRatio = 0.85

// Environment variables read by ConfigureFromEnv.
const (
	EnvGoMemLimit  = "GOMEMLIMIT"
	EnvMemoryLimit = "MEMORY_LIMIT"
	EnvMemoryRatio = "MEMORY_RATIO"
)

// ConfigResult describes what ConfigureFromEnv did.
type ConfigResult struct {
	Configured bool
	// Source is "GOMEMLIMIT", "MEMORY_LIMIT" or "none".
	Source         string
	ContainerLimit int64
	GoMemLimit     int64
	Ratio          float64
}

// ConfigureFromEnv sets the Go memory limit from MEMORY_LIMIT (for example
// from the Kubernetes Downward API) unless GOMEMLIMIT is already set. Call
// it early in main.
func ConfigureFromEnv() ConfigResult {
	res := resolve(os.Getenv)
	if res.Source == EnvMemoryLimit {
		debug.SetMemoryLimit(res.GoMemLimit)
		logging.Info("Configured GOMEMLIMIT: %s (%.1f%% of %s container limit)",
			formatBytes(res.GoMemLimit), res.Ratio*100, formatBytes(res.ContainerLimit))
	}
	return res
}

// resolve computes the limit from the environment without applying it.
func resolve(getenv func(string) string) ConfigResult {
	if v := getenv(EnvGoMemLimit); v != "" {
		res := ConfigResult{Source: EnvGoMemLimit}
		if limit := debug.SetMemoryLimit(-1); limit > 0 && limit < math.MaxInt64 {
			res.Configured = true
			res.GoMemLimit = limit
		}
		logging.Info("GOMEMLIMIT set via environment: %s", v)
		return res
	}

	v := getenv(EnvMemoryLimit)
	if v == "" {
		return ConfigResult{Source: "none"}
	}
	limit, err := strconv.ParseInt(v, 10, 64)
	if err != nil || limit <= 0 {
		logging.Warn("Invalid %s %q, GOMEMLIMIT not configured", EnvMemoryLimit, v)
		return ConfigResult{Source: "none"}
	}

	ratio := DefaultMemoryRatio
	if rs := getenv(EnvMemoryRatio); rs != "" {
		r, err := strconv.ParseFloat(rs, 64)
		if err != nil || r <= 0 || r > 1 {
			logging.Warn("Invalid %s %q, using default %.2f", EnvMemoryRatio, rs, DefaultMemoryRatio)
		} else {
			ratio = r
		}
	}

	return ConfigResult{
		Configured:     true,
		Source:         EnvMemoryLimit,
		ContainerLimit: limit,
		GoMemLimit:     int64(float64(limit) * ratio),
		Ratio:          ratio,
	}
}

func formatBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return strconv.FormatInt(b, 10) + " B"
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return strconv.FormatFloat(float64(b)/float64(div), 'f', 1, 64) + " " + string("KMGTPE"[exp]) + "iB"
}
