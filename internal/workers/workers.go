package workers

import (
	"os"
	"runtime"
	"strconv"
)

// EnvWorkers overrides the computed worker count.
const EnvWorkers = "THUMBCACHE_WORKERS"

// Count returns a worker count of multiplier per available CPU, at least
// one and at most limit (0 = no limit). Available CPUs come from
// GOMAXPROCS, which follows container CPU limits.
//
// A positive THUMBCACHE_WORKERS replaces the computed count; limit still
// applies.
func Count(multiplier float64, limit int) int {
	if n, ok := override(); ok {
		return capAt(n, limit)
	}

	n := int(float64(runtime.GOMAXPROCS(0)) * multiplier)
	return capAt(max(n, 1), limit)
}

func override() (int, bool) {
	v := os.Getenv(EnvWorkers)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

func capAt(n, limit int) int {
	if limit > 0 && n > limit {
		return limit
	}
	return n
}

// ForCPU returns worker count for CPU-bound work such as decoding and
// resampling (1 per CPU).
func ForCPU(limit int) int {
	return Count(1.0, limit)
}

// ForIO returns worker count for I/O-bound work (2 per CPU).
func ForIO(limit int) int {
	return Count(2.0, limit)
}
