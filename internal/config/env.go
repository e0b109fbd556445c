package config

import (
	"fmt"
	"os"
	"strconv"

	"thumbcache/internal/logging"
)

// Environment variables read by ApplyEnv.
const (
	EnvBasePath        = "THUMBCACHE_BASE_PATH"
	EnvBaseURL         = "THUMBCACHE_BASE_URL"
	EnvSourcePath      = "THUMBCACHE_SOURCE_PATH"
	EnvDestinationPath = "THUMBCACHE_DESTINATION_PATH"
	EnvDefaultWidth    = "THUMBCACHE_DEFAULT_WIDTH"
	EnvDefaultHeight   = "THUMBCACHE_DEFAULT_HEIGHT"
	EnvBackground      = "THUMBCACHE_BACKGROUND"
	EnvDefaultImage    = "THUMBCACHE_DEFAULT_IMAGE"
	EnvJPEGOnly        = "THUMBCACHE_JPEG_ONLY"
	EnvFill            = "THUMBCACHE_FILL"
	EnvDirMode         = "THUMBCACHE_DIR_MODE"
	EnvFileMode        = "THUMBCACHE_FILE_MODE"
	EnvMaxPixels       = "THUMBCACHE_MAX_PIXELS"
	EnvUseVips         = "THUMBCACHE_USE_VIPS"
)

// ApplyEnv returns a copy of base with any THUMBCACHE_* variables applied.
// Unparseable values are logged and ignored.
func ApplyEnv(base *Config) *Config {
	cfg := base.Clone()

	cfg.BasePath = getEnv(EnvBasePath, cfg.BasePath)
	cfg.BaseURL = getEnv(EnvBaseURL, cfg.BaseURL)
	cfg.SourcePath = getEnv(EnvSourcePath, cfg.SourcePath)
	cfg.DestinationPath = getEnv(EnvDestinationPath, cfg.DestinationPath)
	cfg.DefaultWidth = getEnvInt(EnvDefaultWidth, cfg.DefaultWidth)
	cfg.DefaultHeight = getEnvInt(EnvDefaultHeight, cfg.DefaultHeight)
	cfg.DefaultImage = getEnv(EnvDefaultImage, cfg.DefaultImage)
	cfg.JPEGOnly = getEnvBool(EnvJPEGOnly, cfg.JPEGOnly)
	cfg.Fill = FillMode(getEnv(EnvFill, string(cfg.Fill)))
	cfg.MaxPixels = getEnvInt(EnvMaxPixels, cfg.MaxPixels)
	cfg.UseVips = getEnvBool(EnvUseVips, cfg.UseVips)

	if v := os.Getenv(EnvBackground); v != "" {
		if bg, err := ParseColor(v); err == nil {
			cfg.DefaultBackground = bg
		} else {
			logging.Warn("Invalid color for %s: %q, using default: %s", EnvBackground, v, FormatColor(cfg.DefaultBackground))
		}
	}
	cfg.DirMode = getEnvMode(EnvDirMode, cfg.DirMode)
	cfg.FileMode = getEnvMode(EnvFileMode, cfg.FileMode)

	return cfg
}

// Load builds a Config from defaults, the optional file and the environment,
// then validates it.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		var err error
		if cfg, err = LoadFile(cfg, path); err != nil {
			return nil, err
		}
	}
	cfg = ApplyEnv(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		logging.Warn("Invalid boolean value for %s: %q, using default: %v", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		logging.Warn("Invalid integer value for %s: %q, using default: %d", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

func getEnvMode(key string, defaultValue os.FileMode) os.FileMode {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	mode, err := ParseMode(value)
	if err != nil {
		logging.Warn("Invalid permission for %s: %q, using default: %o", key, value, defaultValue)
		return defaultValue
	}
	return mode
}
