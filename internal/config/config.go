package config

import (
	"errors"
	"fmt"
	"image/color"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

// FillMode selects how the canvas is prepared before the source is drawn.
type FillMode string

const (
	// FillBackground paints the canvas with the opaque background color.
	FillBackground FillMode = "background"
	// FillTransparent uses the background RGB with zero alpha, so formats
	// with an alpha channel keep uncovered areas transparent.
	FillTransparent FillMode = "transparent"
)

// Defaults
const (
	DefaultWidth     = 100
	DefaultHeight    = 75
	DefaultImage     = "https://placehold.co/%dx%d"
	DefaultDirMode   = 0o755
	DefaultFileMode  = 0o644
	DefaultMaxPixels = 50_000_000
	DefaultFill      = FillBackground
)

const defaultBackgroundHex = "#ffffff"

// Config holds everything a render needs besides the request itself.
type Config struct {
	// BasePath is the filesystem root that source paths are relative to.
	// Empty means source paths are already absolute.
	BasePath string `toml:"base_path"`
	// BaseURL is the public prefix that replaces BasePath in generated URLs.
	BaseURL string `toml:"base_url"`
	// SourcePath is used when a render is called with an empty source path.
	SourcePath string `toml:"source_path"`
	// DestinationPath is where <w>x<h> directories are created. Empty means
	// alongside the source images.
	DestinationPath string `toml:"destination_path"`

	DefaultWidth      int         `toml:"default_width"`
	DefaultHeight     int         `toml:"default_height"`
	DefaultBackground color.NRGBA `toml:"-"`
	// DefaultImage is a format string taking width then height.
	DefaultImage string   `toml:"default_image"`
	JPEGOnly     bool     `toml:"jpeg_only"`
	Fill         FillMode `toml:"fill"`

	DirMode  os.FileMode `toml:"-"`
	FileMode os.FileMode `toml:"-"`

	// MaxPixels bounds the decoded size of a source; 0 disables the check.
	MaxPixels int `toml:"max_pixels"`
	// UseVips enables the libvips decoder when it is available.
	UseVips bool `toml:"use_vips"`
}

// Default returns the built-in configuration.
func Default() *Config {
	bg, _ := ParseColor(defaultBackgroundHex)
	return &Config{
		DefaultWidth:      DefaultWidth,
		DefaultHeight:     DefaultHeight,
		DefaultBackground: bg,
		DefaultImage:      DefaultImage,
		Fill:              DefaultFill,
		DirMode:           DefaultDirMode,
		FileMode:          DefaultFileMode,
		MaxPixels:         DefaultMaxPixels,
	}
}

// Clone returns a copy that can be modified without affecting c.
func (c *Config) Clone() *Config {
	cp := *c
	return &cp
}

// CanvasFill returns the color the canvas is filled with for c.Fill.
func (c *Config) CanvasFill() color.NRGBA {
	fill := c.DefaultBackground
	if c.Fill == FillTransparent {
		fill.A = 0
	} else {
		fill.A = 0xff
	}
	return fill
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if c.DefaultWidth <= 0 || c.DefaultHeight <= 0 {
		return fmt.Errorf("default size must be positive, got %dx%d", c.DefaultWidth, c.DefaultHeight)
	}
	switch c.Fill {
	case FillBackground, FillTransparent:
	default:
		return fmt.Errorf("unknown fill mode %q", c.Fill)
	}
	if c.DefaultImage != "" {
		if got := fmt.Sprintf(c.DefaultImage, 1, 2); strings.Contains(got, "%!") {
			return fmt.Errorf("default image template %q must take width and height", c.DefaultImage)
		}
	}
	if c.MaxPixels < 0 {
		return errors.New("max pixels must not be negative")
	}
	if c.DirMode.Perm() == 0 {
		return errors.New("directory mode must grant some permission")
	}
	return nil
}

// fileConfig mirrors the TOML layout; string fields that need parsing are
// kept as strings here.
type fileConfig struct {
	Config
	Background string `toml:"background"`
	DirMode    string `toml:"dir_mode"`
	FileMode   string `toml:"file_mode"`
}

// LoadFile overlays the TOML file at path onto base and returns the result.
// base is not modified.
func LoadFile(base *Config, path string) (*Config, error) {
	fc := fileConfig{Config: *base.Clone()}
	if _, err := toml.DecodeFile(path, &fc); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	cfg := fc.Config
	if fc.Background != "" {
		bg, err := ParseColor(fc.Background)
		if err != nil {
			return nil, fmt.Errorf("background: %w", err)
		}
		cfg.DefaultBackground = bg
	}
	if fc.DirMode != "" {
		mode, err := ParseMode(fc.DirMode)
		if err != nil {
			return nil, fmt.Errorf("dir_mode: %w", err)
		}
		cfg.DirMode = mode
	}
	if fc.FileMode != "" {
		mode, err := ParseMode(fc.FileMode)
		if err != nil {
			return nil, fmt.Errorf("file_mode: %w", err)
		}
		cfg.FileMode = mode
	}
	return &cfg, nil
}

// ParseMode parses an octal permission string such as "0755" or "755".
func ParseMode(s string) (os.FileMode, error) {
	v, err := strconv.ParseUint(strings.TrimPrefix(strings.TrimSpace(s), "0o"), 8, 32)
	if err != nil || v > 0o777 {
		return 0, fmt.Errorf("invalid permission %q", s)
	}
	return os.FileMode(v), nil
}

var errColorFormat = errors.New("unknown color format")

// ParseColor accepts "#rgb", "#rrggbb" or "r,g,b" and returns an opaque color.
func ParseColor(s string) (color.NRGBA, error) {
	s = strings.TrimSpace(s)
	if strings.Contains(s, ",") {
		parts := strings.Split(s, ",")
		if len(parts) != 3 {
			return color.NRGBA{}, errColorFormat
		}
		var rgb [3]uint8
		for i, p := range parts {
			v, err := strconv.ParseUint(strings.TrimSpace(p), 10, 8)
			if err != nil {
				return color.NRGBA{}, errColorFormat
			}
			rgb[i] = uint8(v)
		}
		return color.NRGBA{R: rgb[0], G: rgb[1], B: rgb[2], A: 0xff}, nil
	}

	if (len(s) != 4 && len(s) != 7) || s[0] != '#' {
		return color.NRGBA{}, errColorFormat
	}
	i, err := strconv.ParseUint(s[1:], 16, 32)
	if err != nil {
		return color.NRGBA{}, errColorFormat
	}
	if len(s) == 7 {
		return color.NRGBA{R: uint8(i >> 16), G: uint8(i >> 8), B: uint8(i), A: 0xff}, nil
	}
	expand := func(x uint8) uint8 { return 0x11 * (0x0f & x) }
	return color.NRGBA{R: expand(uint8(i >> 8)), G: expand(uint8(i >> 4)), B: expand(uint8(i)), A: 0xff}, nil
}

// FormatColor renders c as #rrggbb.
func FormatColor(c color.NRGBA) string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}
