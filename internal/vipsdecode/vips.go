// Package vipsdecode decodes thumbnail sources with libvips, falling back
// to the pure Go decoder whenever libvips is not running or fails.
package vipsdecode

import (
	"bytes"
	"fmt"
	"image"
	"math"
	"path/filepath"
	"sync"

	"github.com/davidbyttow/govips/v2/vips"
	"github.com/disintegration/imaging"

	"thumbcache/internal/logging"
	"thumbcache/internal/metrics"
	"thumbcache/internal/thumbnail"
)

var (
	mu          sync.Mutex
	initialized bool
	available   bool
)

// Init starts libvips. It is safe to call more than once.
func Init() error {
	mu.Lock()
	defer mu.Unlock()

	if initialized {
		return nil
	}

	// Logging must be configured before Startup.
	level, handler := logSettings(logging.GetLevel())
	vips.LoggingSettings(handler, level)

	vips.Startup(&vips.Config{
		ConcurrencyLevel: 1,
		MaxCacheMem:      50 * 1024 * 1024,
		MaxCacheSize:     100,
	})

	initialized = true
	available = true
	logging.Info("libvips initialized successfully (version: %s)", vips.Version)
	return nil
}

// logSettings maps the application log level onto libvips verbosity.
func logSettings(appLevel logging.LogLevel) (vips.LogLevel, vips.LoggingHandlerFunction) {
	forward := func(domain string, level vips.LogLevel, msg string) {
		switch level {
		case vips.LogLevelError, vips.LogLevelCritical:
			logging.Error("[%s] %s", domain, msg)
		case vips.LogLevelWarning:
			logging.Warn("[%s] %s", domain, msg)
		default:
			logging.Debug("[%s] %s", domain, msg)
		}
	}

	switch appLevel {
	case logging.LevelDebug:
		return vips.LogLevelInfo, forward
	case logging.LevelWarn:
		return vips.LogLevelError, forward
	case logging.LevelError:
		return vips.LogLevelCritical, forward
	default:
		return vips.LogLevelWarning, forward
	}
}

// Shutdown stops libvips. libvips cannot be restarted afterwards.
func Shutdown() {
	mu.Lock()
	defer mu.Unlock()

	if available {
		vips.Shutdown()
		available = false
		logging.Info("libvips shutdown complete")
	}
}

// Available reports whether libvips is running.
func Available() bool {
	mu.Lock()
	defer mu.Unlock()
	return available
}

// Decoder implements thumbnail.Decoder on top of libvips.
type Decoder struct {
	fallback thumbnail.Decoder
}

// New returns a Decoder that uses fallback when libvips cannot help.
// A nil fallback uses the imaging decoder.
func New(fallback thumbnail.Decoder) *Decoder {
	if fallback == nil {
		fallback = thumbnail.NewImagingDecoder()
	}
	return &Decoder{fallback: fallback}
}

// Decode implements thumbnail.Decoder. Sources larger than least are
// shrunk by libvips before they reach Go memory.
func (d *Decoder) Decode(path string, format thumbnail.Format, least thumbnail.Geometry) (image.Image, error) {
	if !Available() {
		return d.fallback.Decode(path, format, least)
	}

	img, err := decode(path, format, least)
	if err != nil {
		logging.Debug("vips could not decode %s, using fallback: %v", filepath.Base(path), err)
		return d.fallback.Decode(path, format, least)
	}
	metrics.DecodesByFormat.WithLabelValues(format.String(), "vips").Inc()
	return img, nil
}

// decode loads path, shrinks it towards least and hands it over as a
// lossless PNG.
func decode(path string, format thumbnail.Format, least thumbnail.Geometry) (image.Image, error) {
	ref, err := vips.LoadImageFromFile(path, vips.NewImportParams())
	if err != nil {
		return nil, fmt.Errorf("vips failed to load image: %w", err)
	}
	defer ref.Close()

	if got := imageType(format); ref.Format() != got {
		return nil, fmt.Errorf("vips loaded image type %d from a %s file", ref.Format(), format)
	}

	origWidth, origHeight := ref.Width(), ref.Height()
	if w, h, ok := shrinkBox(origWidth, origHeight, least); ok {
		logging.Debug("Vips shrinking %s: %dx%d into %dx%d",
			filepath.Base(path), origWidth, origHeight, w, h)
		if err := ref.Thumbnail(w, h, vips.InterestingNone); err != nil {
			return nil, fmt.Errorf("vips resize failed: %w", err)
		}
	}

	params := vips.NewPngExportParams()
	params.Compression = 1
	buf, _, err := ref.ExportPng(params)
	if err != nil {
		return nil, fmt.Errorf("vips export failed: %w", err)
	}

	img, err := imaging.Decode(bytes.NewReader(buf))
	if err != nil {
		return nil, fmt.Errorf("failed to decode vips output: %w", err)
	}
	return img, nil
}

func imageType(f thumbnail.Format) vips.ImageType {
	switch f {
	case thumbnail.FormatJPEG:
		return vips.ImageTypeJPEG
	case thumbnail.FormatPNG:
		return vips.ImageTypePNG
	case thumbnail.FormatGIF:
		return vips.ImageTypeGIF
	default:
		return vips.ImageTypeUnknown
	}
}

// shrinkBox returns the box a w x h source is thumbnailed into so that
// neither side ends up below least. ok is false when the source is
// already at or below least on some side.
func shrinkBox(w, h int, least thumbnail.Geometry) (bw, bh int, ok bool) {
	if !least.Valid() || w <= 0 || h <= 0 {
		return 0, 0, false
	}
	scale := math.Max(float64(least.Width)/float64(w), float64(least.Height)/float64(h))
	if scale >= 1 {
		return 0, 0, false
	}
	// One extra pixel absorbs libvips rounding down.
	bw = min(w, int(math.Ceil(float64(w)*scale))+1)
	bh = min(h, int(math.Ceil(float64(h)*scale))+1)
	return bw, bh, true
}
