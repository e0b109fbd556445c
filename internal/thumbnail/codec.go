package thumbnail

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/color/palette"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"

	"github.com/disintegration/imaging"
	"golang.org/x/image/draw"

	"thumbcache/internal/filesystem"
	"thumbcache/internal/metrics"
)

var (
	errDecode         = errors.New("decode failed")
	errTooLarge       = errors.New("source exceeds pixel limit")
	errFormatMismatch = errors.New("image data does not match extension")
)

// Decoder loads a source image into memory. The data must be in format.
// least is the smallest size the image is drawn at; a decoder may return
// an image scaled down to no less than least on either side. A zero least
// asks for full size.
type Decoder interface {
	Decode(path string, format Format, least Geometry) (image.Image, error)
}

// ImagingDecoder decodes with the pure Go codecs.
type ImagingDecoder struct {
	Retry filesystem.RetryConfig
}

// NewImagingDecoder returns a decoder using the default retry policy.
func NewImagingDecoder() ImagingDecoder {
	return ImagingDecoder{Retry: filesystem.DefaultRetryConfig()}
}

// Decode implements Decoder. It always decodes at full size.
func (d ImagingDecoder) Decode(path string, format Format, _ Geometry) (image.Image, error) {
	f, err := filesystem.OpenWithRetry(path, d.Retry)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if _, err := checkFormat(f, format); err != nil {
		return nil, err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	img, err := imaging.Decode(f)
	if err != nil {
		return nil, err
	}
	metrics.DecodesByFormat.WithLabelValues(format.String(), "imaging").Inc()
	return img, nil
}

// checkFormat reads the header from r and fails unless it is format.
func checkFormat(r io.Reader, format Format) (image.Config, error) {
	cfg, name, err := image.DecodeConfig(r)
	if err != nil {
		return image.Config{}, err
	}
	if got := formatFromDecoder(name); got != format {
		return image.Config{}, fmt.Errorf("%w: %s data in a %s file", errFormatMismatch, name, format)
	}
	return cfg, nil
}

// readGeometry reads the source header. The data must be in format, the
// one named by the file's extension, and must not exceed maxPixels when
// that is positive.
func readGeometry(path string, format Format, retry filesystem.RetryConfig, maxPixels int) (Geometry, error) {
	f, err := filesystem.OpenWithRetry(path, retry)
	if err != nil {
		return Geometry{}, err
	}
	defer f.Close()

	cfg, err := checkFormat(f, format)
	if err != nil {
		return Geometry{}, err
	}

	g := Geometry{Width: cfg.Width, Height: cfg.Height}
	if !g.Valid() {
		return Geometry{}, fmt.Errorf("invalid image size %s", g)
	}
	if maxPixels > 0 && int64(g.Width)*int64(g.Height) > int64(maxPixels) {
		return Geometry{}, fmt.Errorf("%w: %s", errTooLarge, g)
	}
	return g, nil
}

// Encode writes img to w in format f. JPEG is written at maximum quality;
// GIF keeps a transparent palette entry so transparent canvases survive.
func Encode(w io.Writer, img image.Image, f Format) error {
	format, ok := f.imaging()
	if !ok {
		return fmt.Errorf("cannot encode format %s", f)
	}
	switch f {
	case FormatJPEG:
		return imaging.Encode(w, img, format, imaging.JPEGQuality(100))
	case FormatGIF:
		return imaging.Encode(w, img, format,
			imaging.GIFQuantizer(transparentPalette{}),
			imaging.GIFDrawer(draw.FloydSteinberg))
	default:
		return imaging.Encode(w, img, format)
	}
}

// transparentPalette is the Plan 9 palette with its last entry replaced
// by full transparency.
type transparentPalette struct{}

func (transparentPalette) Quantize(p color.Palette, _ image.Image) color.Palette {
	p = append(p[:0], palette.Plan9[:len(palette.Plan9)-1]...)
	return append(p, color.Transparent)
}
