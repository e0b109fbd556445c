package thumbnail

import (
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
)

// Format is the closed set of image formats the generator handles.
type Format int

const (
	FormatUnsupported Format = iota
	FormatJPEG
	FormatPNG
	FormatGIF
)

// ClassifyFormat maps a filename to a Format by its extension.
func ClassifyFormat(filename string) Format {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".jpg", ".jpeg":
		return FormatJPEG
	case ".png":
		return FormatPNG
	case ".gif":
		return FormatGIF
	default:
		return FormatUnsupported
	}
}

// formatFromDecoder maps the name registered with the image package
// ("jpeg", "png", "gif") to a Format.
func formatFromDecoder(name string) Format {
	switch name {
	case "jpeg":
		return FormatJPEG
	case "png":
		return FormatPNG
	case "gif":
		return FormatGIF
	default:
		return FormatUnsupported
	}
}

// OutputFormat picks the artifact encoding for a source format.
func OutputFormat(source Format, jpegOnly bool) Format {
	if jpegOnly || source == FormatJPEG {
		return FormatJPEG
	}
	return source
}

func (f Format) String() string {
	switch f {
	case FormatJPEG:
		return "jpeg"
	case FormatPNG:
		return "png"
	case FormatGIF:
		return "gif"
	default:
		return "unsupported"
	}
}

func (f Format) imaging() (imaging.Format, bool) {
	switch f {
	case FormatJPEG:
		return imaging.JPEG, true
	case FormatPNG:
		return imaging.PNG, true
	case FormatGIF:
		return imaging.GIF, true
	default:
		return 0, false
	}
}
