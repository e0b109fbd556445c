package thumbnail

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrPrecondition is wrapped by every error a render can return for a
// malformed request. Recoverable conditions never produce errors.
var ErrPrecondition = errors.New("thumbnail: precondition violated")

var (
	// ErrBothAuto is returned when width and height are both Auto.
	ErrBothAuto = fmt.Errorf("%w: width and height cannot both be auto", ErrPrecondition)
	// ErrInvalidDimension is returned for negative sizes.
	ErrInvalidDimension = fmt.Errorf("%w: dimension must be positive or auto", ErrPrecondition)
)

// Dimension is a requested width or height. The zero value means "use the
// configured default"; Auto derives the size from the source aspect ratio.
type Dimension int

// Auto derives a dimension from the other one and the source ratio.
const Auto Dimension = -1

// Px returns an explicit pixel dimension.
func Px(n int) Dimension {
	return Dimension(n)
}

// ParseDimension parses "", "auto" or a pixel count.
func ParseDimension(s string) (Dimension, error) {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "":
		return 0, nil
	case "auto":
		return Auto, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid dimension %q", s)
	}
	return Px(n), nil
}

// IsAuto reports whether d is Auto.
func (d Dimension) IsAuto() bool { return d == Auto }

func (d Dimension) String() string {
	switch {
	case d == Auto:
		return "auto"
	case d == 0:
		return "default"
	default:
		return strconv.Itoa(int(d))
	}
}

// Geometry is a resolved pixel size.
type Geometry struct {
	Width  int
	Height int
}

// Valid reports whether both sides are positive.
func (g Geometry) Valid() bool {
	return g.Width > 0 && g.Height > 0
}

// String formats g as the artifact directory name, e.g. "100x75".
func (g Geometry) String() string {
	return strconv.Itoa(g.Width) + "x" + strconv.Itoa(g.Height)
}

// Options are the per-call render options.
type Options struct {
	Width  Dimension
	Height Dimension
	// PreserveRatio defaults to true when nil.
	PreserveRatio *bool
	// DefaultImage replaces the configured placeholder for this call.
	DefaultImage string
}

// Bool returns a pointer to b, for Options.PreserveRatio.
func Bool(b bool) *bool {
	return &b
}

// RenderRequest is one fully specified render call.
type RenderRequest struct {
	SourcePath    string
	Filename      string
	Width         Dimension
	Height        Dimension
	PreserveRatio bool
	DefaultImage  string
}

// Request builds the RenderRequest for sourcePath/filename with o applied.
func (o Options) Request(sourcePath, filename string) RenderRequest {
	preserve := true
	if o.PreserveRatio != nil {
		preserve = *o.PreserveRatio
	}
	return RenderRequest{
		SourcePath:    sourcePath,
		Filename:      filename,
		Width:         o.Width,
		Height:        o.Height,
		PreserveRatio: preserve,
		DefaultImage:  o.DefaultImage,
	}
}

// Kind says how a Result was produced.
type Kind int

const (
	// KindFallback means the default image was returned.
	KindFallback Kind = iota
	// KindCached means an existing artifact was returned.
	KindCached
	// KindGenerated means a new artifact was written.
	KindGenerated
	// KindPassThrough means the source already had the requested size.
	KindPassThrough
)

func (k Kind) String() string {
	switch k {
	case KindCached:
		return "cached"
	case KindGenerated:
		return "generated"
	case KindPassThrough:
		return "passthrough"
	default:
		return "fallback"
	}
}

// FallbackReason explains why the default image was returned.
type FallbackReason int

const (
	ReasonNone FallbackReason = iota
	ReasonEmptyFilename
	ReasonMissingSource
	ReasonUnsafePath
	ReasonUnsupportedFormat
	ReasonDecodeFailure
	ReasonWriteFailure
)

func (r FallbackReason) String() string {
	switch r {
	case ReasonEmptyFilename:
		return "empty_filename"
	case ReasonMissingSource:
		return "missing_source"
	case ReasonUnsafePath:
		return "unsafe_path"
	case ReasonUnsupportedFormat:
		return "unsupported_format"
	case ReasonDecodeFailure:
		return "decode_failure"
	case ReasonWriteFailure:
		return "write_failure"
	default:
		return "none"
	}
}

// Result is the outcome of a render.
type Result struct {
	// URL is the public reference to hand to the view layer.
	URL string
	// Path is the filesystem path behind URL; empty for fallbacks.
	Path     string
	Kind     Kind
	Reason   FallbackReason
	Geometry Geometry
}
