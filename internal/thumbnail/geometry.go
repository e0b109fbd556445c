package thumbnail

import (
	"image"
	"math"
)

// Policy is the placement rule Place chose for a composition.
type Policy int

const (
	PolicyStretch Policy = iota
	PolicyCenter
	PolicyFitHeight
	PolicyFitWidth
)

func (p Policy) String() string {
	switch p {
	case PolicyCenter:
		return "center"
	case PolicyFitHeight:
		return "fit_height"
	case PolicyFitWidth:
		return "fit_width"
	default:
		return "stretch"
	}
}

// checkDimensions rejects requests that can never be satisfied. It runs
// before any filesystem access.
func checkDimensions(w, h Dimension) error {
	if w.IsAuto() && h.IsAuto() {
		return ErrBothAuto
	}
	if (w < 0 && !w.IsAuto()) || (h < 0 && !h.IsAuto()) {
		return ErrInvalidDimension
	}
	return nil
}

// ResolveTarget turns requested dimensions into a concrete geometry, deriving
// an Auto side from the source ratio (rounded down, at least 1).
func ResolveTarget(src Geometry, w, h Dimension) (Geometry, error) {
	if err := checkDimensions(w, h); err != nil {
		return Geometry{}, err
	}
	if w == 0 || h == 0 || !src.Valid() {
		return Geometry{}, ErrInvalidDimension
	}

	target := Geometry{Width: int(w), Height: int(h)}
	switch {
	case w.IsAuto():
		target.Width = int(int64(h) * int64(src.Width) / int64(src.Height))
	case h.IsAuto():
		target.Height = int(int64(w) * int64(src.Height) / int64(src.Width))
	}
	target.Width = max(target.Width, 1)
	target.Height = max(target.Height, 1)
	return target, nil
}

// Place returns the rectangle of dst the source is drawn into.
//
// Without ratio preservation, or when both ratios are equal, the source
// fills the canvas. A target larger than the source on either axis keeps
// the source at native scale, centered. Otherwise the source is scaled to
// the full width or height of the canvas and centered on the other axis.
func Place(src, dst Geometry, preserveRatio bool) (image.Rectangle, Policy) {
	sw, sh := int64(src.Width), int64(src.Height)
	dw, dh := int64(dst.Width), int64(dst.Height)

	if !preserveRatio || sw*dh == dw*sh {
		return image.Rect(0, 0, dst.Width, dst.Height), PolicyStretch
	}

	if dst.Width > src.Width || dst.Height > src.Height {
		x := (dst.Width - src.Width) / 2
		y := (dst.Height - src.Height) / 2
		return image.Rect(x, y, x+src.Width, y+src.Height), PolicyCenter
	}

	if dw*sh < sw*dh {
		// Target is narrower than the source: full width, letterboxed.
		ch := float64(dw*sh) / float64(sw)
		y := int(math.Floor((float64(dh) - ch) / 2))
		return image.Rect(0, y, dst.Width, y+max(int(ch), 1)), PolicyFitHeight
	}

	cw := float64(dh*sw) / float64(sh)
	x := int(math.Floor((float64(dw) - cw) / 2))
	return image.Rect(x, 0, x+max(int(cw), 1), dst.Height), PolicyFitWidth
}
