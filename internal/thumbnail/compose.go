package thumbnail

import (
	"image"
	"image/color"

	"github.com/disintegration/imaging"
	"golang.org/x/image/draw"
)

// Compose draws src onto a new canvas of size dst filled with fill.
// Scaled placements are resampled with Catmull-Rom; centered placements
// copy the source pixels unchanged.
func Compose(src image.Image, dst Geometry, preserveRatio bool, fill color.NRGBA) (*image.NRGBA, Policy) {
	canvas := imaging.New(dst.Width, dst.Height, fill)

	b := src.Bounds()
	rect, policy := Place(Geometry{Width: b.Dx(), Height: b.Dy()}, dst, preserveRatio)

	if policy == PolicyCenter {
		draw.Draw(canvas, rect, src, b.Min, draw.Over)
	} else {
		draw.CatmullRom.Scale(canvas, rect, src, b, draw.Over, nil)
	}
	return canvas, policy
}
