package thumbnail

import "fmt"

// FallbackURL returns the placeholder for a render that produced nothing:
// the per-call override when set, otherwise template formatted with the
// width and height.
func FallbackURL(override, template string, g Geometry) string {
	if override != "" {
		return override
	}
	if template == "" {
		return ""
	}
	return fmt.Sprintf(template, g.Width, g.Height)
}

// placeholderGeometry is the size advertised to the placeholder service
// before the source has been read. An Auto side falls back to the
// configured default.
func placeholderGeometry(w, h Dimension, defW, defH int) Geometry {
	g := Geometry{Width: int(w), Height: int(h)}
	if w.IsAuto() {
		g.Width = defW
	}
	if h.IsAuto() {
		g.Height = defH
	}
	return g
}
