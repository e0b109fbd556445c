package thumbnail

import (
	"testing"

	"thumbcache/internal/config"
)

func TestImageTag(t *testing.T) {
	tag := newImageTag("https://cdn.example.com/a&b.jpg", map[string]string{
		"alt":   `say "hi"`,
		"class": "thumb",
		"src":   "ignored.jpg",
	})

	if tag.Src != "https://cdn.example.com/a&b.jpg" {
		t.Errorf("Src = %q", tag.Src)
	}
	if _, ok := tag.Attributes["src"]; ok {
		t.Error("caller src attribute was kept")
	}

	want := `<img src="https://cdn.example.com/a&amp;b.jpg" alt="say &#34;hi&#34;" class="thumb" />`
	if got := tag.String(); got != want {
		t.Errorf("String() = %s, want %s", got, want)
	}
}

func TestFallbackURL(t *testing.T) {
	g := Geometry{Width: 120, Height: 90}

	if got := FallbackURL("", config.DefaultImage, g); got != "https://placehold.co/120x90" {
		t.Errorf("template: got %q", got)
	}
	if got := FallbackURL("/img/none.png", config.DefaultImage, g); got != "/img/none.png" {
		t.Errorf("override: got %q", got)
	}
	if got := FallbackURL("", "", g); got != "" {
		t.Errorf("empty template: got %q", got)
	}
}

func TestPlaceholderGeometry(t *testing.T) {
	if got := placeholderGeometry(Auto, 50, 100, 75); got != (Geometry{100, 50}) {
		t.Errorf("auto width: got %v", got)
	}
	if got := placeholderGeometry(40, Auto, 100, 75); got != (Geometry{40, 75}) {
		t.Errorf("auto height: got %v", got)
	}
}
