package thumbnail

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/disintegration/imaging"

	"thumbcache/internal/config"
)

const testBaseURL = "https://img.example.com/"

// countingDecoder counts Decode calls before delegating.
type countingDecoder struct {
	calls atomic.Int32
	next  Decoder
	err   error
}

func (d *countingDecoder) Decode(path string, f Format, least Geometry) (image.Image, error) {
	d.calls.Add(1)
	if d.err != nil {
		return nil, d.err
	}
	return d.next.Decode(path, f, least)
}

type fixture struct {
	gen     *Generator
	cfg     *config.Config
	decoder *countingDecoder
	base    string
	photos  string
}

func newFixture(t *testing.T, mutate ...func(*config.Config)) *fixture {
	t.Helper()
	base := t.TempDir()
	photos := filepath.Join(base, "photos")
	if err := os.MkdirAll(photos, 0o755); err != nil {
		t.Fatal(err)
	}

	cfg := config.Default()
	cfg.BasePath = base
	cfg.BaseURL = testBaseURL
	cfg.SourcePath = "photos"
	for _, m := range mutate {
		m(cfg)
	}

	dec := &countingDecoder{next: NewImagingDecoder()}
	return &fixture{
		gen:     New(cfg, WithDecoder(dec)),
		cfg:     cfg,
		decoder: dec,
		base:    base,
		photos:  photos,
	}
}

func writeImage(t *testing.T, path string, w, h int, c color.Color) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := imaging.Save(imaging.New(w, h, c), path); err != nil {
		t.Fatalf("failed to write fixture %s: %v", path, err)
	}
}

func decodeConfig(t *testing.T, path string) (image.Config, string) {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("failed to open %s: %v", path, err)
	}
	defer f.Close()
	cfg, name, err := image.DecodeConfig(f)
	if err != nil {
		t.Fatalf("failed to decode %s: %v", path, err)
	}
	return cfg, name
}

func entries(t *testing.T, dir string) []string {
	t.Helper()
	des, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, de := range des {
		names = append(names, de.Name())
	}
	return names
}

func TestThumbnailGeneratesThenCaches(t *testing.T) {
	fx := newFixture(t)
	writeImage(t, filepath.Join(fx.photos, "a.jpg"), 800, 600, blue)
	ctx := context.Background()
	req := Options{Width: 100, Height: 100}.Request("", "a.jpg")

	res, err := fx.gen.Thumbnail(ctx, req)
	if err != nil {
		t.Fatalf("Thumbnail() error = %v", err)
	}
	if res.Kind != KindGenerated {
		t.Fatalf("Kind = %v, want generated", res.Kind)
	}
	wantURL := testBaseURL + "photos/100x100/a.jpg"
	if res.URL != wantURL {
		t.Errorf("URL = %q, want %q", res.URL, wantURL)
	}
	wantPath := filepath.Join(fx.photos, "100x100", "a.jpg")
	if res.Path != wantPath {
		t.Errorf("Path = %q, want %q", res.Path, wantPath)
	}
	cfg, name := decodeConfig(t, wantPath)
	if cfg.Width != 100 || cfg.Height != 100 || name != "jpeg" {
		t.Errorf("artifact = %dx%d %s, want 100x100 jpeg", cfg.Width, cfg.Height, name)
	}

	info, err := os.Stat(wantPath)
	if err != nil {
		t.Fatal(err)
	}

	again, err := fx.gen.Thumbnail(ctx, req)
	if err != nil {
		t.Fatalf("second Thumbnail() error = %v", err)
	}
	if again.Kind != KindCached || again.URL != wantURL {
		t.Errorf("second call = %v %q, want cached %q", again.Kind, again.URL, wantURL)
	}
	if n := fx.decoder.calls.Load(); n != 1 {
		t.Errorf("decoder called %d times, want 1", n)
	}
	after, err := os.Stat(wantPath)
	if err != nil {
		t.Fatal(err)
	}
	if !after.ModTime().Equal(info.ModTime()) {
		t.Error("cached artifact was rewritten")
	}
}

func TestThumbnailAutoHeight(t *testing.T) {
	fx := newFixture(t)
	writeImage(t, filepath.Join(fx.photos, "a.jpg"), 800, 600, blue)

	res, err := fx.gen.Thumbnail(context.Background(), Options{Width: 100, Height: Auto}.Request("photos", "a.jpg"))
	if err != nil {
		t.Fatalf("Thumbnail() error = %v", err)
	}
	if res.Geometry != (Geometry{100, 75}) {
		t.Errorf("Geometry = %v, want 100x75", res.Geometry)
	}
	if res.URL != testBaseURL+"photos/100x75/a.jpg" {
		t.Errorf("URL = %q", res.URL)
	}
	cfg, _ := decodeConfig(t, res.Path)
	if cfg.Width != 100 || cfg.Height != 75 {
		t.Errorf("artifact = %dx%d, want 100x75", cfg.Width, cfg.Height)
	}
}

func TestThumbnailDefaultsFromConfig(t *testing.T) {
	fx := newFixture(t)
	writeImage(t, filepath.Join(fx.photos, "a.png"), 400, 400, blue)

	res, err := fx.gen.Thumbnail(context.Background(), Options{}.Request("", "a.png"))
	if err != nil {
		t.Fatal(err)
	}
	if res.Geometry != (Geometry{config.DefaultWidth, config.DefaultHeight}) {
		t.Errorf("Geometry = %v, want configured default", res.Geometry)
	}
}

func TestThumbnailPassThrough(t *testing.T) {
	fx := newFixture(t)
	writeImage(t, filepath.Join(fx.photos, "a.jpg"), 100, 75, blue)

	res, err := fx.gen.Thumbnail(context.Background(), Options{Width: 100, Height: 75}.Request("", "a.jpg"))
	if err != nil {
		t.Fatal(err)
	}
	if res.Kind != KindPassThrough {
		t.Fatalf("Kind = %v, want passthrough", res.Kind)
	}
	if res.URL != testBaseURL+"photos/a.jpg" {
		t.Errorf("URL = %q, want source URL", res.URL)
	}
	if got := entries(t, fx.photos); len(got) != 1 {
		t.Errorf("photos dir = %v, want only the source", got)
	}
	if n := fx.decoder.calls.Load(); n != 0 {
		t.Errorf("decoder called %d times on pass-through", n)
	}
}

func TestThumbnailFallbacks(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(t *testing.T, fx *fixture)
		filename string
		opts     Options
		reason   FallbackReason
		wantURL  string
	}{
		{
			name:     "empty filename",
			filename: "",
			reason:   ReasonEmptyFilename,
			wantURL:  "https://placehold.co/100x75",
		},
		{
			name:     "missing source",
			filename: "nope.jpg",
			opts:     Options{Width: 120, Height: 90},
			reason:   ReasonMissingSource,
			wantURL:  "https://placehold.co/120x90",
		},
		{
			name:     "directory as source",
			setup: func(t *testing.T, fx *fixture) {
				if err := os.Mkdir(filepath.Join(fx.photos, "d.jpg"), 0o755); err != nil {
					t.Fatal(err)
				}
			},
			filename: "d.jpg",
			reason:   ReasonMissingSource,
			wantURL:  "https://placehold.co/100x75",
		},
		{
			name:     "escaping filename",
			filename: "../secret.jpg",
			reason:   ReasonUnsafePath,
			wantURL:  "https://placehold.co/100x75",
		},
		{
			name: "unsupported format",
			setup: func(t *testing.T, fx *fixture) {
				writeImage(t, filepath.Join(fx.photos, "a.bmp"), 50, 50, blue)
			},
			filename: "a.bmp",
			reason:   ReasonUnsupportedFormat,
			wantURL:  "https://placehold.co/100x75",
		},
		{
			name: "corrupt data",
			setup: func(t *testing.T, fx *fixture) {
				if err := os.WriteFile(filepath.Join(fx.photos, "bad.jpg"), []byte("not an image"), 0o644); err != nil {
					t.Fatal(err)
				}
			},
			filename: "bad.jpg",
			reason:   ReasonDecodeFailure,
			wantURL:  "https://placehold.co/100x75",
		},
		{
			name: "jpeg data in a png file",
			setup: func(t *testing.T, fx *fixture) {
				writeImage(t, filepath.Join(fx.photos, "x.jpg"), 80, 80, blue)
				if err := os.Rename(filepath.Join(fx.photos, "x.jpg"), filepath.Join(fx.photos, "x.png")); err != nil {
					t.Fatal(err)
				}
			},
			filename: "x.png",
			opts:     Options{Width: 40, Height: 40},
			reason:   ReasonDecodeFailure,
			wantURL:  "https://placehold.co/40x40",
		},
		{
			name:     "override and auto",
			filename: "nope.jpg",
			opts:     Options{Width: Auto, Height: 40, DefaultImage: "/img/none.png"},
			reason:   ReasonMissingSource,
			wantURL:  "/img/none.png",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx := newFixture(t)
			if tt.setup != nil {
				tt.setup(t, fx)
			}
			before := entries(t, fx.photos)

			res, err := fx.gen.Thumbnail(context.Background(), tt.opts.Request("", tt.filename))
			if err != nil {
				t.Fatalf("Thumbnail() error = %v", err)
			}
			if res.Kind != KindFallback || res.Reason != tt.reason {
				t.Errorf("result = %v/%v, want fallback/%v", res.Kind, res.Reason, tt.reason)
			}
			if res.URL != tt.wantURL {
				t.Errorf("URL = %q, want %q", res.URL, tt.wantURL)
			}
			if after := entries(t, fx.photos); len(after) != len(before) {
				t.Errorf("photos dir changed from %v to %v", before, after)
			}
		})
	}
}

func TestThumbnailDecoderFailure(t *testing.T) {
	fx := newFixture(t)
	fx.decoder.err = errors.New("boom")
	writeImage(t, filepath.Join(fx.photos, "a.png"), 200, 200, blue)

	res, err := fx.gen.Thumbnail(context.Background(), Options{Width: 50, Height: 50}.Request("", "a.png"))
	if err != nil {
		t.Fatal(err)
	}
	if res.Reason != ReasonDecodeFailure {
		t.Errorf("Reason = %v, want decode_failure", res.Reason)
	}
	if _, err := os.Stat(filepath.Join(fx.photos, "50x50")); !os.IsNotExist(err) {
		t.Errorf("geometry dir created after decode failure: %v", err)
	}
}

func TestThumbnailTruncatedSourceUsesResolvedPlaceholder(t *testing.T) {
	fx := newFixture(t)
	var buf bytes.Buffer
	if err := png.Encode(&buf, imaging.New(800, 400, blue)); err != nil {
		t.Fatal(err)
	}
	// The header survives, the pixel data does not.
	if err := os.WriteFile(filepath.Join(fx.photos, "a.png"), buf.Bytes()[:60], 0o644); err != nil {
		t.Fatal(err)
	}

	res, err := fx.gen.Thumbnail(context.Background(), Options{Width: 100, Height: Auto}.Request("", "a.png"))
	if err != nil {
		t.Fatal(err)
	}
	if res.Reason != ReasonDecodeFailure {
		t.Errorf("Reason = %v, want decode_failure", res.Reason)
	}
	if res.URL != "https://placehold.co/100x50" {
		t.Errorf("URL = %q, want the resolved 100x50 placeholder", res.URL)
	}
	if res.Geometry != (Geometry{Width: 100, Height: 50}) {
		t.Errorf("Geometry = %v, want 100x50", res.Geometry)
	}
}

func TestImagingDecoderRejectsMismatchedData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.jpg")
	writeImage(t, path, 20, 20, blue)

	if _, err := NewImagingDecoder().Decode(path, FormatPNG, Geometry{}); !errors.Is(err, errFormatMismatch) {
		t.Errorf("Decode() as png error = %v, want format mismatch", err)
	}
	img, err := NewImagingDecoder().Decode(path, FormatJPEG, Geometry{Width: 5, Height: 5})
	if err != nil {
		t.Fatalf("Decode() as jpeg error = %v", err)
	}
	if b := img.Bounds(); b.Dx() != 20 || b.Dy() != 20 {
		t.Errorf("decoded size = %dx%d, want full 20x20", b.Dx(), b.Dy())
	}
}

func TestThumbnailPixelLimit(t *testing.T) {
	fx := newFixture(t, func(c *config.Config) { c.MaxPixels = 1000 })
	writeImage(t, filepath.Join(fx.photos, "a.png"), 800, 600, blue)

	res, err := fx.gen.Thumbnail(context.Background(), Options{Width: 50, Height: 50}.Request("", "a.png"))
	if err != nil {
		t.Fatal(err)
	}
	if res.Reason != ReasonDecodeFailure {
		t.Errorf("Reason = %v, want decode_failure", res.Reason)
	}
	if n := fx.decoder.calls.Load(); n != 0 {
		t.Errorf("decoder called %d times for oversized source", n)
	}
}

func TestThumbnailWriteFailure(t *testing.T) {
	fx := newFixture(t)
	writeImage(t, filepath.Join(fx.photos, "a.jpg"), 800, 600, blue)
	if err := os.WriteFile(filepath.Join(fx.photos, "100x100"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	res, err := fx.gen.Thumbnail(context.Background(), Options{Width: 100, Height: 100}.Request("", "a.jpg"))
	if err != nil {
		t.Fatal(err)
	}
	if res.Kind != KindFallback || res.Reason != ReasonWriteFailure {
		t.Errorf("result = %v/%v, want fallback/write_failure", res.Kind, res.Reason)
	}
}

func TestThumbnailBothAuto(t *testing.T) {
	fx := newFixture(t)

	_, err := fx.gen.Thumbnail(context.Background(), Options{Width: Auto, Height: Auto}.Request("", "missing.jpg"))
	if !errors.Is(err, ErrBothAuto) || !errors.Is(err, ErrPrecondition) {
		t.Errorf("error = %v, want ErrBothAuto", err)
	}
}

func TestThumbnailCanceled(t *testing.T) {
	fx := newFixture(t)
	writeImage(t, filepath.Join(fx.photos, "a.jpg"), 800, 600, blue)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := fx.gen.Thumbnail(ctx, Options{Width: 100, Height: 100}.Request("", "a.jpg"))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
	if n := fx.decoder.calls.Load(); n != 0 {
		t.Errorf("decoder called %d times after cancel", n)
	}
}

func TestThumbnailFormats(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		jpegOnly bool
		want     string
	}{
		{"png stays png", "a.png", false, "png"},
		{"gif stays gif", "a.gif", false, "gif"},
		{"jpeg only png", "a.png", true, "jpeg"},
		{"jpeg only gif", "a.gif", true, "jpeg"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx := newFixture(t, func(c *config.Config) { c.JPEGOnly = tt.jpegOnly })
			writeImage(t, filepath.Join(fx.photos, tt.filename), 300, 200, blue)

			res, err := fx.gen.Thumbnail(context.Background(), Options{Width: 60, Height: 60}.Request("", tt.filename))
			if err != nil {
				t.Fatal(err)
			}
			if filepath.Base(res.Path) != tt.filename {
				t.Errorf("artifact name = %s, want %s", filepath.Base(res.Path), tt.filename)
			}
			if _, name := decodeConfig(t, res.Path); name != tt.want {
				t.Errorf("artifact encoded as %s, want %s", name, tt.want)
			}
		})
	}
}

func TestThumbnailTransparentFill(t *testing.T) {
	fx := newFixture(t, func(c *config.Config) { c.Fill = config.FillTransparent })
	writeImage(t, filepath.Join(fx.photos, "a.png"), 800, 600, blue)

	res, err := fx.gen.Thumbnail(context.Background(), Options{Width: 100, Height: 100}.Request("", "a.png"))
	if err != nil {
		t.Fatal(err)
	}
	img, err := imaging.Open(res.Path)
	if err != nil {
		t.Fatal(err)
	}
	if _, _, _, a := img.At(50, 2).RGBA(); a != 0 {
		t.Errorf("letterbox alpha = %d, want 0", a)
	}
}

func TestThumbnailTransparentFillJPEGUsesBackground(t *testing.T) {
	fx := newFixture(t, func(c *config.Config) {
		c.Fill = config.FillTransparent
		c.DefaultBackground = color.NRGBA{R: 255, G: 255, B: 255}
	})
	writeImage(t, filepath.Join(fx.photos, "a.jpg"), 800, 600, blue)

	res, err := fx.gen.Thumbnail(context.Background(), Options{Width: 100, Height: 100}.Request("", "a.jpg"))
	if err != nil {
		t.Fatal(err)
	}
	img, err := imaging.Open(res.Path)
	if err != nil {
		t.Fatal(err)
	}
	if r, g, b, _ := img.At(50, 2).RGBA(); r>>8 < 240 || g>>8 < 240 || b>>8 < 240 {
		t.Errorf("letterbox = (%d,%d,%d), want white", r>>8, g>>8, b>>8)
	}
}

func TestThumbnailNestedFilename(t *testing.T) {
	fx := newFixture(t)
	writeImage(t, filepath.Join(fx.photos, "2024", "b.png"), 300, 300, blue)

	res, err := fx.gen.Thumbnail(context.Background(), Options{Width: 100, Height: 100}.Request("", "2024/b.png"))
	if err != nil {
		t.Fatal(err)
	}
	want := filepath.Join(fx.photos, "100x100", "2024", "b.png")
	if res.Path != want {
		t.Errorf("Path = %s, want %s", res.Path, want)
	}
	if res.URL != testBaseURL+"photos/100x100/2024/b.png" {
		t.Errorf("URL = %s", res.URL)
	}
}

func TestThumbnailDestinationPath(t *testing.T) {
	fx := newFixture(t, func(c *config.Config) { c.DestinationPath = "thumbs" })
	writeImage(t, filepath.Join(fx.photos, "a.jpg"), 800, 600, blue)

	res, err := fx.gen.Thumbnail(context.Background(), Options{Width: 100, Height: 100}.Request("", "a.jpg"))
	if err != nil {
		t.Fatal(err)
	}
	want := filepath.Join(fx.base, "thumbs", "100x100", "a.jpg")
	if res.Path != want {
		t.Errorf("Path = %s, want %s", res.Path, want)
	}
	if res.URL != testBaseURL+"thumbs/100x100/a.jpg" {
		t.Errorf("URL = %s", res.URL)
	}
	if got := entries(t, fx.photos); len(got) != 1 {
		t.Errorf("source dir = %v, want untouched", got)
	}
}

func TestThumbnailConcurrent(t *testing.T) {
	fx := newFixture(t)
	writeImage(t, filepath.Join(fx.photos, "a.jpg"), 800, 600, blue)
	req := Options{Width: 100, Height: 100}.Request("", "a.jpg")

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := fx.gen.Thumbnail(context.Background(), req)
			if err != nil {
				errs <- err
				return
			}
			if res.Kind != KindGenerated && res.Kind != KindCached {
				errs <- errors.New("unexpected kind " + res.Kind.String())
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}

	cfg, _ := decodeConfig(t, filepath.Join(fx.photos, "100x100", "a.jpg"))
	if cfg.Width != 100 || cfg.Height != 100 {
		t.Errorf("artifact = %dx%d, want 100x100", cfg.Width, cfg.Height)
	}
	if n := fx.decoder.calls.Load(); n != 1 {
		t.Errorf("decoder called %d times, want 1", n)
	}
}

func TestRender(t *testing.T) {
	fx := newFixture(t)
	writeImage(t, filepath.Join(fx.photos, "a.jpg"), 800, 600, blue)

	tag, err := fx.gen.Render(context.Background(), "photos", "a.jpg",
		Options{Width: 100, Height: Auto, PreserveRatio: Bool(false)},
		map[string]string{"alt": "A", "src": "x"})
	if err != nil {
		t.Fatal(err)
	}
	if tag.Src != testBaseURL+"photos/100x75/a.jpg" {
		t.Errorf("Src = %q", tag.Src)
	}
	if tag.Attributes["alt"] != "A" || len(tag.Attributes) != 1 {
		t.Errorf("Attributes = %v", tag.Attributes)
	}
}

func TestSetConfig(t *testing.T) {
	fx := newFixture(t)

	next := fx.cfg.Clone()
	next.DefaultWidth = 40
	next.DefaultHeight = 30
	fx.gen.SetConfig(next)
	next.DefaultWidth = 999

	res, err := fx.gen.Thumbnail(context.Background(), Options{}.Request("", "missing.jpg"))
	if err != nil {
		t.Fatal(err)
	}
	if res.URL != "https://placehold.co/40x30" {
		t.Errorf("URL = %q, want new defaults", res.URL)
	}
	if fx.gen.Config().DefaultWidth != 40 {
		t.Error("SetConfig did not copy the configuration")
	}
}
