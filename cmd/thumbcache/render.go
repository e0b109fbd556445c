package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"thumbcache/internal/config"
	"thumbcache/internal/logging"
	"thumbcache/internal/startup"
	"thumbcache/internal/thumbnail"
	"thumbcache/internal/vipsdecode"
)

var (
	renderSource       string
	renderWidth        string
	renderHeight       string
	renderNoPreserve   bool
	renderDefaultImage string
	renderAttrs        []string
	renderURLOnly      bool
)

var renderCmd = &cobra.Command{
	Use:   "render <filename>",
	Short: "Render one thumbnail and print its image tag",
	Long: `Render a thumbnail of filename, relative to the source directory, and
print an <img> tag for it. A missing, unsupported or unreadable source
prints the default image instead.

Width and height accept a pixel count or "auto"; omitted values use the
configured defaults.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		width, height, err := parseSize(renderWidth, renderHeight)
		if err != nil {
			return err
		}
		attrs, err := parseAttrs(renderAttrs)
		if err != nil {
			return err
		}

		opts := thumbnail.Options{
			Width:        width,
			Height:       height,
			DefaultImage: renderDefaultImage,
		}
		if renderNoPreserve {
			opts.PreserveRatio = thumbnail.Bool(false)
		}

		decoder, cleanup := newDecoder(cfg)
		defer cleanup()
		gen := thumbnail.New(cfg, thumbnail.WithDecoder(decoder))

		if renderURLOnly {
			res, err := gen.Thumbnail(cmd.Context(), opts.Request(renderSource, args[0]))
			if err != nil {
				return err
			}
			logging.Debug("Rendered %s: %s (%s)", args[0], res.Kind, res.Geometry)
			fmt.Fprintln(cmd.OutOrStdout(), res.URL)
			return nil
		}

		tag, err := gen.Render(cmd.Context(), renderSource, args[0], opts, attrs)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), tag.String())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(renderCmd)

	renderCmd.Flags().StringVar(&renderSource, "source", "", "source directory (default: configured source path)")
	renderCmd.Flags().StringVar(&renderWidth, "width", "", `thumbnail width in pixels or "auto"`)
	renderCmd.Flags().StringVar(&renderHeight, "height", "", `thumbnail height in pixels or "auto"`)
	renderCmd.Flags().BoolVar(&renderNoPreserve, "no-preserve-ratio", false, "stretch the source to fill the thumbnail")
	renderCmd.Flags().StringVar(&renderDefaultImage, "default-image", "", "placeholder URL for this render")
	renderCmd.Flags().StringArrayVar(&renderAttrs, "attr", nil, "extra tag attribute as key=value (repeatable)")
	renderCmd.Flags().BoolVar(&renderURLOnly, "url-only", false, "print only the thumbnail URL")
}

// parseSize parses the --width and --height flag values.
func parseSize(w, h string) (thumbnail.Dimension, thumbnail.Dimension, error) {
	width, err := thumbnail.ParseDimension(w)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid --width: %w", err)
	}
	height, err := thumbnail.ParseDimension(h)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid --height: %w", err)
	}
	return width, height, nil
}

// parseAttrs turns key=value pairs into tag attributes. A later pair
// replaces an earlier one with the same key.
func parseAttrs(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	attrs := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --attr %q: want key=value", pair)
		}
		attrs[key] = value
	}
	return attrs, nil
}

// newDecoder picks the decoder backend for c. The returned func releases
// it and must be called before exit.
func newDecoder(c *config.Config) (thumbnail.Decoder, func()) {
	fallback := thumbnail.NewImagingDecoder()
	if !c.UseVips {
		startup.LogVipsInit(false, false)
		return fallback, func() {}
	}

	if err := vipsdecode.Init(); err != nil {
		logging.Warn("Failed to initialize libvips: %v", err)
	}
	startup.LogVipsInit(true, vipsdecode.Available())
	return vipsdecode.New(fallback), vipsdecode.Shutdown
}
