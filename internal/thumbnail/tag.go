package thumbnail

import (
	"html"
	"maps"
	"slices"
	"strings"
)

// ImageTag is the view-layer description of an <img> element.
type ImageTag struct {
	Src        string
	Attributes map[string]string
}

func newImageTag(src string, attrs map[string]string) ImageTag {
	tag := ImageTag{Src: src, Attributes: make(map[string]string, len(attrs))}
	for k, v := range attrs {
		if strings.EqualFold(k, "src") {
			continue
		}
		tag.Attributes[k] = v
	}
	return tag
}

// String renders the tag as HTML with attributes in name order.
func (t ImageTag) String() string {
	var b strings.Builder
	b.WriteString(`<img src="`)
	b.WriteString(html.EscapeString(t.Src))
	b.WriteByte('"')
	for _, k := range slices.Sorted(maps.Keys(t.Attributes)) {
		b.WriteByte(' ')
		b.WriteString(html.EscapeString(k))
		b.WriteString(`="`)
		b.WriteString(html.EscapeString(t.Attributes[k]))
		b.WriteByte('"')
	}
	b.WriteString(" />")
	return b.String()
}
