package scanner

import (
	"sort"
	"strings"

	repairerr "github.com/dtnitsch/site-repair/internal/errors"
)

// Attr is one attribute of a start tag with the byte range of its value
// inside the owning document.
type Attr struct {
	Name     string
	Value    string
	ValStart int
	ValEnd   int
	HasValue bool
}

// ParseAttrs lexes the attributes of a raw start tag ("<img src=...>").
// base is the offset of the tag within the document; returned offsets are absolute.
func ParseAttrs(tag string, base int) ([]Attr, error) {
	var attrs []Attr
	seen := make(map[string]bool)

	i := 1 // skip '<'
	for i < len(tag) && !isSpace(tag[i]) && tag[i] != '>' && tag[i] != '/' {
		i++
	}

	for i < len(tag) {
		for i < len(tag) && (isSpace(tag[i]) || tag[i] == '/') {
			i++
		}
		if i >= len(tag) || tag[i] == '>' {
			break
		}

		nameStart := i
		for i < len(tag) && !isSpace(tag[i]) && tag[i] != '=' && tag[i] != '>' && tag[i] != '/' {
			i++
		}
		if i == nameStart {
			// a stray '=' with no name; step over it
			i++
			continue
		}
		attr := Attr{Name: strings.ToLower(tag[nameStart:i])}

		j := i
		for j < len(tag) && isSpace(tag[j]) {
			j++
		}
		if j < len(tag) && tag[j] == '=' {
			i = j + 1
			for i < len(tag) && isSpace(tag[i]) {
				i++
			}
			attr.HasValue = true
			switch {
			case i < len(tag) && (tag[i] == '"' || tag[i] == '\''):
				q := tag[i]
				end := strings.IndexByte(tag[i+1:], q)
				if end < 0 {
					return attrs, repairerr.NewScan(base+i, "unterminated quoted value for attribute "+attr.Name)
				}
				attr.ValStart = base + i + 1
				attr.ValEnd = attr.ValStart + end
				attr.Value = tag[i+1 : i+1+end]
				i = i + 1 + end + 1
			default:
				valStart := i
				for i < len(tag) && !isSpace(tag[i]) && tag[i] != '>' {
					i++
				}
				attr.ValStart = base + valStart
				attr.ValEnd = base + i
				attr.Value = tag[valStart:i]
			}
		}

		if !seen[attr.Name] {
			seen[attr.Name] = true
			attrs = append(attrs, attr)
		}
	}
	return attrs, nil
}

// Lookup returns the named attribute.
func Lookup(attrs []Attr, name string) (Attr, bool) {
	for _, a := range attrs {
		if a.Name == name {
			return a, true
		}
	}
	return Attr{}, false
}

// HasToken reports whether a space-separated attribute value (class, rel) contains tok.
func HasToken(value, tok string) bool {
	for _, f := range strings.Fields(value) {
		if strings.EqualFold(f, tok) {
			return true
		}
	}
	return false
}

// Edit replaces document bytes [Start, End) with Text.
type Edit struct {
	Start int
	End   int
	Text  string
}

// ApplyEdits splices non-overlapping edits into text.
func ApplyEdits(text string, edits []Edit) string {
	if len(edits) == 0 {
		return text
	}
	sorted := make([]Edit, len(edits))
	copy(sorted, edits)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })

	var b strings.Builder
	b.Grow(len(text))
	last := 0
	for _, e := range sorted {
		if e.Start < last {
			continue // overlapping edit, first one wins
		}
		b.WriteString(text[last:e.Start])
		b.WriteString(e.Text)
		last = e.End
	}
	b.WriteString(text[last:])
	return b.String()
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f'
}
