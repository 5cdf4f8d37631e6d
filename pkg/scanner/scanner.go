// Package scanner finds resource references (stylesheets, scripts, images,
// srcset candidates, media sources and inline style url() values) in markup
// without building a DOM.
//
// The document is walked with the x/net/html tokenizer so comments, script
// bodies and unrelated attributes are never matched. Every reference carries
// the byte range of its URL so callers can rewrite it in place.
package scanner

import (
	"iter"
	"regexp"
	"strings"

	"golang.org/x/net/html"

	repairerr "github.com/dtnitsch/site-repair/internal/errors"
	"github.com/dtnitsch/site-repair/models"
)

// resourceAttrs lists the attributes scanned per tag.
var resourceAttrs = map[string][]string{
	"link":   {"href"},
	"script": {"src"},
	"img":    {"src", "srcset"},
	"source": {"src", "srcset"},
	"video":  {"src", "poster"},
	"audio":  {"src"},
}

var schemePattern = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9+.\-]*:`)

// Scan yields every reference in text in document order. Malformed references
// are yielded as ScanError values; callers skip them and keep iterating.
func Scan(text string) iter.Seq2[models.Reference, error] {
	return func(yield func(models.Reference, error) bool) {
		z := html.NewTokenizer(strings.NewReader(text))
		offset := 0
		for {
			tt := z.Next()
			start := offset
			offset += len(z.Raw())

			switch tt {
			case html.ErrorToken:
				return
			case html.StartTagToken, html.SelfClosingTagToken:
			default:
				continue
			}

			name, _ := z.TagName()
			tag := string(name)
			raw := text[start:offset]
			wanted, ok := resourceAttrs[tag]
			inlineStyle := indexFold(raw, "url(", 0) >= 0
			if !ok && !inlineStyle {
				continue
			}

			attrs, err := ParseAttrs(raw, start)
			if err != nil {
				if !yield(models.Reference{}, err) {
					return
				}
			}

			if kindFor := tagKind(tag, attrs); ok && kindFor != "" {
				for _, attrName := range wanted {
					attr, ok := Lookup(attrs, attrName)
					if !ok || !attr.HasValue {
						continue
					}
					if attrName == "srcset" {
						for ref, err := range splitSrcset(tag, attr) {
							if !yield(ref, err) {
								return
							}
						}
						continue
					}
					ref, ok, err := classify(attr.Value, attr.ValStart)
					if err == nil && !ok {
						continue
					}
					ref.Kind = kindFor
					ref.Tag = tag
					ref.Attr = attrName
					if !yield(ref, err) {
						return
					}
				}
			}

			if style, ok := Lookup(attrs, "style"); ok && style.HasValue && inlineStyle {
				for ref, err := range styleURLs(tag, style) {
					if !yield(ref, err) {
						return
					}
				}
			}
		}
	}
}

// References collects all well-formed references and counts the malformed ones.
func References(text string) ([]models.Reference, int) {
	var refs []models.Reference
	bad := 0
	for ref, err := range Scan(text) {
		if err != nil {
			bad++
			continue
		}
		refs = append(refs, ref)
	}
	return refs, bad
}

func tagKind(tag string, attrs []Attr) models.ReferenceKind {
	switch tag {
	case "link":
		rel, _ := Lookup(attrs, "rel")
		if HasToken(rel.Value, "stylesheet") {
			return models.KindStylesheet
		}
		// <link rel="preload" as="style"> fetches the same file as the stylesheet
		as, _ := Lookup(attrs, "as")
		if (HasToken(rel.Value, "preload") || HasToken(rel.Value, "prefetch")) && strings.EqualFold(strings.TrimSpace(as.Value), "style") {
			return models.KindStylesheet
		}
		return ""
	case "script":
		return models.KindScript
	case "img":
		return models.KindImage
	default:
		return models.KindMedia
	}
}

// splitSrcset yields one reference per srcset candidate; descriptors are not part of the URL.
func splitSrcset(tag string, attr Attr) iter.Seq2[models.Reference, error] {
	return func(yield func(models.Reference, error) bool) {
		value := attr.Value
		pos := 0
		for pos <= len(value) {
			end := strings.IndexByte(value[pos:], ',')
			if end < 0 {
				end = len(value)
			} else {
				end += pos
			}
			candidate := value[pos:end]
			lead := len(candidate) - len(strings.TrimLeft(candidate, " \t\n\r\f"))
			body := strings.TrimSpace(candidate)
			if body != "" {
				u := body
				if i := strings.IndexAny(body, " \t\n\r\f"); i >= 0 {
					u = body[:i]
				}
				ref, ok, err := classify(u, attr.ValStart+pos+lead)
				if err != nil || ok {
					ref.Kind = models.KindSrcset
					ref.Tag = tag
					ref.Attr = attr.Name
					if !yield(ref, err) {
						return
					}
				}
			}
			pos = end + 1
		}
	}
}

// cssQuotes are the quote forms accepted around a url() argument, raw and
// entity-encoded as exporters write them inside attribute values.
var cssQuotes = []string{`"`, `'`, "&quot;", "&#39;", "&#039;", "&apos;"}

// styleURLs yields one reference per url(...) in an inline style attribute.
func styleURLs(tag string, attr Attr) iter.Seq2[models.Reference, error] {
	return func(yield func(models.Reference, error) bool) {
		value := attr.Value
		pos := 0
		for {
			fn := indexFold(value, "url(", pos)
			if fn < 0 {
				return
			}
			p := fn + len("url(")
			for p < len(value) && isSpace(value[p]) {
				p++
			}

			var u string
			uStart := p
			quote := ""
			for _, q := range cssQuotes {
				if strings.HasPrefix(value[p:], q) {
					quote = q
					break
				}
			}
			if quote != "" {
				uStart = p + len(quote)
				qe := strings.Index(value[uStart:], quote)
				if qe < 0 {
					yield(models.Reference{}, repairerr.NewScan(attr.ValStart+fn, "unterminated quote in style url()"))
					return
				}
				u = value[uStart : uStart+qe]
				p = uStart + qe + len(quote)
			}
			closing := strings.IndexByte(value[p:], ')')
			if closing < 0 {
				yield(models.Reference{}, repairerr.NewScan(attr.ValStart+fn, "unterminated url() in style attribute"))
				return
			}
			if quote == "" {
				u = strings.TrimRight(value[p:p+closing], " \t\n\r\f")
			}
			pos = p + closing + 1

			ref, ok, err := classify(u, attr.ValStart+uStart)
			if err == nil && !ok {
				continue
			}
			ref.Kind = models.KindStyle
			ref.Tag = tag
			ref.Attr = attr.Name
			if !yield(ref, err) {
				return
			}
		}
	}
}

// indexFold finds the ASCII case-insensitive lower-case needle in s at or after
// from, returning a byte offset into s.
func indexFold(s, needle string, from int) int {
	for i := from; i+len(needle) <= len(s); i++ {
		match := true
		for j := 0; j < len(needle); j++ {
			c := s[i+j]
			if 'A' <= c && c <= 'Z' {
				c += 'a' - 'A'
			}
			if c != needle[j] {
				match = false
				break
			}
		}
		if match {
			return i
		}
	}
	return -1
}

// classify turns a URL string at offset into a Reference. ok is false for
// targets that are not files (fragments, data URIs, mail links).
func classify(raw string, offset int) (models.Reference, bool, error) {
	lead := len(raw) - len(strings.TrimLeft(raw, " \t\n\r\f"))
	value := strings.TrimSpace(raw)
	ref := models.Reference{
		Raw:   value,
		Start: offset + lead,
		End:   offset + lead + len(value),
	}
	if value == "" || strings.HasPrefix(value, "#") {
		return ref, false, nil
	}
	if strings.ContainsAny(value, "\n\r\t<>") {
		return ref, false, repairerr.NewScan(ref.Start, "control characters in reference "+quoteShort(value))
	}

	path := value
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		ref.Suffix = path[i:]
		path = path[:i]
	}

	switch {
	case strings.HasPrefix(path, "//"):
		ref.Style = models.StyleAbsolute
		ref.Host, ref.Target = splitHost(path[2:])
	case schemePattern.MatchString(path):
		scheme := strings.ToLower(path[:strings.IndexByte(path, ':')])
		if scheme != "http" && scheme != "https" {
			return ref, false, nil
		}
		rest := path[len(scheme)+1:]
		if !strings.HasPrefix(rest, "//") {
			return ref, false, repairerr.NewScan(ref.Start, "absolute reference without host "+quoteShort(value))
		}
		ref.Style = models.StyleAbsolute
		ref.Host, ref.Target = splitHost(rest[2:])
	case strings.HasPrefix(path, "/"):
		ref.Style = models.StyleRootRelative
		ref.Target = path[1:]
	default:
		ref.Style = models.StyleRelative
		for {
			if strings.HasPrefix(path, "./") {
				path = path[2:]
				continue
			}
			if strings.HasPrefix(path, "../") {
				path = path[3:]
				ref.DotDepth++
				continue
			}
			break
		}
		ref.Target = path
	}

	if ref.Style == models.StyleAbsolute && ref.Host == "" {
		return ref, false, repairerr.NewScan(ref.Start, "absolute reference without host "+quoteShort(value))
	}
	return ref, true, nil
}

func splitHost(s string) (string, string) {
	i := strings.IndexByte(s, '/')
	if i < 0 {
		return strings.ToLower(s), ""
	}
	return strings.ToLower(s[:i]), s[i+1:]
}

func quoteShort(s string) string {
	if len(s) > 60 {
		s = s[:60] + "..."
	}
	return `"` + s + `"`
}
