// Package cachebuster advances the version token on the managed stylesheet reference.
package cachebuster

import (
	"strings"

	"github.com/dtnitsch/site-repair/models"
	"github.com/dtnitsch/site-repair/pkg/scanner"
)

// Controller rewrites "<stylesheet><delimiter><token>" on every reference to one stylesheet.
type Controller struct {
	stylesheet string
	delimiter  string
}

// New returns a Controller for the stylesheet's logical path, e.g. "css/custom-fixes.css" and "?v=".
func New(stylesheet, delimiter string) *Controller {
	if delimiter == "" {
		delimiter = "?v="
	}
	return &Controller{
		stylesheet: strings.TrimPrefix(stylesheet, "/"),
		delimiter:  delimiter,
	}
}

// Advance sets the token on every managed stylesheet reference in text.
// Any existing token (including leftovers such as "?v=a?v=b") is replaced
// wholesale, so repeated calls with the same token converge. Text without the
// reference is returned unchanged.
func (c *Controller) Advance(text, token string) (string, bool) {
	if token == "" {
		return text, false
	}
	want := c.delimiter + token

	var edits []scanner.Edit
	for ref, err := range scanner.Scan(text) {
		if err != nil || ref.Kind != models.KindStylesheet {
			continue
		}
		if !c.matches(ref.Target) {
			continue
		}
		suffix := c.stripTokens(ref.Suffix)
		newSuffix := want + suffix
		if ref.Suffix == newSuffix {
			continue
		}
		start := ref.End - len(ref.Suffix)
		edits = append(edits, scanner.Edit{Start: start, End: ref.End, Text: newSuffix})
	}
	if len(edits) == 0 {
		return text, false
	}
	return scanner.ApplyEdits(text, edits), true
}

// Apply runs Advance against a document.
func (c *Controller) Apply(doc *models.Document, token string) bool {
	out, changed := c.Advance(doc.Content, token)
	if !changed {
		return false
	}
	return doc.Update(out)
}

func (c *Controller) matches(target string) bool {
	return target == c.stylesheet || strings.HasSuffix(target, "/"+c.stylesheet)
}

// stripTokens removes every leading delimiter+token run from suffix and returns
// whatever follows, rejoined so it can sit after a fresh token.
func (c *Controller) stripTokens(suffix string) string {
	for strings.HasPrefix(suffix, c.delimiter) {
		rest := suffix[len(c.delimiter):]
		end := strings.IndexAny(rest, "?&#")
		if end < 0 {
			return ""
		}
		suffix = rest[end:]
	}
	if strings.HasPrefix(suffix, "?") {
		// other query parameters follow the token
		return "&" + suffix[1:]
	}
	return suffix
}
