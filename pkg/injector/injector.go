// Package injector makes sure required stylesheet/script references exist
// exactly once per document.
package injector

import (
	"strings"

	repairerr "github.com/dtnitsch/site-repair/internal/errors"
	"github.com/dtnitsch/site-repair/models"
)

const (
	headClose = "</head>"
	bodyClose = "</body>"
)

// PathResolver computes depth-correct reference text for a logical path.
type PathResolver interface {
	Resolve(depth int, logical string) string
}

// Engine applies a fixed list of injection directives.
type Engine struct {
	directives []models.InjectionDirective
	res        PathResolver
}

// New creates an Engine. The directive slice is copied.
func New(directives []models.InjectionDirective, res PathResolver) *Engine {
	return &Engine{
		directives: append([]models.InjectionDirective(nil), directives...),
		res:        res,
	}
}

// Render returns the canonical reference text of d for a document at depth.
func (e *Engine) Render(d models.InjectionDirective, depth int) string {
	if d.AssetPath == "" || !strings.Contains(d.Template, models.PathPlaceholder) {
		return d.Template
	}
	return strings.ReplaceAll(d.Template, models.PathPlaceholder, e.res.Resolve(depth, d.AssetPath))
}

// Apply inserts every missing directive into doc and returns the names of the
// directives it inserted. When any missing directive has no usable anchor the
// document is left untouched and an ANCHOR_MISSING error is returned.
func (e *Engine) Apply(doc *models.Document) ([]string, error) {
	content := doc.Content
	var inserted []string

	for _, d := range e.directives {
		if strings.Contains(content, d.Marker) {
			continue
		}
		at, anchor := anchorFor(content, d.Scope)
		if at < 0 {
			return nil, repairerr.NewAnchorMissing(doc.RelPath, d.Name, anchor)
		}
		content = content[:at] + "\t" + e.Render(d, doc.Depth) + "\n" + content[at:]
		inserted = append(inserted, d.Name)
	}

	if len(inserted) > 0 {
		doc.Update(content)
	}
	return inserted, nil
}

// anchorFor returns the insertion offset for scope, or -1 with the anchor that was missing.
func anchorFor(content string, scope models.AnchorScope) (int, string) {
	switch scope {
	case models.AnchorBodyEnd:
		return lastIndexFold(content, bodyClose), bodyClose
	case models.AnchorBody:
		if i := indexFold(content, headClose); i >= 0 {
			return i, headClose
		}
		return lastIndexFold(content, bodyClose), headClose + " or " + bodyClose
	default:
		return indexFold(content, headClose), headClose
	}
}

// indexFold finds the first ASCII case-insensitive occurrence of marker, which
// must be lower case. Offsets are byte offsets into s whatever its encoding.
func indexFold(s, marker string) int {
	for i := 0; i+len(marker) <= len(s); i++ {
		if hasFoldPrefix(s[i:], marker) {
			return i
		}
	}
	return -1
}

func lastIndexFold(s, marker string) int {
	for i := len(s) - len(marker); i >= 0; i-- {
		if hasFoldPrefix(s[i:], marker) {
			return i
		}
	}
	return -1
}

func hasFoldPrefix(s, lower string) bool {
	if len(s) < len(lower) {
		return false
	}
	for i := 0; i < len(lower); i++ {
		c := s[i]
		if 'A' <= c && c <= 'Z' {
			c += 'a' - 'A'
		}
		if c != lower[i] {
			return false
		}
	}
	return true
}
