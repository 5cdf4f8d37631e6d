// Package resolver maps references onto logical asset paths and computes the
// reference text that is correct for a document's depth and the deployment base.
package resolver

import (
	"strings"

	"github.com/dtnitsch/site-repair/models"
	"github.com/dtnitsch/site-repair/pkg/scanner"
)

// Options is the immutable configuration a Resolver is built from.
type Options struct {
	DeploymentBase string
	LegacyBases    []string
	LegacyHosts    []string
	LegacyMappings []models.LegacyMapping
	ManagedRoots   []string
	SkipPatterns   []string
	AssetsDir      string
}

// OptionsFromConfig extracts resolver options from the run config.
func OptionsFromConfig(cfg *models.Config) Options {
	return Options{
		DeploymentBase: cfg.DeploymentBase,
		LegacyBases:    cfg.LegacyBases,
		LegacyHosts:    cfg.LegacyHosts,
		LegacyMappings: cfg.LegacyMappings,
		ManagedRoots:   cfg.ManagedRoots,
		SkipPatterns:   cfg.SkipPatterns,
		AssetsDir:      cfg.AssetsDir,
	}
}

// Resolver is safe for concurrent use; it holds no mutable state.
type Resolver struct {
	base     string
	bases    []string // every base prefix to strip, current first
	hosts    map[string]bool
	mappings []models.LegacyMapping
	roots    []string
	skip     []string
	assets   string
}

// New builds a Resolver. Mapping tables are copied so later edits to opts have no effect.
func New(opts Options) *Resolver {
	r := &Resolver{
		base:     normalizeBase(opts.DeploymentBase),
		hosts:    make(map[string]bool, len(opts.LegacyHosts)),
		mappings: append([]models.LegacyMapping(nil), opts.LegacyMappings...),
		roots:    append([]string(nil), opts.ManagedRoots...),
		skip:     append([]string(nil), opts.SkipPatterns...),
		assets:   opts.AssetsDir,
	}
	if r.base != "" && r.base != "/" {
		r.bases = append(r.bases, r.base)
	}
	for _, b := range opts.LegacyBases {
		if nb := normalizeBase(b); nb != "" && nb != "/" && nb != r.base {
			r.bases = append(r.bases, nb)
		}
	}
	for _, h := range opts.LegacyHosts {
		r.hosts[strings.ToLower(h)] = true
	}
	return r
}

// Base returns the normalized deployment base ("" for domain-root serving).
func (r *Resolver) Base() string {
	return r.base
}

// Logical returns the logical asset path a reference denotes. ok is false for
// references the pipeline does not manage: foreign hosts, dynamic endpoints and
// paths outside the managed roots.
func (r *Resolver) Logical(ref models.Reference) (string, bool) {
	for _, pat := range r.skip {
		if strings.Contains(ref.Raw, pat) {
			return "", false
		}
	}

	target := ref.Target
	switch ref.Style {
	case models.StyleAbsolute:
		if !r.hosts[stripPort(ref.Host)] {
			return "", false
		}
	case models.StyleRootRelative:
		target = r.stripBase("/" + target)
	case models.StyleRelative:
		// "./FFC-EX-SRRN.net/assets/x" left behind by earlier sub-path exports
		target = r.stripBase("/" + target)
	}

	target = r.mapLegacy(target)
	if !r.managed(target) {
		return "", false
	}
	return target, true
}

// Resolve computes the reference text for logical at the given document depth.
// A deployment base yields root-relative form; no base yields "../" x depth.
func (r *Resolver) Resolve(depth int, logical string) string {
	logical = strings.TrimPrefix(logical, "/")
	if r.base != "" {
		return r.base + logical
	}
	if depth < 0 {
		depth = 0
	}
	return strings.Repeat("../", depth) + logical
}

// IsAsset reports whether a logical path lives in the recoverable asset subtree.
func (r *Resolver) IsAsset(logical string) bool {
	return r.assets != "" && strings.HasPrefix(logical, r.assets)
}

// RemotePath maps a logical path back onto the historical layout it came from,
// e.g. "assets/uploads/x.png" -> "wp-content/uploads/x.png".
func (r *Resolver) RemotePath(logical string) string {
	for _, m := range r.mappings {
		if strings.HasPrefix(logical, m.Logical) {
			return m.Legacy + strings.TrimPrefix(logical, m.Logical)
		}
	}
	return logical
}

// Rewrite resolves every managed reference in doc. It returns the number of
// references changed and the number of malformed references skipped.
func (r *Resolver) Rewrite(doc *models.Document) (changed int, malformed int) {
	var edits []scanner.Edit
	for ref, err := range scanner.Scan(doc.Content) {
		if err != nil {
			malformed++
			continue
		}
		logical, ok := r.Logical(ref)
		if !ok {
			continue
		}
		want := r.Resolve(doc.Depth, logical) + ref.Suffix
		if want == ref.Raw {
			continue
		}
		edits = append(edits, scanner.Edit{Start: ref.Start, End: ref.End, Text: want})
	}
	if len(edits) > 0 {
		doc.Update(scanner.ApplyEdits(doc.Content, edits))
	}
	return len(edits), malformed
}

func (r *Resolver) stripBase(p string) string {
	for _, b := range r.bases {
		if strings.HasPrefix(p, b) {
			return strings.TrimPrefix(p, b)
		}
	}
	return strings.TrimPrefix(p, "/")
}

func (r *Resolver) mapLegacy(target string) string {
	for _, m := range r.mappings {
		if strings.HasPrefix(target, m.Legacy) {
			return m.Logical + strings.TrimPrefix(target, m.Legacy)
		}
	}
	return target
}

func (r *Resolver) managed(target string) bool {
	if target == "" {
		return false
	}
	for _, root := range r.roots {
		if strings.HasSuffix(root, "/") {
			if strings.HasPrefix(target, root) {
				return true
			}
		} else if target == root {
			return true
		}
	}
	return false
}

// normalizeBase turns "sub", "/sub" or "/sub/" into "/sub/".
func normalizeBase(base string) string {
	base = strings.TrimSpace(base)
	if base == "" {
		return ""
	}
	if !strings.HasPrefix(base, "/") {
		base = "/" + base
	}
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	return base
}

func stripPort(host string) string {
	if i := strings.LastIndexByte(host, ':'); i >= 0 && !strings.Contains(host[i:], "]") {
		return host[:i]
	}
	return host
}
