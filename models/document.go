package models

import (
	"path/filepath"
	"strings"
)

// Document is a markup file inside the corpus, read once per pass.
type Document struct {
	Path    string // absolute path on disk
	RelPath string // slash-separated path relative to the corpus root
	Depth   int    // directory levels between the document and the corpus root
	Content string
	Dirty   bool
}

// NewDocument builds a Document for relPath (slash-separated, relative to the corpus root).
func NewDocument(root, relPath, content string) *Document {
	relPath = filepath.ToSlash(relPath)
	return &Document{
		Path:    filepath.Join(root, filepath.FromSlash(relPath)),
		RelPath: relPath,
		Depth:   DepthOf(relPath),
		Content: content,
	}
}

// DepthOf counts the directory segments between a root-relative file path and the root.
// "index.html" is depth 0, "about-us/index.html" is depth 1.
func DepthOf(relPath string) int {
	dir := filepath.ToSlash(filepath.Dir(filepath.FromSlash(relPath)))
	if dir == "." || dir == "" || dir == "/" {
		return 0
	}
	return len(strings.Split(strings.Trim(dir, "/"), "/"))
}

// Update replaces the content and marks the document dirty when it actually changed.
func (d *Document) Update(content string) bool {
	if content == d.Content {
		return false
	}
	d.Content = content
	d.Dirty = true
	return true
}

// PrefixStyle describes how a reference expresses its target.
type PrefixStyle int

const (
	// StyleRelative targets are expressed relative to the document, e.g. "../../assets/x.png".
	StyleRelative PrefixStyle = iota
	StyleRootRelative                 // "/assets/x.png"
	StyleAbsolute                     // "https://host/x.png" or "//host/x.png"
)

func (s PrefixStyle) String() string {
	switch s {
	case StyleRootRelative:
		return "root-relative"
	case StyleAbsolute:
		return "absolute"
	default:
		return "relative"
	}
}

// ReferenceKind identifies the element/attribute a reference came from.
type ReferenceKind string

const (
	KindStylesheet ReferenceKind = "stylesheet"
	KindScript     ReferenceKind = "script"
	KindImage      ReferenceKind = "image"
	KindSrcset     ReferenceKind = "srcset"
	KindMedia      ReferenceKind = "media"
	KindStyle      ReferenceKind = "style" // url() inside an inline style attribute
)

// Reference is one resource pointer found in a document.
// Start and End are byte offsets of the URL text (not the whole attribute).
type Reference struct {
	Kind  ReferenceKind
	Tag   string
	Attr  string
	Raw   string
	Start int
	End   int

	Style    PrefixStyle
	DotDepth int    // number of leading "../" segments (relative only)
	Host     string // absolute only
	Target   string // path with prefix, host and leading slash removed
	Suffix   string // query and fragment, preserved across rewrites
}

// Asset is a file expected under the asset tree, identified by its logical path.
type Asset struct {
	LogicalPath string
	LocalPath   string
	RemoteURL   string
}

// OutcomeStatus is the final state of one asset recovery.
type OutcomeStatus string

const (
	OutcomePresent   OutcomeStatus = "present"
	OutcomeRecovered OutcomeStatus = "recovered"
	OutcomeFailed    OutcomeStatus = "failed"
)

// Outcome is the result of recovering one asset.
type Outcome struct {
	Status OutcomeStatus
	Reason string
	Bytes  int64
}
