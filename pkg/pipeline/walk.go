package pipeline

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	repairerr "github.com/dtnitsch/site-repair/internal/errors"
)

// Enumerate lists the markup documents under root as sorted, slash-separated
// relative paths. Only an unreadable root is an error; unreadable
// subdirectories are reported through skipped and the walk continues.
func Enumerate(root string, include, exclude []string, skipped func(rel string, err error)) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, repairerr.NewCorpusUnreadable(root, err)
	}
	if !info.IsDir() {
		return nil, repairerr.NewCorpusUnreadable(root, fs.ErrInvalid)
	}
	if _, err := os.ReadDir(root); err != nil {
		return nil, repairerr.NewCorpusUnreadable(root, err)
	}

	var docs []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return relErr
		}
		rel = filepath.ToSlash(rel)

		if err != nil {
			if rel == "." {
				return err
			}
			if skipped != nil {
				skipped(rel, err)
			}
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if rel == "." {
			return nil
		}

		if d.IsDir() {
			if matchesAny(rel, exclude) || matchesAny(rel+"/", exclude) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if matchesAny(rel, exclude) {
			return nil
		}
		if matchesAny(rel, include) {
			docs = append(docs, rel)
		}
		return nil
	})
	if err != nil {
		return nil, repairerr.NewCorpusUnreadable(root, err)
	}

	sort.Strings(docs)
	return docs, nil
}

// matchesAny returns true if rel matches any glob in globs
func matchesAny(rel string, globs []string) bool {
	for _, g := range globs {
		g = filepath.ToSlash(g)
		if strings.ContainsAny(g, "*?[{") {
			if ok, _ := doublestar.Match(g, rel); ok {
				return true
			}
		} else if strings.HasSuffix(g, "/") {
			if strings.HasPrefix(rel+"/", g) {
				return true
			}
		} else if rel == g || filepath.Base(rel) == g {
			return true
		}
	}
	return false
}
