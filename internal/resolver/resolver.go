// Package resolver evaluates a queue's selection criteria against the
// host's live corpus and returns the matching item paths. Resolution is a
// pure query: it never creates or removes anything.
package resolver

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/recallkit/recall/internal/domain"
)

// Resolver returns the current list of item paths matching the criteria.
// Implementations must be idempotent queries over the live corpus.
type Resolver interface {
	Resolve(ctx context.Context, criteria domain.Criteria) ([]string, error)
}

// FSResolver resolves criteria against markdown files under a root
// directory. Returned paths are slash-separated and relative to the root.
type FSResolver struct {
	root string
}

// NewFSResolver returns a resolver rooted at dir.
func NewFSResolver(dir string) *FSResolver {
	return &FSResolver{root: dir}
}

// Resolve walks the corpus and returns every markdown file matching the
// criteria, sorted for deterministic diffs.
func (r *FSResolver) Resolve(ctx context.Context, criteria domain.Criteria) ([]string, error) {
	var matches []string

	err := filepath.WalkDir(r.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() || !strings.HasSuffix(strings.ToLower(d.Name()), ".md") {
			return nil
		}

		rel, err := filepath.Rel(r.root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		ok, err := r.matches(path, rel, criteria)
		if err != nil {
			return err
		}
		if ok {
			matches = append(matches, rel)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(matches)
	return matches, nil
}

func (r *FSResolver) matches(abs, rel string, criteria domain.Criteria) (bool, error) {
	switch criteria.Kind {
	case domain.CriteriaFolders:
		return inFolders(rel, criteria.Folders), nil

	case domain.CriteriaTags:
		f, err := os.Open(abs)
		if err != nil {
			return false, err
		}
		defer f.Close()
		tags, err := ReadTags(f)
		if err != nil {
			return false, err
		}
		return hasAnyTag(tags, criteria.Tags), nil

	case domain.CriteriaCustom:
		for _, p := range criteria.Paths {
			if filepath.ToSlash(p) == rel {
				return true, nil
			}
		}
		return false, nil

	default:
		return false, nil
	}
}

// inFolders reports whether rel sits under any of the listed folders.
// An empty folder ("" or "/") matches the whole corpus.
func inFolders(rel string, folders []string) bool {
	for _, folder := range folders {
		folder = strings.Trim(filepath.ToSlash(folder), "/")
		if folder == "" {
			return true
		}
		if rel == folder || strings.HasPrefix(rel, folder+"/") {
			return true
		}
	}
	return false
}

func hasAnyTag(have, want []string) bool {
	set := make(map[string]struct{}, len(have))
	for _, t := range have {
		set[strings.ToLower(t)] = struct{}{}
	}
	for _, t := range want {
		if _, ok := set[strings.ToLower(strings.TrimPrefix(t, "#"))]; ok {
			return true
		}
	}
	return false
}
