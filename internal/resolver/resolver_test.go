package resolver

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/recallkit/recall/internal/domain"
)

func writeCorpus(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for path, content := range files {
		abs := filepath.Join(root, filepath.FromSlash(path))
		if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
			t.Fatalf("MkdirAll: %v", err)
		}
		if err := os.WriteFile(abs, []byte(content), 0o644); err != nil {
			t.Fatalf("WriteFile: %v", err)
		}
	}
	return root
}

func TestResolveFolders(t *testing.T) {
	root := writeCorpus(t, map[string]string{
		"notes/go.md":        "# Go",
		"notes/deep/fsrs.md": "# FSRS",
		"drafts/wip.md":      "# WIP",
		"readme.txt":         "not markdown",
	})
	r := NewFSResolver(root)
	ctx := context.Background()

	got, err := r.Resolve(ctx, domain.Criteria{Kind: domain.CriteriaFolders, Folders: []string{"notes"}})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	want := []string{"notes/deep/fsrs.md", "notes/go.md"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Resolve = %v, want %v", got, want)
	}

	// An empty folder matches the whole corpus; non-markdown stays out.
	all, err := r.Resolve(ctx, domain.Criteria{Kind: domain.CriteriaFolders, Folders: []string{""}})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("whole-corpus match = %v", all)
	}
}

func TestResolveTags(t *testing.T) {
	root := writeCorpus(t, map[string]string{
		"front.md":  "---\ntags: [go, fsrs]\n---\nbody",
		"inline.md": "some text with a #go tag",
		"plain.md":  "nothing to see",
	})
	r := NewFSResolver(root)

	got, err := r.Resolve(context.Background(), domain.Criteria{Kind: domain.CriteriaTags, Tags: []string{"go"}})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	want := []string{"front.md", "inline.md"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Resolve = %v, want %v", got, want)
	}
}

func TestResolveCustomPaths(t *testing.T) {
	root := writeCorpus(t, map[string]string{
		"a.md": "a",
		"b.md": "b",
		"c.md": "c",
	})
	r := NewFSResolver(root)

	got, err := r.Resolve(context.Background(), domain.Criteria{
		Kind:  domain.CriteriaCustom,
		Paths: []string{"a.md", "c.md", "missing.md"},
	})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	want := []string{"a.md", "c.md"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Resolve = %v, want %v", got, want)
	}
}

func TestReadTags(t *testing.T) {
	cases := []struct {
		name string
		doc  string
		want []string
	}{
		{
			"inline frontmatter list",
			"---\ntags: [Go, FSRS]\n---\n",
			[]string{"go", "fsrs"},
		},
		{
			"dash frontmatter list",
			"---\ntags:\n  - go\n  - notes\nother: x\n---\n",
			[]string{"go", "notes"},
		},
		{
			"body hashtags",
			"Learning #go today, also #spaced-repetition.",
			[]string{"go", "spaced-repetition"},
		},
		{
			"headings are not tags",
			"## Heading\n#real one",
			[]string{"real"},
		},
		{
			"duplicates collapse",
			"---\ntags: [go]\n---\n#go again",
			[]string{"go"},
		},
		{
			"no tags",
			"just prose",
			nil,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ReadTags(strings.NewReader(tc.doc))
			if err != nil {
				t.Fatalf("ReadTags: %v", err)
			}
			if !reflect.DeepEqual(got, tc.want) {
				t.Errorf("ReadTags = %v, want %v", got, tc.want)
			}
		})
	}
}
